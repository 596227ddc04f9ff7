package shading

import (
	"cogentcore.org/core/math32"
)

// AddressMode decides which texel an out-of-range index refers to.
type AddressMode uint8

const (
	// ClampToEdge repeats the edge texels.
	ClampToEdge AddressMode = iota
	// Repeat wraps the coordinate around.
	Repeat
	// MirrorRepeat wraps the coordinate, flipping every other repetition.
	MirrorRepeat
)

func (m AddressMode) String() string {
	switch m {
	case ClampToEdge:
		return "ClampToEdge"
	case Repeat:
		return "Repeat"
	case MirrorRepeat:
		return "MirrorRepeat"
	default:
		return "Unknown"
	}
}

// FilterMode is the sampler's magnification/minification filter.
type FilterMode uint8

const (
	// Nearest selects the texel containing the coordinate.
	Nearest FilterMode = iota
	// Linear interpolates between the four nearest texel centers.
	Linear
)

func (m FilterMode) String() string {
	switch m {
	case Nearest:
		return "Nearest"
	case Linear:
		return "Linear"
	default:
		return "Unknown"
	}
}

// subTexelSteps is the fixed-point precision texel coordinates are snapped
// to before filtering, as texture units do in hardware.
const subTexelSteps = 256

// Sampler is the CPU stand-in for a bound GPU sampler.
type Sampler struct {
	AddressModeU AddressMode
	AddressModeV AddressMode
	Filter       FilterMode
}

// PointClampSampler is the elevation sampler the terrain viewer binds.
var PointClampSampler = Sampler{AddressModeU: ClampToEdge, AddressModeV: ClampToEdge, Filter: Nearest}

// LinearClampSampler is the base texture sampler the terrain viewer binds.
var LinearClampSampler = Sampler{AddressModeU: ClampToEdge, AddressModeV: ClampToEdge, Filter: Linear}

// Sample filters tex at normalized uv with the sampler's filter.
func (s Sampler) Sample(tex Texture, uv math32.Vector2) math32.Vector4 {
	if s.Filter == Linear {
		return s.sampleLinear(tex, uv)
	}
	return s.Load(tex, uv)
}

// Load is a raw point lookup: the texel containing uv, resolved through the
// address modes. The filter mode is ignored.
func (s Sampler) Load(tex Texture, uv math32.Vector2) math32.Vector4 {
	w, h := tex.Size()
	x := int(math32.Floor(snap(uv.X * float32(w))))
	y := int(math32.Floor(snap(uv.Y * float32(h))))
	return tex.Texel(address(s.AddressModeU, x, w), address(s.AddressModeV, y, h))
}

func (s Sampler) sampleLinear(tex Texture, uv math32.Vector2) math32.Vector4 {
	w, h := tex.Size()
	fx := snap(uv.X*float32(w)) - 0.5
	fy := snap(uv.Y*float32(h)) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	xa, xb := address(s.AddressModeU, x0, w), address(s.AddressModeU, x0+1, w)
	ya, yb := address(s.AddressModeV, y0, h), address(s.AddressModeV, y0+1, h)

	top := mix4(tex.Texel(xa, ya), tex.Texel(xb, ya), tx)
	bottom := mix4(tex.Texel(xa, yb), tex.Texel(xb, yb), tx)
	return mix4(top, bottom, ty)
}

// snap rounds a texel-space coordinate to the sub-texel grid, so that
// i/W*W lands on texel i even when the division was inexact.
func snap(t float32) float32 {
	return math32.Round(t*subTexelSteps) / subTexelSteps
}

// address maps texel index i into [0, n) according to mode.
func address(mode AddressMode, i, n int) int {
	if n <= 1 {
		return 0
	}
	switch mode {
	case Repeat:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	case MirrorRepeat:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

func mix4(a, b math32.Vector4, t float32) math32.Vector4 {
	return math32.Vec4(
		math32.Lerp(a.X, b.X, t),
		math32.Lerp(a.Y, b.Y, t),
		math32.Lerp(a.Z, b.Z, t),
		math32.Lerp(a.W, b.W, t),
	)
}
