package shading

import (
	"cogentcore.org/core/math32"
)

// Palette holds the elevation ramp endpoints and the tint strength.
type Palette struct {
	// Low is the tint at elevation 0.
	Low math32.Vector3
	// High is the tint at elevation 1.
	High math32.Vector3
	// BlendWeight is how far the output moves from the base color toward
	// the tint, in [0, 1].
	BlendWeight float32
}

// DefaultPalette ramps from blue lowlands to red highlands and keeps the
// base imagery dominant.
var DefaultPalette = Palette{
	Low:         math32.Vec3(0, 0, 1),
	High:        math32.Vec3(1, 0, 0),
	BlendWeight: 0.3,
}

// Tint maps an elevation to a color on the Low..High ramp. Elevations
// outside [0, 1] are clamped first.
func (p Palette) Tint(elevation float32) math32.Vector3 {
	return mix3(p.Low, p.High, math32.Clamp(elevation, 0, 1))
}

// Blend moves base toward tint by BlendWeight. A weight of 0 returns base
// and a weight of 1 returns tint, bit for bit.
func (p Palette) Blend(base, tint math32.Vector3) math32.Vector3 {
	return mix3(base, tint, p.BlendWeight)
}

// FragmentMain is the fragment stage for one pixel with interpolated
// texture coordinate uv. Alpha is always 1.
func FragmentMain(b *Bindings, p Palette, uv math32.Vector2) math32.Vector4 {
	base := SampleBase(b, uv)
	elevation := BilinearResample(b.Elevation, b.ElevationSampler, uv)
	c := p.Blend(base, p.Tint(elevation))
	return math32.Vector4FromVector3(c, 1)
}

// SampleBase reads the base color through the bound sampler's own filter.
func SampleBase(b *Bindings, uv math32.Vector2) math32.Vector3 {
	c := b.BaseSampler.Sample(b.Base, uv)
	return math32.Vec3(c.X, c.Y, c.Z)
}

// mix3 is WGSL mix: (1-t)*a + t*b per component.
func mix3(a, b math32.Vector3, t float32) math32.Vector3 {
	return math32.Vec3(
		math32.Lerp(a.X, b.X, t),
		math32.Lerp(a.Y, b.Y, t),
		math32.Lerp(a.Z, b.Z, t),
	)
}
