package shading

import (
	"image"
	"image/draw"

	"cogentcore.org/core/math32"
)

// Texture is a 2D grid of texels addressed by integer coordinates.
// Callers never pass coordinates outside [0, w) x [0, h); a Sampler
// resolves those first.
type Texture interface {
	Size() (width, height int)
	Texel(x, y int) math32.Vector4
}

// ImageTexture is an 8-bit RGBA texture, the CPU counterpart of an
// RGBA8 GPU texture.
type ImageTexture struct {
	img *image.RGBA
}

// NewImageTexture copies img into an RGBA texture.
func NewImageTexture(img image.Image) *ImageTexture {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return &ImageTexture{img: rgba}
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &ImageTexture{img: rgba}
}

// SolidTexture returns a 1x1 texture of a single color.
func SolidTexture(r, g, b, a float32) *ImageTexture {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0] = unorm8(r)
	img.Pix[1] = unorm8(g)
	img.Pix[2] = unorm8(b)
	img.Pix[3] = unorm8(a)
	return &ImageTexture{img: img}
}

// Image returns the backing image, used for GPU upload.
func (t *ImageTexture) Image() *image.RGBA { return t.img }

// Size reports 0x0 for a nil texture.
func (t *ImageTexture) Size() (int, int) {
	if t == nil || t.img == nil {
		return 0, 0
	}
	return t.img.Rect.Dx(), t.img.Rect.Dy()
}

func (t *ImageTexture) Texel(x, y int) math32.Vector4 {
	i := t.img.PixOffset(x, y)
	p := t.img.Pix[i : i+4 : i+4]
	return math32.Vec4(float32(p[0])/255, float32(p[1])/255, float32(p[2])/255, float32(p[3])/255)
}

// ScalarTexture is a single-channel float texture, the CPU counterpart of
// an R32Float GPU texture. Texel returns the value in the red channel.
type ScalarTexture struct {
	Width  int
	Height int
	// Pix is row-major, Width*Height long.
	Pix []float32
}

// NewScalarTexture allocates a zeroed w x h texture.
func NewScalarTexture(w, h int) *ScalarTexture {
	return &ScalarTexture{Width: w, Height: h, Pix: make([]float32, w*h)}
}

// Size reports 0x0 for a nil texture.
func (t *ScalarTexture) Size() (int, int) {
	if t == nil {
		return 0, 0
	}
	return t.Width, t.Height
}

func (t *ScalarTexture) Texel(x, y int) math32.Vector4 {
	return math32.Vec4(t.Pix[y*t.Width+x], 0, 0, 1)
}

// At returns the stored value at (x, y).
func (t *ScalarTexture) At(x, y int) float32 { return t.Pix[y*t.Width+x] }

// Set stores v at (x, y).
func (t *ScalarTexture) Set(x, y int, v float32) { t.Pix[y*t.Width+x] = v }

// unorm8 converts a [0,1] channel value to 8 bits, rounding to nearest.
func unorm8(v float32) uint8 {
	v = math32.Clamp(v, 0, 1)
	return uint8(v*255 + 0.5)
}

// ToRGBA8 converts a shaded color to an 8-bit pixel.
func ToRGBA8(c math32.Vector4) [4]uint8 {
	return [4]uint8{unorm8(c.X), unorm8(c.Y), unorm8(c.Z), unorm8(c.W)}
}
