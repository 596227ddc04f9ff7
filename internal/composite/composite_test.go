package composite

import (
	"context"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainviewer/internal/shading"
)

func bindings(base *shading.ImageTexture, elevation *shading.ScalarTexture) *shading.Bindings {
	return &shading.Bindings{
		Base:             base,
		BaseSampler:      shading.LinearClampSampler,
		Elevation:        elevation,
		ElevationSampler: shading.PointClampSampler,
	}
}

func TestRenderSolidRed(t *testing.T) {
	b := bindings(shading.SolidTexture(1, 0, 0, 1), shading.NewScalarTexture(3, 3))
	p := shading.Palette{Low: math32.Vec3(0, 0, 0), High: math32.Vec3(1, 1, 1), BlendWeight: 0.1}

	img, err := Render(context.Background(), b, p, 8, 5)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())

	for y := 0; y < 5; y++ {
		for x := 0; x < 8; x++ {
			i := img.PixOffset(x, y)
			assert.Equal(t, []uint8{230, 0, 0, 255}, img.Pix[i:i+4], "pixel (%d,%d)", x, y)
		}
	}
}

func TestRenderTintGradient(t *testing.T) {
	elev := shading.NewScalarTexture(2, 1)
	elev.Set(0, 0, 0)
	elev.Set(1, 0, 1)
	b := bindings(shading.SolidTexture(0, 0, 0, 1), elev)
	p := shading.Palette{Low: math32.Vec3(0, 0, 1), High: math32.Vec3(1, 0, 0), BlendWeight: 1}

	img, err := Render(context.Background(), b, p, 4, 1)
	require.NoError(t, err)

	// red grows and blue shrinks from left to right
	for x := 1; x < 4; x++ {
		prev, cur := img.PixOffset(x-1, 0), img.PixOffset(x, 0)
		assert.GreaterOrEqual(t, img.Pix[cur], img.Pix[prev])
		assert.LessOrEqual(t, img.Pix[cur+2], img.Pix[prev+2])
	}
	last := img.PixOffset(3, 0)
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[last:last+4])
}

func TestRenderRejectsBadInput(t *testing.T) {
	good := bindings(shading.SolidTexture(1, 1, 1, 1), shading.NewScalarTexture(1, 1))

	_, err := Render(context.Background(), good, shading.DefaultPalette, 0, 4)
	assert.Error(t, err)

	bad := bindings(shading.SolidTexture(1, 1, 1, 1), nil)
	_, err = Render(context.Background(), bad, shading.DefaultPalette, 4, 4)
	assert.ErrorIs(t, err, shading.ErrMissingTexture)

	p := shading.DefaultPalette
	p.BlendWeight = -1
	_, err = Render(context.Background(), good, p, 4, 4)
	assert.ErrorIs(t, err, shading.ErrInvalidPalette)
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := bindings(shading.SolidTexture(1, 1, 1, 1), shading.NewScalarTexture(2, 2))
	img, err := Render(ctx, b, shading.DefaultPalette, 16, 16)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, img)
}
