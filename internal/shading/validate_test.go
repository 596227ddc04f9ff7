package shading

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingsValidate(t *testing.T) {
	valid := func() *Bindings {
		return &Bindings{
			Base:             SolidTexture(1, 1, 1, 1),
			BaseSampler:      LinearClampSampler,
			Elevation:        NewScalarTexture(4, 4),
			ElevationSampler: PointClampSampler,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Bindings)
		want   error
	}{
		{"no base", func(b *Bindings) { b.Base = nil }, ErrMissingTexture},
		{"no elevation", func(b *Bindings) { b.Elevation = nil }, ErrMissingTexture},
		{"nil elevation pointer", func(b *Bindings) { b.Elevation = (*ScalarTexture)(nil) }, ErrMissingTexture},
		{"nil base pointer", func(b *Bindings) { b.Base = (*ImageTexture)(nil) }, ErrMissingTexture},
		{"empty elevation", func(b *Bindings) { b.Elevation = NewScalarTexture(0, 3) }, ErrEmptyTexture},
		{"filtering elevation sampler", func(b *Bindings) { b.ElevationSampler = LinearClampSampler }, ErrFilteringSampler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			assert.ErrorIs(t, b.Validate(), tt.want)
		})
	}
}

func TestPaletteValidate(t *testing.T) {
	assert.NoError(t, DefaultPalette.Validate())

	p := DefaultPalette
	p.BlendWeight = 1.2
	assert.ErrorIs(t, p.Validate(), ErrInvalidPalette)

	p = DefaultPalette
	p.High = math32.Vec3(0, 2, 0)
	assert.ErrorIs(t, p.Validate(), ErrInvalidPalette)

	p = DefaultPalette
	p.BlendWeight = math32.NaN()
	assert.ErrorIs(t, p.Validate(), ErrInvalidPalette)
}

func TestNilTextureSize(t *testing.T) {
	w, h := (*ScalarTexture)(nil).Size()
	assert.Zero(t, w)
	assert.Zero(t, h)

	w, h = (*ImageTexture)(nil).Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}
