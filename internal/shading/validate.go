package shading

import (
	"errors"
	"fmt"

	"cogentcore.org/core/math32"
)

var (
	// ErrMissingTexture means a texture slot of the bind group is empty.
	ErrMissingTexture = errors.New("texture not bound")
	// ErrEmptyTexture means a bound texture has no texels.
	ErrEmptyTexture = errors.New("texture has zero size")
	// ErrFilteringSampler means a filtering sampler sits in the elevation
	// slot, which is declared non-filtering.
	ErrFilteringSampler = errors.New("elevation sampler must be non-filtering")
	// ErrInvalidPalette means a palette value lies outside [0, 1].
	ErrInvalidPalette = errors.New("invalid palette")
)

// Validate checks the resource set the way pipeline and bind group creation
// would. Once it passes, FragmentMain cannot fail.
func (b *Bindings) Validate() error {
	if err := checkTexture("base", b.Base); err != nil {
		return err
	}
	if err := checkTexture("elevation", b.Elevation); err != nil {
		return err
	}
	if b.ElevationSampler.Filter != Nearest {
		return fmt.Errorf("binding 3: %w (got %v)", ErrFilteringSampler, b.ElevationSampler.Filter)
	}
	return nil
}

func checkTexture(name string, t Texture) error {
	if isNil(t) {
		return fmt.Errorf("%s: %w", name, ErrMissingTexture)
	}
	if w, h := t.Size(); w <= 0 || h <= 0 {
		return fmt.Errorf("%s %dx%d: %w", name, w, h, ErrEmptyTexture)
	}
	return nil
}

// isNil also catches a nil texture pointer stored in the interface.
func isNil(t Texture) bool {
	switch t := t.(type) {
	case nil:
		return true
	case *ImageTexture:
		return t == nil
	case *ScalarTexture:
		return t == nil
	}
	return false
}

// Validate checks that every palette component lies in [0, 1].
func (p Palette) Validate() error {
	if !unit(p.BlendWeight) {
		return fmt.Errorf("%w: blend weight %v", ErrInvalidPalette, p.BlendWeight)
	}
	for name, c := range map[string]math32.Vector3{"low": p.Low, "high": p.High} {
		if !unit(c.X) || !unit(c.Y) || !unit(c.Z) {
			return fmt.Errorf("%w: %s color %v", ErrInvalidPalette, name, c)
		}
	}
	return nil
}

func unit(v float32) bool { return v >= 0 && v <= 1 }
