// Package composite evaluates the fragment stage on the CPU over a flat,
// texture-aligned grid: output pixel (x, y) is shaded at the texture
// coordinate of its center. It produces a top-down preview of the tinted
// terrain without a rasterizer or a GPU.
package composite

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"cogentcore.org/core/math32"
	"golang.org/x/sync/errgroup"

	"terrainviewer/internal/logger"
	"terrainviewer/internal/shading"
)

// Render shades a width x height image. Rows are independent fragment
// batches run in parallel. A cancelled context discards the whole image.
func Render(ctx context.Context, b *shading.Bindings, p shading.Palette, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("composite: invalid size %dx%d", width, height)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for y := 0; y < height; y++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			shadeRow(img, b, p, y)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Logger().Debug("composite rendered", "width", width, "height", height)
	return img, nil
}

func shadeRow(img *image.RGBA, b *shading.Bindings, p shading.Palette, y int) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	v := (float32(y) + 0.5) / float32(h)
	row := img.Pix[y*img.Stride : y*img.Stride+w*4]
	for x := 0; x < w; x++ {
		u := (float32(x) + 0.5) / float32(w)
		px := shading.ToRGBA8(shading.FragmentMain(b, p, math32.Vec2(u, v)))
		copy(row[x*4:x*4+4], px[:])
	}
}
