// Package elevation loads raw height rasters and normalizes them into the
// single-channel texture the fragment stage tints from.
package elevation

import (
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"terrainviewer/internal/logger"
	"terrainviewer/internal/shading"
)

// ErrEmptyGrid is returned for rasters with no samples.
var ErrEmptyGrid = errors.New("elevation grid is empty")

// Grid is a row-major raster of raw heights, in meters for Terrarium tiles
// and in the file's own units for TIFF.
type Grid struct {
	Width  int
	Height int
	Values []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(w, h int) *Grid {
	return &Grid{Width: w, Height: h, Values: make([]float64, w*h)}
}

// At returns the height at (x, y).
func (g *Grid) At(x, y int) float64 { return g.Values[y*g.Width+x] }

// MinMax returns the smallest and largest height.
func (g *Grid) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Normalize maps heights linearly onto [0, 1], lowest to highest. A flat
// grid maps to all zeros.
func (g *Grid) Normalize() (*shading.ScalarTexture, error) {
	if g.Width <= 0 || g.Height <= 0 || len(g.Values) != g.Width*g.Height {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrEmptyGrid, g.Width, g.Height, len(g.Values))
	}
	lo, hi := g.MinMax()
	logger.Logger().Debug("elevation range", "min", lo, "max", hi, "width", g.Width, "height", g.Height)

	tex := shading.NewScalarTexture(g.Width, g.Height)
	span := hi - lo
	if span == 0 {
		return tex, nil
	}
	for i, v := range g.Values {
		tex.Pix[i] = float32((v - lo) / span)
	}
	return tex, nil
}

// DecodeTerrarium decodes a Terrarium-encoded PNG, where each pixel holds
// height = R*256 + G + B/256 - 32768 meters.
func DecodeTerrarium(r io.Reader) (*Grid, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode terrarium: %w", err)
	}
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			cr, cg, cb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Values[y*g.Width+x] = float64(cr>>8)*256 + float64(cg>>8) + float64(cb>>8)/256 - 32768
		}
	}
	return g, nil
}

// DecodeTIFF reads band 1 of a grayscale TIFF. 16-bit samples keep their
// full range.
func DecodeTIFF(r io.Reader) (*Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			g.Values[y*g.Width+x] = sample(img, b.Min.X+x, b.Min.Y+y)
		}
	}
	return g, nil
}

func sample(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.Gray16:
		return float64(m.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(m.GrayAt(x, y).Y)
	default:
		r, _, _, _ := img.At(x, y).RGBA()
		return float64(r)
	}
}

// Load reads an elevation raster, choosing the decoder by extension:
// .tif/.tiff as TIFF, anything else as Terrarium PNG.
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return DecodeTIFF(f)
	default:
		return DecodeTerrarium(f)
	}
}
