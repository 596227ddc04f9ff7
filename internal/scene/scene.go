// Package scene assembles the inputs of one terrain draw: the base image,
// the raw height grid and its normalized elevation texture.
package scene

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"terrainviewer/internal/elevation"
	"terrainviewer/internal/logger"
	"terrainviewer/internal/shading"
	"terrainviewer/internal/terrain"
	"terrainviewer/pkg/tiles"
)

// TileSource returns encoded tile data for a layer.
type TileSource interface {
	GetTile(ctx context.Context, layer tiles.Layer, coord tiles.TileCoord) ([]byte, error)
}

// Scene is a loaded base image with its elevation.
type Scene struct {
	Base      *shading.ImageTexture
	Heights   *elevation.Grid
	Elevation *shading.ScalarTexture
}

// New normalizes heights and pairs them with base.
func New(base image.Image, heights *elevation.Grid) (*Scene, error) {
	if base == nil {
		return nil, fmt.Errorf("scene: %w: base", shading.ErrMissingTexture)
	}
	if heights == nil {
		return nil, fmt.Errorf("scene: %w", elevation.ErrEmptyGrid)
	}
	tex, err := heights.Normalize()
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	s := &Scene{
		Base:      shading.NewImageTexture(base),
		Heights:   heights,
		Elevation: tex,
	}
	bw, bh := s.Base.Size()
	if bw != heights.Width || bh != heights.Height {
		logger.Logger().Debug("base and elevation sizes differ",
			"base", fmt.Sprintf("%dx%d", bw, bh),
			"elevation", fmt.Sprintf("%dx%d", heights.Width, heights.Height))
	}
	return s, nil
}

// FromFiles loads a base image (PNG, JPEG, WebP or TIFF) and an elevation
// raster from disk.
func FromFiles(basePath, elevationPath string) (*Scene, error) {
	base, err := decodeImageFile(basePath)
	if err != nil {
		return nil, err
	}
	heights, err := elevation.Load(elevationPath)
	if err != nil {
		return nil, fmt.Errorf("load elevation %s: %w", elevationPath, err)
	}
	return New(base, heights)
}

// FromTile fetches the imagery and elevation tiles at coord.
func FromTile(ctx context.Context, src TileSource, coord tiles.TileCoord) (*Scene, error) {
	baseData, err := src.GetTile(ctx, tiles.Imagery, coord)
	if err != nil {
		return nil, err
	}
	base, _, err := image.Decode(bytes.NewReader(baseData))
	if err != nil {
		return nil, fmt.Errorf("decode imagery tile %s: %w", coord, err)
	}

	elevData, err := src.GetTile(ctx, tiles.Elevation, coord)
	if err != nil {
		return nil, err
	}
	heights, err := elevation.DecodeTerrarium(bytes.NewReader(elevData))
	if err != nil {
		return nil, fmt.Errorf("decode elevation tile %s: %w", coord, err)
	}
	return New(base, heights)
}

// Bindings returns the group 0 resources for this scene.
func (s *Scene) Bindings() *shading.Bindings {
	return &shading.Bindings{
		Base:             s.Base,
		BaseSampler:      shading.LinearClampSampler,
		Elevation:        s.Elevation,
		ElevationSampler: shading.PointClampSampler,
		Dimensions: shading.Dimensions{
			Width:  float32(s.Elevation.Width),
			Height: float32(s.Elevation.Height),
		},
	}
}

// Mesh builds the terrain mesh from the raw heights.
func (s *Scene) Mesh(heightScale float64) (*terrain.Mesh, error) {
	return terrain.BuildMesh(s.Heights, heightScale)
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
