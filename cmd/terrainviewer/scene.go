package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"terrainviewer/internal/config"
	"terrainviewer/internal/scene"
	"terrainviewer/internal/tileserver"
	"terrainviewer/pkg/tiles"
)

// sceneFlags selects the scene a command works on.
type sceneFlags struct {
	base      string
	elevation string
	tile      string
}

func (f *sceneFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.base, "base", "", "base image file (PNG, JPEG, WebP or TIFF)")
	cmd.Flags().StringVar(&f.elevation, "elevation", "", "elevation file (Terrarium PNG or grayscale TIFF)")
	cmd.Flags().StringVar(&f.tile, "tile", "", "tile to fetch instead of files, as z/x/y")
}

// load resolves the scene from flags, then from the config: local files
// when both paths are set, otherwise a fetched tile.
func (f *sceneFlags) load(ctx context.Context, cfg *config.Config) (*scene.Scene, error) {
	base, elev := f.base, f.elevation
	if f.tile == "" && base == "" && elev == "" {
		base, elev = cfg.Scene.BasePath, cfg.Scene.ElevationPath
	}
	if f.tile == "" && (base != "" || elev != "") {
		if base == "" || elev == "" {
			return nil, fmt.Errorf("both a base and an elevation file are needed")
		}
		return scene.FromFiles(base, elev)
	}

	coord := tiles.LatLonToTile(cfg.Scene.Lat, cfg.Scene.Lon, cfg.Scene.Zoom)
	if f.tile != "" {
		var err error
		if coord, err = parseTile(f.tile); err != nil {
			return nil, err
		}
	}

	cache, err := newTileCache(cfg)
	if err != nil {
		return nil, err
	}
	defer cache.Close()
	return scene.FromTile(ctx, cache, coord)
}

// parseTile parses "z/x/y".
func parseTile(s string) (tiles.TileCoord, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return tiles.TileCoord{}, fmt.Errorf("tile %q: want z/x/y", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return tiles.TileCoord{}, fmt.Errorf("tile %q: %w", s, err)
		}
		v[i] = n
	}
	coord := tiles.TileCoord{Zoom: v[0], X: v[1], Y: v[2]}
	if !coord.Valid() {
		return tiles.TileCoord{}, fmt.Errorf("%w: %s", tileserver.ErrInvalidTile, coord)
	}
	return coord, nil
}

func newTileCache(cfg *config.Config) (*tileserver.TileCache, error) {
	return tileserver.NewTileCache(tileserver.Options{
		CacheDir: cfg.Tiles.CacheDir,
		Workers:  cfg.Tiles.Workers,
		Sources: map[tiles.Layer]string{
			tiles.Imagery:   cfg.Tiles.ImageryURL,
			tiles.Elevation: cfg.Tiles.ElevationURL,
		},
		UserAgent:         cfg.Tiles.UserAgent,
		PrefetchNeighbors: cfg.Features.PrefetchNeighbors,
	})
}
