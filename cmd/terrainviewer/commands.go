package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"terrainviewer/internal/app"
	"terrainviewer/internal/composite"
	"terrainviewer/internal/config"
	"terrainviewer/internal/logger"
	"terrainviewer/internal/renderer"
	"terrainviewer/internal/tileserver"
	"terrainviewer/pkg/tiles"
)

func newViewCmd(opts *rootOptions) *cobra.Command {
	var sf sceneFlags
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the interactive terrain viewer",
		Long: `Open the interactive terrain viewer.

Controls:
  W/A/S/D, arrows : move
  Space / Shift   : up / down
  Left drag       : look around
  Mouse wheel     : change speed
  Escape          : exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := sf.load(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			viewer, err := app.New(opts.cfg, sc)
			if err != nil {
				return err
			}
			defer viewer.Cleanup()
			return viewer.Run()
		},
	}
	sf.register(cmd)
	return cmd
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		sf            sceneFlags
		out           string
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Composite a scene on the CPU and write a PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := sf.load(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			w, h := sc.Base.Size()
			if width > 0 {
				w = width
			}
			if height > 0 {
				h = height
			}

			start := time.Now()
			img, err := composite.Render(cmd.Context(), sc.Bindings(), opts.cfg.Rendering.Palette(), w, h)
			if err != nil {
				return err
			}
			logger.Logger().Info("composited", "width", w, "height", h, "elapsed", time.Since(start))

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return fmt.Errorf("encode %s: %w", out, err)
			}
			return f.Close()
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "composite.png", "output PNG")
	cmd.Flags().IntVar(&width, "width", 0, "output width (default: base image width)")
	cmd.Flags().IntVar(&height, "height", 0, "output height (default: base image height)")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve raw and composited tiles over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = opts.cfg.Server.Port
			}
			cache, err := newTileCache(opts.cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			srv := tileserver.NewServer(cache, port, opts.cfg.Rendering.Palette())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			logger.Logger().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

func newPrefetchCmd(opts *rootOptions) *cobra.Command {
	var (
		lat, lon     float64
		zoom, radius int
	)
	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Download imagery and elevation tiles around a point into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.cfg.Scene
			if !cmd.Flags().Changed("lat") {
				lat = s.Lat
			}
			if !cmd.Flags().Changed("lon") {
				lon = s.Lon
			}
			if !cmd.Flags().Changed("zoom") {
				zoom = s.Zoom
			}
			if zoom < 0 || zoom > tiles.MaxZoom {
				return fmt.Errorf("zoom must be in [0, %d]", tiles.MaxZoom)
			}
			if radius < 0 || radius > tileserver.MaxPrefetchRadius {
				return fmt.Errorf("radius must be in [0, %d]", tileserver.MaxPrefetchRadius)
			}

			cache, err := newTileCache(opts.cfg)
			if err != nil {
				return err
			}
			defer cache.Close()
			layers := cache.Layers()
			if len(layers) == 0 {
				return errors.New("no tile sources configured")
			}

			center := tiles.LatLonToTile(lat, lon, zoom)
			originLat, originLon := tiles.TileToLatLon(center)
			logger.Logger().Info("prefetching", "center", center.String(),
				"originLat", originLat, "originLon", originLon, "layers", layers)

			coords := tiles.GetPrefetchTiles(center, radius)
			bar := progressbar.Default(int64(len(coords)*len(layers)), "prefetching "+center.String())
			defer bar.Close()

			if err := cache.Prefetch(cmd.Context(), coords, func() { bar.Add(1) }); err != nil {
				return err
			}
			logger.Logger().Info("prefetch complete", "tiles", len(coords), "downloaded", cache.Fetches())
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "center latitude (default from config)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "center longitude (default from config)")
	cmd.Flags().IntVarP(&zoom, "zoom", "z", 0, "zoom level (default from config)")
	cmd.Flags().IntVarP(&radius, "radius", "r", 2, "tiles around the center")
	return cmd
}

func newShaderCmd(opts *rootOptions) *cobra.Command {
	var spirvOut string
	cmd := &cobra.Command{
		Use:   "shader",
		Short: "Print the terrain WGSL, or compile it to SPIR-V",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := renderer.TerrainShader(opts.cfg.Rendering.Palette())
			if err != nil {
				return err
			}
			if spirvOut == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), src)
				return err
			}
			spirv, err := renderer.CompileSPIRV(src)
			if err != nil {
				return err
			}
			return os.WriteFile(spirvOut, spirv, 0644)
		},
	}
	cmd.Flags().StringVar(&spirvOut, "spirv", "", "write SPIR-V to this file instead of printing WGSL")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config <file>",
		Short: "Write the effective configuration to a .json, .toml or .yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], opts.cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			logger.Logger().Info("config written", "path", args[0])
			return nil
		},
	}
}
