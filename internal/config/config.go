package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cogentcore.org/core/math32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"terrainviewer/internal/shading"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds application configuration and feature flags
type Config struct {
	Features  Features  `json:"features" toml:"features" yaml:"features"`
	Rendering Rendering `json:"rendering" toml:"rendering" yaml:"rendering"`
	Tiles     Tiles     `json:"tiles" toml:"tiles" yaml:"tiles"`
	Scene     Scene     `json:"scene" toml:"scene" yaml:"scene"`
	Server    Server    `json:"server" toml:"server" yaml:"server"`
	Window    Window    `json:"window" toml:"window" yaml:"window"`
	Log       Log       `json:"log" toml:"log" yaml:"log"`
}

// Features contains feature flags
type Features struct {
	// ShowFPS puts the frame rate in the window title.
	ShowFPS bool `json:"show_fps" toml:"show_fps" yaml:"show_fps"`

	// PrefetchNeighbors queues the tiles around a fetched tile.
	PrefetchNeighbors bool `json:"prefetch_neighbors" toml:"prefetch_neighbors" yaml:"prefetch_neighbors"`

	// LogVisibility logs how many terrain vertices are in view after the
	// camera moves (debug level).
	LogVisibility bool `json:"log_visibility" toml:"log_visibility" yaml:"log_visibility"`
}

// Rendering contains rendering parameters
type Rendering struct {
	// BlendWeight is how strongly the elevation tint covers the imagery (0-1)
	BlendWeight float64 `json:"blend_weight" toml:"blend_weight" yaml:"blend_weight"`

	// ColorLow and ColorHigh are the tint ramp ends, RGB in 0-1
	ColorLow  [3]float64 `json:"color_low" toml:"color_low" yaml:"color_low"`
	ColorHigh [3]float64 `json:"color_high" toml:"color_high" yaml:"color_high"`

	// HeightScale divides raw heights before they become mesh Y
	HeightScale float64 `json:"height_scale" toml:"height_scale" yaml:"height_scale"`

	FovYDegrees float64    `json:"fov_y_degrees" toml:"fov_y_degrees" yaml:"fov_y_degrees"`
	ZNear       float64    `json:"z_near" toml:"z_near" yaml:"z_near"`
	ZFar        float64    `json:"z_far" toml:"z_far" yaml:"z_far"`
	ClearColor  [4]float64 `json:"clear_color" toml:"clear_color" yaml:"clear_color"`

	// CameraSpeed is in world units per second, MouseSensitivity in radians per pixel per second
	CameraSpeed      float64 `json:"camera_speed" toml:"camera_speed" yaml:"camera_speed"`
	MouseSensitivity float64 `json:"mouse_sensitivity" toml:"mouse_sensitivity" yaml:"mouse_sensitivity"`
}

// Tiles configures the imagery and elevation tile sources
type Tiles struct {
	CacheDir string `json:"cache_dir" toml:"cache_dir" yaml:"cache_dir"`
	Workers  int    `json:"workers" toml:"workers" yaml:"workers"`

	// ImageryURL and ElevationURL contain {z}, {x} and {y} placeholders
	ImageryURL   string `json:"imagery_url" toml:"imagery_url" yaml:"imagery_url"`
	ElevationURL string `json:"elevation_url" toml:"elevation_url" yaml:"elevation_url"`
	UserAgent    string `json:"user_agent" toml:"user_agent" yaml:"user_agent"`
}

// Scene selects what the viewer shows: local files when both paths are
// set, otherwise the tile at Lat/Lon/Zoom
type Scene struct {
	BasePath      string  `json:"base_path" toml:"base_path" yaml:"base_path"`
	ElevationPath string  `json:"elevation_path" toml:"elevation_path" yaml:"elevation_path"`
	Lat           float64 `json:"lat" toml:"lat" yaml:"lat"`
	Lon           float64 `json:"lon" toml:"lon" yaml:"lon"`
	Zoom          int     `json:"zoom" toml:"zoom" yaml:"zoom"`
}

// Server configures the tile server
type Server struct {
	Port int `json:"port" toml:"port" yaml:"port"`
}

// Window configures the viewer window
type Window struct {
	Width  int    `json:"width" toml:"width" yaml:"width"`
	Height int    `json:"height" toml:"height" yaml:"height"`
	Title  string `json:"title" toml:"title" yaml:"title"`
}

// Log configures logging
type Log struct {
	Level string `json:"level" toml:"level" yaml:"level"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	p := shading.DefaultPalette
	return &Config{
		Features: Features{
			ShowFPS:           true,
			PrefetchNeighbors: true,
			LogVisibility:     false,
		},
		Rendering: Rendering{
			BlendWeight:      float64(p.BlendWeight),
			ColorLow:         [3]float64{float64(p.Low.X), float64(p.Low.Y), float64(p.Low.Z)},
			ColorHigh:        [3]float64{float64(p.High.X), float64(p.High.Y), float64(p.High.Z)},
			HeightScale:      30,
			FovYDegrees:      45,
			ZNear:            0.1,
			ZFar:             1000,
			ClearColor:       [4]float64{0.1, 0.2, 0.3, 1},
			CameraSpeed:      40,
			MouseSensitivity: 0.4,
		},
		Tiles: Tiles{
			CacheDir:     ".tile_cache",
			Workers:      4,
			ImageryURL:   "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			ElevationURL: "https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png",
			UserAgent:    "TerrainViewer/1.0 (educational project)",
		},
		Scene: Scene{
			// Mont Blanc massif
			Lat:  45.8326,
			Lon:  6.8652,
			Zoom: 12,
		},
		Server: Server{Port: 8090},
		Window: Window{Width: 1280, Height: 720, Title: "Terrain Renderer"},
		Log:    Log{Level: "info"},
	}
}

// Palette converts the rendering colors to the shading palette.
func (r Rendering) Palette() shading.Palette {
	return shading.Palette{
		Low:         math32.Vec3(float32(r.ColorLow[0]), float32(r.ColorLow[1]), float32(r.ColorLow[2])),
		High:        math32.Vec3(float32(r.ColorHigh[0]), float32(r.ColorHigh[1]), float32(r.ColorHigh[2])),
		BlendWeight: float32(r.BlendWeight),
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Rendering.Palette().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch {
	case c.Rendering.HeightScale <= 0:
		return fmt.Errorf("%w: height_scale must be positive", ErrInvalid)
	case c.Rendering.ZNear <= 0 || c.Rendering.ZNear >= c.Rendering.ZFar:
		return fmt.Errorf("%w: need 0 < z_near < z_far", ErrInvalid)
	case c.Rendering.FovYDegrees <= 0 || c.Rendering.FovYDegrees >= 180:
		return fmt.Errorf("%w: fov_y_degrees must be in (0, 180)", ErrInvalid)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size must be positive", ErrInvalid)
	case c.Tiles.Workers < 1:
		return fmt.Errorf("%w: tiles.workers must be at least 1", ErrInvalid)
	case c.Scene.Zoom < 0 || c.Scene.Zoom > 20:
		return fmt.Errorf("%w: scene.zoom must be in [0, 20]", ErrInvalid)
	}
	return nil
}

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if instance == nil {
			instance = DefaultConfig()
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Parse decodes data in the given format ("json", "toml" or "yaml") over
// the defaults and validates the result.
func Parse(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, cfg)
	case "toml":
		err = toml.Unmarshal(data, cfg)
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s config: %w", format, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads configuration from a file and makes it the global instance
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	once.Do(func() {})
	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

// Save writes cfg to a file in the format matching its extension
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case "toml":
		data, err = toml.Marshal(cfg)
	case "yaml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
