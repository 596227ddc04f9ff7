package tileserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"terrainviewer/internal/composite"
	"terrainviewer/internal/logger"
	"terrainviewer/internal/scene"
	"terrainviewer/internal/shading"
	"terrainviewer/pkg/tiles"
)

// MaxPrefetchRadius bounds the area of a single prefetch request.
const MaxPrefetchRadius = 8

// Server provides HTTP endpoints for raw and composited tiles
type Server struct {
	cache   *TileCache
	port    int
	palette shading.Palette
	server  *http.Server
}

// NewServer creates a new tile server
func NewServer(cache *TileCache, port int, palette shading.Palette) *Server {
	return &Server{
		cache:   cache,
		port:    port,
		palette: palette,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tile/{layer}/{z}/{x}/{y}", s.handleTile)
	mux.HandleFunc("GET /composite/{z}/{x}/{y}", s.handleComposite)
	mux.HandleFunc("POST /prefetch", s.handlePrefetch)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Logger().Info("tile server starting", "port", s.port)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// parseCoord reads {z}/{x}/{y} path values; y may carry a .png suffix.
func parseCoord(r *http.Request) (tiles.TileCoord, error) {
	zoom, err := strconv.Atoi(r.PathValue("z"))
	if err != nil {
		return tiles.TileCoord{}, fmt.Errorf("invalid zoom")
	}
	x, err := strconv.Atoi(r.PathValue("x"))
	if err != nil {
		return tiles.TileCoord{}, fmt.Errorf("invalid x")
	}
	y, err := strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".png"))
	if err != nil {
		return tiles.TileCoord{}, fmt.Errorf("invalid y")
	}
	coord := tiles.TileCoord{X: x, Y: y, Zoom: zoom}
	if !coord.Valid() {
		return tiles.TileCoord{}, fmt.Errorf("%w: %s", ErrInvalidTile, coord)
	}
	return coord, nil
}

// errorStatus maps cache errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownLayer), errors.Is(err, ErrInvalidTile):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleTile serves /tile/{layer}/{z}/{x}/{y}.png
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	layer, err := tiles.ParseLayer(r.PathValue("layer"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	coord, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.cache.GetTile(r.Context(), layer, coord)
	if err != nil {
		logger.Logger().Warn("tile request failed", "layer", layer, "tile", coord.String(), "err", err)
		http.Error(w, fmt.Sprintf("Failed to get tile: %v", err), errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "max-age=86400") // Cache for 24 hours
	w.Write(data)
}

// handleComposite serves /composite/{z}/{x}/{y}.png: the imagery tile tinted
// by its elevation tile, rendered on the CPU at the imagery resolution.
func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc, err := scene.FromTile(r.Context(), s.cache, coord)
	if err != nil {
		logger.Logger().Warn("composite source failed", "tile", coord.String(), "err", err)
		http.Error(w, fmt.Sprintf("Failed to load tile: %v", err), errorStatus(err))
		return
	}
	width, height := sc.Base.Size()
	img, err := composite.Render(r.Context(), sc.Bindings(), s.palette, width, height)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to composite tile: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=86400")
	if err := png.Encode(w, img); err != nil {
		logger.Logger().Warn("failed to encode composite", "tile", coord.String(), "err", err)
	}
}

// PrefetchRequest represents a prefetch request
type PrefetchRequest struct {
	CenterLat float64 `json:"centerLat"`
	CenterLon float64 `json:"centerLon"`
	Zoom      int     `json:"zoom"`
	Radius    int     `json:"radius"`
}

// PrefetchResponse reports how many tile fetches were queued
type PrefetchResponse struct {
	Status string `json:"status"`
	Queued int    `json:"queued"`
}

// handlePrefetch queues the area around a point for background fetching
func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var req PrefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Zoom < 0 || req.Zoom > tiles.MaxZoom || req.Radius < 0 || req.Radius > MaxPrefetchRadius {
		http.Error(w, "zoom or radius out of range", http.StatusBadRequest)
		return
	}

	center := tiles.LatLonToTile(req.CenterLat, req.CenterLon, req.Zoom)
	queued := s.cache.PrefetchArea(center, req.Radius)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(PrefetchResponse{Status: "prefetching", Queued: queued})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"fetches": s.cache.Fetches(),
	})
}
