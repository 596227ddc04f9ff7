package tileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"terrainviewer/internal/logger"
	"terrainviewer/pkg/tiles"
)

var (
	// ErrUnknownLayer is returned for a layer with no configured source.
	ErrUnknownLayer = errors.New("no source for tile layer")
	// ErrInvalidTile is returned for coordinates outside the tile pyramid.
	ErrInvalidTile = errors.New("invalid tile coordinate")
	// ErrUpstream is returned when the tile source answers with a non-200 status.
	ErrUpstream = errors.New("tile source error")
)

const queueSize = 1000

// Options configures a TileCache.
type Options struct {
	CacheDir string
	Workers  int

	// Sources maps each layer to its URL template ({z}, {x}, {y}).
	Sources   map[tiles.Layer]string
	UserAgent string

	// PrefetchNeighbors queues the adjacent tiles after every network fetch.
	PrefetchNeighbors bool

	// Client defaults to an http.Client with a 30s timeout.
	Client *http.Client
}

type job struct {
	layer tiles.Layer
	coord tiles.TileCoord
}

// TileCache manages tile fetching and caching
type TileCache struct {
	opts   Options
	client *http.Client
	group  singleflight.Group

	fetchQueue chan job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	closeMu sync.RWMutex
	closed  bool

	fetches atomic.Int64
}

// NewTileCache creates a new tile cache and starts its prefetch workers
func NewTileCache(opts Options) (*TileCache, error) {
	if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	tc := &TileCache{
		opts:       opts,
		client:     client,
		fetchQueue: make(chan job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		tc.wg.Add(1)
		go tc.worker()
	}

	return tc, nil
}

func (tc *TileCache) worker() {
	defer tc.wg.Done()
	for j := range tc.fetchQueue {
		if _, err := tc.fetchTile(tc.ctx, j.layer, j.coord); err != nil && tc.ctx.Err() == nil {
			logger.Logger().Warn("prefetch failed", "layer", j.layer, "tile", j.coord.String(), "err", err)
		}
	}
}

// Close stops the workers, abandoning queued prefetches.
func (tc *TileCache) Close() {
	tc.closeMu.Lock()
	if tc.closed {
		tc.closeMu.Unlock()
		return
	}
	tc.closed = true
	close(tc.fetchQueue)
	tc.closeMu.Unlock()

	tc.cancel()
	tc.wg.Wait()
}

// Fetches reports how many tiles were downloaded from a source.
func (tc *TileCache) Fetches() int64 {
	return tc.fetches.Load()
}

func (tc *TileCache) tilePath(layer tiles.Layer, coord tiles.TileCoord) string {
	return filepath.Join(tc.opts.CacheDir, fmt.Sprintf("%s_%d_%d_%d.png", layer, coord.Zoom, coord.X, coord.Y))
}

// GetTile returns tile data, fetching and caching if necessary
func (tc *TileCache) GetTile(ctx context.Context, layer tiles.Layer, coord tiles.TileCoord) ([]byte, error) {
	if _, ok := tc.opts.Sources[layer]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, layer)
	}
	if !coord.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTile, coord)
	}

	if data, err := os.ReadFile(tc.tilePath(layer, coord)); err == nil {
		return data, nil
	}

	data, err := tc.fetchTile(ctx, layer, coord)
	if err != nil {
		return nil, err
	}

	if tc.opts.PrefetchNeighbors {
		for _, adj := range tiles.GetAdjacentTiles(coord) {
			tc.enqueue(job{layer: layer, coord: adj})
		}
	}
	return data, nil
}

// fetchTile downloads a tile and caches it. Concurrent calls for the same
// tile share one download; a caller whose ctx ends stops waiting without
// cancelling it.
func (tc *TileCache) fetchTile(ctx context.Context, layer tiles.Layer, coord tiles.TileCoord) ([]byte, error) {
	path := tc.tilePath(layer, coord)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	// The download is shared, so it runs for the cache's lifetime rather
	// than the first caller's.
	key := string(layer) + "/" + coord.String()
	ch := tc.group.DoChan(key, func() (any, error) {
		return tc.download(tc.ctx, layer, coord, path)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (tc *TileCache) download(ctx context.Context, layer tiles.Layer, coord tiles.TileCoord, path string) ([]byte, error) {
	// a download that finished after the caller's cache check
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	url := coord.URL(tc.opts.Sources[layer])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if tc.opts.UserAgent != "" {
		req.Header.Set("User-Agent", tc.opts.UserAgent)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s tile %s: %w", layer, coord, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s tile %s: status %d", ErrUpstream, layer, coord, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}
	tc.fetches.Add(1)

	// Write through a temp file so readers never see a partial tile
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err == nil {
		err = os.Rename(tmp, path)
		if err != nil {
			logger.Logger().Warn("failed to cache tile", "path", path, "err", err)
		}
	} else {
		logger.Logger().Warn("failed to cache tile", "path", path, "err", err)
	}
	logger.Logger().Debug("fetched tile", "layer", layer, "tile", coord.String(), "bytes", len(data))

	return data, nil
}

// enqueue is a non-blocking send; it drops the job when the queue is full
// or the cache is closed.
func (tc *TileCache) enqueue(j job) bool {
	tc.closeMu.RLock()
	defer tc.closeMu.RUnlock()
	if tc.closed {
		return false
	}
	select {
	case tc.fetchQueue <- j:
		return true
	default:
		return false
	}
}

// Layers returns the layers that have a configured source, in tiles.Layers
// order.
func (tc *TileCache) Layers() []tiles.Layer {
	var layers []tiles.Layer
	for _, layer := range tiles.Layers {
		if _, ok := tc.opts.Sources[layer]; ok {
			layers = append(layers, layer)
		}
	}
	return layers
}

// PrefetchArea queues every layer of the tiles within radius of center for
// background fetching and returns how many jobs were queued.
func (tc *TileCache) PrefetchArea(center tiles.TileCoord, radius int) int {
	queued := 0
	for _, coord := range tiles.GetPrefetchTiles(center, radius) {
		for _, layer := range tc.Layers() {
			if tc.IsCached(layer, coord) {
				continue
			}
			if tc.enqueue(job{layer: layer, coord: coord}) {
				queued++
			}
		}
	}
	return queued
}

// Prefetch fetches every layer of coords in the foreground using the
// configured number of workers. done is called once per finished tile, so
// len(coords)*len(tc.Layers()) times on success.
func (tc *TileCache) Prefetch(ctx context.Context, coords []tiles.TileCoord, done func()) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tc.opts.Workers)
	for _, coord := range coords {
		for _, layer := range tc.Layers() {
			g.Go(func() error {
				if _, err := tc.fetchTile(ctx, layer, coord); err != nil {
					return err
				}
				if done != nil {
					done()
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// IsCached checks if a tile is already cached
func (tc *TileCache) IsCached(layer tiles.Layer, coord tiles.TileCoord) bool {
	_, err := os.Stat(tc.tilePath(layer, coord))
	return err == nil
}
