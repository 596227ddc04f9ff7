package tileserver

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainviewer/pkg/tiles"
)

// upstream serves 4x4 PNG tiles under /imagery/ and /elevation/, and 404
// for anything at zoom 3.
type upstream struct {
	*httptest.Server
	hits  atomic.Int64
	delay time.Duration

	// while gated, requests signal started and wait for gate to close
	gated   atomic.Bool
	started chan struct{}
	gate    chan struct{}
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	imagery := image.NewRGBA(image.Rect(0, 0, 4, 4))
	elev := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			imagery.Set(x, y, color.RGBA{R: 255, A: 255})
			v := 32768 + 100*x
			elev.Set(x, y, color.NRGBA{R: uint8(v / 256), G: uint8(v % 256), A: 255})
		}
	}
	var imgBuf, elevBuf bytes.Buffer
	require.NoError(t, png.Encode(&imgBuf, imagery))
	require.NoError(t, png.Encode(&elevBuf, elev))

	u := &upstream{started: make(chan struct{}, 1), gate: make(chan struct{})}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		if u.gated.Load() {
			select {
			case u.started <- struct{}{}:
			default:
			}
			<-u.gate
		}
		if u.delay > 0 {
			time.Sleep(u.delay)
		}
		if strings.Contains(r.URL.Path, "/3/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		switch {
		case strings.HasPrefix(r.URL.Path, "/imagery/"):
			w.Write(imgBuf.Bytes())
		case strings.HasPrefix(r.URL.Path, "/elevation/"):
			w.Write(elevBuf.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) sources() map[tiles.Layer]string {
	return map[tiles.Layer]string{
		tiles.Imagery:   u.URL + "/imagery/{z}/{x}/{y}.png",
		tiles.Elevation: u.URL + "/elevation/{z}/{x}/{y}.png",
	}
}

func newCache(t *testing.T, u *upstream, prefetch bool) *TileCache {
	t.Helper()
	tc, err := NewTileCache(Options{
		CacheDir:          t.TempDir(),
		Workers:           2,
		Sources:           u.sources(),
		UserAgent:         "test",
		PrefetchNeighbors: prefetch,
	})
	require.NoError(t, err)
	t.Cleanup(tc.Close)
	return tc
}

func TestGetTileCachesToDisk(t *testing.T) {
	u := newUpstream(t)
	tc := newCache(t, u, false)
	coord := tiles.TileCoord{X: 1, Y: 2, Zoom: 2}

	assert.False(t, tc.IsCached(tiles.Imagery, coord))
	data, err := tc.GetTile(context.Background(), tiles.Imagery, coord)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.True(t, tc.IsCached(tiles.Imagery, coord))
	assert.False(t, tc.IsCached(tiles.Elevation, coord))
	assert.FileExists(t, filepath.Join(tc.opts.CacheDir, "imagery_2_1_2.png"))

	again, err := tc.GetTile(context.Background(), tiles.Imagery, coord)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Equal(t, int64(1), u.hits.Load())
	assert.Equal(t, int64(1), tc.Fetches())
}

func TestGetTileSharesConcurrentFetches(t *testing.T) {
	u := newUpstream(t)
	u.delay = 50 * time.Millisecond
	tc := newCache(t, u, false)
	coord := tiles.TileCoord{X: 0, Y: 0, Zoom: 1}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tc.GetTile(context.Background(), tiles.Elevation, coord)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), u.hits.Load())
}

func TestGetTileSurvivesCancelledSharer(t *testing.T) {
	u := newUpstream(t)
	u.gated.Store(true)
	release := sync.OnceFunc(func() { close(u.gate) })
	t.Cleanup(release)
	tc := newCache(t, u, false)
	coord := tiles.TileCoord{X: 1, Y: 1, Zoom: 2}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := tc.GetTile(ctx, tiles.Imagery, coord)
		first <- err
	}()

	select {
	case <-u.started:
	case <-time.After(5 * time.Second):
		t.Fatal("download never reached the upstream")
	}
	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	// the download is still in flight, so this call joins it
	second := make(chan []byte, 1)
	go func() {
		data, err := tc.GetTile(context.Background(), tiles.Imagery, coord)
		assert.NoError(t, err)
		second <- data
	}()
	release()

	select {
	case data := <-second:
		assert.NotEmpty(t, data)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never finished")
	}
	assert.Equal(t, int64(1), u.hits.Load())
	assert.True(t, tc.IsCached(tiles.Imagery, coord))
}

func TestGetTileErrors(t *testing.T) {
	u := newUpstream(t)
	tc := newCache(t, u, false)

	_, err := tc.GetTile(context.Background(), tiles.Imagery, tiles.TileCoord{X: 0, Y: 0, Zoom: 3})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.False(t, tc.IsCached(tiles.Imagery, tiles.TileCoord{Zoom: 3}))

	_, err = tc.GetTile(context.Background(), tiles.Layer("vector"), tiles.TileCoord{})
	assert.ErrorIs(t, err, ErrUnknownLayer)

	_, err = tc.GetTile(context.Background(), tiles.Imagery, tiles.TileCoord{X: 9, Zoom: 1})
	assert.ErrorIs(t, err, ErrInvalidTile)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tc.GetTile(ctx, tiles.Imagery, tiles.TileCoord{X: 1, Y: 1, Zoom: 1})
	assert.Error(t, err)
}

func TestGetTileQueuesNeighbors(t *testing.T) {
	u := newUpstream(t)
	tc := newCache(t, u, true)
	coord := tiles.TileCoord{X: 1, Y: 1, Zoom: 2}

	_, err := tc.GetTile(context.Background(), tiles.Imagery, coord)
	require.NoError(t, err)

	for _, adj := range tiles.GetAdjacentTiles(coord) {
		assert.Eventually(t, func() bool { return tc.IsCached(tiles.Imagery, adj) },
			2*time.Second, 10*time.Millisecond, "neighbor %s", adj)
	}
}

func TestPrefetchArea(t *testing.T) {
	u := newUpstream(t)
	tc := newCache(t, u, false)
	center := tiles.TileCoord{X: 0, Y: 0, Zoom: 1}

	queued := tc.PrefetchArea(center, 1)
	// 4 tiles at zoom 1, two layers each
	assert.Equal(t, 8, queued)
	assert.Eventually(t, func() bool {
		for _, c := range tiles.GetPrefetchTiles(center, 1) {
			if !tc.IsCached(tiles.Imagery, c) || !tc.IsCached(tiles.Elevation, c) {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(8), tc.Fetches())
	assert.Equal(t, 0, tc.PrefetchArea(center, 1))
}

func TestPrefetchForeground(t *testing.T) {
	u := newUpstream(t)
	tc := newCache(t, u, false)

	var done atomic.Int64
	coords := tiles.GetPrefetchTiles(tiles.TileCoord{X: 1, Y: 1, Zoom: 2}, 1)
	require.NoError(t, tc.Prefetch(context.Background(), coords, func() { done.Add(1) }))
	assert.Equal(t, int64(2*len(coords)), done.Load())
	for _, c := range coords {
		assert.True(t, tc.IsCached(tiles.Elevation, c))
	}

	err := tc.Prefetch(context.Background(), []tiles.TileCoord{{Zoom: 3}}, nil)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestCloseIsIdempotent(t *testing.T) {
	u := newUpstream(t)
	tc, err := NewTileCache(Options{CacheDir: t.TempDir(), Sources: u.sources()})
	require.NoError(t, err)
	tc.Close()
	tc.Close()
	assert.Equal(t, 0, tc.PrefetchArea(tiles.TileCoord{}, 0))
}

func TestNewTileCacheBadDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0644))
	_, err := NewTileCache(Options{CacheDir: filepath.Join(f, "sub")})
	assert.Error(t, err)
}

func TestPrefetchSkipsUnsourcedLayers(t *testing.T) {
	u := newUpstream(t)
	tc, err := NewTileCache(Options{
		CacheDir: t.TempDir(),
		Workers:  2,
		Sources:  map[tiles.Layer]string{tiles.Elevation: u.sources()[tiles.Elevation]},
	})
	require.NoError(t, err)
	t.Cleanup(tc.Close)

	assert.Equal(t, []tiles.Layer{tiles.Elevation}, tc.Layers())

	var done atomic.Int64
	coords := tiles.GetPrefetchTiles(tiles.TileCoord{X: 1, Y: 1, Zoom: 2}, 1)
	require.NoError(t, tc.Prefetch(context.Background(), coords, func() { done.Add(1) }))
	assert.Equal(t, int64(len(coords)*len(tc.Layers())), done.Load())
	assert.False(t, tc.IsCached(tiles.Imagery, coords[0]))
}
