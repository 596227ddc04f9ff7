package tiles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level the tile sources serve.
const MaxZoom = 20

// maxLat is the Web Mercator latitude limit.
const maxLat = 85.05112878

// Layer names a tile source
type Layer string

const (
	// Imagery is the base color layer (satellite or map PNG tiles)
	Imagery Layer = "imagery"
	// Elevation is the Terrarium-encoded height layer
	Elevation Layer = "elevation"
)

// Layers lists every layer in fetch order.
var Layers = []Layer{Imagery, Elevation}

// ParseLayer validates a layer name.
func ParseLayer(s string) (Layer, error) {
	switch Layer(s) {
	case Imagery, Elevation:
		return Layer(s), nil
	}
	return "", fmt.Errorf("unknown tile layer %q", s)
}

// TileCoord represents a tile coordinate in the slippy map format
type TileCoord struct {
	X    int
	Y    int
	Zoom int
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Valid reports whether the coordinate addresses an existing tile.
func (t TileCoord) Valid() bool {
	if t.Zoom < 0 || t.Zoom > MaxZoom {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// URL fills the {z}, {x} and {y} placeholders of a tile URL template
func (t TileCoord) URL(template string) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Zoom),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	)
	return r.Replace(template)
}

// Tile converts to the orb tile type.
func (t TileCoord) Tile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// Bound returns the tile's extent in longitude/latitude.
func (t TileCoord) Bound() orb.Bound {
	return t.Tile().Bound()
}

// LatLonToTile converts latitude/longitude to tile coordinates at a given zoom level
func LatLonToTile(lat, lon float64, zoom int) TileCoord {
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	lon = math.Max(-180, math.Min(180, lon))
	tile := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))

	// lon == 180 and lat == -maxLat land one past the last tile
	maxTile := (1 << zoom) - 1
	return TileCoord{
		X:    min(int(tile.X), maxTile),
		Y:    min(int(tile.Y), maxTile),
		Zoom: zoom,
	}
}

// TileToLatLon converts tile coordinates to latitude/longitude (top-left corner)
func TileToLatLon(t TileCoord) (lat, lon float64) {
	b := t.Bound()
	return b.Max.Lat(), b.Min.Lon()
}

// GetAdjacentTiles returns adjacent tiles in priority order for prefetching.
// Order: right, left, down, up
func GetAdjacentTiles(t TileCoord) []TileCoord {
	candidates := []TileCoord{
		{X: t.X + 1, Y: t.Y, Zoom: t.Zoom},
		{X: t.X - 1, Y: t.Y, Zoom: t.Zoom},
		{X: t.X, Y: t.Y + 1, Zoom: t.Zoom},
		{X: t.X, Y: t.Y - 1, Zoom: t.Zoom},
	}
	adjacent := make([]TileCoord, 0, len(candidates))
	for _, c := range candidates {
		if c.Valid() {
			adjacent = append(adjacent, c)
		}
	}
	return adjacent
}

// GetPrefetchTiles returns the tiles within radius of center (Chebyshev
// distance), nearest rings first, center included.
func GetPrefetchTiles(center TileCoord, radius int) []TileCoord {
	if radius < 0 || !center.Valid() {
		return nil
	}
	tiles := []TileCoord{center}
	for ring := 1; ring <= radius; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if max(abs(dx), abs(dy)) != ring {
					continue
				}
				c := TileCoord{X: center.X + dx, Y: center.Y + dy, Zoom: center.Zoom}
				if c.Valid() {
					tiles = append(tiles, c)
				}
			}
		}
	}
	return tiles
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
