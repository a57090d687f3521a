package mapwidget

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Layer is anything the map draws.
type Layer interface {
	LayerID() string
}

// TileSource describes a raster tile provider.
type TileSource struct {
	URLTemplate string
	MaxZoom     int
	Attribution string
}

// OSM returns the OpenStreetMap standard tile source.
func OSM() TileSource {
	return TileSource{
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		MaxZoom:     MaxZoom,
		Attribution: "© OpenStreetMap contributors",
	}
}

// TileCoord addresses one tile in the XYZ scheme.
type TileCoord struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// URL expands the template for one tile.
func (s TileSource) URL(tc TileCoord) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(tc.Z),
		"{x}", strconv.Itoa(tc.X),
		"{y}", strconv.Itoa(tc.Y),
	).Replace(s.URLTemplate)
}

// TileLayer shows raster tiles.
type TileLayer struct {
	id     string
	Source TileSource
}

// NewTileLayer creates a tile layer over source.
func NewTileLayer(source TileSource) *TileLayer {
	return &TileLayer{id: uuid.NewString(), Source: source}
}

func (l *TileLayer) LayerID() string { return l.id }

// VisibleTiles lists the tiles covering the view, row by row from the top.
func (l *TileLayer) VisibleTiles(v View) []TileCoord {
	z := int(math.Round(v.Zoom()))
	if l.Source.MaxZoom > 0 && z > l.Source.MaxZoom {
		z = l.Source.MaxZoom
	}
	n := 1 << z
	span := 2 * halfWorld / float64(n)
	lo, hi := v.Extent()

	tileIndex := func(offset float64) int {
		i := int(math.Floor(offset / span))
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
	minX := tileIndex(lo.X + halfWorld)
	maxX := tileIndex(hi.X + halfWorld - 1e-6)
	minY := tileIndex(halfWorld - hi.Y)
	maxY := tileIndex(halfWorld - lo.Y - 1e-6)

	tiles := make([]TileCoord, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, TileCoord{Z: z, X: x, Y: y})
		}
	}
	return tiles
}
