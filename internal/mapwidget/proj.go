package mapwidget

import (
	"math"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

const (
	earthRadius = 6378137.0
	// halfWorld is the EPSG:3857 extent from the origin to the antimeridian.
	halfWorld = math.Pi * earthRadius
)

// Point is a projected map coordinate in EPSG:3857 meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixel is a position on the rendered map, origin top-left.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FromLonLat projects a geographic coordinate to web mercator.
func FromLonLat(c domain.Coordinate) Point {
	x := c.Lon * halfWorld / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+c.Lat*math.Pi/360))
	return Point{X: x, Y: clamp(y, -halfWorld, halfWorld)}
}

// ToLonLat is the inverse of FromLonLat.
func ToLonLat(p Point) domain.Coordinate {
	lon := p.X * 180 / halfWorld
	lat := (2*math.Atan(math.Exp(p.Y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return domain.Coordinate{Lat: lat, Lon: lon}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
