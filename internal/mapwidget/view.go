package mapwidget

import (
	"math"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

const (
	tileSize = 256
	// MaxZoom is the deepest zoom level the view accepts.
	MaxZoom = 19
)

// Size is the rendered map size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultSize is used when a map is created without a size.
var DefaultSize = Size{Width: 1024, Height: 768}

// View is the visible window onto the map.
type View struct {
	center Point
	zoom   float64
	size   Size
}

// NewView centers a view on c at zoom.
func NewView(c domain.Coordinate, zoom float64, size Size) View {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	return View{center: FromLonLat(c), zoom: clamp(zoom, 0, MaxZoom), size: size}
}

// ResolutionForZoom returns map meters per pixel at zoom.
func ResolutionForZoom(zoom float64) float64 {
	return 2 * halfWorld / tileSize / math.Pow(2, zoom)
}

func (v View) Center() domain.Coordinate { return ToLonLat(v.center) }
func (v View) CenterPoint() Point        { return v.center }
func (v View) Zoom() float64             { return v.zoom }
func (v View) Size() Size                { return v.size }
func (v View) Resolution() float64       { return ResolutionForZoom(v.zoom) }

// PixelFromPoint converts a map coordinate to a pixel on the current view.
func (v View) PixelFromPoint(p Point) Pixel {
	res := v.Resolution()
	return Pixel{
		X: (p.X-v.center.X)/res + float64(v.size.Width)/2,
		Y: (v.center.Y-p.Y)/res + float64(v.size.Height)/2,
	}
}

// PointFromPixel converts a pixel on the current view to a map coordinate.
func (v View) PointFromPixel(px Pixel) Point {
	res := v.Resolution()
	return Point{
		X: v.center.X + (px.X-float64(v.size.Width)/2)*res,
		Y: v.center.Y - (px.Y-float64(v.size.Height)/2)*res,
	}
}

// Extent returns the bottom-left and top-right corners of the view.
func (v View) Extent() (Point, Point) {
	res := v.Resolution()
	halfW := float64(v.size.Width) / 2 * res
	halfH := float64(v.size.Height) / 2 * res
	return Point{X: v.center.X - halfW, Y: v.center.Y - halfH},
		Point{X: v.center.X + halfW, Y: v.center.Y + halfH}
}

// panned moves the view content by dx, dy pixels, like dragging the map.
func (v View) panned(dx, dy float64) View {
	res := v.Resolution()
	v.center = Point{
		X: v.center.X - dx*res,
		Y: clamp(v.center.Y+dy*res, -halfWorld, halfWorld),
	}
	return v
}

func (v View) centered(p Point) View {
	v.center = Point{X: p.X, Y: clamp(p.Y, -halfWorld, halfWorld)}
	return v
}

func (v View) zoomed(zoom float64) View {
	v.zoom = clamp(zoom, 0, MaxZoom)
	return v
}
