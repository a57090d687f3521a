package mapwidget

import (
	"errors"
	"math"
	"testing"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

func TestProjectionRoundTrip(t *testing.T) {
	nairobi := domain.Coordinate{Lat: -1.2816714, Lon: 36.8169419}
	back := ToLonLat(FromLonLat(nairobi))
	if math.Abs(back.Lat-nairobi.Lat) > 1e-9 || math.Abs(back.Lon-nairobi.Lon) > 1e-9 {
		t.Fatalf("expected round trip to %+v, got %+v", nairobi, back)
	}
	edge := FromLonLat(domain.Coordinate{Lat: 0, Lon: 180})
	if math.Abs(edge.X-halfWorld) > 1e-6 || math.Abs(edge.Y) > 1e-6 {
		t.Fatalf("expected antimeridian at x=%f, got %+v", halfWorld, edge)
	}
}

func TestViewPixelConversion(t *testing.T) {
	view := NewView(domain.Coordinate{Lat: -1.2816714, Lon: 36.8169419}, 12, Size{Width: 800, Height: 600})
	center := view.PixelFromPoint(view.CenterPoint())
	if center.X != 400 || center.Y != 300 {
		t.Fatalf("expected center pixel 400,300, got %+v", center)
	}
	p := view.PointFromPixel(Pixel{X: 10, Y: 20})
	px := view.PixelFromPoint(p)
	if math.Abs(px.X-10) > 1e-6 || math.Abs(px.Y-20) > 1e-6 {
		t.Fatalf("expected pixel round trip, got %+v", px)
	}
}

func TestVisibleTiles(t *testing.T) {
	layer := NewTileLayer(OSM())
	world := NewView(domain.Coordinate{}, 0, Size{Width: 256, Height: 256})
	tiles := layer.VisibleTiles(world)
	if len(tiles) != 1 || tiles[0] != (TileCoord{Z: 0, X: 0, Y: 0}) {
		t.Fatalf("expected single world tile, got %+v", tiles)
	}

	quarter := NewView(domain.Coordinate{}, 1, Size{Width: 512, Height: 512})
	tiles = layer.VisibleTiles(quarter)
	if len(tiles) != 4 {
		t.Fatalf("expected 4 tiles at zoom 1, got %+v", tiles)
	}
	if got := layer.Source.URL(tiles[3]); got != "https://tile.openstreetmap.org/1/1/1.png" {
		t.Fatalf("unexpected tile url %q", got)
	}
}

func newTestMap() *Map {
	return New(Options{
		Center: domain.Coordinate{Lat: -1.2816714, Lon: 36.8169419},
		Zoom:   12,
		Size:   Size{Width: 1024, Height: 768},
		Layers: []Layer{NewTileLayer(OSM())},
	})
}

func TestFeatureAtPixelUsesIconAnchor(t *testing.T) {
	m := newTestMap()
	feature := NewFeature(m.View().CenterPoint(), "center")
	if err := m.AddLayer(NewVectorLayer(feature)); err != nil {
		t.Fatalf("add layer: %v", err)
	}

	// The icon sits above its anchor point.
	if hit, ok := m.FeatureAtPixel(Pixel{X: 512, Y: 375}); !ok || hit != feature {
		t.Fatalf("expected hit above anchor, got %v %v", hit, ok)
	}
	if _, ok := m.FeatureAtPixel(Pixel{X: 512, Y: 395}); ok {
		t.Fatal("expected miss below anchor")
	}
}

func TestFeatureAtPixelReturnsTopmost(t *testing.T) {
	m := newTestMap()
	center := m.View().CenterPoint()
	bottom := NewFeature(center, "bottom")
	top := NewFeature(center, "top")
	if err := m.AddLayer(NewVectorLayer(bottom, top)); err != nil {
		t.Fatalf("add layer: %v", err)
	}
	hit, ok := m.FeatureAtPixel(Pixel{X: 512, Y: 380})
	if !ok || hit.Properties != "top" {
		t.Fatalf("expected topmost feature, got %+v", hit)
	}
}

func TestMoveFiresMoveStartBeforeViewChanges(t *testing.T) {
	m := newTestMap()
	before := m.View().CenterPoint()
	var seen []EventType
	var centerAtStart Point
	_, _ = m.On(EventMoveStart, func(Event) {
		seen = append(seen, EventMoveStart)
		centerAtStart = m.View().CenterPoint()
	})
	_, _ = m.On(EventMoveEnd, func(Event) { seen = append(seen, EventMoveEnd) })

	if err := m.Pan(100, 0); err != nil {
		t.Fatalf("pan: %v", err)
	}
	if len(seen) != 2 || seen[0] != EventMoveStart || seen[1] != EventMoveEnd {
		t.Fatalf("unexpected event order %v", seen)
	}
	if centerAtStart != before {
		t.Fatal("expected movestart to fire before the view changes")
	}
	if m.View().CenterPoint().X >= before.X {
		t.Fatal("expected dragging right to move the center west")
	}
}

func TestCenterOnMovesView(t *testing.T) {
	m := newTestMap()
	starts := 0
	_, _ = m.On(EventMoveStart, func(Event) { starts++ })

	mombasa := domain.Coordinate{Lat: -4.0434771, Lon: 39.6682065}
	if err := m.CenterOn(mombasa); err != nil {
		t.Fatalf("center: %v", err)
	}
	got := m.View().Center()
	if math.Abs(got.Lat-mombasa.Lat) > 1e-9 || math.Abs(got.Lon-mombasa.Lon) > 1e-9 {
		t.Fatalf("expected center %+v, got %+v", mombasa, got)
	}
	if starts != 1 {
		t.Fatalf("expected one movestart, got %d", starts)
	}
}

func TestUnRemovesHandler(t *testing.T) {
	m := newTestMap()
	calls := 0
	key, _ := m.On(EventClick, func(Event) { calls++ })
	_ = m.Click(Pixel{})
	m.Un(key)
	_ = m.Click(Pixel{})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDetachReleasesWidget(t *testing.T) {
	m := newTestMap()
	overlay := NewOverlay()
	_ = m.AddOverlay(overlay)
	overlay.Show(Point{}, "popup")
	calls := 0
	_, _ = m.On(EventClick, func(Event) { calls++ })

	m.Detach()
	m.Detach()

	if !m.Detached() {
		t.Fatal("expected map to report detached")
	}
	if overlay.Visible() {
		t.Fatal("expected overlays to be hidden on detach")
	}
	if err := m.Click(Pixel{}); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached, got %v", err)
	}
	if err := m.AddLayer(NewVectorLayer()); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no handler calls after detach, got %d", calls)
	}
	if len(m.Layers()) != 0 {
		t.Fatal("expected layers to be released")
	}
}

func TestRemoveLayerMatchesID(t *testing.T) {
	m := newTestMap()
	markers := NewVectorLayer(NewFeature(m.View().CenterPoint(), "center"))
	if err := m.AddLayer(markers); err != nil {
		t.Fatalf("add layer: %v", err)
	}
	if err := m.AddLayer(markers); !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("expected ErrDuplicateLayer, got %v", err)
	}
	if len(m.Layers()) != 2 {
		t.Fatalf("expected tile and marker layers, got %d", len(m.Layers()))
	}

	if m.RemoveLayer("no-such-layer") {
		t.Fatal("expected unknown id to report absent")
	}
	if !m.RemoveLayer(markers.LayerID()) {
		t.Fatal("expected marker layer to be removed")
	}
	if m.RemoveLayer(markers.LayerID()) {
		t.Fatal("expected second removal to report absent")
	}
	layers := m.Layers()
	if len(layers) != 1 || layers[0].LayerID() == markers.LayerID() {
		t.Fatalf("expected only the tile layer, got %d layers", len(layers))
	}
	if _, ok := m.FeatureAtPixel(Pixel{X: 512, Y: 375}); ok {
		t.Fatal("expected no features after removal")
	}
}
