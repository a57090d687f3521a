package mapwidget

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

var (
	// ErrDetached is returned by operations on a released map.
	ErrDetached = errors.New("map is detached")
	// ErrDuplicateLayer is returned by AddLayer for an id already on the map.
	ErrDuplicateLayer = errors.New("layer id already on the map")
)

// EventType names a map event.
type EventType string

const (
	EventClick     EventType = "click"
	EventMoveStart EventType = "movestart"
	EventMoveEnd   EventType = "moveend"
)

// Event is delivered to handlers registered with On.
type Event struct {
	Type       EventType
	Pixel      Pixel
	Coordinate Point
}

// Handler reacts to a map event.
type Handler func(Event)

// ListenerKey identifies a registered handler.
type ListenerKey struct {
	eventType EventType
	id        uint64
}

type listener struct {
	id      uint64
	handler Handler
}

// Options configures a new map.
type Options struct {
	Center domain.Coordinate
	Zoom   float64
	Size   Size
	Layers []Layer
	// HitTolerance widens feature hit boxes by this many pixels.
	HitTolerance float64
}

// Map is the widget handle a screen owns between mount and unmount.
type Map struct {
	mu           sync.Mutex
	view         View
	layers       []Layer
	overlays     []*Overlay
	listeners    map[EventType][]listener
	nextID       uint64
	hitTolerance float64
	detached     bool
}

// New creates an attached map.
func New(opts Options) *Map {
	layers := make([]Layer, 0, len(opts.Layers))
	layers = append(layers, opts.Layers...)
	return &Map{
		view:         NewView(opts.Center, opts.Zoom, opts.Size),
		layers:       layers,
		listeners:    map[EventType][]listener{},
		hitTolerance: opts.HitTolerance,
	}
}

// View returns a snapshot of the current view.
func (m *Map) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Layers returns the layers bottom to top.
func (m *Map) Layers() []Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

// AddLayer puts a layer on top. Layer ids are unique per map.
func (m *Map) AddLayer(l Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return ErrDetached
	}
	for _, existing := range m.layers {
		if existing.LayerID() == l.LayerID() {
			return fmt.Errorf("%w: %s", ErrDuplicateLayer, l.LayerID())
		}
	}
	m.layers = append(m.layers, l)
	return nil
}

// RemoveLayer removes the layer with the given id and reports whether it
// was present.
func (m *Map) RemoveLayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.layers {
		if existing.LayerID() == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return true
		}
	}
	return false
}

// AddOverlay attaches an overlay.
func (m *Map) AddOverlay(o *Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return ErrDetached
	}
	m.overlays = append(m.overlays, o)
	return nil
}

// On registers handler for events of type t.
func (m *Map) On(t EventType, handler Handler) (ListenerKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return ListenerKey{}, ErrDetached
	}
	m.nextID++
	m.listeners[t] = append(m.listeners[t], listener{id: m.nextID, handler: handler})
	return ListenerKey{eventType: t, id: m.nextID}, nil
}

// Un removes a handler registered with On.
func (m *Map) Un(key ListenerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.listeners[key.eventType]
	for i, l := range current {
		if l.id == key.id {
			m.listeners[key.eventType] = append(current[:i], current[i+1:]...)
			return
		}
	}
}

// ForEachFeatureAtPixel calls fn for every feature whose icon covers px,
// topmost first, until fn returns true.
func (m *Map) ForEachFeatureAtPixel(px Pixel, fn func(*Feature, *VectorLayer) bool) {
	m.mu.Lock()
	view := m.view
	layers := make([]Layer, len(m.layers))
	copy(layers, m.layers)
	tolerance := m.hitTolerance
	m.mu.Unlock()

	for i := len(layers) - 1; i >= 0; i-- {
		vector, ok := layers[i].(*VectorLayer)
		if !ok {
			continue
		}
		features := vector.Features()
		for j := len(features) - 1; j >= 0; j-- {
			feature := features[j]
			topLeft, bottomRight := feature.Style.HitBox(view.PixelFromPoint(feature.Geometry))
			if px.X < topLeft.X-tolerance || px.X > bottomRight.X+tolerance {
				continue
			}
			if px.Y < topLeft.Y-tolerance || px.Y > bottomRight.Y+tolerance {
				continue
			}
			if fn(feature, vector) {
				return
			}
		}
	}
}

// FeatureAtPixel returns the topmost feature under px.
func (m *Map) FeatureAtPixel(px Pixel) (*Feature, bool) {
	var hit *Feature
	m.ForEachFeatureAtPixel(px, func(f *Feature, _ *VectorLayer) bool {
		hit = f
		return true
	})
	return hit, hit != nil
}

// Click dispatches a click at px.
func (m *Map) Click(px Pixel) error {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return ErrDetached
	}
	coordinate := m.view.PointFromPixel(px)
	m.mu.Unlock()

	m.dispatch(Event{Type: EventClick, Pixel: px, Coordinate: coordinate})
	return nil
}

// Pan drags the view by dx, dy pixels.
func (m *Map) Pan(dx, dy float64) error {
	return m.move(func(v View) View { return v.panned(dx, dy) })
}

// CenterOn moves the view so c sits in the middle.
func (m *Map) CenterOn(c domain.Coordinate) error {
	return m.move(func(v View) View { return v.centered(FromLonLat(c)) })
}

// SetZoom changes the zoom level.
func (m *Map) SetZoom(zoom float64) error {
	return m.move(func(v View) View { return v.zoomed(zoom) })
}

// ZoomBy changes the zoom level relative to the current one.
func (m *Map) ZoomBy(delta float64) error {
	return m.move(func(v View) View { return v.zoomed(v.Zoom() + delta) })
}

func (m *Map) move(change func(View) View) error {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return ErrDetached
	}
	m.mu.Unlock()

	m.dispatch(Event{Type: EventMoveStart})

	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return ErrDetached
	}
	m.view = change(m.view)
	m.mu.Unlock()

	m.dispatch(Event{Type: EventMoveEnd})
	return nil
}

// dispatch runs handlers outside the lock so they may call back into the map.
func (m *Map) dispatch(ev Event) {
	m.mu.Lock()
	current := make([]listener, len(m.listeners[ev.Type]))
	copy(current, m.listeners[ev.Type])
	m.mu.Unlock()

	for _, l := range current {
		l.handler(ev)
	}
}

// Detach releases the widget: handlers, layers and overlays are dropped
// and later operations fail with ErrDetached. Safe to call more than once.
func (m *Map) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return
	}
	m.detached = true
	for _, o := range m.overlays {
		o.Hide()
	}
	m.overlays = nil
	m.layers = nil
	m.listeners = map[EventType][]listener{}
}

// Detached reports whether Detach was called.
func (m *Map) Detached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached
}
