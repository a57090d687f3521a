package mapwidget

import "sync"

// Overlay is an element anchored to a map coordinate, hidden while it has
// no position.
type Overlay struct {
	mu       sync.RWMutex
	position *Point
	content  any
}

// NewOverlay returns a hidden overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// Show anchors the overlay at p with content.
func (o *Overlay) Show(p Point, content any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = &p
	o.content = content
}

// Hide removes both position and content.
func (o *Overlay) Hide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = nil
	o.content = nil
}

// Position returns the anchor, if visible.
func (o *Overlay) Position() (Point, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.position == nil {
		return Point{}, false
	}
	return *o.position, true
}

// Content returns what the overlay displays.
func (o *Overlay) Content() any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.content
}

// Visible reports whether the overlay is anchored.
func (o *Overlay) Visible() bool {
	_, ok := o.Position()
	return ok
}
