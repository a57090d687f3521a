package mapwidget

import "github.com/google/uuid"

// IconStyle draws a feature as an image anchored at its point.
type IconStyle struct {
	Src     string
	Scale   float64
	Width   float64
	Height  float64
	AnchorX float64
	AnchorY float64
}

// UserIcon is the marker icon, anchored bottom-center.
func UserIcon() IconStyle {
	return IconStyle{
		Src:     "/user-icon.svg",
		Scale:   0.8,
		Width:   24,
		Height:  24,
		AnchorX: 0.5,
		AnchorY: 1,
	}
}

// HitBox returns the top-left and bottom-right pixels covered by the icon
// when its anchor sits at px.
func (s IconStyle) HitBox(px Pixel) (Pixel, Pixel) {
	scale := s.Scale
	if scale <= 0 {
		scale = 1
	}
	w := s.Width * scale
	h := s.Height * scale
	topLeft := Pixel{X: px.X - s.AnchorX*w, Y: px.Y - s.AnchorY*h}
	return topLeft, Pixel{X: topLeft.X + w, Y: topLeft.Y + h}
}

// Feature is one point drawn on a vector layer.
type Feature struct {
	ID         string
	Geometry   Point
	Properties any
	Style      IconStyle
}

// NewFeature creates a feature with a generated ID and the user icon.
func NewFeature(geometry Point, properties any) *Feature {
	return &Feature{
		ID:         uuid.NewString(),
		Geometry:   geometry,
		Properties: properties,
		Style:      UserIcon(),
	}
}

// VectorLayer holds features in insertion order; later features draw on top.
type VectorLayer struct {
	id       string
	features []*Feature
}

// NewVectorLayer creates a layer with the given features.
func NewVectorLayer(features ...*Feature) *VectorLayer {
	return &VectorLayer{id: uuid.NewString(), features: features}
}

func (l *VectorLayer) LayerID() string { return l.id }

// AddFeature appends a feature.
func (l *VectorLayer) AddFeature(f *Feature) {
	l.features = append(l.features, f)
}

// Features returns the layer's features.
func (l *VectorLayer) Features() []*Feature {
	out := make([]*Feature, len(l.features))
	copy(out, l.features)
	return out
}
