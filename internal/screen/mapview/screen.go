// Package mapview holds the user-location map screen. The screen owns a
// map widget from Mount until Unmount, places one marker per located user
// and shows a popup for the marker under a click.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/mapwidget"
	"github.com/mekedron/fieldmap-cli/internal/screen/observe"
)

// DefaultZoom is the zoom level the map opens at.
const DefaultZoom = 12

// DefaultCenter is the point the map opens on.
var DefaultCenter = domain.Coordinate{Lat: -1.2816714, Lon: 36.8169419}

// ErrUnmounted is returned by operations on an unmounted screen.
var ErrUnmounted = errors.New("map screen is unmounted")

// UserSource fetches the users to place on the map.
type UserSource interface {
	Users(ctx context.Context) ([]domain.UserLocation, error)
}

// Deps are the screen's collaborators.
type Deps struct {
	Users  UserSource
	Logger *slog.Logger
	// Size is the widget size in pixels; zero means mapwidget.DefaultSize.
	Size mapwidget.Size
}

// Screen is one mounted map screen.
type Screen struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	states *observe.Broadcaster[ViewState]

	widget *mapwidget.Map
	tiles  *mapwidget.TileLayer
	popup  *mapwidget.Overlay

	mu         sync.Mutex
	markers    *mapwidget.VectorLayer
	state      ViewState
	generation uint64
	mounted    bool
}

// Mount creates the widget centered on DefaultCenter with an OSM tile
// layer and the popup overlay, and registers the click and move handlers.
func Mount(deps Deps) (*Screen, error) {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tiles := mapwidget.NewTileLayer(mapwidget.OSM())
	widget := mapwidget.New(mapwidget.Options{
		Center: DefaultCenter,
		Zoom:   DefaultZoom,
		Size:   deps.Size,
		Layers: []mapwidget.Layer{tiles},
	})
	popup := mapwidget.NewOverlay()
	if err := widget.AddOverlay(popup); err != nil {
		return nil, fmt.Errorf("attach popup: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	view := widget.View()
	s := &Screen{
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		states:  observe.NewBroadcaster[ViewState](),
		widget:  widget,
		tiles:   tiles,
		popup:   popup,
		state:   ViewState{Center: view.Center(), Zoom: view.Zoom()},
		mounted: true,
	}

	handlers := map[mapwidget.EventType]mapwidget.Handler{
		mapwidget.EventClick:     s.onClick,
		mapwidget.EventMoveStart: s.onMoveStart,
		mapwidget.EventMoveEnd:   s.onMoveEnd,
	}
	for event, handler := range handlers {
		if _, err := widget.On(event, handler); err != nil {
			s.Unmount()
			return nil, fmt.Errorf("register %s handler: %w", event, err)
		}
	}

	s.states.Publish(s.state)
	return s, nil
}

// Subscribe streams view states; the func stops the stream.
func (s *Screen) Subscribe() (<-chan ViewState, func()) {
	return s.states.Subscribe()
}

// State returns the current view state.
func (s *Screen) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadUsers fetches users and replaces the marker layer and user list.
// A failed fetch is logged and leaves the previous markers in place. When
// loads overlap only the most recently started one is applied.
func (s *Screen) LoadUsers(ctx context.Context) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return ErrUnmounted
	}
	s.generation++
	gen := s.generation
	s.setState(s.state.loading())
	s.mu.Unlock()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	users, err := s.deps.Users.Users(reqCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	if gen != s.generation {
		s.deps.Logger.Debug("discarding superseded user load", "generation", gen, "latest", s.generation)
		return nil
	}
	if err != nil {
		s.deps.Logger.Error("error loading users", "error", err)
		s.setState(s.state.loadFailed())
		return nil
	}

	placements := PlaceMarkers(users, Delta)
	layer := mapwidget.NewVectorLayer()
	for _, placement := range placements {
		layer.AddFeature(mapwidget.NewFeature(mapwidget.FromLonLat(placement.Position), placement))
	}
	if s.markers != nil {
		s.widget.RemoveLayer(s.markers.LayerID())
	}
	if err := s.widget.AddLayer(layer); err != nil {
		return ErrUnmounted
	}
	s.markers = layer
	s.deps.Logger.Debug("users loaded", "users", len(users), "markers", len(placements))
	next := s.state.loaded(users, placements)
	if next.Popup.Visible {
		// the popup belongs to a feature of the layer just removed
		s.popup.Hide()
		next = next.withPopup(Popup{})
	}
	s.setState(next)
	return nil
}

// Click simulates a click at px on the widget.
func (s *Screen) Click(px mapwidget.Pixel) error {
	if err := s.widget.Click(px); err != nil {
		return s.widgetErr(err)
	}
	return nil
}

// ClickAt clicks the pixel where c is drawn.
func (s *Screen) ClickAt(c domain.Coordinate) error {
	px, err := s.PixelAt(c)
	if err != nil {
		return err
	}
	return s.Click(px)
}

// PixelAt returns the pixel c is drawn at in the current view.
func (s *Screen) PixelAt(c domain.Coordinate) (mapwidget.Pixel, error) {
	view, err := s.view()
	if err != nil {
		return mapwidget.Pixel{}, err
	}
	return view.PixelFromPoint(mapwidget.FromLonLat(c)), nil
}

// Pan drags the map by dx, dy pixels.
func (s *Screen) Pan(dx, dy float64) error {
	if err := s.widget.Pan(dx, dy); err != nil {
		return s.widgetErr(err)
	}
	return nil
}

// CenterOn recenters the map on c.
func (s *Screen) CenterOn(c domain.Coordinate) error {
	if err := s.widget.CenterOn(c); err != nil {
		return s.widgetErr(err)
	}
	return nil
}

// Zoom changes the zoom level by delta.
func (s *Screen) Zoom(delta float64) error {
	if err := s.widget.ZoomBy(delta); err != nil {
		return s.widgetErr(err)
	}
	return nil
}

// TileURLs lists the tile images covering the current view.
func (s *Screen) TileURLs() ([]string, error) {
	view, err := s.view()
	if err != nil {
		return nil, err
	}
	tiles := s.tiles.VisibleTiles(view)
	urls := make([]string, 0, len(tiles))
	for _, tile := range tiles {
		urls = append(urls, s.tiles.Source.URL(tile))
	}
	return urls, nil
}

// Attribution is the tile source credit line.
func (s *Screen) Attribution() (string, error) {
	if _, err := s.view(); err != nil {
		return "", err
	}
	return s.tiles.Source.Attribution, nil
}

func (s *Screen) view() (mapwidget.View, error) {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	if !mounted {
		return mapwidget.View{}, ErrUnmounted
	}
	return s.widget.View(), nil
}

// Unmount releases the widget and closes subscriptions. An in-flight load
// is cancelled and its result dropped. Safe to call more than once.
func (s *Screen) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.markers = nil
	s.mu.Unlock()

	s.cancel()
	s.widget.Detach()
	s.states.Close()
}

func (s *Screen) onClick(ev mapwidget.Event) {
	feature, hit := s.widget.FeatureAtPixel(ev.Pixel)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	var placement domain.MarkerPlacement
	if hit {
		placement, hit = feature.Properties.(domain.MarkerPlacement)
	}
	if !hit {
		s.popup.Hide()
		s.setState(s.state.withPopup(Popup{}))
		return
	}
	content := popupFor(placement)
	s.deps.Logger.Debug("marker clicked", "feature", feature.ID, "user", placement.User.ID)
	s.popup.Show(feature.Geometry, content)
	s.setState(s.state.withPopup(content))
}

func (s *Screen) onMoveStart(mapwidget.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.popup.Hide()
	if s.state.Popup.Visible {
		s.setState(s.state.withPopup(Popup{}))
	}
}

func (s *Screen) onMoveEnd(mapwidget.Event) {
	view := s.widget.View()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.setState(s.state.moved(view.Center(), view.Zoom()))
}

func (s *Screen) widgetErr(err error) error {
	if errors.Is(err, mapwidget.ErrDetached) {
		return ErrUnmounted
	}
	return err
}

// setState must be called with s.mu held.
func (s *Screen) setState(next ViewState) {
	s.state = next
	s.states.Publish(next)
}
