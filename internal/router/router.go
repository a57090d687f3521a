// Package router maps application paths to screens.
package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

// Screen names a top-level screen.
type Screen string

const (
	ScreenLogin     Screen = "login"
	ScreenRegister  Screen = "register"
	ScreenDashboard Screen = "dashboard"
	ScreenMap       Screen = "map"
)

var (
	// ErrNoRoute is returned for paths no screen is registered under.
	ErrNoRoute = errors.New("no route for path")
	// ErrInvalidPath is returned for paths that cannot be parsed.
	ErrInvalidPath = errors.New("invalid path")
)

// Route binds a path to a screen. Unavailable routes are known but have
// no screen in this client.
type Route struct {
	Path      string `json:"path" yaml:"path"`
	Screen    Screen `json:"screen" yaml:"screen"`
	Available bool   `json:"available" yaml:"available"`
}

// DefaultRoutes is the application's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Screen: ScreenLogin, Available: true},
		{Path: "/register", Screen: ScreenRegister},
		{Path: "/dashboard", Screen: ScreenDashboard, Available: true},
		{Path: "/map", Screen: ScreenMap, Available: true},
	}
}

// Router resolves paths against a route table.
type Router struct {
	mux    *mux.Router
	routes map[string]Route
	order  []Route
}

// New builds a router over routes; with none it uses DefaultRoutes.
func New(routes ...Route) *Router {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	r := &Router{
		mux:    mux.NewRouter(),
		routes: make(map[string]Route, len(routes)),
		order:  routes,
	}
	for _, route := range routes {
		name := string(route.Screen)
		r.mux.NewRoute().Path(route.Path).Methods(http.MethodGet).Name(name)
		r.routes[name] = route
	}
	return r
}

// Resolve returns the route registered for path. Query strings and
// fragments are ignored, as is a trailing slash.
func (r *Router) Resolve(path string) (Route, error) {
	parsed, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return Route{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	target := parsed.Path
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	if len(target) > 1 {
		target = strings.TrimRight(target, "/")
		if target == "" {
			target = "/"
		}
	}

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: target}}
	var match mux.RouteMatch
	if !r.mux.Match(req, &match) || match.Route == nil {
		return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, target)
	}
	route, ok := r.routes[match.Route.GetName()]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, target)
	}
	return route, nil
}

// Routes returns the route table in registration order.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.order))
	copy(out, r.order)
	return out
}
