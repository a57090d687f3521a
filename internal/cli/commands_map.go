package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/mapwidget"
	"github.com/mekedron/fieldmap-cli/internal/screen/mapview"
	"github.com/mekedron/fieldmap-cli/internal/service/output"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type mapOptions struct {
	width       int
	height      int
	clickLat    float64
	clickLon    float64
	pixel       string
	near        string
	pan         string
	zoom        float64
	tiles       bool
	interactive bool
}

func newMapCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags
	var opts mapOptions

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Open the user location map, optionally clicking, panning and zooming it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(flags.Format)
			if err != nil {
				return err
			}
			mode := modeLabel(deps.Mode)
			if deps.API == nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_API_UNAVAILABLE", "API client is not available.")
			}
			clickLatSet := cmd.Flags().Changed("click-lat")
			clickLonSet := cmd.Flags().Changed("click-lon")
			if clickLatSet != clickLonSet {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_INVALID_ARGUMENT", "Both --click-lat and --click-lon must be provided together.")
			}
			if clickLatSet && strings.TrimSpace(opts.pixel) != "" {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_INVALID_ARGUMENT", "Do not combine --pixel with --click-lat/--click-lon.")
			}

			screen, err := mapview.Mount(mapview.Deps{
				Users:  deps.API,
				Logger: deps.Logger,
				Size:   mapwidget.Size{Width: opts.width, Height: opts.height},
			})
			if err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_MAP_ERROR", err.Error())
			}
			defer screen.Unmount()

			if err := screen.LoadUsers(cmd.Context()); err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_MAP_ERROR", err.Error())
			}

			if opts.interactive {
				return runInteractiveMap(cmd, deps, screen, format)
			}

			if strings.TrimSpace(opts.near) != "" {
				if err := centerOnPlace(cmd.Context(), deps, screen, opts.near); err != nil {
					return emitError(cmd, format, mode, flags.Output, "FIELDMAP_GEOCODE_FAILED", err.Error())
				}
			}
			if strings.TrimSpace(opts.pan) != "" {
				dx, dy, err := parsePair(opts.pan)
				if err != nil {
					return emitError(cmd, format, mode, flags.Output, "FIELDMAP_INVALID_ARGUMENT", "--pan: "+err.Error())
				}
				if err := screen.Pan(dx, dy); err != nil {
					return emitError(cmd, format, mode, flags.Output, "FIELDMAP_MAP_ERROR", err.Error())
				}
			}
			if opts.zoom != 0 {
				if err := screen.Zoom(opts.zoom); err != nil {
					return emitError(cmd, format, mode, flags.Output, "FIELDMAP_MAP_ERROR", err.Error())
				}
			}
			switch {
			case clickLatSet:
				err = screen.ClickAt(domain.Coordinate{Lat: opts.clickLat, Lon: opts.clickLon})
			case strings.TrimSpace(opts.pixel) != "":
				x, y, parseErr := parsePair(opts.pixel)
				if parseErr != nil {
					return emitError(cmd, format, mode, flags.Output, "FIELDMAP_INVALID_ARGUMENT", "--pixel: "+parseErr.Error())
				}
				err = screen.Click(mapwidget.Pixel{X: x, Y: y})
			}
			if err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_MAP_ERROR", err.Error())
			}

			state := screen.State()
			warnings := []string{}
			if state.LoadFailed {
				warnings = append(warnings, "failed to load users; the map shows no markers")
			}
			view, err := snapshotMap(screen, state, opts.tiles)
			if err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_MAP_ERROR", err.Error())
			}
			data := map[string]any{
				"screen":      "map",
				"center":      state.Center,
				"zoom":        state.Zoom,
				"markers":     state.Markers,
				"popup":       state.Popup,
				"attribution": view.attribution,
			}
			if opts.tiles {
				data["tiles"] = view.tiles
			}
			return writeResult(cmd, deps, flags, format, buildMapTable(view, warnings), data, warnings)
		},
	}

	cmd.Flags().IntVar(&opts.width, "width", mapwidget.DefaultSize.Width, "Map width in pixels.")
	cmd.Flags().IntVar(&opts.height, "height", mapwidget.DefaultSize.Height, "Map height in pixels.")
	cmd.Flags().Float64Var(&opts.clickLat, "click-lat", 0, "Click the map where this latitude is drawn (with --click-lon).")
	cmd.Flags().Float64Var(&opts.clickLon, "click-lon", 0, "Click the map where this longitude is drawn (with --click-lat).")
	cmd.Flags().StringVar(&opts.pixel, "pixel", "", "Click the map at pixel x,y.")
	cmd.Flags().StringVar(&opts.near, "near", "", "Center the map on a place name before panning and clicking.")
	cmd.Flags().StringVar(&opts.pan, "pan", "", "Drag the map by dx,dy pixels before clicking.")
	cmd.Flags().Float64Var(&opts.zoom, "zoom", 0, "Change the zoom level by this amount before clicking.")
	cmd.Flags().BoolVar(&opts.tiles, "tiles", false, "Include the visible tile URLs.")
	cmd.Flags().BoolVar(&opts.interactive, "interactive", false, "Read map commands from stdin: click X Y, at LAT LON, pan DX DY, zoom N, goto PLACE, reload, quit.")
	addGlobalFlags(cmd, &flags)
	return cmd
}

// mapSnapshot is what the map command prints, read while the screen is mounted.
type mapSnapshot struct {
	state       mapview.ViewState
	attribution string
	pixels      []mapwidget.Pixel
	tiles       []string
	withTiles   bool
}

func snapshotMap(screen *mapview.Screen, state mapview.ViewState, withTiles bool) (mapSnapshot, error) {
	snap := mapSnapshot{state: state, withTiles: withTiles}
	var err error
	if snap.attribution, err = screen.Attribution(); err != nil {
		return mapSnapshot{}, err
	}
	for _, marker := range state.Markers {
		px, err := screen.PixelAt(marker.Position)
		if err != nil {
			return mapSnapshot{}, err
		}
		snap.pixels = append(snap.pixels, px)
	}
	if withTiles {
		if snap.tiles, err = screen.TileURLs(); err != nil {
			return mapSnapshot{}, err
		}
	}
	return snap, nil
}

func buildMapTable(snap mapSnapshot, warnings []string) string {
	state := snap.state
	view := output.RenderTable("Map", []string{"Field", "Value"}, [][]string{
		{"Center", formatCoordinate(state.Center.Lat) + ", " + formatCoordinate(state.Center.Lon)},
		{"Zoom", formatFloat(state.Zoom)},
		{"Markers", strconv.Itoa(len(state.Markers))},
		{"Attribution", snap.attribution},
	})

	rows := make([][]string, 0, len(state.Markers))
	for i, marker := range state.Markers {
		px := snap.pixels[i]
		rows = append(rows, []string{
			fallbackString(marker.User.DisplayName, "-"),
			formatCoordinate(marker.Position.Lat),
			formatCoordinate(marker.Position.Lon),
			strconv.FormatFloat(px.X, 'f', 1, 64),
			strconv.FormatFloat(px.Y, 'f', 1, 64),
		})
	}
	markers := ""
	if len(rows) > 0 {
		markers = output.RenderTable("Markers", []string{"NAME", "LAT", "LON", "PIXEL X", "PIXEL Y"}, rows)
	}

	popup := ""
	if state.Popup.Visible {
		popup = "Popup\n" + strings.Join(state.Popup.Lines(), "\n")
	}

	tiles := ""
	if snap.withTiles {
		tiles = "Tiles\n" + strings.Join(snap.tiles, "\n")
	}

	notes := ""
	if len(warnings) > 0 {
		notes = "Warnings\n" + strings.Join(warnings, "\n")
	}
	return output.RenderSections(view, markers, popup, tiles, notes)
}

// runInteractiveMap applies stdin commands to the screen while a second
// goroutine renders every state the screen publishes.
func runInteractiveMap(cmd *cobra.Command, deps Dependencies, screen *mapview.Screen, format output.Format) error {
	if deps.Stdin == nil {
		return fmt.Errorf("interactive mode needs stdin")
	}
	states, unsubscribe := screen.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for state := range states {
			if err := renderMapState(cmd.OutOrStdout(), state, format); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		screen.Unmount()
		return nil
	})

	// Reads from stdin cannot be interrupted, so the scanner runs outside
	// the group and the command loop stops on cancellation without it.
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(deps.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					select {
					case err := <-scanErr:
						return err
					default:
						return nil
					}
				}
				quit, err := applyMapCommand(gCtx, deps, screen, line)
				if err != nil {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), err)
					continue
				}
				if quit {
					return nil
				}
			}
		}
	})

	return g.Wait()
}

func centerOnPlace(ctx context.Context, deps Dependencies, screen *mapview.Screen, place string) error {
	if deps.Geocoder == nil {
		return fmt.Errorf("place search is not available")
	}
	at, err := deps.Geocoder.Lookup(ctx, place)
	if err != nil {
		return err
	}
	return screen.CenterOn(at)
}

func applyMapCommand(ctx context.Context, deps Dependencies, screen *mapview.Screen, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	numbers := func(want int) ([]float64, error) {
		if len(fields)-1 != want {
			return nil, fmt.Errorf("%s expects %d argument(s)", fields[0], want)
		}
		values := make([]float64, 0, want)
		for _, raw := range fields[1:] {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid number %q", fields[0], raw)
			}
			values = append(values, value)
		}
		return values, nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil
	case "click":
		v, err := numbers(2)
		if err != nil {
			return false, err
		}
		return false, screen.Click(mapwidget.Pixel{X: v[0], Y: v[1]})
	case "at":
		v, err := numbers(2)
		if err != nil {
			return false, err
		}
		return false, screen.ClickAt(domain.Coordinate{Lat: v[0], Lon: v[1]})
	case "pan":
		v, err := numbers(2)
		if err != nil {
			return false, err
		}
		return false, screen.Pan(v[0], v[1])
	case "zoom":
		v, err := numbers(1)
		if err != nil {
			return false, err
		}
		return false, screen.Zoom(v[0])
	case "goto":
		if len(fields) < 2 {
			return false, fmt.Errorf("goto expects a place name")
		}
		return false, centerOnPlace(ctx, deps, screen, strings.Join(fields[1:], " "))
	case "reload":
		return false, screen.LoadUsers(ctx)
	default:
		return false, fmt.Errorf("unknown map command %q (click X Y, at LAT LON, pan DX DY, zoom N, goto PLACE, reload, quit)", fields[0])
	}
}

func renderMapState(w io.Writer, state mapview.ViewState, format output.Format) error {
	if format != output.FormatTable {
		item, err := output.RenderStreamItem(state, format)
		if err != nil {
			return fmt.Errorf("render map state: %w", err)
		}
		_, err = fmt.Fprintln(w, item)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "center=%s,%s zoom=%s markers=%d",
		formatCoordinate(state.Center.Lat), formatCoordinate(state.Center.Lon), formatFloat(state.Zoom), len(state.Markers))
	if state.Loading {
		b.WriteString(" loading")
	}
	if state.LoadFailed {
		b.WriteString(" load-failed")
	}
	if state.Popup.Visible {
		fmt.Fprintf(&b, " popup=%q", strings.Join(state.Popup.Lines(), " | "))
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}
