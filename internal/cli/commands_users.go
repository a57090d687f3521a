package cli

import (
	"fmt"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/screen/mapview"
	"github.com/mekedron/fieldmap-cli/internal/service/output"
	"github.com/spf13/cobra"
)

func newUsersCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users with their reported and rendered marker coordinates.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(flags.Format)
			if err != nil {
				return err
			}
			mode := modeLabel(deps.Mode)
			if deps.API == nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_API_UNAVAILABLE", "API client is not available.")
			}
			users, err := deps.API.Users(cmd.Context())
			if err != nil {
				return emitUpstreamError(cmd, format, mode, flags.Output, flags.Verbose, err)
			}
			placements := mapview.PlaceMarkers(users, mapview.Delta)

			warnings := []string{}
			if skipped := len(users) - len(placements); skipped > 0 {
				warnings = append(warnings, fmt.Sprintf("%d user(s) without coordinates have no marker", skipped))
			}
			data := map[string]any{
				"users":   users,
				"markers": placements,
			}
			return writeResult(cmd, deps, flags, format, buildUsersTable(users, placements), data, warnings)
		},
	}

	addGlobalFlags(cmd, &flags)
	return cmd
}

func buildUsersTable(users []domain.UserLocation, placements []domain.MarkerPlacement) string {
	byIndex := make(map[int]domain.MarkerPlacement, len(placements))
	next := 0
	for i, user := range users {
		if next < len(placements) && user.HasCoordinate() {
			byIndex[i] = placements[next]
			next++
		}
	}

	rows := make([][]string, 0, len(users))
	for i, user := range users {
		markerLat, markerLon := "-", "-"
		if placement, ok := byIndex[i]; ok {
			markerLat = formatCoordinate(placement.Position.Lat)
			markerLon = formatCoordinate(placement.Position.Lon)
		}
		rows = append(rows, []string{
			fallbackString(user.ID, "-"),
			fallbackString(user.DisplayName, "-"),
			fallbackString(user.Email, "-"),
			fallbackString(user.PhoneNumber, "N/A"),
			fallbackString(user.Latitude.String(), "-"),
			fallbackString(user.Longitude.String(), "-"),
			markerLat,
			markerLon,
		})
	}
	return output.RenderTable(
		"Users",
		[]string{"ID", "NAME", "EMAIL", "PHONE", "LAT", "LON", "MARKER LAT", "MARKER LON"},
		rows,
	)
}
