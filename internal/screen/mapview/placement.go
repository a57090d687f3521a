package mapview

import "github.com/mekedron/fieldmap-cli/internal/domain"

// Delta is the offset in degrees between markers sharing one coordinate.
const Delta = 0.0001

// PlaceMarkers pairs every user that has both coordinates with the point
// its marker is drawn at. The Nth user (counting from zero) at an exact
// latitude/longitude pair is moved N*delta north-east so markers stay
// distinguishable. Input order is preserved; users are not modified.
func PlaceMarkers(users []domain.UserLocation, delta float64) []domain.MarkerPlacement {
	seen := make(map[domain.Coordinate]int, len(users))
	placements := make([]domain.MarkerPlacement, 0, len(users))
	for _, user := range users {
		if !user.HasCoordinate() {
			continue
		}
		at := user.Coordinate()
		n := seen[at]
		seen[at] = n + 1
		placements = append(placements, domain.MarkerPlacement{
			User:       user,
			Position:   at.Offset(float64(n) * delta),
			Occurrence: n,
		})
	}
	return placements
}
