// Package util holds small formatting and geometry helpers shared by the tracking code.
package util

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ETA texts that are not a duration.
const (
	ETACalculating  = "calculating"
	ETAArrivingNow  = "arriving now"
	minutesPerHour  = 60
	minSpeedSpacing = time.Second
)

// FormatETA renders the time left until eta, rounded to whole minutes
// (e.g. "arriving now", "45 min", "2h 5m"). A nil eta reads "calculating".
func FormatETA(eta *time.Time, now time.Time) string {
	if eta == nil {
		return ETACalculating
	}

	minutes := int(math.Round(eta.Sub(now).Minutes()))
	switch {
	case minutes <= 0:
		return ETAArrivingNow
	case minutes < minutesPerHour:
		return fmt.Sprintf("%d min", minutes)
	default:
		return fmt.Sprintf("%dh %dm", minutes/minutesPerHour, minutes%minutesPerHour)
	}
}

// ValidCoordinate reports whether lat/lon lie within WGS84 bounds.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}

	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// DeriveSpeed returns metres per second travelled between two fixes, or false
// when the fixes are too close in time to give a meaningful value.
func DeriveSpeed(from orb.Point, fromAt time.Time, to orb.Point, toAt time.Time) (float64, bool) {
	elapsed := toAt.Sub(fromAt)
	if elapsed < minSpeedSpacing {
		return 0, false
	}

	return geo.Distance(from, to) / elapsed.Seconds(), true
}
