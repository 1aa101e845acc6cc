package detection

import (
	"fmt"
	"math"

	"authwatch/internal/models"
)

// CheckImpossibleTravel compares the event against the user's current
// baseline login and reports whether covering the distance between the two
// in the elapsed time would require a speed above maxSpeedKmH. The event is
// assumed to carry coordinates; the baseline always does. Out-of-order
// events (event older than the baseline) are skipped.
func CheckImpossibleTravel(maxSpeedKmH float64, baseline *models.Login, event models.NormalizedEvent) *Payload {
	if baseline == nil || !event.HasCoordinates() {
		return nil
	}

	elapsed := event.Timestamp.Sub(baseline.EventTimestamp)
	if elapsed < 0 {
		return nil
	}

	distanceKm := haversineDistance(
		baseline.Latitude, baseline.Longitude,
		*event.Latitude, *event.Longitude,
	)

	// Near-zero elapsed time would blow up the division; floor it at one
	// second so two instantaneous logins far apart still trigger.
	elapsedHours := elapsed.Hours()
	const floatEpsilon = 1e-9
	if math.Abs(elapsedHours) < floatEpsilon {
		elapsedHours = 1.0 / 3600
	}

	speedKmH := distanceKm / elapsedHours
	if speedKmH <= maxSpeedKmH {
		return nil
	}

	return &Payload{
		Name: models.AlertImpossibleTravel,
		Description: fmt.Sprintf(
			"Travel of %.0f km from %s in %.0f minutes would require %.0f km/h",
			distanceKm, baseline.Country, elapsed.Minutes(), speedKmH,
		),
	}
}

// haversineDistance returns the great-circle distance in kilometers between
// two coordinate pairs.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
