package detection

import (
	"fmt"

	"authwatch/internal/models"
)

// CheckNewCountry reports whether the event's country has never been seen
// for this user. Events with an empty country never trigger.
func CheckNewCountry(knownCountries []string, event models.NormalizedEvent) *Payload {
	if event.Country == "" {
		return nil
	}

	for _, known := range knownCountries {
		if known == event.Country {
			return nil
		}
	}

	return &Payload{
		Name:        models.AlertNewCountry,
		Description: fmt.Sprintf("Login from %s never seen before for this user", event.Country),
	}
}
