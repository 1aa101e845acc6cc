package detection

import (
	"fmt"

	"authwatch/internal/models"
)

// CheckNewDevice reports whether the event's user agent has never been seen
// for this user. knownDevices is the user's append-only device history; an
// exact match with any entry means the device is not new. Events with an
// empty agent never trigger.
func CheckNewDevice(knownDevices []string, event models.NormalizedEvent) *Payload {
	if event.UserAgent == "" {
		return nil
	}

	for _, known := range knownDevices {
		if known == event.UserAgent {
			return nil
		}
	}

	return &Payload{
		Name:        models.AlertNewDevice,
		Description: fmt.Sprintf("Login from device %q never seen before for this user", event.UserAgent),
	}
}
