// Package detection holds the three anomaly detectors. Detectors are pure:
// they compare an incoming event to the caller-supplied baseline or history
// and either return an alert payload or nil. All state mutation stays with
// the analyzer.
package detection

import "authwatch/internal/models"

// Payload describes a triggered anomaly. The analyzer pairs it with the raw
// event and the user when persisting the alert.
type Payload struct {
	Name        models.AlertName
	Description string
}
