package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskScore is the coarse risk classification of a user, derived from the
// number of alerts raised against them.
type RiskScore string

const (
	RiskNone   RiskScore = "no_risk"
	RiskLow    RiskScore = "low"
	RiskMedium RiskScore = "medium"
	RiskHigh   RiskScore = "high"
)

// AlertName identifies the anomaly class that raised an alert.
type AlertName string

const (
	AlertNewDevice        AlertName = "Login from new device"
	AlertNewCountry       AlertName = "Login from new country"
	AlertImpossibleTravel AlertName = "Impossible travel detected"
)

// User is an account observed in the authentication event stream. Users are
// created lazily the first time an event for their username shows up and are
// only ever removed by the retention purger.
type User struct {
	ID        uuid.UUID `db:"id"`
	Username  string    `db:"username"`
	RiskScore RiskScore `db:"risk_score"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Login is a user's single baseline login: the most recent login the user is
// known to have made, after accounting for anomalies. At most one row exists
// per user; it is overwritten in place as new events arrive.
type Login struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	EventTimestamp time.Time `db:"event_timestamp"`
	Latitude       float64   `db:"latitude"`
	Longitude      float64   `db:"longitude"`
	Country        string    `db:"country"`
	UserAgent      string    `db:"user_agent"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Alert is an immutable audit record of a detected anomaly. It snapshots the
// raw event that triggered it and is only ever deleted by retention.
type Alert struct {
	ID           uuid.UUID       `db:"id"`
	UserID       uuid.UUID       `db:"user_id"`
	Name         AlertName       `db:"name"`
	Description  string          `db:"description"`
	LoginRawData NormalizedEvent `db:"login_raw_data"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// TaskSettings tracks the time window a named recurring job has processed so
// far. Each run's window starts where the previous run's window ended.
type TaskSettings struct {
	TaskName  string    `db:"task_name"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NormalizedEvent is a single non-failed authentication event pulled from the
// event source, reduced to the fields the detectors care about. Latitude and
// longitude are nil when the source carried no geolocation for the event.
type NormalizedEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"lat"`
	Longitude *float64  `json:"lon"`
	Country   string    `json:"country"`
	UserAgent string    `json:"agent"`
}

// HasCoordinates reports whether the event carries both coordinates. Events
// without them are skipped by the analyzer.
func (e NormalizedEvent) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}
