package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"authwatch/internal/models"
)

// UserRepository persists observed users and their risk score.
type UserRepository interface {
	// Upsert creates the user for username if absent, or touches updated_at
	// if present. Single atomic statement, safe under concurrent runs.
	Upsert(ctx context.Context, username string) (*models.User, error)

	// FindByUsername returns the user, or nil when not found.
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// RecomputeRiskScore counts the user's alerts and overwrites the risk
	// score with classify(count), inside one transaction so the count read
	// and the score write commit together. Returns the new score and count.
	RecomputeRiskScore(ctx context.Context, userID uuid.UUID, classify func(alertCount int) models.RiskScore) (models.RiskScore, int, error)

	// DeleteUpdatedBefore removes users not updated since cutoff, returning
	// the number deleted. Dependent rows are removed by FK cascade.
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	HealthCheck(ctx context.Context) error
}

// LoginRepository persists the single baseline login slot per user.
type LoginRepository interface {
	// FindByUserID returns the user's baseline, or nil when none exists yet.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Login, error)

	// Save creates the baseline on first write and overwrites it in place
	// afterwards, keyed by the unique user_id.
	Save(ctx context.Context, login *models.Login) error

	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertRepository persists immutable alert audit records.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error

	CountByUserID(ctx context.Context, userID uuid.UUID) (int, error)

	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TaskSettingsRepository persists the per-job processed-window bookkeeping.
type TaskSettingsRepository interface {
	// Find returns the row for taskName, or nil when the job has never run.
	Find(ctx context.Context, taskName string) (*models.TaskSettings, error)

	Create(ctx context.Context, task *models.TaskSettings) error

	UpdateWindow(ctx context.Context, taskName string, start, end time.Time) error
}

// HistoryRepository persists the append-only per-user device and country
// sets backing the new-device and new-country detectors. Distinct from the
// single-slot baseline: any prior sighting means "not new".
type HistoryRepository interface {
	Devices(ctx context.Context, userID uuid.UUID) ([]string, error)

	Countries(ctx context.Context, userID uuid.UUID) ([]string, error)

	// AddDevice records a sighting; already-known devices are a no-op.
	AddDevice(ctx context.Context, userID uuid.UUID, userAgent string) error

	AddCountry(ctx context.Context, userID uuid.UUID, country string) error
}
