// Package retention deletes state older than the configured maximum ages.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/config"
	"authwatch/internal/metrics"
	"authwatch/internal/repository/postgres"
)

// JobCleanModels is the retention job's name.
const JobCleanModels = "clean_models"

// Purger deletes users, logins, and alerts whose last update is older than
// their retention age. Dependents go first so a user deletion never strands
// rows mid-run, though the FK cascades would cover a crash in between.
type Purger struct {
	users   postgres.UserRepository
	logins  postgres.LoginRepository
	alerts  postgres.AlertRepository
	cfg     config.RetentionConfig
	metrics metrics.Recorder
	logger  *zap.Logger
}

func NewPurger(
	users postgres.UserRepository,
	logins postgres.LoginRepository,
	alerts postgres.AlertRepository,
	cfg config.RetentionConfig,
	m metrics.Recorder,
	logger *zap.Logger,
) *Purger {
	return &Purger{
		users:   users,
		logins:  logins,
		alerts:  alerts,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

func (p *Purger) Purge(ctx context.Context, now time.Time) error {
	alertCutoff := now.AddDate(0, 0, -p.cfg.AlertMaxDays)
	deletedAlerts, err := p.alerts.DeleteUpdatedBefore(ctx, alertCutoff)
	if err != nil {
		return fmt.Errorf("failed to purge alerts: %w", err)
	}
	p.metrics.RecordPurged("alert", deletedAlerts)

	loginCutoff := now.AddDate(0, 0, -p.cfg.LoginMaxDays)
	deletedLogins, err := p.logins.DeleteUpdatedBefore(ctx, loginCutoff)
	if err != nil {
		return fmt.Errorf("failed to purge logins: %w", err)
	}
	p.metrics.RecordPurged("login", deletedLogins)

	userCutoff := now.AddDate(0, 0, -p.cfg.UserMaxDays)
	deletedUsers, err := p.users.DeleteUpdatedBefore(ctx, userCutoff)
	if err != nil {
		return fmt.Errorf("failed to purge users: %w", err)
	}
	p.metrics.RecordPurged("user", deletedUsers)

	p.logger.Info("retention purge finished",
		zap.Int64("alerts_deleted", deletedAlerts),
		zap.Int64("logins_deleted", deletedLogins),
		zap.Int64("users_deleted", deletedUsers),
	)

	return nil
}
