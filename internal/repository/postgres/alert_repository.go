package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authwatch/internal/models"
)

type PostgresAlertRepository struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewAlertRepository(client *PostgresClient, logger *zap.Logger) *PostgresAlertRepository {
	return &PostgresAlertRepository{client: client, logger: logger}
}

func (r *PostgresAlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	rawData, err := json.Marshal(alert.LoginRawData)
	if err != nil {
		return fmt.Errorf("failed to marshal alert raw data: %w", err)
	}

	_, err = r.client.DB.ExecContext(ctx,
		`INSERT INTO alerts (id, user_id, name, description, login_raw_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())`,
		alert.ID, alert.UserID, alert.Name, alert.Description, rawData,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

func (r *PostgresAlertRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM alerts WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

func (r *PostgresAlertRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.client.DB.ExecContext(ctx,
		`DELETE FROM alerts WHERE updated_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale alerts: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ AlertRepository = (*PostgresAlertRepository)(nil)
