package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authwatch/internal/models"
)

type PostgresLoginRepository struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewLoginRepository(client *PostgresClient, logger *zap.Logger) *PostgresLoginRepository {
	return &PostgresLoginRepository{client: client, logger: logger}
}

func (r *PostgresLoginRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Login, error) {
	login := &models.Login{}
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT id, user_id, event_timestamp, latitude, longitude, country, user_agent, updated_at
		 FROM logins WHERE user_id = $1`,
		userID,
	).Scan(&login.ID, &login.UserID, &login.EventTimestamp, &login.Latitude,
		&login.Longitude, &login.Country, &login.UserAgent, &login.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find login by user ID: %w", err)
	}

	return login, nil
}

// Save writes the user's single baseline slot. user_id is unique, so the
// first write inserts and every later write overwrites in place.
func (r *PostgresLoginRepository) Save(ctx context.Context, login *models.Login) error {
	if login.ID == uuid.Nil {
		login.ID = uuid.New()
	}

	_, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO logins (id, user_id, event_timestamp, latitude, longitude, country, user_agent, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			event_timestamp = EXCLUDED.event_timestamp,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			country = EXCLUDED.country,
			user_agent = EXCLUDED.user_agent,
			updated_at = now()`,
		login.ID, login.UserID, login.EventTimestamp, login.Latitude,
		login.Longitude, login.Country, login.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to save login baseline: %w", err)
	}

	return nil
}

func (r *PostgresLoginRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.client.DB.ExecContext(ctx,
		`DELETE FROM logins WHERE updated_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale logins: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ LoginRepository = (*PostgresLoginRepository)(nil)
