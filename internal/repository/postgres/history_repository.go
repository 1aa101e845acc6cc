package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PostgresHistoryRepository struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewHistoryRepository(client *PostgresClient, logger *zap.Logger) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{client: client, logger: logger}
}

func (r *PostgresHistoryRepository) Devices(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return r.listValues(ctx,
		`SELECT user_agent FROM user_devices WHERE user_id = $1`, userID)
}

func (r *PostgresHistoryRepository) Countries(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return r.listValues(ctx,
		`SELECT country FROM user_countries WHERE user_id = $1`, userID)
}

func (r *PostgresHistoryRepository) AddDevice(ctx context.Context, userID uuid.UUID, userAgent string) error {
	_, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO user_devices (user_id, user_agent, first_seen)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, user_agent) DO NOTHING`,
		userID, userAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to record device sighting: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) AddCountry(ctx context.Context, userID uuid.UUID, country string) error {
	_, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO user_countries (user_id, country, first_seen)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, country) DO NOTHING`,
		userID, country,
	)
	if err != nil {
		return fmt.Errorf("failed to record country sighting: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) listValues(ctx context.Context, query string, userID uuid.UUID) ([]string, error) {
	rows, err := r.client.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user history: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return values, nil
}

// compile-time interface check
var _ HistoryRepository = (*PostgresHistoryRepository)(nil)
