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

type PostgresUserRepository struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewUserRepository(client *PostgresClient, logger *zap.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{client: client, logger: logger}
}

func (r *PostgresUserRepository) Upsert(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	// The conflict arm only touches updated_at, so an existing user's risk
	// score survives the upsert.
	err := r.client.DB.QueryRowContext(ctx,
		`INSERT INTO users (id, username, risk_score, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (username) DO UPDATE SET updated_at = now()
		 RETURNING id, username, risk_score, created_at, updated_at`,
		uuid.New(), username, models.RiskNone,
	).Scan(&user.ID, &user.Username, &user.RiskScore, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT id, username, risk_score, created_at, updated_at FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.RiskScore, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	return user, nil
}

// RecomputeRiskScore runs the count read and the score write in a single
// transaction, so a concurrent alert insert cannot leave the score computed
// from a stale count.
func (r *PostgresUserRepository) RecomputeRiskScore(ctx context.Context, userID uuid.UUID, classify func(alertCount int) models.RiskScore) (models.RiskScore, int, error) {
	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM alerts WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return "", 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	score := classify(count)

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET risk_score = $1, updated_at = now() WHERE id = $2`,
		score, userID,
	)
	if err != nil {
		return "", 0, fmt.Errorf("failed to update risk score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return score, count, nil
}

func (r *PostgresUserRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.client.DB.ExecContext(ctx,
		`DELETE FROM users WHERE updated_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale users: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresUserRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepository)(nil)
