package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/models"
)

type PostgresTaskSettingsRepository struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewTaskSettingsRepository(client *PostgresClient, logger *zap.Logger) *PostgresTaskSettingsRepository {
	return &PostgresTaskSettingsRepository{client: client, logger: logger}
}

func (r *PostgresTaskSettingsRepository) Find(ctx context.Context, taskName string) (*models.TaskSettings, error) {
	task := &models.TaskSettings{}
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT task_name, start_date, end_date, updated_at FROM task_settings WHERE task_name = $1`,
		taskName,
	).Scan(&task.TaskName, &task.StartDate, &task.EndDate, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task settings: %w", err)
	}

	return task, nil
}

func (r *PostgresTaskSettingsRepository) Create(ctx context.Context, task *models.TaskSettings) error {
	_, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO task_settings (task_name, start_date, end_date, updated_at)
		 VALUES ($1, $2, $3, now())`,
		task.TaskName, task.StartDate, task.EndDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task settings: %w", err)
	}
	return nil
}

func (r *PostgresTaskSettingsRepository) UpdateWindow(ctx context.Context, taskName string, start, end time.Time) error {
	result, err := r.client.DB.ExecContext(ctx,
		`UPDATE task_settings SET start_date = $1, end_date = $2, updated_at = now() WHERE task_name = $3`,
		start, end, taskName,
	)
	if err != nil {
		return fmt.Errorf("failed to update task window: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task settings not found: %s", taskName)
	}
	return nil
}

// compile-time interface check
var _ TaskSettingsRepository = (*PostgresTaskSettingsRepository)(nil)
