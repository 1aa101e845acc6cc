// Package risk recomputes a user's risk score from their alert volume.
package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"authwatch/internal/models"
	"authwatch/internal/repository/postgres"
)

// TierForCount maps an alert count to a risk score. Pure and total: the
// score is always a full function of the current count, never incremental.
func TierForCount(alertCount int) models.RiskScore {
	switch {
	case alertCount == 0:
		return models.RiskNone
	case alertCount <= 2:
		return models.RiskLow
	case alertCount <= 4:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// Scorer overwrites a user's stored risk score from their alert count. The
// count read and score write run in one repository transaction so concurrent
// alert inserts cannot produce a score from a stale count.
type Scorer struct {
	users  postgres.UserRepository
	logger *zap.Logger
}

func NewScorer(users postgres.UserRepository, logger *zap.Logger) *Scorer {
	return &Scorer{users: users, logger: logger}
}

func (s *Scorer) Recompute(ctx context.Context, user *models.User) (models.RiskScore, error) {
	score, count, err := s.users.RecomputeRiskScore(ctx, user.ID, TierForCount)
	if err != nil {
		return "", fmt.Errorf("failed to recompute risk score for %s: %w", user.Username, err)
	}

	if score == models.RiskHigh {
		s.logger.Info("high risk level for user",
			zap.String("username", user.Username),
			zap.Int("alert_count", count),
		)
	}

	return score, nil
}
