package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authwatch/internal/models"
)

func TestTierForCount(t *testing.T) {
	tests := []struct {
		count int
		want  models.RiskScore
	}{
		{0, models.RiskNone},
		{1, models.RiskLow},
		{2, models.RiskLow},
		{3, models.RiskMedium},
		{4, models.RiskMedium},
		{5, models.RiskHigh},
		{100, models.RiskHigh},
	}

	for _, tt := range tests {
		if got := TierForCount(tt.count); got != tt.want {
			t.Errorf("TierForCount(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

type mockUserRepo struct {
	alertCount   int
	recomputeErr error
	gotScore     models.RiskScore
}

func (m *mockUserRepo) Upsert(ctx context.Context, username string) (*models.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, nil
}

func (m *mockUserRepo) RecomputeRiskScore(ctx context.Context, userID uuid.UUID, classify func(int) models.RiskScore) (models.RiskScore, int, error) {
	if m.recomputeErr != nil {
		return "", 0, m.recomputeErr
	}
	m.gotScore = classify(m.alertCount)
	return m.gotScore, m.alertCount, nil
}

func (m *mockUserRepo) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *mockUserRepo) HealthCheck(ctx context.Context) error { return nil }

func TestScorer_Recompute(t *testing.T) {
	repo := &mockUserRepo{alertCount: 4}
	scorer := NewScorer(repo, zap.NewNop())
	user := &models.User{ID: uuid.New(), Username: "alice"}

	score, err := scorer.Recompute(context.Background(), user)
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if score != models.RiskMedium {
		t.Errorf("Recompute() = %q, want %q", score, models.RiskMedium)
	}
	if repo.gotScore != models.RiskMedium {
		t.Errorf("stored score = %q, want %q", repo.gotScore, models.RiskMedium)
	}
}

func TestScorer_RecomputeSurfacesStorageFailure(t *testing.T) {
	repo := &mockUserRepo{recomputeErr: errors.New("tx aborted")}
	scorer := NewScorer(repo, zap.NewNop())
	user := &models.User{ID: uuid.New(), Username: "alice"}

	if _, err := scorer.Recompute(context.Background(), user); err == nil {
		t.Fatal("Recompute() error = nil, want storage failure surfaced")
	}
}
