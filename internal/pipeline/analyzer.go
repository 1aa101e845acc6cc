package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"authwatch/internal/detection"
	"authwatch/internal/metrics"
	"authwatch/internal/models"
	"authwatch/internal/repository/postgres"
	"authwatch/internal/risk"
)

// Analyzer walks one user's events in timestamp order, consulting the
// baseline and history stores and invoking the detectors. The analyzer owns
// every mutation; the detectors stay pure.
type Analyzer struct {
	users   postgres.UserRepository
	logins  postgres.LoginRepository
	history postgres.HistoryRepository
	emitter *Emitter
	scorer  *risk.Scorer

	maxTravelSpeedKmH float64
	metrics           metrics.Recorder
	logger            *zap.Logger
}

func NewAnalyzer(
	users postgres.UserRepository,
	logins postgres.LoginRepository,
	history postgres.HistoryRepository,
	emitter *Emitter,
	scorer *risk.Scorer,
	maxTravelSpeedKmH float64,
	m metrics.Recorder,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		users:             users,
		logins:            logins,
		history:           history,
		emitter:           emitter,
		scorer:            scorer,
		maxTravelSpeedKmH: maxTravelSpeedKmH,
		metrics:           m,
		logger:            logger,
	}
}

// Analyze processes the user's events for one window. A persistence failure
// on any event aborts this user (the anomaly must not be dropped silently);
// the caller logs it and moves on to other users.
func (a *Analyzer) Analyze(ctx context.Context, username string, events []models.NormalizedEvent) error {
	user, err := a.users.Upsert(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", username, err)
	}

	alertsRaised := 0

	for _, event := range events {
		a.metrics.RecordEventsProcessed(1)

		if !event.HasCoordinates() {
			a.logger.Info("skipping event without coordinates",
				zap.String("username", username),
				zap.Time("event_timestamp", event.Timestamp),
			)
			continue
		}

		baseline, err := a.logins.FindByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to load baseline for %s: %w", username, err)
		}

		if baseline == nil {
			// First observation is never anomalous: it only seeds the
			// baseline and the history.
			if err := a.saveBaseline(ctx, user, event); err != nil {
				return err
			}
			if err := a.recordHistory(ctx, user, event); err != nil {
				return err
			}
			continue
		}

		raised, err := a.analyzeAgainstBaseline(ctx, user, baseline, event)
		if err != nil {
			return err
		}
		alertsRaised += raised
	}

	if alertsRaised > 0 {
		if _, err := a.scorer.Recompute(ctx, user); err != nil {
			return fmt.Errorf("failed to recompute risk for %s: %w", username, err)
		}
	}

	return nil
}

func (a *Analyzer) analyzeAgainstBaseline(ctx context.Context, user *models.User, baseline *models.Login, event models.NormalizedEvent) (int, error) {
	raised := 0

	var devicePayload, countryPayload *detection.Payload

	if event.UserAgent != "" {
		devices, err := a.history.Devices(ctx, user.ID)
		if err != nil {
			return raised, fmt.Errorf("failed to load device history: %w", err)
		}
		devicePayload = detection.CheckNewDevice(devices, event)
		if devicePayload != nil {
			if err := a.emitter.Emit(ctx, user, event, devicePayload); err != nil {
				return raised, err
			}
			raised++
		}
	}

	if event.Country != "" {
		countries, err := a.history.Countries(ctx, user.ID)
		if err != nil {
			return raised, fmt.Errorf("failed to load country history: %w", err)
		}
		countryPayload = detection.CheckNewCountry(countries, event)
		if countryPayload != nil {
			if err := a.emitter.Emit(ctx, user, event, countryPayload); err != nil {
				return raised, err
			}
			raised++
		}
	}

	if err := a.recordHistory(ctx, user, event); err != nil {
		return raised, err
	}

	if devicePayload != nil || countryPayload != nil {
		// Impossible travel is only a corroborating signal: checking it on
		// every login would flag ordinary travel.
		if payload := detection.CheckImpossibleTravel(a.maxTravelSpeedKmH, baseline, event); payload != nil {
			if err := a.emitter.Emit(ctx, user, event, payload); err != nil {
				return raised, err
			}
			raised++
		}
	}

	// Anomalous or not, the baseline advances to this event. Anomalies are
	// recorded, they do not freeze tracking.
	if err := a.saveBaseline(ctx, user, event); err != nil {
		return raised, err
	}

	return raised, nil
}

func (a *Analyzer) saveBaseline(ctx context.Context, user *models.User, event models.NormalizedEvent) error {
	login := &models.Login{
		UserID:         user.ID,
		EventTimestamp: event.Timestamp,
		Latitude:       *event.Latitude,
		Longitude:      *event.Longitude,
		Country:        event.Country,
		UserAgent:      event.UserAgent,
	}
	if err := a.logins.Save(ctx, login); err != nil {
		return fmt.Errorf("failed to save baseline for %s: %w", user.Username, err)
	}
	return nil
}

func (a *Analyzer) recordHistory(ctx context.Context, user *models.User, event models.NormalizedEvent) error {
	if event.UserAgent != "" {
		if err := a.history.AddDevice(ctx, user.ID, event.UserAgent); err != nil {
			return fmt.Errorf("failed to record device for %s: %w", user.Username, err)
		}
	}
	if event.Country != "" {
		if err := a.history.AddCountry(ctx, user.ID, event.Country); err != nil {
			return fmt.Errorf("failed to record country for %s: %w", user.Username, err)
		}
	}
	return nil
}
