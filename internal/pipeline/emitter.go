package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/client"
	"authwatch/internal/detection"
	"authwatch/internal/metrics"
	"authwatch/internal/models"
	"authwatch/internal/repository/postgres"
)

// Emitter persists a triggered alert, logs it, and fans it out to Kafka when
// a producer is configured. Persistence failures are returned to the caller;
// publish failures are logged and swallowed.
type Emitter struct {
	alerts   postgres.AlertRepository
	producer *client.KafkaProducer
	topic    string
	metrics  metrics.Recorder
	logger   *zap.Logger
}

func NewEmitter(alerts postgres.AlertRepository, producer *client.KafkaProducer, topic string, m metrics.Recorder, logger *zap.Logger) *Emitter {
	return &Emitter{
		alerts:   alerts,
		producer: producer,
		topic:    topic,
		metrics:  m,
		logger:   logger,
	}
}

// alertMessage is the wire shape published to the alert topic.
type alertMessage struct {
	ID        string                 `json:"id"`
	Username  string                 `json:"username"`
	Name      models.AlertName       `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	Event     models.NormalizedEvent `json:"event"`
}

func (e *Emitter) Emit(ctx context.Context, user *models.User, event models.NormalizedEvent, payload *detection.Payload) error {
	alert := &models.Alert{
		UserID:       user.ID,
		Name:         payload.Name,
		Description:  payload.Description,
		LoginRawData: event,
	}

	if err := e.alerts.Create(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist alert %q for user %s: %w", payload.Name, user.Username, err)
	}

	e.logger.Info("alert triggered",
		zap.String("alert", string(payload.Name)),
		zap.String("username", user.Username),
		zap.Time("event_timestamp", event.Timestamp),
		zap.String("country", event.Country),
		zap.String("agent", event.UserAgent),
	)
	e.metrics.RecordAlert(string(payload.Name))

	e.publish(ctx, user.Username, alert, event)

	return nil
}

func (e *Emitter) publish(ctx context.Context, username string, alert *models.Alert, event models.NormalizedEvent) {
	if e.producer == nil {
		return
	}

	msg := alertMessage{
		ID:        alert.ID.String(),
		Username:  username,
		Name:      alert.Name,
		Timestamp: event.Timestamp,
		Event:     event,
	}

	value, err := json.Marshal(msg)
	if err != nil {
		e.logger.Error("failed to marshal alert message", zap.Error(err))
		return
	}

	if err := e.producer.ProduceMessage(ctx, e.topic, []byte(username), value, nil); err != nil {
		e.logger.Warn("failed to publish alert to kafka",
			zap.Error(err),
			zap.String("alert", string(alert.Name)),
			zap.String("username", username),
		)
	}
}
