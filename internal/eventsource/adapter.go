// Package eventsource adapts the external authentication event log into the
// normalized per-user event sequences the detection pipeline consumes.
package eventsource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/client"
	"authwatch/internal/config"
	"authwatch/internal/models"
)

// Source yields the users active in a time window and their events.
type Source interface {
	// UsernamesInWindow returns the distinct usernames with at least one
	// non-failed authentication event in [start, end).
	UsernamesInWindow(ctx context.Context, start, end time.Time) ([]string, error)

	// EventsForUser returns the user's non-failed events in [start, end),
	// sorted by timestamp ascending and capped at the configured maximum.
	EventsForUser(ctx context.Context, username string, start, end time.Time) ([]models.NormalizedEvent, error)
}

// ElasticSource queries the event log through Elasticsearch.
type ElasticSource struct {
	es     *client.ESClient
	config config.ElasticsearchConfig
	logger *zap.Logger
}

func NewElasticSource(es *client.ESClient, cfg config.ElasticsearchConfig, logger *zap.Logger) *ElasticSource {
	return &ElasticSource{es: es, config: cfg, logger: logger}
}

type aggResponse struct {
	Aggregations struct {
		LoginUser struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"login_user"`
	} `json:"aggregations"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source eventSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type eventSource struct {
	Timestamp time.Time `json:"@timestamp"`
	Geoip     *struct {
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
		CountryName string   `json:"country_name"`
	} `json:"geoip"`
	UserAgent *struct {
		Original string `json:"original"`
	} `json:"user_agent"`
}

func (s *ElasticSource) UsernamesInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	query := map[string]interface{}{
		"size":  0,
		"query": windowQuery(start, end, ""),
		"aggs": map[string]interface{}{
			"login_user": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "user.name",
					"size":  s.config.MaxResults,
				},
			},
		},
	}

	res, err := s.es.Search(ctx, s.config.Index, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query usernames in window: %w", err)
	}

	var parsed aggResponse
	if err := s.es.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse username aggregation: %w", err)
	}

	usernames := make([]string, 0, len(parsed.Aggregations.LoginUser.Buckets))
	for _, bucket := range parsed.Aggregations.LoginUser.Buckets {
		if bucket.Key != "" {
			usernames = append(usernames, bucket.Key)
		}
	}

	return usernames, nil
}

func (s *ElasticSource) EventsForUser(ctx context.Context, username string, start, end time.Time) ([]models.NormalizedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	query := map[string]interface{}{
		"size":  s.config.MaxResults,
		"query": windowQuery(start, end, username),
		"sort": []map[string]interface{}{
			{"@timestamp": map[string]interface{}{"order": "asc"}},
		},
		"_source": []string{
			"user.name", "@timestamp",
			"geoip.latitude", "geoip.longitude", "geoip.country_name",
			"user_agent.original",
		},
	}

	res, err := s.es.Search(ctx, s.config.Index, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for user %s: %w", username, err)
	}

	var parsed searchResponse
	if err := s.es.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse events for user %s: %w", username, err)
	}

	events := make([]models.NormalizedEvent, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		events = append(events, normalize(hit.Source))
	}

	// The query already sorts ascending; keep the guarantee even if a
	// misconfigured index pattern returns unsorted shards.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}

// windowQuery builds the shared bool query: time-range filter on [start,
// end), failure outcomes excluded, optionally matched to one username.
func windowQuery(start, end time.Time, username string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"filter": []map[string]interface{}{
			{"range": map[string]interface{}{
				"@timestamp": map[string]interface{}{
					"gte": start.Format(time.RFC3339),
					"lt":  end.Format(time.RFC3339),
				},
			}},
		},
		"must_not": []map[string]interface{}{
			{"match": map[string]interface{}{"event.outcome": "failure"}},
		},
	}

	if username != "" {
		boolQuery["must"] = []map[string]interface{}{
			{"match": map[string]interface{}{"user.name": username}},
		}
	}

	return map[string]interface{}{"bool": boolQuery}
}

func normalize(src eventSource) models.NormalizedEvent {
	event := models.NormalizedEvent{Timestamp: src.Timestamp}

	if src.Geoip != nil {
		event.Latitude = src.Geoip.Latitude
		event.Longitude = src.Geoip.Longitude
		event.Country = src.Geoip.CountryName
	}
	if src.UserAgent != nil {
		event.UserAgent = src.UserAgent.Original
	}

	return event
}

// compile-time interface check
var _ Source = (*ElasticSource)(nil)
