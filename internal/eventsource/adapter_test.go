package eventsource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/client"
	"authwatch/internal/config"
)

// newTestSource spins up a fake Elasticsearch answering every search with
// the given body and returns a source pointed at it. Captured request
// bodies are appended to *requests.
func newTestSource(t *testing.T, responseBody string, requests *[]map[string]interface{}) *ElasticSource {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil && r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				var q map[string]interface{}
				if err := json.Unmarshal(raw, &q); err == nil {
					*requests = append(*requests, q)
				}
			}
		}
		// The v8 client refuses to talk to servers missing this header.
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Elasticsearch: config.ElasticsearchConfig{
			Addresses:    []string{srv.URL},
			Index:        "cloud-*",
			QueryTimeout: 5 * time.Second,
			MaxResults:   10000,
		},
	}

	es, err := client.NewElasticsearchClient(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewElasticsearchClient() error = %v", err)
	}

	return NewElasticSource(es, cfg.Elasticsearch, zap.NewNop())
}

func TestUsernamesInWindow(t *testing.T) {
	body := `{
		"aggregations": {
			"login_user": {
				"buckets": [
					{"key": "alice", "doc_count": 3},
					{"key": "bob", "doc_count": 1},
					{"key": "", "doc_count": 2}
				]
			}
		}
	}`

	var requests []map[string]interface{}
	source := newTestSource(t, body, &requests)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	usernames, err := source.UsernamesInWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("UsernamesInWindow() error = %v", err)
	}

	if len(usernames) != 2 || usernames[0] != "alice" || usernames[1] != "bob" {
		t.Errorf("usernames = %v, want [alice bob] (empty keys dropped)", usernames)
	}

	if len(requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(requests))
	}
	raw, _ := json.Marshal(requests[0])
	query := string(raw)
	if !containsAll(query, `"must_not"`, `"event.outcome"`, `"failure"`) {
		t.Errorf("query does not exclude failed events: %s", query)
	}
	if !containsAll(query, `"range"`, `"@timestamp"`) {
		t.Errorf("query has no time-range filter: %s", query)
	}
}

func TestEventsForUser(t *testing.T) {
	body := `{
		"hits": {
			"hits": [
				{"_source": {
					"@timestamp": "2025-06-01T12:10:00Z",
					"geoip": {"latitude": 48.8, "longitude": 2.3, "country_name": "France"},
					"user_agent": {"original": "UA1"}
				}},
				{"_source": {
					"@timestamp": "2025-06-01T12:05:00Z",
					"user_agent": {"original": "UA2"}
				}},
				{"_source": {
					"@timestamp": "2025-06-01T12:01:00Z",
					"geoip": {"latitude": 40.7, "longitude": -74.0, "country_name": "United States"}
				}}
			]
		}
	}`

	var requests []map[string]interface{}
	source := newTestSource(t, body, &requests)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	events, err := source.EventsForUser(context.Background(), "alice", start, end)
	if err != nil {
		t.Fatalf("EventsForUser() error = %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	// Returned sorted ascending even though the fake answered out of order.
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("events not sorted ascending: %v before %v", events[i].Timestamp, events[i-1].Timestamp)
		}
	}

	first := events[0]
	if first.Country != "United States" || first.UserAgent != "" {
		t.Errorf("first event = %+v, want United States with empty agent", first)
	}
	if !first.HasCoordinates() {
		t.Error("first event should carry coordinates")
	}

	second := events[1]
	if second.HasCoordinates() {
		t.Error("event without geoip must not carry coordinates")
	}
	if second.Country != "" || second.UserAgent != "UA2" {
		t.Errorf("second event = %+v, want empty country with UA2", second)
	}

	raw, _ := json.Marshal(requests[0])
	query := string(raw)
	if !containsAll(query, `"user.name"`, `"alice"`) {
		t.Errorf("query is not scoped to the user: %s", query)
	}
	if !containsAll(query, `"sort"`, `"asc"`) {
		t.Errorf("query does not sort ascending: %s", query)
	}
}

func TestEventsForUser_SourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"reason": "shard failure"}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Elasticsearch: config.ElasticsearchConfig{
			Addresses:    []string{srv.URL},
			Index:        "cloud-*",
			QueryTimeout: 5 * time.Second,
			MaxResults:   10000,
		},
	}
	es, err := client.NewElasticsearchClient(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewElasticsearchClient() error = %v", err)
	}
	source := NewElasticSource(es, cfg.Elasticsearch, zap.NewNop())

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := source.EventsForUser(context.Background(), "alice", start, start.Add(time.Minute)); err == nil {
		t.Fatal("EventsForUser() error = nil, want source failure surfaced")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
