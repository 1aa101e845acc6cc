package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"authwatch/internal/models"
)

// In-memory repository fakes shared by the pipeline tests.

type memUsers struct {
	mu     sync.Mutex
	users  map[string]*models.User
	alerts *memAlerts
}

func newMemUsers(alerts *memAlerts) *memUsers {
	return &memUsers{users: make(map[string]*models.User), alerts: alerts}
}

func (m *memUsers) Upsert(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[username]; ok {
		u.UpdatedAt = time.Now()
		copied := *u
		return &copied, nil
	}
	u := &models.User{
		ID:        uuid.New(),
		Username:  username,
		RiskScore: models.RiskNone,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.users[username] = u
	copied := *u
	return &copied, nil
}

func (m *memUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) RecomputeRiskScore(ctx context.Context, userID uuid.UUID, classify func(int) models.RiskScore) (models.RiskScore, int, error) {
	count, err := m.alerts.CountByUserID(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	score := classify(count)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.RiskScore = score
			u.UpdatedAt = time.Now()
		}
	}
	return score, count, nil
}

func (m *memUsers) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for name, u := range m.users {
		if !u.UpdatedAt.After(cutoff) {
			delete(m.users, name)
			n++
		}
	}
	return n, nil
}

func (m *memUsers) HealthCheck(ctx context.Context) error { return nil }

type memLogins struct {
	mu      sync.Mutex
	logins  map[uuid.UUID]*models.Login
	saveErr error
}

func newMemLogins() *memLogins {
	return &memLogins{logins: make(map[uuid.UUID]*models.Login)}
}

func (m *memLogins) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Login, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logins[userID]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (m *memLogins) Save(ctx context.Context, login *models.Login) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if login.ID == uuid.Nil {
		login.ID = uuid.New()
	}
	if existing, ok := m.logins[login.UserID]; ok {
		login.ID = existing.ID
	}
	copied := *login
	copied.UpdatedAt = time.Now()
	m.logins[login.UserID] = &copied
	return nil
}

func (m *memLogins) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.logins {
		if !l.UpdatedAt.After(cutoff) {
			delete(m.logins, id)
			n++
		}
	}
	return n, nil
}

type memAlerts struct {
	mu        sync.Mutex
	alerts    []*models.Alert
	createErr error
}

func newMemAlerts() *memAlerts {
	return &memAlerts{}
}

func (m *memAlerts) Create(ctx context.Context, alert *models.Alert) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	copied := *alert
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	m.alerts = append(m.alerts, &copied)
	return nil
}

func (m *memAlerts) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.alerts {
		if a.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *memAlerts) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.Alert
	var n int64
	for _, a := range m.alerts {
		if a.UpdatedAt.After(cutoff) {
			kept = append(kept, a)
		} else {
			n++
		}
	}
	m.alerts = kept
	return n, nil
}

func (m *memAlerts) names() []models.AlertName {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AlertName, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a.Name)
	}
	return out
}

type memHistory struct {
	mu        sync.Mutex
	devices   map[uuid.UUID]map[string]bool
	countries map[uuid.UUID]map[string]bool
}

func newMemHistory() *memHistory {
	return &memHistory{
		devices:   make(map[uuid.UUID]map[string]bool),
		countries: make(map[uuid.UUID]map[string]bool),
	}
}

func (m *memHistory) Devices(ctx context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return keys(m.devices[userID]), nil
}

func (m *memHistory) Countries(ctx context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return keys(m.countries[userID]), nil
}

func (m *memHistory) AddDevice(ctx context.Context, userID uuid.UUID, agent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.devices[userID] == nil {
		m.devices[userID] = make(map[string]bool)
	}
	m.devices[userID][agent] = true
	return nil
}

func (m *memHistory) AddCountry(ctx context.Context, userID uuid.UUID, country string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countries[userID] == nil {
		m.countries[userID] = make(map[string]bool)
	}
	m.countries[userID][country] = true
	return nil
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]*models.TaskSettings
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]*models.TaskSettings)}
}

func (m *memTasks) Find(ctx context.Context, taskName string) (*models.TaskSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskName]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (m *memTasks) Create(ctx context.Context, task *models.TaskSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	copied.UpdatedAt = time.Now()
	m.tasks[task.TaskName] = &copied
	return nil
}

func (m *memTasks) UpdateWindow(ctx context.Context, taskName string, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskName]
	if !ok {
		return errors.New("task settings not found: " + taskName)
	}
	t.StartDate = start
	t.EndDate = end
	t.UpdatedAt = time.Now()
	return nil
}
