package service_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shenikar/transit_pulse/internal/lock"
	"github.com/shenikar/transit_pulse/internal/metrics"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/repository/memory"
	"github.com/shenikar/transit_pulse/internal/service"
	"github.com/shenikar/transit_pulse/internal/webhook"
	"github.com/sirupsen/logrus"
)

var baseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

var delayKey = models.DedupKey{
	AgencyID:    "mta",
	RouteID:     "Q",
	DirectionID: 1,
	StopID:      "R16",
	Type:        models.ReportTypeDelay,
}

// testClock - управляемые часы для детерминированных окон
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSilentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// noopLocker не сериализует ничего: корректность держится только на условной записи хранилища
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// mapCache - кэш инцидентов в памяти вместо Redis
type mapCache struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]models.Incident
}

func newMapCache() *mapCache {
	return &mapCache{incidents: make(map[uuid.UUID]models.Incident)}
}

func (c *mapCache) GetIncident(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc, ok := c.incidents[id]
	if !ok {
		return nil, nil
	}
	return &inc, nil
}

func (c *mapCache) SetIncident(_ context.Context, incident *models.Incident) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incidents[incident.ID] = *incident
	return nil
}

func (c *mapCache) InvalidateIncident(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.incidents, id)
	return nil
}

func (c *mapCache) has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.incidents[id]
	return ok
}

// recordingPublisher запоминает опубликованные события по порядку
type recordingPublisher struct {
	mu     sync.Mutex
	events []webhook.IncidentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event webhook.IncidentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) all() []webhook.IncidentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webhook.IncidentEvent(nil), p.events...)
}

// memoryEnv - полный путь приёма и жизненного цикла поверх хранилищ в памяти
type memoryEnv struct {
	clock     *testClock
	reports   *memory.ReportStore
	incidents *memory.IncidentStore
	metrics   *metrics.Metrics
	cache     *mapCache
	events    *recordingPublisher
	engine    service.AggregationEngine
	submit    service.ReportService
	lifecycle service.LifecycleManager
	read      service.IncidentService
}

func newMemoryEnv(t *testing.T, locker service.KeyLocker) *memoryEnv {
	t.Helper()
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}

	env := &memoryEnv{
		clock:     newTestClock(baseTime),
		reports:   memory.NewReportStore(),
		incidents: memory.NewIncidentStore(),
		metrics:   newTestMetrics(),
		cache:     newMapCache(),
		events:    &recordingPublisher{},
	}
	logger := newSilentLogger()

	env.engine = service.NewAggregationEngine(service.EngineDeps{
		Reports:   env.reports,
		Incidents: env.incidents,
		Locker:    locker,
		Cache:     env.cache,
		Publisher: env.events,
		Clock:     env.clock,
		Metrics:   env.metrics,
		Logger:    logger,
	}, service.EngineConfig{
		Windows:         models.DefaultAggregationWindows(),
		Timeout:         5 * time.Second,
		ConflictRetries: 10,
	})
	env.submit = service.NewReportService(env.reports, env.engine, env.clock, logger, models.DefaultReportTTL)
	env.lifecycle = service.NewLifecycleManager(env.incidents, env.cache, env.events, env.clock, env.metrics, logger, time.Second)
	env.read = service.NewIncidentService(env.incidents, env.cache, env.clock, logger, 2*time.Hour)
	return env
}

func (e *memoryEnv) openIncidents(key models.DedupKey) []*models.Incident {
	var open []*models.Incident
	for _, inc := range e.incidents.All() {
		if inc.DedupKey == key && inc.Status.IsOpen() {
			open = append(open, inc)
		}
	}
	return open
}
