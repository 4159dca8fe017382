// Package memory - хранилища в памяти процесса для локального запуска и тестов.
// Соблюдают те же гарантии, что и Postgres: один открытый инцидент на ключ,
// условные обновления метрик и статуса.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/models"
)

// ReportStore - журнал сообщений в памяти
type ReportStore struct {
	mu      sync.RWMutex
	reports []*models.Report
}

func NewReportStore() *ReportStore {
	return &ReportStore{}
}

func (s *ReportStore) Create(ctx context.Context, report *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	stored := *report
	s.reports = append(s.reports, &stored)
	return nil
}

func (s *ReportStore) ListByKeySince(ctx context.Context, key models.DedupKey, since time.Time) ([]*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Report, 0)
	for _, r := range s.reports {
		if r.Key == key && !r.CreatedAt.Before(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// IncidentStore - таблица инцидентов в памяти
type IncidentStore struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]*models.Incident
	now       func() time.Time
}

func NewIncidentStore() *IncidentStore {
	return &IncidentStore{
		incidents: make(map[uuid.UUID]*models.Incident),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *IncidentStore) FindOpenByKeySince(ctx context.Context, key models.DedupKey, since time.Time) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Incident
	for _, inc := range s.incidents {
		if inc.DedupKey != key || !inc.Status.IsOpen() || inc.LastReportAt.Before(since) {
			continue
		}
		if found == nil || inc.LastReportAt.After(found.LastReportAt) {
			found = inc
		}
	}
	if found == nil {
		return nil, nil
	}
	return clone(found), nil
}

func (s *IncidentStore) FindByReportID(ctx context.Context, reportID uuid.UUID) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inc := range s.incidents {
		if inc.HasReport(reportID) {
			return clone(inc), nil
		}
	}
	return nil, nil
}

func (s *IncidentStore) Create(ctx context.Context, incident *models.Incident, staleBefore time.Time) ([]models.RetiredIncident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var stale []*models.Incident
	for _, inc := range s.incidents {
		if inc.DedupKey != incident.DedupKey || !inc.Status.IsOpen() {
			continue
		}
		if !inc.LastReportAt.Before(staleBefore) {
			return nil, models.ErrOpenIncidentExists
		}
		stale = append(stale, inc)
	}

	// Проверки пройдены, изменения применяются целиком
	retired := make([]models.RetiredIncident, 0, len(stale))
	for _, inc := range stale {
		previous := inc.Status
		inc.Status = previous.RetiredStatus()
		inc.StatusChangedBy = models.SystemActor
		inc.StatusChangedAt = &now
		inc.UpdatedAt = now
		retired = append(retired, models.RetiredIncident{Incident: clone(inc), PreviousStatus: previous})
	}

	incident.ID = uuid.New()
	incident.CreatedAt = now
	incident.UpdatedAt = now
	s.incidents[incident.ID] = clone(incident)
	return retired, nil
}

func (s *IncidentStore) UpdateMetrics(ctx context.Context, id uuid.UUID, m models.IncidentMetrics, reportID uuid.UUID) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if inc.HasReport(reportID) {
		return clone(inc), nil
	}
	if !inc.Status.IsOpen() {
		return nil, models.ErrIncidentClosed
	}

	inc.ConfirmationsCount = m.ConfirmationsCount
	inc.Score = m.Score
	inc.Confidence = m.Confidence
	inc.LastReportAt = m.LastReportAt
	inc.ReportIDs = append(inc.ReportIDs, reportID)
	inc.UpdatedAt = s.now()
	return clone(inc), nil
}

func (s *IncidentStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.IncidentStatus, actorID string) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if inc.Status != from {
		return nil, models.ErrStatusChanged
	}

	now := s.now()
	inc.Status = to
	inc.StatusChangedBy = actorID
	inc.StatusChangedAt = &now
	inc.UpdatedAt = now
	return clone(inc), nil
}

func (s *IncidentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(inc), nil
}

func (s *IncidentStore) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Incident, 0)
	for _, inc := range s.incidents {
		switch {
		case filter.AgencyID != "" && inc.AgencyID != filter.AgencyID,
			filter.RouteID != "" && inc.RouteID != filter.RouteID,
			filter.Type != "" && inc.Type != filter.Type,
			len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, inc.Status),
			!filter.Since.IsZero() && inc.LastReportAt.Before(filter.Since):
			continue
		}
		out = append(out, clone(inc))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastReportAt.After(out[j].LastReportAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// All возвращает все инциденты (для проверок в тестах)
func (s *IncidentStore) All() []*models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, clone(inc))
	}
	return out
}

func clone(inc *models.Incident) *models.Incident {
	cp := *inc
	cp.ReportIDs = slices.Clone(inc.ReportIDs)
	if inc.StatusChangedAt != nil {
		at := *inc.StatusChangedAt
		cp.StatusChangedAt = &at
	}
	return &cp
}
