package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// IncidentService определяет контракт чтения инцидентов (лента и карточка)
type IncidentService interface {
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
}

type incidentService struct {
	repo       IncidentRepository
	cache      IncidentCache
	clock      Clock
	logger     *logrus.Logger
	feedWindow time.Duration
}

func NewIncidentService(repo IncidentRepository, cache IncidentCache, clock Clock, logger *logrus.Logger, feedWindow time.Duration) IncidentService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &incidentService{
		repo:       repo,
		cache:      cache,
		clock:      clock,
		logger:     logger,
		feedWindow: feedWindow,
	}
}

// GetIncident получает инцидент по ID, сначала из кэша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Debug("Fetching incident by ID")

	if s.cache != nil {
		cached, err := s.cache.GetIncident(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to read incident from cache")
		}
		if cached != nil {
			log.Debug("Incident served from cache")
			return cached, nil
		}
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("Incident not found")
			return nil, fmt.Errorf("service: could not get incident %s: %w", id, ErrNotFound)
		}
		log.WithError(err).Error("Failed to get incident in repository")
		return nil, storeUnavailable("get incident", err)
	}

	if s.cache != nil {
		if err := s.cache.SetIncident(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to put incident into cache")
		}
	}

	log.Debug("Incident fetched successfully")
	return incident, nil
}

// ListIncidents возвращает ленту недавних инцидентов.
// Без фильтра по статусу - только открытые; лимит по умолчанию 50, не больше 100.
func (s *incidentService) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if len(filter.Statuses) == 0 {
		filter.Statuses = models.OpenStatuses
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, validationError(fmt.Errorf("unknown status %q", st))
		}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validationError(fmt.Errorf("unknown report type %q", filter.Type))
	}
	if filter.Since.IsZero() && s.feedWindow > 0 {
		filter.Since = s.clock.Now().Add(-s.feedWindow)
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"agency_id": filter.AgencyID,
		"route_id":  filter.RouteID,
		"limit":     filter.Limit,
	})
	log.Debug("Listing incidents")

	incidents, err := s.repo.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, storeUnavailable("list incidents", err)
	}

	log.WithField("count", len(incidents)).Debug("Incidents listed successfully")
	return incidents, nil
}
