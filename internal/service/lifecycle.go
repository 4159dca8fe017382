package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/metrics"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/webhook"
	"github.com/sirupsen/logrus"
)

// LifecycleManager применяет изменения статуса инцидента операторами
type LifecycleManager interface {
	Transition(ctx context.Context, id uuid.UUID, target models.IncidentStatus, actorID string) (*models.Incident, error)
}

type lifecycleManager struct {
	incidents IncidentRepository
	notifier  *incidentNotifier
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	timeout   time.Duration
	retries   int
}

func NewLifecycleManager(
	incidents IncidentRepository,
	cache IncidentCache,
	publisher webhook.Publisher,
	clock Clock,
	m *metrics.Metrics,
	logger *logrus.Logger,
	timeout time.Duration,
) LifecycleManager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &lifecycleManager{
		incidents: incidents,
		notifier:  &incidentNotifier{cache: cache, publisher: publisher, clock: clock},
		metrics:   m,
		logger:    logger,
		timeout:   timeout,
		retries:   3,
	}
}

// Transition переводит инцидент в target, если переход разрешён таблицей состояний
func (m *lifecycleManager) Transition(ctx context.Context, id uuid.UUID, target models.IncidentStatus, actorID string) (*models.Incident, error) {
	log := m.logger.WithFields(logrus.Fields{
		"service":     "lifecycle",
		"method":      "Transition",
		"incident_id": id,
		"target":      target,
		"actor_id":    actorID,
	})
	log.Info("Attempting to change incident status")

	if !target.Valid() {
		return nil, validationError(fmt.Errorf("unknown status %q", target))
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, validationError(errors.New("actor id is required"))
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	for attempt := 1; attempt <= m.retries; attempt++ {
		current, err := m.incidents.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Warn("Attempted to change status of a non-existent incident")
				return nil, fmt.Errorf("service: incident %s: %w", id, ErrNotFound)
			}
			log.WithError(err).Error("Failed to get incident in repository")
			return nil, storeUnavailable("get incident", err)
		}

		if !current.Status.CanTransition(target) {
			log.WithField("current", current.Status).Warn("Rejected status transition")
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
		}

		updated, err := m.incidents.UpdateStatus(ctx, id, current.Status, target, actorID)
		if errors.Is(err, models.ErrStatusChanged) {
			// Статус поменялся между чтением и записью, перечитываем и проверяем заново
			log.WithField("attempt", attempt).Warn("Incident status changed concurrently")
			continue
		}
		if err != nil {
			log.WithError(err).Error("Failed to update incident status in repository")
			return nil, storeUnavailable("update incident status", err)
		}

		m.metrics.IncidentTransitions.WithLabelValues(string(current.Status), string(target)).Inc()
		m.notifier.changed(ctx, log, webhook.EventIncidentStatusChanged, updated)
		log.WithField("from", current.Status).Info("Incident status changed successfully")
		return updated, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, ErrConcurrentConflict)
}
