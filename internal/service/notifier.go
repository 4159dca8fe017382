package service

import (
	"context"

	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/webhook"
	"github.com/sirupsen/logrus"
)

// incidentNotifier сбрасывает кэш и публикует событие после зафиксированной записи.
// Ошибки только логируются: запись уже выполнена.
type incidentNotifier struct {
	cache     IncidentCache
	publisher webhook.Publisher
	clock     Clock
}

func (n *incidentNotifier) changed(ctx context.Context, log *logrus.Entry, eventType webhook.EventType, incident *models.Incident) {
	if n.cache != nil {
		if err := n.cache.InvalidateIncident(ctx, incident.ID); err != nil {
			log.WithError(err).Warn("Failed to invalidate incident cache")
		}
	}

	if n.publisher != nil {
		event := webhook.IncidentEvent{
			Type:       eventType,
			Incident:   incident,
			OccurredAt: n.clock.Now(),
		}
		if err := n.publisher.Publish(ctx, event); err != nil {
			log.WithError(err).Warn("Failed to publish incident event")
		}
	}
}
