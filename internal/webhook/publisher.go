package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/transit_pulse/internal/models"
)

const (
	webhookQueueKey = "transit_pulse:incident_events"
)

// EventType - тип события по инциденту
type EventType string

const (
	EventIncidentCreated       EventType = "incident.created"
	EventIncidentUpdated       EventType = "incident.updated"
	EventIncidentStatusChanged EventType = "incident.status_changed"
)

// IncidentEvent - событие для внешних потребителей (лента, консоль оператора, оповещения)
type IncidentEvent struct {
	Type       EventType        `json:"type"`
	Incident   *models.Incident `json:"incident"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Publisher - интерфейс для публикации событий
type Publisher interface {
	Publish(ctx context.Context, event IncidentEvent) error
}

// RedisPublisher - реализация Publisher, использующая список Redis как очередь
type RedisPublisher struct {
	redisClient redis.UniversalClient
}

// NewRedisPublisher создает новый RedisPublisher
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// Publish кладёт событие в очередь Redis
func (p *RedisPublisher) Publish(ctx context.Context, event IncidentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal incident event: %w", err)
	}

	// LPUSH в голову списка, воркер забирает с хвоста через BRPOP
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish incident event to Redis: %w", err)
	}
	return nil
}
