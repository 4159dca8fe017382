package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/transit_pulse/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const signatureHeader = "X-Webhook-Signature"

// Worker - забирает события из очереди и доставляет их на WEBHOOK_URL
type Worker struct {
	redisClient redis.UniversalClient
	logger      *logrus.Logger
	cfg         *config.Config
	httpClient  *http.Client
	limiter     *rate.Limiter
	done        chan struct{}
}

// NewWorker создает новый Worker
func NewWorker(redisClient redis.UniversalClient, logger *logrus.Logger, cfg *config.Config) *Worker {
	limit := rate.Inf
	if cfg.WebhookRateLimit > 0 {
		limit = rate.Limit(cfg.WebhookRateLimit)
	}
	burst := int(math.Max(1, math.Ceil(cfg.WebhookRateLimit)))

	return &Worker{
		redisClient: redisClient,
		logger:      logger,
		cfg:         cfg,
		httpClient: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		done:    make(chan struct{}),
	}
}

// Start запускает горутину обработки очереди; остановка - отменой ctx
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting webhook worker...")
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping webhook worker.")
				return
			default:
				// 0 означает бесконечное ожидание, прерывается отменой контекста
				result, err := w.redisClient.BRPop(ctx, 0, webhookQueueKey).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) || ctx.Err() != nil {
						continue
					}
					w.logger.WithError(err).Error("Failed to pop incident event from Redis")
					sleepCtx(ctx, w.cfg.WebhookTimeout)
					continue
				}

				// result[0] - ключ, result[1] - значение
				payload := result[1]
				var event IncidentEvent
				if err := json.Unmarshal([]byte(payload), &event); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal incident event from Redis")
					continue
				}

				w.processEvent(ctx, event, payload)
			}
		}
	}()
}

// Done закрывается после остановки воркера
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) processEvent(ctx context.Context, event IncidentEvent, rawPayload string) bool {
	log := w.logger.WithField("event_type", event.Type)
	if event.Incident != nil {
		log = log.WithField("incident_id", event.Incident.ID)
	}
	log.Debug("Processing incident event...")

	if w.cfg.WebhookURL == "" {
		log.Warn("Webhook URL is not configured. Skipping webhook delivery.")
		return false
	}

	maxRetries := max(1, w.cfg.WebhookMaxRetries)
	delay := w.cfg.WebhookBaseDelay

	for i := 0; i < maxRetries; i++ {
		if err := w.limiter.Wait(ctx); err != nil {
			log.WithError(err).Warn("Webhook delivery aborted while waiting for rate limiter")
			return false
		}

		err := w.deliver(ctx, rawPayload)
		if err == nil {
			log.Info("Webhook delivered successfully.")
			return true
		}

		log.WithError(err).Warnf("Webhook delivery failed. Retrying in %v. Retries left: %d", delay, maxRetries-1-i)
		if i < maxRetries-1 {
			if !sleepCtx(ctx, delay) {
				return false
			}
			delay *= 2 // Экспоненциальная задержка
		}
	}

	log.Errorf("Failed to deliver webhook for event after %d attempts.", maxRetries)
	return false
}

func (w *Worker) deliver(ctx context.Context, rawPayload string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.WebhookURL, bytes.NewBufferString(rawPayload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Добавляем HMAC подпись, если WEBHOOK_SECRET задан
	if w.cfg.WebhookSecret != "" {
		req.Header.Set(signatureHeader, generateHMACSHA256(rawPayload, w.cfg.WebhookSecret))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}

// sleepCtx ждёт d или отмены контекста; false, если контекст отменён
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// generateHMACSHA256 генерирует HMAC-SHA256 подпись для данных
func generateHMACSHA256(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
