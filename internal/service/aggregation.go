package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/metrics"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/scoring"
	"github.com/shenikar/transit_pulse/internal/webhook"
	"github.com/sirupsen/logrus"
)

// AggregationEngine решает, продлевает ли сообщение открытый инцидент или открывает новый
type AggregationEngine interface {
	Aggregate(ctx context.Context, report *models.Report) (*models.Incident, error)
}

// EngineConfig - параметры движка агрегации
type EngineConfig struct {
	Windows models.AggregationWindows
	// Timeout ограничивает ожидание блокировки и ввод-вывод хранилища
	Timeout         time.Duration
	ConflictRetries int
}

// EngineDeps - зависимости движка агрегации
type EngineDeps struct {
	Reports   ReportRepository
	Incidents IncidentRepository
	Locker    KeyLocker
	Cache     IncidentCache
	Publisher webhook.Publisher
	Clock     Clock
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
}

type aggregationEngine struct {
	reports   ReportRepository
	incidents IncidentRepository
	locker    KeyLocker
	notifier  *incidentNotifier
	clock     Clock
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	cfg       EngineConfig
}

func NewAggregationEngine(deps EngineDeps, cfg EngineConfig) AggregationEngine {
	if cfg.ConflictRetries < 1 {
		cfg.ConflictRetries = 1
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	return &aggregationEngine{
		reports:   deps.Reports,
		incidents: deps.Incidents,
		locker:    deps.Locker,
		notifier:  &incidentNotifier{cache: deps.Cache, publisher: deps.Publisher, clock: deps.Clock},
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Aggregate привязывает уже сохранённое сообщение к инциденту.
// Чтение и запись инцидента сериализуются по ключу дедупликации; коллизии условной записи
// в хранилище повторяются прозрачно для вызывающего.
func (e *aggregationEngine) Aggregate(ctx context.Context, report *models.Report) (*models.Incident, error) {
	if report == nil {
		return nil, validationError(errors.New("report is nil"))
	}
	if err := report.Validate(); err != nil {
		return nil, validationError(err)
	}
	if report.ID == uuid.Nil {
		return nil, validationError(errors.New("report must be persisted before aggregation"))
	}

	log := e.logger.WithFields(logrus.Fields{
		"service":   "aggregation",
		"method":    "Aggregate",
		"report_id": report.ID,
		"key":       report.Key.String(),
	})
	log.Debug("Aggregating report")

	started := time.Now()
	defer func() {
		e.metrics.AggregationDuration.Observe(time.Since(started).Seconds())
	}()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	unlock, err := e.locker.Lock(ctx, report.Key.String())
	if err != nil {
		e.metrics.AggregationErrors.Inc()
		log.WithError(err).Warn("Failed to acquire key lock")
		return nil, storeUnavailable("acquire key lock", err)
	}
	defer unlock()

	// Повторная агрегация уже привязанного сообщения ничего не меняет,
	// даже если его инцидент успели закрыть
	attached, err := e.incidents.FindByReportID(ctx, report.ID)
	if err != nil {
		e.metrics.AggregationErrors.Inc()
		log.WithError(err).Error("Failed to look up incident by report")
		return nil, storeUnavailable("find incident by report", err)
	}
	if attached != nil {
		e.metrics.ReportsAggregated.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		log.WithField("incident_id", attached.ID).Info("Report already aggregated")
		return attached, nil
	}

	for attempt := 1; attempt <= e.cfg.ConflictRetries; attempt++ {
		res, err := e.aggregateOnce(ctx, report)
		if err == nil {
			incident := res.incident
			e.metrics.ReportsAggregated.WithLabelValues(res.outcome).Inc()
			log = log.WithFields(logrus.Fields{
				"incident_id":   incident.ID,
				"outcome":       res.outcome,
				"confirmations": incident.ConfirmationsCount,
				"score":         incident.Score,
			})
			for _, r := range res.retired {
				e.metrics.IncidentTransitions.WithLabelValues(string(r.PreviousStatus), string(r.Incident.Status)).Inc()
				retiredLog := log.WithFields(logrus.Fields{
					"retired_incident_id": r.Incident.ID,
					"from":                r.PreviousStatus,
					"to":                  r.Incident.Status,
				})
				e.notifier.changed(ctx, retiredLog, webhook.EventIncidentStatusChanged, r.Incident)
				retiredLog.Info("Stale incident retired")
			}
			switch res.outcome {
			case metrics.OutcomeCreated:
				e.notifier.changed(ctx, log, webhook.EventIncidentCreated, incident)
			case metrics.OutcomeMerged:
				e.notifier.changed(ctx, log, webhook.EventIncidentUpdated, incident)
			}
			log.Info("Report aggregated")
			return incident, nil
		}

		if !errors.Is(err, ErrConcurrentConflict) {
			e.metrics.AggregationErrors.Inc()
			log.WithError(err).Error("Failed to aggregate report")
			return nil, err
		}

		e.metrics.AggregationConflict.Inc()
		log.WithError(err).WithField("attempt", attempt).Warn("Concurrent write detected, re-reading incident")
	}

	e.metrics.AggregationErrors.Inc()
	log.Error("Giving up after repeated concurrent conflicts")
	return nil, fmt.Errorf("%w: %w after %d attempts", ErrStoreUnavailable, ErrConcurrentConflict, e.cfg.ConflictRetries)
}

// aggregation - результат одной успешной попытки
type aggregation struct {
	incident *models.Incident
	outcome  string
	retired  []models.RetiredIncident
}

// aggregateOnce - одна попытка чтение-вычисление-запись
func (e *aggregationEngine) aggregateOnce(ctx context.Context, report *models.Report) (aggregation, error) {
	now := e.clock.Now()
	windowStart := now.Add(-e.cfg.Windows.For(report.Key.Type))

	reports, err := e.reports.ListByKeySince(ctx, report.Key, windowStart)
	if err != nil {
		return aggregation{}, storeUnavailable("query reports", err)
	}

	reporters := models.NewReporterSet()
	reporters.Add(report.Reporter)
	for _, r := range reports {
		if r.ExpiredAt(now) {
			continue
		}
		reporters.Add(r.Reporter)
	}

	existing, err := e.incidents.FindOpenByKeySince(ctx, report.Key, windowStart)
	if err != nil {
		return aggregation{}, storeUnavailable("find open incident", err)
	}

	result := scoring.Calculate(reporters.Len(), report.CreatedAt, reporters.HasAuthenticated(), now)

	if existing != nil {
		if existing.HasReport(report.ID) {
			return aggregation{incident: existing, outcome: metrics.OutcomeDuplicate}, nil
		}

		lastReportAt := report.CreatedAt
		if existing.LastReportAt.After(lastReportAt) {
			lastReportAt = existing.LastReportAt
		}
		updated, err := e.incidents.UpdateMetrics(ctx, existing.ID, models.IncidentMetrics{
			ConfirmationsCount: reporters.Len(),
			Score:              result.Score,
			Confidence:         result.Confidence,
			LastReportAt:       lastReportAt,
		}, report.ID)
		switch {
		case errors.Is(err, models.ErrIncidentClosed):
			return aggregation{}, fmt.Errorf("%w: incident %s closed during merge", ErrConcurrentConflict, existing.ID)
		case err != nil:
			return aggregation{}, storeUnavailable("update incident metrics", err)
		}
		return aggregation{incident: updated, outcome: metrics.OutcomeMerged}, nil
	}

	incident := &models.Incident{
		DedupKey:           report.Key,
		Status:             models.StatusUnverified,
		Score:              result.Score,
		Confidence:         result.Confidence,
		ConfirmationsCount: reporters.Len(),
		LastReportAt:       report.CreatedAt,
		ReportIDs:          []uuid.UUID{report.ID},
	}
	retired, err := e.incidents.Create(ctx, incident, windowStart)
	if err != nil {
		if errors.Is(err, models.ErrOpenIncidentExists) {
			return aggregation{}, fmt.Errorf("%w: open incident appeared for key", ErrConcurrentConflict)
		}
		return aggregation{}, storeUnavailable("create incident", err)
	}
	return aggregation{incident: incident, outcome: metrics.OutcomeCreated, retired: retired}, nil
}
