package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultSeverity = 1
	minSeverity     = 1
	maxSeverity     = 5
	defaultSource   = "api"
	maxDetailsLen   = 500
)

// SubmitReportInput - сообщение, уже адресованное ключу; автор определяется вызывающим
type SubmitReportInput struct {
	Key      models.DedupKey
	Severity int
	// UserID - авторизованный пользователь, имеет приоритет над AnonID
	UserID  string
	AnonID  string
	Source  string
	Details string
}

// ReportService - путь приёма сообщения: сохранение и агрегация
type ReportService interface {
	// SubmitReport возвращает сохранённое сообщение даже при ошибке агрегации
	SubmitReport(ctx context.Context, input SubmitReportInput) (*models.Report, *models.Incident, error)
}

type reportService struct {
	repo      ReportRepository
	engine    AggregationEngine
	clock     Clock
	logger    *logrus.Logger
	reportTTL time.Duration
}

func NewReportService(repo ReportRepository, engine AggregationEngine, clock Clock, logger *logrus.Logger, reportTTL time.Duration) ReportService {
	if clock == nil {
		clock = SystemClock{}
	}
	if reportTTL <= 0 {
		reportTTL = models.DefaultReportTTL
	}
	return &reportService{
		repo:      repo,
		engine:    engine,
		clock:     clock,
		logger:    logger,
		reportTTL: reportTTL,
	}
}

// SubmitReport сохраняет сообщение и агрегирует его в инцидент
func (s *reportService) SubmitReport(ctx context.Context, input SubmitReportInput) (*models.Report, *models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "report",
		"method":  "SubmitReport",
		"key":     input.Key.String(),
	})

	report, err := s.buildReport(input)
	if err != nil {
		log.WithError(err).Warn("Rejected invalid report")
		return nil, nil, validationError(err)
	}

	if err := s.repo.Create(ctx, report); err != nil {
		log.WithError(err).Error("Failed to create report in repository")
		return nil, nil, storeUnavailable("create report", err)
	}
	log = log.WithField("report_id", report.ID)
	log.Info("Report stored")

	incident, err := s.engine.Aggregate(ctx, report)
	if err != nil {
		// Сообщение уже сохранено и будет учтено при следующей агрегации по ключу
		log.WithError(err).Warn("Report stored but aggregation failed")
		return report, nil, fmt.Errorf("service: could not aggregate report %s: %w", report.ID, err)
	}

	return report, incident, nil
}

func (s *reportService) buildReport(input SubmitReportInput) (*models.Report, error) {
	if err := input.Key.Validate(); err != nil {
		return nil, err
	}

	var reporter models.ReporterIdentity
	switch {
	case strings.TrimSpace(input.UserID) != "":
		reporter = models.AuthenticatedReporter(strings.TrimSpace(input.UserID))
	case strings.TrimSpace(input.AnonID) != "":
		reporter = models.AnonymousReporter(strings.TrimSpace(input.AnonID))
	default:
		return nil, errors.New("either authentication or anon_id required")
	}

	severity := input.Severity
	if severity == 0 {
		severity = defaultSeverity
	}
	if severity < minSeverity || severity > maxSeverity {
		return nil, fmt.Errorf("severity must be between %d and %d", minSeverity, maxSeverity)
	}

	if utf8.RuneCountInString(input.Details) > maxDetailsLen {
		return nil, fmt.Errorf("details must be at most %d characters", maxDetailsLen)
	}

	source := input.Source
	if source == "" {
		source = defaultSource
	}

	now := s.clock.Now()
	return &models.Report{
		Key:       input.Key,
		Severity:  severity,
		Reporter:  reporter,
		Source:    source,
		Details:   input.Details,
		CreatedAt: now,
		ExpiresAt: now.Add(s.reportTTL),
	}, nil
}
