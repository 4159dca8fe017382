package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/models"
)

//go:generate mockgen -source=contracts.go -destination=mocks/contracts_mock.go -package=mocks

// ReportRepository - журнал сообщений пассажиров (только добавление)
type ReportRepository interface {
	// Create сохраняет сообщение и заполняет его ID
	Create(ctx context.Context, report *models.Report) error
	// ListByKeySince возвращает сообщения по ключу с created_at >= since
	ListByKeySince(ctx context.Context, key models.DedupKey, since time.Time) ([]*models.Report, error)
}

// IncidentRepository - хранилище инцидентов.
// Хранилище гарантирует не более одного открытого инцидента на ключ.
type IncidentRepository interface {
	// FindOpenByKeySince возвращает открытый инцидент с last_report_at >= since или nil
	FindOpenByKeySince(ctx context.Context, key models.DedupKey, since time.Time) (*models.Incident, error)
	// FindByReportID возвращает инцидент, к которому привязано сообщение, или nil
	FindByReportID(ctx context.Context, reportID uuid.UUID) (*models.Incident, error)
	// Create атомарно закрывает открытые инциденты по ключу с last_report_at < staleBefore
	// и вставляет новый; возвращает закрытые инциденты.
	// models.ErrOpenIncidentExists, если открытый инцидент уже есть
	Create(ctx context.Context, incident *models.Incident, staleBefore time.Time) ([]models.RetiredIncident, error)
	// UpdateMetrics обновляет метрики и дописывает reportID, только пока инцидент открыт;
	// models.ErrIncidentClosed, если инцидент успел закрыться
	UpdateMetrics(ctx context.Context, id uuid.UUID, metrics models.IncidentMetrics, reportID uuid.UUID) (*models.Incident, error)
	// UpdateStatus меняет статус, только если текущий равен from; models.ErrStatusChanged иначе
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.IncidentStatus, actorID string) (*models.Incident, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
}

// IncidentCache - кэш карточек инцидентов; промах - (nil, nil)
type IncidentCache interface {
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncident(ctx context.Context, incident *models.Incident) error
	InvalidateIncident(ctx context.Context, id uuid.UUID) error
}

// KeyLocker сериализует запись по ключу дедупликации
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Clock - источник текущего времени
type Clock interface {
	Now() time.Time
}

// SystemClock - реальное время в UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
