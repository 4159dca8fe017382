package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// IncidentStatus - состояние жизненного цикла инцидента
type IncidentStatus string

const (
	StatusUnverified IncidentStatus = "UNVERIFIED"
	StatusVerified   IncidentStatus = "VERIFIED"
	StatusHandled    IncidentStatus = "HANDLED"
	StatusDismissed  IncidentStatus = "DISMISSED"
)

// OpenStatuses - статусы, в которых инцидент принимает новые сообщения
var OpenStatuses = []IncidentStatus{StatusUnverified, StatusVerified}

var allowedTransitions = map[IncidentStatus][]IncidentStatus{
	StatusUnverified: {StatusVerified, StatusDismissed},
	StatusVerified:   {StatusHandled},
}

func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusUnverified, StatusVerified, StatusHandled, StatusDismissed:
		return true
	}
	return false
}

func (s IncidentStatus) IsOpen() bool {
	return s == StatusUnverified || s == StatusVerified
}

// IsTerminal - HANDLED и DISMISSED закрывают инцидент навсегда
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusHandled || s == StatusDismissed
}

// CanTransition проверяет переход по таблице состояний
func (s IncidentStatus) CanTransition(to IncidentStatus) bool {
	return slices.Contains(allowedTransitions[s], to)
}

// RetiredStatus - терминальный статус для открытого инцидента, вышедшего за окно агрегации
func (s IncidentStatus) RetiredStatus() IncidentStatus {
	if s == StatusVerified {
		return StatusHandled
	}
	return StatusDismissed
}

// Confidence - уровень доверия к инциденту
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// SystemActor - автор автоматических изменений статуса
const SystemActor = "system"

// Incident - агрегат сообщений по одному ключу дедупликации
type Incident struct {
	ID uuid.UUID `json:"id"`
	DedupKey
	Status             IncidentStatus `json:"status"`
	Score              float64        `json:"score"`
	Confidence         Confidence     `json:"confidence"`
	ConfirmationsCount int            `json:"confirmations_count"`
	LastReportAt       time.Time      `json:"last_report_at"`
	ReportIDs          []uuid.UUID    `json:"report_ids"`
	StatusChangedBy    string         `json:"status_changed_by,omitempty"`
	StatusChangedAt    *time.Time     `json:"status_changed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Key возвращает ключ дедупликации инцидента
func (i *Incident) Key() DedupKey {
	return i.DedupKey
}

// HasReport сообщает, привязано ли сообщение к инциденту
func (i *Incident) HasReport(id uuid.UUID) bool {
	return slices.Contains(i.ReportIDs, id)
}

// RetiredIncident - открытый инцидент, закрытый системой при создании нового по тому же ключу
type RetiredIncident struct {
	Incident       *Incident
	PreviousStatus IncidentStatus
}

// IncidentMetrics - результат пересчёта агрегата после нового сообщения
type IncidentMetrics struct {
	ConfirmationsCount int
	Score              float64
	Confidence         Confidence
	LastReportAt       time.Time
}

// IncidentFilter - параметры выборки ленты инцидентов
type IncidentFilter struct {
	AgencyID string
	RouteID  string
	Type     ReportType
	// Пустой список означает только открытые инциденты
	Statuses []IncidentStatus
	Since    time.Time
	Limit    int
}
