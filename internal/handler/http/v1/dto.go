package v1

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReportRequest DTO сообщения пассажира
// @Description DTO сообщения пассажира. Авторизованный пользователь передаётся шлюзом в заголовке X-User-ID.
type SubmitReportRequest struct {
	AgencyID    string `json:"agency_id" validate:"required,max=64"`
	RouteID     string `json:"route_id" validate:"required,max=64"`
	DirectionID int    `json:"direction_id" validate:"gte=0,lte=1"`
	StopID      string `json:"stop_id" validate:"required,max=64"`
	Type        string `json:"type" validate:"required,oneof=DELAY CROWDING_LOW CROWDING_MED CROWDING_HIGH ELEVATOR_OUT POLICE_ACTIVITY PLATFORM_CHANGE VEHICLE_ISSUE SUSPENSION"`
	Severity    int    `json:"severity,omitempty" validate:"omitempty,min=1,max=5"`
	AnonID      string `json:"anon_id,omitempty" validate:"omitempty,max=128"`
	Source      string `json:"source,omitempty" validate:"omitempty,max=32"`
	Details     string `json:"details,omitempty" validate:"max=500"`
}

// StatusChangeRequest DTO смены статуса инцидента оператором
// @Description DTO смены статуса инцидента оператором
type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,oneof=UNVERIFIED VERIFIED HANDLED DISMISSED"`
}

// ListIncidentsQuery параметры ленты инцидентов
type ListIncidentsQuery struct {
	AgencyID string `form:"agency_id" validate:"omitempty,max=64"`
	RouteID  string `form:"route_id" validate:"omitempty,max=64"`
	Type     string `form:"type" validate:"omitempty,oneof=DELAY CROWDING_LOW CROWDING_MED CROWDING_HIGH ELEVATOR_OUT POLICE_ACTIVITY PLATFORM_CHANGE VEHICLE_ISSUE SUSPENSION"`
	// Status - список статусов через запятую
	Status string `form:"status"`
	Limit  int    `form:"limit" validate:"omitempty,min=1"`
}

// ReportResponse DTO для ответа с сообщением пассажира
// @Description DTO для ответа с сообщением пассажира
type ReportResponse struct {
	ID            uuid.UUID `json:"id"`
	AgencyID      string    `json:"agency_id"`
	RouteID       string    `json:"route_id"`
	DirectionID   int       `json:"direction_id"`
	StopID        string    `json:"stop_id"`
	Type          string    `json:"type"`
	Severity      int       `json:"severity"`
	Source        string    `json:"source"`
	Details       string    `json:"details,omitempty"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID                 uuid.UUID   `json:"id"`
	AgencyID           string      `json:"agency_id"`
	RouteID            string      `json:"route_id"`
	DirectionID        int         `json:"direction_id"`
	StopID             string      `json:"stop_id"`
	Type               string      `json:"type"`
	Status             string      `json:"status"`
	Score              float64     `json:"score"`
	Confidence         string      `json:"confidence"`
	ConfirmationsCount int         `json:"confirmations_count"`
	LastReportAt       time.Time   `json:"last_report_at"`
	ReportIDs          []uuid.UUID `json:"report_ids"`
	StatusChangedBy    string      `json:"status_changed_by,omitempty"`
	StatusChangedAt    *time.Time  `json:"status_changed_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// SubmitReportResponse DTO ответа на сообщение: само сообщение и инцидент, в который оно попало
// @Description DTO ответа на сообщение
type SubmitReportResponse struct {
	Report   *ReportResponse   `json:"report"`
	Incident *IncidentResponse `json:"incident"`
}

// IncidentListResponse DTO ленты инцидентов
// @Description DTO ленты инцидентов
type IncidentListResponse struct {
	Incidents []*IncidentResponse `json:"incidents"`
}

// ErrorResponse DTO ошибки
// @Description DTO ошибки; retriable - запрос можно повторить позже
type ErrorResponse struct {
	Error     string     `json:"error"`
	Retriable bool       `json:"retriable,omitempty"`
	ReportID  *uuid.UUID `json:"report_id,omitempty"`
}
