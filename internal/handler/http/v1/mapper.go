package v1

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/service"
)

// DTOToSubmitReportInput преобразует DTO сообщения во входные данные сервиса
func DTOToSubmitReportInput(dto SubmitReportRequest, userID string) service.SubmitReportInput {
	return service.SubmitReportInput{
		Key: models.DedupKey{
			AgencyID:    dto.AgencyID,
			RouteID:     dto.RouteID,
			DirectionID: dto.DirectionID,
			StopID:      dto.StopID,
			Type:        models.ReportType(dto.Type),
		},
		Severity: dto.Severity,
		UserID:   userID,
		AnonID:   dto.AnonID,
		Source:   dto.Source,
		Details:  dto.Details,
	}
}

// QueryToIncidentFilter преобразует параметры ленты в фильтр
func QueryToIncidentFilter(q ListIncidentsQuery) models.IncidentFilter {
	filter := models.IncidentFilter{
		AgencyID: q.AgencyID,
		RouteID:  q.RouteID,
		Type:     models.ReportType(q.Type),
		Limit:    q.Limit,
	}
	for _, st := range strings.Split(q.Status, ",") {
		if st = strings.ToUpper(strings.TrimSpace(st)); st != "" {
			filter.Statuses = append(filter.Statuses, models.IncidentStatus(st))
		}
	}
	return filter
}

// ModelToReportResponse преобразует сообщение в DTO; идентификатор автора не раскрывается
func ModelToReportResponse(model *models.Report) *ReportResponse {
	return &ReportResponse{
		ID:            model.ID,
		AgencyID:      model.Key.AgencyID,
		RouteID:       model.Key.RouteID,
		DirectionID:   model.Key.DirectionID,
		StopID:        model.Key.StopID,
		Type:          string(model.Key.Type),
		Severity:      model.Severity,
		Source:        model.Source,
		Details:       model.Details,
		Authenticated: model.Reporter.IsAuthenticated(),
		CreatedAt:     model.CreatedAt,
		ExpiresAt:     model.ExpiresAt,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	if model == nil {
		return nil
	}
	reportIDs := model.ReportIDs
	if reportIDs == nil {
		reportIDs = []uuid.UUID{}
	}
	return &IncidentResponse{
		ID:                 model.ID,
		AgencyID:           model.AgencyID,
		RouteID:            model.RouteID,
		DirectionID:        model.DirectionID,
		StopID:             model.StopID,
		Type:               string(model.Type),
		Status:             string(model.Status),
		Score:              model.Score,
		Confidence:         string(model.Confidence),
		ConfirmationsCount: model.ConfirmationsCount,
		LastReportAt:       model.LastReportAt,
		ReportIDs:          reportIDs,
		StatusChangedBy:    model.StatusChangedBy,
		StatusChangedAt:    model.StatusChangedAt,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}
