package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/config"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	reportService   service.ReportService
	incidentService service.IncidentService
	lifecycle       service.LifecycleManager
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(
	reportService service.ReportService,
	incidentService service.IncidentService,
	lifecycle service.LifecycleManager,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		reportService:   reportService,
		incidentService: incidentService,
		lifecycle:       lifecycle,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Submit a rider report
// @Description Store a rider report and aggregate it into an incident. Authenticated riders are identified by the X-User-ID header set by the gateway, anonymous riders by anon_id.
// @Tags Reports
// @Accept json
// @Produce json
// @Param X-User-ID header string false "Authenticated user id"
// @Param report body SubmitReportRequest true "Rider report"
// @Success 201 {object} SubmitReportResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 503 {object} ErrorResponse "Store unavailable, retry later"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports [post]
func (h *Handler) submitReport(c *gin.Context) {
	var input SubmitReportRequest
	log := h.logger.WithField("method", "submitReport")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	report, incident, err := h.reportService.SubmitReport(c.Request.Context(), DTOToSubmitReportInput(input, c.GetHeader(userIDHeader)))
	if err != nil {
		resp := h.errorResponse(log, err)
		if report != nil {
			resp.ReportID = &report.ID
		}
		c.JSON(statusFor(err), resp)
		return
	}

	c.JSON(http.StatusCreated, SubmitReportResponse{
		Report:   ModelToReportResponse(report),
		Incident: ModelToIncidentResponse(incident),
	})
}

// @Summary Get the incident feed
// @Description Recent incidents ordered by last report, newest first. Without status only open incidents are returned.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param agency_id query string false "Agency"
// @Param route_id query string false "Route"
// @Param type query string false "Report type"
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Max items (default 50, max 100)"
// @Success 200 {object} IncidentListResponse
// @Failure 400 {object} ErrorResponse "Invalid query"
// @Failure 503 {object} ErrorResponse "Store unavailable, retry later"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	var query ListIncidentsQuery
	log := h.logger.WithField("method", "listIncidents")

	if err := c.ShouldBindQuery(&query); err != nil {
		log.WithError(err).Warn("Failed to bind query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query parameters"})
		return
	}

	if err := h.validate.Struct(query); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), QueryToIncidentFilter(query))
	if err != nil {
		c.JSON(statusFor(err), h.errorResponse(log, err))
		return
	}

	c.JSON(http.StatusOK, IncidentListResponse{Incidents: ModelsToIncidentResponses(incidents)})
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 503 {object} ErrorResponse "Store unavailable, retry later"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), h.errorResponse(log, err))
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident status
// @Description Apply an operator status change. Allowed: UNVERIFIED→VERIFIED, UNVERIFIED→DISMISSED, VERIFIED→HANDLED. Requires API key.
// @Tags Operator
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param X-Actor-ID header string true "Operator id"
// @Param status body StatusChangeRequest true "Target status"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID or request body"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Transition not allowed"
// @Failure 503 {object} ErrorResponse "Store unavailable, retry later"
// @Router /operator/incidents/{id}/status [post]
func (h *Handler) changeIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	actorID := c.GetString(actorIDContextKey)
	log := h.logger.WithField("method", "changeIncidentStatus").WithField("id", id).WithField("actor_id", actorID)

	var input StatusChangeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	incident, err := h.lifecycle.Transition(c.Request.Context(), id, models.IncidentStatus(input.Status), actorID)
	if err != nil {
		c.JSON(statusFor(err), h.errorResponse(log, err))
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor переводит ошибку сервиса в HTTP статус
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case service.IsRetriable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) errorResponse(log *logrus.Entry, err error) ErrorResponse {
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusConflict:
		log.WithError(err).Warn("Request rejected by service")
		return ErrorResponse{Error: err.Error()}
	case http.StatusNotFound:
		log.WithError(err).Warn("Incident not found")
		return ErrorResponse{Error: "incident not found"}
	case http.StatusServiceUnavailable:
		log.WithError(err).Error("Store unavailable")
		return ErrorResponse{Error: "service temporarily unavailable", Retriable: true}
	default:
		log.WithError(err).Error("Unexpected service error")
		return ErrorResponse{Error: "internal server error"}
	}
}
