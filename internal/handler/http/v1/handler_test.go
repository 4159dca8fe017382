package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/transit_pulse/internal/config"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/service"
	"github.com/shenikar/transit_pulse/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type handlerMocks struct {
	reports   *mocks.MockReportService
	incidents *mocks.MockIncidentService
	lifecycle *mocks.MockLifecycleManager
}

var operatorHeaders = map[string]string{"X-API-Key": "test-api-key", "X-Actor-ID": "op-1"}

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T) (*handlerMocks, *gin.Engine) {
	ctrl := gomock.NewController(t)
	m := &handlerMocks{
		reports:   mocks.NewMockReportService(ctrl),
		incidents: mocks.NewMockIncidentService(ctrl),
		lifecycle: mocks.NewMockLifecycleManager(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys: []string{"test-api-key"},
	}

	handler := NewHandler(m.reports, m.incidents, m.lifecycle, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return m, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func testIncident(status models.IncidentStatus) *models.Incident {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return &models.Incident{
		ID: uuid.New(),
		DedupKey: models.DedupKey{
			AgencyID:    "mta",
			RouteID:     "Q",
			DirectionID: 1,
			StopID:      "R16",
			Type:        models.ReportTypeDelay,
		},
		Status:             status,
		Score:              55,
		Confidence:         models.ConfidenceMedium,
		ConfirmationsCount: 1,
		LastReportAt:       now,
		ReportIDs:          []uuid.UUID{uuid.New()},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func validReportRequest() SubmitReportRequest {
	return SubmitReportRequest{
		AgencyID:    "mta",
		RouteID:     "Q",
		DirectionID: 1,
		StopID:      "R16",
		Type:        "DELAY",
		AnonID:      "anon-1",
	}
}

func TestSubmitReport_Success(t *testing.T) {
	m, router := newTestHandler(t)
	incident := testIncident(models.StatusUnverified)
	reportID := incident.ReportIDs[0]

	m.reports.EXPECT().
		SubmitReport(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input service.SubmitReportInput) (*models.Report, *models.Incident, error) {
			assert.Equal(t, incident.DedupKey, input.Key)
			assert.Equal(t, "u-1", input.UserID)
			assert.Equal(t, "anon-1", input.AnonID)
			return &models.Report{
				ID:        reportID,
				Key:       input.Key,
				Severity:  1,
				Reporter:  models.AuthenticatedReporter(input.UserID),
				Source:    "api",
				CreatedAt: incident.LastReportAt,
				ExpiresAt: incident.LastReportAt.Add(2 * time.Hour),
			}, incident, nil
		}).Times(1)

	w := makeRequest(router, "POST", "/api/v1/reports", jsonBody(t, validReportRequest()), map[string]string{"X-User-ID": "u-1"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp SubmitReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	require.NotNil(t, resp.Incident)
	assert.Equal(t, reportID, resp.Report.ID)
	assert.True(t, resp.Report.Authenticated)
	assert.Equal(t, incident.ID, resp.Incident.ID)
	assert.Equal(t, "UNVERIFIED", resp.Incident.Status)
	assert.Equal(t, "MEDIUM", resp.Incident.Confidence)
	assert.NotContains(t, w.Body.String(), "u-1", "reporter identity must not leak")
}

func TestSubmitReport_InvalidJSON(t *testing.T) {
	m, router := newTestHandler(t)

	m.reports.EXPECT().SubmitReport(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/reports", bytes.NewBufferString(`{"agency_id": "mta"`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestSubmitReport_ValidationError(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *SubmitReportRequest)
		message string
	}{
		{name: "missing stop", mutate: func(r *SubmitReportRequest) { r.StopID = "" }, message: "'StopID' failed on the 'required' tag"},
		{name: "unknown type", mutate: func(r *SubmitReportRequest) { r.Type = "FIRE" }, message: "'Type' failed on the 'oneof' tag"},
		{name: "severity out of range", mutate: func(r *SubmitReportRequest) { r.Severity = 9 }, message: "'Severity' failed on the 'max' tag"},
		{name: "bad direction", mutate: func(r *SubmitReportRequest) { r.DirectionID = 2 }, message: "'DirectionID' failed on the 'lte' tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, router := newTestHandler(t)
			req := validReportRequest()
			tt.mutate(&req)

			m.reports.EXPECT().SubmitReport(gomock.Any(), gomock.Any()).Times(0)

			w := makeRequest(router, "POST", "/api/v1/reports", jsonBody(t, req))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestSubmitReport_ServiceValidationError(t *testing.T) {
	m, router := newTestHandler(t)
	req := validReportRequest()
	req.AnonID = ""

	m.reports.EXPECT().
		SubmitReport(gomock.Any(), gomock.Any()).
		Return(nil, nil, fmt.Errorf("%w: either authentication or anon_id required", service.ErrValidation))

	w := makeRequest(router, "POST", "/api/v1/reports", jsonBody(t, req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "anon_id required")
}

func TestSubmitReport_AggregationUnavailable(t *testing.T) {
	m, router := newTestHandler(t)
	reportID := uuid.New()

	m.reports.EXPECT().
		SubmitReport(gomock.Any(), gomock.Any()).
		Return(&models.Report{ID: reportID}, nil, fmt.Errorf("service: could not aggregate report: %w", service.ErrStoreUnavailable))

	w := makeRequest(router, "POST", "/api/v1/reports", jsonBody(t, validReportRequest()))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Retriable)
	require.NotNil(t, resp.ReportID)
	assert.Equal(t, reportID, *resp.ReportID)
}

func TestListIncidents_Success(t *testing.T) {
	m, router := newTestHandler(t)
	expected := []*models.Incident{testIncident(models.StatusVerified), testIncident(models.StatusUnverified)}

	m.incidents.EXPECT().
		ListIncidents(gomock.Any(), models.IncidentFilter{
			AgencyID: "mta",
			RouteID:  "Q",
			Type:     models.ReportTypeDelay,
			Statuses: []models.IncidentStatus{models.StatusVerified, models.StatusHandled},
			Limit:    10,
		}).
		Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?agency_id=mta&route_id=Q&type=DELAY&status=verified,%20HANDLED&limit=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp IncidentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Incidents, 2)
	assert.Equal(t, expected[0].ID, resp.Incidents[0].ID)
}

func TestListIncidents_Empty(t *testing.T) {
	m, router := newTestHandler(t)

	m.incidents.EXPECT().ListIncidents(gomock.Any(), models.IncidentFilter{}).Return([]*models.Incident{}, nil)

	w := makeRequest(router, "GET", "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"incidents": []}`, w.Body.String())
}

func TestListIncidents_InvalidQuery(t *testing.T) {
	m, router := newTestHandler(t)

	m.incidents.EXPECT().ListIncidents(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = makeRequest(router, "GET", "/api/v1/incidents?type=FIRE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListIncidents_ServiceError(t *testing.T) {
	m, router := newTestHandler(t)

	m.incidents.EXPECT().
		ListIncidents(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: list incidents: %w", service.ErrStoreUnavailable, errors.New("db error")))

	w := makeRequest(router, "GET", "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "db error")
}

func TestGetIncident_Success(t *testing.T) {
	m, router := newTestHandler(t)
	incident := testIncident(models.StatusUnverified)

	m.incidents.EXPECT().GetIncident(gomock.Any(), incident.ID).Return(incident, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/"+incident.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incident.ID, resp.ID)
	assert.Equal(t, incident.ReportIDs, resp.ReportIDs)
	assert.Equal(t, 55.0, resp.Score)
}

func TestGetIncident_InvalidID(t *testing.T) {
	m, router := newTestHandler(t)

	m.incidents.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents/invalid-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	m, router := newTestHandler(t)
	incidentID := uuid.New()

	m.incidents.EXPECT().
		GetIncident(gomock.Any(), incidentID).
		Return(nil, fmt.Errorf("service: could not get incident: %w", service.ErrNotFound))

	w := makeRequest(router, "GET", "/api/v1/incidents/"+incidentID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestChangeIncidentStatus_Success(t *testing.T) {
	m, router := newTestHandler(t)
	incident := testIncident(models.StatusVerified)
	incident.StatusChangedBy = "op-1"

	m.lifecycle.EXPECT().
		Transition(gomock.Any(), incident.ID, models.StatusVerified, "op-1").
		Return(incident, nil).Times(1)

	w := makeRequest(router, "POST", "/api/v1/operator/incidents/"+incident.ID.String()+"/status",
		jsonBody(t, StatusChangeRequest{Status: "VERIFIED"}), operatorHeaders)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VERIFIED", resp.Status)
	assert.Equal(t, "op-1", resp.StatusChangedBy)
}

func TestChangeIncidentStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid transition", err: fmt.Errorf("%w: UNVERIFIED -> HANDLED", service.ErrInvalidTransition), wantStatus: http.StatusConflict},
		{name: "not found", err: fmt.Errorf("service: incident: %w", service.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "store unavailable", err: fmt.Errorf("%w: get incident: %w", service.ErrStoreUnavailable, context.DeadlineExceeded), wantStatus: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, router := newTestHandler(t)
			incidentID := uuid.New()

			m.lifecycle.EXPECT().
				Transition(gomock.Any(), incidentID, models.StatusHandled, "op-1").
				Return(nil, tt.err)

			w := makeRequest(router, "POST", "/api/v1/operator/incidents/"+incidentID.String()+"/status",
				jsonBody(t, StatusChangeRequest{Status: "HANDLED"}), operatorHeaders)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestChangeIncidentStatus_AuthAndActor(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{name: "no api key", headers: map[string]string{"X-Actor-ID": "op-1"}, wantStatus: http.StatusUnauthorized, wantBody: "API key required"},
		{name: "invalid api key", headers: map[string]string{"X-API-Key": "nope", "X-Actor-ID": "op-1"}, wantStatus: http.StatusUnauthorized, wantBody: "Invalid API key"},
		{name: "missing actor", headers: map[string]string{"X-API-Key": "test-api-key"}, wantStatus: http.StatusBadRequest, wantBody: "X-Actor-ID header required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, router := newTestHandler(t)

			m.lifecycle.EXPECT().Transition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			w := makeRequest(router, "POST", "/api/v1/operator/incidents/"+uuid.NewString()+"/status",
				jsonBody(t, StatusChangeRequest{Status: "VERIFIED"}), tt.headers)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestChangeIncidentStatus_BearerToken(t *testing.T) {
	m, router := newTestHandler(t)
	incident := testIncident(models.StatusDismissed)

	m.lifecycle.EXPECT().Transition(gomock.Any(), incident.ID, models.StatusDismissed, "op-2").Return(incident, nil)

	w := makeRequest(router, "POST", "/api/v1/operator/incidents/"+incident.ID.String()+"/status",
		jsonBody(t, StatusChangeRequest{Status: "DISMISSED"}),
		map[string]string{"Authorization": "Bearer test-api-key", "X-Actor-ID": "op-2"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangeIncidentStatus_InvalidBody(t *testing.T) {
	m, router := newTestHandler(t)

	m.lifecycle.EXPECT().Transition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/operator/incidents/"+uuid.NewString()+"/status",
		jsonBody(t, StatusChangeRequest{Status: "REOPENED"}), operatorHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = makeRequest(router, "POST", "/api/v1/operator/incidents/not-a-uuid/status",
		jsonBody(t, StatusChangeRequest{Status: "VERIFIED"}), operatorHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
