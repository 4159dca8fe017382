//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Запуск: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func newIntegrationDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	migrationURL := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	migrationURL = strings.Replace(migrationURL, "postgresql://", "pgx5://", 1)
	m, err := migrate.New("file://../../migrations", migrationURL)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	m.Close()

	db, err := postgres.NewPostgresDB(context.Background(), databaseURL)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

// uniqueKey изолирует тесты друг от друга без очистки таблиц
func uniqueKey() models.DedupKey {
	return models.DedupKey{
		AgencyID:    "it-" + uuid.NewString(),
		RouteID:     "Q",
		DirectionID: 1,
		StopID:      "R16",
		Type:        models.ReportTypeDelay,
	}
}

func newIntegrationIncident(key models.DedupKey, lastReportAt time.Time, reportID uuid.UUID) *models.Incident {
	return &models.Incident{
		DedupKey:           key,
		Status:             models.StatusUnverified,
		Score:              55,
		Confidence:         models.ConfidenceMedium,
		ConfirmationsCount: 1,
		LastReportAt:       lastReportAt,
		ReportIDs:          []uuid.UUID{reportID},
	}
}

func TestIntegration_IncidentCreateEnforcesOneOpenPerKey(t *testing.T) {
	repo := NewIncidentRepository(newIntegrationDB(t))
	ctx := context.Background()
	key := uniqueKey()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := newIntegrationIncident(key, now, uuid.New())
	retired, err := repo.Create(ctx, first, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, retired)
	assert.NotEqual(t, uuid.Nil, first.ID)

	_, err = repo.Create(ctx, newIntegrationIncident(key, now, uuid.New()), now.Add(-30*time.Minute))
	assert.ErrorIs(t, err, models.ErrOpenIncidentExists)
}

func TestIntegration_IncidentCreateRetiresStale(t *testing.T) {
	repo := NewIncidentRepository(newIntegrationDB(t))
	ctx := context.Background()
	key := uniqueKey()
	now := time.Now().UTC().Truncate(time.Microsecond)

	stale := newIntegrationIncident(key, now.Add(-time.Hour), uuid.New())
	_, err := repo.Create(ctx, stale, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, stale.ID, models.StatusUnverified, models.StatusVerified, "op-1")
	require.NoError(t, err)

	fresh := newIntegrationIncident(key, now, uuid.New())
	retired, err := repo.Create(ctx, fresh, now.Add(-30*time.Minute))
	require.NoError(t, err)

	require.Len(t, retired, 1)
	assert.Equal(t, stale.ID, retired[0].Incident.ID)
	assert.Equal(t, models.StatusVerified, retired[0].PreviousStatus)
	assert.Equal(t, models.StatusHandled, retired[0].Incident.Status)
	assert.Equal(t, models.SystemActor, retired[0].Incident.StatusChangedBy)

	open, err := repo.FindOpenByKeySince(ctx, key, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, fresh.ID, open.ID)
}

func TestIntegration_IncidentUpdateMetrics(t *testing.T) {
	repo := NewIncidentRepository(newIntegrationDB(t))
	ctx := context.Background()
	key := uniqueKey()
	now := time.Now().UTC().Truncate(time.Microsecond)

	firstReport := uuid.New()
	inc := newIntegrationIncident(key, now, firstReport)
	_, err := repo.Create(ctx, inc, now.Add(-30*time.Minute))
	require.NoError(t, err)

	secondReport := uuid.New()
	metrics := models.IncidentMetrics{
		ConfirmationsCount: 2,
		Score:              70,
		Confidence:         models.ConfidenceHigh,
		LastReportAt:       now.Add(time.Minute),
	}
	updated, err := repo.UpdateMetrics(ctx, inc.ID, metrics, secondReport)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{firstReport, secondReport}, updated.ReportIDs)
	assert.Equal(t, 70.0, updated.Score)

	// Повтор с тем же сообщением ничего не меняет
	again, err := repo.UpdateMetrics(ctx, inc.ID, models.IncidentMetrics{ConfirmationsCount: 9}, secondReport)
	require.NoError(t, err)
	assert.Equal(t, 2, again.ConfirmationsCount)
	assert.Len(t, again.ReportIDs, 2)

	attached, err := repo.FindByReportID(ctx, secondReport)
	require.NoError(t, err)
	require.NotNil(t, attached)
	assert.Equal(t, inc.ID, attached.ID)

	_, err = repo.UpdateStatus(ctx, inc.ID, models.StatusUnverified, models.StatusDismissed, "op-1")
	require.NoError(t, err)
	_, err = repo.UpdateMetrics(ctx, inc.ID, metrics, uuid.New())
	assert.ErrorIs(t, err, models.ErrIncidentClosed)
}

func TestIntegration_IncidentUpdateStatus(t *testing.T) {
	repo := NewIncidentRepository(newIntegrationDB(t))
	ctx := context.Background()
	key := uniqueKey()
	now := time.Now().UTC().Truncate(time.Microsecond)

	inc := newIntegrationIncident(key, now, uuid.New())
	_, err := repo.Create(ctx, inc, now.Add(-30*time.Minute))
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(ctx, inc.ID, models.StatusUnverified, models.StatusVerified, "op-7")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, updated.Status)
	assert.Equal(t, "op-7", updated.StatusChangedBy)
	require.NotNil(t, updated.StatusChangedAt)

	_, err = repo.UpdateStatus(ctx, inc.ID, models.StatusUnverified, models.StatusDismissed, "op-8")
	assert.ErrorIs(t, err, models.ErrStatusChanged)

	_, err = repo.UpdateStatus(ctx, uuid.New(), models.StatusUnverified, models.StatusVerified, "op-8")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIntegration_ReportsByKeySince(t *testing.T) {
	repo := NewReportRepository(newIntegrationDB(t))
	ctx := context.Background()
	key := uniqueKey()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := &models.Report{Key: key, Severity: 1, Reporter: models.AnonymousReporter("a"), Source: "api",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}
	fresh := &models.Report{Key: key, Severity: 2, Reporter: models.AuthenticatedReporter("u-1"), Source: "api",
		CreatedAt: now, ExpiresAt: now.Add(2 * time.Hour)}
	for _, r := range []*models.Report{old, fresh} {
		require.NoError(t, repo.Create(ctx, r))
	}

	reports, err := repo.ListByKeySince(ctx, key, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, fresh.ID, reports[0].ID)
	assert.Equal(t, "user:u-1", reports[0].Reporter.String())
}
