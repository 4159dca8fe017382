package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/service"
)

type ReportRepository struct {
	db *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) service.ReportRepository {
	return &ReportRepository{db: db}
}

// Create сохраняет сообщение пассажира в журнал
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	userID, _ := report.Reporter.UserID()
	anonID, _ := report.Reporter.AnonID()

	query := `
		INSERT INTO rider_reports (agency_id, route_id, direction_id, stop_id, type, severity, user_id, anon_id, source, details, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id;
	`
	err := r.db.QueryRow(ctx, query,
		report.Key.AgencyID,
		report.Key.RouteID,
		report.Key.DirectionID,
		report.Key.StopID,
		string(report.Key.Type),
		report.Severity,
		nullableString(userID),
		nullableString(anonID),
		report.Source,
		nullableString(report.Details),
		report.CreatedAt,
		report.ExpiresAt,
	).Scan(&report.ID)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// ListByKeySince возвращает сообщения по ключу дедупликации начиная с since
func (r *ReportRepository) ListByKeySince(ctx context.Context, key models.DedupKey, since time.Time) ([]*models.Report, error) {
	query := `
		SELECT
			id,
			severity,
			user_id,
			anon_id,
			source,
			COALESCE(details, ''),
			created_at,
			expires_at
		FROM rider_reports
		WHERE agency_id = $1
			AND route_id = $2
			AND direction_id = $3
			AND stop_id = $4
			AND type = $5
			AND created_at >= $6
		ORDER BY created_at;
	`
	rows, err := r.db.Query(ctx, query,
		key.AgencyID, key.RouteID, key.DirectionID, key.StopID, string(key.Type), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports by key: %w", err)
	}
	defer rows.Close()

	reports := make([]*models.Report, 0)
	for rows.Next() {
		report := &models.Report{Key: key}
		var userID, anonID *string
		err := rows.Scan(
			&report.ID,
			&report.Severity,
			&userID,
			&anonID,
			&report.Source,
			&report.Details,
			&report.CreatedAt,
			&report.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		switch {
		case userID != nil:
			report.Reporter = models.AuthenticatedReporter(*userID)
		case anonID != nil:
			report.Reporter = models.AnonymousReporter(*anonID)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error report iteration: %w", err)
	}
	return reports, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
