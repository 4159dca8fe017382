package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/service"
)

// openIncidentIndex - частичный уникальный индекс "один открытый инцидент на ключ"
const openIncidentIndex = "incidents_one_open_per_key_idx"

const incidentColumns = `
	id,
	agency_id,
	route_id,
	direction_id,
	stop_id,
	type,
	status,
	score,
	confidence,
	confirmations_count,
	last_report_at,
	report_ids,
	status_changed_by,
	status_changed_at,
	created_at,
	updated_at`

const keyCondition = `agency_id = $1 AND route_id = $2 AND direction_id = $3 AND stop_id = $4 AND type = $5`

type IncidentRepository struct {
	db *pgxpool.Pool
}

func NewIncidentRepository(db *pgxpool.Pool) service.IncidentRepository {
	return &IncidentRepository{db: db}
}

// FindOpenByKeySince ищет открытый инцидент по ключу, обновлённый не раньше since
func (r *IncidentRepository) FindOpenByKeySince(ctx context.Context, key models.DedupKey, since time.Time) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE ` + keyCondition + `
			AND status IN ('UNVERIFIED', 'VERIFIED')
			AND last_report_at >= $6
		ORDER BY last_report_at DESC
		LIMIT 1;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, keyArgs(key, since)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open incident: %w", err)
	}
	return incident, nil
}

// FindByReportID ищет инцидент, к которому уже привязано сообщение (в любом статусе)
func (r *IncidentRepository) FindByReportID(ctx context.Context, reportID uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE report_ids @> ARRAY[$1::uuid]
		ORDER BY created_at DESC
		LIMIT 1;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, reportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find incident by report id: %w", err)
	}
	return incident, nil
}

// Create в одной транзакции закрывает устаревшие открытые инциденты по ключу и вставляет новый
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident, staleBefore time.Time) ([]models.RetiredIncident, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	retire := `
		WITH stale AS (
			SELECT id AS stale_id, status AS previous_status
			FROM incidents
			WHERE ` + keyCondition + `
				AND status IN ('UNVERIFIED', 'VERIFIED')
				AND last_report_at < $6
			FOR UPDATE
		)
		UPDATE incidents SET
			status = CASE WHEN status = 'VERIFIED' THEN 'HANDLED' ELSE 'DISMISSED' END,
			status_changed_by = $7,
			status_changed_at = NOW(),
			updated_at = NOW()
		FROM stale
		WHERE id = stale.stale_id
		RETURNING stale.previous_status, ` + incidentColumns + `;
	`
	args := append(keyArgs(incident.DedupKey, staleBefore), models.SystemActor)
	rows, err := tx.Query(ctx, retire, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to retire stale incidents: %w", err)
	}
	retired := make([]models.RetiredIncident, 0)
	for rows.Next() {
		var previous string
		retiredIncident, err := scanIncident(rows, &previous)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan retired incident: %w", err)
		}
		retired = append(retired, models.RetiredIncident{
			Incident:       retiredIncident,
			PreviousStatus: models.IncidentStatus(previous),
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to retire stale incidents: %w", err)
	}

	insert := `
		INSERT INTO incidents (agency_id, route_id, direction_id, stop_id, type, status, score, confidence, confirmations_count, last_report_at, report_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at;
	`
	err = tx.QueryRow(ctx, insert,
		incident.AgencyID,
		incident.RouteID,
		incident.DirectionID,
		incident.StopID,
		string(incident.Type),
		string(incident.Status),
		incident.Score,
		string(incident.Confidence),
		incident.ConfirmationsCount,
		incident.LastReportAt,
		incident.ReportIDs,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		if isOpenIncidentViolation(err) {
			return nil, models.ErrOpenIncidentExists
		}
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isOpenIncidentViolation(err) {
			return nil, models.ErrOpenIncidentExists
		}
		return nil, fmt.Errorf("failed to commit incident creation: %w", err)
	}
	return retired, nil
}

// UpdateMetrics обновляет метрики открытого инцидента и дописывает id сообщения
func (r *IncidentRepository) UpdateMetrics(ctx context.Context, id uuid.UUID, m models.IncidentMetrics, reportID uuid.UUID) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			confirmations_count = $2,
			score = $3,
			confidence = $4,
			last_report_at = $5,
			report_ids = array_append(report_ids, $6::uuid),
			updated_at = NOW()
		WHERE id = $1
			AND status IN ('UNVERIFIED', 'VERIFIED')
			AND NOT ($6::uuid = ANY(report_ids))
		RETURNING ` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query,
		id,
		m.ConfirmationsCount,
		m.Score,
		string(m.Confidence),
		m.LastReportAt,
		reportID,
	))
	if err == nil {
		return incident, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update incident metrics: %w", err)
	}

	// Ни одна строка не обновлена: сообщение уже привязано или инцидент закрыт
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.HasReport(reportID) {
		return current, nil
	}
	return nil, models.ErrIncidentClosed
}

// UpdateStatus меняет статус с проверкой текущего значения
func (r *IncidentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.IncidentStatus, actorID string) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			status = $3,
			status_changed_by = $4,
			status_changed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id, string(from), string(to), actorID))
	if err == nil {
		return incident, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update incident status: %w", err)
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, models.ErrStatusChanged
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// List возвращает ленту инцидентов по фильтру, новые первыми
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	var (
		conditions []string
		args       []any
	)
	addCondition := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.AgencyID != "" {
		addCondition("agency_id = $%d", filter.AgencyID)
	}
	if filter.RouteID != "" {
		addCondition("route_id = $%d", filter.RouteID)
	}
	if filter.Type != "" {
		addCondition("type = $%d", string(filter.Type))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		addCondition("status = ANY($%d)", statuses)
	}
	if !filter.Since.IsZero() {
		addCondition("last_report_at >= $%d", filter.Since)
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(` ORDER BY last_report_at DESC LIMIT $%d;`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

// scanIncident читает колонки incidentColumns; leading - колонки перед ними в RETURNING
func scanIncident(row pgx.Row, leading ...any) (*models.Incident, error) {
	incident := &models.Incident{}
	var (
		reportType, status, confidence string
		changedBy                      *string
	)
	dest := append(leading,
		&incident.ID,
		&incident.AgencyID,
		&incident.RouteID,
		&incident.DirectionID,
		&incident.StopID,
		&reportType,
		&status,
		&incident.Score,
		&confidence,
		&incident.ConfirmationsCount,
		&incident.LastReportAt,
		&incident.ReportIDs,
		&changedBy,
		&incident.StatusChangedAt,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	incident.Type = models.ReportType(reportType)
	incident.Status = models.IncidentStatus(status)
	incident.Confidence = models.Confidence(confidence)
	if changedBy != nil {
		incident.StatusChangedBy = *changedBy
	}
	return incident, nil
}

func keyArgs(key models.DedupKey, since time.Time) []any {
	return []any{key.AgencyID, key.RouteID, key.DirectionID, key.StopID, string(key.Type), since}
}

func isOpenIncidentViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == openIncidentIndex
}
