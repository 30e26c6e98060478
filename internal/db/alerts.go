package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"dispatch-service/internal/alerts"
	"dispatch-service/internal/models"
)

// AlertStore persists alerts in postgres. The full document lives in a JSONB
// column; filterable fields are mirrored into scalar columns on every write.
//
// Expected schema:
//
//	CREATE TABLE alerts (
//	    code        TEXT PRIMARY KEY,
//	    type        TEXT NOT NULL,
//	    severity    TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    priority    TEXT NOT NULL,
//	    reporter_id TEXT NOT NULL,
//	    lat         DOUBLE PRECISION NOT NULL,
//	    lng         DOUBLE PRECISION NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    resolved_at TIMESTAMPTZ,
//	    doc         JSONB NOT NULL
//	);
type AlertStore struct {
	db *DB
}

func NewAlertStore(db *DB) *AlertStore {
	return &AlertStore{db: db}
}

var terminalStatuses = []string{
	string(models.StatusResolved),
	string(models.StatusFalseAlarm),
	string(models.StatusCancelled),
}

func (s *AlertStore) Insert(ctx context.Context, a *models.Alert) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode alert %s: %w", a.Code, err)
	}

	query := `
	INSERT INTO alerts (code, type, severity, status, priority, reporter_id, lat, lng, created_at, resolved_at, doc)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.Pool.Exec(ctx, query,
		a.Code, a.Type, a.Severity, a.Status, a.Priority, a.ReporterID,
		a.Location.Latitude, a.Location.Longitude, a.CreatedAt, a.ResolvedAt, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("alert %s: %w", a.Code, alerts.ErrDuplicateCode)
		}
		return fmt.Errorf("failed to insert alert %s: %w", a.Code, err)
	}
	return nil
}

func (s *AlertStore) GetByCode(ctx context.Context, code string) (*models.Alert, error) {
	var doc []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT doc FROM alerts WHERE code = $1`, code).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &alerts.Error{Kind: alerts.KindNotFound, Message: fmt.Sprintf("alert %s not found", code)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %s: %w", code, err)
	}

	var a models.Alert
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("failed to decode alert %s: %w", code, err)
	}
	return &a, nil
}

func (s *AlertStore) Save(ctx context.Context, a *models.Alert) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode alert %s: %w", a.Code, err)
	}

	query := `
	UPDATE alerts
	SET type = $2, severity = $3, status = $4, priority = $5,
	    lat = $6, lng = $7, resolved_at = $8, doc = $9
	WHERE code = $1`

	tag, err := s.db.Pool.Exec(ctx, query,
		a.Code, a.Type, a.Severity, a.Status, a.Priority,
		a.Location.Latitude, a.Location.Longitude, a.ResolvedAt, doc)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", a.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return &alerts.Error{Kind: alerts.KindNotFound, Message: fmt.Sprintf("alert %s not found", a.Code)}
	}
	return nil
}

func (s *AlertStore) List(ctx context.Context, f models.ListAlertsFilter) ([]models.Alert, int, error) {
	where := ""
	args := []interface{}{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, len(args))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if f.ReporterID != "" {
		add("reporter_id = $%d", f.ReporterID)
	}

	var total int
	if err := s.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM alerts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := fmt.Sprintf("SELECT doc FROM alerts%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	list, err := scanAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func scanAlerts(rows pgx.Rows) ([]models.Alert, error) {
	var list []models.Alert
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		var a models.Alert
		if err := json.Unmarshal(doc, &a); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *AlertStore) countBy(ctx context.Context, column string) (map[string]int, error) {
	rows, err := s.db.Pool.Query(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM alerts GROUP BY %s", column, column))
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by %s: %w", column, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (s *AlertStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	raw, err := s.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[models.Status]int, len(raw))
	for k, v := range raw {
		out[models.Status(k)] = v
	}
	return out, nil
}

func (s *AlertStore) CountBySeverity(ctx context.Context) (map[models.Severity]int, error) {
	raw, err := s.countBy(ctx, "severity")
	if err != nil {
		return nil, err
	}
	out := make(map[models.Severity]int, len(raw))
	for k, v := range raw {
		out[models.Severity(k)] = v
	}
	return out, nil
}

func (s *AlertStore) CountByType(ctx context.Context) (map[models.AlertType]int, error) {
	raw, err := s.countBy(ctx, "type")
	if err != nil {
		return nil, err
	}
	out := make(map[models.AlertType]int, len(raw))
	for k, v := range raw {
		out[models.AlertType(k)] = v
	}
	return out, nil
}

func (s *AlertStore) AverageResolutionMinutes(ctx context.Context) (float64, error) {
	query := `
	SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 60), 0)
	FROM alerts
	WHERE resolved_at IS NOT NULL`

	var avg float64
	if err := s.db.Pool.QueryRow(ctx, query).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average resolution time: %w", err)
	}
	return avg, nil
}

func (s *AlertStore) ReporterCounts(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, "reporter_id")
}

func (s *AlertStore) ActiveInBounds(ctx context.Context, b alerts.Bounds) ([]models.Alert, error) {
	query := `
	SELECT doc FROM alerts
	WHERE status != ALL($1)
	  AND lat BETWEEN $2 AND $3
	  AND lng BETWEEN $4 AND $5
	ORDER BY created_at DESC`

	rows, err := s.db.Pool.Query(ctx, query, terminalStatuses, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts in bounds: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}
