package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mill-alert-service/internal/escalation"
	"mill-alert-service/internal/models"
)

const alertColumns = `
	id, type, severity, category, status, current_level, created_at, updated_at,
	last_level_notified_at, acknowledged_at, acknowledged_by, resolved_at,
	resolved_by, context, escalation_history`

// CreateAlert inserts a new alert record.
func (d *DB) CreateAlert(ctx context.Context, alert models.Alert) error {
	ctxJSON, err := json.Marshal(alert.Context)
	if err != nil {
		return fmt.Errorf("failed to encode alert context: %w", err)
	}
	histJSON, err := json.Marshal(alert.History)
	if err != nil {
		return fmt.Errorf("failed to encode escalation history: %w", err)
	}

	query := `
	INSERT INTO alerts (
		id, type, severity, category, status, current_level, created_at, updated_at,
		last_level_notified_at, context, escalation_history
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = d.Pool.Exec(ctx, query,
		alert.ID,
		alert.Type,
		alert.Severity,
		alert.Category,
		alert.Status,
		alert.CurrentLevel,
		alert.CreatedAt,
		alert.UpdatedAt,
		alert.LastLevelNotifiedAt,
		ctxJSON,
		histJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches one alert by ID.
func (d *DB) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	alert, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Alert{}, escalation.ErrAlertNotFound
		}
		return models.Alert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return alert, nil
}

// ListOpenAlerts returns every PENDING or ESCALATED alert, oldest first, so
// one tick processes alerts in creation order.
func (d *DB) ListOpenAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + `
	FROM alerts
	WHERE status IN ('PENDING', 'ESCALATED')
	ORDER BY created_at ASC`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// ListAlertsByMill fetches a mill's alerts with pagination, newest first.
func (d *DB) ListAlertsByMill(ctx context.Context, millID int64, limit, offset int) ([]models.Alert, int, error) {
	var total int
	countQ := `SELECT COUNT(*) FROM alerts WHERE (context->>'mill_id')::bigint = $1`
	if err := d.Pool.QueryRow(ctx, countQ, millID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + `
	FROM alerts
	WHERE (context->>'mill_id')::bigint = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`

	rows, err := d.Pool.Query(ctx, query, millID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts for mill %d: %w", millID, err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, total, rows.Err()
}

// AcknowledgeAlert is a conditional write: it matches only while the alert is
// still open, so an acknowledgment racing a tick settles on whichever write
// lands first.
func (d *DB) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	query := `
	UPDATE alerts
	SET status = 'ACKNOWLEDGED', acknowledged_at = $2, acknowledged_by = $3, updated_at = $2
	WHERE id = $1 AND status IN ('PENDING', 'ESCALATED')`
	tag, err := d.Pool.Exec(ctx, query, id, at, userID)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// BeginAlertWork transitions ACKNOWLEDGED -> IN_PROGRESS.
func (d *DB) BeginAlertWork(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	query := `
	UPDATE alerts
	SET status = 'IN_PROGRESS', updated_at = $2
	WHERE id = $1 AND status = 'ACKNOWLEDGED'`
	tag, err := d.Pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to begin work on alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResolveAlert closes an alert from any non-terminal status.
func (d *DB) ResolveAlert(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	query := `
	UPDATE alerts
	SET status = 'RESOLVED', resolved_at = $2, resolved_by = $3, updated_at = $2
	WHERE id = $1 AND status <> 'RESOLVED'`
	tag, err := d.Pool.Exec(ctx, query, id, at, userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// EscalateAlert advances the level with a compare-and-set on both status and
// the level the tick observed.
func (d *DB) EscalateAlert(ctx context.Context, id string, fromLevel int, rec models.EscalationRecord) (bool, error) {
	recJSON, err := json.Marshal([]models.EscalationRecord{rec})
	if err != nil {
		return false, fmt.Errorf("failed to encode escalation record: %w", err)
	}

	query := `
	UPDATE alerts
	SET status = 'ESCALATED',
	    current_level = current_level + 1,
	    last_level_notified_at = $2,
	    escalation_history = escalation_history || $3::jsonb,
	    updated_at = $2
	WHERE id = $1 AND status IN ('PENDING', 'ESCALATED') AND current_level = $4`
	tag, err := d.Pool.Exec(ctx, query, id, rec.NotifiedAt, recJSON, fromLevel)
	if err != nil {
		return false, fmt.Errorf("failed to escalate alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAlert(row pgx.Row) (models.Alert, error) {
	var a models.Alert
	var ctxJSON, histJSON []byte
	var ackBy, resBy *string

	err := row.Scan(
		&a.ID,
		&a.Type,
		&a.Severity,
		&a.Category,
		&a.Status,
		&a.CurrentLevel,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastLevelNotifiedAt,
		&a.AcknowledgedAt,
		&ackBy,
		&a.ResolvedAt,
		&resBy,
		&ctxJSON,
		&histJSON,
	)
	if err != nil {
		return models.Alert{}, err
	}
	if ackBy != nil {
		a.AcknowledgedBy = *ackBy
	}
	if resBy != nil {
		a.ResolvedBy = *resBy
	}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &a.Context); err != nil {
			return models.Alert{}, fmt.Errorf("failed to decode alert context: %w", err)
		}
	}
	if len(histJSON) > 0 {
		if err := json.Unmarshal(histJSON, &a.History); err != nil {
			return models.Alert{}, fmt.Errorf("failed to decode escalation history: %w", err)
		}
	}
	return a, nil
}
