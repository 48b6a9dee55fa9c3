package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mill-alert-service/internal/actionitem"
	"mill-alert-service/internal/models"
)

const actionItemColumns = `
	id, title, description, priority, status, due_date, assigned_to_id, mill_id,
	is_overdue, related_alert_id, created_by, created_at, updated_at,
	completed_at, completed_by`

// CreateActionItem inserts a new action item record.
func (d *DB) CreateActionItem(ctx context.Context, item models.ActionItem) error {
	query := `
	INSERT INTO action_items (
		id, title, description, priority, status, due_date, assigned_to_id,
		mill_id, is_overdue, related_alert_id, created_by, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)`

	_, err := d.Pool.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.Priority,
		item.Status,
		item.DueDate,
		item.AssignedToID,
		item.MillID,
		item.IsOverdue,
		item.RelatedAlertID,
		item.CreatedBy,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action item: %w", err)
	}
	return nil
}

// GetActionItem fetches one action item by ID.
func (d *DB) GetActionItem(ctx context.Context, id string) (models.ActionItem, error) {
	query := `SELECT ` + actionItemColumns + ` FROM action_items WHERE id = $1`
	item, err := scanActionItem(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.ActionItem{}, actionitem.ErrItemNotFound
		}
		return models.ActionItem{}, fmt.Errorf("failed to get action item %s: %w", id, err)
	}
	return item, nil
}

// UpdateActionItem writes the mutable fields of an item.
func (d *DB) UpdateActionItem(ctx context.Context, item models.ActionItem) error {
	query := `
	UPDATE action_items
	SET title = $2, description = $3, priority = $4, status = $5, due_date = $6,
	    assigned_to_id = $7, is_overdue = $8, updated_at = $9,
	    completed_at = $10, completed_by = $11
	WHERE id = $1`
	tag, err := d.Pool.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.Priority,
		item.Status,
		item.DueDate,
		item.AssignedToID,
		item.IsOverdue,
		item.UpdatedAt,
		item.CompletedAt,
		item.CompletedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update action item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return actionitem.ErrItemNotFound
	}
	return nil
}

// MarkOverdue flags open items past their due date. The is_overdue = false
// condition makes the sweep idempotent at any fixed now.
func (d *DB) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
	UPDATE action_items
	SET is_overdue = true, updated_at = $1
	WHERE status IN ('PENDING', 'IN_PROGRESS')
	  AND due_date < $1
	  AND is_overdue = false`
	tag, err := d.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue action items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActionItems fetches items matching the filter. Ordering is applied by
// the manager.
func (d *DB) ListActionItems(ctx context.Context, f actionitem.Filter) ([]models.ActionItem, error) {
	query := `SELECT ` + actionItemColumns + ` FROM action_items WHERE 1=1`
	args := []interface{}{}
	query, args = applyFilter(query, args, f)

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", err)
	}
	defer rows.Close()

	var items []models.ActionItem
	for rows.Next() {
		item, err := scanActionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountOverdue counts flagged items matching the filter.
func (d *DB) CountOverdue(ctx context.Context, f actionitem.Filter) (int, error) {
	query := `SELECT COUNT(*) FROM action_items WHERE is_overdue = true`
	args := []interface{}{}
	query, args = applyFilter(query, args, f)

	var total int
	if err := d.Pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count overdue action items: %w", err)
	}
	return total, nil
}

func applyFilter(query string, args []interface{}, f actionitem.Filter) (string, []interface{}) {
	if f.UserID != 0 {
		args = append(args, f.UserID)
		query += fmt.Sprintf(" AND assigned_to_id = $%d", len(args))
	}
	if f.MillID != 0 {
		args = append(args, f.MillID)
		query += fmt.Sprintf(" AND mill_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if len(f.Priorities) > 0 {
		args = append(args, f.Priorities)
		query += fmt.Sprintf(" AND priority = ANY($%d)", len(args))
	}
	return query, args
}

func scanActionItem(row pgx.Row) (models.ActionItem, error) {
	var item models.ActionItem
	var desc, relatedID *string

	err := row.Scan(
		&item.ID,
		&item.Title,
		&desc,
		&item.Priority,
		&item.Status,
		&item.DueDate,
		&item.AssignedToID,
		&item.MillID,
		&item.IsOverdue,
		&relatedID,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.CompletedAt,
		&item.CompletedBy,
	)
	if err != nil {
		return models.ActionItem{}, err
	}
	if desc != nil {
		item.Description = *desc
	}
	if relatedID != nil {
		item.RelatedAlertID = *relatedID
	}
	return item, nil
}
