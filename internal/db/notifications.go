package db

import (
	"context"
	"fmt"
	"time"

	"mill-alert-service/internal/models"
)

// CreateNotification inserts one delivery record.
func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	query := `
	INSERT INTO notifications (
		id, alert_id, channel, recipient_id, subject, body, status, last_error, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := d.Pool.Exec(ctx, query,
		n.ID, n.AlertID, n.Channel, n.RecipientID, n.Subject, n.Body, n.Status, n.LastError, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// UpdateNotificationStatus finalizes a delivery record after the send attempt.
func (d *DB) UpdateNotificationStatus(ctx context.Context, id, status, lastError string, sentAt time.Time) error {
	query := `
	UPDATE notifications
	SET status = $2, last_error = $3,
	    sent_at = CASE WHEN $2 = 'sent' THEN $4 ELSE sent_at END
	WHERE id = $1`
	tag, err := d.Pool.Exec(ctx, query, id, status, lastError, sentAt)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no notification updated for id %s", id)
	}
	return nil
}

// GetNotificationsByRecipient returns a recipient's delivery records, newest
// first. For the IN_APP channel these rows are the user's in-app feed.
func (d *DB) GetNotificationsByRecipient(ctx context.Context, recipientID int64, limit, offset int) ([]models.Notification, error) {
	query := `
	SELECT id, alert_id, channel, recipient_id, subject, body, status, last_error, created_at, sent_at
	FROM notifications
	WHERE recipient_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`
	rows, err := d.Pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications for recipient %d: %w", recipientID, err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var lastError *string
		err := rows.Scan(
			&n.ID, &n.AlertID, &n.Channel, &n.RecipientID, &n.Subject, &n.Body,
			&n.Status, &lastError, &n.CreatedAt, &n.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if lastError != nil {
			n.LastError = *lastError
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
