package db

import (
	"context"
	"fmt"

	"mill-alert-service/internal/models"
)

// Resolve maps a role at a mill to active users with their contact data,
// implementing the directory port. Roles held globally (mill_id NULL in
// user_roles) match any mill; a millID of 0 matches only global holders.
func (d *DB) Resolve(ctx context.Context, role string, millID int64) ([]models.Recipient, error) {
	query := `
	SELECT u.id, u.name, r.role, COALESCE(u.email, ''), COALESCE(u.phone, ''),
	       COALESCE(u.telegram_chat_id, 0)
	FROM users u
	JOIN user_roles r ON r.user_id = u.id
	WHERE r.role = $1
	  AND (r.mill_id = $2 OR r.mill_id IS NULL)
	  AND u.status = 'active'`

	rows, err := d.Pool.Query(ctx, query, role, millID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role %s for mill %d: %w", role, millID, err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.Role, &r.Email, &r.Phone, &r.TelegramChatID); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
