package models

import "time"

type ActionItemStatus string

const (
	ActionPending    ActionItemStatus = "PENDING"
	ActionInProgress ActionItemStatus = "IN_PROGRESS"
	ActionCompleted  ActionItemStatus = "COMPLETED"
	ActionCancelled  ActionItemStatus = "CANCELLED"
)

// Terminal reports whether the status ends the item's lifecycle. Terminal
// items are ignored by the overdue sweep.
func (s ActionItemStatus) Terminal() bool {
	return s == ActionCompleted || s == ActionCancelled
}

// ActionItem is a trackable work item, optionally derived from an alert.
// Priority reuses the severity scale. Items are archived on completion or
// cancellation, never deleted.
type ActionItem struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Priority       Severity         `json:"priority"`
	Status         ActionItemStatus `json:"status"`
	DueDate        time.Time        `json:"due_date"`
	AssignedToID   int64            `json:"assigned_to_id"`
	MillID         int64            `json:"mill_id"`
	IsOverdue      bool             `json:"is_overdue"`
	RelatedAlertID string           `json:"related_alert_id,omitempty"`
	CreatedBy      int64            `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CompletedBy    *int64           `json:"completed_by,omitempty"`
}
