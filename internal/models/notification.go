package models

import "time"

// Recipient is a concrete delivery target resolved from a role name by the
// identity directory, with per-channel contact data. Any missing field is a
// delivery failure for that channel only.
type Recipient struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// NotificationPayload is one formatted message addressed to one recipient.
// Channel-specific bodies are rendered from AlertType and Context at send time.
type NotificationPayload struct {
	Recipient Recipient         `json:"recipient"`
	AlertID   string            `json:"alert_id"`
	AlertType AlertType         `json:"alert_type"`
	Severity  Severity          `json:"severity"`
	Title     string            `json:"title"`
	Link      string            `json:"link,omitempty"`
	Context   AlertContext      `json:"context"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Notification delivery statuses.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is the persisted delivery record for one channel send. For the
// IN_APP channel this record is the notification itself: the user's in-app
// feed is a query over these rows.
type Notification struct {
	ID          string     `json:"id"`
	AlertID     string     `json:"alert_id"`
	Channel     Channel    `json:"channel"`
	RecipientID int64      `json:"recipient_id"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}
