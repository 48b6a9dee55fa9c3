package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
	"mill-alert-service/internal/ws"
)

// InApp completes in-app delivery. The dispatcher has already persisted the
// notification record (which is the in-app inbox entry); this adapter pushes
// it live to any open dashboard sessions. A user with no open session still
// gets the notification on next load, so broadcast is best effort.
type InApp struct {
	manager *ws.Manager
	logger  *logging.Logger
}

func NewInApp(manager *ws.Manager, logger *logging.Logger) *InApp {
	return &InApp{manager: manager, logger: logger}
}

type inAppMessage struct {
	AlertID  string           `json:"alert_id"`
	Type     models.AlertType `json:"type"`
	Severity models.Severity  `json:"severity"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Link     string           `json:"link,omitempty"`
}

func (a *InApp) Send(ctx context.Context, payload models.NotificationPayload) error {
	msg := inAppMessage{
		AlertID:  payload.AlertID,
		Type:     payload.AlertType,
		Severity: payload.Severity,
		Title:    payload.Title,
		Body:     alertconfig.Message(payload.AlertType, payload.Context, models.ChannelInApp),
		Link:     payload.Link,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode in-app message: %w", err)
	}
	sent := a.manager.SendToUser(payload.Recipient.ID, data)
	if sent == 0 {
		a.logger.Debugf("No open sessions for user %d, in-app notification stored only", payload.Recipient.ID)
	}
	return nil
}
