package providers

import (
	"context"
	"fmt"

	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/config"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
	"mill-alert-service/pkg/email"
)

// Email delivers notifications over SMTP.
type Email struct {
	cfg    config.Config
	logger *logging.Logger
}

func NewEmail(cfg config.Config, logger *logging.Logger) *Email {
	return &Email{cfg: cfg, logger: logger}
}

func (e *Email) Send(ctx context.Context, payload models.NotificationPayload) error {
	if payload.Recipient.Email == "" {
		return fmt.Errorf("no email address for recipient %d", payload.Recipient.ID)
	}
	if e.cfg.Email.SMTPServer == "" || e.cfg.Email.SMTPPort == 0 || e.cfg.Email.Username == "" || e.cfg.Email.Password == "" {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	body := alertconfig.Message(payload.AlertType, payload.Context, models.ChannelEmail)
	err := email.Send(
		e.cfg.Email.SMTPServer,
		e.cfg.Email.SMTPPort,
		e.cfg.Email.Username,
		e.cfg.Email.Password,
		payload.Recipient.Email,
		payload.Title,
		body,
	)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", payload.Recipient.Email, err)
	}
	return nil
}
