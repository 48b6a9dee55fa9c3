package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/config"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
	"mill-alert-service/pkg/sms"
)

// SMS delivers notifications through the Twilio gateway, rate limited so a
// burst of escalations cannot trip the account.
type SMS struct {
	cfg     config.Config
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewSMS(cfg config.Config, logger *logging.Logger) *SMS {
	return &SMS{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.SMS.RatePerSec)), cfg.SMS.RatePerSec),
	}
}

func (s *SMS) Send(ctx context.Context, payload models.NotificationPayload) error {
	if payload.Recipient.Phone == "" {
		return fmt.Errorf("no phone number for recipient %d", payload.Recipient.ID)
	}
	if s.cfg.SMS.AccountSID == "" || s.cfg.SMS.AuthToken == "" || s.cfg.SMS.FromNumber == "" {
		return fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit wait failed: %w", err)
	}

	body := alertconfig.Message(payload.AlertType, payload.Context, models.ChannelSMS)
	if err := sms.Send(s.cfg.SMS.AccountSID, s.cfg.SMS.AuthToken, s.cfg.SMS.FromNumber, payload.Recipient.Phone, body); err != nil {
		return err
	}
	return nil
}
