package providers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/config"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
	"mill-alert-service/internal/utils"
	"mill-alert-service/pkg/push"
)

// Push delivers short push notifications via the Telegram bot gateway. The
// recipient's linked chat ID is the push token.
type Push struct {
	cfg     config.Config
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewPush(cfg config.Config, logger *logging.Logger) *Push {
	return &Push{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Push.RatePerSec)), cfg.Push.RatePerSec),
	}
}

func (p *Push) Send(ctx context.Context, payload models.NotificationPayload) error {
	if payload.Recipient.TelegramChatID == 0 {
		return fmt.Errorf("no push token for recipient %d", payload.Recipient.ID)
	}
	if p.cfg.Push.TelegramBotToken == "" {
		return fmt.Errorf("missing push configuration: TelegramBotToken is empty")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push rate limit wait failed: %w", err)
	}

	// push carries the title only
	text := alertconfig.Message(payload.AlertType, payload.Context, models.ChannelPush)
	return utils.Retry(p.logger, 3, time.Second, func() error {
		return push.Send(ctx, p.cfg.Push.TelegramBotToken, payload.Recipient.TelegramChatID, text)
	})
}
