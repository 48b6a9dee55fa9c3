// Package dispatch fans a notification out to one or more channels. Channel
// failures are isolated: an adapter error, panic, or timeout turns into a
// false result for that channel and nothing else.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
)

// Adapter sends one payload over one channel's transport.
type Adapter interface {
	Send(ctx context.Context, payload models.NotificationPayload) error
}

// NotificationStore persists delivery records. For IN_APP the record is the
// delivery; for other channels it is the audit trail.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id, status, lastError string, sentAt time.Time) error
}

// Dispatcher delivers payloads through per-channel adapters.
type Dispatcher struct {
	adapters map[models.Channel]Adapter
	store    NotificationStore
	logger   *logging.Logger
	timeout  time.Duration
}

func New(adapters map[models.Channel]Adapter, store NotificationStore, logger *logging.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{adapters: adapters, store: store, logger: logger, timeout: timeout}
}

// Send attempts delivery on one channel. It never returns an error or panics:
// any failure is logged, recorded on the delivery row, and reported as false.
func (d *Dispatcher) Send(ctx context.Context, channel models.Channel, payload models.NotificationPayload) bool {
	rec := models.Notification{
		ID:          uuid.NewString(),
		AlertID:     payload.AlertID,
		Channel:     channel,
		RecipientID: payload.Recipient.ID,
		Subject:     payload.Title,
		Body:        alertconfig.Message(payload.AlertType, payload.Context, channel),
		Status:      models.NotificationPending,
		CreatedAt:   time.Now(),
	}
	recorded := true
	if err := d.store.CreateNotification(ctx, rec); err != nil {
		d.logger.Errorf("CreateNotification failed for alert %s via %s: %v", payload.AlertID, channel, err)
		recorded = false
		if channel == models.ChannelInApp {
			// sending in-app means persisting the record
			return false
		}
	}

	err := d.attempt(ctx, channel, payload)

	final := models.NotificationSent
	lastError := ""
	if err != nil {
		final = models.NotificationFailed
		lastError = err.Error()
		d.logger.Errorf("Dispatch error for alert %s via %s to recipient %d: %v", payload.AlertID, channel, payload.Recipient.ID, err)
	}
	if recorded {
		if uerr := d.store.UpdateNotificationStatus(ctx, rec.ID, final, lastError, time.Now()); uerr != nil {
			d.logger.Errorf("UpdateNotificationStatus failed for notification %s: %v", rec.ID, uerr)
		}
	}
	return err == nil
}

// SendMulti dispatches to all channels concurrently and joins before
// returning. Each channel's result is independent; a failing or slow channel
// never cancels the others.
func (d *Dispatcher) SendMulti(ctx context.Context, channels []models.Channel, payload models.NotificationPayload) map[models.Channel]bool {
	results := make(map[models.Channel]bool, len(channels))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch models.Channel) {
			defer wg.Done()
			ok := d.Send(ctx, ch, payload)
			mu.Lock()
			results[ch] = ok
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return results
}

// attempt runs the adapter under a bounded timeout with panic recovery.
func (d *Dispatcher) attempt(ctx context.Context, channel models.Channel, payload models.NotificationPayload) (err error) {
	adapter, ok := d.adapters[channel]
	if !ok {
		return fmt.Errorf("no adapter registered for channel %s", channel)
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("adapter for %s panicked: %v", channel, r)
			}
		}()
		done <- adapter.Send(sendCtx, payload)
	}()

	select {
	case err = <-done:
		return err
	case <-sendCtx.Done():
		// a hung adapter must not stall the join
		return fmt.Errorf("send via %s timed out after %s: %w", channel, d.timeout, sendCtx.Err())
	}
}
