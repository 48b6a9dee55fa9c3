package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
)

type stubAdapter struct {
	mu    sync.Mutex
	calls int
	err   error
	panic bool
	delay time.Duration
}

func (a *stubAdapter) Send(ctx context.Context, payload models.NotificationPayload) error {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.panic {
		panic("adapter exploded")
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return a.err
}

func (a *stubAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type memNotifStore struct {
	mu         sync.Mutex
	created    []models.Notification
	updated    map[string]string
	lastErrors map[string]string
	createErr  error
}

func newMemNotifStore() *memNotifStore {
	return &memNotifStore{
		updated:    make(map[string]string),
		lastErrors: make(map[string]string),
	}
}

func (s *memNotifStore) CreateNotification(ctx context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, n)
	return nil
}

func (s *memNotifStore) UpdateNotificationStatus(ctx context.Context, id, status, lastError string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[id] = status
	s.lastErrors[id] = lastError
	return nil
}

func (s *memNotifStore) statuses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.updated))
	for k, v := range s.updated {
		out[k] = v
	}
	return out
}

func testPayload() models.NotificationPayload {
	return models.NotificationPayload{
		Recipient: models.Recipient{ID: 42, Email: "op@mill.example"},
		AlertID:   "alert-1",
		AlertType: models.AlertQCFailure,
		Severity:  models.SeverityCritical,
		Title:     "[CRITICAL] QC Failure",
		Context:   models.AlertContext{MillID: 3, Summary: "iron below spec"},
	}
}

func TestSendMultiFanOutIsolation(t *testing.T) {
	pushA := &stubAdapter{}
	smsA := &stubAdapter{err: errors.New("gateway rejected")}
	emailA := &stubAdapter{}
	store := newMemNotifStore()
	d := New(map[models.Channel]Adapter{
		models.ChannelPush:  pushA,
		models.ChannelSMS:   smsA,
		models.ChannelEmail: emailA,
	}, store, logging.Discard(), time.Second)

	results := d.SendMulti(context.Background(), []models.Channel{models.ChannelPush, models.ChannelSMS, models.ChannelEmail}, testPayload())

	assert.Equal(t, map[models.Channel]bool{
		models.ChannelPush:  true,
		models.ChannelSMS:   false,
		models.ChannelEmail: true,
	}, results)
	assert.Equal(t, 1, pushA.callCount())
	assert.Equal(t, 1, smsA.callCount())
	assert.Equal(t, 1, emailA.callCount())
}

func TestSendMultiPanicIsolation(t *testing.T) {
	ok := &stubAdapter{}
	bad := &stubAdapter{panic: true}
	d := New(map[models.Channel]Adapter{
		models.ChannelEmail: ok,
		models.ChannelSMS:   bad,
	}, newMemNotifStore(), logging.Discard(), time.Second)

	results := d.SendMulti(context.Background(), []models.Channel{models.ChannelEmail, models.ChannelSMS}, testPayload())

	assert.True(t, results[models.ChannelEmail])
	assert.False(t, results[models.ChannelSMS])
}

func TestSendTimeoutDoesNotStallJoin(t *testing.T) {
	hung := &stubAdapter{delay: 5 * time.Second}
	fast := &stubAdapter{}
	d := New(map[models.Channel]Adapter{
		models.ChannelPush:  hung,
		models.ChannelEmail: fast,
	}, newMemNotifStore(), logging.Discard(), 50*time.Millisecond)

	start := time.Now()
	results := d.SendMulti(context.Background(), []models.Channel{models.ChannelPush, models.ChannelEmail}, testPayload())
	elapsed := time.Since(start)

	assert.False(t, results[models.ChannelPush])
	assert.True(t, results[models.ChannelEmail])
	assert.Less(t, elapsed, time.Second, "join must return at the timeout, not the adapter's pace")
}

func TestSendUnknownChannel(t *testing.T) {
	d := New(map[models.Channel]Adapter{}, newMemNotifStore(), logging.Discard(), time.Second)
	assert.False(t, d.Send(context.Background(), models.ChannelSMS, testPayload()))
}

func TestSendRecordsDelivery(t *testing.T) {
	store := newMemNotifStore()
	d := New(map[models.Channel]Adapter{
		models.ChannelEmail: &stubAdapter{},
		models.ChannelSMS:   &stubAdapter{err: errors.New("no signal")},
	}, store, logging.Discard(), time.Second)

	assert.True(t, d.Send(context.Background(), models.ChannelEmail, testPayload()))
	assert.False(t, d.Send(context.Background(), models.ChannelSMS, testPayload()))

	require.Len(t, store.created, 2)
	assert.Equal(t, models.NotificationPending, store.created[0].Status)
	assert.Equal(t, "alert-1", store.created[0].AlertID)
	assert.NotEmpty(t, store.created[0].Body)

	statuses := store.statuses()
	assert.Equal(t, models.NotificationSent, statuses[store.created[0].ID])
	assert.Equal(t, models.NotificationFailed, statuses[store.created[1].ID])

	// a sent record carries no error text, a failed one carries the cause
	assert.Empty(t, store.lastErrors[store.created[0].ID])
	assert.Equal(t, "no signal", store.lastErrors[store.created[1].ID])
}

func TestInAppSendIsThePersistedRecord(t *testing.T) {
	store := newMemNotifStore()
	store.createErr = errors.New("db down")
	d := New(map[models.Channel]Adapter{
		models.ChannelInApp: &stubAdapter{},
	}, store, logging.Discard(), time.Second)

	// in-app delivery is the record; no record means failure
	assert.False(t, d.Send(context.Background(), models.ChannelInApp, testPayload()))

	store.createErr = nil
	assert.True(t, d.Send(context.Background(), models.ChannelInApp, testPayload()))
}
