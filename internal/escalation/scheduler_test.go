package escalation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mill-alert-service/internal/dispatch"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
)

// memStore is an in-memory Store with the same conditional-write semantics as
// the database implementation.
type memStore struct {
	mu       sync.Mutex
	alerts   map[string]models.Alert
	escalerr map[string]error
	onGet    func(id string)
}

func newMemStore() *memStore {
	return &memStore{
		alerts:   make(map[string]models.Alert),
		escalerr: make(map[string]error),
	}
}

func (s *memStore) CreateAlert(ctx context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

func (s *memStore) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	if s.onGet != nil {
		s.onGet(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, ErrAlertNotFound
	}
	return alert, nil
}

func (s *memStore) ListOpenAlerts(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.Status.Open() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListAlertsByMill(ctx context.Context, millID int64, limit, offset int) ([]models.Alert, int, error) {
	return nil, 0, nil
}

func (s *memStore) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || !a.Status.Open() {
		return false, nil
	}
	a.Status = models.AlertAcknowledged
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = userID
	s.alerts[id] = a
	return true, nil
}

func (s *memStore) BeginAlertWork(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != models.AlertAcknowledged {
		return false, nil
	}
	a.Status = models.AlertInProgress
	s.alerts[id] = a
	return true, nil
}

func (s *memStore) ResolveAlert(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status == models.AlertResolved {
		return false, nil
	}
	a.Status = models.AlertResolved
	a.ResolvedAt = &at
	a.ResolvedBy = userID
	s.alerts[id] = a
	return true, nil
}

func (s *memStore) EscalateAlert(ctx context.Context, id string, fromLevel int, rec models.EscalationRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.escalerr[id]; err != nil {
		return false, err
	}
	a, ok := s.alerts[id]
	if !ok || !a.Status.Open() || a.CurrentLevel != fromLevel {
		return false, nil
	}
	a.Status = models.AlertEscalated
	a.CurrentLevel = fromLevel + 1
	a.LastLevelNotifiedAt = rec.NotifiedAt
	a.History = append(a.History, rec)
	s.alerts[id] = a
	return true, nil
}

func (s *memStore) get(id string) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id]
}

// stubDirectory resolves fixed recipients per role.
type stubDirectory struct {
	byRole map[string][]models.Recipient
}

func (d *stubDirectory) Resolve(ctx context.Context, role string, millID int64) ([]models.Recipient, error) {
	return d.byRole[role], nil
}

// recordingAdapter captures every payload it is asked to send.
type recordingAdapter struct {
	mu    sync.Mutex
	sends []models.NotificationPayload
}

func (a *recordingAdapter) Send(ctx context.Context, payload models.NotificationPayload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends = append(a.sends, payload)
	return nil
}

func (a *recordingAdapter) recipients() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ids []int64
	for _, p := range a.sends {
		ids = append(ids, p.Recipient.ID)
	}
	return ids
}

func (a *recordingAdapter) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends = nil
}

type nullNotifStore struct{}

func (nullNotifStore) CreateNotification(ctx context.Context, n models.Notification) error {
	return nil
}

func (nullNotifStore) UpdateNotificationStatus(ctx context.Context, id, status, lastError string, sentAt time.Time) error {
	return nil
}

type fixture struct {
	scheduler *Scheduler
	store     *memStore
	recorder  *recordingAdapter
	now       time.Time
}

func (f *fixture) advance(d time.Duration) time.Time {
	f.now = f.now.Add(d)
	return f.now
}

// newFixture wires a scheduler against in-memory collaborators. The recorder
// backs every channel, so one recipient produces one captured send per
// configured channel.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		recorder: &recordingAdapter{},
		now:      time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	adapters := map[models.Channel]dispatch.Adapter{
		models.ChannelPush:  f.recorder,
		models.ChannelSMS:   f.recorder,
		models.ChannelEmail: f.recorder,
		models.ChannelInApp: f.recorder,
	}
	d := dispatch.New(adapters, nullNotifStore{}, logging.Discard(), time.Second)
	dir := &stubDirectory{byRole: map[string][]models.Recipient{
		models.RoleMillOperator:  {{ID: 1, Name: "Operator", Email: "op@mill.example"}},
		models.RoleMillManager:   {{ID: 2, Name: "Manager", Email: "mgr@mill.example"}},
		models.RoleFWGAInspector: {{ID: 3, Name: "Inspector", Email: "insp@fwga.example"}},
	}}
	f.scheduler = New(f.store, d, dir, logging.Discard(), time.Minute, WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) raise(t *testing.T) string {
	t.Helper()
	id, err := f.scheduler.RaiseAlert(context.Background(), models.AlertQCFailure, models.AlertContext{
		MillID:  3,
		BatchID: "B-77",
		Summary: "iron content below 40ppm",
	})
	require.NoError(t, err)
	return id
}

func TestRaiseAlertCreatesLevelOne(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)

	alert := f.store.get(id)
	assert.Equal(t, models.AlertPending, alert.Status)
	assert.Equal(t, 1, alert.CurrentLevel)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, models.CategoryQualitySafety, alert.Category)
	require.Len(t, alert.History, 1)
	assert.Equal(t, 1, alert.History[0].Level)
	assert.Equal(t, []string{models.RoleMillOperator}, alert.History[0].Roles)

	// level 1 notified the operator on all four configured channels
	assert.Contains(t, f.recorder.recipients(), int64(1))
	assert.NotContains(t, f.recorder.recipients(), int64(2))
}

func TestRaiseAlertUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.scheduler.RaiseAlert(context.Background(), models.AlertType("BOGUS"), models.AlertContext{})
	require.Error(t, err)
}

func TestNoPrematureEscalation(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)
	f.recorder.reset()

	// QC_FAILURE level 1 times out after 30 minutes
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(29*time.Minute)))

	alert := f.store.get(id)
	assert.Equal(t, 1, alert.CurrentLevel)
	assert.Equal(t, models.AlertPending, alert.Status)
	assert.Empty(t, f.recorder.recipients())
}

func TestEscalationExactness(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)
	f.recorder.reset()

	due := f.advance(30 * time.Minute)
	require.NoError(t, f.scheduler.Tick(context.Background(), due))

	alert := f.store.get(id)
	assert.Equal(t, 2, alert.CurrentLevel)
	assert.Equal(t, models.AlertEscalated, alert.Status)
	assert.Equal(t, due, alert.LastLevelNotifiedAt)
	require.Len(t, alert.History, 2)
	assert.Equal(t, []string{models.RoleMillManager}, alert.History[1].Roles)
	assert.Contains(t, f.recorder.recipients(), int64(2))

	// an immediate second tick does not escalate again
	f.recorder.reset()
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(time.Minute)))
	assert.Equal(t, 2, f.store.get(id).CurrentLevel)
	assert.Empty(t, f.recorder.recipients())
}

func TestEscalationCeiling(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)

	// walk the full ladder: 30min to level 2, 120min more to level 3
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(31*time.Minute)))
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(121*time.Minute)))
	require.Equal(t, 3, f.store.get(id).CurrentLevel)

	// far past the last level's timeout, nothing moves
	f.recorder.reset()
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(30*24*time.Hour)))
	alert := f.store.get(id)
	assert.Equal(t, 3, alert.CurrentLevel)
	assert.Equal(t, models.AlertEscalated, alert.Status)
	assert.Len(t, alert.History, 3)
	assert.Empty(t, f.recorder.recipients())
}

func TestAcknowledgmentHaltsEscalation(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)

	require.NoError(t, f.scheduler.Acknowledge(context.Background(), id, "qc-tech-9"))
	alert := f.store.get(id)
	assert.Equal(t, models.AlertAcknowledged, alert.Status)
	require.NotNil(t, alert.AcknowledgedAt)
	assert.Equal(t, "qc-tech-9", alert.AcknowledgedBy)

	f.recorder.reset()
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(48*time.Hour)))
	assert.Equal(t, 1, f.store.get(id).CurrentLevel)
	assert.Empty(t, f.recorder.recipients())
}

func TestAcknowledgeIdempotent(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)

	require.NoError(t, f.scheduler.Acknowledge(context.Background(), id, "a"))
	require.NoError(t, f.scheduler.Acknowledge(context.Background(), id, "b"))
	// the first acknowledgment stands
	assert.Equal(t, "a", f.store.get(id).AcknowledgedBy)
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	f := newFixture(t)
	err := f.scheduler.Acknowledge(context.Background(), "nope", "a")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestBeginWorkFlow(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)

	// cannot begin work before acknowledging
	err := f.scheduler.BeginWork(context.Background(), id, "op-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.scheduler.Acknowledge(context.Background(), id, "op-1"))
	require.NoError(t, f.scheduler.BeginWork(context.Background(), id, "op-1"))
	assert.Equal(t, models.AlertInProgress, f.store.get(id).Status)

	// repeating is a no-op
	require.NoError(t, f.scheduler.BeginWork(context.Background(), id, "op-1"))
}

func TestResolveFromAnyStateAndIdempotent(t *testing.T) {
	f := newFixture(t)

	// resolve straight from PENDING
	id1 := f.raise(t)
	require.NoError(t, f.scheduler.Resolve(context.Background(), id1, "mgr-2"))
	alert := f.store.get(id1)
	assert.Equal(t, models.AlertResolved, alert.Status)
	require.NotNil(t, alert.ResolvedAt)

	// resolve from ESCALATED
	id2 := f.raise(t)
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(31*time.Minute)))
	require.NoError(t, f.scheduler.Resolve(context.Background(), id2, "mgr-2"))
	assert.Equal(t, models.AlertResolved, f.store.get(id2).Status)

	// double resolve is a no-op
	require.NoError(t, f.scheduler.Resolve(context.Background(), id2, "someone-else"))
	assert.Equal(t, "mgr-2", f.store.get(id2).ResolvedBy)

	// resolved alerts are out of tick consideration
	f.recorder.reset()
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(48*time.Hour)))
	assert.Empty(t, f.recorder.recipients())
}

func TestTickIsolatesPerAlertFailures(t *testing.T) {
	f := newFixture(t)
	bad := f.raise(t)
	f.advance(time.Second)
	good := f.raise(t)
	f.store.escalerr[bad] = errors.New("write refused")

	err := f.scheduler.Tick(context.Background(), f.advance(31*time.Minute))
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)

	// the failing alert did not stop the healthy one
	assert.Equal(t, 2, f.store.get(good).CurrentLevel)
	assert.Equal(t, 1, f.store.get(bad).CurrentLevel)
}

func TestTickLosesRaceToAcknowledgment(t *testing.T) {
	f := newFixture(t)
	id := f.raise(t)
	f.recorder.reset()

	// acknowledgment lands between the tick's scan and its re-check
	acked := false
	f.store.onGet = func(gotID string) {
		if gotID == id && !acked {
			acked = true
			_, _ = f.store.AcknowledgeAlert(context.Background(), id, "fast-operator", f.now)
		}
	}

	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(31*time.Minute)))

	alert := f.store.get(id)
	assert.Equal(t, models.AlertAcknowledged, alert.Status)
	assert.Equal(t, 1, alert.CurrentLevel)
	assert.Empty(t, f.recorder.recipients(), "the superseded escalation must not notify")
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)

	// t=0: raise QC_FAILURE, level 1, operator notified
	id := f.raise(t)
	assert.Equal(t, []int64{1, 1, 1, 1}, f.recorder.recipients())

	// t=31min, no ack: escalate to level 2, manager notified
	f.recorder.reset()
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(31*time.Minute)))
	alert := f.store.get(id)
	assert.Equal(t, models.AlertEscalated, alert.Status)
	assert.Equal(t, 2, alert.CurrentLevel)
	assert.Contains(t, f.recorder.recipients(), int64(2))

	// t=31.5min: acknowledged
	f.advance(30 * time.Second)
	require.NoError(t, f.scheduler.Acknowledge(context.Background(), id, "mgr-2"))
	assert.Equal(t, models.AlertAcknowledged, f.store.get(id).Status)

	// t=200min: no further state change
	f.recorder.reset()
	require.NoError(t, f.scheduler.Tick(context.Background(), f.advance(169*time.Minute)))
	alert = f.store.get(id)
	assert.Equal(t, models.AlertAcknowledged, alert.Status)
	assert.Equal(t, 2, alert.CurrentLevel)
	assert.Len(t, alert.History, 2)
	assert.Empty(t, f.recorder.recipients())
}
