// Package escalation owns the alert lifecycle: raising, acknowledgment,
// resolution, and timeout-driven escalation through each type's configured
// ladder. State lives in the store, not in in-process timers, so a restart
// loses no escalation progress.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/directory"
	"mill-alert-service/internal/dispatch"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
)

// ErrAlertNotFound is returned when an alert ID does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// ErrInvalidTransition is returned for a lifecycle call the alert's current
// status does not permit.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the persistence port for alerts. Conditional mutations return
// whether a row matched, giving the scheduler compare-and-set semantics: a
// tick and an acknowledgment racing on the same alert resolve to whichever
// write lands first, and the loser observes matched=false.
type Store interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
	GetAlert(ctx context.Context, id string) (models.Alert, error)
	// ListOpenAlerts returns PENDING and ESCALATED alerts in createdAt
	// ascending order.
	ListOpenAlerts(ctx context.Context) ([]models.Alert, error)
	ListAlertsByMill(ctx context.Context, millID int64, limit, offset int) ([]models.Alert, int, error)
	// AcknowledgeAlert transitions PENDING/ESCALATED -> ACKNOWLEDGED.
	AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (bool, error)
	// BeginAlertWork transitions ACKNOWLEDGED -> IN_PROGRESS.
	BeginAlertWork(ctx context.Context, id, userID string, at time.Time) (bool, error)
	// ResolveAlert transitions any non-terminal status -> RESOLVED.
	ResolveAlert(ctx context.Context, id, userID string, at time.Time) (bool, error)
	// EscalateAlert advances an open alert from fromLevel to fromLevel+1,
	// appends the history record, and stamps lastLevelNotifiedAt. It matches
	// only while the alert is still open at fromLevel.
	EscalateAlert(ctx context.Context, id string, fromLevel int, rec models.EscalationRecord) (bool, error)
}

// Scheduler is the alert escalation state machine.
type Scheduler struct {
	store      Store
	dispatcher *dispatch.Dispatcher
	dir        directory.Directory
	logger     *logging.Logger
	interval   time.Duration
	now        func() time.Time
	ctx        context.Context
	cancel     context.CancelFunc
}

// Option tweaks Scheduler construction.
type Option func(*Scheduler)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(store Store, dispatcher *dispatch.Dispatcher, dir directory.Directory, logger *logging.Logger, interval time.Duration, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		dir:        dir,
		logger:     logger,
		interval:   interval,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RaiseAlert creates an alert at level 1 and dispatches the first level's
// notifications. Dispatch failures are logged per channel and never fail the
// raise: the alert exists once it is persisted.
func (s *Scheduler) RaiseAlert(ctx context.Context, t models.AlertType, alertCtx models.AlertContext) (string, error) {
	cfg, err := alertconfig.Config(t)
	if err != nil {
		return "", err
	}

	now := s.now()
	first := cfg.Levels[0]
	alert := models.Alert{
		ID:                  uuid.NewString(),
		Type:                t,
		Severity:            cfg.Severity,
		Category:            cfg.Category,
		Status:              models.AlertPending,
		CurrentLevel:        1,
		CreatedAt:           now,
		UpdatedAt:           now,
		LastLevelNotifiedAt: now,
		Context:             alertCtx,
		History: []models.EscalationRecord{
			{Level: 1, NotifiedAt: now, Roles: first.Roles},
		},
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return "", fmt.Errorf("failed to create alert: %w", err)
	}
	s.logger.Infof("Raised alert %s type=%s severity=%s mill=%d", alert.ID, t, cfg.Severity, alertCtx.MillID)

	s.notifyLevel(ctx, alert, cfg, first)
	return alert.ID, nil
}

// Acknowledge marks an alert acknowledged and halts further escalation.
// Acknowledging an already closed alert is a no-op.
func (s *Scheduler) Acknowledge(ctx context.Context, alertID, userID string) error {
	ok, err := s.store.AcknowledgeAlert(ctx, alertID, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", alertID, err)
	}
	if ok {
		s.logger.Infof("Alert %s acknowledged by %s", alertID, userID)
		return nil
	}
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	switch alert.Status {
	case models.AlertAcknowledged, models.AlertInProgress, models.AlertResolved:
		return nil // already past acknowledgment, idempotent
	default:
		return fmt.Errorf("%w: acknowledge from %s", ErrInvalidTransition, alert.Status)
	}
}

// BeginWork moves an acknowledged alert into IN_PROGRESS.
func (s *Scheduler) BeginWork(ctx context.Context, alertID, userID string) error {
	ok, err := s.store.BeginAlertWork(ctx, alertID, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to begin work on alert %s: %w", alertID, err)
	}
	if ok {
		s.logger.Infof("Work started on alert %s by %s", alertID, userID)
		return nil
	}
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if alert.Status == models.AlertInProgress {
		return nil
	}
	return fmt.Errorf("%w: begin work from %s", ErrInvalidTransition, alert.Status)
}

// Resolve closes an alert from any non-terminal state and removes it from
// tick consideration. Resolving a resolved alert is a no-op.
func (s *Scheduler) Resolve(ctx context.Context, alertID, userID string) error {
	ok, err := s.store.ResolveAlert(ctx, alertID, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", alertID, err)
	}
	if ok {
		s.logger.Infof("Alert %s resolved by %s", alertID, userID)
		return nil
	}
	// 0 rows: either gone or already resolved
	if _, err := s.store.GetAlert(ctx, alertID); err != nil {
		return err
	}
	return nil
}

// Tick evaluates every open alert for timeout escalation. One alert's
// failure never aborts the rest; per-alert errors are joined for the caller.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	alerts, err := s.store.ListOpenAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open alerts: %w", err)
	}

	var errs []error
	for _, alert := range alerts {
		if err := s.evaluate(ctx, alert, now); err != nil {
			s.logger.Errorf("Tick: alert %s: %v", alert.ID, err)
			errs = append(errs, fmt.Errorf("alert %s: %w", alert.ID, err))
		}
	}
	return errors.Join(errs...)
}

// evaluate escalates one alert if its current level has timed out.
func (s *Scheduler) evaluate(ctx context.Context, alert models.Alert, now time.Time) error {
	cfg, err := alertconfig.Config(alert.Type)
	if err != nil {
		return err
	}
	if alert.CurrentLevel >= cfg.MaxLevel() {
		// ceiling: stays ESCALATED awaiting manual action
		return nil
	}
	level := cfg.Levels[alert.CurrentLevel-1]
	if now.Sub(alert.LastLevelNotifiedAt) < level.Timeout() {
		return nil
	}

	// re-check right before writing so a just-acknowledged alert is not
	// overwritten by a stale scan
	current, err := s.store.GetAlert(ctx, alert.ID)
	if err != nil {
		return err
	}
	if !current.Status.Open() || current.CurrentLevel != alert.CurrentLevel {
		return nil
	}

	next := cfg.Levels[alert.CurrentLevel]
	rec := models.EscalationRecord{Level: next.Level, NotifiedAt: now, Roles: next.Roles}

	// dispatch joins before the level transition is recorded; a crash here
	// re-runs delivery on the next tick instead of dropping the transition
	escalated := current
	escalated.CurrentLevel = next.Level
	escalated.Status = models.AlertEscalated
	s.notifyLevel(ctx, escalated, cfg, next)

	ok, err := s.store.EscalateAlert(ctx, alert.ID, alert.CurrentLevel, rec)
	if err != nil {
		return fmt.Errorf("failed to escalate: %w", err)
	}
	if !ok {
		// lost the race to an acknowledgment or resolution
		s.logger.Debugf("Escalation of alert %s superseded by a status change", alert.ID)
		return nil
	}
	s.logger.Infof("Alert %s escalated to level %d, roles %v notified", alert.ID, next.Level, next.Roles)
	return nil
}

// notifyLevel resolves a level's roles to recipients and fans each payload
// out over the alert's channel set. Failures are per-channel and logged.
func (s *Scheduler) notifyLevel(ctx context.Context, alert models.Alert, cfg alertconfig.AlertConfig, level alertconfig.EscalationLevel) {
	seen := make(map[int64]bool)
	for _, role := range level.Roles {
		recipients, err := s.dir.Resolve(ctx, role, alert.Context.MillID)
		if err != nil {
			s.logger.Errorf("Failed to resolve role %s for alert %s: %v", role, alert.ID, err)
			continue
		}
		if len(recipients) == 0 {
			s.logger.Warnf("Role %s resolved to no recipients for mill %d", role, alert.Context.MillID)
			continue
		}
		for _, r := range recipients {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			payload := models.NotificationPayload{
				Recipient: r,
				AlertID:   alert.ID,
				AlertType: alert.Type,
				Severity:  alert.Severity,
				Title:     alertconfig.Title(alert.Type, alert.Context),
				Link:      alert.Context.Link,
				Context:   alert.Context,
				Metadata:  map[string]string{"level": fmt.Sprintf("%d", level.Level), "role": role},
			}
			results := s.dispatcher.SendMulti(ctx, cfg.Channels, payload)
			for ch, ok := range results {
				if !ok {
					s.logger.Warnf("Delivery failed for alert %s level %d via %s to recipient %d", alert.ID, level.Level, ch, r.ID)
				}
			}
		}
	}
}

// Start launches the periodic tick loop.
func (s *Scheduler) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Infof("Escalation scheduler started, tick interval %s", s.interval)
		for {
			select {
			case <-s.ctx.Done():
				s.logger.Infof("Escalation scheduler stopped")
				return
			case <-ticker.C:
				if err := s.Tick(s.ctx, s.now()); err != nil {
					s.logger.Errorf("Tick completed with errors: %v", err)
				}
			}
		}
	}()
}

// Close stops the tick loop.
func (s *Scheduler) Close() {
	s.cancel()
}
