// Package actionitem manages work items derived from alerts or created
// directly, including the periodic overdue sweep.
package actionitem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
)

// ErrItemNotFound is returned when an action item ID does not exist.
var ErrItemNotFound = errors.New("action item not found")

// ErrInvalidTransition is returned for a status change out of a terminal
// status.
var ErrInvalidTransition = errors.New("invalid action item transition")

// Filter narrows action item queries. Zero values mean "any".
type Filter struct {
	UserID     int64
	MillID     int64
	Statuses   []models.ActionItemStatus
	Priorities []models.Severity
}

// Store is the persistence port for action items. List returns filtered but
// unordered items; the manager applies the canonical ordering so every store
// implementation agrees on it.
type Store interface {
	CreateActionItem(ctx context.Context, item models.ActionItem) error
	GetActionItem(ctx context.Context, id string) (models.ActionItem, error)
	UpdateActionItem(ctx context.Context, item models.ActionItem) error
	// MarkOverdue flips isOverdue on every non-terminal item due before now
	// that is not already flagged, returning how many changed. Conditional on
	// the current flag, so repeating it at the same now changes nothing.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListActionItems(ctx context.Context, f Filter) ([]models.ActionItem, error)
	CountOverdue(ctx context.Context, f Filter) (int, error)
}

// CreateInput is the caller-supplied portion of a new action item.
type CreateInput struct {
	Title          string
	Description    string
	Priority       models.Severity
	DueDate        time.Time
	AssignedToID   int64
	MillID         int64
	RelatedAlertID string
	CreatedBy      int64
}

// Manager owns the action item lifecycle.
type Manager struct {
	store    Store
	logger   *logging.Logger
	interval time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option tweaks Manager construction.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(store Store, logger *logging.Logger, sweepInterval time.Duration, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		logger:   logger,
		interval: sweepInterval,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create persists a new PENDING action item.
func (m *Manager) Create(ctx context.Context, in CreateInput) (models.ActionItem, error) {
	if in.Title == "" {
		return models.ActionItem{}, fmt.Errorf("action item title is required")
	}
	if in.Priority == "" {
		in.Priority = models.SeverityMedium
	}
	now := m.now()
	item := models.ActionItem{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		Priority:       in.Priority,
		Status:         models.ActionPending,
		DueDate:        in.DueDate,
		AssignedToID:   in.AssignedToID,
		MillID:         in.MillID,
		RelatedAlertID: in.RelatedAlertID,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.CreateActionItem(ctx, item); err != nil {
		return models.ActionItem{}, fmt.Errorf("failed to create action item: %w", err)
	}
	m.logger.Infof("Created action item %s for user %d, due %s", item.ID, item.AssignedToID, item.DueDate.Format(time.RFC3339))
	return item, nil
}

// UpdateStatus transitions an item. Completing stamps completedAt/By and, like
// cancelling, removes the item from future overdue sweeps. Repeating the
// current status is a no-op; leaving a terminal status is invalid.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status models.ActionItemStatus, userID int64) (models.ActionItem, error) {
	item, err := m.store.GetActionItem(ctx, id)
	if err != nil {
		return models.ActionItem{}, err
	}
	if item.Status == status {
		return item, nil
	}
	if item.Status.Terminal() {
		return models.ActionItem{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, item.Status)
	}

	now := m.now()
	item.Status = status
	item.UpdatedAt = now
	if status.Terminal() {
		// the overdue flag only applies to open items
		item.IsOverdue = false
	}
	if status == models.ActionCompleted {
		item.CompletedAt = &now
		item.CompletedBy = &userID
	}
	if err := m.store.UpdateActionItem(ctx, item); err != nil {
		return models.ActionItem{}, fmt.Errorf("failed to update action item %s: %w", id, err)
	}
	m.logger.Infof("Action item %s moved to %s by user %d", id, status, userID)
	return item, nil
}

// Reassign changes the assignee without touching status or the overdue flag.
func (m *Manager) Reassign(ctx context.Context, id string, newAssigneeID, actorID int64) (models.ActionItem, error) {
	item, err := m.store.GetActionItem(ctx, id)
	if err != nil {
		return models.ActionItem{}, err
	}
	if item.AssignedToID == newAssigneeID {
		return item, nil
	}
	item.AssignedToID = newAssigneeID
	item.UpdatedAt = m.now()
	if err := m.store.UpdateActionItem(ctx, item); err != nil {
		return models.ActionItem{}, fmt.Errorf("failed to reassign action item %s: %w", id, err)
	}
	m.logger.Infof("Action item %s reassigned to user %d by user %d", id, newAssigneeID, actorID)
	return item, nil
}

// SweepOverdue flags every open item past its due date. Idempotent: a second
// sweep at the same instant changes nothing.
func (m *Manager) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.store.MarkOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep overdue items: %w", err)
	}
	if n > 0 {
		m.logger.Infof("Overdue sweep flagged %d action items", n)
	}
	return n, nil
}

// ListForUser returns a user's items in canonical order.
func (m *Manager) ListForUser(ctx context.Context, userID int64, f Filter) ([]models.ActionItem, error) {
	f.UserID = userID
	items, err := m.store.ListActionItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list action items for user %d: %w", userID, err)
	}
	sortItems(items)
	return items, nil
}

// ListForMill returns a mill's items in canonical order.
func (m *Manager) ListForMill(ctx context.Context, millID int64, f Filter) ([]models.ActionItem, error) {
	f.MillID = millID
	items, err := m.store.ListActionItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list action items for mill %d: %w", millID, err)
	}
	sortItems(items)
	return items, nil
}

// CountOverdue counts currently flagged items matching the filter.
func (m *Manager) CountOverdue(ctx context.Context, f Filter) (int, error) {
	n, err := m.store.CountOverdue(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue action items: %w", err)
	}
	return n, nil
}

// sortItems applies the canonical ordering: overdue first, then priority
// descending, then due date ascending.
func sortItems(items []models.ActionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsOverdue != b.IsOverdue {
			return a.IsOverdue
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.DueDate.Before(b.DueDate)
	})
}

// Start launches the periodic overdue sweep.
func (m *Manager) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		m.logger.Infof("Overdue sweep started, interval %s", m.interval)
		for {
			select {
			case <-m.ctx.Done():
				m.logger.Infof("Overdue sweep stopped")
				return
			case <-ticker.C:
				if _, err := m.SweepOverdue(m.ctx, m.now()); err != nil {
					m.logger.Errorf("Overdue sweep failed: %v", err)
				}
			}
		}
	}()
}

// Close stops the sweep loop.
func (m *Manager) Close() {
	m.cancel()
}
