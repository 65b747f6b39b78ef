package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// Manager tracks progress of the current run and saves it through a Store.
//
// Unit completions are batched: the checkpoint is saved after every
// Interval completions. Phase changes and Flush always save. Before each
// save the BeforeSave hook runs, so state the checkpoint refers to (the
// registries) is durable before the checkpoint claims the work is done.
type Manager struct {
	store      Store
	cp         *model.Checkpoint
	interval   int
	pending    int
	now        func() time.Time
	beforeSave func(ctx context.Context) error
	saves      int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInterval sets the number of completed units between saves.
// Values below 1 are treated as 1.
func WithInterval(n int) ManagerOption {
	return func(m *Manager) {
		if n < 1 {
			n = 1
		}
		m.interval = n
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithBeforeSave sets a hook that runs before every save. A hook error
// aborts the save.
func WithBeforeSave(fn func(ctx context.Context) error) ManagerOption {
	return func(m *Manager) { m.beforeSave = fn }
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		interval: 1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the stored checkpoint without making it current.
// It returns nil when no checkpoint exists.
func (m *Manager) Load(ctx context.Context) (*model.Checkpoint, error) {
	return m.store.Load(ctx)
}

// Begin makes cp the checkpoint tracked by the manager.
func (m *Manager) Begin(cp *model.Checkpoint) {
	cp.Normalize()
	m.cp = cp
	m.pending = 0
}

// Current returns the tracked checkpoint.
func (m *Manager) Current() *model.Checkpoint {
	return m.cp
}

// Saves returns how many saves succeeded.
func (m *Manager) Saves() int {
	return m.saves
}

// MarkApplicationDone records a crawled application page.
func (m *Manager) MarkApplicationDone(ctx context.Context, id int, cursor model.Cursor) error {
	m.cp.CompletedApplicationIDs.Add(id)
	m.cp.Cursor = &cursor
	return m.tick(ctx)
}

// MarkApplicationFailed records an application page that was given up on.
// It is also marked done so a resumed run does not retry it.
func (m *Manager) MarkApplicationFailed(ctx context.Context, id int, cursor model.Cursor) error {
	m.cp.FailedApplicationIDs.Add(id)
	return m.MarkApplicationDone(ctx, id, cursor)
}

// MarkSKUDone records a fetched detail page.
func (m *Manager) MarkSKUDone(ctx context.Context, sku string) error {
	m.cp.CompletedSKUs.Add(sku)
	return m.tick(ctx)
}

// MarkSKUFailed records a detail page that was given up on.
func (m *Manager) MarkSKUFailed(ctx context.Context, sku string) error {
	m.cp.FailedSKUs.Add(sku)
	return m.MarkSKUDone(ctx, sku)
}

// SetFingerprint records the hierarchy fingerprint of the current walk.
// It does not save.
func (m *Manager) SetFingerprint(fp string) {
	m.cp.HierarchyFingerprint = fp
}

// SetPhase moves the checkpoint to phase and saves.
func (m *Manager) SetPhase(ctx context.Context, phase model.Phase) error {
	m.cp.Phase = phase
	if phase == model.PhaseComplete {
		at := m.now().UTC()
		m.cp.CompletedAt = &at
	}
	return m.Flush(ctx)
}

// Flush saves the checkpoint now.
func (m *Manager) Flush(ctx context.Context) error {
	if m.beforeSave != nil {
		if err := m.beforeSave(ctx); err != nil {
			return fmt.Errorf("failed to persist state before checkpoint: %w", err)
		}
	}
	m.cp.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, m.cp); err != nil {
		return err
	}
	m.pending = 0
	m.saves++
	return nil
}

func (m *Manager) tick(ctx context.Context) error {
	m.pending++
	if m.pending < m.interval {
		return nil
	}
	return m.Flush(ctx)
}
