package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// BudgetLoader loads budget state wholesale from storage.
type BudgetLoader interface {
	LoadBudget(ctx context.Context, budgetID uuid.UUID) (*BudgetData, error)
}

// Manager owns the in-memory BudgetData instances and serializes access to
// each: every mutation runs under the budget's write lock, so two commits on
// the same budget can never interleave. Reads share a read lock.
//
// When an operation reports ErrPersistenceDiverged the manager discards the
// in-memory copy; the next access reloads it wholesale from storage. That is
// the system's sole recovery mechanism; there is no incremental repair.
type Manager struct {
	loader BudgetLoader

	mu      sync.Mutex
	handles map[uuid.UUID]*budgetHandle
}

type budgetHandle struct {
	mu   sync.RWMutex
	data *BudgetData
}

// NewManager creates a manager backed by the given loader.
func NewManager(loader BudgetLoader) *Manager {
	return &Manager{
		loader:  loader,
		handles: make(map[uuid.UUID]*budgetHandle),
	}
}

func (m *Manager) handle(budgetID uuid.UUID) *budgetHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[budgetID]
	if !ok {
		h = &budgetHandle{}
		m.handles[budgetID] = h
	}
	return h
}

// ensureLoaded must be called with the handle's write lock held.
func (m *Manager) ensureLoaded(ctx context.Context, budgetID uuid.UUID, h *budgetHandle) error {
	if h.data != nil {
		return nil
	}
	data, err := m.loader.LoadBudget(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("load budget %s: %w", budgetID, err)
	}
	h.data = data
	return nil
}

// Write runs fn with exclusive access to the budget. If fn reports a
// persistence divergence the cached state is dropped before the lock is
// released.
func (m *Manager) Write(ctx context.Context, budgetID uuid.UUID, fn func(*BudgetData) error) error {
	h := m.handle(budgetID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := m.ensureLoaded(ctx, budgetID, h); err != nil {
		return err
	}
	err := fn(h.data)
	if errors.Is(err, ErrPersistenceDiverged) {
		h.data = nil
	}
	return err
}

// Read runs fn with shared access to the budget. An unloaded budget is loaded
// under the write lock first.
func (m *Manager) Read(ctx context.Context, budgetID uuid.UUID, fn func(*BudgetData) error) error {
	h := m.handle(budgetID)

	h.mu.RLock()
	if h.data != nil {
		defer h.mu.RUnlock()
		return fn(h.data)
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := m.ensureLoaded(ctx, budgetID, h); err != nil {
		return err
	}
	return fn(h.data)
}

// Put caches freshly created budget state, replacing whatever was held.
func (m *Manager) Put(data *BudgetData) {
	h := m.handle(data.ID)
	h.mu.Lock()
	h.data = data
	h.mu.Unlock()
}

// Invalidate drops the cached state for a budget so the next access reloads
// it from storage.
func (m *Manager) Invalidate(budgetID uuid.UUID) {
	h := m.handle(budgetID)
	h.mu.Lock()
	h.data = nil
	h.mu.Unlock()
}

// Loaded reports whether the budget currently has in-memory state. Used by
// tests and health reporting.
func (m *Manager) Loaded(budgetID uuid.UUID) bool {
	h := m.handle(budgetID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data != nil
}
