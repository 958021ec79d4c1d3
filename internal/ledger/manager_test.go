package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	mu    sync.Mutex
	loads int
	err   error
}

func (l *countingLoader) LoadBudget(ctx context.Context, budgetID uuid.UUID) (*BudgetData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return NewBudgetData(budgetID, "Household", time.UTC, time.Now().UTC()), nil
}

func (l *countingLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func TestManagerReadLoadsOnce(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	m := NewManager(loader)
	budgetID := uuid.New()

	for i := 0; i < 3; i++ {
		err := m.Read(ctx, budgetID, func(b *BudgetData) error {
			assert.Equal(t, budgetID, b.ID)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loader.loadCount())
	assert.True(t, m.Loaded(budgetID))
}

func TestManagerLoadFailurePropagates(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{err: errors.New("storage down")}
	m := NewManager(loader)
	budgetID := uuid.New()

	err := m.Write(ctx, budgetID, func(b *BudgetData) error {
		t.Fatal("fn must not run when loading fails")
		return nil
	})
	assert.Error(t, err)
	assert.False(t, m.Loaded(budgetID))
}

func TestManagerWriteDropsStateOnDivergence(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	m := NewManager(loader)
	budgetID := uuid.New()

	err := m.Write(ctx, budgetID, func(b *BudgetData) error {
		return fmt.Errorf("%w: connection reset", ErrPersistenceDiverged)
	})
	require.ErrorIs(t, err, ErrPersistenceDiverged)
	assert.False(t, m.Loaded(budgetID), "diverged state must be discarded")

	// The next access reloads wholesale.
	require.NoError(t, m.Read(ctx, budgetID, func(b *BudgetData) error { return nil }))
	assert.Equal(t, 2, loader.loadCount())
}

func TestManagerWriteKeepsStateOnOrdinaryError(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	m := NewManager(loader)
	budgetID := uuid.New()

	err := m.Write(ctx, budgetID, func(b *BudgetData) error {
		return ErrUnbalancedTransaction
	})
	require.ErrorIs(t, err, ErrUnbalancedTransaction)
	assert.True(t, m.Loaded(budgetID), "validation errors keep the cached state")
	assert.Equal(t, 1, loader.loadCount())
}

func TestManagerPutAndInvalidate(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	m := NewManager(loader)

	b := NewBudgetData(uuid.New(), "Household", time.UTC, time.Now().UTC())
	m.Put(b)
	assert.True(t, m.Loaded(b.ID))

	// Put bypasses the loader entirely.
	err := m.Read(ctx, b.ID, func(got *BudgetData) error {
		assert.Same(t, b, got)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, loader.loadCount())

	m.Invalidate(b.ID)
	assert.False(t, m.Loaded(b.ID))
	require.NoError(t, m.Read(ctx, b.ID, func(*BudgetData) error { return nil }))
	assert.Equal(t, 1, loader.loadCount())
}

func TestManagerSerializesWritesPerBudget(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&countingLoader{})
	budgetID := uuid.New()

	var inFn, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Write(ctx, budgetID, func(b *BudgetData) error {
				mu.Lock()
				inFn++
				if inFn > max {
					max = inFn
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFn--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max, "writes on one budget must not overlap")
}
