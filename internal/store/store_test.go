package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-skycal/internal/engine"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "display.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_LoadEmpty(t *testing.T) {
	s := openTest(t)

	display, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, display)
	assert.True(t, display.Visible("dark_auction"), "Missing rows default to visible")
}

func TestStore_SetAndLoad(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "dark_auction", false))
	require.NoError(t, s.Set(ctx, "spooky_festival", true))
	// Upsert overwrites.
	require.NoError(t, s.Set(ctx, "spooky_festival", false))

	display, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.DisplayConfig{"dark_auction": false, "spooky_festival": false}, display)
}

func TestStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "jerry_workshop", false))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	display, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, display.Visible("jerry_workshop"))
}

func TestStore_Apply(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	catalog, err := engine.NewCatalog(
		engine.EventDefinition{ID: "a", Name: "A", Rule: engine.Daily{}},
		engine.EventDefinition{ID: "b", Name: "B", Rule: engine.Daily{}},
	)
	require.NoError(t, err)

	require.NoError(t, s.Apply(ctx, catalog, []string{"a", "ghost"}, []string{"b"}))

	display, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.DisplayConfig{"a": true, "b": false}, display, "Unknown IDs are skipped")

	// Hide wins when an ID appears in both lists.
	require.NoError(t, s.Apply(ctx, catalog, []string{"a"}, []string{"a"}))
	display, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, display["a"])
}

func TestStore_OpenInvalidPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "display.db"))
	assert.Error(t, err)
}

func TestRetryOp(t *testing.T) {
	policy := retryPolicy{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 2 * time.Millisecond}
	locked := fmt.Errorf("exec: %w", errors.New("database is locked"))

	t.Run("Recovers", func(t *testing.T) {
		calls := 0
		err := retryOp(context.Background(), openTest(t).logger, policy, func() error {
			calls++
			if calls < 3 {
				return locked
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Permanent", func(t *testing.T) {
		calls := 0
		err := retryOp(context.Background(), openTest(t).logger, policy, func() error {
			calls++
			return errors.New("no such table")
		})
		assert.EqualError(t, err, "no such table")
		assert.Equal(t, 1, calls)
	})

	t.Run("Exhausted", func(t *testing.T) {
		calls := 0
		err := retryOp(context.Background(), openTest(t).logger, policy, func() error {
			calls++
			return locked
		})
		assert.ErrorIs(t, err, locked)
		assert.Equal(t, policy.maxRetries+1, calls)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retryOp(ctx, openTest(t).logger, retryPolicy{maxRetries: 3, baseDelay: time.Hour, maxDelay: time.Hour}, func() error {
			return locked
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBackoff(t *testing.T) {
	p := retryPolicy{maxRetries: 5, baseDelay: 10 * time.Millisecond, maxDelay: 50 * time.Millisecond}

	for attempt := range 6 {
		d := backoff(p, attempt)
		assert.GreaterOrEqual(t, d, min(p.baseDelay<<attempt, p.maxDelay))
		assert.Less(t, d, p.maxDelay+p.baseDelay)
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("constraint failed")))
	assert.True(t, isTransient(errors.New("database is locked")))
	assert.True(t, isTransient(errors.New("database table is locked")))
}
