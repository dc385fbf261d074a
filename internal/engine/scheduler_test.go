package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-skycal/internal/engine"
)

// steppingClock is a mutable clock shared with the scheduler goroutine.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// TestScheduler_Tick_NotifiesOncePerDay drives the scheduler step by step.
// At the default ratio one virtual day is 20 real minutes.
func TestScheduler_Tick_NotifiesOncePerDay(t *testing.T) {
	s := engine.NewScheduler(MockClock{CurrentTime: defaultEpoch}, defaultCalendar())

	var days []engine.VirtualMoment
	ticks := 0
	s.OnDayChange(func(v engine.VirtualMoment) { days = append(days, v) })
	s.OnTick(func(engine.VirtualMoment) { ticks++ })

	steps := []struct {
		offset  time.Duration
		changed bool
	}{
		{5 * time.Minute, false},  // primes day 0
		{10 * time.Minute, false}, // same day
		{20 * time.Minute, true},  // day 1 begins
		{21 * time.Minute, false},
		{19 * time.Minute, false}, // clock moved back into day 0
		{22 * time.Minute, false}, // back in day 1, already notified
		{40 * time.Minute, true},  // day 2
		{100 * time.Minute, true}, // jump to day 5 notifies once
	}

	for i, step := range steps {
		_, changed := s.Tick(defaultEpoch.Add(step.offset))
		assert.Equal(t, step.changed, changed, "step %d (%v)", i, step.offset)
	}

	assert.Equal(t, len(steps), ticks)
	require.Len(t, days, 3)
	assert.Equal(t, engine.VirtualMoment{Day: 1}, days[0])
	assert.Equal(t, engine.VirtualMoment{Day: 2}, days[1])
	assert.Equal(t, engine.VirtualMoment{Day: 5}, days[2])
}

// TestScheduler_Tick_WithinDay checks that no notification fires while the day is unchanged.
func TestScheduler_Tick_WithinDay(t *testing.T) {
	s := engine.NewScheduler(nil, defaultCalendar())
	notified := 0
	s.OnDayChange(func(engine.VirtualMoment) { notified++ })

	for sec := 0; sec < 20*60; sec += 7 {
		s.Tick(defaultEpoch.Add(time.Duration(sec) * time.Second))
	}
	assert.Zero(t, notified)

	v, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, 0, v.Day)
}

// TestScheduler_Start_PrimesWithoutNotifying ensures the current day at
// startup is not reported as a change.
func TestScheduler_Start_PrimesWithoutNotifying(t *testing.T) {
	clock := &steppingClock{now: defaultEpoch.Add(30 * time.Minute)}
	s := engine.NewScheduler(clock, defaultCalendar())
	s.SetInterval(time.Hour)

	notified := 0
	s.OnDayChange(func(engine.VirtualMoment) { notified++ })

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	v, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 1, v.Day)

	_, changed := s.Tick(clock.Now())
	assert.False(t, changed)
	assert.Zero(t, notified)
}

func TestScheduler_Run_And_Stop(t *testing.T) {
	clock := &steppingClock{now: defaultEpoch}
	s := engine.NewScheduler(clock, defaultCalendar())
	s.SetInterval(5 * time.Millisecond)

	var ticks, days atomic.Int32
	s.OnTick(func(engine.VirtualMoment) { ticks.Add(1) })
	s.OnDayChange(func(engine.VirtualMoment) { days.Add(1) })

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)

	clock.Set(defaultEpoch.Add(25 * time.Minute))
	assert.Eventually(t, func() bool { return days.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	after := ticks.Load()

	// Nothing is delivered once Stop has returned, even if the day changes.
	clock.Set(defaultEpoch.Add(60 * time.Minute))
	time.Sleep(30 * time.Millisecond)
	_, changed := s.Tick(clock.Now())

	assert.False(t, changed)
	assert.Equal(t, after, ticks.Load())
	assert.Equal(t, int32(1), days.Load())

	// Idempotent.
	s.Stop()
}

func TestScheduler_ContextCancel(t *testing.T) {
	s := engine.NewScheduler(&steppingClock{now: defaultEpoch}, defaultCalendar())
	s.SetInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestScheduler_StartErrors(t *testing.T) {
	s := engine.NewScheduler(nil, defaultCalendar())
	s.SetInterval(time.Hour)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "Double start is rejected")

	s.Stop()
	assert.Error(t, s.Start(context.Background()), "A stopped scheduler cannot restart")
}
