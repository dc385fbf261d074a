package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// TickFunc receives the virtual moment of every tick.
type TickFunc func(now VirtualMoment)

// DayChangeFunc is called once per virtual day transition with the first
// moment observed in the new day.
type DayChangeFunc func(now VirtualMoment)

// Scheduler recomputes the virtual moment at a fixed interval and fans out
// tick and day-change notifications.
//
// Listeners run serially on the scheduler goroutine while the internal mutex
// is held; they must return quickly and must not call Stop.
type Scheduler struct {
	clock    Clock
	cal      Calendar
	interval time.Duration

	mu      sync.Mutex
	onTick  []TickFunc
	onDay   []DayChangeFunc
	lastDay int64
	primed  bool
	current VirtualMoment
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger
}

// NewScheduler creates a stopped scheduler ticking at config.TickInterval.
func NewScheduler(clock Clock, cal Calendar) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:    clock,
		cal:      cal,
		interval: config.TickInterval,
		logger:   slog.With(config.LogKeyComponent, config.CompScheduler),
	}
}

// SetInterval overrides the tick period. It has no effect once started.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started && d > 0 {
		s.interval = d
	}
}

// OnTick registers a listener invoked on every tick.
func (s *Scheduler) OnTick(fn TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = append(s.onTick, fn)
}

// OnDayChange registers a listener invoked when the virtual day advances.
func (s *Scheduler) OnDayChange(fn DayChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDay = append(s.onDay, fn)
}

// Current returns the last computed moment and whether a tick has happened.
func (s *Scheduler) Current() (VirtualMoment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.primed
}

// Start primes the current day without notifying, then ticks in a goroutine
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New(config.ErrSchedulerStopped)
	}
	if s.started {
		s.mu.Unlock()
		return errors.New(config.ErrSchedulerStarted)
	}
	s.started = true
	s.prime(s.clock.Now())

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	interval := s.interval
	s.mu.Unlock()

	s.logger.Info(config.MsgSchedulerStart, config.LogKeyInterval, interval.String())
	go s.run(ctx, interval)
	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(config.MsgSchedulerStop)
			return
		case <-ticker.C:
			s.Tick(s.clock.Now())
		}
	}
}

// Tick performs one scheduling step for the real instant now.
// It returns the computed moment and whether a day change was notified.
// After Stop, Tick is a no-op.
func (s *Scheduler) Tick(now time.Time) (VirtualMoment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.current, false
	}
	if now.Before(s.cal.Epoch) {
		s.logger.Debug(config.MsgNegativeElapsed)
	}

	if !s.primed {
		s.prime(now)
		s.fireTick()
		return s.current, false
	}

	v := s.cal.ToVirtual(now)
	s.current = v
	s.fireTick()

	ordinal := s.cal.Ordinal(v.Date())
	switch {
	case ordinal > s.lastDay:
		s.lastDay = ordinal
		s.logger.Info(config.MsgDayChanged,
			config.LogKeyYear, v.Year,
			config.LogKeyMonth, v.Month,
			config.LogKeyDay, v.Day,
			config.LogKeyOrdinal, ordinal,
		)
		for _, fn := range s.onDay {
			fn(v)
		}
		return v, true
	case ordinal < s.lastDay:
		s.logger.Debug(config.MsgClockBackwards,
			config.LogKeyOrdinal, ordinal,
		)
	}
	return v, false
}

// Stop cancels the loop and waits for it to exit. Once Stop returns no
// listener is invoked again. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// prime records the day of now as already observed. Caller holds mu.
func (s *Scheduler) prime(now time.Time) {
	s.current = s.cal.ToVirtual(now)
	s.lastDay = s.cal.Ordinal(s.current.Date())
	s.primed = true
}

// fireTick calls tick listeners. Caller holds mu.
func (s *Scheduler) fireTick() {
	for _, fn := range s.onTick {
		fn(s.current)
	}
}
