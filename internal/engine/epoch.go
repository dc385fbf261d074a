package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// ErrEpochUnavailable means no valid epoch exists: the fetch failed or has
// not completed. No virtual time can be computed in this state.
var ErrEpochUnavailable = errors.New(config.ErrEpochUnavailable)

// Epoch anchors the virtual clock on a real instant.
type Epoch struct {
	Start     time.Time
	Ratio     int64 // Virtual seconds per real second
	Mayor     *Mayor
	FetchedAt time.Time
}

// Calendar derives the virtual clock for this epoch.
func (e Epoch) Calendar() Calendar {
	return NewCalendar(e.Start, e.Ratio)
}

// Mayor is optional in-world metadata delivered alongside the epoch.
type Mayor struct {
	Key   string
	Name  string
	Year  int
	Perks []Perk
}

// Perk is a mayor bonus; Description has formatting codes stripped.
type Perk struct {
	Name        string
	Description string
}

// EpochSource retrieves the epoch from an external system.
// Retry and backoff, if any, are the source's concern.
type EpochSource interface {
	Fetch(ctx context.Context) (Epoch, error)
}

// ResolveState is the lifecycle of a Resolver.
type ResolveState int

const (
	StatePending ResolveState = iota
	StateReady
	StateFailed
)

// String implements fmt.Stringer.
func (s ResolveState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Resolver fetches the epoch once and caches the outcome.
// A failure is terminal for the Resolver; callers wanting another attempt
// build a new Resolver.
type Resolver struct {
	source EpochSource
	clock  Clock

	mu    sync.Mutex
	state ResolveState
	epoch Epoch
	err   error
}

// NewResolver creates a pending Resolver.
func NewResolver(source EpochSource, clock Clock) *Resolver {
	if clock == nil {
		clock = RealClock{}
	}
	return &Resolver{source: source, clock: clock}
}

// Resolve returns the epoch, fetching it on the first call.
// Concurrent callers wait for the in-flight fetch.
func (r *Resolver) Resolve(ctx context.Context) (Epoch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := slog.With(config.LogKeyComponent, config.CompResolver)

	switch r.state {
	case StateReady:
		log.Debug(config.MsgResolveCached)
		return r.epoch, nil
	case StateFailed:
		return Epoch{}, r.err
	}

	if r.source == nil {
		return Epoch{}, fmt.Errorf("%w: %s", ErrEpochUnavailable, config.ErrSourceMissing)
	}

	log.InfoContext(ctx, config.MsgResolveStarted)
	start := time.Now()

	epoch, err := r.source.Fetch(ctx)
	if err == nil && epoch.Ratio <= 0 {
		err = errors.New(config.ErrRatioInvalid)
	}
	if err != nil {
		// A cancelled caller did not observe a real failure; stay pending.
		if ctx.Err() != nil {
			return Epoch{}, fmt.Errorf("%w: %w", ErrEpochUnavailable, ctx.Err())
		}
		r.state = StateFailed
		r.err = fmt.Errorf("%w: %w", ErrEpochUnavailable, err)
		log.Error(config.MsgResolveFailed, config.LogKeyError, err)
		return Epoch{}, r.err
	}

	if epoch.FetchedAt.IsZero() {
		epoch.FetchedAt = r.clock.Now()
	}
	r.epoch = epoch
	r.state = StateReady

	attrs := []any{
		config.LogKeyEpoch, epoch.Start.Format(time.RFC3339),
		config.LogKeyRatio, epoch.Ratio,
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	}
	if epoch.Mayor != nil {
		attrs = append(attrs, config.LogKeyMayor, epoch.Mayor.Name)
	}
	log.Info(config.MsgEpochResolved, attrs...)
	return epoch, nil
}

// Current returns the cached epoch without blocking on a fetch.
func (r *Resolver) Current() (Epoch, error) {
	if !r.mu.TryLock() {
		return Epoch{}, ErrEpochUnavailable
	}
	defer r.mu.Unlock()

	switch r.state {
	case StateReady:
		return r.epoch, nil
	case StateFailed:
		return Epoch{}, r.err
	}
	return Epoch{}, ErrEpochUnavailable
}

// State reports the lifecycle without blocking; an in-flight fetch is pending.
func (r *Resolver) State() ResolveState {
	if !r.mu.TryLock() {
		return StatePending
	}
	defer r.mu.Unlock()
	return r.state
}
