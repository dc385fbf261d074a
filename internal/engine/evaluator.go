package engine

import (
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// DayPhase classifies a virtual day relative to "now".
type DayPhase int

const (
	PhaseFuture DayPhase = iota
	PhaseActive
	PhasePast
)

// String implements fmt.Stringer.
func (p DayPhase) String() string {
	switch p {
	case PhaseFuture:
		return "future"
	case PhaseActive:
		return "active"
	case PhasePast:
		return "past"
	}
	return "unknown"
}

// DayState is the countdown / progress of one virtual day.
// Only the fields matching Phase are meaningful; durations are real time.
type DayState struct {
	Phase           DayPhase
	TimeUntilStart  time.Duration
	FractionElapsed float64
	TimeSinceEnd    time.Duration
}

// DayOccurrence bundles the events of one virtual day for rendering.
type DayOccurrence struct {
	Date            Date
	Events          []EventDefinition
	IsToday         bool
	FractionElapsed float64 // Only set when IsToday
	State           DayState
}

// Evaluator answers "what happens on this virtual day" against a fixed catalog.
// All methods are pure functions of their arguments.
type Evaluator struct {
	Catalog  *Catalog
	Calendar Calendar
}

// NewEvaluator binds a catalog to a calendar.
func NewEvaluator(catalog *Catalog, cal Calendar) *Evaluator {
	return &Evaluator{Catalog: catalog, Calendar: cal}
}

// OccurrencesOn returns the visible events occurring on the given day, in
// catalog order. Out-of-range months and days are normalized by carrying
// into the year (day D of month 11 is day 0 of month 0 of the next year).
func (e *Evaluator) OccurrencesOn(year, month, day int, display DisplayConfig) []EventDefinition {
	ref := e.ref(e.Calendar.Normalize(year, month, day))

	var out []EventDefinition
	for _, def := range e.Catalog.defs {
		if !display.Visible(def.ID) {
			continue
		}
		if def.Rule.Matches(ref) {
			out = append(out, def)
		}
	}
	return out
}

// DayState locates the day against now. A day is Active from its first
// virtual second up to, but excluding, the first second of the next day.
func (e *Evaluator) DayState(d Date, now VirtualMoment) DayState {
	start := e.Calendar.Ordinal(d) * config.SecondsPerDay
	end := start + config.SecondsPerDay
	current := e.Calendar.Seconds(now)

	switch {
	case current < start:
		return DayState{
			Phase:          PhaseFuture,
			TimeUntilStart: e.Calendar.RealDuration(start - current),
		}
	case current < end:
		return DayState{
			Phase:           PhaseActive,
			FractionElapsed: float64(now.Hour*config.MinutesPerHour+now.Minute) / config.MinutesPerDay,
		}
	default:
		return DayState{
			Phase:        PhasePast,
			TimeSinceEnd: e.Calendar.RealDuration(current - end),
		}
	}
}

// Day assembles the occurrence record of one day relative to now.
func (e *Evaluator) Day(d Date, now VirtualMoment, display DisplayConfig) DayOccurrence {
	d = e.Calendar.Normalize(d.Year, d.Month, d.Day)
	state := e.DayState(d, now)

	occ := DayOccurrence{
		Date:    d,
		Events:  e.OccurrencesOn(d.Year, d.Month, d.Day, display),
		IsToday: state.Phase == PhaseActive,
		State:   state,
	}
	if occ.IsToday {
		occ.FractionElapsed = state.FractionElapsed
	}
	return occ
}

// Upcoming lists n consecutive days starting with today.
func (e *Evaluator) Upcoming(now VirtualMoment, n int, display DisplayConfig) []DayOccurrence {
	today := e.Calendar.Ordinal(now.Date())
	out := make([]DayOccurrence, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, e.Day(e.Calendar.DateOf(today+int64(i)), now, display))
	}
	return out
}

func (e *Evaluator) ref(d Date) DayRef {
	return DayRef{Date: d, Ordinal: e.Calendar.Ordinal(d)}
}
