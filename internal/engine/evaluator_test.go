package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-skycal/internal/engine"
)

func ids(defs []engine.EventDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ID)
	}
	return out
}

func newTestEvaluator(t *testing.T) *engine.Evaluator {
	t.Helper()
	c, err := engine.NewCatalog(
		engine.EventDefinition{ID: "daily", Rule: engine.Daily{}},
		engine.EventDefinition{ID: "odd", Rule: engine.EveryNDays{N: 2, Phase: 1}},
		engine.EventDefinition{ID: "winter_end", Rule: engine.MonthRestricted{Months: []int{11}, Within: engine.DayRange{First: 28, Last: 30}}},
	)
	require.NoError(t, err)
	return engine.NewEvaluator(c, defaultCalendar())
}

func TestOccurrencesOn_Order(t *testing.T) {
	e := newTestEvaluator(t)

	assert.Equal(t, []string{"daily"}, ids(e.OccurrencesOn(0, 0, 0, nil)))
	assert.Equal(t, []string{"daily", "odd"}, ids(e.OccurrencesOn(0, 0, 1, nil)))
	// Ordinal 370 is even.
	assert.Equal(t, []string{"daily", "winter_end"}, ids(e.OccurrencesOn(0, 11, 29, nil)))
}

func TestOccurrencesOn_DisplayConfig(t *testing.T) {
	e := newTestEvaluator(t)

	display := engine.DisplayConfig{"daily": false}
	assert.Equal(t, []string{"odd"}, ids(e.OccurrencesOn(0, 0, 1, display)))

	none := engine.DisplayConfig{"daily": false, "odd": false, "winter_end": false}
	assert.Empty(t, e.OccurrencesOn(0, 11, 29, none))
}

// TestOccurrencesOn_Overflow checks month and year carry.
func TestOccurrencesOn_Overflow(t *testing.T) {
	e := engine.NewEvaluator(engine.DefaultCatalog(), defaultCalendar())

	for _, year := range []int{0, 1, 311} {
		assert.Equal(t,
			ids(e.OccurrencesOn(year+1, 0, 0, nil)),
			ids(e.OccurrencesOn(year, 11, 31, nil)),
			"Day 31 of Late Winter is the first day of year %d", year+1)
	}
	assert.Equal(t,
		ids(e.OccurrencesOn(4, 11, 30, nil)),
		ids(e.OccurrencesOn(5, 0, -1, nil)),
		"Negative day borrows from the previous year")
	assert.Equal(t,
		ids(e.OccurrencesOn(2, 0, 5, nil)),
		ids(e.OccurrencesOn(1, 12, 5, nil)),
		"Month 12 carries into the next year")
}

// TestOccurrencesOn_Pure verifies that evaluation has no hidden state.
func TestOccurrencesOn_Pure(t *testing.T) {
	e := engine.NewEvaluator(engine.DefaultCatalog(), defaultCalendar())

	first := e.OccurrencesOn(12, 7, 29, nil)
	for range 5 {
		assert.Equal(t, first, e.OccurrencesOn(12, 7, 29, nil))
	}
}

func TestOccurrencesOn_DefaultCatalog(t *testing.T) {
	e := engine.NewEvaluator(engine.DefaultCatalog(), defaultCalendar())

	// Year 0, day 0: ordinal 0.
	day0 := ids(e.OccurrencesOn(0, 0, 0, nil))
	assert.Contains(t, day0, "dark_auction")
	assert.Contains(t, day0, "hoppity_hunt")
	assert.Contains(t, day0, "king_brammor")
	assert.NotContains(t, day0, "jacobs_contest")

	spooky := ids(e.OccurrencesOn(0, 7, 29, nil))
	assert.Contains(t, spooky, "spooky_festival")

	winter := ids(e.OccurrencesOn(0, 11, 24, nil))
	assert.Contains(t, winter, "season_of_jerry")
	assert.Contains(t, winter, "jerry_workshop")
	assert.NotContains(t, winter, "new_year")
}

func TestDayState_Boundaries(t *testing.T) {
	e := newTestEvaluator(t)
	day := engine.Date{Day: 1}

	tests := []struct {
		name  string
		now   engine.VirtualMoment
		phase engine.DayPhase
		check func(t *testing.T, s engine.DayState)
	}{
		{
			name:  "Half a day before",
			now:   engine.VirtualMoment{Hour: 12},
			phase: engine.PhaseFuture,
			check: func(t *testing.T, s engine.DayState) {
				assert.Equal(t, 10*time.Minute, s.TimeUntilStart)
			},
		},
		{
			name:  "Last second before",
			now:   engine.VirtualMoment{Hour: 23, Minute: 59, Second: 59},
			phase: engine.PhaseFuture,
		},
		{
			name:  "First second is active",
			now:   engine.VirtualMoment{Day: 1},
			phase: engine.PhaseActive,
			check: func(t *testing.T, s engine.DayState) {
				assert.Equal(t, 0.0, s.FractionElapsed)
			},
		},
		{
			name:  "Quarter day",
			now:   engine.VirtualMoment{Day: 1, Hour: 6},
			phase: engine.PhaseActive,
			check: func(t *testing.T, s engine.DayState) {
				assert.InDelta(t, 0.25, s.FractionElapsed, 1e-9)
			},
		},
		{
			name:  "Last second is active",
			now:   engine.VirtualMoment{Day: 1, Hour: 23, Minute: 59, Second: 59},
			phase: engine.PhaseActive,
			check: func(t *testing.T, s engine.DayState) {
				assert.Less(t, s.FractionElapsed, 1.0)
			},
		},
		{
			name:  "Next day start is past",
			now:   engine.VirtualMoment{Day: 2},
			phase: engine.PhasePast,
			check: func(t *testing.T, s engine.DayState) {
				assert.Equal(t, time.Duration(0), s.TimeSinceEnd)
			},
		},
		{
			name:  "One day after",
			now:   engine.VirtualMoment{Day: 3},
			phase: engine.PhasePast,
			check: func(t *testing.T, s engine.DayState) {
				assert.Equal(t, 20*time.Minute, s.TimeSinceEnd)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.DayState(day, tt.now)
			assert.Equal(t, tt.phase, s.Phase)
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestEvaluator_Day(t *testing.T) {
	e := newTestEvaluator(t)
	now := engine.VirtualMoment{Day: 1, Hour: 18}

	today := e.Day(engine.Date{Day: 1}, now, nil)
	assert.True(t, today.IsToday)
	assert.InDelta(t, 0.75, today.FractionElapsed, 1e-9)
	assert.Equal(t, []string{"daily", "odd"}, ids(today.Events))

	tomorrow := e.Day(engine.Date{Day: 2}, now, nil)
	assert.False(t, tomorrow.IsToday)
	assert.Zero(t, tomorrow.FractionElapsed)
	assert.Equal(t, engine.PhaseFuture, tomorrow.State.Phase)
	assert.Equal(t, 5*time.Minute, tomorrow.State.TimeUntilStart)

	// Unnormalized input is carried.
	carried := e.Day(engine.Date{Month: 11, Day: 31}, now, nil)
	assert.Equal(t, engine.Date{Year: 1}, carried.Date)
}

func TestEvaluator_Upcoming(t *testing.T) {
	e := newTestEvaluator(t)
	now := engine.VirtualMoment{Month: 11, Day: 29, Hour: 1}

	days := e.Upcoming(now, 4, nil)
	require.Len(t, days, 4)

	assert.True(t, days[0].IsToday)
	assert.Equal(t, engine.Date{Month: 11, Day: 29}, days[0].Date)
	assert.Equal(t, engine.Date{Month: 11, Day: 30}, days[1].Date)
	assert.Equal(t, engine.Date{Year: 1}, days[2].Date, "Upcoming crosses the year boundary")
	for _, d := range days[1:] {
		assert.False(t, d.IsToday)
		assert.Equal(t, engine.PhaseFuture, d.State.Phase)
	}

	assert.Empty(t, e.Upcoming(now, 0, nil))
	assert.Empty(t, e.Upcoming(now, -3, nil))
}

func TestDayPhase_String(t *testing.T) {
	assert.Equal(t, "future", engine.PhaseFuture.String())
	assert.Equal(t, "active", engine.PhaseActive.String())
	assert.Equal(t, "past", engine.PhasePast.String())
	assert.Equal(t, "unknown", engine.DayPhase(42).String())
}
