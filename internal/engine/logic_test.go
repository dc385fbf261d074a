package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testEpoch = time.UnixMilli(1560275700000).UTC()

// TestFloorDiv verifies the floored division used to decompose ordinals.
// Negative inputs must borrow so the remainder stays in [0, b).
func TestFloorDiv(t *testing.T) {
	tests := []struct {
		name  string
		a, b  int64
		wantQ int64
		wantR int64
	}{
		{"Positive", 7, 3, 2, 1},
		{"Exact", 6, 3, 2, 0},
		{"Zero", 0, 31, 0, 0},
		{"Negative borrows", -1, 31, -1, 30},
		{"Negative exact", -31, 31, -1, 0},
		{"Negative past one unit", -32, 31, -2, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, r := floorDiv(tt.a, tt.b)
			assert.Equal(t, tt.wantQ, q, "quotient")
			assert.Equal(t, tt.wantR, r, "remainder")
		})
	}
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, int64(0), ceilDiv(0, 72))
	assert.Equal(t, int64(1), ceilDiv(1, 72))
	assert.Equal(t, int64(1), ceilDiv(72, 72))
	assert.Equal(t, int64(2), ceilDiv(73, 72))
	assert.Equal(t, int64(0), ceilDiv(-1, 72), "Ceiling of a small negative is zero")
	assert.Equal(t, int64(-1), ceilDiv(-72, 72))
}

// TestDefaultCatalog_Integrity guards the built-in table against accidental
// edits: unique IDs, valid rules, and the kings rotating through a full week.
func TestDefaultCatalog_Integrity(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, len(c.defs), len(c.index), "Index must cover every definition")
	for i, def := range c.defs {
		assert.Equal(t, i, c.index[def.ID], "Index must point at insertion position for %s", def.ID)
		assert.NoError(t, def.Rule.Validate(31), "Rule of %s must be valid", def.ID)
	}

	cal := NewCalendar(testEpoch, 72)
	for day := int64(0); day < int64(len(dwarvenKings)); day++ {
		kings := 0
		for _, def := range c.defs {
			if def.Rule.Kind() != KindEveryNDays {
				continue
			}
			if r := def.Rule.(EveryNDays); r.N == len(dwarvenKings) && r.Matches(DayRef{Date: cal.DateOf(day), Ordinal: day}) {
				kings++
			}
		}
		assert.Equal(t, 1, kings, "Exactly one king per day (day %d)", day)
	}
}
