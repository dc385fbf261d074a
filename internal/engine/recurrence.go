package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tartampluch/go-skycal/internal/config"
)

// ErrInvalidRule is returned for malformed recurrence rules.
var ErrInvalidRule = errors.New(config.ErrInvalidRule)

// Rule kinds used in the JSON catalog format.
const (
	KindDaily           = "daily"
	KindEveryNDays      = "every_n_days"
	KindMonthRestricted = "month_restricted"
	KindDayRange        = "day_range"
	KindDaysOfMonth     = "days_of_month"
)

// DayRef is a normalized virtual day handed to recurrence rules.
type DayRef struct {
	Date
	Ordinal int64 // days since virtual day zero
}

// Recurrence decides whether an event occurs on a given virtual day.
// The set of implementations is closed; new events combine the existing
// variants instead of adding bespoke logic to the evaluator.
type Recurrence interface {
	Matches(day DayRef) bool
	Validate(daysPerMonth int) error
	Kind() string
	isRecurrence()
}

// Daily occurs on every virtual day.
type Daily struct{}

func (Daily) Matches(DayRef) bool { return true }
func (Daily) Validate(int) error  { return nil }
func (Daily) Kind() string        { return KindDaily }
func (Daily) isRecurrence()       {}

// EveryNDays occurs when the day ordinal modulo N equals Phase.
type EveryNDays struct {
	N     int
	Phase int
}

func (r EveryNDays) Matches(day DayRef) bool {
	_, rem := floorDiv(day.Ordinal, int64(r.N))
	return rem == int64(r.Phase)
}

func (r EveryNDays) Validate(int) error {
	if r.N <= 0 {
		return fmt.Errorf("%w: %s n=%d", ErrInvalidRule, KindEveryNDays, r.N)
	}
	if r.Phase < 0 || r.Phase >= r.N {
		return fmt.Errorf("%w: %s phase=%d outside [0,%d)", ErrInvalidRule, KindEveryNDays, r.Phase, r.N)
	}
	return nil
}

func (EveryNDays) Kind() string  { return KindEveryNDays }
func (EveryNDays) isRecurrence() {}

// MonthRestricted occurs only in the listed 0-indexed months.
// Within narrows the days inside those months; nil means every day.
type MonthRestricted struct {
	Months []int
	Within Recurrence
}

func (r MonthRestricted) Matches(day DayRef) bool {
	if !slices.Contains(r.Months, day.Month) {
		return false
	}
	return r.Within == nil || r.Within.Matches(day)
}

func (r MonthRestricted) Validate(daysPerMonth int) error {
	if len(r.Months) == 0 {
		return fmt.Errorf("%w: %s without months", ErrInvalidRule, KindMonthRestricted)
	}
	for _, m := range r.Months {
		if m < 0 || m >= config.MonthsPerYear {
			return fmt.Errorf("%w: %s month %d", ErrInvalidRule, KindMonthRestricted, m)
		}
	}
	if r.Within != nil {
		return r.Within.Validate(daysPerMonth)
	}
	return nil
}

func (MonthRestricted) Kind() string  { return KindMonthRestricted }
func (MonthRestricted) isRecurrence() {}

// DayRange occurs on days First..Last (inclusive, 0-indexed) of every month.
type DayRange struct {
	First int
	Last  int
}

func (r DayRange) Matches(day DayRef) bool {
	return day.Day >= r.First && day.Day <= r.Last
}

func (r DayRange) Validate(daysPerMonth int) error {
	if r.First < 0 || r.Last >= daysPerMonth || r.First > r.Last {
		return fmt.Errorf("%w: %s [%d,%d]", ErrInvalidRule, KindDayRange, r.First, r.Last)
	}
	return nil
}

func (DayRange) Kind() string  { return KindDayRange }
func (DayRange) isRecurrence() {}

// DaysOfMonth occurs on the listed 0-indexed days of every month.
type DaysOfMonth struct {
	Days []int
}

func (r DaysOfMonth) Matches(day DayRef) bool {
	return slices.Contains(r.Days, day.Day)
}

func (r DaysOfMonth) Validate(daysPerMonth int) error {
	if len(r.Days) == 0 {
		return fmt.Errorf("%w: %s without days", ErrInvalidRule, KindDaysOfMonth)
	}
	for _, d := range r.Days {
		if d < 0 || d >= daysPerMonth {
			return fmt.Errorf("%w: %s day %d", ErrInvalidRule, KindDaysOfMonth, d)
		}
	}
	return nil
}

func (DaysOfMonth) Kind() string  { return KindDaysOfMonth }
func (DaysOfMonth) isRecurrence() {}

// RuleSpec is the tagged JSON form of a Recurrence.
type RuleSpec struct {
	Kind   string    `json:"kind"`
	N      int       `json:"n,omitempty"`
	Phase  int       `json:"phase,omitempty"`
	Months []int     `json:"months,omitempty"`
	Within *RuleSpec `json:"within,omitempty"`
	First  int       `json:"first,omitempty"`
	Last   int       `json:"last,omitempty"`
	Days   []int     `json:"days,omitempty"`
}

// Build converts the spec into its Recurrence variant.
// Shape validation against the month length happens in NewCatalog.
func (s RuleSpec) Build() (Recurrence, error) {
	switch s.Kind {
	case KindDaily:
		return Daily{}, nil
	case KindEveryNDays:
		return EveryNDays{N: s.N, Phase: s.Phase}, nil
	case KindMonthRestricted:
		r := MonthRestricted{Months: slices.Clone(s.Months)}
		if s.Within != nil {
			within, err := s.Within.Build()
			if err != nil {
				return nil, err
			}
			r.Within = within
		}
		return r, nil
	case KindDayRange:
		return DayRange{First: s.First, Last: s.Last}, nil
	case KindDaysOfMonth:
		return DaysOfMonth{Days: slices.Clone(s.Days)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, s.Kind)
	}
}
