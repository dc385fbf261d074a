package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// ErrInvalidMoment is returned when a VirtualMoment has out-of-range fields.
var ErrInvalidMoment = errors.New(config.ErrInvalidMoment)

// MaxRatio bounds the acceleration so that every virtual second maps to at
// least one real millisecond, which keeps FromVirtual an exact inverse.
const MaxRatio = config.MillisPerSec

// Calendar maps real instants onto the virtual clock.
// It is a value type: copies are cheap and never share state.
type Calendar struct {
	// Epoch is the real instant of virtual year 0, day 0, 00:00:00.
	Epoch time.Time

	// Ratio is the number of virtual seconds per real second.
	Ratio int64

	// DaysPerMonth is identical for every month (no leap handling).
	DaysPerMonth int
}

// NewCalendar builds a Calendar with the configured month length.
func NewCalendar(epoch time.Time, ratio int64) Calendar {
	return Calendar{
		Epoch:        epoch.UTC(),
		Ratio:        ratio,
		DaysPerMonth: config.DaysPerMonth,
	}
}

// VirtualMoment is a decomposed virtual timestamp.
// Month and Day are 0-indexed; use Date().Display() for presentation.
type VirtualMoment struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Date is a virtual calendar day. Month and Day are 0-indexed.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Date drops the time-of-day fields.
func (v VirtualMoment) Date() Date {
	return Date{Year: v.Year, Month: v.Month, Day: v.Day}
}

// SecondOfDay returns the elapsed virtual seconds since the start of the day.
func (v VirtualMoment) SecondOfDay() int {
	return (v.Hour*config.MinutesPerHour+v.Minute)*config.SecsPerMinute + v.Second
}

func (c Calendar) days() int64 {
	if c.DaysPerMonth <= 0 {
		return config.DaysPerMonth
	}
	return int64(c.DaysPerMonth)
}

func (c Calendar) ratio() int64 {
	if c.Ratio <= 0 {
		return config.DefaultRatio
	}
	return c.Ratio
}

// DaysPerYear returns the fixed year length in virtual days.
func (c Calendar) DaysPerYear() int64 {
	return c.days() * config.MonthsPerYear
}

// ElapsedSeconds converts a real instant into elapsed virtual seconds.
// Instants before the epoch clamp to zero.
func (c Calendar) ElapsedSeconds(now time.Time) int64 {
	elapsedMs := now.UnixMilli() - c.Epoch.UnixMilli()
	if elapsedMs < 0 {
		return 0
	}
	return elapsedMs * c.ratio() / config.MillisPerSec
}

// ToVirtual converts a real instant into the virtual calendar position.
func (c Calendar) ToVirtual(now time.Time) VirtualMoment {
	return c.MomentAt(c.ElapsedSeconds(now))
}

// MomentAt decomposes elapsed virtual seconds with the radices {60, 60, 24, D, 12}.
func (c Calendar) MomentAt(secs int64) VirtualMoment {
	if secs < 0 {
		secs = 0
	}
	var v VirtualMoment
	v.Second = int(secs % config.SecsPerMinute)
	mins := secs / config.SecsPerMinute
	v.Minute = int(mins % config.MinutesPerHour)
	hours := mins / config.MinutesPerHour
	v.Hour = int(hours % config.HoursPerDay)

	d := c.DateOf(hours / config.HoursPerDay)
	v.Day, v.Month, v.Year = d.Day, d.Month, d.Year
	return v
}

// Seconds recomposes the scalar elapsed virtual seconds of v.
// v is assumed to be valid; see Validate.
func (c Calendar) Seconds(v VirtualMoment) int64 {
	return c.Ordinal(v.Date())*config.SecondsPerDay + int64(v.SecondOfDay())
}

// Validate rejects moments that MomentAt could never produce.
func (c Calendar) Validate(v VirtualMoment) error {
	switch {
	case v.Year < 0:
		return fmt.Errorf("%w: year %d", ErrInvalidMoment, v.Year)
	case v.Month < 0 || v.Month >= config.MonthsPerYear:
		return fmt.Errorf("%w: month %d", ErrInvalidMoment, v.Month)
	case v.Day < 0 || int64(v.Day) >= c.days():
		return fmt.Errorf("%w: day %d", ErrInvalidMoment, v.Day)
	case v.Hour < 0 || v.Hour >= config.HoursPerDay:
		return fmt.Errorf("%w: hour %d", ErrInvalidMoment, v.Hour)
	case v.Minute < 0 || v.Minute >= config.MinutesPerHour:
		return fmt.Errorf("%w: minute %d", ErrInvalidMoment, v.Minute)
	case v.Second < 0 || v.Second >= config.SecsPerMinute:
		return fmt.Errorf("%w: second %d", ErrInvalidMoment, v.Second)
	}
	return nil
}

// FromVirtual returns the earliest real instant at which the virtual clock reads v.
// ToVirtual(FromVirtual(v)) == v for every valid v when Ratio <= MaxRatio.
func (c Calendar) FromVirtual(v VirtualMoment) (time.Time, error) {
	if err := c.Validate(v); err != nil {
		return time.Time{}, err
	}
	return c.instantOf(c.Seconds(v)), nil
}

// instantOf maps virtual seconds (possibly negative) to the earliest real instant.
func (c Calendar) instantOf(secs int64) time.Time {
	ms := ceilDiv(secs*config.MillisPerSec, c.ratio())
	return time.UnixMilli(c.Epoch.UnixMilli() + ms).UTC()
}

// RealDuration converts a span of virtual seconds into real time.
func (c Calendar) RealDuration(virtualSecs int64) time.Duration {
	return time.Duration(virtualSecs*config.MillisPerSec/c.ratio()) * time.Millisecond
}

// RealDayLength is the real duration of one virtual day.
func (c Calendar) RealDayLength() time.Duration {
	return c.RealDuration(config.SecondsPerDay)
}

// Ordinal returns the number of days since virtual day zero.
// Out-of-range months and days carry into the higher unit.
func (c Calendar) Ordinal(d Date) int64 {
	return (int64(d.Year)*config.MonthsPerYear+int64(d.Month))*c.days() + int64(d.Day)
}

// DateOf is the inverse of Ordinal, using floored division so that negative
// ordinals borrow from the previous month and year.
func (c Calendar) DateOf(ordinal int64) Date {
	months, day := floorDiv(ordinal, c.days())
	year, month := floorDiv(months, config.MonthsPerYear)
	return Date{Year: int(year), Month: int(month), Day: int(day)}
}

// Normalize carries overflow of day into month and of month into year.
// Normalize(Y, 11, D) == Date{Y+1, 0, 0}; Normalize(Y, -1, 0) == Date{Y-1, 11, 0}.
func (c Calendar) Normalize(year, month, day int) Date {
	return c.DateOf(c.Ordinal(Date{Year: year, Month: month, Day: day}))
}

// DayStart returns the real instant the given virtual day begins.
func (c Calendar) DayStart(d Date) time.Time {
	return c.instantOf(c.Ordinal(d) * config.SecondsPerDay)
}

func floorDiv(a, b int64) (q, r int64) {
	q, r = a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

func ceilDiv(a, b int64) int64 {
	q, r := floorDiv(a, b)
	if r != 0 {
		q++
	}
	return q
}
