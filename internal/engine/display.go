package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// DisplayDate is the 1-indexed presentation of a Date.
// It is the only place where the engine's 0-indexed fields are shifted.
type DisplayDate struct {
	Day       int    // 1..DaysPerMonth
	Month     int    // 1..12
	Year      int    // in-world years are counted from 1
	MonthName string // "Early Spring"
	Suffix    string // "st", "nd", "rd", "th"
}

// Display converts d for presentation.
func (d Date) Display() DisplayDate {
	return DisplayDate{
		Day:       d.Day + 1,
		Month:     d.Month + 1,
		Year:      d.Year + 1,
		MonthName: MonthName(d.Month),
		Suffix:    OrdinalSuffix(d.Day + 1),
	}
}

// String renders "5th Early Spring, Year 312".
func (d DisplayDate) String() string {
	return fmt.Sprintf(config.FallbackDate, d.Day, d.Suffix, d.MonthName, d.Year)
}

// MonthName returns the in-world name of a 0-indexed month.
func MonthName(month int) string {
	_, m := floorDiv(int64(month), config.MonthsPerYear)
	return config.MonthNames[m]
}

// OrdinalSuffix returns the English suffix for n ("1st", "12th", "23rd").
func OrdinalSuffix(n int) string {
	if n < 0 {
		n = -n
	}
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// Clock renders the virtual time of day as "HH:MM".
func (v VirtualMoment) Clock() string {
	return fmt.Sprintf(config.ClockFormat, v.Hour, v.Minute)
}

// FormatDuration renders a real duration compactly ("1d 2h 3m", "14m", "45s").
// Sub-second precision is dropped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}

	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", mins))
	return strings.Join(parts, " ")
}
