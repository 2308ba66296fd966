package datefilter

import (
	"fmt"
	"strings"
	"time"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
)

// Range is an inclusive calendar-date interval. A zero Start or End leaves
// that side unbounded.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether d lies within the range, comparing calendar dates only.
func (r Range) Contains(d time.Time) bool {
	day := truncate(d)
	if !r.Start.IsZero() && day.Before(truncate(r.Start)) {
		return false
	}
	if !r.End.IsZero() && day.After(truncate(r.End)) {
		return false
	}
	return true
}

// Validate reports a range whose start is after its end. Such a range is
// legal but matches nothing.
func (r Range) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && truncate(r.Start).After(truncate(r.End)) {
		return apperrors.NewValidationError(
			fmt.Sprintf("start date %s is after end date %s",
				r.Start.Format(config.InputDateLayout), r.End.Format(config.InputDateLayout)), nil)
	}
	return nil
}

// Unbounded reports whether neither side is set.
func (r Range) Unbounded() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", formatBound(r.Start), formatBound(r.End))
}

// ParseRange parses operator input in the 2006-01-02 layout. Both dates are required.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Range{}, fmt.Errorf("start date: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return Range{}, fmt.Errorf("end date: %w", err)
	}
	return Range{Start: s, End: e}, nil
}

// ParseDate parses a single operator-supplied date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperrors.NewValidationError("date is required", nil)
	}
	d, err := time.Parse(config.InputDateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(
			fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value), err)
	}
	return d, nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format(config.InputDateLayout)
}
