package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DATE KEY - A business day as "YYYY-MM-DD"
// =============================================================================

const dateKeyLayout = "2006-01-02"

// DateKey identifies a business day. Keys sort lexicographically in date order.
type DateKey string

// ParseDateKey validates a "YYYY-MM-DD" string.
func ParseDateKey(s string) (DateKey, error) {
	if _, err := time.Parse(dateKeyLayout, s); err != nil {
		return "", Invalid("date", fmt.Sprintf("%q is not YYYY-MM-DD", s))
	}
	return DateKey(s), nil
}

func (k DateKey) Before(other DateKey) bool { return k < other }

func (k DateKey) String() string { return string(k) }

// =============================================================================
// RANGE - Inclusive time window
// =============================================================================

// Range is the closed interval [From, To].
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Period selects a reporting window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts day, week and month; empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodWeek, PeriodMonth:
		return Period(s), nil
	}
	return "", Invalid("periodo", fmt.Sprintf("unknown period %q", s))
}

// =============================================================================
// CALENDAR - Business timezone and clock
// =============================================================================

// Calendar resolves "today" and day boundaries in the business timezone.
// Both the shift date key and the close range come from the same calendar,
// so they always agree.
type Calendar struct {
	Location *time.Location
	// Now is the clock. Tests replace it; nil means time.Now.
	Now func() time.Time
}

// NewCalendar returns a calendar for loc (UTC when nil).
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{Location: loc}
}

// FixedCalendar returns a calendar whose clock is stuck at t. Used by tests
// and scenarios.
func FixedCalendar(t time.Time) *Calendar {
	return &Calendar{Location: t.Location(), Now: func() time.Time { return t }}
}

// Current returns the current instant in the business timezone.
func (c *Calendar) Current() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(c.Location)
}

// Today is the date key of the current business day.
func (c *Calendar) Today() DateKey {
	return c.KeyOf(c.Current())
}

// KeyOf returns the business day containing t.
func (c *Calendar) KeyOf(t time.Time) DateKey {
	return DateKey(t.In(c.Location).Format(dateKeyLayout))
}

// StartOf returns midnight of the given business day.
func (c *Calendar) StartOf(k DateKey) (time.Time, error) {
	t, err := time.ParseInLocation(dateKeyLayout, string(k), c.Location)
	if err != nil {
		return time.Time{}, Invalid("date", fmt.Sprintf("%q is not YYYY-MM-DD", k))
	}
	return t, nil
}

// DayRange is [00:00:00, 23:59:59.999999999] of the given business day.
func (c *Calendar) DayRange(k DateKey) (Range, error) {
	start, err := c.StartOf(k)
	if err != nil {
		return Range{}, err
	}
	return Range{From: start, To: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

// PeriodRange returns the window of the given period containing day k.
// Weeks start on Monday.
func (c *Calendar) PeriodRange(p Period, k DateKey) (Range, error) {
	start, err := c.StartOf(k)
	if err != nil {
		return Range{}, err
	}
	var end time.Time
	switch p {
	case PeriodWeek:
		offset := (int(start.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	case PeriodMonth:
		start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, c.Location)
		end = start.AddDate(0, 1, 0)
	default:
		end = start.AddDate(0, 0, 1)
	}
	return Range{From: start, To: end.Add(-time.Nanosecond)}, nil
}

// LastDays returns the n date keys ending today, oldest first.
func (c *Calendar) LastDays(n int) []DateKey {
	today := c.Current()
	keys := make([]DateKey, 0, n)
	for i := n - 1; i >= 0; i-- {
		keys = append(keys, c.KeyOf(today.AddDate(0, 0, -i)))
	}
	return keys
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}
