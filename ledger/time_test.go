package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lavadero/ledger"
)

// =============================================================================
// CALENDAR
// =============================================================================

func TestCalendar_DayRange(t *testing.T) {
	loc, err := time.LoadLocation("America/Guatemala")
	require.NoError(t, err)
	cal := ledger.FixedCalendar(time.Date(2024, 1, 1, 23, 30, 0, 0, loc))

	assert.Equal(t, ledger.DateKey("2024-01-01"), cal.Today())

	r, err := cal.DayRange("2024-01-01")
	require.NoError(t, err)
	assert.True(t, r.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)))
	assert.True(t, r.Contains(time.Date(2024, 1, 1, 23, 59, 59, 999999999, loc)))
	assert.False(t, r.Contains(time.Date(2024, 1, 2, 0, 0, 0, 0, loc)))
}

func TestCalendar_WeekStartsMonday(t *testing.T) {
	cal := ledger.NewCalendar(time.UTC)

	// 2024-01-04 is a Thursday
	r, err := cal.PeriodRange(ledger.PeriodWeek, "2024-01-04")
	require.NoError(t, err)

	assert.True(t, r.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, ledger.DateKey("2024-01-07"), cal.KeyOf(r.To))
}

func TestCalendar_Month(t *testing.T) {
	cal := ledger.NewCalendar(time.UTC)

	r, err := cal.PeriodRange(ledger.PeriodMonth, "2024-02-10")
	require.NoError(t, err)

	assert.Equal(t, ledger.DateKey("2024-02-01"), cal.KeyOf(r.From))
	assert.Equal(t, ledger.DateKey("2024-02-29"), cal.KeyOf(r.To))
}

func TestCalendar_LastDays(t *testing.T) {
	cal := ledger.FixedCalendar(time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC))

	days := cal.LastDays(3)

	assert.Equal(t, []ledger.DateKey{"2024-02-29", "2024-03-01", "2024-03-02"}, days)
}
