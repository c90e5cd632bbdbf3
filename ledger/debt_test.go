package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/lavadero/ledger"
)

// =============================================================================
// DEBT CALCULATOR
// =============================================================================

func TestCalculateDebt_JobsAndManualDebts(t *testing.T) {
	// GIVEN: One partially paid job, one paid job and a manual debt
	// WHEN: Calculating debt
	// THEN: Only outstanding amounts are summed

	jobs := []ledger.WashJob{
		job("j1", 20, 5, 0),
		job("j2", 10, 10, 1),
	}
	debts := []ledger.ManualDebt{manual("m1", 30, 10, 0)}

	d := ledger.CalculateDebt(jobs, debts)

	assert.True(t, d.WashJobs.Equal(dec(15)))
	assert.True(t, d.ManualDebts.Equal(dec(20)))
	assert.True(t, d.Total.Equal(dec(35)))
}

func TestCalculateDebt_MissingAmountsCountAsZero(t *testing.T) {
	d := ledger.CalculateDebt([]ledger.WashJob{{Price: dec(8)}}, []ledger.ManualDebt{{}})

	assert.True(t, d.Total.Equal(dec(8)))
}

func TestCalculateDebt_NeverNegative(t *testing.T) {
	// GIVEN: A corrupt manual debt paid beyond its amount
	// THEN: Total is floored at zero
	d := ledger.CalculateDebt(nil, []ledger.ManualDebt{manual("m1", 10, 25, 0)})

	assert.True(t, d.Total.IsZero())
}

func TestCalculateDebt_FreeJobsOweNothing(t *testing.T) {
	d := ledger.CalculateDebt([]ledger.WashJob{job("free", 0, 0, 0)}, nil)

	assert.True(t, d.Total.IsZero())
}

// =============================================================================
// JOB STATUS
// =============================================================================

func TestWashJob_Status(t *testing.T) {
	cases := []struct {
		name        string
		price, paid float64
		want        ledger.JobStatus
	}{
		{"free", 0, 0, ledger.StatusFree},
		{"paid", 20, 20, ledger.StatusPaid},
		{"partial", 20, 5, ledger.StatusPartial},
		{"pending", 20, 0, ledger.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, job("j", tc.price, tc.paid, 0).Status())
		})
	}
}
