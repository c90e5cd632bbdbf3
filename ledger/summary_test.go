package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/lavadero/ledger"
)

// =============================================================================
// SUMMARY AND CUADRE
// =============================================================================

func TestSummarize(t *testing.T) {
	// GIVEN: Three jobs (one free, one pending), two payments, one expense
	jobs := []ledger.WashJob{job("free", 0, 0, 0), job("paid", 15, 15, 1), job("open", 20, 5, 2)}
	payments := []ledger.Payment{{Amount: dec(15)}, {Amount: dec(5)}}
	expenses := []ledger.Expense{{Monto: dec(7.5)}}

	// WHEN
	s := ledger.Summarize(jobs, payments, expenses)

	// THEN
	assert.Equal(t, 3, s.Lavados)
	assert.Equal(t, 1, s.Pendientes)
	assert.True(t, s.Ingresos.Equal(dec(20)))
	assert.True(t, s.Gastos.Equal(dec(7.5)))
	assert.True(t, s.BalanceTeorico.Equal(dec(12.5)))
}

func TestNewCuadre(t *testing.T) {
	counted := decimal.RequireFromString("98.456")
	c := ledger.NewCuadre(dec(100), &counted)

	assert.True(t, c.HizoCuadre)
	assert.True(t, c.EfectivoEsperado.Equal(dec(100)))
	assert.Equal(t, "-1.544", c.Diferencia.String())

	none := ledger.NewCuadre(dec(100), nil)
	assert.False(t, none.HizoCuadre)
	assert.True(t, none.EfectivoReal.Equal(dec(100)))
	assert.True(t, none.Diferencia.IsZero())
}

func TestNewCuadre_SubCentCountKeepsExactDifference(t *testing.T) {
	// GIVEN: 10 expected and 10.005 counted
	counted := decimal.RequireFromString("10.005")

	// WHEN
	c := ledger.NewCuadre(dec(10), &counted)

	// THEN: diferencia is real - esperado with nothing rounded away
	assert.True(t, c.Diferencia.Equal(c.EfectivoReal.Sub(c.EfectivoEsperado)))
	assert.Equal(t, "0.005", c.Diferencia.String())
}
