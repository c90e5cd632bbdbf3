/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos and manual testing. Each scenario drives the real
	services, so the stored documents are exactly what the POS would write.

AVAILABLE SCENARIOS:

	dia-completo:        Open shift with paid, free and pending jobs, a client
	                     payment and an expense
	fifo:                Clients with several unpaid jobs and manual debts,
	                     ready to receive a payment
	jornada-abandonada:  Yesterday's shift left active, for the auto-close

HOW SCENARIOS WORK:
 1. Reset ledger data (users are kept)
 2. Build services on a calendar fixed at the scenario's time
 3. Create clients, shifts, jobs, debts and payments through them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "fifo"}

NOTE:

	Scenarios reset the database. Only mounted in development.

SEE ALSO:
  - server.go: Route registration (DevMode)
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/cliente"
	"github.com/warp/lavadero/jornada"
	"github.com/warp/lavadero/lavado"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/pago"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "dia-completo",
		Name:        "Día completo",
		Description: "Jornada abierta con lavados pagados, gratis y pendientes, un abono y un gasto",
	},
	{
		ID:          "fifo",
		Name:        "Abonos FIFO",
		Description: "Clientes con varios lavados pendientes y deudas manuales",
	},
	{
		ID:          "jornada-abandonada",
		Name:        "Jornada abandonada",
		Description: "La jornada de ayer quedó activa; el cierre automático la cierra",
	},
}

// ListScenarios returns all available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario id, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets ledger data and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !bindAndValidate(w, r, &req) {
		return
	}

	var loader func(context.Context, ledger.Actor) error
	switch req.ScenarioID {
	case "dia-completo":
		loader = h.loadFullDayScenario
	case "fifo":
		loader = h.loadFIFOScenario
	case "jornada-abandonada":
		loader = h.loadAbandonedShiftScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	// One load at a time; a concurrent load would interleave with the reset.
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := loader(ctx, mustActor(r)); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// services is the set of services bound to one fixed instant.
type services struct {
	jornadas *jornada.Service
	lavados  *lavado.Service
	clientes *cliente.Service
	pagos    *pago.Service
}

// at returns services whose clock reads the given time of the day offset
// from today, in the business timezone.
func (h *Handler) at(dayOffset, hour, minute int) services {
	today := h.Cal.Current()
	t := time.Date(today.Year(), today.Month(), today.Day()+dayOffset, hour, minute, 0, 0, h.Cal.Location)
	cal := &ledger.Calendar{Location: h.Cal.Location, Now: func() time.Time { return t }}
	return services{
		jornadas: jornada.NewService(h.Store, cal),
		lavados:  lavado.NewService(h.Store, cal),
		clientes: cliente.NewService(h.Store, cal),
		pagos:    pago.NewService(h.Store, cal),
	}
}

func money(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func (h *Handler) loadFullDayScenario(ctx context.Context, actor ledger.Actor) error {
	s := h.at(0, 7, 30)
	if _, err := s.jornadas.Open(ctx, actor); err != nil {
		return err
	}
	carlos, err := s.clientes.Create(ctx, actor, cliente.Input{Name: "Carlos Méndez", Phone: "5555-0101"})
	if err != nil {
		return err
	}
	taxis, err := s.clientes.Create(ctx, actor, cliente.Input{Name: "Taxis El Rápido", Note: "Paga los viernes"})
	if err != nil {
		return err
	}

	jobs := []struct {
		hour, minute int
		in           lavado.Input
	}{
		{8, 5, lavado.Input{VehicleType: "Auto", Description: "Lavado sencillo", Price: money(20)}},
		{8, 40, lavado.Input{VehicleType: "Pickup", Description: "Lavado completo", Price: money(20), ClientID: carlos.ID, Pending: true}},
		{9, 15, lavado.Input{VehicleType: "Moto", Price: money(10)}},
		{10, 0, lavado.Input{VehicleType: "Taxi", Price: money(15), ClientID: taxis.ID, Pending: true}},
		{10, 30, lavado.Input{VehicleType: "Taxi", Price: money(15), ClientID: taxis.ID, Pending: true}},
		{11, 10, lavado.Input{VehicleType: "Auto", Description: "Cortesía", Price: money(0)}},
	}
	for _, j := range jobs {
		if _, err := h.at(0, j.hour, j.minute).lavados.Create(ctx, actor, j.in); err != nil {
			return err
		}
	}

	if _, err := h.at(0, 12, 0).pagos.Register(ctx, actor, pago.RegisterInput{ClientID: carlos.ID, Amount: money(20)}); err != nil {
		return err
	}
	if _, err := h.at(0, 12, 30).pagos.Register(ctx, actor, pago.RegisterInput{ClientID: taxis.ID, Amount: money(18)}); err != nil {
		return err
	}
	_, err = h.at(0, 13, 0).jornadas.RecordExpense(ctx, actor, jornada.ExpenseInput{Concepto: "Shampoo", Monto: money(12.5)})
	return err
}

func (h *Handler) loadFIFOScenario(ctx context.Context, actor ledger.Actor) error {
	// Two past days of jobs, then today's shift ready to receive payments.
	for day := -2; day <= 0; day++ {
		s := h.at(day, 7, 0)
		shift, err := s.jornadas.Open(ctx, actor)
		if err != nil {
			return err
		}
		if day == -2 {
			if err := h.seedFIFOClients(ctx, actor); err != nil {
				return err
			}
		}
		if day < 0 {
			if _, err := h.at(day, 18, 0).jornadas.Close(ctx, actor, shift.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) seedFIFOClients(ctx context.Context, actor ledger.Actor) error {
	s := h.at(-2, 7, 5)
	ana, err := s.clientes.Create(ctx, actor, cliente.Input{Name: "Ana López"})
	if err != nil {
		return err
	}
	flota, err := s.clientes.Create(ctx, actor, cliente.Input{Name: "Flota Transportes"})
	if err != nil {
		return err
	}

	if _, err := h.at(-2, 7, 10).clientes.AddManualDebt(ctx, actor, flota.ID, cliente.ManualDebtInput{Note: "Saldo del mes anterior", Amount: money(40)}); err != nil {
		return err
	}
	prices := []float64{10, 15, 12}
	for i, p := range prices {
		in := lavado.Input{VehicleType: "Auto", Price: money(p), ClientID: ana.ID, Pending: true}
		if _, err := h.at(-2, 9+i, 0).lavados.Create(ctx, actor, in); err != nil {
			return err
		}
	}
	for i := 0; i < 4; i++ {
		in := lavado.Input{VehicleType: "Camión", Price: money(35), ClientID: flota.ID, Pending: true}
		if _, err := h.at(-2, 13+i, 0).lavados.Create(ctx, actor, in); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadAbandonedShiftScenario(ctx context.Context, actor ledger.Actor) error {
	s := h.at(-1, 7, 0)
	if _, err := s.jornadas.Open(ctx, actor); err != nil {
		return err
	}
	for i, p := range []float64{20, 25, 10} {
		in := lavado.Input{VehicleType: "Auto", Price: money(p)}
		if _, err := h.at(-1, 9+i, 0).lavados.Create(ctx, actor, in); err != nil {
			return err
		}
	}
	_, err := h.at(-1, 15, 0).jornadas.RecordExpense(ctx, actor, jornada.ExpenseInput{Concepto: "Agua", Monto: money(8)})
	return err
}
