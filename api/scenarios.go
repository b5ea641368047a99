/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Populates the database with realistic crews and a partly filled month
	so the grid can be demoed without data entry.

AVAILABLE SCENARIOS:

	single-site:   One site, five workers, first week of the current month
	multi-site:    Two sites sharing a foreman, with a site holiday
	overtime-heavy: Concrete pour week with Sunday and weekday overtime

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create sites and workers, assign rosters
 3. Write attendance rows and bonuses for the current month
 4. Publish RosterChanged per site so open ledgers reload

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "single-site"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/events"
	"github.com/warp/site-attendance/generic"
	"github.com/warp/site-attendance/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-site",
		Name:        "Single Site",
		Description: "One site, five workers, the first week of the month filled in",
	},
	{
		ID:          "multi-site",
		Name:        "Multi Site",
		Description: "Two sites sharing a foreman, one site-only holiday",
	},
	{
		ID:          "overtime-heavy",
		Name:        "Overtime Heavy",
		Description: "Concrete pour week with Sunday and weekday overtime, bonuses set",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context, generic.Month) ([]generic.SiteID, error)
	switch req.ScenarioID {
	case "single-site":
		load = h.loadSingleSiteScenario
	case "multi-site":
		load = h.loadMultiSiteScenario
	case "overtime-heavy":
		load = h.loadOvertimeHeavyScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	now := time.Now()
	month := generic.NewMonth(now.Year(), now.Month())
	sites, err := load(ctx, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	for _, siteID := range sites {
		events.Publish(h.Bus, events.RosterChanged, events.RosterChange{SiteID: siteID})
	}
	events.Publish(h.Bus, events.HolidaysChanged, events.HolidayChange{})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"sites":    sites,
		"year":     month.Year,
		"month":    int(month.Month),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSingleSiteScenario(ctx context.Context, month generic.Month) ([]generic.SiteID, error) {
	const site = generic.SiteID("obra-norte")
	crew := []attendance.Worker{
		{ID: "w-001", Name: "Ana Rojas", Badge: "12.345.678-5", Role: "Jefa de obra"},
		{ID: "w-002", Name: "Bruno Soto", Badge: "13.456.789-2", Role: "Maestro"},
		{ID: "w-003", Name: "Carla Díaz", Badge: "14.567.890-K", Role: "Maestro"},
		{ID: "w-004", Name: "Diego Fuentes", Badge: "15.678.901-3", Role: "Jornal"},
		{ID: "w-005", Name: "Elena Muñoz", Badge: "16.789.012-1", Role: "Jornal"},
	}
	if err := h.seedSite(ctx, sqlite.Site{ID: site, Name: "Edificio Norte"}, crew); err != nil {
		return nil, err
	}

	for _, w := range crew {
		if err := h.seedWeek(ctx, site, w.ID, month, attendance.StatusPresent, decimal.Zero); err != nil {
			return nil, err
		}
	}
	// One absence and one medical leave so totals are not uniform.
	if err := h.seedDay(ctx, site, "w-004", month.Date(3), attendance.StatusAbsent, decimal.Zero, ""); err != nil {
		return nil, err
	}
	if err := h.seedDay(ctx, site, "w-005", month.Date(5), attendance.StatusMedicalLeave, decimal.Zero, "licencia 3 días"); err != nil {
		return nil, err
	}
	return []generic.SiteID{site}, nil
}

func (h *Handler) loadMultiSiteScenario(ctx context.Context, month generic.Month) ([]generic.SiteID, error) {
	foreman := attendance.Worker{ID: "w-100", Name: "Hugo Paredes", Badge: "10.111.222-3", Role: "Capataz"}

	sites := []struct {
		site sqlite.Site
		crew []attendance.Worker
	}{
		{
			site: sqlite.Site{ID: "obra-centro", Name: "Torre Centro"},
			crew: []attendance.Worker{
				foreman,
				{ID: "w-101", Name: "Iván Reyes", Role: "Carpintero"},
				{ID: "w-102", Name: "Julia Vega", Role: "Electricista"},
			},
		},
		{
			site: sqlite.Site{ID: "obra-sur", Name: "Condominio Sur"},
			crew: []attendance.Worker{
				foreman,
				{ID: "w-201", Name: "Kevin Torres", Role: "Gásfiter"},
			},
		},
	}

	var ids []generic.SiteID
	for _, s := range sites {
		if err := h.seedSite(ctx, s.site, s.crew); err != nil {
			return nil, err
		}
		ids = append(ids, s.site.ID)
	}

	// The foreman splits the week: rows are unique per worker and date,
	// so each day belongs to exactly one site.
	for day := 1; day <= 6 && month.Contains(day); day++ {
		site := generic.SiteID("obra-centro")
		if day%2 == 0 {
			site = "obra-sur"
		}
		if err := h.seedDay(ctx, site, foreman.ID, month.Date(day), attendance.StatusPresent, decimal.Zero, ""); err != nil {
			return nil, err
		}
	}

	if _, err := h.Store.SaveHoliday(ctx, generic.Holiday{
		ID:    generic.NewID(),
		Scope: "obra-sur",
		Date:  month.Date(15),
		Name:  "Aniversario comuna",
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

func (h *Handler) loadOvertimeHeavyScenario(ctx context.Context, month generic.Month) ([]generic.SiteID, error) {
	const site = generic.SiteID("obra-puerto")
	crew := []attendance.Worker{
		{ID: "w-301", Name: "Luis Araya", Role: "Concretero"},
		{ID: "w-302", Name: "Marta Silva", Role: "Concretero"},
		{ID: "w-303", Name: "Nicolás Pino", Role: "Operador bomba"},
	}
	if err := h.seedSite(ctx, sqlite.Site{ID: site, Name: "Muelle Puerto"}, crew); err != nil {
		return nil, err
	}

	for _, w := range crew {
		for _, d := range month.Days()[:7] {
			status, overtime := attendance.StatusPresent, decimal.NewFromInt(2)
			if d.Weekday() == time.Sunday {
				status, overtime = attendance.StatusRestDayWorked, decimal.NewFromInt(4)
			}
			if err := h.seedDay(ctx, site, w.ID, d, status, overtime, "vaciado"); err != nil {
				return nil, err
			}
		}
		if err := h.Store.UpsertBonus(ctx, attendance.Bonus{
			WorkerID: w.ID,
			SiteID:   site,
			Year:     month.Year,
			Month:    month.Month,
			Amount:   decimal.NewFromInt(60000),
		}); err != nil {
			return nil, err
		}
	}
	return []generic.SiteID{site}, nil
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedSite(ctx context.Context, site sqlite.Site, crew []attendance.Worker) error {
	if err := h.Store.SaveSite(ctx, site); err != nil {
		return err
	}
	for i, w := range crew {
		if err := h.Store.SaveWorker(ctx, w); err != nil {
			return err
		}
		if err := h.Store.AssignWorker(ctx, site.ID, w.ID, i, true); err != nil {
			return err
		}
	}
	return nil
}

// seedWeek marks the first seven days, skipping rest days.
func (h *Handler) seedWeek(ctx context.Context, site generic.SiteID, workerID generic.WorkerID, month generic.Month, status attendance.Status, overtime decimal.Decimal) error {
	cal := generic.NewRestDayCalendar(h.Store, string(site), h.Sessions.RestWeekdays...)
	for _, d := range month.Days()[:7] {
		if cal.IsRestDay(d) {
			continue
		}
		if err := h.seedDay(ctx, site, workerID, d, status, overtime, ""); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedDay(ctx context.Context, site generic.SiteID, workerID generic.WorkerID, date generic.TimePoint, status attendance.Status, overtime decimal.Decimal, note string) error {
	cal := generic.NewRestDayCalendar(h.Store, string(site), h.Sessions.RestWeekdays...)
	weekday, restDay := attendance.SplitOvertime(date, overtime, cal)
	_, err := h.Store.UpsertRecord(ctx, attendance.PersistedRecord{
		WorkerID:        workerID,
		SiteID:          site,
		Date:            date,
		Status:          status,
		OvertimeWeekday: weekday,
		OvertimeRestDay: restDay,
		Note:            note,
	})
	return err
}
