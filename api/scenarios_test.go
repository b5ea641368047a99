/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Each scenario must leave the database in a state the grid can open:
	rosters assigned, rows for the current month, and open ledgers
	refreshed through the RosterChanged event.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-attendance/generic"
)

func currentMonthPath(site string) string {
	now := time.Now()
	return "/api/sites/" + site + "/ledger/" + now.Format("2006") + "/" + now.Format("1")
}

func TestListScenarios(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))
}

func TestLoadScenario_SingleSite(t *testing.T) {
	// GIVEN: A clean database
	ts := setupTestServer(t)

	// WHEN: Loading the single-site scenario
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "single-site"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The site opens with five workers, the previous site is gone
	grid := decode[LedgerDTO](t, ts.do(t, http.MethodGet, currentMonthPath("obra-norte"), nil))
	require.Len(t, grid.Entries, 5)
	assert.Equal(t, "Ana Rojas", grid.Entries[0].Worker.Name)
	assert.NotEmpty(t, grid.Entries[0].Days)

	workers, err := ts.store.ActiveWorkers(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestLoadScenario_OvertimeHeavySplitsBySunday(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "overtime-heavy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	grid := decode[LedgerDTO](t, ts.do(t, http.MethodGet, currentMonthPath("obra-puerto"), nil))
	require.Len(t, grid.Entries, 3)

	// The first seven days hold exactly one Sunday: 4h rest-day, 6 x 2h weekday.
	e := grid.Entries[0]
	assert.Equal(t, "4", e.Totals.OvertimeRestDay.String())
	assert.Equal(t, "12", e.Totals.OvertimeWeekday.String())
	assert.Equal(t, 1, e.Totals.Counts["rest_day_worked"])
	require.True(t, e.Worker.Bonus.Valid)
	assert.Equal(t, "60000", e.Worker.Bonus.Decimal.String())
}

func TestLoadScenario_ReplacesPreviousSites(t *testing.T) {
	// GIVEN: The single-site ledger is open and clean
	ts := setupTestServer(t)
	ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "single-site"})
	path := currentMonthPath("obra-norte")
	require.Len(t, decode[LedgerDTO](t, ts.do(t, http.MethodGet, path, nil)).Entries, 5)

	// WHEN: A scenario without that site is loaded
	ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "multi-site"})

	// THEN: RosterChanged only names the new sites, so the old ledger keeps
	// its grid until it is closed and reopened
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, path, nil).Code)
	assert.Empty(t, decode[LedgerDTO](t, ts.do(t, http.MethodGet, path, nil)).Entries)

	grid := decode[LedgerDTO](t, ts.do(t, http.MethodGet, currentMonthPath("obra-sur"), nil))
	require.Len(t, grid.Entries, 2)
	assert.Equal(t, "w-100", grid.Entries[0].Worker.ID)

	month := generic.NewMonth(time.Now().Year(), time.Now().Month())
	assert.True(t, ts.store.IsHoliday("obra-sur", month.Date(15)))
	assert.False(t, ts.store.IsHoliday("obra-centro", month.Date(15)))
}

func TestLoadScenario_Unknown(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
