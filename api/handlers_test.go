/*
handlers_test.go - HTTP tests for the ledger, holiday and scenario endpoints

Tests for:
- Grid load, cell edits, range fill, undo/redo through the router
- Save with store round trip and the LedgerSaved event
- Session close/reload refusing to drop unsaved cells
- Holiday changes recomputing open ledgers
- Error to status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/events"
	"github.com/warp/site-attendance/generic"
	"github.com/warp/site-attendance/store/sqlite"
)

// March 2025: Sundays are 2, 9, 16, 23, 30; the 14th is a Friday.
const base = "/api/sites/site-1/ledger/2025/3"

var march = generic.NewMonth(2025, time.March)

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
	bus     *events.Bus
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveSite(ctx, sqlite.Site{ID: "site-1", Name: "Obra Uno"}))
	for i, w := range []attendance.Worker{
		{ID: "w-1", Name: "Ana", Role: "Maestro"},
		{ID: "w-2", Name: "Bruno", Role: "Jornal"},
	} {
		require.NoError(t, store.SaveWorker(ctx, w))
		require.NoError(t, store.AssignWorker(ctx, "site-1", w.ID, i, true))
	}

	bus := events.NewBus()
	sessions := NewSessionManager(store)
	t.Cleanup(sessions.Watch(bus))
	h := NewHandler(store, sessions, bus)

	return &testServer{handler: h, router: NewRouter(h, []string{"*"}), store: store, bus: bus}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

type entryResponse struct {
	Entry      EntryDTO `json:"entry"`
	DirtyCells int      `json:"dirty_cells"`
	CanUndo    bool     `json:"can_undo"`
}

func setCell(worker string, day int, status string, overtime string) map[string]any {
	return map[string]any{"worker_id": worker, "day": day, "status": status, "overtime_hours": overtime}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestGetLedger_LoadsGrid(t *testing.T) {
	// GIVEN: A site with two workers and one persisted row
	ts := setupTestServer(t)
	_, err := ts.store.UpsertRecord(context.Background(), attendance.PersistedRecord{
		WorkerID: "w-2", SiteID: "site-1", Date: march.Date(3), Status: attendance.StatusAbsent,
	})
	require.NoError(t, err)

	// WHEN: Opening the month
	rec := ts.do(t, http.MethodGet, base, nil)

	// THEN: The grid has both workers in roster order and Sundays as rest days
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	grid := decode[LedgerDTO](t, rec)
	assert.Equal(t, 31, grid.DaysInMonth)
	assert.Equal(t, []int{2, 9, 16, 23, 30}, grid.RestDays)
	require.Len(t, grid.Entries, 2)
	assert.Equal(t, "w-1", grid.Entries[0].Worker.ID)
	require.Len(t, grid.Entries[1].Days, 1)
	assert.Equal(t, "absent", grid.Entries[1].Days[0].Status)
	assert.Equal(t, 1, grid.Entries[1].Totals.Counts["absent"])
	assert.Equal(t, 1, ts.handler.Sessions.Len())
}

func TestGetLedger_InvalidPath(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/sites/site-1/ledger/2025/13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/sites/site-1/ledger/abc/3", nil).Code)
}

func TestSetCell_UpdatesTotalsAndDirtySet(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, base+"/cells", setCell("w-1", 9, "rest_day_worked", "3"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ts.do(t, http.MethodPut, base+"/cells", setCell("w-1", 10, "present", "2"))

	rec = ts.do(t, http.MethodPut, base+"/cells", map[string]any{
		"worker_id": "w-1", "day": 11, "status": "present", "overtime_hours": 0, "note": "llegó tarde",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[entryResponse](t, rec)
	assert.Equal(t, 3, resp.DirtyCells)
	assert.True(t, resp.CanUndo)
	assert.Equal(t, "3", resp.Entry.Totals.OvertimeRestDay.String())
	assert.Equal(t, "2", resp.Entry.Totals.OvertimeWeekday.String())
	assert.Equal(t, "llegó tarde", resp.Entry.Days[2].Note)
}

func TestSetCell_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"day out of range", setCell("w-1", 32, "present", "0"), http.StatusBadRequest},
		{"negative overtime", setCell("w-1", 3, "present", "-1"), http.StatusBadRequest},
		{"unknown status", setCell("w-1", 3, "vacation", "0"), http.StatusBadRequest},
		{"unknown worker", setCell("w-9", 3, "present", "0"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)
			rec := ts.do(t, http.MethodPut, base+"/cells", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			dirty := decode[map[string][]CellKeyDTO](t, ts.do(t, http.MethodGet, base+"/dirty", nil))
			assert.Empty(t, dirty["cells"])
		})
	}
}

func TestFillRange_UndoRedo(t *testing.T) {
	// GIVEN: Days 5..8 filled for one worker
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodPost, base+"/fill", map[string]any{
		"worker_id": "w-2", "day_start": 5, "day_end": 8, "status": "present", "overtime_hours": "1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[entryResponse](t, rec).Entry.Days, 4)

	// WHEN: Undoing twice and redoing once
	var undone []int
	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, base+"/undo", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		hist := decode[HistoryResponse](t, rec)
		assert.Nil(t, hist.Action.Before, "cells did not exist before the fill")
		undone = append(undone, hist.Action.Day)
	}
	rec = ts.do(t, http.MethodPost, base+"/redo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	redo := decode[HistoryResponse](t, rec)

	// THEN: Newest days go first and redo brings back day 7
	assert.Equal(t, []int{8, 7}, undone)
	assert.Equal(t, 7, redo.Action.Day)
	assert.Len(t, redo.Entry.Days, 3)
}

func TestUndo_NothingToUndo(t *testing.T) {
	ts := setupTestServer(t)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/undo", nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/redo", nil).Code)
}

func TestSave_WritesAndPublishes(t *testing.T) {
	// GIVEN: Two edits and a listener on LedgerSaved
	ts := setupTestServer(t)
	var saved []events.LedgerSave
	events.Subscribe(ts.bus, events.LedgerSaved, func(s events.LedgerSave) { saved = append(saved, s) })

	ts.do(t, http.MethodPut, base+"/cells", setCell("w-1", 3, "present", "0"))
	ts.do(t, http.MethodPut, base+"/cells", setCell("w-2", 3, "permit_paid", "0"))

	// WHEN: Saving
	rec := ts.do(t, http.MethodPost, base+"/save", nil)

	// THEN: Both rows are written, the grid is reloaded with ids, and the
	// event carries the counts
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[SaveResultDTO](t, rec)
	assert.Equal(t, 2, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.True(t, result.Reloaded)
	require.NotNil(t, result.Ledger)
	assert.Equal(t, 0, result.Ledger.DirtyCells)
	assert.False(t, result.Ledger.CanUndo)
	assert.NotEmpty(t, result.Ledger.Entries[0].Days[0].RecordID)

	rows, err := ts.store.RecordsForMonth(context.Background(), "site-1", march)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.Len(t, saved, 1)
	assert.Equal(t, generic.SiteID("site-1"), saved[0].SiteID)
	assert.Equal(t, 2, saved[0].Succeeded)
}

func TestSetBonus(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, base+"/workers/w-1/bonus", map[string]any{"amount": "55000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[entryResponse](t, rec)
	require.True(t, resp.Entry.Worker.Bonus.Valid)
	assert.Equal(t, "55000", resp.Entry.Worker.Bonus.Decimal.String())
	assert.Equal(t, 0, resp.DirtyCells)

	bonuses, err := ts.store.BonusesForMonth(context.Background(), "site-1", march)
	require.NoError(t, err)
	assert.Equal(t, "55000", bonuses["w-1"].String())

	rec = ts.do(t, http.MethodPut, base+"/workers/w-1/bonus", map[string]any{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPut, base+"/workers/w-9/bonus", map[string]any{"amount": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseAndReload_RefuseUnsavedChanges(t *testing.T) {
	// GIVEN: An open ledger with one unsaved cell
	ts := setupTestServer(t)
	ts.do(t, http.MethodPut, base+"/cells", setCell("w-1", 3, "present", "0"))

	// WHEN/THEN: Reload and close are refused without discard
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/reload", nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodDelete, base, nil).Code)
	assert.Equal(t, 1, ts.handler.Sessions.Len())

	// WHEN/THEN: Reload with discard drops the edit
	rec := ts.do(t, http.MethodPost, base+"/reload?discard=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[LedgerDTO](t, rec).DirtyCells)

	// WHEN/THEN: A clean ledger closes
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, base, nil).Code)
	assert.Equal(t, 0, ts.handler.Sessions.Len())
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestCreateHoliday_RecomputesOpenLedger(t *testing.T) {
	// GIVEN: 4h overtime on Friday the 14th in an open ledger
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodPut, base+"/cells", setCell("w-1", 14, "present", "4"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", decode[entryResponse](t, rec).Entry.Totals.OvertimeWeekday.String())

	// WHEN: The 14th is declared a holiday for the site
	rec = ts.do(t, http.MethodPost, "/api/holidays", map[string]any{
		"scope": "site-1", "date": "2025-03-14", "name": "Aniversario obra",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[HolidayDTO](t, rec)

	// THEN: The open ledger reclassifies without a reload, and keeps its edit
	grid := decode[LedgerDTO](t, ts.do(t, http.MethodGet, base, nil))
	assert.Contains(t, grid.RestDays, 14)
	assert.Equal(t, "4", grid.Entries[0].Totals.OvertimeRestDay.String())
	assert.Equal(t, "0", grid.Entries[0].Totals.OvertimeWeekday.String())
	assert.Equal(t, 1, grid.DirtyCells)

	// WHEN: The holiday is deleted
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/holidays/"+created.ID, nil).Code)

	// THEN: The hours move back
	grid = decode[LedgerDTO](t, ts.do(t, http.MethodGet, base, nil))
	assert.Equal(t, "4", grid.Entries[0].Totals.OvertimeWeekday.String())
}

func TestHolidays_ListDefaultsAndErrors(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/holidays/defaults", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/holidays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]HolidayDTO](t, rec)
	assert.Len(t, list["holidays"], 7)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/holidays", map[string]any{"name": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/holidays", map[string]any{"name": "x", "date": "14/03/2025"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/holidays/nope", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.do(t, http.MethodPut, base+"/cells", setCell("w-1", 3, "present", "0"))

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "attendance_ledger_edits_total")
	assert.Contains(t, rec.Body.String(), "attendance_sessions_open")
}

func TestCreateHoliday_DuplicateReturnsStoredID(t *testing.T) {
	// GIVEN: A holiday created once
	ts := setupTestServer(t)
	body := map[string]any{"scope": "site-1", "date": "2025-03-14", "name": "Aniversario obra"}
	first := decode[HolidayDTO](t, ts.do(t, http.MethodPost, "/api/holidays", body))

	// WHEN: The same holiday is posted again
	rec := ts.do(t, http.MethodPost, "/api/holidays", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[HolidayDTO](t, rec)

	// THEN: Both responses carry the stored ID, which deletes the holiday
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/holidays/"+second.ID, nil).Code)
	assert.False(t, ts.store.IsHoliday("site-1", march.Date(14)))
}

func TestListSites(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/sites", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[map[string][]SiteDTO](t, rec)
	assert.Equal(t, []SiteDTO{{ID: "site-1", Name: "Obra Uno"}}, list["sites"])
}

func TestSave_ReportsDroppedNotes(t *testing.T) {
	ts := setupTestServer(t)
	ts.do(t, http.MethodPut, base+"/cells", map[string]any{
		"worker_id": "w-2", "day": 5, "status": "", "overtime_hours": "0", "note": "sin marca",
	})

	rec := ts.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[SaveResultDTO](t, rec)
	assert.Equal(t, []CellKeyDTO{{WorkerID: "w-2", Day: 5}}, result.NotesDropped)
}
