/*
handlers.go - HTTP API handlers for the attendance ledger

PURPOSE:
  Exposes the monthly attendance ledger via REST. Handles HTTP
  request/response and JSON, and delegates to the ledger held by the
  (site, month) session.

ENDPOINTS:
  Ledger (prefix /api/sites/{siteID}/ledger/{year}/{month}):
    GET                        Open (load on first use) and return the grid
    DELETE                     Close the session (?discard=true drops edits)
    POST   /reload             Reload from the store (?discard=true)
    PUT    /cells              Set one cell
    POST   /fill               Fill a day range for one worker
    PUT    /workers/{id}/bonus Set and persist a monthly bonus
    POST   /undo, /redo        Walk the edit history
    POST   /save               Write dirty cells, reload
    GET    /dirty              List unsaved cells

  Sites:
    GET    /api/sites             List sites

  Holidays:
    GET    /api/holidays          List (?scope=siteID)
    POST   /api/holidays          Create
    DELETE /api/holidays/{id}     Delete
    POST   /api/holidays/defaults Add the fixed-date national holidays

  Scenarios:
    GET    /api/scenarios         List demo scenarios
    POST   /api/scenarios/load    Load a demo scenario

REQUEST FLOW:
  1. Parse site and month from the path
  2. Acquire the session (serializes with other requests on it)
  3. Call the ledger
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown worker or holiday
  - 409: Unsaved changes, nothing to undo/redo, no month loaded
  - 502: The backing store failed (load, bonus write)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - sessions.go: Session ownership and locking
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/events"
	"github.com/warp/site-attendance/generic"
	"github.com/warp/site-attendance/metrics"
	"github.com/warp/site-attendance/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Sessions *SessionManager
	Bus      *events.Bus
}

// NewHandler creates a handler. A nil bus means events.Default().
func NewHandler(store *sqlite.Store, sessions *SessionManager, bus *events.Bus) *Handler {
	if bus == nil {
		bus = events.Default()
	}
	return &Handler{
		Store:    store,
		Sessions: sessions,
		Bus:      bus,
	}
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the grid, loading it on first access.
// GET /api/sites/{siteID}/ledger/{year}/{month}
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *Session) {
		writeJSON(w, http.StatusOK, toLedgerDTO(s.Ledger))
	})
}

// CloseLedger drops the session.
// DELETE /api/sites/{siteID}/ledger/{year}/{month}
func (h *Handler) CloseLedger(w http.ResponseWriter, r *http.Request) {
	siteID, month, err := ledgerKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ledger path", err)
		return
	}

	if err := h.Sessions.Close(siteID, month, discardRequested(r)); err != nil {
		writeError(w, http.StatusConflict, "Ledger has unsaved changes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "closed"})
}

// ReloadLedger re-reads the month from the store.
// POST /api/sites/{siteID}/ledger/{year}/{month}/reload
func (h *Handler) ReloadLedger(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *Session) {
		if len(s.Ledger.DirtyCells()) > 0 && !discardRequested(r) {
			writeError(w, http.StatusConflict, "Ledger has unsaved changes", ErrUnsavedChanges)
			return
		}
		if _, err := s.Ledger.LoadMonth(r.Context(), s.key.SiteID, s.key.Month); err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLedgerDTO(s.Ledger))
	})
}

// SetCell replaces one day record.
// PUT /api/sites/{siteID}/ledger/{year}/{month}/cells
func (h *Handler) SetCell(w http.ResponseWriter, r *http.Request) {
	var req SetCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return
	}

	h.withSession(w, r, func(s *Session) {
		workerID := generic.WorkerID(req.WorkerID)
		if err := s.Ledger.SetCell(workerID, req.Day, status, req.OvertimeHours, req.Note); err != nil {
			writeLedgerError(w, err)
			return
		}
		metrics.Edits.WithLabelValues("set_cell").Inc()
		h.writeEntry(w, s, workerID)
	})
}

// FillRange sets every day of a range for one worker.
// POST /api/sites/{siteID}/ledger/{year}/{month}/fill
func (h *Handler) FillRange(w http.ResponseWriter, r *http.Request) {
	var req FillRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return
	}

	h.withSession(w, r, func(s *Session) {
		workerID := generic.WorkerID(req.WorkerID)
		if err := s.Ledger.FillRange(workerID, req.DayStart, req.DayEnd, status, req.OvertimeHours); err != nil {
			writeLedgerError(w, err)
			return
		}
		metrics.Edits.WithLabelValues("fill_range").Inc()
		h.writeEntry(w, s, workerID)
	})
}

// SetBonus persists a worker's monthly bonus immediately.
// PUT /api/sites/{siteID}/ledger/{year}/{month}/workers/{workerID}/bonus
func (h *Handler) SetBonus(w http.ResponseWriter, r *http.Request) {
	var req SetBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.withSession(w, r, func(s *Session) {
		workerID := generic.WorkerID(chi.URLParam(r, "workerID"))
		if err := s.Ledger.SetBonus(r.Context(), workerID, req.Amount); err != nil {
			var bErr *attendance.BonusPersistenceError
			if errors.As(err, &bErr) {
				metrics.BonusWrites.WithLabelValues("rolled_back").Inc()
			}
			writeLedgerError(w, err)
			return
		}
		metrics.BonusWrites.WithLabelValues("ok").Inc()
		metrics.Edits.WithLabelValues("bonus").Inc()
		h.writeEntry(w, s, workerID)
	})
}

// Undo reverts the most recent edit.
// POST /api/sites/{siteID}/ledger/{year}/{month}/undo
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *Session) {
		a, ok := s.Ledger.Undo()
		if !ok {
			writeError(w, http.StatusConflict, "Nothing to undo", nil)
			return
		}
		metrics.Edits.WithLabelValues("undo").Inc()
		h.writeHistory(w, s, a)
	})
}

// Redo re-applies the most recently undone edit.
// POST /api/sites/{siteID}/ledger/{year}/{month}/redo
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *Session) {
		a, ok := s.Ledger.Redo()
		if !ok {
			writeError(w, http.StatusConflict, "Nothing to redo", nil)
			return
		}
		metrics.Edits.WithLabelValues("redo").Inc()
		h.writeHistory(w, s, a)
	})
}

// Save writes dirty cells and reloads the month. Partial failures are a
// 200 with the failed cells listed; a failed reload is a 502.
// POST /api/sites/{siteID}/ledger/{year}/{month}/save
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *Session) {
		start := time.Now()
		result, err := s.Ledger.Save(r.Context())
		metrics.SaveDuration.Observe(time.Since(start).Seconds())

		metrics.CellsSaved.WithLabelValues(metrics.OutcomeWritten).Add(float64(result.Succeeded))
		metrics.CellsSaved.WithLabelValues(metrics.OutcomeDeleted).Add(float64(result.Deleted))
		metrics.CellsSaved.WithLabelValues(metrics.OutcomeSkipped).Add(float64(len(result.Skipped)))
		metrics.CellsSaved.WithLabelValues(metrics.OutcomeFailed).Add(float64(len(result.Failed)))

		dto := toSaveResultDTO(result)
		if err != nil {
			var loadErr *attendance.LoadError
			if !errors.As(err, &loadErr) {
				writeLedgerError(w, err)
				return
			}
			metrics.LoadFailures.WithLabelValues(loadErr.Stage).Inc()
			writeJSON(w, http.StatusBadGateway, ErrorResponse{
				Error:   "Cells were saved but reloading the month failed",
				Code:    "reload_failed",
				Details: dto,
			})
			return
		}

		dto.Reloaded = true
		ledger := toLedgerDTO(s.Ledger)
		dto.Ledger = &ledger

		events.Publish(h.Bus, events.LedgerSaved, events.LedgerSave{
			SiteID:    s.key.SiteID,
			Month:     s.key.Month,
			Succeeded: result.Succeeded,
			Deleted:   result.Deleted,
			Failed:    len(result.Failed),
		})
		writeJSON(w, http.StatusOK, dto)
	})
}

// DirtyCells lists the cells not yet saved.
// GET /api/sites/{siteID}/ledger/{year}/{month}/dirty
func (h *Handler) DirtyCells(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *Session) {
		writeJSON(w, http.StatusOK, map[string]any{
			"cells": toCellKeyDTOs(s.Ledger.DirtyCells()),
		})
	})
}

// =============================================================================
// LEDGER HELPERS
// =============================================================================

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(s *Session)) {
	siteID, month, err := ledgerKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ledger path", err)
		return
	}

	s, err := h.Sessions.Acquire(r.Context(), siteID, month)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	defer s.Release()

	fn(s)
}

func (h *Handler) writeEntry(w http.ResponseWriter, s *Session, workerID generic.WorkerID) {
	e, _ := s.Ledger.Entry(workerID)
	writeJSON(w, http.StatusOK, map[string]any{
		"entry":       toEntryDTO(e),
		"dirty_cells": len(s.Ledger.DirtyCells()),
		"can_undo":    s.Ledger.CanUndo(),
		"can_redo":    s.Ledger.CanRedo(),
	})
}

func (h *Handler) writeHistory(w http.ResponseWriter, s *Session, a attendance.Action) {
	e, _ := s.Ledger.Entry(a.WorkerID)
	writeJSON(w, http.StatusOK, HistoryResponse{
		Action: toActionDTO(a),
		Entry:  toEntryDTO(e),
	})
}

func ledgerKey(r *http.Request) (generic.SiteID, generic.Month, error) {
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		return "", generic.Month{}, errors.New("site id is required")
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return "", generic.Month{}, fmt.Errorf("year: %w", err)
	}
	m, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return "", generic.Month{}, fmt.Errorf("month: %w", err)
	}
	month := generic.NewMonth(year, time.Month(m))
	if !month.Valid() {
		return "", generic.Month{}, generic.ErrInvalidMonth
	}
	return generic.SiteID(siteID), month, nil
}

func discardRequested(r *http.Request) bool {
	discard, _ := strconv.ParseBool(r.URL.Query().Get("discard"))
	return discard
}

// writeLedgerError maps ledger errors to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	var loadErr *attendance.LoadError
	var bonusErr *attendance.BonusPersistenceError
	var validationErr *attendance.ValidationError

	switch {
	case errors.Is(err, generic.ErrMonthNotLoaded):
		writeError(w, http.StatusConflict, "No month loaded", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.As(err, &validationErr), generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.As(err, &loadErr):
		writeError(w, http.StatusBadGateway, "Failed to load month", err)
	case errors.As(err, &bonusErr):
		writeError(w, http.StatusBadGateway, "Bonus was not saved", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// SITE ENDPOINTS
// =============================================================================

// ListSites returns all sites.
// GET /api/sites
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Store.ListSites(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sites", err)
		return
	}

	dtos := make([]SiteDTO, 0, len(sites))
	for _, site := range sites {
		dtos = append(dtos, SiteDTO{ID: string(site.ID), Name: site.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": dtos})
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns holidays visible to a scope, or all of them.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.GetAllHolidays(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}

	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates a holiday and recomputes totals of open ledgers.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday := generic.Holiday{
		ID:        generic.NewID(),
		Scope:     req.Scope,
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}

	stored, err := h.Store.SaveHoliday(r.Context(), holiday)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	events.Publish(h.Bus, events.HolidaysChanged, events.HolidayChange{Scope: stored.Scope})

	writeJSON(w, http.StatusCreated, toHolidayDTO(stored))
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		if errors.Is(err, sqlite.ErrHolidayNotFound) {
			writeError(w, http.StatusNotFound, "Holiday not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	events.Publish(h.Bus, events.HolidaysChanged, events.HolidayChange{})

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// AddDefaultHolidays adds the fixed-date national holidays as recurring.
// POST /api/holidays/defaults
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope string `json:"scope"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	defaults := []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 1, "Año Nuevo"},
		{time.May, 1, "Día del Trabajo"},
		{time.May, 21, "Día de las Glorias Navales"},
		{time.September, 18, "Fiestas Patrias"},
		{time.September, 19, "Día de las Glorias del Ejército"},
		{time.December, 8, "Inmaculada Concepción"},
		{time.December, 25, "Navidad"},
	}

	year := time.Now().Year()
	for _, d := range defaults {
		holiday := generic.Holiday{
			ID:        generic.NewID(),
			Scope:     req.Scope,
			Date:      generic.NewTimePoint(year, d.month, d.day),
			Name:      d.name,
			Recurring: true,
		}
		if _, err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
			return
		}
	}
	events.Publish(h.Bus, events.HolidaysChanged, events.HolidayChange{Scope: req.Scope})

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"count":  len(defaults),
	})
}
