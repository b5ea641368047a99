/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  ledger's in-memory model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Hours and money are decimal.Decimal. They are written as JSON strings
  ("2.5") and accepted as either strings or numbers.

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SetCellRequest replaces one day record.
type SetCellRequest struct {
	WorkerID      string          `json:"worker_id"`
	Day           int             `json:"day"`
	Status        string          `json:"status"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	Note          string          `json:"note"`
}

// FillRangeRequest sets a contiguous range of days.
type FillRangeRequest struct {
	WorkerID      string          `json:"worker_id"`
	DayStart      int             `json:"day_start"`
	DayEnd        int             `json:"day_end"`
	Status        string          `json:"status"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
}

type SetBonusRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CreateHolidayRequest struct {
	Scope     string `json:"scope"` // site ID, empty for all sites
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LedgerDTO is a full site/month grid.
type LedgerDTO struct {
	SiteID      string     `json:"site_id"`
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	DaysInMonth int        `json:"days_in_month"`
	RestDays    []int      `json:"rest_days"`
	Entries     []EntryDTO `json:"entries"`
	DirtyCells  int        `json:"dirty_cells"`
	CanUndo     bool       `json:"can_undo"`
	CanRedo     bool       `json:"can_redo"`
}

type WorkerDTO struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Badge string              `json:"badge,omitempty"`
	Role  string              `json:"role,omitempty"`
	Photo string              `json:"photo,omitempty"`
	Bonus decimal.NullDecimal `json:"bonus"`
}

type DayDTO struct {
	Day           int             `json:"day"`
	RecordID      string          `json:"record_id,omitempty"`
	Status        string          `json:"status"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	Note          string          `json:"note,omitempty"`
}

type TotalsDTO struct {
	Counts          map[string]int  `json:"counts"`
	OvertimeWeekday decimal.Decimal `json:"overtime_weekday"`
	OvertimeRestDay decimal.Decimal `json:"overtime_rest_day"`
}

// EntryDTO is one worker's row. Days are sorted and sparse.
type EntryDTO struct {
	Worker WorkerDTO `json:"worker"`
	Days   []DayDTO  `json:"days"`
	Totals TotalsDTO `json:"totals"`
}

// ActionDTO describes an undone or redone edit.
type ActionDTO struct {
	ID       string  `json:"id"`
	WorkerID string  `json:"worker_id"`
	Day      int     `json:"day"`
	Before   *DayDTO `json:"before"` // nil when the cell did not exist
	After    DayDTO  `json:"after"`
}

// HistoryResponse is returned by undo and redo.
type HistoryResponse struct {
	Action ActionDTO `json:"action"`
	Entry  EntryDTO  `json:"entry"`
}

type CellKeyDTO struct {
	WorkerID string `json:"worker_id"`
	Day      int    `json:"day"`
}

type CellFailureDTO struct {
	WorkerID string `json:"worker_id"`
	Day      int    `json:"day"`
	Error    string `json:"error"`
}

// SaveResultDTO reports a save, e.g. "38 of 40 cells saved, 2 failed".
type SaveResultDTO struct {
	Succeeded int              `json:"succeeded"`
	Deleted   int              `json:"deleted"`
	Skipped   []CellKeyDTO     `json:"skipped"`
	Failed    []CellFailureDTO `json:"failed"`
	Reloaded  bool             `json:"reloaded"`
	Ledger    *LedgerDTO       `json:"ledger,omitempty"`

	// NotesDropped are empty cells whose note was not persisted.
	NotesDropped []CellKeyDTO `json:"notes_dropped"`
}

type SiteDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	Scope     string `json:"scope"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLedgerDTO(l *attendance.Ledger) LedgerDTO {
	month := l.Month()
	entries := l.Entries()
	dto := LedgerDTO{
		SiteID:      string(l.SiteID()),
		Year:        month.Year,
		Month:       int(month.Month),
		DaysInMonth: month.DaysIn(),
		RestDays:    l.RestDays(),
		Entries:     make([]EntryDTO, 0, len(entries)),
		DirtyCells:  len(l.DirtyCells()),
		CanUndo:     l.CanUndo(),
		CanRedo:     l.CanRedo(),
	}
	if dto.RestDays == nil {
		dto.RestDays = []int{}
	}
	for _, e := range entries {
		dto.Entries = append(dto.Entries, toEntryDTO(e))
	}
	return dto
}

func toEntryDTO(e attendance.Entry) EntryDTO {
	days := make([]DayDTO, 0, len(e.Days))
	for day, rec := range e.Days {
		days = append(days, toDayDTO(day, rec))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })

	counts := make(map[string]int, len(e.Totals.Counts))
	for status, n := range e.Totals.Counts {
		counts[string(status)] = n
	}

	return EntryDTO{
		Worker: WorkerDTO{
			ID:    string(e.Worker.ID),
			Name:  e.Worker.Name,
			Badge: e.Worker.Badge,
			Role:  e.Worker.Role,
			Photo: e.Worker.Photo,
			Bonus: e.Worker.Bonus,
		},
		Days: days,
		Totals: TotalsDTO{
			Counts:          counts,
			OvertimeWeekday: e.Totals.OvertimeWeekday,
			OvertimeRestDay: e.Totals.OvertimeRestDay,
		},
	}
}

func toDayDTO(day int, rec attendance.DayRecord) DayDTO {
	return DayDTO{
		Day:           day,
		RecordID:      string(rec.RecordID),
		Status:        string(rec.Status),
		OvertimeHours: rec.OvertimeHours,
		Note:          rec.Note,
	}
}

func toActionDTO(a attendance.Action) ActionDTO {
	dto := ActionDTO{
		ID:       a.ID,
		WorkerID: string(a.WorkerID),
		Day:      a.Day,
		After:    cellDTO(a.Day, a.After),
	}
	if a.BeforePresent {
		before := cellDTO(a.Day, a.Before)
		dto.Before = &before
	}
	return dto
}

func cellDTO(day int, v attendance.CellValue) DayDTO {
	return DayDTO{Day: day, Status: string(v.Status), OvertimeHours: v.OvertimeHours, Note: v.Note}
}

func toCellKeyDTOs(keys []generic.CellKey) []CellKeyDTO {
	out := make([]CellKeyDTO, 0, len(keys))
	for _, k := range keys {
		out = append(out, CellKeyDTO{WorkerID: string(k.WorkerID), Day: k.Day})
	}
	return out
}

func toSaveResultDTO(r attendance.SaveResult) SaveResultDTO {
	dto := SaveResultDTO{
		Succeeded: r.Succeeded,
		Deleted:   r.Deleted,
		Skipped:   toCellKeyDTOs(r.Skipped),
		Failed:    make([]CellFailureDTO, 0, len(r.Failed)),

		NotesDropped: toCellKeyDTOs(r.NotesDropped),
	}
	for _, f := range r.Failed {
		dto.Failed = append(dto.Failed, CellFailureDTO{
			WorkerID: string(f.WorkerID),
			Day:      f.Day,
			Error:    f.Err.Error(),
		})
	}
	return dto
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		Scope:     h.Scope,
		Date:      h.Date.String(),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}
