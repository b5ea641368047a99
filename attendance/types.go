// Package attendance implements the Monthly Attendance Ledger: a per-site,
// per-month grid of one attendance status and overtime value per worker per
// calendar day, with undo/redo and diff-based persistence.
// It uses the generic engine for history, dirty tracking and the calendar.
package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// STATUS TAXONOMY
// =============================================================================

// Status is one attendance code. Codes are mutually exclusive per cell.
type Status string

// StatusNone marks a cell with no status (overtime may still be logged).
const StatusNone Status = ""

// Absences split into unexcused, excused-paid and excused-unpaid.
const (
	StatusPresent       Status = "present"
	StatusAbsent        Status = "absent"
	StatusExcusedPaid   Status = "excused_paid"
	StatusExcusedUnpaid Status = "excused_unpaid"
	StatusMedicalLeave  Status = "medical_leave"
	StatusPermitPaid    Status = "permit_paid"
	StatusPermitUnpaid  Status = "permit_unpaid"
	StatusRestDayWorked Status = "rest_day_worked"
)

// Statuses lists the closed taxonomy in display order.
var Statuses = []Status{
	StatusPresent,
	StatusAbsent,
	StatusExcusedPaid,
	StatusExcusedUnpaid,
	StatusMedicalLeave,
	StatusPermitPaid,
	StatusPermitUnpaid,
	StatusRestDayWorked,
}

var statusIndex = func() map[Status]bool {
	m := make(map[Status]bool, len(Statuses))
	for _, s := range Statuses {
		m[s] = true
	}
	return m
}()

// Valid reports whether s is StatusNone or a member of the taxonomy.
func (s Status) Valid() bool {
	return s == StatusNone || statusIndex[s]
}

// ParseStatus converts a wire string to a Status. The empty string is StatusNone.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return StatusNone, fmt.Errorf("%w: %q", generic.ErrUnknownStatus, s)
	}
	return st, nil
}

// =============================================================================
// WORKER
// =============================================================================

// Worker carries identity and display attributes. The ledger owns it for
// display only; the roster is authoritative.
type Worker struct {
	ID    generic.WorkerID
	Name  string
	Badge string // national id / RUT
	Role  string
	Photo string

	// Bonus is the monthly bonus for the loaded site/month, if any.
	Bonus decimal.NullDecimal
}

// =============================================================================
// DAY RECORD
// =============================================================================

// DayRecord is one worker's attendance on one calendar day.
// A record with overtime but no status is allowed; it counts toward
// overtime totals only.
type DayRecord struct {
	RecordID      generic.RecordID
	Status        Status
	OvertimeHours decimal.Decimal
	Note          string
}

// IsEmpty reports whether the record nets to "no data".
func (d DayRecord) IsEmpty() bool {
	return d.Status == StatusNone && d.OvertimeHours.IsZero()
}

// Value returns the editable part of the record, without its row id.
func (d DayRecord) Value() CellValue {
	return CellValue{Status: d.Status, OvertimeHours: d.OvertimeHours, Note: d.Note}
}

// CellValue is the user-editable content of a cell.
type CellValue struct {
	Status        Status
	OvertimeHours decimal.Decimal
	Note          string
}

// Equal compares values, treating decimals numerically.
func (v CellValue) Equal(other CellValue) bool {
	return v.Status == other.Status &&
		v.OvertimeHours.Equal(other.OvertimeHours) &&
		v.Note == other.Note
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals is derived from a worker's days and never mutated directly.
type Totals struct {
	Counts          map[Status]int
	OvertimeWeekday decimal.Decimal
	OvertimeRestDay decimal.Decimal
}

// Equal compares totals, treating decimals numerically.
func (t Totals) Equal(other Totals) bool {
	if !t.OvertimeWeekday.Equal(other.OvertimeWeekday) || !t.OvertimeRestDay.Equal(other.OvertimeRestDay) {
		return false
	}
	for _, s := range Statuses {
		if t.Counts[s] != other.Counts[s] {
			return false
		}
	}
	return true
}

// =============================================================================
// WORKER-MONTH ENTRY
// =============================================================================

// Entry is the full set of day records plus derived totals for one worker
// in one site/month view. Days is sparse: only days with a record exist.
type Entry struct {
	Worker Worker
	Days   map[int]DayRecord
	Totals Totals
}

func (e *Entry) clone() Entry {
	days := make(map[int]DayRecord, len(e.Days))
	for d, r := range e.Days {
		days[d] = r
	}
	counts := make(map[Status]int, len(e.Totals.Counts))
	for s, n := range e.Totals.Counts {
		counts[s] = n
	}
	return Entry{
		Worker: e.Worker,
		Days:   days,
		Totals: Totals{
			Counts:          counts,
			OvertimeWeekday: e.Totals.OvertimeWeekday,
			OvertimeRestDay: e.Totals.OvertimeRestDay,
		},
	}
}

// =============================================================================
// HISTORY ACTION
// =============================================================================

// Action is an immutable record of one reversible cell edit.
type Action struct {
	ID       string
	WorkerID generic.WorkerID
	Day      int

	// BeforePresent is false when the cell did not exist before the edit;
	// undoing such an edit removes the cell again.
	BeforePresent bool
	Before        CellValue
	After         CellValue
	At            time.Time
}
