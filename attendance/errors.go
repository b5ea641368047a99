package attendance

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// STRUCTURED ERRORS - Carry ledger context, unwrap to the cause
// =============================================================================

// LoadError is returned when the roster, record or bonus fetch fails.
// The previously loaded grid (if any) is left untouched.
type LoadError struct {
	SiteID generic.SiteID
	Month  generic.Month
	Stage  string // "roster", "records", "bonuses"
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s %s: %s: %v", e.SiteID, e.Month, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError is returned for a rejected mutation. No state changes.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError is a single cell write failure collected during save.
type PersistenceError struct {
	WorkerID generic.WorkerID
	Day      int
	Op       string // "upsert" or "delete"
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s day %d: %v", e.Op, e.WorkerID, e.Day, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// BonusPersistenceError is returned when the bonus upsert fails. The
// in-memory bonus has already been rolled back when the caller sees it.
type BonusPersistenceError struct {
	WorkerID generic.WorkerID
	Amount   decimal.Decimal
	Err      error
}

func (e *BonusPersistenceError) Error() string {
	return fmt.Sprintf("bonus %s for %s not saved: %v", e.Amount, e.WorkerID, e.Err)
}

func (e *BonusPersistenceError) Unwrap() error { return e.Err }
