/*
Package generic provides the domain-agnostic building blocks of the ledger.

PURPOSE:
  This package contains types and algorithms that know nothing about
  attendance codes or overtime rules. The attendance package composes them
  into the Monthly Attendance Ledger; any other per-day grid (equipment
  hours, fuel logs) could reuse them unchanged.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe worker/site/record IDs
  - CellKey: the (worker, day) address of one grid cell

DESIGN PRINCIPLES:
  1. Type Safety: Strong typing for IDs prevents mixing worker/site IDs
  2. Value Semantics: Keys and snapshots are plain comparable values
  3. No I/O: Nothing in this package touches storage or the network

SEE ALSO:
  - history.go: Two-stack undo/redo sequencing
  - keyset.go: Dirty-set tracking
  - time.go: Calendar oracle (rest days, holidays)
  - period.go: Month arithmetic
*/
package generic

import (
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type SiteID string

// RecordID identifies a persisted attendance row. Empty until first save.
type RecordID string

// NewID returns a fresh random identifier for server-assigned rows.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// CELL KEY - Address of one (worker, day) cell
// =============================================================================

type CellKey struct {
	WorkerID WorkerID
	Day      int
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s/%02d", k.WorkerID, k.Day)
}

// Less orders keys by worker, then day.
func (k CellKey) Less(other CellKey) bool {
	if k.WorkerID != other.WorkerID {
		return k.WorkerID < other.WorkerID
	}
	return k.Day < other.Day
}
