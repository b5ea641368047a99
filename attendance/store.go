/*
store.go - Collaborator interfaces consumed by the ledger

PURPOSE:
  The ledger does not own durable state. It reads the roster and the
  persisted rows, and writes rows back through natural-key upserts.
  These interfaces are the whole contract; implementations live in
  store/sqlite (durable) and store/memory (tests, dev).

KEY INTERFACES:
  Roster:        Active workers assigned to a site
  RecordStore:   Persisted day rows, keyed by (worker, date)
  RecordDeleter: Optional; lets the save protocol remove cleared rows
  BonusStore:    Monthly bonus rows, keyed by (worker, site, month)

NATURAL KEYS:
  The in-memory grid does not always know a row's id (new cells have none),
  so writes are keyed by business key and the store assigns ids. The
  ledger reloads after saving to pick them up.

CONCURRENCY:
  Two sessions editing the same site/month race at the store:
  last write wins per natural key. This is accepted.

SEE ALSO:
  - ledger.go: Consumes these interfaces
  - store/sqlite/sqlite.go: Durable implementation
*/
package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// PERSISTED SHAPES
// =============================================================================

// PersistedRecord is the store-side shape of a day record. Overtime is
// split by rest-day classification at write time for payroll readers; the
// ledger ignores the split on read and reclassifies from the calendar.
type PersistedRecord struct {
	ID              generic.RecordID
	WorkerID        generic.WorkerID
	SiteID          generic.SiteID
	Date            generic.TimePoint
	Status          Status
	OvertimeWeekday decimal.Decimal
	OvertimeRestDay decimal.Decimal
	Note            string
}

// OvertimeHours returns the raw hours regardless of classification.
func (r PersistedRecord) OvertimeHours() decimal.Decimal {
	return r.OvertimeWeekday.Add(r.OvertimeRestDay)
}

// Bonus is a monthly bonus row.
type Bonus struct {
	WorkerID generic.WorkerID
	SiteID   generic.SiteID
	Year     int
	Month    time.Month
	Amount   decimal.Decimal
}

// =============================================================================
// INTERFACES
// =============================================================================

type Roster interface {
	// ActiveWorkers returns the workers currently assigned to the site.
	ActiveWorkers(ctx context.Context, siteID generic.SiteID) ([]Worker, error)
}

type RecordStore interface {
	// RecordsForMonth returns all persisted rows for a site in a month.
	RecordsForMonth(ctx context.Context, siteID generic.SiteID, month generic.Month) ([]PersistedRecord, error)

	// UpsertRecord inserts or updates by (worker, date) and returns the
	// stored row with its id.
	UpsertRecord(ctx context.Context, rec PersistedRecord) (PersistedRecord, error)
}

// RecordDeleter is implemented by stores that can remove a row by natural key.
// Without it, cleared cells are skipped on save.
type RecordDeleter interface {
	DeleteRecord(ctx context.Context, workerID generic.WorkerID, date generic.TimePoint) error
}

type BonusStore interface {
	// BonusesForMonth returns bonus amounts for a site/month keyed by worker.
	BonusesForMonth(ctx context.Context, siteID generic.SiteID, month generic.Month) (map[generic.WorkerID]decimal.Decimal, error)

	// UpsertBonus inserts or updates by (worker, site, month, year).
	UpsertBonus(ctx context.Context, b Bonus) error
}
