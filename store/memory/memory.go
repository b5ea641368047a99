// Package memory provides in-memory implementations of the ledger's
// collaborators (roster, record store, bonus store) for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps workers, site assignments, records and bonuses in maps.
//
// The hook fields let tests inject failures. They are read under the
// store lock and must not call back into the store.
type Store struct {
	mu       sync.RWMutex
	workers  map[generic.WorkerID]attendance.Worker
	sites    map[generic.SiteID][]generic.WorkerID
	records  map[recordKey]attendance.PersistedRecord
	bonuses  map[bonusKey]attendance.Bonus
	upserts  int
	deletes  int
	bonusOps int

	// RosterErr, RecordsErr and BonusesErr fail the corresponding reads.
	RosterErr  error
	RecordsErr error
	BonusesErr error

	// UpsertHook, when set, is consulted before each record upsert; a
	// non-nil return fails that upsert.
	UpsertHook func(attendance.PersistedRecord) error

	// DeleteHook is the same for deletes.
	DeleteHook func(generic.WorkerID, generic.TimePoint) error

	// BonusHook is the same for bonus upserts.
	BonusHook func(attendance.Bonus) error
}

// recordKey is the natural key of an attendance row.
type recordKey struct {
	WorkerID generic.WorkerID
	Date     string
}

type bonusKey struct {
	WorkerID generic.WorkerID
	SiteID   generic.SiteID
	Month    generic.Month
}

func New() *Store {
	return &Store{
		workers: make(map[generic.WorkerID]attendance.Worker),
		sites:   make(map[generic.SiteID][]generic.WorkerID),
		records: make(map[recordKey]attendance.PersistedRecord),
		bonuses: make(map[bonusKey]attendance.Bonus),
	}
}

// =============================================================================
// ROSTER
// =============================================================================

// AddWorker registers a worker and assigns them to a site.
func (m *Store) AddWorker(siteID generic.SiteID, w attendance.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[w.ID]; !exists {
		m.sites[siteID] = append(m.sites[siteID], w.ID)
	}
	m.workers[w.ID] = w
}

func (m *Store) ActiveWorkers(_ context.Context, siteID generic.SiteID) ([]attendance.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.RosterErr != nil {
		return nil, m.RosterErr
	}
	out := make([]attendance.Worker, 0, len(m.sites[siteID]))
	for _, id := range m.sites[siteID] {
		out = append(out, m.workers[id])
	}
	return out, nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (m *Store) RecordsForMonth(_ context.Context, siteID generic.SiteID, month generic.Month) ([]attendance.PersistedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.RecordsErr != nil {
		return nil, m.RecordsErr
	}
	var out []attendance.PersistedRecord
	for _, r := range m.records {
		if r.SiteID == siteID && r.Date.Year() == month.Year && r.Date.Month() == month.Month {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkerID != out[j].WorkerID {
			return out[i].WorkerID < out[j].WorkerID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *Store) UpsertRecord(_ context.Context, rec attendance.PersistedRecord) (attendance.PersistedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.UpsertHook != nil {
		if err := m.UpsertHook(rec); err != nil {
			return attendance.PersistedRecord{}, err
		}
	}
	k := recordKey{WorkerID: rec.WorkerID, Date: rec.Date.String()}
	if existing, ok := m.records[k]; ok {
		rec.ID = existing.ID
	} else {
		rec.ID = generic.RecordID(generic.NewID())
	}
	m.records[k] = rec
	return rec, nil
}

func (m *Store) DeleteRecord(_ context.Context, workerID generic.WorkerID, date generic.TimePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.DeleteHook != nil {
		if err := m.DeleteHook(workerID, date); err != nil {
			return err
		}
	}
	k := recordKey{WorkerID: workerID, Date: date.String()}
	if _, ok := m.records[k]; !ok {
		return generic.ErrRecordNotFound
	}
	delete(m.records, k)
	return nil
}

// Record returns the stored row for (worker, date), if any.
func (m *Store) Record(workerID generic.WorkerID, date generic.TimePoint) (attendance.PersistedRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[recordKey{WorkerID: workerID, Date: date.String()}]
	return r, ok
}

// =============================================================================
// BONUSES
// =============================================================================

func (m *Store) BonusesForMonth(_ context.Context, siteID generic.SiteID, month generic.Month) (map[generic.WorkerID]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.BonusesErr != nil {
		return nil, m.BonusesErr
	}
	out := make(map[generic.WorkerID]decimal.Decimal)
	for k, b := range m.bonuses {
		if k.SiteID == siteID && k.Month == month {
			out[k.WorkerID] = b.Amount
		}
	}
	return out, nil
}

func (m *Store) UpsertBonus(_ context.Context, b attendance.Bonus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bonusOps++
	if m.BonusHook != nil {
		if err := m.BonusHook(b); err != nil {
			return err
		}
	}
	k := bonusKey{WorkerID: b.WorkerID, SiteID: b.SiteID, Month: generic.NewMonth(b.Year, b.Month)}
	m.bonuses[k] = b
	return nil
}

// =============================================================================
// CALL COUNTERS
// =============================================================================

// Upserts returns how many record upserts were attempted.
func (m *Store) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

// Deletes returns how many record deletes were attempted.
func (m *Store) Deletes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes
}

// BonusWrites returns how many bonus upserts were attempted.
func (m *Store) BonusWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bonusOps
}

// ResetCounters zeroes the call counters.
func (m *Store) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts, m.deletes, m.bonusOps = 0, 0, 0
}

var (
	_ attendance.Roster        = (*Store)(nil)
	_ attendance.RecordStore   = (*Store)(nil)
	_ attendance.RecordDeleter = (*Store)(nil)
	_ attendance.BonusStore    = (*Store)(nil)
)
