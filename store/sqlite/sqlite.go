/*
Package sqlite provides a SQLite-backed implementation of the ledger's
collaborators.

PURPOSE:
  Durable storage for the attendance ledger: site rosters, one row per
  (worker, date) attendance record, monthly bonuses and declared holidays.
  In production the same schema maps onto PostgreSQL with minor dialect
  changes.

INTERFACES IMPLEMENTED:
  attendance.Roster:        Active workers per site, in roster order
  attendance.RecordStore:   Month reads and per-cell upserts
  attendance.RecordDeleter: Removal of cleared cells
  attendance.BonusStore:    Per worker/site/month bonus values
  generic.HolidayCalendar:  Holiday lookup for rest-day classification

KEY TABLES:
  sites:              Construction sites
  workers:            Worker master data
  site_assignments:   Which workers are on which site (ordered)
  attendance_records: One row per (worker, date), UNIQUE(worker_id, date)
  worker_bonuses:     One row per (worker, site, year, month)
  holidays:           Global (scope = '') or per-site holidays

DECIMALS:
  Hours and amounts are stored as TEXT and round-trip through
  decimal.Decimal's Scanner/Valuer, so no float ever touches the database.

OVERTIME SPLIT:
  attendance_records keeps overtime_weekday and overtime_rest_day for
  downstream payroll readers. The ledger reads their sum and reclassifies.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single pooled connection so
  ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := attendance.NewLedger(store, store, store, calendar)

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		badge TEXT,
		role TEXT,
		photo TEXT,
		created_at TEXT NOT NULL
	);

	-- Roster: active assignments only are loaded into a ledger
	CREATE TABLE IF NOT EXISTS site_assignments (
		site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		worker_id TEXT NOT NULL REFERENCES workers(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (site_id, worker_id)
	);

	-- One row per worker per calendar date, whatever the site
	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		overtime_weekday TEXT NOT NULL DEFAULT '0',
		overtime_rest_day TEXT NOT NULL DEFAULT '0',
		note TEXT,
		updated_at TEXT NOT NULL,
		UNIQUE(worker_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_site_date
		ON attendance_records(site_id, date);

	CREATE TABLE IF NOT EXISTS worker_bonuses (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		amount TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(worker_id, site_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		UNIQUE(scope, date, name)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SITES & WORKERS
// =============================================================================

// Site is a construction site.
type Site struct {
	ID   generic.SiteID
	Name string
}

// SaveSite creates or renames a site.
func (s *Store) SaveSite(ctx context.Context, site Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sites (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, site.ID, site.Name, time.Now().Format(time.RFC3339))
	return err
}

// ListSites returns all sites ordered by name.
func (s *Store) ListSites(ctx context.Context) ([]Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM sites ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.ID, &site.Name); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// SaveWorker creates or updates a worker's master data.
func (s *Store) SaveWorker(ctx context.Context, w attendance.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO workers (id, name, badge, role, photo, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			badge = excluded.badge,
			role = excluded.role,
			photo = excluded.photo
	`
	_, err := s.db.ExecContext(ctx, query,
		w.ID,
		w.Name,
		nullString(w.Badge),
		nullString(w.Role),
		nullString(w.Photo),
		time.Now().Format(time.RFC3339),
	)
	return err
}

// AssignWorker puts a worker on a site's roster at the given position.
// active=false keeps the assignment but drops the worker from new ledgers.
func (s *Store) AssignWorker(ctx context.Context, siteID generic.SiteID, workerID generic.WorkerID, position int, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO site_assignments (site_id, worker_id, position, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id, worker_id) DO UPDATE SET
			position = excluded.position,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query, siteID, workerID, position, active)
	return err
}

// ActiveWorkers returns the site's active roster in position order.
func (s *Store) ActiveWorkers(ctx context.Context, siteID generic.SiteID) ([]attendance.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT w.id, w.name, w.badge, w.role, w.photo
		FROM site_assignments a
		JOIN workers w ON w.id = a.worker_id
		WHERE a.site_id = ? AND a.active = TRUE
		ORDER BY a.position ASC, w.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []attendance.Worker
	for rows.Next() {
		var w attendance.Worker
		var badge, role, photo sql.NullString
		if err := rows.Scan(&w.ID, &w.Name, &badge, &role, &photo); err != nil {
			return nil, err
		}
		w.Badge, w.Role, w.Photo = badge.String, role.String, photo.String
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// =============================================================================
// ATTENDANCE RECORDS (attendance.RecordStore)
// =============================================================================

// RecordsForMonth returns every row for the site within the month.
func (s *Store) RecordsForMonth(ctx context.Context, siteID generic.SiteID, month generic.Month) ([]attendance.PersistedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worker_id, site_id, date, status, overtime_weekday, overtime_rest_day, note
		FROM attendance_records
		WHERE site_id = ? AND date >= ? AND date <= ?
		ORDER BY worker_id ASC, date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID, month.Start().String(), month.End().String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []attendance.PersistedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertRecord writes one row keyed by (worker, date) and returns it with
// its id. An existing row keeps its id.
func (s *Store) UpsertRecord(ctx context.Context, rec attendance.PersistedRecord) (attendance.PersistedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.PersistedRecord{}, err
	}
	defer tx.Rollback()

	id := rec.ID
	if id == "" {
		id = generic.RecordID(generic.NewID())
	}
	date := rec.Date.String()

	query := `
		INSERT INTO attendance_records
			(id, worker_id, site_id, date, status, overtime_weekday, overtime_rest_day, note, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id, date) DO UPDATE SET
			site_id = excluded.site_id,
			status = excluded.status,
			overtime_weekday = excluded.overtime_weekday,
			overtime_rest_day = excluded.overtime_rest_day,
			note = excluded.note,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		id,
		rec.WorkerID,
		rec.SiteID,
		date,
		string(rec.Status),
		rec.OvertimeWeekday,
		rec.OvertimeRestDay,
		nullString(rec.Note),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return attendance.PersistedRecord{}, err
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM attendance_records WHERE worker_id = ? AND date = ?",
		rec.WorkerID, date,
	).Scan(&rec.ID); err != nil {
		return attendance.PersistedRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return attendance.PersistedRecord{}, err
	}
	return rec, nil
}

// DeleteRecord removes the row for (worker, date).
func (s *Store) DeleteRecord(ctx context.Context, workerID generic.WorkerID, date generic.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM attendance_records WHERE worker_id = ? AND date = ?",
		workerID, date.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrRecordNotFound
	}
	return nil
}

func scanRecord(rows *sql.Rows) (attendance.PersistedRecord, error) {
	var r attendance.PersistedRecord
	var dateStr, status string
	var note sql.NullString

	err := rows.Scan(
		&r.ID,
		&r.WorkerID,
		&r.SiteID,
		&dateStr,
		&status,
		&r.OvertimeWeekday,
		&r.OvertimeRestDay,
		&note,
	)
	if err != nil {
		return r, err
	}

	r.Date, err = generic.ParseDate(dateStr)
	if err != nil {
		return r, fmt.Errorf("record %s: %w", r.ID, err)
	}
	r.Status = attendance.Status(status)
	r.Note = note.String
	return r, nil
}

// =============================================================================
// BONUSES (attendance.BonusStore)
// =============================================================================

// BonusesForMonth returns the bonus amounts set for the site and month.
func (s *Store) BonusesForMonth(ctx context.Context, siteID generic.SiteID, month generic.Month) (map[generic.WorkerID]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT worker_id, amount FROM worker_bonuses
		WHERE site_id = ? AND year = ? AND month = ?
	`

	rows, err := s.db.QueryContext(ctx, query, siteID, month.Year, int(month.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[generic.WorkerID]decimal.Decimal)
	for rows.Next() {
		var workerID generic.WorkerID
		var amount decimal.Decimal
		if err := rows.Scan(&workerID, &amount); err != nil {
			return nil, err
		}
		out[workerID] = amount
	}
	return out, rows.Err()
}

// UpsertBonus writes one worker's bonus for a site and month.
func (s *Store) UpsertBonus(ctx context.Context, b attendance.Bonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO worker_bonuses (id, worker_id, site_id, year, month, amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id, site_id, year, month) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		generic.NewID(),
		b.WorkerID,
		b.SiteID,
		b.Year,
		int(b.Month),
		b.Amount,
		time.Now().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// HOLIDAYS (generic.HolidayCalendar)
// =============================================================================

// SaveHoliday saves a holiday. Empty scope means it applies to every site.
// A holiday with the same scope, date and name is updated in place and
// keeps its original ID; the stored holiday is returned.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) (generic.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = generic.NewID()
	}

	query := `
		INSERT INTO holidays (id, scope, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, date, name) DO UPDATE SET
			recurring = excluded.recurring
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		h.ID,
		h.Scope,
		h.Date.String(),
		h.Name,
		h.Recurring,
		time.Now().Format(time.RFC3339),
	).Scan(&h.ID)
	if err != nil {
		return generic.Holiday{}, err
	}
	return h, nil
}

// DeleteHoliday removes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrHolidayNotFound
	}
	return nil
}

// ErrHolidayNotFound is returned when deleting an unknown holiday.
var ErrHolidayNotFound = errors.New("holiday not found")

// IsHoliday checks whether a date is a holiday for the scope, counting
// global holidays and recurring month/day matches.
func (s *Store) IsHoliday(scope string, date generic.TimePoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (scope = ? OR scope = '')
		  AND (
			(recurring = FALSE AND date = ?)
			OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		  )
	`

	var count int
	err := s.db.QueryRow(query, scope, date.String(), date.Time.Format("01-02")).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// GetAllHolidays returns holidays visible to a scope (its own plus global).
// An empty scope returns every holiday.
func (s *Store) GetAllHolidays(ctx context.Context, scope string) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, scope, date, name, recurring
		FROM holidays
		WHERE ? = '' OR scope = ? OR scope = ''
		ORDER BY date ASC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, scope, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.Scope, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date, err = generic.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance_records", "worker_bonuses", "site_assignments", "workers", "sites", "holidays"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var (
	_ attendance.Roster        = (*Store)(nil)
	_ attendance.RecordStore   = (*Store)(nil)
	_ attendance.RecordDeleter = (*Store)(nil)
	_ attendance.BonusStore    = (*Store)(nil)
	_ generic.HolidayCalendar  = (*Store)(nil)
)
