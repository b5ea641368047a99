/*
ledger.go - The in-memory monthly attendance grid

PURPOSE:
  Ledger owns one site/month grid while it is open: one Entry per active
  worker, each with sparse day records and derived totals. Every mutation
  goes through the same path: validate, write the cell, recompute that
  worker's totals, record a history action, mark the cell dirty.

CRITICAL INVARIANTS:
  1. DERIVED TOTALS: Totals are always ComputeTotals(days). Never patched.
  2. NO PARTIAL APPLY: Validation happens before any state changes.
  3. ATOMIC LOAD: A failed load leaves the previous grid untouched.
  4. HISTORY SCOPE: History and the dirty set are cleared on every load
     and after every save. Undo never crosses a persistence boundary.

CONCURRENCY:
  Single writer. The Ledger does no locking; callers serialize edits,
  undo/redo, load and save on one instance (the API does this with a
  per-session mutex). Load and Save block on I/O and must not overlap
  with edits.

UNDO GRANULARITY:
  FillRange records one action per day, so undo reverses a fill one day
  at a time, newest day first.

SEE ALSO:
  - save.go: The diff-based save protocol
  - totals.go: Totals recomputation and overtime classification
  - generic/history.go: Undo/redo sequencing
*/
package attendance

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	roster   Roster
	records  RecordStore
	bonuses  BonusStore
	calendar generic.RestDayOracle

	siteID  generic.SiteID
	month   generic.Month
	loaded  bool
	order   []generic.WorkerID
	entries map[generic.WorkerID]*Entry

	history *generic.History[Action]
	dirty   *generic.KeySet[generic.CellKey]

	now func() time.Time
}

// NewLedger creates an empty ledger. A nil calendar means Sundays only.
func NewLedger(roster Roster, records RecordStore, bonuses BonusStore, calendar generic.RestDayOracle) *Ledger {
	if calendar == nil {
		calendar = generic.SundayCalendar
	}
	return &Ledger{
		roster:   roster,
		records:  records,
		bonuses:  bonuses,
		calendar: calendar,
		entries:  make(map[generic.WorkerID]*Entry),
		history:  generic.NewHistory[Action](),
		dirty:    generic.NewKeySet[generic.CellKey](),
		now:      time.Now,
	}
}

// =============================================================================
// LOAD
// =============================================================================

type grid struct {
	order   []generic.WorkerID
	entries map[generic.WorkerID]*Entry
}

// LoadMonth fetches the roster, persisted records and bonuses for the site
// and month, merges them into a fresh grid and replaces the current one.
// History and the dirty set are cleared. On failure a *LoadError is
// returned and the current grid is kept as it was.
func (l *Ledger) LoadMonth(ctx context.Context, siteID generic.SiteID, month generic.Month) ([]Entry, error) {
	if !month.Valid() {
		return nil, &ValidationError{Field: "month", Value: month, Err: generic.ErrInvalidMonth}
	}
	g, err := l.fetch(ctx, siteID, month)
	if err != nil {
		return nil, err
	}
	l.install(siteID, month, g)
	return l.Entries(), nil
}

func (l *Ledger) fetch(ctx context.Context, siteID generic.SiteID, month generic.Month) (grid, error) {
	workers, err := l.roster.ActiveWorkers(ctx, siteID)
	if err != nil {
		return grid{}, &LoadError{SiteID: siteID, Month: month, Stage: "roster", Err: err}
	}
	rows, err := l.records.RecordsForMonth(ctx, siteID, month)
	if err != nil {
		return grid{}, &LoadError{SiteID: siteID, Month: month, Stage: "records", Err: err}
	}
	bonuses, err := l.bonuses.BonusesForMonth(ctx, siteID, month)
	if err != nil {
		return grid{}, &LoadError{SiteID: siteID, Month: month, Stage: "bonuses", Err: err}
	}

	g := grid{entries: make(map[generic.WorkerID]*Entry, len(workers))}
	for _, w := range workers {
		if _, dup := g.entries[w.ID]; dup {
			continue
		}
		w.Bonus = decimal.NullDecimal{}
		if amount, ok := bonuses[w.ID]; ok {
			w.Bonus = decimal.NewNullDecimal(amount)
		}
		g.entries[w.ID] = &Entry{Worker: w, Days: make(map[int]DayRecord)}
		g.order = append(g.order, w.ID)
	}

	ignored := 0
	for _, r := range rows {
		e := g.entries[r.WorkerID]
		if e == nil || r.Date.Year() != month.Year || r.Date.Month() != month.Month {
			ignored++
			continue
		}
		e.Days[r.Date.Day()] = DayRecord{
			RecordID:      r.ID,
			Status:        r.Status,
			OvertimeHours: r.OvertimeHours(),
			Note:          r.Note,
		}
	}
	for _, e := range g.entries {
		e.Totals = ComputeTotals(month, e.Days, l.calendar)
	}

	log.Printf("[Ledger] Loaded %s %s: %d workers, %d records (%d ignored)",
		siteID, month, len(g.order), len(rows)-ignored, ignored)
	return g, nil
}

func (l *Ledger) install(siteID generic.SiteID, month generic.Month, g grid) {
	l.siteID = siteID
	l.month = month
	l.order = g.order
	l.entries = g.entries
	l.loaded = true
	l.history.Clear()
	l.dirty.Clear()
}

// =============================================================================
// CELL MUTATION
// =============================================================================

// SetCell replaces one day record, keeping its persisted row id.
func (l *Ledger) SetCell(workerID generic.WorkerID, day int, status Status, overtimeHours decimal.Decimal, note string) error {
	e, err := l.entryFor(workerID)
	if err != nil {
		return err
	}
	if err := l.validateDay(day); err != nil {
		return err
	}
	if err := validateValue(status, overtimeHours); err != nil {
		return err
	}
	l.edit(e, day, CellValue{Status: status, OvertimeHours: overtimeHours, Note: note})
	return nil
}

// FillRange sets every day in [dayStart, dayEnd] to the same status and
// overtime. Each day's note is kept. Each day is its own history action.
func (l *Ledger) FillRange(workerID generic.WorkerID, dayStart, dayEnd int, status Status, overtimeHours decimal.Decimal) error {
	e, err := l.entryFor(workerID)
	if err != nil {
		return err
	}
	if dayEnd < dayStart {
		return &ValidationError{Field: "range", Value: [2]int{dayStart, dayEnd}, Err: generic.ErrInvalidRange}
	}
	if err := l.validateDay(dayStart); err != nil {
		return err
	}
	if err := l.validateDay(dayEnd); err != nil {
		return err
	}
	if err := validateValue(status, overtimeHours); err != nil {
		return err
	}
	for day := dayStart; day <= dayEnd; day++ {
		note := e.Days[day].Note
		l.edit(e, day, CellValue{Status: status, OvertimeHours: overtimeHours, Note: note})
	}
	return nil
}

func (l *Ledger) edit(e *Entry, day int, v CellValue) {
	before, present := l.write(e, day, v)
	l.history.Record(Action{
		ID:            generic.NewID(),
		WorkerID:      e.Worker.ID,
		Day:           day,
		BeforePresent: present,
		Before:        before.Value(),
		After:         v,
		At:            l.now(),
	})
}

// write stores v in the cell, recomputes the worker's totals and marks the
// cell dirty. It returns the previous record.
func (l *Ledger) write(e *Entry, day int, v CellValue) (DayRecord, bool) {
	before, present := e.Days[day]
	e.Days[day] = DayRecord{
		RecordID:      before.RecordID,
		Status:        v.Status,
		OvertimeHours: v.OvertimeHours,
		Note:          v.Note,
	}
	l.touch(e, day)
	return before, present
}

func (l *Ledger) remove(e *Entry, day int) {
	delete(e.Days, day)
	l.touch(e, day)
}

func (l *Ledger) touch(e *Entry, day int) {
	e.Totals = ComputeTotals(l.month, e.Days, l.calendar)
	l.dirty.Mark(generic.CellKey{WorkerID: e.Worker.ID, Day: day})
}

// =============================================================================
// UNDO / REDO
// =============================================================================

// Undo reverts the most recent edit and returns it.
// Returns false when there is nothing to undo.
func (l *Ledger) Undo() (Action, bool) {
	if !l.loaded {
		return Action{}, false
	}
	a, ok := l.history.Undo()
	if !ok {
		return Action{}, false
	}
	e := l.entries[a.WorkerID]
	if a.BeforePresent {
		l.write(e, a.Day, a.Before)
	} else {
		l.remove(e, a.Day)
	}
	return a, true
}

// Redo re-applies the most recently undone edit and returns it.
// Returns false when there is nothing to redo.
func (l *Ledger) Redo() (Action, bool) {
	if !l.loaded {
		return Action{}, false
	}
	a, ok := l.history.Redo()
	if !ok {
		return Action{}, false
	}
	l.write(l.entries[a.WorkerID], a.Day, a.After)
	return a, true
}

func (l *Ledger) CanUndo() bool { return l.history.CanUndo() }
func (l *Ledger) CanRedo() bool { return l.history.CanRedo() }

// =============================================================================
// BONUS
// =============================================================================

// SetBonus sets a worker's monthly bonus and persists it immediately. The
// bonus is not part of history or the dirty set. If the store rejects the
// write, the previous in-memory value is restored and a
// *BonusPersistenceError is returned.
func (l *Ledger) SetBonus(ctx context.Context, workerID generic.WorkerID, amount decimal.Decimal) error {
	e, err := l.entryFor(workerID)
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return &ValidationError{Field: "bonus", Value: amount, Err: generic.ErrNegativeAmount}
	}

	prior := e.Worker.Bonus
	e.Worker.Bonus = decimal.NewNullDecimal(amount)

	err = l.bonuses.UpsertBonus(ctx, Bonus{
		WorkerID: workerID,
		SiteID:   l.siteID,
		Year:     l.month.Year,
		Month:    l.month.Month,
		Amount:   amount,
	})
	if err != nil {
		e.Worker.Bonus = prior
		log.Printf("[Ledger] Bonus for %s rolled back: %v", workerID, err)
		return &BonusPersistenceError{WorkerID: workerID, Amount: amount, Err: err}
	}
	return nil
}

// =============================================================================
// CALENDAR
// =============================================================================

// RecomputeTotals reruns the totals pass for every worker. Call it after
// the calendar's holidays change.
func (l *Ledger) RecomputeTotals() {
	for _, e := range l.entries {
		e.Totals = ComputeTotals(l.month, e.Days, l.calendar)
	}
}

// RestDays returns the days of the loaded month that are rest days.
func (l *Ledger) RestDays() []int {
	if !l.loaded {
		return nil
	}
	var days []int
	for _, d := range l.month.Days() {
		if l.calendar.IsRestDay(d) {
			days = append(days, d.Day())
		}
	}
	return days
}

// =============================================================================
// READ ACCESS
// =============================================================================

func (l *Ledger) Loaded() bool          { return l.loaded }
func (l *Ledger) SiteID() generic.SiteID { return l.siteID }
func (l *Ledger) Month() generic.Month   { return l.month }

// Entries returns copies of all entries in roster order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.entries[id].clone())
	}
	return out
}

// Entry returns a copy of one worker's entry.
func (l *Ledger) Entry(workerID generic.WorkerID) (Entry, bool) {
	e, ok := l.entries[workerID]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Cell returns one day record and whether it exists.
func (l *Ledger) Cell(workerID generic.WorkerID, day int) (DayRecord, bool) {
	e, ok := l.entries[workerID]
	if !ok {
		return DayRecord{}, false
	}
	rec, ok := e.Days[day]
	return rec, ok
}

// DirtyCells returns the cells touched since the last save or load.
func (l *Ledger) DirtyCells() []generic.CellKey {
	return l.dirty.Sorted(generic.CellKey.Less)
}

// =============================================================================
// VALIDATION
// =============================================================================

func (l *Ledger) entryFor(workerID generic.WorkerID) (*Entry, error) {
	if !l.loaded {
		return nil, generic.ErrMonthNotLoaded
	}
	e, ok := l.entries[workerID]
	if !ok {
		return nil, &ValidationError{Field: "worker", Value: workerID, Err: generic.ErrWorkerNotFound}
	}
	return e, nil
}

func (l *Ledger) validateDay(day int) error {
	if !l.month.Contains(day) {
		return &ValidationError{Field: "day", Value: day, Err: generic.ErrInvalidDay}
	}
	return nil
}

func validateValue(status Status, overtimeHours decimal.Decimal) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Value: status, Err: generic.ErrUnknownStatus}
	}
	if overtimeHours.IsNegative() {
		return &ValidationError{Field: "overtime_hours", Value: overtimeHours, Err: generic.ErrNegativeAmount}
	}
	return nil
}
