/*
save.go - Diff-based save protocol

PURPOSE:
  Save writes only the cells in the dirty set, never the whole grid, then
  reloads the month so server-assigned row ids are picked up.

PROTOCOL:
  1. Walk the dirty set in (worker, day) order.
  2. Cells that net to empty (no status, zero overtime):
       - have a row id and the store is a RecordDeleter: delete the row
       - otherwise: skip, report in SaveResult.Skipped
       - a note alone does not make a cell non-empty; such cells are
         also listed in SaveResult.NotesDropped
  3. Other cells: split overtime by the current calendar and upsert by
     (worker, date). The returned row id is written back into the cell.
  4. A failing cell is collected in SaveResult.Failed; the batch goes on.
  5. Reload the month (clears history and the dirty set), then re-apply
     the values of failed cells on top of the reloaded grid and mark them
     dirty again so the next Save retries them.

PARTIAL FAILURE:
  Save is not all-or-nothing. "38 of 40 cells saved, 2 failed" is a normal
  outcome, reported through SaveResult. The returned error is non-nil only
  when the ledger is not loaded or the post-save reload fails.

SEE ALSO:
  - ledger.go: Grid state and the load path reused for the reload
  - store.go: RecordStore and RecordDeleter contracts
*/
package attendance

import (
	"context"
	"log"

	"github.com/warp/site-attendance/generic"
)

// SaveResult reports the outcome of one Save.
type SaveResult struct {
	Succeeded int               // rows upserted
	Deleted   int               // rows removed because the cell was cleared
	Skipped   []generic.CellKey // cleared cells with nothing to delete
	Failed    []CellFailure

	// NotesDropped lists empty cells (no status, zero overtime) that still
	// carried a note. Such cells are deleted or skipped like any other
	// empty cell, so the note is not persisted.
	NotesDropped []generic.CellKey
}

// CellFailure is one cell that could not be written.
type CellFailure struct {
	WorkerID generic.WorkerID
	Day      int
	Err      error // *PersistenceError
}

func (r *SaveResult) fail(key generic.CellKey, op string, err error) {
	r.Failed = append(r.Failed, CellFailure{
		WorkerID: key.WorkerID,
		Day:      key.Day,
		Err:      &PersistenceError{WorkerID: key.WorkerID, Day: key.Day, Op: op, Err: err},
	})
}

// Save flushes dirty cells to the record store and reloads the month.
func (l *Ledger) Save(ctx context.Context) (SaveResult, error) {
	var result SaveResult
	if !l.loaded {
		return result, generic.ErrMonthNotLoaded
	}

	keys := l.DirtyCells()
	if len(keys) == 0 {
		return result, nil
	}

	deleter, canDelete := l.records.(RecordDeleter)
	retry := make(map[generic.CellKey]CellValue)

	for _, key := range keys {
		rec, present := l.entries[key.WorkerID].Days[key.Day]
		date := l.month.Date(key.Day)

		if !present || rec.IsEmpty() {
			if present && rec.Note != "" {
				result.NotesDropped = append(result.NotesDropped, key)
			}
			if present && rec.RecordID != "" && canDelete {
				if err := deleter.DeleteRecord(ctx, key.WorkerID, date); err != nil {
					result.fail(key, "delete", err)
					retry[key] = rec.Value()
					continue
				}
				rec.RecordID = ""
				l.entries[key.WorkerID].Days[key.Day] = rec
				result.Deleted++
				continue
			}
			result.Skipped = append(result.Skipped, key)
			continue
		}

		weekday, restDay := SplitOvertime(date, rec.OvertimeHours, l.calendar)
		stored, err := l.records.UpsertRecord(ctx, PersistedRecord{
			ID:              rec.RecordID,
			WorkerID:        key.WorkerID,
			SiteID:          l.siteID,
			Date:            date,
			Status:          rec.Status,
			OvertimeWeekday: weekday,
			OvertimeRestDay: restDay,
			Note:            rec.Note,
		})
		if err != nil {
			result.fail(key, "upsert", err)
			retry[key] = rec.Value()
			continue
		}
		// The reload normally supplies ids; this keeps them if it fails.
		rec.RecordID = stored.ID
		l.entries[key.WorkerID].Days[key.Day] = rec
		result.Succeeded++
	}

	log.Printf("[Ledger] Saved %s %s: %d written, %d deleted, %d skipped, %d failed",
		l.siteID, l.month, result.Succeeded, result.Deleted, len(result.Skipped), len(result.Failed))
	for _, key := range result.Skipped {
		log.Printf("[Ledger] Skipped empty cell %s (no persisted row to remove)", key)
	}
	for _, key := range result.NotesDropped {
		log.Printf("[Ledger] Note on %s not saved: cell has no status or overtime", key)
	}

	g, err := l.fetch(ctx, l.siteID, l.month)
	if err != nil {
		// Keep the current grid; only the failed cells still need writing.
		l.history.Clear()
		l.dirty.Clear()
		for key := range retry {
			l.dirty.Mark(key)
		}
		return result, err
	}
	l.install(l.siteID, l.month, g)

	for key, v := range retry {
		e, ok := l.entries[key.WorkerID]
		if !ok {
			continue // worker left the roster between edit and reload
		}
		l.write(e, key.Day, v)
	}
	return result, nil
}
