// Package future implements the Future Index: a schedule of pending writes,
// the same shape as the Expire Index but firing an insertion instead of a
// deletion, grounded on original_source/include/brldb/expires.h's
// ExpireManager (BerylDB's futures reuse the expire timer mechanism).
package future

import "github.com/beryldb/beryldb/pkg/timerindex"

// WriteFunc is called once per fired future, with the database, select,
// user-key, and the value that was bound at FUTURE/FUTSET time. The caller
// synthesizes a point-write Query from it and submits it to the Flusher.
type WriteFunc func(database, selectID string, key, value []byte)

// Index wraps timerindex.Index, carrying the bound value as the record
// payload and firing a write instead of a delete on Flush.
type Index struct {
	timers *timerindex.Index
}

// New returns an empty future index.
func New() *Index {
	return &Index{timers: timerindex.New()}
}

// Add schedules key (in database/selectID) to be written with value at
// now+schedule seconds, or at the absolute epoch time schedule if epoch is
// true. It replaces any prior future pending for the same (database,
// selectID, key).
func (ix *Index) Add(database string, schedule int64, key, value []byte, selectID string, epoch bool, now int64) {
	ix.timers.Add(database, schedule, key, selectID, epoch, value, now)
}

// Delete cancels a pending future, reporting whether one existed (CANCEL).
func (ix *Index) Delete(database string, key []byte, selectID string) bool {
	return ix.timers.Delete(database, key, selectID)
}

// TriggerTime returns the absolute fire time for (database, selectID, key),
// or -1 if none is pending.
func (ix *Index) TriggerTime(database string, key []byte, selectID string) int64 {
	return ix.timers.TriggerTime(database, key, selectID)
}

// SReset wipes every pending future in one (database, select) pair.
func (ix *Index) SReset(database, selectID string) { ix.timers.SReset(database, selectID) }

// Reset wipes every pending future across every database (process-wide).
func (ix *Index) Reset() { ix.timers.Reset() }

// ResetDatabase wipes every pending future belonging to one database
// (FRESETALL / DBRESET), leaving other databases untouched.
func (ix *Index) ResetDatabase(database string) { ix.timers.ResetDatabase(database) }

// Count returns the number of pending futures in one (database, select)
// pair.
func (ix *Index) Count(database, selectID string) int { return ix.timers.Count(database, selectID) }

// CountAll returns the total number of pending futures.
func (ix *Index) CountAll() int { return ix.timers.CountAll() }

// Snapshot returns every pending future without removing it, in fire-time
// order.
func (ix *Index) Snapshot() []timerindex.Record { return ix.timers.Snapshot() }

// FuturePending satisfies metrics.TimerSource.
func (ix *Index) FuturePending() int { return ix.timers.CountAll() }

// Flush fires every future due at or before now, calling fire once per
// entry in fire-time order with its bound value, then removing it from the
// index.
func (ix *Index) Flush(now int64, fire WriteFunc) int {
	due := ix.timers.Flush(now)
	for _, rec := range due {
		fire(rec.Database, rec.Select, rec.Key, rec.Payload)
	}
	return len(due)
}
