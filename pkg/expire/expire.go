// Package expire implements the Expire Index: a schedule of pending
// deletions, swept once per event-loop tick, grounded on
// original_source/include/brldb/expires.h's ExpireManager.
package expire

import "github.com/beryldb/beryldb/pkg/timerindex"

// DeleteFunc is called once per fired expiration, with the database, select
// and user-key to delete. The caller (normally the event loop) synthesizes
// a point-delete Query from it and submits it to the Flusher — the Expire
// Index itself never touches the store or the query layer, keeping it a
// pure schedule.
type DeleteFunc func(database, selectID string, key []byte)

// Index is a thin, semantically-named wrapper over timerindex.Index: on
// Flush it fires a deletion for every entry whose schedule has arrived.
type Index struct {
	timers *timerindex.Index
}

// New returns an empty expire index.
func New() *Index {
	return &Index{timers: timerindex.New()}
}

// Add schedules key (in database/selectID) to be deleted at now+schedule
// seconds, or at the absolute epoch time schedule if epoch is true. It
// replaces any prior expiration pending for the same (database, selectID,
// key).
func (ix *Index) Add(database string, schedule int64, key []byte, selectID string, epoch bool, now int64) {
	ix.timers.Add(database, schedule, key, selectID, epoch, nil, now)
}

// Delete cancels a pending expiration, reporting whether one existed. Used
// by GETPERSIST and by the commands that delete a plain key (DEL, GETDEL,
// RKEY, WDEL); writes that overwrite a key leave its expiration pending.
func (ix *Index) Delete(database string, key []byte, selectID string) bool {
	return ix.timers.Delete(database, key, selectID)
}

// TriggerTime returns the absolute fire time for (database, selectID, key),
// or -1 if none is pending — the lookup behind the GETEXP command.
func (ix *Index) TriggerTime(database string, key []byte, selectID string) int64 {
	return ix.timers.TriggerTime(database, key, selectID)
}

// SReset wipes every pending expiration in one (database, select) pair
// (FRESET).
func (ix *Index) SReset(database, selectID string) { ix.timers.SReset(database, selectID) }

// Reset wipes every pending expiration across every database (process-wide).
func (ix *Index) Reset() { ix.timers.Reset() }

// ResetDatabase wipes every pending expiration belonging to one database
// (FRESETALL / DBRESET), leaving other databases untouched.
func (ix *Index) ResetDatabase(database string) { ix.timers.ResetDatabase(database) }

// Count returns the number of pending expirations in one (database, select)
// pair.
func (ix *Index) Count(database, selectID string) int { return ix.timers.Count(database, selectID) }

// CountAll returns the total number of pending expirations.
func (ix *Index) CountAll() int { return ix.timers.CountAll() }

// Snapshot returns every pending expiration without removing it, in
// fire-time order.
func (ix *Index) Snapshot() []timerindex.Record { return ix.timers.Snapshot() }

// ExpirePending satisfies metrics.TimerSource.
func (ix *Index) ExpirePending() int { return ix.timers.CountAll() }

// Flush fires every expiration due at or before now, calling fire once per
// entry in fire-time order, then removing it from the index.
func (ix *Index) Flush(now int64, fire DeleteFunc) int {
	due := ix.timers.Flush(now)
	for _, rec := range due {
		fire(rec.Database, rec.Select, rec.Key)
	}
	return len(due)
}
