// Package timerindex implements the ordered (fire-time -> record) schedule
// shared by the Expire Index and Future Index, grounded on the
// std::multimap<time_t, ExpireEntry> shape of
// original_source/include/brldb/expires.h, backed here by
// github.com/google/btree instead of a multimap.
package timerindex

import (
	"encoding/hex"
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"
)

// Record identifies one pending timer: the (database, select, key) it fires
// against, the absolute fire time, and an optional payload (the Future
// Index uses it to carry the value to write; the Expire Index leaves it
// nil). ID is a unique handle assigned when the timer is scheduled,
// surfaced by FTLIST/FTSELECT so an operator can tell two timers on the
// same key apart across a replace.
type Record struct {
	ID       string
	Schedule int64
	Database string
	Select   string
	Key      []byte
	Epoch    bool
	Payload  []byte
}

func identity(database, selectID string, key []byte) string {
	return database + "\x00" + selectID + "\x00" + hex.EncodeToString(key)
}

type item struct {
	seq  uint64
	rec  Record
	ident string
}

func less(a, b *item) bool {
	if a.rec.Schedule != b.rec.Schedule {
		return a.rec.Schedule < b.rec.Schedule
	}
	return a.seq < b.seq
}

// Index is the ordered structure EX and FX are both built on. A mutex
// guards it because Flush runs on the event loop while Delete may be
// called from a flusher worker (e.g. a user-issued PERSIST).
type Index struct {
	mu    sync.Mutex
	tree  *btree.BTreeG[*item]
	byKey map[string]*item
	seq   uint64
}

// New returns an empty index.
func New() *Index {
	return &Index{
		tree:  btree.NewG(32, less),
		byKey: make(map[string]*item),
	}
}

// Add schedules a timer for (database, selectID, key), replacing any
// existing entry for the same tuple. now is the caller's current time, used
// to resolve a relative schedule (epoch=false) into an absolute fire time.
func (ix *Index) Add(database string, schedule int64, key []byte, selectID string, epoch bool, payload []byte, now int64) {
	fire := schedule
	if !epoch {
		fire = now + schedule
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ident := identity(database, selectID, key)
	if old, ok := ix.byKey[ident]; ok {
		ix.tree.Delete(old)
	}

	ix.seq++
	it := &item{
		seq: ix.seq,
		rec: Record{
			ID:       uuid.NewString(),
			Schedule: fire,
			Database: database,
			Select:   selectID,
			Key:      append([]byte(nil), key...),
			Epoch:    epoch,
			Payload:  payload,
		},
		ident: ident,
	}
	ix.tree.ReplaceOrInsert(it)
	ix.byKey[ident] = it
}

// Delete removes the pending timer for (database, selectID, key), reporting
// whether one existed.
func (ix *Index) Delete(database string, key []byte, selectID string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ident := identity(database, selectID, key)
	it, ok := ix.byKey[ident]
	if !ok {
		return false
	}
	ix.tree.Delete(it)
	delete(ix.byKey, ident)
	return true
}

// TriggerTime returns the absolute fire time for (database, selectID, key),
// or -1 if no timer is pending.
func (ix *Index) TriggerTime(database string, key []byte, selectID string) int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	it, ok := ix.byKey[identity(database, selectID, key)]
	if !ok {
		return -1
	}
	return it.rec.Schedule
}

// SReset removes every pending timer in one (database, select) pair.
func (ix *Index) SReset(database, selectID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for ident, it := range ix.byKey {
		if it.rec.Database == database && it.rec.Select == selectID {
			ix.tree.Delete(it)
			delete(ix.byKey, ident)
		}
	}
}

// Reset removes every pending timer, across every database.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.tree.Clear(false)
	ix.byKey = make(map[string]*item)
}

// ResetDatabase removes every pending timer belonging to one database,
// leaving other databases' timers untouched. Used by DBRESET/FRESETALL,
// which scope to the session's current database rather than the whole
// process.
func (ix *Index) ResetDatabase(database string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for ident, it := range ix.byKey {
		if it.rec.Database == database {
			ix.tree.Delete(it)
			delete(ix.byKey, ident)
		}
	}
}

// Count returns the number of pending timers in one (database, select) pair.
func (ix *Index) Count(database, selectID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := 0
	for _, it := range ix.byKey {
		if it.rec.Database == database && it.rec.Select == selectID {
			n++
		}
	}
	return n
}

// CountAll returns the total number of pending timers.
func (ix *Index) CountAll() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.byKey)
}

// Snapshot returns every pending record without removing it, in fire-time
// order. Used by admin/listing commands (FTLIST, FTSELECT) that need to
// show pending timers without consuming them.
func (ix *Index) Snapshot() []Record {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	out := make([]Record, 0, len(ix.byKey))
	ix.tree.Ascend(func(it *item) bool {
		out = append(out, it.rec)
		return true
	})
	return out
}

// Flush removes and returns every record whose schedule is <= now, in fire
// order, for the caller to act on. Each returned record has already been
// removed from the index.
func (ix *Index) Flush(now int64) []Record {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var due []*item
	ix.tree.Ascend(func(it *item) bool {
		if it.rec.Schedule > now {
			return false
		}
		due = append(due, it)
		return true
	})

	out := make([]Record, 0, len(due))
	for _, it := range due {
		ix.tree.Delete(it)
		delete(ix.byKey, it.ident)
		out = append(out, it.rec)
	}
	return out
}
