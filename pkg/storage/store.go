// Package storage implements the Physical Store: an embedded ordered
// key-value engine with atomic point get/put/delete and cursor-based prefix
// iteration, one instance per logical database, grounded on the
// bucket-per-entity bbolt usage in cuemby-warren's pkg/storage/boltdb.go.
package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/metrics"
	"github.com/holiman/bloomfilter/v2"
	bolt "go.etcd.io/bbolt"
)

// allTags lists every type-tag bucket a Database opens up front, so a scan
// over one tag never has to special-case a missing bucket.
var allTags = []keyenc.Tag{
	keyenc.TagKey,
	keyenc.TagMap,
	keyenc.TagVector,
	keyenc.TagMMap,
	keyenc.TagGeo,
	keyenc.TagList,
}

func bucketName(tag keyenc.Tag) []byte { return []byte(tag) }

// defaultBloomElements and defaultBloomFP size the bloom filter created for
// every Database; a server with larger or smaller expected key counts can
// reopen with OpenDatabaseSized.
const (
	defaultBloomElements = 1_000_000
	defaultBloomFP       = 0.01
)

// Database wraps one bbolt file holding every logical entry for one named
// database, plus a bloom filter over its physical keys.
type Database struct {
	name string
	path string
	db   *bolt.DB

	bloomMu sync.Mutex
	bloom   *bloomfilter.Filter

	closing atomic.Bool
	drainWG sync.WaitGroup
}

// OpenDatabase opens (creating if absent) the bbolt file for name under
// dataDir, with a bloom filter sized for the default expected key count.
func OpenDatabase(dataDir, name string) (*Database, error) {
	return OpenDatabaseSized(dataDir, name, defaultBloomElements, defaultBloomFP)
}

// OpenDatabaseSized is OpenDatabase with an explicit bloom filter size.
func OpenDatabaseSized(dataDir, name string, bloomElements uint64, bloomFP float64) (*Database, error) {
	path := filepath.Join(dataDir, name+".beryl")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: opening database %q: %w", name, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, tag := range allTags {
			if _, err := tx.CreateBucketIfNotExists(bucketName(tag)); err != nil {
				return fmt.Errorf("storage: creating bucket %s: %w", tag, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	filter, err := newBloom(bloomElements, bloomFP)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: building bloom filter: %w", err)
	}

	d := &Database{name: name, path: path, db: db, bloom: filter}
	if err := d.warmBloom(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// warmBloom populates the bloom filter from existing on-disk keys so a
// reopened database doesn't spuriously report every key as absent.
func (d *Database) warmBloom() error {
	return d.db.View(func(tx *bolt.Tx) error {
		for _, tag := range allTags {
			b := tx.Bucket(bucketName(tag))
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				d.bloom.Add(hashPhysicalKey(k))
			}
		}
		return nil
	})
}

// Name returns the database's logical name.
func (d *Database) Name() string { return d.name }

// Path returns the on-disk path of the database's bbolt file, used by the
// PWD command.
func (d *Database) Path() string { return d.path }

// Closing reports whether the database has been marked for teardown.
func (d *Database) Closing() bool { return d.closing.Load() }

// MarkClosing flags the database so in-flight CheckIterator calls observe
// it; queries that never consult CheckIterator still run. It does not
// itself wait for the drain.
func (d *Database) MarkClosing() { d.closing.Store(true) }

// Drain blocks until every tracked in-flight operation (see Track)
// has finished.
func (d *Database) Drain() { d.drainWG.Wait() }

// Track registers one in-flight operation against the database's drain
// counter; callers must call the returned func exactly once when done.
func (d *Database) Track() func() {
	d.drainWG.Add(1)
	return d.drainWG.Done
}

// Close closes the underlying bbolt file. Callers should MarkClosing and
// Drain first.
func (d *Database) Close() error {
	return d.db.Close()
}

// Get looks up the value stored at (tag, physicalKey). The bloom filter is
// consulted first; a negative result short-circuits without touching
// bbolt.
func (d *Database) Get(tag keyenc.Tag, physicalKey []byte) ([]byte, bool, error) {
	d.bloomMu.Lock()
	maybePresent := d.bloom.Contains(hashPhysicalKey(physicalKey))
	d.bloomMu.Unlock()
	if !maybePresent {
		metrics.BloomNegatives.WithLabelValues(d.name).Inc()
		return nil, false, nil
	}

	var value []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName(tag)).Get(physicalKey)
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("storage: get %s/%q: %w", tag, physicalKey, err)
	}
	if value == nil {
		metrics.BloomFalsePositives.WithLabelValues(d.name).Inc()
		return nil, false, nil
	}
	return value, true, nil
}

// Put writes value at (tag, physicalKey), creating or overwriting it.
func (d *Database) Put(tag keyenc.Tag, physicalKey, value []byte) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName(tag)).Put(physicalKey, value)
	})
	if err != nil {
		return fmt.Errorf("storage: put %s/%q: %w", tag, physicalKey, err)
	}
	d.bloomMu.Lock()
	d.bloom.Add(hashPhysicalKey(physicalKey))
	d.bloomMu.Unlock()
	return nil
}

// Delete removes (tag, physicalKey) if present. Deletion is idempotent: a
// second delete of the same key still returns nil.
func (d *Database) Delete(tag keyenc.Tag, physicalKey []byte) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName(tag)).Delete(physicalKey)
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s/%q: %w", tag, physicalKey, err)
	}
	// No bloom removal: standard bloom filters cannot un-add a key without
	// a counting variant. A stale positive only costs an extra, harmless
	// bbolt lookup that itself returns "not found".
	return nil
}

// VisitFunc is called once per (key, value) during a scan of one tag
// bucket. Returning false stops the scan early (used for CheckIterator
// cancellation and for limit/offset short-circuiting).
type VisitFunc func(physicalKey, value []byte) (keepGoing bool)

// Scan iterates every (key, value) pair in tag's bucket in key order,
// calling visit for each until it returns false or the bucket is
// exhausted.
func (d *Database) Scan(tag keyenc.Tag, visit VisitFunc) error {
	return d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName(tag)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !visit(k, v) {
				return nil
			}
		}
		return nil
	})
}

// KeyCount returns the total number of physical keys across every tag
// bucket.
func (d *Database) KeyCount() (int, error) {
	total := 0
	err := d.db.View(func(tx *bolt.Tx) error {
		for _, tag := range allTags {
			total += tx.Bucket(bucketName(tag)).Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storage: counting keys: %w", err)
	}
	return total, nil
}
