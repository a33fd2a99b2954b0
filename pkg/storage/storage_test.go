package storage

import (
	"testing"

	"github.com/beryldb/beryldb/pkg/keyenc"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenDatabaseSized(dir, "testdb", 1000, 0.01)
	if err != nil {
		t.Fatalf("OpenDatabaseSized: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDatabase(t)
	key := keyenc.Encode([]byte("foo"), "1", keyenc.TagKey)

	if err := db.Put(keyenc.TagKey, key, []byte("bar")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	value, found, err := db.Get(keyenc.TagKey, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(value) != "bar" {
		t.Errorf("Get = %q, %v; want bar, true", value, found)
	}

	if err := db.Delete(keyenc.TagKey, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, err = db.Get(keyenc.TagKey, key)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if found {
		t.Error("expected key to be absent after Delete")
	}

	// Deletion idempotence: a second delete is not an error.
	if err := db.Delete(keyenc.TagKey, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestScanVisitsEveryKey(t *testing.T) {
	db := openTestDatabase(t)
	written := map[string]bool{}
	for _, name := range []string{"a", "b", "c"} {
		key := keyenc.Encode([]byte(name), "1", keyenc.TagKey)
		if err := db.Put(keyenc.TagKey, key, []byte(name)); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
		written[name] = false
	}

	err := db.Scan(keyenc.TagKey, func(k, v []byte) bool {
		written[string(v)] = true
		return true
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for name, seen := range written {
		if !seen {
			t.Errorf("Scan never visited key %q", name)
		}
	}
}

func TestScanStopsOnFalse(t *testing.T) {
	db := openTestDatabase(t)
	for i := 0; i < 10; i++ {
		key := keyenc.Encode([]byte{byte('a' + i)}, "1", keyenc.TagKey)
		if err := db.Put(keyenc.TagKey, key, []byte{byte(i)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	visits := 0
	_ = db.Scan(keyenc.TagKey, func(k, v []byte) bool {
		visits++
		return visits < 3
	})
	if visits != 3 {
		t.Errorf("Scan visited %d elements after a false return, want 3", visits)
	}
}

func TestKeyCount(t *testing.T) {
	db := openTestDatabase(t)
	count, err := db.KeyCount()
	if err != nil || count != 0 {
		t.Fatalf("KeyCount on empty db = %d, %v; want 0, nil", count, err)
	}

	key := keyenc.Encode([]byte("foo"), "1", keyenc.TagKey)
	if err := db.Put(keyenc.TagKey, key, []byte("bar")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	count, err = db.KeyCount()
	if err != nil || count != 1 {
		t.Fatalf("KeyCount after one Put = %d, %v; want 1, nil", count, err)
	}
}

func TestDrainBlocksUntilUntrack(t *testing.T) {
	db := openTestDatabase(t)
	done := db.Track()

	drained := make(chan struct{})
	go func() {
		db.Drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("Drain returned before Track was released")
	default:
	}

	done()
	<-drained
}
