package expire

import "testing"

func TestFlushFiresDeletes(t *testing.T) {
	ix := New()
	ix.Add("db", 1, []byte("k1"), "1", false, 0)
	ix.Add("db", 5, []byte("k2"), "1", false, 0)

	var fired []string
	n := ix.Flush(2, func(database, selectID string, key []byte) {
		fired = append(fired, string(key))
	})
	if n != 1 || len(fired) != 1 || fired[0] != "k1" {
		t.Fatalf("Flush(2) fired %v (n=%d), want exactly [k1]", fired, n)
	}
	if ix.CountAll() != 1 {
		t.Errorf("CountAll() = %d, want 1 (k2 still pending)", ix.CountAll())
	}
}

func TestDeleteCancelsExpire(t *testing.T) {
	ix := New()
	ix.Add("db", 10, []byte("k"), "1", false, 0)
	if !ix.Delete("db", []byte("k"), "1") {
		t.Fatal("Delete should report true")
	}

	fired := false
	ix.Flush(1000, func(string, string, []byte) { fired = true })
	if fired {
		t.Error("cancelled expiration should not fire")
	}
}

func TestTriggerTimeAfterExpireAt(t *testing.T) {
	ix := New()
	ix.Add("db", 500, []byte("k"), "1", true, 0)
	if got := ix.TriggerTime("db", []byte("k"), "1"); got != 500 {
		t.Errorf("TriggerTime = %d, want 500", got)
	}
}
