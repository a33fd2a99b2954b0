package timerindex

import "testing"

func TestAddAndTriggerTime(t *testing.T) {
	ix := New()
	ix.Add("db", 10, []byte("k"), "1", false, nil, 100)

	if got := ix.TriggerTime("db", []byte("k"), "1"); got != 110 {
		t.Errorf("TriggerTime = %d, want 110", got)
	}
	if got := ix.TriggerTime("db", []byte("missing"), "1"); got != -1 {
		t.Errorf("TriggerTime(missing) = %d, want -1", got)
	}
}

func TestAddReplacesExisting(t *testing.T) {
	ix := New()
	ix.Add("db", 10, []byte("k"), "1", false, nil, 100)
	ix.Add("db", 20, []byte("k"), "1", false, nil, 100)

	if got := ix.TriggerTime("db", []byte("k"), "1"); got != 120 {
		t.Errorf("TriggerTime after replace = %d, want 120", got)
	}
	if ix.CountAll() != 1 {
		t.Errorf("CountAll() = %d, want 1 after replacing same tuple", ix.CountAll())
	}
}

func TestEpochAbsolute(t *testing.T) {
	ix := New()
	ix.Add("db", 500, []byte("k"), "1", true, nil, 100)
	if got := ix.TriggerTime("db", []byte("k"), "1"); got != 500 {
		t.Errorf("TriggerTime with epoch=true = %d, want 500 (absolute)", got)
	}
}

func TestDelete(t *testing.T) {
	ix := New()
	ix.Add("db", 10, []byte("k"), "1", false, nil, 100)

	if !ix.Delete("db", []byte("k"), "1") {
		t.Error("Delete should report true for an existing entry")
	}
	if ix.Delete("db", []byte("k"), "1") {
		t.Error("Delete should report false for an already-removed entry")
	}
	if ix.TriggerTime("db", []byte("k"), "1") != -1 {
		t.Error("TriggerTime should be -1 after Delete")
	}
}

func TestSResetAndReset(t *testing.T) {
	ix := New()
	ix.Add("db", 10, []byte("a"), "1", false, nil, 0)
	ix.Add("db", 10, []byte("b"), "1", false, nil, 0)
	ix.Add("db", 10, []byte("c"), "2", false, nil, 0)

	ix.SReset("db", "1")
	if ix.Count("db", "1") != 0 {
		t.Errorf("Count(db,1) after SReset(db,1) = %d, want 0", ix.Count("db", "1"))
	}
	if ix.Count("db", "2") != 1 {
		t.Errorf("Count(db,2) after SReset(db,1) = %d, want 1", ix.Count("db", "2"))
	}

	ix.Reset()
	if ix.CountAll() != 0 {
		t.Errorf("CountAll() after Reset = %d, want 0", ix.CountAll())
	}
}

func TestDatabasesDoNotCollideOnSameSelectAndKey(t *testing.T) {
	ix := New()
	ix.Add("alpha", 10, []byte("k"), "1", false, nil, 0)
	ix.Add("beta", 20, []byte("k"), "1", false, nil, 0)

	if got := ix.TriggerTime("alpha", []byte("k"), "1"); got != 10 {
		t.Errorf("TriggerTime(alpha) = %d, want 10", got)
	}
	if got := ix.TriggerTime("beta", []byte("k"), "1"); got != 20 {
		t.Errorf("TriggerTime(beta) = %d, want 20 (must not collide with alpha's entry)", got)
	}
	if ix.CountAll() != 2 {
		t.Errorf("CountAll() = %d, want 2", ix.CountAll())
	}

	if !ix.Delete("alpha", []byte("k"), "1") {
		t.Error("Delete(alpha) should report true")
	}
	if ix.TriggerTime("beta", []byte("k"), "1") != 20 {
		t.Error("deleting alpha's timer must not affect beta's timer on the same select/key")
	}
}

func TestResetDatabaseScopesToOneDatabase(t *testing.T) {
	ix := New()
	ix.Add("alpha", 10, []byte("a"), "1", false, nil, 0)
	ix.Add("beta", 10, []byte("b"), "1", false, nil, 0)

	ix.ResetDatabase("alpha")
	if ix.Count("alpha", "1") != 0 {
		t.Errorf("Count(alpha,1) after ResetDatabase(alpha) = %d, want 0", ix.Count("alpha", "1"))
	}
	if ix.Count("beta", "1") != 1 {
		t.Errorf("Count(beta,1) after ResetDatabase(alpha) = %d, want 1 (untouched)", ix.Count("beta", "1"))
	}
}

func TestFlushReturnsOnlyDueEntries(t *testing.T) {
	ix := New()
	ix.Add("db", 5, []byte("soon"), "1", false, nil, 0)
	ix.Add("db", 50, []byte("later"), "1", false, nil, 0)

	due := ix.Flush(10)
	if len(due) != 1 || string(due[0].Key) != "soon" {
		t.Fatalf("Flush(10) = %+v, want exactly [soon]", due)
	}
	if ix.CountAll() != 1 {
		t.Errorf("CountAll() after Flush = %d, want 1 (later still pending)", ix.CountAll())
	}

	due = ix.Flush(100)
	if len(due) != 1 || string(due[0].Key) != "later" {
		t.Fatalf("Flush(100) = %+v, want exactly [later]", due)
	}
	if ix.CountAll() != 0 {
		t.Errorf("CountAll() after second Flush = %d, want 0", ix.CountAll())
	}
}

func TestFlushOrdersByFireTime(t *testing.T) {
	ix := New()
	ix.Add("db", 30, []byte("third"), "1", false, nil, 0)
	ix.Add("db", 10, []byte("first"), "1", false, nil, 0)
	ix.Add("db", 20, []byte("second"), "1", false, nil, 0)

	due := ix.Flush(1000)
	if len(due) != 3 {
		t.Fatalf("len(due) = %d, want 3", len(due))
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if string(due[i].Key) != w {
			t.Errorf("due[%d] = %q, want %q", i, due[i].Key, w)
		}
	}
}
