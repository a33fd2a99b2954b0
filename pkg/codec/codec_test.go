package codec

import (
	"reflect"
	"testing"
)

func TestMapRoundTrip(t *testing.T) {
	m := NewMap()
	m.Add("f1", "v1")
	m.Add("f2", "v2")

	decoded, err := DecodeMap(m.Encode())
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	if !reflect.DeepEqual(decoded.GetAll(), m.GetAll()) {
		t.Errorf("round-trip mismatch: got %v, want %v", decoded.GetAll(), m.GetAll())
	}
}

func TestMapAddReplace(t *testing.T) {
	m := NewMap()
	if replaced := m.Add("f", "v1"); replaced {
		t.Error("first Add should report replaced=false")
	}
	if replaced := m.Add("f", "v2"); !replaced {
		t.Error("second Add on same field should report replaced=true")
	}
	v, ok := m.Get("f")
	if !ok || v != "v2" {
		t.Errorf("Get(f) = %q, %v; want v2, true", v, ok)
	}
}

func TestMapRemoveIdempotent(t *testing.T) {
	m := NewMap()
	m.Add("f", "v")
	if !m.Remove("f") {
		t.Error("first Remove should report true")
	}
	if m.Remove("f") {
		t.Error("second Remove should report false")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestMultiMapFind(t *testing.T) {
	mm := NewMultiMap()
	mm.Add("a", "x")
	mm.Add("b", "x")
	mm.Add("c", "y")

	got := mm.Find("x")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Find(x) = %v, want %v", got, want)
	}

	decoded, err := DecodeMultiMap(mm.Encode())
	if err != nil {
		t.Fatalf("DecodeMultiMap: %v", err)
	}
	if !reflect.DeepEqual(decoded.GetAll(), mm.GetAll()) {
		t.Errorf("round-trip mismatch: got %v, want %v", decoded.GetAll(), mm.GetAll())
	}
}

func TestVectorPushPop(t *testing.T) {
	v := NewVector()
	v.Add("1")
	v.Add("2")
	v.Add("3")

	front, ok := v.PopFront()
	if !ok || front != "1" {
		t.Errorf("PopFront() = %q, %v; want 1, true", front, ok)
	}
	back, ok := v.PopBack()
	if !ok || back != "3" {
		t.Errorf("PopBack() = %q, %v; want 3, true", back, ok)
	}
	if v.Count() != 1 {
		t.Errorf("Count() = %d, want 1", v.Count())
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := NewVector()
	v.Add("a")
	v.Add("b")
	v.Add("c")

	decoded, err := DecodeVector(v.Encode())
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if decoded.Count() != v.Count() {
		t.Fatalf("Count mismatch: got %d, want %d", decoded.Count(), v.Count())
	}
	for i := 0; i < v.Count(); i++ {
		got, _ := decoded.Index(i)
		want, _ := v.Index(i)
		if got != want {
			t.Errorf("Index(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestVectorNumericAggregates(t *testing.T) {
	v := NewVector()
	v.Add("1")
	v.Add("2")
	v.Add("3")

	sum, err := v.Sum()
	if err != nil || sum != 6 {
		t.Errorf("Sum() = %v, %v; want 6, nil", sum, err)
	}

	avg, err := v.GetSMA()
	if err != nil || avg != 2 {
		t.Errorf("GetSMA() = %v, %v; want 2, nil", avg, err)
	}

	high, _ := v.GetHigh()
	low, _ := v.GetLow()
	if high != 3 || low != 1 {
		t.Errorf("GetHigh()/GetLow() = %v/%v, want 3/1", high, low)
	}
}

func TestVectorNumericAggregateRejectsNonNumeric(t *testing.T) {
	v := NewVector()
	v.Add("1")
	v.Add("2")
	v.Add("abc")

	if _, err := v.Sum(); err == nil {
		t.Error("Sum() should fail the whole aggregate on a non-numeric element")
	}
	if _, err := v.GetSMA(); err == nil {
		t.Error("GetSMA() should fail the whole aggregate on a non-numeric element")
	}
}

func TestVectorSortNumericVsLexical(t *testing.T) {
	v := NewVector()
	v.Add("10")
	v.Add("2")
	v.Add("1")
	v.Sort()
	want := []string{"1", "2", "10"}
	for i, w := range want {
		got, _ := v.Index(i)
		if got != w {
			t.Errorf("numeric sort[%d] = %q, want %q", i, got, w)
		}
	}

	s := NewVector()
	s.Add("banana")
	s.Add("apple")
	s.Sort()
	if got, _ := s.Index(0); got != "apple" {
		t.Errorf("lexical sort[0] = %q, want apple", got)
	}
}

func TestVectorResize(t *testing.T) {
	v := NewVector()
	v.Add("a")
	v.Add("b")
	v.Resize(1)
	if v.Count() != 1 {
		t.Errorf("Resize(1) Count() = %d, want 1", v.Count())
	}
	v.Resize(3)
	if v.Count() != 3 {
		t.Errorf("Resize(3) Count() = %d, want 3", v.Count())
	}
}
