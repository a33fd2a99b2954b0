package codec

import "bytes"

// MultiMapHandler encodes an ordered sequence of (field, value) pairs where
// the same field may appear more than once, unlike MapHandler.
type MultiMapHandler struct {
	pairs []Pair
}

// NewMultiMap returns an empty handler.
func NewMultiMap() *MultiMapHandler {
	return &MultiMapHandler{}
}

// DecodeMultiMap reconstructs a handler from bytes previously produced by
// Encode.
func DecodeMultiMap(data []byte) (*MultiMapHandler, error) {
	r := bytes.NewReader(data)
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	mm := &MultiMapHandler{pairs: make([]Pair, 0, n)}
	for i := 0; i < n; i++ {
		field, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		mm.pairs = append(mm.pairs, Pair{Field: field, Value: value})
	}
	return mm, nil
}

// Encode serializes the handler back to its single-blob physical value.
func (mm *MultiMapHandler) Encode() []byte {
	var buf bytes.Buffer
	writeCount(&buf, len(mm.pairs))
	for _, p := range mm.pairs {
		writeString(&buf, p.Field)
		writeString(&buf, p.Value)
	}
	return buf.Bytes()
}

// Add appends a new (field, value) pair, always as a new entry even if
// field already has one or more values.
func (mm *MultiMapHandler) Add(field, value string) {
	mm.pairs = append(mm.pairs, Pair{Field: field, Value: value})
}

// Get returns the value of the first pair matching field.
func (mm *MultiMapHandler) Get(field string) (string, bool) {
	for _, p := range mm.pairs {
		if p.Field == field {
			return p.Value, true
		}
	}
	return "", false
}

// Exists reports whether any pair has the given field.
func (mm *MultiMapHandler) Exists(field string) bool {
	_, ok := mm.Get(field)
	return ok
}

// Remove deletes the first pair matching field, reporting whether one was
// found.
func (mm *MultiMapHandler) Remove(field string) bool {
	for i, p := range mm.pairs {
		if p.Field == field {
			mm.pairs = append(mm.pairs[:i], mm.pairs[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns every field whose value equals value.
func (mm *MultiMapHandler) Find(value string) []string {
	var out []string
	for _, p := range mm.pairs {
		if p.Value == value {
			out = append(out, p.Field)
		}
	}
	return out
}

// Count returns the number of pairs.
func (mm *MultiMapHandler) Count() int {
	return len(mm.pairs)
}

// GetAll returns every pair in insertion order.
func (mm *MultiMapHandler) GetAll() []Pair {
	out := make([]Pair, len(mm.pairs))
	copy(out, mm.pairs)
	return out
}
