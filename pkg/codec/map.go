package codec

import "bytes"

// Pair is one (field, value) entry of a MapHandler, in insertion order.
type Pair struct {
	Field string
	Value string
}

// MapHandler encodes an ordered string-to-string map into a single blob, the
// way hset_query/hget_query treat a hash value in maps.cpp: one physical row
// per key, mutated by decode-mutate-rewrite.
type MapHandler struct {
	order []string
	index map[string]string
}

// NewMap returns an empty handler, used on the create-if-absent path of an
// upsert.
func NewMap() *MapHandler {
	return &MapHandler{index: make(map[string]string)}
}

// DecodeMap reconstructs a handler from bytes previously produced by Encode.
func DecodeMap(data []byte) (*MapHandler, error) {
	r := bytes.NewReader(data)
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	m := &MapHandler{
		order: make([]string, 0, n),
		index: make(map[string]string, n),
	}
	for i := 0; i < n; i++ {
		field, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		if _, exists := m.index[field]; !exists {
			m.order = append(m.order, field)
		}
		m.index[field] = value
	}
	return m, nil
}

// Encode serializes the handler back to its single-blob physical value.
func (m *MapHandler) Encode() []byte {
	var buf bytes.Buffer
	writeCount(&buf, len(m.order))
	for _, field := range m.order {
		writeString(&buf, field)
		writeString(&buf, m.index[field])
	}
	return buf.Bytes()
}

// Add inserts or replaces field's value, reporting whether field already
// existed (the caller turns that into BRLD_QUERY_OK either way — Add itself
// never fails).
func (m *MapHandler) Add(field, value string) (replaced bool) {
	_, replaced = m.index[field]
	if !replaced {
		m.order = append(m.order, field)
	}
	m.index[field] = value
	return replaced
}

// Get returns field's value and whether it was present.
func (m *MapHandler) Get(field string) (string, bool) {
	v, ok := m.index[field]
	return v, ok
}

// Exists reports whether field is present.
func (m *MapHandler) Exists(field string) bool {
	_, ok := m.index[field]
	return ok
}

// Strlen returns len(value) for field, or (0, false) if absent.
func (m *MapHandler) Strlen(field string) (int, bool) {
	v, ok := m.index[field]
	if !ok {
		return 0, false
	}
	return len(v), true
}

// Remove deletes field, reporting whether it was present. Remove is
// idempotent: removing an absent field is a no-op that reports false.
func (m *MapHandler) Remove(field string) bool {
	if _, ok := m.index[field]; !ok {
		return false
	}
	delete(m.index, field)
	for i, f := range m.order {
		if f == field {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of fields.
func (m *MapHandler) Count() int {
	return len(m.order)
}

// GetList returns the fields in insertion order.
func (m *MapHandler) GetList() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// GetValues returns the values in the same order as GetList.
func (m *MapHandler) GetValues() []string {
	out := make([]string, len(m.order))
	for i, f := range m.order {
		out[i] = m.index[f]
	}
	return out
}

// GetAll returns every (field, value) pair in insertion order.
func (m *MapHandler) GetAll() []Pair {
	out := make([]Pair, len(m.order))
	for i, f := range m.order {
		out[i] = Pair{Field: f, Value: m.index[f]}
	}
	return out
}
