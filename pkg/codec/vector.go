package codec

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/beryldb/beryldb/pkg/keyenc"
)

// VectorHandler encodes an ordered sequence of string elements into a single
// blob, grounded on VectorHandler::Create and the vfind/vpush family in
// original_source/src/brldb/vectors.cpp.
type VectorHandler struct {
	items []string
}

// NewVector returns an empty handler.
func NewVector() *VectorHandler {
	return &VectorHandler{}
}

// DecodeVector reconstructs a handler from bytes previously produced by
// Encode.
func DecodeVector(data []byte) (*VectorHandler, error) {
	r := bytes.NewReader(data)
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	v := &VectorHandler{items: make([]string, 0, n)}
	for i := 0; i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		v.items = append(v.items, s)
	}
	return v, nil
}

// Encode serializes the handler back to its single-blob physical value.
func (v *VectorHandler) Encode() []byte {
	var buf bytes.Buffer
	writeCount(&buf, len(v.items))
	for _, s := range v.items {
		writeString(&buf, s)
	}
	return buf.Bytes()
}

// Add appends value to the back of the vector.
func (v *VectorHandler) Add(value string) {
	v.items = append(v.items, value)
}

// Exist reports whether value is present in the vector.
func (v *VectorHandler) Exist(value string) bool {
	for _, s := range v.items {
		if s == value {
			return true
		}
	}
	return false
}

// PopFront removes and returns the first element.
func (v *VectorHandler) PopFront() (string, bool) {
	if len(v.items) == 0 {
		return "", false
	}
	s := v.items[0]
	v.items = v.items[1:]
	return s, true
}

// PopBack removes and returns the last element.
func (v *VectorHandler) PopBack() (string, bool) {
	if len(v.items) == 0 {
		return "", false
	}
	last := len(v.items) - 1
	s := v.items[last]
	v.items = v.items[:last]
	return s, true
}

// Index returns the element at position n (0-based).
func (v *VectorHandler) Index(n int) (string, bool) {
	if n < 0 || n >= len(v.items) {
		return "", false
	}
	return v.items[n], true
}

// Remove deletes the first element equal to value, reporting whether one
// was found.
func (v *VectorHandler) Remove(value string) bool {
	for i, s := range v.items {
		if s == value {
			v.items = append(v.items[:i], v.items[i+1:]...)
			return true
		}
	}
	return false
}

// Resize truncates the vector to n elements, or pads it with empty strings
// if n is larger than the current length. A negative n is a no-op.
func (v *VectorHandler) Resize(n int) {
	if n < 0 {
		return
	}
	if n <= len(v.items) {
		v.items = v.items[:n]
		return
	}
	for len(v.items) < n {
		v.items = append(v.items, "")
	}
}

// Sort orders the vector ascending: numerically if every element parses as
// a number, lexicographically otherwise.
func (v *VectorHandler) Sort() {
	if v.IsNumeric() {
		sort.Slice(v.items, func(i, j int) bool {
			a, _ := strconv.ParseFloat(v.items[i], 64)
			b, _ := strconv.ParseFloat(v.items[j], 64)
			return a < b
		})
		return
	}
	sort.Strings(v.items)
}

// Reverse reverses the vector in place.
func (v *VectorHandler) Reverse() {
	for i, j := 0, len(v.items)-1; i < j; i, j = i+1, j-1 {
		v.items[i], v.items[j] = v.items[j], v.items[i]
	}
}

// Find returns every element matching the glob pattern.
func (v *VectorHandler) Find(pattern string) []string {
	var out []string
	for _, s := range v.items {
		if keyenc.Match(pattern, []byte(s)) {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of elements.
func (v *VectorHandler) Count() int {
	return len(v.items)
}

// Repeats returns the number of occurrences of value.
func (v *VectorHandler) Repeats(value string) int {
	n := 0
	for _, s := range v.items {
		if s == value {
			n++
		}
	}
	return n
}

// IsNumeric reports whether every element parses as a float64. An empty
// vector is not numeric — there is nothing to aggregate.
func (v *VectorHandler) IsNumeric() bool {
	if len(v.items) == 0 {
		return false
	}
	for _, s := range v.items {
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false
		}
	}
	return true
}

// numbers parses every element as float64, failing the whole aggregate (not
// skipping elements) the moment one element isn't numeric — the guard named
// in spec.md's numeric aggregate testable property.
func (v *VectorHandler) numbers() ([]float64, error) {
	out := make([]float64, len(v.items))
	for i, s := range v.items {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("codec: element %q is not numeric: %w", s, err)
		}
		out[i] = f
	}
	return out, nil
}

// Sum returns the sum of every element, or an error if any element is not
// numeric.
func (v *VectorHandler) Sum() (float64, error) {
	nums, err := v.numbers()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return total, nil
}

// GetSMA returns the simple mean average of every element.
func (v *VectorHandler) GetSMA() (float64, error) {
	nums, err := v.numbers()
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, fmt.Errorf("codec: empty vector has no average")
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums)), nil
}

// GetHigh returns the maximum element.
func (v *VectorHandler) GetHigh() (float64, error) {
	nums, err := v.numbers()
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, fmt.Errorf("codec: empty vector has no high")
	}
	high := nums[0]
	for _, n := range nums[1:] {
		if n > high {
			high = n
		}
	}
	return high, nil
}

// GetLow returns the minimum element.
func (v *VectorHandler) GetLow() (float64, error) {
	nums, err := v.numbers()
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, fmt.Errorf("codec: empty vector has no low")
	}
	low := nums[0]
	for _, n := range nums[1:] {
		if n < low {
			low = n
		}
	}
	return low, nil
}

// Front returns the first element.
func (v *VectorHandler) Front() (string, bool) {
	if len(v.items) == 0 {
		return "", false
	}
	return v.items[0], true
}

// Back returns the last element.
func (v *VectorHandler) Back() (string, bool) {
	if len(v.items) == 0 {
		return "", false
	}
	return v.items[len(v.items)-1], true
}
