package storage

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/holiman/bloomfilter/v2"
)

// bloomKey adapts an arbitrary byte slice to bloomfilter.Hashable, the way
// go-ethereum's state-bloom wrapper adapts a 32-byte hash — here we hash the
// physical key with FNV-1a down to a uint64 first.
type bloomKey uint64

func (k bloomKey) Hash() uint64 { return uint64(k) }

func hashPhysicalKey(key []byte) bloomKey {
	h := fnv.New64a()
	_, _ = h.Write(key)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return bloomKey(binary.BigEndian.Uint64(buf[:]))
}

// newBloom builds a filter sized for maxElements entries at the given false
// positive rate, consulted before every Get touches bbolt so that a
// negative answer never costs a disk read. Scan does not consult it.
func newBloom(maxElements uint64, falsePositiveRate float64) (*bloomfilter.Filter, error) {
	return bloomfilter.NewOptimal(maxElements, falsePositiveRate)
}
