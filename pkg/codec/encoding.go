// Package codec implements the Composite Codecs: single-blob serializers for
// the map, multimap, and vector logical types, grounded on the handler
// classes in original_source/src/brldb/maps.cpp and vectors.cpp. The wire
// format is a private contract of this package — any reversible encoding is
// valid so long as decode(encode(x)) == x.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("codec: reading length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	s := make([]byte, n)
	if _, err := io.ReadFull(r, s); err != nil {
		return "", fmt.Errorf("codec: reading %d-byte field: %w", n, err)
	}
	return string(s), nil
}

func writeCount(buf *bytes.Buffer, n int) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
	buf.Write(lenBuf[:])
}

func readCount(r *bytes.Reader) (int, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, fmt.Errorf("codec: reading count prefix: %w", err)
	}
	return int(binary.BigEndian.Uint32(lenBuf[:])), nil
}
