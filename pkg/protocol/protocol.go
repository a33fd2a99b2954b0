// Package protocol defines the line-oriented wire codes BerylDB speaks to
// clients and a small writer for framing them.
package protocol

import (
	"bufio"
	"fmt"
)

// Code is a numeric reply code, written as the first token of a frame.
type Code int

// Reply codes. Every frame the core emits carries one of these as its first
// token: "<code> <payload>\n".
const (
	BRLD_OK         Code = 900 // scalar success with payload
	BRLD_QUERY_OK   Code = 901 // write success, no payload beyond OK
	BRLD_START_LIST Code = 902 // opens an iterator stream
	BRLD_ITEM       Code = 903 // one streamed element
	BRLD_ITEM_LIST  Code = 904 // one streamed (field, value) pair
	BRLD_END_LIST   Code = 905 // closes an iterator stream

	ERR_INPUT Code = 950 // generic input error
	ERR_USE   Code = 951 // command-usage error

	DBL_NOT_FOUND      Code = 960 // logical entry absent
	DBL_MISS_ARGS      Code = 961 // required argument missing
	DBL_UNABLE_WRITE   Code = 962 // store write failed
	DBL_ENTRY_EXISTS   Code = 963 // *NX variant saw an existing entry
	DBL_INVALID_RANGE  Code = 964 // numeric aggregate on non-numeric data
	DBL_INVALID_FORMAT Code = 965 // malformed key
	DBL_INTERRUPT      Code = 966 // cancelled mid-scan
	DBL_INVALID_COORD  Code = 967 // malformed geo coordinate
)

// Writer frames replies onto an underlying connection writer. It performs no
// buffering decisions of its own beyond what bufio.Writer gives it; Flush
// must be called by the caller (normally once per event-loop tick) to push
// bytes onto the socket.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

// Frame writes a single "<code> <payload>\n" line.
func (w *Writer) Frame(code Code, payload string) error {
	_, err := fmt.Fprintf(w.w, "%d %s\n", code, payload)
	return err
}

// StartList opens a streamed result.
func (w *Writer) StartList() error {
	return w.Frame(BRLD_START_LIST, "")
}

// Item writes one streamed scalar element.
func (w *Writer) Item(value string) error {
	return w.Frame(BRLD_ITEM, value)
}

// ItemPair writes one streamed (field, value) pair, space-separated.
func (w *Writer) ItemPair(field, value string) error {
	return w.Frame(BRLD_ITEM_LIST, field+" "+value)
}

// EndList closes a streamed result with the total element count.
func (w *Writer) EndList(counter int) error {
	return w.Frame(BRLD_END_LIST, fmt.Sprintf("%d", counter))
}

// Flush pushes buffered frames to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
