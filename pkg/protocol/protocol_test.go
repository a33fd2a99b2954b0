package protocol

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriterFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))

	if err := w.Frame(BRLD_OK, "bar"); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := "900 bar\n"
	if got := buf.String(); got != want {
		t.Errorf("Frame output = %q, want %q", got, want)
	}
}

func TestWriterStreaming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))

	_ = w.StartList()
	_ = w.Item("a")
	_ = w.Item("b")
	_ = w.EndList(2)
	_ = w.Flush()

	want := "902 \n903 a\n903 b\n905 2\n"
	if got := buf.String(); got != want {
		t.Errorf("streaming output = %q, want %q", got, want)
	}
}

func TestErrorKindCode(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want Code
	}{
		{KindMissArgs, DBL_MISS_ARGS},
		{KindNotFound, DBL_NOT_FOUND},
		{KindInvalidRange, DBL_INVALID_RANGE},
		{KindNone, BRLD_OK},
	}
	for _, tt := range tests {
		if got := tt.kind.Code(); got != tt.want {
			t.Errorf("%v.Code() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
