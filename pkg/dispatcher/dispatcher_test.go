package dispatcher

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/beryldb/beryldb/pkg/flusher"
	"github.com/beryldb/beryldb/pkg/protocol"
	"github.com/beryldb/beryldb/pkg/query"
	"github.com/beryldb/beryldb/pkg/storage"
	"github.com/stretchr/testify/require"
)

// fakeSink is a minimal Sink backed by an in-memory buffer, standing in
// for a connection-backed pkg/user.User.
type fakeSink struct {
	buf bytes.Buffer
	w   *protocol.Writer
}

func newFakeSink() *fakeSink {
	s := &fakeSink{}
	s.w = protocol.NewWriter(bufio.NewWriter(&s.buf))
	return s
}

func (s *fakeSink) Writer() *protocol.Writer { return s.w }

func TestDispatchSimpleCommandWritesOneFrame(t *testing.T) {
	outbound := make(chan flusher.Result, 1)
	d := New(outbound)
	sink := newFakeSink()

	get := query.NewGet([]byte("missing"))
	get.Run(&query.Context{Select: "1"})
	outbound <- flusher.Result{Query: get, Tag: sink}

	d.Dispatch(<-outbound)
	require.Contains(t, sink.buf.String(), "960")
}

func TestDispatchStreamWrapsChunksInOneList(t *testing.T) {
	db, err := storage.OpenDatabase(t.TempDir(), "test")
	require.NoError(t, err)
	defer db.Close()

	outbound := make(chan flusher.Result, 8)
	d := New(outbound)
	sink := newFakeSink()

	ctx := &query.Context{Database: db, Select: "1", IterLimit: 2}
	for _, k := range []string{"a", "b", "c"} {
		query.NewSet([]byte(k), []byte("v")).Run(ctx)
	}

	ctx.Attach = func(q query.Query) { outbound <- flusher.Result{Query: q, Tag: sink} }
	query.NewKeys("*", 0, -1).Run(ctx)
	close(outbound)

	for res := range outbound {
		d.Dispatch(res)
	}

	out := sink.buf.String()
	require.Equal(t, 1, strings.Count(out, "902 "), "exactly one START_LIST across every chunk")
	require.Equal(t, 1, strings.Count(out, "905 "), "exactly one END_LIST across every chunk")
	require.Equal(t, 3, strings.Count(out, "903 "), "one ITEM per matched key")
	require.Empty(t, d.open, "the stream's entry must be cleared once the final chunk is dispatched")
}

func TestStreamKeyGroupsByConnectionAndCommand(t *testing.T) {
	a, b := newFakeSink(), newFakeSink()
	require.NotEqual(t, streamKey{sink: a, command: "KEYS"}, streamKey{sink: b, command: "KEYS"})
	require.NotEqual(t, streamKey{sink: a, command: "KEYS"}, streamKey{sink: a, command: "HLIST"})
}
