package flusher

import (
	"testing"
	"time"

	"github.com/beryldb/beryldb/pkg/expire"
	"github.com/beryldb/beryldb/pkg/future"
	"github.com/beryldb/beryldb/pkg/query"
	"github.com/beryldb/beryldb/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *query.Context {
	t.Helper()
	db, err := storage.OpenDatabase(t.TempDir(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &query.Context{
		Database: db,
		Select:   "1",
		Expires:  expire.New(),
		Futures:  future.New(),
		Now:      1000,
	}
}

func drain(t *testing.T, p *Pool, n int) []Result {
	t.Helper()
	var out []Result
	for i := 0; i < n; i++ {
		select {
		case r := <-p.Outbound():
			out = append(out, r)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for outbound item %d/%d", i+1, n)
		}
	}
	return out
}

func TestSubmitRunsAndDelivers(t *testing.T) {
	p := New(2, 16)
	p.Start()
	defer p.Stop()

	ctx := newTestContext(t)
	ok := p.Submit(query.NewSet([]byte("k"), []byte("v")), ctx, "conn-1")
	require.True(t, ok)

	delivered := drain(t, p, 1)
	require.Equal(t, "conn-1", delivered[0].Tag)
	require.True(t, delivered[0].Query.(interface{ OK() bool }).OK())
}

func TestStreamingCommandDeliversEachChunk(t *testing.T) {
	p := New(1, 16)
	p.Start()
	defer p.Stop()

	ctx := newTestContext(t)
	for _, k := range []string{"a", "b", "c"} {
		ok := p.Submit(query.NewSet([]byte(k), []byte("v")), ctx, "conn-1")
		require.True(t, ok)
		drain(t, p, 1)
	}

	ctx.IterLimit = 2
	ok := p.Submit(query.NewKeys("*", 0, -1), ctx, "conn-1")
	require.True(t, ok)

	chunks := drain(t, p, 2)
	require.True(t, chunks[0].Query.(interface{ Partial() bool }).Partial())
	require.False(t, chunks[1].Query.(interface{ Partial() bool }).Partial())
}

func TestPauseBlocksNewWork(t *testing.T) {
	p := New(1, 16)
	p.Start()
	defer p.Stop()

	p.Pause()
	require.True(t, p.Paused())

	ctx := newTestContext(t)
	ok := p.Submit(query.NewSet([]byte("k"), []byte("v")), ctx, "conn-1")
	require.True(t, ok, "Submit still queues while paused; only execution halts")

	select {
	case <-p.Outbound():
		t.Fatal("query ran while flusher was paused")
	case <-time.After(50 * time.Millisecond):
	}

	p.Resume()
	drain(t, p, 1)
}

func TestResetAllDropsQueuedWork(t *testing.T) {
	p := New(1, 16)
	// Intentionally not started: queue work, then reset before any worker
	// can drain it, and confirm nothing is left queued.
	p.Pause()

	ctx := newTestContext(t)
	require.True(t, p.Submit(query.NewSet([]byte("k"), []byte("v")), ctx, "conn-1"))
	require.Equal(t, 1, p.FlusherQueueDepth())

	p.ResetAll()
	require.Equal(t, 0, p.FlusherQueueDepth())
}

func TestFlusherWorkerCountClampedToOne(t *testing.T) {
	p := New(0, 1)
	require.Equal(t, 1, p.FlusherWorkerCount())
}
