package query

import (
	"testing"

	"github.com/beryldb/beryldb/pkg/expire"
	"github.com/beryldb/beryldb/pkg/future"
	"github.com/beryldb/beryldb/pkg/protocol"
	"github.com/beryldb/beryldb/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	db, err := storage.OpenDatabase(t.TempDir(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var attached []Query
	ctx := &Context{
		Database:  db,
		Select:    "1",
		IterLimit: 2,
		Expires:   expire.New(),
		Futures:   future.New(),
		Now:       1000,
		Attach:    func(q Query) { attached = append(attached, q) },
	}
	return ctx
}

func run(ctx *Context, q Query) []Query {
	var attached []Query
	ctx.Attach = func(child Query) { attached = append(attached, child) }
	q.Run(ctx)
	return attached
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := newTestContext(t)

	set := NewSet([]byte("k"), []byte("v"))
	set.Run(ctx)
	require.True(t, set.OK())

	get := NewGet([]byte("k"))
	get.Run(ctx)
	require.True(t, get.OK())
	require.Equal(t, "v", get.value)
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := newTestContext(t)

	get := NewGet([]byte("absent"))
	get.Run(ctx)
	require.False(t, get.OK())
	require.Equal(t, protocol.KindNotFound, get.Kind())
}

func TestDelIdempotent(t *testing.T) {
	ctx := newTestContext(t)

	NewSet([]byte("k"), []byte("v")).Run(ctx)

	d1 := NewDel([]byte("k"))
	d1.Run(ctx)
	require.True(t, d1.OK())

	d2 := NewDel([]byte("k"))
	d2.Run(ctx)
	require.True(t, d2.OK(), "deleting an absent key must still succeed")
}

func TestSetNXRejectsExisting(t *testing.T) {
	ctx := newTestContext(t)
	NewSet([]byte("k"), []byte("v")).Run(ctx)

	nx := NewSetNX([]byte("k"), []byte("v2"))
	nx.Run(ctx)
	require.False(t, nx.OK())
	require.Equal(t, protocol.KindEntryExists, nx.Kind())
}

func TestTerminalStateGuardPanics(t *testing.T) {
	b := &Base{Command: "TEST"}
	b.SetOK()
	require.Panics(t, func() { b.SetError(protocol.KindNotFound) })
}

func TestValidateOffsetRejectsNegative(t *testing.T) {
	require.False(t, ValidateOffset(-1))
	require.True(t, ValidateOffset(0))
}

func TestKeysStreamsInChunks(t *testing.T) {
	ctx := newTestContext(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		NewSet([]byte(k), []byte("v")).Run(ctx)
	}

	keys := NewKeys("*", 0, -1)
	attached := run(ctx, keys)

	require.Len(t, attached, 3, "5 keys at IterLimit=2 means 2 full chunks plus one final chunk")

	total := 0
	for i, a := range attached {
		chunk := a.(*Keys)
		total += len(chunk.items)
		if i < len(attached)-1 {
			require.True(t, chunk.Partial())
		} else {
			require.False(t, chunk.Partial())
			require.Equal(t, 5, chunk.Counter())
		}
	}
	require.Equal(t, 5, total)
}

func TestKeysRespectsOffsetAndLimit(t *testing.T) {
	ctx := newTestContext(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		NewSet([]byte(k), []byte("v")).Run(ctx)
	}

	keys := NewKeys("*", 1, 2)
	attached := run(ctx, keys)

	var items []string
	for _, a := range attached {
		items = append(items, a.(*Keys).items...)
	}
	require.Len(t, items, 2)
}

func TestHSetUpsertThenHGetAll(t *testing.T) {
	ctx := newTestContext(t)

	NewHSet([]byte("h"), []byte("f1"), []byte("v1")).Run(ctx)
	NewHSet([]byte("h"), []byte("f2"), []byte("v2")).Run(ctx)
	NewHSet([]byte("h"), []byte("f1"), []byte("v1-updated")).Run(ctx)

	hget := NewHGet([]byte("h"), []byte("f1"))
	hget.Run(ctx)
	require.True(t, hget.OK())
	require.Equal(t, "v1-updated", hget.value)

	count := NewHCount([]byte("h"))
	count.Run(ctx)
	require.Equal(t, 2, count.n)
}

func TestHDelEmptyCollapseDeletesPhysicalKey(t *testing.T) {
	ctx := newTestContext(t)
	NewHSet([]byte("h"), []byte("only"), []byte("v")).Run(ctx)
	NewHDel([]byte("h"), []byte("only")).Run(ctx)

	count := NewHCount([]byte("h"))
	count.Run(ctx)
	require.True(t, count.OK())
	require.Equal(t, 0, count.n, "map with zero fields reports count 0, not NOT_FOUND")
}

func TestVectorAggregateRejectsNonNumeric(t *testing.T) {
	ctx := newTestContext(t)
	NewVPush([]byte("v"), []byte("1")).Run(ctx)
	NewVPush([]byte("v"), []byte("not-a-number")).Run(ctx)
	NewVPush([]byte("v"), []byte("3")).Run(ctx)

	sum := NewVSum([]byte("v"))
	sum.Run(ctx)
	require.False(t, sum.OK())
	require.Equal(t, protocol.KindInvalidRange, sum.Kind())
}

func TestVectorAggregateSucceedsWhenAllNumeric(t *testing.T) {
	ctx := newTestContext(t)
	NewVPush([]byte("v"), []byte("1")).Run(ctx)
	NewVPush([]byte("v"), []byte("2")).Run(ctx)
	NewVPush([]byte("v"), []byte("3")).Run(ctx)

	sum := NewVSum([]byte("v"))
	sum.Run(ctx)
	require.True(t, sum.OK())
	require.Equal(t, float64(6), sum.result)
}

func TestVPushNXRejectsDuplicate(t *testing.T) {
	ctx := newTestContext(t)
	NewVPush([]byte("v"), []byte("x")).Run(ctx)

	nx := NewVPushNX([]byte("v"), []byte("x"))
	nx.Run(ctx)
	require.False(t, nx.OK())
	require.Equal(t, protocol.KindEntryExists, nx.Kind())
}

func TestGeoAddRejectsOutOfRangeCoordinate(t *testing.T) {
	ctx := newTestContext(t)
	add := NewGeoAdd([]byte("place"), 200, 10)
	add.Run(ctx)
	require.False(t, add.OK())
	require.Equal(t, protocol.KindInvalidCoord, add.Kind())
}

func TestGeoAddThenGet(t *testing.T) {
	ctx := newTestContext(t)
	NewGeoAdd([]byte("place"), 45.5, -73.6).Run(ctx)

	get := NewGeoGet([]byte("place"))
	get.Run(ctx)
	require.True(t, get.OK())
	require.Equal(t, "45.5 -73.6", get.result)
}

func TestExpireThenGetExp(t *testing.T) {
	ctx := newTestContext(t)
	NewSet([]byte("k"), []byte("v")).Run(ctx)
	NewExpire([]byte("k"), 60).Run(ctx)

	exp := NewGetExp([]byte("k"))
	exp.Run(ctx)
	require.True(t, exp.OK())
	require.Equal(t, ctx.Now+60, exp.at)
}

func TestFutSetRejectsPastEpoch(t *testing.T) {
	ctx := newTestContext(t)
	fs := NewFutSet([]byte("k"), []byte("v"), ctx.Now-1)
	fs.Run(ctx)
	require.False(t, fs.OK())
	require.Equal(t, protocol.KindInvalidRange, fs.Kind())
}

func TestCancelFuture(t *testing.T) {
	ctx := newTestContext(t)
	NewFuture([]byte("k"), []byte("v"), 60).Run(ctx)

	cancel := NewCancel([]byte("k"))
	cancel.Run(ctx)
	require.True(t, cancel.OK())

	cancelAgain := NewCancel([]byte("k"))
	cancelAgain.Run(ctx)
	require.False(t, cancelAgain.OK())
	require.Equal(t, protocol.KindNotFound, cancelAgain.Kind())
}

func TestExecForcesImmediateWrite(t *testing.T) {
	ctx := newTestContext(t)
	NewFuture([]byte("k"), []byte("arrived-early"), 3600).Run(ctx)

	exec := NewExec([]byte("k"))
	exec.Run(ctx)
	require.True(t, exec.OK())

	get := NewGet([]byte("k"))
	get.Run(ctx)
	require.True(t, get.OK())
	require.Equal(t, "arrived-early", get.value)
}

func TestFTListIncludesEveryPendingFutureAcrossSelects(t *testing.T) {
	ctx := newTestContext(t)
	NewFuture([]byte("k1"), []byte("v1"), 60).Run(ctx)
	ctx.Select = "2"
	NewFuture([]byte("k2"), []byte("v2"), 120).Run(ctx)

	list := NewFTList()
	list.Run(ctx)
	require.True(t, list.OK())
	require.Len(t, list.rows, 2)
	for _, row := range list.rows {
		require.Equal(t, 4, len(splitRow(row)))
	}
}

func TestFTSelectFiltersBySelectAndRowsCarryDistinctIDs(t *testing.T) {
	ctx := newTestContext(t)
	NewFuture([]byte("k1"), []byte("v1"), 60).Run(ctx)
	ctx.Select = "2"
	NewFuture([]byte("k2"), []byte("v2"), 120).Run(ctx)

	sel := NewFTSelect("2")
	sel.Run(ctx)
	require.True(t, sel.OK())
	require.Len(t, sel.rows, 1)
	require.Contains(t, sel.rows[0], "k2")

	all := NewFTList()
	all.Run(ctx)
	require.NotEqual(t, splitRow(all.rows[0])[3], splitRow(all.rows[1])[3])
}

func splitRow(row string) []string {
	var fields []string
	start := 0
	for i := 0; i <= len(row); i++ {
		if i == len(row) || row[i] == ' ' {
			fields = append(fields, row[start:i])
			start = i + 1
		}
	}
	return fields
}

func TestKeysCancelledScanEndsWithoutFinalOKChunk(t *testing.T) {
	ctx := newTestContext(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		NewSet([]byte(k), []byte("v")).Run(ctx)
	}

	seen := 0
	ctx.UserQuitting = func() bool {
		seen++
		return seen > 2
	}

	keys := NewKeys("*", 0, -1)
	attached := run(ctx, keys)

	require.NotEmpty(t, attached)
	last := attached[len(attached)-1].(*Keys)
	require.False(t, last.Partial(), "the cut-short chunk still carries the final-chunk shape")
	require.False(t, last.OK(), "a cancelled scan's final chunk must not report OK")
	require.Equal(t, protocol.KindInterrupt, last.Kind())
}

func TestDBResetWipesEverySelect(t *testing.T) {
	ctx := newTestContext(t)
	NewSet([]byte("k"), []byte("v")).Run(ctx)
	NewVPush([]byte("vec"), []byte("1")).Run(ctx)

	reset := NewDBReset()
	reset.Run(ctx)
	require.True(t, reset.OK())

	size := NewDBSize()
	size.Run(ctx)
	require.Equal(t, 0, size.n)
}
