// Package query implements Query objects: self-contained units of work
// that run once on a Flusher worker (Run) and once on the Dispatcher's
// event loop (Process), per the split described for Q/FL/DP. Every
// concrete query embeds Base, which owns the mutually-exclusive terminal
// state (SetOK/SetError) and the streaming bookkeeping shared by every
// iterator command.
package query

import (
	"strconv"

	"github.com/beryldb/beryldb/pkg/expire"
	"github.com/beryldb/beryldb/pkg/future"
	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
	"github.com/beryldb/beryldb/pkg/storage"
)

// DefaultIterLimit is the chunk size a streaming iterator buffers before
// handing a partial result to the Dispatcher, absent an override from
// Context.IterLimit.
const DefaultIterLimit = 100

// Context carries everything a Query's Run needs beyond its own
// arguments.
type Context struct {
	Database  *storage.Database
	Select    string
	IterLimit int
	Expires   *expire.Index
	Futures   *future.Index
	Now       int64

	// Attach submits a completed partial (or final) Query to the
	// Dispatcher's outbound queue. Streaming queries call it once per
	// ITER_LIMIT chunk and once more on loop end.
	Attach func(Query)

	// UserQuitting and FlusherPaused back two of CheckIterator's three
	// conditions; the third (database closing) is read directly off
	// Database.
	UserQuitting  func() bool
	FlusherPaused func() bool
}

// limit returns the effective chunk size for ctx, defaulting when unset.
func (ctx *Context) limit() int {
	if ctx.IterLimit > 0 {
		return ctx.IterLimit
	}
	return DefaultIterLimit
}

// CheckIterator is the single cancellation predicate every iterator tight
// loop consults: it returns false as soon as the user is quitting, the
// flusher is paused, or the query's database is closing.
func CheckIterator(ctx *Context) bool {
	if ctx.UserQuitting != nil && ctx.UserQuitting() {
		return false
	}
	if ctx.FlusherPaused != nil && ctx.FlusherPaused() {
		return false
	}
	if ctx.Database != nil && ctx.Database.Closing() {
		return false
	}
	return true
}

// Query is the unit of work a Flusher worker executes once (Run) and the
// Dispatcher formats once (Process).
type Query interface {
	Run(ctx *Context)
	Process(w *protocol.Writer) error
}

// Base implements the terminal-state guard and streaming bookkeeping
// every concrete query embeds. Concrete types call SetOK/SetError exactly
// once from Run; calling either a second time is a programming error and
// panics, closing the "sets OK after an error branch" bug class.
type Base struct {
	Command string

	done bool
	kind protocol.ErrorKind

	partial    bool
	subresult  int
	counter    int
}

// SetOK marks the query successful.
func (b *Base) SetOK() {
	if b.done {
		panic("query: terminal state already set on " + b.Command)
	}
	b.done = true
	b.kind = protocol.KindNone
}

// SetError marks the query failed with kind.
func (b *Base) SetError(kind protocol.ErrorKind) {
	if b.done {
		panic("query: terminal state already set on " + b.Command)
	}
	b.done = true
	b.kind = kind
}

// OK reports whether the query finished successfully.
func (b *Base) OK() bool { return b.done && b.kind == protocol.KindNone }

// markInterrupted flips an already-SetOK'd chunk to KindInterrupt, used to
// turn what would have been a normal final chunk into one Process refuses
// to close with END_LIST, once a streaming scan discovers mid-flight that
// it was cancelled. It bypasses SetError's terminal-state panic because the
// chunk's own newPartial has already called SetOK on it.
func (b *Base) markInterrupted() {
	b.kind = protocol.KindInterrupt
}

// Name returns the command name, used for metrics labels and log fields.
func (b *Base) Name() string { return b.Command }

// Settled reports whether SetOK/SetError has run. A streaming command's
// top-level instance (Keys, HList, ...) never settles itself — it only
// attaches chunk instances that do — so the Flusher uses Settled to decide
// whether the instance it just ran belongs on the outbound queue at all.
func (b *Base) Settled() bool { return b.done }

// Kind returns the error kind the query terminated with, or KindNone.
func (b *Base) Kind() protocol.ErrorKind { return b.kind }

// markPartial records that this query instance carries one non-final
// chunk of a streamed result.
func (b *Base) markPartial(subresult int) {
	b.partial = true
	b.subresult = subresult
}

// markFinal records that this query instance carries the last chunk of a
// streamed result, with counter holding the total element count emitted
// across every chunk.
func (b *Base) markFinal(subresult, counter int) {
	b.partial = false
	b.subresult = subresult
	b.counter = counter
}

// Partial reports whether this instance is a non-final streamed chunk.
func (b *Base) Partial() bool { return b.partial }

// Streamed reports whether this instance is one chunk of a command built
// on the chunking helpers (iterState/scanTag) rather than a self-contained
// list command like MODULES or FTLIST, which writes its own START_LIST and
// END_LIST inside a single Process call. The Dispatcher uses this to know
// whether it, rather than Process, owns emitting START_LIST/END_LIST
// around a run of chunk instances.
func (b *Base) Streamed() bool { return b.subresult > 0 }

// Counter returns the final chunk's total element count; meaningless
// until markFinal has run.
func (b *Base) Counter() int { return b.counter }

// ValidateOffset enforces the negative-offsets-rejected-upstream rule:
// every command accepting an offset calls this at construction time,
// before a Query is built, rather than discovering the problem in Run.
func ValidateOffset(offset int) bool {
	return offset >= 0
}

// ParseInt maps a command argument to an int64, used so a malformed
// numeric argument consistently becomes KindInvalidFormat rather than a
// panic.
func ParseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// iterState accumulates one streaming scan's counters: matched tracks how
// many candidates have been seen (for offset skipping), aux how many have
// been emitted (for limit enforcement and the final counter), tracker how
// many chunks have been attached so far.
type iterState struct {
	matched, aux, tracker int
	buffer                []string
}

// emit buffers one matched item, respecting offset/limit, and attaches a
// chunk via newPartial once the buffer reaches ctx's configured chunk
// size. It returns false when limit has been reached and the scan should
// stop.
func (st *iterState) emit(ctx *Context, offset, limitCount int, item string, newPartial func(items []string, partial bool, subresult, counter int) Query) bool {
	if st.matched < offset {
		st.matched++
		return true
	}
	if limitCount >= 0 && st.aux >= limitCount {
		return false
	}
	st.matched++
	st.aux++
	st.buffer = append(st.buffer, item)
	if len(st.buffer) >= ctx.limit() {
		st.tracker++
		ctx.Attach(newPartial(st.buffer, true, st.tracker, st.aux))
		st.buffer = nil
	}
	return true
}

// interrupter is satisfied by every concrete query built on Base; finish
// and hIterator.run use it to flip an already-SetOK'd final chunk to
// KindInterrupt without threading a new parameter through every newPartial
// closure.
type interrupter interface {
	markInterrupted()
}

// finish attaches the residual buffer as the final chunk. If the scan that
// fed it was cut short by CheckIterator rather than running to completion,
// the chunk is marked interrupted instead of partial=false, so Process
// refuses to close the stream with END_LIST.
func (st *iterState) finish(ctx *Context, interrupted bool, newPartial func(items []string, partial bool, subresult, counter int) Query) {
	st.tracker++
	final := newPartial(st.buffer, false, st.tracker, st.aux)
	if interrupted {
		if ix, ok := final.(interrupter); ok {
			ix.markInterrupted()
		}
	}
	ctx.Attach(final)
}

// scanTag runs one cursor scan over tag, decoding each physical key,
// filtering by select and an optional glob pattern, and handing surviving
// (decoded, value) pairs to match. match returns ok=false to skip a key
// that passed the tag/select/pattern filter but fails a command-specific
// secondary check (e.g. HEXISTS' field lookup).
func scanTag(ctx *Context, tag keyenc.Tag, pattern string, match func(d keyenc.Decoded, value []byte) (item string, ok bool), st *iterState, offset, limitCount int, newPartial func(items []string, partial bool, subresult, counter int) Query) {
	interrupted := false
	ctx.Database.Scan(tag, func(physKey, value []byte) bool {
		if !CheckIterator(ctx) {
			interrupted = true
			return false
		}
		d, err := keyenc.Decode(physKey)
		if err != nil {
			return true
		}
		if d.Select != ctx.Select {
			return true
		}
		if pattern != "" && !keyenc.Match(pattern, d.UserKey) {
			return true
		}
		item, ok := match(d, value)
		if !ok {
			return true
		}
		if !st.emit(ctx, offset, limitCount, item, newPartial) {
			return false
		}
		return true
	})
	st.finish(ctx, interrupted, newPartial)
}
