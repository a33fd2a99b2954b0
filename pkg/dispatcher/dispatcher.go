// Package dispatcher implements the Dispatcher (DP): the event-loop-side
// drain of the Flusher's outbound queue. For each delivered Result it
// calls Process on the Query and writes the framed reply to the User the
// Query belongs to, grounded on spec.md §4/§5's "single-threaded event
// loop" ownership split — only this package's goroutine ever touches a
// connection's protocol.Writer.
package dispatcher

import (
	"sync"

	"github.com/beryldb/beryldb/pkg/flusher"
	"github.com/beryldb/beryldb/pkg/log"
	"github.com/beryldb/beryldb/pkg/protocol"
)

// Sink is how the Dispatcher reaches the User a delivered Query belongs
// to. A Submit call's tag must implement Sink for a reply to be written;
// a tag that doesn't, or whose Writer returns nil (connection already
// gone), is silently dropped.
type Sink interface {
	Writer() *protocol.Writer
}

// streamKey identifies one in-progress chunked stream so interleaved
// Results for different commands on the same connection don't bleed into
// each other's START_LIST/END_LIST framing. Keying by (sink, command)
// rather than a query ID is a deliberate simplification: it assumes one
// connection does not have two instances of the same streaming command
// in flight at once, which holds given spec's documented lack of
// per-user FIFO ordering is the only source of concurrent Results for one
// connection.
type streamKey struct {
	sink    Sink
	command string
}

// Dispatcher drains a flusher.Pool's outbound queue and writes framed
// replies. It must only ever be driven from one goroutine — normally the
// event loop.
type Dispatcher struct {
	outbound <-chan flusher.Result

	mu   sync.Mutex
	open map[streamKey]bool
}

// New wraps outbound, typically a flusher.Pool's Outbound().
func New(outbound <-chan flusher.Result) *Dispatcher {
	return &Dispatcher{outbound: outbound, open: make(map[streamKey]bool)}
}

// Run drains the outbound queue until it is closed. Call it from the
// event-loop goroutine; it blocks, so run it in its own goroutine if the
// event loop also needs to service other work (timer sweeps, the accept
// loop) on the same tick.
func (d *Dispatcher) Run() {
	for res := range d.outbound {
		d.Dispatch(res)
	}
}

// QueueDepth reports the outbound queue's length. pkg/server's queueSource
// adapter exposes it as metrics.QueueSource's DispatcherQueueDepth, next to
// the Flusher's FlusherQueueDepth/FlusherWorkerCount.
func (d *Dispatcher) QueueDepth() int { return len(d.outbound) }

// Dispatch processes one Result: it is exported so the event loop can
// also pull single items off the queue on its own tick instead of
// dedicating a goroutine to Run.
func (d *Dispatcher) Dispatch(res flusher.Result) {
	sink, ok := res.Tag.(Sink)
	if !ok {
		return
	}
	w := sink.Writer()
	if w == nil {
		return
	}

	streamed, _ := res.Query.(interface{ Streamed() bool })
	if streamed == nil || !streamed.Streamed() {
		if err := res.Query.Process(w); err != nil {
			log.WithComponent("dispatcher").Warn().Err(err).Msg("writing reply failed")
			return
		}
		_ = w.Flush()
		return
	}

	named, _ := res.Query.(interface{ Name() string })
	command := ""
	if named != nil {
		command = named.Name()
	}
	key := streamKey{sink: sink, command: command}

	d.mu.Lock()
	first := !d.open[key]
	d.open[key] = true
	d.mu.Unlock()

	if first {
		if err := w.StartList(); err != nil {
			log.WithComponent("dispatcher").Warn().Err(err).Msg("writing START_LIST failed")
			return
		}
	}

	if err := res.Query.Process(w); err != nil {
		log.WithComponent("dispatcher").Warn().Err(err).Msg("writing stream chunk failed")
	}

	if partial, ok := res.Query.(interface{ Partial() bool }); !ok || !partial.Partial() {
		d.mu.Lock()
		delete(d.open, key)
		d.mu.Unlock()
	}

	_ = w.Flush()
}
