// Package flusher implements the Flusher (FL): a fixed-size worker pool
// that pulls Query off an inbound queue, runs it off the event loop, and
// posts every settled instance — the top-level result of a non-streaming
// command, or one of a streaming command's chunk instances — onto an
// outbound queue for the Dispatcher to format.
//
// The stopCh-guarded goroutine loop and mutex-guarded shared state follow
// the shape of cuemby-warren's pkg/worker/worker.go heartbeat/executor
// loops; the pause gate has no direct analogue there and is built fresh to
// satisfy the worker-pool pause/resume contract.
package flusher

import (
	"sync"
	"sync/atomic"

	"github.com/beryldb/beryldb/pkg/log"
	"github.com/beryldb/beryldb/pkg/metrics"
	"github.com/beryldb/beryldb/pkg/protocol"
	"github.com/beryldb/beryldb/pkg/query"
)

// named is satisfied by every concrete query.Query: Base promotes Name,
// Kind, and Settled to every command type that embeds it.
type named interface {
	query.Query
	Name() string
	Settled() bool
}

// Result pairs a delivered Query with the tag its Submit call carried.
// Workers never touch Users directly, so the tag travels as an opaque
// value — normally the originating connection/User — letting the
// Dispatcher route a reply without this package importing pkg/user.
type Result struct {
	Query query.Query
	Tag   any
}

type job struct {
	q   query.Query
	ctx *query.Context
	tag any
}

// Pool is the Flusher's worker pool. Its zero value is not usable; create
// one with New. All workers drain one shared inbound channel, so there is
// no per-user FIFO: two queries submitted in order by the same connection
// may run, and be delivered, in either order.
type Pool struct {
	inbound  chan job
	outbound chan Result

	workers int
	wg      sync.WaitGroup
	stopCh  chan struct{}

	closing atomic.Bool

	pauseMu  sync.Mutex
	paused   bool
	resumeCh chan struct{}
}

// New builds a Pool with the given worker count and inbound/outbound queue
// depth. workers is clamped to at least 1, matching spec's "minimum 1".
func New(workers, queueDepth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Pool{
		inbound:  make(chan job, queueDepth),
		outbound: make(chan Result, queueDepth),
		workers:  workers,
		stopCh:   make(chan struct{}),
		resumeCh: make(chan struct{}),
	}
}

// Start launches the worker goroutines. It runs on the caller's goroutine,
// not a worker's, so it's the one place in this package allowed to log —
// each loop(id) goroutine itself never does, per the worker-never-logs rule.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		log.WithWorkerID(i).Debug().Msg("flusher worker starting")
		p.wg.Add(1)
		go p.loop(i)
	}
}

// Stop signals every worker to exit once its current job (if any) finishes
// picking up no further work, and waits for them to return. In-flight
// Run() calls are not interrupted directly — they observe shutdown through
// CheckIterator via Database.Closing, which the caller must set first.
func (p *Pool) Stop() {
	p.closing.Store(true)
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for {
		if !p.waitUntilResumed() {
			return
		}
		select {
		case <-p.stopCh:
			return
		case j, ok := <-p.inbound:
			if !ok {
				return
			}
			p.run(j)
		}
	}
}

// waitUntilResumed blocks while the pool is paused, returning false if
// shutdown was signalled while waiting.
func (p *Pool) waitUntilResumed() bool {
	for {
		p.pauseMu.Lock()
		paused := p.paused
		gate := p.resumeCh
		p.pauseMu.Unlock()
		if !paused {
			return true
		}
		select {
		case <-gate:
		case <-p.stopCh:
			return false
		}
	}
}

func (p *Pool) run(j job) {
	if db := j.ctx.Database; db != nil {
		done := db.Track()
		defer done()
	}
	timer := metrics.NewTimer()
	j.q.Run(j.ctx)

	if n, ok := j.q.(named); ok {
		timer.ObserveDurationVec(metrics.QueryDuration, n.Name())
		if n.Settled() {
			p.deliver(j.q, j.tag)
		}
	}
}

// deliver is installed (bound to a submission's tag) as that submission's
// Context.Attach callback, and is also how the pool posts a non-streaming
// command's own settled instance. It is the single chokepoint where every
// outbound Query is counted.
func (p *Pool) deliver(q query.Query, tag any) {
	if n, ok := q.(named); ok {
		metrics.QueriesTotal.WithLabelValues(n.Name(), kindString(q)).Inc()
		if part, ok := q.(interface{ Partial() bool }); ok && part.Partial() {
			metrics.IteratorChunksTotal.WithLabelValues(n.Name()).Inc()
		}
	}
	select {
	case p.outbound <- Result{Query: q, Tag: tag}:
	case <-p.stopCh:
	}
}

// kindString reads Base.Kind() through a structural interface and returns
// the metrics-label text ("ok", "not_found", ...).
func kindString(q query.Query) string {
	type kinder interface {
		Kind() protocol.ErrorKind
	}
	if k, ok := q.(kinder); ok {
		return k.Kind().String()
	}
	return "unknown"
}

// Submit enqueues q for execution with ctx, wiring ctx.Attach to the
// pool's outbound queue and, unless the caller already set one,
// ctx.FlusherPaused to the pool's own pause flag. tag travels unexamined
// to every Result this submission produces (the top-level settled
// instance and every streamed chunk) — callers use it to route a reply
// back to the right User without the Flusher importing pkg/user. It
// reports false if the pool is shutting down and the submission was
// dropped.
func (p *Pool) Submit(q query.Query, ctx *query.Context, tag any) bool {
	if p.closing.Load() {
		return false
	}
	ctx.Attach = func(cq query.Query) { p.deliver(cq, tag) }
	if ctx.FlusherPaused == nil {
		ctx.FlusherPaused = p.Paused
	}
	select {
	case p.inbound <- job{q: q, ctx: ctx, tag: tag}:
		return true
	case <-p.stopCh:
		return false
	}
}

// Outbound is the channel the Dispatcher drains completed Results from.
func (p *Pool) Outbound() <-chan Result { return p.outbound }

// Pause blocks workers from picking up new inbound items. In-flight Run()
// calls keep running until they next consult CheckIterator.
func (p *Pool) Pause() {
	p.pauseMu.Lock()
	defer p.pauseMu.Unlock()
	if !p.paused {
		p.paused = true
		p.resumeCh = make(chan struct{})
	}
}

// Resume lifts a prior Pause.
func (p *Pool) Resume() {
	p.pauseMu.Lock()
	defer p.pauseMu.Unlock()
	if p.paused {
		p.paused = false
		close(p.resumeCh)
	}
}

// Paused reports the current pause state; it also backs Context.FlusherPaused
// for Submit calls that don't supply their own.
func (p *Pool) Paused() bool {
	p.pauseMu.Lock()
	defer p.pauseMu.Unlock()
	return p.paused
}

// ResetAll drops every queued inbound and outbound item without running
// or delivering them. It does not touch pending expire or future timers,
// and neither server shutdown nor DBRESET calls it.
func (p *Pool) ResetAll() {
	for {
		select {
		case <-p.inbound:
		default:
			goto drainOutbound
		}
	}
drainOutbound:
	for {
		select {
		case <-p.outbound:
		default:
			return
		}
	}
}

// FlusherQueueDepth satisfies metrics.QueueSource.
func (p *Pool) FlusherQueueDepth() int { return len(p.inbound) }

// FlusherWorkerCount satisfies metrics.QueueSource.
func (p *Pool) FlusherWorkerCount() int { return p.workers }
