// Package server wires the Query/Flusher/Dispatcher core to a real TCP
// listener: the "deliberately OUT of scope, treated as external
// collaborators" layer spec.md §1 names (the acceptor, per-client socket
// framing, command parsing, auth/ACL, config loading, logging sinks). Its
// event loop is the thin glue a real client needs that the core itself
// never touches.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beryldb/beryldb/pkg/config"
	"github.com/beryldb/beryldb/pkg/dbmanager"
	"github.com/beryldb/beryldb/pkg/dispatcher"
	"github.com/beryldb/beryldb/pkg/expire"
	"github.com/beryldb/beryldb/pkg/flusher"
	"github.com/beryldb/beryldb/pkg/future"
	"github.com/beryldb/beryldb/pkg/log"
	"github.com/beryldb/beryldb/pkg/metrics"
	"github.com/beryldb/beryldb/pkg/query"
	"github.com/beryldb/beryldb/pkg/user"
)

// queueSource composes the Flusher and Dispatcher into the single
// interface metrics.Collector wants, since neither package alone reports
// both halves of spec.md §4's queue depths.
type queueSource struct {
	pool *flusher.Pool
	disp *dispatcher.Dispatcher
}

func (q queueSource) FlusherQueueDepth() int    { return q.pool.FlusherQueueDepth() }
func (q queueSource) FlusherWorkerCount() int   { return q.pool.FlusherWorkerCount() }
func (q queueSource) DispatcherQueueDepth() int { return q.disp.QueueDepth() }

// timerSource composes the Expire and Future indexes into
// metrics.TimerSource.
type timerSource struct {
	expires *expire.Index
	futures *future.Index
}

func (t timerSource) ExpirePending() int { return t.expires.ExpirePending() }
func (t timerSource) FuturePending() int { return t.futures.FuturePending() }

// Server owns every long-lived collaborator a running beryldb process
// needs: the worker pool, the dispatcher, the database registry, the
// timer schedules, the TCP listener, and the metrics/health sidecar.
type Server struct {
	cfg *config.Config

	dbm     *dbmanager.Manager
	pool    *flusher.Pool
	disp    *dispatcher.Dispatcher
	expires *expire.Index
	futures *future.Index
	collector *metrics.Collector

	listener net.Listener
	metricsSrv *http.Server

	monitorsMu sync.Mutex
	monitors   map[*user.User]bool

	sessionsMu sync.Mutex
	sessions   map[*user.User]bool
}

// New builds a Server from cfg without starting anything; call Run to
// accept connections.
func New(cfg *config.Config) (*Server, error) {
	dbm, err := dbmanager.LoadFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: loading databases: %w", err)
	}

	pool := flusher.New(cfg.Workers, cfg.Workers*4)
	disp := dispatcher.New(pool.Outbound())
	expires := expire.New()
	futures := future.New()

	s := &Server{
		cfg:      cfg,
		dbm:      dbm,
		pool:     pool,
		disp:     disp,
		expires:  expires,
		futures:  futures,
		monitors: make(map[*user.User]bool),
		sessions: make(map[*user.User]bool),
	}
	s.collector = metrics.NewCollector(dbm, queueSource{pool: pool, disp: disp}, timerSource{expires: expires, futures: futures})
	return s, nil
}

// FlushAll wipes every open database's contents and clears the timer
// indexes, the startup-time effect of the CLI's --flushdb flag. It runs
// DBRESET's own Run logic directly against each database rather than
// going through the Flusher, since it must complete before the pool (and
// any client) exists.
func (s *Server) FlushAll() error {
	for _, name := range s.dbm.DatabaseNames() {
		db := s.dbm.Find(name)
		if db == nil {
			continue
		}
		reset := query.NewDBReset()
		reset.Run(&query.Context{Database: db, Expires: s.expires, Futures: s.futures})
	}
	return nil
}

// Listen binds the client TCP socket without starting any other
// subsystem, so a caller (tests, or Run itself) can learn the actual
// address before the accept loop starts — useful when cfg.Listen asks for
// an ephemeral port.
func (s *Server) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", s.cfg.Listen, err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Run starts every subsystem and blocks until ctx is cancelled. Cancelling
// ctx closes the listener, which ends the accept loop; shutdown then stops
// the worker pool, the metrics sidecar, and every open database
// concurrently through an errgroup rather than a hand-rolled WaitGroup, the
// way the teacher's worker pool shuts down several executors concurrently.
// Closing a database waits for the workers still running queries on it.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	listener := s.listener
	log.WithComponent("server").Info().Str("addr", listener.Addr().String()).Msg("accepting connections")

	s.pool.Start()
	s.collector.Start()
	metrics.RegisterComponent("storage", true, true, "")
	metrics.RegisterComponent("flusher", true, true, "")
	metrics.RegisterComponent("server", true, true, "listening")

	go s.disp.Run()
	go s.sweepLoop(ctx)

	if s.cfg.MetricsListen != "" {
		s.metricsSrv = s.newMetricsServer()
		go func() {
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("server").Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	acceptErr := s.acceptLoop(listener)

	return s.shutdown(acceptErr)
}

func (s *Server) newMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	return &http.Server{Addr: s.cfg.MetricsListen, Handler: mux}
}

func (s *Server) acceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return err
		}
		metrics.ConnectionsTotal.Inc()
		go s.handleConn(conn)
	}
}

// sweepLoop is the event loop's timer half: once per SweepInterval it
// flushes due expirations and futures, synthesizing a point Query for
// each fired entry and submitting it to the Flusher against the database
// the timer was actually scheduled on, since timers carry no connection to
// route a reply to.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now.Unix())
		}
	}
}

func (s *Server) sweep(now int64) {
	fired := s.expires.Flush(now, func(database, selectID string, key []byte) {
		db := s.dbm.Find(database)
		if db == nil {
			log.WithDatabase(database).Warn().Msg("expire fired for a database that is no longer open")
			return
		}
		qctx := &query.Context{Database: db, Select: selectID, Now: now, Expires: s.expires, Futures: s.futures}
		s.pool.Submit(query.NewDel(key), qctx, nil)
	})
	if fired > 0 {
		metrics.ExpiresFiredTotal.Add(float64(fired))
	}

	firedFutures := s.futures.Flush(now, func(database, selectID string, key, value []byte) {
		db := s.dbm.Find(database)
		if db == nil {
			log.WithDatabase(database).Warn().Msg("future fired for a database that is no longer open")
			return
		}
		qctx := &query.Context{Database: db, Select: selectID, Now: now, Expires: s.expires, Futures: s.futures}
		s.pool.Submit(query.NewSet(key, value), qctx, nil)
	})
	if firedFutures > 0 {
		metrics.FuturesFiredTotal.Add(float64(firedFutures))
	}
}

// shutdown stops the worker pool and closes the metrics sidecar and every
// open database concurrently via an errgroup (the listener is already
// closed by then). It returns the first error encountered, or acceptErr if
// there was none.
func (s *Server) shutdown(acceptErr error) error {
	log.WithComponent("server").Info().Msg("shutting down")

	var eg errgroup.Group
	eg.Go(func() error {
		s.pool.Stop()
		return nil
	})
	if s.metricsSrv != nil {
		eg.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.metricsSrv.Shutdown(ctx)
		})
	}
	eg.Go(func() error {
		for _, name := range s.dbm.DatabaseNames() {
			if err := s.dbm.Delete(name); err != nil {
				return err
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	return acceptErr
}

// Broadcast notifies every MONITOR subscriber of one dispatched command
// line, the feed MONITOR exists to provide.
func (s *Server) Broadcast(selectID, command, raw string) {
	s.monitorsMu.Lock()
	defer s.monitorsMu.Unlock()
	if len(s.monitors) == 0 {
		return
	}
	line := fmt.Sprintf("[%s] %s", selectID, raw)
	for u := range s.monitors {
		w := u.Writer()
		_ = w.Item(line)
		_ = w.Flush()
	}
}

func (s *Server) addMonitor(u *user.User)    { s.monitorsMu.Lock(); s.monitors[u] = true; s.monitorsMu.Unlock() }
func (s *Server) removeMonitor(u *user.User) { s.monitorsMu.Lock(); delete(s.monitors, u); s.monitorsMu.Unlock() }

// monitorList returns the connection ids currently subscribed to MONITOR,
// the payload of MONITORLIST.
func (s *Server) monitorList() []string {
	s.monitorsMu.Lock()
	defer s.monitorsMu.Unlock()
	ids := make([]string, 0, len(s.monitors))
	for u := range s.monitors {
		ids = append(ids, u.ID())
	}
	return ids
}

func (s *Server) trackSession(u *user.User) {
	s.sessionsMu.Lock()
	s.sessions[u] = true
	s.sessionsMu.Unlock()
}

func (s *Server) untrackSession(u *user.User) {
	s.sessionsMu.Lock()
	delete(s.sessions, u)
	s.sessionsMu.Unlock()
	s.removeMonitor(u)
}
