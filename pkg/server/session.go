package server

import (
	"bufio"
	"net"
	"strings"
	"time"

	"github.com/beryldb/beryldb/pkg/dispatcher"
	"github.com/beryldb/beryldb/pkg/log"
	"github.com/beryldb/beryldb/pkg/protocol"
	"github.com/beryldb/beryldb/pkg/query"
	"github.com/beryldb/beryldb/pkg/user"
)

// handleConn owns one client connection end to end: build its User, read
// lines off the socket until EOF or a protocol error, and tear it down.
// Only this goroutine (and the Dispatcher, through the User's Writer)
// ever touches the connection.
func (s *Server) handleConn(conn net.Conn) {
	db := s.dbm.Default()
	u := user.New(conn, db)
	s.trackSession(u)
	defer func() {
		u.SetQuitting()
		s.untrackSession(u)
		_ = u.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.handleLine(u, line)
	}
}

func (s *Server) handleLine(u *user.User, line string) {
	command, args := parseLine(line)
	if command == "" {
		return
	}

	s.Broadcast(u.Select(), command, line)

	if sessionCommands[command] {
		s.handleSessionCommand(u, command, args)
		return
	}

	build, ok := builders[command]
	if !ok {
		w := u.Writer()
		_ = w.Frame(protocol.ERR_INPUT, "unknown command "+command)
		_ = w.Flush()
		return
	}

	q, err := build(args)
	if err != nil {
		w := u.Writer()
		_ = w.Frame(protocol.ERR_USE, err.Error())
		_ = w.Flush()
		return
	}

	ctx := &query.Context{
		Database:      u.Database(),
		Select:        u.Select(),
		IterLimit:     s.cfg.IterLimit,
		Expires:       s.expires,
		Futures:       s.futures,
		Now:           time.Now().Unix(),
		UserQuitting:  u.Quitting,
		FlusherPaused: s.pool.Paused,
	}
	if !s.pool.Submit(q, ctx, sessionSink{u}) {
		w := u.Writer()
		_ = w.Frame(protocol.ERR_INPUT, "server shutting down")
		_ = w.Flush()
	}
}

// sessionSink adapts a *user.User to dispatcher.Sink. A dedicated type
// (rather than handing the Dispatcher *user.User directly) keeps pkg/user
// from needing to import pkg/dispatcher just to declare it implements the
// interface.
type sessionSink struct{ u *user.User }

func (s sessionSink) Writer() *protocol.Writer { return s.u.Writer() }

var _ dispatcher.Sink = sessionSink{}

// handleSessionCommand implements USE/USING/CURRENT/MONITOR/MRESET/
// MONITORLIST directly against the User and Server, the session-state
// commands pkg/query/admin.go documents as having no Database-side Run()
// to perform.
func (s *Server) handleSessionCommand(u *user.User, command string, args []string) {
	w := u.Writer()
	switch command {
	case "USE":
		if len(args) != 1 {
			_ = w.Frame(protocol.ERR_USE, "USE wants a database name")
			_ = w.Flush()
			return
		}
		db, err := s.dbm.Load(args[0], false)
		if err != nil {
			_ = w.Frame(protocol.ERR_INPUT, err.Error())
			_ = w.Flush()
			return
		}
		u.SetDatabase(db)
		_ = w.Frame(protocol.BRLD_QUERY_OK, "")
		_ = w.Flush()

	case "USING":
		if len(args) != 1 || !user.ValidSelect(args[0]) {
			_ = w.Frame(protocol.ERR_USE, "USING wants a select id 1-100")
			_ = w.Flush()
			return
		}
		u.SetSelect(args[0])
		_ = w.Frame(protocol.BRLD_QUERY_OK, "")
		_ = w.Flush()

	case "CURRENT":
		name := ""
		if db := u.Database(); db != nil {
			name = db.Name()
		}
		_ = w.Frame(protocol.BRLD_OK, name+" "+u.Select())
		_ = w.Flush()

	case "MONITOR":
		u.SetMonitoring(true)
		s.addMonitor(u)
		_ = w.Frame(protocol.BRLD_QUERY_OK, "")
		_ = w.Flush()

	case "MRESET":
		u.SetMonitoring(false)
		s.removeMonitor(u)
		_ = w.Frame(protocol.BRLD_QUERY_OK, "")
		_ = w.Flush()

	case "MONITORLIST":
		ids := s.monitorList()
		_ = w.StartList()
		for _, id := range ids {
			_ = w.Item(id)
		}
		_ = w.EndList(len(ids))
		_ = w.Flush()

	default:
		log.WithComponent("server").Warn().Str("command", command).Msg("unhandled session command")
		_ = w.Frame(protocol.ERR_INPUT, "unhandled "+command)
		_ = w.Flush()
	}
}
