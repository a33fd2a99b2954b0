// Package user implements the minimal User collaborator the core consumes
// as an external dependency: a current database reference, a current
// select id, and a send sink, per spec.md §1's "consumes from them only: a
// User handle with a current database reference, current select id
// (string "1".."100"), and a send(numeric, payload) sink". Everything a
// real client connection needs beyond that — socket framing, auth, command
// parsing — lives in pkg/server, which is the thing that actually
// constructs a User.
package user

import (
	"bufio"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/beryldb/beryldb/pkg/protocol"
	"github.com/beryldb/beryldb/pkg/storage"
)

// MinSelect and MaxSelect bound the fixed number of logical namespaces a
// connection may choose between, spec.md §1's "select one of a fixed
// number of logical namespaces ('selects')".
const (
	MinSelect = 1
	MaxSelect = 100
)

// ValidSelect reports whether id names a select within [MinSelect,
// MaxSelect]. USING rejects anything else before touching a User.
func ValidSelect(id string) bool {
	n := 0
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
		if n > MaxSelect {
			return false
		}
	}
	return n >= MinSelect && n <= MaxSelect
}

// User is one connected client's session state: pkg/server wraps it as the
// Tag every flusher.Result for this connection carries. Its zero value is
// not usable; build one with New.
type User struct {
	id   string
	conn net.Conn
	w    *protocol.Writer

	database atomic.Pointer[storage.Database]
	selectID atomic.Pointer[string]

	quitting atomic.Bool
	monitor  atomic.Bool
}

// New wraps conn, defaulting the select id to "1" as a freshly accepted
// connection has issued no USE/USING yet.
func New(conn net.Conn, db *storage.Database) *User {
	u := &User{
		id:   uuid.NewString(),
		conn: conn,
		w:    protocol.NewWriter(bufio.NewWriter(conn)),
	}
	u.database.Store(db)
	one := "1"
	u.selectID.Store(&one)
	return u
}

// ID returns the connection's identifier, surfaced by MONITORLIST so an
// operator can tell sessions apart.
func (u *User) ID() string { return u.id }

// Writer satisfies dispatcher.Sink: it is how the Dispatcher reaches this
// connection's send buffer without importing pkg/user.
func (u *User) Writer() *protocol.Writer { return u.w }

// Database returns the database this connection currently operates
// against.
func (u *User) Database() *storage.Database { return u.database.Load() }

// SetDatabase changes the database USE selects.
func (u *User) SetDatabase(db *storage.Database) { u.database.Store(db) }

// Select returns the current select id.
func (u *User) Select() string {
	if s := u.selectID.Load(); s != nil {
		return *s
	}
	return "1"
}

// SetSelect changes the current select id. Callers must validate with
// ValidSelect first; SetSelect itself performs no validation so it can
// also be used to restore a known-good value.
func (u *User) SetSelect(id string) { u.selectID.Store(&id) }

// Quitting reports whether this connection is shutting down. It backs
// query.Context.UserQuitting so a worker mid-iteration notices a departed
// client and stops scanning early.
func (u *User) Quitting() bool { return u.quitting.Load() }

// SetQuitting marks the connection as closing. It is idempotent and safe
// to call from any goroutine; pkg/server calls it when a connection's read
// loop ends.
func (u *User) SetQuitting() { u.quitting.Store(true) }

// Monitoring reports whether this connection subscribed via MONITOR.
func (u *User) Monitoring() bool { return u.monitor.Load() }

// SetMonitoring toggles the MONITOR subscription; MRESET turns it back
// off.
func (u *User) SetMonitoring(on bool) { u.monitor.Store(on) }

// Close flushes any buffered reply bytes and closes the underlying
// connection. It does not mark the user quitting; callers needing
// in-flight workers to notice should call SetQuitting first.
func (u *User) Close() error {
	_ = u.w.Flush()
	return u.conn.Close()
}
