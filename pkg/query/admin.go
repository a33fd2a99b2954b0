// Admin commands split across two homes, following how the command table
// in spec.md §6 groups them: DBSIZE, DBRESET, and PWD touch a Database and
// are modeled here as ordinary Query objects. USE, USING, CURRENT, MONITOR,
// MRESET, and MONITORLIST mutate connection/session state (the current
// database selection, a monitor subscription) that belongs to pkg/user and
// pkg/server, not to a Query — there is no Database-side Run() for them to
// perform. MODULES and COREMODULES don't touch storage either, but they
// have no session state to mutate, so they're modeled here as Queries that
// always succeed against a static command inventory.
package query

import (
	"strconv"

	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
)

// DBSize implements DBSIZE: total physical key count across every tag in
// the current database.
type DBSize struct {
	Base
	n int
}

func NewDBSize() *DBSize { return &DBSize{Base: Base{Command: "DBSIZE"}} }

func (q *DBSize) Run(ctx *Context) {
	n, err := ctx.Database.KeyCount()
	if err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.n = n
	q.SetOK()
}

func (q *DBSize) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// PWD implements PWD: the current database's on-disk path.
type PWD struct {
	Base
	path string
}

func NewPWD() *PWD { return &PWD{Base: Base{Command: "PWD"}} }

func (q *PWD) Run(ctx *Context) {
	q.path = ctx.Database.Path()
	q.SetOK()
}

func (q *PWD) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.path)
}

// allTags lists every type-tag this package knows how to wipe for DBRESET,
// mirroring pkg/storage's own bucket set.
var allTags = []keyenc.Tag{
	keyenc.TagKey,
	keyenc.TagMap,
	keyenc.TagVector,
	keyenc.TagMMap,
	keyenc.TagGeo,
	keyenc.TagList,
}

// DBReset implements DBRESET: wipes every physical key across every
// select in the current database and clears its pending expires and
// futures, the "flushdb" operation referenced by the CLI's --flushdb flag
// (SPEC_FULL.md's ambient CLI section).
type DBReset struct {
	Base
	n int
}

func NewDBReset() *DBReset { return &DBReset{Base: Base{Command: "DBRESET"}} }

func (q *DBReset) Run(ctx *Context) {
	for _, tag := range allTags {
		var victims [][]byte
		ctx.Database.Scan(tag, func(physKey, _ []byte) bool {
			if !CheckIterator(ctx) {
				return false
			}
			victims = append(victims, append([]byte(nil), physKey...))
			return true
		})
		for _, k := range victims {
			if ctx.Database.Delete(tag, k) == nil {
				q.n++
			}
		}
	}
	ctx.Expires.ResetDatabase(ctx.Database.Name())
	ctx.Futures.ResetDatabase(ctx.Database.Name())
	q.SetOK()
}

func (q *DBReset) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// ModuleInfo names one compiled-in command family, the unit MODULES and
// COREMODULES list.
type ModuleInfo struct {
	Name    string
	Core    bool
	Summary string
}

// CoreModuleInventory enumerates the command families this port compiles
// in; unlike the teacher's dynamically-loaded modules, every family here
// is always present, so MODULES and COREMODULES return the same static
// list filtered by the Core flag.
var CoreModuleInventory = []ModuleInfo{
	{Name: "keys", Core: true, Summary: "plain key commands (SET/GET/DEL/...)"},
	{Name: "maps", Core: true, Summary: "string-to-string map commands (HSET/HGET/...)"},
	{Name: "multimaps", Core: true, Summary: "duplicate-field map commands (MSET/MGET/...)"},
	{Name: "vectors", Core: true, Summary: "ordered sequence commands (VPUSH/VGET/...)"},
	{Name: "geo", Core: true, Summary: "named-point commands (GEOADD/GFIND/...)"},
	{Name: "futures", Core: true, Summary: "scheduled expiration and insertion commands"},
	{Name: "admin", Core: true, Summary: "database and session administration commands"},
}

// Modules implements MODULES: lists every command family.
type Modules struct {
	Base
	rows []string
}

func NewModules() *Modules { return &Modules{Base: Base{Command: "MODULES"}} }

func (q *Modules) Run(ctx *Context) {
	for _, m := range CoreModuleInventory {
		q.rows = append(q.rows, m.Name+" "+m.Summary)
	}
	q.SetOK()
}

func (q *Modules) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	if err := w.StartList(); err != nil {
		return err
	}
	for _, row := range q.rows {
		if err := w.Item(row); err != nil {
			return err
		}
	}
	return w.EndList(len(q.rows))
}

// CoreModules implements COREMODULES: lists only the families flagged
// Core (every family, in this port — there is no optional module set).
type CoreModules struct {
	Base
	rows []string
}

func NewCoreModules() *CoreModules { return &CoreModules{Base: Base{Command: "COREMODULES"}} }

func (q *CoreModules) Run(ctx *Context) {
	for _, m := range CoreModuleInventory {
		if m.Core {
			q.rows = append(q.rows, m.Name+" "+m.Summary)
		}
	}
	q.SetOK()
}

func (q *CoreModules) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	if err := w.StartList(); err != nil {
		return err
	}
	for _, row := range q.rows {
		if err := w.Item(row); err != nil {
			return err
		}
	}
	return w.EndList(len(q.rows))
}
