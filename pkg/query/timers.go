package query

import (
	"strconv"

	"github.com/beryldb/beryldb/pkg/protocol"
)

// Expire implements EXPIRE: schedule key's deletion seconds from now,
// replacing any prior pending expire.
type Expire struct {
	Base
	Key     []byte
	Seconds int64
}

func NewExpire(key []byte, seconds int64) *Expire {
	return &Expire{Base: Base{Command: "EXPIRE"}, Key: key, Seconds: seconds}
}

func (q *Expire) Run(ctx *Context) {
	if _, ok := get(ctx, q.Key); !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	ctx.Expires.Add(ctx.Database.Name(), q.Seconds, q.Key, ctx.Select, false, ctx.Now)
	q.SetOK()
}

func (q *Expire) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// Future implements FUTURE: schedule key=value to be written seconds from
// now, grounded on CommandFuture::Handle
// (original_source/src/coremods/core_futures/cmd_future.cpp).
type Future struct {
	Base
	Key, Value []byte
	Seconds    int64
}

func NewFuture(key, value []byte, seconds int64) *Future {
	return &Future{Base: Base{Command: "FUTURE"}, Key: key, Value: value, Seconds: seconds}
}

func (q *Future) Run(ctx *Context) {
	ctx.Futures.Add(ctx.Database.Name(), q.Seconds, q.Key, q.Value, ctx.Select, false, ctx.Now)
	q.SetOK()
}

func (q *Future) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// FutSet implements FUTSET: schedule key=value at an absolute epoch time,
// rejecting times in the past, mirroring CommandFutureAT::Handle's
// "exp_usig < Kernel->Now()" guard.
type FutSet struct {
	Base
	Key, Value []byte
	Epoch      int64
}

func NewFutSet(key, value []byte, epoch int64) *FutSet {
	return &FutSet{Base: Base{Command: "FUTSET"}, Key: key, Value: value, Epoch: epoch}
}

func (q *FutSet) Run(ctx *Context) {
	if q.Epoch < ctx.Now {
		q.SetError(protocol.KindInvalidRange)
		return
	}
	ctx.Futures.Add(ctx.Database.Name(), q.Epoch, q.Key, q.Value, ctx.Select, true, ctx.Now)
	q.SetOK()
}

func (q *FutSet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// Cancel implements CANCEL: cancels a pending future for key, reporting
// NOT_FOUND if none was pending, grounded on GlobalHelper::FutureCancel.
type Cancel struct {
	Base
	Key []byte
}

func NewCancel(key []byte) *Cancel { return &Cancel{Base: Base{Command: "CANCEL"}, Key: key} }

func (q *Cancel) Run(ctx *Context) {
	if !ctx.Futures.Delete(ctx.Database.Name(), q.Key, ctx.Select) {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.SetOK()
}

func (q *Cancel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// Exec implements EXEC: forces a pending future to write immediately,
// bypassing its schedule, grounded on GlobalHelper::UserFutureExecute.
type Exec struct {
	Base
	Key []byte
}

func NewExec(key []byte) *Exec { return &Exec{Base: Base{Command: "EXEC"}, Key: key} }

func (q *Exec) Run(ctx *Context) {
	var value []byte
	found := false
	for _, rec := range ctx.Futures.Snapshot() {
		if rec.Database == ctx.Database.Name() && rec.Select == ctx.Select && string(rec.Key) == string(q.Key) {
			value = rec.Payload
			found = true
			break
		}
	}
	if !found {
		q.SetError(protocol.KindNotFound)
		return
	}
	if err := put(ctx, q.Key, string(value)); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	ctx.Futures.Delete(ctx.Database.Name(), q.Key, ctx.Select)
	q.SetOK()
}

func (q *Exec) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// TTE implements TTE: seconds remaining until a pending future for key
// fires, grounded on CommandTTE::Handle's FutureManager::GetTIME lookup.
type TTE struct {
	Base
	Key       []byte
	remaining int64
}

func NewTTE(key []byte) *TTE { return &TTE{Base: Base{Command: "TTE"}, Key: key} }

func (q *TTE) Run(ctx *Context) {
	at := ctx.Futures.TriggerTime(ctx.Database.Name(), q.Key, ctx.Select)
	if at == -1 {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.remaining = at - ctx.Now
	q.SetOK()
}

func (q *TTE) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.FormatInt(q.remaining, 10))
}

// FReset implements FRESET: wipes every pending future in one select
// (the caller's current select if none is given).
type FReset struct {
	Base
	Select string
}

func NewFReset(selectID string) *FReset {
	return &FReset{Base: Base{Command: "FRESET"}, Select: selectID}
}

func (q *FReset) Run(ctx *Context) {
	selectID := q.Select
	if selectID == "" {
		selectID = ctx.Select
	}
	ctx.Futures.SReset(ctx.Database.Name(), selectID)
	q.SetOK()
}

func (q *FReset) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, "")
}

// FResetAll implements FRESETALL: wipes every pending future in the
// database.
type FResetAll struct{ Base }

func NewFResetAll() *FResetAll { return &FResetAll{Base: Base{Command: "FRESETALL"}} }

func (q *FResetAll) Run(ctx *Context) {
	ctx.Futures.ResetDatabase(ctx.Database.Name())
	q.SetOK()
}

func (q *FResetAll) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, "")
}

// timerRow is one line of a FTLIST/FTSELECT listing: "<key> <schedule>
// <select> <id>", mirroring the columns cmd_future.cpp's Daemon::Format
// calls build before Dispatcher::ListDepend writes them, plus the
// generated record id a real client can use to tell two futures on the
// same key apart across a replace.
func timerRow(key []byte, schedule int64, selectID, id string) string {
	return string(key) + " " + strconv.FormatInt(schedule, 10) + " " + selectID + " " + id
}

// FTList implements FTLIST: streams every pending future in the
// database, across every select.
type FTList struct {
	Base
	rows []string
}

func NewFTList() *FTList { return &FTList{Base: Base{Command: "FTLIST"}} }

func (q *FTList) Run(ctx *Context) {
	for _, rec := range ctx.Futures.Snapshot() {
		if rec.Database != ctx.Database.Name() {
			continue
		}
		q.rows = append(q.rows, timerRow(rec.Key, rec.Schedule, rec.Select, rec.ID))
	}
	q.SetOK()
}

func (q *FTList) Process(w *protocol.Writer) error {
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

// FTSelect implements FTSELECT: streams every pending future in one
// select (the caller's current select if none is given).
type FTSelect struct {
	Base
	Select string
	rows   []string
}

func NewFTSelect(selectID string) *FTSelect {
	return &FTSelect{Base: Base{Command: "FTSELECT"}, Select: selectID}
}

func (q *FTSelect) Run(ctx *Context) {
	selectID := q.Select
	if selectID == "" {
		selectID = ctx.Select
	}
	for _, rec := range ctx.Futures.Snapshot() {
		if rec.Database != ctx.Database.Name() || rec.Select != selectID {
			continue
		}
		q.rows = append(q.rows, timerRow(rec.Key, rec.Schedule, rec.Select, rec.ID))
	}
	q.SetOK()
}

func (q *FTSelect) Process(w *protocol.Writer) error {
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
