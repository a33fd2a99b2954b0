package query

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
)

// get is the shared point-read helper behind GET, GETDEL, STRLEN, and
// friends: look up the KEY-tagged physical row for key, short-circuiting
// through the bloom filter the way every other family does.
func get(ctx *Context, key []byte) (string, bool) {
	physKey := keyenc.Encode(key, ctx.Select, keyenc.TagKey)
	value, ok, err := ctx.Database.Get(keyenc.TagKey, physKey)
	if err != nil || !ok {
		return "", false
	}
	return string(value), true
}

func put(ctx *Context, key []byte, value string) error {
	physKey := keyenc.Encode(key, ctx.Select, keyenc.TagKey)
	return ctx.Database.Put(keyenc.TagKey, physKey, []byte(value))
}

func delKey(ctx *Context, key []byte) error {
	physKey := keyenc.Encode(key, ctx.Select, keyenc.TagKey)
	ctx.Expires.Delete(ctx.Database.Name(), key, ctx.Select)
	ctx.Futures.Delete(ctx.Database.Name(), key, ctx.Select)
	return ctx.Database.Delete(keyenc.TagKey, physKey)
}

// Set implements SET: unconditional point write.
type Set struct {
	Base
	Key, Value []byte
}

func NewSet(key, value []byte) *Set { return &Set{Base: Base{Command: "SET"}, Key: key, Value: value} }

func (q *Set) Run(ctx *Context) {
	if err := put(ctx, q.Key, string(q.Value)); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *Set) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// SetNX implements SETNX: write only if key is currently absent.
type SetNX struct {
	Base
	Key, Value []byte
}

func NewSetNX(key, value []byte) *SetNX {
	return &SetNX{Base: Base{Command: "SETNX"}, Key: key, Value: value}
}

func (q *SetNX) Run(ctx *Context) {
	if _, exists := get(ctx, q.Key); exists {
		q.SetError(protocol.KindEntryExists)
		return
	}
	if err := put(ctx, q.Key, string(q.Value)); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *SetNX) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// SetTX implements SETTX: write key=value and schedule its expiration in
// seconds seconds, replacing any prior pending expire.
type SetTX struct {
	Base
	Key, Value []byte
	Seconds    int64
}

func NewSetTX(key, value []byte, seconds int64) *SetTX {
	return &SetTX{Base: Base{Command: "SETTX"}, Key: key, Value: value, Seconds: seconds}
}

func (q *SetTX) Run(ctx *Context) {
	if err := put(ctx, q.Key, string(q.Value)); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	ctx.Expires.Add(ctx.Database.Name(), q.Seconds, q.Key, ctx.Select, false, ctx.Now)
	q.SetOK()
}

func (q *SetTX) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// Get implements GET.
type Get struct {
	Base
	Key   []byte
	value string
}

func NewGet(key []byte) *Get { return &Get{Base: Base{Command: "GET"}, Key: key} }

func (q *Get) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.value = v
	q.SetOK()
}

func (q *Get) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// GetSet implements GETSET: atomically write value, returning the prior
// one (or NOT_FOUND if there wasn't one).
type GetSet struct {
	Base
	Key, Value []byte
	old        string
}

func NewGetSet(key, value []byte) *GetSet {
	return &GetSet{Base: Base{Command: "GETSET"}, Key: key, Value: value}
}

func (q *GetSet) Run(ctx *Context) {
	old, existed := get(ctx, q.Key)
	if err := put(ctx, q.Key, string(q.Value)); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	if !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.old = old
	q.SetOK()
}

func (q *GetSet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.old)
}

// GetDel implements GETDEL: read then delete in one step.
type GetDel struct {
	Base
	Key   []byte
	value string
}

func NewGetDel(key []byte) *GetDel { return &GetDel{Base: Base{Command: "GETDEL"}, Key: key} }

func (q *GetDel) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	if err := delKey(ctx, q.Key); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.value = v
	q.SetOK()
}

func (q *GetDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// Del implements DEL: idempotent point delete.
type Del struct {
	Base
	Key []byte
}

func NewDel(key []byte) *Del { return &Del{Base: Base{Command: "DEL"}, Key: key} }

func (q *Del) Run(ctx *Context) {
	if err := delKey(ctx, q.Key); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *Del) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// StrLen implements STRLEN.
type StrLen struct {
	Base
	Key []byte
	n   int
}

func NewStrLen(key []byte) *StrLen { return &StrLen{Base: Base{Command: "STRLEN"}, Key: key} }

func (q *StrLen) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.n = len(v)
	q.SetOK()
}

func (q *StrLen) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// Append implements APPEND: concatenate value onto an existing key, or
// create it if absent, returning the resulting length.
type Append struct {
	Base
	Key, Value []byte
	length     int
}

func NewAppend(key, value []byte) *Append {
	return &Append{Base: Base{Command: "APPEND"}, Key: key, Value: value}
}

func (q *Append) Run(ctx *Context) {
	old, _ := get(ctx, q.Key)
	combined := old + string(q.Value)
	if err := put(ctx, q.Key, combined); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.length = len(combined)
	q.SetOK()
}

func (q *Append) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.length))
}

// GetSubstr implements GETSUBSTR: a [start,end] (inclusive, 0-based,
// clamped) slice of a key's value.
type GetSubstr struct {
	Base
	Key        []byte
	Start, End int
	result     string
}

func NewGetSubstr(key []byte, start, end int) *GetSubstr {
	return &GetSubstr{Base: Base{Command: "GETSUBSTR"}, Key: key, Start: start, End: end}
}

func (q *GetSubstr) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	start, end := q.Start, q.End
	if start < 0 {
		start = 0
	}
	if end >= len(v) {
		end = len(v) - 1
	}
	if start > end || len(v) == 0 {
		q.result = ""
	} else {
		q.result = v[start : end+1]
	}
	q.SetOK()
}

func (q *GetSubstr) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.result)
}

// RKey implements RKEY: rename key to newKey, failing with NOT_FOUND if
// key is absent and ENTRY_EXISTS if newKey is already taken.
type RKey struct {
	Base
	Key, NewKey []byte
}

func NewRKey(key, newKey []byte) *RKey {
	return &RKey{Base: Base{Command: "RKEY"}, Key: key, NewKey: newKey}
}

func (q *RKey) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	if _, exists := get(ctx, q.NewKey); exists {
		q.SetError(protocol.KindEntryExists)
		return
	}
	if err := put(ctx, q.NewKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	if err := delKey(ctx, q.Key); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *RKey) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// Touch implements TOUCH: reports existence without returning the value.
type Touch struct {
	Base
	Key []byte
}

func NewTouch(key []byte) *Touch { return &Touch{Base: Base{Command: "TOUCH"}, Key: key} }

func (q *Touch) Run(ctx *Context) {
	if _, ok := get(ctx, q.Key); !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.SetOK()
}

func (q *Touch) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, "1")
}

// GetOccurs implements GETOCCURS: counts non-overlapping occurrences of
// substr within key's value.
type GetOccurs struct {
	Base
	Key, Substr []byte
	n           int
}

func NewGetOccurs(key, substr []byte) *GetOccurs {
	return &GetOccurs{Base: Base{Command: "GETOCCURS"}, Key: key, Substr: substr}
}

func (q *GetOccurs) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.n = strings.Count(v, string(q.Substr))
	q.SetOK()
}

func (q *GetOccurs) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// IsAlpha implements ISALPHA: reports whether a key's value is entirely
// alphabetic.
type IsAlpha struct {
	Base
	Key    []byte
	result bool
}

func NewIsAlpha(key []byte) *IsAlpha { return &IsAlpha{Base: Base{Command: "ISALPHA"}, Key: key} }

func (q *IsAlpha) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.result = v != "" && everyRune(v, unicode.IsLetter)
	q.SetOK()
}

func (q *IsAlpha) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, boolPayload(q.result))
}

// IsNum implements ISNUM: reports whether a key's value is entirely
// digits.
type IsNum struct {
	Base
	Key    []byte
	result bool
}

func NewIsNum(key []byte) *IsNum { return &IsNum{Base: Base{Command: "ISNUM"}, Key: key} }

func (q *IsNum) Run(ctx *Context) {
	v, ok := get(ctx, q.Key)
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.result = v != "" && everyRune(v, unicode.IsDigit)
	q.SetOK()
}

func (q *IsNum) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, boolPayload(q.result))
}

// GetExp implements GETEXP: returns a key's absolute expire time, or -1.
type GetExp struct {
	Base
	Key []byte
	at  int64
}

func NewGetExp(key []byte) *GetExp { return &GetExp{Base: Base{Command: "GETEXP"}, Key: key} }

func (q *GetExp) Run(ctx *Context) {
	if _, ok := get(ctx, q.Key); !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.at = ctx.Expires.TriggerTime(ctx.Database.Name(), q.Key, ctx.Select)
	q.SetOK()
}

func (q *GetExp) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.FormatInt(q.at, 10))
}

// GetPersist implements GETPERSIST: cancels any pending expire on key,
// reporting whether one existed.
type GetPersist struct {
	Base
	Key      []byte
	cancelled bool
}

func NewGetPersist(key []byte) *GetPersist {
	return &GetPersist{Base: Base{Command: "GETPERSIST"}, Key: key}
}

func (q *GetPersist) Run(ctx *Context) {
	if _, ok := get(ctx, q.Key); !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.cancelled = ctx.Expires.Delete(ctx.Database.Name(), q.Key, ctx.Select)
	q.SetOK()
}

func (q *GetPersist) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, boolPayload(q.cancelled))
}

// Keys implements KEYS: a streaming glob scan over the KEY tag, emitting
// matching user-keys.
type Keys struct {
	Base
	Pattern        string
	Offset, Limit  int
	items          []string
}

func NewKeys(pattern string, offset, limit int) *Keys {
	return &Keys{Base: Base{Command: "KEYS"}, Pattern: pattern, Offset: offset, Limit: limit}
}

func (q *Keys) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &Keys{Base: Base{Command: q.Command}, Pattern: q.Pattern, items: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *Keys) Run(ctx *Context) {
	st := &iterState{}
	scanTag(ctx, keyenc.TagKey, q.Pattern, func(d keyenc.Decoded, _ []byte) (string, bool) {
		return string(d.UserKey), true
	}, st, q.Offset, q.Limit, q.newPartial)
}

func (q *Keys) Process(w *protocol.Writer) error {
	return processIterator(w, q.items, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// Count implements COUNT: total number of KEY-tagged rows in the current
// select, a non-streaming aggregate.
type Count struct {
	Base
	n int
}

func NewCount() *Count { return &Count{Base: Base{Command: "COUNT"}} }

func (q *Count) Run(ctx *Context) {
	n := 0
	ctx.Database.Scan(keyenc.TagKey, func(physKey, _ []byte) bool {
		d, err := keyenc.Decode(physKey)
		if err == nil && d.Select == ctx.Select {
			n++
		}
		return true
	})
	q.n = n
	q.SetOK()
}

func (q *Count) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// Search implements SEARCH: an alias over Keys kept distinct because the
// wire command differs, mirroring how the teacher's command table maps
// multiple names onto closely related behavior.
type Search = Keys

// NewSearch builds a SEARCH query: identical semantics to KEYS.
func NewSearch(pattern string, offset, limit int) *Search {
	return &Search{Base: Base{Command: "SEARCH"}, Pattern: pattern, Offset: offset, Limit: limit}
}

// WDel implements WDEL: delete every KEY-tagged row matching pattern,
// returning the number removed.
type WDel struct {
	Base
	Pattern string
	n       int
}

func NewWDel(pattern string) *WDel { return &WDel{Base: Base{Command: "WDEL"}, Pattern: pattern} }

func (q *WDel) Run(ctx *Context) {
	var victims [][]byte
	ctx.Database.Scan(keyenc.TagKey, func(physKey, _ []byte) bool {
		if !CheckIterator(ctx) {
			return false
		}
		d, err := keyenc.Decode(physKey)
		if err != nil || d.Select != ctx.Select {
			return true
		}
		if keyenc.Match(q.Pattern, d.UserKey) {
			victims = append(victims, append([]byte(nil), d.UserKey...))
		}
		return true
	})
	for _, k := range victims {
		if delKey(ctx, k) == nil {
			q.n++
		}
	}
	q.SetOK()
}

func (q *WDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

func everyRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}

func boolPayload(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// processIterator writes the shared START_LIST/ITEM.../END_LIST framing
// every streaming command's Process uses: a partial chunk emits its items
// as ITEM frames; the final chunk additionally closes with END_LIST. ok and
// kind are the chunk's own Base.OK()/Base.Kind(): a chunk that came back
// interrupted (cancelled mid-scan) writes an error frame instead of closing
// the stream with END_LIST, leaving the client with a truncated stream.
// START_LIST is emitted by the Dispatcher once per command, on the first
// subresult it sees — handled in pkg/dispatcher, not here, since Base
// alone can't tell "first" from "only" without the Dispatcher's
// per-command state.
func processIterator(w *protocol.Writer, items []string, partial bool, counter int, ok bool, kind protocol.ErrorKind) error {
	if !ok {
		return w.Frame(kind.Code(), "")
	}
	for _, it := range items {
		if err := w.Item(it); err != nil {
			return err
		}
	}
	if !partial {
		return w.EndList(counter)
	}
	return nil
}
