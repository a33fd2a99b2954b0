package query

import (
	"strconv"

	"github.com/beryldb/beryldb/pkg/codec"
	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
)

// loadMap decodes the MapHandler stored at key, or an empty one if absent.
func loadMap(ctx *Context, key []byte) (*codec.MapHandler, []byte, bool, error) {
	physKey := keyenc.Encode(key, ctx.Select, keyenc.TagMap)
	raw, ok, err := ctx.Database.Get(keyenc.TagMap, physKey)
	if err != nil {
		return nil, physKey, false, err
	}
	if !ok {
		return codec.NewMap(), physKey, false, nil
	}
	m, err := codec.DecodeMap(raw)
	if err != nil {
		return nil, physKey, false, err
	}
	return m, physKey, true, nil
}

// storeMap writes m back, or deletes the physical row entirely when m has
// gone empty, per the empty-collection-collapse rule.
func storeMap(ctx *Context, physKey []byte, m *codec.MapHandler) error {
	if m.Count() == 0 {
		return ctx.Database.Delete(keyenc.TagMap, physKey)
	}
	return ctx.Database.Put(keyenc.TagMap, physKey, m.Encode())
}

// HSet implements HSET: upsert field=value in key's map.
type HSet struct {
	Base
	Key, Field, Value []byte
}

func NewHSet(key, field, value []byte) *HSet {
	return &HSet{Base: Base{Command: "HSET"}, Key: key, Field: field, Value: value}
}

func (q *HSet) Run(ctx *Context) {
	m, physKey, _, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	m.Add(string(q.Field), string(q.Value))
	if err := storeMap(ctx, physKey, m); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *HSet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// HSetNX implements HSETNX: upsert only if field is currently absent.
type HSetNX struct {
	Base
	Key, Field, Value []byte
}

func NewHSetNX(key, field, value []byte) *HSetNX {
	return &HSetNX{Base: Base{Command: "HSETNX"}, Key: key, Field: field, Value: value}
}

func (q *HSetNX) Run(ctx *Context) {
	m, physKey, _, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if m.Exists(string(q.Field)) {
		q.SetError(protocol.KindEntryExists)
		return
	}
	m.Add(string(q.Field), string(q.Value))
	if err := storeMap(ctx, physKey, m); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *HSetNX) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// HGet implements HGET.
type HGet struct {
	Base
	Key, Field []byte
	value      string
}

func NewHGet(key, field []byte) *HGet { return &HGet{Base: Base{Command: "HGET"}, Key: key, Field: field} }

func (q *HGet) Run(ctx *Context) {
	m, _, existed, err := loadMap(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	v, ok := m.Get(string(q.Field))
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.value = v
	q.SetOK()
}

func (q *HGet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// HDel implements HDEL: remove field from key's map, idempotent.
type HDel struct {
	Base
	Key, Field []byte
}

func NewHDel(key, field []byte) *HDel { return &HDel{Base: Base{Command: "HDEL"}, Key: key, Field: field} }

func (q *HDel) Run(ctx *Context) {
	m, physKey, existed, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if !existed {
		q.SetOK()
		return
	}
	m.Remove(string(q.Field))
	if err := storeMap(ctx, physKey, m); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *HDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// HWDel implements HWDEL: remove every field matching a glob pattern from
// key's map, returning the number removed.
type HWDel struct {
	Base
	Key     []byte
	Pattern string
	n       int
}

func NewHWDel(key []byte, pattern string) *HWDel {
	return &HWDel{Base: Base{Command: "HWDEL"}, Key: key, Pattern: pattern}
}

func (q *HWDel) Run(ctx *Context) {
	m, physKey, existed, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if !existed {
		q.SetOK()
		return
	}
	for _, field := range m.GetList() {
		if keyenc.Match(q.Pattern, []byte(field)) {
			m.Remove(field)
			q.n++
		}
	}
	if err := storeMap(ctx, physKey, m); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *HWDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// HCount implements HCOUNT: number of fields in key's map.
type HCount struct {
	Base
	Key []byte
	n   int
}

func NewHCount(key []byte) *HCount { return &HCount{Base: Base{Command: "HCOUNT"}, Key: key} }

func (q *HCount) Run(ctx *Context) {
	m, _, existed, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if existed {
		q.n = m.Count()
	}
	q.SetOK()
}

func (q *HCount) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// HExists implements HEXISTS.
type HExists struct {
	Base
	Key, Field []byte
	result     bool
}

func NewHExists(key, field []byte) *HExists {
	return &HExists{Base: Base{Command: "HEXISTS"}, Key: key, Field: field}
}

func (q *HExists) Run(ctx *Context) {
	m, _, existed, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if existed {
		q.result = m.Exists(string(q.Field))
	}
	q.SetOK()
}

func (q *HExists) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, boolPayload(q.result))
}

// HStrLen implements HSTRLEN.
type HStrLen struct {
	Base
	Key, Field []byte
	n          int
}

func NewHStrLen(key, field []byte) *HStrLen {
	return &HStrLen{Base: Base{Command: "HSTRLEN"}, Key: key, Field: field}
}

func (q *HStrLen) Run(ctx *Context) {
	m, _, existed, err := loadMap(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	n, ok := m.Strlen(string(q.Field))
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.n = n
	q.SetOK()
}

func (q *HStrLen) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// hIterator is the shared Run/Process body for HLIST/HVALS/HGETALL,
// which differ only in which part of the (field, value) pairs they emit.
type hIterator struct {
	Base
	Key           []byte
	Offset, Limit int
	fields        []string
	values        []string
	pairs         bool
}

func (q *hIterator) run(ctx *Context, newPartial func([]string, []string, bool, int, int) Query) {
	m, _, existed, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if !existed {
		ctx.Attach(newPartial(nil, nil, false, 1, 0))
		return
	}

	all := m.GetAll()
	matched, aux, tracker := 0, 0, 0
	interrupted := false
	var fieldBuf, valueBuf []string
	for _, p := range all {
		if !CheckIterator(ctx) {
			interrupted = true
			break
		}
		if matched < q.Offset {
			matched++
			continue
		}
		if q.Limit >= 0 && aux >= q.Limit {
			break
		}
		matched++
		aux++
		fieldBuf = append(fieldBuf, p.Field)
		valueBuf = append(valueBuf, p.Value)
		if len(fieldBuf) >= ctx.limit() {
			tracker++
			ctx.Attach(newPartial(fieldBuf, valueBuf, true, tracker, aux))
			fieldBuf, valueBuf = nil, nil
		}
	}
	tracker++
	final := newPartial(fieldBuf, valueBuf, false, tracker, aux)
	if interrupted {
		if ix, ok := final.(interrupter); ok {
			ix.markInterrupted()
		}
	}
	ctx.Attach(final)
}

// HList implements HLIST: streams every field name in key's map.
type HList struct{ hIterator }

func NewHList(key []byte, offset, limit int) *HList {
	q := &HList{}
	q.Command = "HLIST"
	q.Key, q.Offset, q.Limit = key, offset, limit
	return q
}

func (q *HList) newPartial(fields, values []string, partial bool, subresult, counter int) Query {
	p := &HList{}
	p.Command = "HLIST"
	p.fields = fields
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *HList) Run(ctx *Context) { q.run(ctx, q.newPartial) }

func (q *HList) Process(w *protocol.Writer) error {
	return processIterator(w, q.fields, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// HVals implements HVALS: streams every value in key's map.
type HVals struct{ hIterator }

func NewHVals(key []byte, offset, limit int) *HVals {
	q := &HVals{}
	q.Command = "HVALS"
	q.Key, q.Offset, q.Limit = key, offset, limit
	return q
}

func (q *HVals) newPartial(fields, values []string, partial bool, subresult, counter int) Query {
	p := &HVals{}
	p.Command = "HVALS"
	p.values = values
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *HVals) Run(ctx *Context) { q.run(ctx, q.newPartial) }

func (q *HVals) Process(w *protocol.Writer) error {
	return processIterator(w, q.values, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// HGetAll implements HGETALL: streams every (field, value) pair as
// BRLD_ITEM_LIST frames.
type HGetAll struct{ hIterator }

func NewHGetAll(key []byte, offset, limit int) *HGetAll {
	q := &HGetAll{}
	q.Command = "HGETALL"
	q.Key, q.Offset, q.Limit = key, offset, limit
	return q
}

func (q *HGetAll) newPartial(fields, values []string, partial bool, subresult, counter int) Query {
	p := &HGetAll{}
	p.Command = "HGETALL"
	p.fields, p.values = fields, values
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *HGetAll) Run(ctx *Context) { q.run(ctx, q.newPartial) }

func (q *HGetAll) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	for i := range q.fields {
		if err := w.ItemPair(q.fields[i], q.values[i]); err != nil {
			return err
		}
	}
	if !q.Partial() {
		return w.EndList(q.Counter())
	}
	return nil
}

// HFind implements HFIND: streams fields matching a glob pattern.
type HFind struct {
	Base
	Key           []byte
	Pattern       string
	Offset, Limit int
	fields        []string
}

func NewHFind(key []byte, pattern string, offset, limit int) *HFind {
	return &HFind{Base: Base{Command: "HFIND"}, Key: key, Pattern: pattern, Offset: offset, Limit: limit}
}

func (q *HFind) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &HFind{Base: Base{Command: "HFIND"}, Key: q.Key, Pattern: q.Pattern, fields: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *HFind) Run(ctx *Context) {
	m, _, existed, err := loadMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	st := &iterState{}
	interrupted := false
	if existed {
		for _, field := range m.GetList() {
			if !CheckIterator(ctx) {
				interrupted = true
				break
			}
			if !keyenc.Match(q.Pattern, []byte(field)) {
				continue
			}
			if !st.emit(ctx, q.Offset, q.Limit, field, q.newPartial) {
				break
			}
		}
	}
	st.finish(ctx, interrupted, q.newPartial)
}

func (q *HFind) Process(w *protocol.Writer) error {
	return processIterator(w, q.fields, q.Partial(), q.Counter(), q.OK(), q.Kind())
}
