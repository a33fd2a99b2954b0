package query

import (
	"strconv"

	"github.com/beryldb/beryldb/pkg/codec"
	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
)

func loadVector(ctx *Context, key []byte) (*codec.VectorHandler, []byte, bool, error) {
	physKey := keyenc.Encode(key, ctx.Select, keyenc.TagVector)
	raw, ok, err := ctx.Database.Get(keyenc.TagVector, physKey)
	if err != nil {
		return nil, physKey, false, err
	}
	if !ok {
		return codec.NewVector(), physKey, false, nil
	}
	v, err := codec.DecodeVector(raw)
	if err != nil {
		return nil, physKey, false, err
	}
	return v, physKey, true, nil
}

func storeVector(ctx *Context, physKey []byte, v *codec.VectorHandler) error {
	if v.Count() == 0 {
		return ctx.Database.Delete(keyenc.TagVector, physKey)
	}
	return ctx.Database.Put(keyenc.TagVector, physKey, v.Encode())
}

// VPush implements VPUSH: append value to key's vector, creating it if
// absent.
type VPush struct {
	Base
	Key, Value []byte
}

func NewVPush(key, value []byte) *VPush { return &VPush{Base: Base{Command: "VPUSH"}, Key: key, Value: value} }

func (q *VPush) Run(ctx *Context) {
	v, physKey, _, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	v.Add(string(q.Value))
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *VPush) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// VPushNX implements VPUSHNX: append value only if it is not already
// present, reporting ENTRY_EXISTS otherwise — the bug class named in the
// Open Question decisions (an error branch must not also call SetOK) is
// closed by Base's terminal-state guard.
type VPushNX struct {
	Base
	Key, Value []byte
}

func NewVPushNX(key, value []byte) *VPushNX {
	return &VPushNX{Base: Base{Command: "VPUSHNX"}, Key: key, Value: value}
}

func (q *VPushNX) Run(ctx *Context) {
	v, physKey, _, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if v.Exist(string(q.Value)) {
		q.SetError(protocol.KindEntryExists)
		return
	}
	v.Add(string(q.Value))
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *VPushNX) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// VGet implements VGET: streams every element of key's vector.
type VGet struct {
	Base
	Key           []byte
	Offset, Limit int
	items         []string
}

func NewVGet(key []byte, offset, limit int) *VGet {
	return &VGet{Base: Base{Command: "VGET"}, Key: key, Offset: offset, Limit: limit}
}

func (q *VGet) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &VGet{Base: Base{Command: "VGET"}, Key: q.Key, items: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *VGet) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	st := &iterState{}
	interrupted := false
	if existed {
		for i := 0; ; i++ {
			s, ok := v.Index(i)
			if !ok {
				break
			}
			if !CheckIterator(ctx) {
				interrupted = true
				break
			}
			if !st.emit(ctx, q.Offset, q.Limit, s, q.newPartial) {
				break
			}
		}
	}
	st.finish(ctx, interrupted, q.newPartial)
}

func (q *VGet) Process(w *protocol.Writer) error {
	return processIterator(w, q.items, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// VPopFront implements VPOP_FRONT.
type VPopFront struct {
	Base
	Key   []byte
	value string
}

func NewVPopFront(key []byte) *VPopFront { return &VPopFront{Base: Base{Command: "VPOP_FRONT"}, Key: key} }

func (q *VPopFront) Run(ctx *Context) {
	v, physKey, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	val, ok := v.PopFront()
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.value = val
	q.SetOK()
}

func (q *VPopFront) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// VPopBack implements VPOP_BACK.
type VPopBack struct {
	Base
	Key   []byte
	value string
}

func NewVPopBack(key []byte) *VPopBack { return &VPopBack{Base: Base{Command: "VPOP_BACK"}, Key: key} }

func (q *VPopBack) Run(ctx *Context) {
	v, physKey, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	val, ok := v.PopBack()
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.value = val
	q.SetOK()
}

func (q *VPopBack) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// VDel implements VDEL: remove the first element equal to value.
type VDel struct {
	Base
	Key, Value []byte
}

func NewVDel(key, value []byte) *VDel { return &VDel{Base: Base{Command: "VDEL"}, Key: key, Value: value} }

func (q *VDel) Run(ctx *Context) {
	v, physKey, existed, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if !existed || !v.Remove(string(q.Value)) {
		q.SetError(protocol.KindNotFound)
		return
	}
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *VDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// VCount implements VCOUNT.
type VCount struct {
	Base
	Key []byte
	n   int
}

func NewVCount(key []byte) *VCount { return &VCount{Base: Base{Command: "VCOUNT"}, Key: key} }

func (q *VCount) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if existed {
		q.n = v.Count()
	}
	q.SetOK()
}

func (q *VCount) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// VPos implements VPOS: index of the first element equal to value, or
// NOT_FOUND.
type VPos struct {
	Base
	Key, Value []byte
	pos        int
}

func NewVPos(key, value []byte) *VPos { return &VPos{Base: Base{Command: "VPOS"}, Key: key, Value: value} }

func (q *VPos) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	for i := 0; ; i++ {
		s, ok := v.Index(i)
		if !ok {
			q.SetError(protocol.KindNotFound)
			return
		}
		if s == string(q.Value) {
			q.pos = i
			q.SetOK()
			return
		}
	}
}

func (q *VPos) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.pos))
}

// VExist implements VEXIST.
type VExist struct {
	Base
	Key, Value []byte
	result     bool
}

func NewVExist(key, value []byte) *VExist { return &VExist{Base: Base{Command: "VEXIST"}, Key: key, Value: value} }

func (q *VExist) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if existed {
		q.result = v.Exist(string(q.Value))
	}
	q.SetOK()
}

func (q *VExist) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, boolPayload(q.result))
}

// VSort implements VSORT: sorts the vector in place (numeric if every
// element parses as a number, lexical otherwise).
type VSort struct {
	Base
	Key []byte
}

func NewVSort(key []byte) *VSort { return &VSort{Base: Base{Command: "VSORT"}, Key: key} }

func (q *VSort) Run(ctx *Context) {
	v, physKey, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	v.Sort()
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *VSort) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// VReverse implements VREVERSE.
type VReverse struct {
	Base
	Key []byte
}

func NewVReverse(key []byte) *VReverse { return &VReverse{Base: Base{Command: "VREVERSE"}, Key: key} }

func (q *VReverse) Run(ctx *Context) {
	v, physKey, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	v.Reverse()
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *VReverse) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// VResize implements VRESIZE.
type VResize struct {
	Base
	Key []byte
	N   int
}

func NewVResize(key []byte, n int) *VResize { return &VResize{Base: Base{Command: "VRESIZE"}, Key: key, N: n} }

func (q *VResize) Run(ctx *Context) {
	v, physKey, _, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	v.Resize(q.N)
	if err := storeVector(ctx, physKey, v); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *VResize) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// VFind implements VFIND: streams elements matching a glob pattern.
type VFind struct {
	Base
	Key           []byte
	Pattern       string
	Offset, Limit int
	items         []string
}

func NewVFind(key []byte, pattern string, offset, limit int) *VFind {
	return &VFind{Base: Base{Command: "VFIND"}, Key: key, Pattern: pattern, Offset: offset, Limit: limit}
}

func (q *VFind) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &VFind{Base: Base{Command: "VFIND"}, Key: q.Key, Pattern: q.Pattern, items: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *VFind) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	st := &iterState{}
	interrupted := false
	if existed {
		for _, s := range v.Find(q.Pattern) {
			if !CheckIterator(ctx) {
				interrupted = true
				break
			}
			if !st.emit(ctx, q.Offset, q.Limit, s, q.newPartial) {
				break
			}
		}
	}
	st.finish(ctx, interrupted, q.newPartial)
}

func (q *VFind) Process(w *protocol.Writer) error {
	return processIterator(w, q.items, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// VKeys implements VKEYS: streams every VECTOR-tagged user-key matching a
// pattern, the vector analogue of KEYS.
type VKeys struct {
	Base
	Pattern       string
	Offset, Limit int
	items         []string
}

func NewVKeys(pattern string, offset, limit int) *VKeys {
	return &VKeys{Base: Base{Command: "VKEYS"}, Pattern: pattern, Offset: offset, Limit: limit}
}

func (q *VKeys) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &VKeys{Base: Base{Command: "VKEYS"}, Pattern: q.Pattern, items: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *VKeys) Run(ctx *Context) {
	st := &iterState{}
	scanTag(ctx, keyenc.TagVector, q.Pattern, func(d keyenc.Decoded, _ []byte) (string, bool) {
		return string(d.UserKey), true
	}, st, q.Offset, q.Limit, q.newPartial)
}

func (q *VKeys) Process(w *protocol.Writer) error {
	return processIterator(w, q.items, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// VRepeats implements VREPEATS.
type VRepeats struct {
	Base
	Key, Value []byte
	n          int
}

func NewVRepeats(key, value []byte) *VRepeats {
	return &VRepeats{Base: Base{Command: "VREPEATS"}, Key: key, Value: value}
}

func (q *VRepeats) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if existed {
		q.n = v.Repeats(string(q.Value))
	}
	q.SetOK()
}

func (q *VRepeats) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.Itoa(q.n))
}

// vectorAggregate is the shared Run body for VAVG/VHIGH/VLOW/VSUM: each
// rejects the whole operation (INVALID_RANGE) unless every element
// parses as a number, per the numeric-aggregate testable property.
type vectorAggregate struct {
	Base
	Key    []byte
	result float64
}

func (q *vectorAggregate) run(ctx *Context, compute func(*codec.VectorHandler) (float64, error)) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	result, err := compute(v)
	if err != nil {
		q.SetError(protocol.KindInvalidRange)
		return
	}
	q.result = result
	q.SetOK()
}

func (q *vectorAggregate) process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, strconv.FormatFloat(q.result, 'g', -1, 64))
}

// VAvg implements VAVG.
type VAvg struct{ vectorAggregate }

func NewVAvg(key []byte) *VAvg {
	q := &VAvg{}
	q.Command, q.Key = "VAVG", key
	return q
}
func (q *VAvg) Run(ctx *Context)             { q.run(ctx, (*codec.VectorHandler).GetSMA) }
func (q *VAvg) Process(w *protocol.Writer) error { return q.process(w) }

// VHigh implements VHIGH.
type VHigh struct{ vectorAggregate }

func NewVHigh(key []byte) *VHigh {
	q := &VHigh{}
	q.Command, q.Key = "VHIGH", key
	return q
}
func (q *VHigh) Run(ctx *Context)             { q.run(ctx, (*codec.VectorHandler).GetHigh) }
func (q *VHigh) Process(w *protocol.Writer) error { return q.process(w) }

// VLow implements VLOW.
type VLow struct{ vectorAggregate }

func NewVLow(key []byte) *VLow {
	q := &VLow{}
	q.Command, q.Key = "VLOW", key
	return q
}
func (q *VLow) Run(ctx *Context)             { q.run(ctx, (*codec.VectorHandler).GetLow) }
func (q *VLow) Process(w *protocol.Writer) error { return q.process(w) }

// VSum implements VSUM.
type VSum struct{ vectorAggregate }

func NewVSum(key []byte) *VSum {
	q := &VSum{}
	q.Command, q.Key = "VSUM", key
	return q
}
func (q *VSum) Run(ctx *Context)             { q.run(ctx, (*codec.VectorHandler).Sum) }
func (q *VSum) Process(w *protocol.Writer) error { return q.process(w) }

// VBack implements VBACK.
type VBack struct {
	Base
	Key   []byte
	value string
}

func NewVBack(key []byte) *VBack { return &VBack{Base: Base{Command: "VBACK"}, Key: key} }

func (q *VBack) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	val, ok := v.Back()
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.value = val
	q.SetOK()
}

func (q *VBack) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// VFront implements VFRONT.
type VFront struct {
	Base
	Key   []byte
	value string
}

func NewVFront(key []byte) *VFront { return &VFront{Base: Base{Command: "VFRONT"}, Key: key} }

func (q *VFront) Run(ctx *Context) {
	v, _, existed, err := loadVector(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	val, ok := v.Front()
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.value = val
	q.SetOK()
}

func (q *VFront) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}
