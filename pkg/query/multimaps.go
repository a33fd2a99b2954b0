package query

import (
	"github.com/beryldb/beryldb/pkg/codec"
	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
)

func loadMultiMap(ctx *Context, key []byte) (*codec.MultiMapHandler, []byte, bool, error) {
	physKey := keyenc.Encode(key, ctx.Select, keyenc.TagMMap)
	raw, ok, err := ctx.Database.Get(keyenc.TagMMap, physKey)
	if err != nil {
		return nil, physKey, false, err
	}
	if !ok {
		return codec.NewMultiMap(), physKey, false, nil
	}
	mm, err := codec.DecodeMultiMap(raw)
	if err != nil {
		return nil, physKey, false, err
	}
	return mm, physKey, true, nil
}

func storeMultiMap(ctx *Context, physKey []byte, mm *codec.MultiMapHandler) error {
	if mm.Count() == 0 {
		return ctx.Database.Delete(keyenc.TagMMap, physKey)
	}
	return ctx.Database.Put(keyenc.TagMMap, physKey, mm.Encode())
}

// MSet implements MSET: append a (field, value) pair to key's multimap,
// always as a new entry, never replacing an existing one with the same
// field.
type MSet struct {
	Base
	Key, Field, Value []byte
}

func NewMSet(key, field, value []byte) *MSet {
	return &MSet{Base: Base{Command: "MSET"}, Key: key, Field: field, Value: value}
}

func (q *MSet) Run(ctx *Context) {
	mm, physKey, _, err := loadMultiMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	mm.Add(string(q.Field), string(q.Value))
	if err := storeMultiMap(ctx, physKey, mm); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *MSet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// MGet implements MGET: value of the first pair matching field.
type MGet struct {
	Base
	Key, Field []byte
	value      string
}

func NewMGet(key, field []byte) *MGet { return &MGet{Base: Base{Command: "MGET"}, Key: key, Field: field} }

func (q *MGet) Run(ctx *Context) {
	mm, _, existed, err := loadMultiMap(ctx, q.Key)
	if err != nil || !existed {
		q.SetError(protocol.KindNotFound)
		return
	}
	v, ok := mm.Get(string(q.Field))
	if !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	q.value = v
	q.SetOK()
}

func (q *MGet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.value)
}

// MDel implements MDEL: remove the first pair matching field, idempotent.
type MDel struct {
	Base
	Key, Field []byte
}

func NewMDel(key, field []byte) *MDel { return &MDel{Base: Base{Command: "MDEL"}, Key: key, Field: field} }

func (q *MDel) Run(ctx *Context) {
	mm, physKey, existed, err := loadMultiMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	if !existed {
		q.SetOK()
		return
	}
	mm.Remove(string(q.Field))
	if err := storeMultiMap(ctx, physKey, mm); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *MDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// MKeys implements MKEYS: streams every field in key's multimap,
// duplicates included.
type MKeys struct {
	Base
	Key           []byte
	Offset, Limit int
	fields        []string
}

func NewMKeys(key []byte, offset, limit int) *MKeys {
	return &MKeys{Base: Base{Command: "MKEYS"}, Key: key, Offset: offset, Limit: limit}
}

func (q *MKeys) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &MKeys{Base: Base{Command: "MKEYS"}, Key: q.Key, fields: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *MKeys) Run(ctx *Context) {
	mm, _, existed, err := loadMultiMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	st := &iterState{}
	interrupted := false
	if existed {
		for _, p := range mm.GetAll() {
			if !CheckIterator(ctx) {
				interrupted = true
				break
			}
			if !st.emit(ctx, q.Offset, q.Limit, p.Field, q.newPartial) {
				break
			}
		}
	}
	st.finish(ctx, interrupted, q.newPartial)
}

func (q *MKeys) Process(w *protocol.Writer) error {
	return processIterator(w, q.fields, q.Partial(), q.Counter(), q.OK(), q.Kind())
}

// MSeek implements MSEEK: streams every field whose value equals a
// target, the multimap analogue of a reverse lookup (Find in the codec).
type MSeek struct {
	Base
	Key, Value    []byte
	Offset, Limit int
	fields        []string
}

func NewMSeek(key, value []byte, offset, limit int) *MSeek {
	return &MSeek{Base: Base{Command: "MSEEK"}, Key: key, Value: value, Offset: offset, Limit: limit}
}

func (q *MSeek) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &MSeek{Base: Base{Command: "MSEEK"}, Key: q.Key, Value: q.Value, fields: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *MSeek) Run(ctx *Context) {
	mm, _, existed, err := loadMultiMap(ctx, q.Key)
	if err != nil {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	st := &iterState{}
	interrupted := false
	if existed {
		for _, field := range mm.Find(string(q.Value)) {
			if !CheckIterator(ctx) {
				interrupted = true
				break
			}
			if !st.emit(ctx, q.Offset, q.Limit, field, q.newPartial) {
				break
			}
		}
	}
	st.finish(ctx, interrupted, q.newPartial)
}

func (q *MSeek) Process(w *protocol.Writer) error {
	return processIterator(w, q.fields, q.Partial(), q.Counter(), q.OK(), q.Kind())
}
