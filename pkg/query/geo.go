package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/beryldb/beryldb/pkg/protocol"
)

// geoPoint is the GEO tag's physical value: "<lat> <lon>", grounded on
// GeoHelper::Add writing the pair it validated in
// CommandGeoAdd::Handle (original_source/src/coremods/core_geo/cmd_geos.cpp).
type geoPoint struct {
	Lat, Lon float64
}

func encodeGeoPoint(p geoPoint) []byte {
	return []byte(fmt.Sprintf("%g %g", p.Lat, p.Lon))
}

func decodeGeoPoint(raw []byte) (geoPoint, bool) {
	fields := strings.Fields(string(raw))
	if len(fields) != 2 {
		return geoPoint{}, false
	}
	lat, err1 := strconv.ParseFloat(fields[0], 64)
	lon, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return geoPoint{}, false
	}
	return geoPoint{Lat: lat, Lon: lon}, true
}

// validLat and validLon mirror ValidLat/ValidLong's range checks.
func validLat(lat float64) bool { return lat >= -90 && lat <= 90 }
func validLon(lon float64) bool { return lon >= -180 && lon <= 180 }

// GeoAdd implements GEOADD: store a named point, rejecting out-of-range
// coordinates with INVALID_COORD before touching the store.
type GeoAdd struct {
	Base
	Name      []byte
	Lat, Lon  float64
}

func NewGeoAdd(name []byte, lat, lon float64) *GeoAdd {
	return &GeoAdd{Base: Base{Command: "GEOADD"}, Name: name, Lat: lat, Lon: lon}
}

func (q *GeoAdd) Run(ctx *Context) {
	if !validLat(q.Lat) || !validLon(q.Lon) {
		q.SetError(protocol.KindInvalidCoord)
		return
	}
	physKey := keyenc.Encode(q.Name, ctx.Select, keyenc.TagGeo)
	if err := ctx.Database.Put(keyenc.TagGeo, physKey, encodeGeoPoint(geoPoint{Lat: q.Lat, Lon: q.Lon})); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *GeoAdd) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// GeoGet implements GEOGET: returns "<lat> <lon>" for a named point.
type GeoGet struct {
	Base
	Name   []byte
	result string
}

func NewGeoGet(name []byte) *GeoGet { return &GeoGet{Base: Base{Command: "GEOGET"}, Name: name} }

func (q *GeoGet) Run(ctx *Context) {
	physKey := keyenc.Encode(q.Name, ctx.Select, keyenc.TagGeo)
	raw, ok, err := ctx.Database.Get(keyenc.TagGeo, physKey)
	if err != nil || !ok {
		q.SetError(protocol.KindNotFound)
		return
	}
	if _, ok := decodeGeoPoint(raw); !ok {
		q.SetError(protocol.KindInvalidFormat)
		return
	}
	q.result = string(raw)
	q.SetOK()
}

func (q *GeoGet) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_OK, q.result)
}

// GeoDel implements GEODEL: removes a named point, idempotent.
type GeoDel struct {
	Base
	Name []byte
}

func NewGeoDel(name []byte) *GeoDel { return &GeoDel{Base: Base{Command: "GEODEL"}, Name: name} }

func (q *GeoDel) Run(ctx *Context) {
	physKey := keyenc.Encode(q.Name, ctx.Select, keyenc.TagGeo)
	if err := ctx.Database.Delete(keyenc.TagGeo, physKey); err != nil {
		q.SetError(protocol.KindUnableWrite)
		return
	}
	q.SetOK()
}

func (q *GeoDel) Process(w *protocol.Writer) error {
	if !q.OK() {
		return w.Frame(q.Kind().Code(), "")
	}
	return w.Frame(protocol.BRLD_QUERY_OK, "")
}

// GFind implements GFIND: streams every point name matching a glob
// pattern, mirroring CommandGFind's offset/limit pair (default offset 0,
// limit -1 when neither is given).
type GFind struct {
	Base
	Pattern       string
	Offset, Limit int
	items         []string
}

func NewGFind(pattern string, offset, limit int) *GFind {
	return &GFind{Base: Base{Command: "GFIND"}, Pattern: pattern, Offset: offset, Limit: limit}
}

func (q *GFind) newPartial(items []string, partial bool, subresult, counter int) Query {
	p := &GFind{Base: Base{Command: "GFIND"}, Pattern: q.Pattern, items: items}
	if partial {
		p.markPartial(subresult)
	} else {
		p.markFinal(subresult, counter)
	}
	p.SetOK()
	return p
}

func (q *GFind) Run(ctx *Context) {
	st := &iterState{}
	scanTag(ctx, keyenc.TagGeo, q.Pattern, func(d keyenc.Decoded, _ []byte) (string, bool) {
		return string(d.UserKey), true
	}, st, q.Offset, q.Limit, q.newPartial)
}

func (q *GFind) Process(w *protocol.Writer) error {
	return processIterator(w, q.items, q.Partial(), q.Counter(), q.OK(), q.Kind())
}
