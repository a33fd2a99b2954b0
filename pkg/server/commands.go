// Command tokenizing and dispatch: the one piece of "external collaborator"
// territory spec.md §1 excludes from the core that this port still has to
// provide something for, since there is no real client driving requests.
// Grounded on cuemby-warren's cobra command tables for the shape of "a name
// maps to a handler, flags/args get parsed before the handler runs" — here
// simplified to a plain whitespace tokenizer, since the wire protocol is
// line-oriented text, not flag-based.
package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beryldb/beryldb/pkg/query"
)

// commandError is returned by a builder when the client sent the wrong
// number or shape of arguments; the session layer maps it to ERR_USE.
type commandError struct {
	command string
	reason  string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s: %s", e.command, e.reason)
}

func usage(command, reason string) error { return &commandError{command: command, reason: reason} }

// builder constructs a query.Query from a command's argument tokens (the
// command name itself already consumed).
type builder func(args []string) (query.Query, error)

func atoi(command, field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, usage(command, fmt.Sprintf("invalid %s %q", field, s))
	}
	return n, nil
}

func offsetLimit(command string, args []string) (offset, limit int, err error) {
	limit = -1
	if len(args) >= 1 {
		if offset, err = atoi(command, "offset", args[0]); err != nil {
			return
		}
		if !query.ValidateOffset(offset) {
			err = usage(command, fmt.Sprintf("offset must not be negative, got %d", offset))
			return
		}
	}
	if len(args) >= 2 {
		if limit, err = atoi(command, "limit", args[1]); err != nil {
			return
		}
	}
	return
}

// builders maps every command name this port implements as a Query object
// to the function that parses its arguments. Session-state commands
// (USE/USING/CURRENT/MONITOR/MRESET/MONITORLIST) are handled directly by
// the session, not through this table, per pkg/query/admin.go's doc
// comment on the split.
var builders = map[string]builder{
	"SET": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("SET", "wants key value")
		}
		return query.NewSet([]byte(a[0]), []byte(a[1])), nil
	},
	"SETNX": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("SETNX", "wants key value")
		}
		return query.NewSetNX([]byte(a[0]), []byte(a[1])), nil
	},
	"SETTX": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("SETTX", "wants key value seconds")
		}
		seconds, err := atoi("SETTX", "seconds", a[2])
		if err != nil {
			return nil, err
		}
		return query.NewSetTX([]byte(a[0]), []byte(a[1]), int64(seconds)), nil
	},
	"GET": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("GET", "wants key")
		}
		return query.NewGet([]byte(a[0])), nil
	},
	"GETSET": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("GETSET", "wants key value")
		}
		return query.NewGetSet([]byte(a[0]), []byte(a[1])), nil
	},
	"GETDEL": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("GETDEL", "wants key")
		}
		return query.NewGetDel([]byte(a[0])), nil
	},
	"DEL": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("DEL", "wants key")
		}
		return query.NewDel([]byte(a[0])), nil
	},
	"STRLEN": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("STRLEN", "wants key")
		}
		return query.NewStrLen([]byte(a[0])), nil
	},
	"APPEND": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("APPEND", "wants key value")
		}
		return query.NewAppend([]byte(a[0]), []byte(a[1])), nil
	},
	"GETSUBSTR": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("GETSUBSTR", "wants key start end")
		}
		start, err := atoi("GETSUBSTR", "start", a[1])
		if err != nil {
			return nil, err
		}
		end, err := atoi("GETSUBSTR", "end", a[2])
		if err != nil {
			return nil, err
		}
		return query.NewGetSubstr([]byte(a[0]), start, end), nil
	},
	"RKEY": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("RKEY", "wants key newkey")
		}
		return query.NewRKey([]byte(a[0]), []byte(a[1])), nil
	},
	"TOUCH": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("TOUCH", "wants key")
		}
		return query.NewTouch([]byte(a[0])), nil
	},
	"GETOCCURS": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("GETOCCURS", "wants key substr")
		}
		return query.NewGetOccurs([]byte(a[0]), []byte(a[1])), nil
	},
	"ISALPHA": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("ISALPHA", "wants key")
		}
		return query.NewIsAlpha([]byte(a[0])), nil
	},
	"ISNUM": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("ISNUM", "wants key")
		}
		return query.NewIsNum([]byte(a[0])), nil
	},
	"GETEXP": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("GETEXP", "wants key")
		}
		return query.NewGetExp([]byte(a[0])), nil
	},
	"GETPERSIST": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("GETPERSIST", "wants key")
		}
		return query.NewGetPersist([]byte(a[0])), nil
	},
	"KEYS": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("KEYS", "wants pattern [offset [limit]]")
		}
		offset, limit, err := offsetLimit("KEYS", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewKeys(a[0], offset, limit), nil
	},
	"COUNT": func(a []string) (query.Query, error) { return query.NewCount(), nil },
	"SEARCH": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("SEARCH", "wants pattern [offset [limit]]")
		}
		offset, limit, err := offsetLimit("SEARCH", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewSearch(a[0], offset, limit), nil
	},
	"WDEL": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("WDEL", "wants pattern")
		}
		return query.NewWDel(a[0]), nil
	},

	"HSET": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("HSET", "wants key field value")
		}
		return query.NewHSet([]byte(a[0]), []byte(a[1]), []byte(a[2])), nil
	},
	"HSETNX": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("HSETNX", "wants key field value")
		}
		return query.NewHSetNX([]byte(a[0]), []byte(a[1]), []byte(a[2])), nil
	},
	"HGET": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("HGET", "wants key field")
		}
		return query.NewHGet([]byte(a[0]), []byte(a[1])), nil
	},
	"HDEL": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("HDEL", "wants key field")
		}
		return query.NewHDel([]byte(a[0]), []byte(a[1])), nil
	},
	"HWDEL": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("HWDEL", "wants key pattern")
		}
		return query.NewHWDel([]byte(a[0]), a[1]), nil
	},
	"HCOUNT": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("HCOUNT", "wants key")
		}
		return query.NewHCount([]byte(a[0])), nil
	},
	"HEXISTS": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("HEXISTS", "wants key field")
		}
		return query.NewHExists([]byte(a[0]), []byte(a[1])), nil
	},
	"HSTRLEN": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("HSTRLEN", "wants key field")
		}
		return query.NewHStrLen([]byte(a[0]), []byte(a[1])), nil
	},
	"HLIST": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("HLIST", "wants key [offset [limit]]")
		}
		offset, limit, err := offsetLimit("HLIST", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewHList([]byte(a[0]), offset, limit), nil
	},
	"HVALS": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("HVALS", "wants key [offset [limit]]")
		}
		offset, limit, err := offsetLimit("HVALS", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewHVals([]byte(a[0]), offset, limit), nil
	},
	"HGETALL": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("HGETALL", "wants key [offset [limit]]")
		}
		offset, limit, err := offsetLimit("HGETALL", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewHGetAll([]byte(a[0]), offset, limit), nil
	},
	"HFIND": func(a []string) (query.Query, error) {
		if len(a) < 2 {
			return nil, usage("HFIND", "wants key pattern [offset [limit]]")
		}
		offset, limit, err := offsetLimit("HFIND", a[2:])
		if err != nil {
			return nil, err
		}
		return query.NewHFind([]byte(a[0]), a[1], offset, limit), nil
	},

	"MSET": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("MSET", "wants key field value")
		}
		return query.NewMSet([]byte(a[0]), []byte(a[1]), []byte(a[2])), nil
	},
	"MGET": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("MGET", "wants key field")
		}
		return query.NewMGet([]byte(a[0]), []byte(a[1])), nil
	},
	"MDEL": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("MDEL", "wants key field")
		}
		return query.NewMDel([]byte(a[0]), []byte(a[1])), nil
	},
	"MKEYS": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("MKEYS", "wants key [offset [limit]]")
		}
		offset, limit, err := offsetLimit("MKEYS", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewMKeys([]byte(a[0]), offset, limit), nil
	},
	"MSEEK": func(a []string) (query.Query, error) {
		if len(a) < 2 {
			return nil, usage("MSEEK", "wants key value [offset [limit]]")
		}
		offset, limit, err := offsetLimit("MSEEK", a[2:])
		if err != nil {
			return nil, err
		}
		return query.NewMSeek([]byte(a[0]), []byte(a[1]), offset, limit), nil
	},

	"VPUSH": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VPUSH", "wants key value")
		}
		return query.NewVPush([]byte(a[0]), []byte(a[1])), nil
	},
	"VPUSHNX": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VPUSHNX", "wants key value")
		}
		return query.NewVPushNX([]byte(a[0]), []byte(a[1])), nil
	},
	"VGET": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("VGET", "wants key [offset [limit]]")
		}
		offset, limit, err := offsetLimit("VGET", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewVGet([]byte(a[0]), offset, limit), nil
	},
	"VPOP_FRONT": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VPOP_FRONT", "wants key")
		}
		return query.NewVPopFront([]byte(a[0])), nil
	},
	"VPOP_BACK": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VPOP_BACK", "wants key")
		}
		return query.NewVPopBack([]byte(a[0])), nil
	},
	"VDEL": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VDEL", "wants key value")
		}
		return query.NewVDel([]byte(a[0]), []byte(a[1])), nil
	},
	"VCOUNT": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VCOUNT", "wants key")
		}
		return query.NewVCount([]byte(a[0])), nil
	},
	"VPOS": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VPOS", "wants key value")
		}
		return query.NewVPos([]byte(a[0]), []byte(a[1])), nil
	},
	"VEXIST": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VEXIST", "wants key value")
		}
		return query.NewVExist([]byte(a[0]), []byte(a[1])), nil
	},
	"VSORT": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VSORT", "wants key")
		}
		return query.NewVSort([]byte(a[0])), nil
	},
	"VREVERSE": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VREVERSE", "wants key")
		}
		return query.NewVReverse([]byte(a[0])), nil
	},
	"VRESIZE": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VRESIZE", "wants key n")
		}
		n, err := atoi("VRESIZE", "n", a[1])
		if err != nil {
			return nil, err
		}
		return query.NewVResize([]byte(a[0]), n), nil
	},
	"VFIND": func(a []string) (query.Query, error) {
		if len(a) < 2 {
			return nil, usage("VFIND", "wants key pattern [offset [limit]]")
		}
		offset, limit, err := offsetLimit("VFIND", a[2:])
		if err != nil {
			return nil, err
		}
		return query.NewVFind([]byte(a[0]), a[1], offset, limit), nil
	},
	"VKEYS": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("VKEYS", "wants pattern [offset [limit]]")
		}
		offset, limit, err := offsetLimit("VKEYS", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewVKeys(a[0], offset, limit), nil
	},
	"VREPEATS": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("VREPEATS", "wants key value")
		}
		return query.NewVRepeats([]byte(a[0]), []byte(a[1])), nil
	},
	"VAVG": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VAVG", "wants key")
		}
		return query.NewVAvg([]byte(a[0])), nil
	},
	"VHIGH": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VHIGH", "wants key")
		}
		return query.NewVHigh([]byte(a[0])), nil
	},
	"VLOW": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VLOW", "wants key")
		}
		return query.NewVLow([]byte(a[0])), nil
	},
	"VSUM": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VSUM", "wants key")
		}
		return query.NewVSum([]byte(a[0])), nil
	},
	"VBACK": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VBACK", "wants key")
		}
		return query.NewVBack([]byte(a[0])), nil
	},
	"VFRONT": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("VFRONT", "wants key")
		}
		return query.NewVFront([]byte(a[0])), nil
	},

	"GEOADD": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("GEOADD", "wants name lat lon")
		}
		lat, err := strconv.ParseFloat(a[1], 64)
		if err != nil {
			return nil, usage("GEOADD", "invalid lat")
		}
		lon, err := strconv.ParseFloat(a[2], 64)
		if err != nil {
			return nil, usage("GEOADD", "invalid lon")
		}
		return query.NewGeoAdd([]byte(a[0]), lat, lon), nil
	},
	"GEOGET": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("GEOGET", "wants name")
		}
		return query.NewGeoGet([]byte(a[0])), nil
	},
	"GEODEL": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("GEODEL", "wants name")
		}
		return query.NewGeoDel([]byte(a[0])), nil
	},
	"GFIND": func(a []string) (query.Query, error) {
		if len(a) < 1 {
			return nil, usage("GFIND", "wants pattern [offset [limit]]")
		}
		offset, limit, err := offsetLimit("GFIND", a[1:])
		if err != nil {
			return nil, err
		}
		return query.NewGFind(a[0], offset, limit), nil
	},

	"EXPIRE": func(a []string) (query.Query, error) {
		if len(a) != 2 {
			return nil, usage("EXPIRE", "wants key seconds")
		}
		seconds, err := atoi("EXPIRE", "seconds", a[1])
		if err != nil {
			return nil, err
		}
		return query.NewExpire([]byte(a[0]), int64(seconds)), nil
	},
	"FUTURE": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("FUTURE", "wants key value seconds")
		}
		seconds, err := atoi("FUTURE", "seconds", a[2])
		if err != nil {
			return nil, err
		}
		return query.NewFuture([]byte(a[0]), []byte(a[1]), int64(seconds)), nil
	},
	"FUTSET": func(a []string) (query.Query, error) {
		if len(a) != 3 {
			return nil, usage("FUTSET", "wants key value epoch")
		}
		epoch, err := atoi("FUTSET", "epoch", a[2])
		if err != nil {
			return nil, err
		}
		return query.NewFutSet([]byte(a[0]), []byte(a[1]), int64(epoch)), nil
	},
	"CANCEL": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("CANCEL", "wants key")
		}
		return query.NewCancel([]byte(a[0])), nil
	},
	"EXEC": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("EXEC", "wants key")
		}
		return query.NewExec([]byte(a[0])), nil
	},
	"TTE": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("TTE", "wants key")
		}
		return query.NewTTE([]byte(a[0])), nil
	},
	"FRESET": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("FRESET", "wants select")
		}
		return query.NewFReset(a[0]), nil
	},
	"FRESETALL": func(a []string) (query.Query, error) { return query.NewFResetAll(), nil },
	"FTLIST":    func(a []string) (query.Query, error) { return query.NewFTList(), nil },
	"FTSELECT": func(a []string) (query.Query, error) {
		if len(a) != 1 {
			return nil, usage("FTSELECT", "wants select")
		}
		return query.NewFTSelect(a[0]), nil
	},

	"DBSIZE":     func(a []string) (query.Query, error) { return query.NewDBSize(), nil },
	"PWD":        func(a []string) (query.Query, error) { return query.NewPWD(), nil },
	"DBRESET":    func(a []string) (query.Query, error) { return query.NewDBReset(), nil },
	"MODULES":    func(a []string) (query.Query, error) { return query.NewModules(), nil },
	"COREMODULES": func(a []string) (query.Query, error) { return query.NewCoreModules(), nil },
}

// sessionCommands are handled directly against the User/session instead of
// through the Query/Flusher/Dispatcher pipeline: they mutate connection
// state that has no Database-side Run() to perform, per pkg/query/admin.go.
var sessionCommands = map[string]bool{
	"USE": true, "USING": true, "CURRENT": true,
	"MONITOR": true, "MRESET": true, "MONITORLIST": true,
}

// parseLine splits one line of client input into an uppercased command
// name and its argument tokens.
func parseLine(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToUpper(fields[0]), fields[1:]
}
