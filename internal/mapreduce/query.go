package mapreduce

import (
	"fmt"
	"strings"

	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/danmuck/riakmr/internal/protocol/etf"
)

// DefaultTimeoutMS is the job timeout config.Default hands to the remote.
const DefaultTimeoutMS = 5000

// WalkArgs are the five binary arguments passed to the map function, in wire
// order.
type WalkArgs struct {
	Serial  string
	Version string
	App     string
	CRC     string
	Buffer  string
}

func (a WalkArgs) list() etf.List {
	return etf.List{
		etf.String(a.Serial),
		etf.String(a.Version),
		etf.String(a.App),
		etf.String(a.CRC),
		etf.String(a.Buffer),
	}
}

// Query names one bucket/key input and the module:function map phase run on it.
type Query struct {
	Bucket    string
	Key       string
	Module    string
	Function  string
	Args      WalkArgs
	// TimeoutMS is sent as given; zero is a valid timeout, not "unset".
	TimeoutMS int64
}

func (q Query) Validate() error {
	switch {
	case strings.TrimSpace(q.Bucket) == "":
		return fmt.Errorf("%w: bucket is required", protocol.ErrEncoding)
	case strings.TrimSpace(q.Key) == "":
		return fmt.Errorf("%w: key is required", protocol.ErrEncoding)
	case strings.TrimSpace(q.Module) == "":
		return fmt.Errorf("%w: module is required", protocol.ErrEncoding)
	case strings.TrimSpace(q.Function) == "":
		return fmt.Errorf("%w: function is required", protocol.ErrEncoding)
	case q.TimeoutMS < 0:
		return fmt.Errorf("%w: negative timeout %d", protocol.ErrEncoding, q.TimeoutMS)
	}
	return nil
}

// Term builds the job description:
//
//	[{inputs, [{Bucket, Key}]},
//	 {query, [{map, {modfun, Module, Function}, Args, true}]},
//	 {timeout, TimeoutMS}]
func (q Query) Term() etf.Term {
	return etf.List{
		etf.Tuple{
			etf.Atom("inputs"),
			etf.List{etf.Tuple{etf.String(q.Bucket), etf.String(q.Key)}},
		},
		etf.Tuple{
			etf.Atom("query"),
			etf.List{etf.Tuple{
				etf.Atom("map"),
				etf.Tuple{etf.Atom("modfun"), etf.Atom(q.Module), etf.Atom(q.Function)},
				q.Args.list(),
				etf.Atom("true"),
			}},
		},
		etf.Tuple{etf.Atom("timeout"), etf.Integer(q.TimeoutMS)},
	}
}
