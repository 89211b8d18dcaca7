// Package mapreduce runs one map-reduce job against the remote: encode the
// job, send one frame, then stream the single reply into a sink.
package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/riakmr/internal/diag"
	"github.com/danmuck/riakmr/internal/observability"
	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/danmuck/riakmr/internal/protocol/etf"
	"github.com/danmuck/riakmr/internal/protocol/frame"
	"github.com/danmuck/riakmr/internal/protocol/reply"
	"github.com/danmuck/riakmr/internal/stream"
	"github.com/danmuck/riakmr/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FirstReadSize bounds the read that carries the reply header.
const FirstReadSize = 1024

// ErrReused is returned when Execute is called on a request that already ran.
var ErrReused = errors.New("mapreduce: request already executed")

type State int

const (
	Idle State = iota
	Encoding
	Framed
	Sent
	AwaitingHeader
	Streaming
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Encoding:
		return "encoding"
	case Framed:
		return "framed"
	case Sent:
		return "sent"
	case AwaitingHeader:
		return "awaiting_header"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Destination selects the sink for the reply payload.
type Destination struct {
	path string
}

// ToMemory collects the payload into Result.Payload.
func ToMemory() Destination { return Destination{} }

// ToFile writes the payload to path. No file is created for an empty payload.
func ToFile(path string) Destination { return Destination{path: path} }

func (d Destination) Path() string { return d.path }

func (d Destination) IsFile() bool { return d.path != "" }

// Config tunes a Request. The zero value is usable.
type Config struct {
	Limits    frame.Limits
	ChunkSize int
	// Dump receives hex dumps of the sent frame and the first reply chunk.
	Dump io.Writer
}

func DefaultConfig() Config {
	return Config{
		Limits:    frame.DefaultLimits(),
		ChunkSize: stream.DefaultChunkSize,
	}
}

// Result is the outcome of a finished request.
type Result struct {
	StatusCode int8
	Delivered  int64
	// Payload is set for in-memory destinations only.
	Payload []byte
}

// Request is one job, executed at most once over one channel.
type Request struct {
	id    string
	query Query
	dest  Destination
	cfg   Config
	state State
	err   error
	sink  stream.Sink
}

func New(q Query, dest Destination, cfg Config) *Request {
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = stream.DefaultChunkSize
	}
	return &Request{
		id:    uuid.NewString(),
		query: q,
		dest:  dest,
		cfg:   cfg,
	}
}

func (r *Request) ID() string { return r.id }

func (r *Request) State() State { return r.state }

// Err returns the terminal error of a Failed request.
func (r *Request) Err() error { return r.err }

// Execute drives the request to Done or Failed. Apart from ErrReused, every
// error wraps one of the protocol error kinds. An opened file sink is closed
// before Execute returns.
func (r *Request) Execute(ctx context.Context, ch transport.Channel) (Result, error) {
	if r.state != Idle {
		return Result{}, fmt.Errorf("%w: request %s already %s", ErrReused, r.id, r.state)
	}
	start := time.Now()
	res, err := r.run(ctx, ch)
	observability.RecordMapReduce(protocol.Kind(err), res.Delivered, time.Since(start))
	if err != nil {
		r.err = err
		r.transition(Failed)
		log.Warn().
			Str("request_id", r.id).
			Str("kind", protocol.Kind(err)).
			Err(err).
			Msg("mapreduce.Request failed")
		return res, err
	}
	r.transition(Done)
	log.Info().
		Str("request_id", r.id).
		Str("bucket", r.query.Bucket).
		Str("key", r.query.Key).
		Int8("status", res.StatusCode).
		Int64("delivered", res.Delivered).
		Dur("elapsed", time.Since(start)).
		Msg("mapreduce.Request done")
	return res, nil
}

func (r *Request) run(ctx context.Context, ch transport.Channel) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", protocol.ErrCommunication, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		if d, ok := ch.(interface{ SetDeadline(time.Time) error }); ok {
			_ = d.SetDeadline(dl)
		}
	}

	r.transition(Encoding)
	if err := r.query.Validate(); err != nil {
		return Result{}, err
	}
	payload, err := etf.Marshal(r.query.Term())
	if err != nil {
		return Result{}, err
	}
	msg, err := frame.Build(payload, r.cfg.Limits)
	if err != nil {
		return Result{}, err
	}
	r.transition(Framed)
	r.dump(msg, "sending")

	n, err := ch.Write(msg)
	if err != nil {
		return Result{}, fmt.Errorf("%w: write: %v", protocol.ErrCommunication, err)
	}
	if n != len(msg) {
		return Result{}, fmt.Errorf("%w: short write %d of %d", protocol.ErrCommunication, n, len(msg))
	}
	r.transition(Sent)

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", protocol.ErrCommunication, err)
	}
	r.transition(AwaitingHeader)
	buf := make([]byte, FirstReadSize)
	n, err = readHeader(ch, buf)
	if err != nil {
		return Result{}, err
	}
	chunk := buf[:n]
	r.dump(chunk, "received")

	hdr, err := reply.Parse(chunk)
	if err != nil {
		return Result{}, err
	}
	res := Result{StatusCode: hdr.StatusCode}

	r.transition(Streaming)
	sink, mem, err := r.openSink(hdr)
	if err != nil {
		return res, err
	}
	r.sink = sink
	rec := stream.Receiver{ChunkSize: r.cfg.ChunkSize}
	delivered, err := rec.Receive(ch, hdr.PayloadLen, chunk[hdr.Consumed:], sink)
	res.Delivered = delivered
	if err != nil {
		return res, err
	}
	if mem != nil {
		res.Payload = mem.Bytes()
	}
	return res, nil
}

// readHeader reads into buf until the reply header is complete. A read that
// yields no bytes ends the request, with or without an error.
func readHeader(ch io.Reader, buf []byte) (int, error) {
	n := 0
	for n < reply.HeaderLen {
		m, err := ch.Read(buf[n:])
		if m <= 0 {
			if err == nil {
				err = stream.ErrEmptyRead
			}
			return n, fmt.Errorf("%w: read reply header after %d bytes: %w", protocol.ErrCommunication, n, err)
		}
		n += m
		if err != nil && n < reply.HeaderLen {
			return n, fmt.Errorf("%w: read reply header after %d bytes: %w", protocol.ErrCommunication, n, err)
		}
	}
	return n, nil
}

func (r *Request) openSink(hdr reply.Header) (stream.Sink, *stream.BufferSink, error) {
	if !r.dest.IsFile() {
		mem := stream.NewBufferSink()
		return mem, mem, nil
	}
	if hdr.PayloadLen == 0 {
		return &stream.Discard{}, nil, nil
	}
	sink, err := stream.CreateFile(r.dest.Path())
	if err != nil {
		return nil, nil, err
	}
	return sink, nil, nil
}

func (r *Request) transition(next State) {
	log.Debug().
		Str("request_id", r.id).
		Stringer("from", r.state).
		Stringer("to", next).
		Msg("mapreduce.Request transition")
	r.state = next
}

func (r *Request) dump(data []byte, caption string) {
	if r.cfg.Dump == nil {
		return
	}
	if err := diag.HexDump(r.cfg.Dump, data, caption); err != nil {
		log.Debug().Err(err).Msg("mapreduce.Request hexdump failed")
	}
}
