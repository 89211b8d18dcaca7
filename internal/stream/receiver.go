// Package stream drives the payload read loop of a map-reduce reply.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/danmuck/riakmr/internal/protocol/reply"
	"github.com/rs/zerolog/log"
)

const DefaultChunkSize = 1024

var ErrEmptyRead = errors.New("stream: zero-length read")

// Receiver forwards the declared payload from a reader to a sink.
type Receiver struct {
	ChunkSize int
}

func NewReceiver() Receiver {
	return Receiver{ChunkSize: DefaultChunkSize}
}

// Receive forwards exactly declared payload bytes to sink. first holds the
// bytes that arrived after the reply header in the initial read. The single
// terminator byte trailing the payload is consumed but never forwarded. sink
// is closed before Receive returns.
func (rc Receiver) Receive(r io.Reader, declared uint32, first []byte, sink Sink) (delivered int64, err error) {
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = sinkError(cerr)
		}
	}()

	chunkSize := rc.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	want := int64(declared)
	head := first
	if int64(len(head)) > want {
		head = head[:want]
	}
	if len(head) > 0 {
		if err := forward(sink, head); err != nil {
			return 0, err
		}
		delivered = int64(len(head))
	}

	remaining := want + reply.TerminatorLen - int64(len(first))
	buf := make([]byte, chunkSize)
	for remaining > 0 {
		size := int64(chunkSize)
		if remaining < size {
			size = remaining
		}
		n, rerr := r.Read(buf[:size])
		if n <= 0 {
			if rerr == nil {
				rerr = ErrEmptyRead
			}
			return delivered, fmt.Errorf("%w: read after %d of %d bytes: %w",
				protocol.ErrCommunication, delivered, want, rerr)
		}

		chunk := buf[:n]
		if remaining-int64(n) <= 0 {
			chunk = chunk[:n-reply.TerminatorLen]
		}
		if len(chunk) > 0 {
			if err := forward(sink, chunk); err != nil {
				return delivered, err
			}
			delivered += int64(len(chunk))
		}
		remaining -= int64(n)
		log.Trace().
			Int("read", n).
			Int64("remaining", remaining).
			Int64("delivered", delivered).
			Msg("stream.Receive chunk")

		if rerr != nil && remaining > 0 {
			return delivered, fmt.Errorf("%w: read after %d of %d bytes: %w",
				protocol.ErrCommunication, delivered, want, rerr)
		}
	}
	return delivered, nil
}

func forward(sink Sink, p []byte) error {
	n, err := sink.Write(p)
	if err != nil {
		return sinkError(err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short write %d of %d", protocol.ErrSink, n, len(p))
	}
	return nil
}

func sinkError(err error) error {
	if errors.Is(err, protocol.ErrSink) {
		return err
	}
	return fmt.Errorf("%w: %v", protocol.ErrSink, err)
}
