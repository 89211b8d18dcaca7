package stream

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/riakmr/internal/protocol"
)

// Sink receives streamed payload bytes. Close is called exactly once by the
// receiver on every exit path.
type Sink interface {
	io.Writer
	Close() error
}

// FileSink writes the payload to a file on disk.
type FileSink struct {
	path   string
	f      *os.File
	closed bool
}

// CreateFile opens path for writing, truncating any existing content.
func CreateFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", protocol.ErrSink, path, err)
	}
	return &FileSink{path: path, f: f}, nil
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: write %s: file closed", protocol.ErrSink, s.path)
	}
	n, err := s.f.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %v", protocol.ErrSink, s.path, err)
	}
	return n, nil
}

// Close is safe to call more than once.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", protocol.ErrSink, s.path, err)
	}
	return nil
}

// Closed reports whether the underlying file handle has been released.
func (s *FileSink) Closed() bool { return s.closed }

// BufferSink appends the payload to memory. It never fails.
type BufferSink struct {
	buf bytes.Buffer
}

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *BufferSink) Close() error { return nil }

func (s *BufferSink) Bytes() []byte { return s.buf.Bytes() }

func (s *BufferSink) Len() int { return s.buf.Len() }

// Discard drops the payload while counting it.
type Discard struct {
	N int64
}

func (d *Discard) Write(p []byte) (int, error) {
	d.N += int64(len(p))
	return len(p), nil
}

func (d *Discard) Close() error { return nil }
