// Package riaktest provides scripted transports and a loopback fake remote for
// map-reduce client tests.
package riaktest

import (
	"bytes"
	"io"
	"net"
	"sync"
)

// Conn replays Reply through a plan of per-read size caps and captures writes.
type Conn struct {
	mu sync.Mutex

	Reply []byte
	// ReadSizes caps each successive read. The last entry repeats. Empty means
	// each read returns as much as the caller asked for.
	ReadSizes []int
	// CutAt truncates the reply stream after this many bytes when > 0. Reads
	// past the cut return (0, io.EOF).
	CutAt int
	// ReadErr, when set, is returned instead of io.EOF at the cut.
	ReadErr error

	WriteErr   error
	ShortWrite bool

	written bytes.Buffer
	reads   int
	pos     int
	closed  bool
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	limit := len(c.Reply)
	if c.CutAt > 0 && c.CutAt < limit {
		limit = c.CutAt
	}
	if c.pos >= limit {
		if c.ReadErr != nil {
			return 0, c.ReadErr
		}
		return 0, io.EOF
	}
	n := len(p)
	if len(c.ReadSizes) > 0 {
		idx := c.reads
		if idx >= len(c.ReadSizes) {
			idx = len(c.ReadSizes) - 1
		}
		if c.ReadSizes[idx] < n {
			n = c.ReadSizes[idx]
		}
	}
	if limit-c.pos < n {
		n = limit - c.pos
	}
	copy(p, c.Reply[c.pos:c.pos+n])
	c.pos += n
	c.reads++
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.WriteErr != nil {
		return 0, c.WriteErr
	}
	if c.ShortWrite && len(p) > 1 {
		c.written.Write(p[:len(p)/2])
		return len(p) / 2, nil
	}
	return c.written.Write(p)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Written returns a copy of every byte written so far.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written.Bytes()...)
}

// Reads reports how many reads were served before the cut, empty ones included.
func (c *Conn) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
