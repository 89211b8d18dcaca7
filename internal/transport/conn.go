// Package transport provides the blocking byte channel a map-reduce request
// runs over.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Channel is a blocking, bidirectional byte stream. One request and one
// reply travel over a channel before it is closed.
type Channel interface {
	io.Reader
	io.Writer
}

// Config holds per-connection timeouts. Zero disables a timeout.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
	}
}

// WithDefaults fills negative timeouts from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout < 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

// Conn adapts a net.Conn, applying per-call deadlines from Config.
type Conn struct {
	conn     net.Conn
	cfg      Config
	deadline time.Time
}

// Dial opens a TCP connection to addr.
func Dial(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: dial: empty address", protocol.ErrCommunication)
	}
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Warn().Str("addr", addr).Err(err).Msg("transport.Dial failed")
		return nil, fmt.Errorf("%w: dial %s: %v", protocol.ErrCommunication, addr, err)
	}
	log.Debug().Str("addr", addr).Msg("transport.Dial connected")
	return NewConn(raw, cfg), nil
}

func NewConn(conn net.Conn, cfg Config) *Conn {
	return &Conn{conn: conn, cfg: cfg}
}

func (c *Conn) Read(p []byte) (int, error) {
	if err := c.conn.SetReadDeadline(c.callDeadline(c.cfg.ReadTimeout)); err != nil {
		return 0, err
	}
	return c.conn.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.conn.SetWriteDeadline(c.callDeadline(c.cfg.WriteTimeout)); err != nil {
		return 0, err
	}
	return c.conn.Write(p)
}

// SetDeadline bounds every later call by t, on top of the per-call timeouts.
func (c *Conn) SetDeadline(t time.Time) error {
	c.deadline = t
	return c.conn.SetDeadline(t)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) callDeadline(timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if !c.deadline.IsZero() && (d.IsZero() || c.deadline.Before(d)) {
		d = c.deadline
	}
	return d
}
