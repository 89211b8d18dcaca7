package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/riakmr/internal/protocol"
)

func TestDialReadWrite(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		buf := make([]byte, 4)
		if _, err := c.Read(buf); err != nil {
			done <- err
			return
		}
		_, err = c.Write(append(buf, '!'))
		done <- err
	}()

	conn, err := Dial(context.Background(), ln.Addr().String(), DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 8)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "ping!" {
		t.Fatalf("unexpected echo: %q", buf[:n])
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestDialFailureIsCommunicationError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Dial(context.Background(), addr, Config{ConnectTimeout: time.Second})
	if !errors.Is(err, protocol.ErrCommunication) {
		t.Fatalf("expected ErrCommunication, got %v", err)
	}
	if _, err := Dial(context.Background(), " ", DefaultConfig()); !errors.Is(err, protocol.ErrCommunication) {
		t.Fatalf("expected ErrCommunication for empty addr, got %v", err)
	}
}

func TestReadTimeoutSurfacesAsError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConn(client, Config{ReadTimeout: 20 * time.Millisecond})
	defer conn.Close()

	n, err := conn.Read(make([]byte, 1))
	if n != 0 || err == nil {
		t.Fatalf("expected timeout, got n=%d err=%v", n, err)
	}
}

func TestCallDeadlinePrefersEarlier(t *testing.T) {
	c := &Conn{cfg: Config{ReadTimeout: time.Hour}}
	c.deadline = time.Now().Add(time.Second)
	if got := c.callDeadline(c.cfg.ReadTimeout); !got.Equal(c.deadline) {
		t.Fatalf("expected explicit deadline, got %v", got)
	}
	c.deadline = time.Time{}
	if got := c.callDeadline(0); !got.IsZero() {
		t.Fatalf("expected no deadline, got %v", got)
	}
}

func TestWithDefaultsFillsNegative(t *testing.T) {
	cfg := Config{ConnectTimeout: -1, ReadTimeout: 0, WriteTimeout: -1}.WithDefaults()
	def := DefaultConfig()
	if cfg.ConnectTimeout != def.ConnectTimeout || cfg.WriteTimeout != def.WriteTimeout {
		t.Fatalf("negative timeouts not defaulted: %+v", cfg)
	}
	if cfg.ReadTimeout != 0 {
		t.Fatalf("zero timeout must stay disabled: %v", cfg.ReadTimeout)
	}
}
