package riaktest

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/riakmr/internal/protocol/frame"
	"github.com/danmuck/riakmr/internal/protocol/reply"
)

// Server is a loopback remote that answers every request frame with one
// fixed reply, written in chunks, then closes the connection.
type Server struct {
	ln        net.Listener
	msg       []byte
	chunkSize int

	mu       sync.Mutex
	requests [][]byte
	wg       sync.WaitGroup
}

// NewServer starts a remote on 127.0.0.1 and stops it during test cleanup.
func NewServer(t testing.TB, status int8, payload []byte) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	msg, err := reply.Encode(status, payload)
	if err != nil {
		_ = ln.Close()
		t.Fatalf("encode reply: %v", err)
	}
	s := &Server{ln: ln, msg: msg, chunkSize: 700}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		_ = s.ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// Requests returns the term payloads received so far.
func (s *Server) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	payload, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, payload)
	s.mu.Unlock()

	msg := s.msg
	for off := 0; off < len(msg); off += s.chunkSize {
		end := off + s.chunkSize
		if end > len(msg) {
			end = len(msg)
		}
		if _, err := conn.Write(msg[off:end]); err != nil {
			return
		}
	}
}
