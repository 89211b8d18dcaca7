package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/riakmr/internal/testutil/riaktest"
	"github.com/danmuck/riakmr/internal/testutil/testlog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func splitAddr(t *testing.T, addr string) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	return host, port
}

func TestFetchPrintsReturnAndDump(t *testing.T) {
	testlog.Start(t)
	remote := riaktest.NewServer(t, 2, []byte("HELLO-TERMINAL"))
	host, port := splitAddr(t, remote.Addr())

	out, err := execute(t, "fetch", host, port, "--bucket", "terminals", "--key", "tbk_00001", "--serial", "000-000-000")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(out, "ret=14 ret_code=2") {
		t.Fatalf("missing summary line: %q", out)
	}
	if !strings.Contains(out, "HELLO-TERMINAL") {
		t.Fatalf("missing ascii column of hex dump: %q", out)
	}
	if reqs := remote.Requests(); len(reqs) != 1 || !bytes.Contains(reqs[0], []byte("000-000-000")) {
		t.Fatalf("serial not sent")
	}
}

func TestFetchTimeoutFlag(t *testing.T) {
	testlog.Start(t)
	zero := []byte{'d', 0, 7, 't', 'i', 'm', 'e', 'o', 'u', 't', 'a', 0x00, 'j'}
	fiveSeconds := []byte{'d', 0, 7, 't', 'i', 'm', 'e', 'o', 'u', 't', 'b', 0x00, 0x00, 0x13, 0x88, 'j'}

	cases := []struct {
		name  string
		extra []string
		tail  []byte
	}{
		{"default", nil, fiveSeconds},
		{"explicit zero", []string{"--timeout-ms", "0"}, zero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := riaktest.NewServer(t, 0, []byte("x"))
			host, port := splitAddr(t, remote.Addr())
			args := append([]string{"fetch", host, port, "--bucket", "b", "--key", "k"}, tc.extra...)
			if _, err := execute(t, args...); err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			reqs := remote.Requests()
			if len(reqs) != 1 || !bytes.HasSuffix(reqs[0], tc.tail) {
				t.Fatalf("unexpected timeout encoding in % x", reqs)
			}
		})
	}
}

func TestFetchToFile(t *testing.T) {
	testlog.Start(t)
	payload := bytes.Repeat([]byte{0x42, 0x4d}, 2048)
	remote := riaktest.NewServer(t, 0, payload)
	host, port := splitAddr(t, remote.Addr())
	path := filepath.Join(t.TempDir(), "asset.bin")

	out, err := execute(t, "fetch", host, port, "--bucket", "b", "--key", "k", "--out", path)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if strings.TrimSpace(out) != "ret=4096 ret_code=0" {
		t.Fatalf("unexpected output: %q", out)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("file payload mismatch (len=%d)", len(got))
	}
}

func TestFetchRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	if _, err := execute(t, "fetch", "127.0.0.1"); err == nil {
		t.Fatalf("expected arg count error")
	}
	if _, err := execute(t, "fetch", "127.0.0.1", "70000", "--bucket", "b", "--key", "k"); err == nil {
		t.Fatalf("expected invalid port error")
	}
	if _, err := execute(t, "fetch", "127.0.0.1", "8087"); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, name := range []string{"riakmr.toml", "riakmr.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := execute(t, "config", "init", path); err != nil {
			t.Fatalf("init %s: %v", name, err)
		}
		if _, err := execute(t, "config", "init", path); err == nil {
			t.Fatalf("init %s: expected refusal to overwrite", name)
		}
		out, err := execute(t, "config", "validate", path)
		if err != nil || !strings.Contains(out, "valid") {
			t.Fatalf("validate %s: out=%q err=%v", name, out, err)
		}
		if _, err := execute(t, "--config", path, "fetch", "127.0.0.1", "x"); err == nil {
			t.Fatalf("expected invalid port with %s", name)
		}
	}
}

func TestJoinAddr(t *testing.T) {
	cases := []struct {
		host, port, want string
		ok               bool
	}{
		{"127.0.0.1", "8087", "127.0.0.1:8087", true},
		{"::1", "8087", "[::1]:8087", true},
		{"riak.local", "0", "", false},
		{"riak.local", "abc", "", false},
	}
	for _, tc := range cases {
		got, err := joinAddr(tc.host, tc.port)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("joinAddr(%q,%q)=%q,%v", tc.host, tc.port, got, err)
		}
	}
}
