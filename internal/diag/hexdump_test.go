package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestHexDumpLayout(t *testing.T) {
	data := append([]byte("riak"), 0x00, 0x83, 'l')
	data = append(data, bytes.Repeat([]byte{'z'}, 12)...)

	var out bytes.Buffer
	if err := HexDump(&out, data, "sending"); err != nil {
		t.Fatalf("hexdump: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected caption, ruler and 2 rows, got %d lines:\n%s", len(lines), out.String())
	}
	if lines[0] != "---------> sending <--------- (19 bytes)" {
		t.Fatalf("unexpected caption: %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "+0000   72 69 61 6b 00 83 6c 7a") {
		t.Fatalf("unexpected first row: %q", lines[2])
	}
	if got := lines[2][asciiColumn:]; got != "riak..lzzzzzzzzz" {
		t.Fatalf("unexpected ascii column: %q", got)
	}
	if !strings.HasPrefix(lines[3], "+0010   7a 7a 7a") {
		t.Fatalf("unexpected second row: %q", lines[3])
	}
	if got := strings.TrimRight(lines[3][asciiColumn:], " "); got != "zzz" {
		t.Fatalf("stale bytes in last row: %q", got)
	}
}

func TestHexDumpEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := HexDump(&out, nil, "received"); err != nil {
		t.Fatalf("hexdump: %v", err)
	}
	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("expected caption and ruler only: %q", out.String())
	}
}
