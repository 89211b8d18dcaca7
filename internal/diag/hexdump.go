// Package diag renders wire bytes for troubleshooting.
package diag

import (
	"bufio"
	"fmt"
	"io"
)

const (
	bytesPerRow = 16
	hexColumn   = 8
	asciiColumn = 58
	lineWidth   = asciiColumn + bytesPerRow + 1

	ruler = "        +0          +4          +8          +c            0   4   8   c   \n"
)

const hexDigits = "0123456789abcdef"

// HexDump writes data as offset, hex and ASCII columns, 16 bytes per row.
func HexDump(w io.Writer, data []byte, caption string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "---------> %s <--------- (%d bytes)\n", caption, len(data))
	bw.WriteString(ruler)

	line := make([]byte, lineWidth)
	for off := 0; off < len(data); off += bytesPerRow {
		for i := range line {
			line[i] = ' '
		}
		line[lineWidth-1] = '\n'
		copy(line, fmt.Sprintf("+%04x", off))

		end := off + bytesPerRow
		if end > len(data) {
			end = len(data)
		}
		for j, b := range data[off:end] {
			line[hexColumn+j*3] = hexDigits[b>>4]
			line[hexColumn+j*3+1] = hexDigits[b&0x0f]
			if b > 31 && b < 127 {
				line[asciiColumn+j] = b
			} else {
				line[asciiColumn+j] = '.'
			}
		}
		bw.Write(line)
	}
	return bw.Flush()
}
