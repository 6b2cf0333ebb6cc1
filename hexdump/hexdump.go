// Package hexdump renders raw memory reads for the driver program.
package hexdump

import (
	"fmt"
	"strings"
	"unicode"
)

// Options customizes the dump layout.
type Options struct {
	// BytesPerLine is the number of bytes displayed per line
	BytesPerLine int

	// ShowASCII adds the printable-character gutter
	ShowASCII bool

	// BaseAddress is the address of data[0], shown in the offset column
	BaseAddress uint64
}

// DefaultOptions returns the classic 16-byte layout with an ASCII gutter.
func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		ShowASCII:    true,
	}
}

// Dump formats data as hex lines.
func Dump(data []byte, opts Options) string {
	if opts.BytesPerLine <= 0 {
		opts.BytesPerLine = 16
	}

	var sb strings.Builder
	for start := 0; start < len(data); start += opts.BytesPerLine {
		end := start + opts.BytesPerLine
		if end > len(data) {
			end = len(data)
		}
		line := data[start:end]

		fmt.Fprintf(&sb, "%016X  ", opts.BaseAddress+uint64(start))

		for i := 0; i < opts.BytesPerLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&sb, "%02X ", line[i])
			} else {
				sb.WriteString("   ")
			}
		}

		if opts.ShowASCII {
			sb.WriteString(" |")
			for _, b := range line {
				if r := rune(b); r < unicode.MaxASCII && unicode.IsPrint(r) {
					sb.WriteRune(r)
				} else {
					sb.WriteByte('.')
				}
			}
			sb.WriteByte('|')
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
