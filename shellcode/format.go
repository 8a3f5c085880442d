package shellcode

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// OutputFormat names a rendering produced by Format.
type OutputFormat string

const (
	OutHex     OutputFormat = "hex"
	OutEscaped OutputFormat = "escaped"
	OutPy      OutputFormat = "py"
	OutC       OutputFormat = "c"
)

// FormatOptions tunes the py and c renderings.
type FormatOptions struct {
	// Width is the number of bytes per line.
	Width int

	// VarName is the variable the bytes are assigned to.
	VarName string
}

// DefaultFormatOptions returns 16 bytes per line assigned to sc.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{Width: 16, VarName: "sc"}
}

func escaped(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 4)
	for _, b := range data {
		fmt.Fprintf(&sb, `\x%02x`, b)
	}
	return sb.String()
}

func chunks(data []byte, n int) [][]byte {
	var out [][]byte
	for len(data) > n {
		out = append(out, data[:n])
		data = data[n:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// Format renders data for pasting into an exploit skeleton.
//
//	hex:     deadbeef
//	escaped: \xde\xad\xbe\xef
//	py:      sc = b"\xde\xad..." \
//	             b"..."
//	c:       unsigned char sc[] = {
//	           0xde, 0xad, ...
//	         };
func Format(data []byte, format OutputFormat, opts FormatOptions) (string, error) {
	if opts.Width <= 0 {
		return "", fmt.Errorf("width must be positive (got %d)", opts.Width)
	}
	if opts.VarName == "" {
		opts.VarName = "sc"
	}

	switch OutputFormat(strings.ToLower(string(format))) {
	case OutHex:
		return hex.EncodeToString(data), nil

	case OutEscaped:
		return escaped(data), nil

	case OutPy:
		if len(data) == 0 {
			return opts.VarName + ` = b""`, nil
		}
		var lines []string
		for _, part := range chunks(data, opts.Width) {
			lines = append(lines, `b"`+escaped(part)+`"`)
		}
		return opts.VarName + " = " + strings.Join(lines, " \\\n    "), nil

	case OutC:
		if len(data) == 0 {
			return fmt.Sprintf("unsigned char %s[] = {};", opts.VarName), nil
		}
		var lines []string
		for _, part := range chunks(data, opts.Width) {
			tokens := make([]string, len(part))
			for i, b := range part {
				tokens[i] = fmt.Sprintf("0x%02x", b)
			}
			lines = append(lines, "  "+strings.Join(tokens, ", "))
		}
		return fmt.Sprintf("unsigned char %s[] = {\n%s\n};", opts.VarName, strings.Join(lines, ",\n")), nil

	default:
		return "", fmt.Errorf("unknown format: %s", format)
	}
}
