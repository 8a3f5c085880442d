// Package shellcode parses byte blobs pasted from exploit skeletons and
// debuggers, reports on them and formats them back out.
package shellcode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrParse wraps every parsing failure.
var ErrParse = errors.New("parse error")

func parseErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

var (
	hexRE        = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	cArrayRE     = regexp.MustCompile(`0x[0-9a-fA-F]{1,2}`)
	escapedHexRE = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)
	assignRE     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\s*=\s*`)
)

// InputFormat names a text encoding accepted by Parse.
type InputFormat string

const (
	InHex     InputFormat = "hex"
	InEscaped InputFormat = "escaped"
	InC       InputFormat = "c"
	InPy      InputFormat = "py"
)

// Parse dispatches to the parser for format.
func Parse(text string, format InputFormat) ([]byte, error) {
	switch InputFormat(strings.ToLower(string(format))) {
	case InHex:
		return ParseHex(text)
	case InEscaped:
		return ParseEscaped(text)
	case InC:
		return ParseCArray(text)
	case InPy:
		return ParsePyBytes(text)
	default:
		return nil, fmt.Errorf("unknown input format: %s", format)
	}
}

// ParseHex parses deadbeef, 0xdeadbeef, "de ad be ef", "de,ad,be,ef" or
// "0xde 0xad 0xbe 0xef".
func ParseHex(s string) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, parseErr("empty hex input")
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	var sb strings.Builder
	for _, f := range fields {
		if strings.HasPrefix(f, "0x") || strings.HasPrefix(f, "0X") {
			f = f[2:]
		}
		sb.WriteString(f)
	}
	raw := sb.String()

	switch {
	case raw == "":
		return nil, parseErr("empty hex input after stripping separators")
	case len(raw)%2 != 0:
		return nil, parseErr("hex string must have an even number of nybbles")
	case !hexRE.MatchString(raw):
		return nil, parseErr("invalid characters in hex string")
	}

	out, err := hex.DecodeString(raw)
	if err != nil {
		return nil, parseErr("%v", err)
	}
	return out, nil
}

// ParseEscaped parses \x90\x90\xcc, optionally quoted.
func ParseEscaped(s string) ([]byte, error) {
	text := strings.Trim(strings.TrimSpace(s), `"'`)
	if text == "" {
		return nil, parseErr("empty escaped-hex input")
	}

	matches := escapedHexRE.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil, parseErr(`no \xNN bytes found`)
	}

	out := make([]byte, len(matches))
	for i, m := range matches {
		v, _ := strconv.ParseUint(m[2:], 16, 8)
		out[i] = byte(v)
	}
	return out, nil
}

// ParseCArray parses a C initializer such as
// "unsigned char sc[] = { 0x90, 0x90, 0xcc };".
func ParseCArray(s string) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, parseErr("empty C-array input")
	}

	matches := cArrayRE.FindAllString(s, -1)
	if len(matches) == 0 {
		return nil, parseErr("no 0xNN tokens found in C-array input")
	}

	out := make([]byte, len(matches))
	for i, m := range matches {
		v, _ := strconv.ParseUint(m[2:], 16, 8)
		out[i] = byte(v)
	}
	return out, nil
}

// ParsePyBytes parses a Python bytes literal such as b"\x90\x90\xcc".
// Adjacent literals are concatenated, backslash-newline continuations and an
// optional leading "name =" are accepted, so Format(..., OutPy) output
// parses back.
func ParsePyBytes(s string) ([]byte, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return nil, parseErr("empty python-bytes input")
	}
	text = assignRE.ReplaceAllString(text, "")
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	var out []byte
	first := true
	for {
		text = skipLiteralGap(text)
		if text == "" {
			break
		}

		if text[0] == 'b' || text[0] == 'B' {
			text = text[1:]
		} else if first {
			return nil, parseErr("python literal did not evaluate to bytes")
		}

		lit, rest, err := readPyString(text)
		if err != nil {
			return nil, err
		}
		out = append(out, lit...)
		text = rest
		first = false
	}

	if first {
		return nil, parseErr("no python bytes literal found")
	}
	return out, nil
}

// skipLiteralGap drops whitespace and line continuations between literals.
func skipLiteralGap(s string) string {
	for {
		t := strings.TrimLeftFunc(s, unicode.IsSpace)
		t = strings.TrimPrefix(t, "\\\n")
		t = strings.TrimPrefix(t, "\\\r\n")
		if t == s {
			return s
		}
		s = t
	}
}

// readPyString reads one quoted literal body starting at a quote character.
func readPyString(s string) ([]byte, string, error) {
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return nil, "", parseErr("expected quoted bytes literal")
	}
	quote := s[0]

	var out []byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return out, s[i+1:], nil
		case c == '\n':
			return nil, "", parseErr("unterminated bytes literal")
		case c >= 0x80:
			return nil, "", parseErr("bytes can only contain ASCII literal characters")
		case c != '\\':
			out = append(out, c)
			continue
		}

		i++
		if i >= len(s) {
			break
		}
		switch e := s[i]; e {
		case '\\', '\'', '"':
			out = append(out, e)
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'a':
			out = append(out, 0x07)
		case 'b':
			out = append(out, 0x08)
		case 'f':
			out = append(out, 0x0c)
		case 'v':
			out = append(out, 0x0b)
		case '\n':
			// Escaped newline inside a literal is dropped.
		case 'x':
			if i+3 > len(s) {
				return nil, "", parseErr(`truncated \xNN escape`)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, "", parseErr(`invalid \x escape %q`, s[i-1:i+3])
			}
			out = append(out, byte(v))
			i += 2
		default:
			if e >= '0' && e <= '7' {
				j := i
				for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				v, _ := strconv.ParseUint(s[i:j], 8, 16)
				out = append(out, byte(v))
				i = j - 1
				continue
			}
			// Unknown escapes keep the backslash.
			out = append(out, '\\', e)
		}
	}

	return nil, "", parseErr("unterminated bytes literal")
}
