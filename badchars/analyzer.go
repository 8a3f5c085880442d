// Package badchars finds bytes a target mangles or drops, and knows which
// bytes common transport contexts cannot carry.
package badchars

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Result is the outcome of comparing sent bytes with bytes read back from
// memory.
type Result struct {
	// Badchars are expected bytes that did not arrive intact, in first-seen order.
	Badchars []byte

	// Transformed maps an expected byte to the byte that replaced it.
	Transformed map[byte]byte
}

// Clean reports whether every byte arrived intact.
func (r Result) Clean() bool {
	return len(r.Badchars) == 0 && len(r.Transformed) == 0
}

// Analyzer compares expected and observed byte streams.
type Analyzer struct {
	exclude map[byte]bool
}

// NewAnalyzer returns an Analyzer that leaves exclude out of generated test
// bytes. A nil exclude list excludes nothing.
func NewAnalyzer(exclude []byte) *Analyzer {
	ex := make(map[byte]bool, len(exclude))
	for _, b := range exclude {
		ex[b] = true
	}
	return &Analyzer{exclude: ex}
}

// Excluded returns the excluded bytes in ascending order.
func (a *Analyzer) Excluded() []byte {
	out := make([]byte, 0, len(a.exclude))
	for b := range a.exclude {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// GenerateTestBytes returns 0x00..0xff minus the excluded bytes.
func (a *Analyzer) GenerateTestBytes() []byte {
	out := make([]byte, 0, 256)
	for i := 0; i < 256; i++ {
		if !a.exclude[byte(i)] {
			out = append(out, byte(i))
		}
	}
	return out
}

// Analyze walks expected and observed in step. On a mismatch the byte is a
// transformation when the streams line up again right after it; otherwise,
// when the observed byte reappears later in expected, the skipped expected
// bytes were dropped. Anything missing from the end of observed is bad too.
//
// Excluded bytes only affect generation; they are still reported when
// present in expected.
func (a *Analyzer) Analyze(expected, observed []byte) Result {
	res := Result{Transformed: make(map[byte]byte)}
	seen := make(map[byte]bool)

	bad := func(b byte) {
		if !seen[b] {
			seen[b] = true
			res.Badchars = append(res.Badchars, b)
		}
	}

	i, j := 0, 0
	for i < len(expected) && j < len(observed) {
		e, o := expected[i], observed[j]
		if e == o {
			i++
			j++
			continue
		}

		resync := i+1 < len(expected) && j+1 < len(observed) && expected[i+1] == observed[j+1]
		if !resync {
			if k := bytes.IndexByte(expected[i+1:], o); k >= 0 {
				for _, b := range expected[i : i+1+k] {
					bad(b)
				}
				i += 1 + k
				continue
			}
		}

		bad(e)
		res.Transformed[e] = o
		i++
		j++
	}

	for _, b := range expected[i:] {
		bad(b)
	}

	return res
}

// ByteList marshals to JSON as two-digit hex strings rather than base64.
type ByteList []byte

// MarshalJSON implements json.Marshaler.
func (l ByteList) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(l)*5)
	out = append(out, '[')
	for i, b := range l {
		if i > 0 {
			out = append(out, ',')
		}
		out = fmt.Appendf(out, "%q", fmt.Sprintf("%02x", b))
	}
	return append(out, ']'), nil
}

// String renders the bytes space separated, e.g. "00 0a 0d".
func (l ByteList) String() string {
	parts := make([]string, len(l))
	for i, b := range l {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}
