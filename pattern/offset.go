package pattern

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Query is a value read back from a crashed process.
//
// Use HexQuery, IntQuery or RawQuery to build one.
type Query struct {
	hex   string
	value uint64
	raw   []byte
	kind  queryKind
}

type queryKind int

const (
	queryHex queryKind = iota
	queryInt
	queryBytes
)

// HexQuery is a register value as printed by a debugger, e.g. "42306142" or
// "0x42306142".
func HexQuery(s string) Query { return Query{hex: s, kind: queryHex} }

// IntQuery is a register value as an integer.
func IntQuery(v uint64) Query { return Query{value: v, kind: queryInt} }

// RawQuery is a byte sequence already in memory order.
func RawQuery(b []byte) Query { return Query{raw: b, kind: queryBytes} }

// Resolver finds where a query sits inside a regenerated pattern.
type Resolver struct {
	cfg Config
	gen *Generator
}

// NewResolver validates cfg and returns a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return &Resolver{cfg: gen.cfg, gen: gen}, nil
}

// FindOffset regenerates a pattern of the given length and returns the
// index of the first occurrence of q. When raw is set, register values are
// not byte-swapped for little endian targets.
func (r *Resolver) FindOffset(length int, q Query, raw bool) (int, bool, error) {
	needle, err := r.Normalize(q, raw)
	if err != nil {
		return 0, false, err
	}

	if len(needle) != r.cfg.WordSize {
		return 0, false, fmt.Errorf("query length %d does not match word size %d", len(needle), r.cfg.WordSize)
	}

	pattern, err := r.gen.Create(length)
	if err != nil {
		return 0, false, err
	}

	offset := bytes.Index(pattern, needle)
	if offset < 0 {
		return 0, false, nil
	}
	return offset, true, nil
}

// Normalize converts q into the byte sequence to search for.
func (r *Resolver) Normalize(q Query, raw bool) ([]byte, error) {
	var b []byte

	switch q.kind {
	case queryBytes:
		return q.raw, nil

	case queryInt:
		if r.cfg.WordSize == 4 && q.value > 0xffffffff {
			return nil, fmt.Errorf("value %#x does not fit in %d bytes", q.value, r.cfg.WordSize)
		}
		full := binary.BigEndian.AppendUint64(nil, q.value)
		b = full[8-r.cfg.WordSize:]

	case queryHex:
		s := strings.TrimSpace(q.hex)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s = s[2:]
		}
		if len(s)%2 != 0 {
			return nil, fmt.Errorf("query string %s is not a hex string", q.hex)
		}
		decoded, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("query string %s is not a hex string: %w", q.hex, err)
		}
		b = decoded

	default:
		return nil, fmt.Errorf("unsupported query kind %d", q.kind)
	}

	if !raw && r.cfg.Endianness == Little {
		slices.Reverse(b)
	}
	return b, nil
}
