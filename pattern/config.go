// Package pattern generates deterministic cyclic patterns and locates the
// offset of an overwritten register value inside them.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// Endianness is the byte order of the target process.
type Endianness string

const (
	Little Endianness = "little"
	Big    Endianness = "big"
)

// ParseEndianness accepts "little" or "big" in any case.
func ParseEndianness(s string) (Endianness, error) {
	switch e := Endianness(strings.ToLower(s)); e {
	case Little, Big:
		return e, nil
	default:
		return "", fmt.Errorf("unknown endianness %q (want little or big)", s)
	}
}

// Arch is a target architecture.
type Arch string

const (
	X86 Arch = "x86"
	X64 Arch = "x64"
)

// ParseArch accepts "x86" or "x64".
func ParseArch(s string) (Arch, error) {
	switch a := Arch(strings.ToLower(s)); a {
	case X86, X64:
		return a, nil
	default:
		return "", fmt.Errorf("unknown arch %q (want x86 or x64)", s)
	}
}

// WordSize returns the pointer width in bytes.
func (a Arch) WordSize() int {
	if a == X64 {
		return 8
	}
	return 4
}

var (
	ErrInvalidWordSize = errors.New("word size must be 4 or 8")
	ErrLengthExceeded  = errors.New("length exceeds pattern capacity")
)

// Config controls pattern generation and offset lookup.
type Config struct {
	// WordSize is the register width in bytes (4 or 8).
	WordSize int

	// Endianness decides how register values map to memory order.
	Endianness Endianness

	// Alphabets are combined as a cartesian product, one byte from each per token.
	Alphabets [][]byte
}

// DefaultAlphabets returns the classic upper/lower/digit alphabet set.
func DefaultAlphabets() [][]byte {
	return [][]byte{
		[]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ"),
		[]byte("abcdefghijklmnopqrstuvwxyz"),
		[]byte("0123456789"),
	}
}

// DefaultConfig returns a 4-byte little endian configuration.
func DefaultConfig() Config {
	return Config{
		WordSize:   4,
		Endianness: Little,
		Alphabets:  DefaultAlphabets(),
	}
}

// ForArch returns the default configuration sized for arch.
func ForArch(arch Arch, endianness Endianness) Config {
	cfg := DefaultConfig()
	cfg.WordSize = arch.WordSize()
	cfg.Endianness = endianness
	return cfg
}

// Validate checks the configuration, filling in default alphabets when unset.
func (c *Config) Validate() error {
	if c.WordSize != 4 && c.WordSize != 8 {
		return fmt.Errorf("%w (got %d)", ErrInvalidWordSize, c.WordSize)
	}

	switch c.Endianness {
	case Little, Big:
	case "":
		c.Endianness = Little
	default:
		return fmt.Errorf("unknown endianness %q", c.Endianness)
	}

	if c.Alphabets == nil {
		c.Alphabets = DefaultAlphabets()
	}
	if len(c.Alphabets) == 0 {
		return errors.New("alphabets must be a non-empty list of non-empty byte sets")
	}
	for _, a := range c.Alphabets {
		if len(a) == 0 {
			return errors.New("alphabets must be a non-empty list of non-empty byte sets")
		}
	}

	return nil
}
