package pattern

import "fmt"

// Generator produces cyclic patterns for a Config.
type Generator struct {
	cfg Config
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Capacity is the longest pattern the alphabets can produce before repeating.
func (g *Generator) Capacity() int {
	n := len(g.cfg.Alphabets)
	for _, a := range g.cfg.Alphabets {
		n *= len(a)
	}
	return n
}

// Create returns the first length bytes of the pattern.
//
// Tokens are emitted in odometer order with the last alphabet varying
// fastest: Aa0 Aa1 ... Aa9 Ab0 ... Zz9.
func (g *Generator) Create(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("length must be positive (got %d)", length)
	}
	if capacity := g.Capacity(); length > capacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrLengthExceeded, length, capacity)
	}

	alphabets := g.cfg.Alphabets
	idx := make([]int, len(alphabets))
	out := make([]byte, 0, length+len(alphabets))

	for len(out) < length {
		for i, a := range alphabets {
			out = append(out, a[idx[i]])
		}

		// Advance the odometer.
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(alphabets[i]) {
				break
			}
			idx[i] = 0
		}
	}

	return out[:length], nil
}
