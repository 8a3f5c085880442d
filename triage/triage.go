package triage

import (
	"fmt"
	"strings"

	"framekit/pattern"
)

// Options configures a triage run.
type Options struct {
	// Length is the cyclic pattern length sent to the target.
	Length int

	// Arch is x86, x64 or auto.
	Arch string

	Endianness    pattern.Endianness
	AllCandidates bool

	// Command overrides the offset command prefix in recommendations.
	Command string
}

// Validate checks options and fills defaults.
func (o *Options) Validate() error {
	if o.Length <= 0 {
		return fmt.Errorf("--length must be a positive integer (got %d)", o.Length)
	}
	if o.Arch == "" {
		o.Arch = ArchAuto
	}
	if o.Arch != ArchAuto {
		if _, err := pattern.ParseArch(o.Arch); err != nil {
			return err
		}
	}
	if o.Endianness == "" {
		o.Endianness = pattern.Little
	}
	if _, err := pattern.ParseEndianness(string(o.Endianness)); err != nil {
		return err
	}
	return nil
}

// Fingerprint identifies the options for result caching.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("len=%d arch=%s endian=%s all=%t cmd=%s",
		o.Length, o.Arch, o.Endianness, o.AllCandidates, o.Command)
}

// Triage runs the full pipeline on one dump: parse, infer arch, rank and
// recommend. When nothing usable was parsed the populated Result is
// returned together with ErrNoCandidates.
func Triage(text string, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}

	parsed := ParseDump(text)
	arch := InferArch(parsed, opts.Arch)
	candidates := RankCandidates(parsed, arch)

	recs, notes := BuildRecommendations(candidates, RecommendOptions{
		Length:        opts.Length,
		Arch:          arch,
		Endianness:    opts.Endianness,
		AllCandidates: opts.AllCandidates,
		Command:       opts.Command,
	})

	shown := candidates
	if !opts.AllCandidates && len(shown) > topCandidates {
		shown = shown[:topCandidates]
	}

	result := Result{
		DetectedArch:    arch,
		Endianness:      opts.Endianness,
		Exception:       parsed.Exception,
		Candidates:      nonNil(shown),
		Recommendations: nonNil(recs),
		Notes:           nonNil(notes),
	}

	if len(candidates) == 0 {
		return result, ErrNoCandidates
	}
	return result, nil
}

// nonNil keeps JSON output as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
