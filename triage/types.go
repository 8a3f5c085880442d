// Package triage parses debugger crash output, ranks the register and fault
// values most likely to hold cyclic pattern bytes, and recommends the
// pattern offset lookups to run next.
package triage

import (
	"encoding/json"
	"errors"

	"framekit/pattern"
)

var (
	// ErrEmptyInput is returned when the crash text is blank.
	ErrEmptyInput = errors.New("no crash text provided")

	// ErrNoCandidates is returned, along with a populated Result, when no
	// register or exception value could be parsed.
	ErrNoCandidates = errors.New("no register or exception candidates parsed")
)

// Confidence grades how likely a candidate is to be pattern data.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// ArchAuto asks InferArch to detect the architecture from register names.
const ArchAuto = "auto"

// RegisterValue is one register assignment found in the dump.
type RegisterValue struct {
	Name       string `json:"name"`
	ValueHex   string `json:"value_hex"`
	WidthBytes int    `json:"width_bytes"`
	SourceLine string `json:"source_line"`
}

// ParsedCrash is everything ParseDump extracted from a dump.
type ParsedCrash struct {
	Registers       []RegisterValue `json:"registers"`
	Exception       string          `json:"exception,omitempty"`
	ExceptionValues []string        `json:"exception_values"`
}

// Candidate is a value worth looking up in the pattern.
type Candidate struct {
	// Register is empty for values taken from exception context.
	Register   string     `json:"register"`
	ValueHex   string     `json:"value_hex"`
	Priority   int        `json:"priority"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
	SourceLine string     `json:"source_line"`
}

// MarshalJSON writes an empty Register as null.
func (c Candidate) MarshalJSON() ([]byte, error) {
	type plain Candidate
	return json.Marshal(struct {
		plain
		Register *string `json:"register"`
	}{plain(c), nullable(c.Register)})
}

// Label names the candidate source for display.
func (c Candidate) Label() string {
	if c.Register == "" {
		return "EXCEPTION"
	}
	return c.Register
}

// Recommendation is a ready-to-run offset lookup.
type Recommendation struct {
	Query   string `json:"query"`
	Raw     bool   `json:"raw"`
	Command string `json:"command"`
	BasedOn string `json:"based_on"`
}

// Result is the outcome of a triage run.
type Result struct {
	DetectedArch    pattern.Arch       `json:"detected_arch"`
	Endianness      pattern.Endianness `json:"endianness"`
	Exception       string             `json:"exception"`
	Candidates      []Candidate        `json:"candidates"`
	Recommendations []Recommendation   `json:"recommendations"`
	Notes           []string           `json:"notes"`
}

// MarshalJSON writes an undetected Exception as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Exception *string `json:"exception"`
	}{plain(r), nullable(r.Exception)})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
