package triage

import (
	"fmt"

	"framekit/pattern"
)

// DefaultOffsetCommand is the command prefix used in recommendations.
const DefaultOffsetCommand = "framekit pattern offset"

// topCandidates is how many candidates get recommendations by default.
const topCandidates = 3

// RecommendOptions controls BuildRecommendations.
type RecommendOptions struct {
	Length        int
	Arch          pattern.Arch
	Endianness    pattern.Endianness
	AllCandidates bool

	// Command overrides DefaultOffsetCommand.
	Command string
}

// fitQuery sizes a value to the word width, keeping the low-order bytes of
// wider values. An empty query means the value is unusable.
func fitQuery(valueHex string, arch pattern.Arch) (query, note string) {
	want := arch.WordSize() * 2
	switch {
	case len(valueHex) == want:
		return valueHex, ""
	case len(valueHex) > want:
		trimmed := valueHex[len(valueHex)-want:]
		return trimmed, fmt.Sprintf("trimmed wider value %s to %s", valueHex, trimmed)
	default:
		return "", fmt.Sprintf("value %s too short for %s", valueHex, arch)
	}
}

// BuildRecommendations turns candidates into offset lookups, one normal and
// one raw variant per usable value.
func BuildRecommendations(candidates []Candidate, opts RecommendOptions) ([]Recommendation, []string) {
	command := opts.Command
	if command == "" {
		command = DefaultOffsetCommand
	}

	selected := candidates
	if !opts.AllCandidates && len(selected) > topCandidates {
		selected = selected[:topCandidates]
	}

	var recs []Recommendation
	var notes []string

	for _, c := range selected {
		query, note := fitQuery(c.ValueHex, opts.Arch)
		if note != "" {
			notes = append(notes, c.Label()+": "+note)
		}
		if query == "" {
			continue
		}

		base := fmt.Sprintf("%s -l %d -q %s --arch %s --endianness %s",
			command, opts.Length, query, opts.Arch, opts.Endianness)
		recs = append(recs,
			Recommendation{Query: query, Command: base, BasedOn: c.Label()},
			Recommendation{Query: query, Raw: true, Command: base + " --raw", BasedOn: c.Label()},
		)
	}

	switch {
	case len(candidates) == 0:
		notes = append(notes, "No register or exception candidates were parsed from the input.")
	case len(recs) == 0:
		notes = append(notes, "Candidates were found, but none had compatible width for recommendations.")
	}

	return recs, notes
}
