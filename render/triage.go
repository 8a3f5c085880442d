// Package render formats tool results for the terminal. Every renderer
// writes plain text to w; JSON renders the same values for scripts.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"framekit/triage"
)

// JSON writes v as indented JSON followed by a newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Triage writes the human crash triage summary.
func Triage(w io.Writer, result triage.Result) {
	var lines []string

	exception := result.Exception
	if exception == "" {
		exception = "not detected"
	}

	lines = append(lines,
		"[*] Crash triage summary",
		fmt.Sprintf("  arch: %s", result.DetectedArch),
		fmt.Sprintf("  endianness: %s", result.Endianness),
		fmt.Sprintf("  exception: %s", exception),
		"",
	)

	if len(result.Candidates) > 0 {
		lines = append(lines, "[*] Candidates")
		for _, c := range result.Candidates {
			lines = append(lines, fmt.Sprintf("  %s: %s (%s) - %s", c.Label(), c.ValueHex, c.Confidence, c.Reason))
		}
	} else {
		lines = append(lines, "[-] No candidates parsed")
	}

	lines = append(lines, "")
	if len(result.Recommendations) > 0 {
		lines = append(lines, "[*] Suggested commands")
		for _, r := range result.Recommendations {
			lines = append(lines, "  "+r.Command)
		}
	} else {
		lines = append(lines, "[-] No command recommendations generated")
	}

	if len(result.Notes) > 0 {
		lines = append(lines, "", "[*] Notes")
		for _, n := range result.Notes {
			lines = append(lines, "  - "+n)
		}
	}

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// Batch writes one block per dump followed by a tally.
func Batch(w io.Writer, results []triage.FileResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "[-] No dump files found")
		return
	}

	ok := 0
	for i, fr := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n", fr.Path)
		if fr.Result != nil {
			Triage(w, *fr.Result)
		}
		if fr.Error != "" {
			fmt.Fprintf(w, "[-] %s\n", fr.Error)
		}
		if fr.OK() {
			ok++
		}
	}

	fmt.Fprintf(w, "\n[*] %d/%d dumps triaged\n", ok, len(results))
}

// TriageEvent writes a single watch mode result.
func TriageEvent(w io.Writer, fr triage.FileResult) {
	if fr.Result == nil {
		fmt.Fprintf(w, "[-] %s: %s\n", fr.Path, fr.Error)
		return
	}
	top := "no candidates"
	if len(fr.Result.Candidates) > 0 {
		c := fr.Result.Candidates[0]
		top = fmt.Sprintf("%s=%s (%s)", c.Label(), c.ValueHex, c.Confidence)
	}
	fmt.Fprintf(w, "[*] %s: %s %s\n", fr.Path, fr.Result.DetectedArch, top)
	for _, r := range fr.Result.Recommendations {
		fmt.Fprintf(w, "  %s\n", r.Command)
	}
}
