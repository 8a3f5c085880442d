package triage

import (
	"sort"
	"strings"

	"framekit/pattern"
)

const (
	priorityIP        = 100
	priorityException = 90
	priorityStack     = 80
	priorityGeneral   = 60
)

var (
	instructionPointers = map[string]bool{"EIP": true, "RIP": true}
	stackRegisters      = map[string]bool{"ESP": true, "EBP": true, "RSP": true, "RBP": true}
)

// InferArch picks the architecture for a dump. A forced x86 or x64 wins;
// otherwise any 64-bit register name means x64.
func InferArch(parsed ParsedCrash, forced string) pattern.Arch {
	if a, err := pattern.ParseArch(forced); err == nil {
		return a
	}
	for _, r := range parsed.Registers {
		if strings.HasPrefix(r.Name, "R") {
			return pattern.X64
		}
	}
	return pattern.X86
}

func scoreRegister(name string) (int, string) {
	switch {
	case instructionPointers[name]:
		return priorityIP, "instruction pointer register"
	case stackRegisters[name]:
		return priorityStack, "stack/base register"
	default:
		return priorityGeneral, "general-purpose register"
	}
}

func confidence(priority int, widthOK bool) (Confidence, string) {
	switch {
	case priority >= priorityIP && widthOK:
		return High, "IP register with expected width"
	case priority >= priorityStack && widthOK:
		return Medium, "strong signal with expected width"
	case widthOK:
		return Medium, "plausible candidate with expected width"
	default:
		return Low, "value width mismatches expected architecture"
	}
}

// RankCandidates scores every parsed register and exception value and
// returns them best first.
func RankCandidates(parsed ParsedCrash, arch pattern.Arch) []Candidate {
	width := arch.WordSize()
	seen := make(map[[2]string]bool)
	var out []Candidate

	for _, r := range parsed.Registers {
		key := [2]string{r.Name, r.ValueHex}
		if seen[key] {
			continue
		}
		seen[key] = true

		priority, why := scoreRegister(r.Name)
		conf, confWhy := confidence(priority, r.WidthBytes == width)
		out = append(out, Candidate{
			Register:   r.Name,
			ValueHex:   r.ValueHex,
			Priority:   priority,
			Confidence: conf,
			Reason:     why + "; " + confWhy,
			SourceLine: r.SourceLine,
		})
	}

	for _, v := range parsed.ExceptionValues {
		key := [2]string{"", v}
		if seen[key] {
			continue
		}
		seen[key] = true

		c := Candidate{
			ValueHex:   v,
			Priority:   priorityException,
			Confidence: Medium,
			Reason:     "exception/fault value; expected width match",
			SourceLine: "exception context",
		}
		if len(v)/2 != width {
			c.Confidence = Low
			c.Reason = "exception/fault value; width mismatch"
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return confidenceRank(a.Confidence) > confidenceRank(b.Confidence)
	})
	return out
}

func confidenceRank(c Confidence) int {
	switch c {
	case High:
		return 2
	case Medium:
		return 1
	default:
		return 0
	}
}
