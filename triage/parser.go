package triage

import (
	"regexp"
	"strings"
)

var (
	registerRE = regexp.MustCompile(`(?i)\b(EIP|ESP|EBP|EAX|EBX|ECX|EDX|ESI|EDI|` +
		`RIP|RSP|RBP|RAX|RBX|RCX|RDX|RSI|RDI|R(?:1[0-5]|[89]))\b` +
		`\s*(?:=|:|\s)\s*(0x[0-9a-fA-F]+|[0-9a-fA-F]{4,16})\b`)

	exceptionCodeRE  = regexp.MustCompile(`(?i)\b(c0000005)\b`)
	exceptionValueRE = regexp.MustCompile(`(?i)\b(?:ExceptionAddress|Faulting(?:\s+address)?|` +
		`Attempt(?:ed)?\s+to\s+(?:read|write))\b.*?(0x[0-9a-fA-F]+|[0-9a-fA-F]{8,16})`)

	genericHexRE = regexp.MustCompile(`\b(?:0x)?[0-9a-fA-F]{8,16}\b`)
)

// maxFallbackValues caps how many loose hex tokens are kept when a dump has
// no recognizable register lines.
const maxFallbackValues = 3

// normalizeHex lowercases, strips 0x and pads to whole bytes.
func normalizeHex(v string) string {
	v = strings.ToLower(v)
	v = strings.TrimPrefix(v, "0x")
	if len(v)%2 == 1 {
		v = "0" + v
	}
	return v
}

// ParseDump extracts registers, the exception code and faulting values from
// WinDbg, x64dbg, Immunity or gdb style crash text.
func ParseDump(text string) ParsedCrash {
	var parsed ParsedCrash
	seenRegs := make(map[[2]string]bool)
	seenValues := make(map[string]bool)

	addValue := func(v string) bool {
		v = normalizeHex(v)
		if seenValues[v] {
			return false
		}
		seenValues[v] = true
		parsed.ExceptionValues = append(parsed.ExceptionValues, v)
		return true
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := exceptionCodeRE.FindStringSubmatch(line); m != nil {
			parsed.Exception = strings.ToLower(m[1])
		} else if parsed.Exception == "" && strings.Contains(strings.ToLower(line), "access violation") {
			parsed.Exception = "access violation"
		}

		for _, m := range registerRE.FindAllStringSubmatch(line, -1) {
			name := strings.ToUpper(m[1])
			value := normalizeHex(m[2])
			key := [2]string{name, value}
			if seenRegs[key] {
				continue
			}
			seenRegs[key] = true
			parsed.Registers = append(parsed.Registers, RegisterValue{
				Name:       name,
				ValueHex:   value,
				WidthBytes: len(value) / 2,
				SourceLine: line,
			})
		}

		for _, m := range exceptionValueRE.FindAllStringSubmatch(line, -1) {
			addValue(m[1])
		}
	}

	if len(parsed.Registers) == 0 {
		// Some dumps only carry the faulting value; keep the first few loose tokens.
		for _, token := range genericHexRE.FindAllString(text, -1) {
			if len(parsed.ExceptionValues) >= maxFallbackValues {
				break
			}
			addValue(token)
		}
	}

	return parsed
}
