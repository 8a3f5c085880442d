package render

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"framekit/badchars"
	"framekit/history"
	"framekit/shellcode"
)

// Offset writes the result of a pattern offset lookup.
func Offset(w io.Writer, offset int, found bool) {
	if !found {
		fmt.Fprintln(w, "[-] No match found")
		return
	}
	fmt.Fprintf(w, "[*] Exact match at offset %d\n", offset)
}

// Badchars writes a compare result. Transformations are listed by source
// byte.
func Badchars(w io.Writer, result badchars.Result) {
	if result.Clean() {
		fmt.Fprintln(w, "[+] No bad characters detected")
		return
	}

	if len(result.Badchars) > 0 {
		fmt.Fprintln(w, "[!] Bad characters:")
		fmt.Fprintln(w, badchars.ByteList(result.Badchars).String())
	}

	if len(result.Transformed) > 0 {
		fmt.Fprintln(w, "[!] Transformed bytes:")
		srcs := make([]byte, 0, len(result.Transformed))
		for src := range result.Transformed {
			srcs = append(srcs, src)
		}
		slices.Sort(srcs)
		for _, src := range srcs {
			fmt.Fprintf(w, "%02x -> %02x\n", src, result.Transformed[src])
		}
	}
}

// Profiles lists transport profiles with their bad characters.
func Profiles(w io.Writer, profiles []badchars.Profile) {
	for _, p := range profiles {
		bad := badchars.ByteList(p.Badchars()).String()
		if bad == "" {
			bad = "none"
		}
		fmt.Fprintf(w, "%-22s %s\n", p.Name, p.Description)
		fmt.Fprintf(w, "%-22s badchars: %s\n", "", bad)
	}
}

// ProfileCheck writes the outcome of checking a payload against a profile.
func ProfileCheck(w io.Writer, p badchars.Profile, payload, found []byte, encoded string, encErr error) {
	fmt.Fprintf(w, "[*] Profile: %s\n", p.Name)
	fmt.Fprintf(w, "  size: %d\n", len(payload))
	if len(found) == 0 {
		fmt.Fprintln(w, "  badchars present: none")
	} else {
		fmt.Fprintf(w, "  badchars present: %s\n", badchars.ByteList(found))
	}
	switch {
	case encErr != nil:
		fmt.Fprintf(w, "  encoded: refused (%v)\n", encErr)
	default:
		fmt.Fprintf(w, "  encoded: %s\n", encoded)
	}
}

// Shellcode writes a shellcode report, followed by the formatted bytes when
// formatted is non-empty.
func Shellcode(w io.Writer, report shellcode.Report, formatted string) {
	fmt.Fprintln(w, "[*] Shellcode report")
	fmt.Fprintf(w, "  length: %d\n", report.Length)
	fmt.Fprintf(w, "  md5: %s\n", report.MD5)
	fmt.Fprintf(w, "  sha256: %s\n", report.SHA256)
	if len(report.Badchars) > 0 {
		fmt.Fprintf(w, "  badchars present: %s\n", report.Badchars)
	} else {
		fmt.Fprintln(w, "  badchars present: none")
	}

	if formatted != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "[*] Formatted output")
		fmt.Fprintln(w, formatted)
	}
}

// Findings lists history entries, newest first.
func Findings(w io.Writer, findings []history.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "[-] No findings recorded")
		return
	}
	for _, f := range findings {
		fmt.Fprintf(w, "%s  %-8s  %-24s  %s\n",
			f.Created.Local().Format(time.DateTime), f.Kind, truncate(f.Target, 24), f.Summary)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Status writes key/value lines under a heading.
func Status(w io.Writer, title string, pairs [][2]string) {
	fmt.Fprintf(w, "[*] %s\n", title)
	width := 0
	for _, kv := range pairs {
		width = max(width, len(kv[0]))
	}
	for _, kv := range pairs {
		fmt.Fprintf(w, "  %s:%s %s\n", kv[0], strings.Repeat(" ", width-len(kv[0])), kv[1])
	}
}
