package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// isolate runs the test in a fresh directory with no user config and no
// FRAMEKIT_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"FRAMEKIT_ARCH", "FRAMEKIT_ENDIANNESS", "FRAMEKIT_CACHE_DIR", "FRAMEKIT_HISTORY", "FRAMEKIT_DEBUG"} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

// moduleDir is captured before any test changes directory.
var moduleDir, _ = os.Getwd()

func fixturePath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(moduleDir, "triage", "testdata", name)
}

func TestPatternCreate(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "pattern", "create", "-l", "20")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "Aa0Aa1Aa2Aa3Aa4Aa5Aa", res.stdout)

	res = runCLI(t, "", "pattern", "create", "-l", "4", "--hex", "--newline")
	assert.Equal(t, "41613041\n", res.stdout)
}

func TestPatternCreateErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"zero length", []string{"pattern", "create", "-l", "0"}},
		{"too long", []string{"pattern", "create", "-l", "20281"}},
		{"missing length", []string{"pattern", "create"}},
		{"bad word size", []string{"pattern", "create", "-l", "10", "--word-size", "3"}},
		{"bad arch", []string{"pattern", "create", "-l", "10", "--arch", "arm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			assert.Equal(t, 1, res.code)
			assert.True(t, strings.HasPrefix(res.stderr, "[-] Error: "), res.stderr)
			assert.Empty(t, res.stdout)
		})
	}
}

func TestPatternOffset(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"hex", []string{"-q", "42306142"}, "[*] Exact match at offset 780\n"},
		{"0x hex", []string{"-q", "0x42306142"}, "[*] Exact match at offset 780\n"},
		{"raw", []string{"-q", "42613042", "--raw"}, "[*] Exact match at offset 780\n"},
		{"not found", []string{"-q", "deadbeef"}, "[-] No match found\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"pattern", "offset", "-l", "800"}, tt.args...)
			res := runCLI(t, "", args...)
			assert.Equal(t, 0, res.code, res.stderr)
			assert.Equal(t, tt.want, res.stdout)
		})
	}

	res := runCLI(t, "", "pattern", "offset", "-l", "800", "-q", "4230614")
	assert.Equal(t, 1, res.code)
}

func TestTriageHuman(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "triage", "-l", "3000", "--input", fixturePath(t, "x86_windbg_eip_clean.txt"))
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Crash triage summary")
	assert.Contains(t, res.stdout, "EIP: 42306142")

	// Second run is served from the cache and prints the same thing.
	again := runCLI(t, "", "triage", "-l", "3000", "--input", fixturePath(t, "x86_windbg_eip_clean.txt"))
	assert.Equal(t, res.stdout, again.stdout)
	entries, err := os.ReadDir(filepath.Join(".framekit", "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTriageJSONFromStdin(t *testing.T) {
	isolate(t)

	data, err := os.ReadFile(fixturePath(t, "x64_rip_clean.txt"))
	require.NoError(t, err)

	res := runCLI(t, string(data), "triage", "-l", "5000", "--json", "--no-cache")
	require.Equal(t, 0, res.code, res.stderr)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
	assert.Equal(t, "x64", payload["detected_arch"])
	candidates := payload["candidates"].([]any)
	assert.Equal(t, "RIP", candidates[0].(map[string]any)["register"])

	_, err = os.Stat(filepath.Join(".framekit", "cache"))
	assert.True(t, os.IsNotExist(err))
}

func TestTriageExitCodes(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "triage", "-l", "1000", "--input", fixturePath(t, "malformed_noise_only.txt"))
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stdout, "[-] No candidates parsed")
	assert.Empty(t, res.stderr)

	res = runCLI(t, "   \n", "triage", "-l", "1000")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "[-] Error: no crash text provided")

	res = runCLI(t, "eip=42306142", "triage", "-l", "0")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "--length must be a positive integer")
}

func TestTriageBatch(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	for _, name := range []string{"x86_windbg_eip_clean.txt", "malformed_noise_only.txt"} {
		data, err := os.ReadFile(fixturePath(t, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}

	res := runCLI(t, "", "triage", "batch", dir, "-l", "3000")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "=== x86_windbg_eip_clean.txt ===")
	assert.Contains(t, res.stdout, "[*] 1/2 dumps triaged")

	empty := t.TempDir()
	res = runCLI(t, "", "triage", "batch", empty, "-l", "3000")
	assert.Equal(t, 2, res.code)
}

func TestBadcharsCompare(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "badchars", "compare", "--expected", "0102030405", "--observed", "01020405")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "[!] Bad characters:\n03\n", res.stdout)

	res = runCLI(t, "", "badchars", "compare", "--expected", "0x01 0x02", "--observed", "0x01 0x02")
	assert.Equal(t, "[+] No bad characters detected\n", res.stdout)

	res = runCLI(t, "", "badchars", "compare", "--expected", "zz", "--observed", "01")
	assert.Equal(t, 1, res.code)
}

func TestBadcharsGenerateAndProfiles(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "badchars", "generate", "--exclude", "00,0a,0d")
	require.Equal(t, 0, res.code, res.stderr)
	out := strings.TrimSpace(res.stdout)
	assert.Len(t, out, 253*2)
	assert.True(t, strings.HasPrefix(out, "0102030405060708090b0c0e"))

	res = runCLI(t, "", "badchars", "profiles")
	assert.Contains(t, res.stdout, "http_form_urlencoded")

	res = runCLI(t, "", "badchars", "check", "--profile", "http_header", "410d0a42")
	assert.Contains(t, res.stdout, "encoded: refused")

	res = runCLI(t, "", "badchars", "check", "--profile", "http_header", "--sanitize", "--replace", "2e", "410d0a42")
	assert.Contains(t, res.stdout, "  sanitized: 412e2e42\n")

	res = runCLI(t, "", "badchars", "check", "--profile", "raw_tcp", "--sanitize", "41004200")
	assert.Contains(t, res.stdout, "  sanitized: 4142\n")

	res = runCLI(t, "", "badchars", "check", "--profile", "nope", "41")
	assert.Equal(t, 1, res.code)
}

func TestShellcode(t *testing.T) {
	isolate(t)

	res := runCLI(t, "9090cc00", "shellcode", "--out-format", "c", "--width", "2")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "  length: 4\n")
	assert.Contains(t, res.stdout, "  badchars present: 00\n")
	assert.Contains(t, res.stdout, "unsigned char sc[] = {\n  0x90, 0x90,\n  0xcc, 0x00\n};")

	bin := filepath.Join(t.TempDir(), "sc.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0x41, 0x42}, 0644))
	res = runCLI(t, "", "shellcode", "--bin", bin, "--no-format", "--badchars", "41")
	assert.Contains(t, res.stdout, "  badchars present: 41\n")
	assert.NotContains(t, res.stdout, "Formatted output")

	res = runCLI(t, "9090", "shellcode", "--width", "-1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "width must be positive (got -1)")

	res = runCLI(t, "9090", "shellcode", "--width", "0", "--no-format")
	assert.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, "", "shellcode")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "no input provided")

	res = runCLI(t, "", "shellcode", "--bin", bin, "--input", bin)
	assert.Equal(t, 1, res.code)
}

func TestHistoryRecordsFindings(t *testing.T) {
	isolate(t)
	t.Setenv("FRAMEKIT_HISTORY", "1")

	res := runCLI(t, "", "--target", "vulnserver", "pattern", "offset", "-l", "800", "-q", "42306142")
	require.Equal(t, 0, res.code, res.stderr)
	res = runCLI(t, "", "badchars", "compare", "--expected", "0102", "--observed", "01")
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, "", "history")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "vulnserver")
	assert.Contains(t, res.stdout, "42306142 at offset 780")
	assert.Contains(t, res.stdout, "bad: 02")

	res = runCLI(t, "", "history", "--kind", "offset", "--json")
	require.Equal(t, 0, res.code, res.stderr)
	var findings []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, "offset", findings[0]["kind"])

	res = runCLI(t, "", "history", "--kind", "exploit")
	assert.Equal(t, 1, res.code)
}

func TestConfigInitAndFlag(t *testing.T) {
	dir := isolate(t)

	res := runCLI(t, "", "config", "init")
	require.Equal(t, 0, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dir, ".framekit", "config.yaml"))

	res = runCLI(t, "", "config", "init")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "already exists")

	custom := filepath.Join(dir, "x64.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("pattern:\n  arch: x64\n"), 0644))

	res = runCLI(t, "", "--config", custom, "config", "show")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "arch: x64")

	// x64 patterns take 8-byte queries.
	res = runCLI(t, "", "--config", custom, "pattern", "offset", "-l", "800", "-q", "42306142")
	assert.Equal(t, 1, res.code)

	res = runCLI(t, "", "--config", filepath.Join(dir, "missing.yaml"), "pattern", "create", "-l", "4")
	assert.Equal(t, 1, res.code)
}

func TestCacheStatsAndClear(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "triage", "-l", "3000", "--input", fixturePath(t, "x86_windbg_eip_clean.txt"))
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, "", "cache", "stats")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "[*] Result cache\n")
	assert.Contains(t, res.stdout, "  entries: 1\n")

	res = runCLI(t, "", "cache", "clear")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "[+] Removed 1 cached results\n", res.stdout)

	res = runCLI(t, "", "cache", "stats")
	assert.Contains(t, res.stdout, "  entries: 0\n")
}

func TestQuietDiscardsLogs(t *testing.T) {
	isolate(t)

	a := &app{debug: true}
	require.NoError(t, a.setup())
	assert.True(t, a.logger.Core().Enabled(zap.DebugLevel))

	a = &app{debug: true, quiet: true}
	require.NoError(t, a.setup())
	assert.False(t, a.logger.Core().Enabled(zap.ErrorLevel))

	res := runCLI(t, "", "--quiet", "pattern", "create", "-l", "4")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "Aa0A", res.stdout)
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	res := runCLI(t, "", "exploit")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "[-] Error: ")
}
