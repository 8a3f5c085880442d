package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framekit/cache"
	"framekit/config"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	return result.Content[0].(*mcp.TextContent).Text
}

func TestMain(m *testing.M) {
	cfg = config.DefaultConfig()
	cfg.Cache.Enabled = false
	os.Exit(m.Run())
}

func TestMCPTools(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get cwd: %v", err)
	}

	// Dumps are shared with the triage package tests
	testDataPath := filepath.Join(filepath.Dir(cwd), "triage", "testdata")
	if _, err := os.Stat(testDataPath); os.IsNotExist(err) {
		t.Fatalf("Test data path does not exist: %s", testDataPath)
	}

	ctx := context.Background()

	t.Run("pattern_create", func(t *testing.T) {
		result, _, err := handlePatternCreate(ctx, nil, PatternCreateInput{Length: 12})
		if err != nil {
			t.Fatalf("handlePatternCreate failed: %v", err)
		}
		if result.IsError {
			t.Fatalf("handlePatternCreate returned error result: %v", result.Content)
		}
		if got := resultText(t, result); got != "Aa0Aa1Aa2Aa3" {
			t.Errorf("Expected Aa0Aa1Aa2Aa3, got %q", got)
		}

		result, _, _ = handlePatternCreate(ctx, nil, PatternCreateInput{Length: 4, Hex: true})
		if got := resultText(t, result); got != "41613041" {
			t.Errorf("Expected hex 41613041, got %q", got)
		}
	})

	t.Run("pattern_create_bad_length", func(t *testing.T) {
		result, _, err := handlePatternCreate(ctx, nil, PatternCreateInput{Length: 0})
		if err != nil {
			t.Fatalf("handlePatternCreate failed: %v", err)
		}
		if !result.IsError {
			t.Error("Expected error result for zero length")
		}
	})

	t.Run("pattern_offset", func(t *testing.T) {
		result, _, err := handlePatternOffset(ctx, nil, PatternOffsetInput{Length: 800, Query: "0x42306142"})
		if err != nil {
			t.Fatalf("handlePatternOffset failed: %v", err)
		}
		if got := resultText(t, result); got != "[*] Exact match at offset 780" {
			t.Errorf("Unexpected output: %q", got)
		}

		result, _, _ = handlePatternOffset(ctx, nil, PatternOffsetInput{Length: 800, Query: "deadbeef"})
		if got := resultText(t, result); got != "[-] No match found" {
			t.Errorf("Unexpected output: %q", got)
		}

		result, _, _ = handlePatternOffset(ctx, nil, PatternOffsetInput{Length: 800})
		if !result.IsError {
			t.Error("Expected error result for missing query")
		}
	})

	t.Run("triage_crash_path", func(t *testing.T) {
		input := TriageInput{Path: filepath.Join(testDataPath, "x86_windbg_eip_clean.txt"), Length: 800}
		result, _, err := handleTriageCrash(ctx, nil, input)
		if err != nil {
			t.Fatalf("handleTriageCrash failed: %v", err)
		}
		if result.IsError {
			t.Fatalf("handleTriageCrash returned error result: %v", result.Content)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "EIP: 42306142") {
			t.Errorf("Expected EIP candidate, got:\n%s", text)
		}
	})

	t.Run("triage_crash_json", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(testDataPath, "x64_rip_clean.txt"))
		if err != nil {
			t.Fatal(err)
		}
		result, _, _ := handleTriageCrash(ctx, nil, TriageInput{Text: string(data), Length: 5000, JSON: true})

		var payload struct {
			DetectedArch string `json:"detected_arch"`
			Candidates   []struct {
				Register string `json:"register"`
			} `json:"candidates"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if payload.DetectedArch != "x64" || payload.Candidates[0].Register != "RIP" {
			t.Errorf("Unexpected payload: %+v", payload)
		}
	})

	t.Run("triage_crash_no_candidates", func(t *testing.T) {
		result, _, _ := handleTriageCrash(ctx, nil, TriageInput{Text: "nothing to see here", Length: 1000})
		if result.IsError {
			t.Fatalf("Expected notes, got error: %v", result.Content)
		}
		if !strings.Contains(resultText(t, result), "[-] No candidates parsed") {
			t.Errorf("Unexpected output:\n%s", resultText(t, result))
		}

		result, _, _ = handleTriageCrash(ctx, nil, TriageInput{Length: 1000})
		if !result.IsError {
			t.Error("Expected error result for empty input")
		}
	})

	t.Run("triage_batch", func(t *testing.T) {
		result, _, err := handleTriageBatch(ctx, nil, TriageBatchInput{Path: testDataPath, Length: 5000})
		if err != nil {
			t.Fatalf("handleTriageBatch failed: %v", err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "=== x64_rip_clean.txt ===") {
			t.Errorf("Expected per-file block, got:\n%s", text)
		}
		if !strings.Contains(text, "dumps triaged") {
			t.Errorf("Expected tally, got:\n%s", text)
		}
	})

	t.Run("compare_badchars", func(t *testing.T) {
		input := CompareBadcharsInput{Expected: "0102030405", Observed: "01020405"}
		result, _, err := handleCompareBadchars(ctx, nil, input)
		if err != nil {
			t.Fatalf("handleCompareBadchars failed: %v", err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "[!] Bad characters:\n03") {
			t.Errorf("Expected 03 to be bad, got:\n%s", text)
		}

		// Same prefixed forms the CLI accepts
		result, _, _ = handleCompareBadchars(ctx, nil, CompareBadcharsInput{Expected: "0x01 0x02 0x03", Observed: "0x01,0x03"})
		if result.IsError {
			t.Fatalf("Expected 0x-prefixed bytes to parse, got: %v", result.Content)
		}
		if text := resultText(t, result); !strings.Contains(text, "[!] Bad characters:\n02") {
			t.Errorf("Expected 02 to be bad, got:\n%s", text)
		}

		result, _, _ = handleCompareBadchars(ctx, nil, CompareBadcharsInput{Expected: "zz", Observed: "00"})
		if !result.IsError {
			t.Error("Expected error result for bad hex")
		}
	})

	t.Run("badchar_profiles", func(t *testing.T) {
		result, _, _ := handleBadcharProfiles(ctx, nil, ProfilesInput{})
		text := resultText(t, result)
		for _, name := range []string{"raw_tcp", "http_header", "json_string"} {
			if !strings.Contains(text, name) {
				t.Errorf("Expected profile %s in:\n%s", name, text)
			}
		}

		result, _, _ = handleBadcharProfiles(ctx, nil, ProfilesInput{Name: "url_query", Payload: "612062"})
		text = resultText(t, result)
		if !strings.Contains(text, "encoded: a%20b") {
			t.Errorf("Expected percent-encoding, got:\n%s", text)
		}

		result, _, _ = handleBadcharProfiles(ctx, nil, ProfilesInput{Name: "smtp"})
		if !result.IsError {
			t.Error("Expected error result for unknown profile")
		}
	})

	t.Run("analyze_shellcode", func(t *testing.T) {
		input := ShellcodeInput{Data: `\x90\x90\x00`, InFormat: "escaped", OutFormat: "hex"}
		result, _, err := handleAnalyzeShellcode(ctx, nil, input)
		if err != nil {
			t.Fatalf("handleAnalyzeShellcode failed: %v", err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "length: 3") || !strings.Contains(text, "badchars present: 00") {
			t.Errorf("Unexpected report:\n%s", text)
		}
		if !strings.HasSuffix(text, "909000") {
			t.Errorf("Expected hex output, got:\n%s", text)
		}

		result, _, _ = handleAnalyzeShellcode(ctx, nil, ShellcodeInput{Data: "abc"})
		if !result.IsError {
			t.Error("Expected error result for odd hex")
		}
	})

	t.Run("status", func(t *testing.T) {
		result, _, err := handleStatus(ctx, nil, EmptyInput{})
		if err != nil {
			t.Fatalf("handleStatus failed: %v", err)
		}
		if !strings.Contains(resultText(t, result), "framekit MCP server") {
			t.Errorf("Unexpected status:\n%s", resultText(t, result))
		}
	})
}

func TestValidatePath(t *testing.T) {
	if _, err := validatePath(""); err == nil {
		t.Error("Expected error for empty path")
	}
	if _, err := validatePath(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing path")
	}
	dir := t.TempDir()
	got, err := validatePath(dir)
	if err != nil || got != dir {
		t.Errorf("validatePath(%s) = %s, %v", dir, got, err)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	if newServer() == nil {
		t.Fatal("newServer returned nil")
	}
}

func TestTriageCacheSharedAcrossCalls(t *testing.T) {
	c, err := cache.New(cache.Options{Dir: t.TempDir(), Enabled: true})
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	resultCache = c
	defer func() { resultCache = nil }()

	ctx := context.Background()
	input := TriageInput{Text: "eip=42306142", Length: 3000, Arch: "x86"}
	for i := 0; i < 2; i++ {
		result, _, err := handleTriageCrash(ctx, nil, input)
		if err != nil || result.IsError {
			t.Fatalf("handleTriageCrash failed: %v %v", err, result)
		}
	}

	// no_cache bypasses lookups entirely
	input.NoCache = true
	if result, _, _ := handleTriageCrash(ctx, nil, input); result.IsError {
		t.Fatalf("handleTriageCrash returned error result: %v", result.Content)
	}

	result, _, _ := handleStatus(ctx, nil, EmptyInput{})
	if text := resultText(t, result); !strings.Contains(text, "(1 hits, 1 misses, 50% hit rate)") {
		t.Errorf("Expected cache stats in status, got:\n%s", text)
	}
}
