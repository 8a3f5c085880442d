// MCP Server for framekit - exposes the exploit development helpers to LLMs
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"framekit/badchars"
	"framekit/cache"
	"framekit/config"
	"framekit/logging"
	"framekit/pattern"
	"framekit/render"
	"framekit/shellcode"
	"framekit/triage"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const serverVersion = "0.3.0"

// Input types for tools
type PatternCreateInput struct {
	Length     int    `json:"length" jsonschema:"Pattern length in bytes"`
	Arch       string `json:"arch,omitempty" jsonschema:"Architecture: x86 (default) or x64"`
	WordSize   int    `json:"word_size,omitempty" jsonschema:"Override word size (4 or 8)"`
	Endianness string `json:"endianness,omitempty" jsonschema:"little (default) or big"`
	Hex        bool   `json:"hex,omitempty" jsonschema:"Return the pattern hex encoded"`
}

type PatternOffsetInput struct {
	Length     int    `json:"length" jsonschema:"Length of the pattern that was sent"`
	Query      string `json:"query" jsonschema:"Overwritten value as hex, e.g. 42306142 or 0x42306142"`
	Arch       string `json:"arch,omitempty" jsonschema:"Architecture: x86 (default) or x64"`
	WordSize   int    `json:"word_size,omitempty" jsonschema:"Override word size (4 or 8)"`
	Endianness string `json:"endianness,omitempty" jsonschema:"little (default) or big"`
	Raw        bool   `json:"raw,omitempty" jsonschema:"Treat the query as memory-order bytes (no endian reversal)"`
}

type TriageInput struct {
	Text          string `json:"text,omitempty" jsonschema:"Crash dump text pasted from the debugger"`
	Path          string `json:"path,omitempty" jsonschema:"Path to a saved crash dump (used when text is empty)"`
	Length        int    `json:"length" jsonschema:"Length of the cyclic pattern sent to the target"`
	Arch          string `json:"arch,omitempty" jsonschema:"x86, x64 or auto (default)"`
	Endianness    string `json:"endianness,omitempty" jsonschema:"little (default) or big"`
	AllCandidates bool   `json:"all_candidates,omitempty" jsonschema:"Recommend lookups for every candidate, not just the top 3"`
	JSON          bool   `json:"json,omitempty" jsonschema:"Return the result as JSON"`
	NoCache       bool   `json:"no_cache,omitempty" jsonschema:"Bypass the result cache"`
}

type TriageBatchInput struct {
	Path   string `json:"path" jsonschema:"Directory of saved crash dumps"`
	Length int    `json:"length" jsonschema:"Length of the cyclic pattern sent to the target"`
	Arch   string `json:"arch,omitempty" jsonschema:"x86, x64 or auto (default)"`
	JSON   bool   `json:"json,omitempty" jsonschema:"Return the results as JSON"`
}

type CompareBadcharsInput struct {
	Expected string `json:"expected" jsonschema:"Bytes that were sent, as hex"`
	Observed string `json:"observed" jsonschema:"Bytes read back from memory, as hex"`
	Exclude  string `json:"exclude,omitempty" jsonschema:"Comma-separated bytes left out of the test set (default: 00)"`
}

type ProfilesInput struct {
	Name    string `json:"name,omitempty" jsonschema:"Profile to check the payload against"`
	Payload string `json:"payload,omitempty" jsonschema:"Payload as hex; requires name"`
}

type ShellcodeInput struct {
	Data      string `json:"data" jsonschema:"Shellcode text"`
	InFormat  string `json:"in_format,omitempty" jsonschema:"hex (default), escaped, c or py"`
	OutFormat string `json:"out_format,omitempty" jsonschema:"hex, escaped, c or py (default)"`
	Width     int    `json:"width,omitempty" jsonschema:"Bytes per line for py/c output (default: 16)"`
	VarName   string `json:"var,omitempty" jsonschema:"Variable name for py/c output (default: sc)"`
	Badchars  string `json:"badchars,omitempty" jsonschema:"Comma-separated bad bytes to check (default: 00,0a,0d)"`
}

type EmptyInput struct{}

var (
	cfg    = config.DefaultConfig()
	logger = zap.NewNop()

	// resultCache lives for the whole server session; nil when caching is off.
	resultCache *cache.Cache
)

func main() {
	if loaded, err := config.Load(); err == nil {
		cfg = loaded
	}
	logger = logging.Must(logging.Options{Debug: cfg.Debug})
	defer logger.Sync()

	if cfg.Cache.Enabled {
		c, err := cache.New(cache.Options{
			Dir:     cfg.Cache.Dir,
			TTL:     time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
			Enabled: true,
		})
		if err != nil {
			logger.Warn("cache unavailable", zap.Error(err))
		} else {
			if err := c.Cleanup(); err != nil {
				logger.Debug("cache cleanup failed", zap.Error(err))
			}
			resultCache = c
		}
	}

	server := newServer()

	// Run server on stdio
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Printf("Server error: %v", err)
	}
}

func newServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "framekit",
		Version: serverVersion,
	}, nil)

	// Tool: pattern_create - Generate a cyclic pattern
	mcp.AddTool(server, &mcp.Tool{
		Name:        "pattern_create",
		Description: "Generate a deterministic cyclic pattern (Aa0Aa1Aa2...) of the given length. Send it to the target to find which bytes overwrite a register.",
	}, handlePatternCreate)

	// Tool: pattern_offset - Locate a value inside a pattern
	mcp.AddTool(server, &mcp.Tool{
		Name:        "pattern_offset",
		Description: "Find the offset of an overwritten register value inside a cyclic pattern. Hex values are byte-swapped for little endian targets unless raw is set.",
	}, handlePatternOffset)

	// Tool: triage_crash - Rank crash dump values and suggest lookups
	mcp.AddTool(server, &mcp.Tool{
		Name:        "triage_crash",
		Description: "Parse WinDbg/gdb crash output, rank the registers and fault addresses most likely to hold pattern bytes, and suggest the pattern_offset lookups to run next.",
	}, handleTriageCrash)

	// Tool: triage_batch - Triage a directory of dumps
	mcp.AddTool(server, &mcp.Tool{
		Name:        "triage_batch",
		Description: "Triage every saved crash dump (.txt, .log, .dump, .crash) under a directory, honoring .gitignore and .framekitignore.",
	}, handleTriageBatch)

	// Tool: compare_badchars - Diff sent and observed bytes
	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_badchars",
		Description: "Compare the bytes that were sent with the bytes found in memory and report missing (bad) and transformed characters.",
	}, handleCompareBadchars)

	// Tool: badchar_profiles - Transport profiles
	mcp.AddTool(server, &mcp.Tool{
		Name:        "badchar_profiles",
		Description: "List transport context profiles (raw TCP, HTTP header, URL query, JSON string...) with their bad characters, or check a payload against one profile.",
	}, handleBadcharProfiles)

	// Tool: analyze_shellcode - Parse, hash and reformat shellcode
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_shellcode",
		Description: "Parse shellcode from hex, \\x escapes, a C array or a Python bytes literal; report its length, hashes and bad characters, and reformat it.",
	}, handleAnalyzeShellcode)

	// Tool: status - Verify MCP connection
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Check that the framekit MCP server is running and show the active defaults.",
	}, handleStatus)

	return server
}

// validatePath validates and returns the absolute path
func validatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		path = filepath.Join(home, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("path does not exist: %s", absPath)
	}

	return absPath, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	var sb strings.Builder
	if err := render.JSON(&sb, v); err != nil {
		return errorResult("Encoding error: " + err.Error())
	}
	return textResult(strings.TrimRight(sb.String(), "\n"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// patternConfig resolves arch, word size override and endianness.
func patternConfig(arch string, wordSize int, endianness string) (pattern.Config, error) {
	a, err := pattern.ParseArch(orDefault(arch, cfg.Pattern.Arch))
	if err != nil {
		return pattern.Config{}, err
	}
	e, err := pattern.ParseEndianness(orDefault(endianness, cfg.Pattern.Endianness))
	if err != nil {
		return pattern.Config{}, err
	}
	pc := pattern.ForArch(a, e)
	if wordSize != 0 {
		pc.WordSize = wordSize
	}
	return pc, nil
}

func handlePatternCreate(ctx context.Context, req *mcp.CallToolRequest, input PatternCreateInput) (*mcp.CallToolResult, any, error) {
	pc, err := patternConfig(input.Arch, input.WordSize, input.Endianness)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	gen, err := pattern.NewGenerator(pc)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	p, err := gen.Create(input.Length)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	if input.Hex {
		return textResult(fmt.Sprintf("%x", p)), nil, nil
	}
	return textResult(string(p)), nil, nil
}

func handlePatternOffset(ctx context.Context, req *mcp.CallToolRequest, input PatternOffsetInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return errorResult("query is required"), nil, nil
	}

	pc, err := patternConfig(input.Arch, input.WordSize, input.Endianness)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	resolver, err := pattern.NewResolver(pc)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	offset, found, err := resolver.FindOffset(input.Length, pattern.HexQuery(input.Query), input.Raw)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	var sb strings.Builder
	render.Offset(&sb, offset, found)
	return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
}

func handleTriageCrash(ctx context.Context, req *mcp.CallToolRequest, input TriageInput) (*mcp.CallToolResult, any, error) {
	text := input.Text
	if text == "" && input.Path != "" {
		absPath, err := validatePath(input.Path)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return errorResult("Cannot read dump: " + err.Error()), nil, nil
		}
		text = string(data)
	}

	endianness := pattern.Endianness(orDefault(input.Endianness, cfg.Triage.Endianness))
	opts := triage.Options{
		Length:        input.Length,
		Arch:          orDefault(input.Arch, cfg.Triage.Arch),
		Endianness:    endianness,
		AllCandidates: input.AllCandidates || cfg.Triage.AllCandidates,
	}

	c := resultCache
	if input.NoCache {
		c = nil
	}

	res, hit, err := triage.Cached(c, text, opts)
	switch {
	case errors.Is(err, triage.ErrNoCandidates):
		// Still report the notes.
	case err != nil:
		return errorResult(err.Error()), nil, nil
	}
	logger.Debug("triage_crash", zap.Bool("cache_hit", hit), zap.Int("candidates", len(res.Candidates)))

	if input.JSON {
		return jsonResult(res), nil, nil
	}

	var sb strings.Builder
	render.Triage(&sb, res)
	return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
}

func handleTriageBatch(ctx context.Context, req *mcp.CallToolRequest, input TriageBatchInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	results, err := triage.Batch(ctx, absRoot, triage.BatchOptions{
		Options: triage.Options{
			Length:     input.Length,
			Arch:       orDefault(input.Arch, cfg.Triage.Arch),
			Endianness: pattern.Endianness(cfg.Triage.Endianness),
		},
		Workers: cfg.Triage.Workers,
		Logger:  logger,
	})
	if err != nil {
		return errorResult("Batch error: " + err.Error()), nil, nil
	}

	if input.JSON {
		return jsonResult(results), nil, nil
	}

	var sb strings.Builder
	render.Batch(&sb, results)
	return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
}

func handleCompareBadchars(ctx context.Context, req *mcp.CallToolRequest, input CompareBadcharsInput) (*mcp.CallToolResult, any, error) {
	expected, err := shellcode.ParseHex(input.Expected)
	if err != nil {
		return errorResult("expected: " + err.Error()), nil, nil
	}
	observed, err := shellcode.ParseHex(input.Observed)
	if err != nil {
		return errorResult("observed: " + err.Error()), nil, nil
	}

	exclude, err := config.ParseByteList(cfg.Badchars.Exclude)
	if input.Exclude != "" {
		exclude, err = config.SplitByteList(input.Exclude)
	}
	if err != nil {
		return errorResult("exclude: " + err.Error()), nil, nil
	}

	result := badchars.NewAnalyzer(exclude).Analyze(expected, observed)

	var sb strings.Builder
	render.Badchars(&sb, result)
	return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
}

func handleBadcharProfiles(ctx context.Context, req *mcp.CallToolRequest, input ProfilesInput) (*mcp.CallToolResult, any, error) {
	registry := badchars.NewRegistry()

	if input.Name == "" {
		var profiles []badchars.Profile
		for _, name := range registry.Names() {
			p, _ := registry.Get(name)
			profiles = append(profiles, p)
		}
		var sb strings.Builder
		render.Profiles(&sb, profiles)
		return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
	}

	p, err := registry.Get(input.Name)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	payload, err := shellcode.ParseHex(input.Payload)
	if err != nil {
		return errorResult("payload: " + err.Error()), nil, nil
	}

	found := badchars.Validate(payload, p.Badchars())
	encoded, encErr := p.Encode(payload)

	var sb strings.Builder
	render.ProfileCheck(&sb, p, payload, found, encoded, encErr)
	return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
}

func handleAnalyzeShellcode(ctx context.Context, req *mcp.CallToolRequest, input ShellcodeInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Data) == "" {
		return errorResult("data is required"), nil, nil
	}

	data, err := shellcode.Parse(input.Data, shellcode.InputFormat(orDefault(input.InFormat, "hex")))
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	bad, err := config.ParseByteList(cfg.Shellcode.Badchars)
	if input.Badchars != "" {
		bad, err = config.SplitByteList(input.Badchars)
	}
	if err != nil {
		return errorResult("badchars: " + err.Error()), nil, nil
	}

	opts := shellcode.FormatOptions{Width: cfg.Shellcode.Width, VarName: cfg.Shellcode.VarName}
	if input.Width > 0 {
		opts.Width = input.Width
	}
	if input.VarName != "" {
		opts.VarName = input.VarName
	}

	formatted, err := shellcode.Format(data, shellcode.OutputFormat(orDefault(input.OutFormat, cfg.Shellcode.OutFormat)), opts)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	var sb strings.Builder
	render.Shellcode(&sb, shellcode.Analyze(data, bad), formatted)
	return textResult(strings.TrimRight(sb.String(), "\n")), nil, nil
}

func handleStatus(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	cwd, _ := os.Getwd()

	cacheState := "disabled"
	if resultCache != nil {
		st := resultCache.Stats()
		cacheState = fmt.Sprintf("%s (%d hits, %d misses, %.0f%% hit rate)",
			cfg.Cache.Dir, st.Hits, st.Misses, resultCache.HitRate()*100)
	}

	var sb strings.Builder
	render.Status(&sb, "framekit MCP server v"+serverVersion, [][2]string{
		{"status", "connected"},
		{"working directory", cwd},
		{"pattern defaults", fmt.Sprintf("%s, %s endian", cfg.Pattern.Arch, cfg.Pattern.Endianness)},
		{"triage defaults", "arch " + cfg.Triage.Arch},
		{"result cache", cacheState},
	})
	sb.WriteString(`
Available tools:
  pattern_create     - Generate a cyclic pattern
  pattern_offset     - Locate an overwritten value in a pattern
  triage_crash       - Rank crash dump values and suggest lookups
  triage_batch       - Triage a directory of saved dumps
  compare_badchars   - Diff sent vs observed bytes
  badchar_profiles   - Transport profiles and payload checks
  analyze_shellcode  - Parse, hash and reformat shellcode`)

	return textResult(sb.String()), nil, nil
}
