// Package config handles configuration loading and management for framekit.
// Configuration is loaded from:
// 1. ~/.config/framekit/config.yaml (user-level)
// 2. .framekit/config.yaml (project-level override)
// 3. Environment variables (highest priority)
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternConfig holds defaults for pattern create/offset.
type PatternConfig struct {
	// Arch is x86 or x64
	Arch string `yaml:"arch"`

	// Endianness is little or big
	Endianness string `yaml:"endianness"`
}

// TriageConfig holds defaults for crash triage.
type TriageConfig struct {
	// Arch is x86, x64 or auto
	Arch string `yaml:"arch"`

	Endianness    string `yaml:"endianness"`
	AllCandidates bool   `yaml:"all_candidates"`

	// Workers bounds batch triage concurrency (0 = GOMAXPROCS)
	Workers int `yaml:"workers"`
}

// BadcharsConfig holds defaults for bad character analysis.
type BadcharsConfig struct {
	// Exclude lists hex bytes left out of generated test bytes (e.g. "00")
	Exclude []string `yaml:"exclude"`

	// Profile is the transport profile used by "badchars check"
	Profile string `yaml:"profile"`
}

// ShellcodeConfig holds defaults for the shellcode helper.
type ShellcodeConfig struct {
	Badchars  []string `yaml:"badchars"`
	Width     int      `yaml:"width"`
	VarName   string   `yaml:"var_name"`
	OutFormat string   `yaml:"out_format"`
}

// CacheConfig holds settings for triage result caching.
type CacheConfig struct {
	// Enabled controls whether caching is active
	Enabled bool `yaml:"enabled"`

	// Dir is the cache directory (default: .framekit/cache)
	Dir string `yaml:"dir"`

	// TTLDays is the cache TTL in days (0 = no expiry)
	TTLDays int `yaml:"ttl_days"`
}

// HistoryConfig holds settings for the findings log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the main configuration structure.
type Config struct {
	Pattern   PatternConfig   `yaml:"pattern"`
	Triage    TriageConfig    `yaml:"triage"`
	Badchars  BadcharsConfig  `yaml:"badchars"`
	Shellcode ShellcodeConfig `yaml:"shellcode"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`

	// Debug enables verbose logging
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pattern: PatternConfig{
			Arch:       "x86",
			Endianness: "little",
		},
		Triage: TriageConfig{
			Arch:       "auto",
			Endianness: "little",
		},
		Badchars: BadcharsConfig{
			Exclude: []string{"00"},
			Profile: "raw_tcp",
		},
		Shellcode: ShellcodeConfig{
			Badchars:  []string{"00", "0a", "0d"},
			Width:     16,
			VarName:   "sc",
			OutFormat: "py",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     filepath.Join(".framekit", "cache"),
			TTLDays: 0, // No expiry by default
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(".framekit", "history.db"),
		},
	}
}

// Load reads configuration from standard locations and merges with defaults.
// Priority (highest to lowest):
// 1. Environment variables
// 2. Project config (.framekit/config.yaml)
// 3. User config (~/.config/framekit/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if userConfigPath, err := userConfigPath(); err == nil {
		if data, err := os.ReadFile(userConfigPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing user config %s: %w", userConfigPath, err)
			}
		}
	}

	projectConfigPath := filepath.Join(".framekit", "config.yaml")
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing project config %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.Pattern.Arch {
	case "x86", "x64":
	default:
		errs = append(errs, fmt.Sprintf("pattern.arch must be x86 or x64 (got %q)", c.Pattern.Arch))
	}

	switch c.Triage.Arch {
	case "x86", "x64", "auto":
	default:
		errs = append(errs, fmt.Sprintf("triage.arch must be x86, x64 or auto (got %q)", c.Triage.Arch))
	}

	for _, e := range []struct{ section, value string }{
		{"pattern", c.Pattern.Endianness},
		{"triage", c.Triage.Endianness},
	} {
		if e.value != "little" && e.value != "big" {
			errs = append(errs, fmt.Sprintf("%s.endianness must be little or big (got %q)", e.section, e.value))
		}
	}

	if c.Triage.Workers < 0 {
		errs = append(errs, "triage.workers must be non-negative")
	}

	if _, err := ParseByteList(c.Badchars.Exclude); err != nil {
		errs = append(errs, "badchars.exclude: "+err.Error())
	}
	if _, err := ParseByteList(c.Shellcode.Badchars); err != nil {
		errs = append(errs, "shellcode.badchars: "+err.Error())
	}

	if c.Shellcode.Width <= 0 {
		errs = append(errs, "shellcode.width must be positive")
	}
	switch c.Shellcode.OutFormat {
	case "hex", "escaped", "py", "c":
	default:
		errs = append(errs, fmt.Sprintf("unknown shellcode.out_format: %s", c.Shellcode.OutFormat))
	}

	if c.Cache.TTLDays < 0 {
		errs = append(errs, "cache.ttl_days must be non-negative")
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, "cache.dir required when cache is enabled")
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path required when history is enabled")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// ParseByteList parses hex byte tokens such as "00", "0x0a" or "0D".
func ParseByteList(items []string) ([]byte, error) {
	out := make([]byte, 0, len(items))
	for _, item := range items {
		p := strings.ToLower(strings.TrimSpace(item))
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(p, "0x")
		if len(p) != 2 {
			return nil, fmt.Errorf("badchar must be 1 byte (got %q)", item)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid badchar %q", item)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// SplitByteList parses a comma-separated list such as "00,0a,0d".
func SplitByteList(s string) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return ParseByteList(strings.Split(s, ","))
}

// userConfigPath returns the path to the user configuration file.
func userConfigPath() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "framekit", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".config", "framekit", "config.yaml"), nil
}

func envTrue(v string) bool {
	return v == "1" || strings.ToLower(v) == "true"
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// auto only means something to triage; pattern keeps its own arch.
	if v := os.Getenv("FRAMEKIT_ARCH"); v != "" {
		v = strings.ToLower(v)
		if v != "auto" {
			cfg.Pattern.Arch = v
		}
		cfg.Triage.Arch = v
	}

	if v := os.Getenv("FRAMEKIT_ENDIANNESS"); v != "" {
		v = strings.ToLower(v)
		cfg.Pattern.Endianness = v
		cfg.Triage.Endianness = v
	}

	if v := os.Getenv("FRAMEKIT_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}

	if v := os.Getenv("FRAMEKIT_HISTORY"); v != "" {
		if envTrue(v) {
			cfg.History.Enabled = true
		} else if v == "0" || strings.ToLower(v) == "false" {
			cfg.History.Enabled = false
		} else {
			cfg.History.Enabled = true
			cfg.History.Path = v
		}
	}

	if v := os.Getenv("FRAMEKIT_DEBUG"); envTrue(v) {
		cfg.Debug = true
	}
}

// Write encodes cfg as YAML to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return enc.Close()
}

// WriteDefault creates a default config file at the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# framekit configuration\n\n")
	if err := Write(&sb, cfg); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
