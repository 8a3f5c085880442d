package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"FRAMEKIT_ARCH", "FRAMEKIT_ENDIANNESS", "FRAMEKIT_CACHE_DIR", "FRAMEKIT_HISTORY", "FRAMEKIT_DEBUG"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "x86", cfg.Pattern.Arch)
	assert.Equal(t, "auto", cfg.Triage.Arch)
	assert.Equal(t, "little", cfg.Triage.Endianness)
	assert.Equal(t, 16, cfg.Shellcode.Width)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.History.Enabled)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pattern.Arch = "arm"
	cfg.Triage.Endianness = "middle"
	cfg.Shellcode.Width = 0
	cfg.Shellcode.OutFormat = "rust"
	cfg.Badchars.Exclude = []string{"zz"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"pattern.arch", "triage.endianness", "shellcode.width", "shellcode.out_format", "badchars.exclude"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadFromPathMergesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("triage:\n  arch: x64\n  workers: 4\nshellcode:\n  width: 8\n"), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "x64", cfg.Triage.Arch)
	assert.Equal(t, 4, cfg.Triage.Workers)
	assert.Equal(t, 8, cfg.Shellcode.Width)
	assert.Equal(t, "little", cfg.Triage.Endianness)
	assert.Equal(t, "py", cfg.Shellcode.OutFormat)
}

func TestLoadFromPathErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFromPath(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pattern: [unclosed"), 0644))
	_, err = LoadFromPath(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("pattern:\n  arch: mips\n"), 0644))
	_, err = LoadFromPath(invalid)
	assert.ErrorContains(t, err, "validation")
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FRAMEKIT_ARCH", "X64")
	t.Setenv("FRAMEKIT_ENDIANNESS", "big")
	t.Setenv("FRAMEKIT_CACHE_DIR", "/tmp/fk-cache")
	t.Setenv("FRAMEKIT_DEBUG", "true")
	t.Setenv("FRAMEKIT_HISTORY", "/tmp/fk.db")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "x64", cfg.Pattern.Arch)
	assert.Equal(t, "x64", cfg.Triage.Arch)
	assert.Equal(t, "big", cfg.Triage.Endianness)
	assert.Equal(t, "/tmp/fk-cache", cfg.Cache.Dir)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/fk.db", cfg.History.Path)

	t.Setenv("FRAMEKIT_HISTORY", "0")
	applyEnvOverrides(cfg)
	assert.False(t, cfg.History.Enabled)
}

func TestEnvArchAutoOnlyAppliesToTriage(t *testing.T) {
	clearEnv(t)
	t.Setenv("FRAMEKIT_ARCH", "AUTO")

	cfg := DefaultConfig()
	cfg.Pattern.Arch = "x64"
	cfg.Triage.Arch = "x86"
	applyEnvOverrides(cfg)

	assert.Equal(t, "x64", cfg.Pattern.Arch)
	assert.Equal(t, "auto", cfg.Triage.Arch)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsProjectConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.MkdirAll(".framekit", 0755))
	require.NoError(t, os.WriteFile(filepath.Join(".framekit", "config.yaml"), []byte("pattern:\n  endianness: big\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "big", cfg.Pattern.Endianness)
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# framekit configuration")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseByteList(t *testing.T) {
	got, err := ParseByteList([]string{"00", "0x0A", " 0d ", ""})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x0a, 0x0d}, got)

	_, err = ParseByteList([]string{"100"})
	assert.Error(t, err)
	_, err = ParseByteList([]string{"g0"})
	assert.Error(t, err)

	got, err = SplitByteList("00,ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, got)

	got, err = SplitByteList("  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
