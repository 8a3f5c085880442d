// Package scanner walks crash dump directories, skipping tool noise and
// anything matched by .gitignore or .framekitignore.
package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFiles are read from the walk root, in order, and merged.
var IgnoreFiles = []string{".gitignore", ".framekitignore"}

// IgnoredDirs are directories to skip during scanning
var IgnoredDirs = map[string]bool{
	".git":         true,
	".framekit":    true,
	".idea":        true,
	".vscode":      true,
	"__pycache__":  true,
	".DS_Store":    true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
}

// DumpExtensions are the file suffixes treated as saved debugger output.
var DumpExtensions = map[string]bool{
	".txt":   true,
	".log":   true,
	".dump":  true,
	".crash": true,
}

// WalkOptions configures the file walking behavior.
type WalkOptions struct {
	// Ignore patterns to apply (can be nil)
	Ignore *ignore.GitIgnore

	// DumpsOnly restricts the walk to files with a DumpExtensions suffix.
	DumpsOnly bool
}

// WalkFunc is the callback function type for WalkFiles.
// It receives the absolute path, relative path, and file info for each file.
// Return filepath.SkipDir to skip a directory, or any other error to stop walking.
type WalkFunc func(absPath, relPath string, info os.FileInfo) error

// WalkFiles walks the directory tree and calls fn for each file.
func WalkFiles(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if IgnoredDirs[info.Name()] && relPath != "." {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if opts.Ignore != nil && relPath != "." && opts.Ignore.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		// Ignore files themselves are never dumps.
		for _, name := range IgnoreFiles {
			if relPath == name {
				return nil
			}
		}

		if opts.DumpsOnly && !IsDumpFile(path) {
			return nil
		}

		return fn(path, relPath, info)
	})
}

// IsDumpFile reports whether path has a dump file extension.
func IsDumpFile(path string) bool {
	return DumpExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadIgnore merges the ignore files found in root. It returns nil when
// none exist.
func LoadIgnore(root string) *ignore.GitIgnore {
	var lines []string

	for _, name := range IgnoreFiles {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		s := bufio.NewScanner(f)
		for s.Scan() {
			lines = append(lines, s.Text())
		}
		f.Close()
	}

	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

// DumpFile is a dump found by ScanDumps.
type DumpFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ScanDumps returns every dump file under root, sorted by relative path.
func ScanDumps(root string, ig *ignore.GitIgnore) ([]DumpFile, error) {
	var dumps []DumpFile

	opts := WalkOptions{
		Ignore:    ig,
		DumpsOnly: true,
	}

	err := WalkFiles(root, opts, func(absPath, relPath string, info os.FileInfo) error {
		dumps = append(dumps, DumpFile{Path: relPath, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(dumps, func(i, j int) bool { return dumps[i].Path < dumps[j].Path })
	return dumps, nil
}
