package triage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"framekit/scanner"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileResult is the triage outcome for one dump file.
type FileResult struct {
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// OK reports whether the file produced at least one candidate.
func (f FileResult) OK() bool {
	return f.Error == "" && f.Result != nil
}

// BatchOptions configures Batch.
type BatchOptions struct {
	Options

	// Workers bounds concurrent triage; zero means GOMAXPROCS.
	Workers int

	Logger *zap.Logger
}

// TriageFile reads and triages a single dump file.
func TriageFile(path string, opts Options) FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Error: fmt.Sprintf("reading dump: %v", err)}
	}

	res, err := Triage(string(data), opts)
	switch {
	case err == nil:
		return FileResult{Path: path, Result: &res}
	case errors.Is(err, ErrNoCandidates):
		return FileResult{Path: path, Result: &res, Error: err.Error()}
	default:
		return FileResult{Path: path, Error: err.Error()}
	}
}

// Batch triages every dump file under root. Per-file failures are recorded
// in the results; only walk errors and cancellation are returned.
func Batch(ctx context.Context, root string, opts BatchOptions) ([]FileResult, error) {
	if err := opts.Options.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	dumps, err := scanner.ScanDumps(root, scanner.LoadIgnore(root))
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	log.Debug("batch triage", zap.String("root", root), zap.Int("files", len(dumps)), zap.Int("workers", workers))

	var (
		mu      sync.Mutex
		results = make([]FileResult, 0, len(dumps))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, d := range dumps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr := TriageFile(filepath.Join(root, d.Path), opts.Options)
			fr.Path = d.Path
			if fr.Error != "" {
				log.Debug("dump not triaged", zap.String("path", d.Path), zap.String("reason", fr.Error))
			}

			mu.Lock()
			results = append(results, fr)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}
