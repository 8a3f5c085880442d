package triage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"framekit/scanner"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a dump must stay quiet before it is triaged.
// Debuggers often write logs in several chunks.
const DefaultDebounce = 250 * time.Millisecond

// Watcher triages dump files as they appear in a directory.
type Watcher struct {
	dir      string
	opts     Options
	debounce time.Duration
	ignore   *ignore.GitIgnore
	log      *zap.Logger

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
}

// NewWatcher starts watching dir. Call Run to consume events and Close when
// Run is never started.
func NewWatcher(dir string, opts Options, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		opts:     opts,
		debounce: debounce,
		ignore:   scanner.LoadIgnore(dir),
		log:      log,
		fsw:      fsw,
	}, nil
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fsw.Close() })
	return err
}

// Run delivers a FileResult for each new or rewritten dump until ctx is
// cancelled. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, out chan<- FileResult) error {
	defer w.Close()

	tick := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer tick.Stop()

	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)

				fr := TriageFile(path, w.opts)
				if rel, err := filepath.Rel(w.dir, path); err == nil {
					fr.Path = rel
				}
				w.log.Debug("triaged dump", zap.String("path", fr.Path), zap.Bool("ok", fr.OK()))

				select {
				case out <- fr:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	if !scanner.IsDumpFile(path) {
		return false
	}
	if w.ignore == nil {
		return true
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	return !w.ignore.MatchesPath(rel)
}
