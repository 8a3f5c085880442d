// framekit is a toolkit for stack overflow exploit development: cyclic
// patterns and offset lookup, crash dump triage, bad character analysis and
// shellcode formatting.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"framekit/cache"
	"framekit/config"
	"framekit/history"
	"framekit/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1

	// exitNothingFound is used when triage had nothing usable to work with.
	exitNothingFound = 2
)

// exitError carries a specific exit code. A nil err exits quietly.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app holds state shared by every command of one invocation.
type app struct {
	// Global flags
	debug      bool
	quiet      bool
	configPath string
	target     string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig(), logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "framekit",
		Short: "Exploit development helpers: patterns, crash triage, bad chars, shellcode",
		Long: `framekit bundles the small tools used while developing a stack overflow
exploit against a lab target:

  pattern    generate a cyclic pattern and find the offset of an overwritten value
  triage     read debugger crash output and suggest the offset lookups to run
  badchars   compare sent and observed bytes, check transport profiles
  shellcode  parse, hash and reformat shellcode
  history    list recorded findings
  cache      inspect or clear cached triage results

Configuration is read from ~/.config/framekit/config.yaml and
.framekit/config.yaml; FRAMEKIT_* environment variables override both.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&a.quiet, "quiet", false, "Discard all log output (overrides --debug)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Load configuration from this file only")
	rootCmd.PersistentFlags().StringVar(&a.target, "target", "", "Label for findings recorded in history")

	rootCmd.AddCommand(a.patternCmd())
	rootCmd.AddCommand(a.triageCmd())
	rootCmd.AddCommand(a.badcharsCmd())
	rootCmd.AddCommand(a.shellcodeCmd())
	rootCmd.AddCommand(a.historyCmd())
	rootCmd.AddCommand(a.cacheCmd())
	rootCmd.AddCommand(a.configCmd())

	return rootCmd
}

// setup loads configuration and builds the logger.
func (a *app) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Options{Debug: a.debug || cfg.Debug, Quiet: a.quiet})
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("config loaded",
		zap.String("pattern_arch", cfg.Pattern.Arch),
		zap.String("triage_arch", cfg.Triage.Arch),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("history", cfg.History.Enabled))
	return nil
}

// openCache returns the result cache, or nil when caching is off.
func (a *app) openCache(noCache bool) *cache.Cache {
	if noCache || !a.cfg.Cache.Enabled {
		return nil
	}
	c, err := a.newCache()
	if err != nil {
		a.logger.Warn("cache unavailable", zap.Error(err))
		return nil
	}
	if err := c.Cleanup(); err != nil {
		a.logger.Debug("cache cleanup failed", zap.Error(err))
	}
	return c
}

// record stores a finding when history is enabled. Failures are logged,
// never fatal.
func (a *app) record(ctx context.Context, kind history.Kind, target, summary string, detail any) {
	if !a.cfg.History.Enabled {
		return
	}
	if a.target != "" {
		target = a.target
	}

	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		a.logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	f, err := store.Record(ctx, kind, target, summary, detail)
	if err != nil {
		a.logger.Warn("recording finding failed", zap.Error(err))
		return
	}
	a.logger.Debug("finding recorded", zap.String("id", f.ID), zap.String("kind", string(kind)))
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "[-] Error: %v\n", ee.err)
		}
		return ee.code
	}

	fmt.Fprintf(stderr, "[-] Error: %v\n", err)
	return exitFailure
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
