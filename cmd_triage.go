package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"framekit/history"
	"framekit/pattern"
	"framekit/render"
	"framekit/triage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type triageFlags struct {
	length        int
	arch          string
	endianness    string
	jsonOut       bool
	allCandidates bool
}

func (f *triageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.length, "length", "l", 0, "Cyclic pattern length used for the crash run")
	cmd.Flags().StringVar(&f.arch, "arch", "", "Target architecture: x86, x64 or auto (default from config)")
	cmd.Flags().StringVar(&f.endianness, "endianness", "", "Target endianness for recommended commands")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Emit JSON instead of human-readable text")
	cmd.Flags().BoolVar(&f.allCandidates, "all-candidates", false, "Recommend lookups for every candidate, not just the top 3")
	_ = cmd.MarkFlagRequired("length")
}

func (f *triageFlags) options(a *app) triage.Options {
	return triage.Options{
		Length:        f.length,
		Arch:          orDefault(f.arch, a.cfg.Triage.Arch),
		Endianness:    pattern.Endianness(orDefault(f.endianness, a.cfg.Triage.Endianness)),
		AllCandidates: f.allCandidates || a.cfg.Triage.AllCandidates,
	}
}

func (a *app) triageCmd() *cobra.Command {
	var (
		flags   triageFlags
		input   string
		noCache bool
	)

	triageCmd := &cobra.Command{
		Use:   "triage",
		Short: "Parse debugger crash output and recommend pattern offset commands",
		Long: `Reads WinDbg or gdb crash output, ranks the registers and fault addresses
most likely to hold pattern bytes, and prints the pattern offset commands
to run next.

Exits 2 when the input is empty or nothing usable was parsed.

Examples:
  framekit triage -l 3000 --input crash.txt
  pbpaste | framekit triage -l 3000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(a)
			if err := opts.Validate(); err != nil {
				return err
			}

			text, err := readText(cmd, input)
			if err != nil {
				return err
			}

			res, hit, err := triage.Cached(a.openCache(noCache), text, opts)
			a.logger.Debug("triage finished", zap.Bool("cache_hit", hit), zap.Int("candidates", len(res.Candidates)))

			switch {
			case errors.Is(err, triage.ErrEmptyInput):
				return &exitError{code: exitNothingFound, err: err}
			case errors.Is(err, triage.ErrNoCandidates):
				if err := writeTriage(cmd.OutOrStdout(), res, flags.jsonOut); err != nil {
					return err
				}
				return &exitError{code: exitNothingFound}
			case err != nil:
				return err
			}

			if err := writeTriage(cmd.OutOrStdout(), res, flags.jsonOut); err != nil {
				return err
			}

			top := res.Candidates[0]
			a.record(cmd.Context(), history.KindTriage, orDefault(input, "stdin"),
				fmt.Sprintf("%s %s=%s (%s)", res.DetectedArch, top.Label(), top.ValueHex, top.Confidence),
				res)
			return nil
		},
	}

	flags.register(triageCmd)
	triageCmd.Flags().StringVar(&input, "input", "", "Crash dump text file (default: stdin)")
	triageCmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the result cache")

	triageCmd.AddCommand(a.triageBatchCmd())
	triageCmd.AddCommand(a.triageWatchCmd())
	return triageCmd
}

// readText reads path, or stdin when path is empty. A hint goes to stderr
// when stdin is a terminal.
func readText(cmd *cobra.Command, path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}

	in := cmd.InOrStdin()
	if isTerminal(in) {
		fmt.Fprintln(cmd.ErrOrStderr(), "[*] Reading from stdin, finish with Ctrl-D")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func writeTriage(w io.Writer, res triage.Result, jsonOut bool) error {
	if jsonOut {
		return render.JSON(w, res)
	}
	render.Triage(w, res)
	return nil
}

func (a *app) triageBatchCmd() *cobra.Command {
	var flags triageFlags

	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Triage every saved crash dump under a directory",
		Long: `Walks DIR for .txt, .log, .dump and .crash files, skipping anything
matched by .gitignore or .framekitignore, and triages them in parallel.

Exits 2 when no dump produced a candidate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(a)
			if err := opts.Validate(); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			results, err := triage.Batch(ctx, args[0], triage.BatchOptions{
				Options: opts,
				Workers: a.cfg.Triage.Workers,
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}

			if flags.jsonOut {
				if err := render.JSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				render.Batch(cmd.OutOrStdout(), results)
			}

			ok := 0
			for _, fr := range results {
				if !fr.OK() {
					continue
				}
				ok++
				top := fr.Result.Candidates[0]
				a.record(cmd.Context(), history.KindTriage, fr.Path,
					fmt.Sprintf("%s %s=%s (%s)", fr.Result.DetectedArch, top.Label(), top.ValueHex, top.Confidence),
					fr.Result)
			}
			if ok == 0 {
				return &exitError{code: exitNothingFound}
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func (a *app) triageWatchCmd() *cobra.Command {
	var (
		flags    triageFlags
		debounce = triage.DefaultDebounce
	)

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Triage crash dumps as they are saved into a directory",
		Long: `Watches DIR and triages each dump file when it is created or rewritten.
Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(a)
			if err := opts.Validate(); err != nil {
				return err
			}

			w, err := triage.NewWatcher(args[0], opts, debounce, a.logger)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := make(chan triage.FileResult)
			errc := make(chan error, 1)
			go func() {
				errc <- w.Run(ctx, out)
				close(out)
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "[*] Watching %s (Ctrl-C to stop)\n", args[0])
			for fr := range out {
				if flags.jsonOut {
					if err := render.JSON(cmd.OutOrStdout(), fr); err != nil {
						return err
					}
				} else {
					render.TriageEvent(cmd.OutOrStdout(), fr)
				}
				if fr.OK() {
					top := fr.Result.Candidates[0]
					a.record(ctx, history.KindTriage, fr.Path,
						fmt.Sprintf("%s %s=%s (%s)", fr.Result.DetectedArch, top.Label(), top.ValueHex, top.Confidence),
						fr.Result)
				}
			}

			if err := <-errc; err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", triage.DefaultDebounce, "Quiet period before a changed file is triaged")
	return cmd
}
