package main

import (
	"encoding/hex"
	"fmt"

	"framekit/history"
	"framekit/pattern"
	"framekit/render"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type patternFlags struct {
	length     int
	arch       string
	wordSize   int
	endianness string
}

func (f *patternFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.length, "length", "l", 0, "Pattern length")
	cmd.Flags().StringVar(&f.arch, "arch", "", "Architecture: x86 or x64 (default from config)")
	cmd.Flags().IntVar(&f.wordSize, "word-size", 0, "Override word size (4 or 8 bytes)")
	cmd.Flags().StringVar(&f.endianness, "endianness", "", "Endianness: little or big (default from config)")
	_ = cmd.MarkFlagRequired("length")
}

// config resolves the pattern configuration from flags and config defaults.
func (f *patternFlags) config(a *app) (pattern.Config, error) {
	arch, err := pattern.ParseArch(orDefault(f.arch, a.cfg.Pattern.Arch))
	if err != nil {
		return pattern.Config{}, err
	}
	endianness, err := pattern.ParseEndianness(orDefault(f.endianness, a.cfg.Pattern.Endianness))
	if err != nil {
		return pattern.Config{}, err
	}

	pc := pattern.ForArch(arch, endianness)
	if f.wordSize != 0 {
		pc.WordSize = f.wordSize
	}
	return pc, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (a *app) patternCmd() *cobra.Command {
	patternCmd := &cobra.Command{
		Use:   "pattern",
		Short: "Generate cyclic patterns and locate offsets",
	}
	patternCmd.AddCommand(a.patternCreateCmd())
	patternCmd.AddCommand(a.patternOffsetCmd())
	return patternCmd
}

func (a *app) patternCreateCmd() *cobra.Command {
	var (
		flags   patternFlags
		hexOut  bool
		newline bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a deterministic cyclic pattern to stdout",
		Long: `Writes a cyclic pattern (Aa0Aa1Aa2...) of the requested length.

Example:
  framekit pattern create -l 800 > payload.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := flags.config(a)
			if err != nil {
				return err
			}

			gen, err := pattern.NewGenerator(pc)
			if err != nil {
				return err
			}

			p, err := gen.Create(flags.length)
			if err != nil {
				return err
			}
			a.logger.Debug("pattern created", zap.Int("length", len(p)), zap.Int("capacity", gen.Capacity()))

			out := string(p)
			if hexOut {
				out = hex.EncodeToString(p)
			}
			if newline || isTerminal(cmd.OutOrStdout()) {
				out += "\n"
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&hexOut, "hex", false, "Output the pattern hex encoded")
	cmd.Flags().BoolVar(&newline, "newline", false, "Append a newline to the output")
	return cmd
}

func (a *app) patternOffsetCmd() *cobra.Command {
	var (
		flags patternFlags
		query string
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "offset",
		Short: "Find the offset of an overwritten value in a cyclic pattern",
		Long: `Regenerates the pattern and searches it for the queried value.

Register values are byte-swapped for little endian targets; pass --raw when
the query is already in memory order.

Examples:
  framekit pattern offset -l 800 -q 42306142
  framekit pattern offset -l 800 -q 0x42306142
  framekit pattern offset -l 800 -q 42613042 --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := flags.config(a)
			if err != nil {
				return err
			}

			resolver, err := pattern.NewResolver(pc)
			if err != nil {
				return err
			}

			offset, found, err := resolver.FindOffset(flags.length, pattern.HexQuery(query), raw)
			if err != nil {
				return err
			}

			render.Offset(cmd.OutOrStdout(), offset, found)

			if found {
				a.record(cmd.Context(), history.KindOffset, query,
					fmt.Sprintf("%s at offset %d (length %d)", query, offset, flags.length),
					map[string]any{
						"query":      query,
						"offset":     offset,
						"length":     flags.length,
						"word_size":  pc.WordSize,
						"endianness": pc.Endianness,
						"raw":        raw,
					})
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&query, "query", "q", "", "Overwritten value (hex, e.g. 42306142 or 0x42306142)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Treat the query as raw memory bytes (no endian reversal)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
