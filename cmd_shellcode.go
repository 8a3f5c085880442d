package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"framekit/config"
	"framekit/render"
	"framekit/shellcode"

	"github.com/spf13/cobra"
)

func (a *app) shellcodeCmd() *cobra.Command {
	var (
		input     string
		binPath   string
		inFormat  string
		outFormat string
		width     int
		varName   string
		bad       string
		noFormat  bool
	)

	cmd := &cobra.Command{
		Use:   "shellcode",
		Short: "Parse, analyze and reformat shellcode",
		Long: `Reads shellcode as text (hex, \x escapes, a C array or a Python bytes
literal) or raw bytes, prints its length, hashes and bad characters, and
reformats it.

Examples:
  msfvenom ... -f hex | framekit shellcode
  framekit shellcode --input sc.py --in-format py --out-format c`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input != "" && binPath != "" {
				return errors.New("use only one of --bin or --input")
			}

			var data []byte
			if binPath != "" {
				raw, err := os.ReadFile(binPath)
				if err != nil {
					return fmt.Errorf("reading %s: %w", binPath, err)
				}
				data = raw
			} else {
				text, err := readText(cmd, input)
				if err != nil {
					return err
				}
				if strings.TrimSpace(text) == "" {
					return fmt.Errorf("%w: no input provided", shellcode.ErrParse)
				}
				data, err = shellcode.Parse(text, shellcode.InputFormat(inFormat))
				if err != nil {
					return err
				}
			}

			var (
				badBytes []byte
				err      error
			)
			if cmd.Flags().Changed("badchars") {
				badBytes, err = config.SplitByteList(bad)
			} else {
				badBytes, err = config.ParseByteList(a.cfg.Shellcode.Badchars)
			}
			if err != nil {
				return err
			}

			opts := shellcode.FormatOptions{
				Width:   a.cfg.Shellcode.Width,
				VarName: orDefault(varName, a.cfg.Shellcode.VarName),
			}
			if cmd.Flags().Changed("width") {
				opts.Width = width
			}

			formatted := ""
			if !noFormat {
				formatted, err = shellcode.Format(data, shellcode.OutputFormat(orDefault(outFormat, a.cfg.Shellcode.OutFormat)), opts)
				if err != nil {
					return err
				}
			}

			render.Shellcode(cmd.OutOrStdout(), shellcode.Analyze(data, badBytes), formatted)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Read text from this file instead of stdin")
	cmd.Flags().StringVar(&binPath, "bin", "", "Read raw bytes from a binary file")
	cmd.Flags().StringVar(&inFormat, "in-format", "hex", "Input format: hex, escaped, c or py")
	cmd.Flags().StringVar(&outFormat, "out-format", "", "Output format: hex, escaped, c or py (default from config: py)")
	cmd.Flags().IntVar(&width, "width", 0, "Bytes per line for py/c output (default from config: 16)")
	cmd.Flags().StringVar(&varName, "var", "", "Variable name for py/c output (default from config: sc)")
	cmd.Flags().StringVar(&bad, "badchars", "", "Comma-separated bad bytes to check (default from config: 00,0a,0d)")
	cmd.Flags().BoolVar(&noFormat, "no-format", false, "Only print the analysis")
	return cmd
}
