package main

import (
	"errors"
	"fmt"

	"framekit/badchars"
	"framekit/config"
	"framekit/history"
	"framekit/render"
	"framekit/shellcode"

	"github.com/spf13/cobra"
)

// excludeList resolves --exclude against the configured default.
func (a *app) excludeList(cmd *cobra.Command, flag string) ([]byte, error) {
	if cmd.Flags().Changed("exclude") {
		return config.SplitByteList(flag)
	}
	return config.ParseByteList(a.cfg.Badchars.Exclude)
}

func (a *app) badcharsCmd() *cobra.Command {
	badcharsCmd := &cobra.Command{
		Use:   "badchars",
		Short: "Find bad characters and check payloads against transport profiles",
	}
	badcharsCmd.AddCommand(a.badcharsCompareCmd())
	badcharsCmd.AddCommand(a.badcharsGenerateCmd())
	badcharsCmd.AddCommand(a.badcharsProfilesCmd())
	badcharsCmd.AddCommand(a.badcharsCheckCmd())
	return badcharsCmd
}

func (a *app) badcharsCompareCmd() *cobra.Command {
	var expectedHex, observedHex, exclude string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the bytes sent with the bytes observed in memory",
		Long: `Walks the expected and observed byte streams and reports bytes that were
dropped (bad) or rewritten (transformed).

Example:
  framekit badchars compare --expected 0102030405 --observed 01020405`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, err := shellcode.ParseHex(expectedHex)
			if err != nil {
				return fmt.Errorf("--expected: %w", err)
			}
			observed, err := shellcode.ParseHex(observedHex)
			if err != nil {
				return fmt.Errorf("--observed: %w", err)
			}
			excl, err := a.excludeList(cmd, exclude)
			if err != nil {
				return err
			}

			result := badchars.NewAnalyzer(excl).Analyze(expected, observed)
			render.Badchars(cmd.OutOrStdout(), result)

			summary := "clean"
			if !result.Clean() {
				summary = "bad: " + badchars.ByteList(result.Badchars).String()
			}
			a.record(cmd.Context(), history.KindBadchars, "compare", summary, map[string]any{
				"badchars":    badchars.ByteList(result.Badchars),
				"transformed": len(result.Transformed),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&expectedHex, "expected", "", "Expected bytes as hex")
	cmd.Flags().StringVar(&observedHex, "observed", "", "Observed bytes from memory as hex")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated hex bytes to exclude (default from config: 00)")
	_ = cmd.MarkFlagRequired("expected")
	_ = cmd.MarkFlagRequired("observed")
	return cmd
}

func (a *app) badcharsGenerateCmd() *cobra.Command {
	var exclude, format string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the 0x00-0xff test byte sequence minus excluded bytes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			excl, err := a.excludeList(cmd, exclude)
			if err != nil {
				return err
			}

			data := badchars.NewAnalyzer(excl).GenerateTestBytes()
			out, err := shellcode.Format(data, shellcode.OutputFormat(format), shellcode.FormatOptions{
				Width:   a.cfg.Shellcode.Width,
				VarName: "badchars",
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated hex bytes to exclude (default from config: 00)")
	cmd.Flags().StringVar(&format, "format", "hex", "Output format: hex, escaped, py or c")
	return cmd
}

func (a *app) badcharsProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List transport context profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := badchars.NewRegistry()
			var profiles []badchars.Profile
			for _, name := range registry.Names() {
				p, err := registry.Get(name)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
			}
			render.Profiles(cmd.OutOrStdout(), profiles)
			return nil
		},
	}
}

func (a *app) badcharsCheckCmd() *cobra.Command {
	var (
		profileName string
		sanitize    bool
		replaceHex  string
	)

	cmd := &cobra.Command{
		Use:   "check HEX",
		Short: "Check a payload against a transport profile and show its encoding",
		Long: `Reports which of the profile's bad characters the payload contains and
renders it with the profile encoder.

Example:
  framekit badchars check --profile url_query 41204223`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := badchars.NewRegistry().Get(orDefault(profileName, a.cfg.Badchars.Profile))
			if err != nil {
				return err
			}

			payload, err := shellcode.ParseHex(args[0])
			if err != nil {
				return err
			}

			found := badchars.Validate(payload, p.Badchars())
			encoded, encErr := p.Encode(payload)
			render.ProfileCheck(cmd.OutOrStdout(), p, payload, found, encoded, encErr)

			if sanitize {
				var replace *byte
				if replaceHex != "" {
					r, err := config.ParseByteList([]string{replaceHex})
					if err != nil {
						return fmt.Errorf("--replace: %w", err)
					}
					if len(r) == 0 {
						return errors.New("--replace: empty byte")
					}
					replace = &r[0]
				}
				clean := badchars.Sanitize(payload, p, replace, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "  sanitized: %x\n", clean)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Profile name (default from config: raw_tcp)")
	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "Also print the payload with the profile's bad bytes removed")
	cmd.Flags().StringVar(&replaceHex, "replace", "", "With --sanitize, replace bad bytes with this byte instead of removing them")
	return cmd
}
