package main

import (
	"errors"

	"framekit/history"
	"framekit/render"

	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		kind    string
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded findings",
		Long: `Lists findings recorded by pattern offset, triage and badchars compare,
newest first. Recording is enabled with history.enabled in the config or
FRAMEKIT_HISTORY=1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := history.ParseKind(kind)
			if err != nil {
				return err
			}
			if a.cfg.History.Path == "" {
				return errors.New("history.path is not configured")
			}

			store, err := history.Open(a.cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			findings, err := store.List(cmd.Context(), limit, k)
			if err != nil {
				return err
			}

			if jsonOut {
				if findings == nil {
					findings = []history.Finding{}
				}
				return render.JSON(cmd.OutOrStdout(), findings)
			}
			render.Findings(cmd.OutOrStdout(), findings)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only list this kind: offset, triage or badchars")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum findings to list (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}
