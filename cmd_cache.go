package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"framekit/cache"
	"framekit/render"

	"github.com/spf13/cobra"
)

func (a *app) cacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the triage result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the cache location and entry count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Cache.Enabled {
				render.Status(cmd.OutOrStdout(), "Result cache", [][2]string{{"state", "disabled"}})
				return nil
			}
			c, err := a.newCache()
			if err != nil {
				return err
			}

			ttl := "none"
			if a.cfg.Cache.TTLDays > 0 {
				ttl = strconv.Itoa(a.cfg.Cache.TTLDays) + " days"
			}
			render.Status(cmd.OutOrStdout(), "Result cache", [][2]string{
				{"dir", a.cfg.Cache.Dir},
				{"entries", strconv.Itoa(c.Size())},
				{"ttl", ttl},
			})
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Cache.Enabled {
				return errors.New("cache is disabled")
			}
			c, err := a.newCache()
			if err != nil {
				return err
			}
			n := c.Size()
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+] Removed %d cached results\n", n)
			return nil
		},
	}

	cacheCmd.AddCommand(statsCmd)
	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}

// newCache opens the configured cache without expiring anything.
func (a *app) newCache() (*cache.Cache, error) {
	return cache.New(cache.Options{
		Dir:     a.cfg.Cache.Dir,
		TTL:     time.Duration(a.cfg.Cache.TTLDays) * 24 * time.Hour,
		Enabled: true,
	})
}
