package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the semantic result cache",
	}

	cmd.AddCommand(newCacheInvalidateCmd(), newCacheClearCmd())
	return cmd
}

// Cache subcommands operate on the snapshot-backed cache: the snapshot is
// restored in newApp, mutated here, then persisted again in close.
func newCacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <domain>",
		Short: "Drop every cached payload mentioning a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			removed := app.service.MarkDomainStale(args[0])
			fmt.Printf("invalidated %d cache entries for %s\n", removed, args[0])
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			app.service.ClearCache()
			fmt.Println("cache cleared")
			return nil
		},
	}
}
