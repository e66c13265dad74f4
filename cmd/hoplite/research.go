package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research <query>",
		Short: "Run the search, fetch-details, summarize research plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			result, state, err := app.runtime.Research(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			summary, ok := state["summaries"].(map[string]any)
			if !ok {
				if summaryHop, exists := result.Results["summary"]; exists {
					summary, _ = summaryHop.Output.(map[string]any)
				}
			}
			if summary != nil {
				fmt.Printf("summary:\n%v\n", summary["summary"])
				if keyPoints, ok := summary["key_points"].([]string); ok && len(keyPoints) > 0 {
					fmt.Println("\nkey points:")
					for _, point := range keyPoints {
						fmt.Printf("  - %s\n", point)
					}
				}
			}

			fmt.Println("\nhops:")
			for _, entry := range result.Trace {
				fmt.Printf("  %s (%s)", entry.Hop, entry.Tool)
				if len(entry.DependsOn) > 0 {
					fmt.Printf(" <- %v", entry.DependsOn)
				}
				fmt.Println()
			}
			return nil
		},
	}

	return cmd
}
