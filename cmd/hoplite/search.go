package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoplite-search/hoplite"
)

func newSearchCmd() *cobra.Command {
	var (
		count      int
		site       string
		timePeriod string
		intentName string
		related    bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single cached web search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			req := hoplite.SearchRequest{
				Query:      args[0],
				Count:      count,
				Site:       site,
				TimePeriod: timePeriod,
				GetRelated: related,
			}
			if intentName != "" {
				req.Intent = hoplite.ParseIntent(intentName)
			}

			payload, err := app.runtime.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(payload)
			}
			printPayload(payload)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "number of results")
	cmd.Flags().StringVar(&site, "site", "", "restrict results to a single site")
	cmd.Flags().StringVar(&timePeriod, "period", "", "restrict results to day, week, month or year")
	cmd.Flags().StringVar(&intentName, "intent", "", "intent override (news, technical, shopping, academic, finance, local, general)")
	cmd.Flags().BoolVar(&related, "related", false, "include related search suggestions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw payload as JSON")

	return cmd
}

func printPayload(payload hoplite.Payload) {
	if meta, ok := payload["cache_metadata"].(map[string]any); ok {
		fmt.Printf("cache: %v (age %vs)\n", meta["status"], meta["age_seconds"])
	}
	if intent, ok := payload["intent"].(string); ok {
		fmt.Printf("intent: %s\n", intent)
	}
	fmt.Println()

	results, _ := payload["results"].([]any)
	for i, raw := range results {
		result, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("%2d. %v\n    %v\n", i+1, result["title"], result["url"])
		if description, ok := result["description"].(string); ok && description != "" {
			fmt.Printf("    %s\n", description)
		}
	}

	if related, ok := payload["related_searches"].([]string); ok && len(related) > 0 {
		fmt.Println("\nrelated searches:")
		for _, suggestion := range related {
			fmt.Printf("  - %s\n", suggestion)
		}
	}
}
