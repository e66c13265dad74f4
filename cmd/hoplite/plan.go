package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoplite-search/hoplite/internal/orchestrator"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Validate and run YAML hop plans",
	}

	cmd.AddCommand(newPlanValidateCmd(), newPlanRunCmd())
	return cmd
}

func newPlanValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Validate a plan file without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := orchestrator.LoadPlan(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("plan is valid, %d hops in execution order:\n", plan.Len())
			for _, hop := range plan.Hops() {
				fmt.Printf("  %s (%s)", hop.Name, hop.Tool)
				if len(hop.DependsOn) > 0 {
					fmt.Printf(" <- %v", hop.DependsOn)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newPlanRunCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Execute a plan file against the built-in tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := orchestrator.LoadPlan(args[0])
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			executor := orchestrator.New(app.runtime.Tools(), orchestrator.WithLogger(app.logger))

			state := make(map[string]any)
			result, err := executor.Execute(cmd.Context(), plan, nil, state)
			if err != nil {
				return err
			}

			if asJSON {
				outputs := make(map[string]any, len(result.Results))
				for name, hopResult := range result.Results {
					outputs[name] = hopResult.Output
				}
				return json.NewEncoder(os.Stdout).Encode(outputs)
			}

			for _, entry := range result.Trace {
				fmt.Printf("%s (%s): ok\n", entry.Hop, entry.Tool)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print hop outputs as JSON")
	return cmd
}
