package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:     "hoplite",
		Short:   "Hoplite — cache-backed web search with multi-hop research plans",
		Version: version,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newSearchCmd(),
		newResearchCmd(),
		newPlanCmd(),
		newCacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
