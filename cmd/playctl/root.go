package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "playctl",
		Short:         "playctl drives CodePrep playgrounds from the command line",
		Long:          `playctl executes JavaScript and JSX the way the playground server does and browses the question catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().String("catalog", "", "Catalog directory (embedded catalog when empty)")

	root.AddCommand(newRunCmd(), newBenchCmd(), newCatalogCmd())
	return root
}
