// ignehost is the operational tooling for the Igne plugin runtime:
// verifying and regenerating the pinned API contract, and resolving which
// release of a plugin this host build would run.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ignehost",
		Short: "Igne plugin runtime tooling",
		Long: `ignehost manages the Igne plugin compatibility runtime: the pinned API
contract plugins are verified against, and catalog version resolution.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ignehost.yaml", "path to the host config file")

	rootCmd.AddCommand(newContractCommand(&configPath))
	rootCmd.AddCommand(newResolveCommand(&configPath))

	return rootCmd
}
