package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/igne-dev/pluginhost/config"
	"github.com/igne-dev/pluginhost/plugin/resolvers"
	"github.com/igne-dev/pluginhost/plugin/values"
	"github.com/igne-dev/pluginhost/registry"
)

func newResolveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <plugin-id>",
		Short: "Show which release of a plugin this host would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			id, err := values.NewPluginID(args[0])
			if err != nil {
				return err
			}

			client, err := registry.NewClient(cfg.CatalogURL)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			latest, err := client.LatestRelease(ctx, id)
			if err != nil {
				return err
			}
			ledger, err := client.Versions(ctx, id)
			if err != nil {
				return err
			}

			resolver := resolvers.NewVersionResolver(cfg.HostAPIVersion())
			resolution := resolver.Resolve(latest, ledger)

			out := cmd.OutOrStdout()
			if !resolution.Runnable() {
				fmt.Fprintf(out, "%s: incompatible with this host (%s; latest requires host API >= %s)\n",
					id, resolution.Reason, resolution.MinAppVersion)
				return nil
			}
			fmt.Fprintf(out, "%s: would install %s (%s)\n", id, resolution.Version, resolution.Reason)
			return nil
		},
	}
}
