package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/igne-dev/pluginhost/config"
	"github.com/igne-dev/pluginhost/contract"
)

func newContractCommand(configPath *string) *cobra.Command {
	contractCmd := &cobra.Command{
		Use:   "contract",
		Short: "Inspect and regenerate the pinned API contract",
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the live API surface against the pinned contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			snapshot, err := contract.LoadSnapshot(cfg.ContractPath)
			if err != nil {
				return err
			}
			if err := contract.NewGuard(snapshot).Verify(cfg.HostAPIVersion()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "contract ok: api %s matches %s\n",
				cfg.APIVersion, cfg.ContractPath)
			return nil
		},
	}

	pinCmd := &cobra.Command{
		Use:   "pin",
		Short: "Regenerate the pinned contract from the live API surface",
		Long: `Serializes the current plugin-facing API surface and writes a fresh
snapshot. Run this after an intentional API change so that hosts stop
reporting contract drift.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			snapshot, err := contract.Pin(cfg.HostAPIVersion())
			if err != nil {
				return err
			}
			if err := contract.SaveSnapshot(cfg.ContractPath, snapshot); err != nil {
				return err
			}
			pinned := snapshot.Files[contract.SurfaceFileName]
			fmt.Fprintf(cmd.OutOrStdout(), "pinned %s: sha256=%s bytes=%d\n",
				cfg.ContractPath, pinned.SHA256, pinned.Bytes)
			return nil
		},
	}

	contractCmd.AddCommand(verifyCmd)
	contractCmd.AddCommand(pinCmd)
	return contractCmd
}
