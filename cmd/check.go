package cmd

import (
	"fmt"

	"milda_bot/services"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and store access, then exit",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	backend, err := services.OpenBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	n, err := services.VerifyStore(cmd.Context(), backend.Store, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "store %s ok: %d tickets\n", cfg.StoreBackend, n)
	return nil
}
