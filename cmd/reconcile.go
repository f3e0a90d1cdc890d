package cmd

import (
	"fmt"

	"milda_bot/services"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Prompt reporters of resolved tickets once, then exit",
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	backend, err := services.OpenBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	api, err := services.NewAPI(cfg, logger)
	if err != nil {
		return err
	}
	r := services.NewReconciler(api, backend.Store, backend.Pool, cfg.ReconcileInterval, cfg.ReconcileFirstRun, logger)
	n, err := r.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "prompted %d reporters\n", n)
	return nil
}
