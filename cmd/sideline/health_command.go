package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sideline/internal/config"
	"sideline/internal/session"
	"sideline/internal/workflow"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check tool availability and ledger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *session.Store, mgr *workflow.Manager) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				printSection(out, "Stages", colorize)
				ready := true
				for _, health := range mgr.Health(cmd.Context()) {
					kind := statusOK
					if !health.Ready {
						kind = statusError
						ready = false
					}
					fmt.Fprintln(out, renderStatusLine(health.Name, kind, health.Detail, colorize))
				}

				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printSection(out, "Sessions", colorize)
				fmt.Fprintln(out, renderDetailLine("Total", fmt.Sprintf("%d", summary.Total)))
				fmt.Fprintln(out, renderDetailLine("Pending", fmt.Sprintf("%d", summary.Pending)))
				fmt.Fprintln(out, renderDetailLine("Processing", fmt.Sprintf("%d", summary.Processing)))
				fmt.Fprintln(out, renderDetailLine("Completed", fmt.Sprintf("%d", summary.Completed)))
				failedKind := statusOK
				if summary.Failed > 0 {
					failedKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", summary.Failed), colorize))

				if !ready {
					return fmt.Errorf("one or more stages are not ready")
				}
				return nil
			})
		},
	}
}
