package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sideline/internal/config"
	"sideline/internal/session"
	"sideline/internal/workflow"
)

func newCalibrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate <session>",
		Short: "Estimate and persist the geometric calibration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *session.Store, mgr *workflow.Manager) error {
				sess, err := resolveSession(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if sess.CalibrationPath != "" && sess.Status != session.StatusAligned {
					fmt.Fprintf(cmd.OutOrStdout(), "Session %s already calibrated: %s\n", sess.SessionKey, sess.CalibrationPath)
					return nil
				}
				if err := mgr.RunUntil(cmd.Context(), sess, session.StatusCalibrated); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Calibration saved to %s\n", sess.CalibrationPath)
				return nil
			})
		},
	}
}

func newStitchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stitch <session>",
		Short: "Run the session through to the stitched output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *session.Store, mgr *workflow.Manager) error {
				sess, err := resolveSession(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				runErr := mgr.RunSession(cmd.Context(), sess)
				if runErr != nil && sess.Status != session.StatusCompleted {
					return runErr
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Stitched %d frames to %s\n", sess.FramesStitched, sess.OutputPath)
				if sess.Partial {
					fmt.Fprintf(out, "Warning: %s\n", sess.Warning)
				}
				return nil
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Recover interrupted sessions and process queued ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *session.Store, mgr *workflow.Manager) error {
				out := cmd.OutOrStdout()

				recovered, err := mgr.Recover(cmd.Context())
				if err != nil {
					return err
				}
				if recovered > 0 {
					fmt.Fprintf(out, "Recovered %d interrupted sessions\n", recovered)
				}

				processed := 0
				for {
					sess, found, err := mgr.ProcessNext(cmd.Context())
					if !found {
						if err != nil {
							return err
						}
						break
					}
					processed++
					if err != nil && sess.Status != session.StatusCompleted {
						if errors.Is(err, context.Canceled) {
							return err
						}
						fmt.Fprintf(out, "Session %s: %v\n", sess.SessionKey, err)
						continue
					}
					fmt.Fprintf(out, "Session %s: %s\n", sess.SessionKey, sess.CompletionLabel())
				}
				if processed == 0 {
					fmt.Fprintln(out, "No sessions ready for processing")
				}
				return nil
			})
		},
	}
}
