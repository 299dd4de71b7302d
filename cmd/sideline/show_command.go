package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sideline/internal/calibration"
	"sideline/internal/config"
	"sideline/internal/session"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Display one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *session.Store) error {
				sess, err := resolveSession(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				printSection(out, fmt.Sprintf("Session %s (#%d)", sess.SessionKey, sess.ID), colorize)
				fmt.Fprintln(out, renderStatusLine("State", sessionStatusKind(sess), sess.CompletionLabel(), colorize))
				fmt.Fprintln(out, renderDetailLine("Left source", sess.LeftSource))
				fmt.Fprintln(out, renderDetailLine("Right source", sess.RightSource))
				fmt.Fprintln(out, renderDetailLine("Offset", formatOffset(sess)))
				fmt.Fprintln(out, renderDetailLine("Progress", formatProgress(sess)))
				fmt.Fprintln(out, renderDetailLine("Created", formatDisplayTime(sess.CreatedAt)))
				fmt.Fprintln(out, renderDetailLine("Updated", formatDisplayTime(sess.UpdatedAt)))
				if sess.ErrorMessage != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, sess.ErrorMessage, colorize))
				}
				if sess.Warning != "" {
					fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, sess.Warning, colorize))
				}

				if sess.CalibrationPath != "" {
					printCalibration(out, cfg, sess, colorize)
				}

				if sess.OutputPath != "" {
					fmt.Fprintln(out)
					printSection(out, "Output", colorize)
					fmt.Fprintln(out, renderDetailLine("Path", sess.OutputPath))
					fmt.Fprintln(out, renderDetailLine("Frames", fmt.Sprintf("%d", sess.FramesStitched)))
					fmt.Fprintln(out, renderDetailLine("Partial", yesNo(sess.Partial)))
				}
				return nil
			})
		},
	}
}

func printSection(out io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func printCalibration(out io.Writer, cfg *config.Config, sess *session.Session, colorize bool) {
	fmt.Fprintln(out)
	printSection(out, "Calibration", colorize)

	record, err := calibration.NewStore(cfg).Load(sess.SessionKey)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Record", statusWarn, err.Error(), colorize))
		return
	}
	fmt.Fprintln(out, renderDetailLine("Record", sess.CalibrationPath))
	fmt.Fprintln(out, renderDetailLine("Canvas", fmt.Sprintf("%dx%d (offset %d,%d)",
		record.CanvasWidth, record.CanvasHeight, record.OffsetX, record.OffsetY)))
	fmt.Fprintln(out, renderDetailLine("Blend", fmt.Sprintf("x %d..%d, %s curve",
		record.BlendXStart, record.BlendXEnd, record.BlendCurve)))
	fmt.Fprintln(out, renderDetailLine("Fit", fmt.Sprintf("%d/%d inliers (ratio %.2f)",
		record.Inliers, record.Matches, record.InlierRatio)))
	fmt.Fprintln(out, renderDetailLine("Sync", fmt.Sprintf("%+.3fs via %s",
		record.Offset.Seconds, record.Offset.Method)))
}

func sessionStatusKind(sess *session.Session) statusKind {
	switch {
	case sess.Status == session.StatusFailed:
		return statusError
	case sess.Status == session.StatusCompleted && sess.Partial:
		return statusWarn
	case sess.Status == session.StatusCompleted:
		return statusOK
	default:
		return statusInfo
	}
}
