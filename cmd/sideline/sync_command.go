package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sideline/internal/config"
	"sideline/internal/session"
	"sideline/internal/workflow"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "sync <left-source> <right-source>",
		Short: "Register a session and resolve its temporal offset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *session.Store, mgr *workflow.Manager) error {
				left, err := config.ExpandPath(args[0])
				if err != nil {
					return fmt.Errorf("resolve left source: %w", err)
				}
				right, err := config.ExpandPath(args[1])
				if err != nil {
					return fmt.Errorf("resolve right source: %w", err)
				}

				sessionKey := strings.TrimSpace(key)
				if sessionKey == "" {
					sessionKey = defaultSessionKey(left)
				}

				sess, err := store.NewSession(cmd.Context(), sessionKey, left, right)
				if errors.Is(err, session.ErrSessionExists) {
					existing, getErr := store.GetByKey(cmd.Context(), sessionKey)
					if getErr != nil {
						return getErr
					}
					if existing == nil {
						return err
					}
					if existing.LeftSource != left || existing.RightSource != right {
						return fmt.Errorf("session %s already exists with different sources", sessionKey)
					}
					sess = existing
				} else if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session %s (#%d)\n", sess.SessionKey, sess.ID)

				if sess.OffsetSeconds != nil {
					fmt.Fprintf(out, "Offset already resolved: %s\n", formatOffset(sess))
					return nil
				}
				if err := mgr.RunUntil(cmd.Context(), sess, session.StatusAligned); err != nil {
					return err
				}
				fmt.Fprintf(out, "Offset %s confidence %.2f\n", formatOffset(sess), sess.OffsetConfidence)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Session key (defaults to the capture date)")
	return cmd
}

// defaultSessionKey derives a date-based key from the left source's
// modification time, falling back to today.
func defaultSessionKey(leftSource string) string {
	if info, err := os.Stat(leftSource); err == nil {
		return info.ModTime().Format("2006-01-02")
	}
	return time.Now().Format("2006-01-02")
}
