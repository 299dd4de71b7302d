package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sideline/internal/config"
	"sideline/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var filterStatuses []string
	var countsOnly bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List sessions and their pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *session.Store) error {
				out := cmd.OutOrStdout()

				if countsOnly {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					rows := buildStatusCountRows(stats)
					if len(rows) == 0 {
						fmt.Fprintln(out, "No sessions yet")
						return nil
					}
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows,
						[]columnAlignment{alignLeft, alignRight}))
					return nil
				}

				var statuses []session.Status
				for _, value := range filterStatuses {
					status, ok := session.ParseStatus(value)
					if !ok {
						return fmt.Errorf("unknown status %q", value)
					}
					statuses = append(statuses, status)
				}

				sessions, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions yet")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Session", "State", "Offset", "Progress", "Updated"},
					buildSessionRows(sessions),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&filterStatuses, "status", "s", nil, "Filter by session status (repeatable)")
	cmd.Flags().BoolVar(&countsOnly, "counts", false, "Show per-status counts instead of the session list")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Reset failed sessions for another attempt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSessionIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *session.Store) error {
				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if updated == 0 {
					fmt.Fprintln(out, "No failed sessions matched")
					return nil
				}
				fmt.Fprintf(out, "Reset %d sessions for retry\n", updated)
				return nil
			})
		},
	}
}

func parseSessionIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid session id %q", arg)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one session id is required")
	}
	return ids, nil
}
