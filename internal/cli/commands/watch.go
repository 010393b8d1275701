package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/securewatch/securewatch/internal/gate"
	"github.com/securewatch/securewatch/internal/revalidate"
)

// NewWatchCmd creates the watch command
func NewWatchCmd(env *Env) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and report when it ends",
		Long: `Revalidates the stored session on a cron schedule and prints every change.
Exits when the session ends, or on interrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := env.ready(cmd.Context())
			if err != nil {
				return err
			}
			if !view.IsAuthenticated {
				return ErrNotAuthenticated
			}

			expr := firstNonEmpty(schedule, env.Config.Revalidate.Schedule)
			scheduler, err := revalidate.New(env.Session, expr, env.Logger)
			if err != nil {
				return err
			}

			return runWatch(cmd.Context(), cmd.OutOrStdout(), env.Gate, scheduler)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule for revalidation (default from SECUREWATCH_REVALIDATE)")

	return cmd
}

type scheduler interface {
	Run(ctx context.Context) error
}

func runWatch(ctx context.Context, out io.Writer, g *gate.Gate, s scheduler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		_ = s.Run(ctx)
	}()

	var last string
	for v := range g.Watch(ctx) {
		if !v.HasHydrated || v.IsLoading {
			continue
		}

		line := "anonymous"
		if v.User != nil {
			line = fmt.Sprintf("authenticated as %s (%s)", v.User.Name, v.User.Role)
		}
		if v.Error != nil {
			line += fmt.Sprintf(" - last error: %s", v.Error.Message)
		}
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}

		if !v.IsAuthenticated {
			fmt.Fprintln(out, "Session ended")
			return nil
		}
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
