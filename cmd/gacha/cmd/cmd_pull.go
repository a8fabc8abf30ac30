package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/tokenized/gacha/internal/pull"
	"github.com/tokenized/gacha/pkg/scheduler"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tokenized/pkg/logger"
)

const (
	statusFrequency = 10 * time.Second

	// waitMargin is added to the pull timeout so the reconciler reports the timeout first.
	waitMargin = 5 * time.Second
)

func newPullCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "pull",
		Short: "Pull a card and wait for it to be confirmed and stored.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			format, _ := c.Flags().GetString(FlagFormat)
			if err := validFormat(format); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(newContext(), os.Interrupt)
			defer stop()

			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			account, err := app.Reconciler.Connect(ctx)
			if err != nil {
				return err
			}

			go func() {
				if err := app.Scheduler.Run(ctx); err != nil {
					logger.Error(ctx, "Scheduler failed : %s", err)
				}
			}()
			defer app.Scheduler.Stop(context.Background())

			// Subscribe before submitting so the confirmation can't be missed.
			listener, err := app.Reconciler.Listen(ctx)
			if err != nil {
				return errors.Wrap(err, "listen")
			}
			defer listener.Close()

			request, err := app.Reconciler.Submit(ctx, account)
			if err != nil {
				return err
			}

			status := scheduler.NewPeriodicProcess("pull-status",
				scheduler.PeriodicProcessFunc(func(ctx context.Context) {
					logStatus(ctx, app.Reconciler.Status())
				}), statusFrequency)
			if err := app.Scheduler.ScheduleJob(ctx, status); err != nil {
				logger.Warn(ctx, "Failed to schedule pull status : %s", err)
			} else {
				defer app.Scheduler.CancelJob(ctx, status)
			}

			waitCtx := ctx
			if !request.Deadline.IsZero() {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithDeadline(ctx, request.Deadline.Add(waitMargin))
				defer cancel()
			}

			snapshot, err := app.Reconciler.Wait(waitCtx)
			if err != nil {
				return errors.Wrapf(err, "wait for %s", request.TxID)
			}

			return finishPull(ctx, c, app.Reconciler, snapshot, format)
		},
	}

	c.Flags().String(FlagFormat, FormatText, "Output format: text, json or yaml")
	return c
}

// finishPull reports the terminal state of a pull.
func finishPull(ctx context.Context, c *cobra.Command, r *pull.Reconciler,
	snapshot pull.Snapshot, format string) error {

	switch snapshot.State {
	case pull.StatusFailed:
		return errors.Wrap(snapshot.Err, "pull failed")

	case pull.StatusConfirmed:
		if snapshot.Err != nil {
			// The card is on the ledger, only storing it failed.
			if err := r.RetryPersist(ctx); err != nil {
				err = errors.Wrap(err, "card pulled but not stored")
				if rerr := renderCard(c.OutOrStdout(), snapshot.Record, format); rerr != nil {
					return errors.Wrapf(err, "render card : %s", rerr)
				}
				return err
			}
		}
		return renderCard(c.OutOrStdout(), snapshot.Record, format)
	}

	return errors.Errorf("Pull ended in state %s", snapshot.State)
}

func logStatus(ctx context.Context, snapshot pull.Snapshot) {
	if snapshot.Request == nil {
		return
	}
	logger.Info(ctx, "Pull %s : %s", snapshot.Request.TxID, snapshot.State)
}
