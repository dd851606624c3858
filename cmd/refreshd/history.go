package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/refreshd/internal/history"
	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 20

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reconciliation attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.history(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Number of attempts to show")

	return cmd
}

func (a *app) history(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := history.DefaultConfig(a.cfg.HistoryDB)
	cfg.Enabled = true

	repo, err := history.NewRepository(cfg, a.logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	attempts, err := repo.Recent(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCAUSE\tPOWER\tCONNECTOR\tHZ\tOUTCOME\tERROR\tDURATION")
	for _, at := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			at.Timestamp.Format(time.DateTime),
			at.Trigger,
			at.PowerState,
			at.Connector,
			at.TargetHz,
			at.Outcome,
			at.ErrorCode,
			at.Duration,
		)
	}

	return w.Flush()
}
