package main

import (
	"context"
	"fmt"

	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/history"
	"codeberg.org/mutker/refreshd/internal/power"
	"codeberg.org/mutker/refreshd/internal/reconciler"
	"github.com/spf13/cobra"
)

// fixedRate is a power and settings source that always reports AC power
// and the same rate.
type fixedRate int

func (f fixedRate) ACHz() int              { return int(f) }
func (f fixedRate) BatteryHz() int         { return int(f) }
func (fixedRate) OnChange(string, func())  {}
func (fixedRate) Current() power.State     { return power.OnAC }
func (fixedRate) Changes() <-chan struct{} { return nil }

func newApplyCmd(a *app) *cobra.Command {
	var hz int

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Switch the output to a refresh rate once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.apply(cmd, hz)
		},
	}
	cmd.Flags().IntVar(&hz, "refresh-rate", 0, "Refresh rate in Hz")
	_ = cmd.MarkFlagRequired("refresh-rate")

	return cmd
}

func (a *app) apply(cmd *cobra.Command, hz int) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if hz <= 0 {
		return errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("refresh rate %d", hz))
	}

	method, ok := display.ParseApplyMethod(a.cfg.ApplyMethod)
	if !ok {
		return errors.New().WithData(errors.ErrInvalidConfig, a.cfg.ApplyMethod)
	}

	mutter, err := display.ConnectMutter(a.logger)
	if err != nil {
		return err
	}
	defer mutter.Close()

	historyCfg := history.DefaultConfig(a.cfg.HistoryDB)
	historyCfg.Enabled = a.cfg.History
	recorder, err := history.NewService(historyCfg, a.logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	opts := reconciler.Options{
		Connector:     display.ResolveConnector(ctx, a.cfg.Connector, a.cfg.ConnectorCommand, a.logger),
		Method:        method,
		CallTimeout:   a.cfg.CallTimeout,
		SkipIfCurrent: a.cfg.SkipIfCurrent,
	}

	r := reconciler.New(mutter, mutter, fixedRate(hz), fixedRate(hz), opts, a.logger,
		reconciler.WithHistory(recorder))

	res := r.Reconcile(ctx, "cli")

	fmt.Fprintf(cmd.OutOrStdout(), "%s %dHz: %s\n", res.Connector, res.TargetHz, res.Outcome)

	return res.Err
}
