package main

import (
	"fmt"
	"strconv"

	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/settings"
	"github.com/spf13/cobra"
)

var sourceKeys = map[string]string{
	"ac":      settings.KeyRefreshRateAC,
	"battery": settings.KeyRefreshRateBattery,
}

func newSetRateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "set-rate ac|battery HZ",
		Short:     "Store the refresh rate for a power source",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"ac", "battery"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setRate(cmd, args[0], args[1])
		},
	}
}

func (a *app) setRate(cmd *cobra.Command, source, value string) error {
	errFactory := errors.New()

	key, ok := sourceKeys[source]
	if !ok {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "power source must be ac or battery")
	}

	hz, err := strconv.Atoi(value)
	if err != nil {
		return errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	store, err := settings.Open(a.cfg.SettingsFile, a.logger)
	if err != nil {
		return err
	}

	if err := store.Set(key, hz); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %d (%s)\n", key, hz, store.Path())

	return nil
}
