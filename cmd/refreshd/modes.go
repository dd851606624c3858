package main

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/mutker/refreshd/internal/display"
	"github.com/spf13/cobra"
)

func newModesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List monitors and their modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.modes(cmd)
		},
	}
}

func (a *app) modes(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mutter, err := display.ConnectMutter(a.logger)
	if err != nil {
		return err
	}
	defer mutter.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	snapshot, err := mutter.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	printModes(cmd, snapshot, display.Connector(a.cfg.Connector))

	return nil
}

func printModes(cmd *cobra.Command, snapshot *display.Snapshot, only display.Connector) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "serial %d\n", snapshot.Serial)
	for _, m := range snapshot.Monitors {
		if only != "" && m.Spec.Connector != only {
			continue
		}

		name := m.DisplayName
		if name == "" {
			name = strings.TrimSpace(m.Spec.Vendor + " " + m.Spec.Product)
		}
		fmt.Fprintf(out, "%s (%s)\n", m.Spec.Connector, name)

		for _, mode := range m.Modes {
			var flags []string
			if mode.IsCurrent {
				flags = append(flags, "current")
			}
			if mode.IsPreferred {
				flags = append(flags, "preferred")
			}
			fmt.Fprintf(out, "  %-24s %4dx%-4d %8.3fHz %s\n",
				mode.ID, mode.Width, mode.Height, mode.RefreshRate, strings.Join(flags, ","))
		}
	}
}
