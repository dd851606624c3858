package main

import (
	"fmt"
	"io"

	"codeberg.org/mutker/refreshd/internal/config"
	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs after flag parsing.
type app struct {
	cfg    *config.Config
	logger logger.Logger
}

// execute runs the command line in args and reports a failure on stderr.
func execute(args []string, stdout, stderr io.Writer) error {
	a := &app{}

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		a.report(stderr, err)
	}

	return err
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "refreshd",
		Short: "Switch the display refresh rate with the power source",
		Long: `refreshd follows UPower's OnBattery property and asks Mutter to switch
one output to the refresh rate configured for AC or battery power.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newApplyCmd(a))
	rootCmd.AddCommand(newModesCmd(a))
	rootCmd.AddCommand(newSetRateCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	var opts []config.Option
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		opts = append(opts, config.WithConfigFile(f.Value.String()))
	}

	cfg, err := config.Load(cmd.Flags(), opts...)
	if err != nil {
		return err
	}

	level, ok := logger.ParseLevel(cfg.LogLevel)
	logger.InitWithWriter(cmd.ErrOrStderr(), level, logger.IsService())
	if !ok {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using warning")
	}

	a.cfg = cfg
	a.logger = logger.Default()

	logger.Debug().
		Str("file", cfg.File).
		Str("settings_file", cfg.SettingsFile).
		Msg("Config loaded")

	return nil
}

// report shows a failed command. Coded errors go through the logger once it
// is set up so the error code is kept; anything else is printed plainly.
func (a *app) report(w io.Writer, err error) {
	var appErr errors.Error
	if a.cfg != nil && errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg("Command failed")
		return
	}

	fmt.Fprintf(w, "Error: %v\n", err)
}
