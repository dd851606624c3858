package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/refreshd/internal/daemon"
	"codeberg.org/mutker/refreshd/internal/logger"
	"codeberg.org/mutker/refreshd/internal/pid"
)

func (a *app) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	if err := pid.Write(a.cfg.PIDFile); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(a.cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go handleSignals(ctx, cancel)

	d, err := daemon.New(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	if err := d.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
	}

	if err := d.Close(); err != nil {
		logger.Warn().Err(err).Msg("Cleanup incomplete")
	}
	logger.Info().Msg("Exiting...")

	return nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
