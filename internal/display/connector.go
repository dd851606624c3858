package display

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
)

// DefaultConnector is used when no connector is configured and discovery fails.
const DefaultConnector Connector = "eDP-1"

const connectorCommandTimeout = 2 * time.Second

// ResolveConnector picks the output to manage: the configured connector if
// set, else the first line printed by command, else DefaultConnector.
func ResolveConnector(ctx context.Context, configured, command string, log logger.Logger) Connector {
	if c := strings.TrimSpace(configured); c != "" {
		log.Debug().Str("connector", c).Msg("Using configured connector")
		return Connector(c)
	}

	connector, err := discoverConnector(ctx, command)
	if err != nil {
		log.Warn().
			Err(err).
			Str("command", command).
			Str("fallback", string(DefaultConnector)).
			Msg("Failed to get default output connector")
		return DefaultConnector
	}

	log.Debug().Str("connector", string(connector)).Msg("Discovered output connector")

	return connector
}

func discoverConnector(ctx context.Context, command string) (Connector, error) {
	errFactory := errors.New()

	args := strings.Fields(command)
	if len(args) == 0 {
		return "", errFactory.WithMessage(errors.ErrMissingConfig, "no connector command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, connectorCommandTimeout)
	defer cancel()

	//nolint:gosec // G204: the command comes from the user's own configuration
	output, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return "", errFactory.Wrap(errors.ErrOperationFailed, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if line = strings.TrimSpace(line); line == "" {
		return "", errFactory.WithMessage(errors.ErrResourceNotFound, "connector command printed nothing")
	}

	return Connector(line), nil
}
