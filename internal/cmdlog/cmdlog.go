package cmdlog

import (
	"github.com/rs/zerolog"

	"tweetharvest/internal/metrics"
)

// Run executes a CLI command, counting and logging its outcome.
func Run(log zerolog.Logger, cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
	} else {
		log.Info().Str("command", cmd).Msg("command finished")
	}
	return err
}
