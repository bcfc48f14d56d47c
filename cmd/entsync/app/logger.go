package app

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/pkg/logging"
)

// NewLogger builds the CLI logger. Level precedence, highest first:
//  1. -v/--verbose (debug)
//  2. -q/--quiet (error)
//  3. log_level from flags, environment or config file
//  4. warn
func (a *App) NewLogger() zerolog.Logger {
	return logging.NewLoggerFromConfig(&logging.Config{
		Level:   a.logLevel(),
		Format:  a.config.LogFormat,
		Output:  "stderr",
		NoColor: a.flags.NoColor,
	})
}

func (a *App) logLevel() string {
	switch {
	case a.flags.Verbose:
		return "debug"
	case a.flags.Quiet:
		return "error"
	case a.config.LogLevel != "":
		return a.config.LogLevel
	default:
		return "warn"
	}
}
