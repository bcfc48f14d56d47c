// Package appcontext provides the application context interface shared by
// all entsync commands, so commands can be tested against a Mock instead of
// the full application.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/config"
	"github.com/agentstation/entsync/pkg/schema"
)

// Interface defines what commands need from the application.
type Interface interface {
	// Config returns the resolved CLI configuration.
	Config() *config.Config

	// Schema loads the configured schema file once and returns it.
	Schema() (*schema.Schema, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format.
	OutputFormat() output.Format

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string
}
