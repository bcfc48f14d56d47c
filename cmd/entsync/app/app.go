// Package app provides the application context for the entsync CLI. It
// owns configuration, the logger and the lazily loaded schema, and wires
// them into every command.
package app

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/globals"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/config"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/logging"
	"github.com/agentstation/entsync/pkg/schema"
)

// App holds the entsync application dependencies.
type App struct {
	version string
	commit  string
	date    string

	viper      *viper.Viper
	configFile string
	flags      *globals.Flags
	config     *config.Config
	logger     *zerolog.Logger
	stdout     io.Writer

	mu     sync.Mutex
	schema *schema.Schema
}

// Option is a functional option for configuring the App.
type Option func(*App)

// WithViper sets the viper instance configuration is read from.
func WithViper(v *viper.Viper) Option {
	return func(a *App) {
		a.viper = v
	}
}

// WithOutput sets the writer commands print to.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.stdout = w
	}
}

// New creates an App with the given version information.
func New(version, commit, date string, opts ...Option) *App {
	nop := logging.Nop
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		viper:   viper.New(),
		flags:   &globals.Flags{},
		config:  &config.Config{},
		logger:  &nop,
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the output format chosen by flag, config or
// terminal detection.
func (a *App) OutputFormat() output.Format {
	return output.DetectFormat(a.config.Output)
}

// Schema loads the configured schema on first use.
func (a *App) Schema() (*schema.Schema, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.schema != nil {
		return a.schema, nil
	}
	if a.config.Schema == "" {
		return nil, errors.NewConfigError("schema", "no schema file: pass --schema or set schema in .entsync.yaml", nil)
	}
	s, err := schema.Load(a.config.Schema)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("file", a.config.Schema).Int("fields", len(s.Fields)).Msg("loaded schema")
	a.schema = s
	return s, nil
}

var _ appcontext.Interface = (*App)(nil)
