package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/config"
	"github.com/agentstation/entsync/pkg/constants"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/logging"
	"github.com/agentstation/entsync/pkg/schema"
)

// Mock provides a mock implementation of Interface for testing.
// Fields left zero fall back to defaults.
type Mock struct {
	Cfg         *config.Config
	SchemaValue *schema.Schema
	SchemaErr   error
	Log         *zerolog.Logger
	Format      output.Format
	VersionStr  string
}

// Config returns Cfg or a config holding the default thresholds.
func (m *Mock) Config() *config.Config {
	if m.Cfg != nil {
		return m.Cfg
	}
	return &config.Config{
		TextFloor:        constants.TextFloor,
		PassOneThreshold: constants.PassOneThreshold,
		PassTwoThreshold: constants.PassTwoThreshold,
	}
}

// Schema returns SchemaValue, or SchemaErr when set.
func (m *Mock) Schema() (*schema.Schema, error) {
	if m.SchemaErr != nil {
		return nil, m.SchemaErr
	}
	if m.SchemaValue == nil {
		return nil, errors.NewConfigError("schema", "no schema configured", nil)
	}
	return m.SchemaValue, nil
}

// Logger returns Log or a nop logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.Log != nil {
		return m.Log
	}
	nop := logging.Nop
	return &nop
}

// OutputFormat returns Format, defaulting to JSON.
func (m *Mock) OutputFormat() output.Format {
	if m.Format == "" {
		return output.FormatJSON
	}
	return m.Format
}

// Version returns VersionStr or "test".
func (m *Mock) Version() string {
	if m.VersionStr == "" {
		return "test"
	}
	return m.VersionStr
}

// Commit returns a fixed commit.
func (m *Mock) Commit() string { return "abc123" }

// Date returns a fixed build date.
func (m *Mock) Date() string { return "2025-01-01" }

var _ Interface = (*Mock)(nil)
