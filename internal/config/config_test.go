package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/entsync/internal/config"
	"github.com/agentstation/entsync/pkg/constants"
	"github.com/agentstation/entsync/pkg/errors"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	require.NoError(t, config.Init(v, ""))
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.InDelta(t, constants.TextFloor, cfg.TextFloor, 1e-9)
	assert.InDelta(t, constants.PassOneThreshold, cfg.PassOneThreshold, 1e-9)
	assert.InDelta(t, constants.PassTwoThreshold, cfg.PassTwoThreshold, 1e-9)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.Schema)
	assert.Empty(t, cfg.File)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	content := "schema: schema.yaml\noutput: yaml\ntext_floor: 0.2\nignore:\n  - updated*\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".entsync.yaml"), []byte(content), 0o644))

	v := viper.New()
	require.NoError(t, config.Init(v, ""))
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "schema.yaml", cfg.Schema)
	assert.Equal(t, "yaml", cfg.Output)
	assert.InDelta(t, 0.2, cfg.TextFloor, 1e-9)
	assert.Equal(t, []string{"updated*"}, cfg.Ignore)
	assert.Equal(t, ".entsync.yaml", filepath.Base(cfg.File))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".entsync.yaml"), []byte("output: yaml\n"), 0o644))
	t.Setenv("ENTSYNC_OUTPUT", "json")
	t.Setenv("ENTSYNC_PASS_TWO_THRESHOLD", "0.4")

	v := viper.New()
	require.NoError(t, config.Init(v, ""))
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output)
	assert.InDelta(t, 0.4, cfg.PassTwoThreshold, 1e-9)
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ENTSYNC_SCHEMA", "")
	require.NoError(t, os.Unsetenv("ENTSYNC_SCHEMA"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ENTSYNC_SCHEMA=from-dotenv.yaml\n"), 0o644))

	v := viper.New()
	require.NoError(t, config.Init(v, ""))
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv.yaml", cfg.Schema)
}

func TestExplicitFileMustExist(t *testing.T) {
	t.Chdir(t.TempDir())

	err := config.Init(viper.New(), "nope.yaml")
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{TextFloor: 1.5}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	assert.NoError(t, (&config.Config{TextFloor: 0.1, PassOneThreshold: 0.5, PassTwoThreshold: 0.3}).Validate())
}
