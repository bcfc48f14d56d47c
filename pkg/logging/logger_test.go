package logging_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/entsync/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(zerolog.New(buf).Level(zerolog.InfoLevel))

	logging.Debug().Msg("debug message")
	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")

	assert.NotContains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "info message")
	assert.Contains(t, buf.String(), "warning message")
}

func TestContextLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithOperation(ctx, "diff")
	ctx = logging.WithEntity(ctx, "Task", "t1")
	ctx = logging.WithFile(ctx, "tasks.yaml")
	ctx = logging.WithError(ctx, errors.New("boom"))
	ctx = logging.WithError(ctx, nil)

	logging.FromContext(ctx).Info().Msg("reconciling")

	tl.AssertContains(t, `"operation":"diff"`)
	tl.AssertContains(t, `"entity_type":"Task"`)
	tl.AssertContains(t, `"entity_id":"t1"`)
	tl.AssertContains(t, `"file":"tasks.yaml"`)
	tl.AssertContains(t, `"error":"boom"`)
	tl.AssertCount(t, 1)
}

func TestWithEntityWithoutType(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	logging.FromContext(logging.WithEntity(ctx, "", "x")).Info().Msg("stub")

	tl.AssertContains(t, `"entity_id":"x"`)
	tl.AssertNotContains(t, "entity_type")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	//nolint:staticcheck // nil context is accepted
	assert.Same(t, logging.Default(), logging.FromContext(nil))
}

func TestWithFields(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithFields(ctx, map[string]any{
		"files":     []string{"a.yaml", "b.yaml"},
		"count":     2,
		"threshold": 0.5,
		"dry_run":   true,
	})

	logging.FromContext(ctx).Info().Msg("batch")

	tl.AssertContains(t, `"files":["a.yaml","b.yaml"]`)
	tl.AssertContains(t, `"count":2`)
	tl.AssertContains(t, `"threshold":0.5`)
	tl.AssertContains(t, `"dry_run":true`)
}

func TestConfiguration(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	tests := []struct {
		name     string
		level    string
		contains []string
		excludes []string
	}{
		{"debug level", "debug", []string{`"level":"debug"`, `"level":"info"`}, nil},
		{"error level only", "error", []string{`"level":"error"`}, []string{`"level":"info"`}},
		{"warning alias", "warning", []string{`"level":"warn"`}, []string{`"level":"info"`}},
		{"unknown falls back to info", "loud", []string{`"level":"info"`}, []string{`"level":"debug"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.NewLoggerFromConfig(&logging.Config{Level: tt.level, Format: "json", Output: "discard"})
			logger = logger.Output(buf)

			logger.Debug().Msg("debug")
			logger.Info().Msg("info")
			logger.Warn().Msg("warn")
			logger.Error().Msg("error")

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestConfigFileOutput(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	path := filepath.Join(t.TempDir(), "entsync.log")
	logger := logging.NewLoggerFromConfig(&logging.Config{Level: "info", Format: "json", Output: path})
	logger.Info().Str("operation", "merge").Msg("written to file")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
	assert.Contains(t, string(content), `"operation":"merge"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddCaller)
}

func TestConfigureFromEnv(t *testing.T) {
	original := *logging.Default()
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		logging.SetDefault(original)
		zerolog.SetGlobalLevel(originalLevel)
	})

	t.Setenv(logging.EnvLogLevel, "debug")
	t.Setenv(logging.EnvLogFormat, "json")
	t.Setenv("ENTSYNC_LOG_OUTPUT", "discard")

	logging.ConfigureFromEnv()

	assert.Equal(t, zerolog.DebugLevel, logging.Default().GetLevel())
}

func TestTestLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)

	tl.Info().Msg("message 1")
	tl.Error().Err(nil).Msg("message 2")

	tl.AssertContains(t, "message 1")
	tl.AssertContains(t, "message 2")
	tl.AssertCount(t, 2)

	tl.Clear()
	assert.Equal(t, 0, tl.Count())
	assert.Empty(t, tl.Lines())
}

func TestCaptureLoggingForTest(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)

	logging.Warn().Msg("captured")

	tl.AssertContains(t, "captured")
}
