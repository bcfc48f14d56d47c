// Package config loads entsync CLI settings from flags, ENTSYNC_*
// environment variables, .env files and an optional .entsync.yaml file.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/entsync/pkg/constants"
	"github.com/agentstation/entsync/pkg/errors"
)

// Keys understood in the config file and as ENTSYNC_<KEY> variables.
const (
	KeySchema           = "schema"
	KeyOutput           = "output"
	KeyTextFloor        = "text_floor"
	KeyPassOneThreshold = "pass_one_threshold"
	KeyPassTwoThreshold = "pass_two_threshold"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyIgnore           = "ignore"
)

// Config holds resolved CLI settings.
type Config struct {
	// Schema is the path of the schema file.
	Schema string
	// Output is the output format name.
	Output string
	// TextFloor is the text similarity cutoff.
	TextFloor float64
	// PassOneThreshold and PassTwoThreshold tune tree node pairing.
	PassOneThreshold float64
	PassTwoThreshold float64
	// LogLevel and LogFormat configure the logger.
	LogLevel  string
	LogFormat string
	// Ignore lists field patterns excluded from diffing.
	Ignore []string
	// File is the config file that was read, if any.
	File string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTextFloor, constants.TextFloor)
	v.SetDefault(KeyPassOneThreshold, constants.PassOneThreshold)
	v.SetDefault(KeyPassTwoThreshold, constants.PassTwoThreshold)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "auto")
}

// Init prepares v to read configuration: .env files are loaded into the
// environment, ENTSYNC_* variables are bound and the config file is
// located. An explicit file must exist; the default locations may not.
func Init(v *viper.Viper, file string) error {
	LoadEnvFiles()

	SetDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return errors.NewConfigError("config", "reading "+file, err)
		}
		return nil
	}

	v.SetConfigName(constants.ConfigFileName)
	v.SetConfigType(constants.ConfigFileType)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return errors.NewConfigError("config", "reading "+v.ConfigFileUsed(), err)
		}
	}
	return nil
}

// FromViper resolves a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Schema:           v.GetString(KeySchema),
		Output:           v.GetString(KeyOutput),
		TextFloor:        v.GetFloat64(KeyTextFloor),
		PassOneThreshold: v.GetFloat64(KeyPassOneThreshold),
		PassTwoThreshold: v.GetFloat64(KeyPassTwoThreshold),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
		Ignore:           v.GetStringSlice(KeyIgnore),
		File:             v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that thresholds are probabilities.
func (c *Config) Validate() error {
	for key, value := range map[string]float64{
		KeyTextFloor:        c.TextFloor,
		KeyPassOneThreshold: c.PassOneThreshold,
		KeyPassTwoThreshold: c.PassTwoThreshold,
	} {
		if value < 0 || value > 1 {
			return errors.NewValidationError(key, value, "must be between 0 and 1")
		}
	}
	return nil
}

// LoadEnvFiles loads .env and then .env.local from the working directory.
// Variables already set in the environment are kept.
func LoadEnvFiles() {
	for _, file := range []string{".env", ".env.local"} {
		_ = godotenv.Load(file)
	}
}
