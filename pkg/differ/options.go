package differ

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Option is a functional option for configuring a Differ.
type Option func(*differ)

// IDGenerator returns a fresh identifier for a created entity.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}

// WithIgnoredFields sets fields to ignore during comparison. Ignored fields
// neither contribute to matching nor produce changes.
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// WithIDGenerator sets the identifier generator for created entities.
func WithIDGenerator(gen IDGenerator) Option {
	return func(d *differ) {
		if gen != nil {
			d.newID = gen
		}
	}
}

// WithLogger sets the logger for match outcome events.
func WithLogger(logger *zerolog.Logger) Option {
	return func(d *differ) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTextFloor sets the text similarity noise threshold used when matching.
func WithTextFloor(floor float64) Option {
	return func(d *differ) {
		d.textFloor = floor
	}
}
