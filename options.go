package entsync

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/pkg/constants"
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/logging"
)

// Option is a function that configures a Client
type Option func(*options) error

// options holds the client configuration
type options struct {
	logger        *zerolog.Logger
	textFloor     float64
	passOne       float64
	passTwo       float64
	ignoredFields []string
	idGenerator   differ.IDGenerator
}

// defaults returns the default options
func defaults() *options {
	nop := logging.Nop
	return &options{
		logger:    &nop,
		textFloor: constants.TextFloor,
		passOne:   constants.PassOneThreshold,
		passTwo:   constants.PassTwoThreshold,
	}
}

// apply applies the given options in order
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithLogger configures the logger used for match decisions and dropped nodes
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithTextFloor configures the text similarity below which texts are unrelated
func WithTextFloor(floor float64) Option {
	return func(o *options) error {
		if floor < 0 || floor > 1 {
			return errors.NewValidationError("text_floor", floor, "must be between 0 and 1")
		}
		o.textFloor = floor
		return nil
	}
}

// WithTreeThresholds configures the structural pairing thresholds of tree diffs
func WithTreeThresholds(passOne, passTwo float64) Option {
	return func(o *options) error {
		for _, v := range []float64{passOne, passTwo} {
			if v < 0 || v > 1 {
				return errors.NewValidationError("threshold", v, "must be between 0 and 1")
			}
		}
		o.passOne, o.passTwo = passOne, passTwo
		return nil
	}
}

// WithIgnoredFields configures fields left out of matching and diffing
func WithIgnoredFields(fields ...string) Option {
	return func(o *options) error {
		o.ignoredFields = append(o.ignoredFields, fields...)
		return nil
	}
}

// WithIDGenerator configures the identifier generator for created entities
func WithIDGenerator(gen differ.IDGenerator) Option {
	return func(o *options) error {
		o.idGenerator = gen
		return nil
	}
}
