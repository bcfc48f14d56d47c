// Package errors provides custom error types for the entsync engine.
// These errors enable programmatic error checking by callers that need to
// tell an expected merge conflict apart from an integration bug.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the entsync engine
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates that two sources disagree on the value of a field
	ErrConflict = errors.New("field conflict")

	// ErrPrecondition indicates that a caller broke the engine's input contract
	ErrPrecondition = errors.New("precondition violated")

	// ErrUnsupported indicates that an input format or value kind is not supported
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// SourcedValue is one competing value in a conflict together with the
// source that proposed it. Source may be empty.
type SourcedValue struct {
	Value  any    `json:"value" yaml:"value"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// ConflictError reports that two or more sources proposed different values
// for the same field, each differing from the base value.
type ConflictError struct {
	Path   []string       `json:"path" yaml:"path"`
	Values []SourcedValue `json:"values" yaml:"values"`
	Base   any            `json:"base" yaml:"base"`
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		if v.Source != "" {
			parts = append(parts, fmt.Sprintf("%v (from %s)", v.Value, v.Source))
		} else {
			parts = append(parts, fmt.Sprintf("%v", v.Value))
		}
	}
	return fmt.Sprintf("conflicting values for field %s: %s (base %v)",
		strings.Join(e.Path, "."), strings.Join(parts, " vs "), e.Base)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(path []string, base any, values ...SourcedValue) *ConflictError {
	return &ConflictError{
		Path:   append([]string(nil), path...),
		Values: values,
		Base:   base,
	}
}

// PreconditionError reports an upstream contract breach, such as diffing
// against an entity without an identifier or a relation that was expanded
// on one side only. Processing of the current item must stop.
type PreconditionError struct {
	Operation string
	Path      []string
	Reason    string
}

// Error implements the error interface
func (e *PreconditionError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("precondition violated in %s at %s: %s",
			e.Operation, strings.Join(e.Path, "."), e.Reason)
	}
	return fmt.Sprintf("precondition violated in %s: %s", e.Operation, e.Reason)
}

// Is implements errors.Is support
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// NewPreconditionError creates a new PreconditionError
func NewPreconditionError(operation string, path []string, reason string) *PreconditionError {
	return &PreconditionError{
		Operation: operation,
		Path:      append([]string(nil), path...),
		Reason:    reason,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConflict checks if an error is a field conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPrecondition checks if an error is a precondition violation
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	var cfg *ConfigError
	return errors.As(err, &cfg)
}

// AsConflict extracts a ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "toml"
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapRead wraps a file read error. A missing file becomes a NotFoundError
// for resource; anything else an IOError.
func WrapRead(resource, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return NewNotFoundError(resource, path)
	}
	return NewIOError("read", path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
