// Package match resolves which entities of an edited snapshot correspond to
// which entities of the stored state.
//
// Matching runs in two phases. Entities carrying an identifier are paired
// with the stored entity of the same identifier. The remaining anonymous
// entities are scored against every unclaimed stored entity with a
// Fellegi-Sunter log-likelihood model (see package classify) and the score
// matrix is resolved by optimal assignment (see package assign).
//
// Scoring a multi-valued relation whose values are expanded entities runs
// Match recursively on them, so Score and Match are mutually recursive. Both
// take the same immutable Config by value.
package match

import (
	"github.com/agentstation/entsync/pkg/classify"
	"github.com/agentstation/entsync/pkg/schema"
	"github.com/agentstation/entsync/pkg/textsim"
)

// Config carries the read-only inputs shared by Score and Match.
type Config struct {
	// Schema describes the fields being compared.
	Schema *schema.Schema

	// Classifications holds the per-field m/u profiles, normally
	// classify.Classify(Schema).
	Classifications classify.Classifications

	// ExcludeFields are left out of similarity scoring of the top-level
	// entities only, such as the fields a query fixed. Optional.
	ExcludeFields map[string]struct{}

	// IgnoreFields are left out of similarity scoring at every depth,
	// relation children included. Optional.
	IgnoreFields map[string]struct{}

	// ListLength is the length of the list being matched, used by the
	// positional evidence term. Match sets it; direct Score callers may
	// leave it zero.
	ListLength int

	// TextFloor is the text similarity noise threshold. Zero means
	// textsim.Floor.
	TextFloor float64
}

// NewConfig builds a Config for s with freshly computed classifications.
func NewConfig(s *schema.Schema) Config {
	return Config{
		Schema:          s,
		Classifications: classify.Classify(s),
	}
}

// WithExclude returns a copy of c that also excludes keys from scoring the
// top-level entities.
func (c Config) WithExclude(keys ...string) Config {
	c.ExcludeFields = union(c.ExcludeFields, keys)
	return c
}

// WithIgnore returns a copy of c that also ignores keys at every depth.
func (c Config) WithIgnore(keys ...string) Config {
	c.IgnoreFields = union(c.IgnoreFields, keys)
	return c
}

func union(set map[string]struct{}, keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+len(keys))
	for k := range set {
		out[k] = struct{}{}
	}
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// excluded reports whether key is left out of scoring.
func (c Config) excluded(key string) bool {
	if c.ignored(key) {
		return true
	}
	_, ok := c.ExcludeFields[key]
	return ok
}

func (c Config) ignored(key string) bool {
	_, ok := c.IgnoreFields[key]
	return ok
}

// nested returns the config used for relation values one level down.
// Exclusions only apply to the top-level entities; ignored fields stay.
func (c Config) nested() Config {
	c.ExcludeFields = nil
	c.ListLength = 0
	return c
}

func (c Config) textFloor() float64 {
	if c.TextFloor > 0 {
		return c.TextFloor
	}
	return textsim.Floor
}
