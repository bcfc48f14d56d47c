// Package differ turns matched entity pairs into changesets: the minimal
// edit instructions that bring a stored entity graph in line with an
// edited snapshot of it.
package differ

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeCreate indicates a new entity.
	ChangeTypeCreate ChangeType = "create"
	// ChangeTypeUpdate indicates an edit of an existing entity.
	ChangeTypeUpdate ChangeType = "update"
)

// Changeset is one edit instruction. An update carries the identifier of
// the entity it edits in Ref; a creation carries its Type instead and its
// generated identifier in Fields.
type Changeset struct {
	Ref    string            // identifier of the updated entity, empty for creations
	Type   string            // type of the created entity, empty for updates
	Fields fieldset.Fieldset // changed or initial field values
}

// NewUpdate returns an update changeset for the entity identified by ref.
func NewUpdate(ref string, fields fieldset.Fieldset) Changeset {
	return Changeset{Ref: ref, Fields: fields}
}

// NewCreate returns a creation changeset.
func NewCreate(typ string, fields fieldset.Fieldset) Changeset {
	return Changeset{Type: typ, Fields: fields}
}

// ChangeType reports whether c creates or updates an entity.
func (c Changeset) ChangeType() ChangeType {
	if c.Ref == "" {
		return ChangeTypeCreate
	}
	return ChangeTypeUpdate
}

// ID returns the identifier of the entity c applies to.
func (c Changeset) ID() string {
	if c.Ref != "" {
		return c.Ref
	}
	id, _ := c.Fields.Identifier()
	return id
}

// Map returns the flat wire form of c: {$ref, ...fields} for updates and
// {type, ...fields} for creations.
func (c Changeset) Map() map[string]any {
	out := make(map[string]any, len(c.Fields)+1)
	for k, v := range c.Fields {
		out[k] = v
	}
	if c.Ref != "" {
		out[fieldset.KeyRef] = c.Ref
	} else if c.Type != "" {
		out[fieldset.KeyType] = c.Type
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (c Changeset) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// MarshalYAML implements the goccy/go-yaml InterfaceMarshaler.
func (c Changeset) MarshalYAML() (any, error) {
	return c.Map(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Changeset) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromMap(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// FromMap parses the flat wire form produced by Map. List mutations are
// restored from their [op, value] pairs.
func FromMap(raw map[string]any) (Changeset, error) {
	var c Changeset
	c.Fields = fieldset.Fieldset{}
	for k, v := range raw {
		switch k {
		case fieldset.KeyRef:
			ref, ok := v.(string)
			if !ok || ref == "" {
				return Changeset{}, errors.NewValidationError(k, v, "must be a non-empty string")
			}
			c.Ref = ref
		case fieldset.KeyType:
			typ, ok := v.(string)
			if !ok {
				return Changeset{}, errors.NewValidationError(k, v, "must be a string")
			}
			c.Type = typ
		default:
			if mutations, ok := parseMutations(v); ok {
				c.Fields[k] = mutations
				continue
			}
			c.Fields[k] = v
		}
	}
	if c.Ref != "" && c.Type != "" {
		// A type on an update is a field edit.
		c.Fields[fieldset.KeyType] = c.Type
		c.Type = ""
	}
	return c, nil
}

// String returns a compact one-line description.
func (c Changeset) String() string {
	keys := c.Fields.Keys()
	if c.ChangeType() == ChangeTypeCreate {
		return fmt.Sprintf("create %s %s: %s", c.Type, c.ID(), strings.Join(keys, ", "))
	}
	return fmt.Sprintf("update %s: %s", c.Ref, strings.Join(keys, ", "))
}

// MutationOp is the operation of a list mutation.
type MutationOp string

const (
	// OpInsert adds a value to a multi-valued field.
	OpInsert MutationOp = "insert"
	// OpRemove removes a value from a multi-valued field.
	OpRemove MutationOp = "remove"
)

// ListMutation is an edit to one element of a multi-valued field. It is
// serialized as the pair ["insert"|"remove", value].
type ListMutation struct {
	Op    MutationOp
	Value any
}

// Insert returns an insert mutation.
func Insert(value any) ListMutation { return ListMutation{Op: OpInsert, Value: value} }

// Remove returns a remove mutation.
func Remove(value any) ListMutation { return ListMutation{Op: OpRemove, Value: value} }

// MarshalJSON implements json.Marshaler.
func (m ListMutation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{m.Op, m.Value})
}

// MarshalYAML implements the goccy/go-yaml InterfaceMarshaler.
func (m ListMutation) MarshalYAML() (any, error) {
	return []any{string(m.Op), m.Value}, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ListMutation) UnmarshalJSON(data []byte) error {
	var pair []any
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	parsed, ok := parseMutation(pair)
	if !ok {
		return errors.NewValidationError("mutation", string(data), `must be ["insert"|"remove", value]`)
	}
	*m = parsed
	return nil
}

func (m ListMutation) String() string {
	return fmt.Sprintf("%s %v", m.Op, m.Value)
}

func parseMutation(pair []any) (ListMutation, bool) {
	if len(pair) != 2 {
		return ListMutation{}, false
	}
	op, _ := pair[0].(string)
	switch MutationOp(op) {
	case OpInsert, OpRemove:
		return ListMutation{Op: MutationOp(op), Value: pair[1]}, true
	}
	return ListMutation{}, false
}

func parseMutations(v any) ([]ListMutation, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]ListMutation, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]any)
		if !ok {
			return nil, false
		}
		m, ok := parseMutation(pair)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	return out, true
}

// Summary counts the changesets of a diff.
type Summary struct {
	Created int `json:"created" yaml:"created"`
	Updated int `json:"updated" yaml:"updated"`
}

// Total returns the number of changesets.
func (s Summary) Total() int { return s.Created + s.Updated }

// Summarize counts creations and updates in changes.
func Summarize(changes []Changeset) Summary {
	var s Summary
	for _, c := range changes {
		if c.ChangeType() == ChangeTypeCreate {
			s.Created++
		} else {
			s.Updated++
		}
	}
	return s
}

// String returns a human-readable summary.
func (s Summary) String() string {
	if s.Total() == 0 {
		return "No changes detected"
	}
	var parts []string
	if s.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", s.Updated))
	}
	if s.Created > 0 {
		parts = append(parts, fmt.Sprintf("%d created", s.Created))
	}
	return fmt.Sprintf("Changeset: %s (Total: %d changes)", strings.Join(parts, ", "), s.Total())
}

// ApplyStrategy represents which changesets a caller wants applied.
type ApplyStrategy string

const (
	// ApplyAll applies every changeset.
	ApplyAll ApplyStrategy = "all"

	// ApplyUpdatesOnly only applies edits to existing entities.
	ApplyUpdatesOnly ApplyStrategy = "updates-only"

	// ApplyAdditionsOnly only applies creations.
	ApplyAdditionsOnly ApplyStrategy = "additions-only"
)

// ParseApplyStrategy parses s, defaulting to ApplyAll for an empty string.
func ParseApplyStrategy(s string) (ApplyStrategy, error) {
	switch ApplyStrategy(strings.ToLower(s)) {
	case "", ApplyAll:
		return ApplyAll, nil
	case ApplyUpdatesOnly:
		return ApplyUpdatesOnly, nil
	case ApplyAdditionsOnly:
		return ApplyAdditionsOnly, nil
	}
	return "", errors.NewValidationError("apply", s, "must be all, updates-only or additions-only")
}

// Filter returns the changesets of changes selected by strategy, in order.
func Filter(changes []Changeset, strategy ApplyStrategy) []Changeset {
	if strategy == ApplyAll || strategy == "" {
		return changes
	}
	out := make([]Changeset, 0, len(changes))
	for _, c := range changes {
		switch {
		case strategy == ApplyUpdatesOnly && c.ChangeType() == ChangeTypeUpdate,
			strategy == ApplyAdditionsOnly && c.ChangeType() == ChangeTypeCreate:
			out = append(out, c)
		}
	}
	return out
}
