// Package schema describes the read-only entity schema the engine consults
// when classifying, scoring and diffing fields.
//
// A Schema is constructed once (usually loaded from a YAML, TOML or JSON file)
// and is safe to share across goroutines; nothing in the engine mutates it.
package schema

import (
	"sort"

	"github.com/agentstation/entsync/pkg/fieldset"
)

// DataType is the closed set of field data types.
type DataType string

// Supported data types.
const (
	DataTypeBoolean   DataType = "boolean"
	DataTypeDate      DataType = "date"
	DataTypeDatetime  DataType = "datetime"
	DataTypeInteger   DataType = "integer"
	DataTypeDecimal   DataType = "decimal"
	DataTypePlaintext DataType = "plaintext"
	DataTypeRichtext  DataType = "richtext"
	DataTypeRelation  DataType = "relation"
	DataTypeUID       DataType = "uid"
	DataTypeSeqID     DataType = "seqId"
	DataTypeOption    DataType = "option"
	DataTypePeriod    DataType = "period"
)

// DataTypes lists every supported data type.
var DataTypes = []DataType{
	DataTypeBoolean,
	DataTypeDate,
	DataTypeDatetime,
	DataTypeInteger,
	DataTypeDecimal,
	DataTypePlaintext,
	DataTypeRichtext,
	DataTypeRelation,
	DataTypeUID,
	DataTypeSeqID,
	DataTypeOption,
	DataTypePeriod,
}

// Valid reports whether d is one of the supported data types.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeBoolean, DataTypeDate, DataTypeDatetime, DataTypeInteger,
		DataTypeDecimal, DataTypePlaintext, DataTypeRichtext, DataTypeRelation,
		DataTypeUID, DataTypeSeqID, DataTypeOption, DataTypePeriod:
		return true
	}
	return false
}

// IsText reports whether d holds free-form text.
func (d DataType) IsText() bool {
	return d == DataTypePlaintext || d == DataTypeRichtext
}

// IsNumeric reports whether d holds a number.
func (d DataType) IsNumeric() bool {
	return d == DataTypeInteger || d == DataTypeDecimal
}

// Alphabet declares the granularity of a text field. Coarser granularity
// means two unrelated entities are less likely to share a value.
type Alphabet string

// Text granularities, finest first.
const (
	AlphabetToken     Alphabet = "token"
	AlphabetWord      Alphabet = "word"
	AlphabetLine      Alphabet = "line"
	AlphabetParagraph Alphabet = "paragraph"
	AlphabetDocument  Alphabet = "document"
)

// Valid reports whether a is empty or a known granularity.
func (a Alphabet) Valid() bool {
	switch a {
	case "", AlphabetToken, AlphabetWord, AlphabetLine, AlphabetParagraph, AlphabetDocument:
		return true
	}
	return false
}

// FieldDef describes one field.
type FieldDef struct {
	DataType      DataType `json:"dataType" yaml:"dataType" toml:"dataType"`
	AllowMultiple bool     `json:"allowMultiple,omitempty" yaml:"allowMultiple,omitempty" toml:"allowMultiple"`
	Unique        bool     `json:"unique,omitempty" yaml:"unique,omitempty" toml:"unique"`
	Immutable     bool     `json:"immutable,omitempty" yaml:"immutable,omitempty" toml:"immutable"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty" toml:"options"`
	Range         []string `json:"range,omitempty" yaml:"range,omitempty" toml:"range"` // relation target types
	Alphabet      Alphabet `json:"alphabet,omitempty" yaml:"alphabet,omitempty" toml:"alphabet"`
}

// IsRelation reports whether the field references other entities.
func (f FieldDef) IsRelation() bool {
	return f.DataType == DataTypeRelation
}

// IsMultiRelation reports whether the field holds a list of related entities.
func (f FieldDef) IsMultiRelation() bool {
	return f.IsRelation() && f.AllowMultiple
}

// HasOptions reports whether the field is an enumeration.
func (f FieldDef) HasOptions() bool {
	return len(f.Options) > 0
}

// TypeDef describes an entity type: the fields it allows and the types it
// inherits fields from.
type TypeDef struct {
	Fields  []string `json:"fields,omitempty" yaml:"fields,omitempty" toml:"fields"`
	Extends []string `json:"extends,omitempty" yaml:"extends,omitempty" toml:"extends"`
}

// Schema maps field keys to definitions and type names to type definitions.
type Schema struct {
	Fields map[string]FieldDef `json:"fields" yaml:"fields" toml:"fields"`
	Types  map[string]TypeDef  `json:"types,omitempty" yaml:"types,omitempty" toml:"types"`
}

// Field returns the definition for key. A schema that declares types but
// no explicit "type" field gets a synthesized immutable option field whose
// options are the declared type names.
func (s *Schema) Field(key string) (FieldDef, bool) {
	if s == nil {
		return FieldDef{}, false
	}
	if def, ok := s.Fields[key]; ok {
		return def, true
	}
	if key == fieldset.KeyType && len(s.Types) > 0 {
		return FieldDef{
			DataType:  DataTypeOption,
			Immutable: true,
			Options:   s.TypeNames(),
		}, true
	}
	return FieldDef{}, false
}

// FieldKeys returns every field key, including a synthesized "type" key,
// in sorted order.
func (s *Schema) FieldKeys() []string {
	keys := make([]string, 0, len(s.Fields)+1)
	for k := range s.Fields {
		keys = append(keys, k)
	}
	if _, ok := s.Fields[fieldset.KeyType]; !ok && len(s.Types) > 0 {
		keys = append(keys, fieldset.KeyType)
	}
	sort.Strings(keys)
	return keys
}

// TypeNames returns the declared type names in sorted order.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMultiRelation reports whether key is a multi-valued relation field.
func (s *Schema) IsMultiRelation(key string) bool {
	def, ok := s.Field(key)
	return ok && def.IsMultiRelation()
}

// FieldsOf returns the sorted union of fields allowed by the given types,
// following Extends. With no types, or when none of them is declared, it
// returns nil, meaning "no restriction".
func (s *Schema) FieldsOf(types ...string) []string {
	seen := map[string]struct{}{}
	visited := map[string]struct{}{}
	found := false

	var visit func(name string)
	visit = func(name string) {
		if _, ok := visited[name]; ok {
			return
		}
		visited[name] = struct{}{}
		def, ok := s.Types[name]
		if !ok {
			return
		}
		found = true
		for _, f := range def.Fields {
			seen[f] = struct{}{}
		}
		for _, parent := range def.Extends {
			visit(parent)
		}
	}
	for _, t := range types {
		visit(t)
	}
	if !found {
		return nil
	}

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
