package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
)

// Format is a schema file encoding.
type Format string

// Supported schema file formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf infers a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: schema file extension %q", errors.ErrUnsupported, filepath.Ext(path))
}

// Load reads, parses and validates a schema file.
func Load(path string) (*Schema, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapRead("schema file", path, err)
	}
	s, err := Parse(data, format)
	if err != nil {
		if pe, ok := err.(*errors.ParseError); ok {
			pe.File = path
		}
		return nil, err
	}
	return s, nil
}

// Parse decodes and validates a schema in the given format.
func Parse(data []byte, format Format) (*Schema, error) {
	var s Schema
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	case FormatTOML:
		err = toml.Unmarshal(data, &s)
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("%w: schema format %q", errors.ErrUnsupported, format)
	}
	if err != nil {
		return nil, errors.WrapParse(string(format), "", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks data types, alphabets, relation ranges and type
// inheritance.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return errors.NewValidationError("fields", nil, "schema declares no fields")
	}
	for _, key := range s.FieldKeys() {
		def, _ := s.Field(key)
		if !def.DataType.Valid() {
			return errors.NewValidationError(key, def.DataType, fmt.Sprintf("unknown data type %q", def.DataType))
		}
		if !def.Alphabet.Valid() {
			return errors.NewValidationError(key, def.Alphabet, fmt.Sprintf("unknown alphabet %q", def.Alphabet))
		}
		if len(s.Types) == 0 {
			continue
		}
		for _, target := range def.Range {
			if _, ok := s.Types[target]; !ok {
				return errors.NewValidationError(key, target, fmt.Sprintf("range names undeclared type %q", target))
			}
		}
	}
	for _, name := range s.TypeNames() {
		for _, f := range s.Types[name].Fields {
			if fieldset.IsIdentityKey(f) {
				continue
			}
			if _, ok := s.Field(f); !ok {
				return errors.NewValidationError(name, f, fmt.Sprintf("type allows undeclared field %q", f))
			}
		}
		for _, parent := range s.Types[name].Extends {
			if _, ok := s.Types[parent]; !ok {
				return errors.NewValidationError(name, parent, fmt.Sprintf("extends undeclared type %q", parent))
			}
		}
		if s.extendsCycle(name, map[string]bool{}) {
			return errors.NewValidationError(name, nil, "type inheritance cycle")
		}
	}
	return nil
}

func (s *Schema) extendsCycle(name string, stack map[string]bool) bool {
	if stack[name] {
		return true
	}
	stack[name] = true
	defer delete(stack, name)
	for _, parent := range s.Types[name].Extends {
		if s.extendsCycle(parent, stack) {
			return true
		}
	}
	return false
}
