// Package input reads entity documents for the CLI. A document is a YAML
// or JSON file holding one entity or a list of entities.
package input

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/reconcile"
)

// Read decodes a document file into its raw value.
func Read(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapRead("document", path, err)
	}
	return Decode(data, formatOf(path), path)
}

// Decode decodes document bytes. format is "json" or "yaml"; anything else
// is treated as YAML, which also accepts JSON.
func Decode(data []byte, format, name string) (any, error) {
	var v any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errors.WrapParse("json", name, err)
		}
	default:
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, errors.WrapParse("yaml", name, err)
		}
	}
	return fieldset.Normalize(timesToStrings(v)), nil
}

// timesToStrings renders YAML timestamps as RFC 3339 strings so that dates
// compare the same whichever format they were read from.
func timesToStrings(v any) any {
	switch x := v.(type) {
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339Nano)
	case map[string]any:
		for k, val := range x {
			x[k] = timesToStrings(val)
		}
	case []any:
		for i, val := range x {
			x[i] = timesToStrings(val)
		}
	}
	return v
}

// Entity reads a document holding exactly one entity.
func Entity(path string) (fieldset.Fieldset, error) {
	v, err := Read(path)
	if err != nil {
		return nil, err
	}
	f, ok := fieldset.AsFieldset(v)
	if !ok {
		return nil, errors.NewValidationError(path, nil, "document must hold a single entity")
	}
	return f, nil
}

// Entities reads a document holding a list of entities. A document holding
// a single entity is read as a one-element list and an empty document as
// an empty list.
func Entities(path string) ([]fieldset.Fieldset, error) {
	v, err := Read(path)
	if err != nil {
		return nil, err
	}
	return toEntities(v, path)
}

func toEntities(v any, name string) ([]fieldset.Fieldset, error) {
	if v == nil {
		return []fieldset.Fieldset{}, nil
	}
	if f, ok := fieldset.AsFieldset(v); ok {
		return []fieldset.Fieldset{f}, nil
	}
	list, ok := fieldset.AsList(v)
	if !ok {
		return nil, errors.NewValidationError(name, v, "document must hold entities")
	}
	out := make([]fieldset.Fieldset, 0, len(list))
	for i, item := range list {
		f, ok := fieldset.AsFieldset(item)
		if !ok {
			return nil, errors.NewValidationError(fmt.Sprintf("%s[%d]", name, i), item, "not an entity")
		}
		out = append(out, f)
	}
	return out, nil
}

// Proposals flattens a partial edit into one proposal per leaf field, all
// attributed to source. Nested maps are descended; lists and scalars are
// leaves.
func Proposals(edit fieldset.Fieldset, source string) []reconcile.Proposal {
	var out []reconcile.Proposal
	flatten(edit, nil, source, &out)
	return out
}

func flatten(f fieldset.Fieldset, prefix fieldset.Path, source string, out *[]reconcile.Proposal) {
	for _, key := range f.Keys() {
		path := append(append(fieldset.Path{}, prefix...), key)
		if nested, ok := fieldset.AsFieldset(f[key]); ok && len(nested) > 0 {
			flatten(nested, path, source, out)
			continue
		}
		*out = append(*out, reconcile.Proposal{Path: path, Value: f[key], Source: source})
	}
}

// SourceName is the source label used for a part file.
func SourceName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}
