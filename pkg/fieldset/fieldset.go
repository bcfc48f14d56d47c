// Package fieldset provides the plain key/value representation of entities
// that the matching and diffing engine operates on.
//
// A Fieldset maps a field key to a scalar, a list, or a nested Fieldset.
// Relation fields hold either an identifier string or a nested Fieldset
// (or a list of those) when the relation has been expanded.
package fieldset

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Reserved field keys.
const (
	// KeyUID is the primary identifier field.
	KeyUID = "uid"
	// KeyID is the secondary identifier field.
	KeyID = "id"
	// KeyType is the type discriminator field.
	KeyType = "type"
	// KeyRef names the entity an update changeset applies to.
	KeyRef = "$ref"
)

// Fieldset is a flat or nested key/value representation of an entity.
type Fieldset map[string]any

// Path addresses a (possibly nested) field inside a Fieldset.
type Path []string

// ParsePath splits a dotted path such as "meta.owner".
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// IsIdentityKey reports whether key is one of the identifier fields.
func IsIdentityKey(key string) bool {
	return key == KeyUID || key == KeyID
}

// IsCoreKey reports whether key is an identifier or the type discriminator.
func IsCoreKey(key string) bool {
	return IsIdentityKey(key) || key == KeyType
}

// AsFieldset returns v as a Fieldset when it is a nested map.
func AsFieldset(v any) (Fieldset, bool) {
	switch m := v.(type) {
	case Fieldset:
		return m, m != nil
	case map[string]any:
		return Fieldset(m), m != nil
	case map[any]any:
		out := make(Fieldset, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// IsNested reports whether v is a nested Fieldset.
func IsNested(v any) bool {
	_, ok := AsFieldset(v)
	return ok
}

// AsList returns v as a generic list when it is a slice or array.
func AsList(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil:
		return nil, false
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []Fieldset:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Identifier returns the entity's identifier, preferring uid over id.
func (f Fieldset) Identifier() (string, bool) {
	for _, key := range []string{KeyUID, KeyID} {
		if s, ok := f[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Type returns the entity's type discriminator, or "".
func (f Fieldset) Type() string {
	s, _ := f[KeyType].(string)
	return s
}

// Has reports whether key is present with a non-nil value.
func (f Fieldset) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// Keys returns the keys of f in sorted order.
func (f Fieldset) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnionKeys returns the sorted union of the keys of a and b.
func UnionKeys(a, b Fieldset) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for _, m := range []Fieldset{a, b} {
		for k := range m {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// IdentifierOf extracts an identifier from a relation value, which may be a
// bare identifier string or a nested entity.
func IdentifierOf(v any) (string, bool) {
	if s, ok := v.(string); ok && s != "" {
		return s, true
	}
	if fs, ok := AsFieldset(v); ok {
		return fs.Identifier()
	}
	return "", false
}

// Canonical renders v as a stable string suitable for set membership and
// serialized comparison. Map keys are sorted and numbers normalized.
func Canonical(v any) string {
	data, err := json.Marshal(Normalize(v))
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}
