package fieldset

import (
	"encoding/json"
	"reflect"
)

// Normalize converts v into a canonical shape: every number becomes a
// float64, every nested map a map[string]any and every list a []any.
// Decoders disagree on numeric types (JSON yields float64, YAML yields
// int/uint64), so all comparisons go through Normalize.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string:
		return x
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	if fs, ok := AsFieldset(v); ok {
		out := make(map[string]any, len(fs))
		for k, val := range fs {
			out[k] = Normalize(val)
		}
		return out
	}
	if list, ok := AsList(v); ok {
		out := make([]any, len(list))
		for i, val := range list {
			out[i] = Normalize(val)
		}
		return out
	}
	return v
}

// Equal reports whether a and b are deeply equal after normalization.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Clone returns a deep copy of v. Maps and lists are copied; scalars are
// returned as-is.
func Clone(v any) any {
	switch x := v.(type) {
	case Fieldset:
		return x.Clone()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Clone(val)
		}
		return out
	}
	if fs, ok := AsFieldset(v); ok {
		return Clone(map[string]any(fs))
	}
	return v
}

// Clone returns a deep copy of f.
func (f Fieldset) Clone() Fieldset {
	if f == nil {
		return nil
	}
	out := make(Fieldset, len(f))
	for k, v := range f {
		out[k] = Clone(v)
	}
	return out
}

// Get returns the value at path p.
func Get(f Fieldset, p Path) (any, bool) {
	if len(p) == 0 {
		return f, f != nil
	}
	var cur any = f
	for _, key := range p {
		m, ok := AsFieldset(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at path p, creating intermediate maps as needed. When
// both the existing and the new value at p are maps they are merged, so
// setting a parent after a child (or a child after a parent) never drops
// data.
func Set(f Fieldset, p Path, value any) {
	if len(p) == 0 {
		return
	}
	cur := map[string]any(f)
	for _, key := range p[:len(p)-1] {
		next, ok := AsFieldset(cur[key])
		if !ok {
			next = Fieldset{}
		}
		m := map[string]any(next)
		cur[key] = m
		cur = m
	}
	leaf := p[len(p)-1]
	existing, hasExisting := AsFieldset(cur[leaf])
	incoming, isMap := AsFieldset(value)
	if hasExisting && isMap {
		merged := Clone(map[string]any(existing)).(map[string]any)
		merge(merged, incoming)
		cur[leaf] = merged
		return
	}
	cur[leaf] = Clone(value)
}

func merge(dst map[string]any, src Fieldset) {
	for k, v := range src {
		if existing, ok := AsFieldset(dst[k]); ok {
			if incoming, ok := AsFieldset(v); ok {
				merged := Clone(map[string]any(existing)).(map[string]any)
				merge(merged, incoming)
				dst[k] = merged
				continue
			}
		}
		dst[k] = Clone(v)
	}
}

// Overlay returns a copy of base with every field of patch layered on top.
// Nested maps are merged; everything else is replaced.
func Overlay(base, patch Fieldset) Fieldset {
	out := base.Clone()
	if out == nil {
		out = Fieldset{}
	}
	for _, k := range patch.Keys() {
		Set(out, Path{k}, patch[k])
	}
	return out
}
