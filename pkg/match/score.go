package match

import (
	"fmt"
	"math"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/entsync/pkg/classify"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/schema"
	"github.com/agentstation/entsync/pkg/textsim"
)

// PositionField names the positional term in a score breakdown.
const PositionField = "$position"

// Date similarity windows.
const (
	dateWindowDays     = 365.0
	datetimeWindowDays = 30.0
)

// Contribution is the evidence a single field added to a match score.
type Contribution struct {
	Field          string                  `json:"field" yaml:"field"`
	Similarity     float64                 `json:"similarity" yaml:"similarity"`
	Classification classify.Classification `json:"classification" yaml:"classification"`
	Weight         float64                 `json:"weight" yaml:"weight"`
}

// Score computes the log-likelihood match score of newEntity (at newIndex
// of its list) against oldEntity (at oldIndex). Higher is a better match;
// negative scores are normal for poor matches.
func Score(cfg Config, newEntity, oldEntity fieldset.Fieldset, newIndex, oldIndex int) float64 {
	var total float64
	for _, c := range Breakdown(cfg, newEntity, oldEntity, newIndex, oldIndex) {
		total += c.Weight
	}
	return total
}

// Breakdown returns the per-field contributions that make up Score, in
// field-key order followed by the positional term.
func Breakdown(cfg Config, newEntity, oldEntity fieldset.Fieldset, newIndex, oldIndex int) []Contribution {
	var out []Contribution
	for _, key := range newEntity.Keys() {
		if fieldset.IsIdentityKey(key) || cfg.excluded(key) {
			continue
		}
		nv, ov := newEntity[key], oldEntity[key]
		if nv == nil || ov == nil {
			continue
		}
		class, ok := cfg.Classifications[key]
		if !ok {
			continue
		}
		sim := 1.0
		if !fieldset.Equal(nv, ov) {
			sim = FieldSimilarity(cfg, key, nv, ov)
		}
		out = append(out, Contribution{
			Field:          key,
			Similarity:     sim,
			Classification: class,
			Weight:         class.Weight(sim),
		})
	}
	return append(out, position(cfg, newIndex, oldIndex))
}

// position is the evidence carried by list order: entities tend to stay
// where they were.
func position(cfg Config, newIndex, oldIndex int) Contribution {
	length := cfg.ListLength
	if length <= 0 {
		length = max(newIndex, oldIndex) + 1
	}
	class := classify.Classification{M: 0.6, U: math.Min(1/float64(length), 0.5)}

	sim := 1.0
	if newIndex != oldIndex {
		delta := math.Abs(float64(newIndex - oldIndex))
		sim = math.Max(0, 1-delta/float64(max(length-1, 1)))
	}
	return Contribution{
		Field:          PositionField,
		Similarity:     sim,
		Classification: class,
		Weight:         class.Weight(sim),
	}
}

// FieldSimilarity compares two values of field key and returns a
// similarity in [0,1]. It does not short-circuit on equality; Score does.
func FieldSimilarity(cfg Config, key string, nv, ov any) float64 {
	def, ok := cfg.Schema.Field(key)
	if !ok {
		return 0
	}

	if def.IsRelation() {
		if def.AllowMultiple {
			return multiRelationSimilarity(cfg, def, nv, ov)
		}
		return singleRelationSimilarity(cfg, def, nv, ov)
	}

	if nl, ok := fieldset.AsList(nv); ok {
		if ol, ok := fieldset.AsList(ov); ok {
			return listSimilarity(nl, ol)
		}
		return 0
	}

	if def.Unique || def.Immutable || def.HasOptions() {
		return 0
	}

	switch dt := def.DataType; {
	case dt == schema.DataTypeDate:
		return dateSimilarity(nv, ov, dateWindowDays)
	case dt == schema.DataTypeDatetime:
		return dateSimilarity(nv, ov, datetimeWindowDays)
	case dt.IsNumeric():
		return numberSimilarity(nv, ov)
	case dt.IsText():
		return textsim.Penalized(textsim.Similarity(textOf(nv), textOf(ov)), cfg.textFloor())
	default:
		return 0
	}
}

func singleRelationSimilarity(cfg Config, def schema.FieldDef, nv, ov any) float64 {
	nid, nIdentified := fieldset.IdentifierOf(nv)
	oid, oIdentified := fieldset.IdentifierOf(ov)
	if nIdentified && oIdentified {
		if nid == oid {
			return 1
		}
		return 0
	}
	nf, nNested := fieldset.AsFieldset(nv)
	of, oNested := fieldset.AsFieldset(ov)
	if nNested && oNested {
		return entitySimilarity(cfg, def.Range, nf, of)
	}
	return 0
}

func multiRelationSimilarity(cfg Config, def schema.FieldDef, nv, ov any) float64 {
	nl := listOf(nv)
	ol := listOf(ov)
	switch {
	case len(nl) == 0 && len(ol) == 0:
		return 1
	case len(nl) == 0 || len(ol) == 0:
		return 0
	}

	if hasNested(nl) && hasNested(ol) {
		newChildren := Entities(nl)
		oldChildren := Entities(ol)
		nested := cfg.nested()
		result := Match(newChildren, oldChildren, nested)

		var sum float64
		for _, p := range result.Matches {
			sum += entitySimilarity(nested, def.Range, newChildren[p.New], oldChildren[p.Old])
		}
		n := float64(len(result.Matches))
		return (sum + n) / (2 * float64(max(len(nl), len(ol))))
	}

	return jaccard(relationKeys(nl), relationKeys(ol))
}

// entitySimilarity averages per-field similarity of two nested entities over
// the fields their relation range allows.
func entitySimilarity(cfg Config, rangeTypes []string, a, b fieldset.Fieldset) float64 {
	fields := cfg.Schema.FieldsOf(rangeTypes...)
	if fields == nil {
		fields = fieldset.UnionKeys(a, b)
	}

	var sum float64
	var counted int
	for _, f := range fields {
		if fieldset.IsIdentityKey(f) || cfg.ignored(f) {
			continue
		}
		av, bv := a[f], b[f]
		if av == nil && bv == nil {
			continue
		}
		counted++
		switch {
		case fieldset.Equal(av, bv):
			sum++
		case av == nil || bv == nil:
		default:
			sum += FieldSimilarity(cfg, f, av, bv)
		}
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

func listSimilarity(nl, ol []any) float64 {
	if len(nl) == 1 && len(ol) == 1 {
		if fieldset.Equal(nl[0], ol[0]) {
			return 1
		}
		return 0
	}
	return jaccard(canonicalKeys(nl), canonicalKeys(ol))
}

func dateSimilarity(nv, ov any, windowDays float64) float64 {
	nt, ok := timeOf(nv)
	if !ok {
		return 0
	}
	ot, ok := timeOf(ov)
	if !ok {
		return 0
	}
	days := math.Abs(nt.Sub(ot).Hours()) / 24
	return 1 - math.Min(1, days/windowDays)
}

func numberSimilarity(nv, ov any) float64 {
	a, ok := numberOf(nv)
	if !ok {
		return 0
	}
	b, ok := numberOf(ov)
	if !ok {
		return 0
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 1
	}
	return math.Max(0, 1-math.Abs(a-b)/denom)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timeOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case utc.Time:
		return t.Time, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := utc.Parse(layout, t); err == nil {
				return parsed.Time, true
			}
		}
	}
	return time.Time{}, false
}

func numberOf(v any) (float64, bool) {
	f, ok := fieldset.Normalize(v).(float64)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func textOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	if fieldset.IsNested(v) {
		return fieldset.Canonical(v)
	}
	if _, ok := fieldset.AsList(v); ok {
		return fieldset.Canonical(v)
	}
	return fmt.Sprint(v)
}

func listOf(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := fieldset.AsList(v); ok {
		return l
	}
	return []any{v}
}

func hasNested(values []any) bool {
	for _, v := range values {
		if fieldset.IsNested(v) {
			return true
		}
	}
	return false
}

// Entities converts relation values into entities. Bare identifiers become
// {uid: id} stubs; values that are neither are dropped.
func Entities(values []any) []fieldset.Fieldset {
	out := make([]fieldset.Fieldset, 0, len(values))
	for _, v := range values {
		if fs, ok := fieldset.AsFieldset(v); ok {
			out = append(out, fs)
			continue
		}
		if id, ok := v.(string); ok && id != "" {
			out = append(out, fieldset.Fieldset{fieldset.KeyUID: id})
		}
	}
	return out
}

func relationKeys(values []any) []string {
	keys := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := fieldset.IdentifierOf(v); ok {
			keys = append(keys, id)
			continue
		}
		keys = append(keys, fieldset.Canonical(v))
	}
	return keys
}

func canonicalKeys(values []any) []string {
	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = fieldset.Canonical(v)
	}
	return keys
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, k := range a {
		setA[k] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, k := range b {
		setB[k] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	var inter int
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}
