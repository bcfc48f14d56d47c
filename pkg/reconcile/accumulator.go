// Package reconcile merges partial edits of one entity, such as the values
// extracted from overlapping regions of an edited document, against the
// snapshot they were made from.
//
// An Accumulator collects proposed field values from any number of sources.
// Proposals equal to the base snapshot are dropped, repeated proposals of
// the same value are idempotent, and two different proposals for one field
// are a conflict. Conflicts are detected and reported, never resolved.
package reconcile

import (
	"sort"
	"strings"

	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
)

// Proposal is a field value proposed by one source.
type Proposal struct {
	Path   fieldset.Path `json:"path" yaml:"path"`
	Value  any           `json:"value" yaml:"value"`
	Source string        `json:"source,omitempty" yaml:"source,omitempty"`
}

type entry struct {
	path   fieldset.Path
	value  any
	source string
	seq    int
}

// Accumulator merges proposed field values against a base snapshot. It is
// not safe for concurrent use.
type Accumulator struct {
	base      fieldset.Fieldset
	entries   map[string]*entry
	conflicts []*errors.ConflictError
	byPath    map[string]*errors.ConflictError
	seq       int
}

// NewAccumulator creates an Accumulator for edits made against base.
func NewAccumulator(base fieldset.Fieldset) *Accumulator {
	return &Accumulator{
		base:    base,
		entries: make(map[string]*entry),
		byPath:  make(map[string]*errors.ConflictError),
	}
}

// pathKey joins path segments with a separator that cannot appear in
// field keys produced by the parsers.
func pathKey(p fieldset.Path) string {
	return strings.Join(p, "\x00")
}

// Set proposes value for the field at path on behalf of source.
func (a *Accumulator) Set(path fieldset.Path, value any, source string) {
	if len(path) == 0 {
		return
	}
	baseValue, _ := fieldset.Get(a.base, path)
	if fieldset.Equal(value, baseValue) {
		return
	}

	key := pathKey(path)
	stored, ok := a.entries[key]
	if !ok {
		a.seq++
		a.entries[key] = &entry{
			path:   append(fieldset.Path{}, path...),
			value:  fieldset.Clone(value),
			source: source,
			seq:    a.seq,
		}
		return
	}
	if fieldset.Equal(stored.value, value) {
		return
	}

	incoming := errors.SourcedValue{Value: fieldset.Clone(value), Source: source}
	if conflict, ok := a.byPath[key]; ok {
		for _, v := range conflict.Values {
			if fieldset.Equal(v.Value, value) {
				return
			}
		}
		conflict.Values = append(conflict.Values, incoming)
		return
	}

	conflict := errors.NewConflictError(path, fieldset.Clone(baseValue),
		errors.SourcedValue{Value: stored.value, Source: stored.source},
		incoming,
	)
	a.byPath[key] = conflict
	a.conflicts = append(a.conflicts, conflict)
}

// Apply proposes every proposal in order.
func (a *Accumulator) Apply(proposals ...Proposal) {
	for _, p := range proposals {
		a.Set(p.Path, p.Value, p.Source)
	}
}

// Conflicts returns every conflict recorded so far, in detection order.
func (a *Accumulator) Conflicts() []*errors.ConflictError {
	return append([]*errors.ConflictError(nil), a.conflicts...)
}

// Result returns the sparse fieldset of genuinely changed fields. It fails
// with the first conflict if any was recorded.
func (a *Accumulator) Result() (fieldset.Fieldset, error) {
	if len(a.conflicts) > 0 {
		return nil, a.conflicts[0]
	}

	out := fieldset.Fieldset{}
	for _, e := range a.sorted() {
		fieldset.Set(out, e.path, e.value)
	}
	return out, nil
}

// Provenance maps the dotted path of every stored value to the source that
// first proposed it.
func (a *Accumulator) Provenance() map[string]string {
	out := make(map[string]string, len(a.entries))
	for _, e := range a.entries {
		out[e.path.String()] = e.source
	}
	return out
}

// sorted returns the stored entries by ascending path length, keeping
// proposal order within a length.
func (a *Accumulator) sorted() []*entry {
	entries := make([]*entry, 0, len(a.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].path) != len(entries[j].path) {
			return len(entries[i].path) < len(entries[j].path)
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}
