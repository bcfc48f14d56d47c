package differ

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/logging"
	"github.com/agentstation/entsync/pkg/match"
	"github.com/agentstation/entsync/pkg/schema"
)

// Differ handles change detection between entity snapshots.
type Differ interface {
	// DiffEntities compares an edited entity against its stored
	// counterpart. The stored entity must carry an identifier.
	DiffEntities(newEntity, oldEntity fieldset.Fieldset) ([]Changeset, error)

	// DiffQueryResults compares an edited query result list against the
	// stored entities the query returned. Fields of query are shared by
	// every candidate and are left out of matching.
	DiffQueryResults(newEntities, oldEntities []fieldset.Fieldset, query fieldset.Fieldset) (*QueryResult, error)
}

// differ is the default implementation of Differ.
type differ struct {
	schema       *schema.Schema
	config       match.Config
	ignoreFields map[string]bool
	newID        IDGenerator
	textFloor    float64
	logger       *zerolog.Logger
}

// New creates a Differ for entities described by s. The schema and its
// classifications are shared read-only by every call, so a Differ is safe
// for concurrent use.
func New(s *schema.Schema, opts ...Option) Differ {
	nop := logging.Nop
	d := &differ{
		schema:       s,
		ignoreFields: make(map[string]bool),
		newID:        NewUUID,
		logger:       &nop,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.config = match.NewConfig(s)
	d.config.TextFloor = d.textFloor
	if len(d.ignoreFields) > 0 {
		keys := make([]string, 0, len(d.ignoreFields))
		for k := range d.ignoreFields {
			keys = append(keys, k)
		}
		d.config = d.config.WithIgnore(keys...)
	}

	return d
}

const opDiffEntities = "diff entities"

// DiffEntities compares newEntity against oldEntity. Update changesets
// come before the creations of their new descendants.
func (diff *differ) DiffEntities(newEntity, oldEntity fieldset.Fieldset) ([]Changeset, error) {
	return diff.entities(newEntity, oldEntity, nil)
}

func (diff *differ) entities(newEntity, oldEntity fieldset.Fieldset, path fieldset.Path) ([]Changeset, error) {
	oldID, ok := oldEntity.Identifier()
	if !ok {
		return nil, errors.NewPreconditionError(opDiffEntities, path, "stored entity has no identifier")
	}

	update := fieldset.Fieldset{}
	var descendants []Changeset

	for _, key := range fieldset.UnionKeys(newEntity, oldEntity) {
		if fieldset.IsCoreKey(key) || diff.ignoreFields[key] {
			continue
		}
		nv, present := newEntity[key]
		if !present {
			// Absence never implies deletion.
			continue
		}
		ov := oldEntity[key]
		fieldPath := append(append(fieldset.Path{}, path...), key)
		def, known := diff.schema.Field(key)

		switch {
		case known && def.IsMultiRelation():
			mutations, changes, err := diff.multiRelation(fieldPath, def, nv, ov)
			if err != nil {
				return nil, err
			}
			if len(mutations) > 0 {
				update[key] = mutations
			}
			descendants = append(descendants, changes...)

		case known && def.IsRelation() && fieldset.IsNested(nv):
			changes, err := diff.singleRelation(fieldPath, nv, ov)
			if err != nil {
				return nil, err
			}
			descendants = append(descendants, changes...)

		case known && def.AllowMultiple:
			if mutations := listMutations(nv, ov); len(mutations) > 0 {
				update[key] = mutations
			}

		default:
			if nv == nil && ov == nil {
				continue
			}
			if !fieldset.Equal(nv, ov) {
				update[key] = fieldset.Clone(nv)
			}
		}
	}

	var out []Changeset
	if len(update) > 0 {
		out = append(out, NewUpdate(oldID, update))
	}
	return append(out, descendants...), nil
}

// multiRelation matches the children of a multi-valued relation and
// returns the field's mutations plus the changesets of its children.
func (diff *differ) multiRelation(path fieldset.Path, def schema.FieldDef, nv, ov any) ([]ListMutation, []Changeset, error) {
	newChildren := match.Entities(listOf(nv))
	oldChildren := match.Entities(listOf(ov))
	result := match.Match(newChildren, oldChildren, diff.childConfig())

	var mutations []ListMutation
	var changes []Changeset

	for _, j := range result.ToRemove {
		id, ok := oldChildren[j].Identifier()
		if !ok {
			return nil, nil, errors.NewPreconditionError(opDiffEntities, path, "stored child has no identifier")
		}
		mutations = append(mutations, Remove(id))
	}

	for _, i := range result.ToCreate {
		child := newChildren[i]
		if id, ok := child.Identifier(); ok {
			// Existing entity referenced from a new place.
			mutations = append(mutations, Insert(id))
			continue
		}
		id, created := diff.create(child, def.Range)
		mutations = append(mutations, Insert(id))
		changes = append(changes, created...)
	}

	for _, p := range result.Matches {
		childPath := append(append(fieldset.Path{}, path...), fmt.Sprint(p.Old))
		nested, err := diff.entities(newChildren[p.New], oldChildren[p.Old], childPath)
		if err != nil {
			return nil, nil, err
		}
		changes = append(changes, nested...)
	}

	diff.logger.Debug().
		Str("field", path.String()).
		Int("matched", len(result.Matches)).
		Int("created", len(result.ToCreate)).
		Int("removed", len(result.ToRemove)).
		Msg("matched relation children")

	return mutations, changes, nil
}

// singleRelation diffs an expanded single-valued relation.
func (diff *differ) singleRelation(path fieldset.Path, nv, ov any) ([]Changeset, error) {
	newChild, _ := fieldset.AsFieldset(nv)
	oldChild, ok := fieldset.AsFieldset(ov)
	if !ok {
		return nil, errors.NewPreconditionError(opDiffEntities, path, "relation is expanded on the new side only")
	}
	oldID, ok := oldChild.Identifier()
	if !ok {
		return nil, nil
	}
	if newID, ok := newChild.Identifier(); ok {
		if newID != oldID {
			// Points at a different entity now.
			return nil, nil
		}
	} else {
		newChild = newChild.Clone()
		newChild[fieldset.KeyUID] = oldID
	}
	return diff.entities(newChild, oldChild, path)
}

// create builds the creation changesets for a new child entity and its own
// new children. The first changeset creates child itself.
func (diff *differ) create(child fieldset.Fieldset, rangeTypes []string) (string, []Changeset) {
	id := diff.newID()
	typ := child.Type()
	if typ == "" && len(rangeTypes) == 1 {
		typ = rangeTypes[0]
	}

	fields := fieldset.Fieldset{}
	var nested []Changeset
	for _, key := range child.Keys() {
		if fieldset.IsCoreKey(key) || diff.ignoreFields[key] {
			continue
		}
		v := child[key]
		def, known := diff.schema.Field(key)
		if !known || !def.IsMultiRelation() {
			fields[key] = fieldset.Clone(v)
			continue
		}
		var mutations []ListMutation
		for _, grandchild := range match.Entities(listOf(v)) {
			if gid, ok := grandchild.Identifier(); ok {
				mutations = append(mutations, Insert(gid))
				continue
			}
			gid, created := diff.create(grandchild, def.Range)
			mutations = append(mutations, Insert(gid))
			nested = append(nested, created...)
		}
		if len(mutations) > 0 {
			fields[key] = mutations
		}
	}
	fields[fieldset.KeyUID] = id

	if typ == "" {
		diff.logger.Debug().Str("uid", id).Msg("created entity has no type")
	}
	return id, append([]Changeset{NewCreate(typ, fields)}, nested...)
}

// childConfig is the matching config for relation children. Ignored fields
// stay ignored there.
func (diff *differ) childConfig() match.Config {
	c := diff.config
	c.ExcludeFields = nil
	return c
}

// listMutations diffs two multi-valued scalar fields as sets: removals
// first, then insertions, each in list order.
func listMutations(nv, ov any) []ListMutation {
	newValues := listOf(nv)
	oldValues := listOf(ov)

	inNew := make(map[string]bool, len(newValues))
	for _, v := range newValues {
		inNew[fieldset.Canonical(v)] = true
	}
	inOld := make(map[string]bool, len(oldValues))
	for _, v := range oldValues {
		inOld[fieldset.Canonical(v)] = true
	}

	var out []ListMutation
	seen := map[string]bool{}
	for _, v := range oldValues {
		k := fieldset.Canonical(v)
		if !inNew[k] && !seen[k] {
			seen[k] = true
			out = append(out, Remove(fieldset.Clone(v)))
		}
	}
	seen = map[string]bool{}
	for _, v := range newValues {
		k := fieldset.Canonical(v)
		if !inOld[k] && !seen[k] {
			seen[k] = true
			out = append(out, Insert(fieldset.Clone(v)))
		}
	}
	return out
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
