package treediff

import (
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
)

const opDiffTrees = "diff node trees"

// work is a matched node pair waiting to be diffed, with the new-side
// ancestors of the pair for type inference.
type work struct {
	newNode   fieldset.Fieldset
	oldNode   fieldset.Fieldset
	ancestors []fieldset.Fieldset
	path      fieldset.Path
}

// DiffNodeTrees returns the changesets that turn the stored tree oldRoot
// into newRoot. Every stored node must carry an identifier.
func (d *Differ) DiffNodeTrees(newRoot, oldRoot fieldset.Fieldset) ([]differ.Changeset, error) {
	var out []differ.Changeset
	queue := []work{{newNode: newRoot, oldNode: oldRoot}}

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]

		oldID, ok := w.oldNode.Identifier()
		if !ok {
			return nil, errors.NewPreconditionError(opDiffTrees, w.path, "stored node has no identifier")
		}

		update := d.changedFields(w.newNode, w.oldNode)
		var created []differ.Changeset
		lineage := append(append([]fieldset.Fieldset{}, w.ancestors...), w.newNode)

		for _, rel := range []string{d.cfg.ChildrenKey, d.cfg.DataKey} {
			nv, present := w.newNode[rel]
			if !present {
				continue
			}
			newKids := nodes(nv)
			oldKids := nodes(w.oldNode[rel])
			result := d.MatchNodes(newKids, oldKids)

			var mutations []differ.ListMutation
			for _, j := range result.ToRemove {
				id, ok := oldKids[j].Identifier()
				if !ok {
					return nil, errors.NewPreconditionError(opDiffTrees,
						append(append(fieldset.Path{}, w.path...), rel), "stored node has no identifier")
				}
				mutations = append(mutations, differ.Remove(id))
			}
			for _, i := range result.ToCreate {
				id, changes, ok := d.createNode(newKids[i], lineage)
				if !ok {
					continue
				}
				mutations = append(mutations, differ.Insert(id))
				created = append(created, changes...)
			}
			if len(mutations) > 0 {
				update[rel] = mutations
			}

			for _, p := range result.Matches {
				queue = append(queue, work{
					newNode:   newKids[p.New],
					oldNode:   oldKids[p.Old],
					ancestors: lineage,
					path:      append(append(fieldset.Path{}, w.path...), rel),
				})
			}
		}

		if len(update) > 0 {
			out = append(out, differ.NewUpdate(oldID, update))
		}
		out = append(out, created...)
	}

	return out, nil
}

// changedFields returns the non-structural fields of newNode whose
// serialized value differs from oldNode. An absent field or a null where
// nothing was stored is unchanged; an explicit null over a stored value is
// a change.
func (d *Differ) changedFields(newNode, oldNode fieldset.Fieldset) fieldset.Fieldset {
	update := fieldset.Fieldset{}
	for _, key := range newNode.Keys() {
		if d.structural(key) {
			continue
		}
		nv := newNode[key]
		ov, stored := oldNode[key]
		if nv == nil && (!stored || ov == nil) {
			continue
		}
		if fieldset.Canonical(nv) != fieldset.Canonical(ov) || !stored {
			update[key] = fieldset.Clone(nv)
		}
	}
	return update
}

func (d *Differ) structural(key string) bool {
	return fieldset.IsCoreKey(key) || key == d.cfg.ChildrenKey || key == d.cfg.DataKey
}

// createNode builds the creation changesets for a new node and its
// descendants. It reports false when the node's type cannot be determined.
func (d *Differ) createNode(node fieldset.Fieldset, ancestors []fieldset.Fieldset) (string, []differ.Changeset, bool) {
	typ := node.Type()
	if typ == "" {
		typ = d.inferType(ancestors)
	}
	if typ == "" {
		d.logger.Warn().
			Int("depth", len(ancestors)).
			Strs("fields", node.Keys()).
			Msg("dropping created node without a type")
		return "", nil, false
	}

	id := d.newID()
	fields := fieldset.Fieldset{}
	for _, key := range node.Keys() {
		if !d.structural(key) && node[key] != nil {
			fields[key] = fieldset.Clone(node[key])
		}
	}
	fields[fieldset.KeyUID] = id

	var descendants []differ.Changeset
	lineage := append(append([]fieldset.Fieldset{}, ancestors...), node)
	for _, rel := range []string{d.cfg.ChildrenKey, d.cfg.DataKey} {
		var mutations []differ.ListMutation
		for _, kid := range nodes(node[rel]) {
			kidID, changes, ok := d.createNode(kid, lineage)
			if !ok {
				continue
			}
			mutations = append(mutations, differ.Insert(kidID))
			descendants = append(descendants, changes...)
		}
		if len(mutations) > 0 {
			fields[rel] = mutations
		}
	}

	return id, append([]differ.Changeset{differ.NewCreate(typ, fields)}, descendants...), true
}

// inferType returns the type named by the query predicate of the nearest
// ancestor that declares one.
func (d *Differ) inferType(ancestors []fieldset.Fieldset) string {
	for i := len(ancestors) - 1; i >= 0; i-- {
		query, ok := fieldset.AsFieldset(ancestors[i][d.cfg.QueryKey])
		if !ok {
			continue
		}
		if typ := query.Type(); typ != "" {
			return typ
		}
	}
	return ""
}

// nodes converts a relation value into nodes, dropping anything that is not
// a nested node.
func nodes(v any) []fieldset.Fieldset {
	var out []fieldset.Fieldset
	for _, item := range listOf(v) {
		if n, ok := fieldset.AsFieldset(item); ok {
			out = append(out, n)
		}
	}
	return out
}
