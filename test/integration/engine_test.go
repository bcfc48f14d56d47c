// Package integration exercises the engine packages together, from schema
// files on disk through matching, diffing and reconciliation.
package integration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/reconcile"
	"github.com/agentstation/entsync/pkg/schema"
	"github.com/agentstation/entsync/pkg/treediff"
)

func loadSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Load("../../pkg/schema/testdata/project.yaml")
	require.NoError(t, err)
	return s
}

func sequence() differ.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func storedProject() fieldset.Fieldset {
	return fieldset.Fieldset{
		"uid":   "p1",
		"type":  "Project",
		"title": "Launch",
		"tasks": []any{
			map[string]any{"uid": "t1", "type": "Task", "title": "Write docs", "status": "todo"},
			map[string]any{"uid": "t2", "type": "Task", "title": "Ship release", "status": "todo"},
		},
	}
}

func TestDiffNestedProject(t *testing.T) {
	d := differ.New(loadSchema(t), differ.WithIDGenerator(sequence()))
	edited := fieldset.Fieldset{
		"title": "Launch",
		"tasks": []any{
			map[string]any{"title": "Write docs", "status": "done"},
			map[string]any{"title": "Ship release", "status": "todo"},
			map[string]any{"title": "Announce", "status": "todo"},
		},
	}

	got, err := d.DiffEntities(edited, storedProject())
	require.NoError(t, err)

	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tasks": []differ.ListMutation{differ.Insert("new-1")}}),
		differ.NewCreate("Task", fieldset.Fieldset{"title": "Announce", "status": "todo", "uid": "new-1"}),
		differ.NewUpdate("t1", fieldset.Fieldset{"status": "done"}),
	}, got)
	assert.Equal(t, differ.Summary{Created: 1, Updated: 2}, differ.Summarize(got))
}

func TestReconcileSourcesAgainstStore(t *testing.T) {
	d := differ.New(loadSchema(t), differ.WithIDGenerator(sequence()))
	prior := storedProject()
	base := fieldset.Fieldset{"title": "Launch", "description": "Q3 launch"}

	pipeline := reconcile.NewPipeline(d)
	result, err := pipeline.Run(reconcile.Document{
		Prior: prior,
		Base:  base,
		Proposals: []reconcile.Proposal{
			{Path: fieldset.Path{"title"}, Value: "Launch v2", Source: "heading"},
			{Path: fieldset.Path{"title"}, Value: "Launch v2", Source: "frontmatter"},
			{Path: fieldset.Path{"description"}, Value: "Q3 launch", Source: "body"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, fieldset.Fieldset{"title": "Launch v2"}, result.Merged)
	assert.Equal(t, map[string]string{"title": "heading"}, result.Provenance)
	assert.Equal(t, []differ.Changeset{differ.NewUpdate("p1", fieldset.Fieldset{"title": "Launch v2"})}, result.Changes)

	_, err = pipeline.Run(reconcile.Document{
		Prior: prior,
		Proposals: []reconcile.Proposal{
			{Path: fieldset.Path{"title"}, Value: "A", Source: "one"},
			{Path: fieldset.Path{"title"}, Value: "B", Source: "two"},
		},
	})
	require.Error(t, err)
}

func TestTreeAndEntityDiffsAgree(t *testing.T) {
	stored := fieldset.Fieldset{"uid": "p1", "type": "Project", "title": "Launch"}
	edited := fieldset.Fieldset{"type": "Project", "title": "Launch later"}

	entityChanges, err := differ.New(loadSchema(t)).DiffEntities(edited, stored)
	require.NoError(t, err)
	treeChanges, err := treediff.New().DiffNodeTrees(edited, stored)
	require.NoError(t, err)

	assert.Equal(t, entityChanges, treeChanges)
}
