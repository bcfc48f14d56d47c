package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/reconcile"
)

func path(s string) fieldset.Path { return fieldset.ParsePath(s) }

func TestAccumulatorDropsBaseValues(t *testing.T) {
	acc := reconcile.NewAccumulator(fieldset.Fieldset{"title": "Draft", "estimate": 3})

	acc.Set(path("title"), "Draft", "body")
	acc.Set(path("estimate"), 3.0, "frontmatter")

	got, err := acc.Result()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccumulatorRoundTrip(t *testing.T) {
	acc := reconcile.NewAccumulator(fieldset.Fieldset{"title": "Draft"})

	acc.Set(path("title"), "Final", "heading")
	acc.Set(path("title"), "Final", "frontmatter")

	got, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, fieldset.Fieldset{"title": "Final"}, got)
	assert.Empty(t, acc.Conflicts())
	assert.Equal(t, map[string]string{"title": "heading"}, acc.Provenance())
}

func TestAccumulatorConflict(t *testing.T) {
	acc := reconcile.NewAccumulator(fieldset.Fieldset{"title": "Draft"})

	acc.Set(path("title"), "Final", "heading")
	acc.Set(path("title"), "Done", "frontmatter")

	got, err := acc.Result()
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.IsConflict(err))

	conflict, ok := errors.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, []string{"title"}, conflict.Path)
	assert.Equal(t, "Draft", conflict.Base)
	assert.Equal(t, []errors.SourcedValue{
		{Value: "Final", Source: "heading"},
		{Value: "Done", Source: "frontmatter"},
	}, conflict.Values)
}

func TestAccumulatorAggregatesConflicts(t *testing.T) {
	acc := reconcile.NewAccumulator(fieldset.Fieldset{})

	acc.Set(path("status"), "todo", "a")
	acc.Set(path("status"), "doing", "b")
	acc.Set(path("status"), "done", "c")
	acc.Set(path("status"), "doing", "d")
	acc.Set(path("owner"), "u1", "a")
	acc.Set(path("owner"), "u2", "b")

	conflicts := acc.Conflicts()
	require.Len(t, conflicts, 2)
	assert.Equal(t, []string{"status"}, conflicts[0].Path)
	assert.Len(t, conflicts[0].Values, 3)
	assert.Equal(t, []string{"owner"}, conflicts[1].Path)

	_, err := acc.Result()
	first, ok := errors.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, []string{"status"}, first.Path)
}

func TestAccumulatorMergesNestedPaths(t *testing.T) {
	tests := []struct {
		name  string
		order []reconcile.Proposal
	}{
		{
			name: "parent first",
			order: []reconcile.Proposal{
				{Path: path("meta"), Value: map[string]any{"color": "red"}, Source: "a"},
				{Path: path("meta.size"), Value: 2, Source: "b"},
			},
		},
		{
			name: "child first",
			order: []reconcile.Proposal{
				{Path: path("meta.size"), Value: 2, Source: "b"},
				{Path: path("meta"), Value: map[string]any{"color": "red"}, Source: "a"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := reconcile.NewAccumulator(fieldset.Fieldset{"title": "x"})
			acc.Apply(tt.order...)

			got, err := acc.Result()
			require.NoError(t, err)
			assert.Equal(t, fieldset.Fieldset{"meta": map[string]any{"color": "red", "size": 2}}, got)
		})
	}
}

func TestAccumulatorDoesNotAliasProposals(t *testing.T) {
	acc := reconcile.NewAccumulator(nil)
	tags := []any{"a"}

	acc.Set(path("tags"), tags, "a")
	tags[0] = "mutated"

	got, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got["tags"])
}
