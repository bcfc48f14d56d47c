package entsync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/logging"
	"github.com/agentstation/entsync/pkg/match"
	"github.com/agentstation/entsync/pkg/reconcile"
	"github.com/agentstation/entsync/pkg/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Fields: map[string]schema.FieldDef{
			"title":     {DataType: schema.DataTypePlaintext, Alphabet: schema.AlphabetLine},
			"status":    {DataType: schema.DataTypeOption, Options: []string{"todo", "doing", "done"}},
			"updatedAt": {DataType: schema.DataTypeDatetime},
			"tasks":     {DataType: schema.DataTypeRelation, AllowMultiple: true, Range: []string{"Task"}},
		},
		Types: map[string]schema.TypeDef{
			"Project": {Fields: []string{"title", "tasks"}},
			"Task":    {Fields: []string{"title", "status", "updatedAt"}},
		},
	}
}

func sequence() differ.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newClient(t *testing.T, opts ...Option) Client {
	t.Helper()
	c, err := New(testSchema(), append([]Option{WithIDGenerator(sequence())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(testSchema(), WithTextFloor(2))
	require.Error(t, err)

	_, err = New(testSchema(), WithTreeThresholds(0.5, -1))
	require.Error(t, err)

	c, err := New(testSchema())
	require.NoError(t, err)
	assert.Equal(t, testSchema(), c.Schema())
}

func TestClientMatch(t *testing.T) {
	c := newClient(t)
	old := []fieldset.Fieldset{{"uid": "a", "title": "Buy milk"}, {"uid": "b", "title": "File taxes"}}
	edited := []fieldset.Fieldset{{"title": "File taxes"}, {"title": "Buy milk"}}

	got := c.Match(edited, old)
	assert.Equal(t, []match.Pair{{New: 0, Old: 1}, {New: 1, Old: 0}}, got.Matches)
}

func TestClientDiffHooks(t *testing.T) {
	c := newClient(t)
	var created, updated []string
	c.OnCreate(func(ch differ.Changeset) { created = append(created, ch.ID()) })
	c.OnUpdate(func(ch differ.Changeset) { updated = append(updated, ch.ID()) })

	stored := fieldset.Fieldset{"uid": "p1", "type": "Project", "title": "Launch", "tasks": []any{}}
	edited := fieldset.Fieldset{"title": "Launch", "tasks": []any{map[string]any{"title": "Announce"}}}

	changes, err := c.Diff(edited, stored)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, []string{"id-1"}, created)
	assert.Equal(t, []string{"p1"}, updated)
	assert.Equal(t, "Task", changes[1].Type)
}

func TestClientIgnoredFields(t *testing.T) {
	c := newClient(t, WithIgnoredFields("updatedAt"))
	stored := fieldset.Fieldset{"uid": "t1", "title": "Buy milk", "updatedAt": "2025-01-01T00:00:00Z"}
	edited := fieldset.Fieldset{"title": "Buy milk", "updatedAt": "2025-02-01T00:00:00Z"}

	changes, err := c.Diff(edited, stored)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestClientDiffQuery(t *testing.T) {
	c := newClient(t)
	var updated int
	c.OnUpdate(func(differ.Changeset) { updated++ })

	result, err := c.DiffQuery(
		[]fieldset.Fieldset{{"title": "Buy milk!"}, {"title": "Learn Go"}},
		[]fieldset.Fieldset{{"uid": "a", "title": "Buy milk", "status": "todo"}},
		fieldset.Fieldset{"type": "Task", "status": "todo"},
	)
	require.NoError(t, err)
	assert.Equal(t, []fieldset.Fieldset{{"type": "Task", "status": "todo", "title": "Learn Go"}}, result.ToCreate)
	assert.Equal(t, 1, updated)
}

func TestClientDiffTree(t *testing.T) {
	c := newClient(t)
	var created int
	c.OnCreate(func(differ.Changeset) { created++ })

	stored := fieldset.Fieldset{"uid": "r", "type": "page", "children": []any{}}
	edited := fieldset.Fieldset{"type": "page", "children": []any{map[string]any{"type": "block", "text": "Hello"}}}

	changes, err := c.DiffTree(edited, stored)
	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("r", fieldset.Fieldset{"children": []differ.ListMutation{differ.Insert("id-1")}}),
		differ.NewCreate("block", fieldset.Fieldset{"text": "Hello", "uid": "id-1"}),
	}, changes)
	assert.Equal(t, 1, created)
}

func TestClientReconcile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	c := newClient(t, WithLogger(logger.Logger))
	var conflicts []string
	c.OnConflict(func(e *errors.ConflictError) { conflicts = append(conflicts, fieldset.Path(e.Path).String()) })

	prior := fieldset.Fieldset{"uid": "t1", "title": "Buy milk", "status": "todo"}

	result, err := c.Reconcile(reconcile.Document{
		Prior:     prior,
		Proposals: []reconcile.Proposal{{Path: fieldset.Path{"status"}, Value: "done", Source: "checkbox"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{differ.NewUpdate("t1", fieldset.Fieldset{"status": "done"})}, result.Changes)
	assert.Empty(t, conflicts)

	_, err = c.Reconcile(reconcile.Document{
		Prior: prior,
		Proposals: []reconcile.Proposal{
			{Path: fieldset.Path{"status"}, Value: "done", Source: "checkbox"},
			{Path: fieldset.Path{"status"}, Value: "doing", Source: "tag"},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, []string{"status"}, conflicts)
	logger.AssertContains(t, "proposals conflict")
}
