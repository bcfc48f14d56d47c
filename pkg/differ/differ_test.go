package differ_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/logging"
	"github.com/agentstation/entsync/pkg/schema"
)

func sequentialIDs(prefix string) differ.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func projectSchema() *schema.Schema {
	return &schema.Schema{
		Fields: map[string]schema.FieldDef{
			"title":    {DataType: schema.DataTypePlaintext},
			"done":     {DataType: schema.DataTypeBoolean},
			"status":   {DataType: schema.DataTypeOption, Options: []string{"todo", "done"}},
			"tags":     {DataType: schema.DataTypePlaintext, AllowMultiple: true},
			"tasks":    {DataType: schema.DataTypeRelation, AllowMultiple: true, Range: []string{"Task"}},
			"subtasks": {DataType: schema.DataTypeRelation, AllowMultiple: true, Range: []string{"Task"}},
			"owner":    {DataType: schema.DataTypeRelation, Range: []string{"Person"}},
			"name":     {DataType: schema.DataTypePlaintext},
		},
		Types: map[string]schema.TypeDef{
			"Project": {Fields: []string{"title", "tags", "tasks", "owner"}},
			"Task":    {Fields: []string{"title", "done", "status", "subtasks"}},
			"Person":  {Fields: []string{"name"}},
		},
	}
}

func newDiffer(opts ...differ.Option) differ.Differ {
	opts = append([]differ.Option{differ.WithIDGenerator(sequentialIDs("new"))}, opts...)
	return differ.New(projectSchema(), opts...)
}

func TestDiffEntitiesRenamedTask(t *testing.T) {
	d := newDiffer()

	got, err := d.DiffEntities(
		fieldset.Fieldset{"title": "Implement auth v2"},
		fieldset.Fieldset{"uid": "t1", "title": "Implement auth"},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("t1", fieldset.Fieldset{"title": "Implement auth v2"}),
	}, got)
}

func TestDiffEntitiesRemovedChild(t *testing.T) {
	d := newDiffer()
	task1 := map[string]any{"uid": "task1", "type": "Task", "title": "Write docs"}
	task2 := map[string]any{"uid": "task2", "type": "Task", "title": "Ship it"}

	got, err := d.DiffEntities(
		fieldset.Fieldset{"uid": "p1", "tasks": []any{task1}},
		fieldset.Fieldset{"uid": "p1", "tasks": []any{task1, task2}},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tasks": []differ.ListMutation{differ.Remove("task2")}}),
	}, got)
}

func TestDiffEntitiesCreatedChild(t *testing.T) {
	d := newDiffer()
	task1 := map[string]any{"uid": "task1", "type": "Task", "title": "Write docs"}

	got, err := d.DiffEntities(
		fieldset.Fieldset{"uid": "p1", "tasks": []any{task1, map[string]any{"type": "Task", "title": "New Task"}}},
		fieldset.Fieldset{"uid": "p1", "tasks": []any{task1}},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tasks": []differ.ListMutation{differ.Insert("new-1")}}),
		differ.NewCreate("Task", fieldset.Fieldset{"title": "New Task", "uid": "new-1"}),
	}, got)
}

func TestDiffEntitiesIsIdempotent(t *testing.T) {
	d := newDiffer()
	entities := []fieldset.Fieldset{
		{"uid": "t1", "title": "Implement auth"},
		{"uid": "t2", "title": "Tagged", "tags": []any{"a", "b"}, "done": false, "status": nil},
		{
			"uid":   "p1",
			"type":  "Project",
			"title": "Launch",
			"owner": map[string]any{"uid": "u1", "name": "Ada"},
			"tasks": []any{
				map[string]any{"uid": "t1", "title": "One", "subtasks": []any{"t9"}},
				map[string]any{"uid": "t2", "title": "Two"},
			},
		},
	}

	for _, e := range entities {
		id, _ := e.Identifier()
		t.Run(id, func(t *testing.T) {
			got, err := d.DiffEntities(e, e)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestDiffEntitiesPreconditions(t *testing.T) {
	d := newDiffer()

	t.Run("stored entity without identifier", func(t *testing.T) {
		_, err := d.DiffEntities(fieldset.Fieldset{"title": "x"}, fieldset.Fieldset{"title": "y"})
		require.Error(t, err)
		assert.True(t, errors.IsPrecondition(err))
	})

	t.Run("relation expanded on one side", func(t *testing.T) {
		_, err := d.DiffEntities(
			fieldset.Fieldset{"owner": map[string]any{"name": "Ada"}},
			fieldset.Fieldset{"uid": "p1", "owner": "u1"},
		)
		require.Error(t, err)
		assert.True(t, errors.IsPrecondition(err))

		var pe *errors.PreconditionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, []string{"owner"}, pe.Path)
	})
}

func TestDiffEntitiesScalars(t *testing.T) {
	d := newDiffer()
	old := fieldset.Fieldset{"uid": "t1", "title": "Old", "done": true, "status": nil}

	tests := []struct {
		name    string
		updated fieldset.Fieldset
		want    fieldset.Fieldset
	}{
		{"absent is not a deletion", fieldset.Fieldset{}, nil},
		{"both null", fieldset.Fieldset{"status": nil}, nil},
		{"explicit null overwrites", fieldset.Fieldset{"done": nil}, fieldset.Fieldset{"done": nil}},
		{"changed value", fieldset.Fieldset{"title": "New", "done": true}, fieldset.Fieldset{"title": "New"}},
		{"null replaced", fieldset.Fieldset{"status": "todo"}, fieldset.Fieldset{"status": "todo"}},
		{"identity fields ignored", fieldset.Fieldset{"uid": "other", "type": "Task"}, nil},
		{"unknown field", fieldset.Fieldset{"color": "red"}, fieldset.Fieldset{"color": "red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.DiffEntities(tt.updated, old)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, []differ.Changeset{differ.NewUpdate("t1", tt.want)}, got)
		})
	}
}

func TestDiffEntitiesMultiValuedScalar(t *testing.T) {
	d := newDiffer()

	got, err := d.DiffEntities(
		fieldset.Fieldset{"tags": []any{"b", "c", "d"}},
		fieldset.Fieldset{"uid": "p1", "tags": []any{"a", "b", "c"}},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tags": []differ.ListMutation{
			differ.Remove("a"),
			differ.Insert("d"),
		}}),
	}, got)

	got, err = d.DiffEntities(
		fieldset.Fieldset{"tags": []any{"c", "a", "b"}},
		fieldset.Fieldset{"uid": "p1", "tags": []any{"a", "b", "c"}},
	)
	require.NoError(t, err)
	assert.Empty(t, got, "reordering is not a change")
}

func TestDiffEntitiesSingleRelation(t *testing.T) {
	d := newDiffer()
	old := fieldset.Fieldset{"uid": "p1", "owner": map[string]any{"uid": "u1", "name": "Ada"}}

	t.Run("identifier completed from stored side", func(t *testing.T) {
		got, err := d.DiffEntities(fieldset.Fieldset{"owner": map[string]any{"name": "Ada L."}}, old)
		require.NoError(t, err)
		assert.Equal(t, []differ.Changeset{
			differ.NewUpdate("u1", fieldset.Fieldset{"name": "Ada L."}),
		}, got)
	})

	t.Run("different entity is left alone", func(t *testing.T) {
		got, err := d.DiffEntities(fieldset.Fieldset{"owner": map[string]any{"uid": "u2", "name": "Bob"}}, old)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("stored side without identifier", func(t *testing.T) {
		got, err := d.DiffEntities(
			fieldset.Fieldset{"owner": map[string]any{"name": "Bob"}},
			fieldset.Fieldset{"uid": "p1", "owner": map[string]any{"name": "Ada"}},
		)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("identifier reference is a scalar edit", func(t *testing.T) {
		got, err := d.DiffEntities(fieldset.Fieldset{"owner": "u2"}, fieldset.Fieldset{"uid": "p1", "owner": "u1"})
		require.NoError(t, err)
		assert.Equal(t, []differ.Changeset{differ.NewUpdate("p1", fieldset.Fieldset{"owner": "u2"})}, got)
	})
}

func TestDiffEntitiesNestedCreation(t *testing.T) {
	d := newDiffer()

	got, err := d.DiffEntities(
		fieldset.Fieldset{
			"title": "Launch v2",
			"tasks": []any{
				map[string]any{
					"title": "Plan",
					"subtasks": []any{
						map[string]any{"title": "Book room"},
						"t7",
					},
				},
			},
		},
		fieldset.Fieldset{"uid": "p1", "title": "Launch", "tasks": []any{}},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{
			"title": "Launch v2",
			"tasks": []differ.ListMutation{differ.Insert("new-1")},
		}),
		differ.NewCreate("Task", fieldset.Fieldset{
			"title":    "Plan",
			"subtasks": []differ.ListMutation{differ.Insert("new-2"), differ.Insert("t7")},
			"uid":      "new-1",
		}),
		differ.NewCreate("Task", fieldset.Fieldset{"title": "Book room", "uid": "new-2"}),
	}, got)
}

func TestDiffEntitiesLinksExistingChild(t *testing.T) {
	d := newDiffer()

	got, err := d.DiffEntities(
		fieldset.Fieldset{"tasks": []any{"t1", "t5"}},
		fieldset.Fieldset{"uid": "p1", "tasks": []any{"t1", "t2"}},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tasks": []differ.ListMutation{
			differ.Remove("t2"),
			differ.Insert("t5"),
		}}),
	}, got)
}

func TestDiffEntitiesMatchedChildEdits(t *testing.T) {
	d := newDiffer()

	got, err := d.DiffEntities(
		fieldset.Fieldset{"tasks": []any{
			map[string]any{"title": "Write the release notes", "done": true},
			map[string]any{"type": "Task", "title": "Something unrelated"},
		}},
		fieldset.Fieldset{"uid": "p1", "tasks": []any{
			map[string]any{"uid": "t1", "title": "Write the release notes"},
		}},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tasks": []differ.ListMutation{differ.Insert("new-1")}}),
		differ.NewCreate("Task", fieldset.Fieldset{"title": "Something unrelated", "uid": "new-1"}),
		differ.NewUpdate("t1", fieldset.Fieldset{"done": true}),
	}, got)
}

func TestDiffEntitiesIgnoredFields(t *testing.T) {
	d := newDiffer(differ.WithIgnoredFields("title"))

	got, err := d.DiffEntities(
		fieldset.Fieldset{"title": "changed", "done": true},
		fieldset.Fieldset{"uid": "t1", "title": "orig", "done": false},
	)

	require.NoError(t, err)
	assert.Equal(t, []differ.Changeset{differ.NewUpdate("t1", fieldset.Fieldset{"done": true})}, got)
}

func TestDiffEntitiesIgnoredFieldsInChildren(t *testing.T) {
	d := newDiffer(differ.WithIgnoredFields("title"))

	// Titles swapped between the children: without the title, the done
	// flag and list position pair each child with its stored counterpart.
	got, err := d.DiffEntities(
		fieldset.Fieldset{"tasks": []any{
			map[string]any{"title": "Fix bug", "done": false},
			map[string]any{"title": "Write report", "done": true},
		}},
		fieldset.Fieldset{"uid": "p1", "tasks": []any{
			map[string]any{"uid": "t1", "title": "Write report", "done": false},
			map[string]any{"uid": "t2", "title": "Fix bug", "done": true},
		}},
	)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiffEntitiesLogsMatchOutcome(t *testing.T) {
	logger := logging.NewTestLogger(t)
	d := newDiffer(differ.WithLogger(logger.Logger))

	_, err := d.DiffEntities(
		fieldset.Fieldset{"tasks": []any{}},
		fieldset.Fieldset{"uid": "p1", "tasks": []any{"t1"}},
	)

	require.NoError(t, err)
	logger.AssertContains(t, "matched relation children")
	logger.AssertContains(t, `"removed":1`)
}

func TestDiffQueryResults(t *testing.T) {
	d := newDiffer()
	query := fieldset.Fieldset{"status": "todo"}

	got, err := d.DiffQueryResults(
		[]fieldset.Fieldset{
			{"title": "Alpha", "done": true},
			{"title": "Zzzz"},
		},
		[]fieldset.Fieldset{
			{"uid": "a", "title": "Alpha", "status": "todo"},
			{"uid": "b", "title": "Other thing entirely", "status": "todo"},
		},
		query,
	)

	require.NoError(t, err)
	assert.Equal(t, []fieldset.Fieldset{{"status": "todo", "title": "Zzzz"}}, got.ToCreate)
	assert.Equal(t, []differ.Changeset{differ.NewUpdate("a", fieldset.Fieldset{"done": true})}, got.ToUpdate)
	assert.Equal(t, []string{"b"}, got.Unmatched)
}

func TestDiffQueryResultsEmpty(t *testing.T) {
	d := newDiffer()

	got, err := d.DiffQueryResults(nil, nil, nil)

	require.NoError(t, err)
	assert.Empty(t, got.ToCreate)
	assert.Empty(t, got.ToUpdate)
	assert.Empty(t, got.Unmatched)
}

func TestChangesetJSON(t *testing.T) {
	changes := []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"tasks": []differ.ListMutation{differ.Insert("new-1")}}),
		differ.NewCreate("Task", fieldset.Fieldset{"title": "New Task", "uid": "new-1"}),
	}

	data, err := json.Marshal(changes)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"$ref": "p1", "tasks": [["insert", "new-1"]]},
		{"type": "Task", "title": "New Task", "uid": "new-1"}
	]`, string(data))

	var decoded []differ.Changeset
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "p1", decoded[0].Ref)
	assert.Equal(t, []differ.ListMutation{differ.Insert("new-1")}, decoded[0].Fields["tasks"])
	assert.Equal(t, differ.ChangeTypeCreate, decoded[1].ChangeType())
	assert.Equal(t, "new-1", decoded[1].ID())
}

func TestListMutationRejectsUnknownOp(t *testing.T) {
	var m differ.ListMutation
	err := json.Unmarshal([]byte(`["upsert", "x"]`), &m)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestSummaryAndFilter(t *testing.T) {
	changes := []differ.Changeset{
		differ.NewUpdate("p1", fieldset.Fieldset{"title": "x"}),
		differ.NewCreate("Task", fieldset.Fieldset{"uid": "n1"}),
		differ.NewCreate("Task", fieldset.Fieldset{"uid": "n2"}),
	}

	s := differ.Summarize(changes)
	assert.Equal(t, differ.Summary{Created: 2, Updated: 1}, s)
	assert.Equal(t, "Changeset: 1 updated, 2 created (Total: 3 changes)", s.String())
	assert.Equal(t, "No changes detected", differ.Summarize(nil).String())

	assert.Len(t, differ.Filter(changes, differ.ApplyAll), 3)
	assert.Equal(t, changes[:1], differ.Filter(changes, differ.ApplyUpdatesOnly))
	assert.Equal(t, changes[1:], differ.Filter(changes, differ.ApplyAdditionsOnly))

	_, err := differ.ParseApplyStrategy("sometimes")
	assert.Error(t, err)
}
