// Package cmd implements the entsync subcommands. Every constructor takes
// the application context so commands can run against a mock in tests.
package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/matcher"
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/schema"
)

// render writes data to the command's output in the configured format.
func render(cmd *cobra.Command, app appcontext.Interface, data any) error {
	return output.NewFormatter(app.OutputFormat()).Format(cmd.OutOrStdout(), data)
}

// ignoredFields expands the configured and flag ignore patterns against
// the schema's field keys.
func ignoredFields(app appcontext.Interface, s *schema.Schema, patterns []string) ([]string, error) {
	all := append(append([]string{}, app.Config().Ignore...), patterns...)
	if len(all) == 0 {
		return nil, nil
	}
	set, err := matcher.NewSet(all...)
	if err != nil {
		return nil, err
	}
	return set.Expand(s.FieldKeys()), nil
}

// newDiffer builds an entity differ from the application settings.
func newDiffer(app appcontext.Interface, s *schema.Schema, ignore []string) differ.Differ {
	return differ.New(s,
		differ.WithLogger(app.Logger()),
		differ.WithTextFloor(app.Config().TextFloor),
		differ.WithIgnoredFields(ignore...),
	)
}

func addIgnoreFlag(cmd *cobra.Command, target *[]string) {
	cmd.Flags().StringSliceVarP(target, "ignore", "i", nil,
		"Field patterns to leave out of matching and diffing (glob, or re:<regex>)")
}

// changesetSection tabulates changesets, one row per changeset.
func changesetSection(heading string, changes []differ.Changeset) output.Section {
	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, []string{string(c.ChangeType()), c.ID(), c.Type, describeFields(c.Fields)})
	}
	return output.Section{
		Heading: heading,
		Headers: []string{"change", "entity", "type", "fields"},
		Rows:    rows,
		Notes:   []string{differ.Summarize(changes).String()},
	}
}

// describeFields renders changed fields as key=value pairs.
func describeFields(f fieldset.Fieldset) string {
	parts := make([]string, 0, len(f))
	for _, key := range f.Keys() {
		if key == fieldset.KeyUID {
			continue
		}
		parts = append(parts, key+"="+describeValue(f[key]))
	}
	return strings.Join(parts, " ")
}

func describeValue(v any) string {
	switch x := v.(type) {
	case []differ.ListMutation:
		items := make([]string, len(x))
		for i, m := range x {
			items[i] = m.String()
		}
		return "[" + strings.Join(items, ", ") + "]"
	case string:
		return fmt.Sprintf("%q", x)
	case nil:
		return "null"
	}
	return fieldset.Canonical(v)
}

// indexes renders a list of result indexes for a table cell.
func indexes(idx []int) string {
	if len(idx) == 0 {
		return "-"
	}
	sorted := append([]int(nil), idx...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// label names an entity in tables: its identifier, else its title, else
// its position.
func label(f fieldset.Fieldset, i int) string {
	if id, ok := f.Identifier(); ok {
		return id
	}
	for _, key := range []string{"title", "name", "text"} {
		if s, ok := f[key].(string); ok && s != "" {
			return fmt.Sprintf("%q", truncate(s, 32))
		}
	}
	return fmt.Sprintf("#%d", i)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
