package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/input"
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/fieldset"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(app appcontext.Interface) *cobra.Command {
	var ignore []string
	var contextFile string

	cmd := &cobra.Command{
		Use:     "query NEW OLD",
		GroupID: "core",
		Short:   "Diff an edited query result list against the stored results",
		Long: `Query compares the entity list NEW, an edited view of a query result,
against OLD, the entities the query returned. The fields of the query
context (--context) are shared by every result, so they are left out of
matching and filled into entities created from the edit.

Stored entities the edit no longer lists are reported as unmatched; they
are never deleted.`,
		Example: `  entsync query -s schema.yaml --context query.yaml edited.yaml results.yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Schema()
			if err != nil {
				return err
			}
			query := fieldset.Fieldset{}
			if contextFile != "" {
				if query, err = input.Entity(contextFile); err != nil {
					return err
				}
			}
			newEntities, err := input.Entities(args[0])
			if err != nil {
				return err
			}
			oldEntities, err := input.Entities(args[1])
			if err != nil {
				return err
			}
			skip, err := ignoredFields(app, s, ignore)
			if err != nil {
				return err
			}

			result, err := newDiffer(app, s, skip).DiffQueryResults(newEntities, oldEntities, query)
			if err != nil {
				return err
			}
			return render(cmd, app, queryView(result))
		},
	}

	addIgnoreFlag(cmd, &ignore)
	cmd.Flags().StringVarP(&contextFile, "context", "c", "", "Query context file: fields shared by every result")
	return cmd
}

func queryView(result *differ.QueryResult) *output.View {
	created := make([][]string, 0, len(result.ToCreate))
	for i, f := range result.ToCreate {
		created = append(created, []string{label(f, i), f.Type(), describeFields(f)})
	}

	unmatched := "Unmatched: -"
	if len(result.Unmatched) > 0 {
		unmatched = "Unmatched: " + strings.Join(result.Unmatched, ", ")
	}

	return &output.View{
		Title: "Query result changes",
		Sections: []output.Section{
			{
				Heading: "To create",
				Headers: []string{"entity", "type", "fields"},
				Rows:    created,
			},
			changesetSection("To update", result.ToUpdate),
			{Notes: []string{unmatched}},
		},
		Value: result,
	}
}
