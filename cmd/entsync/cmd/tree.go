package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/input"
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/treediff"
)

// NewTreeCommand creates the tree command.
func NewTreeCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "tree NEW OLD",
		GroupID: "core",
		Short:   "Diff two document trees",
		Long: `Tree compares an edited document tree NEW with the stored tree OLD.
Nodes nest through "children" (ordered blocks) and "data" (query
results). Edited nodes need no identifiers: siblings are paired by type,
content and shape, first at equal positions and then anywhere in the
list. Every stored node must carry an identifier. No schema is needed.

A created node without a type takes the type named by the nearest
ancestor's query; a node whose type cannot be determined is dropped.`,
		Example: `  entsync tree edited-page.yaml stored-page.yaml -o yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newRoot, err := input.Entity(args[0])
			if err != nil {
				return err
			}
			oldRoot, err := input.Entity(args[1])
			if err != nil {
				return err
			}

			cfg := app.Config()
			d := treediff.New(
				treediff.WithThresholds(cfg.PassOneThreshold, cfg.PassTwoThreshold),
				treediff.WithLogger(app.Logger()),
			)
			changes, err := d.DiffNodeTrees(newRoot, oldRoot)
			if err != nil {
				return err
			}
			if changes == nil {
				changes = []differ.Changeset{}
			}

			return render(cmd, app, &output.View{
				Title:    "Tree changesets",
				Sections: []output.Section{changesetSection("", changes)},
				Value:    changes,
			})
		},
	}
}
