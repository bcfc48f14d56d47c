package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/input"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/reconcile"
)

// MergeReport is the machine-readable result of merge.
type MergeReport struct {
	Merged     fieldset.Fieldset       `json:"merged,omitempty" yaml:"merged,omitempty"`
	Provenance map[string]string       `json:"provenance,omitempty" yaml:"provenance,omitempty"`
	Result     *reconcile.Result       `json:"result,omitempty" yaml:"result,omitempty"`
	Conflicts  []*errors.ConflictError `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(app appcontext.Interface) *cobra.Command {
	var baseFile, priorFile string

	cmd := &cobra.Command{
		Use:     "merge --base BASE PART [PART ...]",
		GroupID: "core",
		Short:   "Merge partial edits made by several sources against one snapshot",
		Long: `Merge folds the partial edits PART (one source per file, named after the
file) over the snapshot BASE they were made against. A value equal to
the base is not a change; two sources agreeing on a value is not a
conflict; two different non-base values for one field are.

Without --prior the sparse set of changed fields is printed. With --prior,
the stored entity, the merged fields are layered over it and the
changesets that bring it up to date are printed as well; this needs a
schema.

Conflicts are reported and the command exits with an error.`,
		Example: `  entsync merge --base snapshot.yaml alice.yaml bob.yaml
  entsync merge -s schema.yaml --base snapshot.yaml --prior stored.yaml alice.yaml bob.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseFile == "" && priorFile == "" {
				return errors.NewValidationError("base", "", "pass --base or --prior")
			}

			var base, prior fieldset.Fieldset
			var err error
			if baseFile != "" {
				if base, err = input.Entity(baseFile); err != nil {
					return err
				}
			}
			if priorFile != "" {
				if prior, err = input.Entity(priorFile); err != nil {
					return err
				}
			}

			var proposals []reconcile.Proposal
			for _, part := range args {
				edit, err := input.Entity(part)
				if err != nil {
					return err
				}
				proposals = append(proposals, input.Proposals(edit, input.SourceName(part))...)
			}
			app.Logger().Debug().Int("parts", len(args)).Int("proposals", len(proposals)).Msg("collected proposals")

			if prior == nil {
				return mergeOnly(cmd, app, base, proposals)
			}

			s, err := app.Schema()
			if err != nil {
				return err
			}
			doc := reconcile.Document{Prior: prior, Base: base, Proposals: proposals}
			pipeline := reconcile.NewPipeline(newDiffer(app, s, nil), reconcile.WithLogger(app.Logger()))
			result, err := pipeline.Run(doc)
			if err != nil {
				if errors.IsConflict(err) {
					return reportConflicts(cmd, app, pipeline.Conflicts(doc))
				}
				return err
			}

			view := mergeView(result.Merged, result.Provenance)
			view.Sections = append(view.Sections, changesetSection("Changesets", result.Changes))
			view.Value = MergeReport{Result: result}
			return render(cmd, app, view)
		},
	}

	cmd.Flags().StringVarP(&baseFile, "base", "b", "", "Snapshot the edits were made against")
	cmd.Flags().StringVarP(&priorFile, "prior", "p", "", "Stored entity to diff the merged result against")
	return cmd
}

func mergeOnly(cmd *cobra.Command, app appcontext.Interface, base fieldset.Fieldset, proposals []reconcile.Proposal) error {
	acc := reconcile.NewAccumulator(base)
	acc.Apply(proposals...)
	merged, err := acc.Result()
	if err != nil {
		if errors.IsConflict(err) {
			return reportConflicts(cmd, app, acc.Conflicts())
		}
		return err
	}

	view := mergeView(merged, acc.Provenance())
	view.Value = MergeReport{Merged: merged, Provenance: acc.Provenance()}
	return render(cmd, app, view)
}

func mergeView(merged fieldset.Fieldset, provenance map[string]string) *output.View {
	paths := make([]string, 0, len(provenance))
	for p := range provenance {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	rows := make([][]string, 0, len(paths))
	for _, p := range paths {
		v, _ := fieldset.Get(merged, fieldset.ParsePath(p))
		rows = append(rows, []string{p, describeValue(v), provenance[p]})
	}

	section := output.Section{
		Heading: "Merged fields",
		Headers: []string{"field", "value", "source"},
		Rows:    rows,
	}
	if len(rows) == 0 {
		section.Notes = []string{"No changes detected"}
	}
	return &output.View{Title: "Merge", Sections: []output.Section{section}}
}

// reportConflicts renders every conflict and returns an error so the
// command exits non-zero.
func reportConflicts(cmd *cobra.Command, app appcontext.Interface, conflicts []*errors.ConflictError) error {
	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		for _, v := range c.Values {
			rows = append(rows, []string{fieldset.Path(c.Path).String(), v.Source, describeValue(v.Value), describeValue(c.Base)})
		}
	}
	view := &output.View{
		Title: "Merge conflicts",
		Sections: []output.Section{{
			Headers: []string{"field", "source", "value", "base"},
			Rows:    rows,
		}},
		Value: MergeReport{Conflicts: conflicts},
	}
	if err := render(cmd, app, view); err != nil {
		return err
	}
	return fmt.Errorf("%w: %d conflicting field(s)", errors.ErrConflict, len(conflicts))
}
