package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/input"
	"github.com/agentstation/entsync/pkg/constants"
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/logging"
)

// PairResult is the diff of one NEW/OLD file pair.
type PairResult struct {
	New     string             `json:"new" yaml:"new"`
	Old     string             `json:"old" yaml:"old"`
	Changes []differ.Changeset `json:"changes" yaml:"changes"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(app appcontext.Interface) *cobra.Command {
	var ignore []string
	var apply string

	cmd := &cobra.Command{
		Use:     "diff NEW OLD [NEW OLD ...]",
		GroupID: "core",
		Short:   "Compute the changesets that turn stored entities into edited ones",
		Long: `Diff compares each edited entity NEW against its stored counterpart OLD
and prints the changesets that turn OLD into NEW: updates of changed
fields, list insertions and removals, and creations of new nested
entities. The stored entity must carry an identifier (uid or id).

Several pairs may be given; they are diffed concurrently and reported in
argument order. With one pair the JSON and YAML output is the list of
changesets; with several it is a list of {new, old, changes}.`,
		Example: `  entsync diff -s schema.yaml edited.yaml stored.yaml
  entsync diff -s schema.yaml a.new.yaml a.yaml b.new.yaml b.yaml -o yaml
  entsync diff -s schema.yaml edited.yaml stored.yaml --ignore 'updated*'`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected NEW OLD file pairs, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := differ.ParseApplyStrategy(apply)
			if err != nil {
				return err
			}
			s, err := app.Schema()
			if err != nil {
				return err
			}
			skip, err := ignoredFields(app, s, ignore)
			if err != nil {
				return err
			}
			d := newDiffer(app, s, skip)

			results, err := diffPairs(cmd.Context(), app, d, args)
			if err != nil {
				return err
			}

			view := &output.View{Title: "Changesets"}
			for i := range results {
				results[i].Changes = differ.Filter(results[i].Changes, strategy)
				heading := ""
				if len(results) > 1 {
					heading = results[i].New + " -> " + results[i].Old
				}
				view.Sections = append(view.Sections, changesetSection(heading, results[i].Changes))
			}
			if len(results) == 1 {
				view.Value = results[0].Changes
			} else {
				view.Value = results
			}
			return render(cmd, app, view)
		},
	}

	addIgnoreFlag(cmd, &ignore)
	cmd.Flags().StringVar(&apply, "apply", string(differ.ApplyAll),
		"Changes to report: all, updates-only, additions-only")
	return cmd
}

// diffPairs diffs every NEW/OLD pair of args with bounded concurrency.
// Results keep argument order; the first error cancels the rest.
func diffPairs(ctx context.Context, app appcontext.Interface, d differ.Differ, args []string) ([]PairResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]PairResult, len(args)/2)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxConcurrentDiffs)
	for i := range results {
		newPath, oldPath := args[2*i], args[2*i+1]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger := logging.FromContext(logging.WithFile(logging.WithLogger(ctx, app.Logger()), newPath))

			newEntity, err := input.Entity(newPath)
			if err != nil {
				return err
			}
			oldEntity, err := input.Entity(oldPath)
			if err != nil {
				return err
			}
			changes, err := d.DiffEntities(newEntity, oldEntity)
			if err != nil {
				return fmt.Errorf("%s: %w", oldPath, err)
			}
			logger.Debug().Int("changes", len(changes)).Msg("diffed pair")
			if changes == nil {
				changes = []differ.Changeset{}
			}
			results[i] = PairResult{New: newPath, Old: oldPath, Changes: changes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
