package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/input"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/match"
)

// NewMatchCommand creates the match command.
func NewMatchCommand(app appcontext.Interface) *cobra.Command {
	var ignore []string
	var explain bool

	cmd := &cobra.Command{
		Use:     "match NEW OLD",
		GroupID: "inspect",
		Short:   "Pair edited entities with stored ones",
		Long: `Match pairs the entities of NEW with those of OLD. Entities that share
an identifier are paired first; the rest are paired by the globally
optimal assignment of their match scores. Unpaired new entities are to be
created and unpaired old entities removed.`,
		Example: `  entsync match -s schema.yaml edited.yaml stored.yaml
  entsync match -s schema.yaml edited.yaml stored.yaml --explain`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Schema()
			if err != nil {
				return err
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

			cfg := match.NewConfig(s).WithIgnore(skip...)
			cfg.TextFloor = app.Config().TextFloor
			result := match.Match(newEntities, oldEntities, cfg)
			app.Logger().Debug().
				Int("matched", len(result.Matches)).
				Int("created", len(result.ToCreate)).
				Int("removed", len(result.ToRemove)).
				Msg("matched entities")

			cfg.ListLength = max(len(newEntities), len(oldEntities))
			view := matchView(cfg, newEntities, oldEntities, result)
			if explain {
				view.Sections = append(view.Sections, explainSections(cfg, newEntities, oldEntities, result)...)
			}
			return render(cmd, app, view)
		},
	}

	addIgnoreFlag(cmd, &ignore)
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the per-field score breakdown of every scored pair")
	return cmd
}

func matchView(cfg match.Config, newEntities, oldEntities []fieldset.Fieldset, result match.Result) *output.View {
	rows := make([][]string, 0, len(result.Matches))
	for _, p := range result.Matches {
		rows = append(rows, []string{
			fmt.Sprint(p.New),
			label(newEntities[p.New], p.New),
			fmt.Sprint(p.Old),
			label(oldEntities[p.Old], p.Old),
			pairScore(cfg, newEntities[p.New], oldEntities[p.Old], p),
		})
	}
	return &output.View{
		Title: "Entity matches",
		Sections: []output.Section{{
			Heading: "Matches",
			Headers: []string{"new", "edited", "old", "stored", "score"},
			Rows:    rows,
			Notes: []string{
				"To create: " + indexes(result.ToCreate),
				"To remove: " + indexes(result.ToRemove),
			},
		}},
		Value: result,
	}
}

func identityMatch(newEntity, oldEntity fieldset.Fieldset) bool {
	nid, ok := newEntity.Identifier()
	if !ok {
		return false
	}
	oid, _ := oldEntity.Identifier()
	return nid == oid
}

func pairScore(cfg match.Config, newEntity, oldEntity fieldset.Fieldset, p match.Pair) string {
	if identityMatch(newEntity, oldEntity) {
		return "identity"
	}
	return fmt.Sprintf("%.2f", match.Score(cfg, newEntity, oldEntity, p.New, p.Old))
}

func explainSections(cfg match.Config, newEntities, oldEntities []fieldset.Fieldset, result match.Result) []output.Section {
	var sections []output.Section
	for _, p := range result.Matches {
		if identityMatch(newEntities[p.New], oldEntities[p.Old]) {
			continue
		}
		contributions := match.Breakdown(cfg, newEntities[p.New], oldEntities[p.Old], p.New, p.Old)
		rows := make([][]string, 0, len(contributions))
		for _, c := range contributions {
			rows = append(rows, []string{
				c.Field,
				fmt.Sprintf("%.2f", c.Similarity),
				fmt.Sprintf("%.4g", c.Classification.M),
				fmt.Sprintf("%.4g", c.Classification.U),
				fmt.Sprintf("%+.2f", c.Weight),
			})
		}
		sections = append(sections, output.Section{
			Heading: fmt.Sprintf("new %d / old %d", p.New, p.Old),
			Headers: []string{"field", "similarity", "m", "u", "weight"},
			Rows:    rows,
		})
	}
	return sections
}
