package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/entsync/internal/appcontext"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/pkg/classify"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "classify",
		GroupID: "inspect",
		Short:   "Show the match probabilities derived from the schema",
		Long: `Classify prints, for every schema field, the probability m that the
field agrees between two snapshots of the same entity and the probability
u that it agrees by chance, with the evidence weights they imply.`,
		Example: `  entsync classify --schema schema.yaml
  entsync classify -s schema.toml -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.Schema()
			if err != nil {
				return err
			}
			classes := classify.Classify(s)

			rows := make([][]string, 0, len(classes))
			for _, key := range s.FieldKeys() {
				c, ok := classes[key]
				if !ok {
					continue
				}
				def, _ := s.Field(key)
				rows = append(rows, []string{
					key,
					string(def.DataType),
					fmt.Sprintf("%.4g", c.M),
					fmt.Sprintf("%.4g", c.U),
					fmt.Sprintf("%+.2f", c.AgreeWeight()),
					fmt.Sprintf("%+.2f", c.DisagreeWeight()),
				})
			}

			return render(cmd, app, &output.View{
				Title: "Field classifications",
				Sections: []output.Section{{
					Headers: []string{"field", "data_type", "m", "u", "agree", "disagree"},
					Rows:    rows,
				}},
				Value: classes,
			})
		},
	}
}
