package differ

import (
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/match"
)

// QueryResult is the outcome of diffing an edited query result list.
type QueryResult struct {
	// ToCreate holds the new entities, hydrated with the query context.
	ToCreate []fieldset.Fieldset `json:"toCreate" yaml:"toCreate"`

	// ToUpdate holds the changesets of every matched pair, concatenated.
	ToUpdate []Changeset `json:"toUpdate" yaml:"toUpdate"`

	// Unmatched lists the identifiers of stored entities the edit no longer
	// lists. They are reported, never deleted: the query may simply no
	// longer select them.
	Unmatched []string `json:"unmatched" yaml:"unmatched"`
}

// DiffQueryResults compares newEntities against oldEntities, the entities
// a query identified by query returned.
func (diff *differ) DiffQueryResults(newEntities, oldEntities []fieldset.Fieldset, query fieldset.Fieldset) (*QueryResult, error) {
	cfg := diff.config.WithExclude(query.Keys()...)
	result := match.Match(newEntities, oldEntities, cfg)

	out := &QueryResult{
		ToCreate:  make([]fieldset.Fieldset, 0, len(result.ToCreate)),
		ToUpdate:  []Changeset{},
		Unmatched: make([]string, 0, len(result.ToRemove)),
	}

	for _, i := range result.ToCreate {
		out.ToCreate = append(out.ToCreate, fieldset.Overlay(query, newEntities[i]))
	}

	for _, p := range result.Matches {
		changes, err := diff.DiffEntities(newEntities[p.New], oldEntities[p.Old])
		if err != nil {
			return nil, err
		}
		out.ToUpdate = append(out.ToUpdate, changes...)
	}

	for _, j := range result.ToRemove {
		if id, ok := oldEntities[j].Identifier(); ok {
			out.Unmatched = append(out.Unmatched, id)
		}
	}

	diff.logger.Debug().
		Int("matched", len(result.Matches)).
		Int("created", len(out.ToCreate)).
		Int("unmatched", len(out.Unmatched)).
		Msg("diffed query results")

	return out, nil
}
