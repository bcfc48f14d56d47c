package match

import (
	"sort"

	"github.com/agentstation/entsync/pkg/assign"
	"github.com/agentstation/entsync/pkg/fieldset"
)

// Pair links an entity of the new list to an entity of the old list.
type Pair struct {
	New int `json:"new" yaml:"new"`
	Old int `json:"old" yaml:"old"`
}

// Result is the outcome of matching two entity lists. Every new index
// appears exactly once across Matches and ToCreate, every old index exactly
// once across Matches and ToRemove. All lists are in ascending index order.
type Result struct {
	Matches  []Pair `json:"matches" yaml:"matches"`
	ToCreate []int  `json:"toCreate" yaml:"toCreate"`
	ToRemove []int  `json:"toRemove" yaml:"toRemove"`
}

// Match pairs the entities of newEntities with those of oldEntities.
func Match(newEntities, oldEntities []fieldset.Fieldset, cfg Config) Result {
	result := Result{
		Matches:  []Pair{},
		ToCreate: []int{},
		ToRemove: []int{},
	}

	// Phase 1: exact identity.
	byID := make(map[string]int, len(oldEntities))
	for j, e := range oldEntities {
		if id, ok := e.Identifier(); ok {
			if _, dup := byID[id]; !dup {
				byID[id] = j
			}
		}
	}

	claimed := make([]bool, len(oldEntities))
	var ambiguous []int
	for i, e := range newEntities {
		id, ok := e.Identifier()
		if !ok {
			ambiguous = append(ambiguous, i)
			continue
		}
		j, found := byID[id]
		if !found || claimed[j] {
			result.ToCreate = append(result.ToCreate, i)
			continue
		}
		claimed[j] = true
		result.Matches = append(result.Matches, Pair{New: i, Old: j})
	}

	var remaining []int
	for j := range oldEntities {
		if !claimed[j] {
			remaining = append(remaining, j)
		}
	}

	// Phase 2: score the anonymous entities against what is left.
	if len(ambiguous) > 0 && len(remaining) > 0 {
		scoring := cfg
		scoring.ListLength = max(len(newEntities), len(oldEntities))

		scores := make([][]float64, len(ambiguous))
		for a, i := range ambiguous {
			scores[a] = make([]float64, len(remaining))
			for r, j := range remaining {
				scores[a][r] = Score(scoring, newEntities[i], oldEntities[j], i, j)
			}
		}

		assignment := assign.Solve(scores)
		for _, p := range assignment.Pairs {
			result.Matches = append(result.Matches, Pair{New: ambiguous[p.Bidder], Old: remaining[p.Item]})
		}
		for _, b := range assignment.UnassignedBidders {
			result.ToCreate = append(result.ToCreate, ambiguous[b])
		}
		for _, it := range assignment.UnassignedItems {
			result.ToRemove = append(result.ToRemove, remaining[it])
		}
	} else {
		result.ToCreate = append(result.ToCreate, ambiguous...)
		result.ToRemove = append(result.ToRemove, remaining...)
	}

	sort.Slice(result.Matches, func(a, b int) bool { return result.Matches[a].New < result.Matches[b].New })
	sort.Ints(result.ToCreate)
	sort.Ints(result.ToRemove)
	return result
}
