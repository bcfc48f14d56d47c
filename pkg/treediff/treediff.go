// Package treediff reconciles two whole document trees whose nodes carry no
// reliable identity. Nodes are paired with a cheap structural score rather
// than the probabilistic model of package match, and the tree is walked
// breadth first.
package treediff

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/pkg/constants"
	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/logging"
	"github.com/agentstation/entsync/pkg/match"
	"github.com/agentstation/entsync/pkg/textsim"
)

// Config names the fields of a tree node.
type Config struct {
	// ChildrenKey is the ordered child block relation.
	ChildrenKey string
	// DataKey is the unordered query result relation.
	DataKey string
	// QueryKey holds a node's query predicate, a map that may name a type.
	QueryKey string
	// ContentKeys are tried in order; the first one present on either node
	// is compared.
	ContentKeys []string
}

// DefaultConfig returns the standard node layout.
func DefaultConfig() Config {
	return Config{
		ChildrenKey: constants.ChildrenKey,
		DataKey:     constants.DataKey,
		QueryKey:    constants.QueryKey,
		ContentKeys: append([]string(nil), constants.ContentKeys...),
	}
}

// Differ diffs document trees.
type Differ struct {
	cfg    Config
	pass1  float64
	pass2  float64
	newID  differ.IDGenerator
	logger *zerolog.Logger
}

// Option configures a Differ.
type Option func(*Differ)

// WithConfig sets the node layout.
func WithConfig(cfg Config) Option {
	return func(d *Differ) {
		d.cfg = cfg
	}
}

// WithThresholds sets the minimum scores for same-index pairing and for the
// second, position-independent pass.
func WithThresholds(pass1, pass2 float64) Option {
	return func(d *Differ) {
		d.pass1 = pass1
		d.pass2 = pass2
	}
}

// WithIDGenerator sets the identifier generator for created nodes.
func WithIDGenerator(gen differ.IDGenerator) Option {
	return func(d *Differ) {
		if gen != nil {
			d.newID = gen
		}
	}
}

// WithLogger sets the logger used to report dropped nodes.
func WithLogger(logger *zerolog.Logger) Option {
	return func(d *Differ) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a tree Differ.
func New(opts ...Option) *Differ {
	nop := logging.Nop
	d := &Differ{
		cfg:    DefaultConfig(),
		pass1:  constants.PassOneThreshold,
		pass2:  constants.PassTwoThreshold,
		newID:  differ.NewUUID,
		logger: &nop,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NodeScore is the structural similarity of two nodes in [0,1].
func (d *Differ) NodeScore(a, b fieldset.Fieldset) float64 {
	var typeScore float64
	if a.Type() == b.Type() {
		typeScore = 1
	}
	return constants.TypeWeight*typeScore +
		constants.ContentWeight*d.contentSimilarity(a, b) +
		constants.ChildrenWeight*d.childRatio(a, b)
}

func (d *Differ) contentSimilarity(a, b fieldset.Fieldset) float64 {
	for _, key := range d.cfg.ContentKeys {
		av, aok := a[key]
		bv, bok := b[key]
		if !aok && !bok {
			continue
		}
		return textsim.Similarity(contentText(av), contentText(bv))
	}
	return 1
}

func contentText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fieldset.Canonical(v)
}

func (d *Differ) childRatio(a, b fieldset.Fieldset) float64 {
	na := len(listOf(a[d.cfg.ChildrenKey]))
	nb := len(listOf(b[d.cfg.ChildrenKey]))
	if na == 0 && nb == 0 {
		return 1
	}
	return float64(min(na, nb)) / float64(max(na, nb))
}

// MatchNodes pairs sibling nodes. Pass one pairs equal indices whose types
// agree and whose score exceeds the first threshold. Pass two pairs each
// remaining new node, in order, with the best unclaimed old node scoring
// above the second threshold; the first best candidate wins.
func (d *Differ) MatchNodes(newChildren, oldChildren []fieldset.Fieldset) match.Result {
	result := match.Result{
		Matches:  []match.Pair{},
		ToCreate: []int{},
		ToRemove: []int{},
	}
	matchedNew := make([]bool, len(newChildren))
	claimed := make([]bool, len(oldChildren))

	for i := 0; i < min(len(newChildren), len(oldChildren)); i++ {
		if newChildren[i].Type() != oldChildren[i].Type() {
			continue
		}
		if d.NodeScore(newChildren[i], oldChildren[i]) > d.pass1 {
			matchedNew[i] = true
			claimed[i] = true
			result.Matches = append(result.Matches, match.Pair{New: i, Old: i})
		}
	}

	for i, n := range newChildren {
		if matchedNew[i] {
			continue
		}
		best, bestScore := -1, d.pass2
		for j, o := range oldChildren {
			if claimed[j] {
				continue
			}
			if s := d.NodeScore(n, o); s > bestScore {
				best, bestScore = j, s
			}
		}
		if best < 0 {
			result.ToCreate = append(result.ToCreate, i)
			continue
		}
		matchedNew[i] = true
		claimed[best] = true
		result.Matches = append(result.Matches, match.Pair{New: i, Old: best})
	}

	for j := range oldChildren {
		if !claimed[j] {
			result.ToRemove = append(result.ToRemove, j)
		}
	}
	sortPairs(result.Matches)
	return result
}

func sortPairs(pairs []match.Pair) {
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].New < pairs[b].New })
}

func listOf(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := fieldset.AsList(v); ok {
		return l
	}
	return []any{v}
}
