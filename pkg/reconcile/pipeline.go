package reconcile

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/logging"
)

// Document is one edited entity: the stored entity it was rendered from,
// the snapshot the edits were made against and the per-source proposals.
type Document struct {
	// Prior is the stored entity. It must carry an identifier.
	Prior fieldset.Fieldset

	// Base is the snapshot the edits were made against. Nil means Prior.
	Base fieldset.Fieldset

	// Proposals are the extracted field values, in extraction order.
	Proposals []Proposal
}

// Result represents the outcome of reconciling one document.
type Result struct {
	// Merged is the sparse fieldset of changed fields.
	Merged fieldset.Fieldset `json:"merged" yaml:"merged"`

	// Snapshot is Merged layered over the stored entity.
	Snapshot fieldset.Fieldset `json:"snapshot" yaml:"snapshot"`

	// Changes are the changesets that bring Prior in line with Snapshot.
	Changes []differ.Changeset `json:"changes" yaml:"changes"`

	// Provenance maps each changed path to the source that proposed it.
	Provenance map[string]string `json:"provenance" yaml:"provenance"`
}

// Pipeline reconciles edited documents into changesets. It accumulates the
// proposals against the base snapshot, overlays the changed fields onto the
// stored entity and diffs the result against it.
type Pipeline struct {
	differ differ.Differ
	logger *zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a Pipeline that diffs with d.
func NewPipeline(d differ.Differ, opts ...Option) *Pipeline {
	nop := logging.Nop
	p := &Pipeline{differ: d, logger: &nop}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reconciles doc. A field conflict is returned as *errors.ConflictError
// and no changesets are produced.
func (p *Pipeline) Run(doc Document) (*Result, error) {
	base := doc.Base
	if base == nil {
		base = doc.Prior
	}

	acc := NewAccumulator(base)
	acc.Apply(doc.Proposals...)

	merged, err := acc.Result()
	if err != nil {
		if conflict, ok := errors.AsConflict(err); ok {
			p.logger.Debug().
				Str("path", fieldset.Path(conflict.Path).String()).
				Int("conflicts", len(acc.Conflicts())).
				Msg("proposals conflict")
		}
		return nil, err
	}

	// Unchanged fields keep their stored value even when the store moved
	// on after base was taken.
	snapshot := fieldset.Overlay(doc.Prior, merged)

	changes, err := p.differ.DiffEntities(snapshot, doc.Prior)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Int("proposals", len(doc.Proposals)).
		Int("changed", len(merged)).
		Int("changesets", len(changes)).
		Msg("reconciled document")

	return &Result{
		Merged:     merged,
		Snapshot:   snapshot,
		Changes:    changes,
		Provenance: acc.Provenance(),
	}, nil
}

// Conflicts runs only the accumulation step of doc and returns every
// conflict found.
func (p *Pipeline) Conflicts(doc Document) []*errors.ConflictError {
	base := doc.Base
	if base == nil {
		base = doc.Prior
	}
	acc := NewAccumulator(base)
	acc.Apply(doc.Proposals...)
	return acc.Conflicts()
}
