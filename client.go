// Package entsync provides the main entry point for the entsync entity
// reconciliation engine. It binds a schema to the matching, diffing and
// reconciliation packages and reports the resulting changes through event
// hooks.
//
// Example usage:
//
//	s, err := schema.Load("schema.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	es, err := entsync.New(s, entsync.WithIgnoredFields("updatedAt"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register event hooks
//	es.OnCreate(func(c differ.Changeset) {
//	    log.Printf("create %s %s", c.Type, c.ID())
//	})
//
//	changes, err := es.Diff(edited, stored)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The underlying packages (match, differ, reconcile, treediff) can be used
// directly when hooks are not needed.
package entsync

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/match"
	"github.com/agentstation/entsync/pkg/reconcile"
	"github.com/agentstation/entsync/pkg/schema"
	"github.com/agentstation/entsync/pkg/treediff"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Matcher pairs edited entities with stored ones.
type Matcher interface {
	Match(newEntities, oldEntities []fieldset.Fieldset) match.Result
}

// Differ computes changesets.
type Differ interface {
	Diff(newEntity, oldEntity fieldset.Fieldset) ([]differ.Changeset, error)
	DiffQuery(newEntities, oldEntities []fieldset.Fieldset, query fieldset.Fieldset) (*differ.QueryResult, error)
	DiffTree(newRoot, oldRoot fieldset.Fieldset) ([]differ.Changeset, error)
}

// Reconciler merges partial edits from several sources.
type Reconciler interface {
	Reconcile(doc reconcile.Document) (*reconcile.Result, error)
}

// Client is the schema-bound engine.
type Client interface {
	Matcher
	Differ
	Reconciler

	// Hooks provides access to event callback registration
	Hooks

	// Schema returns the schema the client was built with
	Schema() *schema.Schema
}

// client is the internal implementation of the Client interface.
type client struct {
	schema   *schema.Schema
	options  *options
	config   match.Config
	differ   differ.Differ
	tree     *treediff.Differ
	pipeline *reconcile.Pipeline
	logger   *zerolog.Logger
	hooks    *hooks
}

// New creates a Client for s with the given options.
func New(s *schema.Schema, opts ...Option) (Client, error) {
	if s == nil {
		return nil, errors.NewValidationError("schema", nil, "schema is required")
	}
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		schema:  s,
		options: o,
		logger:  o.logger,
		hooks:   newHooks(),
	}

	c.config = match.NewConfig(s).WithIgnore(o.ignoredFields...)
	c.config.TextFloor = o.textFloor

	differOpts := []differ.Option{
		differ.WithLogger(o.logger),
		differ.WithTextFloor(o.textFloor),
		differ.WithIgnoredFields(o.ignoredFields...),
	}
	treeOpts := []treediff.Option{
		treediff.WithLogger(o.logger),
		treediff.WithThresholds(o.passOne, o.passTwo),
	}
	if o.idGenerator != nil {
		differOpts = append(differOpts, differ.WithIDGenerator(o.idGenerator))
		treeOpts = append(treeOpts, treediff.WithIDGenerator(o.idGenerator))
	}
	c.differ = differ.New(s, differOpts...)
	c.tree = treediff.New(treeOpts...)
	c.pipeline = reconcile.NewPipeline(c.differ, reconcile.WithLogger(o.logger))

	c.logger.Debug().
		Int("fields", len(s.Fields)).
		Int("types", len(s.Types)).
		Int("ignored", len(o.ignoredFields)).
		Msg("created entsync client")
	return c, nil
}

// Schema returns the schema the client was built with.
func (c *client) Schema() *schema.Schema {
	return c.schema
}

// Match pairs newEntities with oldEntities.
func (c *client) Match(newEntities, oldEntities []fieldset.Fieldset) match.Result {
	return match.Match(newEntities, oldEntities, c.config)
}

// Diff returns the changesets that turn oldEntity into newEntity.
func (c *client) Diff(newEntity, oldEntity fieldset.Fieldset) ([]differ.Changeset, error) {
	changes, err := c.differ.DiffEntities(newEntity, oldEntity)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerChanges(changes)
	return changes, nil
}

// DiffQuery diffs an edited query result list. Hooks fire for the updates
// of matched entities only; creations are returned hydrated but not yet
// identified.
func (c *client) DiffQuery(newEntities, oldEntities []fieldset.Fieldset, query fieldset.Fieldset) (*differ.QueryResult, error) {
	result, err := c.differ.DiffQueryResults(newEntities, oldEntities, query)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerChanges(result.ToUpdate)
	return result, nil
}

// DiffTree diffs two document trees.
func (c *client) DiffTree(newRoot, oldRoot fieldset.Fieldset) ([]differ.Changeset, error) {
	changes, err := c.tree.DiffNodeTrees(newRoot, oldRoot)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerChanges(changes)
	return changes, nil
}

// Reconcile merges doc's proposals and diffs the result against the
// stored entity. On conflict every conflicting field is reported to the
// conflict hooks before the error is returned.
func (c *client) Reconcile(doc reconcile.Document) (*reconcile.Result, error) {
	result, err := c.pipeline.Run(doc)
	if err != nil {
		if errors.IsConflict(err) {
			c.hooks.triggerConflicts(c.pipeline.Conflicts(doc))
		}
		return nil, err
	}
	c.hooks.triggerChanges(result.Changes)
	return result, nil
}
