package entsync

import (
	"sync"

	"github.com/agentstation/entsync/pkg/differ"
	"github.com/agentstation/entsync/pkg/errors"
)

// Hook function types for change events
type (
	// CreateHook is called for every creation changeset
	CreateHook func(change differ.Changeset)

	// UpdateHook is called for every update changeset
	UpdateHook func(change differ.Changeset)

	// ConflictHook is called for every conflicting field of a reconcile
	ConflictHook func(conflict *errors.ConflictError)
)

// Hooks registers event callbacks.
type Hooks interface {
	OnCreate(fn CreateHook)
	OnUpdate(fn UpdateHook)
	OnConflict(fn ConflictHook)
}

// hooks manages event callbacks for computed changes
type hooks struct {
	mu         sync.RWMutex
	onCreate   []CreateHook
	onUpdate   []UpdateHook
	onConflict []ConflictHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnCreate registers a callback for creation changesets
func (c *client) OnCreate(fn CreateHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onCreate = append(c.hooks.onCreate, fn)
}

// OnUpdate registers a callback for update changesets
func (c *client) OnUpdate(fn UpdateHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onUpdate = append(c.hooks.onUpdate, fn)
}

// OnConflict registers a callback for reconcile conflicts
func (c *client) OnConflict(fn ConflictHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onConflict = append(c.hooks.onConflict, fn)
}

// triggerChanges calls the create and update hooks in changeset order
func (h *hooks) triggerChanges(changes []differ.Changeset) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, change := range changes {
		if change.ChangeType() == differ.ChangeTypeCreate {
			for _, hook := range h.onCreate {
				hook(change)
			}
			continue
		}
		for _, hook := range h.onUpdate {
			hook(change)
		}
	}
}

// triggerConflicts calls the conflict hooks for every conflict
func (h *hooks) triggerConflicts(conflicts []*errors.ConflictError) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conflict := range conflicts {
		for _, hook := range h.onConflict {
			hook(conflict)
		}
	}
}
