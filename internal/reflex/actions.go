package reflex

import (
	"context"
	"sort"

	"github.com/vthunder/jarvis/internal/types"
)

// Action executes one dispatcher command. Validation problems are reported
// as in-band results (types.ValidationError); a returned error means the
// collaborator call itself failed.
type Action interface {
	Execute(ctx context.Context, entities types.Entities) (*types.CommandResult, error)
}

// ActionFunc is a function that implements Action
type ActionFunc func(ctx context.Context, entities types.Entities) (*types.CommandResult, error)

// Execute implements Action
func (f ActionFunc) Execute(ctx context.Context, entities types.Entities) (*types.CommandResult, error) {
	return f(ctx, entities)
}

// ActionRegistry holds the commands the dispatcher knows
type ActionRegistry struct {
	actions map[string]Action
}

// NewActionRegistry creates an empty registry
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]Action)}
}

// Register adds an action to the registry
func (r *ActionRegistry) Register(name string, action Action) {
	r.actions[name] = action
}

// Get retrieves an action by name
func (r *ActionRegistry) Get(name string) (Action, bool) {
	action, ok := r.actions[name]
	return action, ok
}

// List returns all registered action names, sorted
func (r *ActionRegistry) List() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
