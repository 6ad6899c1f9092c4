package reflex

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/types"
)

// UnknownHandler gets a chance at commands no action is registered for
type UnknownHandler interface {
	HandleUnknownCommand(text string, cls types.Classification) *types.Response
}

// Engine dispatches classified commands to registered actions
type Engine struct {
	actions *ActionRegistry
	unknown UnknownHandler

	mu    sync.Mutex
	stats map[string]*CommandStats
}

// CommandStats tracks how often a command ran
type CommandStats struct {
	FireCount  int              `json:"fire_count"`
	Failures   int              `json:"failures"`
	LastFired  time.Time        `json:"last_fired"`
	LastResult types.ResultKind `json:"last_result"`
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithUnknownHandler sets the fallback for unregistered commands
func WithUnknownHandler(h UnknownHandler) EngineOption {
	return func(e *Engine) { e.unknown = h }
}

// NewEngine creates an engine over actions
func NewEngine(actions *ActionRegistry, opts ...EngineOption) *Engine {
	if actions == nil {
		actions = NewActionRegistry()
	}
	e := &Engine{actions: actions, stats: make(map[string]*CommandStats)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Actions returns the registry
func (e *Engine) Actions() *ActionRegistry { return e.actions }

type utteranceKey struct{}

// WithUtterance attaches the raw utterance so unknown commands can be replayed
func WithUtterance(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, utteranceKey{}, text)
}

func utteranceFrom(ctx context.Context) string {
	s, _ := ctx.Value(utteranceKey{}).(string)
	return s
}

// Dispatch runs the named command. Validation problems, collaborator errors
// and panics come back as in-band results. An unknown command is offered to
// the unknown handler; nil means nobody could handle it.
func (e *Engine) Dispatch(ctx context.Context, name string, entities types.Entities) *types.CommandResult {
	action, ok := e.actions.Get(name)
	if !ok {
		return e.dispatchUnknown(ctx, name, entities)
	}
	if entities == nil {
		entities = types.Entities{}
	}

	start := time.Now()
	result := e.execute(ctx, name, action, entities)
	e.record(name, result)
	logging.Debug("reflex", "%s -> %s (%.2fms)", name, result.Kind, time.Since(start).Seconds()*1000)
	return result
}

func (e *Engine) execute(ctx context.Context, name string, action Action, entities types.Entities) (result *types.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("reflex", fmt.Errorf("panic: %v", r), "action %s panicked\n%s", name, debug.Stack())
			result = types.ValidationError(fmt.Sprintf("I couldn't complete %s.", name))
		}
	}()

	res, err := action.Execute(ctx, entities)
	if err != nil {
		logging.Warn("reflex", "action %s failed: %v", name, err)
		return types.ValidationError(fmt.Sprintf("I couldn't complete %s: %v", name, err))
	}
	if res == nil {
		return types.Success(name, "Done.", nil)
	}
	return res
}

func (e *Engine) dispatchUnknown(ctx context.Context, name string, entities types.Entities) *types.CommandResult {
	if e.unknown == nil {
		return nil
	}
	text := utteranceFrom(ctx)
	if text == "" {
		return nil
	}
	cls := types.Classification{Intent: types.IntentCommand, Command: name, Entities: entities}
	resp := e.unknown.HandleUnknownCommand(text, cls)
	if resp == nil {
		return nil
	}
	logging.Info("reflex", "replayed learned response for unknown command %q", name)
	return &types.CommandResult{
		Kind:         types.ResultUnknownCommand,
		CommandName:  name,
		ResponseText: resp.Text,
	}
}

func (e *Engine) record(name string, result *types.CommandResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stats[name]
	if !ok {
		s = &CommandStats{}
		e.stats[name] = s
	}
	s.FireCount++
	s.LastFired = time.Now()
	s.LastResult = result.Kind
	if result.Kind != types.ResultSuccess {
		s.Failures++
	}
}

// Stats returns a copy of per-command counters
func (e *Engine) Stats() map[string]CommandStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]CommandStats, len(e.stats))
	for k, v := range e.stats {
		out[k] = *v
	}
	return out
}
