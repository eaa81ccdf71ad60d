// Package executor implements the action handler and function registries
// the engine façade dispatches to: named host handlers for ActionCall /
// ActionMethodCall, and the built-in pure-function set conditions and
// actions may invoke by name (spec.md §6 "Action handler registry",
// "Function registry").
package executor

import (
	"context"
	"fmt"

	"github.com/smilemakc/ruleforge/pkg/memory"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// ActionHandler is a host-registered callback invoked for an ActionCall or
// ActionMethodCall action. Args carries the action's positional ("0",
// "1", ...) and named arguments, resolved against the firing activation's
// bindings; wm is the working-memory façade the handler may read or write
// through (spec.md §6 "Action handler registry").
type ActionHandler interface {
	Execute(ctx context.Context, args map[string]value.Value, wm *memory.WorkingMemory) (value.Value, error)
}

// ActionHandlerFunc adapts a plain function to an ActionHandler.
type ActionHandlerFunc func(ctx context.Context, args map[string]value.Value, wm *memory.WorkingMemory) (value.Value, error)

func (f ActionHandlerFunc) Execute(ctx context.Context, args map[string]value.Value, wm *memory.WorkingMemory) (value.Value, error) {
	return f(ctx, args, wm)
}

// HandlerError wraps an action handler failure with the rule and handler
// name that produced it (spec.md §4.9 guarantee (i): "action failures
// produce a typed error carrying the rule name").
type HandlerError struct {
	RuleName    string
	HandlerName string
	Err         error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("rule %q: handler %q: %v", e.RuleName, e.HandlerName, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
