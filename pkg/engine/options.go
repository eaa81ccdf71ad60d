// Package engine implements the execution cycle: match (pkg/rete) ->
// conflict-resolve (pkg/agenda) -> act (pkg/executor) -> propagate
// (pkg/rete, pkg/tms), per spec.md §4.9.
package engine

import (
	"time"

	"github.com/smilemakc/ruleforge/pkg/backward"
)

// ExecutionOptions configures one Engine's cycle loop (spec.md §6
// "Configuration surface: Engine").
type ExecutionOptions struct {
	// MaxCycles bounds the number of match-select-act-propagate passes.
	// 1 stops after a single pass even with activations still pending
	// (spec.md §4.9 guarantee (iii)).
	MaxCycles int

	// Timeout, if non-zero, is checked at cycle boundaries (not
	// mid-action) per spec.md §5 "Cancellation/timeouts".
	Timeout time.Duration

	// RetryPolicy governs retries of a failing action handler dispatch.
	RetryPolicy *RetryPolicy

	// EnableStats is carried on the options; Run accumulates Stats on the
	// Engine whether or not it is set.
	EnableStats bool

	// DebugMode is carried on the options; the Engine does not read it, and
	// the events it emits are the same either way.
	DebugMode bool

	// Observer receives ExecutionEvent notifications, if set.
	Observer func(ExecutionEvent)

	// BackwardStrategy selects the search order Engine.Prove's backward-
	// chaining engine uses (spec.md §7). Zero value is DepthFirst.
	BackwardStrategy backward.Strategy

	// BackwardMaxDepth bounds backward-chaining proof recursion. Zero
	// defaults to 32 (backward.New's default).
	BackwardMaxDepth int
}

// DefaultExecutionOptions returns options with sensible defaults.
func DefaultExecutionOptions() *ExecutionOptions {
	return &ExecutionOptions{
		MaxCycles:   DefaultMaxCycles,
		RetryPolicy: DefaultRetryPolicy(),
	}
}

// Stats accumulates counters across an Engine's Run call, whatever the
// EnableStats setting.
type Stats struct {
	Cycles          int
	ActivationsFired int
	ActionsExecuted int
	ActionFailures  int
	FactsAsserted   int
	FactsRetracted  int
	Cascades        int
}
