package engine

import "time"

// ExecutionEvent is a lifecycle notification the façade emits through the
// ExecutionOptions.Observer callback as the cycle loop runs: cycle boundaries, rule firings,
// fact mutations, and TMS cascades (spec.md §4.9, adapted from the
// original workflow-lifecycle event shape to rule-engine lifecycle
// points).
type ExecutionEvent struct {
	Type        string
	Cycle       int
	RuleName    string
	ActivationID int64
	FactHandle  uint64
	FactType    string
	Status      string
	Error       error
	DurationMs  int64
	Message     string
	Timestamp   time.Time
}

// Event type constants the façade emits.
const (
	EventCycleStarted       = "cycle.started"
	EventCycleCompleted     = "cycle.completed"
	EventRuleFired          = "rule.fired"
	EventRuleFailed         = "rule.failed"
	EventFactAsserted       = "fact.asserted"
	EventFactRetracted      = "fact.retracted"
	EventJustificationCascaded = "justification.cascaded"
)
