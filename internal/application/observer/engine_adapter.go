package observer

import (
	"context"

	"github.com/smilemakc/ruleforge/pkg/engine"
)

// fromEngineEvent converts an engine.ExecutionEvent into the Event shape
// this package's filters and observers operate on.
func fromEngineEvent(ev engine.ExecutionEvent) Event {
	return Event{
		Type:         EventType(ev.Type),
		Cycle:        ev.Cycle,
		RuleName:     ev.RuleName,
		Timestamp:    ev.Timestamp,
		ActivationID: ev.ActivationID,
		FactHandle:   ev.FactHandle,
		FactType:     ev.FactType,
		Status:       ev.Status,
		Error:        ev.Error,
		DurationMs:   ev.DurationMs,
		Message:      ev.Message,
	}
}

// AsEngineObserver adapts m into the callback engine.ExecutionOptions.Observer
// expects, fanning a single engine event out to every registered observer.
func (m *ObserverManager) AsEngineObserver() func(engine.ExecutionEvent) {
	return func(ev engine.ExecutionEvent) {
		m.Notify(context.Background(), fromEngineEvent(ev))
	}
}
