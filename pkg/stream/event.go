// Package stream implements the streaming core: time-windowed alpha nodes,
// multi-way beta-join nodes keyed by join attributes, and the JoinManager
// that routes events to the nodes consuming their stream (spec.md §4.8).
package stream

import (
	"time"

	"github.com/smilemakc/ruleforge/pkg/value"
)

// Event is one message on a named stream: a source stream name, an
// optional event type, a field map, and the timestamp windows evict on
// (spec.md §4.8 "StreamAlphaNode... process(event)").
type Event struct {
	Source    string
	EventType string
	Fields    map[string]value.Value
	Timestamp time.Time
}

// Get resolves a field by name.
func (e Event) Get(field string) (value.Value, bool) {
	v, ok := e.Fields[field]
	return v, ok
}
