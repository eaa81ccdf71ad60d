package stream

import (
	"sync"
	"time"
)

const defaultMaxEvents = 10000

// StreamAlphaNode buffers events from one stream within a time window,
// evicting per the configured policy and enforcing a max_events cap
// (spec.md §4.8 "StreamAlphaNode"). Each node owns its own mutex so
// concurrent producers on different streams never contend with each other
// (spec.md §5 "Streaming concurrency").
type StreamAlphaNode struct {
	mu sync.Mutex

	StreamName string
	EventType  string // empty matches any event type
	Window     *WindowSpec
	MaxEvents  int

	buf []Event
}

// NewStreamAlphaNode constructs a node for streamName, optionally filtering
// by eventType (empty means "any") and windowing per window (nil means
// unbounded retention save for the max_events cap).
func NewStreamAlphaNode(streamName, eventType string, window *WindowSpec) *StreamAlphaNode {
	return &StreamAlphaNode{
		StreamName: streamName,
		EventType:  eventType,
		Window:     window,
		MaxEvents:  defaultMaxEvents,
	}
}

// Process admits event if it matches this node's stream/type, evicts per
// window policy, and enforces the max_events cap (spec.md §4.8 steps 1-3).
// Returns whether the event was admitted.
func (n *StreamAlphaNode) Process(event Event, now time.Time) bool {
	if event.Source != n.StreamName {
		return false
	}
	if n.EventType != "" && event.EventType != n.EventType {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.buf = append(n.buf, event)
	if n.Window != nil {
		n.buf = n.Window.evict(n.buf, now)
	}

	max := n.MaxEvents
	if max <= 0 {
		max = defaultMaxEvents
	}
	if len(n.buf) > max {
		n.buf = n.buf[len(n.buf)-max:]
	}

	return true
}

// Snapshot returns a defensive copy of the currently retained events,
// oldest first.
func (n *StreamAlphaNode) Snapshot() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.buf))
	copy(out, n.buf)
	return out
}

// Last returns the most recently admitted event, if any.
func (n *StreamAlphaNode) Last() (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.buf) == 0 {
		return Event{}, false
	}
	return n.buf[len(n.buf)-1], true
}

// First returns the oldest retained event, if any.
func (n *StreamAlphaNode) First() (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.buf) == 0 {
		return Event{}, false
	}
	return n.buf[0], true
}
