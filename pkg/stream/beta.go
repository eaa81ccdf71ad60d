package stream

import (
	"sync"
	"time"

	"github.com/smilemakc/ruleforge/pkg/value"
)

// JoinInput is satisfied by both StreamAlphaNode and StreamBetaNode, letting
// a beta node's inputs be either a raw stream or a nested join — the
// left-associative N-way join tree from spec.md §4.8 "Nested joins".
type JoinInput interface {
	LastEvent() (Event, bool)
	FirstEvent() (Event, bool)
	Events() ([]Event, bool)
}

var (
	_ JoinInput = (*StreamAlphaNode)(nil)
	_ JoinInput = (*StreamBetaNode)(nil)
)

// LastEvent satisfies JoinInput for a raw stream: its most recent event.
func (n *StreamAlphaNode) LastEvent() (Event, bool) { return n.Last() }

// FirstEvent satisfies JoinInput for a raw stream: its oldest retained event.
func (n *StreamAlphaNode) FirstEvent() (Event, bool) { return n.First() }

// Events satisfies JoinInput for a raw stream: its single most recent
// event, the degenerate one-event case of a MultiStreamJoinResult.
func (n *StreamAlphaNode) Events() ([]Event, bool) {
	e, ok := n.Last()
	if !ok {
		return nil, false
	}
	return []Event{e}, true
}

// JoinCondition is one equality/comparison constraint between the last
// event of a beta node's left input and the first event of its right input
// (spec.md §4.8 "JoinCondition (left_field, op, right_field)").
type JoinCondition struct {
	LeftField  string
	Op         value.Operator
	RightField string
}

// FilterPredicate is a single-stream-attribute filter attached to a beta
// node, evaluated against the merged attribute map of a successful join
// before the activation fires (spec.md §4.8 "Filter evaluation after
// join").
type FilterPredicate struct {
	Field   string
	Op      value.Operator
	Literal value.Value
}

// MultiStreamJoinResult is the ordered event sequence a (possibly nested)
// join produced, oldest-contributing-stream first (spec.md §4.8
// "MultiStreamJoinResult").
type MultiStreamJoinResult struct {
	Events    []Event
	MergedAt  time.Time
	Fields    map[string]value.Value
}

// StreamBetaNode joins two JoinInputs — each a raw stream or another beta
// node — admitting a join when every JoinCondition holds between the left
// input's last event and the right input's first event, then testing any
// attached Filters against the merged field map (spec.md §4.8
// "StreamBetaNode", "Filter evaluation after join").
type StreamBetaNode struct {
	mu sync.Mutex

	Left, Right JoinInput
	Conditions  []JoinCondition
	Filters     []FilterPredicate
	Window      *WindowSpec // nil => bounded ring via MaxResults
	MaxResults  int

	results []MultiStreamJoinResult
}

// NewStreamBetaNode constructs a beta node over left and right inputs.
func NewStreamBetaNode(left, right JoinInput, conditions []JoinCondition, filters []FilterPredicate, window *WindowSpec) *StreamBetaNode {
	return &StreamBetaNode{
		Left: left, Right: right,
		Conditions: conditions, Filters: filters, Window: window,
		MaxResults: 1000,
	}
}

// TryJoin attempts a join admission at time now (spec.md §4.8 step-by-step):
// pulls the left input's last event and the right input's first event,
// tests every JoinCondition between them, and on success merges both
// inputs' full contributed event sequences and tests Filters against the
// merged field map. Returns the joined result and whether it was admitted.
func (b *StreamBetaNode) TryJoin(now time.Time) (MultiStreamJoinResult, bool) {
	leftLast, ok := b.Left.LastEvent()
	if !ok {
		return MultiStreamJoinResult{}, false
	}
	rightFirst, ok := b.Right.FirstEvent()
	if !ok {
		return MultiStreamJoinResult{}, false
	}

	for _, cond := range b.Conditions {
		lv, ok := leftLast.Get(cond.LeftField)
		if !ok {
			return MultiStreamJoinResult{}, false
		}
		rv, ok := rightFirst.Get(cond.RightField)
		if !ok {
			return MultiStreamJoinResult{}, false
		}
		if !value.Compare(lv, cond.Op, rv) {
			return MultiStreamJoinResult{}, false
		}
	}

	leftEvents, ok := b.Left.Events()
	if !ok {
		return MultiStreamJoinResult{}, false
	}
	rightEvents, ok := b.Right.Events()
	if !ok {
		return MultiStreamJoinResult{}, false
	}

	merged := make(map[string]value.Value)
	combined := make([]Event, 0, len(leftEvents)+len(rightEvents))
	combined = append(combined, leftEvents...)
	combined = append(combined, rightEvents...)
	for _, ev := range combined {
		for k, v := range ev.Fields {
			merged[k] = v
		}
	}

	for _, f := range b.Filters {
		v, ok := merged[f.Field]
		if !ok || !value.Compare(v, f.Op, f.Literal) {
			return MultiStreamJoinResult{}, false
		}
	}

	result := MultiStreamJoinResult{Events: combined, MergedAt: now, Fields: merged}

	b.mu.Lock()
	b.results = append(b.results, result)
	if b.Window != nil {
		b.results = evictResults(b.results, *b.Window, now)
	}
	max := b.MaxResults
	if max <= 0 {
		max = 1000
	}
	if len(b.results) > max {
		b.results = b.results[len(b.results)-max:]
	}
	b.mu.Unlock()

	return result, true
}

func evictResults(results []MultiStreamJoinResult, w WindowSpec, now time.Time) []MultiStreamJoinResult {
	cutoff := now.Add(-w.Duration)
	i := 0
	for i < len(results) && results[i].MergedAt.Before(cutoff) {
		i++
	}
	return results[i:]
}

// LastEvent satisfies JoinInput: the last event of the most recently
// admitted join result.
func (b *StreamBetaNode) LastEvent() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		return Event{}, false
	}
	events := b.results[len(b.results)-1].Events
	if len(events) == 0 {
		return Event{}, false
	}
	return events[len(events)-1], true
}

// FirstEvent satisfies JoinInput: the first event of the most recently
// admitted join result.
func (b *StreamBetaNode) FirstEvent() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		return Event{}, false
	}
	events := b.results[len(b.results)-1].Events
	if len(events) == 0 {
		return Event{}, false
	}
	return events[0], true
}

// Events satisfies JoinInput: the full event sequence of the most recently
// admitted join result, for composing into a further (N+1)-way join.
func (b *StreamBetaNode) Events() ([]Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		return nil, false
	}
	events := b.results[len(b.results)-1].Events
	return append([]Event(nil), events...), len(events) > 0
}

// LatestResult returns the most recently admitted join result, if any.
func (b *StreamBetaNode) LatestResult() (MultiStreamJoinResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		return MultiStreamJoinResult{}, false
	}
	return b.results[len(b.results)-1], true
}
