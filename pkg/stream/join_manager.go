package stream

import (
	"sort"
	"sync"
	"time"
)

// betaEdge records that parent should be retried whenever child admits a
// new event or a new join result.
type betaEdge struct {
	node   *StreamBetaNode
	onFire func(MultiStreamJoinResult)
}

// JoinManager routes an incoming event to every alpha node consuming its
// stream, then retries every beta node that depends (directly or through
// nesting) on that stream, emitting a joined result whenever admission
// succeeds (spec.md §4.8 "JoinManager").
type JoinManager struct {
	mu sync.Mutex

	alphaByStream map[string][]*StreamAlphaNode
	betaByAlpha   map[*StreamAlphaNode][]*betaEdge
	betaByBeta    map[*StreamBetaNode][]*betaEdge
	watermarks    map[string]time.Time

	onResult func(*StreamBetaNode, MultiStreamJoinResult)
}

// NewJoinManager constructs an empty manager. onResult, if non-nil, is
// invoked for every join admitted by any beta node registered through
// RegisterBeta.
func NewJoinManager(onResult func(*StreamBetaNode, MultiStreamJoinResult)) *JoinManager {
	return &JoinManager{
		alphaByStream: make(map[string][]*StreamAlphaNode),
		betaByAlpha:   make(map[*StreamAlphaNode][]*betaEdge),
		betaByBeta:    make(map[*StreamBetaNode][]*betaEdge),
		watermarks:    make(map[string]time.Time),
		onResult:      onResult,
	}
}

// RegisterAlpha adds node to the stream->nodes index for node.StreamName.
func (jm *JoinManager) RegisterAlpha(node *StreamAlphaNode) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.alphaByStream[node.StreamName] = append(jm.alphaByStream[node.StreamName], node)
}

// RegisterBeta wires node's Left and Right inputs into the retry graph so
// new events on either input (transitively, through nested beta nodes)
// trigger a TryJoin attempt on node.
func (jm *JoinManager) RegisterBeta(node *StreamBetaNode) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	edge := &betaEdge{node: node}
	jm.wireInput(node.Left, edge)
	jm.wireInput(node.Right, edge)
}

func (jm *JoinManager) wireInput(input JoinInput, edge *betaEdge) {
	switch n := input.(type) {
	case *StreamAlphaNode:
		jm.betaByAlpha[n] = append(jm.betaByAlpha[n], edge)
	case *StreamBetaNode:
		jm.betaByBeta[n] = append(jm.betaByBeta[n], edge)
	}
}

// Dispatch routes event at time now: admits it into every alpha node whose
// stream matches, then retries every dependent beta node (transitively,
// since a successful nested join can itself feed an outer beta node).
// Advances the per-stream watermark to now.
func (jm *JoinManager) Dispatch(event Event, now time.Time) {
	jm.mu.Lock()
	nodes := append([]*StreamAlphaNode(nil), jm.alphaByStream[event.Source]...)
	jm.watermarks[event.Source] = now
	jm.mu.Unlock()

	var fired []*StreamAlphaNode
	for _, node := range nodes {
		if node.Process(event, now) {
			fired = append(fired, node)
		}
	}

	for _, node := range fired {
		jm.retryDependents(node, now, make(map[*StreamBetaNode]bool))
	}
}

func (jm *JoinManager) retryDependents(source interface{}, now time.Time, visited map[*StreamBetaNode]bool) {
	jm.mu.Lock()
	var edges []*betaEdge
	switch n := source.(type) {
	case *StreamAlphaNode:
		edges = append(edges, jm.betaByAlpha[n]...)
	case *StreamBetaNode:
		edges = append(edges, jm.betaByBeta[n]...)
	}
	jm.mu.Unlock()

	for _, edge := range edges {
		if visited[edge.node] {
			continue
		}
		visited[edge.node] = true

		result, ok := edge.node.TryJoin(now)
		if !ok {
			continue
		}
		if jm.onResult != nil {
			jm.onResult(edge.node, result)
		}
		jm.retryDependents(edge.node, now, visited)
	}
}

// Watermark returns the most recent event timestamp observed for stream.
func (jm *JoinManager) Watermark(stream string) (time.Time, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	ts, ok := jm.watermarks[stream]
	return ts, ok
}

// Watermarks returns a snapshot of every tracked stream's watermark, sorted
// by stream name for deterministic iteration.
func (jm *JoinManager) Watermarks() map[string]time.Time {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	out := make(map[string]time.Time, len(jm.watermarks))
	for k, v := range jm.watermarks {
		out[k] = v
	}
	return out
}

// Streams returns the registered stream names, sorted.
func (jm *JoinManager) Streams() []string {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	out := make([]string, 0, len(jm.alphaByStream))
	for k := range jm.alphaByStream {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
