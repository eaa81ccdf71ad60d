package agenda

import "container/heap"

// activationHeap implements container/heap.Interface over *Activation,
// ordered by Less (salience desc, creation-instant asc, id asc).
type activationHeap []*Activation

func (h activationHeap) Len() int            { return len(h) }
func (h activationHeap) Less(i, j int) bool  { return Less(h[i], h[j]) }
func (h activationHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *activationHeap) Push(x interface{}) { *h = append(*h, x.(*Activation)) }
func (h *activationHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// groupQueue is one agenda group's activation heap.
type groupQueue struct {
	heap activationHeap
}

func newGroupQueue() *groupQueue {
	gq := &groupQueue{}
	heap.Init(&gq.heap)
	return gq
}

func (g *groupQueue) push(a *Activation) {
	heap.Push(&g.heap, a)
}

func (g *groupQueue) pop() *Activation {
	if g.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&g.heap).(*Activation)
}

func (g *groupQueue) empty() bool {
	return g.heap.Len() == 0
}
