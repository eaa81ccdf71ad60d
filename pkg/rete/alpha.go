package rete

import (
	"sort"
	"sync"

	"github.com/smilemakc/ruleforge/pkg/memory"
	"github.com/smilemakc/ruleforge/pkg/rule"
)

// alphaMemory is the persistent store of live facts for one fact type
// (spec.md §4.3 "the node's alpha-memory stores every fact that passed").
// It starts empty, is populated by a one-time scan when the owning network
// binds to a working memory, and is kept current from then on by
// memory.WorkingMemory's Subscribe events rather than a GetByType rescan on
// every evaluation.
type alphaMemory struct {
	mu    sync.RWMutex
	facts map[rule.FactHandle]*rule.Fact
	gen   uint64
}

func newAlphaMemory() *alphaMemory {
	return &alphaMemory{facts: make(map[rule.FactHandle]*rule.Fact)}
}

func (a *alphaMemory) upsert(f *rule.Fact) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.facts[f.Handle] = f
	a.gen++
}

func (a *alphaMemory) remove(handle rule.FactHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.facts[handle]; ok {
		delete(a.facts, handle)
		a.gen++
	}
}

func (a *alphaMemory) generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gen
}

// sorted returns every live fact in ascending-handle order, the
// deterministic iteration order spec.md §4.3 "Ordering" requires for a
// given (rule order, fact-handle order).
func (a *alphaMemory) sorted() []*rule.Fact {
	a.mu.RLock()
	out := make([]*rule.Fact, 0, len(a.facts))
	for _, f := range a.facts {
		out = append(out, f)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// alphaNetwork holds one alphaMemory per fact type any compiled rule's
// condition tree references, and lazily binds itself to whichever working
// memory it is evaluated against.
type alphaNetwork struct {
	mu      sync.Mutex
	byType  map[string]*alphaMemory
	boundWM *memory.WorkingMemory
}

func newAlphaNetwork(factTypes map[string]struct{}) *alphaNetwork {
	an := &alphaNetwork{byType: make(map[string]*alphaMemory, len(factTypes))}
	for t := range factTypes {
		an.byType[t] = newAlphaMemory()
	}
	return an
}

func (an *alphaNetwork) memoryFor(factType string) *alphaMemory {
	an.mu.Lock()
	defer an.mu.Unlock()
	m, ok := an.byType[factType]
	if !ok {
		m = newAlphaMemory()
		an.byType[factType] = m
	}
	return m
}

// ensureBound binds the network to wm the first time it sees it (or
// whenever wm changes): every tracked fact type's alpha-memory is seeded
// with wm's current facts (covering facts inserted before a Network
// existed), then a Subscribe callback keeps each alpha-memory current
// incrementally, in O(1) per working-memory mutation, from then on.
func (an *alphaNetwork) ensureBound(wm *memory.WorkingMemory) {
	an.mu.Lock()
	if an.boundWM == wm {
		an.mu.Unlock()
		return
	}
	an.boundWM = wm
	types := make([]string, 0, len(an.byType))
	for t := range an.byType {
		types = append(types, t)
	}
	an.mu.Unlock()

	for _, t := range types {
		m := an.memoryFor(t)
		for _, f := range wm.GetByType(t) {
			m.upsert(f)
		}
	}

	wm.Subscribe(func(ev memory.FactEvent) {
		an.mu.Lock()
		m, tracked := an.byType[ev.Fact.FactType]
		an.mu.Unlock()
		if !tracked {
			return
		}
		if ev.Kind == memory.FactRetracted {
			m.remove(ev.Fact.Handle)
		} else {
			m.upsert(ev.Fact)
		}
	})
}

// fingerprint sums the generation counters of every alpha-memory in
// factTypes, giving a cheap value that changes if and only if one of those
// fact types' live fact set has changed since it was last computed. A
// rule's terminal match cache is keyed on this (see network.go), standing
// in for per-node beta memory: the condition tree is only re-walked when
// the alpha memories it reads have actually moved.
func (an *alphaNetwork) fingerprint(factTypes map[string]struct{}) uint64 {
	an.mu.Lock()
	mems := make([]*alphaMemory, 0, len(factTypes))
	for t := range factTypes {
		if m, ok := an.byType[t]; ok {
			mems = append(mems, m)
		}
	}
	an.mu.Unlock()

	var sum uint64
	for _, m := range mems {
		sum += m.generation()
	}
	return sum
}
