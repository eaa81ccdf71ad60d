package backward

import (
	"container/list"
	"sync"

	"github.com/smilemakc/ruleforge/pkg/rule"
)

// ProofCache is the proof-graph cache from spec.md §4.7: keyed by canonical
// FactKey, it stores every valid proof found for a goal and tracks which
// fact fields that proof's steps depended on, so a premise retraction can
// invalidate exactly the cached proofs it undermines. Its LRU shape mirrors
// the teacher's ConditionCache (container/list + map), here keyed by
// FactKey instead of a raw condition string.
type ProofCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[rule.FactKey]*list.Element
	order    *list.List
}

type cacheNode struct {
	key      rule.FactKey
	result   ProofResult
	premises map[string]struct{}
}

// NewProofCache creates a proof cache holding at most capacity entries.
func NewProofCache(capacity int) *ProofCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &ProofCache{
		capacity: capacity,
		entries:  make(map[rule.FactKey]*list.Element),
		order:    list.New(),
	}
}

// Get returns a cached proof result for key, if present.
func (c *ProofCache) Get(key rule.FactKey) (ProofResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return ProofResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheNode).result, true
}

// Put stores a proof result, recording the fields its proof steps depended
// on (the key's FactType plus every step's conclusion and premises) so
// Invalidate can find it.
func (c *ProofCache) Put(key rule.FactKey, result ProofResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	premises := make(map[string]struct{})
	premises[key.FactType] = struct{}{}
	for _, step := range result.ProofTrace {
		premises[step.Conclusion] = struct{}{}
		for _, p := range step.Premises {
			premises[p] = struct{}{}
		}
	}

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheNode).result = result
		el.Value.(*cacheNode).premises = premises
		return
	}

	node := &cacheNode{key: key, result: result, premises: premises}
	el := c.order.PushFront(node)
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheNode).key)
		}
	}
}

// Invalidate drops every cached proof whose trace depended on field,
// returning how many entries it removed (spec.md §4.7 "Invalidation
// propagates along the dependents index when a premise is retracted").
func (c *ProofCache) Invalidate(field string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, el := range c.entries {
		node := el.Value.(*cacheNode)
		if _, dependent := node.premises[field]; dependent {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		node := el.Value.(*cacheNode)
		delete(c.entries, node.key)
		c.order.Remove(el)
	}
	return len(toRemove)
}

// Len returns the number of cached proofs.
func (c *ProofCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
