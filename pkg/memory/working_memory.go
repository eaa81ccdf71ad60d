// Package memory implements working memory: handle-indexed fact storage
// with a type index and a modification/retraction delta log
// (spec.md §4.2).
package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// WorkingMemory is the live fact store rules match against. Insert/Update/
// Retract are safe for concurrent use: the handle table and type index are
// backed by lock-free concurrent maps (xsync.MapOf) so stream ingestion
// (spec.md §5) can mutate facts from a goroutine other than the engine's
// cycle loop while alpha-node scans read concurrently.
type WorkingMemory struct {
	facts     *xsync.MapOf[rule.FactHandle, *rule.Fact]
	typeIndex *xsync.MapOf[string, *xsync.MapOf[rule.FactHandle, struct{}]]
	nextHandle atomic.Uint64

	deltaMu   sync.Mutex
	modified  map[rule.FactHandle]struct{}
	retracted map[rule.FactHandle]struct{}

	subMu sync.Mutex
	subs  []func(FactEvent)
}

// FactEventKind tags the mutation a FactEvent reports.
type FactEventKind int

const (
	FactInserted FactEventKind = iota
	FactUpdated
	FactRetracted
)

// FactEvent is published to every Subscribe callback whenever Insert,
// Update, or Retract changes a fact, letting a consumer (pkg/rete's alpha
// memories) maintain a derived index incrementally instead of rescanning
// GetByType on every query.
type FactEvent struct {
	Kind FactEventKind
	Fact *rule.Fact
}

// New creates an empty WorkingMemory. Handle 0 is reserved as the invalid
// handle; the first Insert returns handle 1.
func New() *WorkingMemory {
	wm := &WorkingMemory{
		facts:     xsync.NewMapOf[rule.FactHandle, *rule.Fact](),
		typeIndex: xsync.NewMapOf[string, *xsync.MapOf[rule.FactHandle, struct{}]](),
		modified:  make(map[rule.FactHandle]struct{}),
		retracted: make(map[rule.FactHandle]struct{}),
	}
	return wm
}

// Subscribe registers fn to be called with a FactEvent on every subsequent
// Insert, Update, and Retract. There is no unsubscribe: callers are expected
// to live as long as wm, matching how pkg/rete binds one alpha network per
// Network to the working memory it evaluates against.
func (wm *WorkingMemory) Subscribe(fn func(FactEvent)) {
	wm.subMu.Lock()
	defer wm.subMu.Unlock()
	wm.subs = append(wm.subs, fn)
}

func (wm *WorkingMemory) publish(ev FactEvent) {
	wm.subMu.Lock()
	subs := wm.subs
	wm.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Insert assigns the next handle, adds the fact to the handle table and
// type index, and records it in the modified-delta set.
func (wm *WorkingMemory) Insert(factType string, fields map[string]value.Value) rule.FactHandle {
	handle := rule.FactHandle(wm.nextHandle.Add(1))
	now := time.Now()

	f := &rule.Fact{
		Handle:     handle,
		FactType:   factType,
		Fields:     fields,
		InsertedAt: now,
		UpdatedAt:  now,
	}
	wm.facts.Store(handle, f)
	wm.typeBucket(factType).Store(handle, struct{}{})

	wm.deltaMu.Lock()
	wm.modified[handle] = struct{}{}
	wm.deltaMu.Unlock()

	wm.publish(FactEvent{Kind: FactInserted, Fact: f})

	return handle
}

// InsertFact inserts a pre-built fact, assigning it a fresh handle and
// overwriting any handle it already carried. The engine façade inserts
// logically-derived facts through Insert, not through this method.
func (wm *WorkingMemory) InsertFact(f *rule.Fact) rule.FactHandle {
	return wm.Insert(f.FactType, f.Fields)
}

func (wm *WorkingMemory) typeBucket(factType string) *xsync.MapOf[rule.FactHandle, struct{}] {
	bucket, _ := wm.typeIndex.LoadOrStore(factType, xsync.NewMapOf[rule.FactHandle, struct{}]())
	return bucket
}

// Update replaces a live fact's fields, bumping its update count and
// recording it in the modified-delta set. Returns ErrHandleNotFound or
// ErrAlreadyRetracted per spec.md §4.2.
func (wm *WorkingMemory) Update(handle rule.FactHandle, fields map[string]value.Value) error {
	f, ok := wm.facts.Load(handle)
	if !ok {
		return fmt.Errorf("%w: handle %d", rule.ErrHandleNotFound, handle)
	}
	if f.Retracted {
		return fmt.Errorf("%w: handle %d", rule.ErrAlreadyRetracted, handle)
	}

	updated := *f
	updated.Fields = fields
	updated.UpdatedAt = time.Now()
	updated.UpdateCount = f.UpdateCount + 1
	wm.facts.Store(handle, &updated)

	wm.deltaMu.Lock()
	wm.modified[handle] = struct{}{}
	wm.deltaMu.Unlock()

	wm.publish(FactEvent{Kind: FactUpdated, Fact: &updated})

	return nil
}

// Retract sets the retracted flag (logical tombstone), removes the handle
// from the type index, and records it in the retracted-delta set. Physical
// eviction from the handle table is deferred to ClearDeltas.
func (wm *WorkingMemory) Retract(handle rule.FactHandle) error {
	f, ok := wm.facts.Load(handle)
	if !ok {
		return fmt.Errorf("%w: handle %d", rule.ErrHandleNotFound, handle)
	}
	if f.Retracted {
		return fmt.Errorf("%w: handle %d", rule.ErrAlreadyRetracted, handle)
	}

	updated := *f
	updated.Retracted = true
	wm.facts.Store(handle, &updated)

	if bucket, ok := wm.typeIndex.Load(f.FactType); ok {
		bucket.Delete(handle)
	}

	wm.deltaMu.Lock()
	wm.retracted[handle] = struct{}{}
	wm.deltaMu.Unlock()

	wm.publish(FactEvent{Kind: FactRetracted, Fact: &updated})

	return nil
}

// Get returns a fact by handle, including retracted ones (callers that need
// "still reachable by handle until the next propagation clears them" per
// spec.md §3 should use this; live queries should use GetByType).
func (wm *WorkingMemory) Get(handle rule.FactHandle) (*rule.Fact, bool) {
	return wm.facts.Load(handle)
}

// GetByType returns every live (non-retracted) fact of the given type.
func (wm *WorkingMemory) GetByType(factType string) []*rule.Fact {
	bucket, ok := wm.typeIndex.Load(factType)
	if !ok {
		return nil
	}
	var out []*rule.Fact
	bucket.Range(func(handle rule.FactHandle, _ struct{}) bool {
		if f, ok := wm.facts.Load(handle); ok && !f.Retracted {
			out = append(out, f)
		}
		return true
	})
	return out
}

// Types returns every fact type currently represented by a live fact.
func (wm *WorkingMemory) Types() []string {
	var types []string
	wm.typeIndex.Range(func(t string, bucket *xsync.MapOf[rule.FactHandle, struct{}]) bool {
		if bucket.Size() > 0 {
			types = append(types, t)
		}
		return true
	})
	return types
}

// ModifiedDelta returns the handles inserted or updated since the last
// ClearDeltas call.
func (wm *WorkingMemory) ModifiedDelta() []rule.FactHandle {
	wm.deltaMu.Lock()
	defer wm.deltaMu.Unlock()
	out := make([]rule.FactHandle, 0, len(wm.modified))
	for h := range wm.modified {
		out = append(out, h)
	}
	return out
}

// RetractedDelta returns the handles retracted since the last ClearDeltas
// call.
func (wm *WorkingMemory) RetractedDelta() []rule.FactHandle {
	wm.deltaMu.Lock()
	defer wm.deltaMu.Unlock()
	out := make([]rule.FactHandle, 0, len(wm.retracted))
	for h := range wm.retracted {
		out = append(out, h)
	}
	return out
}

// ClearDeltas empties the modified/retracted delta sets and physically
// evicts retracted facts from the handle table (spec.md §4.2: "Physical
// eviction is deferred to the next delta-clear").
func (wm *WorkingMemory) ClearDeltas() {
	wm.deltaMu.Lock()
	retracted := wm.retracted
	wm.modified = make(map[rule.FactHandle]struct{})
	wm.retracted = make(map[rule.FactHandle]struct{})
	wm.deltaMu.Unlock()

	for h := range retracted {
		wm.facts.Delete(h)
	}
}

// ToFlatView materialises the single flat mapping described in spec.md
// §4.2: "{type}.{handle}.{field} = value" for every live fact, plus a
// canonical "{type}.{field}" alias for the first live instance of each
// type (by ascending handle), used by rules that don't need to distinguish
// instances.
func (wm *WorkingMemory) ToFlatView() *rule.FlatView {
	fv := rule.NewFlatView()
	firstByType := make(map[string]rule.FactHandle)

	wm.facts.Range(func(handle rule.FactHandle, f *rule.Fact) bool {
		if f.Retracted {
			return true
		}
		for field, v := range f.Fields {
			fv.Set(fmt.Sprintf("%s.%d.%s", f.FactType, handle, field), v)
		}
		if existing, ok := firstByType[f.FactType]; !ok || handle < existing {
			firstByType[f.FactType] = handle
		}
		return true
	})

	for factType, handle := range firstByType {
		f, ok := wm.facts.Load(handle)
		if !ok {
			continue
		}
		for field, v := range f.Fields {
			fv.Set(fmt.Sprintf("%s.%s", factType, field), v)
		}
	}

	return fv
}

// Len returns the number of live facts.
func (wm *WorkingMemory) Len() int {
	n := 0
	wm.facts.Range(func(_ rule.FactHandle, f *rule.Fact) bool {
		if !f.Retracted {
			n++
		}
		return true
	})
	return n
}
