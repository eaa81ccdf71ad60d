package rule

import (
	"fmt"
	"sync"
	"time"

	"github.com/itchyny/gojq"

	"github.com/smilemakc/ruleforge/pkg/value"
)

// FactHandle opaquely identifies a fact for its entire lifetime in working
// memory. Handles are monotonically increasing and never reused within a
// session (spec.md §3).
type FactHandle uint64

// Fact is a named record with typed fields, the unit of data the
// discrimination network matches against (spec.md §3 "Fact").
type Fact struct {
	Handle     FactHandle
	FactType   string
	Fields     map[string]value.Value
	InsertedAt time.Time
	UpdatedAt  time.Time
	UpdateCount int
	Retracted   bool
}

// NewFact constructs a Fact with the given type and fields. Handle/timestamps
// are assigned by working memory on Insert.
func NewFact(factType string, fields map[string]value.Value) *Fact {
	if fields == nil {
		fields = make(map[string]value.Value)
	}
	return &Fact{FactType: factType, Fields: fields}
}

// Get resolves a field by simple name or, for nested Object/Array fields, a
// gojq path expression such as ".address.city" or ".items[0]". Simple names
// (no leading '.') are looked up directly for the common case before
// falling back to gojq, since the hot path in the discrimination network is
// single-field lookups.
func (f *Fact) Get(path string) (value.Value, bool) {
	if path == "" {
		return nil, false
	}
	if v, ok := f.Fields[path]; ok {
		return v, true
	}
	if path[0] != '.' {
		path = "." + path
	}

	query, err := gojq.Parse(path)
	if err != nil {
		return nil, false
	}

	iter := query.Run(rawFields(f.Fields))
	result, ok := iter.Next()
	if !ok {
		return nil, false
	}
	if err, isErr := result.(error); isErr {
		_ = err
		return nil, false
	}
	if result == nil {
		return nil, false
	}
	return value.FromRaw(result), true
}

func rawFields(fields map[string]value.Value) map[string]any {
	raw := make(map[string]any, len(fields))
	for k, v := range fields {
		raw[k] = v.Raw()
	}
	return raw
}

// Key returns a stable "{FactType}.{Handle}" string used as the flat-view
// row key (spec.md §4.2 "to_flat_view").
func (f *Fact) Key() string {
	return fmt.Sprintf("%s.%d", f.FactType, f.Handle)
}

// FactKey canonically identifies what a fact or a goal concludes about:
// a fact type, an optional field, and normalized pattern text (spec.md §3
// "Proof graph node"). Used as the cache key of the backward engine's proof
// cache; the RETE network does not use it.
type FactKey struct {
	FactType string
	Field    string
	Pattern  string
}

func (k FactKey) String() string {
	if k.Field == "" {
		return k.FactType + "#" + k.Pattern
	}
	return k.FactType + "." + k.Field + "#" + k.Pattern
}

// flatViewEntry is one row of the flattened working-memory view.
type flatViewEntry struct {
	Key   string
	Value value.Value
}

// FlatView is the single flat mapping of "{type}.{handle}.{field}" (and the
// canonical "{type}.{field}" alias for the first live instance of each
// type) used by single-object condition evaluation (spec.md §4.2).
type FlatView struct {
	mu      sync.RWMutex
	entries map[string]value.Value
}

// NewFlatView constructs an empty flat view.
func NewFlatView() *FlatView {
	return &FlatView{entries: make(map[string]value.Value)}
}

// Set assigns a flat-view key.
func (v *FlatView) Set(key string, val value.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[key] = val
}

// Get looks up a flat-view key.
func (v *FlatView) Get(key string) (value.Value, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.entries[key]
	return val, ok
}

// Snapshot returns a defensive copy of the current entries, for evaluation
// passes that want a stable view while working memory continues to mutate.
func (v *FlatView) Snapshot() map[string]value.Value {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]value.Value, len(v.entries))
	for k, val := range v.entries {
		out[k] = val
	}
	return out
}
