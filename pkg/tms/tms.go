// Package tms implements the Truth Maintenance System: a justification
// graph over fact handles, supporting cascaded retraction when a derived
// fact's last supporting premise disappears (spec.md §4.6).
package tms

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/smilemakc/ruleforge/pkg/rule"
)

// Kind distinguishes why a fact is believed.
type Kind int

const (
	// Explicit justifications are always valid; they back facts the host
	// inserted directly.
	Explicit Kind = iota
	// Logical justifications are valid iff every premise handle is live;
	// they back facts a rule derived via an InsertLogicalFact action.
	Logical
)

func (k Kind) String() string {
	if k == Explicit {
		return "explicit"
	}
	return "logical"
}

// JustificationID is a monotonic arena index, never a pointer — justification
// and fact nodes form cyclic dependency webs, so cross-references are
// resolved by id lookup rather than ownership (spec.md REDESIGN FLAGS,
// "Arena + handles instead of back-pointers").
type JustificationID uint64

// Justification records why a fact handle is believed: its kind, the rule
// that derived it (empty for Explicit), the premise handles it depends on,
// and when it was recorded (spec.md §3 "Justification (TMS)").
type Justification struct {
	ID         JustificationID
	Handle     rule.FactHandle
	Kind       Kind
	SourceRule string
	Premises   []rule.FactHandle
	CreatedAt  time.Time
}

// TMS is the justification graph. byHandle indexes every justification that
// supports a given fact; byPremise indexes, for each premise handle, the
// justifications that list it as a dependency — the "dependents index" the
// cascade walks.
type TMS struct {
	mu sync.Mutex

	nextID atomic.Uint64

	byHandle  map[rule.FactHandle][]*Justification
	byPremise map[rule.FactHandle][]*Justification

	retracted map[rule.FactHandle]struct{}
}

// New creates an empty justification graph.
func New() *TMS {
	return &TMS{
		byHandle:  make(map[rule.FactHandle][]*Justification),
		byPremise: make(map[rule.FactHandle][]*Justification),
		retracted: make(map[rule.FactHandle]struct{}),
	}
}

// AddExplicitJustification records that handle is believed because the host
// inserted it directly. Explicit justifications never need premises and are
// always valid.
func (t *TMS) AddExplicitJustification(handle rule.FactHandle) *Justification {
	return t.add(&Justification{Handle: handle, Kind: Explicit})
}

// AddLogicalJustification records that handle was derived by sourceRule from
// the given premise handles. It is valid only while every premise is live.
func (t *TMS) AddLogicalJustification(handle rule.FactHandle, sourceRule string, premises []rule.FactHandle) *Justification {
	return t.add(&Justification{Handle: handle, Kind: Logical, SourceRule: sourceRule, Premises: premises})
}

func (t *TMS) add(j *Justification) *Justification {
	t.mu.Lock()
	defer t.mu.Unlock()

	j.ID = JustificationID(t.nextID.Add(1))
	j.CreatedAt = time.Now()
	t.byHandle[j.Handle] = append(t.byHandle[j.Handle], j)
	for _, p := range j.Premises {
		t.byPremise[p] = append(t.byPremise[p], j)
	}
	delete(t.retracted, j.Handle)
	return j
}

// HasValidJustification reports whether handle has at least one
// justification whose premises (if any) are all live. Explicit
// justifications are unconditionally valid.
func (t *TMS) HasValidJustification(handle rule.FactHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasValidLocked(handle)
}

func (t *TMS) hasValidLocked(handle rule.FactHandle) bool {
	for _, j := range t.byHandle[handle] {
		if t.validLocked(j) {
			return true
		}
	}
	return false
}

func (t *TMS) validLocked(j *Justification) bool {
	if j.Kind == Explicit {
		return true
	}
	for _, p := range j.Premises {
		if _, dead := t.retracted[p]; dead {
			return false
		}
	}
	return true
}

// RetractWithCascade marks handle retracted, then walks the dependents index:
// for every justification that lists handle as a premise, if that
// justification's owning fact has no other valid justification, that fact is
// recursively cascade-retracted too. Returns every handle retracted as a
// result of this call, including handle itself, in retraction order
// (spec.md §4.6 `retract_with_cascade`).
func (t *TMS) RetractWithCascade(handle rule.FactHandle) []rule.FactHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cascaded []rule.FactHandle
	t.cascadeLocked(handle, &cascaded)
	return cascaded
}

func (t *TMS) cascadeLocked(handle rule.FactHandle, cascaded *[]rule.FactHandle) {
	if _, already := t.retracted[handle]; already {
		return
	}
	t.retracted[handle] = struct{}{}
	delete(t.byHandle, handle)
	*cascaded = append(*cascaded, handle)

	dependents := t.byPremise[handle]
	delete(t.byPremise, handle)

	seen := make(map[rule.FactHandle]struct{})
	for _, j := range dependents {
		owner := j.Handle
		if _, done := seen[owner]; done {
			continue
		}
		seen[owner] = struct{}{}
		if _, already := t.retracted[owner]; already {
			continue
		}
		if !t.hasValidLocked(owner) {
			t.cascadeLocked(owner, cascaded)
		}
	}
}

// Justifications returns every justification currently recorded for handle,
// live or not.
func (t *TMS) Justifications(handle rule.FactHandle) []*Justification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Justification, len(t.byHandle[handle]))
	copy(out, t.byHandle[handle])
	return out
}

// IsRetracted reports whether handle has gone through RetractWithCascade.
func (t *TMS) IsRetracted(handle rule.FactHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.retracted[handle]
	return ok
}
