package agenda

import "sync"

// MainGroup is the default, pre-created agenda group; it cannot be removed
// (spec.md §4.5: "'MAIN' is pre-created and cannot be removed").
const MainGroup = "MAIN"

// Agenda is the priority queue described in spec.md §4.5: one heap per
// agenda group, a focus stack selecting which group's heap Next() pulls
// from, and the fired-rule/fired-activation-group/locked-group/
// active-ruleflow-group bookkeeping that implements no-loop,
// activation-group exclusivity, lock-on-active, and ruleflow gating.
type Agenda struct {
	mu sync.Mutex

	groups map[string]*groupQueue
	focus  []string // stack; last element is current focus

	firedRules            map[string]struct{}
	firedActivationGroups map[string]struct{}
	lockedGroups          map[string]struct{}
	activeRuleflowGroups  map[string]struct{}

	nextID int64
}

// New creates an Agenda with MAIN pre-created and focused.
func New() *Agenda {
	a := &Agenda{
		groups:                map[string]*groupQueue{MainGroup: newGroupQueue()},
		focus:                 []string{MainGroup},
		firedRules:            make(map[string]struct{}),
		firedActivationGroups: make(map[string]struct{}),
		lockedGroups:          make(map[string]struct{}),
		activeRuleflowGroups:  make(map[string]struct{}),
	}
	return a
}

// NextActivationID returns a fresh monotonic activation id. The engine
// façade calls this when the terminal node produces a new activation, so ID
// assignment order matches match-discovery order.
func (a *Agenda) NextActivationID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	return a.nextID
}

func (a *Agenda) groupFor(name string) *groupQueue {
	if name == "" {
		name = MainGroup
	}
	gq, ok := a.groups[name]
	if !ok {
		gq = newGroupQueue()
		a.groups[name] = gq
	}
	return gq
}

// ActivateRuleflowGroup marks a ruleflow group active, allowing activations
// gated on it to be added (spec.md §3 "Ruleflow group").
func (a *Agenda) ActivateRuleflowGroup(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeRuleflowGroups[name] = struct{}{}
}

// DeactivateRuleflowGroup clears a ruleflow group's active flag.
func (a *Agenda) DeactivateRuleflowGroup(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.activeRuleflowGroups, name)
}

// Add enqueues an activation per spec.md §4.5 `add(activation)`:
//   - auto_focus pushes the activation's group onto the focus stack if it
//     isn't already the current focus.
//   - an activation whose activation group already fired, or whose
//     ruleflow group isn't active, is dropped.
//   - otherwise it is enqueued into its agenda group's heap.
func (a *Agenda) Add(act *Activation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	group := act.AgendaGroup
	if group == "" {
		group = MainGroup
	}

	if act.RuleflowGroup != "" {
		if _, active := a.activeRuleflowGroups[act.RuleflowGroup]; !active {
			return
		}
	}

	if act.ActivationGroup != "" {
		if _, fired := a.firedActivationGroups[act.ActivationGroup]; fired {
			return
		}
	}

	if act.AutoFocus && a.currentFocusLocked() != group {
		a.focus = append(a.focus, group)
	}

	a.groupFor(group).push(act)
}

func (a *Agenda) currentFocusLocked() string {
	if len(a.focus) == 0 {
		return ""
	}
	return a.focus[len(a.focus)-1]
}

// CurrentFocus returns the agenda group currently receiving pops.
func (a *Agenda) CurrentFocus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentFocusLocked()
}

// SetFocus pushes group onto the focus stack, making it the current focus
// until it is exhausted and popped.
func (a *Agenda) SetFocus(group string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focus = append(a.focus, group)
}

// Next pops the next eligible activation per spec.md §4.5 `next()`: it
// skips activations whose rule already fired (no_loop), whose own
// lock_on_active flag is set while their agenda group is locked, or whose
// activation group already fired; when the current focus's heap is
// exhausted it pops the focus stack, returning nil once MAIN is exhausted.
// MAIN itself stays at the bottom of the stack, so activations added to it
// later are still returned. A locked group only suppresses its own
// lock_on_active activations, not every activation pending in the group.
func (a *Agenda) Next() *Activation {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.focus) > 0 {
		group := a.focus[len(a.focus)-1]
		gq := a.groupFor(group)

		for !gq.empty() {
			act := gq.pop()

			if act.NoLoop {
				if _, fired := a.firedRules[act.RuleName]; fired {
					continue
				}
			}
			if act.LockOnActive {
				if _, locked := a.lockedGroups[group]; locked {
					continue
				}
			}
			if act.ActivationGroup != "" {
				if _, fired := a.firedActivationGroups[act.ActivationGroup]; fired {
					continue
				}
			}
			return act
		}

		if len(a.focus) == 1 {
			break
		}
		a.focus = a.focus[:len(a.focus)-1]
	}

	return nil
}

// MarkFired records that an activation fired: its rule name is added to
// fired_rules (no-loop bookkeeping); if it belongs to an activation group,
// that group is marked fired (exclusivity); if lock_on_active is set, its
// agenda group is locked (spec.md §4.5 `mark_fired(act)`).
func (a *Agenda) MarkFired(act *Activation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.firedRules[act.RuleName] = struct{}{}
	if act.ActivationGroup != "" {
		a.firedActivationGroups[act.ActivationGroup] = struct{}{}
	}
	if act.LockOnActive {
		group := act.AgendaGroup
		if group == "" {
			group = MainGroup
		}
		a.lockedGroups[group] = struct{}{}
	}
}

// IsEmpty reports whether every group on the focus stack has no pending
// activations. A locked agenda group counts as empty whatever it holds. It
// does not mutate the focus stack.
func (a *Agenda) IsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, group := range a.focus {
		if !a.groupFor(group).empty() {
			if _, locked := a.lockedGroups[group]; !locked {
				return false
			}
		}
	}
	return true
}

// Reset clears fired-rule/fired-activation-group/locked-group bookkeeping
// for the next cycle pass, matching the "per cycle pass" scope of
// spec.md §8 "No-loop suppression".
func (a *Agenda) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.firedRules = make(map[string]struct{})
	a.firedActivationGroups = make(map[string]struct{})
	a.lockedGroups = make(map[string]struct{})
}
