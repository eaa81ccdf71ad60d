package agenda

import (
	"testing"
	"time"
)

func TestSalienceOrdering(t *testing.T) {
	a := New()
	low := &Activation{ID: 1, RuleName: "low", Salience: 1, CreatedAt: time.Now()}
	high := &Activation{ID: 2, RuleName: "high", Salience: 10, CreatedAt: time.Now()}
	a.Add(low)
	a.Add(high)

	first := a.Next()
	if first == nil || first.RuleName != "high" {
		t.Fatalf("expected high-salience activation first, got %+v", first)
	}
	second := a.Next()
	if second == nil || second.RuleName != "low" {
		t.Fatalf("expected low-salience activation second, got %+v", second)
	}
	if a.Next() != nil {
		t.Fatalf("expected agenda to be drained")
	}
}

func TestCreationOrderTieBreak(t *testing.T) {
	a := New()
	t0 := time.Now()
	first := &Activation{ID: 1, RuleName: "first", Salience: 5, CreatedAt: t0}
	second := &Activation{ID: 2, RuleName: "second", Salience: 5, CreatedAt: t0.Add(time.Millisecond)}
	a.Add(second)
	a.Add(first)

	if got := a.Next(); got == nil || got.RuleName != "first" {
		t.Fatalf("expected earlier-created activation to fire first, got %+v", got)
	}
}

func TestNoLoopSuppressesRefiring(t *testing.T) {
	a := New()
	act := &Activation{ID: 1, RuleName: "self-looping", Salience: 0, CreatedAt: time.Now(), NoLoop: true}
	a.Add(act)
	fired := a.Next()
	if fired == nil {
		t.Fatalf("expected first activation to fire")
	}
	a.MarkFired(fired)

	// A re-derived activation for the same rule should be suppressed once
	// the rule has fired, per spec.md §8 "No-loop suppression".
	reActivation := &Activation{ID: 2, RuleName: "self-looping", Salience: 0, CreatedAt: time.Now(), NoLoop: true}
	a.Add(reActivation)
	if got := a.Next(); got != nil {
		t.Fatalf("expected no-loop to suppress refiring, got %+v", got)
	}
}

func TestActivationGroupExclusivity(t *testing.T) {
	a := New()
	t0 := time.Now()
	rA := &Activation{ID: 1, RuleName: "A", Salience: 5, CreatedAt: t0, ActivationGroup: "choice"}
	rB := &Activation{ID: 2, RuleName: "B", Salience: 1, CreatedAt: t0, ActivationGroup: "choice"}
	a.Add(rA)
	a.Add(rB)

	fired := a.Next()
	if fired == nil || fired.RuleName != "A" {
		t.Fatalf("expected higher-salience A to fire first, got %+v", fired)
	}
	a.MarkFired(fired)

	if got := a.Next(); got != nil {
		t.Fatalf("expected activation group to suppress B after A fired, got %+v", got)
	}
}

func TestLockOnActiveOnlySuppressesLockOnActiveActivations(t *testing.T) {
	a := New()
	act := &Activation{ID: 1, RuleName: "locker", Salience: 0, AgendaGroup: MainGroup, CreatedAt: time.Now(), LockOnActive: true}
	a.Add(act)
	fired := a.Next()
	a.MarkFired(fired)

	// locker's group is now locked. A later lock_on_active activation in
	// that same group must be suppressed...
	lockedLater := &Activation{ID: 2, RuleName: "locked-later", Salience: 0, AgendaGroup: MainGroup, CreatedAt: time.Now(), LockOnActive: true}
	a.Add(lockedLater)
	if got := a.Next(); got != nil {
		t.Fatalf("expected lock_on_active activation to be suppressed in a locked group, got %+v", got)
	}

	// ...but an activation with no lock_on_active flag of its own must
	// still fire, per the original source's get_next_activation: only
	// activation.lock_on_active && locked(group) is tested, not the group
	// as a whole.
	plainLater := &Activation{ID: 3, RuleName: "plain-later", Salience: 0, AgendaGroup: MainGroup, CreatedAt: time.Now()}
	a.Add(plainLater)
	if got := a.Next(); got == nil || got.RuleName != "plain-later" {
		t.Fatalf("expected non-lock_on_active activation to still fire in a locked group, got %+v", got)
	}
}

func TestFocusStackSwitchesGroups(t *testing.T) {
	a := New()
	main := &Activation{ID: 1, RuleName: "main-rule", Salience: 0, AgendaGroup: MainGroup, CreatedAt: time.Now()}
	a.Add(main)

	sub := &Activation{ID: 2, RuleName: "sub-rule", Salience: 0, AgendaGroup: "sub", CreatedAt: time.Now()}
	a.SetFocus("sub")
	a.Add(sub)

	first := a.Next()
	if first == nil || first.RuleName != "sub-rule" {
		t.Fatalf("expected focused 'sub' group to take priority, got %+v", first)
	}
	a.MarkFired(first)

	second := a.Next()
	if second == nil || second.RuleName != "main-rule" {
		t.Fatalf("expected focus to fall back to MAIN once 'sub' is exhausted, got %+v", second)
	}
}

func TestRuleflowGroupGatesActivation(t *testing.T) {
	a := New()
	act := &Activation{ID: 1, RuleName: "gated", Salience: 0, RuleflowGroup: "phase1", CreatedAt: time.Now()}
	a.Add(act)
	if got := a.Next(); got != nil {
		t.Fatalf("expected inactive ruleflow group to gate activation, got %+v", got)
	}

	a.ActivateRuleflowGroup("phase1")
	a.Add(act)
	if got := a.Next(); got == nil || got.RuleName != "gated" {
		t.Fatalf("expected activation once ruleflow group is active, got %+v", got)
	}
}
