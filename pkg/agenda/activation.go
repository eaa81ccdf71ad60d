// Package agenda implements the conflict-resolution queue: a priority
// queue of activations with agenda-group focus stacks, no-loop,
// lock-on-active, and activation-group exclusivity (spec.md §4.5).
package agenda

import "time"

// Activation is a rule instance whose conditions currently match, awaiting
// firing (spec.md §3 "Activation").
type Activation struct {
	ID              int64
	RuleName        string
	Salience        int
	AgendaGroup     string
	ActivationGroup string
	RuleflowGroup   string
	NoLoop          bool
	LockOnActive    bool
	AutoFocus       bool
	CreatedAt       time.Time

	// Bindings carries the variable bindings the terminal node produced,
	// so the engine façade can resolve $var references in the rule's
	// action list without re-matching.
	Bindings map[string]any
	// Handles lists the fact handles bound by this activation's match, used
	// for TMS justification premises on InsertLogicalFact actions and for
	// error reporting (spec.md §7).
	Handles []uint64
}

// Less orders activations per spec.md §3 "Activation... Ordering: salience
// descending; on tie, earlier creation instant", with a final tie-break on
// monotonic ID for full determinism (spec.md §8 "Agenda determinism").
func Less(a, b *Activation) bool {
	if a.Salience != b.Salience {
		return a.Salience > b.Salience
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
