// Package rete implements the discrimination network: alpha-pattern
// matching, beta joins (AND/OR/NOT/EXISTS/FORALL), accumulate nodes, and
// incremental propagation driven by a fact_type -> rules dependency map
// (spec.md §4.3).
package rete

import (
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// Match is a partial (or, at the root, complete) binding environment
// produced while walking a rule's condition tree: the variable bindings
// accumulated so far, and the fact handles contributing to them in
// left-input-then-right-input order (spec.md §4.3 "Ordering").
type Match struct {
	Bindings map[string]value.Value
	Handles  []rule.FactHandle
}

func emptyMatch() Match {
	return Match{Bindings: map[string]value.Value{}}
}

// extend returns a new Match carrying bindings merged on top of m's existing
// bindings, plus handle appended. m itself is never mutated, since the same
// Match is reused as the starting context for multiple sibling candidates.
func (m Match) extend(bindings map[string]value.Value, handle rule.FactHandle) Match {
	nb := make(map[string]value.Value, len(m.Bindings)+len(bindings))
	for k, v := range m.Bindings {
		nb[k] = v
	}
	for k, v := range bindings {
		nb[k] = v
	}
	nh := make([]rule.FactHandle, len(m.Handles), len(m.Handles)+1)
	copy(nh, m.Handles)
	nh = append(nh, handle)
	return Match{Bindings: nb, Handles: nh}
}

// withBinding returns a new Match with var bound to v and no additional
// fact handle, used by accumulate nodes that bind a synthetic aggregate
// rather than a single matched fact.
func (m Match) withBinding(v string, val value.Value) Match {
	nb := make(map[string]value.Value, len(m.Bindings)+1)
	for k, bv := range m.Bindings {
		nb[k] = bv
	}
	if v != "" {
		nb[v] = val
	}
	return Match{Bindings: nb, Handles: append([]rule.FactHandle(nil), m.Handles...)}
}

func cloneBindings(b map[string]value.Value) map[string]value.Value {
	nb := make(map[string]value.Value, len(b))
	for k, v := range b {
		nb[k] = v
	}
	return nb
}
