package backward

import (
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// fieldKeyOf returns the flat-fact-base key a pattern reads: the qualified
// "{FactType}.{Field}" form when the pattern names a fact type, else the
// bare field name (backward-chaining goals in spec.md §8's S5 scenario
// address fields directly: "A == true").
func fieldKeyOf(p *rule.Pattern) string {
	if p.FactType != "" {
		return p.FactType + "." + p.Field
	}
	return p.Field
}

func lookupField(facts map[string]value.Value, key string) (value.Value, bool) {
	v, ok := facts[key]
	return v, ok
}

// evalPatternFlat tests a single leaf pattern against the current flat fact
// base, without attempting to derive any missing field (spec.md §4.7 step 1
// "If G already evaluates true on F").
func evalPatternFlat(p *rule.Pattern, facts map[string]value.Value) bool {
	key := fieldKeyOf(p)
	v, ok := lookupField(facts, key)
	if !ok {
		v, ok = lookupField(facts, p.Field)
	}

	switch p.Kind {
	case rule.PatternSimple:
		return ok && value.Compare(v, p.Op, p.Literal)
	case rule.PatternBinding:
		return ok
	case rule.PatternVariable:
		// Backward proof search operates over a single flat fact world,
		// not per-instance bindings threaded through a join; a Variable
		// pattern with no bound value to compare against is unprovable.
		return false
	case rule.PatternMultiField:
		return evalMultiFieldFlat(p, v, ok)
	}
	return false
}

func evalMultiFieldFlat(p *rule.Pattern, v value.Value, ok bool) bool {
	if !ok {
		return false
	}
	arr, isArr := v.(value.Array)
	if !isArr {
		return false
	}
	switch p.MultiOp {
	case rule.MultiIsEmpty:
		return len(arr) == 0
	case rule.MultiNotEmpty:
		return len(arr) != 0
	case rule.MultiContains:
		for _, el := range arr {
			if value.Compare(el, value.OpEqual, p.Literal) {
				return true
			}
		}
		return false
	case rule.MultiCount:
		return value.Compare(value.Int(len(arr)), p.Op, p.Literal)
	default:
		return false
	}
}

// evalConditionFlat evaluates a condition tree against a single flat fact
// snapshot without recursive subgoal derivation; used for Not/Exists/Forall
// subtrees, which backward chaining tests directly rather than trying to
// derive a negation (spec.md §4.7 describes derivation only for the
// positive leaf case).
func evalConditionFlat(cond *rule.Condition, facts map[string]value.Value) bool {
	if cond == nil {
		return true
	}
	switch cond.Kind {
	case rule.ConditionSingle:
		return evalPatternFlat(cond.Pattern, facts)
	case rule.ConditionAnd:
		return evalConditionFlat(cond.Left, facts) && evalConditionFlat(cond.Right, facts)
	case rule.ConditionOr:
		return evalConditionFlat(cond.Left, facts) || evalConditionFlat(cond.Right, facts)
	case rule.ConditionNot, rule.ConditionForall:
		return !evalConditionFlat(cond.Inner, facts)
	case rule.ConditionExists:
		return evalConditionFlat(cond.Inner, facts)
	default:
		return false
	}
}

// fieldsOfCondition collects the field keys referenced by a condition
// tree's leaf patterns, used both as the rule's "premises" in a recorded
// proof step and to compute missing_facts.
func fieldsOfCondition(cond *rule.Condition) []string {
	if cond == nil {
		return nil
	}
	var out []string
	var walk func(c *rule.Condition)
	walk = func(c *rule.Condition) {
		if c == nil {
			return
		}
		switch c.Kind {
		case rule.ConditionSingle:
			if c.Pattern != nil {
				out = append(out, fieldKeyOf(c.Pattern))
			}
		case rule.ConditionAnd, rule.ConditionOr:
			walk(c.Left)
			walk(c.Right)
		case rule.ConditionNot, rule.ConditionExists, rule.ConditionForall:
			walk(c.Inner)
		case rule.ConditionAccumulate:
			if c.Accumulate != nil && c.Accumulate.Source != nil {
				out = append(out, fieldKeyOf(c.Accumulate.Source))
			}
		}
	}
	walk(cond)
	return out
}
