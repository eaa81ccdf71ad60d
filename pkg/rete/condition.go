package rete

import (
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// evalConditionWithContext evaluates cond starting from ctx (an existing
// binding/handle context), producing every Match that extends ctx. This is
// the beta-join evaluator: And threads the right child through every left
// match in turn (a cartesian join with constraints applied via bindings),
// Or unions both sides, Not/Exists/Forall test Inner against ctx without
// extending the handle list, and Accumulate folds a source pattern's facts
// into a bound aggregate (spec.md §4.3, §4.4). It reads facts exclusively
// through an, the network's persistent alpha memories, never rescanning
// working memory itself.
func evalConditionWithContext(cond *rule.Condition, an *alphaNetwork, ctx Match) []Match {
	if cond == nil {
		return []Match{ctx}
	}

	switch cond.Kind {
	case rule.ConditionSingle:
		return evalPattern(cond.Pattern, an, ctx)

	case rule.ConditionAnd:
		var out []Match
		for _, left := range evalConditionWithContext(cond.Left, an, ctx) {
			out = append(out, evalConditionWithContext(cond.Right, an, left)...)
		}
		return out

	case rule.ConditionOr:
		out := evalConditionWithContext(cond.Left, an, ctx)
		out = append(out, evalConditionWithContext(cond.Right, an, ctx)...)
		return out

	case rule.ConditionNot, rule.ConditionForall:
		// FORALL = NOT(exists counter-example); vacuous truth on an empty
		// domain falls out for free since "no counter-example exists" is
		// the same test either way (spec.md §4.3).
		if len(evalConditionWithContext(cond.Inner, an, ctx)) == 0 {
			return []Match{ctx}
		}
		return nil

	case rule.ConditionExists:
		if len(evalConditionWithContext(cond.Inner, an, ctx)) > 0 {
			return []Match{ctx}
		}
		return nil

	case rule.ConditionAccumulate:
		return evalAccumulate(cond.Accumulate, an, ctx)

	case rule.ConditionStreamPattern:
		// Stream patterns are matched by the windowed join pipeline in
		// pkg/stream, not the working-memory-backed network; a rule whose
		// condition tree embeds one never fires through this path.
		return nil
	}
	return nil
}

func evalPattern(p *rule.Pattern, an *alphaNetwork, ctx Match) []Match {
	var out []Match
	for _, f := range an.memoryFor(p.FactType).sorted() {
		bindings, ok := matchSingle(p, f, ctx.Bindings)
		if !ok {
			continue
		}
		out = append(out, ctx.extend(bindings, f.Handle))
	}
	return out
}

func evalAccumulate(spec *rule.AccumulateSpec, an *alphaNetwork, ctx Match) []Match {
	if spec == nil || spec.Source == nil {
		return nil
	}

	var handles []rule.FactHandle
	var nums []float64
	for _, f := range an.memoryFor(spec.Source.FactType).sorted() {
		if _, ok := matchSingle(spec.Source, f, ctx.Bindings); !ok {
			continue
		}
		handles = append(handles, f.Handle)
		if spec.Accumulator == rule.AccCount {
			continue
		}
		fv, ok := f.Get(spec.ExtractField)
		if !ok {
			continue
		}
		n, ok := value.AsFloat(fv)
		if ok {
			nums = append(nums, n)
		}
	}

	result, ok := fold(spec.Accumulator, handles, nums)
	if !ok {
		return nil
	}

	extended := ctx.withBinding(spec.BindVar, result)
	extended.Handles = append(extended.Handles, handles...)

	if spec.Having == nil {
		return []Match{extended}
	}
	return evalConditionWithContext(spec.Having, an, extended)
}

func fold(acc rule.AccumulatorKind, handles []rule.FactHandle, nums []float64) (value.Value, bool) {
	switch acc {
	case rule.AccCount:
		return value.Int(len(handles)), true
	case rule.AccSum:
		var s float64
		for _, n := range nums {
			s += n
		}
		return value.Float(s), true
	case rule.AccAvg:
		if len(nums) == 0 {
			return value.Float(0), true
		}
		var s float64
		for _, n := range nums {
			s += n
		}
		return value.Float(s / float64(len(nums))), true
	case rule.AccMin:
		if len(nums) == 0 {
			return nil, false
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return value.Float(m), true
	case rule.AccMax:
		if len(nums) == 0 {
			return nil, false
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return value.Float(m), true
	}
	return nil, false
}
