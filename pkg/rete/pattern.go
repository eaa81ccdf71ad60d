package rete

import (
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// matchSingle implements spec.md §4.4 `match(P, facts, bindings_in)` for
// one fact against one pattern constraint. It returns the bindings to merge
// into the caller's context on success, or (nil, false) on no match; the
// caller decides whether to merge or discard.
func matchSingle(p *rule.Pattern, f *rule.Fact, bindings map[string]value.Value) (map[string]value.Value, bool) {
	switch p.Kind {
	case rule.PatternSimple:
		v, ok := f.Get(p.Field)
		if !ok || !value.Compare(v, p.Op, p.Literal) {
			return nil, false
		}
		return nil, true

	case rule.PatternBinding:
		v, ok := f.Get(p.Field)
		if !ok {
			return nil, false
		}
		return map[string]value.Value{p.Var: v}, true

	case rule.PatternVariable:
		bound, ok := bindings[p.Var]
		if !ok {
			return nil, false
		}
		v, ok := f.Get(p.Field)
		if !ok || !value.Compare(v, p.VarOp, bound) {
			return nil, false
		}
		return nil, true

	case rule.PatternMultiField:
		v, ok := f.Get(p.Field)
		if !ok {
			return nil, false
		}
		arr, ok := v.(value.Array)
		if !ok {
			return nil, false
		}
		return matchMultiField(p, arr)
	}
	return nil, false
}

func matchMultiField(p *rule.Pattern, arr value.Array) (map[string]value.Value, bool) {
	switch p.MultiOp {
	case rule.MultiCollect:
		return bindOrTrue(p.Var, arr), true

	case rule.MultiContains:
		for _, el := range arr {
			if value.Compare(el, value.OpEqual, p.Literal) {
				return nil, true
			}
		}
		return nil, false

	case rule.MultiCount:
		return bindOrCompare(p, value.Int(len(arr)))

	case rule.MultiFirst:
		if len(arr) == 0 {
			return nil, false
		}
		return bindOrCompare(p, arr[0])

	case rule.MultiLast:
		if len(arr) == 0 {
			return nil, false
		}
		return bindOrCompare(p, arr[len(arr)-1])

	case rule.MultiIndex:
		if p.Index < 0 || p.Index >= len(arr) {
			return nil, false
		}
		return bindOrCompare(p, arr[p.Index])

	case rule.MultiSlice:
		start, end := p.SliceStart, p.SliceEnd
		if start < 0 {
			start = 0
		}
		if end > len(arr) {
			end = len(arr)
		}
		if start > end {
			return nil, false
		}
		return bindOrTrue(p.Var, value.Array(append(value.Array(nil), arr[start:end]...))), true

	case rule.MultiIsEmpty:
		return nil, len(arr) == 0

	case rule.MultiNotEmpty:
		return nil, len(arr) != 0
	}
	return nil, false
}

func bindOrTrue(v string, val value.Value) map[string]value.Value {
	if v == "" {
		return nil
	}
	return map[string]value.Value{v: val}
}

func bindOrCompare(p *rule.Pattern, val value.Value) (map[string]value.Value, bool) {
	if p.Var != "" {
		return map[string]value.Value{p.Var: val}, true
	}
	return nil, value.Compare(val, p.Op, p.Literal)
}
