package backward

import (
	"testing"

	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

func chainRule(name, fromField, toField string) *rule.Rule {
	return &rule.Rule{
		Name: name,
		Condition: rule.Condition{
			Kind: rule.ConditionSingle,
			Pattern: &rule.Pattern{
				Kind: rule.PatternSimple, Field: fromField,
				Op: value.OpEqual, Literal: value.Bool(true),
			},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionSet, Field: toField, Value: value.Bool(true)},
		},
	}
}

// S5 (spec.md §8): chain A==true -> B; B==true -> C; C==true -> D. Facts
// {A: true}. Query "D == true" must be provable under every strategy, with
// a 3-step proof trace.
func TestChainedProofAllStrategies(t *testing.T) {
	rules := []*rule.Rule{
		chainRule("AtoB", "A", "B"),
		chainRule("BtoC", "B", "C"),
		chainRule("CtoD", "C", "D"),
	}
	facts := map[string]value.Value{"A": value.Bool(true)}

	for _, strategy := range []Strategy{DepthFirst, BreadthFirst, IterativeDeepening} {
		e := New(rules, strategy, 10)
		result, err := e.Prove("D == true", facts)
		if err != nil {
			t.Fatalf("strategy %v: unexpected error: %v", strategy, err)
		}
		if !result.Provable {
			t.Fatalf("strategy %v: expected D == true to be provable, missing=%v", strategy, result.MissingFacts)
		}
		if len(result.ProofTrace) != 3 {
			t.Fatalf("strategy %v: expected 3-step proof trace, got %d: %+v", strategy, len(result.ProofTrace), result.ProofTrace)
		}
	}
}

func TestUnprovableGoalReportsMissingFacts(t *testing.T) {
	e := New(nil, DepthFirst, 10)
	result, err := e.Prove("Z == true", map[string]value.Value{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provable {
		t.Fatalf("expected Z == true to be unprovable with no rules")
	}
	if len(result.MissingFacts) != 1 || result.MissingFacts[0] != "Z" {
		t.Fatalf("expected missing_facts=[Z], got %v", result.MissingFacts)
	}
}

func TestProveIdempotentWithCache(t *testing.T) {
	rules := []*rule.Rule{chainRule("AtoB", "A", "B")}
	facts := map[string]value.Value{"A": value.Bool(true)}
	e := New(rules, DepthFirst, 10)

	first, err := e.Prove("B == true", facts)
	if err != nil || !first.Provable {
		t.Fatalf("expected first proof to succeed: %v %v", first, err)
	}
	before := e.Stats.RulesEvaluated

	second, err := e.Prove("B == true", facts)
	if err != nil || !second.Provable {
		t.Fatalf("expected second proof to succeed: %v %v", second, err)
	}
	if e.Stats.RulesEvaluated != before {
		t.Fatalf("expected cache hit to explore zero additional rules, went from %d to %d", before, e.Stats.RulesEvaluated)
	}
	if e.Stats.CacheHits == 0 {
		t.Fatalf("expected at least one cache hit")
	}
}

// TestBreadthFirstPrefersShallowCandidateOverDeepHighSalience constructs a
// field with two candidate rules: a high-salience one that only resolves
// through a 3-step chain, and a low-salience one whose premise is already a
// known fact. DepthFirst always commits to the highest-salience candidate
// first and pays for the whole chain; BreadthFirst checks every candidate's
// direct satisfiability before recursing into any of them, so it resolves
// through the shallow low-salience candidate instead and never touches the
// chain at all.
func TestBreadthFirstPrefersShallowCandidateOverDeepHighSalience(t *testing.T) {
	rules := []*rule.Rule{
		chainRule("AtoB", "A", "B"),
		chainRule("BtoC", "B", "C"),
		{
			Name:     "ResultFromC",
			Salience: 10,
			Condition: rule.Condition{
				Kind: rule.ConditionSingle,
				Pattern: &rule.Pattern{
					Kind: rule.PatternSimple, Field: "C",
					Op: value.OpEqual, Literal: value.Bool(true),
				},
			},
			Actions: []rule.Action{{Kind: rule.ActionSet, Field: "Result", Value: value.Bool(true)}},
		},
		{
			Name:     "ResultFromD",
			Salience: 1,
			Condition: rule.Condition{
				Kind: rule.ConditionSingle,
				Pattern: &rule.Pattern{
					Kind: rule.PatternSimple, Field: "D",
					Op: value.OpEqual, Literal: value.Bool(true),
				},
			},
			Actions: []rule.Action{{Kind: rule.ActionSet, Field: "Result", Value: value.Bool(true)}},
		},
	}
	facts := map[string]value.Value{"A": value.Bool(true), "D": value.Bool(true)}

	dfs := New(rules, DepthFirst, 10)
	dfsResult, err := dfs.Prove("Result == true", facts)
	if err != nil {
		t.Fatalf("DepthFirst: unexpected error: %v", err)
	}
	if !dfsResult.Provable || len(dfsResult.ProofTrace) != 3 {
		t.Fatalf("DepthFirst: expected a 3-step proof through the chain, got %+v", dfsResult)
	}
	if dfsResult.ProofTrace[len(dfsResult.ProofTrace)-1].Rule != "ResultFromC" {
		t.Fatalf("DepthFirst: expected the high-salience chain candidate to conclude Result, got %+v", dfsResult.ProofTrace)
	}

	bfs := New(rules, BreadthFirst, 10)
	bfsResult, err := bfs.Prove("Result == true", facts)
	if err != nil {
		t.Fatalf("BreadthFirst: unexpected error: %v", err)
	}
	if !bfsResult.Provable || len(bfsResult.ProofTrace) != 1 {
		t.Fatalf("BreadthFirst: expected a 1-step proof bypassing the chain, got %+v", bfsResult)
	}
	if bfsResult.ProofTrace[0].Rule != "ResultFromD" {
		t.Fatalf("BreadthFirst: expected the shallow candidate to conclude Result, got %+v", bfsResult.ProofTrace)
	}
}

// TestIterativeDeepeningReexploresAtEachBound proves the same 3-deep chain
// IDS and DFS both succeed at, and asserts IDS evaluates strictly more rules:
// it replays the search at bound=1 and bound=2 (both fail, since the chain
// needs depth 3) before succeeding at bound=3, where plain DepthFirst
// searches once at the full MaxDepth and succeeds in a single pass.
func TestIterativeDeepeningReexploresAtEachBound(t *testing.T) {
	rules := []*rule.Rule{
		chainRule("AtoB", "A", "B"),
		chainRule("BtoC", "B", "C"),
		chainRule("CtoD", "C", "D"),
	}
	facts := map[string]value.Value{"A": value.Bool(true)}

	dfs := New(rules, DepthFirst, 10)
	dfsResult, err := dfs.Prove("D == true", facts)
	if err != nil || !dfsResult.Provable {
		t.Fatalf("DepthFirst: expected D == true provable, got %+v err=%v", dfsResult, err)
	}

	ids := New(rules, IterativeDeepening, 10)
	idsResult, err := ids.Prove("D == true", facts)
	if err != nil || !idsResult.Provable {
		t.Fatalf("IterativeDeepening: expected D == true provable, got %+v err=%v", idsResult, err)
	}

	if ids.Stats.RulesEvaluated <= dfs.Stats.RulesEvaluated {
		t.Fatalf("expected IterativeDeepening to re-explore more rules than a single DepthFirst pass, got ids=%d dfs=%d",
			ids.Stats.RulesEvaluated, dfs.Stats.RulesEvaluated)
	}
}

func TestInvalidateDropsDependentProofs(t *testing.T) {
	rules := []*rule.Rule{chainRule("AtoB", "A", "B")}
	facts := map[string]value.Value{"A": value.Bool(true)}
	e := New(rules, DepthFirst, 10)

	if _, err := e.Prove("B == true", facts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.cache.Len() != 1 {
		t.Fatalf("expected 1 cached proof, got %d", e.cache.Len())
	}

	e.Invalidate("A")
	if e.cache.Len() != 0 {
		t.Fatalf("expected invalidating premise A to drop the cached proof, got %d entries", e.cache.Len())
	}
}
