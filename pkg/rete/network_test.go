package rete

import (
	"testing"

	"github.com/smilemakc/ruleforge/pkg/memory"
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

func simplePattern(factType, field string, op value.Operator, lit value.Value) *rule.Pattern {
	return &rule.Pattern{Kind: rule.PatternSimple, FactType: factType, Field: field, Op: op, Literal: lit}
}

func TestAndJoinBindsAcrossPatterns(t *testing.T) {
	wm := memory.New()
	wm.Insert("Customer", map[string]value.Value{"Tier": value.Str("gold")})
	wm.Insert("Order", map[string]value.Value{"Total": value.Int(500)})

	cond := rule.Condition{
		Kind: rule.ConditionAnd,
		Left: &rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Customer", "Tier", value.OpEqual, value.Str("gold"))},
		Right: &rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Order", "Total", value.OpGreaterEqual, value.Int(100))},
	}
	r := &rule.Rule{Name: "GoldDiscount", Condition: cond}
	net := New([]*rule.Rule{r})

	acts := net.Evaluate("GoldDiscount", wm)
	if len(acts) != 1 {
		t.Fatalf("expected 1 activation, got %d", len(acts))
	}
	if len(acts[0].Match.Handles) != 2 {
		t.Fatalf("expected match to carry both fact handles, got %v", acts[0].Match.Handles)
	}
}

func TestNotSuppressesWhenCounterExamplePresent(t *testing.T) {
	wm := memory.New()
	wm.Insert("Customer", map[string]value.Value{"Tier": value.Str("gold")})
	wm.Insert("Flag", map[string]value.Value{"Blocked": value.Bool(true)})

	cond := rule.Condition{
		Kind: rule.ConditionAnd,
		Left: &rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Customer", "Tier", value.OpEqual, value.Str("gold"))},
		Right: &rule.Condition{
			Kind:  rule.ConditionNot,
			Inner: &rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Flag", "Blocked", value.OpEqual, value.Bool(true))},
		},
	}
	r := &rule.Rule{Name: "UnblockedGold", Condition: cond}
	net := New([]*rule.Rule{r})

	if acts := net.Evaluate("UnblockedGold", wm); len(acts) != 0 {
		t.Fatalf("expected NOT to suppress the match, got %d activations", len(acts))
	}
}

func TestExistsRequiresAtLeastOneMatch(t *testing.T) {
	wm := memory.New()
	wm.Insert("Alert", map[string]value.Value{"Severity": value.Str("critical")})

	cond := rule.Condition{
		Kind:  rule.ConditionExists,
		Inner: &rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Alert", "Severity", value.OpEqual, value.Str("critical"))},
	}
	r := &rule.Rule{Name: "HasCriticalAlert", Condition: cond}
	net := New([]*rule.Rule{r})

	if acts := net.Evaluate("HasCriticalAlert", wm); len(acts) != 1 {
		t.Fatalf("expected EXISTS to match, got %d", len(acts))
	}
}

func TestForallVacuouslyTrueOnEmptyDomain(t *testing.T) {
	wm := memory.New()
	cond := rule.Condition{
		Kind:  rule.ConditionForall,
		Inner: &rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Order", "Total", value.OpLess, value.Int(0))},
	}
	r := &rule.Rule{Name: "AllOrdersNonNegative", Condition: cond}
	net := New([]*rule.Rule{r})

	if acts := net.Evaluate("AllOrdersNonNegative", wm); len(acts) != 1 {
		t.Fatalf("expected FORALL to be vacuously true on an empty domain, got %d activations", len(acts))
	}
}

func TestAccumulateSumBindsTotal(t *testing.T) {
	wm := memory.New()
	wm.Insert("Order", map[string]value.Value{"CustomerID": value.Int(1), "Total": value.Int(100)})
	wm.Insert("Order", map[string]value.Value{"CustomerID": value.Int(1), "Total": value.Int(250)})
	wm.Insert("Order", map[string]value.Value{"CustomerID": value.Int(2), "Total": value.Int(10)})

	cond := rule.Condition{
		Kind: rule.ConditionAccumulate,
		Accumulate: &rule.AccumulateSpec{
			Source:       simplePattern("Order", "CustomerID", value.OpEqual, value.Int(1)),
			Accumulator:  rule.AccSum,
			ExtractField: "Total",
			BindVar:      "$spend",
		},
	}
	r := &rule.Rule{Name: "BigSpender", Condition: cond}
	net := New([]*rule.Rule{r})

	acts := net.Evaluate("BigSpender", wm)
	if len(acts) != 1 {
		t.Fatalf("expected 1 accumulate activation, got %d", len(acts))
	}
	spend, ok := value.AsFloat(acts[0].Match.Bindings["$spend"])
	if !ok || spend != 350 {
		t.Fatalf("expected $spend=350, got %v", acts[0].Match.Bindings["$spend"])
	}
}

func TestPropagateOnlyEvaluatesDependentRules(t *testing.T) {
	wm := memory.New()
	wm.Insert("Customer", map[string]value.Value{"Tier": value.Str("gold")})

	customerRule := &rule.Rule{
		Name:      "CustomerRule",
		Condition: rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Customer", "Tier", value.OpEqual, value.Str("gold"))},
	}
	orderRule := &rule.Rule{
		Name:      "OrderRule",
		Condition: rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Order", "Total", value.OpGreaterEqual, value.Int(1))},
	}
	net := New([]*rule.Rule{customerRule, orderRule})

	acts := net.Propagate(wm, []string{"Customer"})
	if len(acts) != 1 || acts[0].RuleName != "CustomerRule" {
		t.Fatalf("expected only CustomerRule to re-evaluate on a Customer delta, got %+v", acts)
	}
}

func TestEvaluationWavesSeparateOverlappingTypes(t *testing.T) {
	a := &rule.Rule{Name: "A", Condition: rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("X", "F", value.OpEqual, value.Int(1))}}
	b := &rule.Rule{Name: "B", Condition: rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("X", "F", value.OpEqual, value.Int(2))}}
	c := &rule.Rule{Name: "C", Condition: rule.Condition{Kind: rule.ConditionSingle, Pattern: simplePattern("Y", "F", value.OpEqual, value.Int(1))}}
	net := New([]*rule.Rule{a, b, c})

	waves := net.EvaluationWaves()
	if len(waves) == 0 {
		t.Fatalf("expected at least one wave")
	}
	first := waves[0]
	names := map[string]bool{}
	for _, r := range first {
		names[r.Name] = true
	}
	if names["A"] && names["B"] {
		t.Fatalf("expected A and B (both depend on X) to land in different waves")
	}
	if !names["C"] {
		t.Fatalf("expected C (depends on Y only) to join the first wave")
	}
}
