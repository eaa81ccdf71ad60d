package tms

import (
	"testing"

	"github.com/smilemakc/ruleforge/pkg/rule"
)

func TestExplicitJustificationAlwaysValid(t *testing.T) {
	g := New()
	g.AddExplicitJustification(1)
	if !g.HasValidJustification(1) {
		t.Fatalf("expected explicit justification to be valid")
	}
}

// S4 scenario (spec.md §8): Base == true → Derived asserted logically.
// Retracting Base must cascade-retract Derived.
func TestCascadeRetractsDerivedFact(t *testing.T) {
	g := New()
	g.AddExplicitJustification(1) // Base
	g.AddLogicalJustification(2, "R1", []rule.FactHandle{1})
	if !g.HasValidJustification(2) {
		t.Fatalf("expected Derived to be valid while Base is live")
	}

	cascaded := g.RetractWithCascade(1)
	if len(cascaded) != 2 {
		t.Fatalf("expected Base and Derived to both cascade, got %v", cascaded)
	}
	if g.HasValidJustification(1) || g.HasValidJustification(2) {
		t.Fatalf("expected both Base and Derived to be invalid after cascade")
	}
}

func TestMultipleJustificationsSurviveSinglePremiseLoss(t *testing.T) {
	g := New()
	g.AddExplicitJustification(1)                                // BaseA
	g.AddExplicitJustification(2)                                // BaseB
	g.AddLogicalJustification(3, "R1", []rule.FactHandle{1})      // Derived, justified by BaseA
	g.AddLogicalJustification(3, "R2", []rule.FactHandle{2})      // ...and independently by BaseB

	cascaded := g.RetractWithCascade(1)
	if len(cascaded) != 1 || cascaded[0] != 1 {
		t.Fatalf("expected only BaseA to retract, got %v", cascaded)
	}
	if !g.HasValidJustification(3) {
		t.Fatalf("expected Derived to remain valid via its second justification")
	}
}

func TestDiamondDependencyCascadesOnce(t *testing.T) {
	g := New()
	g.AddExplicitJustification(1)                           // Base
	g.AddLogicalJustification(2, "R1", []rule.FactHandle{1}) // Mid1
	g.AddLogicalJustification(3, "R2", []rule.FactHandle{1}) // Mid2
	g.AddLogicalJustification(4, "R3", []rule.FactHandle{2, 3})

	cascaded := g.RetractWithCascade(1)
	if len(cascaded) != 4 {
		t.Fatalf("expected all 4 handles to cascade exactly once, got %v", cascaded)
	}
}
