package memory

import (
	"errors"
	"testing"

	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

func TestInsertAssignsMonotonicHandles(t *testing.T) {
	wm := New()
	h1 := wm.Insert("Customer", map[string]value.Value{"Points": value.Int(100)})
	h2 := wm.Insert("Customer", map[string]value.Value{"Points": value.Int(200)})

	if h1 == 0 || h2 == 0 || h1 == h2 {
		t.Fatalf("expected distinct nonzero handles, got %d %d", h1, h2)
	}
	if h2 <= h1 {
		t.Fatalf("expected h2 > h1, got %d, %d", h1, h2)
	}
}

func TestTypeIndexConsistency(t *testing.T) {
	wm := New()
	h := wm.Insert("Customer", map[string]value.Value{"Points": value.Int(100)})

	facts := wm.GetByType("Customer")
	if len(facts) != 1 || facts[0].Handle != h {
		t.Fatalf("expected single Customer fact with handle %d, got %+v", h, facts)
	}
}

func TestUpdateUnknownHandle(t *testing.T) {
	wm := New()
	err := wm.Update(999, nil)
	if !errors.Is(err, rule.ErrHandleNotFound) {
		t.Fatalf("expected ErrHandleNotFound, got %v", err)
	}
}

func TestRetractThenUpdateFails(t *testing.T) {
	wm := New()
	h := wm.Insert("Customer", map[string]value.Value{"Points": value.Int(100)})
	if err := wm.Retract(h); err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	if err := wm.Update(h, map[string]value.Value{"Points": value.Int(200)}); !errors.Is(err, rule.ErrAlreadyRetracted) {
		t.Fatalf("expected ErrAlreadyRetracted, got %v", err)
	}
	if facts := wm.GetByType("Customer"); len(facts) != 0 {
		t.Fatalf("retracted fact should be invisible to GetByType, got %+v", facts)
	}
}

func TestDeltasClearedAfterCycle(t *testing.T) {
	wm := New()
	h := wm.Insert("Customer", map[string]value.Value{"Points": value.Int(100)})
	if len(wm.ModifiedDelta()) != 1 {
		t.Fatalf("expected 1 modified handle")
	}
	wm.ClearDeltas()
	if len(wm.ModifiedDelta()) != 0 {
		t.Fatalf("expected modified delta cleared")
	}

	if err := wm.Retract(h); err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	if len(wm.RetractedDelta()) != 1 {
		t.Fatalf("expected 1 retracted handle")
	}
	wm.ClearDeltas()
	if len(wm.RetractedDelta()) != 0 {
		t.Fatalf("expected retracted delta cleared")
	}
	if _, ok := wm.Get(h); ok {
		t.Fatalf("expected handle physically evicted after delta clear")
	}
}

func TestFlatView(t *testing.T) {
	wm := New()
	h := wm.Insert("Customer", map[string]value.Value{"Points": value.Int(1500)})

	fv := wm.ToFlatView()
	if v, ok := fv.Get("Customer.Points"); !ok || v.(value.Int) != 1500 {
		t.Fatalf("expected canonical Customer.Points = 1500, got %v,%v", v, ok)
	}
	key := "Customer." + value.Int(int64(h)).String() + ".Points"
	if v, ok := fv.Get(key); !ok || v.(value.Int) != 1500 {
		t.Fatalf("expected %s = 1500, got %v,%v", key, v, ok)
	}
}
