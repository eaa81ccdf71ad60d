package stream

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smilemakc/ruleforge/pkg/value"
)

func TestMemoryStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	if err := store.Put(ctx, "zone_1.count", value.Int(3), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := store.Get(ctx, "zone_1.count")
	if err != nil || !ok {
		t.Fatalf("expected a stored value, got ok=%v err=%v", ok, err)
	}
	if i, _ := value.AsInteger(v); i != 3 {
		t.Fatalf("expected 3, got %v", v)
	}

	if err := store.Delete(ctx, "zone_1.count"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "zone_1.count"); ok {
		t.Fatalf("expected key to be gone after delete")
	}
}

func TestMemoryStateStoreExpiresTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	if err := store.Put(ctx, "k", value.Str("v"), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected the key to have expired")
	}
}

func TestFileStateStoreWritesCheckpointLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStateStore(dir, "chk-1")

	if err := store.Put(ctx, "moisture.zone_1", value.Float(18.5), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := dir + "/chk-1/state.json"
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file at %s: %v", path, err)
	}

	reopened := NewFileStateStore(dir, "chk-1")
	v, ok, err := reopened.Get(ctx, "moisture.zone_1")
	if err != nil || !ok {
		t.Fatalf("expected the reopened store to read back the value, ok=%v err=%v", ok, err)
	}
	if f, _ := value.AsFloat(v); f != 18.5 {
		t.Fatalf("expected 18.5, got %v", v)
	}
}
