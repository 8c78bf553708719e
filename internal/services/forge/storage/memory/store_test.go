package memory

import (
	"context"
	"testing"

	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.RunStoreConformance(t, func(t *testing.T) storage.Store {
		return New()
	})
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	store := New()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := store.GetPlayer(context.Background(), "p1"); err == nil {
		t.Fatal("expected closed store error")
	}
}

func TestSaveStackRequiresKnownBase(t *testing.T) {
	store := New()
	storagetest.Seed(t, store, 0, "p1")
	stack := storagetest.Stack("s1", "p1", storagetest.Bases[0], 1)
	stack.BaseID = "missing"
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.SaveStack(ctx, stack)
	})
	if err == nil {
		t.Fatal("expected unknown base error")
	}
}
