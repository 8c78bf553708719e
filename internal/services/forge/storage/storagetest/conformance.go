// Package storagetest holds behavior checks every storage.Store
// implementation must pass. Implementations call RunStoreConformance from
// their own tests with a constructor for a fresh, empty store.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/filter"
)

// Now is the fixed clock the conformance fixtures use.
var Now = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// Bases is a small catalog covering two tiers.
var Bases = []esprit.Base{
	{ID: "cinder-whelp", Name: "Cinder Whelp", Element: element.Inferno, Tier: 1, BaseAttack: 50, BaseDefense: 40, BaseHP: 400},
	{ID: "moss-sprite", Name: "Moss Sprite", Element: element.Verdant, Tier: 1, BaseAttack: 45, BaseDefense: 48, BaseHP: 420},
	{ID: "ember-drake", Name: "Ember Drake", Element: element.Inferno, Tier: 2, BaseAttack: 80, BaseDefense: 65, BaseHP: 650},
	{ID: "ash-hound", Name: "Ash Hound", Element: element.Inferno, Tier: 2, BaseAttack: 85, BaseDefense: 60, BaseHP: 640},
}

// RunStoreConformance runs the shared behavior checks.
func RunStoreConformance(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("player round trip", func(t *testing.T) { testPlayerRoundTrip(t, open(t)) })
	t.Run("duplicate player", func(t *testing.T) { testDuplicatePlayer(t, open(t)) })
	t.Run("rollback on error", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("stack identity", func(t *testing.T) { testStackIdentity(t, open(t)) })
	t.Run("find bases", func(t *testing.T) { testFindBases(t, open(t)) })
	t.Run("list stacks", func(t *testing.T) { testListStacks(t, open(t)) })
	t.Run("fragment journal", func(t *testing.T) { testFragmentJournal(t, open(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("negative balance", func(t *testing.T) { testNegativeBalance(t, open(t)) })
}

// Seed writes Bases and one player per id with the given currency.
func Seed(t *testing.T, store storage.Store, currency int64, playerIDs ...string) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutBases(ctx, Bases); err != nil {
		t.Fatalf("put bases: %v", err)
	}
	for _, id := range playerIDs {
		err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.InsertPlayer(ctx, esprit.NewPlayer(id, currency, Now))
		})
		if err != nil {
			t.Fatalf("insert player %s: %v", id, err)
		}
	}
}

// SaveStacks writes stacks in one transaction.
func SaveStacks(t *testing.T, store storage.Store, stacks ...esprit.Stack) {
	t.Helper()
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		for _, s := range stacks {
			if err := tx.SaveStack(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("save stacks: %v", err)
	}
}

// Stack builds a stack of base for owner.
func Stack(id, owner string, base esprit.Base, quantity int) esprit.Stack {
	return esprit.Stack{
		ID:        id,
		BaseID:    base.ID,
		OwnerID:   owner,
		Quantity:  quantity,
		Tier:      base.Tier,
		Element:   base.Element,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
}

func testPlayerRoundTrip(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, 1000, "p1")

	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetPlayerForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		p.Currency = 750
		p.TotalFusions = 2
		p.SetFragments(esprit.ElementKey(element.Tempest), 12)
		p.SetFragments(esprit.TierKey(4), 3)
		p.UpdatedAt = Now.Add(time.Minute)
		return tx.SavePlayer(ctx, p)
	})
	if err != nil {
		t.Fatalf("save player: %v", err)
	}

	got, err := store.GetPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	want := esprit.Player{
		ID:               "p1",
		Currency:         750,
		ElementFragments: map[element.Element]int{element.Tempest: 12},
		TierFragments:    map[int]int{4: 3},
		TotalFusions:     2,
		CreatedAt:        Now,
		UpdatedAt:        Now.Add(time.Minute),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("player mismatch (-want +got):\n%s", diff)
	}

	if _, err := store.GetPlayer(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing player err = %v, want %v", err, storage.ErrNotFound)
	}
}

func testDuplicatePlayer(t *testing.T, store storage.Store) {
	Seed(t, store, 0, "p1")
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertPlayer(ctx, esprit.NewPlayer("p1", 5, Now))
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate insert err = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func testRollback(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, 1000, "p1")
	SaveStacks(t, store, Stack("s1", "p1", Bases[0], 3))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetPlayerForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		p.Currency = 0
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
		if err := tx.DeleteStack(ctx, "s1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v, want %v", err, boom)
	}

	p, err := store.GetPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.Currency != 1000 {
		t.Fatalf("currency = %d, want 1000 after rollback", p.Currency)
	}
	if _, err := store.GetStack(ctx, "s1"); err != nil {
		t.Fatalf("stack after rollback: %v", err)
	}
}

func testStackIdentity(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, 0, "p1")
	SaveStacks(t, store, Stack("s1", "p1", Bases[0], 2))

	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		found, err := tx.FindStack(ctx, esprit.StackKey{OwnerID: "p1", BaseID: Bases[0].ID, Tier: 1, Element: element.Inferno})
		if err != nil {
			return err
		}
		if found.ID != "s1" {
			return fmt.Errorf("found %s, want s1", found.ID)
		}
		if _, err := tx.FindStack(ctx, esprit.StackKey{OwnerID: "p1", BaseID: Bases[1].ID, Tier: 1, Element: element.Verdant}); !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("find missing err = %v", err)
		}
		found.Quantity = 5
		found.AwakeningLevel = 1
		return tx.SaveStack(ctx, found)
	})
	if err != nil {
		t.Fatalf("update stack: %v", err)
	}
	got, err := store.GetStack(ctx, "s1")
	if err != nil {
		t.Fatalf("get stack: %v", err)
	}
	if got.Quantity != 5 || got.AwakeningLevel != 1 {
		t.Fatalf("stack = %+v, want quantity 5 level 1", got)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.SaveStack(ctx, Stack("s2", "p1", Bases[0], 1))
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("second stack with same identity err = %v, want %v", err, storage.ErrAlreadyExists)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.DeleteStack(ctx, "s1"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("delete stack: %v", err)
	}
	if _, err := store.GetStack(ctx, "s1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted stack err = %v, want %v", err, storage.ErrNotFound)
	}
}

func testFindBases(t *testing.T, store storage.Store) {
	Seed(t, store, 0)
	var got []esprit.Base
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		got, err = tx.FindBases(ctx, 2, element.Inferno)
		return err
	})
	if err != nil {
		t.Fatalf("find bases: %v", err)
	}
	want := []esprit.Base{Bases[3], Bases[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bases mismatch (-want +got):\n%s", diff)
	}

	all, err := store.ListBases(context.Background())
	if err != nil {
		t.Fatalf("list bases: %v", err)
	}
	if len(all) != len(Bases) {
		t.Fatalf("bases = %d, want %d", len(all), len(Bases))
	}
}

func testListStacks(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, 0, "p1", "p2")
	SaveStacks(t, store,
		Stack("a", "p1", Bases[0], 4),
		Stack("b", "p1", Bases[1], 1),
		Stack("c", "p1", Bases[2], 2),
		Stack("d", "p2", Bases[2], 9),
	)

	expr, err := filter.Parse(`element = "inferno"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	got, err := store.ListStacks(ctx, storage.ListStacksQuery{OwnerID: "p1", Filter: expr, OrderBy: "tier"})
	if err != nil {
		t.Fatalf("list stacks: %v", err)
	}
	if ids := stackIDs(got); !cmp.Equal(ids, []string{"a", "c"}) {
		t.Fatalf("filtered ids = %v, want [a c]", ids)
	}

	page, err := store.ListStacks(ctx, storage.ListStacksQuery{OwnerID: "p1", OrderBy: "quantity desc", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if ids := stackIDs(page); !cmp.Equal(ids, []string{"c", "b"}) {
		t.Fatalf("page ids = %v, want [c b]", ids)
	}

	if _, err := store.ListStacks(ctx, storage.ListStacksQuery{OwnerID: "p1", OrderBy: "power"}); err == nil {
		t.Fatal("expected unknown order error")
	}
}

func testFragmentJournal(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, 0, "p1")
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		for i, delta := range []int{5, -3, 2} {
			entry := storage.FragmentEntry{
				PlayerID:  "p1",
				Key:       esprit.ElementKey(element.Abyssal),
				Delta:     delta,
				Reason:    "admin_grant",
				CreatedAt: Now.Add(time.Duration(i) * time.Second),
			}
			if err := tx.AppendFragmentEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append entries: %v", err)
	}
	entries, err := store.ListFragmentEntries(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Delta != 2 || entries[1].Delta != -3 {
		t.Fatalf("entries = %+v, want newest two", entries)
	}
	if entries[0].Key != esprit.ElementKey(element.Abyssal) {
		t.Fatalf("key = %v", entries[0].Key)
	}
}

func testTransactions(t *testing.T, store storage.Store) {
	ctx := context.Background()
	record := storage.TransactionRecord{
		ID:        "tx-1",
		Kind:      "fusion",
		PlayerID:  "p1",
		Inputs:    []string{"a", "b"},
		Succeeded: true,
		Cost:      500,
		Result:    "stack-9",
		Detail:    map[string]string{"seed": "42"},
		CreatedAt: Now,
	}
	if err := store.RecordTransaction(ctx, record); err != nil {
		t.Fatalf("record transaction: %v", err)
	}
	if err := store.RecordTransaction(ctx, record); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate record err = %v, want %v", err, storage.ErrAlreadyExists)
	}
	got, err := store.ListTransactions(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if diff := cmp.Diff([]storage.TransactionRecord{record}, got); diff != "" {
		t.Fatalf("transactions mismatch (-want +got):\n%s", diff)
	}
}

func testNegativeBalance(t *testing.T, store storage.Store) {
	Seed(t, store, 10, "p1")
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetPlayerForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		p.Currency = -1
		return tx.SavePlayer(ctx, p)
	})
	if !esprit.IsInvariant(err) {
		t.Fatalf("negative currency err = %v, want invariant violation", err)
	}
}

func stackIDs(stacks []esprit.Stack) []string {
	ids := make([]string, len(stacks))
	for i, s := range stacks {
		ids[i] = s.ID
	}
	return ids
}
