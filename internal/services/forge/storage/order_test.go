package storage

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

func TestEveryStackOrderHasSQL(t *testing.T) {
	for _, order := range StackOrders {
		if _, ok := StackOrderSQL(order); !ok {
			t.Fatalf("order %q has no SQL", order)
		}
	}
	if _, ok := StackOrderSQL("power desc"); ok {
		t.Fatal("unknown order should be rejected")
	}
	if got, _ := StackOrderSQL(""); got != stackOrderSQL[DefaultStackOrder] {
		t.Fatalf("default order = %q", got)
	}
}

func TestSortStacks(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stacks := []esprit.Stack{
		{ID: "c", Tier: 2, AwakeningLevel: 0, Quantity: 5, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a", Tier: 4, AwakeningLevel: 1, Quantity: 1, CreatedAt: base},
		{ID: "b", Tier: 4, AwakeningLevel: 3, Quantity: 2, CreatedAt: base.Add(time.Minute)},
		{ID: "d", Tier: 2, AwakeningLevel: 0, Quantity: 5, CreatedAt: base.Add(3 * time.Minute)},
	}
	tests := []struct {
		order string
		want  []string
	}{
		{"", []string{"b", "a", "c", "d"}},
		{"tier", []string{"c", "d", "a", "b"}},
		{"quantity desc", []string{"c", "d", "b", "a"}},
		{"created_at desc", []string{"d", "c", "b", "a"}},
		{"awakening_level desc", []string{"b", "a", "c", "d"}},
	}
	for _, tt := range tests {
		got := append([]esprit.Stack(nil), stacks...)
		SortStacks(got, tt.order)
		ids := make([]string, len(got))
		for i, s := range got {
			ids[i] = s.ID
		}
		if diff := cmp.Diff(tt.want, ids); diff != "" {
			t.Fatalf("order %q mismatch (-want +got):\n%s", tt.order, diff)
		}
	}
}
