package engine

import (
	"context"
	"testing"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
)

func TestAwakenToMaxLevel(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 0, nil)
	f.stack(t, "s-pyre", "p1", "pyre", 6, 4)

	res, err := f.engine.Awaken(context.Background(), AwakenRequest{PlayerID: "p1", StackID: "s-pyre"})
	if err != nil {
		t.Fatalf("awaken: %v", err)
	}
	if res.OldLevel != 4 || res.NewLevel != 5 || res.CopiesConsumed != 5 || res.Steps() != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Stack.Quantity != 1 || res.Stack.AwakeningLevel != 5 {
		t.Fatalf("stack = %+v", res.Stack)
	}
	// Whole-stack power: six copies at 1.8x, then one copy at 2.0x.
	if res.PowerBefore != 3456 || res.PowerAfter != 640 {
		t.Fatalf("power = %d -> %d, want 3456 -> 640", res.PowerBefore, res.PowerAfter)
	}
	if got := f.getPlayer(t, "p1").TotalAwakenings; got != 1 {
		t.Fatalf("total awakenings = %d, want 1", got)
	}

	_, err = f.engine.Awaken(context.Background(), AwakenRequest{PlayerID: "p1", StackID: "s-pyre"})
	if !apperrors.HasCode(err, apperrors.CodeAwakeningMaxLevel) {
		t.Fatalf("expected max level, got %v", err)
	}
}

func TestAwakenPowerPerCopyGrows(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 0, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 2, 0)

	res, err := f.engine.Awaken(context.Background(), AwakenRequest{PlayerID: "p1", StackID: "s-cinder"})
	if err != nil {
		t.Fatalf("awaken: %v", err)
	}
	// Tier 1 level 0 is 130 per copy; level 1 multiplies stats by 1.2.
	if res.PowerBefore != 260 || res.PowerAfter != 156 {
		t.Fatalf("power = %d -> %d, want 260 -> 156", res.PowerBefore, res.PowerAfter)
	}
}

func TestAwakenRejections(t *testing.T) {
	tests := []struct {
		name string
		req  AwakenRequest
		code apperrors.Code
	}{
		{name: "missing stack", req: AwakenRequest{PlayerID: "p1"}, code: apperrors.CodeRequestInvalid},
		{name: "unknown player", req: AwakenRequest{PlayerID: "ghost", StackID: "s-one"}, code: apperrors.CodePlayerNotFound},
		{name: "unknown stack", req: AwakenRequest{PlayerID: "p1", StackID: "gone"}, code: apperrors.CodeStackNotFound},
		{name: "foreign stack", req: AwakenRequest{PlayerID: "p1", StackID: "s-other"}, code: apperrors.CodeStackNotOwner},
		{name: "single copy", req: AwakenRequest{PlayerID: "p1", StackID: "s-one"}, code: apperrors.CodeAwakeningInsufficientCopies},
		{name: "cost equals quantity", req: AwakenRequest{PlayerID: "p1", StackID: "s-three"}, code: apperrors.CodeAwakeningInsufficientCopies},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.player(t, "p1", 0, nil)
			f.player(t, "p2", 0, nil)
			f.stack(t, "s-one", "p1", "cinder", 1, 0)
			f.stack(t, "s-three", "p1", "moss", 3, 2)
			f.stack(t, "s-other", "p2", "cinder", 5, 0)

			_, err := f.engine.Awaken(context.Background(), tc.req)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("error = %v, want %s", err, tc.code)
			}
			if got := f.copies(t, "p1"); got != 4 {
				t.Fatalf("copies = %d, want 4", got)
			}
			if tc.code == apperrors.CodeRequestInvalid {
				if len(f.log.records) != 0 {
					t.Fatalf("records = %+v, want none for malformed request", f.log.records)
				}
				return
			}
			if len(f.log.records) != 1 {
				t.Fatalf("records = %d, want 1", len(f.log.records))
			}
			rec := f.log.records[0]
			if rec.Kind != audit.KindAwakening || rec.Succeeded || rec.Cost != 0 {
				t.Fatalf("record = %+v", rec)
			}
			if got := rec.Detail[audit.DetailErrorCode]; got != string(tc.code) {
				t.Fatalf("error code = %q, want %s", got, tc.code)
			}
		})
	}
}

func TestAwakenBatchStopsEarly(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 0, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 10, 0)

	res, err := f.engine.AwakenBatch(context.Background(), AwakenBatchRequest{PlayerID: "p1", StackID: "s-cinder", Count: 5})
	if err != nil {
		t.Fatalf("awaken batch: %v", err)
	}
	// 10 -> 9 (L1) -> 7 (L2) -> 4 (L3); level 3 needs more than 4 copies.
	if res.Steps() != 3 || res.Stack.Quantity != 4 || res.CopiesConsumed != 6 {
		t.Fatalf("result = %+v", res)
	}
	if got := f.getPlayer(t, "p1").TotalAwakenings; got != 3 {
		t.Fatalf("total awakenings = %d, want 3", got)
	}
	if len(f.log.records) != 1 || f.log.records[0].Kind != audit.KindAwakening {
		t.Fatalf("records = %+v", f.log.records)
	}
	if got := f.log.records[0].Detail["new_level"]; got != "3" {
		t.Fatalf("recorded new level = %q", got)
	}
}

func TestAwakenBatchValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 0, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 1, 0)

	_, err := f.engine.AwakenBatch(context.Background(), AwakenBatchRequest{PlayerID: "p1", StackID: "s-cinder"})
	if !apperrors.HasCode(err, apperrors.CodeRequestInvalid) {
		t.Fatalf("expected request invalid, got %v", err)
	}
	_, err = f.engine.AwakenBatch(context.Background(), AwakenBatchRequest{PlayerID: "p1", StackID: "s-cinder", Count: 3})
	if !apperrors.HasCode(err, apperrors.CodeAwakeningInsufficientCopies) {
		t.Fatalf("expected insufficient copies, got %v", err)
	}
}

func TestAwakenInvalidatesCaches(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 0, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 3, 0)

	if _, err := f.engine.Awaken(context.Background(), AwakenRequest{PlayerID: "p1", StackID: "s-cinder"}); err != nil {
		t.Fatalf("awaken: %v", err)
	}
	if len(f.cache.power) != 1 || len(f.cache.stats) != 1 {
		t.Fatalf("invalidations = %v / %v", f.cache.power, f.cache.stats)
	}
}
