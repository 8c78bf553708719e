package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/platform/random"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/fusion"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/memory"
)

func TestFuseSameElementSuccess(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 1000, nil)
	f.stack(t, "s-pyre", "p1", "pyre", 2, 0)
	f.stack(t, "s-kiln", "p1", "kiln", 1, 0)

	// Single-shape chart: the success roll is the first draw.
	seed := findSeed(t, func(r *random.Roller) bool { return r.Chance(0.65) })

	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-pyre", StackBID: "s-kiln", Seed: seedPtr(seed),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if !out.Succeeded || !out.ProducedCreature() {
		t.Fatalf("expected a produced creature, got %+v", out)
	}
	if out.SuccessRate != 0.65 {
		t.Fatalf("rate = %v, want 0.65", out.SuccessRate)
	}
	if out.CostPaid != 500 || out.ResultTier != 4 || out.ResultElement != element.Inferno {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.ResultBaseID != "blaze" && out.ResultBaseID != "forge" {
		t.Fatalf("result base = %q", out.ResultBaseID)
	}
	if out.Consolation != nil {
		t.Fatalf("unexpected consolation %+v", out.Consolation)
	}
	if diff := cmp.Diff([]string{"s-kiln"}, out.DeletedStackIDs); diff != "" {
		t.Fatalf("deleted stacks (-want +got):\n%s", diff)
	}

	p := f.getPlayer(t, "p1")
	if p.Currency != 500 {
		t.Fatalf("currency = %d, want 500", p.Currency)
	}
	if p.TotalFusions != 1 || p.SuccessfulFusions != 1 {
		t.Fatalf("counters = %d/%d", p.TotalFusions, p.SuccessfulFusions)
	}
	left, err := f.store.GetStack(context.Background(), "s-pyre")
	if err != nil {
		t.Fatalf("get stack: %v", err)
	}
	if left.Quantity != 1 {
		t.Fatalf("input quantity = %d, want 1", left.Quantity)
	}
	if _, err := f.store.GetStack(context.Background(), "s-kiln"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("emptied stack should be deleted, got %v", err)
	}
	result, err := f.store.GetStack(context.Background(), out.ResultStack.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.Tier != 4 || result.Quantity != 1 || result.AwakeningLevel != 0 {
		t.Fatalf("result stack = %+v", result)
	}
}

func TestFuseCrossElementUsesChart(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 100, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 1, 0)
	f.stack(t, "s-tide", "p1", "tide", 1, 0)

	seed := findSeed(t, func(r *random.Roller) bool { return r.Chance(0.60) })
	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-tide", Seed: seedPtr(seed),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if out.SuccessRate != 0.60 {
		t.Fatalf("rate = %v, want 0.60", out.SuccessRate)
	}
	if out.ResultElement != element.Tempest || out.ResultBaseID != "gale" {
		t.Fatalf("outcome = %+v", out)
	}
	if got := f.getPlayer(t, "p1").Currency; got != 0 {
		t.Fatalf("currency = %d, want 0", got)
	}
	if diff := cmp.Diff([]string{"s-cinder", "s-tide"}, out.DeletedStackIDs); diff != "" {
		t.Fatalf("deleted stacks (-want +got):\n%s", diff)
	}
}

func TestFuseFailureGrantsConsolation(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 600, nil)
	f.stack(t, "s-pyre", "p1", "pyre", 4, 0)

	seed := findSeed(t, func(r *random.Roller) bool { return !r.Chance(0.65) })
	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-pyre", StackBID: "s-pyre", Seed: seedPtr(seed),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if out.Succeeded || out.ResultStack != nil {
		t.Fatalf("expected failure, got %+v", out)
	}
	want := &fusion.FragmentGrant{Element: element.Inferno, Amount: 1, Reason: fusion.ReasonFailure}
	if diff := cmp.Diff(want, out.Consolation); diff != "" {
		t.Fatalf("consolation (-want +got):\n%s", diff)
	}
	if out.CostPaid != 500 {
		t.Fatalf("cost = %d, want 500", out.CostPaid)
	}

	p := f.getPlayer(t, "p1")
	if p.Currency != 100 {
		t.Fatalf("currency = %d, want 100", p.Currency)
	}
	if p.ElementFragments[element.Inferno] != 1 {
		t.Fatalf("inferno fragments = %d, want 1", p.ElementFragments[element.Inferno])
	}
	if p.TotalFusions != 1 || p.SuccessfulFusions != 0 {
		t.Fatalf("counters = %d/%d", p.TotalFusions, p.SuccessfulFusions)
	}
	if got := f.copies(t, "p1"); got != 2 {
		t.Fatalf("copies = %d, want 2", got)
	}

	entries, err := f.store.ListFragmentEntries(context.Background(), "p1", 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Delta != 1 || entries[0].Reason != fusion.ReasonFailure {
		t.Fatalf("journal = %+v", entries)
	}
}

func TestFuseNoTargetGrantsFragments(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 100, nil)
	f.stack(t, "s-moss", "p1", "moss", 2, 0)

	seed := findSeed(t, func(r *random.Roller) bool { return r.Chance(0.75) })
	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-moss", StackBID: "s-moss", Seed: seedPtr(seed),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if !out.Succeeded || out.ProducedCreature() {
		t.Fatalf("expected success with no creature, got %+v", out)
	}
	want := &fusion.FragmentGrant{Element: element.Verdant, Amount: 1, Reason: fusion.ReasonNoTarget}
	if diff := cmp.Diff(want, out.Consolation); diff != "" {
		t.Fatalf("consolation (-want +got):\n%s", diff)
	}
	p := f.getPlayer(t, "p1")
	if p.TotalFusions != 1 || p.SuccessfulFusions != 0 {
		t.Fatalf("counters = %d/%d", p.TotalFusions, p.SuccessfulFusions)
	}
	if p.ElementFragments[element.Verdant] != 1 {
		t.Fatalf("verdant fragments = %d", p.ElementFragments[element.Verdant])
	}
	if diff := cmp.Diff([]string{"s-moss"}, out.DeletedStackIDs); diff != "" {
		t.Fatalf("self fusion should empty the stack (-want +got):\n%s", diff)
	}
	if got := f.copies(t, "p1"); got != 0 {
		t.Fatalf("copies = %d, want 0", got)
	}
}

func TestFuseGuaranteeConsumesFragments(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 100, map[esprit.FragmentKey]int{esprit.ElementKey(element.Tempest): 12})
	f.stack(t, "s-cinder", "p1", "cinder", 1, 0)
	f.stack(t, "s-tide", "p1", "tide", 1, 0)

	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-tide", UseFragments: true, Seed: seedPtr(1),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if !out.Succeeded || !out.Guaranteed || out.SuccessRate != 1 {
		t.Fatalf("expected guaranteed success, got %+v", out)
	}
	if out.FragmentsConsumed != fusion.GuaranteeFragments || out.ResultBaseID != "gale" {
		t.Fatalf("outcome = %+v", out)
	}
	p := f.getPlayer(t, "p1")
	if p.ElementFragments[element.Tempest] != 2 {
		t.Fatalf("tempest fragments = %d, want 2", p.ElementFragments[element.Tempest])
	}
	if p.Currency != 0 || p.SuccessfulFusions != 1 {
		t.Fatalf("player = %+v", p)
	}
}

func TestFuseGuaranteeAlwaysSucceeds(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		f := newFixture(t, nil)
		f.player(t, "p1", 100, map[esprit.FragmentKey]int{esprit.ElementKey(element.Inferno): 10})
		f.stack(t, "s-cinder", "p1", "cinder", 2, 0)
		out, err := f.engine.Fuse(context.Background(), FuseRequest{
			PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-cinder", UseFragments: true, Seed: seedPtr(seed),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if !out.ProducedCreature() || out.ResultBaseID != "ember" {
			t.Fatalf("seed %d: outcome = %+v", seed, out)
		}
		if got := f.getPlayer(t, "p1").ElementFragments[element.Inferno]; got != 0 {
			t.Fatalf("seed %d: inferno fragments = %d", seed, got)
		}
	}
}

func TestFuseRandomChartRejectsGuarantee(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 5000, map[esprit.FragmentKey]int{esprit.ElementKey(element.Umbral): 50})
	f.stack(t, "s-shade", "p1", "shade", 1, 0)
	f.stack(t, "s-halo", "p1", "halo", 1, 0)

	_, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-shade", StackBID: "s-halo", UseFragments: true, Seed: seedPtr(1),
	})
	if !apperrors.HasCode(err, apperrors.CodeFusionGuaranteeUnavailable) {
		t.Fatalf("expected guarantee unavailable, got %v", err)
	}
	p := f.getPlayer(t, "p1")
	if p.Currency != 5000 || p.ElementFragments[element.Umbral] != 50 || p.TotalFusions != 0 {
		t.Fatalf("player changed: %+v", p)
	}
	if got := f.copies(t, "p1"); got != 2 {
		t.Fatalf("copies = %d, want 2", got)
	}
	if len(f.cache.power) != 0 {
		t.Fatal("rejected fusion must not invalidate caches")
	}
	if len(f.log.records) != 1 || f.log.records[0].Succeeded {
		t.Fatalf("records = %+v, want one rejected record", f.log.records)
	}
}

func TestFuseRejectionsAreRecorded(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 0, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 1, 0)
	f.stack(t, "s-moss", "p1", "moss", 1, 0)
	f.stack(t, "s-ember", "p1", "ember", 1, 0)

	_, err := f.engine.Fuse(context.Background(), FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-ember", Seed: seedPtr(1)})
	if !apperrors.HasCode(err, apperrors.CodeFusionTierMismatch) {
		t.Fatalf("expected tier mismatch, got %v", err)
	}
	_, err = f.engine.Fuse(context.Background(), FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-moss", Seed: seedPtr(1)})
	if !apperrors.HasCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	_, err = f.engine.Fuse(context.Background(), FuseRequest{PlayerID: "p1", StackAID: "s-cinder"})
	if !apperrors.HasCode(err, apperrors.CodeRequestInvalid) {
		t.Fatalf("expected request invalid, got %v", err)
	}

	want := []apperrors.Code{apperrors.CodeFusionTierMismatch, apperrors.CodeInsufficientFunds}
	if len(f.log.records) != len(want) {
		t.Fatalf("records = %d, want %d", len(f.log.records), len(want))
	}
	for i, rec := range f.log.records {
		if rec.Kind != audit.KindFusion || rec.Succeeded || rec.Cost != 0 || rec.PlayerID != "p1" {
			t.Fatalf("record %d = %+v", i, rec)
		}
		if got := rec.Detail[audit.DetailErrorCode]; got != string(want[i]) {
			t.Fatalf("record %d error code = %q, want %s", i, got, want[i])
		}
	}
	if got := f.copies(t, "p1"); got != 3 {
		t.Fatalf("copies = %d, want 3", got)
	}
}

func TestFuseRandomChartDrawsFromAllElements(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 2000, nil)
	f.stack(t, "s-shade", "p1", "shade", 1, 0)
	f.stack(t, "s-halo", "p1", "halo", 1, 0)

	seed := findSeed(t, func(r *random.Roller) bool {
		r.Intn(len(element.All()))
		return !r.Chance(0.40)
	})
	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-shade", StackBID: "s-halo", Seed: seedPtr(seed),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if out.Succeeded || !out.ResultElement.Valid() {
		t.Fatalf("outcome = %+v", out)
	}
	// Failure consolation pays floor(5/2) of an input element.
	if c := out.Consolation; c == nil || c.Amount != 2 || (c.Element != element.Umbral && c.Element != element.Radiant) {
		t.Fatalf("consolation = %+v", out.Consolation)
	}
}

func TestFuseRejections(t *testing.T) {
	tests := []struct {
		name string
		req  FuseRequest
		code apperrors.Code
	}{
		{"missing player", FuseRequest{StackAID: "s-cinder", StackBID: "s-cinder"}, apperrors.CodeRequestInvalid},
		{"unknown player", FuseRequest{PlayerID: "ghost", StackAID: "s-cinder", StackBID: "s-moss"}, apperrors.CodePlayerNotFound},
		{"unknown stack", FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "nope"}, apperrors.CodeStackNotFound},
		{"foreign stack", FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-other"}, apperrors.CodeStackNotOwner},
		{"tier mismatch", FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-ember"}, apperrors.CodeFusionTierMismatch},
		{"single copy self fusion", FuseRequest{PlayerID: "p1", StackAID: "s-moss", StackBID: "s-moss"}, apperrors.CodeFusionSelfInsufficientCopies},
		{"insufficient funds", FuseRequest{PlayerID: "p1", StackAID: "s-ember", StackBID: "s-ember"}, apperrors.CodeInsufficientFunds},
		{"negative bonus", FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-moss", Bonuses: esprit.LeaderBonuses{FusionBonus: -1}}, apperrors.CodeLeaderBonusInvalid},
		{"missing fragments", FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-moss", UseFragments: true}, apperrors.CodeInsufficientFragments},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.player(t, "p1", 200, nil)
			f.player(t, "p2", 200, nil)
			f.stack(t, "s-cinder", "p1", "cinder", 3, 0)
			f.stack(t, "s-moss", "p1", "moss", 1, 0)
			f.stack(t, "s-ember", "p1", "ember", 2, 0)
			f.stack(t, "s-other", "p2", "cinder", 1, 0)

			tc.req.Seed = seedPtr(7)
			_, err := f.engine.Fuse(context.Background(), tc.req)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("error = %v, want %s", err, tc.code)
			}
			p := f.getPlayer(t, "p1")
			if p.Currency != 200 || p.TotalFusions != 0 {
				t.Fatalf("player changed: %+v", p)
			}
			if got := f.copies(t, "p1"); got != 6 {
				t.Fatalf("copies = %d, want 6", got)
			}
		})
	}
}

func TestFuseRejectsAtMaxTier(t *testing.T) {
	f := newFixture(t, nil, WithRules(fusion.Rules{Chart: element.DefaultChart, MaxTier: 2}))
	f.player(t, "p1", 1000, nil)
	f.stack(t, "s-ember", "p1", "ember", 2, 0)

	_, err := f.engine.Fuse(context.Background(), FuseRequest{PlayerID: "p1", StackAID: "s-ember", StackBID: "s-ember"})
	if !apperrors.HasCode(err, apperrors.CodeFusionMaxTierExceeded) {
		t.Fatalf("expected max tier exceeded, got %v", err)
	}
}

func TestFuseStacksOntoExistingResult(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 100, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 2, 0)
	f.stack(t, "s-ember", "p1", "ember", 3, 1)

	seed := findSeed(t, func(r *random.Roller) bool { return r.Chance(0.75) })
	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-cinder", Seed: seedPtr(seed),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if out.ResultStack == nil || out.ResultStack.ID != "s-ember" || out.ResultStack.Quantity != 4 {
		t.Fatalf("result stack = %+v", out.ResultStack)
	}
	if out.ResultStack.AwakeningLevel != 1 {
		t.Fatalf("stacking must keep the existing level, got %d", out.ResultStack.AwakeningLevel)
	}
}

func TestFuseConservesResources(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		f := newFixture(t, nil)
		f.player(t, "p1", 1000, nil)
		f.stack(t, "s-cinder", "p1", "cinder", 2, 0)
		f.stack(t, "s-moss", "p1", "moss", 2, 0)

		out, err := f.engine.Fuse(context.Background(), FuseRequest{
			PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-moss", Seed: seedPtr(seed),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		p := f.getPlayer(t, "p1")
		if p.Currency != 900 {
			t.Fatalf("seed %d: currency = %d", seed, p.Currency)
		}
		produced := 0
		if out.ProducedCreature() {
			produced = 1
		}
		if got := f.copies(t, "p1"); got != 4-2+produced {
			t.Fatalf("seed %d: copies = %d", seed, got)
		}
		fragments := 0
		for _, n := range p.ElementFragments {
			fragments += n
		}
		wantFragments := 0
		if out.Consolation != nil {
			wantFragments = out.Consolation.Amount
		}
		if fragments != wantFragments {
			t.Fatalf("seed %d: fragments = %d, want %d", seed, fragments, wantFragments)
		}
		if out.Succeeded == (out.Consolation != nil && out.Consolation.Reason == fusion.ReasonFailure) {
			t.Fatalf("seed %d: consolation %+v contradicts success %v", seed, out.Consolation, out.Succeeded)
		}
	}
}

func TestFuseIsDeterministicForSeed(t *testing.T) {
	run := func() (fusion.Outcome, esprit.Player) {
		f := newFixture(t, nil)
		f.player(t, "p1", 5000, nil)
		f.stack(t, "s-shade", "p1", "shade", 1, 0)
		f.stack(t, "s-halo", "p1", "halo", 1, 0)
		out, err := f.engine.Fuse(context.Background(), FuseRequest{
			PlayerID: "p1", StackAID: "s-shade", StackBID: "s-halo", Seed: seedPtr(424242),
		})
		if err != nil {
			t.Fatalf("fuse: %v", err)
		}
		return out, f.getPlayer(t, "p1")
	}
	out1, p1 := run()
	out2, p2 := run()
	if diff := cmp.Diff(out1, out2); diff != "" {
		t.Fatalf("outcomes differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(p1, p2); diff != "" {
		t.Fatalf("players differ (-first +second):\n%s", diff)
	}
}

func TestFuseReportsGeneratedSeed(t *testing.T) {
	f := newFixture(t, nil, WithSeedSource(func() (int64, error) { return 99, nil }))
	f.player(t, "p1", 100, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 2, 0)

	out, err := f.engine.Fuse(context.Background(), FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-cinder"})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if out.Seed != 99 {
		t.Fatalf("seed = %d, want 99", out.Seed)
	}
	if got := f.log.records[0].Detail["seed"]; got != "99" {
		t.Fatalf("recorded seed = %q", got)
	}
}

func TestFuseAppliesLeaderBonus(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 1000, nil)
	f.stack(t, "s-pyre", "p1", "pyre", 2, 0)

	out, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-pyre", StackBID: "s-pyre",
		Bonuses: esprit.LeaderBonuses{FusionBonus: 0.1}, Seed: seedPtr(3),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if math.Abs(out.SuccessRate-0.715) > 1e-9 {
		t.Fatalf("rate = %v, want 0.715", out.SuccessRate)
	}
}

func TestFuseRunsPostCommitHooks(t *testing.T) {
	f := newFixture(t, nil)
	f.log.err = errors.New("log unavailable")
	f.player(t, "p1", 100, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 2, 0)

	if _, err := f.engine.Fuse(context.Background(), FuseRequest{
		PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-cinder", Seed: seedPtr(5),
	}); err != nil {
		t.Fatalf("log failures must not fail the fusion: %v", err)
	}
	if diff := cmp.Diff([]string{"p1"}, f.cache.power); diff != "" {
		t.Fatalf("power invalidations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p1"}, f.cache.stats); diff != "" {
		t.Fatalf("stats invalidations (-want +got):\n%s", diff)
	}
	if len(f.log.records) != 1 {
		t.Fatalf("records = %d, want 1", len(f.log.records))
	}
	rec := f.log.records[0]
	if rec.Kind != audit.KindFusion || rec.Cost != 100 || !rec.CreatedAt.Equal(testNow) {
		t.Fatalf("record = %+v", rec)
	}
	if diff := cmp.Diff([]string{"s-cinder", "s-cinder"}, rec.Inputs); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
}

func TestFuseCanceledContext(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 100, nil)
	f.stack(t, "s-cinder", "p1", "cinder", 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.engine.Fuse(ctx, FuseRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-cinder"}); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if got := f.getPlayer(t, "p1").Currency; got != 100 {
		t.Fatalf("currency = %d, want 100", got)
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t, nil)
	f.player(t, "p1", 50, map[esprit.FragmentKey]int{esprit.ElementKey(element.Tempest): 11})
	f.stack(t, "s-cinder", "p1", "cinder", 1, 0)
	f.stack(t, "s-tide", "p1", "tide", 1, 0)

	got, err := f.engine.Preview(context.Background(), PreviewRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "s-tide"})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got.Cost != 100 || got.Affordable || got.Rate != 0.60 || got.SameElement {
		t.Fatalf("preview = %+v", got)
	}
	if !got.GuaranteeAvailable || got.GuaranteeElement != element.Tempest || got.FragmentBalance != 11 {
		t.Fatalf("preview guarantee = %+v", got)
	}
	if got.ResultTier != 2 {
		t.Fatalf("result tier = %d", got.ResultTier)
	}

	if _, err := f.engine.Preview(context.Background(), PreviewRequest{PlayerID: "p1", StackAID: "s-cinder", StackBID: "gone"}); !apperrors.HasCode(err, apperrors.CodeStackNotFound) {
		t.Fatalf("expected stack not found, got %v", err)
	}
	if p := f.getPlayer(t, "p1"); p.Currency != 50 || len(f.log.records) != 0 {
		t.Fatal("preview must not change state")
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	eng, err := New(memory.New())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if eng.Rules().MaxTier != 18 {
		t.Fatalf("max tier = %d", eng.Rules().MaxTier)
	}
}
