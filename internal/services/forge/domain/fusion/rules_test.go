package fusion

import (
	"math"
	"testing"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

type scriptedRoller struct {
	ints    []int
	chances []bool
	draws   int
}

func (r *scriptedRoller) Intn(n int) int {
	r.draws++
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRoller) Chance(p float64) bool {
	if p >= 1 {
		return true
	}
	r.draws++
	v := r.chances[0]
	r.chances = r.chances[1:]
	return v
}

func testPlayer(currency int64) esprit.Player {
	p := esprit.NewPlayer("p1", currency, testTime)
	return p
}

func testStack(id string, t int, e element.Element, qty int) esprit.Stack {
	return esprit.Stack{ID: id, BaseID: "base-" + id, OwnerID: "p1", Quantity: qty, Tier: t, Element: e}
}

func TestPlanSameElementWithBonus(t *testing.T) {
	in := Input{
		Player:  testPlayer(10_000),
		A:       testStack("a", 3, element.Inferno, 1),
		B:       testStack("b", 3, element.Inferno, 1),
		Bonuses: esprit.LeaderBonuses{FusionBonus: 0.1},
	}
	plan, err := DefaultRules().Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Cost != 500 {
		t.Fatalf("cost = %d, want 500", plan.Cost)
	}
	if math.Abs(plan.Rate-0.715) > 1e-9 {
		t.Fatalf("rate = %v, want 0.715", plan.Rate)
	}
	if plan.ResultTier != 4 || !plan.SameElement || plan.SelfFusion {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestFinalRateCeiling(t *testing.T) {
	if got := FinalRate(0.75, esprit.LeaderBonuses{FusionBonus: 1}); got != RateCeiling {
		t.Fatalf("rate = %v, want %v", got, RateCeiling)
	}
	if got := FinalRate(0.5, esprit.LeaderBonuses{}); got != 0.5 {
		t.Fatalf("rate = %v, want 0.5", got)
	}
}

func TestPlanRateBoundsAcrossTable(t *testing.T) {
	for tr := 1; tr < 18; tr++ {
		for _, bonus := range []float64{0, 0.25, 3} {
			in := Input{
				Player:  testPlayer(10_000_000),
				A:       testStack("a", tr, element.Verdant, 1),
				B:       testStack("b", tr, element.Abyssal, 1),
				Bonuses: esprit.LeaderBonuses{FusionBonus: bonus},
			}
			plan, err := DefaultRules().Plan(in)
			if err != nil {
				t.Fatalf("tier %d: %v", tr, err)
			}
			if plan.Rate < 0 || plan.Rate > RateCeiling {
				t.Fatalf("tier %d bonus %v: rate %v out of bounds", tr, bonus, plan.Rate)
			}
		}
	}
}

func TestPlanGuaranteed(t *testing.T) {
	p := testPlayer(10_000)
	p.SetFragments(esprit.ElementKey(element.Tempest), 12)
	in := Input{
		Player:       p,
		A:            testStack("a", 3, element.Inferno, 1),
		B:            testStack("b", 3, element.Abyssal, 1),
		UseFragments: true,
	}
	plan, err := DefaultRules().Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.Guaranteed || plan.Rate != 1 {
		t.Fatalf("plan = %+v, want guaranteed", plan)
	}
	if plan.GuaranteeElement() != element.Tempest {
		t.Fatalf("guarantee element = %s, want tempest", plan.GuaranteeElement())
	}
	r := &scriptedRoller{}
	if !plan.RollSuccess(r) || r.draws != 0 {
		t.Fatalf("guaranteed roll drew %d times", r.draws)
	}
}

func TestPlanErrors(t *testing.T) {
	rich := testPlayer(10_000_000)
	tests := []struct {
		name string
		in   Input
		want apperrors.Code
	}{
		{
			name: "tier mismatch",
			in:   Input{Player: rich, A: testStack("a", 3, element.Inferno, 1), B: testStack("b", 4, element.Inferno, 1)},
			want: apperrors.CodeFusionTierMismatch,
		},
		{
			name: "self fusion needs two copies",
			in:   Input{Player: rich, A: testStack("a", 2, element.Inferno, 1), B: testStack("a", 2, element.Inferno, 1)},
			want: apperrors.CodeFusionSelfInsufficientCopies,
		},
		{
			name: "max tier",
			in:   Input{Player: rich, A: testStack("a", 18, element.Inferno, 1), B: testStack("b", 18, element.Inferno, 1)},
			want: apperrors.CodeFusionMaxTierExceeded,
		},
		{
			name: "empty stack",
			in:   Input{Player: rich, A: testStack("a", 2, element.Inferno, 0), B: testStack("b", 2, element.Inferno, 1)},
			want: apperrors.CodeFusionEmptyStack,
		},
		{
			name: "not owner",
			in: Input{Player: rich, A: testStack("a", 2, element.Inferno, 1), B: esprit.Stack{
				ID: "b", BaseID: "x", OwnerID: "p2", Quantity: 1, Tier: 2, Element: element.Inferno,
			}},
			want: apperrors.CodeStackNotOwner,
		},
		{
			name: "unknown element",
			in:   Input{Player: rich, A: testStack("a", 2, element.Element("frost"), 1), B: testStack("b", 2, element.Inferno, 1)},
			want: apperrors.CodeFusionInvalidElementCombo,
		},
		{
			name: "negative bonus",
			in: Input{Player: rich, A: testStack("a", 2, element.Inferno, 1), B: testStack("b", 2, element.Inferno, 1),
				Bonuses: esprit.LeaderBonuses{FusionBonus: -0.5}},
			want: apperrors.CodeLeaderBonusInvalid,
		},
		{
			name: "insufficient funds",
			in:   Input{Player: testPlayer(499), A: testStack("a", 3, element.Inferno, 1), B: testStack("b", 3, element.Inferno, 1)},
			want: apperrors.CodeInsufficientFunds,
		},
		{
			name: "guarantee on randomized pair",
			in: Input{Player: rich, A: testStack("a", 3, element.Inferno, 1), B: testStack("b", 3, element.Tempest, 1),
				UseFragments: true},
			want: apperrors.CodeFusionGuaranteeUnavailable,
		},
		{
			name: "guarantee without fragments",
			in: Input{Player: rich, A: testStack("a", 3, element.Inferno, 1), B: testStack("b", 3, element.Inferno, 1),
				UseFragments: true},
			want: apperrors.CodeInsufficientFragments,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultRules().Plan(tt.in)
			if got := apperrors.CodeOf(err); got != tt.want {
				t.Fatalf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestPlanMissingChartEntryIsInvariant(t *testing.T) {
	chart, err := element.NewChart(map[element.Pair]element.Result{})
	if err != nil {
		t.Fatalf("NewChart: %v", err)
	}
	rules := Rules{Chart: chart, MaxTier: 18}
	_, err = rules.Plan(Input{
		Player: testPlayer(10_000),
		A:      testStack("a", 1, element.Inferno, 1),
		B:      testStack("b", 1, element.Verdant, 1),
	})
	if !esprit.IsInvariant(err) {
		t.Fatalf("err = %v, want invariant violation", err)
	}
}

func TestPlanConfiguredMaxTier(t *testing.T) {
	rules := Rules{MaxTier: 5}
	in := Input{Player: testPlayer(1_000_000), A: testStack("a", 5, element.Inferno, 1), B: testStack("b", 5, element.Inferno, 1)}
	if _, err := rules.Plan(in); !apperrors.HasCode(err, apperrors.CodeFusionMaxTierExceeded) {
		t.Fatalf("err = %v, want max tier", err)
	}
	in.A.Tier, in.B.Tier = 4, 4
	if _, err := rules.Plan(in); err != nil {
		t.Fatalf("tier 4 under ceiling 5: %v", err)
	}
}

func TestConsolationAmounts(t *testing.T) {
	plan := Plan{SourceTier: 5}
	got := plan.FailureConsolation(element.Inferno, element.Verdant, &scriptedRoller{ints: []int{1}})
	if got.Amount != 2 || got.Element != element.Verdant || got.Reason != ReasonFailure {
		t.Fatalf("failure consolation = %+v", got)
	}
	got = Plan{SourceTier: 1}.FailureConsolation(element.Inferno, element.Verdant, &scriptedRoller{ints: []int{0}})
	if got.Amount != 1 || got.Element != element.Inferno {
		t.Fatalf("tier 1 failure consolation = %+v", got)
	}
	got = plan.NoTargetConsolation(element.Radiant)
	if got.Amount != 5 || got.Element != element.Radiant || got.Reason != ReasonNoTarget {
		t.Fatalf("no target consolation = %+v", got)
	}
}

func TestRollElementDrawsOnlyWhenRandomized(t *testing.T) {
	single := Plan{Chart: element.Result{Shape: element.ShapeSingle, Candidates: []element.Element{element.Umbral}}}
	r := &scriptedRoller{}
	if got := single.RollElement(r); got != element.Umbral || r.draws != 0 {
		t.Fatalf("single: got %s after %d draws", got, r.draws)
	}
	paired := Plan{Chart: element.Result{Shape: element.ShapePair, Candidates: []element.Element{element.Inferno, element.Tempest}}}
	r = &scriptedRoller{ints: []int{1}}
	if got := paired.RollElement(r); got != element.Tempest || r.draws != 1 {
		t.Fatalf("pair: got %s after %d draws", got, r.draws)
	}
}

func TestPickBase(t *testing.T) {
	if _, ok := PickBase(nil, &scriptedRoller{}); ok {
		t.Fatal("expected no base from empty candidates")
	}
	bases := []esprit.Base{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got, ok := PickBase(bases, &scriptedRoller{ints: []int{2}})
	if !ok || got.ID != "c" {
		t.Fatalf("picked %+v", got)
	}
}
