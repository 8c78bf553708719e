// Package fusion holds the pure fusion rules: eligibility, success rate,
// result element, consolation fragments and base selection. Storage and
// locking live in the engine package.
package fusion

import (
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/tier"
)

const (
	// RateCeiling caps every non-guaranteed success rate.
	RateCeiling = 0.95
	// GuaranteeFragments is the element fragment price of a certain success.
	GuaranteeFragments = 10
)

// Roller supplies the random draws a fusion needs.
type Roller interface {
	Intn(n int) int
	Chance(p float64) bool
}

// Rules evaluates fusions against a chart and a tier ceiling.
type Rules struct {
	Chart *element.Chart
	// MaxTier is the exclusive ceiling on input tier: inputs must be below it.
	MaxTier int
}

// DefaultRules uses the live chart and the top of the tier table.
func DefaultRules() Rules {
	return Rules{Chart: element.DefaultChart, MaxTier: tier.Max}
}

// Normalized fills zero fields and clamps MaxTier into the table.
func (r Rules) Normalized() Rules {
	if r.Chart == nil {
		r.Chart = element.DefaultChart
	}
	if r.MaxTier <= tier.Min || r.MaxTier > tier.Max {
		r.MaxTier = tier.Max
	}
	return r
}

// Input is everything the rules need to judge one fusion request.
type Input struct {
	Player       esprit.Player
	A, B         esprit.Stack
	Bonuses      esprit.LeaderBonuses
	UseFragments bool
}

// Plan is a validated fusion, ready to execute.
type Plan struct {
	SourceTier  int
	ResultTier  int
	Row         tier.Row
	SameElement bool
	SelfFusion  bool
	Chart       element.Result
	BaseRate    float64
	Rate        float64
	Guaranteed  bool
	Cost        int64
}

// GuaranteeElement is the element whose fragments a guarantee spends. It is
// only meaningful when the chart result is deterministic.
func (p Plan) GuaranteeElement() element.Element {
	return p.Chart.Candidates[0]
}

// FinalRate applies the leader bonus and ceiling to a base rate.
func FinalRate(base float64, bonuses esprit.LeaderBonuses) float64 {
	rate := base * (1 + bonuses.FusionBonus)
	rate = math.Min(rate, RateCeiling)
	return math.Max(rate, 0)
}

// Plan validates in and returns the execution plan, or a typed error. No
// input is mutated.
func (r Rules) Plan(in Input) (Plan, error) {
	plan, err := r.check(in)
	if err != nil {
		return Plan{}, err
	}
	if in.UseFragments {
		if err := checkGuarantee(plan, in.Player); err != nil {
			return Plan{}, err
		}
		plan.Guaranteed = true
		plan.Rate = 1.0
	}
	if in.Player.Currency < plan.Cost {
		return Plan{}, apperrors.WithMetadata(apperrors.CodeInsufficientFunds,
			fmt.Sprintf("fusion costs %d, player %s has %d", plan.Cost, in.Player.ID, in.Player.Currency),
			map[string]string{"Cost": strconv.FormatInt(plan.Cost, 10), "Balance": strconv.FormatInt(in.Player.Currency, 10)})
	}
	return plan, nil
}

func (r Rules) check(in Input) (Plan, error) {
	r = r.Normalized()
	a, b := in.A, in.B

	if err := in.Bonuses.Validate(); err != nil {
		return Plan{}, apperrors.Wrap(apperrors.CodeLeaderBonusInvalid, "leader bonus rejected", err)
	}
	for _, s := range []esprit.Stack{a, b} {
		if s.OwnerID != in.Player.ID {
			return Plan{}, apperrors.WithMetadata(apperrors.CodeStackNotOwner,
				fmt.Sprintf("stack %s is owned by %s, not %s", s.ID, s.OwnerID, in.Player.ID),
				map[string]string{"StackID": s.ID})
		}
		if s.Quantity < 1 {
			return Plan{}, apperrors.WithMetadata(apperrors.CodeFusionEmptyStack,
				fmt.Sprintf("stack %s has quantity %d", s.ID, s.Quantity),
				map[string]string{"StackID": s.ID})
		}
	}
	self := a.ID == b.ID
	if self && a.Quantity < 2 {
		return Plan{}, apperrors.New(apperrors.CodeFusionSelfInsufficientCopies,
			fmt.Sprintf("self-fusion of stack %s needs 2 copies, has %d", a.ID, a.Quantity))
	}
	if a.Tier != b.Tier {
		return Plan{}, apperrors.WithMetadata(apperrors.CodeFusionTierMismatch,
			fmt.Sprintf("tier %d cannot fuse with tier %d", a.Tier, b.Tier),
			map[string]string{"TierA": strconv.Itoa(a.Tier), "TierB": strconv.Itoa(b.Tier)})
	}
	if a.Tier >= r.MaxTier {
		return Plan{}, apperrors.WithMetadata(apperrors.CodeFusionMaxTierExceeded,
			fmt.Sprintf("tier %d is at or above the fusion ceiling %d", a.Tier, r.MaxTier),
			map[string]string{"Tier": strconv.Itoa(a.Tier)})
	}
	row, err := tier.Lookup(a.Tier)
	if err != nil {
		return Plan{}, esprit.Invariant("fusion.plan", "stack %s: %v", a.ID, err)
	}
	if !a.Element.Valid() || !b.Element.Valid() {
		return Plan{}, apperrors.WithMetadata(apperrors.CodeFusionInvalidElementCombo,
			fmt.Sprintf("cannot fuse %q with %q", a.Element, b.Element),
			map[string]string{"ElementA": a.Element.Title(), "ElementB": b.Element.Title()})
	}
	result, ok := r.Chart.Lookup(a.Element, b.Element)
	if !ok {
		return Plan{}, esprit.Invariant("fusion.plan", "chart has no entry for %s+%s", a.Element, b.Element)
	}

	same := a.Element == b.Element
	base := row.Rate(same)
	return Plan{
		SourceTier:  a.Tier,
		ResultTier:  a.Tier + 1,
		Row:         row,
		SameElement: same,
		SelfFusion:  self,
		Chart:       result,
		BaseRate:    base,
		Rate:        FinalRate(base, in.Bonuses),
		Cost:        row.FusionCost,
	}, nil
}

func checkGuarantee(plan Plan, player esprit.Player) error {
	if !plan.Chart.Deterministic() {
		return apperrors.New(apperrors.CodeFusionGuaranteeUnavailable,
			fmt.Sprintf("result shape %s is randomized; fragments cannot guarantee it", plan.Chart.Shape))
	}
	key := esprit.ElementKey(plan.GuaranteeElement())
	if have := player.Fragments(key); have < GuaranteeFragments {
		return apperrors.WithMetadata(apperrors.CodeInsufficientFragments,
			fmt.Sprintf("guarantee needs %d %s fragments, player has %d", GuaranteeFragments, key, have),
			map[string]string{"Needed": strconv.Itoa(GuaranteeFragments), "Key": plan.GuaranteeElement().Title(), "Balance": strconv.Itoa(have)})
	}
	return nil
}

// RollElement decides the result element. It draws only for randomized
// chart shapes.
func (p Plan) RollElement(r Roller) element.Element {
	return p.Chart.Resolve(r.Intn)
}

// RollSuccess decides the fusion. Guaranteed plans do not draw.
func (p Plan) RollSuccess(r Roller) bool {
	if p.Guaranteed {
		return true
	}
	return r.Chance(p.Rate)
}

// FailureConsolation is granted when the roll fails: max(1, tier/2)
// fragments of one of the two input elements.
func (p Plan) FailureConsolation(a, b element.Element, r Roller) FragmentGrant {
	picked := a
	if r.Intn(2) == 1 {
		picked = b
	}
	return FragmentGrant{Element: picked, Amount: max(1, p.SourceTier/2), Reason: ReasonFailure}
}

// NoTargetConsolation is granted when the roll succeeds but no base exists
// at the result tier and element: max(1, tier) fragments of that element.
func (p Plan) NoTargetConsolation(result element.Element) FragmentGrant {
	return FragmentGrant{Element: result, Amount: max(1, p.SourceTier), Reason: ReasonNoTarget}
}

// PickBase chooses uniformly among candidates. Candidates are expected in a
// stable order (storage returns them sorted by id).
func PickBase(candidates []esprit.Base, r Roller) (esprit.Base, bool) {
	if len(candidates) == 0 {
		return esprit.Base{}, false
	}
	return candidates[r.Intn(len(candidates))], true
}
