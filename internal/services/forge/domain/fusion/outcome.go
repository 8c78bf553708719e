package fusion

import (
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

// Fragment ledger reasons written by fusion.
const (
	ReasonFailure   = "fusion_failure"
	ReasonNoTarget  = "fusion_no_target"
	ReasonGuarantee = "fusion_guarantee"
)

// FragmentGrant is a consolation payout.
type FragmentGrant struct {
	Element element.Element
	Amount  int
	Reason  string
}

// Outcome describes one executed fusion. A losing roll is a normal Outcome
// with Succeeded false; it is not an error.
type Outcome struct {
	// Succeeded is the roll result. A success may still produce no creature
	// when the result tier/element has no bases; check ResultStack too.
	Succeeded   bool
	ResultStack *esprit.Stack
	Consolation *FragmentGrant

	CostPaid          int64
	FragmentsConsumed int

	ResultElement element.Element
	ResultTier    int
	ResultBaseID  string
	SuccessRate   float64
	Guaranteed    bool
	Seed          int64

	// Consumed maps input stack id to copies taken from it.
	Consumed        map[string]int
	DeletedStackIDs []string
}

// ProducedCreature reports whether a creature was added to the collection.
func (o Outcome) ProducedCreature() bool {
	return o.Succeeded && o.ResultStack != nil
}

// Preview is a read-only look at a prospective fusion.
type Preview struct {
	Cost               int64
	Affordable         bool
	BaseRate           float64
	Rate               float64
	SameElement        bool
	Shape              element.Shape
	Candidates         []element.Element
	ResultTier         int
	GuaranteeAvailable bool
	// GuaranteeElement is set when the result element is deterministic.
	GuaranteeElement element.Element
	FragmentBalance  int
}

// Preview validates everything except balances and reports what a fusion
// would cost and how likely it is to succeed.
func (r Rules) Preview(in Input) (Preview, error) {
	plan, err := r.check(in)
	if err != nil {
		return Preview{}, err
	}
	pv := Preview{
		Cost:        plan.Cost,
		Affordable:  in.Player.Currency >= plan.Cost,
		BaseRate:    plan.BaseRate,
		Rate:        plan.Rate,
		SameElement: plan.SameElement,
		Shape:       plan.Chart.Shape,
		Candidates:  append([]element.Element(nil), plan.Chart.Candidates...),
		ResultTier:  plan.ResultTier,
	}
	if plan.Chart.Deterministic() {
		pv.GuaranteeElement = plan.GuaranteeElement()
		pv.FragmentBalance = in.Player.Fragments(esprit.ElementKey(pv.GuaranteeElement))
		pv.GuaranteeAvailable = pv.FragmentBalance >= GuaranteeFragments
	}
	return pv, nil
}
