// Package tier holds the static per-tier numbers that drive fusion and
// awakening: reference stats, fusion costs, success rates and fragment costs.
package tier

import "fmt"

const (
	// Min is the lowest tier.
	Min = 1
	// Max is the highest tier in the table.
	Max = 18
)

// Row is one tier's parameters.
type Row struct {
	Tier int
	Name string

	// Reference stats for a typical base at this tier. Catalog entries may
	// deviate; these seed generated bases and sanity checks.
	BaseAttack  int
	BaseDefense int
	BaseHP      int

	// FusionCost is the currency charged for one fusion attempt whose inputs
	// are at this tier.
	FusionCost int64
	// SameElementRate is the base success rate when both inputs share an element.
	SameElementRate float64
	// CrossElementRate is the base success rate for mixed-element inputs.
	CrossElementRate float64
	// CraftFragmentCost is the element fragments needed to craft a creature
	// of this tier.
	CraftFragmentCost int
}

// Rate returns the base fusion success rate for same- or cross-element input.
func (r Row) Rate(sameElement bool) float64 {
	if sameElement {
		return r.SameElementRate
	}
	return r.CrossElementRate
}

var rows = [Max]Row{
	{Tier: 1, Name: "Common", BaseAttack: 50, BaseDefense: 40, BaseHP: 400, FusionCost: 100, SameElementRate: 0.75, CrossElementRate: 0.60, CraftFragmentCost: 10},
	{Tier: 2, Name: "Uncommon", BaseAttack: 80, BaseDefense: 65, BaseHP: 650, FusionCost: 250, SameElementRate: 0.70, CrossElementRate: 0.55, CraftFragmentCost: 20},
	{Tier: 3, Name: "Rare", BaseAttack: 120, BaseDefense: 100, BaseHP: 1000, FusionCost: 500, SameElementRate: 0.65, CrossElementRate: 0.50, CraftFragmentCost: 35},
	{Tier: 4, Name: "Epic", BaseAttack: 180, BaseDefense: 150, BaseHP: 1500, FusionCost: 1000, SameElementRate: 0.60, CrossElementRate: 0.45, CraftFragmentCost: 50},
	{Tier: 5, Name: "Mythic", BaseAttack: 260, BaseDefense: 220, BaseHP: 2200, FusionCost: 2000, SameElementRate: 0.55, CrossElementRate: 0.40, CraftFragmentCost: 75},
	{Tier: 6, Name: "Divine", BaseAttack: 370, BaseDefense: 310, BaseHP: 3100, FusionCost: 4000, SameElementRate: 0.50, CrossElementRate: 0.36, CraftFragmentCost: 100},
	{Tier: 7, Name: "Legendary", BaseAttack: 520, BaseDefense: 430, BaseHP: 4300, FusionCost: 8000, SameElementRate: 0.45, CrossElementRate: 0.32, CraftFragmentCost: 140},
	{Tier: 8, Name: "Ethereal", BaseAttack: 720, BaseDefense: 600, BaseHP: 6000, FusionCost: 15000, SameElementRate: 0.40, CrossElementRate: 0.28, CraftFragmentCost: 190},
	{Tier: 9, Name: "Genesis", BaseAttack: 1000, BaseDefense: 830, BaseHP: 8300, FusionCost: 25000, SameElementRate: 0.36, CrossElementRate: 0.25, CraftFragmentCost: 250},
	{Tier: 10, Name: "Empyrean", BaseAttack: 1380, BaseDefense: 1150, BaseHP: 11500, FusionCost: 40000, SameElementRate: 0.32, CrossElementRate: 0.22, CraftFragmentCost: 320},
	{Tier: 11, Name: "Void", BaseAttack: 1900, BaseDefense: 1580, BaseHP: 15800, FusionCost: 60000, SameElementRate: 0.28, CrossElementRate: 0.19, CraftFragmentCost: 400},
	{Tier: 12, Name: "Singularity", BaseAttack: 2600, BaseDefense: 2170, BaseHP: 21700, FusionCost: 90000, SameElementRate: 0.25, CrossElementRate: 0.17, CraftFragmentCost: 500},
	{Tier: 13, Name: "Primordial", BaseAttack: 3560, BaseDefense: 2970, BaseHP: 29700, FusionCost: 135000, SameElementRate: 0.22, CrossElementRate: 0.15, CraftFragmentCost: 620},
	{Tier: 14, Name: "Celestial", BaseAttack: 4870, BaseDefense: 4060, BaseHP: 40600, FusionCost: 200000, SameElementRate: 0.19, CrossElementRate: 0.13, CraftFragmentCost: 760},
	{Tier: 15, Name: "Infinite", BaseAttack: 6660, BaseDefense: 5550, BaseHP: 55500, FusionCost: 300000, SameElementRate: 0.16, CrossElementRate: 0.11, CraftFragmentCost: 920},
	{Tier: 16, Name: "Transcendent", BaseAttack: 9100, BaseDefense: 7580, BaseHP: 75800, FusionCost: 450000, SameElementRate: 0.13, CrossElementRate: 0.09, CraftFragmentCost: 1100},
	{Tier: 17, Name: "Omnipotent", BaseAttack: 12430, BaseDefense: 10360, BaseHP: 103600, FusionCost: 675000, SameElementRate: 0.10, CrossElementRate: 0.07, CraftFragmentCost: 1300},
	{Tier: 18, Name: "Absolute", BaseAttack: 17000, BaseDefense: 14160, BaseHP: 141600, FusionCost: 1000000, SameElementRate: 0.08, CrossElementRate: 0.05, CraftFragmentCost: 1550},
}

// Lookup returns the row for tier t.
func Lookup(t int) (Row, error) {
	if t < Min || t > Max {
		return Row{}, fmt.Errorf("tier %d out of range %d..%d", t, Min, Max)
	}
	return rows[t-1], nil
}

// Valid reports whether t is inside the table.
func Valid(t int) bool {
	return t >= Min && t <= Max
}
