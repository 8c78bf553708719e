package esprit

import (
	"fmt"
	"math"
)

// LeaderBonuses is the caller-computed bonus snapshot for a player's current
// leader. Zero values mean no bonus.
type LeaderBonuses struct {
	// FusionBonus multiplies the base fusion rate by (1 + FusionBonus).
	FusionBonus float64
}

// Validate rejects negative and non-finite values.
func (b LeaderBonuses) Validate() error {
	v := b.FusionBonus
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("fusion_bonus must be finite")
	}
	if v < 0 {
		return fmt.Errorf("fusion_bonus must not be negative, got %v", v)
	}
	return nil
}
