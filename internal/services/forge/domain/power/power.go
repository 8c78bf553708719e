// Package power derives combat stats for stacks from their base, tier and
// awakening level.
package power

import (
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

// AwakeningStepTenths is the stat multiplier gained per awakening star, in
// tenths: each star adds 0.2.
const AwakeningStepTenths = 2

// Stats is a stat line plus its derived power score.
type Stats struct {
	Attack  int
	Defense int
	HP      int
	Power   int
}

// Score is the ranking scalar: attack + defense + hp/10.
func Score(attack, defense, hp int) int {
	return attack + defense + hp/10
}

// Individual returns the stats of one copy in stack.
func Individual(stack esprit.Stack, base esprit.Base) Stats {
	return individualAt(base, stack.AwakeningLevel)
}

func individualAt(base esprit.Base, level int) Stats {
	// Multiply in tenths to keep 1.2 * 50 == 60 exact.
	tenths := 10 + AwakeningStepTenths*level
	attack := base.BaseAttack * tenths / 10
	defense := base.BaseDefense * tenths / 10
	hp := base.BaseHP * tenths / 10
	return Stats{
		Attack:  attack,
		Defense: defense,
		HP:      hp,
		Power:   Score(attack, defense, hp),
	}
}

// Stack returns the stats of every copy in stack combined.
func Stack(stack esprit.Stack, base esprit.Base) Stats {
	one := Individual(stack, base)
	q := stack.Quantity
	if q < 0 {
		q = 0
	}
	return Stats{
		Attack:  one.Attack * q,
		Defense: one.Defense * q,
		HP:      one.HP * q,
		Power:   one.Power * q,
	}
}

// Total sums stack power across a collection. Stacks whose base is missing
// from bases are skipped.
func Total(stacks []esprit.Stack, bases map[string]esprit.Base) int {
	total := 0
	for _, s := range stacks {
		base, ok := bases[s.BaseID]
		if !ok {
			continue
		}
		total += Stack(s, base).Power
	}
	return total
}
