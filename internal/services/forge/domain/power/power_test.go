package power

import (
	"testing"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

var emberling = esprit.Base{ID: "emberling", Name: "Emberling", Element: element.Inferno, Tier: 1, BaseAttack: 50, BaseDefense: 40, BaseHP: 400}

func TestIndividualAppliesAwakeningMultiplier(t *testing.T) {
	tests := []struct {
		level int
		want  Stats
	}{
		{0, Stats{Attack: 50, Defense: 40, HP: 400, Power: 130}},
		{1, Stats{Attack: 60, Defense: 48, HP: 480, Power: 156}},
		{5, Stats{Attack: 100, Defense: 80, HP: 800, Power: 260}},
	}
	for _, tt := range tests {
		got := Individual(esprit.Stack{Quantity: 1, AwakeningLevel: tt.level}, emberling)
		if got != tt.want {
			t.Fatalf("level %d stats = %+v, want %+v", tt.level, got, tt.want)
		}
	}
}

func TestIndividualTracksStepAcrossLevels(t *testing.T) {
	for level := 0; level <= 5; level++ {
		got := Individual(esprit.Stack{AwakeningLevel: level}, emberling)
		tenths := 10 + AwakeningStepTenths*level
		if got.Attack*10 != emberling.BaseAttack*tenths || got.HP*10 != emberling.BaseHP*tenths {
			t.Fatalf("level %d stats = %+v, want %d tenths of base", level, got, tenths)
		}
	}
}

func TestScoreFloorsHP(t *testing.T) {
	if got := Score(10, 10, 19); got != 21 {
		t.Fatalf("Score = %d, want 21", got)
	}
}

func TestStackScalesByQuantity(t *testing.T) {
	s := esprit.Stack{Quantity: 4, AwakeningLevel: 1}
	got := Stack(s, emberling)
	one := Individual(s, emberling)
	if got.Power != one.Power*4 || got.HP != one.HP*4 {
		t.Fatalf("stack stats = %+v, single = %+v", got, one)
	}
}

func TestTotalSkipsUnknownBases(t *testing.T) {
	stacks := []esprit.Stack{
		{BaseID: "emberling", Quantity: 2},
		{BaseID: "ghost", Quantity: 9},
	}
	got := Total(stacks, map[string]esprit.Base{"emberling": emberling})
	if got != 260 {
		t.Fatalf("Total = %d, want 260", got)
	}
}
