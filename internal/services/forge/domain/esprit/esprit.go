// Package esprit defines the creature catalog entries, player-owned stacks
// and the player balances the forge mutates.
package esprit

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/tier"
)

// MaxAwakening is the terminal awakening level.
const MaxAwakening = 5

// Base is an immutable catalog creature.
type Base struct {
	ID          string
	Name        string
	Element     element.Element
	Tier        int
	BaseAttack  int
	BaseDefense int
	BaseHP      int
	Description string
}

// Validate checks catalog invariants.
func (b Base) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("base id is required")
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("base %s: name is required", b.ID)
	}
	if !b.Element.Valid() {
		return fmt.Errorf("base %s: unknown element %q", b.ID, b.Element)
	}
	if !tier.Valid(b.Tier) {
		return fmt.Errorf("base %s: tier %d out of range", b.ID, b.Tier)
	}
	if b.BaseAttack < 0 || b.BaseDefense < 0 || b.BaseHP <= 0 {
		return fmt.Errorf("base %s: stats must be positive", b.ID)
	}
	return nil
}

// StackKey is the stacking identity: a player holds at most one stack per key.
type StackKey struct {
	OwnerID string
	BaseID  string
	Tier    int
	Element element.Element
}

// Stack is N identical copies of one creature owned by one player.
type Stack struct {
	ID             string
	BaseID         string
	OwnerID        string
	Quantity       int
	Tier           int
	AwakeningLevel int
	Element        element.Element
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Key returns the stacking identity of s.
func (s Stack) Key() StackKey {
	return StackKey{OwnerID: s.OwnerID, BaseID: s.BaseID, Tier: s.Tier, Element: s.Element}
}

// Validate checks the invariants of a persisted stack.
func (s Stack) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("stack id is required")
	}
	if strings.TrimSpace(s.OwnerID) == "" || strings.TrimSpace(s.BaseID) == "" {
		return fmt.Errorf("stack %s: owner and base are required", s.ID)
	}
	if s.Quantity < 1 {
		return fmt.Errorf("stack %s: quantity %d below 1", s.ID, s.Quantity)
	}
	if !tier.Valid(s.Tier) {
		return fmt.Errorf("stack %s: tier %d out of range", s.ID, s.Tier)
	}
	if s.AwakeningLevel < 0 || s.AwakeningLevel > MaxAwakening {
		return fmt.Errorf("stack %s: awakening level %d out of range", s.ID, s.AwakeningLevel)
	}
	if !s.Element.Valid() {
		return fmt.Errorf("stack %s: unknown element %q", s.ID, s.Element)
	}
	return nil
}

// Player is the slice of a player profile the forge reads and writes.
type Player struct {
	ID                string
	Currency          int64
	ElementFragments  map[element.Element]int
	TierFragments     map[int]int
	TotalFusions      int
	SuccessfulFusions int
	TotalAwakenings   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPlayer returns a player with initialized balances.
func NewPlayer(id string, currency int64, now time.Time) Player {
	return Player{
		ID:               id,
		Currency:         currency,
		ElementFragments: map[element.Element]int{},
		TierFragments:    map[int]int{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy so callers can mutate balances freely.
func (p Player) Clone() Player {
	out := p
	out.ElementFragments = make(map[element.Element]int, len(p.ElementFragments))
	for k, v := range p.ElementFragments {
		out.ElementFragments[k] = v
	}
	out.TierFragments = make(map[int]int, len(p.TierFragments))
	for k, v := range p.TierFragments {
		out.TierFragments[k] = v
	}
	return out
}

// Fragments returns the balance held under key.
func (p Player) Fragments(key FragmentKey) int {
	if key.IsTier() {
		return p.TierFragments[key.Tier]
	}
	return p.ElementFragments[key.Element]
}

// SetFragments overwrites the balance under key. Zero balances are removed.
func (p *Player) SetFragments(key FragmentKey, amount int) {
	if key.IsTier() {
		if p.TierFragments == nil {
			p.TierFragments = map[int]int{}
		}
		if amount == 0 {
			delete(p.TierFragments, key.Tier)
			return
		}
		p.TierFragments[key.Tier] = amount
		return
	}
	if p.ElementFragments == nil {
		p.ElementFragments = map[element.Element]int{}
	}
	if amount == 0 {
		delete(p.ElementFragments, key.Element)
		return
	}
	p.ElementFragments[key.Element] = amount
}
