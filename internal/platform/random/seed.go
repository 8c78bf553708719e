// Package random provides seed generation and seeded draws for game rolls.
//
// Seeds come from crypto/rand; draws use math/rand sources so that a recorded
// seed replays the exact same sequence of decisions.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// SeedFunc produces a fresh seed.
type SeedFunc func() (int64, error)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns requested when non-nil, otherwise a fresh seed from gen
// (NewSeed when gen is nil).
func ResolveSeed(requested *int64, gen SeedFunc) (int64, error) {
	if requested != nil {
		return *requested, nil
	}
	if gen == nil {
		gen = NewSeed
	}
	return gen()
}

// Roller draws game decisions from one deterministic source.
type Roller struct {
	rng *rand.Rand
}

// NewRoller returns a roller seeded with seed.
func NewRoller(seed int64) *Roller {
	//nolint:gosec // G404: game rolls, not cryptography
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Chance reports whether a roll lands under probability p. p >= 1 always
// succeeds and consumes no draw, so guaranteed outcomes leave the sequence
// of later draws unchanged.
func (r *Roller) Chance(p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		r.rng.Float64()
		return false
	}
	return r.rng.Float64() < p
}

// Intn returns a value in [0, n). n must be positive.
func (r *Roller) Intn(n int) int {
	return r.rng.Intn(n)
}
