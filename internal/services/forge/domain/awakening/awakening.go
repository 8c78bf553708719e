// Package awakening holds the deterministic rules for spending stack copies
// to raise a stack's awakening level.
package awakening

import (
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

// Cost is the number of copies consumed to go from level to level+1.
func Cost(level int) int {
	return level + 1
}

// Blocker explains why a stack cannot awaken right now.
type Blocker int

const (
	// None means the stack can awaken.
	None Blocker = iota
	// MaxLevel means the stack is already at the terminal level.
	MaxLevel
	// InsufficientCopies means awakening would leave the stack empty.
	InsufficientCopies
)

// Check reports whether stack can take one awakening step. The stack must
// keep at least one copy, so quantity has to exceed the cost.
func Check(stack esprit.Stack) Blocker {
	if stack.AwakeningLevel >= esprit.MaxAwakening {
		return MaxLevel
	}
	if stack.Quantity <= Cost(stack.AwakeningLevel) {
		return InsufficientCopies
	}
	return None
}

// CanAwaken reports whether Check finds no blocker.
func CanAwaken(stack esprit.Stack) bool {
	return Check(stack) == None
}

// Step applies one awakening step and returns the updated stack and the
// copies consumed. Callers must Check first.
func Step(stack esprit.Stack) (esprit.Stack, int) {
	cost := Cost(stack.AwakeningLevel)
	stack.Quantity -= cost
	stack.AwakeningLevel++
	return stack, cost
}

// Plan returns how many steps up to limit stack can take in a row and the
// total copies that would consume.
func Plan(stack esprit.Stack, limit int) (steps int, copies int) {
	for steps < limit && CanAwaken(stack) {
		var cost int
		stack, cost = Step(stack)
		copies += cost
		steps++
	}
	return steps, copies
}
