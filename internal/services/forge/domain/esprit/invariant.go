package esprit

import (
	"errors"
	"fmt"
)

// InvariantError reports state that correct tables and storage can never
// produce: a negative quantity, a hole in the fusion chart, a tier missing
// from the tier table. It is never a caller mistake.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Detail)
}

// Invariant builds an *InvariantError.
func Invariant(op, format string, args ...any) error {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// IsInvariant reports whether err carries an *InvariantError.
func IsInvariant(err error) bool {
	var target *InvariantError
	return errors.As(err, &target)
}
