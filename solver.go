package chrono

import (
	"context"
	"fmt"
)

// Solver represents a bitvector constraint solver.
type Solver interface {
	// Returns a new, empty constraint session.
	NewSession() (Session, error)
}

// Session represents an isolated set of asserted constraints. A session is
// owned by a single branch and is never shared between branches.
type Session interface {
	// Adds a boolean constraint to the session.
	Assert(expr Expr) error

	// Returns an independent copy of the session. Constraints asserted on
	// the copy are not visible to the original and vice versa.
	Clone() (Session, error)

	// Sets an objective that favors the smallest value of v.
	Minimize(v *VarExpr) error

	// Checks the satisfiability of the asserted constraints.
	Check(ctx context.Context) (Result, error)

	// Returns the value of v in the model computed by the last satisfiable check.
	Value(v *VarExpr) (uint64, error)

	// Releases any resources held by the session. Safe to call more than once.
	Close() error
}

// Result represents the outcome of a satisfiability check.
type Result int

// Check results.
const (
	Unknown = Result(iota)
	Sat
	Unsat
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case Unknown:
		return "unknown"
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return fmt.Sprintf("Result<%d>", r)
	}
}
