package chrono

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths.
const (
	WidthBool = 1
	Width3    = 3
	Width8    = 8
	Width64   = 64

	// WordWidth is the width of every register, in bits.
	WordWidth = Width64
)

// Load errors.
var (
	ErrOddProgram    = errors.New("chrono: program must have an even length")
	ErrInvalidOpcode = errors.New("chrono: invalid opcode")
)

// Execution errors.
var (
	ErrStepLimit         = errors.New("chrono: step limit reached")
	ErrReservedOperand   = errors.New("chrono: reserved combo operand")
	ErrNoBranchAvailable = errors.New("chrono: no branch available")
	ErrNoSolution        = errors.New("chrono: no solution")
	ErrRoundLimit        = errors.New("chrono: round limit reached")
	ErrBranchLimit       = errors.New("chrono: branch limit reached")
	ErrInvalidSolution   = errors.New("chrono: solution does not reproduce target")
)

// Solver errors.
var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")
	ErrSessionClosed       = errors.New("Solver session closed")
	ErrNoModel             = errors.New("Solver model not available")
	ErrUnsupportedExpr     = errors.New("Solver unsupported expression")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
