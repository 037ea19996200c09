package chrono

import (
	"bytes"
	"fmt"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
)

// Branch represents one path of the program under symbolic exploration.
type Branch struct {
	id int

	// Explorer this is executed within.
	explorer *Explorer

	// Branch hierarchy.
	parent   *Branch
	children []*Branch

	pc        int
	registers [3]Expr
	next      int // index of the next expected output digit
	steps     int // instructions executed along this path

	// Shows whether branch is running, finished, or terminated early.
	status BranchStatus
	reason string

	// Constraints collected so far during execution. Shared with the
	// parent branch up to the point of the fork.
	constraints *immutable.List

	// Solver session holding the same constraints. Owned by this branch.
	session Session
}

// newBranch returns the root branch with a fresh session.
func newBranch(e *Explorer, registers [3]Expr, session Session) *Branch {
	return &Branch{
		explorer:    e,
		registers:   registers,
		status:      BranchStatusRunning,
		constraints: immutable.NewList(),
		session:     session,
	}
}

// ID returns an autoincrementing ID assigned by the explorer.
func (b *Branch) ID() int { return b.id }

// Parent returns the branch this branch was forked from.
func (b *Branch) Parent() *Branch { return b.parent }

// Children returns the branches forked from this branch.
func (b *Branch) Children() []*Branch { return b.children }

// PC returns the program counter.
func (b *Branch) PC() int { return b.pc }

// Register returns the symbolic value of register i.
func (b *Branch) Register(i int) Expr { return b.registers[i] }

// NextOutputIndex returns the index of the next target digit to match.
func (b *Branch) NextOutputIndex() int { return b.next }

// Steps returns the number of instructions executed along the branch.
func (b *Branch) Steps() int { return b.steps }

// Status returns the current status of the branch.
// See Reason() for additional information if the branch terminated early.
func (b *Branch) Status() BranchStatus { return b.status }

// Reason returns additional information about the status of the branch.
func (b *Branch) Reason() string { return b.reason }

// Terminated returns true if the branch will not execute further.
func (b *Branch) Terminated() bool {
	return b.status != BranchStatusRunning
}

// IsCandidate returns true if the branch finished after matching every target digit.
func (b *Branch) IsCandidate() bool {
	return b.status == BranchStatusCandidate
}

// Constraints returns the constraints collected along the branch.
func (b *Branch) Constraints() []Expr {
	a := make([]Expr, b.constraints.Len())
	for i := range a {
		a[i] = b.constraints.Get(i).(Expr)
	}
	return a
}

// Clone returns a copy of the branch with its own solver session. The
// constraint history is shared, not copied. This does not clone child branches.
func (b *Branch) Clone() (*Branch, error) {
	assert(b.session != nil, "clone: branch #%d has no session", b.id)

	session, err := b.session.Clone()
	if err != nil {
		return nil, errors.Wrapf(err, "clone branch #%d", b.id)
	}

	other := b.shallowClone()
	other.session = session
	return other, nil
}

func (b *Branch) shallowClone() *Branch {
	return &Branch{
		explorer:    b.explorer,
		parent:      b.parent,
		pc:          b.pc,
		registers:   b.registers,
		next:        b.next,
		steps:       b.steps,
		status:      b.status,
		constraints: b.constraints,
	}
}

// Fork returns a child copy of the branch with the additional constraint.
// A constraint that is known to be false yields a pruned child without a
// solver session.
func (b *Branch) Fork(constraint Expr) (*Branch, error) {
	var child *Branch
	if IsConstantFalse(constraint) {
		child = b.shallowClone()
		child.status, child.reason = BranchStatusPruned, "infeasible"
	} else {
		var err error
		if child, err = b.Clone(); err != nil {
			return nil, err
		}
	}
	child.parent = b

	if !child.Terminated() {
		if err := child.AddConstraint(constraint); err != nil {
			child.Close()
			return nil, err
		}
	}
	b.children = append(b.children, child)
	return child, nil
}

// AddConstraint adds a constraint to the branch and its session. A constant
// false constraint prunes the branch.
func (b *Branch) AddConstraint(expr Expr) error {
	assert(ExprWidth(expr) == WidthBool, "constraint must be boolean: %s", expr)

	if IsConstantTrue(expr) {
		return nil
	} else if IsConstantFalse(expr) {
		return b.prune("infeasible")
	}

	// Split logical conjunctions into two separate constraints.
	if expr, ok := expr.(*BinaryExpr); ok && expr.Op == AND {
		if err := b.AddConstraint(expr.LHS); err != nil {
			return err
		} else if b.Terminated() {
			return nil
		}
		return b.AddConstraint(expr.RHS)
	}

	b.constraints = b.constraints.Append(expr)
	if err := b.session.Assert(expr); err != nil {
		return errors.Wrapf(err, "assert on branch #%d", b.id)
	}
	return nil
}

// finish marks the branch as halted. Only branches that matched every target
// digit keep their session.
func (b *Branch) finish(targetLen int) error {
	if b.next == targetLen {
		b.status = BranchStatusCandidate
		return nil
	}
	b.status, b.reason = BranchStatusFinished, fmt.Sprintf("halted after %d of %d digits", b.next, targetLen)
	return b.Close()
}

// prune terminates the branch and releases its session.
func (b *Branch) prune(reason string) error {
	b.status, b.reason = BranchStatusPruned, reason
	return b.Close()
}

// fail terminates the branch because of an execution error.
func (b *Branch) fail(reason string) error {
	b.status, b.reason = BranchStatusFailed, reason
	return b.Close()
}

// Close releases the solver session owned by the branch.
func (b *Branch) Close() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}

// Dump returns the contents of the branch as a string.
func (b *Branch) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "BRANCH #%d\n", b.id)
	fmt.Fprintln(&buf, "===============")
	fmt.Fprintf(&buf, "status=%s\n", b.status)
	fmt.Fprintf(&buf, "reason=%s\n", b.reason)
	fmt.Fprintf(&buf, "pc=%d next=%d steps=%d\n", b.pc, b.next, b.steps)
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== REGISTERS")
	for i, name := range []string{"A", "B", "C"} {
		fmt.Fprintf(&buf, "%s=%s\n", name, b.registers[i])
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== CONSTRAINTS")
	for i, expr := range b.Constraints() {
		fmt.Fprintf(&buf, "%d. %s\n", i, expr.String())
	}
	return buf.String()
}

// BranchStatus represents the current status of a branch.
// The branch will also include a reason if it terminated without finishing.
type BranchStatus string

const (
	BranchStatusRunning   = BranchStatus("running")   // has future instructions
	BranchStatusCandidate = BranchStatus("candidate") // halted after matching all digits
	BranchStatusFinished  = BranchStatus("finished")  // halted with digits left to match
	BranchStatusPruned    = BranchStatus("pruned")    // cannot match the target
	BranchStatusFailed    = BranchStatus("failed")    // execution error
	BranchStatusForked    = BranchStatus("forked")    // replaced by its children
)
