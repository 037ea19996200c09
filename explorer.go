package chrono

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

// Explorer searches for the smallest initial value of register A that makes
// a program produce a target output. Every running branch advances by exactly
// one instruction per round.
type Explorer struct {
	program   Program
	target    []byte
	registers Registers // initial registers; A is ignored
	solver    Solver
	a         *VarExpr // unknown initial value of A

	root        *Branch   // initial branch
	all         []*Branch // every branch created, for release on Close
	branches    []*Branch // running branches
	candidates  []*Branch // finished branches that matched the target
	solutions   []Solution
	round       int
	branchIDSeq int

	// Limits on the search. Zero means unlimited.
	MaxRounds   int
	MaxBranches int

	// If set, every forked branch is checked for satisfiability and
	// pruned early if it cannot be satisfied.
	CheckForks bool

	Logger   *zap.Logger
	Registry metrics.Registry
}

// NewExplorer returns a new instance of Explorer seeded with a single branch.
func NewExplorer(program Program, target []byte, registers Registers, solver Solver) (*Explorer, error) {
	e := &Explorer{
		program:   program,
		target:    append([]byte(nil), target...),
		registers: registers,
		solver:    solver,
		a:         NewVarExpr(1, "A", WordWidth),

		Logger:   zap.NewNop(),
		Registry: metrics.NewRegistry(),
	}

	session, err := solver.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "new session")
	}

	e.root = newBranch(e, [3]Expr{
		e.a,
		NewConstantExpr64(registers[RegB]),
		NewConstantExpr64(registers[RegC]),
	}, session)
	e.track(e.root)

	if err := e.settle(e.root); err != nil {
		e.root.Close()
		return nil, err
	} else if !e.root.Terminated() {
		e.branches = []*Branch{e.root}
	}
	return e, nil
}

// Root returns the initial branch.
func (e *Explorer) Root() *Branch { return e.root }

// Var returns the unknown that represents the initial value of register A.
func (e *Explorer) Var() *VarExpr { return e.a }

// Round returns the number of completed rounds.
func (e *Explorer) Round() int { return e.round }

// Branches returns the running branches.
func (e *Explorer) Branches() []*Branch { return e.branches }

// Candidates returns all candidate branches found so far.
func (e *Explorer) Candidates() []*Branch { return e.candidates }

// Solutions returns the satisfiable candidates resolved by Search().
func (e *Explorer) Solutions() []Solution { return e.solutions }

// nextBranchID returns the next autoincrementing branch ID.
func (e *Explorer) nextBranchID() int {
	e.branchIDSeq++
	return e.branchIDSeq
}

// track assigns an id to a newly created branch.
func (e *Explorer) track(b *Branch) {
	b.id = e.nextBranchID()
	e.all = append(e.all, b)
	e.counter("branches").Inc(1)
}

// Search explores every branch of the program and returns the smallest value
// of A found across all candidates. Returns ErrNoSolution if no candidate is
// satisfiable.
func (e *Explorer) Search(ctx context.Context) (uint64, error) {
	for {
		if err := e.Step(ctx); err == ErrNoBranchAvailable {
			break
		} else if err != nil {
			return 0, err
		}
	}
	return e.resolve(ctx)
}

// Step executes one instruction on every running branch. This can be called
// continually until ErrNoBranchAvailable is returned.
func (e *Explorer) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	} else if len(e.branches) == 0 {
		return ErrNoBranchAvailable
	} else if e.MaxRounds > 0 && e.round >= e.MaxRounds {
		return errors.Wrapf(ErrRoundLimit, "%d rounds", e.round)
	}

	e.round++
	e.counter("rounds").Inc(1)
	e.Logger.Debug("round", zap.Int("round", e.round), zap.Int("branches", len(e.branches)))

	next := make([]*Branch, 0, len(e.branches))
	for _, b := range e.branches {
		children, err := e.executeNextInstruction(ctx, b)
		if err != nil {
			return err
		}

		for _, child := range children {
			if err := e.settle(child); err != nil {
				return err
			} else if !child.Terminated() {
				next = append(next, child)
			}
		}
	}
	e.branches = next

	if e.MaxBranches > 0 && len(e.branches) > e.MaxBranches {
		return errors.Wrapf(ErrBranchLimit, "%d branches in round %d", len(e.branches), e.round)
	}
	return nil
}

// settle moves a branch into a terminal status if it has halted and records
// terminal branches.
func (e *Explorer) settle(b *Branch) error {
	if !b.Terminated() && e.program.Halted(b.pc) {
		if err := b.finish(len(e.target)); err != nil {
			return err
		}
	}

	switch b.status {
	case BranchStatusCandidate:
		e.candidates = append(e.candidates, b)
		e.counter("candidates").Inc(1)
		e.Logger.Debug("candidate", zap.Int("branch", b.id), zap.Int("steps", b.steps))
	case BranchStatusFinished:
		e.counter("finished").Inc(1)
		e.Logger.Debug("finished", zap.Int("branch", b.id), zap.String("reason", b.reason))
	case BranchStatusPruned:
		e.counter("pruned").Inc(1)
		e.Logger.Debug("pruned", zap.Int("branch", b.id), zap.String("reason", b.reason))
	case BranchStatusFailed:
		e.counter("failed").Inc(1)
		e.Logger.Debug("failed", zap.Int("branch", b.id), zap.String("reason", b.reason))
	}
	return nil
}

// executeNextInstruction executes the instruction at the branch's program
// counter and returns the branches that replace it.
func (e *Explorer) executeNextInstruction(ctx context.Context, b *Branch) ([]*Branch, error) {
	op, operand := e.program.Instr(b.pc)
	b.steps++

	if ce := e.Logger.Check(zap.DebugLevel, "exec"); ce != nil {
		ce.Write(zap.Int("branch", b.id), zap.Int("pc", b.pc), zap.Stringer("op", op), zap.Uint8("operand", operand))
	}

	var err error
	switch op {
	case ADV:
		err = e.executeDivInstr(b, RegA, operand)
	case BXL:
		err = e.executeBxlInstr(b, operand)
	case BST:
		err = e.executeBstInstr(b, operand)
	case JNZ:
		return e.executeJnzInstr(ctx, b, operand)
	case BXC:
		err = e.executeBxcInstr(b)
	case OUT:
		err = e.executeOutInstr(b, operand)
	case BDV:
		err = e.executeDivInstr(b, RegB, operand)
	case CDV:
		err = e.executeDivInstr(b, RegC, operand)
	default:
		return nil, errors.Wrapf(ErrInvalidOpcode, "opcode %d at pc %d", op, b.pc)
	}
	if err != nil {
		return nil, err
	}
	return []*Branch{b}, nil
}

func (e *Explorer) executeDivInstr(b *Branch, dst int, operand byte) error {
	v, ok := e.combo(b, operand)
	if !ok {
		return b.fail(fmt.Sprintf("reserved combo operand %d at pc %d", operand, b.pc))
	}
	b.registers[dst] = NewBinaryExpr(LSHR, b.registers[RegA], v)
	b.pc += 2
	return nil
}

func (e *Explorer) executeBxlInstr(b *Branch, operand byte) error {
	b.registers[RegB] = NewBinaryExpr(XOR, b.registers[RegB], NewConstantExpr64(uint64(operand)))
	b.pc += 2
	return nil
}

func (e *Explorer) executeBstInstr(b *Branch, operand byte) error {
	v, ok := e.combo(b, operand)
	if !ok {
		return b.fail(fmt.Sprintf("reserved combo operand %d at pc %d", operand, b.pc))
	}
	b.registers[RegB] = NewBinaryExpr(UREM, v, NewConstantExpr64(8))
	b.pc += 2
	return nil
}

func (e *Explorer) executeBxcInstr(b *Branch) error {
	b.registers[RegB] = NewBinaryExpr(XOR, b.registers[RegB], b.registers[RegC])
	b.pc += 2
	return nil
}

// executeOutInstr constrains the emitted digit to the next target digit.
// Branches that emit more digits than the target holds are pruned.
func (e *Explorer) executeOutInstr(b *Branch, operand byte) error {
	if b.next >= len(e.target) {
		return b.prune(fmt.Sprintf("extra output at pc %d", b.pc))
	}

	v, ok := e.combo(b, operand)
	if !ok {
		return b.fail(fmt.Sprintf("reserved combo operand %d at pc %d", operand, b.pc))
	}

	digit := NewBinaryExpr(UREM, v, NewConstantExpr64(8))
	if err := b.AddConstraint(NewBinaryExpr(EQ, digit, NewConstantExpr64(uint64(e.target[b.next])))); err != nil {
		return err
	} else if b.Terminated() {
		return nil
	}

	b.next++
	b.pc += 2
	return nil
}

// executeJnzInstr forks the branch into a fall-through child where A is zero
// and a jump child where A is non-zero.
func (e *Explorer) executeJnzInstr(ctx context.Context, b *Branch, operand byte) ([]*Branch, error) {
	a := b.registers[RegA]

	fallthru, err := b.Fork(NewIsZeroExpr(a))
	if err != nil {
		return nil, err
	}
	fallthru.pc += 2
	e.track(fallthru)

	jump, err := b.Fork(NewBinaryExpr(NE, a, NewConstantExpr(0, ExprWidth(a))))
	if err != nil {
		fallthru.Close()
		return nil, err
	}
	jump.pc = int(operand)
	e.track(jump)

	// The parent is replaced by its children.
	b.status = BranchStatusForked
	if err := b.Close(); err != nil {
		return nil, err
	}
	e.counter("forks").Inc(1)
	e.Logger.Debug("fork",
		zap.Int("branch", b.id),
		zap.Int("fallthrough", fallthru.id),
		zap.Int("jump", jump.id),
	)

	children := []*Branch{fallthru, jump}
	if e.CheckForks {
		for _, child := range children {
			if child.Terminated() {
				continue
			} else if err := e.checkFeasible(ctx, child); err != nil {
				return nil, err
			}
		}
	}
	return children, nil
}

// checkFeasible prunes the branch if its constraints cannot be satisfied.
func (e *Explorer) checkFeasible(ctx context.Context, b *Branch) error {
	result, err := e.check(ctx, b)
	if err != nil {
		return err
	} else if result != Sat {
		return b.prune(fmt.Sprintf("%s at fork", result))
	}
	return nil
}

// check runs a satisfiability check on the branch's session. Solver failures
// that do not decide satisfiability are reported as Unknown.
func (e *Explorer) check(ctx context.Context, b *Branch) (Result, error) {
	t := time.Now()
	defer metrics.GetOrRegisterTimer("solver/check", e.Registry).UpdateSince(t)

	result, err := b.session.Check(ctx)
	if err != nil {
		if isUnknownErr(err) {
			e.Logger.Warn("solver unknown", zap.Int("branch", b.id), zap.Error(err))
			return Unknown, nil
		}
		return Unknown, errors.Wrapf(err, "check branch #%d", b.id)
	}
	return result, nil
}

// combo resolves a combo operand to its symbolic value.
func (e *Explorer) combo(b *Branch, operand byte) (Expr, bool) {
	switch {
	case operand < 4:
		return NewConstantExpr64(uint64(operand)), true
	case operand < 7:
		return b.registers[operand-4], true
	default:
		return nil, false
	}
}

// resolve minimizes A on every candidate and returns the smallest value.
func (e *Explorer) resolve(ctx context.Context) (uint64, error) {
	var best *Solution
	for _, b := range e.candidates {
		if b.session == nil {
			continue // already resolved
		}

		value, ok, err := e.solve(ctx, b)
		if err != nil {
			return 0, err
		} else if !ok {
			continue
		}

		if err := e.verify(b, value); err != nil {
			return 0, err
		}

		solution := Solution{BranchID: b.id, Value: value}
		e.solutions = append(e.solutions, solution)
		e.Logger.Debug("solution", zap.Int("branch", b.id), zap.Uint64("a", value))

		if best == nil || solution.Value < best.Value {
			best = &solution
		}
	}

	if best == nil {
		return 0, ErrNoSolution
	}
	e.Logger.Info("search complete",
		zap.Uint64("a", best.Value),
		zap.Int("rounds", e.round),
		zap.Int("candidates", len(e.candidates)),
	)
	return best.Value, nil
}

// solve returns the smallest value of A satisfying the candidate's
// constraints. The candidate's session is released before returning.
func (e *Explorer) solve(ctx context.Context, b *Branch) (value uint64, ok bool, err error) {
	defer func() {
		if e := b.Close(); e != nil && err == nil {
			err = e
		}
	}()

	if err := b.session.Minimize(e.a); err != nil {
		return 0, false, errors.Wrapf(err, "minimize branch #%d", b.id)
	}

	result, err := e.check(ctx, b)
	if err != nil {
		return 0, false, err
	} else if result != Sat {
		b.status, b.reason = BranchStatusPruned, fmt.Sprintf("candidate %s", result)
		e.counter("pruned").Inc(1)
		return 0, false, nil
	}

	if value, err = b.session.Value(e.a); err != nil {
		return 0, false, errors.Wrapf(err, "model of branch #%d", b.id)
	}
	return value, true, nil
}

// verify runs the concrete machine with value in register A and ensures it
// reproduces the target exactly.
func (e *Explorer) verify(b *Branch, value uint64) error {
	registers := e.registers
	registers[RegA] = value

	m := NewMachine(e.program, registers)
	m.StepLimit = b.steps + 1
	if err := m.Run(); err != nil {
		return errors.Wrapf(ErrInvalidSolution, "A=%d: %s", value, err)
	} else if output := m.Output(); !bytes.Equal(output, e.target) {
		return errors.Wrapf(ErrInvalidSolution, "A=%d: output %s", value, JoinDigits(output))
	}
	return nil
}

// Close releases the sessions of all unresolved branches, including branches
// left behind by a round that failed partway through.
func (e *Explorer) Close() error {
	var err error
	for _, b := range e.all {
		if e := b.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Stats returns counters collected during the search.
func (e *Explorer) Stats() Stats {
	return Stats{
		Rounds:     int(e.counter("rounds").Count()),
		Branches:   int(e.counter("branches").Count()),
		Forks:      int(e.counter("forks").Count()),
		Candidates: int(e.counter("candidates").Count()),
		Finished:   int(e.counter("finished").Count()),
		Pruned:     int(e.counter("pruned").Count()),
		Failed:     int(e.counter("failed").Count()),
		Running:    len(e.branches),
	}
}

func (e *Explorer) counter(name string) metrics.Counter {
	return metrics.GetOrRegisterCounter("explorer/"+name, e.Registry)
}

// isUnknownErr returns true if err means the solver could not decide satisfiability.
func isUnknownErr(err error) bool {
	switch errors.Cause(err) {
	case ErrSolverTimeout, ErrSolverResourceLimit, ErrSolverUnknown:
		return true
	default:
		return false
	}
}

// Solution represents a value of A that satisfies a candidate branch.
type Solution struct {
	BranchID int
	Value    uint64
}

// Stats represents counters collected by the explorer.
type Stats struct {
	Rounds     int
	Branches   int // created, including the root
	Forks      int
	Candidates int
	Finished   int
	Pruned     int
	Failed     int
	Running    int
}
