package sat

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/chronospatial/chrono"
	"github.com/cespare/xxhash/v2"
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultCacheSize is the default number of check results kept by a solver.
const DefaultCacheSize = 1024

// Ensure solver implements interface.
var _ chrono.Solver = (*Solver)(nil)

// Solver represents a pure Go bitvector solver. Expressions are bit-blasted
// into a circuit and solved with the gini SAT solver.
type Solver struct {
	cache *lru.Cache // check results by constraint hash; nil if disabled

	mu    sync.Mutex
	stats Stats
}

// NewSolver returns a new instance of Solver that memoises up to cacheSize
// check results. A cacheSize of zero disables the cache.
func NewSolver(cacheSize int) (*Solver, error) {
	s := &Solver{}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "new cache")
		}
		s.cache = cache
	}
	return s, nil
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// NewSession returns a new session with no constraints.
func (s *Solver) NewSession() (chrono.Session, error) {
	return s.newSession(immutable.NewList(), nil), nil
}

func (s *Solver) newSession(constraints *immutable.List, objective *chrono.VarExpr) *Session {
	s.mu.Lock()
	s.stats.SessionN++
	s.mu.Unlock()

	return &Session{
		solver:      s,
		constraints: constraints,
		objective:   objective,
	}
}

// Session represents a set of constraints on a Solver.
type Session struct {
	solver      *Solver
	constraints *immutable.List
	objective   *chrono.VarExpr
	model       map[uint64]uint64 // values by var id from last satisfiable check
	closed      bool
}

// Assert adds a boolean constraint to the session.
func (s *Session) Assert(expr chrono.Expr) error {
	if s.closed {
		return chrono.ErrSessionClosed
	} else if w := chrono.ExprWidth(expr); w != chrono.WidthBool {
		return errors.Errorf("sat: constraint must be boolean, got width %d", w)
	} else if err := validate(expr); err != nil {
		return err
	}

	s.constraints = s.constraints.Append(expr)
	s.model = nil
	return nil
}

// Clone returns a session with the same constraints and objective. The
// constraint history is shared but appends on either session are independent.
func (s *Session) Clone() (chrono.Session, error) {
	if s.closed {
		return nil, chrono.ErrSessionClosed
	}
	return s.solver.newSession(s.constraints, s.objective), nil
}

// Minimize sets v as the value to minimize on the next check.
func (s *Session) Minimize(v *chrono.VarExpr) error {
	if s.closed {
		return chrono.ErrSessionClosed
	}
	s.objective, s.model = v, nil
	return nil
}

// Check determines the satisfiability of the session's constraints. If an
// objective is set, the model holds its smallest satisfying value.
func (s *Session) Check(ctx context.Context) (chrono.Result, error) {
	if s.closed {
		return chrono.Unknown, chrono.ErrSessionClosed
	}

	t := time.Now()
	defer func() {
		s.solver.mu.Lock()
		s.solver.stats.CheckN++
		s.solver.stats.CheckTime += time.Since(t)
		s.solver.mu.Unlock()
	}()

	constraints := make([]chrono.Expr, s.constraints.Len())
	for i := range constraints {
		constraints[i] = s.constraints.Get(i).(chrono.Expr)
	}

	// Reuse a previous result for an identical constraint set & objective.
	// Entries are compared in full since distinct sets may share a hash.
	key := cacheKey(constraints, s.objective)
	if s.solver.cache != nil {
		if v, ok := s.solver.cache.Get(key); ok {
			if entry := v.(*cacheEntry); entry.matches(constraints, s.objective) {
				s.solver.mu.Lock()
				s.solver.stats.CacheHitN++
				s.solver.mu.Unlock()

				s.model = entry.model
				return entry.result, nil
			}
		}
	}

	result, model, err := solve(ctx, constraints, s.objective)
	if err != nil {
		return chrono.Unknown, err
	}
	s.model = model

	if s.solver.cache != nil {
		s.solver.cache.Add(key, &cacheEntry{
			constraints: constraints,
			objective:   s.objective,
			result:      result,
			model:       model,
		})
	}
	return result, nil
}

// Value returns the value of v from the model of the last satisfiable check.
// Variables that do not appear in the constraints are zero.
func (s *Session) Value(v *chrono.VarExpr) (uint64, error) {
	if s.closed {
		return 0, chrono.ErrSessionClosed
	} else if s.model == nil {
		return 0, chrono.ErrNoModel
	}
	return s.model[v.ID], nil
}

// Close releases the session. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed, s.model = true, nil

	s.solver.mu.Lock()
	s.solver.stats.CloseN++
	s.solver.mu.Unlock()
	return nil
}

type cacheEntry struct {
	constraints []chrono.Expr
	objective   *chrono.VarExpr
	result      chrono.Result
	model       map[uint64]uint64 // shared, never modified
}

// matches returns true if the entry was computed for exactly the given
// constraints and objective.
func (e *cacheEntry) matches(constraints []chrono.Expr, objective *chrono.VarExpr) bool {
	if len(e.constraints) != len(constraints) {
		return false
	} else if (e.objective == nil) != (objective == nil) {
		return false
	} else if objective != nil && chrono.CompareExpr(e.objective, objective) != 0 {
		return false
	}

	for i := range constraints {
		if chrono.CompareExpr(e.constraints[i], constraints[i]) != 0 {
			return false
		}
	}
	return true
}

// cacheKey returns a hash of the constraints and objective.
func cacheKey(constraints []chrono.Expr, objective *chrono.VarExpr) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], chrono.HashExpr(constraints...))
	if objective != nil {
		binary.LittleEndian.PutUint64(buf[8:], chrono.HashExpr(objective)+1)
	}
	return xxhash.Sum64(buf[:])
}

// solve bit-blasts the constraints and runs the SAT solver. If objective is
// set then its bits are fixed from the most significant bit down so that the
// resulting model holds its smallest satisfying value.
func solve(ctx context.Context, constraints []chrono.Expr, objective *chrono.VarExpr) (chrono.Result, map[uint64]uint64, error) {
	if err := ctxErr(ctx); err != nil {
		return chrono.Unknown, nil, err
	}

	b := newBlaster()
	roots := make([]z.Lit, len(constraints))
	for i, constraint := range constraints {
		bits, err := b.toBits(constraint)
		if err != nil {
			return chrono.Unknown, nil, err
		}
		roots[i] = bits[0]
	}

	var objBits []z.Lit
	if objective != nil {
		objBits = b.varBits(objective)
	}

	// Convert the circuit to CNF and assert each constraint as a unit clause.
	g := gini.New()
	a := &adder{g: g}
	b.c.ToCnf(a)
	for _, root := range roots {
		a.Add(root)
		a.Add(z.LitNull)
	}

	if g.Solve() != 1 {
		return chrono.Unsat, nil, nil
	}

	// Fix objective bits from MSB to LSB. A bit that is already zero in the
	// current model stays zero since that model is a witness.
	if objBits != nil {
		fixed := make([]z.Lit, 0, len(objBits))
		for i := len(objBits) - 1; i >= 0; i-- {
			bit := objBits[i]
			if !a.known(bit) {
				continue // unconstrained, zero
			} else if !g.Value(bit) {
				fixed = append(fixed, bit.Not())
				continue
			}

			if err := ctxErr(ctx); err != nil {
				return chrono.Unknown, nil, err
			}

			g.Assume(fixed...)
			g.Assume(bit.Not())
			if g.Solve() == 1 {
				fixed = append(fixed, bit.Not())
				continue
			}

			// The bit must be set. Restore a model under the fixed bits.
			fixed = append(fixed, bit)
			g.Assume(fixed...)
			if g.Solve() != 1 {
				return chrono.Unknown, nil, errors.Wrap(chrono.ErrSolverUnknown, "sat: minimization lost satisfiability")
			}
		}
	}

	// Read values for every variable.
	model := make(map[uint64]uint64)
	for _, v := range b.vars() {
		var value uint64
		for i, bit := range b.varBits(v) {
			if a.known(bit) && g.Value(bit) {
				value |= 1 << uint(i)
			}
		}
		model[v.ID] = value
	}
	return chrono.Sat, model, nil
}

// ctxErr returns ErrSolverCanceled if the context is done.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(chrono.ErrSolverCanceled, err.Error())
	}
	return nil
}

// adder forwards clauses to the SAT solver and tracks the highest variable
// seen. Circuit inputs that never reach a clause are unknown to the solver.
type adder struct {
	g   *gini.Gini
	max z.Var
}

func (a *adder) Add(m z.Lit) {
	if m != z.LitNull && m.Var() > a.max {
		a.max = m.Var()
	}
	a.g.Add(m)
}

func (a *adder) known(m z.Lit) bool { return m.Var() <= a.max }

// Stats represents statistics for the solver.
type Stats struct {
	SessionN  int // sessions created, including clones
	CloseN    int // sessions closed
	CheckN    int
	CheckTime time.Duration
	CacheHitN int
}

// Open returns the number of sessions that have not been closed.
func (s Stats) Open() int {
	return s.SessionN - s.CloseN
}
