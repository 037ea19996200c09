//go:build z3

package z3

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/benbjohnson/immutable"
	"github.com/chronospatial/chrono"
	"github.com/pkg/errors"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ chrono.Solver = (*Solver)(nil)

// Solver represents a solver that uses an embedded Z3 solver. Every session
// owns a separate Z3 context.
type Solver struct {
	mu    sync.Mutex
	stats Stats
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	return &Solver{}
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
	return &Session{solver: s, constraints: constraints, objective: objective}
}

// Session represents a set of constraints. The Z3 context is created on the
// first check and deleted when the session is closed.
type Session struct {
	solver      *Solver
	ctx         *Context
	constraints *immutable.List
	objective   *chrono.VarExpr
	model       map[uint64]uint64
	closed      bool
}

// Assert adds a boolean constraint to the session.
func (s *Session) Assert(expr chrono.Expr) error {
	if s.closed {
		return chrono.ErrSessionClosed
	} else if w := chrono.ExprWidth(expr); w != chrono.WidthBool {
		return errors.Errorf("z3: constraint must be boolean, got width %d", w)
	}
	s.constraints = s.constraints.Append(expr)
	s.model = nil
	return nil
}

// Clone returns a session with the same constraints and objective. The
// clone does not share the Z3 context.
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

// Check determines the satisfiability of the session's constraints.
// Cancelling ctx interrupts the Z3 context.
func (s *Session) Check(ctx context.Context) (chrono.Result, error) {
	if s.closed {
		return chrono.Unknown, chrono.ErrSessionClosed
	} else if err := ctx.Err(); err != nil {
		return chrono.Unknown, errors.Wrap(chrono.ErrSolverCanceled, err.Error())
	}

	t := time.Now()
	defer func() {
		s.solver.mu.Lock()
		s.solver.stats.CheckN++
		s.solver.stats.CheckTime += time.Since(t)
		s.solver.mu.Unlock()
	}()

	if s.ctx == nil {
		s.ctx = NewContext()
	}
	zctx := s.ctx

	opt := C.Z3_mk_optimize(zctx.raw)
	if err := zctx.err("Z3_mk_optimize"); err != nil {
		return chrono.Unknown, err
	}
	C.Z3_optimize_inc_ref(zctx.raw, opt)
	defer C.Z3_optimize_dec_ref(zctx.raw, opt)

	// Assert constraints.
	for i := 0; i < s.constraints.Len(); i++ {
		ast, err := zctx.toAST(s.constraints.Get(i).(chrono.Expr))
		if err != nil {
			return chrono.Unknown, err
		}
		C.Z3_optimize_assert(zctx.raw, opt, ast)
		if err := zctx.err("Z3_optimize_assert"); err != nil {
			return chrono.Unknown, err
		}
	}

	if s.objective != nil {
		ast, err := zctx.toAST(s.objective)
		if err != nil {
			return chrono.Unknown, err
		}
		C.Z3_optimize_minimize(zctx.raw, opt, ast)
		if err := zctx.err("Z3_optimize_minimize"); err != nil {
			return chrono.Unknown, err
		}
	}

	// Interrupt the check if the context is cancelled.
	var wg sync.WaitGroup
	done := make(chan struct{})
	defer func() { close(done); wg.Wait() }()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			C.Z3_interrupt(zctx.raw)
		case <-done:
		}
	}()

	ret := C.Z3_optimize_check(zctx.raw, opt, 0, nil)
	if err := zctx.err("Z3_optimize_check"); err != nil {
		return chrono.Unknown, err
	} else if ret == C.Z3_L_FALSE {
		return chrono.Unsat, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_optimize_get_reason_unknown(zctx.raw, opt))
		switch {
		case strings.Contains(reason, "timeout"):
			return chrono.Unknown, chrono.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return chrono.Unknown, chrono.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return chrono.Unknown, chrono.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"):
			return chrono.Unknown, chrono.ErrSolverUnknown
		default:
			return chrono.Unknown, errors.Errorf("z3: %s", reason)
		}
	}

	model := C.Z3_optimize_get_model(zctx.raw, opt)
	if err := zctx.err("Z3_optimize_get_model"); err != nil {
		return chrono.Unknown, err
	}
	C.Z3_model_inc_ref(zctx.raw, model)
	defer C.Z3_model_dec_ref(zctx.raw, model)

	// Fetch values for every variable.
	exprs := make([]chrono.Expr, 0, s.constraints.Len()+1)
	for i := 0; i < s.constraints.Len(); i++ {
		exprs = append(exprs, s.constraints.Get(i).(chrono.Expr))
	}
	if s.objective != nil {
		exprs = append(exprs, s.objective)
	}

	m := make(map[uint64]uint64)
	for _, v := range chrono.FindVars(exprs...) {
		value, err := zctx.eval(model, v)
		if err != nil {
			return chrono.Unknown, err
		}
		m[v.ID] = value
	}
	s.model = m

	return chrono.Sat, nil
}

// Value returns the value of v from the model of the last satisfiable check.
func (s *Session) Value(v *chrono.VarExpr) (uint64, error) {
	if s.closed {
		return 0, chrono.ErrSessionClosed
	} else if s.model == nil {
		return 0, chrono.ErrNoModel
	}
	return s.model[v.ID], nil
}

// Close deletes the session's Z3 context. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed, s.model = true, nil

	s.solver.mu.Lock()
	s.solver.stats.CloseN++
	s.solver.mu.Unlock()

	if s.ctx != nil {
		ctx := s.ctx
		s.ctx = nil
		return ctx.Close()
	}
	return nil
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toAST returns a new instance of Z3_ast from an expression.
func (ctx *Context) toAST(expr chrono.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *chrono.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *chrono.VarExpr:
		return ctx.toVarAST(expr)
	case *chrono.NotExpr:
		return ctx.toNotAST(expr)
	case *chrono.BinaryExpr:
		return ctx.toBinaryAST(expr)
	default:
		return nil, errors.Wrapf(chrono.ErrUnsupportedExpr, "z3: %T", expr)
	}
}

func (ctx *Context) toConstantAST(expr *chrono.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == chrono.WidthBool {
		if expr.IsTrue() {
			return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
		}
		return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
	}
	return ctx.makeUint64(expr.Width, expr.Value)
}

func (ctx *Context) toVarAST(expr *chrono.VarExpr) (C.Z3_ast, error) {
	if expr.Width == chrono.WidthBool {
		return nil, errors.Wrapf(chrono.ErrUnsupportedExpr, "z3: boolean var %s", expr.Name)
	}

	t, err := ctx.makeBVSort(expr.Width)
	if err != nil {
		return nil, err
	}

	name := C.CString(fmt.Sprintf("%s_%d", expr.Name, expr.ID))
	defer C.free(unsafe.Pointer(name))

	sym := C.Z3_mk_string_symbol(ctx.raw, name)
	if err := ctx.err("Z3_mk_string_symbol"); err != nil {
		return nil, err
	}
	return C.Z3_mk_const(ctx.raw, sym, t), ctx.err("Z3_mk_const")
}

func (ctx *Context) toNotAST(expr *chrono.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	// If boolean, use boolean NOT operation.
	if chrono.ExprWidth(expr.Expr) == chrono.WidthBool {
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
}

func (ctx *Context) toBinaryAST(expr *chrono.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	isBool := chrono.ExprWidth(expr.LHS) == chrono.WidthBool

	switch expr.Op {
	case chrono.AND:
		if isBool {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case chrono.OR:
		if isBool {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case chrono.XOR:
		if isBool {
			return C.Z3_mk_xor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case chrono.LSHR:
		return C.Z3_mk_bvlshr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvlshr")
	case chrono.UREM:
		return C.Z3_mk_bvurem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvurem")
	case chrono.EQ:
		if isBool {
			return C.Z3_mk_iff(ctx.raw, lhs, rhs), ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case chrono.NE:
		eq := C.Z3_mk_eq(ctx.raw, lhs, rhs)
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	default:
		return nil, errors.Wrapf(chrono.ErrUnsupportedExpr, "z3: binary op %s", expr.Op)
	}
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// eval returns the value of v in model. Unconstrained variables are zero.
func (ctx *Context) eval(model C.Z3_model, v *chrono.VarExpr) (uint64, error) {
	ast, err := ctx.toVarAST(v)
	if err != nil {
		return 0, err
	}

	var result C.Z3_ast
	if !C.Z3_model_eval(ctx.raw, model, ast, true, &result) {
		return 0, errors.Errorf("z3: cannot evaluate %s", v.Name)
	} else if err := ctx.err("Z3_model_eval"); err != nil {
		return 0, err
	}

	var value C.uint64_t
	if !C.Z3_get_numeral_uint64(ctx.raw, result, &value) {
		return 0, errors.Errorf("z3: value of %s is not a numeral", v.Name)
	}
	return uint64(value), nil
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Stats represents statistics for the solver.
type Stats struct {
	SessionN  int
	CloseN    int
	CheckN    int
	CheckTime time.Duration
}

// Open returns the number of sessions that have not been closed.
func (s Stats) Open() int {
	return s.SessionN - s.CloseN
}
