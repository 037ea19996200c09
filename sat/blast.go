package sat

import (
	"sort"

	"github.com/chronospatial/chrono"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// blaster converts expressions into a circuit of single-bit literals.
// Bitvectors are stored least significant bit first.
type blaster struct {
	c     *logic.C
	vm    map[uint64][]z.Lit        // var bits by var id
	vars0 map[uint64]*chrono.VarExpr // vars by id
	cache map[chrono.Expr][]z.Lit
}

func newBlaster() *blaster {
	return &blaster{
		c:     logic.NewC(),
		vm:    make(map[uint64][]z.Lit),
		vars0: make(map[uint64]*chrono.VarExpr),
		cache: make(map[chrono.Expr][]z.Lit),
	}
}

// vars returns all variables seen by the blaster, sorted by id.
func (b *blaster) vars() []*chrono.VarExpr {
	a := make([]*chrono.VarExpr, 0, len(b.vars0))
	for _, v := range b.vars0 {
		a = append(a, v)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].ID < a[j].ID })
	return a
}

// varBits returns the input literals for v, allocating them on first use.
func (b *blaster) varBits(v *chrono.VarExpr) []z.Lit {
	if bits, ok := b.vm[v.ID]; ok {
		return bits
	}

	bits := make([]z.Lit, v.Width)
	for i := range bits {
		bits[i] = b.c.Lit()
	}
	b.vm[v.ID], b.vars0[v.ID] = bits, v
	return bits
}

// toBits returns the literals for expr.
func (b *blaster) toBits(expr chrono.Expr) ([]z.Lit, error) {
	if bits, ok := b.cache[expr]; ok {
		return bits, nil
	}

	var bits []z.Lit
	var err error
	switch expr := expr.(type) {
	case *chrono.ConstantExpr:
		bits = b.constBits(expr.Value, expr.Width)
	case *chrono.VarExpr:
		bits = b.varBits(expr)
	case *chrono.NotExpr:
		bits, err = b.toNotBits(expr)
	case *chrono.BinaryExpr:
		bits, err = b.toBinaryBits(expr)
	default:
		return nil, errors.Wrapf(chrono.ErrUnsupportedExpr, "sat: %T", expr)
	}
	if err != nil {
		return nil, err
	}

	b.cache[expr] = bits
	return bits, nil
}

func (b *blaster) constBits(value uint64, width uint) []z.Lit {
	bits := make([]z.Lit, width)
	for i := range bits {
		if value&(1<<uint(i)) != 0 {
			bits[i] = b.c.T
		} else {
			bits[i] = b.c.F
		}
	}
	return bits
}

func (b *blaster) toNotBits(expr *chrono.NotExpr) ([]z.Lit, error) {
	x, err := b.toBits(expr.Expr)
	if err != nil {
		return nil, err
	}

	bits := make([]z.Lit, len(x))
	for i := range x {
		bits[i] = x[i].Not()
	}
	return bits, nil
}

func (b *blaster) toBinaryBits(expr *chrono.BinaryExpr) ([]z.Lit, error) {
	lhs, err := b.toBits(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := b.toBits(expr.RHS)
	if err != nil {
		return nil, err
	}

	switch expr.Op {
	case chrono.AND:
		return b.bitwise(lhs, rhs, b.c.And), nil
	case chrono.OR:
		return b.bitwise(lhs, rhs, b.c.Or), nil
	case chrono.XOR:
		return b.bitwise(lhs, rhs, b.c.Xor), nil
	case chrono.LSHR:
		return b.lshr(lhs, rhs), nil
	case chrono.UREM:
		return b.urem(lhs, expr.RHS)
	case chrono.EQ:
		return []z.Lit{b.eq(lhs, rhs)}, nil
	case chrono.NE:
		return []z.Lit{b.eq(lhs, rhs).Not()}, nil
	default:
		return nil, errors.Wrapf(chrono.ErrUnsupportedExpr, "sat: binary op %s", expr.Op)
	}
}

func (b *blaster) bitwise(lhs, rhs []z.Lit, fn func(a, b z.Lit) z.Lit) []z.Lit {
	bits := make([]z.Lit, len(lhs))
	for i := range bits {
		bits[i] = fn(lhs[i], rhs[i])
	}
	return bits
}

// eq returns a literal that is true when every bit of lhs and rhs match.
func (b *blaster) eq(lhs, rhs []z.Lit) z.Lit {
	ms := make([]z.Lit, len(lhs))
	for i := range ms {
		ms[i] = b.c.Xor(lhs[i], rhs[i]).Not()
	}
	return b.c.Ands(ms...)
}

// lshr returns x shifted right by the amount in s using a barrel shifter.
// Shift amounts of at least the width produce zero.
func (b *blaster) lshr(x, s []z.Lit) []z.Lit {
	width := len(x)
	cur := append([]z.Lit(nil), x...)

	stage := 0
	for ; stage < len(s) && 1<<uint(stage) < width; stage++ {
		n := 1 << uint(stage)
		next := make([]z.Lit, width)
		for i := range next {
			shifted := b.c.F
			if i+n < width {
				shifted = cur[i+n]
			}
			next[i] = b.c.Choice(s[stage], shifted, cur[i])
		}
		cur = next
	}

	// Any remaining shift bit moves everything out.
	if stage < len(s) {
		overflow := b.c.Ors(s[stage:]...)
		for i := range cur {
			cur[i] = b.c.And(overflow.Not(), cur[i])
		}
	}
	return cur
}

// urem only supports division by a constant power of two, which keeps the
// low bits of x.
func (b *blaster) urem(x []z.Lit, divisor chrono.Expr) ([]z.Lit, error) {
	d, ok := divisor.(*chrono.ConstantExpr)
	if !ok || d.Value == 0 || d.Value&(d.Value-1) != 0 {
		return nil, errors.Wrapf(chrono.ErrUnsupportedExpr, "sat: urem by %s", divisor)
	}

	bits := make([]z.Lit, len(x))
	for i := range bits {
		if uint64(1)<<uint(i) < d.Value {
			bits[i] = x[i]
		} else {
			bits[i] = b.c.F
		}
	}
	return bits, nil
}

// validate returns an error if expr contains an expression the blaster
// cannot convert.
func validate(expr chrono.Expr) error {
	v := &validator{}
	chrono.WalkExpr(v, expr)
	return v.err
}

type validator struct {
	err error
}

func (v *validator) Visit(expr chrono.Expr) chrono.ExprVisitor {
	if v.err != nil {
		return nil
	}

	if expr, ok := expr.(*chrono.BinaryExpr); ok && expr.Op == chrono.UREM {
		d, ok := expr.RHS.(*chrono.ConstantExpr)
		if !ok || d.Value == 0 || d.Value&(d.Value-1) != 0 {
			v.err = errors.Wrapf(chrono.ErrUnsupportedExpr, "sat: urem by %s", expr.RHS)
			return nil
		}
	}
	return v
}
