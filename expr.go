package chrono

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Expr represents a symbolic bitvector expression.
type Expr interface {
	expr()
	String() string
}

func (*BinaryExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*NotExpr) expr()      {}
func (*VarExpr) expr()      {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *VarExpr:
		return expr.Width
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	AND
	OR
	XOR
	LSHR
	UREM
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	compare_op_end
)

var binaryOps = [...]string{
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	LSHR: "lshr",
	UREM: "urem",
	EQ:   "eq",
	NE:   "ne",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a simplified expression for op applied to lhs & rhs.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: op=%s %d != %d", op, ExprWidth(lhs), ExprWidth(rhs))

	switch op {
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)
	case LSHR:
		return newLShrExpr(lhs, rhs)
	case UREM:
		return newURemExpr(lhs, rhs)
	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewBinaryExpr(EQ, NewConstantExpr(0, WidthBool), NewBinaryExpr(EQ, lhs, rhs))
	default:
		panic("unreachable")
	}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// newAndExpr returns an expression that represents the bitwise AND of lhs & rhs.
func newAndExpr(lhs, rhs Expr) Expr {
	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.And(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		// Optimize for if constant is all ones or zeros.
		if rhs.IsAllOnes() {
			return lhs
		} else if rhs.Value == 0 {
			return rhs
		}

		// Merge masks: (x & M) & N == x & (M & N)
		if lhs, ok := lhs.(*BinaryExpr); ok && lhs.Op == AND {
			if mask, ok := lhs.RHS.(*ConstantExpr); ok {
				return NewBinaryExpr(AND, lhs.LHS, mask.And(rhs))
			}
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

// newOrExpr returns an expression that represents the bitwise OR of lhs & rhs.
func newOrExpr(lhs, rhs Expr) Expr {
	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Or(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return rhs
		} else if rhs.Value == 0 {
			return lhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

// newXorExpr returns an expression that represents the bitwise XOR of lhs & rhs.
func newXorExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 0 {
			return rhs
		} else if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Xor(rhs)
		}

		// Merge constants: X ^ (Y ^ z) == (X^Y) ^ z
		if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == XOR {
			if k, ok := rhs.LHS.(*ConstantExpr); ok {
				return NewBinaryExpr(XOR, lhs.Xor(k), rhs.RHS)
			}
		}
	}

	// A value XOR'd with itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs}
}

// newLShrExpr returns an expression that represents the logical shift-right of lhs by rhs bits.
func newLShrExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.LShr(rhs)
		} else if lhs.Value == 0 {
			return lhs
		}
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		width := ExprWidth(lhs)
		if rhs.Value == 0 {
			return lhs
		} else if rhs.Value >= uint64(width) {
			return NewConstantExpr(0, width)
		}

		// Combine shifts: (x >> M) >> N == x >> (M+N)
		if lhs, ok := lhs.(*BinaryExpr); ok && lhs.Op == LSHR {
			if k, ok := lhs.RHS.(*ConstantExpr); ok {
				return NewBinaryExpr(LSHR, lhs.LHS, NewConstantExpr(k.Value+rhs.Value, width))
			}
		}
	}
	return &BinaryExpr{Op: LSHR, LHS: lhs, RHS: rhs}
}

// newURemExpr returns an expression that represents the unsigned remainder of lhs divided by rhs.
func newURemExpr(lhs, rhs Expr) Expr {
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if lhs, ok := lhs.(*ConstantExpr); ok {
			return lhs.URem(rhs)
		}

		// Remainder of a power of two is a mask of the low bits.
		if rhs.Value != 0 && rhs.Value&(rhs.Value-1) == 0 {
			return NewBinaryExpr(AND, lhs, NewConstantExpr(rhs.Value-1, rhs.Width))
		}
	}
	return &BinaryExpr{Op: UREM, LHS: lhs, RHS: rhs}
}

// newEqExpr returns an expression that represents the equality of lhs and rhs.
func newEqExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		// Compute constant if both sides are constant.
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eq(rhs)
		}

		width := ExprWidth(lhs)
		if width == WidthBool && lhs.IsTrue() {
			return rhs // T == X => X
		}

		switch rhs := rhs.(type) {
		case *BinaryExpr:
			switch rhs.Op {
			case EQ:
				if width == WidthBool && IsConstantFalse(rhs.LHS) && ExprWidth(rhs.RHS) == WidthBool {
					return rhs.RHS // 0 == (0 == A) => A
				}
			case AND:
				// C == (x & M) is false when C has bits outside of M.
				if mask, ok := rhs.RHS.(*ConstantExpr); ok && lhs.Value&^mask.Value != 0 {
					return NewBoolConstantExpr(false)
				}
			case XOR:
				if k, ok := rhs.LHS.(*ConstantExpr); ok { // X == (Y ^ z) => (X^Y) == z
					return NewBinaryExpr(EQ, lhs.Xor(k), rhs.RHS)
				}
			}
		case *NotExpr:
			if width == WidthBool { // F == !X => X
				return rhs.Expr
			}
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	}
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}

// NotExpr represents a bitwise not of an expression.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Not()
	case *NotExpr:
		return expr.Expr
	}
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// VarExpr represents an unknown bitvector value.
type VarExpr struct {
	ID    uint64
	Name  string
	Width uint
}

// NewVarExpr returns a new unknown with the given width. The id must be
// unique among all variables used within a single solver session.
func NewVarExpr(id uint64, name string, width uint) *VarExpr {
	assert(width > 0 && width <= Width64, "invalid var width: %d", width)
	return &VarExpr{ID: id, Name: name, Width: width}
}

// String returns the string representation of the expression.
func (e *VarExpr) String() string {
	return fmt.Sprintf("(var %s %d)", e.Name, e.Width)
}

// ConstantExpr represents a fixed-width integer of up to 64 bits.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return &ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}
}

// NewConstantExpr64 returns a 64-bit constant expression.
func NewConstantExpr64(value uint64) *ConstantExpr {
	return NewConstantExpr(value, 64)
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return NewConstantExpr(1, WidthBool)
	}
	return NewConstantExpr(0, WidthBool)
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value == 1
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

// And returns the bitwise AND of e and other.
func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

// Or returns the bitwise OR of e and other.
func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

// Xor returns the bitwise XOR of e and other.
func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

// LShr returns the value of e logically shifted right by other number of bits.
func (e *ConstantExpr) LShr(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value>>other.Value, e.Width)
}

// URem returns the remainder of unsigned division of e and other.
// Division by zero returns e, matching bitvector semantics.
func (e *ConstantExpr) URem(other *ConstantExpr) *ConstantExpr {
	if other.Value == 0 {
		return e
	}
	return NewConstantExpr(e.Value%other.Value, e.Width)
}

// Eq returns the equality of e and other.
func (e *ConstantExpr) Eq(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "eq: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(e.Value == other.Value)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

func bitmask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is an instance of ConstantExpr and is true.
func IsConstantTrue(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsTrue()
}

// IsConstantFalse returns true if expr is an instance of ConstantExpr and is false.
func IsConstantFalse(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsFalse()
}

// NewIsZeroExpr returns an expression that checks the equality of other to zero.
func NewIsZeroExpr(other Expr) Expr {
	return NewBinaryExpr(EQ, other, NewConstantExpr(0, ExprWidth(other)))
}

// CompareExpr returns an integer comparing two expressions.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	} else if a == b {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *VarExpr:
		return compareVarExpr(a, b.(*VarExpr))
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	default:
		panic("unreachable")
	}
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}

	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

func compareVarExpr(a, b *VarExpr) int {
	if a.ID < b.ID {
		return -1
	} else if a.ID > b.ID {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return 0
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks, hashing and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *VarExpr:
		return 2
	case *NotExpr:
		return 3
	case *BinaryExpr:
		return 4
	default:
		panic("unreachable")
	}
}

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Return nil to skip the children of expr.
	Visit(expr Expr) ExprVisitor
}

// WalkExpr traverses expr in depth-first order.
func WalkExpr(v ExprVisitor, expr Expr) {
	if v = v.Visit(expr); v == nil {
		return
	}

	switch expr := expr.(type) {
	case *BinaryExpr:
		WalkExpr(v, expr.LHS)
		WalkExpr(v, expr.RHS)
	case *NotExpr:
		WalkExpr(v, expr.Expr)
	case *ConstantExpr, *VarExpr:
		// nop
	default:
		panic("unreachable")
	}
}

// FindVars returns all variables in the expression trees, sorted by id.
func FindVars(exprs ...Expr) []*VarExpr {
	v := &varExprVisitor{m: make(map[uint64]*VarExpr)}
	for _, expr := range exprs {
		WalkExpr(v, expr)
	}

	a := make([]*VarExpr, 0, len(v.m))
	for _, e := range v.m {
		a = append(a, e)
	}
	sort.Slice(a, func(i, j int) bool { return CompareExpr(a[i], a[j]) == -1 })
	return a
}

type varExprVisitor struct {
	m map[uint64]*VarExpr
}

func (v *varExprVisitor) Visit(expr Expr) ExprVisitor {
	if expr, ok := expr.(*VarExpr); ok {
		if _, ok := v.m[expr.ID]; !ok {
			v.m[expr.ID] = expr
		}
	}
	return v
}

// HashExpr returns a structural hash of the expressions. Expressions that
// compare equal with CompareExpr hash to the same value.
func HashExpr(exprs ...Expr) uint64 {
	h := exprHasher{digest: xxhash.New()}
	for _, expr := range exprs {
		h.write(expr)
	}
	return h.digest.Sum64()
}

type exprHasher struct {
	digest *xxhash.Digest
	buf    [8]byte
}

func (h *exprHasher) writeUint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	h.digest.Write(h.buf[:])
}

func (h *exprHasher) write(expr Expr) {
	h.writeUint64(uint64(exprKind(expr)))

	switch expr := expr.(type) {
	case *ConstantExpr:
		h.writeUint64(uint64(expr.Width))
		h.writeUint64(expr.Value)
	case *VarExpr:
		h.writeUint64(uint64(expr.Width))
		h.writeUint64(expr.ID)
	case *NotExpr:
		h.write(expr.Expr)
	case *BinaryExpr:
		h.writeUint64(uint64(expr.Op))
		h.write(expr.LHS)
		h.write(expr.RHS)
	default:
		panic("unreachable")
	}
}

// ExprEvaluator evaluates expressions using known variable values.
type ExprEvaluator struct {
	m map[uint64]uint64 // mapping of var id to value
}

// NewExprEvaluator returns a new instance of ExprEvaluator with the given var/value mapping.
func NewExprEvaluator(vars []*VarExpr, values []uint64) *ExprEvaluator {
	assert(len(vars) == len(values), "var/value count mismatch: %d != %d", len(vars), len(values))

	m := make(map[uint64]uint64)
	for i, v := range vars {
		_, ok := m[v.ID]
		assert(!ok, "duplicate var: id=%d", v.ID)
		m[v.ID] = values[i] & bitmask(v.Width)
	}
	return &ExprEvaluator{m: m}
}

// Evaluate evaluates expr to a constant expression.
// Returns an error if an unbound variable is encountered.
func (ee *ExprEvaluator) Evaluate(expr Expr) (*ConstantExpr, error) {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr, nil
	case *VarExpr:
		value, ok := ee.m[expr.ID]
		if !ok {
			return nil, errors.Errorf("var not bound: %s", expr.Name)
		}
		return NewConstantExpr(value, expr.Width), nil
	case *NotExpr:
		e, err := ee.Evaluate(expr.Expr)
		if err != nil {
			return nil, err
		}
		return e.Not(), nil
	case *BinaryExpr:
		lhs, err := ee.Evaluate(expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ee.Evaluate(expr.RHS)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpr(expr.Op, lhs, rhs).(*ConstantExpr), nil
	default:
		return nil, errors.Errorf("invalid expression type: %T", expr)
	}
}
