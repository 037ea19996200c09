package chrono_test

import (
	"testing"

	"github.com/chronospatial/chrono"
	"github.com/google/go-cmp/cmp"
)

var (
	varA = chrono.NewVarExpr(1, "A", 64)
	varB = chrono.NewVarExpr(2, "B", 64)
	varX = chrono.NewVarExpr(3, "X", 8)
)

func TestExprWidth(t *testing.T) {
	t.Run("ConstantExpr", func(t *testing.T) {
		if w := chrono.ExprWidth(&chrono.ConstantExpr{Value: 0, Width: 8}); w != 8 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("VarExpr", func(t *testing.T) {
		if w := chrono.ExprWidth(varA); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("NotExpr", func(t *testing.T) {
		if w := chrono.ExprWidth(&chrono.NotExpr{Expr: &chrono.ConstantExpr{Value: 0, Width: 8}}); w != 8 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("BinaryExpr", func(t *testing.T) {
		t.Run("Bool", func(t *testing.T) {
			if w := chrono.ExprWidth(&chrono.BinaryExpr{Op: chrono.EQ, LHS: varA, RHS: varB}); w != 1 {
				t.Fatalf("unexpected width: %d", w)
			}
		})
		t.Run("NonBool", func(t *testing.T) {
			if w := chrono.ExprWidth(&chrono.BinaryExpr{Op: chrono.XOR, LHS: varA, RHS: varB}); w != 64 {
				t.Fatalf("unexpected width: %d", w)
			}
		})
	})
}

func TestBinaryOp_String(t *testing.T) {
	if s := chrono.AND.String(); s != "and" {
		t.Fatalf("unexpected string: %s", s)
	} else if s := chrono.NE.String(); s != "ne" {
		t.Fatalf("unexpected string: %s", s)
	} else if s := chrono.BinaryOp(100).String(); s != "BinaryOp<100>" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestBinaryOp_IsArithmetic(t *testing.T) {
	if !chrono.LSHR.IsArithmetic() {
		t.Fatal("expected arithmetic")
	} else if chrono.EQ.IsArithmetic() {
		t.Fatal("expected not arithmetic")
	}
}

func TestBinaryOp_IsCompare(t *testing.T) {
	if !chrono.EQ.IsCompare() {
		t.Fatal("expected compare")
	} else if chrono.UREM.IsCompare() {
		t.Fatal("expected not compare")
	}
}

func TestBinaryExpr_String(t *testing.T) {
	expr := &chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: chrono.NewConstantExpr64(7)}
	if s := expr.String(); s != "(and (var A 64) (const 7 64))" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestNewBinaryExpr_AND(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND, chrono.NewConstantExpr(0x0F, 8), chrono.NewConstantExpr(0xFF, 8))
		exp := chrono.NewConstantExpr(0x0F, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("AllOnes", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND, chrono.NewConstantExpr(0xFF, 8), varX)
		if diff := cmp.Diff(got, chrono.Expr(varX)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Zero", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND, chrono.NewConstantExpr(0, 8), varX)
		exp := chrono.NewConstantExpr(0, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("MergeMasks", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND,
			chrono.NewBinaryExpr(chrono.AND, varA, chrono.NewConstantExpr64(0xFF)),
			chrono.NewConstantExpr64(0x0F),
		)
		exp := &chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: chrono.NewConstantExpr64(0x0F)}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantLHS", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND, chrono.NewConstantExpr64(7), varA)
		exp := &chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: chrono.NewConstantExpr64(7)}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Same", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND, varA, varA)
		if diff := cmp.Diff(got, chrono.Expr(varA)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.AND, varA, varB)
		exp := &chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: varB}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_OR(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.OR, chrono.NewConstantExpr(0x0F, 8), chrono.NewConstantExpr(0xF0, 8))
		exp := chrono.NewConstantExpr(0xFF, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("AllOnes", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.OR, varX, chrono.NewConstantExpr(0xFF, 8))
		exp := chrono.NewConstantExpr(0xFF, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Zero", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.OR, chrono.NewConstantExpr64(0), varA)
		if diff := cmp.Diff(got, chrono.Expr(varA)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.OR, varA, varB)
		exp := &chrono.BinaryExpr{Op: chrono.OR, LHS: varA, RHS: varB}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_XOR(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.XOR, chrono.NewConstantExpr(0x0F, 8), chrono.NewConstantExpr(0xFF, 8))
		exp := chrono.NewConstantExpr(0xF0, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Zero", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.XOR, varA, chrono.NewConstantExpr64(0))
		if diff := cmp.Diff(got, chrono.Expr(varA)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantRHS", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.XOR, varA, chrono.NewConstantExpr64(5))
		exp := &chrono.BinaryExpr{Op: chrono.XOR, LHS: chrono.NewConstantExpr64(5), RHS: varA}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("MergeConstants", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.XOR,
			chrono.NewConstantExpr64(3),
			chrono.NewBinaryExpr(chrono.XOR, chrono.NewConstantExpr64(5), varA),
		)
		exp := &chrono.BinaryExpr{Op: chrono.XOR, LHS: chrono.NewConstantExpr64(6), RHS: varA}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Same", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.XOR, varA, varA)
		exp := chrono.NewConstantExpr64(0)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_LSHR(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR, chrono.NewConstantExpr(0xF0, 8), chrono.NewConstantExpr(4, 8))
		exp := chrono.NewConstantExpr(0x0F, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantOverflow", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR, chrono.NewConstantExpr(0xFF, 8), chrono.NewConstantExpr(8, 8))
		exp := chrono.NewConstantExpr(0, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ZeroShift", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR, varA, chrono.NewConstantExpr64(0))
		if diff := cmp.Diff(got, chrono.Expr(varA)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ZeroValue", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR, chrono.NewConstantExpr64(0), varA)
		exp := chrono.NewConstantExpr64(0)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Overflow", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR, varA, chrono.NewConstantExpr64(64))
		exp := chrono.NewConstantExpr64(0)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("CombineShifts", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR,
			chrono.NewBinaryExpr(chrono.LSHR, varA, chrono.NewConstantExpr64(3)),
			chrono.NewConstantExpr64(3),
		)
		exp := &chrono.BinaryExpr{Op: chrono.LSHR, LHS: varA, RHS: chrono.NewConstantExpr64(6)}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("CombineShiftsOverflow", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR,
			chrono.NewBinaryExpr(chrono.LSHR, varA, chrono.NewConstantExpr64(60)),
			chrono.NewConstantExpr64(4),
		)
		exp := chrono.NewConstantExpr64(0)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.LSHR, varA, varB)
		exp := &chrono.BinaryExpr{Op: chrono.LSHR, LHS: varA, RHS: varB}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_UREM(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.UREM, chrono.NewConstantExpr64(10), chrono.NewConstantExpr64(8))
		exp := chrono.NewConstantExpr64(2)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("PowerOfTwo", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.UREM, varA, chrono.NewConstantExpr64(8))
		exp := &chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: chrono.NewConstantExpr64(7)}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("NotPowerOfTwo", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.UREM, varA, chrono.NewConstantExpr64(3))
		exp := &chrono.BinaryExpr{Op: chrono.UREM, LHS: varA, RHS: chrono.NewConstantExpr64(3)}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("DivideByZero", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.UREM, chrono.NewConstantExpr64(5), chrono.NewConstantExpr64(0))
		exp := chrono.NewConstantExpr64(5)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_EQ(t *testing.T) {
	t.Run("ConstantTrue", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.EQ, chrono.NewConstantExpr(10, 8), chrono.NewConstantExpr(10, 8))
		exp := chrono.NewConstantExpr(1, 1)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantFalse", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.EQ, chrono.NewConstantExpr(3, 8), chrono.NewConstantExpr(10, 8))
		exp := chrono.NewConstantExpr(0, 1)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.EQ, varA, varB)
		exp := &chrono.BinaryExpr{Op: chrono.EQ, LHS: varA, RHS: varB}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("SymbolicEqual", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.EQ, varA, varA)
		exp := chrono.NewConstantExpr(1, 1)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantRHS", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.EQ, varA, chrono.NewConstantExpr64(0))
		exp := &chrono.BinaryExpr{Op: chrono.EQ, LHS: chrono.NewConstantExpr64(0), RHS: varA}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ConstantLHS", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			got := chrono.NewBinaryExpr(chrono.EQ, chrono.NewBoolConstantExpr(true), chrono.NewBinaryExpr(chrono.EQ, varA, varB))
			exp := &chrono.BinaryExpr{Op: chrono.EQ, LHS: varA, RHS: varB}
			if diff := cmp.Diff(got, exp); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("DoubleNegation", func(t *testing.T) {
			inner := chrono.NewBinaryExpr(chrono.EQ, chrono.NewBoolConstantExpr(false), chrono.NewBinaryExpr(chrono.EQ, varA, varB))
			got := chrono.NewBinaryExpr(chrono.EQ, chrono.NewBoolConstantExpr(false), inner)
			exp := &chrono.BinaryExpr{Op: chrono.EQ, LHS: varA, RHS: varB}
			if diff := cmp.Diff(got, exp); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("MaskOutOfRange", func(t *testing.T) {
			got := chrono.NewBinaryExpr(chrono.EQ,
				chrono.NewConstantExpr64(9),
				chrono.NewBinaryExpr(chrono.AND, varA, chrono.NewConstantExpr64(7)),
			)
			exp := chrono.NewBoolConstantExpr(false)
			if diff := cmp.Diff(got, exp); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("MaskInRange", func(t *testing.T) {
			got := chrono.NewBinaryExpr(chrono.EQ,
				chrono.NewConstantExpr64(5),
				chrono.NewBinaryExpr(chrono.AND, varA, chrono.NewConstantExpr64(7)),
			)
			exp := &chrono.BinaryExpr{
				Op:  chrono.EQ,
				LHS: chrono.NewConstantExpr64(5),
				RHS: &chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: chrono.NewConstantExpr64(7)},
			}
			if diff := cmp.Diff(got, exp); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("XOR", func(t *testing.T) {
			got := chrono.NewBinaryExpr(chrono.EQ,
				chrono.NewConstantExpr64(3),
				chrono.NewBinaryExpr(chrono.XOR, chrono.NewConstantExpr64(5), varA),
			)
			exp := &chrono.BinaryExpr{Op: chrono.EQ, LHS: chrono.NewConstantExpr64(6), RHS: varA}
			if diff := cmp.Diff(got, exp); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("NotExpr", func(t *testing.T) {
			x := chrono.NewBinaryExpr(chrono.EQ, varA, varB)
			got := chrono.NewBinaryExpr(chrono.EQ, chrono.NewBoolConstantExpr(false), chrono.NewNotExpr(x))
			if diff := cmp.Diff(got, x); diff != "" {
				t.Fatal(diff)
			}
		})
	})
}

func TestNewBinaryExpr_NE(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.NE, chrono.NewConstantExpr64(3), chrono.NewConstantExpr64(4))
		exp := chrono.NewBoolConstantExpr(true)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("SymbolicEqual", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.NE, varA, varA)
		exp := chrono.NewBoolConstantExpr(false)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		got := chrono.NewBinaryExpr(chrono.NE, varA, varB)
		exp := &chrono.BinaryExpr{
			Op:  chrono.EQ,
			LHS: chrono.NewBoolConstantExpr(false),
			RHS: &chrono.BinaryExpr{Op: chrono.EQ, LHS: varA, RHS: varB},
		}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewNotExpr(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := chrono.NewNotExpr(chrono.NewConstantExpr(0x0F, 8))
		exp := chrono.NewConstantExpr(0xF0, 8)
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("DoubleNot", func(t *testing.T) {
		got := chrono.NewNotExpr(chrono.NewNotExpr(varA))
		if diff := cmp.Diff(got, chrono.Expr(varA)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		got := chrono.NewNotExpr(varA)
		exp := &chrono.NotExpr{Expr: varA}
		if diff := cmp.Diff(got, exp); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNotExpr_String(t *testing.T) {
	expr := &chrono.NotExpr{Expr: varA}
	if s := expr.String(); s != "(not (var A 64))" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestNewConstantExpr(t *testing.T) {
	t.Run("Mask", func(t *testing.T) {
		if expr := chrono.NewConstantExpr(0x1FF, 8); expr.Value != 0xFF {
			t.Fatalf("unexpected value: %x", expr.Value)
		}
	})
	t.Run("Width64", func(t *testing.T) {
		if expr := chrono.NewConstantExpr64(^uint64(0)); !expr.IsAllOnes() {
			t.Fatalf("expected all ones: %x", expr.Value)
		}
	})
}

func TestConstantExpr_String(t *testing.T) {
	if s := chrono.NewConstantExpr64(7).String(); s != "(const 7 64)" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestIsConstantTrue(t *testing.T) {
	t.Run("Bool", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			if !chrono.IsConstantTrue(chrono.NewConstantExpr(1, 1)) {
				t.Fatal("expected true")
			}
		})
		t.Run("False", func(t *testing.T) {
			if chrono.IsConstantTrue(chrono.NewConstantExpr(0, 1)) {
				t.Fatal("expected false")
			}
		})
	})
	t.Run("NonBool", func(t *testing.T) {
		if chrono.IsConstantTrue(chrono.NewConstantExpr(1, 8)) {
			t.Fatal("expected false")
		}
	})
}

func TestIsConstantFalse(t *testing.T) {
	t.Run("Bool", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			if chrono.IsConstantFalse(chrono.NewConstantExpr(1, 1)) {
				t.Fatal("expected false")
			}
		})
		t.Run("False", func(t *testing.T) {
			if !chrono.IsConstantFalse(chrono.NewConstantExpr(0, 1)) {
				t.Fatal("expected true")
			}
		})
	})
	t.Run("NonBool", func(t *testing.T) {
		if chrono.IsConstantFalse(chrono.NewConstantExpr(0, 8)) {
			t.Fatal("expected false")
		}
	})
}

func TestNewIsZeroExpr(t *testing.T) {
	got := chrono.NewIsZeroExpr(varA)
	exp := &chrono.BinaryExpr{Op: chrono.EQ, LHS: chrono.NewConstantExpr64(0), RHS: varA}
	if diff := cmp.Diff(got, exp); diff != "" {
		t.Fatal(diff)
	}
}

func TestCompareExpr(t *testing.T) {
	if cmp := chrono.CompareExpr(chrono.NewConstantExpr64(1), varA); cmp != -1 {
		t.Fatalf("CompareExpr(const, var)=%d, expected -1", cmp)
	} else if cmp := chrono.CompareExpr(varB, varA); cmp != 1 {
		t.Fatalf("CompareExpr(B, A)=%d, expected 1", cmp)
	} else if cmp := chrono.CompareExpr(
		&chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: varB},
		&chrono.BinaryExpr{Op: chrono.AND, LHS: varA, RHS: varB},
	); cmp != 0 {
		t.Fatalf("CompareExpr(and, and)=%d, expected 0", cmp)
	}
}

func TestFindVars(t *testing.T) {
	vars := chrono.FindVars(chrono.NewBinaryExpr(chrono.AND, varB, varA), varA, chrono.NewConstantExpr64(1))
	if diff := cmp.Diff(vars, []*chrono.VarExpr{varA, varB}); diff != "" {
		t.Fatal(diff)
	}
}

func TestHashExpr(t *testing.T) {
	x := chrono.NewBinaryExpr(chrono.XOR, varA, chrono.NewConstantExpr64(3))
	y := chrono.NewBinaryExpr(chrono.XOR, chrono.NewConstantExpr64(3), chrono.NewVarExpr(1, "A", 64))
	z := chrono.NewBinaryExpr(chrono.XOR, varA, chrono.NewConstantExpr64(4))

	if chrono.HashExpr(x) != chrono.HashExpr(y) {
		t.Fatal("expected equal hashes for equal expressions")
	} else if chrono.HashExpr(x) == chrono.HashExpr(z) {
		t.Fatal("expected different hashes")
	} else if chrono.HashExpr(x, z) == chrono.HashExpr(z, x) {
		t.Fatal("expected order to affect hash")
	}
}

func TestExprEvaluator_Evaluate(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		// (A >> 3) % 8 == 5
		expr := chrono.NewBinaryExpr(chrono.EQ,
			chrono.NewBinaryExpr(chrono.UREM,
				chrono.NewBinaryExpr(chrono.LSHR, varA, chrono.NewConstantExpr64(3)),
				chrono.NewConstantExpr64(8),
			),
			chrono.NewConstantExpr64(5),
		)

		ee := chrono.NewExprEvaluator([]*chrono.VarExpr{varA}, []uint64{40})
		if v, err := ee.Evaluate(expr); err != nil {
			t.Fatal(err)
		} else if !v.IsTrue() {
			t.Fatalf("unexpected value: %s", v)
		}

		ee = chrono.NewExprEvaluator([]*chrono.VarExpr{varA}, []uint64{41})
		if v, err := ee.Evaluate(expr); err != nil {
			t.Fatal(err)
		} else if !v.IsTrue() {
			t.Fatalf("unexpected value: %s", v)
		}

		ee = chrono.NewExprEvaluator([]*chrono.VarExpr{varA}, []uint64{48})
		if v, err := ee.Evaluate(expr); err != nil {
			t.Fatal(err)
		} else if !v.IsFalse() {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	t.Run("ErrUnbound", func(t *testing.T) {
		ee := chrono.NewExprEvaluator(nil, nil)
		if _, err := ee.Evaluate(chrono.NewBinaryExpr(chrono.XOR, varA, varB)); err == nil || err.Error() != "var not bound: A" {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
