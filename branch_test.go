package chrono_test

import (
	"strings"
	"testing"

	"github.com/chronospatial/chrono"
	"github.com/stretchr/testify/require"
)

func TestBranch_Fork(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		e, s := MustNewExplorer(t, chrono.MustNewProgram(0, 1, 5, 4, 3, 0), []byte{3, 1, 0}, chrono.Registers{})
		root := e.Root()

		child, err := root.Fork(chrono.NewIsZeroExpr(e.Var()))
		require.NoError(t, err)
		require.Equal(t, chrono.BranchStatusRunning, child.Status())
		require.Equal(t, root, child.Parent())
		require.Equal(t, []*chrono.Branch{child}, root.Children())

		// Constraints are added to the child only.
		require.Len(t, root.Constraints(), 0)
		require.Len(t, child.Constraints(), 1)
		require.Equal(t, 2, s.Stats().Open())

		require.NoError(t, child.Close())
		require.NoError(t, child.Close())
		require.NoError(t, e.Close())
		require.Equal(t, 0, s.Stats().Open())
	})

	// A constant false constraint prunes the child without a session.
	t.Run("Infeasible", func(t *testing.T) {
		e, s := MustNewExplorer(t, chrono.MustNewProgram(0, 1, 5, 4, 3, 0), []byte{3, 1, 0}, chrono.Registers{})
		defer e.Close()

		child, err := e.Root().Fork(chrono.NewBoolConstantExpr(false))
		require.NoError(t, err)
		require.Equal(t, chrono.BranchStatusPruned, child.Status())
		require.Equal(t, "infeasible", child.Reason())
		require.True(t, child.Terminated())
		require.Equal(t, 1, s.Stats().SessionN)
	})
}

func TestBranch_AddConstraint(t *testing.T) {
	t.Run("SplitAnd", func(t *testing.T) {
		e, _ := MustNewExplorer(t, chrono.MustNewProgram(0, 1, 5, 4, 3, 0), []byte{3, 1, 0}, chrono.Registers{})
		defer e.Close()

		a := e.Var()
		x := chrono.NewBinaryExpr(chrono.NE, a, chrono.NewConstantExpr64(0))
		y := chrono.NewBinaryExpr(chrono.EQ, chrono.NewBinaryExpr(chrono.UREM, a, chrono.NewConstantExpr64(8)), chrono.NewConstantExpr64(3))

		root := e.Root()
		require.NoError(t, root.AddConstraint(chrono.NewBinaryExpr(chrono.AND, x, y)))
		require.Equal(t, []chrono.Expr{x, y}, root.Constraints())
	})

	t.Run("True", func(t *testing.T) {
		e, _ := MustNewExplorer(t, chrono.MustNewProgram(0, 1, 5, 4, 3, 0), []byte{3, 1, 0}, chrono.Registers{})
		defer e.Close()

		require.NoError(t, e.Root().AddConstraint(chrono.NewBoolConstantExpr(true)))
		require.Len(t, e.Root().Constraints(), 0)
		require.False(t, e.Root().Terminated())
	})

	t.Run("False", func(t *testing.T) {
		e, s := MustNewExplorer(t, chrono.MustNewProgram(0, 1, 5, 4, 3, 0), []byte{3, 1, 0}, chrono.Registers{})
		defer e.Close()

		require.NoError(t, e.Root().AddConstraint(chrono.NewBoolConstantExpr(false)))
		require.Equal(t, chrono.BranchStatusPruned, e.Root().Status())
		require.Equal(t, 0, s.Stats().Open())
	})
}

func TestBranch_Dump(t *testing.T) {
	e, _ := MustNewExplorer(t, chrono.MustNewProgram(0, 1, 5, 4, 3, 0), []byte{3, 1, 0}, chrono.Registers{0, 4, 5})
	defer e.Close()

	s := e.Root().Dump()
	for _, want := range []string{
		"BRANCH #1\n",
		"status=running\n",
		"A=(var A 64)\n",
		"B=(const 4 64)\n",
		"C=(const 5 64)\n",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("dump missing %q:\n%s", want, s)
		}
	}
}
