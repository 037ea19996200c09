package chrono_test

import (
	"testing"

	"github.com/chronospatial/chrono"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestMachine_Run(t *testing.T) {
	for _, tt := range []struct {
		name      string
		program   []byte
		registers chrono.Registers
		output    []byte
		final     chrono.Registers
	}{
		{
			name:      "BST",
			program:   []byte{2, 6},
			registers: chrono.Registers{0, 0, 9},
			final:     chrono.Registers{0, 1, 9},
		},
		{
			name:      "OUT",
			program:   []byte{5, 0, 5, 1, 5, 4},
			registers: chrono.Registers{10, 0, 0},
			output:    []byte{0, 1, 2},
			final:     chrono.Registers{10, 0, 0},
		},
		{
			name:      "Loop",
			program:   []byte{0, 1, 5, 4, 3, 0},
			registers: chrono.Registers{2024, 0, 0},
			output:    []byte{4, 2, 5, 6, 7, 7, 7, 7, 3, 1, 0},
			final:     chrono.Registers{0, 0, 0},
		},
		{
			name:      "BXL",
			program:   []byte{1, 7},
			registers: chrono.Registers{0, 29, 0},
			final:     chrono.Registers{0, 26, 0},
		},
		{
			name:      "WideLiteral",
			program:   []byte{1, 9, 5, 5, 3, 8, 5, 4, 5, 5},
			registers: chrono.Registers{1, 0, 0},
			output:    []byte{1, 1},
			final:     chrono.Registers{1, 9, 0},
		},
		{
			name:      "WideLiteralFallthrough",
			program:   []byte{1, 9, 5, 5, 3, 8, 5, 4, 5, 5},
			registers: chrono.Registers{0, 0, 0},
			output:    []byte{1, 0, 1},
			final:     chrono.Registers{0, 9, 0},
		},
		{
			name:      "BXC",
			program:   []byte{4, 0},
			registers: chrono.Registers{0, 2024, 43690},
			final:     chrono.Registers{0, 44354, 43690},
		},
		{
			name:      "Example",
			program:   []byte{0, 1, 5, 4, 3, 0},
			registers: chrono.Registers{729, 0, 0},
			output:    []byte{4, 6, 3, 5, 6, 3, 5, 2, 1, 0},
			final:     chrono.Registers{0, 0, 0},
		},
		{
			name:      "Small",
			program:   []byte{0, 1, 5, 4, 3, 0},
			registers: chrono.Registers{6, 0, 0},
			output:    []byte{3, 1, 0},
			final:     chrono.Registers{0, 0, 0},
		},
		{
			name:      "Quine",
			program:   []byte{0, 3, 5, 4, 3, 0},
			registers: chrono.Registers{117440, 0, 0},
			output:    []byte{0, 3, 5, 4, 3, 0},
			final:     chrono.Registers{0, 0, 0},
		},
		{
			name:      "BDV_CDV",
			program:   []byte{6, 2, 7, 3},
			registers: chrono.Registers{64, 0, 0},
			final:     chrono.Registers{64, 16, 8},
		},
		{
			name:      "ShiftOverflow",
			program:   []byte{0, 5},
			registers: chrono.Registers{5, 64, 0},
			final:     chrono.Registers{0, 64, 0},
		},
		{
			name:      "OddJumpHalts",
			program:   []byte{3, 1, 5, 4},
			registers: chrono.Registers{1, 0, 0},
			final:     chrono.Registers{1, 0, 0},
		},
		{
			name:    "Empty",
			program: []byte{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m := chrono.NewMachine(chrono.MustNewProgram(tt.program...), tt.registers)
			if err := m.Run(); err != nil {
				t.Fatal(err)
			} else if !m.Halted() {
				t.Fatal("expected halted")
			}

			if output := m.Output(); len(output) != 0 || len(tt.output) != 0 {
				if diff := cmp.Diff(output, tt.output); diff != "" {
					t.Fatal(diff)
				}
			}
			if diff := cmp.Diff(m.Registers(), tt.final); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

// Ensure the same program & registers always produce the same output.
func TestRun_Deterministic(t *testing.T) {
	program := chrono.MustNewProgram(2, 4, 1, 1, 7, 5, 0, 3, 1, 4, 4, 0, 5, 5, 3, 0)
	for a := uint64(0); a < 512; a++ {
		x, err := chrono.Run(program, chrono.Registers{a, 0, 0})
		if err != nil {
			t.Fatal(err)
		}
		y, err := chrono.Run(program, chrono.Registers{a, 0, 0})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(x, y); diff != "" {
			t.Fatalf("A=%d: %s", a, diff)
		}
	}
}

func TestMachine_Step(t *testing.T) {
	t.Run("ErrReservedOperand", func(t *testing.T) {
		m := chrono.NewMachine(chrono.MustNewProgram(2, 7), chrono.Registers{})
		if err := m.Step(); errors.Cause(err) != chrono.ErrReservedOperand {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrReservedOperandWide", func(t *testing.T) {
		m := chrono.NewMachine(chrono.MustNewProgram(5, 8), chrono.Registers{})
		if err := m.Step(); errors.Cause(err) != chrono.ErrReservedOperand {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrStepLimit", func(t *testing.T) {
		m := chrono.NewMachine(chrono.MustNewProgram(3, 0), chrono.Registers{1, 0, 0})
		m.StepLimit = 10
		if err := m.Run(); errors.Cause(err) != chrono.ErrStepLimit {
			t.Fatalf("unexpected error: %v", err)
		} else if n := m.Steps(); n != 10 {
			t.Fatalf("Steps()=%d, expected 10", n)
		}
	})

	t.Run("Halted", func(t *testing.T) {
		m := chrono.NewMachine(chrono.MustNewProgram(5, 1), chrono.Registers{})
		if err := m.Step(); err != nil {
			t.Fatal(err)
		} else if pc := m.PC(); pc != 2 {
			t.Fatalf("PC()=%d, expected 2", pc)
		} else if !m.Halted() {
			t.Fatal("expected halted")
		}

		// Stepping a halted machine is a no-op.
		if err := m.Step(); err != nil {
			t.Fatal(err)
		} else if n := m.Steps(); n != 1 {
			t.Fatalf("Steps()=%d, expected 1", n)
		} else if diff := cmp.Diff(m.Output(), []byte{1}); diff != "" {
			t.Fatal(diff)
		}
	})
}
