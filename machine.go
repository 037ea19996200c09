package chrono

import (
	"github.com/pkg/errors"
)

// Machine executes a program against concrete registers.
type Machine struct {
	program   Program
	registers Registers
	pc        int
	steps     int
	output    []byte

	// Maximum number of instructions to execute. Zero means unlimited.
	StepLimit int
}

// NewMachine returns a new instance of Machine.
func NewMachine(program Program, registers Registers) *Machine {
	return &Machine{
		program:   program,
		registers: registers,
	}
}

// Run executes program to completion and returns its output.
func Run(program Program, registers Registers) ([]byte, error) {
	m := NewMachine(program, registers)
	if err := m.Run(); err != nil {
		return m.Output(), err
	}
	return m.Output(), nil
}

// Registers returns the current register values.
func (m *Machine) Registers() Registers { return m.registers }

// PC returns the program counter.
func (m *Machine) PC() int { return m.pc }

// Steps returns the number of executed instructions.
func (m *Machine) Steps() int { return m.steps }

// Output returns a copy of the output produced so far.
func (m *Machine) Output() []byte {
	other := make([]byte, len(m.output))
	copy(other, m.output)
	return other
}

// Halted returns true if no more instructions can execute.
func (m *Machine) Halted() bool {
	return m.program.Halted(m.pc)
}

// Run steps until the machine halts.
func (m *Machine) Run() error {
	for !m.Halted() {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single instruction.
func (m *Machine) Step() error {
	if m.Halted() {
		return nil
	} else if m.StepLimit > 0 && m.steps >= m.StepLimit {
		return errors.Wrapf(ErrStepLimit, "after %d steps", m.steps)
	}
	m.steps++

	op, operand := m.program.Instr(m.pc)
	switch op {
	case ADV:
		return m.executeDivInstr(RegA, operand)
	case BXL:
		m.registers[RegB] ^= uint64(operand)
	case BST:
		v, err := m.combo(operand)
		if err != nil {
			return err
		}
		m.registers[RegB] = v % 8
	case JNZ:
		if m.registers[RegA] != 0 {
			m.pc = int(operand)
			return nil
		}
	case BXC:
		m.registers[RegB] ^= m.registers[RegC]
	case OUT:
		v, err := m.combo(operand)
		if err != nil {
			return err
		}
		m.output = append(m.output, byte(v%8))
	case BDV:
		return m.executeDivInstr(RegB, operand)
	case CDV:
		return m.executeDivInstr(RegC, operand)
	default:
		return errors.Wrapf(ErrInvalidOpcode, "opcode %d at pc %d", op, m.pc)
	}

	m.pc += 2
	return nil
}

// executeDivInstr stores A shifted right by the combo operand into register dst.
func (m *Machine) executeDivInstr(dst int, operand byte) error {
	v, err := m.combo(operand)
	if err != nil {
		return err
	}
	m.registers[dst] = m.registers[RegA] >> v // shifts >= 64 yield zero
	m.pc += 2
	return nil
}

// combo resolves a combo operand to its value.
func (m *Machine) combo(operand byte) (uint64, error) {
	switch {
	case operand < 4:
		return uint64(operand), nil
	case operand < 7:
		return m.registers[operand-4], nil
	default:
		return 0, errors.Wrapf(ErrReservedOperand, "operand %d at pc %d", operand, m.pc)
	}
}
