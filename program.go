package chrono

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Opcode represents an instruction opcode.
type Opcode byte

// Opcodes.
const (
	ADV = Opcode(iota) // A = A >> combo
	BXL                // B = B ^ literal
	BST                // B = combo % 8
	JNZ                // if A != 0 { pc = literal }
	BXC                // B = B ^ C
	OUT                // emit combo % 8
	BDV                // B = A >> combo
	CDV                // C = A >> combo
)

var opcodes = [...]string{
	ADV: "adv",
	BXL: "bxl",
	BST: "bst",
	JNZ: "jnz",
	BXC: "bxc",
	OUT: "out",
	BDV: "bdv",
	CDV: "cdv",
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if int(op) < len(opcodes) {
		return opcodes[op]
	}
	return fmt.Sprintf("Opcode<%d>", op)
}

// IsValid returns true if op is a known opcode.
func (op Opcode) IsValid() bool {
	return op <= CDV
}

// HasComboOperand returns true if the operand of op is resolved as a combo operand.
func (op Opcode) HasComboOperand() bool {
	switch op {
	case ADV, BST, OUT, BDV, CDV:
		return true
	default:
		return false
	}
}

// Register indexes.
const (
	RegA = iota
	RegB
	RegC
)

// Registers holds the values of registers A, B & C.
type Registers [3]uint64

// Program represents an immutable list of opcode/operand pairs.
type Program struct {
	data []byte
}

// NewProgram validates data and returns it as a program. Only opcodes are
// validated; operands are full bytes and combo operands above 6 fail at runtime.
// The program holds a copy of data.
func NewProgram(data []byte) (Program, error) {
	if len(data)%2 != 0 {
		return Program{}, errors.Wrapf(ErrOddProgram, "length %d", len(data))
	}
	for i := 0; i < len(data); i += 2 {
		if op := Opcode(data[i]); !op.IsValid() {
			return Program{}, errors.Wrapf(ErrInvalidOpcode, "opcode %d at offset %d", data[i], i)
		}
	}

	other := make([]byte, len(data))
	copy(other, data)
	return Program{data: other}, nil
}

// MustNewProgram returns a new program. Panic on error.
func MustNewProgram(data ...byte) Program {
	p, err := NewProgram(data)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the length of the program, in bytes.
func (p Program) Len() int { return len(p.data) }

// Bytes returns a copy of the program bytes.
func (p Program) Bytes() []byte {
	other := make([]byte, len(p.data))
	copy(other, p.data)
	return other
}

// Instr returns the opcode & operand at pc.
func (p Program) Instr(pc int) (Opcode, byte) {
	assert(pc >= 0 && pc+1 < len(p.data), "instruction out of bounds: pc=%d len=%d", pc, len(p.data))
	return Opcode(p.data[pc]), p.data[pc+1]
}

// Halted returns true if execution at pc must stop. This is the case when no
// complete instruction remains at pc or when pc is not instruction-aligned.
func (p Program) Halted(pc int) bool {
	return pc < 0 || pc%2 != 0 || pc+1 >= len(p.data)
}

// String returns the comma-separated program bytes.
func (p Program) String() string {
	return JoinDigits(p.data)
}

// Disassemble returns one line per instruction.
func (p Program) Disassemble() string {
	var sb strings.Builder
	for pc := 0; pc+1 < len(p.data); pc += 2 {
		op, operand := p.Instr(pc)
		fmt.Fprintf(&sb, "%02d %s %d\n", pc, op, operand)
	}
	return sb.String()
}

// JoinDigits returns a comma-separated list of digits.
func JoinDigits(a []byte) string {
	s := make([]string, len(a))
	for i := range a {
		s[i] = strconv.Itoa(int(a[i]))
	}
	return strings.Join(s, ",")
}

// ParseDigits parses a comma-separated list of digits.
func ParseDigits(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	fields := strings.Split(s, ",")
	a := make([]byte, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid digit %q", field)
		}
		a = append(a, byte(v))
	}
	return a, nil
}
