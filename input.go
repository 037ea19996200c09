package chrono

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Input represents the initial register values and program of a listing.
type Input struct {
	Registers Registers
	Program   Program
}

// ParseError represents a malformed line in an input listing.
type ParseError struct {
	Line    int
	Message string
}

// Error returns the error as a string.
func (e *ParseError) Error() string {
	return fmt.Sprintf("chrono: line %d: %s", e.Line, e.Message)
}

// ParseInput parses a listing of three registers followed by a program:
//
//	Register A: 729
//	Register B: 0
//	Register C: 0
//
//	Program: 0,1,5,4,3,0
func ParseInput(r io.Reader) (*Input, error) {
	var input Input

	scanner := bufio.NewScanner(r)
	var lineNo, nregs int
	var program *Program
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		i := strings.IndexByte(line, ':')
		if i == -1 {
			return nil, &ParseError{Line: lineNo, Message: "missing colon"}
		}
		key, value := strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])

		// Registers are always listed first, in order.
		if nregs < len(input.Registers) {
			if !strings.HasPrefix(key, "Register") {
				return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("expected register, found %q", key)}
			}
			v, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("invalid register value %q", value)}
			}
			input.Registers[nregs] = v
			nregs++
			continue
		}

		if key != "Program" {
			return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("expected program, found %q", key)}
		} else if program != nil {
			return nil, &ParseError{Line: lineNo, Message: "duplicate program"}
		}

		data, err := ParseDigits(value)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Message: err.Error()}
		}
		p, err := NewProgram(data)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		program = &p
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if nregs < len(input.Registers) {
		return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("expected 3 registers, found %d", nregs)}
	} else if program == nil {
		return nil, &ParseError{Line: lineNo, Message: "missing program"}
	}
	input.Program = *program

	return &input, nil
}
