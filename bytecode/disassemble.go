package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders the chunk's instruction stream as a human
// readable listing: one line per instruction, annotated with its
// source line and, for constant-referencing opcodes, the constant's
// lexeme. Grounded on the teacher's DiassembleBytecode/
// DiassembleInstruction pair; purely a developer aid, not a terminal
// debugger (that remains out of scope per spec.md §1).
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		offset = c.disassembleInstruction(&sb, offset)
	}
	return sb.String()
}

func (c *Chunk) disassembleInstruction(sb *strings.Builder, offset int) int {
	op := OpCode(c.Code[offset])
	line := c.GetLine(offset)
	fmt.Fprintf(sb, "%04d %4d %-20s", offset, line, op)

	width := op.OperandWidth()
	var operand int
	switch width {
	case 2:
		operand = int(uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2]))
	case 3:
		operand = int(c.Code[offset+1])<<16 | int(c.Code[offset+2])<<8 | int(c.Code[offset+3])
	}

	switch op {
	case OpLoadConstant, OpDeclareName, OpLoadName, OpStoreName, OpDeleteName:
		if operand >= 0 && operand < len(c.Consts) {
			fmt.Fprintf(sb, " %d (%s)", operand, ConstantLexeme(c.Consts[operand]))
		} else {
			fmt.Fprintf(sb, " %d", operand)
		}
	case OpJumpForwards, OpJumpBackwards, OpJumpIfFalse, OpJumpIfFalsePop, OpJumpIfTrue,
		OpJump, OpLongJumpForwards, OpLongJumpBackwards, OpLongJumpIfFalse,
		OpLongJumpIfFalsePop, OpLongJumpIfTrue:
		var target int
		if isBackward(op) {
			target = offset + 1 + width - operand
		} else {
			target = offset + 1 + width + operand
		}
		fmt.Fprintf(sb, " %d -> %d", operand, target)
	case OpLoadFast, OpStoreFast, OpDeleteFast, OpPopN, OpCall,
		OpBuildList, OpBuildTuple, OpBuildSet, OpBuildDict:
		fmt.Fprintf(sb, " %d", operand)
	}
	sb.WriteByte('\n')
	return offset + 1 + width
}

func isBackward(op OpCode) bool {
	switch op {
	case OpJumpBackwards, OpLongJumpBackwards:
		return true
	default:
		return false
	}
}
