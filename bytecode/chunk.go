package bytecode

import (
	"encoding/binary"
	"fmt"

	"japl/ast"
)

// maxJump is the largest distance a Long* jump family opcode can
// express with its 24-bit operand; spec.md §4.4 makes exceeding this a
// hard compile error.
const maxJump = 1<<24 - 1

// maxConstants is the largest number of entries the constant pool can
// hold, again bounded by the 24-bit operand every constant-referencing
// opcode uses.
const maxConstants = 1<<24 - 1

// lineRun is one (line, count) pair of the run-length-encoded line
// table: "the next count bytes belong to line".
type lineRun struct {
	line  int
	count int
}

// Chunk is the compiled artifact the compiler produces and the
// serializer consumes: a flat instruction stream, a deduplicated
// constant pool, and an RLE line table mapping byte offsets back to
// source lines. Most constant-pool entries are *ast.Literal or
// *ast.Identifier (spec.md §3's "consts: seq<AST literal/identifier>");
// a *FunctionConstant or *ClassConstant entry holds a nested Chunk for
// a compiled function/lambda/class body (spec.md's opcode table has no
// closure-creation opcode, so these are addressed purely through the
// constant pool — see DESIGN.md's compiler entry).
type Chunk struct {
	Code   []byte
	Consts []any
	lines  []lineRun

	// ReuseConsts gates structural-equality constant deduplication in
	// AddConstant; when false every call appends a fresh slot.
	ReuseConsts bool
}

// NewChunk constructs an empty Chunk. reuseConsts fixes the
// constant-pool dedup policy for the lifetime of this chunk.
func NewChunk(reuseConsts bool) *Chunk {
	return &Chunk{ReuseConsts: reuseConsts}
}

// Write appends a single raw byte to the code stream, recording line
// in the RLE line table.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	if n := len(c.lines); n > 0 && c.lines[n-1].line == line {
		c.lines[n-1].count++
		return
	}
	c.lines = append(c.lines, lineRun{line: line, count: 1})
}

// Emit appends a full instruction (opcode plus operand bytes, if any)
// at the given line and returns the byte offset the opcode was
// written at.
func (c *Chunk) Emit(op OpCode, line int, operand int) int {
	offset := len(c.Code)
	c.Write(byte(op), line)
	switch op.OperandWidth() {
	case 2:
		c.writeUint16(uint16(operand), line)
	case 3:
		c.writeUint24(uint32(operand), line)
	}
	return offset
}

func (c *Chunk) writeUint16(v uint16, line int) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	c.Write(buf[0], line)
	c.Write(buf[1], line)
}

func (c *Chunk) writeUint24(v uint32, line int) {
	c.Write(byte(v>>16), line)
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// GetLine returns the source line active when the byte at the given
// instruction index was emitted, by walking the RLE pairs. O(n) in
// the number of distinct line runs; only used by diagnostics and the
// disassembler, never on a hot path.
func (c *Chunk) GetLine(index int) int {
	pos := 0
	for _, run := range c.lines {
		pos += run.count
		if index < pos {
			return run.line
		}
	}
	if len(c.lines) == 0 {
		return 0
	}
	return c.lines[len(c.lines)-1].line
}

// EmitJump writes a short-family jump opcode with a placeholder u16
// operand (0xFFFF) and returns the offset of the opcode byte, for a
// later PatchJump call to fill in.
func (c *Chunk) EmitJump(op OpCode, line int) int {
	if !IsShortJump(op) {
		panic(fmt.Sprintf("bytecode: EmitJump called with non-jump opcode %s", op))
	}
	offset := len(c.Code)
	c.Write(byte(op), line)
	c.writeUint16(0xFFFF, line)
	return offset
}

// PatchJump computes the distance from the end of the placeholder's
// operand to the current end of the code stream and backfills it. If
// the distance fits in 16 bits, the short opcode at offset is kept (or
// the operand alone updated); otherwise the opcode is upgraded in
// place to its Long* counterpart and a 24-bit operand is spliced in,
// growing the instruction by one byte. A distance exceeding 2^24-1 is
// a hard compile error, signaled via the returned error.
func (c *Chunk) PatchJump(offset int) error {
	op := OpCode(c.Code[offset])
	operandStart := offset + 1
	distance := len(c.Code) - (operandStart + 2)
	if distance < 0 {
		distance = 0
	}
	if distance <= 0xFFFF {
		binary.BigEndian.PutUint16(c.Code[operandStart:operandStart+2], uint16(distance))
		return nil
	}
	if distance > maxJump {
		return fmt.Errorf("jump distance %d exceeds maximum of %d", distance, maxJump)
	}
	longOp, ok := shortToLong[op]
	if !ok {
		return fmt.Errorf("bytecode: no long-jump counterpart for opcode %s", op)
	}
	// Splice in one extra operand byte: 2-byte operand -> 3-byte operand.
	tail := append([]byte{}, c.Code[operandStart+2:]...)
	c.Code = c.Code[:operandStart]
	c.Code[offset] = byte(longOp)
	var buf [3]byte
	buf[0] = byte(distance >> 16)
	buf[1] = byte(distance >> 8)
	buf[2] = byte(distance)
	c.Code = append(c.Code, buf[:]...)
	c.Code = append(c.Code, tail...)
	return nil
}

// PatchBackwardJump emits (at the current position) a jump back to
// target, choosing the short or long backward-jump opcode depending on
// whether the distance fits in 16 bits.
func (c *Chunk) PatchBackwardJump(target int, line int) error {
	// distance is measured from the end of this instruction back to
	// target, matching the forward-jump convention in PatchJump.
	shortLen := 3 // opcode + u16
	distance := (len(c.Code) + shortLen) - target
	if distance <= 0xFFFF {
		c.Emit(OpJumpBackwards, line, distance)
		return nil
	}
	longLen := 4 // opcode + u24
	distance = (len(c.Code) + longLen) - target
	if distance > maxJump {
		return fmt.Errorf("jump distance %d exceeds maximum of %d", distance, maxJump)
	}
	c.Emit(OpLongJumpBackwards, line, distance)
	return nil
}

// AddConstant appends value (an *ast.Literal, *ast.Identifier,
// *FunctionConstant or *ClassConstant) to the constant pool — or
// reuses an existing structurally-equal slot, when ReuseConsts is set
// and value is a Literal or Identifier — and returns its slot index.
func (c *Chunk) AddConstant(value any) (int, error) {
	if c.ReuseConsts {
		for i, existing := range c.Consts {
			if constantsEqual(existing, value) {
				return i, nil
			}
		}
	}
	if len(c.Consts) >= maxConstants {
		return 0, fmt.Errorf("constant pool exceeds maximum of %d entries", maxConstants)
	}
	c.Consts = append(c.Consts, value)
	return len(c.Consts) - 1, nil
}

// constantsEqual implements spec.md §4.4's dedup rule: same node kind
// and same literal lexeme for literals, same identifier lexeme for
// identifiers. Function/class constants are never deduplicated — each
// declaration is its own object.
func constantsEqual(a, b any) bool {
	switch av := a.(type) {
	case *ast.Literal:
		bv, ok := b.(*ast.Literal)
		return ok && av.Kind == bv.Kind && av.Tok.Lexeme == bv.Tok.Lexeme
	case *ast.Identifier:
		bv, ok := b.(*ast.Identifier)
		return ok && av.Name() == bv.Name()
	default:
		return false
	}
}
