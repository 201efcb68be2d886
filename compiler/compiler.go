// Package compiler turns an (optionally optimized) AST into a
// bytecode.Chunk: a single-pass walk that resolves every name to a
// static stack slot or a dynamic name-constant, backpatches jumps
// through bytecode.Chunk's short/long families, and threads a
// run-length line table as it emits. Dispatch on AST node kind is a
// flat type switch rather than a visitor, unlike the optimizer — the
// compiler's per-node logic carries enough scope/jump/
// defer state that a type switch reads more directly than routing it
// through an interface would.
package compiler

import (
	"fmt"
	"strconv"

	"japl/ast"
	"japl/bytecode"
	"japl/token"
)

// Compiler walks one top-level statement sequence (or one function/
// lambda/class body, compiled recursively into its own child Chunk)
// into a bytecode.Chunk.
type Compiler struct {
	chunk    *bytecode.Chunk
	filename string

	names      []nameEntry
	scopeDepth int

	loopStack   []loopFrame
	funcDepth   int
	deferFrames [][]ast.Expression

	reuseConsts bool
}

type loopFrame struct {
	start      int
	breakJumps []int
}

// Compile compiles a top-level statement sequence into a fresh Chunk.
// An empty program produces an entirely empty chunk; anything else ends
// with an implicit Return.
func Compile(stmts []ast.Stmt, filename string, reuseConsts bool) (chunk *bytecode.Chunk, err error) {
	c := &Compiler{filename: filename, reuseConsts: reuseConsts, scopeDepth: -1}
	c.chunk = bytecode.NewChunk(reuseConsts)

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	if len(stmts) == 0 {
		return c.chunk, nil
	}

	for _, s := range stmts {
		c.compileStmt(s)
	}
	c.emitImplicitReturn(lastLine(stmts))

	if c.scopeDepth != -1 {
		panic(newCompileError(0, "", fmt.Sprintf("scope depth imbalance at end of compilation: %d", c.scopeDepth)))
	}
	return c.chunk, nil
}

func lastLine(stmts []ast.Stmt) int {
	if len(stmts) == 0 {
		return 0
	}
	return stmts[len(stmts)-1].Token().Line
}

func (c *Compiler) fail(line int, lexeme, message string) {
	panic(newCompileError(line, lexeme, message))
}

func (c *Compiler) emitImplicitReturn(line int) {
	c.flushAllDefers(line)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpReturn, line, 0)
}

// --- small emission helpers --------------------------------------------------

func (c *Compiler) loadSlot(slot, line int) { c.chunk.Emit(bytecode.OpLoadFast, line, slot) }
func (c *Compiler) storeSlot(slot, line int) { c.chunk.Emit(bytecode.OpStoreFast, line, slot) }

func (c *Compiler) pushIntConstant(n int64, line int) {
	lit := &ast.Literal{Tok: token.Token{TokenType: token.INT, Lexeme: strconv.FormatInt(n, 10), Line: line}, Kind: ast.LiteralInt, Value: n}
	idx, err := c.chunk.AddConstant(lit)
	if err != nil {
		c.fail(line, "", err.Error())
	}
	c.chunk.Emit(bytecode.OpLoadConstant, line, idx)
}

func (c *Compiler) pushStringConstant(s string, line int) {
	lit := &ast.Literal{Tok: token.Token{TokenType: token.STRING, Lexeme: s, Line: line}, Kind: ast.LiteralString, Value: s}
	idx, err := c.chunk.AddConstant(lit)
	if err != nil {
		c.fail(line, "", err.Error())
	}
	c.chunk.Emit(bytecode.OpLoadConstant, line, idx)
}

func (c *Compiler) emitJump(op bytecode.OpCode, line int) int {
	return c.chunk.EmitJump(op, line)
}

func (c *Compiler) patchJump(offset int) {
	if err := c.chunk.PatchJump(offset); err != nil {
		c.fail(0, "", err.Error())
	}
}

func (c *Compiler) patchBackward(target, line int) {
	if err := c.chunk.PatchBackwardJump(target, line); err != nil {
		c.fail(line, "", err.Error())
	}
}

// --- numeric literal handling (duplicated, deliberately, from the
// optimizer: the compiler must independently enforce the overflow
// hard-error regardless of whether the optimizer ran) ----------------------

func numericBase(kind ast.LiteralKind) (base, prefixLen int) {
	switch kind {
	case ast.LiteralHex:
		return 16, 2
	case ast.LiteralOctal:
		return 8, 2
	case ast.LiteralBinary:
		return 2, 2
	default:
		return 10, 0
	}
}

func parseIntLiteral(lit *ast.Literal) (int64, error) {
	base, prefixLen := numericBase(lit.Kind)
	digits := lit.Tok.Lexeme
	if prefixLen > 0 && len(digits) >= prefixLen {
		digits = digits[prefixLen:]
	}
	return strconv.ParseInt(digits, base, 64)
}

// --- expressions -------------------------------------------------------------

func (c *Compiler) compileExpr(e ast.Expression) {
	switch n := e.(type) {
	case *ast.Literal:
		c.compileLiteral(n)
	case *ast.Identifier:
		c.compileIdentifierLoad(n)
	case *ast.Grouping:
		c.compileExpr(n.Expr)
	case *ast.Unary:
		c.compileUnary(n)
	case *ast.Binary:
		c.compileBinary(n)
	case *ast.ListLiteral:
		c.compileExprList(n.Elements, n.Token().Line)
		c.chunk.Emit(bytecode.OpBuildList, n.Token().Line, len(n.Elements))
	case *ast.TupleLiteral:
		c.compileExprList(n.Elements, n.Token().Line)
		c.chunk.Emit(bytecode.OpBuildTuple, n.Token().Line, len(n.Elements))
	case *ast.SetLiteral:
		c.compileExprList(n.Elements, n.Token().Line)
		c.chunk.Emit(bytecode.OpBuildSet, n.Token().Line, len(n.Elements))
	case *ast.DictLiteral:
		line := n.Token().Line
		for i := range n.Keys {
			c.compileExpr(n.Keys[i])
			c.compileExpr(n.Values[i])
		}
		c.chunk.Emit(bytecode.OpBuildDict, line, len(n.Keys))
	case *ast.Call:
		c.compileCall(n)
	case *ast.GetItem:
		line := n.Token().Line
		c.compileExpr(n.Object)
		c.pushStringConstant(n.Name.Lexeme, line)
		c.chunk.Emit(bytecode.OpGetItem, line, 0)
	case *ast.SetItem:
		c.compileSetItem(n)
	case *ast.Slice:
		c.compileSliceRead(n)
	case *ast.Assignment:
		c.compileAssignment(n)
	case *ast.Lambda:
		c.compileLambdaExpr(n)
	case *ast.Yield:
		if n.Value != nil {
			c.compileExpr(n.Value)
		} else {
			c.chunk.Emit(bytecode.OpNil, n.Token().Line, 0)
		}
		c.chunk.Emit(bytecode.OpYield, n.Token().Line, 0)
	case *ast.Await:
		c.compileExpr(n.Value)
		c.chunk.Emit(bytecode.OpAwait, n.Token().Line, 0)
	default:
		c.fail(e.Token().Line, e.Token().Lexeme, fmt.Sprintf("unsupported expression node %T", e))
	}
}

func (c *Compiler) compileOrNil(e ast.Expression, line int) {
	if e == nil {
		c.chunk.Emit(bytecode.OpNil, line, 0)
		return
	}
	c.compileExpr(e)
}

func (c *Compiler) compileExprList(exprs []ast.Expression, line int) {
	for _, e := range exprs {
		c.compileExpr(e)
	}
}

func (c *Compiler) compileLiteral(l *ast.Literal) {
	line := l.Tok.Line
	switch l.Kind {
	case ast.LiteralBool:
		if v, _ := l.Value.(bool); v {
			c.chunk.Emit(bytecode.OpTrue, line, 0)
		} else {
			c.chunk.Emit(bytecode.OpFalse, line, 0)
		}
	case ast.LiteralNil:
		c.chunk.Emit(bytecode.OpNil, line, 0)
	case ast.LiteralNan:
		c.chunk.Emit(bytecode.OpNan, line, 0)
	case ast.LiteralInf:
		c.chunk.Emit(bytecode.OpInf, line, 0)
	case ast.LiteralInt, ast.LiteralHex, ast.LiteralOctal, ast.LiteralBinary:
		if _, err := parseIntLiteral(l); err != nil {
			c.fail(line, l.Tok.Lexeme, "integer literal value out of range")
		}
		idx, err := c.chunk.AddConstant(l)
		if err != nil {
			c.fail(line, l.Tok.Lexeme, err.Error())
		}
		c.chunk.Emit(bytecode.OpLoadConstant, line, idx)
	default: // float, string
		idx, err := c.chunk.AddConstant(l)
		if err != nil {
			c.fail(line, l.Tok.Lexeme, err.Error())
		}
		c.chunk.Emit(bytecode.OpLoadConstant, line, idx)
	}
}

func (c *Compiler) compileIdentifierLoad(id *ast.Identifier) {
	line := id.Tok.Line
	entry, ok := c.resolve(id.Name())
	if !ok {
		if c.funcDepth == 0 {
			c.fail(line, id.Name(), "reference to undeclared name at global scope")
		}
		idx, err := c.chunk.AddConstant(&ast.Identifier{Tok: id.Tok})
		if err != nil {
			c.fail(line, id.Name(), err.Error())
		}
		c.chunk.Emit(bytecode.OpLoadName, line, idx)
		return
	}
	c.loadName(entry, line)
}

func (c *Compiler) loadName(entry nameEntry, line int) {
	switch {
	case entry.isConst:
		c.chunk.Emit(bytecode.OpLoadConstant, line, entry.constIdx)
	case entry.isStatic:
		c.chunk.Emit(bytecode.OpLoadFast, line, entry.slot)
	default:
		c.chunk.Emit(bytecode.OpLoadName, line, entry.nameConstIdx)
	}
}

func (c *Compiler) storeName(entry nameEntry, line int) {
	switch {
	case entry.isStatic:
		c.chunk.Emit(bytecode.OpStoreFast, line, entry.slot)
	default:
		c.chunk.Emit(bytecode.OpStoreName, line, entry.nameConstIdx)
	}
}

func (c *Compiler) compileUnary(u *ast.Unary) {
	line := u.Operator.Line
	c.compileExpr(u.Operand)
	switch u.Operator.TokenType {
	case token.SUB:
		c.chunk.Emit(bytecode.OpUnaryNegate, line, 0)
	case token.BIT_NOT:
		c.chunk.Emit(bytecode.OpUnaryNot, line, 0)
	case token.BANG:
		c.chunk.Emit(bytecode.OpLogicalNot, line, 0)
	case token.ADD:
		// unary plus is a no-op
	default:
		c.fail(line, string(u.Operator.TokenType), "unsupported unary operator")
	}
}

var binaryOpcodes = map[token.TokenType]bytecode.OpCode{
	token.ADD: bytecode.OpBinaryAdd, token.SUB: bytecode.OpBinarySub,
	token.MULT: bytecode.OpBinaryMul, token.DIV: bytecode.OpBinaryDiv,
	token.FLOOR_DIV: bytecode.OpBinaryFloorDiv, token.POW: bytecode.OpBinaryPow,
	token.MODULO: bytecode.OpBinaryMod,
	token.SHIFT_LEFT: bytecode.OpBinaryShiftLeft, token.SHIFT_RIGHT: bytecode.OpBinaryShiftRight,
	token.BIT_XOR: bytecode.OpBinaryXor, token.BIT_OR: bytecode.OpBinaryOr, token.BIT_AND: bytecode.OpBinaryAnd,
	token.EQUAL_EQUAL: bytecode.OpEqualTo, token.NOT_EQUAL: bytecode.OpNotEqualTo,
	token.LARGER: bytecode.OpGreaterThan, token.LESS: bytecode.OpLessThan,
	token.LARGER_EQUAL: bytecode.OpGreaterOrEqual, token.LESS_EQUAL: bytecode.OpLessOrEqual,
	token.AS: bytecode.OpBinaryAs, token.IS: bytecode.OpBinaryIs, token.ISNOT: bytecode.OpBinaryIsNot, token.OF: bytecode.OpBinaryOf,
}

func (c *Compiler) compileBinary(b *ast.Binary) {
	line := b.Operator.Line
	switch b.Operator.TokenType {
	case token.AND, token.LOGIC_AND:
		c.compileExpr(b.Left)
		end := c.emitJump(bytecode.OpJumpIfFalse, line)
		c.chunk.Emit(bytecode.OpPop, line, 0)
		c.compileExpr(b.Right)
		c.patchJump(end)
		return
	case token.OR, token.LOGIC_OR:
		c.compileExpr(b.Left)
		end := c.emitJump(bytecode.OpJumpIfTrue, line)
		c.chunk.Emit(bytecode.OpPop, line, 0)
		c.compileExpr(b.Right)
		c.patchJump(end)
		return
	}
	op, ok := binaryOpcodes[b.Operator.TokenType]
	if !ok {
		c.fail(line, string(b.Operator.TokenType), "unsupported binary operator")
	}
	c.compileExpr(b.Left)
	c.compileExpr(b.Right)
	c.chunk.Emit(op, line, 0)
}

func (c *Compiler) compileCall(call *ast.Call) {
	line := call.Token().Line
	c.compileExpr(call.Callee)
	for _, a := range call.Positional {
		c.compileExpr(a)
	}
	// Keyword arguments have no dedicated opcode in the Call
	// instruction (argc alone); this implementation pushes each as a
	// (name-literal, value) pair and folds both into argc, a
	// documented convention.
	for _, kw := range call.KeywordArgs {
		c.pushStringConstant(kw.Name.Lexeme, kw.Name.Line)
		c.compileExpr(kw.Value)
	}
	argc := len(call.Positional) + 2*len(call.KeywordArgs)
	c.chunk.Emit(bytecode.OpCall, line, argc)
}

// compileSetItem compiles `object.name = value` (the parser produces
// a *ast.SetItem directly, bypassing ast.Assignment). Its opcode
// consumes all three operands and leaves nothing on the stack — valid
// in statement position; see compileExprStmt.
func (c *Compiler) compileSetItem(s *ast.SetItem) {
	line := s.Token().Line
	c.compileExpr(s.Object)
	c.pushStringConstant(s.Name.Lexeme, line)
	c.compileExpr(s.Value)
	c.chunk.Emit(bytecode.OpSetItem, line, 0)
}

func (c *Compiler) compileSliceRead(s *ast.Slice) {
	line := s.Token().Line
	c.compileExpr(s.Target)
	c.compileOrNil(s.Start, line)
	c.compileOrNil(s.Stop, line)
	c.compileOrNil(s.Step, line)
	c.chunk.Emit(bytecode.OpSlice, line, 0)
}

// compileSliceStore compiles `target[start:stop:step] = value`. Like
// SetItem, OpSetSlice leaves nothing on the stack.
func (c *Compiler) compileSliceStore(s *ast.Slice, value ast.Expression, line int) {
	c.compileExpr(s.Target)
	c.compileOrNil(s.Start, line)
	c.compileOrNil(s.Stop, line)
	c.compileOrNil(s.Step, line)
	c.compileExpr(value)
	c.chunk.Emit(bytecode.OpSetSlice, line, 0)
}

func (c *Compiler) compileAssignment(a *ast.Assignment) {
	line := a.Token().Line
	switch target := a.Target.(type) {
	case *ast.Identifier:
		entry, ok := c.resolve(target.Name())
		if !ok {
			c.fail(line, target.Name(), "reference to undeclared name at global scope")
		}
		if entry.isConst {
			c.fail(line, target.Name(), "cannot assign to a constant")
		}
		if binOp, isCompound := token.CompoundBinaryOp(a.Op.TokenType); isCompound {
			c.loadName(entry, line)
			c.compileExpr(a.Value)
			opcode, ok := binaryOpcodes[binOp]
			if !ok {
				c.fail(line, string(binOp), "unsupported compound-assignment operator")
			}
			c.chunk.Emit(opcode, line, 0)
		} else {
			c.compileExpr(a.Value)
		}
		c.storeName(entry, line)
		c.loadName(entry, line) // assignment is an expression: leave the stored value
	case *ast.Slice:
		c.compileSliceStore(target, a.Value, line)
	default:
		c.fail(line, "", fmt.Sprintf("unsupported assignment target %T", a.Target))
	}
}

func paramNames(params []ast.Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name.Lexeme
	}
	return names
}

func paramHasDefault(params []ast.Param) []bool {
	hd := make([]bool, len(params))
	for i, p := range params {
		hd[i] = p.Default != nil
	}
	return hd
}

// compileFunctionBody compiles params+body into a fresh child Chunk:
// no closures or upvalues over the enclosing compiler's locals, since
// there is no opcode to capture them with.
func (c *Compiler) compileFunctionBody(owner string, params []ast.Param, body ast.Stmt, isAsync, isGenerator bool) *bytecode.Chunk {
	fc := &Compiler{filename: c.filename, reuseConsts: c.reuseConsts, scopeDepth: -1}
	fc.chunk = bytecode.NewChunk(c.reuseConsts)
	fc.funcDepth = 1
	fc.beginScope()
	for _, p := range params {
		fc.declareStatic(p.Name.Lexeme, owner, false)
	}
	fc.deferFrames = append(fc.deferFrames, nil)
	fc.compileStmt(body)
	fc.flushTopDefers(lastLineOfStmt(body))
	fc.deferFrames = fc.deferFrames[:len(fc.deferFrames)-1]
	fc.chunk.Emit(bytecode.OpNil, lastLineOfStmt(body), 0)
	fc.chunk.Emit(bytecode.OpReturn, lastLineOfStmt(body), 0)
	fc.endScope()
	return fc.chunk
}

func lastLineOfStmt(s ast.Stmt) int {
	if s == nil {
		return 0
	}
	return s.Token().Line
}

func (c *Compiler) compileLambdaExpr(l *ast.Lambda) {
	line := l.Token().Line
	childChunk := c.compileFunctionBody("", l.Params, l.Body, false, l.IsGenerator)
	fn := &bytecode.FunctionConstant{
		Name: "<lambda>", Params: paramNames(l.Params), HasDefault: paramHasDefault(l.Params),
		IsGenerator: l.IsGenerator, Chunk: childChunk,
	}
	idx, err := c.chunk.AddConstant(fn)
	if err != nil {
		c.fail(line, "", err.Error())
	}
	c.chunk.Emit(bytecode.OpLoadConstant, line, idx)
}

// --- statements --------------------------------------------------------------

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		c.compileExprStmt(n)
	case *ast.If:
		c.compileIf(n)
	case *ast.While:
		c.compileWhile(n)
	case *ast.ForEach:
		c.compileForEach(n)
	case *ast.Block:
		c.compileBlock(n)
	case *ast.Return:
		c.compileReturn(n)
	case *ast.Break:
		c.compileBreak(n)
	case *ast.Continue:
		c.compileContinue(n)
	case *ast.Del:
		c.compileDel(n)
	case *ast.Assert:
		c.compileAssert(n)
	case *ast.Raise:
		c.compileRaise(n)
	case *ast.Import, *ast.FromImport:
		// Module resolution happens elsewhere; the compiler only
		// needs the statement to be a structural no-op in the chunk.
	case *ast.Try:
		c.compileTry(n)
	case *ast.Defer:
		c.compileDefer(n)
	case *ast.VarDecl:
		c.compileVarDecl(n)
	case *ast.FunDecl:
		c.compileFunDecl(n)
	case *ast.ClassDecl:
		c.compileClassDecl(n)
	default:
		c.fail(s.Token().Line, s.Token().Lexeme, fmt.Sprintf("unsupported statement node %T", s))
	}
}

// compileExprStmt discards the expression's result, except for
// SetItem/Slice-target assignments, whose Set* opcodes already
// consume every operand and leave nothing to pop.
func (c *Compiler) compileExprStmt(s *ast.ExprStmt) {
	c.compileExpr(s.Expr)
	if leavesNoValue(s.Expr) {
		return
	}
	c.chunk.Emit(bytecode.OpPop, s.Token().Line, 0)
}

func leavesNoValue(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.SetItem:
		return true
	case *ast.Assignment:
		_, isSlice := v.Target.(*ast.Slice)
		return isSlice
	default:
		return false
	}
}

func (c *Compiler) compileIf(s *ast.If) {
	line := s.Token().Line
	c.compileExpr(s.Condition)
	jElse := c.emitJump(bytecode.OpJumpIfFalsePop, line)
	c.compileStmt(s.Then)
	jEnd := c.emitJump(bytecode.OpJumpForwards, line)
	c.patchJump(jElse)
	if s.Else != nil {
		c.compileStmt(s.Else)
	}
	c.patchJump(jEnd)
}

func (c *Compiler) compileWhile(s *ast.While) {
	line := s.Token().Line
	start := len(c.chunk.Code)
	c.loopStack = append(c.loopStack, loopFrame{start: start})

	c.compileExpr(s.Condition)
	jExit := c.emitJump(bytecode.OpJumpIfFalsePop, line)
	c.compileStmt(s.Body)
	c.patchBackward(start, line)
	c.patchJump(jExit)

	frame := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, bj := range frame.breakJumps {
		c.patchJump(bj)
	}
}

// compileForEach desugars foreach into an index-counting loop over
// Slice reads: there is no iterator-protocol or length opcode, so this
// assumes an out-of-range Slice read yields Nil rather than raising,
// which lets termination be a plain equality check against Nil instead
// of needing exception handling.
func (c *Compiler) compileForEach(s *ast.ForEach) {
	line := s.Token().Line
	c.beginScope()

	c.compileExpr(s.Iterable)
	srcSlot := c.declareStatic("$foreach_src", "", false)
	c.pushIntConstant(0, line)
	idxSlot := c.declareStatic("$foreach_idx", "", false)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	nameSlot := c.declareStatic(s.Name.Lexeme, "", false)

	start := len(c.chunk.Code)
	c.loopStack = append(c.loopStack, loopFrame{start: start})

	c.loadSlot(srcSlot, line)
	c.loadSlot(idxSlot, line)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpSlice, line, 0)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpEqualTo, line, 0)
	jExit := c.emitJump(bytecode.OpJumpIfTrue, line)
	c.chunk.Emit(bytecode.OpPop, line, 0)

	c.loadSlot(srcSlot, line)
	c.loadSlot(idxSlot, line)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpSlice, line, 0)
	c.storeSlot(nameSlot, line)

	c.compileStmt(s.Body)

	c.loadSlot(idxSlot, line)
	c.pushIntConstant(1, line)
	c.chunk.Emit(bytecode.OpBinaryAdd, line, 0)
	c.storeSlot(idxSlot, line)

	c.patchBackward(start, line)
	c.patchJump(jExit)
	c.chunk.Emit(bytecode.OpPop, line, 0)

	frame := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, bj := range frame.breakJumps {
		c.patchJump(bj)
	}

	dropped := c.endScope()
	if dropped > 0 {
		c.chunk.Emit(bytecode.OpPopN, line, dropped)
	}
}

func (c *Compiler) compileBlock(s *ast.Block) {
	c.beginScope()
	for _, stmt := range s.Statements {
		c.compileStmt(stmt)
	}
	dropped := c.endScope()
	if dropped > 0 {
		c.chunk.Emit(bytecode.OpPopN, s.Token().Line, dropped)
	}
}

func (c *Compiler) compileReturn(s *ast.Return) {
	line := s.Token().Line
	c.flushTopDefers(line)
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.chunk.Emit(bytecode.OpNil, line, 0)
	}
	c.chunk.Emit(bytecode.OpReturn, line, 0)
}

func (c *Compiler) compileBreak(s *ast.Break) {
	if len(c.loopStack) == 0 {
		c.fail(s.Token().Line, "break", "'break' outside a loop")
	}
	offset := c.emitJump(bytecode.OpJumpForwards, s.Token().Line)
	top := len(c.loopStack) - 1
	c.loopStack[top].breakJumps = append(c.loopStack[top].breakJumps, offset)
}

func (c *Compiler) compileContinue(s *ast.Continue) {
	if len(c.loopStack) == 0 {
		c.fail(s.Token().Line, "continue", "'continue' outside a loop")
	}
	top := c.loopStack[len(c.loopStack)-1]
	c.patchBackward(top.start, s.Token().Line)
}

func (c *Compiler) compileDel(s *ast.Del) {
	line := s.Token().Line
	id, ok := s.Target.(*ast.Identifier)
	if !ok {
		c.fail(line, "", "'del' only supports a plain identifier target")
	}
	idx := -1
	for i := len(c.names) - 1; i >= 0; i-- {
		if c.names[i].lexeme == id.Name() {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.fail(line, id.Name(), "reference to undeclared name at global scope")
	}
	entry := c.names[idx]
	if entry.isStatic {
		c.chunk.Emit(bytecode.OpDeleteFast, line, entry.slot)
	} else {
		c.chunk.Emit(bytecode.OpDeleteName, line, entry.nameConstIdx)
	}
	c.names = append(c.names[:idx], c.names[idx+1:]...)
}

func (c *Compiler) compileAssert(s *ast.Assert) {
	line := s.Token().Line
	c.compileExpr(s.Condition)
	c.compileOrNil(s.Message, line)
	c.chunk.Emit(bytecode.OpAssert, line, 0)
}

func (c *Compiler) compileRaise(s *ast.Raise) {
	line := s.Token().Line
	c.flushTopDefers(line)
	if s.Value == nil {
		c.chunk.Emit(bytecode.OpReRaise, line, 0)
		return
	}
	c.compileExpr(s.Value)
	c.chunk.Emit(bytecode.OpRaise, line, 0)
}

// compileTry follows the BeginTry/FinishTry bracket spec.md §4.4
// names; FinishTry is assumed (documented decision, see DESIGN.md) to
// leave exactly one value on the stack: the raised exception, or Nil
// if the body completed normally. Handlers dispatch via OpBinaryOf
// against that value.
func (c *Compiler) compileTry(s *ast.Try) {
	line := s.Token().Line
	c.beginScope()

	c.chunk.Emit(bytecode.OpBeginTry, line, 0)
	c.compileStmt(s.Body)
	c.chunk.Emit(bytecode.OpFinishTry, line, 0)
	excSlot := c.declareStatic("$exc", "", false)

	c.loadSlot(excSlot, line)
	c.chunk.Emit(bytecode.OpNil, line, 0)
	c.chunk.Emit(bytecode.OpEqualTo, line, 0)
	jHasExc := c.emitJump(bytecode.OpJumpIfFalsePop, line)

	var toFinally []int
	if s.Else != nil {
		c.compileStmt(s.Else)
	}
	toFinally = append(toFinally, c.emitJump(bytecode.OpJumpForwards, line))
	c.patchJump(jHasExc)

	for _, h := range s.Handlers {
		var nextHandler int
		hasNext := h.ExcType != nil
		if hasNext {
			c.loadSlot(excSlot, line)
			c.compileExpr(h.ExcType)
			c.chunk.Emit(bytecode.OpBinaryOf, line, 0)
			nextHandler = c.emitJump(bytecode.OpJumpIfFalsePop, line)
		}
		if h.Alias.Lexeme != "" {
			c.beginScope()
			c.loadSlot(excSlot, line)
			c.declareStatic(h.Alias.Lexeme, "", false)
			c.compileStmt(h.Body)
			dropped := c.endScope()
			if dropped > 0 {
				c.chunk.Emit(bytecode.OpPopN, line, dropped)
			}
		} else {
			c.compileStmt(h.Body)
		}
		toFinally = append(toFinally, c.emitJump(bytecode.OpJumpForwards, line))
		if hasNext {
			c.patchJump(nextHandler)
		}
	}

	for _, j := range toFinally {
		c.patchJump(j)
	}
	if s.Finally != nil {
		c.compileStmt(s.Finally)
	}

	dropped := c.endScope()
	if dropped > 0 {
		c.chunk.Emit(bytecode.OpPopN, line, dropped)
	}
}

func (c *Compiler) compileDefer(s *ast.Defer) {
	if len(c.deferFrames) == 0 {
		c.fail(s.Token().Line, "defer", "'defer' outside a function")
	}
	top := len(c.deferFrames) - 1
	c.deferFrames[top] = append(c.deferFrames[top], s.Call)
}

// flushTopDefers compiles every deferred call registered in the
// current function, most-recently-deferred first, at an exit point
// (return/raise). Each is recompiled at every exit site — spec.md's
// opcode table has no subroutine-call primitive to share the code
// across exits, so "emitted once" (spec.md's glossary) is read here as
// a conceptual description rather than a literal single emission.
func (c *Compiler) flushTopDefers(line int) {
	if len(c.deferFrames) == 0 {
		return
	}
	c.flushDefers(c.deferFrames[len(c.deferFrames)-1], line)
}

func (c *Compiler) flushAllDefers(line int) {
	for i := len(c.deferFrames) - 1; i >= 0; i-- {
		c.flushDefers(c.deferFrames[i], line)
	}
}

func (c *Compiler) flushDefers(frame []ast.Expression, line int) {
	for i := len(frame) - 1; i >= 0; i-- {
		c.compileExpr(frame[i])
		c.chunk.Emit(bytecode.OpPop, line, 0)
	}
}

func (c *Compiler) compileVarDecl(d *ast.VarDecl) {
	line := d.Token().Line
	if d.IsConst {
		lit, ok := d.Value.(*ast.Literal)
		if !ok {
			c.fail(line, d.Name.Lexeme, "const declaration requires a constant initializer")
		}
		idx, err := c.chunk.AddConstant(lit)
		if err != nil {
			c.fail(line, d.Name.Lexeme, err.Error())
		}
		c.declareConst(d.Name.Lexeme, d.Owner, d.IsPrivate, idx)
		return
	}

	if d.Value != nil {
		c.compileExpr(d.Value)
	} else {
		c.chunk.Emit(bytecode.OpNil, line, 0)
	}

	// spec.md §4.4: only a *global* `dynamic` declaration emits
	// DeclareName; every other name is static, including a `dynamic`
	// one declared inside a nested scope (scopeDepth != -1's global
	// sentinel).
	if d.IsStatic || c.scopeDepth != -1 {
		c.declareStatic(d.Name.Lexeme, d.Owner, d.IsPrivate)
		return
	}
	idx, err := c.chunk.AddConstant(&ast.Identifier{Tok: d.Name})
	if err != nil {
		c.fail(line, d.Name.Lexeme, err.Error())
	}
	c.chunk.Emit(bytecode.OpDeclareName, line, idx)
	c.declareDynamic(d.Name.Lexeme, d.Owner, d.IsPrivate, idx)
}

func (c *Compiler) compileFunDecl(d *ast.FunDecl) {
	line := d.Token().Line
	childChunk := c.compileFunctionBody(d.Owner, d.Params, d.Body, d.IsAsync, d.IsGenerator)
	fn := &bytecode.FunctionConstant{
		Name: d.Name.Lexeme, Params: paramNames(d.Params), HasDefault: paramHasDefault(d.Params),
		IsAsync: d.IsAsync, IsGenerator: d.IsGenerator, Chunk: childChunk,
	}
	idx, err := c.chunk.AddConstant(fn)
	if err != nil {
		c.fail(line, d.Name.Lexeme, err.Error())
	}
	c.chunk.Emit(bytecode.OpLoadConstant, line, idx)

	// Same global-only dynamic-declaration rule as compileVarDecl.
	if d.IsStatic || c.scopeDepth != -1 {
		c.declareStatic(d.Name.Lexeme, d.Owner, d.IsPrivate)
		return
	}
	nameIdx, err := c.chunk.AddConstant(&ast.Identifier{Tok: d.Name})
	if err != nil {
		c.fail(line, d.Name.Lexeme, err.Error())
	}
	c.chunk.Emit(bytecode.OpDeclareName, line, nameIdx)
	c.declareDynamic(d.Name.Lexeme, d.Owner, d.IsPrivate, nameIdx)
}

func (c *Compiler) compileClassDecl(d *ast.ClassDecl) {
	line := d.Token().Line

	mc := &Compiler{filename: c.filename, reuseConsts: c.reuseConsts, scopeDepth: -1}
	mc.chunk = bytecode.NewChunk(c.reuseConsts)
	for _, stmt := range d.Body {
		mc.compileStmt(stmt)
	}

	parents := make([]string, len(d.Parents))
	for i, p := range d.Parents {
		parents[i] = p.Lexeme
	}
	cls := &bytecode.ClassConstant{Name: d.Name.Lexeme, Parents: parents, Members: mc.chunk}
	idx, err := c.chunk.AddConstant(cls)
	if err != nil {
		c.fail(line, d.Name.Lexeme, err.Error())
	}
	c.chunk.Emit(bytecode.OpLoadConstant, line, idx)
	c.chunk.Emit(bytecode.OpMakeClass, line, 0)

	// Same global-only dynamic-declaration rule as compileVarDecl.
	if d.IsStatic || c.scopeDepth != -1 {
		c.declareStatic(d.Name.Lexeme, d.Owner, d.IsPrivate)
		return
	}
	nameIdx, err := c.chunk.AddConstant(&ast.Identifier{Tok: d.Name})
	if err != nil {
		c.fail(line, d.Name.Lexeme, err.Error())
	}
	c.chunk.Emit(bytecode.OpDeclareName, line, nameIdx)
	c.declareDynamic(d.Name.Lexeme, d.Owner, d.IsPrivate, nameIdx)
}
