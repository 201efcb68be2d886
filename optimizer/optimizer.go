package optimizer

import (
	"japl/ast"
	"japl/token"
)

// arithmeticFoldOps is the operator set spec.md §4.3 names for
// constant folding: `+ - * / // ** % ^ & | >> <<`.
var arithmeticFoldOps = map[token.TokenType]bool{
	token.ADD: true, token.SUB: true, token.MULT: true, token.DIV: true,
	token.FLOOR_DIV: true, token.POW: true, token.MODULO: true,
	token.BIT_XOR: true, token.BIT_AND: true, token.BIT_OR: true,
	token.SHIFT_LEFT: true, token.SHIFT_RIGHT: true,
}

// Optimizer implements ast.ExpressionVisitor and ast.StmtVisitor,
// walking the AST post-order (children first) so folds and
// normalization compose bottom-up, collecting Warnings as it goes.
// When DryRun is set, Optimize still runs the full pass to collect
// warnings but discards the transformed tree, returning the input
// unchanged — "optimization is pure w.r.t. the source program" per
// spec.md §4.3.
type Optimizer struct {
	DryRun bool

	warnings    []Warning
	globalNames map[string]bool
	depth       int
}

// New constructs an Optimizer. dryRun matches spec.md §4.3's
// "dry_run" flag: when true, only warnings accumulate.
func New(dryRun bool) *Optimizer {
	return &Optimizer{DryRun: dryRun, globalNames: map[string]bool{}}
}

// Optimize runs the optimizer over a top-level statement sequence,
// returning the optimized AST (or the original, unmodified, if DryRun
// is set) plus every Warning collected.
func Optimize(stmts []ast.Stmt, dryRun bool) ([]ast.Stmt, []Warning) {
	o := New(dryRun)
	return o.Run(stmts)
}

// Run is the instance form of Optimize, reusable across calls (its
// warnings are reset per call).
func (o *Optimizer) Run(stmts []ast.Stmt) ([]ast.Stmt, []Warning) {
	o.warnings = nil
	for name := range o.globalNames {
		delete(o.globalNames, name)
	}
	o.collectGlobalNames(stmts)

	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = o.optimizeStmt(s)
	}
	if o.DryRun {
		return stmts, o.warnings
	}
	return out, o.warnings
}

func (o *Optimizer) collectGlobalNames(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch d := s.(type) {
		case *ast.VarDecl:
			o.globalNames[d.Name.Lexeme] = true
		case *ast.FunDecl:
			o.globalNames[d.Name.Lexeme] = true
		case *ast.ClassDecl:
			o.globalNames[d.Name.Lexeme] = true
		}
	}
}

func (o *Optimizer) warn(kind WarningKind, line int, format string, args ...any) {
	o.warnings = append(o.warnings, newWarning(kind, line, format, args...))
}

// --- expression dispatch helpers -------------------------------------------

func (o *Optimizer) optimizeExpr(e ast.Expression) ast.Expression {
	if e == nil {
		return nil
	}
	return e.Accept(o).(ast.Expression)
}

func (o *Optimizer) optimizeExprs(exprs []ast.Expression) []ast.Expression {
	if exprs == nil {
		return nil
	}
	out := make([]ast.Expression, len(exprs))
	for i, e := range exprs {
		out[i] = o.optimizeExpr(e)
	}
	return out
}

func (o *Optimizer) optimizeStmt(s ast.Stmt) ast.Stmt {
	if s == nil {
		return nil
	}
	return s.Accept(o).(ast.Stmt)
}

// --- ast.ExpressionVisitor --------------------------------------------------

func (o *Optimizer) VisitLiteral(l *ast.Literal) any {
	switch l.Kind {
	case ast.LiteralInt, ast.LiteralHex, ast.LiteralOctal, ast.LiteralBinary:
		n, err := parseIntLiteral(l)
		if err != nil {
			o.warn(ValueOverflow, l.Tok.Line, "integer literal %q overflows 64 bits", l.Tok.Lexeme)
			return l
		}
		return canonicalIntLiteral(l.Tok.Line, n)
	default:
		return l
	}
}

func (o *Optimizer) VisitIdentifier(i *ast.Identifier) any { return i }

func (o *Optimizer) VisitGrouping(g *ast.Grouping) any {
	inner := o.optimizeExpr(g.Expr)
	if nested, ok := inner.(*ast.Grouping); ok {
		return nested
	}
	return &ast.Grouping{Tok: g.Tok, Expr: inner}
}

func (o *Optimizer) VisitUnary(u *ast.Unary) any {
	return &ast.Unary{Operator: u.Operator, Operand: o.optimizeExpr(u.Operand)}
}

func numericFamily(e ast.Expression) (family int, ok bool) {
	lit, isLit := e.(*ast.Literal)
	if !isLit {
		return 0, false
	}
	switch lit.Kind {
	case ast.LiteralInt, ast.LiteralHex, ast.LiteralOctal, ast.LiteralBinary:
		return 1, true
	case ast.LiteralFloat:
		return 2, true
	default:
		return 0, false
	}
}

func (o *Optimizer) VisitBinary(b *ast.Binary) any {
	left := o.optimizeExpr(b.Left)
	right := o.optimizeExpr(b.Right)
	op := b.Operator.TokenType

	switch op {
	case token.IS, token.ISNOT:
		if _, ok := right.(*ast.Literal); ok {
			o.warn(IsWithALiteral, b.Operator.Line, "'%s' compares identity against a literal value", op)
		}
	case token.EQUAL_EQUAL, token.NOT_EQUAL:
		if isSingleton(left) || isSingleton(right) {
			o.warn(EqualityWithSingleton, b.Operator.Line, "use 'is'/'isnot' to compare against a singleton")
		}
	}

	if arithmeticFoldOps[op] {
		if lLit, lok := isIntLiteral(left); lok {
			if rLit, rok := isIntLiteral(right); rok {
				lv, lerr := parseIntLiteral(lLit)
				rv, rerr := parseIntLiteral(rLit)
				if lerr == nil && rerr == nil {
					res := foldIntBinary(op, lv, rv)
					if res.folded {
						if res.overflow {
							o.warn(ValueOverflow, b.Operator.Line, "constant folding %s %s %s overflows 64 bits", lLit.Tok.Lexeme, op, rLit.Tok.Lexeme)
						} else if res.isFloat {
							return canonicalFloatLiteral(b.Operator.Line, res.floatValue)
						} else {
							return canonicalIntLiteral(b.Operator.Line, res.intValue.Int64())
						}
					}
				}
			}
		}
		if lFam, lok := numericFamily(left); lok {
			if rFam, rok := numericFamily(right); rok && lFam != rFam {
				o.warn(ImplicitConversion, b.Operator.Line, "implicit int/float conversion in '%s' expression", op)
			}
		}
	}

	return &ast.Binary{Left: left, Operator: b.Operator, Right: right}
}

func isSingleton(e ast.Expression) bool {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return false
	}
	switch lit.Kind {
	case ast.LiteralNil, ast.LiteralBool:
		return true
	default:
		return false
	}
}

func (o *Optimizer) VisitListLiteral(l *ast.ListLiteral) any {
	return &ast.ListLiteral{Tok: l.Tok, Elements: o.optimizeExprs(l.Elements)}
}

func (o *Optimizer) VisitTupleLiteral(t *ast.TupleLiteral) any {
	return &ast.TupleLiteral{Tok: t.Tok, Elements: o.optimizeExprs(t.Elements)}
}

func (o *Optimizer) VisitSetLiteral(s *ast.SetLiteral) any {
	return &ast.SetLiteral{Tok: s.Tok, Elements: o.optimizeExprs(s.Elements)}
}

func (o *Optimizer) VisitDictLiteral(d *ast.DictLiteral) any {
	return &ast.DictLiteral{Tok: d.Tok, Keys: o.optimizeExprs(d.Keys), Values: o.optimizeExprs(d.Values)}
}

func (o *Optimizer) VisitCall(c *ast.Call) any {
	kw := make([]ast.KeywordArg, len(c.KeywordArgs))
	for i, k := range c.KeywordArgs {
		kw[i] = ast.KeywordArg{Name: k.Name, Value: o.optimizeExpr(k.Value)}
	}
	return &ast.Call{
		Callee:      o.optimizeExpr(c.Callee),
		Paren:       c.Paren,
		Positional:  o.optimizeExprs(c.Positional),
		KeywordArgs: kw,
	}
}

func (o *Optimizer) VisitGetItem(g *ast.GetItem) any {
	return &ast.GetItem{Object: o.optimizeExpr(g.Object), Name: g.Name}
}

func (o *Optimizer) VisitSetItem(s *ast.SetItem) any {
	return &ast.SetItem{Object: o.optimizeExpr(s.Object), Name: s.Name, Value: o.optimizeExpr(s.Value)}
}

func (o *Optimizer) VisitSlice(s *ast.Slice) any {
	return &ast.Slice{
		Tok:    s.Tok,
		Target: o.optimizeExpr(s.Target),
		Start:  o.optimizeExpr(s.Start),
		Stop:   o.optimizeExpr(s.Stop),
		Step:   o.optimizeExpr(s.Step),
	}
}

func (o *Optimizer) VisitAssignment(a *ast.Assignment) any {
	target := a.Target
	if sl, ok := target.(*ast.Slice); ok {
		target = o.optimizeExpr(sl)
	}
	return &ast.Assignment{Target: target, Op: a.Op, Value: o.optimizeExpr(a.Value)}
}

func (o *Optimizer) VisitLambda(l *ast.Lambda) any {
	o.depth++
	body := o.optimizeStmt(l.Body)
	o.depth--
	params := make([]ast.Param, len(l.Params))
	for i, p := range l.Params {
		params[i] = ast.Param{Name: p.Name, Default: o.optimizeExpr(p.Default)}
	}
	return &ast.Lambda{Tok: l.Tok, Params: params, Body: body, IsGenerator: l.IsGenerator}
}

func (o *Optimizer) VisitYield(y *ast.Yield) any {
	return &ast.Yield{Tok: y.Tok, Value: o.optimizeExpr(y.Value)}
}

func (o *Optimizer) VisitAwait(a *ast.Await) any {
	return &ast.Await{Tok: a.Tok, Value: o.optimizeExpr(a.Value)}
}

// --- ast.StmtVisitor ---------------------------------------------------------

func (o *Optimizer) VisitExprStmt(s *ast.ExprStmt) any {
	return &ast.ExprStmt{Tok: s.Tok, Expr: o.optimizeExpr(s.Expr)}
}

func (o *Optimizer) VisitIf(s *ast.If) any {
	return &ast.If{
		Tok:       s.Tok,
		Condition: o.optimizeExpr(s.Condition),
		Then:      o.optimizeStmt(s.Then),
		Else:      o.optimizeStmt(s.Else),
	}
}

func (o *Optimizer) VisitWhile(s *ast.While) any {
	return &ast.While{Tok: s.Tok, Condition: o.optimizeExpr(s.Condition), Body: o.optimizeStmt(s.Body)}
}

func (o *Optimizer) VisitForEach(s *ast.ForEach) any {
	return &ast.ForEach{
		Tok:      s.Tok,
		Name:     s.Name,
		Iterable: o.optimizeExpr(s.Iterable),
		Body:     o.optimizeStmt(s.Body),
	}
}

// terminalStmt reports whether s unconditionally exits its enclosing
// block, making anything after it in the same block unreachable.
func terminalStmt(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.Return, *ast.Break, *ast.Continue, *ast.Raise:
		return true
	default:
		return false
	}
}

func (o *Optimizer) VisitBlock(s *ast.Block) any {
	o.depth++
	defer func() { o.depth-- }()

	out := make([]ast.Stmt, len(s.Statements))
	seenTerminal := false
	warnedUnreachable := false
	for i, stmt := range s.Statements {
		if seenTerminal && !warnedUnreachable {
			o.warn(UnreachableCode, stmt.Token().Line, "unreachable code after an unconditional exit")
			warnedUnreachable = true
		}
		out[i] = o.optimizeStmt(stmt)
		if terminalStmt(stmt) {
			seenTerminal = true
		}
	}
	return &ast.Block{Tok: s.Tok, Statements: out}
}

func (o *Optimizer) VisitReturn(s *ast.Return) any {
	return &ast.Return{Tok: s.Tok, Value: o.optimizeExpr(s.Value)}
}

func (o *Optimizer) VisitBreak(s *ast.Break) any       { return s }
func (o *Optimizer) VisitContinue(s *ast.Continue) any { return s }

func (o *Optimizer) VisitDel(s *ast.Del) any {
	return &ast.Del{Tok: s.Tok, Target: o.optimizeExpr(s.Target)}
}

func (o *Optimizer) VisitAssert(s *ast.Assert) any {
	return &ast.Assert{Tok: s.Tok, Condition: o.optimizeExpr(s.Condition), Message: o.optimizeExpr(s.Message)}
}

func (o *Optimizer) VisitRaise(s *ast.Raise) any {
	return &ast.Raise{Tok: s.Tok, Value: o.optimizeExpr(s.Value)}
}

func (o *Optimizer) VisitImport(s *ast.Import) any         { return s }
func (o *Optimizer) VisitFromImport(s *ast.FromImport) any { return s }

func (o *Optimizer) VisitTry(s *ast.Try) any {
	handlers := make([]ast.ExceptHandler, len(s.Handlers))
	for i, h := range s.Handlers {
		handlers[i] = ast.ExceptHandler{
			Body:    o.optimizeStmt(h.Body),
			ExcType: o.optimizeExpr(h.ExcType),
			Alias:   h.Alias,
		}
	}
	return &ast.Try{
		Tok:      s.Tok,
		Body:     o.optimizeStmt(s.Body),
		Handlers: handlers,
		Else:     o.optimizeStmt(s.Else),
		Finally:  o.optimizeStmt(s.Finally),
	}
}

func (o *Optimizer) VisitDefer(s *ast.Defer) any {
	return &ast.Defer{Tok: s.Tok, Call: o.optimizeExpr(s.Call)}
}

func (o *Optimizer) checkShadow(name token.Token) {
	if o.depth > 0 && o.globalNames[name.Lexeme] {
		o.warn(LocalShadowsGlobal, name.Line, "local declaration %q shadows a global of the same name", name.Lexeme)
	}
}

func (o *Optimizer) VisitVarDecl(s *ast.VarDecl) any {
	o.checkShadow(s.Name)
	return &ast.VarDecl{
		Tok: s.Tok, Name: s.Name, Value: o.optimizeExpr(s.Value),
		IsConst: s.IsConst, IsStatic: s.IsStatic, IsPrivate: s.IsPrivate, Owner: s.Owner,
	}
}

func (o *Optimizer) VisitFunDecl(s *ast.FunDecl) any {
	o.checkShadow(s.Name)
	o.depth++
	body := o.optimizeStmt(s.Body)
	o.depth--
	params := make([]ast.Param, len(s.Params))
	for i, p := range s.Params {
		params[i] = ast.Param{Name: p.Name, Default: o.optimizeExpr(p.Default)}
	}
	return &ast.FunDecl{
		Tok: s.Tok, Name: s.Name, Params: params, Body: body,
		IsAsync: s.IsAsync, IsGenerator: s.IsGenerator, IsStatic: s.IsStatic,
		IsPrivate: s.IsPrivate, Owner: s.Owner,
	}
}

func (o *Optimizer) VisitClassDecl(s *ast.ClassDecl) any {
	o.checkShadow(s.Name)
	o.depth++
	body := make([]ast.Stmt, len(s.Body))
	for i, stmt := range s.Body {
		body[i] = o.optimizeStmt(stmt)
	}
	o.depth--
	return &ast.ClassDecl{
		Tok: s.Tok, Name: s.Name, Body: body, Parents: s.Parents,
		IsStatic: s.IsStatic, IsPrivate: s.IsPrivate, Owner: s.Owner,
	}
}
