package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"japl/ast"
	"japl/optimizer"
	"japl/token"
)

func intLit(lexeme string, kind ast.LiteralKind, line int) *ast.Literal {
	tt := token.INT
	switch kind {
	case ast.LiteralHex:
		tt = token.HEX
	case ast.LiteralOctal:
		tt = token.OCTAL
	case ast.LiteralBinary:
		tt = token.BINARY
	}
	return &ast.Literal{Tok: token.Token{TokenType: tt, Lexeme: lexeme, Line: line}, Kind: kind}
}

func TestConstantFoldingArithmetic(t *testing.T) {
	// 1 + 2 * 3 folds bottom-up: 2*3 -> 6, then 1+6 -> 7.
	mul := &ast.Binary{Left: intLit("2", ast.LiteralInt, 1), Operator: token.Token{TokenType: token.MULT}, Right: intLit("3", ast.LiteralInt, 1)}
	add := &ast.Binary{Left: intLit("1", ast.LiteralInt, 1), Operator: token.Token{TokenType: token.ADD}, Right: mul}
	decl := &ast.VarDecl{Tok: token.Token{Line: 1}, Name: token.Token{Lexeme: "x", Line: 1}, Value: add, IsStatic: true}

	out, warnings := optimizer.Optimize([]ast.Stmt{decl}, false)
	require.Empty(t, warnings)
	require.Len(t, out, 1)

	folded := out[0].(*ast.VarDecl).Value.(*ast.Literal)
	assert.Equal(t, ast.LiteralInt, folded.Kind)
	assert.Equal(t, "7", folded.Tok.Lexeme)
}

func TestDivisionAlwaysYieldsFloat(t *testing.T) {
	bin := &ast.Binary{Left: intLit("6", ast.LiteralInt, 1), Operator: token.Token{TokenType: token.DIV}, Right: intLit("3", ast.LiteralInt, 1)}
	stmt := &ast.ExprStmt{Tok: token.Token{Line: 1}, Expr: bin}

	out, _ := optimizer.Optimize([]ast.Stmt{stmt}, false)
	folded := out[0].(*ast.ExprStmt).Expr.(*ast.Literal)
	assert.Equal(t, ast.LiteralFloat, folded.Kind)
}

func TestHexLiteralNormalizesToDecimal(t *testing.T) {
	lit := intLit("0xFF", ast.LiteralHex, 1)
	stmt := &ast.ExprStmt{Tok: token.Token{Line: 1}, Expr: lit}

	out, warnings := optimizer.Optimize([]ast.Stmt{stmt}, false)
	require.Empty(t, warnings)
	normalized := out[0].(*ast.ExprStmt).Expr.(*ast.Literal)
	assert.Equal(t, ast.LiteralInt, normalized.Kind)
	assert.Equal(t, "255", normalized.Tok.Lexeme)
}

func TestOverflowWarningCancelsFold(t *testing.T) {
	lit := intLit("99999999999999999999999999", ast.LiteralInt, 3)
	stmt := &ast.ExprStmt{Tok: token.Token{Line: 3}, Expr: lit}

	out, warnings := optimizer.Optimize([]ast.Stmt{stmt}, false)
	require.Len(t, warnings, 1)
	assert.Equal(t, optimizer.ValueOverflow, warnings[0].Kind)
	// node is left untouched, per spec.md §4.3.
	assert.Same(t, lit, out[0].(*ast.ExprStmt).Expr)
}

func TestGroupingUnnesting(t *testing.T) {
	inner := intLit("1", ast.LiteralInt, 1)
	nested := &ast.Grouping{Tok: token.Token{Line: 1}, Expr: &ast.Grouping{Tok: token.Token{Line: 1}, Expr: inner}}
	stmt := &ast.ExprStmt{Tok: token.Token{Line: 1}, Expr: nested}

	out, _ := optimizer.Optimize([]ast.Stmt{stmt}, false)
	result := out[0].(*ast.ExprStmt).Expr.(*ast.Grouping)
	_, stillNested := result.Expr.(*ast.Grouping)
	assert.False(t, stillNested)
}

func TestDryRunOnlyCollectsWarnings(t *testing.T) {
	mul := &ast.Binary{Left: intLit("2", ast.LiteralInt, 1), Operator: token.Token{TokenType: token.MULT}, Right: intLit("3", ast.LiteralInt, 1)}
	stmt := &ast.ExprStmt{Tok: token.Token{Line: 1}, Expr: mul}

	out, warnings := optimizer.Optimize([]ast.Stmt{stmt}, true)
	assert.Empty(t, warnings)
	assert.Same(t, stmt, out[0])
}

func TestUnreachableCodeWarning(t *testing.T) {
	ret := &ast.Return{Tok: token.Token{Line: 1}}
	after := &ast.ExprStmt{Tok: token.Token{Line: 2}, Expr: intLit("1", ast.LiteralInt, 2)}
	block := &ast.Block{Tok: token.Token{Line: 1}, Statements: []ast.Stmt{ret, after}}

	_, warnings := optimizer.Optimize([]ast.Stmt{block}, false)
	require.Len(t, warnings, 1)
	assert.Equal(t, optimizer.UnreachableCode, warnings[0].Kind)
	assert.Equal(t, 2, warnings[0].Line)
}

func TestLocalShadowsGlobalWarning(t *testing.T) {
	global := &ast.VarDecl{Tok: token.Token{Line: 1}, Name: token.Token{Lexeme: "x", Line: 1}, IsStatic: true}
	inner := &ast.VarDecl{Tok: token.Token{Line: 2}, Name: token.Token{Lexeme: "x", Line: 2}, IsStatic: true}
	block := &ast.Block{Tok: token.Token{Line: 2}, Statements: []ast.Stmt{inner}}
	fn := &ast.FunDecl{Tok: token.Token{Line: 2}, Name: token.Token{Lexeme: "f", Line: 2}, Body: block}

	_, warnings := optimizer.Optimize([]ast.Stmt{global, fn}, false)
	require.Len(t, warnings, 1)
	assert.Equal(t, optimizer.LocalShadowsGlobal, warnings[0].Kind)
}

func TestIdempotence(t *testing.T) {
	mul := &ast.Binary{Left: intLit("2", ast.LiteralInt, 1), Operator: token.Token{TokenType: token.MULT}, Right: intLit("3", ast.LiteralInt, 1)}
	stmt := &ast.ExprStmt{Tok: token.Token{Line: 1}, Expr: mul}

	once, _ := optimizer.Optimize([]ast.Stmt{stmt}, false)
	twice, warnings2 := optimizer.Optimize(once, false)

	a := once[0].(*ast.ExprStmt).Expr.(*ast.Literal)
	b := twice[0].(*ast.ExprStmt).Expr.(*ast.Literal)
	assert.Equal(t, a.Kind, b.Kind)
	assert.Equal(t, a.Tok.Lexeme, b.Tok.Lexeme)
	assert.Empty(t, warnings2)
}
