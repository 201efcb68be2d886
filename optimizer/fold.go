package optimizer

import (
	"math/big"
	"strconv"

	"japl/ast"
	"japl/token"
)

// numericBase returns the strconv base and digit-string offset for the
// given literal kind, following spec.md §4.1's prefix rules.
func numericBase(kind ast.LiteralKind) (base int, prefixLen int) {
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

// parseIntLiteral interprets lit's lexeme according to its base,
// returning the value as int64. An error here means the literal
// overflows 64 bits, per spec.md §8's "Numeric normalization" property.
func parseIntLiteral(lit *ast.Literal) (int64, error) {
	base, prefixLen := numericBase(lit.Kind)
	digits := lit.Tok.Lexeme
	if prefixLen > 0 && len(digits) >= prefixLen {
		digits = digits[prefixLen:]
	}
	return strconv.ParseInt(digits, base, 64)
}

// isIntLiteral reports whether expr is a Literal of one of the four
// integer bases (decimal/hex/octal/binary).
func isIntLiteral(expr ast.Expression) (*ast.Literal, bool) {
	lit, ok := expr.(*ast.Literal)
	if !ok {
		return nil, false
	}
	switch lit.Kind {
	case ast.LiteralInt, ast.LiteralHex, ast.LiteralOctal, ast.LiteralBinary:
		return lit, true
	default:
		return nil, false
	}
}

// canonicalIntLiteral builds the canonical decimal-integer AST literal
// node spec.md §8's "Numeric normalization round-trip" property
// requires: same line, decimal(n) lexeme, Kind == LiteralInt.
func canonicalIntLiteral(line int, n int64) *ast.Literal {
	lexeme := strconv.FormatInt(n, 10)
	return &ast.Literal{
		Tok:   token.Token{TokenType: token.INT, Lexeme: lexeme, Literal: n, Line: line},
		Kind:  ast.LiteralInt,
		Value: n,
	}
}

func canonicalFloatLiteral(line int, f float64) *ast.Literal {
	lexeme := strconv.FormatFloat(f, 'g', -1, 64)
	return &ast.Literal{
		Tok:   token.Token{TokenType: token.FLOAT, Lexeme: lexeme, Literal: f, Line: line},
		Kind:  ast.LiteralFloat,
		Value: f,
	}
}

var big1 = big.NewInt(1)

// floorDivMod computes Python-style floor division and modulo: the
// quotient rounds toward negative infinity and the remainder always
// carries the divisor's sign.
func floorDivMod(a, b *big.Int) (q, m *big.Int) {
	q = new(big.Int)
	m = new(big.Int)
	q.QuoRem(a, b, m)
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big1)
		m.Add(m, b)
	}
	return q, m
}

// foldResult is the outcome of attempting to constant-fold one binary
// integer operation.
type foldResult struct {
	// exactly one of intValue/floatValue is meaningful, per isFloat.
	intValue   *big.Int
	floatValue float64
	isFloat    bool
	// folded is false when the operator simply does not apply to a
	// constant-foldable pair (e.g. division by zero) without being an
	// overflow — no warning is raised in that case.
	folded bool
	// overflow is true when the ideal result doesn't fit in int64;
	// the caller emits a valueOverflow warning and cancels the fold.
	overflow bool
}

// foldIntBinary evaluates the integer operation named by op over left
// and right per spec.md §4.3's constant-folding operator set
// (`+ - * / // ** % ^ & | >> <<`). `/` always yields a float.
func foldIntBinary(op token.TokenType, left, right int64) foldResult {
	l := big.NewInt(left)
	r := big.NewInt(right)

	switch op {
	case token.ADD:
		return fitInt64(new(big.Int).Add(l, r))
	case token.SUB:
		return fitInt64(new(big.Int).Sub(l, r))
	case token.MULT:
		return fitInt64(new(big.Int).Mul(l, r))
	case token.DIV:
		if right == 0 {
			return foldResult{folded: false}
		}
		return foldResult{folded: true, isFloat: true, floatValue: float64(left) / float64(right)}
	case token.FLOOR_DIV:
		if right == 0 {
			return foldResult{folded: false}
		}
		q, _ := floorDivMod(l, r)
		return fitInt64(q)
	case token.MODULO:
		if right == 0 {
			return foldResult{folded: false}
		}
		_, m := floorDivMod(l, r)
		return fitInt64(m)
	case token.POW:
		if right < 0 {
			return foldResult{folded: false}
		}
		return fitInt64(new(big.Int).Exp(l, r, nil))
	case token.BIT_XOR:
		return fitInt64(new(big.Int).Xor(l, r))
	case token.BIT_AND:
		return fitInt64(new(big.Int).And(l, r))
	case token.BIT_OR:
		return fitInt64(new(big.Int).Or(l, r))
	case token.SHIFT_LEFT:
		if right < 0 || right > 63 {
			return foldResult{folded: false}
		}
		return fitInt64(new(big.Int).Lsh(l, uint(right)))
	case token.SHIFT_RIGHT:
		if right < 0 || right > 63 {
			return foldResult{folded: false}
		}
		return fitInt64(new(big.Int).Rsh(l, uint(right)))
	default:
		return foldResult{folded: false}
	}
}

func fitInt64(v *big.Int) foldResult {
	if !v.IsInt64() {
		return foldResult{folded: true, overflow: true}
	}
	return foldResult{folded: true, intValue: v}
}
