package ast

import (
	"testing"

	"japl/token"
)

// countingVisitor records which Visit method it was dispatched to,
// mirroring the teacher's astPrinter pattern of exercising the
// visitor interface directly from tests.
type countingVisitor struct {
	calls map[string]int
}

func newCountingVisitor() *countingVisitor {
	return &countingVisitor{calls: map[string]int{}}
}

func (c *countingVisitor) VisitLiteral(*Literal) any         { c.calls["Literal"]++; return nil }
func (c *countingVisitor) VisitIdentifier(*Identifier) any   { c.calls["Identifier"]++; return nil }
func (c *countingVisitor) VisitGrouping(*Grouping) any       { c.calls["Grouping"]++; return nil }
func (c *countingVisitor) VisitUnary(*Unary) any             { c.calls["Unary"]++; return nil }
func (c *countingVisitor) VisitBinary(*Binary) any           { c.calls["Binary"]++; return nil }
func (c *countingVisitor) VisitListLiteral(*ListLiteral) any { c.calls["ListLiteral"]++; return nil }
func (c *countingVisitor) VisitTupleLiteral(*TupleLiteral) any {
	c.calls["TupleLiteral"]++
	return nil
}
func (c *countingVisitor) VisitSetLiteral(*SetLiteral) any   { c.calls["SetLiteral"]++; return nil }
func (c *countingVisitor) VisitDictLiteral(*DictLiteral) any { c.calls["DictLiteral"]++; return nil }
func (c *countingVisitor) VisitCall(*Call) any               { c.calls["Call"]++; return nil }
func (c *countingVisitor) VisitGetItem(*GetItem) any         { c.calls["GetItem"]++; return nil }
func (c *countingVisitor) VisitSetItem(*SetItem) any         { c.calls["SetItem"]++; return nil }
func (c *countingVisitor) VisitSlice(*Slice) any             { c.calls["Slice"]++; return nil }
func (c *countingVisitor) VisitAssignment(*Assignment) any   { c.calls["Assignment"]++; return nil }
func (c *countingVisitor) VisitLambda(*Lambda) any           { c.calls["Lambda"]++; return nil }
func (c *countingVisitor) VisitYield(*Yield) any             { c.calls["Yield"]++; return nil }
func (c *countingVisitor) VisitAwait(*Await) any             { c.calls["Await"]++; return nil }

func TestExpressionAcceptDispatchesToMatchingVisitMethod(t *testing.T) {
	v := newCountingVisitor()
	tok := token.CreateToken(token.ADD, "+", 1, 0, 1)

	nodes := []Expression{
		&Literal{Tok: tok, Kind: LiteralInt, Value: int64(1)},
		&Identifier{Tok: tok},
		&Grouping{Tok: tok},
		&Unary{Operator: tok},
		&Binary{Operator: tok},
		&ListLiteral{Tok: tok},
		&TupleLiteral{Tok: tok},
		&SetLiteral{Tok: tok},
		&DictLiteral{Tok: tok},
		&Call{Paren: tok},
		&GetItem{Name: tok},
		&SetItem{Name: tok},
		&Slice{Tok: tok},
		&Assignment{Op: tok},
		&Lambda{Tok: tok},
		&Yield{Tok: tok},
		&Await{Tok: tok},
	}

	for _, n := range nodes {
		n.Accept(v)
	}

	if len(v.calls) != len(nodes) {
		t.Fatalf("expected %d distinct visit calls, got %d: %v", len(nodes), len(v.calls), v.calls)
	}
	for name, count := range v.calls {
		if count != 1 {
			t.Errorf("Visit%s called %d times, want 1", name, count)
		}
	}
}

func TestIsConst(t *testing.T) {
	tok := token.CreateToken(token.INT, "1", 1, 0, 1)
	if !IsConst(&Literal{Tok: tok, Kind: LiteralInt, Value: int64(1)}) {
		t.Errorf("Literal should be const")
	}
	if IsConst(&Identifier{Tok: tok}) {
		t.Errorf("Identifier should not be const")
	}
}

func TestIsLiteral(t *testing.T) {
	tok := token.CreateToken(token.LBRACKET, "[", 1, 0, 1)
	if !IsLiteral(&ListLiteral{Tok: tok}) {
		t.Errorf("ListLiteral should be a literal")
	}
	if IsLiteral(&Call{Paren: tok}) {
		t.Errorf("Call should not be a literal")
	}
}
