// Package ast defines the abstract syntax tree produced by the parser
// and consumed by the optimizer and compiler. Every node is a tagged
// variant carrying its originating token.Token for diagnostics; the
// tree is strictly tree-shaped (no cycles), so ownership of children
// is straightforward value/slice composition.
//
// Dispatch follows the teacher's visitor pattern (see ast/interfaces.go
// in the teacher repository): every node implements Accept against the
// appropriate visitor interface instead of exposing type switches to
// its callers.
package ast

import "japl/token"

// Expression is implemented by every AST node that evaluates to a
// value.
type Expression interface {
	Accept(v ExpressionVisitor) any
	Token() token.Token
}

// Stmt is implemented by every AST node that does not itself produce a
// value: statements and declarations alike (a declaration is just a
// statement that binds a name).
type Stmt interface {
	Accept(v StmtVisitor) any
	Token() token.Token
}

// ExpressionVisitor operates on every Expression variant. The optimizer
// (AST -> AST) implements it; the compiler dispatches with a type switch.
type ExpressionVisitor interface {
	VisitLiteral(*Literal) any
	VisitIdentifier(*Identifier) any
	VisitGrouping(*Grouping) any
	VisitUnary(*Unary) any
	VisitBinary(*Binary) any
	VisitListLiteral(*ListLiteral) any
	VisitTupleLiteral(*TupleLiteral) any
	VisitSetLiteral(*SetLiteral) any
	VisitDictLiteral(*DictLiteral) any
	VisitCall(*Call) any
	VisitGetItem(*GetItem) any
	VisitSetItem(*SetItem) any
	VisitSlice(*Slice) any
	VisitAssignment(*Assignment) any
	VisitLambda(*Lambda) any
	VisitYield(*Yield) any
	VisitAwait(*Await) any
}

// StmtVisitor operates on every Stmt variant, including declarations.
type StmtVisitor interface {
	VisitExprStmt(*ExprStmt) any
	VisitIf(*If) any
	VisitWhile(*While) any
	VisitForEach(*ForEach) any
	VisitBlock(*Block) any
	VisitReturn(*Return) any
	VisitBreak(*Break) any
	VisitContinue(*Continue) any
	VisitDel(*Del) any
	VisitAssert(*Assert) any
	VisitRaise(*Raise) any
	VisitImport(*Import) any
	VisitFromImport(*FromImport) any
	VisitTry(*Try) any
	VisitDefer(*Defer) any
	VisitVarDecl(*VarDecl) any
	VisitFunDecl(*FunDecl) any
	VisitClassDecl(*ClassDecl) any
}
