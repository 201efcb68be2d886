package parser

import (
	"testing"

	"japl/ast"
	"japl/lexer"
)

func parse(t *testing.T, source string) ([]ast.Stmt, []error) {
	t.Helper()
	toks, lexErrs := lexer.New(source).Scan()
	if len(lexErrs) != 0 {
		t.Fatalf("lexer errors for %q: %v", source, lexErrs)
	}
	return Make(toks).Parse()
}

func mustParse(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	stmts, errs := parse(t, source)
	if len(errs) != 0 {
		t.Fatalf("parse(%q) returned errors: %v", source, errs)
	}
	return stmts
}

func TestVarDeclaration(t *testing.T) {
	stmts := mustParse(t, "var x = 1;")
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	decl, ok := stmts[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("got %T, want *ast.VarDecl", stmts[0])
	}
	if decl.Name.Lexeme != "x" || !decl.IsStatic {
		t.Errorf("unexpected decl: %+v", decl)
	}
}

func TestConstRequiresInitializer(t *testing.T) {
	_, errs := parse(t, "const x;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestDynamicVar(t *testing.T) {
	stmts := mustParse(t, "dynamic var x = 1;")
	decl := stmts[0].(*ast.VarDecl)
	if decl.IsStatic {
		t.Errorf("expected dynamic var to be non-static")
	}
}

func TestFunDeclarationWithDefaults(t *testing.T) {
	stmts := mustParse(t, "fun add(a, b = 2) { return a + b; }")
	decl, ok := stmts[0].(*ast.FunDecl)
	if !ok {
		t.Fatalf("got %T, want *ast.FunDecl", stmts[0])
	}
	if len(decl.Params) != 2 || decl.Params[1].Default == nil {
		t.Errorf("unexpected params: %+v", decl.Params)
	}
}

func TestFunDeclarationWithYieldIsGenerator(t *testing.T) {
	stmts := mustParse(t, "fun gen() { yield 1; }")
	decl := stmts[0].(*ast.FunDecl)
	if !decl.IsGenerator {
		t.Errorf("expected a function containing 'yield' to be marked IsGenerator")
	}
}

func TestFunDeclarationWithoutYieldIsNotGenerator(t *testing.T) {
	stmts := mustParse(t, "fun plain() { return 1; }")
	decl := stmts[0].(*ast.FunDecl)
	if decl.IsGenerator {
		t.Errorf("expected a function without 'yield' to not be marked IsGenerator")
	}
}

func TestNestedFunctionYieldDoesNotMarkOuterGenerator(t *testing.T) {
	stmts := mustParse(t, "fun outer() { fun inner() { yield 1; } return 1; }")
	decl := stmts[0].(*ast.FunDecl)
	if decl.IsGenerator {
		t.Errorf("a yield inside a nested function must not mark the enclosing function as a generator")
	}
	inner := decl.Body.(*ast.Block).Statements[0].(*ast.FunDecl)
	if !inner.IsGenerator {
		t.Errorf("expected the nested function itself to be marked IsGenerator")
	}
}

func TestPositionalAfterDefaultIsError(t *testing.T) {
	_, errs := parse(t, "fun f(a = 1, b) { return a; }")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestAsyncFunctionAllowsAwait(t *testing.T) {
	mustParse(t, "async fun f() { await g(); }")
}

func TestAwaitOutsideAsyncIsError(t *testing.T) {
	_, errs := parse(t, "fun f() { await g(); }")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	_, errs := parse(t, "break;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestBreakInsideWhile(t *testing.T) {
	mustParse(t, "while (true) { break; }")
}

func TestReturnOutsideFunctionIsError(t *testing.T) {
	_, errs := parse(t, "return 1;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestForDesugarsToBlockWhile(t *testing.T) {
	stmts := mustParse(t, "for (var i = 0; i < 10; i = i + 1) { print(i); }")
	block, ok := stmts[0].(*ast.Block)
	if !ok {
		t.Fatalf("got %T, want *ast.Block", stmts[0])
	}
	if len(block.Statements) != 2 {
		t.Fatalf("got %d statements in desugared for, want 2", len(block.Statements))
	}
	if _, ok := block.Statements[0].(*ast.VarDecl); !ok {
		t.Errorf("first statement should be the init VarDecl, got %T", block.Statements[0])
	}
	if _, ok := block.Statements[1].(*ast.While); !ok {
		t.Errorf("second statement should be the While loop, got %T", block.Statements[1])
	}
}

func TestForEachStatement(t *testing.T) {
	stmts := mustParse(t, "foreach (x : items) { print(x); }")
	fe, ok := stmts[0].(*ast.ForEach)
	if !ok {
		t.Fatalf("got %T, want *ast.ForEach", stmts[0])
	}
	if fe.Name.Lexeme != "x" {
		t.Errorf("unexpected loop variable: %q", fe.Name.Lexeme)
	}
}

func TestTupleVsGroupingVsEmptyTuple(t *testing.T) {
	stmts := mustParse(t, "(1); (1,); ();")
	if _, ok := stmts[0].(*ast.ExprStmt).Expr.(*ast.Grouping); !ok {
		t.Errorf("(1) should parse as Grouping, got %T", stmts[0].(*ast.ExprStmt).Expr)
	}
	tup, ok := stmts[1].(*ast.ExprStmt).Expr.(*ast.TupleLiteral)
	if !ok || len(tup.Elements) != 1 {
		t.Errorf("(1,) should parse as 1-tuple, got %#v", stmts[1].(*ast.ExprStmt).Expr)
	}
	empty, ok := stmts[2].(*ast.ExprStmt).Expr.(*ast.TupleLiteral)
	if !ok || len(empty.Elements) != 0 {
		t.Errorf("() should parse as empty tuple, got %#v", stmts[2].(*ast.ExprStmt).Expr)
	}
}

func TestDictVsSetLiteral(t *testing.T) {
	// A '{' at the start of a statement opens a block, so the literals
	// are parsed in expression position.
	stmts := mustParse(t, `var d = {"a": 1}; var s = {1, 2};`)
	if _, ok := stmts[0].(*ast.VarDecl).Value.(*ast.DictLiteral); !ok {
		t.Errorf("expected DictLiteral, got %T", stmts[0].(*ast.VarDecl).Value)
	}
	if _, ok := stmts[1].(*ast.VarDecl).Value.(*ast.SetLiteral); !ok {
		t.Errorf("expected SetLiteral, got %T", stmts[1].(*ast.VarDecl).Value)
	}
}

func TestAttributeAssignmentBecomesSetItem(t *testing.T) {
	stmts := mustParse(t, "obj.field = 1;")
	setItem, ok := stmts[0].(*ast.ExprStmt).Expr.(*ast.SetItem)
	if !ok {
		t.Fatalf("got %T, want *ast.SetItem", stmts[0].(*ast.ExprStmt).Expr)
	}
	if setItem.Name.Lexeme != "field" {
		t.Errorf("unexpected attribute name: %q", setItem.Name.Lexeme)
	}
}

func TestCompoundAssignmentOnAttributeIsError(t *testing.T) {
	_, errs := parse(t, "obj.field += 1;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestKeywordArgsAndPositionalAfterKeywordIsError(t *testing.T) {
	mustParse(t, "f(1, name=2);")
	_, errs := parse(t, "f(name=2, 1);")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestDuplicateKeywordArgIsError(t *testing.T) {
	_, errs := parse(t, "f(name=1, name=2);")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestPowIsRightAssociative(t *testing.T) {
	stmts := mustParse(t, "2 ** 3 ** 2;")
	bin := stmts[0].(*ast.ExprStmt).Expr.(*ast.Binary)
	rightBin, ok := bin.Right.(*ast.Binary)
	if !ok {
		t.Fatalf("expected right-associative Binary, got %T", bin.Right)
	}
	if rightBin.Operator.TokenType != bin.Operator.TokenType {
		t.Errorf("unexpected nested operator: %v", rightBin.Operator)
	}
}

func TestSliceExpression(t *testing.T) {
	stmts := mustParse(t, "a[1:2:3];")
	sl := stmts[0].(*ast.ExprStmt).Expr.(*ast.Slice)
	if sl.Start == nil || sl.Stop == nil || sl.Step == nil {
		t.Errorf("expected full slice, got %#v", sl)
	}
}

func TestPlainIndexIsSliceWithOnlyStart(t *testing.T) {
	stmts := mustParse(t, "a[0];")
	sl := stmts[0].(*ast.ExprStmt).Expr.(*ast.Slice)
	if sl.Start == nil || sl.Stop != nil || sl.Step != nil {
		t.Errorf("expected index-only slice, got %#v", sl)
	}
}

func TestTryExceptElseFinally(t *testing.T) {
	stmts := mustParse(t, `
		try {
			risky();
		} except ValueError as e {
			handle();
		} except {
			catchAll();
		} else {
			ok();
		} finally {
			cleanup();
		}
	`)
	tryStmt, ok := stmts[0].(*ast.Try)
	if !ok {
		t.Fatalf("got %T, want *ast.Try", stmts[0])
	}
	if len(tryStmt.Handlers) != 2 || tryStmt.Else == nil || tryStmt.Finally == nil {
		t.Errorf("unexpected try shape: %+v", tryStmt)
	}
}

func TestCatchAllExceptMustBeLast(t *testing.T) {
	_, errs := parse(t, `
		try {
			risky();
		} except {
			a();
		} except ValueError {
			b();
		}
	`)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestClassWithParents(t *testing.T) {
	stmts := mustParse(t, "class Dog < Animal, Named { fun bark() { return 1; } }")
	decl := stmts[0].(*ast.ClassDecl)
	if len(decl.Parents) != 2 || len(decl.Body) != 1 {
		t.Errorf("unexpected class shape: %+v", decl)
	}
}

func TestLambdaExpressionBody(t *testing.T) {
	stmts := mustParse(t, "var f = lambda(x) x + 1;")
	decl := stmts[0].(*ast.VarDecl)
	lambda, ok := decl.Value.(*ast.Lambda)
	if !ok {
		t.Fatalf("got %T, want *ast.Lambda", decl.Value)
	}
	if _, ok := lambda.Body.(*ast.Return); !ok {
		t.Errorf("expected expression-bodied lambda to desugar to Return, got %T", lambda.Body)
	}
}

func TestDeferRequiresCallExpression(t *testing.T) {
	_, errs := parse(t, "fun f() { defer 1; }")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestMultipleErrorsRecoverAcrossStatements(t *testing.T) {
	_, errs := parse(t, "break; continue; var x = 1;")
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
}
