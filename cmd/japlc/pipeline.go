package main

import (
	"fmt"

	"japl/ast"
	"japl/lexer"
	"japl/parser"
)

// lexAndParse runs the front end shared by every verb past `lex`
// itself: scan source into tokens, then parse tokens into statements.
// Lexer and parser errors are both best-effort multi-error collections,
// so both are reported before bailing.
func lexAndParse(source string) ([]ast.Stmt, error) {
	tokens, lexErrs := lexer.New(source).Scan()
	if len(lexErrs) > 0 {
		return nil, collectErrors("lexing", lexErrs)
	}
	stmts, parseErrs := parser.Make(tokens).Parse()
	if len(parseErrs) > 0 {
		return nil, collectErrors("parsing", parseErrs)
	}
	return stmts, nil
}

func collectErrors(stage string, errs []error) error {
	msg := fmt.Sprintf("%s failed with %d error(s):", stage, len(errs))
	for _, e := range errs {
		msg += "\n\t" + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
