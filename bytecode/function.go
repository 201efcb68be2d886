package bytecode

import "japl/ast"

// FunctionConstant is a compiled function or lambda body, held in its
// declaring chunk's constant pool. spec.md's opcode table has no
// closure-creation opcode, so a function value is addressed purely
// through LoadConstant — the (future) runtime is responsible for
// turning a loaded FunctionConstant into a callable.
type FunctionConstant struct {
	Name        string
	Params      []string
	HasDefault  []bool
	IsAsync     bool
	IsGenerator bool
	Chunk       *Chunk
}

// ClassConstant is a compiled class body: its member declarations
// compiled into their own Chunk. Method dispatch and parent resolution
// are out of scope (spec.md §9); MakeClass only records the shape.
type ClassConstant struct {
	Name    string
	Parents []string
	Members *Chunk
}

// ConstantLexeme renders a constant-pool entry for diagnostics and
// disassembly, regardless of its concrete kind.
func ConstantLexeme(c any) string {
	switch v := c.(type) {
	case *FunctionConstant:
		return "<function " + v.Name + ">"
	case *ClassConstant:
		return "<class " + v.Name + ">"
	case ast.Expression:
		return v.Token().Lexeme
	default:
		return ""
	}
}
