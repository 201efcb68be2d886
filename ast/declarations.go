package ast

import "japl/token"

// VarDecl declares a variable or constant. IsConst implies IsStatic
// and requires Value to be a const literal; IsStatic distinguishes a
// compile-time stack slot from a dynamically resolved global. Owner
// records the declaring module name, used for cross-module visibility
// checks (private/public).
type VarDecl struct {
	Tok       token.Token
	Name      token.Token
	Value     Expression
	IsConst   bool
	IsStatic  bool
	IsPrivate bool
	Owner     string
}

func (d *VarDecl) Accept(v StmtVisitor) any { return v.VisitVarDecl(d) }
func (d *VarDecl) Token() token.Token        { return d.Tok }

// Param is a single function parameter, with an optional default
// value. Positional parameters (Default == nil) may not follow a
// defaulted parameter; the parser enforces this.
type Param struct {
	Name    token.Token
	Default Expression
}

// FunDecl declares a named function.
type FunDecl struct {
	Tok         token.Token
	Name        token.Token
	Params      []Param
	Body        Stmt
	IsAsync     bool
	IsGenerator bool
	IsStatic    bool
	IsPrivate   bool
	Owner       string
}

func (d *FunDecl) Accept(v StmtVisitor) any { return v.VisitFunDecl(d) }
func (d *FunDecl) Token() token.Token        { return d.Tok }

// ClassDecl declares a class. Parents lists the (unresolved, per
// spec.md §9) base class names from `class NAME < P1, P2 { ... }`.
type ClassDecl struct {
	Tok       token.Token
	Name      token.Token
	Body      []Stmt
	Parents   []token.Token
	IsStatic  bool
	IsPrivate bool
	Owner     string
}

func (d *ClassDecl) Accept(v StmtVisitor) any { return v.VisitClassDecl(d) }
func (d *ClassDecl) Token() token.Token        { return d.Tok }
