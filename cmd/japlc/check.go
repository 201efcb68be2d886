package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"japl/ast"
	"japl/compiler"
	"japl/optimizer"
)

// checkCmd is an interactive front end: it lexes, parses, optimizes
// and compiles each complete statement the user types, reporting the
// errors of the first stage that fails, but never executes anything — there is
// no VM in this pipeline to hand the compiled chunk to.
type checkCmd struct {
	dumpAST bool
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "Interactively check source a line at a time" }
func (*checkCmd) Usage() string    { return "japlc check\n" }

func (cmd *checkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.dumpAST, "dump-ast", false, "print the parsed AST for each accepted statement")
}

func (cmd *checkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Printf("💥 %s\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Printf("💥 %s\n", err)
			return subcommands.ExitFailure
		}
		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		cmd.tryCompile(buffer.String(), &buffer)
	}
}

// tryCompile runs the buffered source through the front end. An
// incomplete construct at end-of-input (an unclosed brace) means the
// user isn't done typing yet, so the buffer is kept rather than
// reported — the same deferred-judgment the teacher's REPL makes by
// checking brace balance before parsing at all.
func (cmd *checkCmd) tryCompile(source string, buffer *strings.Builder) {
	stmts, err := lexAndParse(source)
	if err != nil {
		if looksIncomplete(source) {
			return
		}
		fmt.Println(err)
		buffer.Reset()
		return
	}

	folded, warnings := optimizer.Optimize(stmts, false)
	for _, w := range warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	if cmd.dumpAST {
		printAST(folded)
	}

	if _, cErr := compiler.Compile(folded, "<check>", false); cErr != nil {
		fmt.Println(cErr)
	}
	buffer.Reset()
}

// looksIncomplete reports whether source has unbalanced braces; an
// imbalance means the REPL should wait for the closing line instead of
// surfacing the parser's own "unexpected EOF" error.
func looksIncomplete(source string) bool {
	depth := 0
	inString := false
	var quote rune
	runes := []rune(source)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if inString {
			if r == '\\' {
				i++
				continue
			}
			if r == quote {
				inString = false
			}
			continue
		}
		switch r {
		case '"', '\'':
			inString = true
			quote = r
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth > 0
}

func printAST(stmts []ast.Stmt) {
	for _, s := range stmts {
		fmt.Printf("%T @ line %d\n", s, s.Token().Line)
	}
}
