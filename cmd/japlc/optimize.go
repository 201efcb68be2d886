package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/k0kubun/pp/v3"

	"japl/optimizer"
)

type optimizeCmd struct {
	dryRun bool
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "Run constant folding and print the result plus any warnings" }
func (*optimizeCmd) Usage() string    { return "japlc optimize [-dry-run] <file>\n" }

func (cmd *optimizeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.dryRun, "dry-run", false, "collect warnings without rewriting the AST")
}

func (cmd *optimizeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	source, err := readSource(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err)
		return subcommands.ExitFailure
	}

	stmts, err := lexAndParse(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err)
		return subcommands.ExitFailure
	}

	folded, warnings := optimizer.Optimize(stmts, cmd.dryRun)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "⚠️  %s\n", w)
	}
	pp.Println(folded)
	return subcommands.ExitSuccess
}
