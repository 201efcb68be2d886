package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/k0kubun/pp/v3"

	"japl/lexer"
)

type lexCmd struct{}

func (*lexCmd) Name() string     { return "lex" }
func (*lexCmd) Synopsis() string { return "Scan a source file and print its token stream" }
func (*lexCmd) Usage() string    { return "japlc lex <file>\n" }
func (*lexCmd) SetFlags(f *flag.FlagSet) {}

func (*lexCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	tokens, errs := lexer.New(source).Scan()
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "💥 %s\n", e)
		}
		return subcommands.ExitFailure
	}
	pp.Println(tokens)
	return subcommands.ExitSuccess
}
