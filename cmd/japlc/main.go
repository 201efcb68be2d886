// Command japlc drives the compilation pipeline end to end: lex,
// parse, optimize, compile, and serialize a source file to the framed
// bytecode format. It never links against a VM — japlc only builds
// artifacts, following the teacher's cmd_*.go verb-per-subcommand shape
// (github.com/google/subcommands) rather than its single-purpose main.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&lexCmd{}, "")
	subcommands.Register(&parseCmd{}, "")
	subcommands.Register(&optimizeCmd{}, "")
	subcommands.Register(&compileCmd{}, "")
	subcommands.Register(&checkCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
