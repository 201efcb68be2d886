package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"japl/compiler"
	"japl/optimizer"
	"japl/serializer"
)

// compileCmd runs the full front end to back end pipeline and, unless
// told otherwise, writes the framed bytecode to <file>.japlc alongside
// the source. It never touches a VM — compilation stops at the
// serialized artifact.
type compileCmd struct {
	disassemble bool
	noWrite     bool
	dryRun      bool
	reuseConsts bool
	output      string
}

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "Compile a source file to a framed bytecode artifact" }
func (*compileCmd) Usage() string    { return "japlc compile [flags] <file>\n" }

func (cmd *compileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", false, "print a disassembly listing to stdout")
	f.BoolVar(&cmd.noWrite, "no-write", false, "don't write the .japlc artifact, only report success/failure")
	f.BoolVar(&cmd.dryRun, "dry-run", false, "run the optimizer in warning-collection mode without folding")
	f.BoolVar(&cmd.reuseConsts, "reuse-consts", true, "deduplicate structurally-equal constant-pool entries")
	f.StringVar(&cmd.output, "o", "", "output path (default: <file> with its extension replaced by .japlc)")
}

func (cmd *compileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	path := args[0]
	source, err := readSource(path)
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

	chunk, cErr := compiler.Compile(folded, path, cmd.reuseConsts)
	if cErr != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", cErr)
		return subcommands.ExitFailure
	}

	if cmd.disassemble {
		fmt.Println(chunk.Disassemble(path))
	}

	if cmd.noWrite {
		return subcommands.ExitSuccess
	}

	out := cmd.output
	if out == "" {
		out = replaceExt(path, ".japlc")
	}
	data, err := serializer.Dump(chunk, source, path, currentBuildInfo())
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 writing %s: %s\n", out, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	return subcommands.ExitSuccess
}

func replaceExt(path, ext string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i] + ext
	}
	return path + ext
}

// currentBuildInfo best-effort reads the local git branch/commit for
// the serializer's header; a repo-less checkout (or no git binary)
// falls back to zeroed provenance rather than failing the build.
func currentBuildInfo() serializer.BuildInfo {
	branch := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if branch == "" {
		branch = "unknown"
	}
	commit := gitOutput("rev-parse", "HEAD")
	if commit == "" {
		commit = strings.Repeat("0", 40)
	}
	return serializer.BuildInfo{
		VersionMajor: 0, VersionMinor: 1, VersionPatch: 0,
		Branch:      branch,
		CommitHash:  commit,
		Timestamp:   buildTimestamp(),
	}
}

func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// buildTimestamp reads SOURCE_DATE_EPOCH if set (reproducible builds)
// and otherwise returns 0 — japlc never calls time.Now() so a single
// compilation run is deterministic given the same inputs and flags.
func buildTimestamp() int64 {
	if v := os.Getenv("SOURCE_DATE_EPOCH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
