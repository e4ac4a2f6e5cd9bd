// Command mycelialc compiles a Mycelial network source file into a binary
// NetworkDescriptor. Flag handling follows cmd/tfd-sim's flag.* usage;
// positional argument support and the named-overrides-positional rule come
// from the compiler CLI contract the source grammar documents.
package main

import (
	"flag"
	"fmt"
	"os"

	"mycelial/internal/compiler/lower"
	"mycelial/internal/compiler/parser"
	"mycelial/internal/descriptor"
	"mycelial/internal/obslog"
)

// Exit codes per the compiler CLI contract: 0 success; 1 argument error or
// help; 2 parse error; 3 semantic error; 4 I/O error.
const (
	exitOK            = 0
	exitArgError      = 1
	exitParseError    = 2
	exitSemanticError = 3
	exitIOError       = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mycelialc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	input := fs.String("input", "", "path to the .myc source file")
	output := fs.String("output", "", "path to write the compiled descriptor to")
	target := fs.String("target", "", "target architecture (reserved; currently ignored)")
	verbose := fs.Bool("verbose", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: mycelialc [--input <path>] [--output <path>] [--target <arch>] [--verbose] [<input> [<output>]]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitArgError
	}
	_ = target // reserved for future backend selection; single target today

	positional := fs.Args()
	inputPath := *input
	if inputPath == "" && len(positional) > 0 {
		inputPath = positional[0]
	}
	outputPath := *output
	if outputPath == "" && len(positional) > 1 {
		outputPath = positional[1]
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "mycelialc: missing input path")
		fs.Usage()
		return exitArgError
	}
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	logger := obslog.Default()
	if *verbose {
		logger.Info("compiling", "input", inputPath, "output", outputPath)
	}

	src, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelialc: reading %s: %v\n", inputPath, err)
		return exitIOError
	}

	p, err := parser.New(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelialc: %v\n", err)
		return exitParseError
	}
	net, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelialc: %v\n", err)
		return exitParseError
	}

	desc, diags := lower.Lower(net)
	if len(diags) != 0 {
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "mycelialc: %v\n", d)
		}
		return exitSemanticError
	}

	data, encErr := descriptor.Encode(desc)
	if encErr != nil {
		fmt.Fprintf(os.Stderr, "mycelialc: encoding descriptor: %v\n", encErr)
		return exitIOError
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mycelialc: writing %s: %v\n", outputPath, err)
		return exitIOError
	}

	if *verbose {
		logger.Info("compiled", "network", desc.NetworkName, "agents", len(desc.Agents), "bytes", len(data))
	}
	return exitOK
}

// defaultOutputPath swaps a .myc extension for .mycd, or appends .mycd if
// the input has no recognized extension.
func defaultOutputPath(inputPath string) string {
	const srcExt = ".myc"
	const outExt = ".mycd"
	if len(inputPath) > len(srcExt) && inputPath[len(inputPath)-len(srcExt):] == srcExt {
		return inputPath[:len(inputPath)-len(srcExt)] + outExt
	}
	return inputPath + outExt
}
