package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
	"github.com/strager/kal/irexec"
	"github.com/strager/kal/lang"
)

func showUsage() {
	fmt.Fprintf(os.Stderr, `kal - a small vector-capable expression language compiling to LLVM IR

Usage:
    kal <command> [arguments]

Commands:
    run <file>      Compile and execute a .kal file
    build <file>    Compile a .kal file to textual LLVM IR
    eval <code>     Evaluate inline kal code
    check <file>    Parse and lower a .kal file, reporting errors
    repl            Start an interactive session
    help            Show this help message

Examples:
    kal run examples/loop.kal
    kal build -o program.ll vectors.kal
    kal eval 'def sq(x) x*x; sq(3) + 1'
    kal check myfile.kal

Environment:
    KAL_VERBOSE=1       same as -v
    KAL_MAX_STEPS=N     instruction budget when executing (0 = unbounded)
    KAL_HISTORY=path    REPL history file

Use "kal <command> -h" for more information about a command.
`)
}

// program is the result of compiling one source text.
type program struct {
	module *ir.Module
	forms  []*lang.Form
}

// compileProgram parses and lowers every top-level form of input. Any
// discarded form makes the whole program fail.
func compileProgram(input []byte, verbose bool) (*program, error) {
	cg := lang.NewCodegen()
	forms, errs := lang.CompileAll(input, cg)
	if errs.HasErrors() {
		return nil, errors.Errorf("compilation errors:\n%s", errs.String())
	}

	if verbose {
		for _, form := range forms {
			fmt.Fprintf(os.Stderr, "AST: %s\n", lang.ToSExpr(form.Node))
		}
		fmt.Fprintf(os.Stderr, "IR:\n%s\n", cg.Module().String())
	}

	return &program{module: cg.Module(), forms: forms}, nil
}

// executeProgram evaluates each top-level expression in source order and
// returns their values.
func executeProgram(p *program, out io.Writer, maxSteps int) ([]irexec.Value, error) {
	m := irexec.New(p.module, irexec.WithOutput(out), irexec.WithMaxSteps(maxSteps))
	var results []irexec.Value
	for _, form := range p.forms {
		if form.Kind != lang.FormExpression {
			continue
		}
		v, err := m.Call(form.Name())
		if err != nil {
			return results, errors.Wrapf(err, "evaluating %s", lang.ToSExpr(form.Node.Body()[0]))
		}
		results = append(results, v)
	}
	return results, nil
}

func readSource(filename string) ([]byte, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return source, nil
}

func newFlagSet(name, usage, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		fmt.Fprintf(os.Stderr, "%s\n\n", summary)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	return fs
}

func parseSingleArg(fs *flag.FlagSet, args []string, what string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one %s argument\n", what)
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runCommand(args []string, cfg config) {
	fs := newFlagSet("run", "kal run [-v] <file>", "Compile and execute a .kal file")
	verbose := fs.Bool("v", cfg.verbose, "Show verbose compilation details")
	filename := parseSingleArg(fs, args, "file")

	if *verbose {
		fmt.Fprintf(os.Stderr, "Compiling %s...\n", filename)
	}

	source, err := readSource(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := compileProgram(source, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation failed: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Executing...\n")
	}
	if _, err := executeProgram(p, os.Stdout, cfg.maxSteps); err != nil {
		fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}
}

func buildCommand(args []string, cfg config) {
	fs := newFlagSet("build", "kal build [-o output] [-v] <file>", "Compile a .kal file to textual LLVM IR")
	output := fs.String("o", "", "Output file path (default: <filename>.ll)")
	verbose := fs.Bool("v", cfg.verbose, "Show verbose compilation details")
	filename := parseSingleArg(fs, args, "file")

	outputFile := *output
	if outputFile == "" {
		outputFile = strings.TrimSuffix(filename, ".kal") + ".ll"
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Compiling %s to %s...\n", filename, outputFile)
	}

	source, err := readSource(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := compileProgram(source, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation failed: %v\n", err)
		os.Exit(1)
	}

	text := p.module.String()
	if err := os.WriteFile(outputFile, []byte(text), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing IR file %s: %v\n", outputFile, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s (%d bytes)\n", outputFile, len(text))
}

func evalCommand(args []string, cfg config) {
	fs := newFlagSet("eval", "kal eval [-v] <code>", "Evaluate inline kal code")
	verbose := fs.Bool("v", cfg.verbose, "Show verbose compilation details")
	code := parseSingleArg(fs, args, "code")

	if *verbose {
		fmt.Fprintf(os.Stderr, "Evaluating: %s\n", code)
	}

	p, err := compileProgram([]byte(code), *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation failed: %v\n", err)
		os.Exit(1)
	}

	results, err := executeProgram(p, os.Stdout, cfg.maxSteps)
	for _, v := range results {
		fmt.Printf("=> %s\n", v)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}
}

func checkCommand(args []string, cfg config) {
	fs := newFlagSet("check", "kal check [-v] <file>", "Parse and lower a .kal file, reporting errors")
	verbose := fs.Bool("v", cfg.verbose, "Show verbose checking details")
	filename := parseSingleArg(fs, args, "file")

	if *verbose {
		fmt.Printf("Checking %s...\n", filename)
	}

	source, err := readSource(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Report syntax errors on their own first; lowering a file with syntax
	// errors mostly produces noise.
	nodes, parseErrors := lang.ParseAll(source)
	if parseErrors.HasErrors() {
		fmt.Printf("Parsing errors in %s:\n%s\n", filename, parseErrors.String())
		os.Exit(1)
	}

	_, lowerErrors := lang.CompileAll(source, lang.NewCodegen())
	if lowerErrors.HasErrors() {
		fmt.Printf("Lowering errors in %s:\n%s\n", filename, lowerErrors.String())
		os.Exit(1)
	}

	fmt.Printf("%s: no errors found\n", filename)

	if *verbose {
		for _, node := range nodes {
			fmt.Printf("AST: %s\n", lang.ToSExpr(node))
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	cfg := loadConfig()
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		runCommand(args, cfg)
	case "build":
		buildCommand(args, cfg)
	case "eval":
		evalCommand(args, cfg)
	case "check":
		checkCommand(args, cfg)
	case "repl":
		replCommand(args, cfg)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}
}
