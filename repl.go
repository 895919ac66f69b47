package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/strager/kal/irexec"
	"github.com/strager/kal/lang"
)

const (
	promptReady    = "ready> "
	promptContinue = "  ...> "
)

func replCommand(args []string, cfg config) {
	fs := newFlagSet("repl", "kal repl [-v]", "Start an interactive session")
	verbose := fs.Bool("v", cfg.verbose, "Print the IR of each lowered form")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(cfg.historyPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}

	r := newRepl(os.Stdout, cfg.maxSteps, *verbose)
	for {
		src, err := readForm(ln)
		if err != nil {
			if !errors.Is(err, io.EOF) && err != liner.ErrPromptAborted {
				fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			}
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		r.eval(src)
	}

	if f, err := os.Create(cfg.historyPath); err == nil {
		ln.WriteHistory(f)
		f.Close()
	} else if *verbose {
		fmt.Fprintf(os.Stderr, "Could not save history to %s: %v\n", cfg.historyPath, err)
	}
}

// readForm reads lines until they parse, or until the parser fails somewhere
// other than the end of the input.
func readForm(ln *liner.State) (string, error) {
	var lines []string
	prompt := promptReady
	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if len(lines) > 0 && errors.Is(err, io.EOF) {
				return strings.Join(lines, "\n"), nil
			}
			return "", err
		}
		lines = append(lines, line)
		src := strings.Join(lines, "\n")
		if !incomplete(src) {
			return src, nil
		}
		prompt = promptContinue
	}
}

// incomplete reports whether src only fails to parse because it ends too
// early, such as an unclosed '{'.
func incomplete(src string) bool {
	_, errs := lang.ParseAll([]byte(src))
	for _, err := range errs {
		var pe *lang.ParseError
		if errors.As(err, &pe) && pe.Token == "" {
			return true
		}
	}
	return false
}

// repl keeps one compilation unit alive across inputs so later lines can
// call functions defined earlier.
type repl struct {
	out     io.Writer
	cg      *lang.Codegen
	m       *irexec.Machine
	verbose bool
}

func newRepl(out io.Writer, maxSteps int, verbose bool) *repl {
	cg := lang.NewCodegen()
	return &repl{
		out:     out,
		cg:      cg,
		m:       irexec.New(cg.Module(), irexec.WithOutput(out), irexec.WithMaxSteps(maxSteps)),
		verbose: verbose,
	}
}

func (r *repl) eval(src string) {
	s := lang.NewSession([]byte(src), r.cg)
	for {
		form, err := s.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			continue
		}
		if r.verbose {
			fmt.Fprintf(r.out, "%s\n", form.Func.LLString())
		}

		switch form.Kind {
		case lang.FormDefinition:
			fmt.Fprintf(r.out, "Read function definition: %s\n", form.Name())
		case lang.FormExtern:
			fmt.Fprintf(r.out, "Read extern: %s\n", form.Name())
		case lang.FormExpression:
			v, err := r.m.Call(form.Name())
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(r.out, "=> %s\n", v)
		}
	}
}
