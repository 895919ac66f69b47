package lang

import (
	"errors"
	"io"

	"github.com/llir/llvm/ir"
)

// FormKind classifies a top-level form.
type FormKind int

const (
	FormDefinition FormKind = iota
	FormExtern
	FormExpression
)

func (k FormKind) String() string {
	switch k {
	case FormDefinition:
		return "definition"
	case FormExtern:
		return "extern"
	case FormExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Form is a successfully lowered top-level form.
type Form struct {
	Kind FormKind
	Node *ASTNode
	Func *ir.Func
}

// Name returns the IR name of the form's function.
func (f *Form) Name() string {
	return f.Func.Name()
}

// Session feeds top-level forms from one source text through the parser and
// a Codegen. A failed form is discarded; the session carries on with the
// next one.
type Session struct {
	parser *Parser
	cg     *Codegen
}

func NewSession(input []byte, cg *Codegen) *Session {
	return &Session{parser: NewParser(NewLexer(input)), cg: cg}
}

// Next parses and lowers the next top-level form. It returns io.EOF once the
// input is exhausted. A *ParseError or *LoweringError only affects the form
// it was reported for.
func (s *Session) Next() (*Form, error) {
	for s.parser.CurrentTokenType() == SEMICOLON {
		s.parser.SkipToken()
	}
	if s.parser.AtEOF() {
		return nil, io.EOF
	}

	node, err := s.parser.ParseTopLevel()
	if err != nil {
		// Skip the offending token so the next call makes progress.
		s.parser.SkipToken()
		return nil, err
	}

	fn, err := s.cg.LowerTopLevel(node)
	if err != nil {
		return nil, err
	}

	form := &Form{Kind: FormDefinition, Node: node, Func: fn}
	switch {
	case node.Kind == NodePrototype:
		form.Kind = FormExtern
	case node.IsAnonymous():
		form.Kind = FormExpression
	}
	return form, nil
}

// CompileAll drains a session over input, returning the lowered forms in
// source order and the errors of the discarded ones.
func CompileAll(input []byte, cg *Codegen) ([]*Form, ErrorList) {
	s := NewSession(input, cg)
	var forms []*Form
	var errs ErrorList
	for {
		form, err := s.Next()
		if errors.Is(err, io.EOF) {
			return forms, errs
		}
		if err != nil {
			errs.Add(err)
			continue
		}
		forms = append(forms, form)
	}
}

// ParseAll parses input into top-level ASTs without lowering them.
func ParseAll(input []byte) ([]*ASTNode, ErrorList) {
	p := NewParser(NewLexer(input))
	var nodes []*ASTNode
	var errs ErrorList
	for {
		for p.CurrentTokenType() == SEMICOLON {
			p.SkipToken()
		}
		if p.AtEOF() {
			return nodes, errs
		}
		node, err := p.ParseTopLevel()
		if err != nil {
			errs.Add(err)
			p.SkipToken()
			continue
		}
		nodes = append(nodes, node)
	}
}
