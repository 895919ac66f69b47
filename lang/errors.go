package lang

import (
	"fmt"
	"strings"
)

// ParseError reports malformed source. The parser stops at the first one;
// the rest of the top-level form is discarded by the caller.
type ParseError struct {
	Line   int
	Column int
	Token  string // literal of the offending token, "" at EOF
	Msg    string
}

func (e *ParseError) Error() string {
	tok := e.Token
	if tok == "" {
		tok = "end of input"
	}
	return fmt.Sprintf("%d:%d: %s (at %q)", e.Line, e.Column, e.Msg, tok)
}

// LoweringErrorKind classifies a LoweringError.
type LoweringErrorKind int

const (
	UnknownIdentifier LoweringErrorKind = iota
	ArityMismatch
	InvalidOperator
	Redefinition
	TypeMismatch
	IndexOutOfRange
)

func (k LoweringErrorKind) String() string {
	switch k {
	case UnknownIdentifier:
		return "unknown identifier"
	case ArityMismatch:
		return "arity mismatch"
	case InvalidOperator:
		return "invalid operator"
	case Redefinition:
		return "redefinition"
	case TypeMismatch:
		return "type mismatch"
	case IndexOutOfRange:
		return "index out of range"
	default:
		return fmt.Sprintf("LoweringErrorKind(%d)", int(k))
	}
}

// LoweringError reports an AST that cannot be turned into IR.
type LoweringError struct {
	Kind LoweringErrorKind
	Name string // offending identifier or operator, if any
	Msg  string
}

func (e *LoweringError) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

func loweringErrorf(kind LoweringErrorKind, name string, format string, args ...any) *LoweringError {
	return &LoweringError{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}

// ErrorList collects the errors of every discarded top-level form.
type ErrorList []error

func (l *ErrorList) Add(err error) {
	*l = append(*l, err)
}

func (l ErrorList) HasErrors() bool {
	return len(l) > 0
}

func (l ErrorList) String() string {
	lines := make([]string, len(l))
	for i, err := range l {
		lines[i] = "error: " + err.Error()
	}
	return strings.Join(lines, "\n")
}
