// Package sexy reads the s-expression notation used by kal's markdown test
// files and matches it against printed ASTs.
package sexy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NodeType represents the type of a Node
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeNumber
	NodeEllipsis
	NodeList
	NodeArray
)

// Node represents any Sexy datum
type Node struct {
	Type  NodeType
	Text  string  // NodeSymbol, NodeString, NodeNumber
	Items []*Node // NodeList, NodeArray
}

func (n *Node) String() string {
	switch n.Type {
	case NodeSymbol, NodeNumber:
		return n.Text
	case NodeString:
		return strconv.Quote(n.Text)
	case NodeEllipsis:
		return "..."
	case NodeList:
		return "(" + joinItems(n.Items) + ")"
	case NodeArray:
		return "[" + joinItems(n.Items) + "]"
	default:
		return fmt.Sprintf("UNKNOWN_NODE_TYPE_%d", n.Type)
	}
}

func joinItems(items []*Node) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return strings.Join(parts, " ")
}

func NewSymbol(name string) *Node {
	return &Node{Type: NodeSymbol, Text: name}
}

func NewString(value string) *Node {
	return &Node{Type: NodeString, Text: value}
}

func NewNumber(text string) *Node {
	return &Node{Type: NodeNumber, Text: text}
}

func NewEllipsis() *Node {
	return &Node{Type: NodeEllipsis}
}

func NewList(items []*Node) *Node {
	return &Node{Type: NodeList, Items: items}
}

func NewArray(items []*Node) *Node {
	return &Node{Type: NodeArray, Items: items}
}

// Match reports how actual differs from pattern, or nil if it matches. An
// ellipsis as the last item of a pattern list matches any remaining items.
// Numbers are compared by value, so 1 matches 1.0.
func Match(pattern, actual *Node) error {
	return match(pattern, actual, "root")
}

func match(pattern, actual *Node, path string) error {
	if pattern.Type == NodeEllipsis {
		return nil
	}
	if pattern.Type != actual.Type {
		return fmt.Errorf("%s: expected %s, got %s", path, pattern, actual)
	}
	switch pattern.Type {
	case NodeNumber:
		pv, perr := strconv.ParseFloat(pattern.Text, 64)
		av, aerr := strconv.ParseFloat(actual.Text, 64)
		if perr != nil || aerr != nil || pv != av {
			return fmt.Errorf("%s: expected %s, got %s", path, pattern, actual)
		}
		return nil
	case NodeSymbol, NodeString:
		if pattern.Text != actual.Text {
			return fmt.Errorf("%s: expected %s, got %s", path, pattern, actual)
		}
		return nil
	}

	items := pattern.Items
	open := len(items) > 0 && items[len(items)-1].Type == NodeEllipsis
	if open {
		items = items[:len(items)-1]
		if len(actual.Items) < len(items) {
			return fmt.Errorf("%s: expected at least %d items, got %s", path, len(items), actual)
		}
	} else if len(actual.Items) != len(items) {
		return fmt.Errorf("%s: expected %d items, got %s", path, len(items), actual)
	}
	for i, item := range items {
		if err := match(item, actual.Items[i], fmt.Sprintf("%s.%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

type parser struct {
	lexer        *lexer
	currentToken token
}

// Parse parses the entire input and returns the top-level datum
func Parse(input string) (*Node, error) {
	p := &parser{lexer: newLexer(input)}
	p.nextToken()

	result, err := p.parseDatum()
	if len(p.lexer.errors) > 0 {
		// Lexer errors take priority because they might cause confusing parser errors.
		return nil, fmt.Errorf("%s", p.lexer.errors[0])
	}
	if err != nil {
		return nil, err
	}

	if p.currentToken.Type != tokenEOF {
		return nil, fmt.Errorf("expected EOF but got %s", p.currentToken.Type)
	}

	return result, nil
}

func (p *parser) nextToken() {
	p.currentToken = p.lexer.nextToken()
}

func (p *parser) parseDatum() (*Node, error) {
	tok := p.currentToken
	switch tok.Type {
	case tokenSymbol:
		p.nextToken()
		return NewSymbol(tok.Value), nil
	case tokenString:
		p.nextToken()
		return NewString(tok.Value), nil
	case tokenNumber:
		p.nextToken()
		return NewNumber(tok.Value), nil
	case tokenEllipsis:
		p.nextToken()
		return NewEllipsis(), nil
	case tokenLParen:
		items, err := p.parseItems(tokenRParen)
		if err != nil {
			return nil, err
		}
		return NewList(items), nil
	case tokenLBracket:
		items, err := p.parseItems(tokenRBracket)
		if err != nil {
			return nil, err
		}
		return NewArray(items), nil
	default:
		return nil, fmt.Errorf("unexpected token: %s", tok.Type)
	}
}

func (p *parser) parseItems(closer tokenType) ([]*Node, error) {
	var items []*Node
	p.nextToken() // consume opener

	for p.currentToken.Type != closer && p.currentToken.Type != tokenEOF {
		item, err := p.parseDatum()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if p.currentToken.Type != closer {
		return nil, fmt.Errorf("expected %s but got %s", closer, p.currentToken.Type)
	}
	p.nextToken() // consume closer
	return items, nil
}

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenSymbol
	tokenString
	tokenNumber
	tokenEllipsis
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "EOF"
	case tokenSymbol:
		return "symbol"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenEllipsis:
		return "ellipsis"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	default:
		return fmt.Sprintf("unknown token %d", int(t))
	}
}

type token struct {
	Type     tokenType
	Value    string
	Position int
}

type lexer struct {
	input    string
	position int
	current  rune
	errors   []string
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.position >= len(l.input) {
		l.current = 0
	} else {
		l.current = rune(l.input[l.position])
	}
	l.position++
}

func (l *lexer) peekChar() rune {
	if l.position >= len(l.input) {
		return 0
	}
	return rune(l.input[l.position])
}

func (l *lexer) skipWhitespace() {
	for unicode.IsSpace(l.current) {
		l.readChar()
	}
}

func (l *lexer) skipComment() {
	for l.current != '\n' && l.current != '\r' && l.current != 0 {
		l.readChar()
	}
}

func (l *lexer) readWhile(pred func(rune) bool) string {
	start := l.position - 1
	for l.current != 0 && pred(l.current) {
		l.readChar()
	}
	return l.input[start : l.position-1]
}

func (l *lexer) readString() (string, error) {
	var b strings.Builder
	l.readChar() // skip opening quote

	for l.current != '"' && l.current != 0 {
		if l.current == '\\' {
			l.readChar()
			switch l.current {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			default:
				return "", fmt.Errorf("invalid escape sequence: \\%c", l.current)
			}
		} else {
			b.WriteRune(l.current)
		}
		l.readChar()
	}

	if l.current != '"' {
		return "", fmt.Errorf("unterminated string")
	}
	l.readChar() // skip closing quote

	return b.String(), nil
}

// readNumber reads a decimal literal such as 3, -0.5 or 1e+06.
func (l *lexer) readNumber() string {
	start := l.position - 1
	if l.current == '+' || l.current == '-' {
		l.readChar()
	}
	for unicode.IsDigit(l.current) || l.current == '.' {
		l.readChar()
	}
	if l.current == 'e' || l.current == 'E' {
		l.readChar()
		if l.current == '+' || l.current == '-' {
			l.readChar()
		}
		for unicode.IsDigit(l.current) {
			l.readChar()
		}
	}
	return l.input[start : l.position-1]
}

func (l *lexer) nextToken() token {
	for {
		l.skipWhitespace()

		pos := l.position - 1

		switch l.current {
		case 0:
			return token{Type: tokenEOF, Position: pos}
		case ';':
			l.skipComment()
			continue
		case '(':
			l.readChar()
			return token{Type: tokenLParen, Value: "(", Position: pos}
		case ')':
			l.readChar()
			return token{Type: tokenRParen, Value: ")", Position: pos}
		case '[':
			l.readChar()
			return token{Type: tokenLBracket, Value: "[", Position: pos}
		case ']':
			l.readChar()
			return token{Type: tokenRBracket, Value: "]", Position: pos}
		case '"':
			str, err := l.readString()
			if err != nil {
				l.errors = append(l.errors, err.Error())
				return token{Type: tokenEOF, Position: pos}
			}
			return token{Type: tokenString, Value: str, Position: pos}
		case '.':
			if strings.HasPrefix(l.input[pos:], "...") {
				l.readChar()
				l.readChar()
				l.readChar()
				return token{Type: tokenEllipsis, Value: "...", Position: pos}
			}
			if unicode.IsDigit(l.peekChar()) {
				return token{Type: tokenNumber, Value: l.readNumber(), Position: pos}
			}
			l.errors = append(l.errors, "unexpected character '.'")
			return token{Type: tokenEOF, Position: pos}
		default:
			switch {
			case unicode.IsDigit(l.current):
				return token{Type: tokenNumber, Value: l.readNumber(), Position: pos}
			case (l.current == '+' || l.current == '-') && unicode.IsDigit(l.peekChar()):
				return token{Type: tokenNumber, Value: l.readNumber(), Position: pos}
			case isSymbolChar(l.current):
				return token{Type: tokenSymbol, Value: l.readWhile(isSymbolChar), Position: pos}
			default:
				l.errors = append(l.errors, fmt.Sprintf("unexpected character '%c'", l.current))
				return token{Type: tokenEOF, Position: pos}
			}
		}
	}
}

// isSymbolChar accepts operator characters too, so (binary < a b) reads
// naturally.
func isSymbolChar(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '-', '_', '+', '*', '<', '=', '/', '.':
		return true
	}
	return false
}
