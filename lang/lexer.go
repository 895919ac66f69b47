package lang

import "strconv"

// Lexer turns kal source into tokens. It always holds exactly one current
// token; NextToken replaces it with the following one.
type Lexer struct {
	input []byte
	pos   int // current reading position in input
	line  int
	col   int

	CurrTokenType TokenType
	CurrLiteral   string
	CurrNumber    float64 // only meaningful when CurrTokenType == NUMBER
	CurrLine      int
	CurrColumn    int
}

// NewLexer creates a lexer over input. A terminating 0 byte is appended if
// the input does not already end with one.
func NewLexer(in []byte) *Lexer {
	if len(in) == 0 || in[len(in)-1] != 0 {
		buf := make([]byte, len(in), len(in)+1)
		copy(buf, in)
		in = append(buf, 0)
	}
	return &Lexer{input: in, line: 1, col: 1}
}

// Current returns the current token.
func (l *Lexer) Current() Token {
	return Token{
		Type:    l.CurrTokenType,
		Literal: l.CurrLiteral,
		Number:  l.CurrNumber,
		Line:    l.CurrLine,
		Column:  l.CurrColumn,
	}
}

func (l *Lexer) advance() {
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

type lexerState struct {
	pos, line, col  int
	tokenType       TokenType
	literal         string
	number          float64
	tokLine, tokCol int
}

func (l *Lexer) save() lexerState {
	return lexerState{
		pos:       l.pos,
		line:      l.line,
		col:       l.col,
		tokenType: l.CurrTokenType,
		literal:   l.CurrLiteral,
		number:    l.CurrNumber,
		tokLine:   l.CurrLine,
		tokCol:    l.CurrColumn,
	}
}

func (l *lexerState) restore(into *Lexer) {
	into.pos = l.pos
	into.line = l.line
	into.col = l.col
	into.CurrTokenType = l.tokenType
	into.CurrLiteral = l.literal
	into.CurrNumber = l.number
	into.CurrLine = l.tokLine
	into.CurrColumn = l.tokCol
}

// NextToken scans the next token and stores it in the Curr* fields.
// Call repeatedly until CurrTokenType == EOF.
func (l *Lexer) NextToken() {
	l.skipWhitespaceAndComments()

	c := l.input[l.pos]
	l.CurrNumber = 0 // reset for non-NUMBER tokens
	l.CurrLine = l.line
	l.CurrColumn = l.col

	switch c {
	case 0:
		l.CurrTokenType = EOF
		l.CurrLiteral = ""
		return
	case '=':
		l.single(ASSIGN)
	case '+':
		l.single(PLUS)
	case '-':
		l.single(MINUS)
	case '*':
		l.single(ASTERISK)
	case '<':
		l.single(LT)
	case ',':
		l.single(COMMA)
	case ';':
		l.single(SEMICOLON)
	case '(':
		l.single(LPAREN)
	case ')':
		l.single(RPAREN)
	case '{':
		l.single(LBRACE)
	case '}':
		l.single(RBRACE)
	case '[':
		l.single(LBRACKET)
	case ']':
		l.single(RBRACKET)
	default:
		if isLetter(c) {
			lit := l.readIdentifier()
			if kw, ok := keywords[lit]; ok {
				l.CurrTokenType = kw
			} else {
				l.CurrTokenType = IDENT
			}
			l.CurrLiteral = lit
		} else if isDigit(c) || c == '.' {
			lit := l.readNumber()
			val, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				l.CurrTokenType = ILLEGAL
			} else {
				l.CurrTokenType = NUMBER
				l.CurrNumber = val
			}
			l.CurrLiteral = lit
		} else {
			l.single(ILLEGAL)
		}
	}
}

func (l *Lexer) single(tokenType TokenType) {
	l.CurrTokenType = tokenType
	l.CurrLiteral = string(l.input[l.pos])
	l.advance()
}

// PeekToken returns the next token type without advancing the lexer.
// Useful for lookahead parsing decisions.
func (l *Lexer) PeekToken() TokenType {
	saved := l.save()
	l.NextToken()
	nextType := l.CurrTokenType
	saved.restore(l)
	return nextType
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '#':
			for l.input[l.pos] != '\n' && l.input[l.pos] != 0 {
				l.advance()
			}
		default:
			return
		}
	}
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) {
		l.advance()
	}
	return string(l.input[start:l.pos])
}

// readNumber consumes a run of digits and dots. Validation is left to
// strconv so "1.2.3" becomes a single ILLEGAL token.
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.input[l.pos]) || l.input[l.pos] == '.' {
		l.advance()
	}
	return string(l.input[start:l.pos])
}
