package lang

import (
	"fmt"
	"math"
)

// MaxNestingDepth bounds how deeply expressions may nest. Parsing and
// lowering both recurse once per level.
const MaxNestingDepth = 256

// Parser builds ASTs from a Lexer using one token of lookahead.
//
// Grammar:
//
//	toplevel   = "def" prototype body | "extern" prototype | expression
//	prototype  = [type] IDENT "(" [IDENT {[","] IDENT}] ")"
//	body       = "{" {expression [";"]} "}" | expression
//	type       = "double" | "array"
//	expression = primary {binop primary}
//	primary    = NUMBER
//	           | IDENT | IDENT "(" args ")" | IDENT "[" NUMBER "]" ["=" expression]
//	           | "(" expression ")"
//	           | "[" expression "," expression "," expression "," expression "]"
//	           | "for" IDENT "=" expression "," expression ["," expression] "in" expression
//	           | "print" "(" args ")"
//	           | type IDENT ["=" expression]
type Parser struct {
	l     *Lexer
	depth int
}

// NewParser returns a parser reading from l. The lexer is advanced onto its
// first token.
func NewParser(l *Lexer) *Parser {
	l.NextToken()
	return &Parser{l: l}
}

// binaryOperatorRank is the precedence of each binary operator. Higher binds
// tighter.
var binaryOperatorRank = map[TokenType]int{
	LT:       10,
	PLUS:     20,
	MINUS:    20,
	ASTERISK: 40,
}

// tokenRank returns the rank of the current token, or -1 if it is not a
// binary operator.
func (p *Parser) tokenRank() int {
	if rank, ok := binaryOperatorRank[p.l.CurrTokenType]; ok {
		return rank
	}
	return -1
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Line:   p.l.CurrLine,
		Column: p.l.CurrColumn,
		Token:  p.l.CurrLiteral,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// expect consumes a token of the given type or fails with "expected <what>".
func (p *Parser) expect(tokenType TokenType, what string) error {
	if p.l.CurrTokenType != tokenType {
		return p.errorf("expected %s", what)
	}
	p.l.NextToken()
	return nil
}

// AtEOF reports whether all input has been consumed.
func (p *Parser) AtEOF() bool {
	return p.l.CurrTokenType == EOF
}

// ParseExpression parses an expression and returns an AST node
func (p *Parser) ParseExpression() (*ASTNode, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxNestingDepth {
		return nil, p.errorf("expression nested too deeply (limit %d)", MaxNestingDepth)
	}

	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryOperatorRHS(0, lhs)
}

// parseBinaryOperatorRHS implements precedence climbing. It absorbs every
// operator ranked at least minRank, folding to the left.
func (p *Parser) parseBinaryOperatorRHS(minRank int, lhs *ASTNode) (*ASTNode, error) {
	for {
		rank := p.tokenRank()
		if rank < minRank {
			return lhs, nil
		}

		op := p.l.CurrLiteral
		p.l.NextToken()

		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		// A tighter operator to the right takes rhs as its own lhs first.
		if rank < p.tokenRank() {
			rhs, err = p.parseBinaryOperatorRHS(rank+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = &ASTNode{
			Kind:     NodeBinary,
			Op:       op,
			Children: []*ASTNode{lhs, rhs},
		}
	}
}

// parsePrimary handles primary expressions (literals, identifiers, parentheses, ...)
func (p *Parser) parsePrimary() (*ASTNode, error) {
	switch p.l.CurrTokenType {
	case NUMBER:
		node := &ASTNode{
			Kind:   NodeNumber,
			Number: p.l.CurrNumber,
		}
		p.l.NextToken()
		return node, nil

	case IDENT:
		return p.parseIdentifier()

	case LPAREN:
		p.l.NextToken() // consume '('
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
		return expr, nil

	case LBRACKET:
		return p.parseArrayLiteral()

	case FOR:
		return p.parseFor()

	case PRINT:
		return p.parsePrint()

	case DOUBLE, ARRAY:
		return p.parseDeclaration()

	case ILLEGAL:
		return nil, p.errorf("unexpected character")

	case EOF:
		return nil, p.errorf("unexpected end of input, expected expression")

	default:
		return nil, p.errorf("unexpected token, expected expression")
	}
}

// parseIdentifier disambiguates a variable reference, a call and a
// subscript by looking at the token after the identifier.
func (p *Parser) parseIdentifier() (*ASTNode, error) {
	name := p.l.CurrLiteral

	switch p.l.PeekToken() {
	case LPAREN:
		p.l.NextToken() // identifier
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		return &ASTNode{Kind: NodeCall, String: name, Children: args}, nil

	case LBRACKET:
		p.l.NextToken() // identifier
		p.l.NextToken() // '['
		index, err := p.parseIndexLiteral()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RBRACKET, "']'"); err != nil {
			return nil, err
		}
		if p.l.CurrTokenType != ASSIGN {
			return &ASTNode{Kind: NodeIndex, String: name, Index: index}, nil
		}
		p.l.NextToken() // '='
		value, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		return &ASTNode{
			Kind:     NodeIndexSet,
			String:   name,
			Index:    index,
			Children: []*ASTNode{value},
		}, nil

	default:
		p.l.NextToken()
		return &ASTNode{Kind: NodeIdent, String: name}, nil
	}
}

func (p *Parser) parseIndexLiteral() (int, error) {
	if p.l.CurrTokenType != NUMBER {
		return 0, p.errorf("expected integer index")
	}
	v := p.l.CurrNumber
	if v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
		return 0, p.errorf("array index must be a non-negative integer")
	}
	p.l.NextToken()
	return int(v), nil
}

// parseArguments parses "(" [expression {"," expression}] ")".
func (p *Parser) parseArguments() ([]*ASTNode, error) {
	if err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}

	var args []*ASTNode
	if p.l.CurrTokenType == RPAREN {
		p.l.NextToken()
		return args, nil
	}
	for {
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.l.CurrTokenType == RPAREN {
			p.l.NextToken()
			return args, nil
		}
		if err := p.expect(COMMA, "',' or ')' in argument list"); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseArrayLiteral() (*ASTNode, error) {
	open := p.errorf("") // position of '[' for the arity diagnostic
	p.l.NextToken()      // consume '['

	var elements []*ASTNode
	if p.l.CurrTokenType != RBRACKET {
		for {
			elem, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, elem)

			if p.l.CurrTokenType == RBRACKET {
				break
			}
			if err := p.expect(COMMA, "',' or ']' in array literal"); err != nil {
				return nil, err
			}
		}
	}
	p.l.NextToken() // consume ']'

	if len(elements) != ArrayLanes {
		open.Msg = fmt.Sprintf("array literal needs exactly %d elements, got %d", ArrayLanes, len(elements))
		return nil, open
	}
	return &ASTNode{Kind: NodeArray, Children: elements}, nil
}

// parseFor parses "for" IDENT "=" start "," end ["," step] "in" body.
func (p *Parser) parseFor() (*ASTNode, error) {
	p.l.NextToken() // consume 'for'

	if p.l.CurrTokenType != IDENT {
		return nil, p.errorf("expected loop variable name after 'for'")
	}
	name := p.l.CurrLiteral
	p.l.NextToken()

	if err := p.expect(ASSIGN, "'=' after loop variable"); err != nil {
		return nil, err
	}
	start, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	if err := p.expect(COMMA, "',' after loop start value"); err != nil {
		return nil, err
	}
	end, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	var step *ASTNode
	if p.l.CurrTokenType == COMMA {
		p.l.NextToken()
		step, err = p.ParseExpression()
		if err != nil {
			return nil, err
		}
	}

	if err := p.expect(IN, "'in' after loop header"); err != nil {
		return nil, err
	}
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	return &ASTNode{
		Kind:     NodeFor,
		String:   name,
		Children: []*ASTNode{start, end, step, body},
	}, nil
}

func (p *Parser) parsePrint() (*ASTNode, error) {
	p.l.NextToken() // consume 'print'
	args, err := p.parseArguments()
	if err != nil {
		return nil, err
	}
	return &ASTNode{Kind: NodePrint, Children: args}, nil
}

func (p *Parser) parseType() ValueType {
	t := TypeDouble
	if p.l.CurrTokenType == ARRAY {
		t = TypeArray
	}
	p.l.NextToken()
	return t
}

// parseDeclaration parses type IDENT ["=" expression].
func (p *Parser) parseDeclaration() (*ASTNode, error) {
	varType := p.parseType()

	if p.l.CurrTokenType != IDENT {
		return nil, p.errorf("expected variable name after type")
	}
	node := &ASTNode{Kind: NodeVar, String: p.l.CurrLiteral, Type: varType}
	p.l.NextToken()

	if p.l.CurrTokenType == ASSIGN {
		p.l.NextToken()
		init, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		node.Children = []*ASTNode{init}
	}
	return node, nil
}

// ParsePrototype parses [type] IDENT "(" params ")".
func (p *Parser) ParsePrototype() (*ASTNode, error) {
	returnType := TypeDouble
	if isTypeKeyword(p.l.CurrTokenType) {
		returnType = p.parseType()
	}

	if p.l.CurrTokenType != IDENT {
		return nil, p.errorf("expected function name in prototype")
	}
	name := p.l.CurrLiteral
	p.l.NextToken()

	if err := p.expect(LPAREN, "'(' in prototype"); err != nil {
		return nil, err
	}

	params := []string{}
	seen := map[string]bool{}
	for p.l.CurrTokenType == IDENT {
		param := p.l.CurrLiteral
		if seen[param] {
			return nil, p.errorf("duplicate parameter name %q", param)
		}
		seen[param] = true
		params = append(params, param)
		p.l.NextToken()

		if p.l.CurrTokenType == COMMA {
			p.l.NextToken()
			if p.l.CurrTokenType != IDENT {
				return nil, p.errorf("expected parameter name after ','")
			}
		}
	}

	if err := p.expect(RPAREN, "')' in prototype"); err != nil {
		return nil, err
	}

	return &ASTNode{
		Kind:           NodePrototype,
		String:         name,
		ParameterNames: params,
		Type:           returnType,
	}, nil
}

// ParseDefinition parses "def" prototype body.
func (p *Parser) ParseDefinition() (*ASTNode, error) {
	p.l.NextToken() // consume 'def'
	proto, err := p.ParsePrototype()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ASTNode{
		Kind:     NodeFunction,
		Children: append([]*ASTNode{proto}, body...),
	}, nil
}

// parseBody parses either a single expression or a braced sequence of
// statements separated by optional semicolons.
func (p *Parser) parseBody() ([]*ASTNode, error) {
	if p.l.CurrTokenType != LBRACE {
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		return []*ASTNode{expr}, nil
	}

	p.l.NextToken() // consume '{'
	var statements []*ASTNode
	for p.l.CurrTokenType != RBRACE {
		if p.l.CurrTokenType == SEMICOLON {
			p.l.NextToken()
			continue
		}
		if p.l.CurrTokenType == EOF {
			return nil, p.errorf("expected '}' to close function body")
		}
		stmt, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	p.l.NextToken() // consume '}'
	return statements, nil
}

// ParseExtern parses "extern" prototype.
func (p *Parser) ParseExtern() (*ASTNode, error) {
	p.l.NextToken() // consume 'extern'
	return p.ParsePrototype()
}

// ParseTopLevelExpression wraps a bare expression in an anonymous function.
func (p *Parser) ParseTopLevelExpression() (*ASTNode, error) {
	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	proto := &ASTNode{Kind: NodePrototype, ParameterNames: []string{}}
	return &ASTNode{
		Kind:     NodeFunction,
		Children: []*ASTNode{proto, expr},
	}, nil
}

// ParseTopLevel parses one top-level form: a definition, an extern
// declaration, or a bare expression.
func (p *Parser) ParseTopLevel() (*ASTNode, error) {
	switch p.l.CurrTokenType {
	case DEF:
		return p.ParseDefinition()
	case EXTERN:
		return p.ParseExtern()
	default:
		return p.ParseTopLevelExpression()
	}
}

// SkipToken discards the current token. Used to make progress after a
// parse error.
func (p *Parser) SkipToken() {
	if p.l.CurrTokenType != EOF {
		p.l.NextToken()
	}
}

// CurrentTokenType returns the type of the lookahead token.
func (p *Parser) CurrentTokenType() TokenType {
	return p.l.CurrTokenType
}
