package lang

// TokenType is the type of token (identifier, operator, literal, etc.).
type TokenType string

// Definition of token types
const (
	// Special tokens
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + literals
	IDENT  = "IDENT"  // main, foo, _bar
	NUMBER = "NUMBER" // 12, 1.5, .25

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	LT       = "<"

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"
	LPAREN    = "("
	RPAREN    = ")"
	LBRACE    = "{"
	RBRACE    = "}"
	LBRACKET  = "["
	RBRACKET  = "]"

	DEF    = "DEF"
	EXTERN = "EXTERN"
	FOR    = "FOR"
	IN     = "IN"
	PRINT  = "PRINT"
	DOUBLE = "DOUBLE"
	ARRAY  = "ARRAY"
)

var keywords = map[string]TokenType{
	"def":    DEF,
	"extern": EXTERN,
	"for":    FOR,
	"in":     IN,
	"print":  PRINT,
	"double": DOUBLE,
	"array":  ARRAY,
}

// Token is a snapshot of the lexer's current token.
type Token struct {
	Type    TokenType
	Literal string
	Number  float64 // only meaningful when Type == NUMBER
	Line    int
	Column  int
}

// isTypeKeyword reports whether the token starts a declaration.
func isTypeKeyword(tokenType TokenType) bool {
	return tokenType == DOUBLE || tokenType == ARRAY
}
