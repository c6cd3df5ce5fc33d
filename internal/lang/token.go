// internal/lang/token.go
package lang

import (
	"fmt"
	"regexp"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Tokenizer for condition expressions.
 *
 * Splits a condition string into classified lexemes via priority-ordered
 * regex patterns anchored at the current position. Priority order matters:
 * two-char operators before one-char, keywords before identifier paths, and
 * quoted strings as a whole so operator characters inside quotes are never
 * split.
 *
 * Unlike its lenient ancestor, an unmatched character is a hard
 * ErrMalformedCondition with the offending substring, not a silent skip.
 */

// TokenType classifies a condition lexeme.
type TokenType int

const (
	// TokenEOF terminates every token stream.
	TokenEOF TokenType = iota
	// TokenLParen is '('.
	TokenLParen
	// TokenRParen is ')'.
	TokenRParen
	// TokenAnd is the case-insensitive keyword AND.
	TokenAnd
	// TokenOr is the case-insensitive keyword OR.
	TokenOr
	// TokenNot is the case-insensitive keyword NOT.
	TokenNot
	// TokenOperator is one of == != >= <= > <.
	TokenOperator
	// TokenString is a double- or single-quoted literal, delimiters included.
	TokenString
	// TokenPath is a dotted identifier path (user.id, command.arg[0]).
	TokenPath
	// TokenAtom is any other bare lexeme: numbers, identifiers, negatives.
	TokenAtom
)

// String returns the token type name for error messages.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "EOF"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenOperator:
		return "OPERATOR"
	case TokenString:
		return "STRING"
	case TokenPath:
		return "PATH"
	case TokenAtom:
		return "ATOM"
	default:
		return "UNKNOWN"
	}
}

// Token is one classified lexeme with its source position for diagnostics.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// String renders the token for parser error messages.
func (t Token) String() string {
	if t.Type == TokenEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%s %q at position %d", t.Type, t.Value, t.Position)
}

type tokenPattern struct {
	typ     TokenType
	pattern *regexp.Regexp
}

var (
	// Priority order: parens, operators (two-char before one-char inside the
	// alternation), keywords with word boundaries, quoted strings, dotted
	// paths, then any remaining bare atom. Keywords must precede paths and
	// atoms so "and" never lexes as an identifier.
	tokenPatterns = []tokenPattern{
		{TokenLParen, regexp.MustCompile(`^\(`)},
		{TokenRParen, regexp.MustCompile(`^\)`)},
		{TokenOperator, regexp.MustCompile(`^(==|!=|>=|<=|>|<)`)},
		{TokenAnd, regexp.MustCompile(`^(?i)\bAND\b`)},
		{TokenOr, regexp.MustCompile(`^(?i)\bOR\b`)},
		{TokenNot, regexp.MustCompile(`^(?i)\bNOT\b`)},
		{TokenString, regexp.MustCompile(`^("[^"]*"|'[^']*')`)},
		{TokenPath, regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+(\[[0-9]+\])?)+`)},
		{TokenAtom, regexp.MustCompile(`^[^\s()=!<>"']+`)},
	}

	whitespacePattern = regexp.MustCompile(`^\s+`)
)

// Tokenize converts a condition expression into a token stream ending in
// TokenEOF. Returns ErrMalformedCondition (wrapped with the offending
// substring and position) when no pattern matches the current position.
func Tokenize(expr string) ([]Token, error) {
	var tokens []Token
	pos := 0

	for pos < len(expr) {
		if m := whitespacePattern.FindString(expr[pos:]); m != "" {
			pos += len(m)
			continue
		}

		matched := false
		for _, tp := range tokenPatterns {
			if m := tp.pattern.FindString(expr[pos:]); m != "" {
				tokens = append(tokens, Token{Type: tp.typ, Value: m, Position: pos})
				pos += len(m)
				matched = true
				break
			}
		}

		if !matched {
			end := pos + 10
			if end > len(expr) {
				end = len(expr)
			}
			return nil, fmt.Errorf("%w: %q at position %d",
				types.ErrMalformedCondition, expr[pos:end], pos)
		}
	}

	tokens = append(tokens, Token{Type: TokenEOF, Position: pos})
	return tokens, nil
}
