// internal/lang/condition.go
package lang

import (
	"fmt"
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Recursive-descent parser for condition expressions.
 *
 * Grammar, lowest to highest precedence:
 *
 *   Or         := And (OR And)*
 *   And        := Not (AND Not)*
 *   Not        := NOT Not | Atom
 *   Atom       := '(' Or ')' | Comparison
 *   Comparison := Operand Operator Operand
 *
 * Chained same-operator conditions flatten left-associatively into one
 * And/Or node's operand list instead of nesting, so "a AND b AND c" is one
 * And with three operands. Operands stay raw tokens; literal interpretation
 * is the evaluator's job, not the parser's.
 */

// CmpOp is one of the six comparison operators.
type CmpOp string

const (
	OpEq  CmpOp = "=="
	OpNeq CmpOp = "!="
	OpGte CmpOp = ">="
	OpLte CmpOp = "<="
	OpGt  CmpOp = ">"
	OpLt  CmpOp = "<"
)

// CondNode is a node of the condition AST: Comparison, Not, And, or Or.
type CondNode interface {
	condNode()
}

// Comparison is a single binary comparison. Left and Right hold the raw
// operand lexemes (quoted literal, number, or variable path) untouched.
type Comparison struct {
	Left  string
	Op    CmpOp
	Right string
}

// Not inverts its single child.
type Not struct {
	Inner CondNode
}

// And holds two or more operands, all of which must hold.
type And struct {
	Operands []CondNode
}

// Or holds two or more operands, at least one of which must hold.
type Or struct {
	Operands []CondNode
}

func (Comparison) condNode() {}
func (Not) condNode()        {}
func (And) condNode()        {}
func (Or) condNode()         {}

// ParseCondition tokenizes and parses a condition expression into its AST.
// Fails with ErrMalformedCondition on lexical errors and ErrUnexpectedToken
// on structural ones; both carry position detail.
func ParseCondition(expr string) (CondNode, error) {
	tokens, err := Tokenize(expr)
	if err != nil {
		return nil, err
	}

	p := &condParser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, fmt.Errorf("%w: trailing %s", types.ErrUnexpectedToken, tok)
	}
	return node, nil
}

type condParser struct {
	tokens []Token
	pos    int
}

func (p *condParser) peek() Token {
	return p.tokens[p.pos]
}

func (p *condParser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *condParser) parseOr() (CondNode, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []CondNode{first}
	for p.peek().Type == TokenOr {
		p.next()
		operand, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return Or{Operands: operands}, nil
}

func (p *condParser) parseAnd() (CondNode, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []CondNode{first}
	for p.peek().Type == TokenAnd {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return And{Operands: operands}, nil
}

func (p *condParser) parseNot() (CondNode, error) {
	if p.peek().Type == TokenNot {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parseAtom()
}

func (p *condParser) parseAtom() (CondNode, error) {
	if p.peek().Type == TokenLParen {
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.Type != TokenRParen {
			return nil, fmt.Errorf("%w: expected ')', got %s", types.ErrUnexpectedToken, tok)
		}
		return node, nil
	}
	return p.parseComparison()
}

func (p *condParser) parseComparison() (CondNode, error) {
	left, err := p.operand("left operand")
	if err != nil {
		return nil, err
	}
	opTok := p.next()
	if opTok.Type != TokenOperator {
		return nil, fmt.Errorf("%w: expected comparison operator, got %s",
			types.ErrUnexpectedToken, opTok)
	}
	right, err := p.operand("right operand")
	if err != nil {
		return nil, err
	}
	return Comparison{Left: left, Op: CmpOp(opTok.Value), Right: right}, nil
}

// operand accepts a string literal, dotted path, or bare atom lexeme.
func (p *condParser) operand(role string) (string, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenString, TokenPath, TokenAtom:
		p.next()
		return tok.Value, nil
	default:
		return "", fmt.Errorf("%w: expected %s, got %s", types.ErrUnexpectedToken, role, tok)
	}
}

// FlattenPaths collects every operand of every comparison in the tree that
// looks like a variable path (not a quoted or numeric literal). Used by hosts
// to pre-warm resolution or report what a rule reads.
func FlattenPaths(node CondNode) []string {
	var out []string
	walk(node, func(c Comparison) {
		for _, operand := range []string{c.Left, c.Right} {
			if isPathLexeme(operand) {
				out = append(out, operand)
			}
		}
	})
	return out
}

func walk(node CondNode, fn func(Comparison)) {
	switch n := node.(type) {
	case Comparison:
		fn(n)
	case Not:
		walk(n.Inner, fn)
	case And:
		for _, op := range n.Operands {
			walk(op, fn)
		}
	case Or:
		for _, op := range n.Operands {
			walk(op, fn)
		}
	}
}

func isPathLexeme(s string) bool {
	if s == "" || strings.HasPrefix(s, `"`) || strings.HasPrefix(s, `'`) {
		return false
	}
	switch strings.ToLower(s) {
	case "true", "false", "null":
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
