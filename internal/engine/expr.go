// internal/engine/expr.go
package engine

import (
	"context"
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Value expressions for set_var.
 *
 * Exactly one binary operator per expression: the first unquoted '+' splits
 * it, else the first unquoted '-' ('+' is checked before '-', both scanned
 * left to right, position 0 excluded so a leading minus reads as a negative
 * literal). No precedence, no chaining.
 *
 * Operands evaluate independently: integer literal, then float literal,
 * then quoted string, then the case-insensitive literal null, else a
 * variable path handed to the resolver.
 *
 * A null operand next to a numeric one counts as 0, so "vars.user.n + 1"
 * works the first time the variable is unset. Two nulls, or operand types
 * the operator cannot combine, produce null with a logged diagnostic, never
 * an error.
 */

// evalExpr evaluates a set_var value expression within the current pass.
func (e *Engine) evalExpr(ctx context.Context, expr string, p *pass) types.Value {
	expr = strings.TrimSpace(expr)

	idx, op := findOperator(expr)
	if idx < 0 {
		return e.evalOperand(ctx, expr, p)
	}

	left := e.evalOperand(ctx, strings.TrimSpace(expr[:idx]), p)
	right := e.evalOperand(ctx, strings.TrimSpace(expr[idx+1:]), p)

	result, ok := applyArith(op, left, right)
	if !ok {
		e.logger.Warn("expression operands incompatible",
			"expr", expr, "op", string(op),
			"left", left.Kind.String(), "right", right.Kind.String())
		return types.Null()
	}
	return result
}

// findOperator locates the split point: the first unquoted '+', else the
// first unquoted '-'. Position 0 never counts.
func findOperator(expr string) (int, byte) {
	for _, op := range []byte{'+', '-'} {
		var quote byte
		for i := 0; i < len(expr); i++ {
			c := expr[i]
			switch {
			case quote != 0:
				if c == quote {
					quote = 0
				}
			case c == '"' || c == '\'':
				quote = c
			case c == op && i > 0:
				return i, op
			}
		}
	}
	return -1, 0
}

func (e *Engine) evalOperand(ctx context.Context, raw string, p *pass) types.Value {
	if raw == "" {
		return types.Null()
	}
	if v, ok := isLiteral(raw); ok {
		return v
	}
	return e.resolver.Resolve(ctx, raw, p.req)
}

// applyArith combines two operands under '+' or '-'. Null next to a number
// is 0; string '+' string concatenates; everything else is incompatible.
func applyArith(op byte, left, right types.Value) (types.Value, bool) {
	if left.IsNull() && right.IsNull() {
		return types.Null(), false
	}

	if op == '+' && left.Kind == types.KindString && right.Kind == types.KindString {
		return types.StringValue(left.Str + right.Str), true
	}

	lf, lok := numericOperand(left)
	rf, rok := numericOperand(right)
	if !lok || !rok {
		return types.Null(), false
	}

	var out float64
	if op == '+' {
		out = lf + rf
	} else {
		out = lf - rf
	}

	// Stay integral when both inputs were (null counts as integral zero)
	if isIntegral(left) && isIntegral(right) {
		return types.IntValue(int64(out)), true
	}
	return types.FloatValue(out), true
}

func numericOperand(v types.Value) (float64, bool) {
	if v.IsNull() {
		return 0, true
	}
	return v.AsFloat()
}

func isIntegral(v types.Value) bool {
	return v.IsNull() || v.Kind == types.KindInt
}
