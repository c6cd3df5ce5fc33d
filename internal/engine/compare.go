// internal/engine/compare.go
package engine

import (
	"strconv"
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/lang"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Comparison semantics for condition evaluation.
 *
 * Both operands arrive as resolved Values. When the two sides hold different
 * kinds, the right-hand side is coerced toward the left's kind before
 * comparing: user.id == "12345" holds when user.id is the integer 12345.
 * Mixed int/float pairs compare numerically without coercion.
 *
 * Coercion failure makes the sides unequal (== false, != true); for the
 * ordering operators it is ErrTypeMismatch, which the executor treats as
 * "condition false", never fatal.
 *
 * Null ordering is always a type mismatch; null equality holds only against
 * null.
 */

func compare(op lang.CmpOp, left, right types.Value) (bool, error) {
	if left.IsNull() || right.IsNull() {
		switch op {
		case lang.OpEq:
			return left.IsNull() && right.IsNull(), nil
		case lang.OpNeq:
			return !(left.IsNull() && right.IsNull()), nil
		default:
			return false, types.ErrTypeMismatch
		}
	}

	if lf, lok := left.AsFloat(); lok {
		if rf, rok := right.AsFloat(); rok {
			return compareFloats(op, lf, rf), nil
		}
	}

	if left.Kind != right.Kind {
		coerced, ok := coerceTo(right, left.Kind)
		if !ok {
			switch op {
			case lang.OpEq:
				return false, nil
			case lang.OpNeq:
				return true, nil
			default:
				return false, types.ErrTypeMismatch
			}
		}
		right = coerced
		if lf, lok := left.AsFloat(); lok {
			if rf, rok := right.AsFloat(); rok {
				return compareFloats(op, lf, rf), nil
			}
		}
	}

	switch left.Kind {
	case types.KindString:
		return compareStrings(op, left.Str, right.Str), nil
	case types.KindBool:
		switch op {
		case lang.OpEq:
			return left.Bool == right.Bool, nil
		case lang.OpNeq:
			return left.Bool != right.Bool, nil
		default:
			return false, types.ErrTypeMismatch
		}
	case types.KindList, types.KindMap:
		switch op {
		case lang.OpEq:
			return left.Equal(right), nil
		case lang.OpNeq:
			return !left.Equal(right), nil
		default:
			return false, types.ErrTypeMismatch
		}
	default:
		return false, types.ErrTypeMismatch
	}
}

func compareFloats(op lang.CmpOp, a, b float64) bool {
	switch op {
	case lang.OpEq:
		return a == b
	case lang.OpNeq:
		return a != b
	case lang.OpGt:
		return a > b
	case lang.OpLt:
		return a < b
	case lang.OpGte:
		return a >= b
	case lang.OpLte:
		return a <= b
	default:
		return false
	}
}

func compareStrings(op lang.CmpOp, a, b string) bool {
	switch op {
	case lang.OpEq:
		return a == b
	case lang.OpNeq:
		return a != b
	case lang.OpGt:
		return a > b
	case lang.OpLt:
		return a < b
	case lang.OpGte:
		return a >= b
	case lang.OpLte:
		return a <= b
	default:
		return false
	}
}

// coerceTo converts v toward kind. Numeric cross-conversion is exact for
// ints and lossy-tolerant for floats; strings parse strictly.
func coerceTo(v types.Value, kind types.Kind) (types.Value, bool) {
	if v.Kind == kind {
		return v, true
	}
	switch kind {
	case types.KindInt:
		switch v.Kind {
		case types.KindFloat:
			if v.Float == float64(int64(v.Float)) {
				return types.IntValue(int64(v.Float)), true
			}
		case types.KindString:
			if i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64); err == nil {
				return types.IntValue(i), true
			}
		case types.KindBool:
			// No bool-to-numeric coercion: "true" vs 1 ambiguity
			return types.Null(), false
		}
	case types.KindFloat:
		switch v.Kind {
		case types.KindInt:
			return types.FloatValue(float64(v.Int)), true
		case types.KindString:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
				return types.FloatValue(f), true
			}
		}
	case types.KindString:
		switch v.Kind {
		case types.KindInt:
			return types.StringValue(strconv.FormatInt(v.Int, 10)), true
		case types.KindFloat:
			return types.StringValue(strconv.FormatFloat(v.Float, 'f', -1, 64)), true
		case types.KindBool:
			return types.StringValue(strconv.FormatBool(v.Bool)), true
		}
	case types.KindBool:
		if v.Kind == types.KindString {
			switch strings.ToLower(strings.TrimSpace(v.Str)) {
			case "true":
				return types.BoolValue(true), true
			case "false":
				return types.BoolValue(false), true
			}
		}
	}
	return types.Null(), false
}

// isLiteral interprets one raw comparison operand as a literal: quoted
// string, integer, float, boolean, or null. Anything else is a variable path
// for the resolver.
func isLiteral(raw string) (types.Value, bool) {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') ||
			(raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return types.StringValue(raw[1 : len(raw)-1]), true
		}
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return types.IntValue(i), true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return types.FloatValue(f), true
	}
	switch strings.ToLower(raw) {
	case "true":
		return types.BoolValue(true), true
	case "false":
		return types.BoolValue(false), true
	case "null":
		return types.Null(), true
	}
	return types.Value{}, false
}
