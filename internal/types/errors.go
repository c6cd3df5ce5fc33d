package types

import "errors"

// Sentinel errors for groupkeeper operations.
var (
	// ErrMalformedCondition indicates the condition tokenizer hit input it
	// cannot classify. Wrapped with the offending substring at the call site.
	ErrMalformedCondition = errors.New("malformed condition expression")

	// ErrUnexpectedToken indicates the condition parser found a token out of
	// place: a comparison missing an operand or operator, or an unclosed '('.
	ErrUnexpectedToken = errors.New("unexpected token in condition")

	// ErrMissingWhen indicates a rule script has no WHEN trigger clause.
	ErrMissingWhen = errors.New("rule has no WHEN clause")

	// ErrTypeMismatch indicates an ordering comparison across values whose
	// types cannot be coerced together. The executor treats it as
	// "condition false", never fatal.
	ErrTypeMismatch = errors.New("incomparable value types")

	// ErrNoSession indicates an engine wiring bug: an event pass was started
	// without a data store session. Never a user-script problem.
	ErrNoSession = errors.New("no data store session for event pass")
)
