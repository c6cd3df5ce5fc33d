// internal/lang/rule.go

// Package lang implements the rule language: the condition tokenizer and
// parser, and the line-oriented rule script parser. It is pure syntax; all
// evaluation lives in internal/engine and internal/resolve.
package lang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Rule script parser.
 *
 * A script is a run of logical lines:
 *
 *   # full-line comment
 *   RuleName: flood guard
 *   priority: 10
 *   WHEN message
 *   IF user.stats.messages_1m > 5 THEN
 *     mute("10m")
 *     reply("slow down")
 *   ELSE IF vars.user.warnings >= 3 THEN
 *     ban()
 *   ELSE
 *     set_var("user.warnings", "vars.user.warnings + 1")
 *   END
 *
 * A compact one-line form is also accepted; braces and semicolons are
 * logical-line separators outside quotes:
 *
 *   WHEN message WHERE message.text == 'hello' THEN { reply('world'); } END
 *
 * Keywords are case-insensitive. Parsing is deterministic: the same script
 * text always yields the same AST.
 *
 * Failure policy is lenient by default: a malformed line is recorded as a
 * Warning{Line, Reason} and skipped so one typo does not take the whole rule
 * down. ParseRuleStrict promotes the first warning to a *ParseError instead.
 * A missing WHEN clause is an error in both modes; a rule without a trigger
 * can never run.
 */

// Action is one side-effecting step: a name plus positional arguments.
// RawArgs keeps the original argument lexemes, quote delimiters intact, for
// actions like set_var whose value argument is an expression rather than a
// literal.
type Action struct {
	Name    string
	Args    []types.Value
	RawArgs []string
}

// IfBlock pairs a condition with the actions to run when it holds.
// A nil Cond means "always true": that is the bare-THEN simple form.
type IfBlock struct {
	Cond    CondNode
	Actions []Action
}

// Warning records one malformed line the lenient parser skipped.
type Warning struct {
	Line   int
	Reason string
}

// ParseError is the strict-mode failure: the first malformed line.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
}

// ParsedRule is the AST root for one rule script. Immutable once built.
type ParsedRule struct {
	Name     string
	Priority int
	// When is the trigger expression, lower-cased verbatim, matched against
	// the live event's type tag. schedule("<cron>") triggers keep their full
	// text; the scheduler extracts the cron sub-expression itself.
	When     string
	Blocks   []IfBlock
	Else     []Action
	Warnings []Warning
}

// ScheduleCron extracts the quoted cron expression from a schedule(...)
// trigger. Returns false for ordinary event triggers.
func (r *ParsedRule) ScheduleCron() (string, bool) {
	m := schedulePattern.FindStringSubmatch(r.When)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var (
	metaNamePattern     = regexp.MustCompile(`(?i)^rulename\s*:\s*(.+)$`)
	metaPriorityPattern = regexp.MustCompile(`(?i)^priority\s*:\s*(-?\d+)$`)
	whenPattern         = regexp.MustCompile(`(?i)^when\s+(.+)$`)
	wherePattern        = regexp.MustCompile(`(?i)\bwhere\b`)
	thenTailPattern     = regexp.MustCompile(`(?i)\s*\bthen\b\s*$`)
	ifPattern           = regexp.MustCompile(`(?i)^if\s+(.+?)\s+then$`)
	elseIfPattern       = regexp.MustCompile(`(?i)^else\s+if\s+(.+?)\s+then$`)
	elsePattern         = regexp.MustCompile(`(?i)^else(\s+then)?$`)
	thenPattern         = regexp.MustCompile(`(?i)^then$`)
	endPattern          = regexp.MustCompile(`(?i)^end$`)
	actionPattern       = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?:\((.*)\))?$`)
	schedulePattern     = regexp.MustCompile(`(?i)^schedule\(\s*["'](.+?)["']\s*\)$`)
)

// ParseRule parses a script leniently: malformed lines become Warnings on the
// result. Only a missing WHEN clause fails the whole script.
func ParseRule(script string) (*ParsedRule, error) {
	return parseRule(script, false)
}

// ParseRuleStrict parses a script and fails on the first malformed line with
// a *ParseError carrying the line number and reason.
func ParseRuleStrict(script string) (*ParsedRule, error) {
	return parseRule(script, true)
}

type scriptLine struct {
	text string
	num  int
}

// parsePhase tracks where the line state machine is in the script.
type parsePhase int

const (
	phaseMetadata parsePhase = iota
	phaseBranches            // after WHEN, before any block opened
	phaseActions             // inside an IF/THEN/ELSE action block
	phaseDone                // after END
)

func parseRule(script string, strict bool) (*ParsedRule, error) {
	rule := &ParsedRule{}
	lines := splitLogicalLines(script)

	fail := func(ln scriptLine, reason string) error {
		if strict {
			return &ParseError{Line: ln.num, Reason: reason}
		}
		rule.Warnings = append(rule.Warnings, Warning{Line: ln.num, Reason: reason})
		return nil
	}

	phase := phaseMetadata
	inElse := false

	for _, ln := range lines {
		switch phase {
		case phaseMetadata:
			if m := metaNamePattern.FindStringSubmatch(ln.text); m != nil {
				rule.Name = strings.TrimSpace(m[1])
				continue
			}
			if m := metaPriorityPattern.FindStringSubmatch(ln.text); m != nil {
				// Pattern guarantees an integer
				rule.Priority, _ = strconv.Atoi(m[1])
				continue
			}
			if m := whenPattern.FindStringSubmatch(ln.text); m != nil {
				next, err := parseWhenClause(rule, m[1], ln, strict)
				if err != nil {
					return nil, err
				}
				phase = next
				continue
			}
			if err := fail(ln, fmt.Sprintf("expected metadata or WHEN, got %q", ln.text)); err != nil {
				return nil, err
			}

		case phaseBranches:
			if m := ifPattern.FindStringSubmatch(ln.text); m != nil {
				cond, err := ParseCondition(m[1])
				if err != nil {
					if ferr := fail(ln, err.Error()); ferr != nil {
						return nil, ferr
					}
					continue
				}
				rule.Blocks = append(rule.Blocks, IfBlock{Cond: cond})
				phase = phaseActions
				continue
			}
			if thenPattern.MatchString(ln.text) {
				// Simple form: condition-less block
				rule.Blocks = append(rule.Blocks, IfBlock{})
				phase = phaseActions
				continue
			}
			if endPattern.MatchString(ln.text) {
				phase = phaseDone
				continue
			}
			if err := fail(ln, fmt.Sprintf("expected IF, THEN, or END, got %q", ln.text)); err != nil {
				return nil, err
			}

		case phaseActions:
			if m := elseIfPattern.FindStringSubmatch(ln.text); m != nil {
				if inElse {
					if err := fail(ln, "ELSE IF after ELSE"); err != nil {
						return nil, err
					}
					continue
				}
				cond, err := ParseCondition(m[1])
				if err != nil {
					if ferr := fail(ln, err.Error()); ferr != nil {
						return nil, ferr
					}
					continue
				}
				rule.Blocks = append(rule.Blocks, IfBlock{Cond: cond})
				continue
			}
			if elsePattern.MatchString(ln.text) {
				if inElse {
					if err := fail(ln, "duplicate ELSE"); err != nil {
						return nil, err
					}
					continue
				}
				inElse = true
				continue
			}
			if endPattern.MatchString(ln.text) {
				phase = phaseDone
				continue
			}
			action, err := parseActionLine(ln.text)
			if err != nil {
				if ferr := fail(ln, err.Error()); ferr != nil {
					return nil, ferr
				}
				continue
			}
			if inElse {
				rule.Else = append(rule.Else, action)
			} else {
				last := len(rule.Blocks) - 1
				rule.Blocks[last].Actions = append(rule.Blocks[last].Actions, action)
			}

		case phaseDone:
			if err := fail(ln, fmt.Sprintf("content after END: %q", ln.text)); err != nil {
				return nil, err
			}
		}
	}

	if rule.When == "" {
		return nil, types.ErrMissingWhen
	}
	return rule, nil
}

// parseWhenClause handles "WHEN <event>" and the compact
// "WHEN <event> WHERE <condition> [THEN]" shape. With a WHERE clause the
// condition opens the first block and the parser drops straight into its
// action list.
func parseWhenClause(rule *ParsedRule, clause string, ln scriptLine, strict bool) (parsePhase, error) {
	loc := wherePattern.FindStringIndex(clause)
	if loc == nil {
		rest := clause
		hadThen := thenTailPattern.MatchString(rest)
		rest = thenTailPattern.ReplaceAllString(rest, "")
		rule.When = strings.ToLower(strings.TrimSpace(rest))
		if hadThen {
			rule.Blocks = append(rule.Blocks, IfBlock{})
			return phaseActions, nil
		}
		return phaseBranches, nil
	}

	rule.When = strings.ToLower(strings.TrimSpace(clause[:loc[0]]))
	condText := strings.TrimSpace(clause[loc[1]:])
	condText = thenTailPattern.ReplaceAllString(condText, "")

	cond, err := ParseCondition(condText)
	if err != nil {
		if strict {
			return 0, &ParseError{Line: ln.num, Reason: err.Error()}
		}
		// A broken condition drops the block rather than opening an
		// unconditional one; its action lines then warn as unexpected.
		rule.Warnings = append(rule.Warnings, Warning{Line: ln.num, Reason: err.Error()})
		return phaseBranches, nil
	}
	rule.Blocks = append(rule.Blocks, IfBlock{Cond: cond})
	return phaseActions, nil
}

// parseActionLine parses `name(arg1, arg2, ...)` or a bare `name`.
// Quoted substrings are single arguments with quotes stripped; unquoted runs
// split on whitespace and commas. Nested parentheses are not supported.
func parseActionLine(line string) (Action, error) {
	m := actionPattern.FindStringSubmatch(line)
	if m == nil {
		return Action{}, fmt.Errorf("not an action line: %q", line)
	}
	action := Action{Name: strings.ToLower(m[1])}
	for _, raw := range splitArgs(m[2]) {
		action.RawArgs = append(action.RawArgs, raw)
		action.Args = append(action.Args, literalValue(raw))
	}
	return action, nil
}

// splitArgs splits an argument list on commas and whitespace, keeping quoted
// substrings intact. Quote delimiters are retained so literalValue can tell
// "5" (string) from 5 (number).
func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
				flush()
			}
		case c == '"' || c == '\'':
			flush()
			quote = c
			cur.WriteByte(c)
		case c == ',' || c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return args
}

// literalValue interprets one argument lexeme: quoted string, integer,
// float, boolean, null, or a bare string fallback.
func literalValue(raw string) types.Value {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') ||
			(raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return types.StringValue(raw[1 : len(raw)-1])
		}
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return types.IntValue(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return types.FloatValue(f)
	}
	switch strings.ToLower(raw) {
	case "true":
		return types.BoolValue(true)
	case "false":
		return types.BoolValue(false)
	case "null":
		return types.Null()
	}
	return types.StringValue(raw)
}

// splitLogicalLines breaks a script into trimmed, comment-free logical lines
// with original line numbers. Newlines, semicolons, and braces separate
// logical lines when outside quotes; a leading '#' comments out the rest of
// its physical line.
func splitLogicalLines(script string) []scriptLine {
	var lines []scriptLine
	var cur strings.Builder
	var quote byte
	num := 1
	startNum := 1

	flush := func() {
		text := strings.TrimSpace(cur.String())
		cur.Reset()
		if text != "" && !strings.HasPrefix(text, "#") {
			lines = append(lines, scriptLine{text: text, num: startNum})
		}
		startNum = num
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\n':
			flush()
			num++
			startNum = num
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == ';' || c == '{' || c == '}':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return lines
}
