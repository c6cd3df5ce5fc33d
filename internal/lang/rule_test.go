package lang

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

func TestParseRule_FullForm(t *testing.T) {
	script := `
# flood protection
RuleName: flood guard
priority: 10
WHEN message
IF user.stats.messages_1m > 5 THEN
  mute("10m")
  reply("slow down")
ELSE IF vars.user.warnings >= 3 THEN
  ban()
ELSE
  set_var("user.warnings", vars.user.warnings + 1)
END
`
	rule, err := ParseRule(script)
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if rule.Name != "flood guard" {
		t.Errorf("Name = %q, want %q", rule.Name, "flood guard")
	}
	if rule.Priority != 10 {
		t.Errorf("Priority = %d, want 10", rule.Priority)
	}
	if rule.When != "message" {
		t.Errorf("When = %q, want %q", rule.When, "message")
	}
	if len(rule.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", rule.Warnings)
	}
	if len(rule.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(rule.Blocks))
	}
	if rule.Blocks[0].Cond == nil || rule.Blocks[1].Cond == nil {
		t.Fatal("both blocks should carry conditions")
	}
	if got := len(rule.Blocks[0].Actions); got != 2 {
		t.Errorf("first block has %d actions, want 2", got)
	}
	if rule.Blocks[0].Actions[0].Name != "mute" {
		t.Errorf("first action = %q, want mute", rule.Blocks[0].Actions[0].Name)
	}
	if len(rule.Else) != 1 || rule.Else[0].Name != "set_var" {
		t.Fatalf("Else = %v, want one set_var", rule.Else)
	}
}

func TestParseRule_CompactForm(t *testing.T) {
	rule, err := ParseRule(`WHEN message WHERE message.text == 'hello' THEN { reply('world'); } END`)
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if rule.When != "message" {
		t.Errorf("When = %q, want message", rule.When)
	}
	if len(rule.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(rule.Blocks))
	}
	want := Comparison{Left: "message.text", Op: OpEq, Right: "'hello'"}
	if !reflect.DeepEqual(rule.Blocks[0].Cond, want) {
		t.Errorf("Cond = %#v, want %#v", rule.Blocks[0].Cond, want)
	}
	if len(rule.Blocks[0].Actions) != 1 || rule.Blocks[0].Actions[0].Name != "reply" {
		t.Fatalf("Actions = %v, want one reply", rule.Blocks[0].Actions)
	}
}

func TestParseRule_SimpleForm(t *testing.T) {
	rule, err := ParseRule("WHEN join\nTHEN\nreply('welcome')\nEND")
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if len(rule.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(rule.Blocks))
	}
	if rule.Blocks[0].Cond != nil {
		t.Error("simple form block should have nil (always true) condition")
	}
}

func TestParseRule_KeywordsCaseInsensitive(t *testing.T) {
	rule, err := ParseRule("when MESSAGE\nif a.b == 1 then\nreply('x')\nend")
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if rule.When != "message" {
		t.Errorf("When = %q, want lower-cased message", rule.When)
	}
	if len(rule.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(rule.Blocks))
	}
}

func TestParseRule_ActionArgs(t *testing.T) {
	rule, err := ParseRule("WHEN message THEN\nsend_message(12345, \"hi, there\")\nmute('10m')\nstop\nEND")
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	actions := rule.Blocks[0].Actions
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}

	send := actions[0]
	if len(send.Args) != 2 {
		t.Fatalf("send_message has %d args, want 2", len(send.Args))
	}
	if send.Args[0].Kind != types.KindInt || send.Args[0].Int != 12345 {
		t.Errorf("arg 0 = %v, want int 12345", send.Args[0])
	}
	// Comma inside quotes stays one argument
	if send.Args[1].Kind != types.KindString || send.Args[1].Str != "hi, there" {
		t.Errorf("arg 1 = %v, want string %q", send.Args[1], "hi, there")
	}
	if send.RawArgs[1] != `"hi, there"` {
		t.Errorf("raw arg 1 = %q, want quotes retained", send.RawArgs[1])
	}

	if actions[2].Name != "stop" || len(actions[2].Args) != 0 {
		t.Errorf("bare action = %v, want stop with no args", actions[2])
	}
}

func TestParseRule_MissingWhen(t *testing.T) {
	for _, script := range []string{"", "# only a comment", "IF a.b == 1 THEN\nreply('x')\nEND"} {
		if _, err := ParseRule(script); !errors.Is(err, types.ErrMissingWhen) {
			t.Errorf("ParseRule(%q) error = %v, want ErrMissingWhen", script, err)
		}
	}
}

func TestParseRule_LenientCollectsWarnings(t *testing.T) {
	script := "WHEN message\nIF a.b == THEN\nTHEN\nreply('ok')\n???\nEND"
	rule, err := ParseRule(script)
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if len(rule.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2", rule.Warnings)
	}
	if rule.Warnings[0].Line != 2 {
		t.Errorf("first warning line = %d, want 2", rule.Warnings[0].Line)
	}
	if rule.Warnings[1].Line != 5 {
		t.Errorf("second warning line = %d, want 5", rule.Warnings[1].Line)
	}
	// The well-formed parts still parse
	if len(rule.Blocks) != 1 || len(rule.Blocks[0].Actions) != 1 {
		t.Errorf("Blocks = %v, want the valid THEN block", rule.Blocks)
	}
}

func TestParseRule_BrokenWhereDropsBlock(t *testing.T) {
	script := `WHEN message WHERE message.text ??? THEN { delete_message(); } END`
	rule, err := ParseRule(script)
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	// A broken WHERE must not degrade to an always-true block; the action
	// line is then unreachable and warns too.
	if len(rule.Blocks) != 0 {
		t.Fatalf("Blocks = %v, want none for a broken WHERE condition", rule.Blocks)
	}
	if len(rule.Else) != 0 {
		t.Errorf("Else = %v, want none", rule.Else)
	}
	if len(rule.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want broken condition plus stray action", rule.Warnings)
	}

	if _, err := ParseRuleStrict(script); err == nil {
		t.Error("ParseRuleStrict() = nil error, want failure on broken WHERE")
	}
}

func TestParseRuleStrict_FailsOnFirstBadLine(t *testing.T) {
	script := "WHEN message\nTHEN\nreply('ok')\n???\nEND"
	_, err := ParseRuleStrict(script)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ParseRuleStrict() error = %v, want *ParseError", err)
	}
	if perr.Line != 4 {
		t.Errorf("ParseError.Line = %d, want 4", perr.Line)
	}
}

func TestParseRule_ScheduleTrigger(t *testing.T) {
	rule, err := ParseRule("WHEN schedule(\"0 9 * * *\")\nTHEN\nsend_message(1, 'daily')\nEND")
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	cron, ok := rule.ScheduleCron()
	if !ok {
		t.Fatalf("ScheduleCron() ok = false, When = %q", rule.When)
	}
	if cron != "0 9 * * *" {
		t.Errorf("ScheduleCron() = %q, want %q", cron, "0 9 * * *")
	}

	plain, err := ParseRule("WHEN message THEN\nstop\nEND")
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if _, ok := plain.ScheduleCron(); ok {
		t.Error("ScheduleCron() on plain trigger should be false")
	}
}

func TestParseRule_CommentsAndBlankLines(t *testing.T) {
	script := "# header\n\nWHEN message\n# mid comment\nTHEN\n\nreply('x')\nEND\n"
	rule, err := ParseRule(script)
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}
	if len(rule.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", rule.Warnings)
	}
	if len(rule.Blocks[0].Actions) != 1 {
		t.Errorf("Actions = %v, want one", rule.Blocks[0].Actions)
	}
}

// Parsing is deterministic and never panics, whatever the input.
func TestParseRule_PropertyDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same script always yields the same result", prop.ForAll(
		func(script string) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("ParseRule() panicked on %q: %v", script, r)
				}
			}()
			a, errA := ParseRule(script)
			b, errB := ParseRule(script)
			if (errA == nil) != (errB == nil) {
				return false
			}
			if errA != nil {
				return errA.Error() == errB.Error()
			}
			return reflect.DeepEqual(a, b)
		},
		gen.AnyString(),
	))

	properties.Property("prefixed WHEN always parses or warns, never panics", prop.ForAll(
		func(body string) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("ParseRule() panicked: %v", r)
				}
			}()
			rule, err := ParseRule("WHEN message\n" + body)
			if err != nil {
				return true
			}
			return rule.When == "message"
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
