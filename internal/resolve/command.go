// internal/resolve/command.go
package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Command sub-resolver.
 *
 * A message is a command only when its text is non-empty and starts with '/'.
 * The text is shell-lexed so a quoted multi-word argument is one token, and a
 * trailing @botname suffix on the command word is stripped before taking the
 * name.
 *
 * The parse result is cached per (update id, message text) for the duration
 * of one event-processing pass, so a script touching several command.* paths
 * lexes the text once.
 */

// parsedCommand is the request-cached shell-lex result.
type parsedCommand struct {
	Name     string
	FullText string
	Args     []string
}

var commandArgPattern = regexp.MustCompile(`^command\.arg\[([0-9]+)\]$`)

func (r *Resolver) resolveCommand(path string, req *Request) types.Value {
	cmd := r.parsedCommand(req)
	if cmd == nil {
		return types.Null()
	}

	switch path {
	case "command":
		args := make([]types.Value, len(cmd.Args))
		for i, a := range cmd.Args {
			args[i] = types.StringValue(a)
		}
		return types.MapValue(map[string]types.Value{
			"name":      types.StringValue(cmd.Name),
			"text":      types.StringValue(cmd.Name),
			"full_text": types.StringValue(cmd.FullText),
			"arg":       types.ListValue(args),
			"full_args": types.StringValue(strings.Join(cmd.Args, " ")),
			"arg_count": types.IntValue(int64(len(cmd.Args))),
		})
	case "command.name":
		return types.StringValue(cmd.Name)
	case "command.text":
		// Backward-compatible alias of command.name
		return types.StringValue(cmd.Name)
	case "command.full_text":
		return types.StringValue(cmd.FullText)
	case "command.arg":
		args := make([]types.Value, len(cmd.Args))
		for i, a := range cmd.Args {
			args[i] = types.StringValue(a)
		}
		return types.ListValue(args)
	case "command.full_args":
		// Re-serialization loses the original quoting
		return types.StringValue(strings.Join(cmd.Args, " "))
	case "command.arg_count":
		return types.IntValue(int64(len(cmd.Args)))
	}

	if m := commandArgPattern.FindStringSubmatch(path); m != nil {
		var idx int
		fmt.Sscanf(m[1], "%d", &idx)
		if idx < 0 || idx >= len(cmd.Args) {
			return types.Null()
		}
		return types.StringValue(cmd.Args[idx])
	}

	return types.Null()
}

// parsedCommand returns the pass's command parse, lexing at most once.
// Nil when the event's message is not a command.
func (r *Resolver) parsedCommand(req *Request) *parsedCommand {
	msg := req.Event.EffectiveMessage()
	if msg == nil || msg.Text == "" || !strings.HasPrefix(msg.Text, "/") {
		return nil
	}

	key := fmt.Sprintf("%d:%s", req.Event.UpdateID, msg.Text)
	if req.command != nil && req.cmdKey == key {
		return req.command
	}

	tokens, err := shellSplit(msg.Text)
	if err != nil || len(tokens) == 0 {
		r.logger.Debug("command lex failed", "text", msg.Text, "error", err)
		return nil
	}

	name := strings.TrimPrefix(tokens[0], "/")
	// Strip a trailing @botname from the command word
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	req.command = &parsedCommand{
		Name:     name,
		FullText: msg.Text,
		Args:     tokens[1:],
	}
	req.cmdKey = key
	return req.command
}

// shellSplit tokenizes text the way a shell lexer would: whitespace
// separates tokens, double or single quotes group a token, and quotes are
// stripped from the result. An unterminated quote is an error.
func shellSplit(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote byte
	started := false

	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
			started = true
		case c == ' ' || c == '\t' || c == '\n':
			flush()
		default:
			cur.WriteByte(c)
			started = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	flush()
	return tokens, nil
}
