// internal/engine/actions.go
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/groupkeeper/groupkeeper/internal/lang"
	"github.com/groupkeeper/groupkeeper/internal/resolve"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Built-in actions.
 *
 * Every action is a function from (pass, args) to an Outcome: either keep
 * going or stop all rule processing for this event. The stop signal is a
 * return value, not an error or panic, so the type system shows every
 * control path.
 *
 * Action failures are isolated per rule by the caller: an error aborts the
 * remainder of the failing rule's action list but lower-priority rules still
 * run.
 */

// Outcome is an action's control-flow result.
type Outcome int

const (
	// Continue proceeds with the next action and the next rule.
	Continue Outcome = iota
	// StopAllRules aborts evaluation of every remaining rule for this event.
	StopAllRules
)

// Backend is the action backend capability: the external collaborator that
// performs real side effects against the chat platform. Every operation is
// fallible and attempted at most once per pass.
type Backend interface {
	DeleteCurrentMessage(ctx context.Context, ev *types.Event) error
	Reply(ctx context.Context, ev *types.Event, text string) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	RestrictMember(ctx context.Context, chatID, userID int64, perms types.Permissions, until *time.Time) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	GetMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error)
}

// ActionFunc executes one script action within an event pass.
type ActionFunc func(ctx context.Context, p *pass, action lang.Action) (Outcome, error)

// registerBuiltins installs the standard action set.
func (e *Engine) registerBuiltins() {
	e.actions = map[string]ActionFunc{
		"reply":          e.actionReply,
		"send_message":   e.actionSendMessage,
		"delete_message": e.actionDeleteMessage,
		"mute":           e.actionMute,
		"ban":            e.actionBan,
		"unban":          e.actionUnban,
		"kick":           e.actionKick,
		"warn":           e.actionWarn,
		"log":            e.actionLog,
		"set_var":        e.actionSetVar,
		"stop":           e.actionStop,
	}
}

// RegisterAction adds or replaces a host-provided action. Names are
// lower-cased to match the parser's normalization.
func (e *Engine) RegisterAction(name string, fn ActionFunc) {
	e.actions[strings.ToLower(name)] = fn
}

func argString(action lang.Action, i int) (string, bool) {
	if i >= len(action.Args) {
		return "", false
	}
	v := action.Args[i]
	if v.Kind == types.KindString {
		return v.Str, true
	}
	return v.String(), true
}

func (e *Engine) actionReply(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	text, ok := argString(action, 0)
	if !ok {
		return Continue, fmt.Errorf("reply: missing text argument")
	}
	return Continue, p.backend.Reply(ctx, p.event, text)
}

func (e *Engine) actionSendMessage(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	// One argument sends to the current chat; two are (chat_id, text).
	switch len(action.Args) {
	case 1:
		chat := p.event.EffectiveChat()
		if chat == nil {
			return Continue, fmt.Errorf("send_message: no chat in context")
		}
		text, _ := argString(action, 0)
		return Continue, p.backend.SendMessage(ctx, chat.ID, text)
	case 2:
		chatID, ok := action.Args[0].AsInt()
		if !ok {
			return Continue, fmt.Errorf("send_message: chat id %q is not numeric", action.Args[0].String())
		}
		text, _ := argString(action, 1)
		return Continue, p.backend.SendMessage(ctx, chatID, text)
	default:
		return Continue, fmt.Errorf("send_message: want 1 or 2 arguments, got %d", len(action.Args))
	}
}

func (e *Engine) actionDeleteMessage(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	return Continue, p.backend.DeleteCurrentMessage(ctx, p.event)
}

func (e *Engine) actionMute(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	chat, user, err := p.subject()
	if err != nil {
		return Continue, fmt.Errorf("mute: %w", err)
	}

	var until *time.Time
	if len(action.Args) > 0 {
		d, err := parseDurationArg(action.Args[0])
		if err != nil {
			return Continue, fmt.Errorf("mute: %w", err)
		}
		t := time.Now().Add(d)
		until = &t
	}

	// Zero permissions: the member may do nothing until the restriction lifts
	return Continue, p.backend.RestrictMember(ctx, chat.ID, user.ID, types.Permissions{}, until)
}

func (e *Engine) actionBan(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	chat, user, err := p.subjectOrArg(action, 0)
	if err != nil {
		return Continue, fmt.Errorf("ban: %w", err)
	}
	return Continue, p.backend.BanMember(ctx, chat.ID, user)
}

func (e *Engine) actionUnban(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	chat, user, err := p.subjectOrArg(action, 0)
	if err != nil {
		return Continue, fmt.Errorf("unban: %w", err)
	}
	return Continue, p.backend.UnbanMember(ctx, chat.ID, user)
}

// actionKick removes the member without a lasting ban: ban then unban.
func (e *Engine) actionKick(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	chat, user, err := p.subjectOrArg(action, 0)
	if err != nil {
		return Continue, fmt.Errorf("kick: %w", err)
	}
	if err := p.backend.BanMember(ctx, chat.ID, user); err != nil {
		return Continue, err
	}
	return Continue, p.backend.UnbanMember(ctx, chat.ID, user)
}

func (e *Engine) actionWarn(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	text, _ := argString(action, 0)
	tag := "warn"
	return Continue, p.insertLog(ctx, text, &tag)
}

func (e *Engine) actionLog(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	text, ok := argString(action, 0)
	if !ok {
		return Continue, fmt.Errorf("log: missing message argument")
	}
	return Continue, p.insertLog(ctx, text, nil)
}

// actionSetVar writes a persistent variable. The first argument is the
// target as <scope>.<name> (the vars. prefix of the read path is implied);
// the rest of the raw argument lexemes re-join into the value expression.
// A null result deletes the variable.
func (e *Engine) actionSetVar(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	target, ok := argString(action, 0)
	if !ok {
		return Continue, fmt.Errorf("set_var: missing target argument")
	}
	scope, name, found := strings.Cut(target, ".")
	if !found || name == "" {
		return Continue, fmt.Errorf("set_var: target %q is not <scope>.<name>", target)
	}

	var effective *int64
	if u := p.event.EffectiveUser(); u != nil {
		effective = &u.ID
	}
	userID, ok := resolve.ScopeUserID(scope, effective)
	if !ok {
		return Continue, fmt.Errorf("set_var: unusable scope %q", scope)
	}

	if len(action.RawArgs) < 2 {
		return Continue, fmt.Errorf("set_var: missing value expression")
	}
	value := e.evalExpr(ctx, strings.Join(action.RawArgs[1:], " "), p)

	if value.IsNull() {
		return Continue, p.session.SetVariable(ctx, p.event.GroupID, userID, name, nil)
	}
	encoded, err := value.ToJSON()
	if err != nil {
		return Continue, fmt.Errorf("set_var: encode %s: %w", name, err)
	}
	return Continue, p.session.SetVariable(ctx, p.event.GroupID, userID, name, &encoded)
}

func (e *Engine) actionStop(ctx context.Context, p *pass, action lang.Action) (Outcome, error) {
	return StopAllRules, nil
}

// parseDurationArg accepts Go duration strings ("10m", "1h30m") or a bare
// number of seconds.
func parseDurationArg(v types.Value) (time.Duration, error) {
	switch v.Kind {
	case types.KindInt, types.KindFloat:
		secs, _ := v.AsFloat()
		return time.Duration(secs * float64(time.Second)), nil
	case types.KindString:
		s := strings.TrimSpace(v.Str)
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
	}
	return 0, fmt.Errorf("bad duration %q", v.String())
}
