// internal/resolve/generic.go
package resolve

import (
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Generic path sub-resolver: the fallback for paths no other sub-resolver
 * claims.
 *
 * Traversal runs against a fixed, enumerated field schema per context type
 * rather than reflection, so scripts can only ever read fields listed here.
 * Aliases: a leading "user." resolves against the effective user, a leading
 * "message." against the effective message, and anything else against the
 * event itself.
 *
 * The instant any intermediate segment is missing, or the object holding it
 * is absent, the whole path resolves to null. Missing data is normal input
 * for scripts, not an error.
 */

func resolveGeneric(ev *types.Event, path string) types.Value {
	if ev == nil {
		return types.Null()
	}
	segments := strings.Split(path, ".")
	switch segments[0] {
	case "user":
		return userField(ev.EffectiveUser(), segments[1:])
	case "message":
		return messageField(ev.EffectiveMessage(), segments[1:])
	default:
		return eventField(ev, segments)
	}
}

// leaf guards a terminal value: any leftover segments mean the script tried
// to traverse into a scalar, which is a dead end.
func leaf(v types.Value, rest []string) types.Value {
	if len(rest) > 0 {
		return types.Null()
	}
	return v
}

func eventField(ev *types.Event, segments []string) types.Value {
	if len(segments) == 0 {
		return types.Null()
	}
	rest := segments[1:]
	switch segments[0] {
	case "type":
		return leaf(types.StringValue(ev.Type), rest)
	case "chat":
		return chatField(ev.EffectiveChat(), rest)
	case "group":
		return groupField(ev, rest)
	case "update_id":
		return leaf(types.IntValue(ev.UpdateID), rest)
	default:
		return types.Null()
	}
}

func groupField(ev *types.Event, segments []string) types.Value {
	if len(segments) == 0 {
		return types.MapValue(map[string]types.Value{
			"id": types.IntValue(ev.GroupID),
		})
	}
	if segments[0] == "id" {
		return leaf(types.IntValue(ev.GroupID), segments[1:])
	}
	return types.Null()
}

func userField(u *types.User, segments []string) types.Value {
	if u == nil {
		return types.Null()
	}
	if len(segments) == 0 {
		return types.MapValue(map[string]types.Value{
			"id":         types.IntValue(u.ID),
			"username":   types.StringValue(u.Username),
			"first_name": types.StringValue(u.FirstName),
			"last_name":  types.StringValue(u.LastName),
			"full_name":  types.StringValue(u.FullName()),
			"is_bot":     types.BoolValue(u.IsBot),
		})
	}
	rest := segments[1:]
	switch segments[0] {
	case "id":
		return leaf(types.IntValue(u.ID), rest)
	case "username":
		return leaf(types.StringValue(u.Username), rest)
	case "first_name":
		return leaf(types.StringValue(u.FirstName), rest)
	case "last_name":
		return leaf(types.StringValue(u.LastName), rest)
	case "full_name":
		return leaf(types.StringValue(u.FullName()), rest)
	case "is_bot":
		return leaf(types.BoolValue(u.IsBot), rest)
	default:
		return types.Null()
	}
}

func messageField(m *types.Message, segments []string) types.Value {
	if m == nil {
		return types.Null()
	}
	if len(segments) == 0 {
		return types.MapValue(map[string]types.Value{
			"id":   types.IntValue(m.ID),
			"text": types.StringValue(m.Text),
			"date": types.IntValue(m.Date.Unix()),
		})
	}
	rest := segments[1:]
	switch segments[0] {
	case "id":
		return leaf(types.IntValue(m.ID), rest)
	case "text":
		return leaf(types.StringValue(m.Text), rest)
	case "date":
		return leaf(types.IntValue(m.Date.Unix()), rest)
	case "from":
		return userField(m.From, rest)
	case "chat":
		return chatField(m.Chat, rest)
	case "reply_to":
		return messageField(m.ReplyTo, rest)
	default:
		return types.Null()
	}
}

func chatField(c *types.Chat, segments []string) types.Value {
	if c == nil {
		return types.Null()
	}
	if len(segments) == 0 {
		return types.MapValue(map[string]types.Value{
			"id":    types.IntValue(c.ID),
			"type":  types.StringValue(c.Type),
			"title": types.StringValue(c.Title),
		})
	}
	rest := segments[1:]
	switch segments[0] {
	case "id":
		return leaf(types.IntValue(c.ID), rest)
	case "type":
		return leaf(types.StringValue(c.Type), rest)
	case "title":
		return leaf(types.StringValue(c.Title), rest)
	default:
		return types.Null()
	}
}
