// Package types provides domain models shared across groupkeeper components.
//
// Zero-dependency design: value.go, types.go, rules.go, and errors.go use only
// the standard library so the rule-language core stays importable from any
// package. ID utilities in ids.go import uuid but are isolated for selective
// inclusion.
package types

import "time"

// User is a chat platform user as seen by the rule language. Only the fields
// listed here are readable from scripts; anything else the platform client
// knows about a user stays private to the host.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// FullName joins first and last name, matching the platform's display form.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Chat is the group or channel the event happened in.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Message is an inbound chat message. ReplyTo is nil unless the message
// replies to another one.
type Message struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text,omitempty"`
	Date    time.Time `json:"date,omitempty"`
	From    *User     `json:"from,omitempty"`
	Chat    *Chat     `json:"chat,omitempty"`
	ReplyTo *Message  `json:"reply_to,omitempty"`
}

// Event is one inbound occurrence the engine evaluates rules against:
// a message, a member join/leave, a command, or a scheduled trigger.
//
// Type is the lower-cased event tag matched against rule WHEN clauses
// ("message", "join", "leave", or a verbatim schedule(...) trigger string).
type Event struct {
	ID       EventID   `json:"id,omitempty"`
	UpdateID int64     `json:"update_id,omitempty"`
	Type     string    `json:"type"`
	GroupID  int64     `json:"group_id"`
	Chat     *Chat     `json:"chat,omitempty"`
	User     *User     `json:"user,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Time     time.Time `json:"time,omitempty"`
}

// EffectiveUser returns the user the event is about: the explicit subject if
// set, else the sender of the event's message.
func (e *Event) EffectiveUser() *User {
	if e.User != nil {
		return e.User
	}
	if e.Message != nil {
		return e.Message.From
	}
	return nil
}

// EffectiveMessage returns the message the event carries, if any.
func (e *Event) EffectiveMessage() *Message {
	return e.Message
}

// EffectiveChat returns the chat the event happened in: the explicit chat if
// set, else the message's chat.
func (e *Event) EffectiveChat() *Chat {
	if e.Chat != nil {
		return e.Chat
	}
	if e.Message != nil {
		return e.Message.Chat
	}
	return nil
}

// Permissions describes what a restricted member may still do. The zero
// value revokes everything, which is what mute wants.
type Permissions struct {
	CanSendMessages bool
	CanSendMedia    bool
	CanSendOther    bool
	CanAddPreviews  bool
}
