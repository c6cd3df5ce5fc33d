// Package console provides an action backend that prints every side effect
// as a JSON line instead of calling a chat platform.
//
// It serves local development and script testing: feed events in, observe
// the moderation calls the rules would have made. Member status answers come
// from a static admin set supplied at construction.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

// Backend writes moderation calls to an io.Writer as JSON lines.
type Backend struct {
	mu     sync.Mutex
	out    io.Writer
	admins map[int64]bool
}

// New creates a console backend. admins lists user ids reported as chat
// administrators; everyone else reports as a plain member.
func New(out io.Writer, admins []int64) *Backend {
	set := make(map[int64]bool, len(admins))
	for _, id := range admins {
		set[id] = true
	}
	return &Backend{out: out, admins: set}
}

type call struct {
	Op      string  `json:"op"`
	ChatID  int64   `json:"chat_id,omitempty"`
	UserID  int64   `json:"user_id,omitempty"`
	Message int64   `json:"message_id,omitempty"`
	Text    string  `json:"text,omitempty"`
	Until   *string `json:"until,omitempty"`
}

func (b *Backend) emit(c call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	line, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode backend call: %w", err)
	}
	if _, err := b.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write backend call: %w", err)
	}
	return nil
}

func (b *Backend) DeleteCurrentMessage(ctx context.Context, ev *types.Event) error {
	msg := ev.EffectiveMessage()
	chat := ev.EffectiveChat()
	if msg == nil || chat == nil {
		return fmt.Errorf("no message in context")
	}
	return b.emit(call{Op: "delete_message", ChatID: chat.ID, Message: msg.ID})
}

func (b *Backend) Reply(ctx context.Context, ev *types.Event, text string) error {
	msg := ev.EffectiveMessage()
	chat := ev.EffectiveChat()
	if msg == nil || chat == nil {
		return fmt.Errorf("no message in context")
	}
	return b.emit(call{Op: "reply", ChatID: chat.ID, Message: msg.ID, Text: text})
}

func (b *Backend) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.emit(call{Op: "send_message", ChatID: chatID, Text: text})
}

func (b *Backend) RestrictMember(ctx context.Context, chatID, userID int64, perms types.Permissions, until *time.Time) error {
	c := call{Op: "restrict", ChatID: chatID, UserID: userID}
	if until != nil {
		s := until.UTC().Format(time.RFC3339)
		c.Until = &s
	}
	return b.emit(c)
}

func (b *Backend) BanMember(ctx context.Context, chatID, userID int64) error {
	return b.emit(call{Op: "ban", ChatID: chatID, UserID: userID})
}

func (b *Backend) UnbanMember(ctx context.Context, chatID, userID int64) error {
	return b.emit(call{Op: "unban", ChatID: chatID, UserID: userID})
}

func (b *Backend) GetMemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	if b.admins[userID] {
		return "administrator", nil
	}
	return "member", nil
}

func (b *Backend) GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error) {
	ids := make([]int64, 0, len(b.admins))
	for id := range b.admins {
		ids = append(ids, id)
	}
	return ids, nil
}
