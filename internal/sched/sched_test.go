package sched

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

type fakeSource struct {
	rules []types.PersistedRule
}

func (f *fakeSource) AllActiveRules(ctx context.Context) ([]types.PersistedRule, error) {
	return f.rules, nil
}

type fakeRunner struct {
	events []*types.Event
}

func (f *fakeRunner) ProcessEvent(ctx context.Context, ev *types.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scheduleRule(id string, groupID int64, cron string) types.PersistedRule {
	return types.PersistedRule{
		ID:       types.RuleID(id),
		GroupID:  groupID,
		Name:     id,
		Script:   "WHEN schedule(\"" + cron + "\")\nTHEN\nsend_message(1, 'tick')\nEND",
		IsActive: true,
	}
}

func TestTick_FiresDueRules(t *testing.T) {
	source := &fakeSource{rules: []types.PersistedRule{
		scheduleRule("hourly", 100, "0 * * * *"),
		scheduleRule("daily-noon", 200, "0 12 * * *"),
	}}
	runner := &fakeRunner{}
	s := New(source, runner, time.Minute, quietLogger())

	// Window crossing 09:00 exactly: only the hourly rule is due
	from := time.Date(2026, 8, 30, 8, 59, 30, 0, time.UTC)
	to := time.Date(2026, 8, 30, 9, 0, 30, 0, time.UTC)
	s.Tick(context.Background(), from, to)

	if len(runner.events) != 1 {
		t.Fatalf("got %d events, want 1", len(runner.events))
	}
	ev := runner.events[0]
	if ev.GroupID != 100 {
		t.Errorf("GroupID = %d, want 100", ev.GroupID)
	}
	if ev.Type != `schedule("0 * * * *")` {
		t.Errorf("Type = %q, want the trigger text", ev.Type)
	}
	if ev.ID == "" {
		t.Error("event should carry an id")
	}
}

func TestTick_NothingDue(t *testing.T) {
	source := &fakeSource{rules: []types.PersistedRule{
		scheduleRule("hourly", 100, "0 * * * *"),
	}}
	runner := &fakeRunner{}
	s := New(source, runner, time.Minute, quietLogger())

	from := time.Date(2026, 8, 30, 9, 10, 0, 0, time.UTC)
	s.Tick(context.Background(), from, from.Add(time.Minute))

	if len(runner.events) != 0 {
		t.Errorf("got %d events, want none", len(runner.events))
	}
}

func TestTick_IgnoresNonScheduleAndBrokenRules(t *testing.T) {
	source := &fakeSource{rules: []types.PersistedRule{
		{ID: "chat", GroupID: 100, Script: "WHEN message THEN\nreply('x')\nEND", IsActive: true},
		{ID: "broken", GroupID: 100, Script: "no when at all", IsActive: true},
		scheduleRule("badcron", 100, "not a cron"),
	}}
	runner := &fakeRunner{}
	s := New(source, runner, time.Minute, quietLogger())

	from := time.Date(2026, 8, 30, 8, 59, 0, 0, time.UTC)
	s.Tick(context.Background(), from, from.Add(2*time.Minute))

	if len(runner.events) != 0 {
		t.Errorf("got %d events, want none", len(runner.events))
	}
}
