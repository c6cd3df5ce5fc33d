// internal/sched/sched.go

// Package sched fires rules with schedule(...) triggers on their cron
// expressions.
//
// The scheduler polls the rule store on a fixed interval and, for every
// active rule whose trigger is a schedule() clause, checks whether the cron
// expression has a firing time inside the window since the previous poll.
// Due rules receive a synthetic event whose type equals the rule's trigger
// text, so trigger matching works the same way it does for chat events.
package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/groupkeeper/groupkeeper/internal/lang"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

// RuleSource lists the active rules the scheduler scans for triggers.
type RuleSource interface {
	AllActiveRules(ctx context.Context) ([]types.PersistedRule, error)
}

// Runner consumes the synthetic events the scheduler emits.
type Runner interface {
	ProcessEvent(ctx context.Context, ev *types.Event) error
}

// Scheduler polls for due schedule() rules.
type Scheduler struct {
	source   RuleSource
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler polling source every interval.
func New(source RuleSource, runner Runner, interval time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		source:   source,
		runner:   runner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is cancelled. Each tick covers the half-open window
// (previous tick, now]; a cron firing inside the window triggers the rule
// once even if the process was busy past the exact firing time.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := s.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := s.now()
			s.Tick(ctx, last, now)
			last = now
		}
	}
}

// Tick fires every schedule() rule due in the window (from, to]. Exposed
// for tests and for hosts that drive their own clock.
func (s *Scheduler) Tick(ctx context.Context, from, to time.Time) {
	rules, err := s.source.AllActiveRules(ctx)
	if err != nil {
		s.logger.Error("scheduler rule scan failed", "error", err)
		return
	}

	for i := range rules {
		rule := &rules[i]
		parsed, err := lang.ParseRule(rule.Script)
		if err != nil {
			// Parse failures are reported by the engine when chat events
			// hit the rule; the scheduler just moves on
			continue
		}
		spec, ok := parsed.ScheduleCron()
		if !ok {
			continue
		}
		expr, err := cronexpr.Parse(spec)
		if err != nil {
			s.logger.Warn("invalid cron expression",
				"rule_id", rule.ID, "rule", rule.Name, "cron", spec)
			continue
		}
		next := expr.Next(from)
		if next.IsZero() || next.After(to) {
			continue
		}

		ev := &types.Event{
			ID:      types.NewEventID(),
			Type:    parsed.When,
			GroupID: rule.GroupID,
			Chat:    &types.Chat{ID: rule.GroupID, Type: "group"},
			Time:    next,
		}
		s.logger.Debug("schedule trigger fired",
			"rule_id", rule.ID, "rule", rule.Name, "cron", spec, "at", next)
		if err := s.runner.ProcessEvent(ctx, ev); err != nil {
			s.logger.Error("scheduled event failed",
				"rule_id", rule.ID, "rule", rule.Name, "error", err)
		}
	}
}
