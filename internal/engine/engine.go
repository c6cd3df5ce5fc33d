// internal/engine/engine.go

// Package engine executes parsed rules against inbound events.
//
// One event is processed start-to-finish by one logical worker: the engine
// opens a data store session for the pass, loads the group's active rules in
// descending priority order, and walks them through the
// MATCH_WHEN -> EVALUATE_CONDITION -> RUN_ACTIONS state machine. Concurrent
// events in different groups run in independent passes; the only shared
// state is the process-wide statistics and parse caches, both mutex-guarded.
package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/groupkeeper/groupkeeper/internal/cache"
	"github.com/groupkeeper/groupkeeper/internal/lang"
	"github.com/groupkeeper/groupkeeper/internal/resolve"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Error isolation contract:
 *
 *   - A rule that fails to parse is logged and skipped; other rules still run.
 *   - A failing action aborts the remainder of its own rule's action list but
 *     not lower-priority rules.
 *   - The stop action aborts every remaining rule for the event, carried as
 *     an Outcome return value up the call chain.
 *
 * Ordering contract: rules evaluate in strictly descending priority because
 * stop and variable mutations are order-sensitive. One store session per
 * event makes a higher-priority set_var visible to lower-priority reads.
 */

// Session is one event pass's view of the data store. Implementations wrap
// a single transaction so writes within the pass read back consistently.
type Session interface {
	ActiveRules(ctx context.Context, groupID int64) ([]types.PersistedRule, error)
	GetVariable(ctx context.Context, groupID int64, userID *int64, name string) (string, bool, error)
	SetVariable(ctx context.Context, groupID int64, userID *int64, name string, value *string) error
	CountEvents(ctx context.Context, groupID int64, userID *int64, eventType string, since time.Time) (int64, error)
	InsertLog(ctx context.Context, groupID int64, userID *int64, message *string, tag *string, eventType string) error
	Commit() error
	Rollback() error
}

// Store opens per-event sessions.
type Store interface {
	Begin(ctx context.Context) (Session, error)
}

// ParseCacheTTL bounds how long a parsed AST may outlive its script text.
// The cache key includes a script checksum, so edits invalidate immediately;
// the TTL only caps memory for long-gone rules.
const ParseCacheTTL = 10 * time.Minute

// ParseCacheSize caps the parse cache entry count.
const ParseCacheSize = 1024

// Engine evaluates rules for inbound events.
type Engine struct {
	store    Store
	backend  Backend
	resolver *resolve.Resolver
	actions  map[string]ActionFunc
	parsed   *cache.Cache[*lang.ParsedRule]
	logger   *slog.Logger

	eventsProcessed prometheus.Counter
	rulesMatched    prometheus.Counter
}

// pass carries one event through the engine.
type pass struct {
	event   *types.Event
	session Session
	backend Backend
	req     *resolve.Request
	rule    *types.PersistedRule
}

func (p *pass) subject() (*types.Chat, *types.User, error) {
	chat := p.event.EffectiveChat()
	user := p.event.EffectiveUser()
	if chat == nil || user == nil {
		return nil, nil, fmt.Errorf("no chat or user in context")
	}
	return chat, user, nil
}

// subjectOrArg resolves the member an action targets: the numeric argument
// at argIdx when present, else the event's effective user.
func (p *pass) subjectOrArg(action lang.Action, argIdx int) (*types.Chat, int64, error) {
	chat := p.event.EffectiveChat()
	if chat == nil {
		return nil, 0, fmt.Errorf("no chat in context")
	}
	if argIdx < len(action.Args) {
		id, ok := action.Args[argIdx].AsInt()
		if !ok {
			return nil, 0, fmt.Errorf("user id %q is not numeric", action.Args[argIdx].String())
		}
		return chat, id, nil
	}
	user := p.event.EffectiveUser()
	if user == nil {
		return nil, 0, fmt.Errorf("no user in context")
	}
	return chat, user.ID, nil
}

func (p *pass) insertLog(ctx context.Context, message string, tag *string) error {
	var userID *int64
	if u := p.event.EffectiveUser(); u != nil {
		userID = &u.ID
	}
	var msg *string
	if message != "" {
		msg = &message
	}
	return p.session.InsertLog(ctx, p.event.GroupID, userID, msg, tag, "log")
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithResolver replaces the default resolver, e.g. to share a statistics
// cache across engines in tests.
func WithResolver(r *resolve.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithMetrics registers event/rule counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.eventsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "groupkeeper_events_processed_total",
			Help: "Number of events run through the rule engine.",
		})
		e.rulesMatched = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "groupkeeper_rules_matched_total",
			Help: "Number of rules whose condition matched an event.",
		})
		reg.MustRegister(e.eventsProcessed, e.rulesMatched)
	}
}

// New creates an Engine with the built-in action set registered.
func New(store Store, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		backend: backend,
		parsed:  cache.New[*lang.ParsedRule](ParseCacheTTL, ParseCacheSize),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = resolve.New(backend, e.logger)
	}
	e.registerBuiltins()
	return e
}

// ProcessEvent runs one event through all of its group's active rules.
// The returned error covers wiring problems (store failures); user-script
// problems never surface here.
func (e *Engine) ProcessEvent(ctx context.Context, ev *types.Event) error {
	if e.store == nil {
		return types.ErrNoSession
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.ID == "" {
		ev.ID = types.NewEventID()
	}

	session, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin event session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := session.Rollback(); rbErr != nil {
				e.logger.Error("session rollback failed", "error", rbErr)
			}
		}
	}()

	e.recordEvent(ctx, session, ev)

	rules, err := session.ActiveRules(ctx, ev.GroupID)
	if err != nil {
		return fmt.Errorf("load rules for group %d: %w", ev.GroupID, err)
	}

	req := resolve.NewRequest(ev, session)
	for i := range rules {
		rule := &rules[i]
		parsed := e.parseRule(rule)
		if parsed == nil {
			continue
		}
		p := &pass{event: ev, session: session, backend: e.backend, req: req, rule: rule}
		if e.runRule(ctx, p, parsed) == StopAllRules {
			e.logger.Debug("rule processing stopped",
				"rule_id", rule.ID, "rule", rule.Name, "event_id", ev.ID)
			break
		}
	}

	if err := session.Commit(); err != nil {
		return fmt.Errorf("commit event session: %w", err)
	}
	committed = true

	if e.eventsProcessed != nil {
		e.eventsProcessed.Inc()
	}
	return nil
}

// recordEvent appends message/join/leave occurrences to the event log so
// the statistics sub-resolver has something to count. Failures are logged
// and do not abort the pass.
func (e *Engine) recordEvent(ctx context.Context, session Session, ev *types.Event) {
	switch ev.Type {
	case "message", "join", "leave":
	default:
		return
	}
	var userID *int64
	if u := ev.EffectiveUser(); u != nil {
		userID = &u.ID
	}
	if err := session.InsertLog(ctx, ev.GroupID, userID, nil, nil, ev.Type); err != nil {
		e.logger.Error("event log insert failed",
			"group_id", ev.GroupID, "type", ev.Type, "error", err)
	}
}

// parseRule returns the cached or fresh AST for a stored rule, or nil when
// the script does not parse. Lenient-mode warnings surface in the log once
// per cache fill.
func (e *Engine) parseRule(rule *types.PersistedRule) *lang.ParsedRule {
	key := fmt.Sprintf("%s:%x", rule.ID, sha256.Sum256([]byte(rule.Script)))
	if parsed, ok := e.parsed.Get(key); ok {
		return parsed
	}

	parsed, err := lang.ParseRule(rule.Script)
	if err != nil {
		e.logger.Error("rule parse failed",
			"rule_id", rule.ID, "rule", rule.Name, "error", err)
		return nil
	}
	for _, w := range parsed.Warnings {
		e.logger.Warn("rule line skipped",
			"rule_id", rule.ID, "rule", rule.Name, "line", w.Line, "reason", w.Reason)
	}

	e.parsed.Set(key, parsed)
	return parsed
}

// runRule walks one rule's state machine for the event.
func (e *Engine) runRule(ctx context.Context, p *pass, parsed *lang.ParsedRule) Outcome {
	// MATCH_WHEN: a mismatching trigger skips the rule, never errors
	if parsed.When != strings.ToLower(p.event.Type) {
		return Continue
	}

	for _, block := range parsed.Blocks {
		if block.Cond != nil && !e.evalCond(ctx, block.Cond, p) {
			continue
		}
		if e.rulesMatched != nil {
			e.rulesMatched.Inc()
		}
		return e.runActions(ctx, p, block.Actions)
	}

	if parsed.Else != nil {
		if e.rulesMatched != nil {
			e.rulesMatched.Inc()
		}
		return e.runActions(ctx, p, parsed.Else)
	}
	return Continue
}

// evalCond evaluates a condition node. And/Or short-circuit left to right;
// a type-mismatched ordering comparison is false, not fatal.
func (e *Engine) evalCond(ctx context.Context, node lang.CondNode, p *pass) bool {
	switch n := node.(type) {
	case lang.Comparison:
		left := e.operandValue(ctx, n.Left, p)
		right := e.operandValue(ctx, n.Right, p)
		ok, err := compare(n.Op, left, right)
		if err != nil {
			e.logger.Debug("comparison type mismatch",
				"rule_id", p.rule.ID, "left", n.Left, "op", string(n.Op), "right", n.Right)
			return false
		}
		return ok
	case lang.Not:
		return !e.evalCond(ctx, n.Inner, p)
	case lang.And:
		for _, operand := range n.Operands {
			if !e.evalCond(ctx, operand, p) {
				return false
			}
		}
		return true
	case lang.Or:
		for _, operand := range n.Operands {
			if e.evalCond(ctx, operand, p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// operandValue interprets a raw comparison operand: literals directly,
// everything else through the resolver.
func (e *Engine) operandValue(ctx context.Context, raw string, p *pass) types.Value {
	if v, ok := isLiteral(raw); ok {
		return v
	}
	return e.resolver.Resolve(ctx, raw, p.req)
}

// runActions executes a matched block's actions in written order.
func (e *Engine) runActions(ctx context.Context, p *pass, actions []lang.Action) Outcome {
	for _, action := range actions {
		fn, ok := e.actions[action.Name]
		if !ok {
			e.logger.Warn("unknown action skipped",
				"action", action.Name, "rule_id", p.rule.ID, "rule", p.rule.Name)
			continue
		}
		outcome, err := fn(ctx, p, action)
		if err != nil {
			e.logger.Error("action failed",
				"action", action.Name, "rule_id", p.rule.ID, "rule", p.rule.Name, "error", err)
			// Abort this rule's remaining actions; later rules still run
			return Continue
		}
		if outcome == StopAllRules {
			return StopAllRules
		}
	}
	return Continue
}
