// internal/resolve/resolver.go

// Package resolve maps script-level variable paths to runtime values.
//
// A single Resolver is shared by all event-processing passes; per-pass state
// (the event, the data store session, and the request cache) travels in a
// Request. Resolution never returns an error to the caller: paths that hit
// missing data resolve to the null value so user-authored scripts stay
// resilient, and genuine backend failures are logged and defaulted.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/groupkeeper/groupkeeper/internal/cache"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Dispatch order is load-bearing, not incidental, because some path families
 * are syntactic prefixes of others:
 *
 *   1. command*            command sub-resolver (shell-lexed, request-cached)
 *   2. vars.*              persistent variables via the data store
 *   3. user.is_admin       member status via the action backend
 *   4. *.stats.*           event-log aggregation, shared TTL cache
 *   5. time.unix           fresh epoch seconds, never cached
 *   6. everything else     enumerated field schema over the event context
 */

// VariableStore is the slice of the data store session the resolver reads.
type VariableStore interface {
	GetVariable(ctx context.Context, groupID int64, userID *int64, name string) (string, bool, error)
	CountEvents(ctx context.Context, groupID int64, userID *int64, eventType string, since time.Time) (int64, error)
}

// MemberStatusChecker is the slice of the action backend the resolver uses
// for the user.is_admin computed property.
type MemberStatusChecker interface {
	GetMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// Request carries one event-processing pass through the resolver: the event
// context, the pass's store session, and the per-request cache. Its lifetime
// is exactly one pass; it is not safe for concurrent use and is never shared
// between passes.
type Request struct {
	Event *types.Event
	Vars  VariableStore

	values  map[string]types.Value
	command *parsedCommand
	cmdKey  string
}

// NewRequest creates the per-pass resolution state for one event.
func NewRequest(ev *types.Event, vars VariableStore) *Request {
	return &Request{
		Event:  ev,
		Vars:   vars,
		values: make(map[string]types.Value),
	}
}

func (r *Request) cached(key string) (types.Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r *Request) store(key string, v types.Value) types.Value {
	r.values[key] = v
	return v
}

// Resolver dispatches dotted variable paths to the matching sub-resolver.
type Resolver struct {
	backend MemberStatusChecker
	stats   *cache.Cache[types.Value]
	logger  *slog.Logger
	now     func() time.Time
}

// StatsCacheTTL is how stale a statistics count may get. Shared across the
// whole process, it bounds database load for hot statistical conditions.
const StatsCacheTTL = 60 * time.Second

// StatsCacheSize caps the shared statistics cache entry count.
const StatsCacheSize = 4096

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source, for tests and for time.unix.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithStatsCache replaces the default statistics cache, letting the host
// attach metrics or choose different bounds.
func WithStatsCache(c *cache.Cache[types.Value]) Option {
	return func(r *Resolver) { r.stats = c }
}

// New creates a Resolver. backend may be nil when no action backend is
// wired; user.is_admin then resolves to false.
func New(backend MemberStatusChecker, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		backend: backend,
		stats:   cache.New[types.Value](StatsCacheTTL, StatsCacheSize),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps one dotted path to a value for the given pass. Dead ends
// resolve to null, never an error.
func (r *Resolver) Resolve(ctx context.Context, path string, req *Request) types.Value {
	switch {
	case path == "command" || strings.HasPrefix(path, "command."):
		return r.resolveCommand(path, req)
	case strings.HasPrefix(path, "vars."):
		return r.resolveVariable(ctx, path, req)
	case path == "user.is_admin":
		return r.resolveAdmin(ctx, req)
	case strings.HasPrefix(path, "user.stats.") || strings.HasPrefix(path, "group.stats."):
		return r.resolveStats(ctx, path, req)
	case path == "time.unix":
		// Computed fresh each call, deliberately uncached
		return types.IntValue(r.now().Unix())
	default:
		return resolveGeneric(req.Event, path)
	}
}
