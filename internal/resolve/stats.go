// internal/resolve/stats.go
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Statistics sub-resolver.
 *
 * Paths: user.stats.<event>_<N><unit> and group.stats.<event>_<N><unit>,
 * unit one of h/m/d. The metric name is the event type, accepting the
 * natural plural ("messages_24h" counts "message" events). A malformed
 * numeric prefix or unknown unit yields null.
 *
 * Counts come from the event log via the data store and are cached in the
 * process-wide TTL cache keyed by path plus subject id, shared across
 * passes. Staleness up to StatsCacheTTL is the price of bounding database
 * load for hot statistical conditions.
 */

var statsMetricPattern = regexp.MustCompile(`^([a-z_]+?)s?_([0-9]+)([hmd])$`)

func (r *Resolver) resolveStats(ctx context.Context, path string, req *Request) types.Value {
	segments := strings.Split(path, ".")
	if len(segments) != 3 || segments[1] != "stats" {
		return types.Null()
	}
	subject, metric := segments[0], segments[2]

	m := statsMetricPattern.FindStringSubmatch(metric)
	if m == nil {
		return types.Null()
	}
	eventType := m[1]
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return types.Null()
	}

	var unit time.Duration
	switch m[3] {
	case "h":
		unit = time.Hour
	case "m":
		unit = time.Minute
	case "d":
		unit = 24 * time.Hour
	default:
		return types.Null()
	}

	var userID *int64
	switch subject {
	case "user":
		u := req.Event.EffectiveUser()
		if u == nil {
			return types.Null()
		}
		userID = &u.ID
	case "group":
		userID = nil
	default:
		return types.Null()
	}

	key := fmt.Sprintf("stats:%s:%d", path, req.Event.GroupID)
	if userID != nil {
		key = fmt.Sprintf("%s:%d", key, *userID)
	}
	if v, ok := r.stats.Get(key); ok {
		return v
	}

	since := r.now().Add(-time.Duration(n) * unit)
	count, err := req.Vars.CountEvents(ctx, req.Event.GroupID, userID, eventType, since)
	if err != nil {
		r.logger.Error("event count failed", "path", path, "error", err)
		return types.Null()
	}

	v := types.IntValue(count)
	r.stats.Set(key, v)
	return v
}
