// internal/resolve/vars.go
package resolve

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Persistent variable sub-resolver.
 *
 * Paths have exactly three dot-separated segments: vars.<scope>.<name>.
 * Scope is "group", "user", or "user_<id>"; anything else yields null, never
 * an error. The stored string is decoded as JSON first; when that fails, a
 * plain integer pattern is tried so values written by external systems in
 * non-JSON form still resolve sensibly, and the raw string is the final
 * fallback.
 */

var (
	userScopePattern = regexp.MustCompile(`^user_([0-9]+)$`)
	integerPattern   = regexp.MustCompile(`^-?[0-9]+$`)
)

// ScopeUserID maps a variable scope string to the subject user id.
// Returns ok=false for a malformed scope, and a nil id for group scope.
// The effectiveUser id stands in for the bare "user" scope; pass nil when
// the current event has no user.
func ScopeUserID(scope string, effectiveUser *int64) (userID *int64, ok bool) {
	switch {
	case scope == "group":
		return nil, true
	case scope == "user":
		if effectiveUser == nil {
			return nil, false
		}
		return effectiveUser, true
	default:
		m := userScopePattern.FindStringSubmatch(scope)
		if m == nil {
			return nil, false
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, false
		}
		return &id, true
	}
}

// resolveVariable is deliberately uncached: a higher-priority rule's set_var
// must be visible to a lower-priority rule's read within the same pass, and
// both run against the pass's single store session.
func (r *Resolver) resolveVariable(ctx context.Context, path string, req *Request) types.Value {
	segments := strings.Split(path, ".")
	if len(segments) != 3 || segments[0] != "vars" {
		return types.Null()
	}
	scope, name := segments[1], segments[2]

	var effective *int64
	if u := req.Event.EffectiveUser(); u != nil {
		effective = &u.ID
	}
	userID, ok := ScopeUserID(scope, effective)
	if !ok {
		return types.Null()
	}

	raw, found, err := req.Vars.GetVariable(ctx, req.Event.GroupID, userID, name)
	if err != nil {
		r.logger.Error("variable lookup failed", "path", path, "error", err)
		return types.Null()
	}
	if !found {
		return types.Null()
	}

	return DecodeStored(raw)
}

// DecodeStored interprets a stored variable string: JSON first, then the
// plain integer fallback, then the raw string itself.
func DecodeStored(raw string) types.Value {
	if v, err := types.FromJSON(raw); err == nil {
		return v
	}
	if integerPattern.MatchString(raw) {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return types.IntValue(i)
		}
	}
	return types.StringValue(raw)
}
