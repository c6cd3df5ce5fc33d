// internal/resolve/admin.go
package resolve

import (
	"context"
	"fmt"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

/*
 * Computed-property sub-resolver for user.is_admin.
 *
 * Requires both an effective chat and an effective user; queries the action
 * backend for the member's status and reports true for "creator" or
 * "administrator". The answer is cached per (user id, chat id) for the
 * remainder of the current event-processing pass, not beyond.
 *
 * Any backend failure (network error, bot removed from the chat) yields
 * false and never propagates: a script asking about admin status during an
 * outage should behave as if the user is not one.
 */

func (r *Resolver) resolveAdmin(ctx context.Context, req *Request) types.Value {
	chat := req.Event.EffectiveChat()
	user := req.Event.EffectiveUser()
	if chat == nil || user == nil || r.backend == nil {
		return types.BoolValue(false)
	}

	key := fmt.Sprintf("admin:%d:%d", user.ID, chat.ID)
	if v, ok := req.cached(key); ok {
		return v
	}

	status, err := r.backend.GetMemberStatus(ctx, chat.ID, user.ID)
	if err != nil {
		r.logger.Warn("member status lookup failed",
			"chat_id", chat.ID, "user_id", user.ID, "error", err)
		return req.store(key, types.BoolValue(false))
	}

	isAdmin := status == "creator" || status == "administrator"
	return req.store(key, types.BoolValue(isAdmin))
}
