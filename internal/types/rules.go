// internal/types/rules.go
package types

/*
 * Persisted domain types for the rule engine.
 *
 * PersistedRule is the stored, user-authored form of a rule: only the script
 * text is persisted, never the parsed AST. The AST lives in internal/lang and
 * is derived fresh (or from a parse cache) each time a rule runs.
 *
 * StateVariable rows carry the uniqueness invariant over
 * (group_id, user_id, name); user_id NULL denotes a group-scoped variable.
 * Values are JSON-encoded strings so external writers can interoperate.
 */

// PersistedRule is one stored rule script plus its scheduling metadata.
// The host fetches rules filtered by group and is_active, ordered by
// priority descending with id as the tie-break, before parsing.
type PersistedRule struct {
	ID       RuleID `db:"id"`
	GroupID  int64  `db:"group_id"`
	Name     string `db:"name"`
	Priority int    `db:"priority"`
	Script   string `db:"script"`
	IsActive bool   `db:"is_active"`
}

// StateVariable is one persistent script variable. UserID nil scopes the
// variable to the whole group.
type StateVariable struct {
	GroupID int64  `db:"group_id"`
	UserID  *int64 `db:"user_id"`
	Name    string `db:"name"`
	Value   string `db:"value"`
}

// LogEntry is one event-log row. Message/non-message events feed the
// statistics sub-resolver; script log/warn actions land here too.
type LogEntry struct {
	GroupID   int64   `db:"group_id"`
	UserID    *int64  `db:"user_id"`
	EventType string  `db:"event_type"`
	Message   *string `db:"message"`
	Tag       *string `db:"tag"`
	CreatedAt int64   `db:"created_at"` // unix seconds
}
