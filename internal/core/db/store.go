package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

// Store is the persistent rule and state store. All event-pass access goes
// through a Session so writes within one pass read back consistently.
type Store struct {
	db      *sqlx.DB
	queries *Queries
	now     func() time.Time
}

// NewStore wraps an open database handle. Queries are loaded once from the
// embedded .sql files; a load failure is a packaging bug, not a runtime
// condition.
func NewStore(database *sqlx.DB) (*Store, error) {
	queries, err := LoadQueries(database)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	return &Store{db: database, queries: queries, now: time.Now}, nil
}

// SetClock overrides the store's time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// ListRules returns every rule for a group, active or not.
func (s *Store) ListRules(ctx context.Context, groupID int64) ([]types.PersistedRule, error) {
	var rules []types.PersistedRule
	if err := s.queries.Select("list-rules", &rules, groupID); err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}
	return rules, nil
}

// AllActiveRules returns every active rule across all groups. The scheduler
// uses this to find schedule() triggers.
func (s *Store) AllActiveRules(ctx context.Context) ([]types.PersistedRule, error) {
	var rules []types.PersistedRule
	if err := s.queries.Select("list-all-active-rules", &rules); err != nil {
		return nil, fmt.Errorf("select active rules: %w", err)
	}
	return rules, nil
}

// GetRule returns one rule by id.
func (s *Store) GetRule(ctx context.Context, id types.RuleID) (*types.PersistedRule, error) {
	var rule types.PersistedRule
	if err := s.queries.Get("get-rule", &rule, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %s not found", id)
		}
		return nil, fmt.Errorf("select rule: %w", err)
	}
	return &rule, nil
}

// SaveRule inserts a rule, assigning an id when the caller left it empty.
func (s *Store) SaveRule(ctx context.Context, rule *types.PersistedRule) error {
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}
	if _, err := s.queries.Exec("insert-rule",
		string(rule.ID), rule.GroupID, rule.Name, rule.Priority, rule.Script, rule.IsActive); err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// UpdateRule rewrites a stored rule's mutable fields.
func (s *Store) UpdateRule(ctx context.Context, rule *types.PersistedRule) error {
	if _, err := s.queries.Exec("update-rule",
		rule.Name, rule.Priority, rule.Script, rule.IsActive, string(rule.ID)); err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(ctx context.Context, id types.RuleID) error {
	if _, err := s.queries.Exec("delete-rule", string(id)); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// ListVariables returns a group's persistent variables, ordered by user
// scope and name.
func (s *Store) ListVariables(ctx context.Context, groupID int64) ([]types.StateVariable, error) {
	var vars []types.StateVariable
	if err := s.queries.Select("list-variables", &vars, groupID); err != nil {
		return nil, fmt.Errorf("select variables: %w", err)
	}
	return vars, nil
}

// RecentLogs returns a group's newest event log entries, most recent first.
func (s *Store) RecentLogs(ctx context.Context, groupID int64, limit int) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	if err := s.queries.Select("list-event-log", &entries, groupID, limit); err != nil {
		return nil, fmt.Errorf("select event log: %w", err)
	}
	return entries, nil
}

// PruneEventLog drops event log entries older than before. Returns the
// number of rows removed.
func (s *Store) PruneEventLog(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.queries.Exec("prune-event-log", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune event log: %w", err)
	}
	return result.RowsAffected()
}

// Begin opens a session backed by one database transaction.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Session{tx: tx, queries: s.queries, now: s.now}, nil
}

// Session is one transaction's worth of store access.
type Session struct {
	tx      *sqlx.Tx
	queries *Queries
	now     func() time.Time
}

// ActiveRules returns a group's active rules ordered by descending priority,
// ties broken by id for determinism.
func (s *Session) ActiveRules(ctx context.Context, groupID int64) ([]types.PersistedRule, error) {
	query, err := s.queries.Raw("list-active-rules")
	if err != nil {
		return nil, err
	}
	var rules []types.PersistedRule
	if err := s.tx.SelectContext(ctx, &rules, query, groupID); err != nil {
		return nil, fmt.Errorf("select active rules: %w", err)
	}
	return rules, nil
}

// GetVariable reads one persistent variable. The second return value is
// false when the variable does not exist.
func (s *Session) GetVariable(ctx context.Context, groupID int64, userID *int64, name string) (string, bool, error) {
	var query string
	var err error
	var args []interface{}

	if userID == nil {
		query, err = s.queries.Raw("get-group-variable")
		args = []interface{}{groupID, name}
	} else {
		query, err = s.queries.Raw("get-user-variable")
		args = []interface{}{groupID, *userID, name}
	}
	if err != nil {
		return "", false, err
	}

	var value string
	if err := s.tx.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select variable %s: %w", name, err)
	}
	return value, true, nil
}

// SetVariable writes or deletes one persistent variable. A nil value deletes.
// Writes go update-then-insert rather than an upsert: the variables table
// carries two partial unique indexes (user-scoped and group-scoped) and
// ON CONFLICT against a partial index is spelled differently per driver.
func (s *Session) SetVariable(ctx context.Context, groupID int64, userID *int64, name string, value *string) error {
	if value == nil {
		return s.deleteVariable(ctx, groupID, userID, name)
	}

	var query string
	var err error
	var args []interface{}

	if userID == nil {
		query, err = s.queries.Raw("update-group-variable")
		args = []interface{}{*value, groupID, name}
	} else {
		query, err = s.queries.Raw("update-user-variable")
		args = []interface{}{*value, groupID, *userID, name}
	}
	if err != nil {
		return err
	}

	result, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update variable %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update variable %s: %w", name, err)
	}
	if affected > 0 {
		return nil
	}

	insert, err := s.queries.Raw("insert-variable")
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, insert, groupID, userID, name, *value); err != nil {
		return fmt.Errorf("insert variable %s: %w", name, err)
	}
	return nil
}

func (s *Session) deleteVariable(ctx context.Context, groupID int64, userID *int64, name string) error {
	var query string
	var err error
	var args []interface{}

	if userID == nil {
		query, err = s.queries.Raw("delete-group-variable")
		args = []interface{}{groupID, name}
	} else {
		query, err = s.queries.Raw("delete-user-variable")
		args = []interface{}{groupID, *userID, name}
	}
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete variable %s: %w", name, err)
	}
	return nil
}

// CountEvents counts event log entries of one type at or after since,
// group-wide when userID is nil.
func (s *Session) CountEvents(ctx context.Context, groupID int64, userID *int64, eventType string, since time.Time) (int64, error) {
	var query string
	var err error
	var args []interface{}

	if userID == nil {
		query, err = s.queries.Raw("count-group-events")
		args = []interface{}{groupID, eventType, since.Unix()}
	} else {
		query, err = s.queries.Raw("count-user-events")
		args = []interface{}{groupID, *userID, eventType, since.Unix()}
	}
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.tx.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s events: %w", eventType, err)
	}
	return count, nil
}

// InsertLog appends one event log entry stamped with the session clock.
func (s *Session) InsertLog(ctx context.Context, groupID int64, userID *int64, message *string, tag *string, eventType string) error {
	query, err := s.queries.Raw("insert-event-log")
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, query, groupID, userID, eventType, message, tag, s.now().Unix()); err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Commit finishes the session's transaction.
func (s *Session) Commit() error {
	return s.tx.Commit()
}

// Rollback abandons the session's transaction.
func (s *Session) Rollback() error {
	return s.tx.Rollback()
}
