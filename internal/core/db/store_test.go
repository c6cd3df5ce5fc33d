package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupkeeper/groupkeeper/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, MigrateUp(database))

	store, err := NewStore(database)
	require.NoError(t, err)
	return store
}

func str(s string) *string { return &s }

func TestStore_VariableLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session, err := store.Begin(ctx)
	require.NoError(t, err)

	// Unset variable reads as absent
	_, found, err := session.GetVariable(ctx, 100, nil, "greeting")
	require.NoError(t, err)
	assert.False(t, found)

	// Insert, then read back
	require.NoError(t, session.SetVariable(ctx, 100, nil, "greeting", str(`"hello"`)))
	v, found, err := session.GetVariable(ctx, 100, nil, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `"hello"`, v)

	// Second write updates in place
	require.NoError(t, session.SetVariable(ctx, 100, nil, "greeting", str(`"hi"`)))
	v, _, err = session.GetVariable(ctx, 100, nil, "greeting")
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, v)

	// Nil deletes
	require.NoError(t, session.SetVariable(ctx, 100, nil, "greeting", nil))
	_, found, err = session.GetVariable(ctx, 100, nil, "greeting")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, session.Commit())
}

func TestStore_VariableScopes(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	seven := int64(7)
	nine := int64(9)

	session, err := store.Begin(ctx)
	require.NoError(t, err)

	// Same name in three scopes stays three independent variables
	require.NoError(t, session.SetVariable(ctx, 100, nil, "count", str("1")))
	require.NoError(t, session.SetVariable(ctx, 100, &seven, "count", str("2")))
	require.NoError(t, session.SetVariable(ctx, 100, &nine, "count", str("3")))

	v, _, err := session.GetVariable(ctx, 100, nil, "count")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	v, _, err = session.GetVariable(ctx, 100, &seven, "count")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	v, _, err = session.GetVariable(ctx, 100, &nine, "count")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	// Another group does not see them
	_, found, err := session.GetVariable(ctx, 200, nil, "count")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, session.Commit())
}

func TestStore_ListVariables(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	seven := int64(7)

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.SetVariable(ctx, 100, nil, "topic", str(`"go"`)))
	require.NoError(t, session.SetVariable(ctx, 100, &seven, "warnings", str("2")))
	require.NoError(t, session.SetVariable(ctx, 200, nil, "other", str("1")))
	require.NoError(t, session.Commit())

	vars, err := store.ListVariables(ctx, 100)
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Nil(t, vars[0].UserID)
	assert.Equal(t, "topic", vars[0].Name)
	require.NotNil(t, vars[1].UserID)
	assert.Equal(t, int64(7), *vars[1].UserID)
	assert.Equal(t, "2", vars[1].Value)
}

func TestStore_RecentLogs(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	seven := int64(7)

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.InsertLog(ctx, 100, &seven, nil, nil, "message"))
	current = current.Add(time.Minute)
	require.NoError(t, session.InsertLog(ctx, 100, &seven, str("flood detected"), str("warn"), "log"))
	require.NoError(t, session.Commit())

	entries, err := store.RecentLogs(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, "log", entries[0].EventType)
	require.NotNil(t, entries[0].Message)
	assert.Equal(t, "flood detected", *entries[0].Message)
	require.NotNil(t, entries[0].Tag)
	assert.Equal(t, "warn", *entries[0].Tag)
	assert.Equal(t, int64(1_700_000_060), entries[0].CreatedAt)
	assert.Equal(t, "message", entries[1].EventType)

	entries, err = store.RecentLogs(ctx, 100, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_VariablesVisibleAfterCommit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.SetVariable(ctx, 100, nil, "x", str("1")))
	require.NoError(t, session.Commit())

	session2, err := store.Begin(ctx)
	require.NoError(t, err)
	v, found, err := session2.GetVariable(ctx, 100, nil, "x")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", v)
	require.NoError(t, session2.Rollback())
}

func TestStore_CountEvents(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	seven := int64(7)
	nine := int64(9)

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	session, err := store.Begin(ctx)
	require.NoError(t, err)

	// Three messages for user 7 over time, one for user 9, one join
	for _, offset := range []time.Duration{0, 10 * time.Minute, 20 * time.Minute} {
		current = time.Unix(1_700_000_000, 0).Add(offset)
		require.NoError(t, session.InsertLog(ctx, 100, &seven, nil, nil, "message"))
	}
	require.NoError(t, session.InsertLog(ctx, 100, &nine, nil, nil, "message"))
	require.NoError(t, session.InsertLog(ctx, 100, &seven, nil, nil, "join"))

	since := time.Unix(1_700_000_000, 0).Add(5 * time.Minute)

	n, err := session.CountEvents(ctx, 100, &seven, "message", since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "only entries at or after the cutoff count")

	n, err = session.CountEvents(ctx, 100, nil, "message", time.Unix(1_600_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "group-wide count spans users")

	n, err = session.CountEvents(ctx, 100, &seven, "join", time.Unix(1_600_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = session.CountEvents(ctx, 999, nil, "message", time.Unix(1_600_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, session.Commit())
}

func TestStore_RuleCRUDAndOrdering(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	low := &types.PersistedRule{GroupID: 100, Name: "low", Priority: 1, Script: "WHEN message THEN\nstop\nEND", IsActive: true}
	high := &types.PersistedRule{GroupID: 100, Name: "high", Priority: 10, Script: "WHEN message THEN\nstop\nEND", IsActive: true}
	off := &types.PersistedRule{GroupID: 100, Name: "off", Priority: 99, Script: "WHEN message THEN\nstop\nEND", IsActive: false}
	other := &types.PersistedRule{GroupID: 200, Name: "other", Priority: 5, Script: "WHEN message THEN\nstop\nEND", IsActive: true}

	for _, r := range []*types.PersistedRule{low, high, off, other} {
		require.NoError(t, store.SaveRule(ctx, r))
		assert.NotEmpty(t, r.ID, "SaveRule assigns an id")
	}

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	active, err := session.ActiveRules(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, session.Rollback())

	// Inactive and other-group rules are filtered; priority descends
	require.Len(t, active, 2)
	assert.Equal(t, "high", active[0].Name)
	assert.Equal(t, "low", active[1].Name)

	// Update flips activity
	off.IsActive = true
	require.NoError(t, store.UpdateRule(ctx, off))
	got, err := store.GetRule(ctx, off.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	all, err := store.AllActiveRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, store.DeleteRule(ctx, low.ID))
	_, err = store.GetRule(ctx, low.ID)
	assert.Error(t, err)

	rules, err := store.ListRules(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestStore_PruneEventLog(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.InsertLog(ctx, 100, nil, nil, nil, "message"))
	current = current.Add(48 * time.Hour)
	require.NoError(t, session.InsertLog(ctx, 100, nil, nil, nil, "message"))
	require.NoError(t, session.Commit())

	removed, err := store.PruneEventLog(ctx, time.Unix(1_700_000_000, 0).Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_InsertLogPayload(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	seven := int64(7)

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.InsertLog(ctx, 100, &seven, str("spam removed"), str("warn"), "log"))
	require.NoError(t, session.Commit())

	n, err := func() (int64, error) {
		s, err := store.Begin(ctx)
		if err != nil {
			return 0, err
		}
		defer s.Rollback()
		return s.CountEvents(ctx, 100, &seven, "log", time.Unix(0, 0))
	}()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
