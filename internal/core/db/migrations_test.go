package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUp_AppliesCommentLedStatements(t *testing.T) {
	database, err := Open("sqlite://" + filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, MigrateUp(database))

	// The schema file opens with a comment header and puts comment blocks
	// ahead of the partial unique indexes; all of it must still execute.
	var names []string
	require.NoError(t, database.Select(&names,
		"SELECT name FROM sqlite_master WHERE type IN ('table', 'index')"))
	assert.Contains(t, names, "rules")
	assert.Contains(t, names, "variables")
	assert.Contains(t, names, "event_log")
	assert.Contains(t, names, "idx_variables_user")
	assert.Contains(t, names, "idx_variables_group")
	assert.Contains(t, names, "idx_rules_group_active")

	// Second run is a no-op
	require.NoError(t, MigrateUp(database))

	statuses, err := MigrateStatus(database)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %s not applied", s.ID)
		assert.NotNil(t, s.AppliedAt, "migration %s missing applied_at", s.ID)
	}
}

func TestMigrateUp_DetectsEditedMigration(t *testing.T) {
	database, err := Open("sqlite://" + filepath.Join(t.TempDir(), "checksum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, MigrateUp(database))

	_, err = database.Exec("UPDATE migrations SET checksum = 'tampered'")
	require.NoError(t, err)

	err = MigrateUp(database)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestStripLineComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only comments", "-- a\n-- b", ""},
		{"comment then statement", "-- header\nCREATE TABLE t (id INTEGER)", "CREATE TABLE t (id INTEGER)"},
		{"interleaved", "CREATE TABLE t (\n-- field\nid INTEGER\n)", "CREATE TABLE t (\nid INTEGER\n)"},
		{"whitespace only", "  \n\t\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripLineComments(tt.in))
		})
	}
}
