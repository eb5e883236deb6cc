package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaObjects(t *testing.T, conn *sql.DB) map[string]string {
	t.Helper()
	rows, err := conn.Query(`SELECT name, type FROM sqlite_master WHERE name NOT LIKE 'sqlite_%'`)
	require.NoError(t, err)
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, typ string
		require.NoError(t, rows.Scan(&name, &typ))
		out[name] = typ
	}
	require.NoError(t, rows.Err())
	return out
}

// TestMigrateCreatesFinalSchema verifies a fresh database gets every table,
// index and view of the on-disk layout, plus the sentinel word.
func TestMigrateCreatesFinalSchema(t *testing.T) {
	conn := setupTestDB(t)

	objs := schemaObjects(t, conn)
	assert.Equal(t, "table", objs["migrations"])
	assert.Equal(t, "table", objs["words"])
	assert.Equal(t, "table", objs["phrases"])
	assert.Equal(t, "view", objs["phrases_spelling"])
	for _, idx := range []string{"idx_words", "idx_spelling", "idx_phrases_u", "idx_phrases_backward"} {
		assert.Equal(t, "index", objs[idx], idx)
	}

	var spelling string
	require.NoError(t, conn.QueryRow(`SELECT spelling FROM words WHERE word_id = 0`).Scan(&spelling))
	assert.Equal(t, "", spelling)

	ids, err := AppliedMigrations(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "words_and_phrases_init", "phrases_spelling_view", "idx_phrases_backward"}, ids)
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	before := schemaObjects(t, conn)

	require.NoError(t, Migrate(context.Background(), conn, nil))
	require.NoError(t, Migrate(context.Background(), conn, nil))

	assert.Equal(t, before, schemaObjects(t, conn))
	ids, err := AppliedMigrations(context.Background(), conn)
	require.NoError(t, err)
	assert.Len(t, ids, len(Migrations())+1)
}

// TestMigrateUpgradesOlderSchema simulates a database created before the
// later migrations existed.
func TestMigrateUpgradesOlderSchema(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t, DriverCGO)

	m := &Migrator{DB: conn}
	require.NoError(t, m.baseMigration(ctx))
	require.NoError(t, m.run(ctx, Migrations()[0]))
	_, err := conn.Exec(`INSERT INTO words (spelling) VALUES ('kept')`)
	require.NoError(t, err)

	require.NoError(t, m.Migrate(ctx))

	objs := schemaObjects(t, conn)
	assert.Equal(t, "view", objs["phrases_spelling"])
	assert.Equal(t, "index", objs["idx_phrases_backward"])
	_, ok, err := LookupWordID(ctx, conn, "kept")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsAppliedWithoutLogTable(t *testing.T) {
	conn := openMemory(t, DriverCGO)
	m := &Migrator{DB: conn}
	applied, err := m.isApplied(context.Background(), Migrations()[0])
	require.NoError(t, err)
	assert.False(t, applied)

	ids, err := AppliedMigrations(context.Background(), conn)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t, DriverCGO)
	m := &Migrator{DB: conn}
	require.NoError(t, m.baseMigration(ctx))

	bad := Migration{ID: "broken", SQL: "create table ok_table (x integer); create tabel nope;"}
	err := m.run(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)

	objs := schemaObjects(t, conn)
	assert.NotContains(t, objs, "ok_table")
	applied, err := m.isApplied(ctx, bad)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMigrateWithPureGoDriver(t *testing.T) {
	conn := openMemory(t, DriverPure)
	require.NoError(t, Migrate(context.Background(), conn, nil))
	require.NoError(t, Migrate(context.Background(), conn, nil))

	ids, err := AppliedMigrations(context.Background(), conn)
	require.NoError(t, err)
	assert.Len(t, ids, len(Migrations())+1)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("  a ;\n b;;\n\t;c")
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", ":memory:")
	require.Error(t, err)
}
