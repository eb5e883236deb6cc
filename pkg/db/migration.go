package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Migration is a named batch of schema statements. Once released, a
// migration's ID and SQL never change; new schema work is appended.
type Migration struct {
	ID  string
	SQL string
}

// BaseMigration creates the migration log itself. It is detected by the
// presence of the log table rather than by a log entry.
func BaseMigration() Migration {
	return Migration{
		ID:  "init",
		SQL: "create table migrations ( m_id primary key );",
	}
}

// Migrations returns every migration after the base one, in apply order.
func Migrations() []Migration {
	return []Migration{
		{
			ID: "words_and_phrases_init",
			SQL: `
        CREATE TABLE words (word_id integer primary key autoincrement, spelling text not null);
        CREATE TABLE phrases (
            word1 integer not null, word2 integer not null, word3 integer not null, freq integer not null,
            foreign key (word1) references words(word_id),
            foreign key (word2) references words(word_id),
            foreign key (word3) references words(word_id)
        );
        insert into words (word_id, spelling) values (0,'');
        CREATE UNIQUE INDEX idx_words on words (word_id);
        CREATE UNIQUE INDEX idx_spelling on words (spelling);
        CREATE UNIQUE INDEX idx_phrases_u on phrases (word1,word2,word3);`,
		},
		{
			ID: "phrases_spelling_view",
			SQL: `
        create view phrases_spelling as
        select w1.spelling as word1, w2.spelling as word2, w3.spelling as word3, freq
        from phrases
        inner join words w1 on phrases.word1 = w1.word_id
        inner join words w2 on phrases.word2 = w2.word_id
        inner join words w3 on phrases.word3 = w3.word_id;`,
		},
		{
			// No middle (word1, word3) index: middle lookups run once per
			// completion and can use idx_phrases_u.
			ID:  "idx_phrases_backward",
			SQL: "create index idx_phrases_backward on phrases(word3, word2);",
		},
	}
}

// Migrator applies pending migrations to a database.
type Migrator struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// Migrate brings conn up to the latest schema. It is safe to call on every
// startup, against an empty database or one from an older version.
func Migrate(ctx context.Context, conn *sql.DB, logger *zap.Logger) error {
	m := &Migrator{DB: conn, Logger: logger}
	return m.Migrate(ctx)
}

// Migrate runs the base migration if needed, then every migration not yet
// recorded in the log, in declared order.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.baseMigration(ctx); err != nil {
		return err
	}
	for _, mig := range Migrations() {
		applied, err := m.isApplied(ctx, mig)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := m.run(ctx, mig); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) baseMigration(ctx context.Context) error {
	var name string
	err := m.DB.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='migrations'`).Scan(&name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check migrations table: %w", err)
	}
	return m.run(ctx, BaseMigration())
}

// isApplied reports whether mig is in the log. A missing log table means
// nothing has been applied yet.
func (m *Migrator) isApplied(ctx context.Context, mig Migration) (bool, error) {
	var one int
	err := m.DB.QueryRowContext(ctx, `SELECT 1 FROM migrations WHERE m_id = ?`, mig.ID).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), isNoSuchTableErr(err):
		return false, nil
	default:
		return false, fmt.Errorf("check migration %q: %w", mig.ID, err)
	}
}

// run executes the batch and records it in a single transaction.
func (m *Migrator) run(ctx context.Context, mig Migration) error {
	m.logger().Info("run migration", zap.String("id", mig.ID))

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %q: begin: %w", mig.ID, err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, stmt := range splitStatements(mig.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %q: %w", mig.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (m_id) VALUES (?)`, mig.ID); err != nil {
		return fmt.Errorf("migration %q: record: %w", mig.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %q: commit: %w", mig.ID, err)
	}
	return nil
}

func (m *Migrator) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// AppliedMigrations lists the ids recorded in the log in insertion order.
func AppliedMigrations(ctx context.Context, conn DBExecutor) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `SELECT m_id FROM migrations ORDER BY rowid`)
	if err != nil {
		if isNoSuchTableErr(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// splitStatements breaks a batch on ';'. Migration SQL must not contain
// semicolons inside string literals or trigger bodies.
func splitStatements(batch string) []string {
	var out []string
	for _, s := range strings.Split(batch, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func isNoSuchTableErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}
