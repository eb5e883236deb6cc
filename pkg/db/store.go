package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetOrCreateWordID returns the id of spelling, inserting a new word if it
// has not been seen before.
func GetOrCreateWordID(ctx context.Context, db DBExecutor, spelling string) (WordID, error) {
	id, ok, err := LookupWordID(ctx, db, spelling)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO words (spelling) VALUES (?)`, spelling); err != nil {
		return 0, fmt.Errorf("insert word %q: %w", spelling, err)
	}
	id, ok, err = LookupWordID(ctx, db, spelling)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("word %q missing after insert", spelling)
	}
	return id, nil
}

// LookupWordID returns the id of spelling without creating it. A spelling
// that was never interned is reported with ok=false and a nil error.
func LookupWordID(ctx context.Context, db DBExecutor, spelling string) (id WordID, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT word_id FROM words WHERE spelling = ?`, spelling).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup word %q: %w", spelling, err)
	}
	return id, true, nil
}

// SpellingOf is the reverse of LookupWordID. Unknown ids report ok=false.
func SpellingOf(ctx context.Context, db DBExecutor, id WordID) (spelling string, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT spelling FROM words WHERE word_id = ?`, int64(id)).Scan(&spelling)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("spelling of %d: %w", id, err)
	}
	return spelling, true, nil
}

// ResolveIDs maps spellings to ids for completion. Unknown words and lookup
// errors are logged and dropped; nothing is created.
func ResolveIDs(ctx context.Context, db DBExecutor, logger *zap.Logger, spellings []string) []WordID {
	ids := make([]WordID, 0, len(spellings))
	for _, s := range spellings {
		id, ok, err := LookupWordID(ctx, db, s)
		if err != nil {
			logger.Warn("ignoring word lookup error", zap.String("word", s), zap.Error(err))
			continue
		}
		if !ok {
			logger.Debug("ignoring unknown word", zap.String("word", s))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IncrementTrigram raises the frequency of (w1, w2, w3) by one, creating the
// row at frequency 1 on first sight.
func IncrementTrigram(ctx context.Context, db DBExecutor, w1, w2, w3 WordID) error {
	_, err := db.ExecContext(ctx, `INSERT INTO phrases (word1, word2, word3, freq) VALUES (?, ?, ?, 1)
	ON CONFLICT(word1, word2, word3) DO UPDATE SET freq = phrases.freq + 1`,
		int64(w1), int64(w2), int64(w3))
	if err != nil {
		return fmt.Errorf("increment (%d,%d,%d): %w", w1, w2, w3, err)
	}
	return nil
}

// AddPhrase interns tokens and counts every trigram window of the
// sentinel-padded phrase. An empty phrase is a no-op.
func AddPhrase(ctx context.Context, db DBExecutor, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	ids := make([]WordID, 0, len(tokens)+2)
	ids = append(ids, Sentinel)
	for _, t := range tokens {
		id, err := GetOrCreateWordID(ctx, db, t)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	ids = append(ids, Sentinel)

	for i := 0; i+2 < len(ids); i++ {
		if err := IncrementTrigram(ctx, db, ids[i], ids[i+1], ids[i+2]); err != nil {
			return err
		}
	}
	return nil
}

// TotalFreqWhere sums freq over the rows matching f. No matching rows sum
// to zero.
func TotalFreqWhere(ctx context.Context, db DBExecutor, f Filter) (int64, error) {
	where, args := f.where()
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(freq), 0) FROM phrases`+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum freq: %w", err)
	}
	return total, nil
}

// WeightedPick walks the rows matching f in rowid order, subtracting each
// row's freq from pick, and returns column sel of the row where pick is used
// up. pick must be in [1, TotalFreqWhere(f)]; ok is false when no row is
// reached.
func WeightedPick(ctx context.Context, db DBExecutor, f Filter, sel Column, pick int64) (id WordID, ok bool, err error) {
	where, args := f.where()
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT freq, %s FROM phrases%s ORDER BY rowid`, sel, where), args...)
	if err != nil {
		return 0, false, fmt.Errorf("weighted pick: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var freq int64
		var word WordID
		if err := rows.Scan(&freq, &word); err != nil {
			return 0, false, fmt.Errorf("weighted pick: %w", err)
		}
		if pick <= freq {
			return word, true, nil
		}
		pick -= freq
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("weighted pick: %w", err)
	}
	return 0, false, nil
}

// CountNearby sums the support for the ordered pair (w1, w2) appearing as
// either the leading or the trailing two positions of a trigram.
func CountNearby(ctx context.Context, db DBExecutor, w1, w2 WordID) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(freq), 0) FROM phrases
	WHERE (word1 = ? AND word2 = ?) OR (word2 = ? AND word3 = ?)`,
		int64(w1), int64(w2), int64(w1), int64(w2)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count nearby (%d,%d): %w", w1, w2, err)
	}
	return n, nil
}

// GetSummary counts words and phrases.
func GetSummary(ctx context.Context, db DBExecutor) (Summary, error) {
	var s Summary
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM words`).Scan(&s.Words); err != nil {
		return s, fmt.Errorf("count words: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM phrases`).Scan(&s.Phrases); err != nil {
		return s, fmt.Errorf("count phrases: %w", err)
	}
	return s, nil
}

// Store binds the trigram queries to one executor so they can be handed to
// a chain cursor.
type Store struct {
	Exec DBExecutor
}

func (s Store) TotalFreqWhere(ctx context.Context, f Filter) (int64, error) {
	return TotalFreqWhere(ctx, s.Exec, f)
}

func (s Store) WeightedPick(ctx context.Context, f Filter, sel Column, pick int64) (WordID, bool, error) {
	return WeightedPick(ctx, s.Exec, f, sel, pick)
}
