package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openMemory(t *testing.T, driver string) *sql.DB {
	t.Helper()
	conn, err := Open(context.Background(), driver, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn := openMemory(t, DriverCGO)
	require.NoError(t, Migrate(context.Background(), conn, nil))
	return conn
}

func mustID(t *testing.T, conn DBExecutor, spelling string) WordID {
	t.Helper()
	id, err := GetOrCreateWordID(context.Background(), conn, spelling)
	require.NoError(t, err)
	return id
}

func TestGetOrCreateWordIDIsIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	id1 := mustID(t, conn, "cat")
	id2 := mustID(t, conn, "cat")
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, Sentinel, id1)

	spelling, ok, err := SpellingOf(ctx, conn, id1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cat", spelling)

	var cnt int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM words WHERE spelling = 'cat'`).Scan(&cnt))
	assert.Equal(t, 1, cnt)
}

func TestSentinelMapsToEmptySpelling(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	spelling, ok, err := SpellingOf(ctx, conn, Sentinel)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", spelling)

	id, ok, err := LookupWordID(ctx, conn, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Sentinel, id)
}

func TestLookupMissingIsNotAnError(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	_, ok, err := LookupWordID(ctx, conn, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = SpellingOf(ctx, conn, 4242)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupWithoutSchemaFails(t *testing.T) {
	conn := openMemory(t, DriverCGO)
	_, _, err := LookupWordID(context.Background(), conn, "x")
	require.Error(t, err)
}

func TestResolveIDsDropsUnknownWords(t *testing.T) {
	conn := setupTestDB(t)
	a := mustID(t, conn, "a")
	b := mustID(t, conn, "b")

	got := ResolveIDs(context.Background(), conn, zap.NewNop(), []string{"a", "zzz", "b"})
	assert.Equal(t, []WordID{a, b}, got)
}

func TestIncrementTrigram(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	a, b, c := mustID(t, conn, "a"), mustID(t, conn, "b"), mustID(t, conn, "c")

	require.NoError(t, IncrementTrigram(ctx, conn, a, b, c))
	rows, err := trigramsWhere(ctx, conn, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, trigram{Word1: a, Word2: b, Word3: c, Freq: 1}, rows[0])

	require.NoError(t, IncrementTrigram(ctx, conn, a, b, c))
	rows, err = trigramsWhere(ctx, conn, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0].Freq)
}

func TestAddPhrasePadsWithSentinels(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, AddPhrase(ctx, conn, []string{"a", "b", "c", "d", "e"}))
	rows, err := trigramsWhere(ctx, conn, Filter{})
	require.NoError(t, err)
	// [0 a b c d e 0] has five windows.
	assert.Len(t, rows, 5)
	assert.Equal(t, Sentinel, rows[0].Word1)
	assert.Equal(t, Sentinel, rows[len(rows)-1].Word3)

	sum, err := GetSummary(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, Summary{Words: 6, Phrases: 5}, sum)

	require.NoError(t, AddPhrase(ctx, conn, nil))
	sum, err = GetSummary(ctx, conn)
	require.NoError(t, err)
	assert.EqualValues(t, 5, sum.Phrases)
}

func TestAddPhraseSingleToken(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, AddPhrase(ctx, conn, []string{"solo"}))

	rows, err := trigramsWhere(ctx, conn, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	solo := mustID(t, conn, "solo")
	assert.Equal(t, trigram{Sentinel, solo, Sentinel, 1}, rows[0])
}

func TestTotalFreqWhere(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, AddPhrase(ctx, conn, []string{"x", "y", "z"}))
	require.NoError(t, AddPhrase(ctx, conn, []string{"x", "y", "w"}))
	require.NoError(t, AddPhrase(ctx, conn, []string{"x", "y", "z"}))
	x, y := mustID(t, conn, "x"), mustID(t, conn, "y")

	total, err := TotalFreqWhere(ctx, conn, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 9, total)

	total, err = TotalFreqWhere(ctx, conn, Filter{}.With(Word1, x).With(Word2, y))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	total, err = TotalFreqWhere(ctx, conn, Filter{}.With(Word1, Sentinel))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	total, err = TotalFreqWhere(ctx, conn, Filter{}.With(Word1, 999))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestWeightedPickBoundaries(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, AddPhrase(ctx, conn, []string{"x", "y", "z"}))
	require.NoError(t, AddPhrase(ctx, conn, []string{"x", "y", "z"}))
	require.NoError(t, AddPhrase(ctx, conn, []string{"x", "y", "w"}))
	x, y := mustID(t, conn, "x"), mustID(t, conn, "y")
	z, w := mustID(t, conn, "z"), mustID(t, conn, "w")
	f := Filter{}.With(Word1, x).With(Word2, y)

	// (x,y,z) was inserted first with freq 2, then (x,y,w) with freq 1.
	for pick, want := range map[int64]WordID{1: z, 2: z, 3: w} {
		got, ok, err := WeightedPick(ctx, conn, f, Word3, pick)
		require.NoError(t, err)
		require.True(t, ok, "pick %d", pick)
		assert.Equal(t, want, got, "pick %d", pick)
	}

	_, ok, err := WeightedPick(ctx, conn, f, Word3, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = WeightedPick(ctx, conn, Filter{}.With(Word1, 999), Word3, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWeightedPickSelectsColumn(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, AddPhrase(ctx, conn, []string{"a", "b", "c"}))
	a, b, c := mustID(t, conn, "a"), mustID(t, conn, "b"), mustID(t, conn, "c")

	got, ok, err := WeightedPick(ctx, conn, Filter{}.With(Word1, a).With(Word3, c), Word2, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b, got)

	got, ok, err = WeightedPick(ctx, conn, Filter{}.With(Word3, c).With(Word2, b), Word1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestCountNearby(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, AddPhrase(ctx, conn, []string{"a", "b", "c", "d", "e"}))
	a, b := mustID(t, conn, "a"), mustID(t, conn, "b")

	// (a,b,c) leads with the pair, (0,a,b) trails with it.
	n, err := CountNearby(ctx, conn, a, b)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = CountNearby(ctx, conn, b, a)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFilterWhere(t *testing.T) {
	clause, args := Filter{}.where()
	assert.Empty(t, clause)
	assert.Empty(t, args)

	f := Filter{}.With(Word3, 7).With(Word1, 5)
	clause, args = f.where()
	assert.Equal(t, " WHERE word1 = ? AND word3 = ?", clause)
	assert.Equal(t, []interface{}{int64(5), int64(7)}, args)
}

func TestPhrasesSpellingView(t *testing.T) {
	conn := setupTestDB(t)
	require.NoError(t, AddPhrase(context.Background(), conn, []string{"hello", "world"}))

	var w1, w2, w3 string
	var freq int
	err := conn.QueryRow(`SELECT word1, word2, word3, freq FROM phrases_spelling WHERE word2 = 'hello'`).
		Scan(&w1, &w2, &w3, &freq)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "hello", "world"}, []string{w1, w2, w3})
	assert.Equal(t, 1, freq)
}

// trigram is one row of the phrases table.
type trigram struct {
	Word1 WordID
	Word2 WordID
	Word3 WordID
	Freq  int64
}

// trigramsWhere lists matching rows in rowid order.
func trigramsWhere(ctx context.Context, db DBExecutor, f Filter) ([]trigram, error) {
	where, args := f.where()
	rows, err := db.QueryContext(ctx, `SELECT word1, word2, word3, freq FROM phrases`+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []trigram
	for rows.Next() {
		var t trigram
		if err := rows.Scan(&t.Word1, &t.Word2, &t.Word3, &t.Freq); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
