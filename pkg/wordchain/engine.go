// Package wordchain generates phrases from learned trigram statistics.
//
// An Engine owns no state besides its database handle: every completion
// reads the store through short-lived chain cursors, and every learning call
// writes inside a transaction.
package wordchain

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/japaniel/wordchain/pkg/chain"
	"github.com/japaniel/wordchain/pkg/db"
	"github.com/japaniel/wordchain/pkg/ingest"
	"github.com/japaniel/wordchain/pkg/text"
)

// Engine learns phrases and completes them.
type Engine struct {
	db            *sql.DB
	logger        *zap.Logger
	tokenizer     text.Tokenizer
	workers       int
	progressEvery int
	draw          func(n int64) int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for store errors, loops and ingestion progress.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTokenizer replaces whitespace splitting when learning lines and files.
func WithTokenizer(t text.Tokenizer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tokenizer = t
		}
	}
}

// WithWorkers sets how many goroutines tokenize lines during ReadFile.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithProgressEvery sets the ReadFile progress log interval in lines.
func WithProgressEvery(n int) Option {
	return func(e *Engine) { e.progressEvery = n }
}

// WithDraw replaces the random source. draw(n) must return a value in [1, n].
func WithDraw(draw func(n int64) int64) Option {
	return func(e *Engine) {
		if draw != nil {
			e.draw = draw
		}
	}
}

// New returns an Engine over conn. The schema is not touched; call Migrate
// first on a fresh database.
func New(conn *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:            conn,
		logger:        zap.NewNop(),
		tokenizer:     text.Whitespace{},
		workers:       4,
		progressEvery: 1000,
		draw:          func(n int64) int64 { return rand.Int64N(n) + 1 },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Migrate brings the schema up to date.
func (e *Engine) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, e.db, e.logger)
}

// Summary counts stored words and phrases.
func (e *Engine) Summary(ctx context.Context) (db.Summary, error) {
	return db.GetSummary(ctx, e.db)
}

// AddPhrase learns one phrase in its own transaction.
func (e *Engine) AddPhrase(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add phrase: %w", err)
	}
	defer tx.Rollback()

	if err := db.AddPhrase(ctx, tx, tokens); err != nil {
		return err
	}
	return tx.Commit()
}

// AddLine tokenizes line and learns it as one phrase.
func (e *Engine) AddLine(ctx context.Context, line string) error {
	return e.AddPhrase(ctx, e.tokenizer.Tokenize(line))
}

// ReadFile learns every line of the file at path. Unreadable lines are
// skipped; a write failure leaves the store untouched.
func (e *Engine) ReadFile(ctx context.Context, path string) (ingest.Report, error) {
	report, err := e.ingester().IngestFile(ctx, path)
	if err != nil {
		return report, err
	}
	e.logger.Info("added lines from file", zap.String("path", path), zap.Int("lines", report.Lines))
	return report, nil
}

// ReadLines learns each element of lines as one phrase, all in one
// transaction.
func (e *Engine) ReadLines(ctx context.Context, lines []string) (ingest.Report, error) {
	return e.ingester().IngestLines(ctx, lines)
}

func (e *Engine) ingester() *ingest.Ingester {
	ig := ingest.NewIngester(e.db)
	ig.Tokenizer = e.tokenizer
	ig.Logger = e.logger
	ig.Workers = e.workers
	ig.ProgressEvery = e.progressEvery
	return ig
}

func (e *Engine) cursor(mode chain.Mode, seed []db.WordID) *chain.Cursor {
	c := chain.New(db.Store{Exec: e.db}, mode, seed, e.logger)
	c.Draw = e.draw
	return c
}
