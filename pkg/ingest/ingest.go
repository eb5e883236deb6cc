// Package ingest learns many phrases at once: lines are tokenized in parallel
// and written, in input order, inside a single transaction.
package ingest

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/japaniel/wordchain/pkg/db"
	"github.com/japaniel/wordchain/pkg/text"
)

// Ingester learns text into the trigram store.
type Ingester struct {
	DB        *sql.DB
	Tokenizer text.Tokenizer
	Logger    *zap.Logger
	// ProgressEvery logs a progress line after this many phrases. 0 disables it.
	ProgressEvery int
	// OnProgress is called with the number of phrases written so far.
	OnProgress func(lines int)

	// Workers is how many lines are tokenized in parallel.
	Workers int
}

// NewIngester creates an Ingester that splits lines on whitespace.
func NewIngester(conn *sql.DB) *Ingester {
	return &Ingester{
		DB:            conn,
		Tokenizer:     text.Whitespace{},
		Logger:        zap.NewNop(),
		ProgressEvery: 1000,
		Workers:       4,
	}
}

// Report summarizes one ingestion run.
type Report struct {
	RunID string
	// Lines is the number of non-empty phrases written.
	Lines int
	// Skipped counts lines that could not be read as text.
	Skipped int
}

// IngestFile learns every line of the file at path.
func (ig *Ingester) IngestFile(ctx context.Context, path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ig.Ingest(ctx, f)
}

// IngestLines learns each element of lines as one phrase.
func (ig *Ingester) IngestLines(ctx context.Context, lines []string) (Report, error) {
	return ig.Ingest(ctx, strings.NewReader(strings.Join(lines, "\n")))
}

// Ingest learns one phrase per line of r. Lines that are not valid UTF-8 are
// skipped and logged. All writes share one transaction: on a read or write
// error, or on cancellation, nothing is committed.
func (ig *Ingester) Ingest(ctx context.Context, r io.Reader) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger := ig.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run", report.RunID))
	tok := ig.Tokenizer
	if tok == nil {
		tok = text.Whitespace{}
	}
	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}

	bw := NewBatchWriter(ig.DB)
	bw.Logger = logger

	// Each line gets a one-slot channel its tokenizer fills; the channels are
	// queued in input order so the writer never has to reorder.
	pending := make(chan chan []string, workers*2)

	g, gctx := errgroup.WithContext(ctx)
	// The reader and the writer each hold a slot; the rest tokenize.
	g.SetLimit(workers + 2)
	g.Go(func() error {
		defer close(pending)
		return ig.produce(gctx, g, r, tok, pending, &report, logger)
	})
	g.Go(func() error {
		return ig.consume(gctx, bw, pending, &report, logger)
	})

	if err := g.Wait(); err != nil {
		bw.Abort()
		return report, fmt.Errorf("ingest rolled back: %w", err)
	}
	if err := bw.Close(); err != nil {
		return report, fmt.Errorf("ingest rolled back: %w", err)
	}
	logger.Info("ingested", zap.Int("lines", report.Lines), zap.Int("skipped", report.Skipped))
	return report, nil
}

// produce reads lines and starts a tokenizer per line on g.
func (ig *Ingester) produce(ctx context.Context, g *errgroup.Group, r io.Reader, tok text.Tokenizer,
	pending chan<- chan []string, report *Report, logger *zap.Logger) error {
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lineNo++
			line = strings.TrimRight(line, "\r\n")
			if !utf8.ValidString(line) {
				report.Skipped++
				logger.Warn("skipping line", zap.Int("line", lineNo), zap.String("reason", "invalid utf-8"))
			} else {
				out := make(chan []string, 1)
				select {
				case pending <- out:
				case <-ctx.Done():
					return ctx.Err()
				}
				l := line
				g.Go(func() error {
					out <- tok.Tokenize(l)
					return nil
				})
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
	}
}

// consume writes tokenized lines in input order.
func (ig *Ingester) consume(ctx context.Context, bw *BatchWriter, pending <-chan chan []string,
	report *Report, logger *zap.Logger) error {
	for out := range pending {
		var tokens []string
		select {
		case tokens = <-out:
		case <-ctx.Done():
			return ctx.Err()
		}
		if len(tokens) == 0 {
			continue
		}
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return db.AddPhrase(ctx, tx, tokens)
		}); err != nil {
			return err
		}
		report.Lines++
		if ig.ProgressEvery > 0 && report.Lines%ig.ProgressEvery == 0 {
			logger.Debug("added lines", zap.Int("lines", report.Lines))
		}
		if ig.OnProgress != nil {
			ig.OnProgress(report.Lines)
		}
	}
	return ctx.Err()
}
