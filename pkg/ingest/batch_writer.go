package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter runs every submitted write inside one transaction, opened on the
// first Submit. Close commits the batch. Abort, or any failing WriteFunc,
// rolls the whole batch back.
type BatchWriter struct {
	mu      sync.Mutex
	db      *sql.DB
	tx      *sql.Tx
	closed  bool
	written int
	Logger  *zap.Logger

	// lastErr is the first write error; once set every later call reports it.
	lastErr error
}

// NewBatchWriter creates a BatchWriter over db.
func NewBatchWriter(db *sql.DB) *BatchWriter {
	return &BatchWriter{
		db:     db,
		Logger: zap.NewNop(),
	}
}

// Submit runs w in the batch transaction.
func (bw *BatchWriter) Submit(ctx context.Context, w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	if bw.lastErr != nil {
		return bw.lastErr
	}
	if bw.tx == nil {
		// The batch outlives any single caller context; cancellation is
		// handled by Abort.
		tx, err := bw.db.BeginTx(context.Background(), nil)
		if err != nil {
			bw.fail(fmt.Errorf("failed to begin batch tx: %w", err))
			return bw.lastErr
		}
		bw.tx = tx
	}
	if err := w(ctx, bw.tx); err != nil {
		bw.fail(err)
		return err
	}
	bw.written++
	return nil
}

// fail assumes bw.mu is held.
func (bw *BatchWriter) fail(err error) {
	bw.lastErr = err
	if bw.tx != nil {
		_ = bw.tx.Rollback()
		bw.tx = nil
	}
	bw.Logger.Warn("batch failed", zap.Int("items", bw.written), zap.Error(err))
}

// Close stops accepting submissions and commits the batch. It returns the
// first write error instead if one occurred.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.lastErr != nil {
		return bw.lastErr
	}
	if bw.tx == nil {
		return nil
	}
	tx := bw.tx
	bw.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", bw.written, err)
	}
	bw.Logger.Debug("batch committed", zap.Int("items", bw.written))
	return nil
}

// Abort stops accepting submissions and rolls back everything written so far.
func (bw *BatchWriter) Abort() {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return
	}
	bw.closed = true
	if bw.tx == nil {
		return
	}
	_ = bw.tx.Rollback()
	bw.tx = nil
	bw.Logger.Info("batch writer aborted", zap.Int("dropped", bw.written))
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
