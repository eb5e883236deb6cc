// Package chain walks the trigram table one word at a time.
package chain

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/japaniel/wordchain/pkg/db"
)

// MaxSteps bounds a single cursor so cyclic or malformed data cannot produce
// unbounded output.
const MaxSteps = 200

// Store is the part of the trigram store a cursor reads from.
type Store interface {
	TotalFreqWhere(ctx context.Context, f db.Filter) (int64, error)
	WeightedPick(ctx context.Context, f db.Filter, sel db.Column, pick int64) (db.WordID, bool, error)
}

// Mode fixes which two trigram columns filter the walk and which one is
// produced.
type Mode int

const (
	// Forward filters on (word1, word2) and produces word3.
	Forward Mode = iota
	// Backward filters on (word3, word2) and produces word1.
	Backward
	// Middle filters on (word1, word3) and produces word2. The produced word
	// does not chain further, so a middle cursor is meant for one step.
	Middle
)

func (m Mode) String() string {
	switch m {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Middle:
		return "middle"
	}
	return "invalid"
}

// columns returns the filter columns in window order followed by the output
// column.
func (m Mode) columns() [3]db.Column {
	switch m {
	case Backward:
		return [3]db.Column{db.Word3, db.Word2, db.Word1}
	case Middle:
		return [3]db.Column{db.Word1, db.Word3, db.Word2}
	default:
		return [3]db.Column{db.Word1, db.Word2, db.Word3}
	}
}

// Cursor is a resumable, non-restartable generator of word ids.
type Cursor struct {
	store  Store
	mode   Mode
	window []db.WordID
	steps  int
	done   bool

	// Draw returns a uniform value in [1, n]. Defaults to math/rand/v2.
	Draw   func(n int64) int64
	Logger *zap.Logger
}

// New creates a cursor seeded with up to the last two ids of seed. An empty
// seed matches any row; seed [0] starts a fresh phrase.
func New(store Store, mode Mode, seed []db.WordID, logger *zap.Logger) *Cursor {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cursor{
		store:  store,
		mode:   mode,
		window: make([]db.WordID, 0, 2),
		Draw:   func(n int64) int64 { return rand.Int64N(n) + 1 },
		Logger: logger,
	}
	for _, id := range lastN(seed, 2) {
		c.push(id)
	}
	return c
}

// push slides id into the window, keeping at most two ids.
func (c *Cursor) push(id db.WordID) {
	if len(c.window) == 2 {
		c.window = append(c.window[:0], c.window[1])
	}
	c.window = append(c.window, id)
}

// Window returns a copy of the current filter window.
func (c *Cursor) Window() []db.WordID {
	return append([]db.WordID(nil), c.window...)
}

func (c *Cursor) filter() db.Filter {
	cols := c.mode.columns()
	var f db.Filter
	for i, id := range c.window {
		f = f.With(cols[i], id)
	}
	return f
}

// Next produces the next id. ok is false once the walk has ended: no
// matching rows, a store error (logged, not returned) or MaxSteps reached.
func (c *Cursor) Next(ctx context.Context) (id db.WordID, ok bool) {
	if c.done {
		return 0, false
	}
	c.steps++
	if c.steps > MaxSteps {
		c.Logger.Warn("aborting long phrase, possible loop",
			zap.Stringer("mode", c.mode), zap.Any("window", c.window))
		c.done = true
		return 0, false
	}

	f := c.filter()
	total, err := c.store.TotalFreqWhere(ctx, f)
	if err != nil {
		c.Logger.Warn("ending early", zap.Stringer("mode", c.mode), zap.Error(err))
		c.done = true
		return 0, false
	}
	if total <= 0 {
		c.done = true
		return 0, false
	}

	id, ok, err = c.store.WeightedPick(ctx, f, c.mode.columns()[len(c.window)], c.Draw(total))
	if err != nil {
		c.Logger.Warn("ending early", zap.Stringer("mode", c.mode), zap.Error(err))
		c.done = true
		return 0, false
	}
	if !ok {
		c.done = true
		return 0, false
	}
	c.push(id)
	return id, true
}

// Collect drains the cursor.
func (c *Cursor) Collect(ctx context.Context) []db.WordID {
	var out []db.WordID
	for {
		id, ok := c.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, id)
	}
}

// lastN returns the trailing n elements of ids.
func lastN(ids []db.WordID, n int) []db.WordID {
	if len(ids) <= n {
		return ids
	}
	return ids[len(ids)-n:]
}
