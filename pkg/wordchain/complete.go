package wordchain

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/japaniel/wordchain/pkg/chain"
	"github.com/japaniel/wordchain/pkg/db"
	"github.com/japaniel/wordchain/pkg/text"
)

// Complete continues prefix forward. Unknown prefix words are dropped, so an
// unknown or empty prefix continues from any row. The prefix itself is not
// part of the result.
func (e *Engine) Complete(ctx context.Context, prefix []string) string {
	ids := db.ResolveIDs(ctx, e.db, e.logger, prefix)
	out := e.cursor(chain.Forward, ids).Collect(ctx)
	return e.join(ctx, out)
}

// CompleteMiddleOut fills the gap in slots, given as [before, match, after],
// with one word connecting before and after, then extends the result in both
// directions. Missing slots are allowed. When no connecting word exists a
// brand new phrase is generated.
func (e *Engine) CompleteMiddleOut(ctx context.Context, slots []string) string {
	var first, last []db.WordID
	var ok bool
	if len(slots) > 0 {
		if first, ok = e.lookup(ctx, slots[0]); !ok {
			return ""
		}
	}
	if len(slots) > 2 {
		if last, ok = e.lookup(ctx, slots[2]); !ok {
			return ""
		}
	}

	// With one end missing, a forward or backward step from the known end
	// yields the same trigram position as the middle step.
	var step *chain.Cursor
	switch {
	case len(first) > 0 && len(last) > 0:
		step = e.cursor(chain.Middle, slices.Concat(first, last))
	case len(first) > 0:
		step = e.cursor(chain.Forward, first)
	case len(last) > 0:
		step = e.cursor(chain.Backward, last)
	default:
		return e.extendForward(ctx, []db.WordID{db.Sentinel})
	}
	middle, found := step.Next(ctx)
	if !found {
		e.logger.Debug("no middle word, starting a new phrase", zap.Strings("slots", slots))
		return e.extendForward(ctx, []db.WordID{db.Sentinel})
	}

	phrase := slices.Concat(first, []db.WordID{middle}, last)
	return e.extendForward(ctx, e.extendBackward(ctx, phrase))
}

// PrimeFromNearby picks one context pair from candidates, weighted by how
// often the pair occurs at either end of a stored trigram. A candidate with a
// single known word scores a flat 1 and one with no known words scores 0.
// Returns [Sentinel] when no candidate scores.
func (e *Engine) PrimeFromNearby(ctx context.Context, candidates [][]string) []db.WordID {
	type scored struct {
		ids   []db.WordID
		score int64
	}
	var eligible []scored
	var total int64
	for _, cand := range candidates {
		ids := db.ResolveIDs(ctx, e.db, e.logger, cand)
		var score int64
		switch len(ids) {
		case 2:
			n, err := db.CountNearby(ctx, e.db, ids[0], ids[1])
			if err != nil {
				e.logger.Warn("ignoring candidate", zap.Strings("candidate", cand), zap.Error(err))
				continue
			}
			score = n
		case 1:
			// TODO: pair counts and this flat weight are on different scales;
			// normalize once a corpus shows sparse singletons winning too often.
			score = 1
		}
		if score > 0 {
			eligible = append(eligible, scored{ids: ids, score: score})
			total += score
		}
	}
	if total > 0 {
		pick := e.draw(total)
		for _, c := range eligible {
			pick -= c.score
			if pick <= 0 {
				return c.ids
			}
		}
	}
	return []db.WordID{db.Sentinel}
}

// CompleteAround builds a phrase around one of the candidate contexts found
// by text.FindNearby: it primes on a candidate, extends it backward unless
// it already starts a phrase, then forward.
func (e *Engine) CompleteAround(ctx context.Context, candidates [][]string) string {
	primer := e.PrimeFromNearby(ctx, candidates)
	words := primer
	if primer[0] != db.Sentinel {
		words = e.extendBackward(ctx, primer)
	}
	return e.extendForward(ctx, words)
}

// Reply answers message when it mentions trigger. ok is false when the
// trigger does not occur.
func (e *Engine) Reply(ctx context.Context, trigger, message string) (reply string, ok bool) {
	candidates := text.FindNearby(trigger, text.Tokenize(message))
	if len(candidates) == 0 {
		return "", false
	}
	return e.CompleteAround(ctx, candidates), true
}

// extendBackward prepends a backward walk seeded with the first two ids of
// phrase, in reading order.
func (e *Engine) extendBackward(ctx context.Context, phrase []db.WordID) []db.WordID {
	seed := slices.Clone(phrase[:min(2, len(phrase))])
	slices.Reverse(seed)
	back := e.cursor(chain.Backward, seed).Collect(ctx)
	slices.Reverse(back)
	return slices.Concat(back, phrase)
}

// extendForward appends a forward walk seeded with the last two ids of
// phrase and returns the whole phrase as text.
func (e *Engine) extendForward(ctx context.Context, phrase []db.WordID) string {
	fwd := e.cursor(chain.Forward, phrase[max(0, len(phrase)-2):]).Collect(ctx)
	return e.join(ctx, slices.Concat(phrase, fwd))
}

// lookup resolves one slot. ok is false only on a store error; an unknown
// word is an empty, successful result.
func (e *Engine) lookup(ctx context.Context, spelling string) (ids []db.WordID, ok bool) {
	id, found, err := db.LookupWordID(ctx, e.db, spelling)
	if err != nil {
		e.logger.Warn("word lookup failed", zap.String("word", spelling), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, true
	}
	return []db.WordID{id}, true
}

// join maps ids to spellings and joins them, dropping sentinels. A store
// error yields an empty string.
func (e *Engine) join(ctx context.Context, ids []db.WordID) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		s, ok, err := db.SpellingOf(ctx, e.db, id)
		if err != nil {
			e.logger.Warn("spelling lookup failed", zap.Int64("word_id", int64(id)), zap.Error(err))
			return ""
		}
		if ok {
			words = append(words, s)
		}
	}
	return text.JoinPhrase(words)
}
