// Package text turns raw lines into tokens and finds the context around a
// trigger word.
package text

import (
	"fmt"
	"strings"
)

// Tokenizer splits a line into phrase tokens.
type Tokenizer interface {
	Tokenize(line string) []string
}

// Whitespace splits on runs of Unicode whitespace.
type Whitespace struct{}

func (Whitespace) Tokenize(line string) []string { return Tokenize(line) }

// Tokenize splits on whitespace. No sentinel padding is added.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Tokenizer names accepted by NewTokenizer.
const (
	TokenizerWhitespace = "whitespace"
	TokenizerJapanese   = "japanese"
)

// NewTokenizer builds the tokenizer registered under name.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", TokenizerWhitespace:
		return Whitespace{}, nil
	case TokenizerJapanese:
		return NewAnalyzer()
	}
	return nil, fmt.Errorf("unknown tokenizer %q", name)
}

// FindNearby looks for the first token starting with target (case
// insensitive) in tokens framed by empty sentinels, and returns the context
// pairs around it:
//   - nil when target does not occur;
//   - the two tokens before the match, when the match is not in the first
//     real slot;
//   - the two tokens after the match, when it is not in the last real slot;
//   - a single [""] placeholder when the match has neither pair.
//
// Sentinel slots in a pair are returned as "".
func FindNearby(target string, tokens []string) [][]string {
	needle := strings.ToLower(target)
	framed := make([]string, 0, len(tokens)+2)
	framed = append(framed, "")
	framed = append(framed, tokens...)
	framed = append(framed, "")

	pos := -1
	for i, s := range framed {
		if strings.HasPrefix(strings.ToLower(s), needle) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}

	var found [][]string
	if pos > 1 {
		found = append(found, []string{framed[pos-2], framed[pos-1]})
	}
	if pos < len(framed)-2 {
		found = append(found, []string{framed[pos+1], framed[pos+2]})
	}
	if len(found) == 0 {
		found = append(found, []string{""})
	}
	return found
}

// JoinPhrase joins words with single spaces, dropping empty (sentinel)
// spellings.
func JoinPhrase(words ...[]string) string {
	var parts []string
	for _, ws := range words {
		for _, w := range ws {
			if w != "" {
				parts = append(parts, w)
			}
		}
	}
	return strings.Join(parts, " ")
}
