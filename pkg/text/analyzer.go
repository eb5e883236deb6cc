package text

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Analyzer segments text that is not separated by whitespace, such as
// Japanese, into surface tokens.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance backed by the IPA dictionary.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Tokenize splits line into surface forms. Whitespace runs are treated as
// separators, so mixed Latin and Japanese text keeps its words intact.
func (a *Analyzer) Tokenize(line string) []string {
	var out []string
	for _, chunk := range strings.Fields(line) {
		for _, token := range a.t.Tokenize(chunk) {
			if token.Class == tokenizer.DUMMY {
				continue
			}
			if strings.TrimSpace(token.Surface) == "" {
				continue
			}
			out = append(out, token.Surface)
		}
	}
	return out
}

// SplitSentences splits on common Japanese sentence delimiters, on newlines
// and on Latin ".!?", keeping the delimiter with its sentence. A Latin
// delimiter only ends a sentence before whitespace or the end of text, so
// "3.14" stays whole.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if endsSentence(runes, i) {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func endsSentence(runes []rune, i int) bool {
	switch runes[i] {
	// 。(3002), ！(FF01), ？(FF1F)
	case '。', '！', '？', '\n':
		return true
	case '.', '!', '?':
		return i+1 == len(runes) || unicode.IsSpace(runes[i+1])
	}
	return false
}
