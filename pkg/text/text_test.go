package text

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  hello\tthere \n world ")
	if diff := cmp.Diff([]string{"hello", "there", "world"}, got); diff != "" {
		t.Errorf("Tokenize mismatch (-want +got):\n%s", diff)
	}
	if got := Tokenize("   "); len(got) != 0 {
		t.Errorf("expected no tokens, got %q", got)
	}
}

func TestFindNearby(t *testing.T) {
	tests := []struct {
		name   string
		target string
		phrase string
		want   [][]string
	}{
		{"middle", "baz", "a b baz d e", [][]string{{"a", "b"}, {"d", "e"}}},
		{"begin", "baz", "Baz, b c d e", [][]string{{"b", "c"}}},
		{"end", "baz", "a b c d BAZOO!", [][]string{{"c", "d"}}},
		{"single token", "baz", "baz", [][]string{{""}}},
		{"second slot", "baz", "a baz c", [][]string{{"", "a"}, {"c", ""}}},
		{"first match wins", "baz", "x baz y bazz z", [][]string{{"", "x"}, {"y", "bazz"}}},
		{"not found", "baz", "That's not a knife!", nil},
		{"empty phrase", "baz", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindNearby(tt.target, Tokenize(tt.phrase))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindNearby(%q, %q) mismatch (-want +got):\n%s", tt.target, tt.phrase, diff)
			}
		})
	}
}

func TestJoinPhrase(t *testing.T) {
	got := JoinPhrase([]string{"", "a", "b"}, []string{"c", ""})
	if got != "a b c" {
		t.Errorf("got %q, want %q", got, "a b c")
	}
	if got := JoinPhrase(); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNewTokenizer(t *testing.T) {
	tok, err := NewTokenizer("")
	if err != nil {
		t.Fatalf("default tokenizer: %v", err)
	}
	if _, ok := tok.(Whitespace); !ok {
		t.Fatalf("expected Whitespace, got %T", tok)
	}
	if _, err := NewTokenizer("klingon"); err == nil {
		t.Fatal("expected error for unknown tokenizer")
	}
}
