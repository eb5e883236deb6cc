package db

import "strings"

// WordID identifies an interned spelling in the words table.
type WordID int64

// Sentinel marks the beginning and end of every phrase. It always maps to
// the empty spelling.
const Sentinel WordID = 0

// Column names one of the three positions of a trigram.
type Column int

const (
	Word1 Column = iota
	Word2
	Word3
)

func (c Column) String() string {
	switch c {
	case Word1:
		return "word1"
	case Word2:
		return "word2"
	case Word3:
		return "word3"
	}
	return "invalid"
}

// Filter restricts trigram queries to rows whose set positions match.
// A zero Filter matches every row.
type Filter struct {
	Word1 *WordID
	Word2 *WordID
	Word3 *WordID
}

// With returns a copy of f with column c pinned to id.
func (f Filter) With(c Column, id WordID) Filter {
	v := id
	switch c {
	case Word1:
		f.Word1 = &v
	case Word2:
		f.Word2 = &v
	case Word3:
		f.Word3 = &v
	}
	return f
}

// where renders the filter as a SQL clause (empty for a zero filter) and
// its bound values, in word1, word2, word3 order.
func (f Filter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	for _, c := range []Column{Word1, Word2, Word3} {
		p := f.ptr(c)
		if p == nil {
			continue
		}
		clauses = append(clauses, c.String()+" = ?")
		args = append(args, int64(*p))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f Filter) ptr(c Column) *WordID {
	switch c {
	case Word1:
		return f.Word1
	case Word2:
		return f.Word2
	case Word3:
		return f.Word3
	}
	return nil
}

// Summary holds diagnostic row counts.
type Summary struct {
	Words   int64
	Phrases int64
}
