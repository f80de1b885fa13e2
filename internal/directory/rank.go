package directory

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/and161185/authentic-caller/internal/model"
)

type ranked struct {
	c      model.Contact
	lower  string
	prefix bool
}

// Rank orders name-search candidates in place: names starting with query
// (case-insensitive) come first, ordered by collation of the full name in lang;
// the remaining candidates keep their input order.
func Rank(candidates []model.Contact, query string, lang language.Tag) {
	q := strings.ToLower(strings.TrimSpace(query))
	items := make([]ranked, len(candidates))
	for i, c := range candidates {
		lower := strings.ToLower(c.Name)
		items[i] = ranked{c: c, lower: lower, prefix: strings.HasPrefix(lower, q)}
	}
	col := collate.New(lang)

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.prefix && b.prefix:
			return col.CompareString(a.lower, b.lower) < 0
		case a.prefix != b.prefix:
			return a.prefix
		default:
			return false
		}
	})
	for i := range items {
		candidates[i] = items[i].c
	}
}
