package directory

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SuggestLimit caps the suggestion list shown while typing.
const SuggestLimit = 10

// Normalize folds s for matching: NFC composed, lower case, all whitespace
// removed. Composing first keeps decomposed Hangul from the export
// comparable with typed queries.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// match records which searchable fields contain the query.
type match struct {
	academy       Academy
	key           string
	name, founder bool
	address, id   bool
	namePrefix    bool
}

func matchAll(list []Academy, q string) []match {
	var out []match
	for _, a := range list {
		m := match{academy: a, key: Normalize(a.Name)}
		m.name = strings.Contains(m.key, q)
		m.namePrefix = strings.HasPrefix(m.key, q)
		m.founder = strings.Contains(Normalize(a.Founder.Name), q)
		m.address = strings.Contains(Normalize(a.Address), q)
		m.id = strings.Contains(Normalize(a.ID), q)
		if m.name || m.founder || m.address || m.id {
			out = append(out, m)
		}
	}
	return out
}

// less ranks by the first field that differs in name, founder, address, id
// order. With prefix set, a name that starts with the query beats one that
// merely contains it. Remaining ties sort by normalized name.
func less(a, b match, prefix bool) bool {
	if a.name != b.name {
		return a.name
	}
	if prefix && a.name && a.namePrefix != b.namePrefix {
		return a.namePrefix
	}
	if a.founder != b.founder {
		return a.founder
	}
	if a.address != b.address {
		return a.address
	}
	if a.id != b.id {
		return a.id
	}
	return a.key < b.key
}

func rank(list []Academy, query string, prefix bool) []Academy {
	q := Normalize(query)
	if q == "" {
		return []Academy{}
	}
	ms := matchAll(list, q)
	sort.SliceStable(ms, func(i, j int) bool { return less(ms[i], ms[j], prefix) })
	out := make([]Academy, len(ms))
	for i, m := range ms {
		out[i] = m.academy
	}
	return out
}

// Search returns every academy whose name, founder name, address or
// registration number contains the query, best matches first. A query that
// is blank after normalization matches nothing.
func Search(list []Academy, query string) []Academy {
	return rank(list, query, false)
}

// Suggest is Search for the type-ahead list: name prefixes outrank other
// name matches and at most SuggestLimit academies are returned.
func Suggest(list []Academy, query string) []Academy {
	out := rank(list, query, true)
	if len(out) > SuggestLimit {
		out = out[:SuggestLimit]
	}
	return out
}
