// Package resolver maps free-text fragments to canonical region, crop and
// animal category names.
//
// Matching is substring based over a normalized form (NFKC folded, upper
// case, whitespace and punctuation removed). Candidate order is significant:
// when one region name is contained in another, the first candidate in the
// slice wins. Callers pass regions in the row order of the gap table.
package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/fodder-analyzer/internal/domain"
)

// minReverseMatch is the length a normalized query must exceed before it is
// allowed to match as a fragment of a longer canonical name.
const minReverseMatch = 4

// Alias maps an abbreviation or common misspelling to a canonical region
type Alias struct {
	Token  string
	Target string
}

// DefaultAliases is checked in order before any direct match.
var DefaultAliases = []Alias{
	{"KONASEEMA", "DR B.R. AMBEDKAR KONASEEMA"},
	{"ASR", "ALLURI SITARAMA RAJU"},
	{"YSR", "KADAPA"},
	{"VIZAG", "VISAKHAPATNAM"},
	{"ANANTHAPURAMU", "ANANTAPUR"},
	{"ANATHAPURAMU", "ANANTAPUR"},
	{"ANANTHAPUR", "ANANTAPUR"},
	{"SPSRNELLORE", "NELLORE"},
	{"SRISATHYASAI", "SRI SATYASAI"},
	{"TIRUPATHI", "TIRUPATI"},
}

// Keyword maps a query word to a crop column name
type Keyword[T any] struct {
	Word   string
	Target T
}

// CropKeywords is scanned in order; the first word found in the query wins.
var CropKeywords = []Keyword[string]{
	{"PADDY", domain.CropPaddy},
	{"RICE", domain.CropPaddy},
	{"STRAW", domain.CropPaddy},
	{"MAIZE", domain.CropMaize},
	{"CORN", domain.CropMaize},
	{"GROUNDNUT", domain.CropGroundnut},
	{"PEANUT", domain.CropGroundnut},
	{"SUGARCANE", domain.CropSugarcane},
	{"SUGAR", domain.CropSugarcane},
	{"JOWAR", domain.CropJowar},
	{"BAJRA", domain.CropBajra},
	{"RAGI", domain.CropRagi},
	{"COTTON", domain.CropCotton},
}

// AnimalKeywords is scanned in order; the first word found in the query wins.
var AnimalKeywords = []Keyword[domain.AnimalCategory]{
	{"CATTLE", domain.Cattle},
	{"COW", domain.Cattle},
	{"BULL", domain.Cattle},
	{"BUFFALO", domain.Buffalo},
	{"SHEEP", domain.Sheep},
	{"GOAT", domain.Goat},
	{"PIG", domain.Pig},
	{"POULTRY", domain.Poultry},
	{"CHICKEN", domain.Poultry},
}

// Resolver resolves region names against an alias table
type Resolver struct {
	aliases []Alias
}

// New creates a resolver using the given alias table. A nil table uses
// DefaultAliases.
func New(aliases []Alias) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases
	}
	normalized := make([]Alias, 0, len(aliases))
	for _, a := range aliases {
		token := Normalize(a.Token)
		if token == "" {
			continue
		}
		normalized = append(normalized, Alias{Token: token, Target: a.Target})
	}
	return &Resolver{aliases: normalized}
}

// Normalize folds s to NFKC, upper-cases it and removes whitespace and
// punctuation.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Upper folds s to NFKC and upper-cases it, keeping spaces. Keyword tests
// run against this form since some keywords span two words.
func Upper(s string) string {
	return strings.ToUpper(norm.NFKC.String(s))
}

// Resolve returns the single best region for query, or false when nothing
// matches. Aliases are consulted first, then direct substring matches in
// candidate order.
func (r *Resolver) Resolve(query string, candidates []string) (string, bool) {
	q := Normalize(query)
	if q == "" || len(candidates) == 0 {
		return "", false
	}

	for _, a := range r.aliases {
		if !strings.Contains(q, a.Token) {
			continue
		}
		if target, ok := lookup(a.Target, candidates); ok {
			return target, true
		}
	}

	for _, c := range candidates {
		cn := Normalize(c)
		if cn == "" {
			continue
		}
		if strings.Contains(q, cn) {
			return c, true
		}
		if len(q) > minReverseMatch && strings.Contains(cn, q) {
			return c, true
		}
	}
	return "", false
}

// ResolveAll returns every region named in the query, in candidate order.
// A region counts as named when its normalized name or one of its alias
// tokens appears in the normalized query.
func (r *Resolver) ResolveAll(query string, candidates []string) []string {
	q := Normalize(query)
	if q == "" || len(candidates) == 0 {
		return nil
	}

	aliased := make(map[string]bool)
	for _, a := range r.aliases {
		if strings.Contains(q, a.Token) {
			aliased[Normalize(a.Target)] = true
		}
	}

	var matches []string
	for _, c := range candidates {
		cn := Normalize(c)
		if cn == "" {
			continue
		}
		if strings.Contains(q, cn) || aliased[cn] {
			matches = append(matches, c)
		}
	}
	return matches
}

// lookup finds target among candidates by normalized comparison and returns
// the candidate's own spelling.
func lookup(target string, candidates []string) (string, bool) {
	tn := Normalize(target)
	for _, c := range candidates {
		if Normalize(c) == tn {
			return c, true
		}
	}
	return "", false
}

// ResolveCrop returns the crop named by the first crop keyword in query
func ResolveCrop(query string) (string, bool) {
	return firstKeyword(Upper(query), CropKeywords)
}

// ResolveAnimal returns the category named by the first animal keyword in query
func ResolveAnimal(query string) (domain.AnimalCategory, bool) {
	return firstKeyword(Upper(query), AnimalKeywords)
}

func firstKeyword[T any](upper string, keywords []Keyword[T]) (T, bool) {
	for _, k := range keywords {
		if strings.Contains(upper, k.Word) {
			return k.Target, true
		}
	}
	var zero T
	return zero, false
}

// ContainsAny reports whether upper contains any of the words
func ContainsAny(upper string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}
