package library

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const keySep = "\x1f"

// Fold canonicalizes free text for comparisons: NFKC, Unicode case folding,
// and whitespace runs collapsed to a single space.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAuthors folds a comma separated author list and rejoins it with
// ", ". Empty entries are dropped; order is kept.
func NormalizeAuthors(authors string) string {
	parts := strings.Split(authors, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = Fold(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// DedupKey is the identity of a book for duplicate detection within one
// owner's collection.
func DedupKey(title, authors string) string {
	return Fold(title) + keySep + NormalizeAuthors(authors)
}
