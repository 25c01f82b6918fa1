package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

// foldName lower-cases a name, strips diacritics ("Siti Aisyah Nurhalizá" ->
// "siti aisyah nurhaliza") and collapses dashes, underscores and runs of
// whitespace to single spaces.
func foldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("-", " ", "_", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Search returns the identities whose name, class or id contains query.
// An empty query returns the whole roster.
func (s *Store) Search(query string) []attendance.Identity {
	all := s.List()
	q := foldName(query)
	if q == "" {
		return all
	}

	out := make([]attendance.Identity, 0)
	for _, ident := range all {
		if strings.Contains(foldName(ident.Name), q) ||
			strings.Contains(foldName(ident.Class), q) ||
			strings.Contains(strings.ToLower(ident.ID), q) {
			out = append(out, ident)
		}
	}
	return out
}
