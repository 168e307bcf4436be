// Package slug turns display names into URL and storage-key friendly
// fragments.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength caps a generated slug; longer results are cut at a hyphen
// where possible.
const MaxLength = 60

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// Letters that do not decompose into a base letter plus a mark.
	ligatures = strings.NewReplacer("œ", "oe", "æ", "ae", "ß", "ss", "ø", "o", "ł", "l", "ı", "i")
)

// Generate creates a slug from name. Accents are stripped, so French and
// other Latin-script names stay readable.
//
// Examples:
//   - "Promo Noël" → "promo-noel"
//   - "Bœuf & Crème Fraîche" → "boeuf-creme-fraiche"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := ligatures.Replace(strings.ToLower(strings.TrimSpace(name)))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	s = strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
	if len(s) > MaxLength {
		s = s[:MaxLength]
		if i := strings.LastIndexByte(s, '-'); i > 0 {
			s = s[:i]
		}
		s = strings.Trim(s, "-")
	}
	return s
}
