package matching

import (
	"sort"
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Words that say nothing about which property a name refers to.
var genericTokens = map[string]bool{
	"hotel": true, "hotels": true, "the": true, "and": true, "a": true,
	"by": true, "at": true, "of": true,
}

// NormalizeName folds accents and case, strips punctuation, drops generic
// words and sorts the remaining tokens so word order does not matter.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	fields := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if !genericTokens[f] {
			kept = append(kept, f)
		}
	}
	// a name made only of generic words still has to compare to something
	if len(kept) == 0 {
		kept = fields
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// NameSimilarity scores two hotel names in [0,1].
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return smetrics.JaroWinkler(na, nb, 0.7, 4)
}
