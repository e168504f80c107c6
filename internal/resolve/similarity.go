package resolve

import (
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nearDuplicateThreshold is the Jaro-Winkler similarity (over folded names)
// above which two distinct names are reported as probable duplicates.
const nearDuplicateThreshold = 0.93

// fold removes case and diacritics so that "Beyoncé" and "beyonce" compare equal.
func fold(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}

	return cases.Fold().String(stripped)
}

// Similarity reports how alike two names are once case and diacritics are ignored,
// in the range [0, 1].
func Similarity(a string, b string) float64 {
	return strutil.Similarity(fold(a), fold(b), metrics.NewJaroWinkler())
}

// warnNearDuplicates logs a warning for every existing name in the key's domain
// which is suspiciously similar to the newly created name. Resolution is not
// affected; names are still matched exactly.
func warnNearDuplicates(cache *Cache, key Key) {
	for _, name := range cache.Names(key.Domain) {
		if name == key.Name {
			continue
		}

		if score := Similarity(name, key.Name); score >= nearDuplicateThreshold {
			log.Warnf("New %s %q closely resembles existing %q (similarity %.2f); these are stored as distinct entities\n", key.Domain, key.Name, name, score)
		}
	}
}
