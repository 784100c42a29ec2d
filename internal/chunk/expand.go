package chunk

import "strings"

// stopWords is bilingual (English + Turkish) because the corpus this
// chunker was ported from indexes both Turkish and English documentation
// side by side.
var stopWords = buildSet([]string{
	"a", "an", "the", "is", "are", "was", "were", "be", "been", "being", "have", "has", "had",
	"do", "does", "did", "will", "would", "could", "should", "may", "might", "shall", "can", "to",
	"of", "in", "for", "on", "with", "at", "by", "from", "as", "into", "about", "between",
	"through", "during", "and", "but", "or", "nor", "not", "so", "yet", "it", "its", "this",
	"that", "these", "those", "i", "me", "my", "we", "our", "you", "your", "he", "she", "they",
	"them", "their", "what", "which", "who", "whom", "how", "when", "where", "why", "bir", "ve",
	"ile", "de", "da", "bu", "o", "ne", "nasıl", "nerede", "neden", "için", "gibi", "daha", "en",
	"çok", "var",
})

// ExpandQuery returns the original query, its lowercased form (if
// different), and a stopword-stripped keyword form (if stripping removed
// at least one word but not every word). Order matters: the original
// query is always first, so callers taking query_variants[0] get the
// exact input back.
func ExpandQuery(query string) []string {
	variants := []string{query}

	lower := strings.ToLower(query)
	if lower != query {
		variants = append(variants, lower)
	}

	words := strings.Fields(lower)
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if !stopWords[strings.ToLower(w)] {
			keywords = append(keywords, w)
		}
	}

	if len(keywords) > 0 && len(keywords) < len(words) {
		variants = append(variants, strings.Join(keywords, " "))
	}

	return variants
}
