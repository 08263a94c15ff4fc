package structure

import (
	"sort"
	"strings"
	"unicode"
)

const minKeywordRunes = 3

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {}, "and": {}, "any": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "because": {}, "been": {}, "between": {}, "both": {}, "but": {}, "by": {},
	"can": {}, "each": {}, "for": {}, "from": {}, "has": {}, "have": {}, "how": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "may": {}, "more": {}, "most": {}, "not": {}, "of": {},
	"on": {}, "one": {}, "only": {}, "or": {}, "other": {}, "our": {}, "such": {}, "than": {}, "that": {},
	"the": {}, "their": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {},
	"through": {}, "thus": {}, "to": {}, "two": {}, "use": {}, "used": {}, "using": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {},
	// markup left over from normalized math
	"frac": {}, "left": {}, "right": {}, "begin": {}, "end": {}, "mathrm": {}, "text": {},
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	return strings.Fields(builder.String())
}

func isKeyword(token string) bool {
	if _, stop := stopwords[token]; stop {
		return false
	}
	letters := 0
	for _, r := range token {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= minKeywordRunes
}

// topKeywords returns the n most frequent keywords across texts. Ties are
// broken alphabetically so the result is deterministic.
func topKeywords(texts []string, n int) []string {
	freq := make(map[string]int)
	for _, text := range texts {
		for _, token := range tokenize(text) {
			if isKeyword(token) {
				freq[token]++
			}
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
