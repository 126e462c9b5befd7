// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"regexp"
	"strings"
)

var titleStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "in": true,
	"on": true, "and": true, "to": true, "with": true, "via": true, "by": true,
	"from": true, "at": true, "as": true, "or": true,
}

// trailingYear matches ", 2024" or " (2019a)." at the end of a title.
var trailingYear = regexp.MustCompile(`[\s,.;:(\[]+(19|20)\d{2}[a-z]?[)\]]?\.?\s*$`)

// NormalizeTitle returns the lower-case word sequence of a title with
// LaTeX, punctuation, and a trailing year removed. Stopwords are kept.
func NormalizeTitle(title string) string {
	return strings.Join(titleWords(title), " ")
}

func titleWords(title string) []string {
	title = StripLatex(title)
	title = trailingYear.ReplaceAllString(title, "")
	return tokens(title)
}

// TitleSimilarity scores two titles in [0,1]: the larger of token
// Jaccard and edit ratio over content words, plus prefixBonus when one
// title is a word prefix of the other. Identical content words score 1.
func TitleSimilarity(a, b string, prefixBonus float64) float64 {
	ta := withoutStopwords(titleWords(a), titleStopwords)
	tb := withoutStopwords(titleWords(b), titleStopwords)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	ja, jb := strings.Join(ta, " "), strings.Join(tb, " ")
	if ja == jb {
		return 1
	}
	s := max(jaccard(ta, tb), editRatio(ja, jb))
	if isWordPrefix(ta, tb) || isWordPrefix(tb, ta) {
		s += prefixBonus
	}
	return round(min(s, 0.99))
}

func isWordPrefix(short, long []string) bool {
	if len(short) >= len(long) {
		return false
	}
	for i, w := range short {
		if long[i] != w {
			return false
		}
	}
	return true
}
