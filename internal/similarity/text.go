// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package similarity normalizes and compares the noisy strings found in
// reference lists: author names, titles, venues, years, and identifiers.
// Every function is pure and deterministic; thresholds come from
// types.SimilarityConfig through a Toolkit.
package similarity

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

var (
	// latexAccent matches accent commands such as \"{u}, \'e, \c{c}.
	latexAccent = regexp.MustCompile(`\\(?:["'` + "`" + `^~=.]\s*|[uvHckrb](?:\{|\s+))\{?\s*\\?([A-Za-z])\s*\}?`)

	// latexCommand matches \penalty0, \emph, \textbf and similar macros.
	// A negative numeric argument keeps its sign behind.
	latexCommand = regexp.MustCompile(`\\[A-Za-z]+\*?\d*`)

	// strayDiaeresis matches a spacing diaeresis left over by PDF extraction
	// ("Gl¨ uck").
	strayDiaeresis = regexp.MustCompile(`[¨´˜ˆ` + "`" + `]\s*`)
)

// transliterations folds letters NFD does not decompose.
var transliterations = strings.NewReplacer(
	"ł", "l", "Ł", "L", "ø", "o", "Ø", "O", "đ", "d", "Đ", "D",
	"æ", "ae", "Æ", "Ae", "œ", "oe", "Œ", "Oe", "ı", "i", "ß", "ss",
	"‐", "-", "–", "-", "—", "-", "’", "'", "‘", "'",
)

// germanUmlauts spells umlauts out, so "Glück" can also match "Glueck".
var germanUmlauts = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

// StripLatex removes LaTeX accent commands, macros, and grouping braces.
func StripLatex(s string) string {
	if !strings.ContainsAny(s, `\{}`) {
		return s
	}
	s = latexAccent.ReplaceAllString(s, "$1")
	s = latexCommand.ReplaceAllString(s, " ")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// FoldDiacritics strips combining marks after canonical decomposition.
func FoldDiacritics(s string) string {
	s = strayDiaeresis.ReplaceAllString(s, "")
	s = transliterations.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tokens lower-cases s, folds diacritics, and splits on anything that is
// not a letter or digit.
func tokens(s string) []string {
	s = strings.ToLower(FoldDiacritics(StripLatex(s)))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// editRatio returns 1 - distance/longer length.
func editRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// jaccard returns |a ∩ b| / |a ∪ b| over token sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

func withoutStopwords(toks []string, stop map[string]bool) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if !stop[t] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return toks
	}
	return out
}

func round(f float64) float64 {
	// Keep scores stable across platforms when they are compared for ties.
	const scale = 1e9
	if f < 0 {
		return -round(-f)
	}
	return float64(int64(f*scale+0.5)) / scale
}
