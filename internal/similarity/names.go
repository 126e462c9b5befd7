// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"strings"
	"unicode"

	"github.com/pdiddy/citecheck/pkg/types"
)

// Name is a parsed, normalized personal name.
type Name struct {
	// Given holds lower-case given names and initials in order.
	Given []string

	// Family is the lower-case surname including particles ("van den oord").
	Family string

	// spelled is Family with German umlauts written out (ü → ue) when
	// that differs from the folded form.
	spelled string
}

// particles stay with the family name when they precede it.
var particles = map[string]bool{
	"van": true, "von": true, "der": true, "den": true, "de": true, "del": true,
	"della": true, "di": true, "da": true, "du": true, "des": true, "le": true,
	"la": true, "ben": true, "bin": true, "ibn": true, "al": true, "el": true,
	"dos": true, "das": true, "do": true, "ter": true, "ten": true,
}

var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

// ParseName parses "Given Family", "Family, Given", and initial forms
// such as "G.V. Abramkin" or "GV Abramkin".
func ParseName(raw string) Name {
	raw = strings.TrimSpace(StripLatex(raw))
	if raw == "" {
		return Name{}
	}
	spelled := germanUmlauts.Replace(raw)
	n := parseFolded(raw)
	if spelled != raw {
		n.spelled = parseFolded(spelled).Family
		if n.spelled == n.Family {
			n.spelled = ""
		}
	}
	return n
}

func parseFolded(raw string) Name {
	raw = FoldDiacritics(raw)

	if family, given, ok := strings.Cut(raw, ","); ok {
		// "Smith, Jr., John" keeps the given names after the suffix.
		if g, rest, ok := strings.Cut(given, ","); ok && suffixes[cleanLower(g)] {
			given = rest
		}
		fam := trimSuffixes(nameWords(family))
		if len(fam) > 0 {
			return Name{Given: givenTokens(given), Family: strings.Join(fam, " ")}
		}
		raw = given
	}

	words := trimSuffixes(nameWords(raw))
	if len(words) == 0 {
		return Name{}
	}
	start := len(words) - 1
	for start > 1 && particles[strings.ToLower(words[start-1])] {
		start--
	}
	return Name{
		Given:  givenTokens(strings.Join(words[:start], " ")),
		Family: strings.Join(lowerAll(words[start:]), " "),
	}
}

func trimSuffixes(words []string) []string {
	for len(words) > 1 && suffixes[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return words
}

// nameWords splits on spaces and periods, dropping punctuation inside
// words so that "O'Connor" becomes "OConnor". Case is kept so callers can
// detect run-together initials.
func nameWords(s string) []string {
	s = strings.ReplaceAll(s, ".", ". ")
	var out []string
	for _, f := range strings.Fields(s) {
		if w := cleanToken(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// givenTokens lower-cases given names, splitting hyphenated names and
// run-together upper-case initials ("GV" → "g", "v").
func givenTokens(s string) []string {
	var out []string
	for _, w := range nameWords(strings.ReplaceAll(s, "-", " ")) {
		if isInitialRun(w) {
			for _, r := range w {
				out = append(out, string(unicode.ToLower(r)))
			}
			continue
		}
		out = append(out, strings.ToLower(w))
	}
	return out
}

func isInitialRun(w string) bool {
	n := 0
	for _, r := range w {
		if !unicode.IsUpper(r) {
			return false
		}
		n++
	}
	return n >= 2 && n <= 3
}

func cleanToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lowerAll(ws []string) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = strings.ToLower(w)
	}
	return out
}

// String returns the canonical "given family" form.
func (n Name) String() string {
	parts := append(append([]string{}, n.Given...), n.Family)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Surname returns the family name without leading particles.
func (n Name) Surname() string {
	words := strings.Fields(n.Family)
	for len(words) > 1 && particles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// NormalizeName returns the canonical form of a personal name.
func NormalizeName(raw string) string {
	return ParseName(raw).String()
}

// AuthorName parses a structured author entry. When only one of the
// fields is filled it is parsed as a full name.
func AuthorName(a types.Author) Name {
	given, family := strings.TrimSpace(a.Given), strings.TrimSpace(a.Family)
	switch {
	case family == "":
		return ParseName(given)
	case given == "":
		return ParseName(family)
	default:
		return ParseName(family + ", " + given)
	}
}

// SplitDisplayName turns a provider's display name into an Author,
// keeping the original spelling.
func SplitDisplayName(raw string) types.Author {
	raw = strings.Join(strings.Fields(raw), " ")
	if family, given, ok := strings.Cut(raw, ","); ok {
		return types.Author{Given: strings.TrimSpace(given), Family: strings.TrimSpace(family)}
	}
	words := strings.Fields(raw)
	for len(words) > 1 && suffixes[cleanLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	if len(words) <= 1 {
		return types.Author{Family: strings.Join(words, " ")}
	}
	start := len(words) - 1
	for start > 1 && particles[cleanLower(words[start-1])] {
		start--
	}
	return types.Author{
		Given:  strings.Join(words[:start], " "),
		Family: strings.Join(words[start:], " "),
	}
}

func cleanLower(s string) string {
	return strings.ToLower(cleanToken(s))
}

// NameSimilarity scores two names in [0,1]. Surnames are compared by edit
// distance; given names by initial compatibility. Only names with the same
// canonical form score 1.
func NameSimilarity(a, b string) float64 {
	return nameSimilarity(ParseName(a), ParseName(b))
}

// AuthorSimilarity is NameSimilarity over structured author entries.
func AuthorSimilarity(a, b types.Author) float64 {
	return nameSimilarity(AuthorName(a), AuthorName(b))
}

func nameSimilarity(a, b Name) float64 {
	if a.Family == "" || b.Family == "" {
		return 0
	}
	if a.String() == b.String() {
		return 1
	}
	fam := familySimilarity(a, b)
	if fam >= 0.8 {
		return round(min(fam*givenScore(a.Given, b.Given), 0.99))
	}
	// Swapped "Family Given" order parses with the roles reversed.
	swapped := 0.9 * jaccard(nameTokens(a), nameTokens(b))
	return round(max(fam*0.5, swapped))
}

// familySimilarity compares surnames over their folded, spelled-out and
// particle-free variants.
func familySimilarity(a, b Name) float64 {
	best := 0.0
	for _, x := range familyVariants(a) {
		for _, y := range familyVariants(b) {
			best = max(best, editRatio(x, y))
		}
	}
	return best
}

func familyVariants(n Name) []string {
	join := func(s string) string { return strings.ReplaceAll(s, " ", "") }
	out := []string{join(n.Family)}
	if s := n.Surname(); s != n.Family {
		out = append(out, join(s))
	}
	if n.spelled != "" {
		out = append(out, join(n.spelled))
	}
	return out
}

// givenScore rates the agreement of two given-name lists.
func givenScore(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.9
	}
	n := min(len(a), len(b))
	for i := range n {
		if !compatible(a[i], b[i]) {
			return 0.3
		}
	}
	if len(a) == len(b) {
		same := true
		for i := range a {
			same = same && a[i] == b[i]
		}
		if same {
			return 1
		}
	}
	return 0.95
}

// compatible reports whether two given-name tokens can denote the same
// name: equal, or one is the initial of the other.
func compatible(x, y string) bool {
	if x == y {
		return true
	}
	if len(x) == 1 {
		return strings.HasPrefix(y, x)
	}
	if len(y) == 1 {
		return strings.HasPrefix(x, y)
	}
	return false
}

func nameTokens(n Name) []string {
	var out []string
	for _, t := range append(append([]string{}, n.Given...), strings.Fields(n.Family)...) {
		if len(t) > 1 {
			out = append(out, t)
		}
	}
	return out
}
