// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed venues.yaml
var builtinVenues []byte

var (
	venueProceedings = regexp.MustCompile(`^(in\s+)?(proceedings|proc)\s+of\b\s*(the\b\s*)?`)
	venueOrdinal     = regexp.MustCompile(`\b\d+(st|nd|rd|th)\b`)
	venueShortYear   = regexp.MustCompile(`'\d{2}\b`)
	venueArxivID     = regexp.MustCompile(`(?i)arxiv:\s*\S+`)
)

var venueStopwords = map[string]bool{
	"of": true, "the": true, "on": true, "and": true, "in": true, "for": true, "&": true,
}

// NormalizeVenue returns the lower-case word sequence of a venue with
// numbers, ordinals, and any "Proceedings of the ORG Nth" prefix removed.
// A venue made only of generic words normalizes to "".
func NormalizeVenue(venue string) string {
	s := venueArxivID.ReplaceAllString(StripLatex(venue), " ")
	s = venueShortYear.ReplaceAllString(s, " ")
	// Bare numbers are years or volume numbers.
	var words []string
	for _, w := range tokens(s) {
		if strings.Trim(w, "0123456789") != "" {
			words = append(words, w)
		}
	}
	s = strings.Join(words, " ")

	if loc := venueProceedings.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
		// "ACM SIGOPS 29th Symposium on ..." keeps what follows the ordinal.
		if o := venueOrdinal.FindStringIndex(s); o != nil && len(strings.Fields(s[:o[0]])) <= 3 {
			s = s[o[1]:]
		}
	}
	s = venueOrdinal.ReplaceAllString(s, " ")
	s = strings.TrimPrefix(strings.TrimSpace(s), "in ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "proceedings" || s == "proc" {
		return ""
	}
	return s
}

func venueKey(normalized string) string {
	return strings.Join(withoutStopwords(strings.Fields(normalized), venueStopwords), " ")
}

// SynonymTable maps venue aliases to a canonical venue id.
type SynonymTable struct {
	byAlias map[string]string
	aliases map[string][]string
	names   map[string]string
}

type synonymFile struct {
	Venues []struct {
		ID      string   `yaml:"id"`
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"venues"`
}

// ParseSynonyms reads a synonym table in the venues.yaml format.
func ParseSynonyms(r io.Reader) (*SynonymTable, error) {
	var f synonymFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding venue synonyms: %w", err)
	}
	t := &SynonymTable{
		byAlias: make(map[string]string),
		aliases: make(map[string][]string),
		names:   make(map[string]string),
	}
	for _, v := range f.Venues {
		if v.ID == "" {
			return nil, fmt.Errorf("venue synonym entry %q has no id", v.Name)
		}
		t.add(v.ID, v.Name, v.Aliases)
	}
	return t, nil
}

func (t *SynonymTable) add(id, name string, aliases []string) {
	if name != "" {
		t.names[id] = name
		aliases = append(aliases, name)
	}
	for _, a := range aliases {
		key := venueKey(NormalizeVenue(a))
		if key == "" {
			continue
		}
		if _, ok := t.byAlias[key]; !ok {
			t.aliases[id] = append(t.aliases[id], key)
		}
		t.byAlias[key] = id
	}
}

var (
	builtinOnce  sync.Once
	builtinTable *SynonymTable
)

// DefaultSynonyms returns the embedded synonym table.
func DefaultSynonyms() *SynonymTable {
	builtinOnce.Do(func() {
		t, err := ParseSynonyms(strings.NewReader(string(builtinVenues)))
		if err != nil {
			panic(fmt.Sprintf("embedded venues.yaml: %v", err))
		}
		builtinTable = t
	})
	return builtinTable
}

// LoadSynonyms returns the embedded table extended with the entries in
// path. Entries in the file win over built-in aliases.
func LoadSynonyms(path string) (*SynonymTable, error) {
	base := DefaultSynonyms()
	if path == "" {
		return base, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening venue synonyms: %w", err)
	}
	defer f.Close()

	extra, err := ParseSynonyms(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return base.Merge(extra), nil
}

// Merge returns a new table holding t's entries overlaid with other's.
func (t *SynonymTable) Merge(other *SynonymTable) *SynonymTable {
	out := &SynonymTable{
		byAlias: make(map[string]string, len(t.byAlias)+len(other.byAlias)),
		aliases: make(map[string][]string),
		names:   make(map[string]string),
	}
	for _, src := range []*SynonymTable{t, other} {
		ids := make([]string, 0, len(src.aliases))
		for id := range src.aliases {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			for _, key := range src.aliases[id] {
				if _, ok := out.byAlias[key]; !ok {
					out.aliases[id] = append(out.aliases[id], key)
				}
				out.byAlias[key] = id
			}
		}
		for id, name := range src.names {
			out.names[id] = name
		}
	}
	return out
}

// Resolve returns the canonical id of venue, if the table knows it.
func (t *SynonymTable) Resolve(venue string) (string, bool) {
	key := venueKey(NormalizeVenue(venue))
	if key == "" {
		return "", false
	}
	id, ok := t.byAlias[key]
	return id, ok
}

// Name returns the display name of a canonical id.
func (t *SynonymTable) Name(id string) string {
	return t.names[id]
}

// Len returns the number of aliases in the table.
func (t *SynonymTable) Len() int {
	return len(t.byAlias)
}

// VenueSimilarity scores two venues in [0,1] using the synonym table and
// abbreviation-aware word overlap. Venues that normalize to "" score 0.
func VenueSimilarity(a, b string, table *SynonymTable) float64 {
	na, nb := venueKey(NormalizeVenue(a)), venueKey(NormalizeVenue(b))
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if table == nil {
		return round(abbreviationOverlap(na, nb))
	}
	ida, oka := table.byAlias[na]
	idb, okb := table.byAlias[nb]
	switch {
	case oka && okb:
		if ida == idb {
			return 1
		}
		return 0
	case oka:
		return round(bestAliasOverlap(nb, table.aliases[ida]))
	case okb:
		return round(bestAliasOverlap(na, table.aliases[idb]))
	default:
		return round(abbreviationOverlap(na, nb))
	}
}

// VenueKnown reports whether venue carries any comparable text.
func VenueKnown(venue string) bool {
	return NormalizeVenue(venue) != ""
}

func bestAliasOverlap(key string, aliases []string) float64 {
	best := 0.0
	for _, a := range aliases {
		best = max(best, abbreviationOverlap(key, a))
	}
	return best
}

// abbreviationOverlap is the Dice coefficient over words, where a word
// also matches a longer word it abbreviates ("phys" and "physical").
func abbreviationOverlap(a, b string) float64 {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	used := make([]bool, len(wb))
	matched := 0
	for _, x := range wa {
		for j, y := range wb {
			if !used[j] && abbreviates(x, y) {
				used[j] = true
				matched++
				break
			}
		}
	}
	return 2 * float64(matched) / float64(len(wa)+len(wb))
}

// abbreviates reports whether the shorter word is an abbreviation of the
// longer: same first letter and a subsequence of it.
func abbreviates(x, y string) bool {
	if x == y {
		return true
	}
	short, long := x, y
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) || short[0] != long[0] {
		return false
	}
	i := 0
	for j := 0; j < len(long) && i < len(short); j++ {
		if long[j] == short[i] {
			i++
		}
	}
	return i == len(short)
}
