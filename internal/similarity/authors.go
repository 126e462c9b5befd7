// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"cmp"
	"slices"

	"github.com/pdiddy/citecheck/pkg/types"
)

// AuthorPair links a cited author to a record author by index into the
// lists passed to CompareAuthors.
type AuthorPair struct {
	Cited int
	Found int
	Score float64
}

// AuthorAlignment is the best pairing of a cited author list with a
// record's author list. Indices refer to the original slices.
type AuthorAlignment struct {
	// Matched pairs scored at or above the name match threshold.
	Matched []AuthorPair

	// Misspelled pairs share a similar surname but did not match.
	// Score holds the surname similarity.
	Misspelled []AuthorPair

	// CitedOnly lists cited authors absent from the record.
	CitedOnly []int

	// FoundOnly lists record authors absent from the citation. Always
	// empty when the cited list is truncated with et al.
	FoundOnly []int

	// Truncated is set when the cited list ends with et al.
	Truncated bool

	// Score is the list similarity in [0,1], or -1 when the citation names
	// no authors.
	Score float64
}

// CompareAuthors aligns cited authors with record authors by best match
// rather than position. Duplicate record authors are counted once.
func CompareAuthors(cited, found []types.Author, cfg types.SimilarityConfig) AuthorAlignment {
	var al AuthorAlignment

	var citedIdx []int
	for i, a := range cited {
		switch {
		case a.IsEtAl():
			al.Truncated = true
		case a.FullName() != "":
			citedIdx = append(citedIdx, i)
		}
	}

	seen := make(map[string]bool, len(found))
	var foundIdx []int
	for i, a := range found {
		key := AuthorName(a).String()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		foundIdx = append(foundIdx, i)
	}

	if len(citedIdx) == 0 {
		al.Score = -1
		if !al.Truncated {
			al.FoundOnly = foundIdx
		}
		return al
	}

	names := make(map[int]Name, len(cited))
	for _, i := range citedIdx {
		names[i] = AuthorName(cited[i])
	}
	foundNames := make(map[int]Name, len(found))
	for _, j := range foundIdx {
		foundNames[j] = AuthorName(found[j])
	}

	var exact, near []AuthorPair
	for _, i := range citedIdx {
		for _, j := range foundIdx {
			s := nameSimilarity(names[i], foundNames[j])
			if s >= cfg.NameMatchThreshold {
				exact = append(exact, AuthorPair{Cited: i, Found: j, Score: s})
				continue
			}
			if f := familySimilarity(names[i], foundNames[j]); f >= cfg.NameMisspellThreshold {
				near = append(near, AuthorPair{Cited: i, Found: j, Score: round(f)})
			}
		}
	}

	usedCited := make(map[int]bool)
	usedFound := make(map[int]bool)
	al.Matched = assign(exact, usedCited, usedFound)
	al.Misspelled = assign(near, usedCited, usedFound)

	for _, i := range citedIdx {
		if !usedCited[i] {
			al.CitedOnly = append(al.CitedOnly, i)
		}
	}
	if !al.Truncated {
		for _, j := range foundIdx {
			if !usedFound[j] {
				al.FoundOnly = append(al.FoundOnly, j)
			}
		}
	}

	sum := 0.0
	for _, p := range al.Matched {
		sum += p.Score
	}
	for _, p := range al.Misspelled {
		sum += p.Score * 0.5
	}
	denom := len(citedIdx)
	if !al.Truncated {
		denom = max(denom, len(foundIdx))
	}
	al.Score = round(sum / float64(denom))
	return al
}

// assign greedily takes the best remaining pairs. Ties fall back to list
// position, which keeps the result deterministic.
func assign(pairs []AuthorPair, usedCited, usedFound map[int]bool) []AuthorPair {
	slices.SortStableFunc(pairs, func(a, b AuthorPair) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Cited, b.Cited); c != 0 {
			return c
		}
		return cmp.Compare(a.Found, b.Found)
	})
	var out []AuthorPair
	for _, p := range pairs {
		if usedCited[p.Cited] || usedFound[p.Found] {
			continue
		}
		usedCited[p.Cited] = true
		usedFound[p.Found] = true
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b AuthorPair) int { return cmp.Compare(a.Cited, b.Cited) })
	return out
}
