// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"regexp"
	"strings"

	"github.com/pdiddy/citecheck/pkg/types"
)

var (
	// doiPattern matches DOIs: "10.1145/1234567.1234568".
	doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

	// doiPrefix matches resolver and scheme prefixes in front of a DOI.
	doiPrefix = regexp.MustCompile(`^(?:https?://)?(?:dx\.)?(?:www\.)?doi\.org/|^doi:\s*|^doi\s+`)

	// arxivNew matches "2301.07041" with an optional version.
	arxivNew = regexp.MustCompile(`^(\d{4}\.\d{4,5})(?:v\d+)?$`)

	// arxivOld matches pre-2007 identifiers such as "hep-th/9901001v2".
	arxivOld = regexp.MustCompile(`^([a-z\-]+(?:\.[a-z]{2})?/\d{7})(?:v\d+)?$`)

	// arxivURL captures the identifier of an abs/ or pdf/ link.
	arxivURL = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([^?#\s]+)`)

	// arxivInText finds "arXiv:1610.10099" inside free text.
	arxivInText = regexp.MustCompile(`(?i)arxiv[:\s]\s*(\d{4}\.\d{4,5}(?:v\d+)?)`)

	// arxivDOI matches DataCite DOIs minted for arXiv papers.
	arxivDOI = regexp.MustCompile(`^10\.48550/arxiv\.(.+)$`)
)

// NormalizeDOI returns the canonical lower-case DOI, or "" when s does not
// hold one. Resolver prefixes, query strings, fragments, and trailing
// punctuation are removed.
func NormalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = doiPrefix.ReplaceAllString(s, "")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, ".,;:)]}")
	if !doiPattern.MatchString(s) {
		return ""
	}
	return s
}

// SameDOI reports whether a and b name the same DOI. Empty or invalid
// values never compare equal.
func SameDOI(a, b string) bool {
	na := NormalizeDOI(a)
	return na != "" && na == NormalizeDOI(b)
}

// NormalizeArxivID returns the versionless arXiv identifier in s, or "".
// It accepts bare ids, "arXiv:" prefixes, abs/pdf links, and arXiv DOIs.
func NormalizeArxivID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if id := ArxivIDFromURL(s); id != "" {
		return id
	}
	if m := arxivDOI.FindStringSubmatch(NormalizeDOI(s)); m != nil {
		s = m[1]
	}
	s = strings.ToLower(s)
	s = strings.TrimPrefix(s, "arxiv:")
	s = strings.TrimSuffix(strings.TrimSpace(s), ".pdf")
	if m := arxivNew.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := arxivOld.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// SameArxivID reports whether a and b name the same arXiv paper,
// ignoring versions.
func SameArxivID(a, b string) bool {
	na := NormalizeArxivID(a)
	return na != "" && na == NormalizeArxivID(b)
}

// ArxivIDFromURL extracts the identifier of an arxiv.org abs/ or pdf/ link.
func ArxivIDFromURL(u string) string {
	m := arxivURL.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	id := strings.TrimSuffix(strings.ToLower(m[1]), ".pdf")
	if mm := arxivNew.FindStringSubmatch(id); mm != nil {
		return mm[1]
	}
	if mm := arxivOld.FindStringSubmatch(id); mm != nil {
		return mm[1]
	}
	return ""
}

// ArxivIDFromText finds an "arXiv:NNNN.NNNNN" mention in free text such
// as a venue string ("arXiv preprint arXiv:1610.10099").
func ArxivIDFromText(s string) string {
	m := arxivInText.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return NormalizeArxivID(m[1])
}

// DOIFromURL extracts the DOI of a doi.org link.
func DOIFromURL(u string) string {
	if !strings.Contains(strings.ToLower(u), "doi.org/") {
		return ""
	}
	return NormalizeDOI(u)
}

// CitationDOI returns the citation's normalized DOI, falling back to a
// doi.org link in its URL.
func CitationDOI(c types.Citation) string {
	if d := NormalizeDOI(c.DOI); d != "" {
		return d
	}
	return DOIFromURL(c.URL)
}

// CitationArxivID returns the citation's arXiv identifier, falling back
// to its URL, an arXiv DOI, and finally an id mentioned in the venue.
func CitationArxivID(c types.Citation) string {
	if id := NormalizeArxivID(c.ArxivID); id != "" {
		return id
	}
	if id := ArxivIDFromURL(c.URL); id != "" {
		return id
	}
	if m := arxivDOI.FindStringSubmatch(CitationDOI(c)); m != nil {
		return NormalizeArxivID(m[1])
	}
	return ArxivIDFromText(c.Venue)
}

// RecordArxivID returns the record's arXiv identifier, falling back to its
// DOI and URL.
func RecordArxivID(r types.CandidateRecord) string {
	if id := NormalizeArxivID(r.ArxivID); id != "" {
		return id
	}
	if m := arxivDOI.FindStringSubmatch(NormalizeDOI(r.DOI)); m != nil {
		return NormalizeArxivID(m[1])
	}
	return ArxivIDFromURL(r.URL)
}

// IsArxivDOI reports whether doi is a DataCite DOI minted for an arXiv
// paper ("10.48550/arXiv.1706.03762").
func IsArxivDOI(doi string) bool {
	return arxivDOI.MatchString(NormalizeDOI(doi))
}
