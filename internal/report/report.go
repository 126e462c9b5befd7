// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report turns match verdicts into severity-tagged findings and
// renders audit runs as tables, JSON, or YAML.
//
// In every Discrepancy, Expected holds the verified record's value and
// Found holds what the citation says.
package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// Reporter compares citations to their verified records.
type Reporter struct {
	tk *similarity.Toolkit
}

// New returns a reporter using the thresholds of tk. Nil selects the
// default toolkit.
func New(tk *similarity.Toolkit) *Reporter {
	if tk == nil {
		tk = similarity.Default()
	}
	return &Reporter{tk: tk}
}

// Report returns the findings for one citation in field order: citation,
// author, title, venue, year, doi, arxiv_id, url. A malformed or
// unverifiable citation yields a single Error on the citation field.
func (r *Reporter) Report(c types.Citation, v types.MatchVerdict) []types.Discrepancy {
	if v.Status == types.StatusMalformed {
		return []types.Discrepancy{{
			Field:    types.FieldCitation,
			Severity: types.SeverityError,
			Found:    c.Title,
			Message:  v.Malformed,
		}}
	}
	rec := v.Record()
	if rec == nil {
		msg := "unverifiable: no source record matched"
		if v.Reason != "" {
			msg = "unverifiable: " + v.Reason
		}
		if len(v.Unavailable) > 0 {
			msg += fmt.Sprintf(" (unavailable: %s)", joinSources(v.Unavailable))
		}
		return []types.Discrepancy{{
			Field:    types.FieldCitation,
			Severity: types.SeverityError,
			Found:    c.Title,
			Message:  msg,
		}}
	}

	var out []types.Discrepancy
	out = append(out, r.authors(c, *rec)...)
	out = append(out, r.title(c, *rec)...)
	out = append(out, r.venue(c, *rec)...)
	out = append(out, r.year(c, *rec)...)
	out = append(out, doi(c, *rec)...)
	out = append(out, arxiv(c, *rec)...)
	out = append(out, url(c, *rec)...)
	for _, fc := range v.Conflicts {
		out = append(out, types.Discrepancy{
			Field:    fc.Field,
			Severity: types.SeverityInfo,
			Expected: fc.Primary,
			Found:    fc.Other,
			Message:  fmt.Sprintf("%s reports %s %q, selected record has %q", fc.Source, fc.Field, fc.Other, fc.Primary),
		})
	}

	slices.SortStableFunc(out, func(a, b types.Discrepancy) int {
		return a.Field.Rank() - b.Field.Rank()
	})
	return out
}

func (r *Reporter) authors(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	if len(rec.Authors) == 0 {
		return nil
	}
	al := r.tk.Authors(c.Authors, rec.Authors)
	if al.Score < 0 {
		// Nothing but "et al." or no authors at all was cited.
		return nil
	}

	var out []types.Discrepancy
	misspelled := make(map[int]similarity.AuthorPair, len(al.Misspelled))
	for _, p := range al.Misspelled {
		misspelled[p.Cited] = p
	}
	missing := make(map[int]bool, len(al.CitedOnly))
	for _, i := range al.CitedOnly {
		missing[i] = true
	}

	for i, a := range c.Authors {
		if p, ok := misspelled[i]; ok {
			want := rec.Authors[p.Found].FullName()
			out = append(out, types.Discrepancy{
				Field:    types.FieldAuthor,
				Severity: types.SeverityWarning,
				Expected: want,
				Found:    a.FullName(),
				Message:  fmt.Sprintf("author name misspelled: cited %q, source has %q", a.FullName(), want),
			})
		}
		if missing[i] {
			list := authorList(rec.Authors)
			out = append(out, types.Discrepancy{
				Field:    types.FieldAuthor,
				Severity: types.SeverityError,
				Expected: list,
				Found:    a.FullName(),
				Message:  fmt.Sprintf("author %q not found in author list: %s", a.FullName(), list),
			})
		}
	}
	for _, j := range al.FoundOnly {
		name := rec.Authors[j].FullName()
		out = append(out, types.Discrepancy{
			Field:    types.FieldAuthor,
			Severity: types.SeverityError,
			Expected: name,
			Message:  fmt.Sprintf("author %q missing from citation", name),
		})
	}
	return out
}

func (r *Reporter) title(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	cfg := r.tk.Config()
	s := r.tk.Title(c.Title, rec.Title)
	if s >= cfg.TitleNoiseThreshold {
		return nil
	}
	sev := types.SeverityError
	if s >= cfg.TitleErrorThreshold {
		sev = types.SeverityWarning
	}
	return []types.Discrepancy{{
		Field:    types.FieldTitle,
		Severity: sev,
		Expected: rec.Title,
		Found:    c.Title,
		Message:  fmt.Sprintf("title mismatch: cited %q, source has %q", c.Title, rec.Title),
	}}
}

func (r *Reporter) venue(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	if !similarity.VenueKnown(rec.Venue) {
		return nil
	}
	if !similarity.VenueKnown(c.Venue) {
		return []types.Discrepancy{{
			Field:    types.FieldVenue,
			Severity: types.SeverityWarning,
			Expected: rec.Venue,
			Found:    c.Venue,
			Message:  fmt.Sprintf("missing venue: %q", rec.Venue),
		}}
	}
	if r.tk.VenuesAgree(c.Venue, rec.Venue) {
		return nil
	}
	return []types.Discrepancy{{
		Field:    types.FieldVenue,
		Severity: types.SeverityWarning,
		Expected: rec.Venue,
		Found:    c.Venue,
		Message:  fmt.Sprintf("venue mismatch: cited %q, source has %q", c.Venue, rec.Venue),
	}}
}

func (r *Reporter) year(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	var sev types.Severity
	switch r.tk.Years(c.Year, rec.Year) {
	case similarity.YearNear:
		sev = r.tk.Config().NearYearSeverity
		if sev == "" {
			sev = types.SeverityInfo
		}
	case similarity.YearMismatch:
		sev = types.SeverityWarning
	default:
		return nil
	}
	d := c.Year - rec.Year
	if d < 0 {
		d = -d
	}
	return []types.Discrepancy{{
		Field:    types.FieldYear,
		Severity: sev,
		Expected: strconv.Itoa(rec.Year),
		Found:    strconv.Itoa(c.Year),
		Message:  fmt.Sprintf("year differs by %d: cited %d, source has %d", d, c.Year, rec.Year),
	}}
}

func doi(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	raw := strings.TrimSpace(c.DOI)
	if raw == "" {
		return nil
	}
	cited := similarity.NormalizeDOI(raw)
	if cited == "" {
		return []types.Discrepancy{{
			Field:    types.FieldDOI,
			Severity: types.SeverityError,
			Expected: rec.DOI,
			Found:    raw,
			Message:  fmt.Sprintf("invalid DOI %q", raw),
		}}
	}
	if rec.DOI == "" || similarity.SameDOI(cited, rec.DOI) {
		return nil
	}
	// A cited arXiv DOI is checked against the record's arXiv id.
	if similarity.IsArxivDOI(cited) && similarity.NormalizeArxivID(cited) == similarity.RecordArxivID(rec) {
		return nil
	}
	return []types.Discrepancy{{
		Field:    types.FieldDOI,
		Severity: types.SeverityError,
		Expected: rec.DOI,
		Found:    raw,
		Message:  fmt.Sprintf("DOI mismatch: cited %s, source has %s", cited, similarity.NormalizeDOI(rec.DOI)),
	}}
}

func arxiv(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	raw := strings.TrimSpace(c.ArxivID)
	if raw == "" {
		return nil
	}
	want := similarity.RecordArxivID(rec)
	cited := similarity.NormalizeArxivID(raw)
	if cited == "" {
		return []types.Discrepancy{{
			Field:    types.FieldArxivID,
			Severity: types.SeverityError,
			Expected: want,
			Found:    raw,
			Message:  fmt.Sprintf("invalid arXiv id %q", raw),
		}}
	}
	if want == "" || cited == want {
		return nil
	}
	return []types.Discrepancy{{
		Field:    types.FieldArxivID,
		Severity: types.SeverityError,
		Expected: want,
		Found:    raw,
		Message:  fmt.Sprintf("arXiv id mismatch: cited %s, source has %s", cited, want),
	}}
}

// url checks identifier-bearing links and points at an arXiv version when
// the citation names none.
func url(c types.Citation, rec types.CandidateRecord) []types.Discrepancy {
	recArxiv := similarity.RecordArxivID(rec)

	if cited := similarity.DOIFromURL(c.URL); cited != "" && rec.DOI != "" && !similarity.SameDOI(cited, rec.DOI) {
		if !similarity.IsArxivDOI(cited) || similarity.NormalizeArxivID(cited) != recArxiv {
			return []types.Discrepancy{{
				Field:    types.FieldURL,
				Severity: types.SeverityWarning,
				Expected: "https://doi.org/" + similarity.NormalizeDOI(rec.DOI),
				Found:    c.URL,
				Message:  fmt.Sprintf("URL points to DOI %s, source has %s", cited, similarity.NormalizeDOI(rec.DOI)),
			}}
		}
	}
	if cited := similarity.ArxivIDFromURL(c.URL); cited != "" && recArxiv != "" && cited != recArxiv {
		return []types.Discrepancy{{
			Field:    types.FieldURL,
			Severity: types.SeverityWarning,
			Expected: arxivAbs(recArxiv),
			Found:    c.URL,
			Message:  fmt.Sprintf("URL points to arXiv %s, source has %s", cited, recArxiv),
		}}
	}
	if recArxiv != "" && similarity.CitationArxivID(c) == "" && c.URL == "" {
		return []types.Discrepancy{{
			Field:    types.FieldURL,
			Severity: types.SeverityInfo,
			Expected: arxivAbs(recArxiv),
			Message:  fmt.Sprintf("arXiv version available: %s", arxivAbs(recArxiv)),
		}}
	}
	return nil
}

func arxivAbs(id string) string { return "https://arxiv.org/abs/" + id }

func authorList(authors []types.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if n := a.FullName(); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

func joinSources(names []types.SourceName) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = string(n)
	}
	return strings.Join(s, ", ")
}
