// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"math"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// Score is the similarity of one candidate to a citation.
type Score struct {
	// Total is the weighted mean of the known components, in [0,1].
	Total float64

	// Fields holds each known component. Components the citation or the
	// record lacks are absent.
	Fields map[types.Field]float64
}

// Score compares a candidate record to a citation. Title always counts;
// author, venue, and year count only when both sides carry them, and the
// remaining weights are renormalized.
func (e *Engine) Score(c types.Citation, rec types.CandidateRecord) Score {
	fields := map[types.Field]float64{
		types.FieldTitle: e.tk.Title(c.Title, rec.Title),
	}
	if len(rec.Authors) > 0 {
		if a := e.tk.Authors(c.Authors, rec.Authors); a.Score >= 0 {
			fields[types.FieldAuthor] = a.Score
		}
	}
	if c.Venue != "" && rec.Venue != "" {
		fields[types.FieldVenue] = e.tk.Venue(c.Venue, rec.Venue)
	}
	if y := e.tk.YearScore(c.Year, rec.Year); y >= 0 {
		fields[types.FieldYear] = y
	}

	weights := map[types.Field]float64{
		types.FieldTitle:  e.cfg.TitleWeight,
		types.FieldAuthor: e.cfg.AuthorWeight,
		types.FieldVenue:  e.cfg.VenueWeight,
		types.FieldYear:   e.cfg.YearWeight,
	}
	var sum, total float64
	for f, s := range fields {
		w := weights[f]
		sum += w * s
		total += w
	}
	if total == 0 {
		return Score{Fields: fields}
	}
	return Score{Total: round(sum / total), Fields: fields}
}

// round trims floating-point noise so equal inputs compare equal
// regardless of map iteration order.
func round(x float64) float64 {
	return math.Round(x*1e9) / 1e9
}

// sameWork reports whether two records describe the same work: near
// identical titles, compatible years, and no conflicting arXiv ids.
func (e *Engine) sameWork(a, b types.CandidateRecord) bool {
	if e.tk.Title(a.Title, b.Title) < e.cfg.MergeAgreement {
		return false
	}
	if e.tk.Years(a.Year, b.Year) == similarity.YearMismatch {
		return false
	}
	ida, idb := similarity.RecordArxivID(a), similarity.RecordArxivID(b)
	return ida == "" || idb == "" || ida == idb
}
