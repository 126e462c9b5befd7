// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"slices"
	"strconv"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// merge builds a new record from primary, filling its empty fields from
// supporters in order. Supporters must describe the same work; values that
// disagree with primary are returned as conflicts and never overwrite it.
// The merged record is nil when nothing was filled.
func (e *Engine) merge(primary types.CandidateRecord, supporters []types.CandidateRecord) (*types.CandidateRecord, []types.FieldConflict) {
	merged := primary
	merged.Authors = slices.Clone(primary.Authors)
	filled := false
	var conflicts []types.FieldConflict

	conflict := func(f types.Field, src types.CandidateRecord, p, o string) {
		c := types.FieldConflict{Field: f, Source: src.Provider(), Primary: p, Other: o}
		if !slices.Contains(conflicts, c) {
			conflicts = append(conflicts, c)
		}
	}

	for _, s := range supporters {
		if len(merged.Authors) == 0 && len(s.Authors) > 0 {
			merged.Authors = slices.Clone(s.Authors)
			filled = true
		}

		switch {
		case s.Venue == "":
		case merged.Venue == "":
			merged.Venue = s.Venue
			filled = true
		case !e.tk.VenuesAgree(primary.Venue, s.Venue) && primary.Venue != "":
			conflict(types.FieldVenue, s, primary.Venue, s.Venue)
		}

		switch {
		case s.Year == 0:
		case merged.Year == 0:
			merged.Year = s.Year
			filled = true
		case primary.Year != 0 && primary.Year != s.Year:
			conflict(types.FieldYear, s, strconv.Itoa(primary.Year), strconv.Itoa(s.Year))
		}

		// An arXiv DataCite DOI and a publisher DOI name two versions of
		// one work and are not a conflict.
		switch sd := similarity.NormalizeDOI(s.DOI); {
		case sd == "":
		case merged.DOI == "":
			merged.DOI = sd
			filled = true
		case primary.DOI != "" && !similarity.SameDOI(primary.DOI, sd) &&
			!similarity.IsArxivDOI(primary.DOI) && !similarity.IsArxivDOI(sd):
			conflict(types.FieldDOI, s, primary.DOI, sd)
		}

		if merged.ArxivID == "" {
			if id := similarity.RecordArxivID(s); id != "" {
				merged.ArxivID = id
				filled = true
			}
		}
		if merged.URL == "" && s.URL != "" {
			merged.URL = s.URL
			filled = true
		}
	}

	if !filled {
		return nil, conflicts
	}
	return &merged, conflicts
}
