// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import "github.com/pdiddy/citecheck/pkg/types"

// Toolkit binds the comparison functions to one set of thresholds and a
// venue synonym table. It is immutable and safe for concurrent use.
type Toolkit struct {
	cfg    types.SimilarityConfig
	venues *SynonymTable
}

// New returns a Toolkit. A nil table selects the embedded synonyms.
func New(cfg types.SimilarityConfig, venues *SynonymTable) *Toolkit {
	if venues == nil {
		venues = DefaultSynonyms()
	}
	return &Toolkit{cfg: cfg, venues: venues}
}

// Default returns a Toolkit with default thresholds and built-in synonyms.
func Default() *Toolkit {
	return New(types.DefaultSimilarityConfig(), nil)
}

// Config returns the thresholds in use.
func (t *Toolkit) Config() types.SimilarityConfig { return t.cfg }

// Synonyms returns the venue synonym table in use.
func (t *Toolkit) Synonyms() *SynonymTable { return t.venues }

func (t *Toolkit) Title(a, b string) float64 {
	return TitleSimilarity(a, b, t.cfg.TitlePrefixBonus)
}

func (t *Toolkit) Venue(a, b string) float64 {
	return VenueSimilarity(a, b, t.venues)
}

// VenuesAgree reports whether two known venues clear the venue threshold.
func (t *Toolkit) VenuesAgree(a, b string) bool {
	return t.Venue(a, b) >= t.cfg.VenueMatchThreshold
}

func (t *Toolkit) Authors(cited, found []types.Author) AuthorAlignment {
	return CompareAuthors(cited, found, t.cfg)
}

func (t *Toolkit) Years(a, b int) YearResult {
	return CompareYears(a, b, t.cfg.YearTolerance)
}

// YearScore maps a year comparison to a score, -1 when unknown.
func (t *Toolkit) YearScore(a, b int) float64 {
	switch t.Years(a, b) {
	case YearExact:
		return 1
	case YearNear:
		return t.cfg.NearYearScore
	case YearMismatch:
		return 0
	default:
		return -1
	}
}
