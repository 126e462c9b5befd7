// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Field names a citation field compared during reporting.
type Field string

const (
	// FieldCitation is used for findings that cover the whole citation.
	FieldCitation Field = "citation"
	FieldAuthor   Field = "author"
	FieldTitle    Field = "title"
	FieldVenue    Field = "venue"
	FieldYear     Field = "year"
	FieldDOI      Field = "doi"
	FieldArxivID  Field = "arxiv_id"
	FieldURL      Field = "url"
)

// FieldOrder is the citation field order used to sequence discrepancies.
var FieldOrder = []Field{
	FieldCitation, FieldAuthor, FieldTitle, FieldVenue, FieldYear, FieldDOI, FieldArxivID, FieldURL,
}

// Rank returns the position of f in FieldOrder, or len(FieldOrder) when unknown.
func (f Field) Rank() int {
	for i, o := range FieldOrder {
		if o == f {
			return i
		}
	}
	return len(FieldOrder)
}

// Severity ranks a discrepancy.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Level orders severities: info < warning < error.
func (s Severity) Level() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Status summarizes how far a citation could be verified.
type Status string

const (
	// StatusVerified means a match was accepted and every consulted source answered.
	StatusVerified Status = "verified"
	// StatusPartial means a match was accepted while some sources were unavailable.
	StatusPartial Status = "partial"
	// StatusUnverifiable means no candidate cleared the acceptance threshold.
	StatusUnverifiable Status = "unverifiable"
	// StatusMalformed means the citation was rejected before any lookup.
	StatusMalformed Status = "malformed"
)

// Reasons a citation carrying a plain web URL stayed unverifiable after
// the page itself was checked.
const (
	ReasonPageMissing   = "non-existent web page"
	ReasonPageUnrelated = "paper not found and URL doesn't reference it"
	ReasonPageOnly      = "paper not verified but URL references paper"
)

// FieldConflict records a supplementary source disagreeing with the
// selected record on one field.
type FieldConflict struct {
	Field  Field      `json:"field" yaml:"field"`
	Source SourceName `json:"source" yaml:"source"`
	// Primary is the value on the selected record.
	Primary string `json:"primary" yaml:"primary"`
	// Other is the value reported by Source.
	Other string `json:"other" yaml:"other"`
}

// MatchVerdict is the engine's decision for one citation.
type MatchVerdict struct {
	CitationIndex int `json:"citation_index" yaml:"citation_index"`

	// Matched is the selected candidate, nil for no match.
	Matched *CandidateRecord `json:"matched_record,omitempty" yaml:"matched_record,omitempty"`

	// Merged is Matched with empty fields filled from agreeing sources.
	// Nil when nothing was merged.
	Merged *CandidateRecord `json:"merged_record,omitempty" yaml:"merged_record,omitempty"`

	// Confidence is the aggregate score of the accepted candidate in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// FieldScores holds per-field similarity of the best candidate.
	FieldScores map[Field]float64 `json:"field_scores,omitempty" yaml:"field_scores,omitempty"`

	Conflicts []FieldConflict `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`

	// Ambiguous is set when several candidates tied for the top score.
	Ambiguous bool `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`

	// Unavailable lists sources that failed for this citation.
	Unavailable []SourceName `json:"unavailable_sources,omitempty" yaml:"unavailable_sources,omitempty"`

	// Consulted lists the sources queried for this citation, in priority order.
	Consulted []SourceName `json:"consulted_sources,omitempty" yaml:"consulted_sources,omitempty"`

	FromCache bool `json:"from_cache,omitempty" yaml:"from_cache,omitempty"`

	// Malformed carries the reason a citation was rejected before lookup.
	Malformed string `json:"malformed,omitempty" yaml:"malformed,omitempty"`

	// Reason explains an unverifiable verdict when the cited web page was
	// checked. One of the Reason constants.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	Status Status `json:"status" yaml:"status"`
}

// Record returns the record discrepancies are computed against: the merged
// view when present, otherwise the matched candidate.
func (v MatchVerdict) Record() *CandidateRecord {
	if v.Merged != nil {
		return v.Merged
	}
	return v.Matched
}

// IsMatch reports whether a candidate was accepted.
func (v MatchVerdict) IsMatch() bool {
	return v.Matched != nil
}

// Discrepancy is one reported difference between a citation and its
// verified record.
type Discrepancy struct {
	Field    Field    `json:"field" yaml:"field"`
	Severity Severity `json:"severity" yaml:"severity"`
	Expected string   `json:"expected" yaml:"expected"`
	Found    string   `json:"found" yaml:"found"`
	Message  string   `json:"message" yaml:"message"`
}

// CitationResult groups everything the audit produced for one citation.
type CitationResult struct {
	Index         int           `json:"index" yaml:"index"`
	Citation      Citation      `json:"citation" yaml:"citation"`
	Verdict       MatchVerdict  `json:"verdict" yaml:"verdict"`
	Discrepancies []Discrepancy `json:"discrepancies" yaml:"discrepancies"`
}

// MaxSeverity returns the highest severity among the discrepancies and
// false when there are none.
func (r CitationResult) MaxSeverity() (Severity, bool) {
	if len(r.Discrepancies) == 0 {
		return "", false
	}
	best := r.Discrepancies[0].Severity
	for _, d := range r.Discrepancies[1:] {
		if d.Severity.Level() > best.Level() {
			best = d.Severity
		}
	}
	return best, true
}

// RunSummary counts citations by status and discrepancies by severity.
type RunSummary struct {
	Total        int `json:"total" yaml:"total"`
	Verified     int `json:"verified" yaml:"verified"`
	Partial      int `json:"partial" yaml:"partial"`
	Unverifiable int `json:"unverifiable" yaml:"unverifiable"`
	Malformed    int `json:"malformed" yaml:"malformed"`
	Errors       int `json:"errors" yaml:"errors"`
	Warnings     int `json:"warnings" yaml:"warnings"`
	Infos        int `json:"infos" yaml:"infos"`
}

// RunResult is the outcome of auditing a manuscript's reference list.
// Results are in input order.
type RunResult struct {
	RunID     string           `json:"run_id" yaml:"run_id"`
	StartedAt time.Time        `json:"started_at" yaml:"started_at"`
	Duration  time.Duration    `json:"duration" yaml:"duration"`
	TimedOut  bool             `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	Results   []CitationResult `json:"results" yaml:"results"`
	Summary   RunSummary       `json:"summary" yaml:"summary"`
}

// Summarize computes the summary for results.
func Summarize(results []CitationResult) RunSummary {
	s := RunSummary{Total: len(results)}
	for _, r := range results {
		switch r.Verdict.Status {
		case StatusVerified:
			s.Verified++
		case StatusPartial:
			s.Partial++
		case StatusUnverifiable:
			s.Unverifiable++
		case StatusMalformed:
			s.Malformed++
		}
		for _, d := range r.Discrepancies {
			switch d.Severity {
			case SeverityError:
				s.Errors++
			case SeverityWarning:
				s.Warnings++
			default:
				s.Infos++
			}
		}
	}
	return s
}
