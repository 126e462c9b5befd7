// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/json"

// SourceName identifies where a candidate record came from.
type SourceName string

const (
	SourceSemanticScholar SourceName = "semantic_scholar"
	SourceOpenAlex        SourceName = "openalex"
	SourceCrossref        SourceName = "crossref"
	SourceArxiv           SourceName = "arxiv"
	SourceWebPage         SourceName = "webpage"
	SourceCache           SourceName = "cache"
)

// CandidateRecord is one bibliographic entry returned by a source. Records
// are compared, never edited; merged views are built as new values.
type CandidateRecord struct {
	// Source identifies the provider that returned the record.
	Source SourceName `json:"source" yaml:"source"`

	// CachedFrom names the original provider when Source is SourceCache.
	CachedFrom SourceName `json:"cached_from,omitempty" yaml:"cached_from,omitempty"`

	// SourceID is the provider's own identifier (S2 paperId, OpenAlex W-id, ...).
	SourceID string `json:"source_id,omitempty" yaml:"source_id,omitempty"`

	Authors []Author `json:"authors" yaml:"authors"`
	Title   string   `json:"title" yaml:"title"`
	Venue   string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`
	DOI     string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID string   `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`

	// RawPayload keeps the provider's item verbatim for audit and debugging.
	RawPayload json.RawMessage `json:"raw_source_payload,omitempty" yaml:"-"`
}

// Provider returns the provider that originally produced the record,
// looking through the cache.
func (r CandidateRecord) Provider() SourceName {
	if r.Source == SourceCache && r.CachedFrom != "" {
		return r.CachedFrom
	}
	return r.Source
}
