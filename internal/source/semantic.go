// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "paperId,title,authors,year,venue,journal,externalIds,url"

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	client     *client
	base       string
	maxResults int
}

// NewSemanticScholar builds the adapter. cfg.APIKey is sent as x-api-key.
func NewSemanticScholar(cfg types.SourceConfig, shared types.SourcesConfig, opts Options) Adapter {
	c := newClient(types.SourceSemanticScholar, cfg, shared, opts)
	if cfg.APIKey != "" {
		c.header.Set("x-api-key", cfg.APIKey)
	}
	return &SemanticScholar{client: c, base: baseURL(cfg, semanticAPIBase), maxResults: cfg.MaxResults}
}

// Name returns the source identifier.
func (s *SemanticScholar) Name() types.SourceName { return types.SourceSemanticScholar }

// Query looks the paper up by DOI, then arXiv id, then title search.
func (s *SemanticScholar) Query(ctx context.Context, q Query) iter.Seq2[types.CandidateRecord, error] {
	return lazy(func() ([]types.CandidateRecord, error) {
		var byID []func() (types.CandidateRecord, bool, error)
		if q.DOI != "" {
			byID = append(byID, func() (types.CandidateRecord, bool, error) { return s.paper(ctx, "DOI:"+q.DOI) })
		}
		if q.ArxivID != "" {
			byID = append(byID, func() (types.CandidateRecord, bool, error) { return s.paper(ctx, "ARXIV:"+q.ArxivID) })
		}
		return resolve(q, byID, func() ([]types.CandidateRecord, error) { return s.search(ctx, q) })
	})
}

func (s *SemanticScholar) paper(ctx context.Context, id string) (types.CandidateRecord, bool, error) {
	u := fmt.Sprintf("%s/paper/%s?%s", s.base, escapePath(id), url.Values{"fields": {semanticFields}}.Encode())
	body, found, err := s.client.get(ctx, u)
	if err != nil || !found {
		return types.CandidateRecord{}, false, err
	}
	var p semanticPaper
	if err := json.Unmarshal(body, &p); err != nil {
		return types.CandidateRecord{}, false, unavailable(s.Name(), fmt.Errorf("parsing Semantic Scholar paper: %w", err))
	}
	if p.PaperID == "" && p.Title == "" {
		return types.CandidateRecord{}, false, nil
	}
	return p.record(body), true, nil
}

func (s *SemanticScholar) search(ctx context.Context, q Query) ([]types.CandidateRecord, error) {
	text := q.SearchText()
	if text == "" {
		return nil, nil
	}
	params := url.Values{
		"query":  {text},
		"limit":  {strconv.Itoa(limitOr(s.maxResults, 10))},
		"fields": {semanticFields},
	}
	body, found, err := s.client.get(ctx, s.base+"/paper/search?"+params.Encode())
	if err != nil || !found {
		return nil, err
	}

	var sr struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("parsing Semantic Scholar search: %w", err))
	}
	var out []types.CandidateRecord
	for _, raw := range sr.Data {
		var p semanticPaper
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		out = append(out, p.record(raw))
	}
	return out, nil
}

// Semantic Scholar API JSON structures.
type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	Year        int                 `json:"year"`
	Venue       string              `json:"venue"`
	URL         string              `json:"url"`
	Journal     *semanticJournal    `json:"journal"`
	Authors     []semanticAuthor    `json:"authors"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticJournal struct {
	Name string `json:"name"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

func (p semanticPaper) record(raw []byte) types.CandidateRecord {
	r := types.CandidateRecord{
		Source:     types.SourceSemanticScholar,
		SourceID:   p.PaperID,
		Title:      p.Title,
		Venue:      p.Venue,
		Year:       p.Year,
		DOI:        similarity.NormalizeDOI(p.ExternalIDs.DOI),
		ArxivID:    similarity.NormalizeArxivID(p.ExternalIDs.ArXiv),
		URL:        p.URL,
		RawPayload: json.RawMessage(raw),
	}
	if r.Venue == "" && p.Journal != nil {
		r.Venue = p.Journal.Name
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			r.Authors = append(r.Authors, similarity.SplitDisplayName(a.Name))
		}
	}
	return r
}

func baseURL(cfg types.SourceConfig, def string) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return def
}

// escapePath escapes an identifier for use in a URL path, keeping the
// slashes and colons DOIs are made of.
func escapePath(s string) string {
	return (&url.URL{Path: s}).EscapedPath()
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
