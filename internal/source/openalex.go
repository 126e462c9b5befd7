// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// openAlexAPIBase is the OpenAlex API root. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org"

// OpenAlex queries the OpenAlex works API.
type OpenAlex struct {
	client     *client
	base       string
	mailto     string
	maxResults int
}

// NewOpenAlex builds the adapter. cfg.Mailto selects the polite pool.
func NewOpenAlex(cfg types.SourceConfig, shared types.SourcesConfig, opts Options) Adapter {
	return &OpenAlex{
		client:     newClient(types.SourceOpenAlex, cfg, shared, opts),
		base:       baseURL(cfg, openAlexAPIBase),
		mailto:     cfg.Mailto,
		maxResults: cfg.MaxResults,
	}
}

// Name returns the source identifier.
func (o *OpenAlex) Name() types.SourceName { return types.SourceOpenAlex }

// Query looks the work up by DOI (arXiv ids through their DataCite DOI),
// then by title search.
func (o *OpenAlex) Query(ctx context.Context, q Query) iter.Seq2[types.CandidateRecord, error] {
	return lazy(func() ([]types.CandidateRecord, error) {
		var byID []func() (types.CandidateRecord, bool, error)
		if q.DOI != "" {
			byID = append(byID, func() (types.CandidateRecord, bool, error) { return o.work(ctx, q.DOI) })
		}
		if q.ArxivID != "" {
			doi := "10.48550/arxiv." + q.ArxivID
			byID = append(byID, func() (types.CandidateRecord, bool, error) { return o.work(ctx, doi) })
		}
		return resolve(q, byID, func() ([]types.CandidateRecord, error) { return o.search(ctx, q) })
	})
}

func (o *OpenAlex) params() url.Values {
	v := url.Values{}
	if o.mailto != "" {
		v.Set("mailto", o.mailto)
	}
	return v
}

func (o *OpenAlex) work(ctx context.Context, doi string) (types.CandidateRecord, bool, error) {
	u := o.base + "/works/https://doi.org/" + escapePath(doi)
	if p := o.params().Encode(); p != "" {
		u += "?" + p
	}
	body, found, err := o.client.get(ctx, u)
	if err != nil || !found {
		return types.CandidateRecord{}, false, err
	}
	var w openAlexWork
	if err := json.Unmarshal(body, &w); err != nil {
		return types.CandidateRecord{}, false, unavailable(o.Name(), fmt.Errorf("parsing OpenAlex work: %w", err))
	}
	if w.ID == "" {
		return types.CandidateRecord{}, false, nil
	}
	return w.record(body), true, nil
}

func (o *OpenAlex) search(ctx context.Context, q Query) ([]types.CandidateRecord, error) {
	text := q.SearchText()
	if text == "" {
		return nil, nil
	}
	params := o.params()
	params.Set("search", text)
	params.Set("per_page", strconv.Itoa(min(limitOr(o.maxResults, 10), 200)))

	body, found, err := o.client.get(ctx, o.base+"/works?"+params.Encode())
	if err != nil || !found {
		return nil, err
	}
	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unavailable(o.Name(), fmt.Errorf("parsing OpenAlex search: %w", err))
	}
	var out []types.CandidateRecord
	for _, raw := range resp.Results {
		var w openAlexWork
		if err := json.Unmarshal(raw, &w); err != nil {
			continue
		}
		out = append(out, w.record(raw))
	}
	return out, nil
}

// OpenAlex API JSON structures.
type openAlexWork struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	DisplayName     string               `json:"display_name"`
	DOI             string               `json:"doi"`
	PublicationYear int                  `json:"publication_year"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	PrimaryLocation *openAlexLocation    `json:"primary_location"`
	IDs             map[string]any       `json:"ids"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	LandingPageURL string          `json:"landing_page_url"`
	Source         *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

func (w openAlexWork) record(raw []byte) types.CandidateRecord {
	r := types.CandidateRecord{
		Source:     types.SourceOpenAlex,
		SourceID:   strings.TrimPrefix(w.ID, "https://openalex.org/"),
		Title:      w.Title,
		Year:       w.PublicationYear,
		DOI:        similarity.NormalizeDOI(w.DOI),
		RawPayload: json.RawMessage(raw),
	}
	if r.Title == "" {
		r.Title = w.DisplayName
	}
	if loc := w.PrimaryLocation; loc != nil {
		r.URL = loc.LandingPageURL
		if loc.Source != nil {
			r.Venue = loc.Source.DisplayName
		}
	}
	r.ArxivID = similarity.RecordArxivID(r)
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			r.Authors = append(r.Authors, similarity.SplitDisplayName(a.Author.DisplayName))
		}
	}
	return r
}
