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

// crossrefAPIBase is the Crossref REST API root. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org"

// Crossref queries the Crossref works API. arXiv identifiers are not
// registered with Crossref, so they go straight to search.
type Crossref struct {
	client     *client
	base       string
	mailto     string
	maxResults int
}

// NewCrossref builds the adapter. cfg.Mailto selects the polite pool.
func NewCrossref(cfg types.SourceConfig, shared types.SourcesConfig, opts Options) Adapter {
	return &Crossref{
		client:     newClient(types.SourceCrossref, cfg, shared, opts),
		base:       baseURL(cfg, crossrefAPIBase),
		mailto:     cfg.Mailto,
		maxResults: cfg.MaxResults,
	}
}

// Name returns the source identifier.
func (c *Crossref) Name() types.SourceName { return types.SourceCrossref }

// Query looks the work up by DOI, then by bibliographic search.
func (c *Crossref) Query(ctx context.Context, q Query) iter.Seq2[types.CandidateRecord, error] {
	return lazy(func() ([]types.CandidateRecord, error) {
		var byID []func() (types.CandidateRecord, bool, error)
		if q.DOI != "" {
			byID = append(byID, func() (types.CandidateRecord, bool, error) { return c.work(ctx, q.DOI) })
		}
		return resolve(q, byID, func() ([]types.CandidateRecord, error) { return c.search(ctx, q) })
	})
}

func (c *Crossref) params() url.Values {
	v := url.Values{}
	if c.mailto != "" {
		v.Set("mailto", c.mailto)
	}
	return v
}

func (c *Crossref) work(ctx context.Context, doi string) (types.CandidateRecord, bool, error) {
	u := c.base + "/works/" + escapePath(doi)
	if p := c.params().Encode(); p != "" {
		u += "?" + p
	}
	body, found, err := c.client.get(ctx, u)
	if err != nil || !found {
		return types.CandidateRecord{}, false, err
	}
	var resp struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.CandidateRecord{}, false, unavailable(c.Name(), fmt.Errorf("parsing Crossref work: %w", err))
	}
	var item crossrefItem
	if err := json.Unmarshal(resp.Message, &item); err != nil {
		return types.CandidateRecord{}, false, unavailable(c.Name(), fmt.Errorf("parsing Crossref work: %w", err))
	}
	if item.DOI == "" && len(item.Title) == 0 {
		return types.CandidateRecord{}, false, nil
	}
	return item.record(resp.Message), true, nil
}

func (c *Crossref) search(ctx context.Context, q Query) ([]types.CandidateRecord, error) {
	if q.Title == "" {
		return nil, nil
	}
	params := c.params()
	params.Set("query.bibliographic", q.Title)
	if q.FirstAuthor != "" {
		params.Set("query.author", q.FirstAuthor)
	}
	params.Set("rows", strconv.Itoa(limitOr(c.maxResults, 10)))

	body, found, err := c.client.get(ctx, c.base+"/works?"+params.Encode())
	if err != nil || !found {
		return nil, err
	}
	var resp struct {
		Message struct {
			Items []json.RawMessage `json:"items"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unavailable(c.Name(), fmt.Errorf("parsing Crossref search: %w", err))
	}
	var out []types.CandidateRecord
	for _, raw := range resp.Message.Items {
		var item crossrefItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		out = append(out, item.record(raw))
	}
	return out, nil
}

// Crossref API JSON structures.
type crossrefItem struct {
	DOI             string           `json:"DOI"`
	URL             string           `json:"URL"`
	Title           []string         `json:"title"`
	ContainerTitle  []string         `json:"container-title"`
	Event           *crossrefEvent   `json:"event"`
	Publisher       string           `json:"publisher"`
	Author          []crossrefAuthor `json:"author"`
	Issued          crossrefDate     `json:"issued"`
	PublishedPrint  crossrefDate     `json:"published-print"`
	PublishedOnline crossrefDate     `json:"published-online"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	// Name is set for organizational authors.
	Name string `json:"name"`
}

type crossrefEvent struct {
	Name string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]*int `json:"date-parts"`
}

func (d crossrefDate) year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == nil {
		return 0
	}
	return *d.DateParts[0][0]
}

func (it crossrefItem) record(raw []byte) types.CandidateRecord {
	r := types.CandidateRecord{
		Source:     types.SourceCrossref,
		SourceID:   strings.ToLower(it.DOI),
		DOI:        similarity.NormalizeDOI(it.DOI),
		URL:        it.URL,
		RawPayload: json.RawMessage(raw),
	}
	if len(it.Title) > 0 {
		r.Title = strings.Join(strings.Fields(it.Title[0]), " ")
	}
	switch {
	case len(it.ContainerTitle) > 0:
		r.Venue = it.ContainerTitle[0]
	case it.Event != nil:
		r.Venue = it.Event.Name
	}
	for _, d := range []crossrefDate{it.Issued, it.PublishedPrint, it.PublishedOnline} {
		if y := d.year(); y > 0 {
			r.Year = y
			break
		}
	}
	r.ArxivID = similarity.RecordArxivID(r)
	for _, a := range it.Author {
		switch {
		case a.Family != "":
			r.Authors = append(r.Authors, types.Author{Given: a.Given, Family: a.Family})
		case a.Name != "":
			r.Authors = append(r.Authors, types.Author{Family: a.Name})
		}
	}
	return r
}
