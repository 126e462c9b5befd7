// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// arxivAPIBase is the arXiv export API endpoint. Declared as a var so
// tests can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv queries the arXiv export API, which answers in Atom XML.
type Arxiv struct {
	client     *client
	base       string
	maxResults int
}

// NewArxiv builds the adapter. arXiv asks clients to stay at or below one
// request every three seconds.
func NewArxiv(cfg types.SourceConfig, shared types.SourcesConfig, opts Options) Adapter {
	return &Arxiv{
		client:     newClient(types.SourceArxiv, cfg, shared, opts),
		base:       baseURL(cfg, arxivAPIBase),
		maxResults: cfg.MaxResults,
	}
}

// Name returns the source identifier.
func (a *Arxiv) Name() types.SourceName { return types.SourceArxiv }

// Query looks the paper up by arXiv id, then by title and author search.
func (a *Arxiv) Query(ctx context.Context, q Query) iter.Seq2[types.CandidateRecord, error] {
	return lazy(func() ([]types.CandidateRecord, error) {
		var byID []func() (types.CandidateRecord, bool, error)
		if q.ArxivID != "" {
			byID = append(byID, func() (types.CandidateRecord, bool, error) {
				recs, err := a.feed(ctx, url.Values{"id_list": {q.ArxivID}})
				if err != nil || len(recs) == 0 {
					return types.CandidateRecord{}, false, err
				}
				return recs[0], true, nil
			})
		}
		return resolve(q, byID, func() ([]types.CandidateRecord, error) {
			sq := buildArxivQuery(q)
			if sq == "" {
				return nil, nil
			}
			return a.feed(ctx, url.Values{
				"search_query": {sq},
				"start":        {"0"},
				"max_results":  {strconv.Itoa(limitOr(a.maxResults, 10))},
				"sortBy":       {"relevance"},
			})
		})
	})
}

func (a *Arxiv) feed(ctx context.Context, params url.Values) ([]types.CandidateRecord, error) {
	body, found, err := a.client.get(ctx, a.base+"?"+params.Encode())
	if err != nil || !found {
		return nil, err
	}
	var f arxivFeed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, unavailable(a.Name(), fmt.Errorf("parsing arXiv response: %w", err))
	}
	var out []types.CandidateRecord
	for _, e := range f.Entries {
		// An unknown id_list entry comes back as an entry titled "Error"
		// whose id is not an abs/ link.
		if similarity.ArxivIDFromURL(e.ID) == "" {
			continue
		}
		out = append(out, e.record())
	}
	return out, nil
}

// buildArxivQuery constructs the search_query parameter from the title
// words and the first author's surname.
func buildArxivQuery(q Query) string {
	var parts []string
	if words := strings.Fields(similarity.NormalizeTitle(q.Title)); len(words) > 0 {
		parts = append(parts, `ti:"`+strings.Join(words, " ")+`"`)
	}
	if q.FirstAuthor != "" {
		parts = append(parts, "au:"+strings.Join(strings.Fields(q.FirstAuthor), "_"))
	}
	return strings.Join(parts, " AND ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id" json:"id"`
	Title      string        `xml:"title" json:"title"`
	Published  string        `xml:"published" json:"published"`
	Authors    []arxivAuthor `xml:"author" json:"authors"`
	DOI        string        `xml:"doi" json:"doi,omitempty"`
	JournalRef string        `xml:"journal_ref" json:"journal_ref,omitempty"`
	Comment    string        `xml:"comment" json:"comment,omitempty"`
}

type arxivAuthor struct {
	Name string `xml:"name" json:"name"`
}

func (e arxivEntry) record() types.CandidateRecord {
	id := similarity.ArxivIDFromURL(e.ID)
	r := types.CandidateRecord{
		Source:   types.SourceArxiv,
		SourceID: id,
		ArxivID:  id,
		Title:    strings.Join(strings.Fields(e.Title), " "),
		DOI:      similarity.NormalizeDOI(e.DOI),
		URL:      "https://arxiv.org/abs/" + id,
		Venue:    strings.TrimSpace(e.JournalRef),
	}
	if r.Venue == "" {
		r.Venue = "arXiv"
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		r.Year = t.Year()
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			r.Authors = append(r.Authors, similarity.SplitDisplayName(name))
		}
	}
	if raw, err := json.Marshal(e); err == nil {
		r.RawPayload = raw
	}
	return r
}
