// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citecheck/pkg/types"
)

const attentionPaper = `{
  "paperId": "204e3073870fae3d05bcbc2f6a8e263d9b72e776",
  "title": "Attention is All you Need",
  "year": 2017,
  "venue": "Neural Information Processing Systems",
  "url": "https://www.semanticscholar.org/paper/204e3073870fae3d05bcbc2f6a8e263d9b72e776",
  "journal": null,
  "authors": [
    {"authorId": "40348417", "name": "Ashish Vaswani"},
    {"authorId": "1846258", "name": "Noam M. Shazeer"},
    {"authorId": "3877127", "name": "Niki Parmar"}
  ],
  "externalIds": {"DOI": "10.5555/3295222.3295349", "ArXiv": "1706.03762", "CorpusId": 13756489},
  "unknownField": {"nested": true}
}`

func withSemanticServer(t *testing.T, h http.HandlerFunc) *SemanticScholar {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	t.Cleanup(func() { semanticAPIBase = old })

	cfg := testSourceCfg()
	cfg.APIKey = "secret-key"
	return NewSemanticScholar(cfg, testShared(), Options{HTTPClient: ts.Client()}).(*SemanticScholar)
}

func TestSemanticScholarLookupByDOI(t *testing.T) {
	var gotPath, gotKey, gotUA string
	a := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, attentionPaper)
	})

	recs, err := Collect(a.Query(context.Background(), Query{
		Title: "Attention Is All You Need",
		DOI:   "10.5555/3295222.3295349",
	}))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "/paper/DOI:10.5555/3295222.3295349", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "citecheck-test", gotUA)

	r := recs[0]
	assert.Equal(t, types.SourceSemanticScholar, r.Source)
	assert.Equal(t, "Attention is All you Need", r.Title)
	assert.Equal(t, 2017, r.Year)
	assert.Equal(t, "1706.03762", r.ArxivID)
	assert.Equal(t, "10.5555/3295222.3295349", r.DOI)
	assert.Equal(t, "Neural Information Processing Systems", r.Venue)
	require.Len(t, r.Authors, 3)
	assert.Equal(t, types.Author{Given: "Noam M.", Family: "Shazeer"}, r.Authors[1])
	assert.Contains(t, string(r.RawPayload), "unknownField")
}

func TestSemanticScholarFallsBackToSearch(t *testing.T) {
	var paths []string
	a := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/paper/DOI:") || strings.HasPrefix(r.URL.Path, "/paper/ARXIV:") {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"Paper not found"}`)
			return
		}
		assert.Equal(t, "Attention Is All You Need Vaswani", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"total":2,"offset":0,"data":[%s,{"paperId":"x","title":"Gas","year":1999}]}`, attentionPaper)
	})

	recs, err := Collect(a.Query(context.Background(), Query{
		Title:        "Attention Is All You Need",
		FirstAuthor:  "Vaswani",
		DOI:          "10.1/missing",
		ArxivID:      "1706.99999",
		MinRelevance: 0.2,
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"/paper/DOI:10.1/missing", "/paper/ARXIV:1706.99999", "/paper/search"}, paths)
	require.Len(t, recs, 1, "irrelevant search hits are dropped")
	assert.Equal(t, "204e3073870fae3d05bcbc2f6a8e263d9b72e776", recs[0].SourceID)
}

func TestSemanticScholarIdentifierHitForOtherPaperAlsoSearches(t *testing.T) {
	other := `{"paperId":"other","title":"Deep Residual Learning for Image Recognition","year":2016,"authors":[{"name":"Kaiming He"}],"externalIds":{"DOI":"10.1109/cvpr.2016.90"}}`
	a := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/paper/DOI:") {
			fmt.Fprint(w, other)
			return
		}
		fmt.Fprintf(w, `{"data":[%s]}`, attentionPaper)
	})

	recs, err := Collect(a.Query(context.Background(), Query{
		Title: "Attention Is All You Need",
		DOI:   "10.1109/cvpr.2016.90",
	}))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "other", recs[0].SourceID)
	assert.Equal(t, "204e3073870fae3d05bcbc2f6a8e263d9b72e776", recs[1].SourceID)
}

func TestSemanticScholarEmptySearch(t *testing.T) {
	a := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":0,"offset":0}`)
	})
	recs, err := Collect(a.Query(context.Background(), Query{Title: "Nothing Matches This"}))
	require.NoError(t, err)
	assert.Empty(t, recs)
}
