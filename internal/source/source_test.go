// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citecheck/pkg/types"
)

func testSourceCfg() types.SourceConfig {
	return types.SourceConfig{
		Enabled:       true,
		Burst:         1,
		MaxConcurrent: 2,
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		MaxWait:       time.Second,
		MaxResults:    5,
	}
}

func testShared() types.SourcesConfig {
	return types.SourcesConfig{Timeout: 5 * time.Second, UserAgent: "citecheck-test"}
}

func TestBuildQuery(t *testing.T) {
	c := types.Citation{
		Authors: []types.Author{{Given: "A.", Family: "Vaswani"}, {Family: "et al."}},
		Title:   " Attention Is All You Need ",
		Venue:   "arXiv preprint arXiv:1706.03762",
		Year:    2017,
		URL:     "https://doi.org/10.5555/3295222.3295349",
	}
	q := BuildQuery(c, 0.2)
	assert.Equal(t, "Attention Is All You Need", q.Title)
	assert.Equal(t, "Vaswani", q.FirstAuthor)
	assert.Equal(t, 2017, q.Year)
	assert.Equal(t, "10.5555/3295222.3295349", q.DOI)
	assert.Equal(t, "1706.03762", q.ArxivID)
	assert.True(t, q.HasIdentifier())
	assert.Equal(t, "Attention Is All You Need Vaswani", q.SearchText())
	assert.Equal(t, "https://doi.org/10.5555/3295222.3295349", q.URL)
}

func TestBuildQueryKeepsOnlyWebURLs(t *testing.T) {
	q := BuildQuery(types.Citation{Title: "X", URL: " https://example.com/post "}, 0)
	assert.Equal(t, "https://example.com/post", q.URL)
	assert.False(t, q.HasIdentifier())

	assert.Empty(t, BuildQuery(types.Citation{Title: "X", URL: "ftp://example.com/file"}, 0).URL)
	assert.Empty(t, BuildQuery(types.Citation{Title: "X", URL: "see footnote"}, 0).URL)
}

func TestBuildQuerySingleFieldAuthor(t *testing.T) {
	q := BuildQuery(types.Citation{Title: "X", Authors: []types.Author{{Family: "Omar Khattab"}}}, 0)
	assert.Equal(t, "khattab", q.FirstAuthor)
	assert.False(t, q.HasIdentifier())
}

func TestLazyMakesNoRequestUntilRanged(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"message":{"items":[]}}`))
	}))
	defer ts.Close()

	cfg := testSourceCfg()
	cfg.BaseURL = ts.URL
	a := NewCrossref(cfg, testShared(), Options{HTTPClient: ts.Client()})

	seq := a.Query(context.Background(), Query{Title: "Attention Is All You Need"})
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	_, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Ranging again issues a fresh request.
	_, err = Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUnavailableAfterRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := testSourceCfg()
	cfg.BaseURL = ts.URL
	a := NewOpenAlex(cfg, testShared(), Options{HTTPClient: ts.Client()})

	recs, err := Collect(a.Query(context.Background(), Query{Title: "Anything"}))
	assert.Empty(t, recs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, types.SourceOpenAlex, ue.Source)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUnavailableOnBadStatusWithoutRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	cfg := testSourceCfg()
	cfg.BaseURL = ts.URL
	a := NewSemanticScholar(cfg, testShared(), Options{HTTPClient: ts.Client()})

	_, err := Collect(a.Query(context.Background(), Query{Title: "Anything"}))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUnavailableOnGarbageBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	cfg := testSourceCfg()
	cfg.BaseURL = ts.URL
	a := NewCrossref(cfg, testShared(), Options{HTTPClient: ts.Client()})

	_, err := Collect(a.Query(context.Background(), Query{Title: "Anything"}))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	cfg := testSourceCfg()
	cfg.BaseURL = ts.URL
	a := NewSemanticScholar(cfg, testShared(), Options{HTTPClient: ts.Client()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(a.Query(ctx, Query{Title: "Anything"}))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"message":{"items":[]}}`))
	}))
	defer ts.Close()

	cfg := testSourceCfg()
	cfg.BaseURL = ts.URL
	cfg.RequestsPerSecond = 20
	a := NewCrossref(cfg, testShared(), Options{HTTPClient: ts.Client()})

	start := time.Now()
	for range 3 {
		_, err := Collect(a.Query(context.Background(), Query{Title: "Anything"}))
		require.NoError(t, err)
	}
	// Burst 1 at 20 rps: the second and third requests wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRegistryBuildOrdersByPriority(t *testing.T) {
	cfg := types.DefaultConfig().Sources
	cfg.Priority = []types.SourceName{types.SourceOpenAlex, types.SourceCrossref}

	adapters, err := DefaultRegistry().Build(cfg, Options{})
	require.NoError(t, err)

	var names []types.SourceName
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	// arXiv is disabled by default; unlisted sources follow registry order.
	assert.Equal(t, []types.SourceName{
		types.SourceOpenAlex, types.SourceCrossref, types.SourceSemanticScholar, types.SourceWebPage,
	}, names)
}

func TestRegistryBuildNothingEnabled(t *testing.T) {
	cfg := types.DefaultConfig().Sources
	cfg.SetEnabled(nil)
	_, err := DefaultRegistry().Build(cfg, Options{})
	assert.Error(t, err)
}

func TestParseNames(t *testing.T) {
	known := DefaultRegistry().Names()
	names, err := ParseNames("crossref, openalex", known)
	require.NoError(t, err)
	assert.Equal(t, []types.SourceName{types.SourceCrossref, types.SourceOpenAlex}, names)

	_, err = ParseNames("crossref,google", known)
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	p := []types.SourceName{types.SourceCrossref, types.SourceOpenAlex}
	assert.Equal(t, 0, Rank(p, types.SourceCrossref))
	assert.Equal(t, 1, Rank(p, types.SourceOpenAlex))
	assert.Equal(t, 2, Rank(p, types.SourceArxiv))
}
