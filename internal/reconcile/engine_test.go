// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citecheck/internal/cache"
	"github.com/pdiddy/citecheck/internal/report"
	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/internal/source"
	"github.com/pdiddy/citecheck/pkg/types"
)

// fakeAdapter returns fixed records and counts queries.
type fakeAdapter struct {
	name  types.SourceName
	recs  []types.CandidateRecord
	err   error
	calls atomic.Int32
}

func (f *fakeAdapter) Name() types.SourceName { return f.name }

func (f *fakeAdapter) Query(_ context.Context, _ source.Query) iter.Seq2[types.CandidateRecord, error] {
	return func(yield func(types.CandidateRecord, error) bool) {
		f.calls.Add(1)
		if f.err != nil {
			yield(types.CandidateRecord{}, f.err)
			return
		}
		for _, r := range f.recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func answering(name types.SourceName, recs ...types.CandidateRecord) *fakeAdapter {
	for i := range recs {
		recs[i].Source = name
	}
	return &fakeAdapter{name: name, recs: recs}
}

func failing(name types.SourceName) *fakeAdapter {
	return &fakeAdapter{name: name, err: &source.UnavailableError{Source: name, Err: errors.New("HTTP 503")}}
}

func attentionCitation() types.Citation {
	return types.Citation{
		Authors: []types.Author{
			{Given: "Ashish", Family: "Vaswani"},
			{Given: "Noam M.", Family: "Shazeer"},
			{Given: "Niki", Family: "Parmar"},
		},
		Title: "Attention Is All You Need",
		Venue: "NeurIPS",
		Year:  2017,
	}
}

func attentionRecord() types.CandidateRecord {
	return types.CandidateRecord{
		SourceID: "204e3073870fae3d05bcbc2f6a8e263d9b72e776",
		Authors: []types.Author{
			{Given: "Ashish", Family: "Vaswani"},
			{Given: "Noam", Family: "Shazeer"},
			{Given: "Niki", Family: "Parmar"},
		},
		Title: "Attention is All you Need",
		Venue: "Advances in Neural Information Processing Systems",
		Year:  2017,
	}
}

func newEngine(opts Options, adapters ...source.Adapter) *Engine {
	if opts.Priority == nil {
		opts.Priority = types.DefaultConfig().Sources.Priority
	}
	return New(adapters, similarity.Default(), types.DefaultMatchConfig(), opts)
}

func TestAttentionMatchesDespiteMissingInitial(t *testing.T) {
	e := newEngine(Options{}, answering(types.SourceSemanticScholar, attentionRecord()))

	v := e.Reconcile(context.Background(), 0, attentionCitation())
	require.True(t, v.IsMatch())
	assert.GreaterOrEqual(t, v.Confidence, types.DefaultMatchConfig().AcceptanceThreshold)
	assert.Equal(t, types.StatusVerified, v.Status)
	assert.Equal(t, 1.0, v.FieldScores[types.FieldTitle])
	assert.Equal(t, 1.0, v.FieldScores[types.FieldVenue])
	assert.Equal(t, 1.0, v.FieldScores[types.FieldYear])
	assert.Greater(t, v.FieldScores[types.FieldAuthor], 0.9)
	assert.Equal(t, types.SourceSemanticScholar, v.Matched.Source)
	assert.False(t, v.Ambiguous)
}

func TestWrongDOIStillMatches(t *testing.T) {
	c := attentionCitation()
	c.DOI = "10.1000/WRONG"
	rec := attentionRecord()
	rec.DOI = "10.1000/xyz123"

	e := newEngine(Options{}, answering(types.SourceCrossref, rec))
	v := e.Reconcile(context.Background(), 3, c)
	require.True(t, v.IsMatch())
	assert.Equal(t, 3, v.CitationIndex)
	assert.Equal(t, "10.1000/xyz123", v.Matched.DOI)
}

func TestNoCandidatesFromAnySource(t *testing.T) {
	s2 := answering(types.SourceSemanticScholar)
	oa := answering(types.SourceOpenAlex)
	cr := answering(types.SourceCrossref)
	e := newEngine(Options{}, s2, oa, cr)

	v := e.Reconcile(context.Background(), 0, attentionCitation())
	assert.False(t, v.IsMatch())
	assert.Nil(t, v.Matched)
	assert.Zero(t, v.Confidence)
	assert.Equal(t, types.StatusUnverifiable, v.Status)
	assert.Equal(t, []types.SourceName{types.SourceCrossref, types.SourceSemanticScholar, types.SourceOpenAlex}, v.Consulted)
	assert.Empty(t, v.Unavailable)
}

func TestTwoOfThreeSourcesUnavailable(t *testing.T) {
	var diag bytes.Buffer
	e := newEngine(Options{Diag: &diag},
		failing(types.SourceSemanticScholar),
		failing(types.SourceOpenAlex),
		answering(types.SourceCrossref, attentionRecord()),
	)

	v := e.Reconcile(context.Background(), 0, attentionCitation())
	require.True(t, v.IsMatch())
	assert.Equal(t, types.SourceCrossref, v.Matched.Source)
	assert.Equal(t, types.StatusPartial, v.Status)
	assert.Equal(t, []types.SourceName{types.SourceSemanticScholar, types.SourceOpenAlex}, v.Unavailable)
	assert.Contains(t, diag.String(), "semantic_scholar unavailable")
}

func TestAllSourcesUnavailable(t *testing.T) {
	e := newEngine(Options{}, failing(types.SourceSemanticScholar), failing(types.SourceCrossref))
	v := e.Reconcile(context.Background(), 0, attentionCitation())
	assert.False(t, v.IsMatch())
	assert.Equal(t, types.StatusUnverifiable, v.Status)
	assert.Len(t, v.Unavailable, 2)
}

func TestMalformedCitationMakesNoCalls(t *testing.T) {
	a := answering(types.SourceCrossref, attentionRecord())
	e := newEngine(Options{}, a)

	c := attentionCitation()
	c.Title = "   "
	v := e.Reconcile(context.Background(), 0, c)
	assert.Equal(t, types.StatusMalformed, v.Status)
	assert.Contains(t, v.Malformed, "missing title")
	assert.Equal(t, int32(0), a.calls.Load())
	assert.ErrorIs(t, Validate(c), ErrMalformedCitation)
}

func TestCacheHitSkipsAdapters(t *testing.T) {
	s2 := answering(types.SourceSemanticScholar, attentionRecord())
	cr := answering(types.SourceCrossref)
	mem := cache.NewMemory(0)
	e := newEngine(Options{Cache: mem}, s2, cr)

	first := e.Reconcile(context.Background(), 0, attentionCitation())
	require.True(t, first.IsMatch())
	assert.False(t, first.FromCache)
	assert.Equal(t, int32(1), s2.calls.Load())
	assert.Equal(t, int32(1), cr.calls.Load())

	second := e.Reconcile(context.Background(), 0, attentionCitation())
	require.True(t, second.IsMatch())
	assert.True(t, second.FromCache)
	assert.Equal(t, types.SourceCache, second.Matched.Source)
	assert.Equal(t, types.SourceSemanticScholar, second.Matched.CachedFrom)
	assert.Equal(t, []types.SourceName{types.SourceCache}, second.Consulted)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, int32(1), s2.calls.Load(), "no adapter call on a cache hit")
	assert.Equal(t, int32(1), cr.calls.Load())
}

func TestNoMatchIsNotCached(t *testing.T) {
	cr := answering(types.SourceCrossref)
	mem := cache.NewMemory(0)
	e := newEngine(Options{Cache: mem}, cr)

	e.Reconcile(context.Background(), 0, attentionCitation())
	e.Reconcile(context.Background(), 0, attentionCitation())
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, int32(2), cr.calls.Load())
}

func TestCacheBypassedWhenIdentifiersDisagree(t *testing.T) {
	rec := attentionRecord()
	rec.DOI = "10.5555/3295222.3295349"
	cr := answering(types.SourceCrossref, rec)
	e := newEngine(Options{Cache: cache.NewMemory(0)}, cr)

	e.Reconcile(context.Background(), 0, attentionCitation())
	require.Equal(t, int32(1), cr.calls.Load())

	// Same work key, but the citation claims another DOI.
	c := attentionCitation()
	c.DOI = "10.1000/other"
	v := e.Reconcile(context.Background(), 0, c)
	assert.False(t, v.FromCache)
	assert.Equal(t, int32(2), cr.calls.Load())

	// The record's own DOI was cached too.
	c.DOI = "https://doi.org/10.5555/3295222.3295349"
	v = e.Reconcile(context.Background(), 0, c)
	assert.True(t, v.FromCache)
	assert.Equal(t, int32(2), cr.calls.Load())
}

func TestCacheHitKeepsMergedView(t *testing.T) {
	primary := attentionRecord()
	supporter := attentionRecord()
	supporter.ArxivID = "1706.03762"
	supporter.URL = "https://arxiv.org/abs/1706.03762"
	supporter.Venue = "Journal of Machine Learning Research"

	s2 := answering(types.SourceSemanticScholar, primary)
	oa := answering(types.SourceOpenAlex, supporter)
	e := newEngine(Options{
		Cache:    cache.NewMemory(0),
		Priority: []types.SourceName{types.SourceSemanticScholar, types.SourceOpenAlex},
	}, s2, oa)
	rep := report.New(e.Toolkit())
	c := attentionCitation()

	cold := e.Reconcile(context.Background(), 0, c)
	require.True(t, cold.IsMatch())
	require.False(t, cold.FromCache)
	require.NotNil(t, cold.Merged)
	require.NotEmpty(t, cold.Conflicts)

	warm := e.Reconcile(context.Background(), 0, c)
	require.True(t, warm.FromCache)
	assert.Equal(t, int32(1), s2.calls.Load())
	assert.Equal(t, int32(1), oa.calls.Load())

	require.NotNil(t, warm.Merged)
	assert.Equal(t, "1706.03762", warm.Merged.ArxivID)
	assert.Equal(t, types.SourceSemanticScholar, warm.Merged.Provider())
	assert.Empty(t, warm.Matched.ArxivID, "the selected record is stored unmerged")
	assert.Equal(t, cold.Conflicts, warm.Conflicts)
	assert.Equal(t, cold.Confidence, warm.Confidence)

	coldFindings := rep.Report(c, cold)
	require.NotEmpty(t, coldFindings)
	assert.Equal(t, coldFindings, rep.Report(c, warm))
}

func TestCacheSkipsCitationIdentifiersThatNameAnotherRecord(t *testing.T) {
	c := attentionCitation()
	c.DOI = "10.1000/WRONG"
	rec := attentionRecord()
	rec.DOI = "10.1000/xyz123"

	mem := cache.NewMemory(0)
	e := newEngine(Options{Cache: mem}, answering(types.SourceCrossref, rec))
	require.True(t, e.Reconcile(context.Background(), 0, c).IsMatch())

	ctx := context.Background()
	_, ok, err := mem.Get(ctx, "doi:10.1000/wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := mem.Get(ctx, "doi:10.1000/xyz123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.1000/xyz123", got.Record.DOI)

	_, ok, err = mem.Get(ctx, cache.WorkKey(c))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, mem.Len())
}

func TestIdempotent(t *testing.T) {
	rec := attentionRecord()
	rec.DOI = "10.5555/3295222.3295349"
	alt := attentionRecord()
	alt.Venue = "Journal of Machine Learning Research"
	e := newEngine(Options{},
		answering(types.SourceSemanticScholar, attentionRecord()),
		answering(types.SourceCrossref, rec),
		answering(types.SourceOpenAlex, alt),
	)

	a := e.Reconcile(context.Background(), 0, attentionCitation())
	b := e.Reconcile(context.Background(), 0, attentionCitation())
	assert.Equal(t, a, b)
}

func TestTieResolvedBySourcePriority(t *testing.T) {
	c := types.Citation{Title: "Attention Is All You Need", Authors: []types.Author{{Family: "Vaswani"}}, Year: 2017}
	rec := attentionRecord()
	priority := []types.SourceName{types.SourceCrossref, types.SourceOpenAlex}

	for range 10 {
		for _, order := range [][]types.SourceName{
			{types.SourceOpenAlex, types.SourceCrossref},
			{types.SourceCrossref, types.SourceOpenAlex},
		} {
			var adapters []source.Adapter
			for _, name := range order {
				adapters = append(adapters, answering(name, rec))
			}
			e := newEngine(Options{Priority: priority}, adapters...)
			v := e.Reconcile(context.Background(), 0, c)
			require.True(t, v.IsMatch())
			assert.Equal(t, types.SourceCrossref, v.Matched.Source)
			assert.False(t, v.Ambiguous, "equal records from two sources are the same work")
		}
	}
}

func TestTieBetweenDifferentWorksIsAmbiguous(t *testing.T) {
	first := types.CandidateRecord{SourceID: "a", Title: "Deep Learning", Year: 2015, ArxivID: "1501.00001"}
	second := types.CandidateRecord{SourceID: "b", Title: "Deep Learning", Year: 2016, ArxivID: "1601.00001"}

	var diag bytes.Buffer
	e := newEngine(Options{Diag: &diag}, answering(types.SourceCrossref, first, second))
	v := e.Reconcile(context.Background(), 7, types.Citation{Title: "Deep learning"})
	require.True(t, v.IsMatch())
	assert.Equal(t, "a", v.Matched.SourceID, "arrival order breaks ties within a source")
	assert.True(t, v.Ambiguous)
	assert.Contains(t, diag.String(), "ambiguous: citation 7")
}

func TestAcceptanceThresholdMonotonic(t *testing.T) {
	c := attentionCitation()
	weak := types.CandidateRecord{
		Authors: []types.Author{{Given: "Jane", Family: "Doe"}},
		Title:   "Attention Is All You Need",
		Venue:   "International Conference on Machine Learning",
		Year:    2021,
	}
	a := answering(types.SourceCrossref, weak)

	rejected := false
	for th := 0.0; th <= 1.0; th += 0.05 {
		cfg := types.DefaultMatchConfig()
		cfg.AcceptanceThreshold = th
		e := New([]source.Adapter{a}, similarity.Default(), cfg, Options{})
		v := e.Reconcile(context.Background(), 0, c)
		if rejected {
			assert.False(t, v.IsMatch(), "threshold %.2f", th)
		}
		if !v.IsMatch() {
			rejected = true
		}
	}
	assert.True(t, rejected)

	e := newEngine(Options{}, a)
	s := e.Score(c, weak)
	assert.InDelta(t, 0.55, s.Total, 0.01)
	assert.False(t, e.Reconcile(context.Background(), 0, c).IsMatch())
}

func TestScoreDropsMissingComponents(t *testing.T) {
	e := newEngine(Options{})
	s := e.Score(types.Citation{Title: "Attention Is All You Need"}, attentionRecord())
	assert.Equal(t, 1.0, s.Total)
	assert.Equal(t, map[types.Field]float64{types.FieldTitle: 1}, s.Fields)

	// Only "et al." is cited: the author component is unknown.
	s = e.Score(types.Citation{Title: "Attention Is All You Need", Authors: []types.Author{{Family: "et al."}}}, attentionRecord())
	assert.NotContains(t, s.Fields, types.FieldAuthor)
}

func TestMergeFillsFromAgreeingSources(t *testing.T) {
	primary := attentionRecord()
	supporter := attentionRecord()
	supporter.DOI = "10.5555/3295222.3295349"
	supporter.URL = "https://dl.acm.org/doi/10.5555/3295222.3295349"
	supporter.Venue = "Journal of Machine Learning Research"
	other := types.CandidateRecord{Title: "Attention Is Not All You Need", Year: 2021, DOI: "10.1/unrelated"}

	s2 := answering(types.SourceSemanticScholar, primary)
	cr := answering(types.SourceCrossref, supporter, other)
	e := newEngine(Options{Priority: []types.SourceName{types.SourceSemanticScholar, types.SourceCrossref}}, s2, cr)

	v := e.Reconcile(context.Background(), 0, attentionCitation())
	require.True(t, v.IsMatch())
	assert.Equal(t, types.SourceSemanticScholar, v.Matched.Source)
	assert.Empty(t, v.Matched.DOI, "the selected record is never edited")

	require.NotNil(t, v.Merged)
	assert.Equal(t, "10.5555/3295222.3295349", v.Merged.DOI)
	assert.Equal(t, supporter.URL, v.Merged.URL)
	assert.Equal(t, primary.Venue, v.Merged.Venue)
	assert.Equal(t, v.Merged, v.Record())

	assert.Equal(t, []types.FieldConflict{{
		Field:   types.FieldVenue,
		Source:  types.SourceCrossref,
		Primary: primary.Venue,
		Other:   "Journal of Machine Learning Research",
	}}, v.Conflicts)
	assert.Empty(t, s2.recs[0].DOI)
}

func TestMergeIgnoresArxivDOIDifference(t *testing.T) {
	primary := attentionRecord()
	primary.DOI = "10.5555/3295222.3295349"
	preprint := attentionRecord()
	preprint.DOI = "10.48550/arXiv.1706.03762"

	e := newEngine(Options{Priority: []types.SourceName{types.SourceSemanticScholar, types.SourceOpenAlex}},
		answering(types.SourceSemanticScholar, primary),
		answering(types.SourceOpenAlex, preprint),
	)
	v := e.Reconcile(context.Background(), 0, attentionCitation())
	require.True(t, v.IsMatch())
	assert.Empty(t, v.Conflicts)
	require.NotNil(t, v.Merged)
	assert.Equal(t, "1706.03762", v.Merged.ArxivID)
	assert.Equal(t, "10.5555/3295222.3295349", v.Merged.DOI)
}

func TestSourcesFollowPriority(t *testing.T) {
	e := newEngine(Options{Priority: []types.SourceName{types.SourceOpenAlex}},
		answering(types.SourceCrossref), answering(types.SourceOpenAlex), answering(types.SourceArxiv))
	assert.Equal(t, []types.SourceName{types.SourceOpenAlex, types.SourceCrossref, types.SourceArxiv}, e.Sources())
}

// pageAdapter is a fake fallback adapter.
type pageAdapter struct{ *fakeAdapter }

func (pageAdapter) Fallback() bool { return true }

func answeringPage(recs ...types.CandidateRecord) pageAdapter {
	return pageAdapter{answering(types.SourceWebPage, recs...)}
}

func webCitation() types.Citation {
	return types.Citation{
		Authors: []types.Author{{Given: "John", Family: "Doe"}},
		Title:   "Machine Learning Research",
		Year:    2023,
		URL:     "https://example.com/page",
	}
}

func webRecord() types.CandidateRecord {
	return types.CandidateRecord{Title: "Machine Learning Research", URL: "https://example.com/page"}
}

func TestPageCheckedWhenDatabasesFindNothing(t *testing.T) {
	cr := answering(types.SourceCrossref)
	page := answeringPage(webRecord())
	e := newEngine(Options{}, page, cr)
	assert.Equal(t, []types.SourceName{types.SourceCrossref, types.SourceWebPage}, e.Sources())

	v := e.Reconcile(context.Background(), 0, webCitation())
	require.True(t, v.IsMatch())
	assert.Equal(t, types.StatusVerified, v.Status)
	assert.Equal(t, types.SourceWebPage, v.Matched.Source)
	assert.Equal(t, []types.SourceName{types.SourceCrossref, types.SourceWebPage}, v.Consulted)
	assert.Empty(t, v.Reason)
	assert.Equal(t, int32(1), page.calls.Load())
}

func TestPageSkippedWhenDatabaseMatches(t *testing.T) {
	c := attentionCitation()
	c.URL = "https://example.com/attention"
	page := answeringPage(webRecord())
	e := newEngine(Options{}, answering(types.SourceCrossref, attentionRecord()), page)

	v := e.Reconcile(context.Background(), 0, c)
	require.True(t, v.IsMatch())
	assert.Equal(t, types.SourceCrossref, v.Matched.Source)
	assert.Equal(t, []types.SourceName{types.SourceCrossref}, v.Consulted)
	assert.Equal(t, int32(0), page.calls.Load())
}

func TestPageSkippedForIdentifierURLs(t *testing.T) {
	c := webCitation()
	c.URL = "https://doi.org/10.1000/xyz123"
	page := answeringPage(webRecord())
	e := newEngine(Options{}, answering(types.SourceCrossref), page)

	v := e.Reconcile(context.Background(), 0, c)
	assert.Equal(t, types.StatusUnverifiable, v.Status)
	assert.Empty(t, v.Reason)
	assert.Equal(t, int32(0), page.calls.Load())
}

func TestPageReasons(t *testing.T) {
	unrelated := webRecord()
	unrelated.Title = "Different Title"
	news := webRecord()
	news.Title = "Breaking News: Important Story"
	news.URL = "https://cbc.ca/news/important-story"

	tests := []struct {
		name   string
		venue  string
		title  string
		page   []types.CandidateRecord
		status types.Status
		reason string
	}{
		{name: "missing page", status: types.StatusUnverifiable, reason: types.ReasonPageMissing},
		{name: "unrelated page", page: []types.CandidateRecord{unrelated}, status: types.StatusUnverifiable, reason: types.ReasonPageUnrelated},
		{name: "scholarly venue", venue: "Nature", page: []types.CandidateRecord{webRecord()}, status: types.StatusUnverifiable, reason: types.ReasonPageOnly},
		{name: "no venue", page: []types.CandidateRecord{webRecord()}, status: types.StatusVerified},
		{name: "news venue", venue: "CBC News", title: news.Title, page: []types.CandidateRecord{news}, status: types.StatusVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := webCitation()
			c.Venue = tt.venue
			if tt.title != "" {
				c.Title = tt.title
			}
			e := newEngine(Options{}, answering(types.SourceOpenAlex), answeringPage(tt.page...))
			v := e.Reconcile(context.Background(), 0, c)
			assert.Equal(t, tt.status, v.Status)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, tt.status == types.StatusVerified, v.IsMatch())
		})
	}
}

func TestPageUnavailableLeavesNoReason(t *testing.T) {
	e := newEngine(Options{}, answering(types.SourceCrossref), pageAdapter{failing(types.SourceWebPage)})
	v := e.Reconcile(context.Background(), 0, webCitation())
	assert.Equal(t, types.StatusUnverifiable, v.Status)
	assert.Equal(t, []types.SourceName{types.SourceWebPage}, v.Unavailable)
	assert.Empty(t, v.Reason)
}

func TestIsWebVenue(t *testing.T) {
	for _, venue := range []string{"CBC News", "New York Times", "TechCrunch", "The Verge", "MIT Technology Review", "Medium", "Company Blog", "Web Resource"} {
		assert.True(t, isWebVenue(venue, "https://example.com/article"), venue)
	}
	for _, venue := range []string{"Nature", "Science", "Proceedings of the IEEE", "ACM Transactions on Graphics", "International Conference on Machine Learning", "Journal of Artificial Intelligence Research"} {
		assert.False(t, isWebVenue(venue, "https://example.com/paper"), venue)
	}
	assert.True(t, isWebVenue("Some Publication", "https://cbc.ca/news/article"))
	assert.True(t, isWebVenue("Report", "https://medium.com/@author/story"))
	assert.False(t, isWebVenue("Some Publication", "https://ieee.org/paper"))
}
