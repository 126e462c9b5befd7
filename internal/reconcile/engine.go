// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile decides which candidate record, if any, a citation
// refers to. It consults the lookup cache, fans the query out to every
// source adapter, scores the candidates, and builds a merged view from
// agreeing sources without mutating any of them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/pdiddy/citecheck/internal/cache"
	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/internal/source"
	"github.com/pdiddy/citecheck/pkg/types"
)

// ErrMalformedCitation rejects a citation before any lookup.
var ErrMalformedCitation = errors.New("malformed citation")

// Validate checks the fields a lookup needs.
func Validate(c types.Citation) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrMalformedCitation)
	}
	return nil
}

// Options carries the engine's optional collaborators.
type Options struct {
	// Cache is consulted before the adapters. Nil disables caching.
	Cache cache.Cache

	// Priority orders sources for tie-breaking. Unlisted sources rank
	// after listed ones in adapter order.
	Priority []types.SourceName

	// Diag receives ambiguity and source warnings. Nil discards them.
	Diag io.Writer
}

// Engine reconciles citations against a fixed set of adapters. It is safe
// for concurrent use.
type Engine struct {
	adapters []source.Adapter

	// fallbacks check a citation's own URL once adapters found nothing.
	fallbacks []source.Adapter

	cache    cache.Cache
	tk       *similarity.Toolkit
	cfg      types.MatchConfig
	priority []types.SourceName
	diag     io.Writer
}

// New returns an engine. Adapters are consulted and reported in priority
// order; fallback adapters come last and only run for citations the
// others could not match.
func New(adapters []source.Adapter, tk *similarity.Toolkit, cfg types.MatchConfig, opts Options) *Engine {
	if tk == nil {
		tk = similarity.Default()
	}
	c := opts.Cache
	if c == nil {
		c = cache.Nop{}
	}
	diag := opts.Diag
	if diag == nil {
		diag = io.Discard
	}
	var primary, fallbacks []source.Adapter
	for _, a := range adapters {
		if source.IsFallback(a) {
			fallbacks = append(fallbacks, a)
		} else {
			primary = append(primary, a)
		}
	}
	byPriority := func(a, b source.Adapter) int {
		return source.Rank(opts.Priority, a.Name()) - source.Rank(opts.Priority, b.Name())
	}
	slices.SortStableFunc(primary, byPriority)
	slices.SortStableFunc(fallbacks, byPriority)
	return &Engine{
		adapters:  primary,
		fallbacks: fallbacks,
		cache:    c,
		tk:       tk,
		cfg:      cfg,
		priority: slices.Clone(opts.Priority),
		diag:     diag,
	}
}

// Sources returns the adapter names in consultation order, fallbacks
// last.
func (e *Engine) Sources() []types.SourceName {
	return append(names(e.adapters), names(e.fallbacks)...)
}

func names(adapters []source.Adapter) []types.SourceName {
	out := make([]types.SourceName, len(adapters))
	for i, a := range adapters {
		out[i] = a.Name()
	}
	return out
}

// Toolkit returns the similarity toolkit the engine scores with.
func (e *Engine) Toolkit() *similarity.Toolkit { return e.tk }

// candidate is a scored record with its arrival position.
type candidate struct {
	rec   types.CandidateRecord
	score Score
	index int
}

// Reconcile produces the verdict for citation c at position idx. It never
// fails: unavailable sources are listed on the verdict and a rejected
// citation is marked malformed.
func (e *Engine) Reconcile(ctx context.Context, idx int, c types.Citation) types.MatchVerdict {
	v := types.MatchVerdict{CitationIndex: idx}
	if err := Validate(c); err != nil {
		v.Malformed = err.Error()
		v.Status = types.StatusMalformed
		return v
	}

	if hit, ok := e.fromCache(ctx, idx, c); ok {
		s := e.Score(c, hit.Record)
		if s.Total >= e.cfg.AcceptanceThreshold {
			matched := hit.Record
			v.Matched = &matched
			v.Merged = hit.Merged
			v.Conflicts = hit.Conflicts
			v.Confidence = s.Total
			v.FieldScores = s.Fields
			v.FromCache = true
			v.Consulted = []types.SourceName{types.SourceCache}
			v.Status = types.StatusVerified
			return v
		}
	}

	q := source.BuildQuery(c, e.tk.Config().RelevanceFloor)
	cands, unavailable := e.collect(ctx, idx, c, q, e.adapters)
	v.Consulted = names(e.adapters)
	v.Unavailable = unavailable

	best, ties, ok := e.selectBest(cands)
	if ok {
		v.FieldScores = best.score.Fields
	}
	if !ok || best.score.Total < e.cfg.AcceptanceThreshold {
		v.Status = types.StatusUnverifiable
		if len(e.fallbacks) > 0 && q.URL != "" && !q.HasIdentifier() {
			return e.checkPage(ctx, idx, c, q, v)
		}
		return v
	}

	if len(ties) > 0 {
		v.Ambiguous = true
		var alts []string
		for _, t := range ties {
			alts = append(alts, fmt.Sprintf("%s %q", t.rec.Provider(), t.rec.Title))
		}
		fmt.Fprintf(e.diag, "ambiguous: citation %d: selected %s %q (%.3f) over %s\n",
			idx, best.rec.Provider(), best.rec.Title, best.score.Total, strings.Join(alts, ", "))
	}

	matched := best.rec
	v.Matched = &matched
	v.Confidence = best.score.Total

	var supporters []types.CandidateRecord
	for _, cd := range e.ranked(cands) {
		if cd.index == best.index || cd.score.Total < e.cfg.AcceptanceThreshold {
			continue
		}
		if e.sameWork(best.rec, cd.rec) {
			supporters = append(supporters, cd.rec)
		}
	}
	v.Merged, v.Conflicts = e.merge(best.rec, supporters)

	v.Status = types.StatusVerified
	if len(unavailable) > 0 {
		v.Status = types.StatusPartial
	}

	e.store(ctx, idx, c, cache.Entry{Record: best.rec, Merged: v.Merged, Conflicts: v.Conflicts})
	return v
}

// fromCache returns the first cached entry under the citation's keys. An
// entry whose identifiers disagree with the citation, or that lacks an
// identifier the citation carries, bypasses the cache so sources can
// correct it.
func (e *Engine) fromCache(ctx context.Context, idx int, c types.Citation) (cache.Entry, bool) {
	for _, k := range cache.Keys(c) {
		hit, ok, err := e.cache.Get(ctx, k)
		if err != nil {
			fmt.Fprintf(e.diag, "warning: citation %d: cache read %s: %v\n", idx, k, err)
			continue
		}
		if !ok {
			continue
		}
		if !identifiersAgree(c, hit.View()) {
			return cache.Entry{}, false
		}
		return hit, true
	}
	return cache.Entry{}, false
}

func identifiersAgree(c types.Citation, rec types.CandidateRecord) bool {
	if doi := similarity.CitationDOI(c); doi != "" && !doiAgrees(doi, rec) {
		return false
	}
	if id := similarity.CitationArxivID(c); id != "" && id != similarity.RecordArxivID(rec) {
		return false
	}
	return true
}

// doiAgrees reports whether rec carries doi. An arXiv DOI is also
// satisfied by the record's arXiv id.
func doiAgrees(doi string, rec types.CandidateRecord) bool {
	if similarity.SameDOI(doi, rec.DOI) {
		return true
	}
	return similarity.IsArxivDOI(doi) && similarity.RecordArxivID(rec) != ""
}

// store writes the entry under the work key, the identifiers of its merged
// view, and the citation's own identifiers where they name that record.
func (e *Engine) store(ctx context.Context, idx int, c types.Citation, entry cache.Entry) {
	view := entry.View()
	var keys []string
	if doi := similarity.CitationDOI(c); doi != "" && doiAgrees(doi, view) {
		keys = append(keys, cache.PrefixDOI+doi)
	}
	if id := similarity.CitationArxivID(c); id != "" && id == similarity.RecordArxivID(view) {
		keys = append(keys, cache.PrefixArxiv+id)
	}
	if k := cache.WorkKey(c); k != "" {
		keys = append(keys, k)
	}
	if doi := similarity.NormalizeDOI(view.DOI); doi != "" {
		keys = append(keys, cache.PrefixDOI+doi)
	}
	if id := similarity.RecordArxivID(view); id != "" {
		keys = append(keys, cache.PrefixArxiv+id)
	}
	slices.Sort(keys)
	for _, k := range slices.Compact(keys) {
		if err := e.cache.Put(ctx, k, entry); err != nil {
			fmt.Fprintf(e.diag, "warning: citation %d: cache write %s: %v\n", idx, k, err)
		}
	}
}

// collect queries adapters concurrently and returns the scored candidates
// in adapter order, along with the sources that failed.
func (e *Engine) collect(ctx context.Context, idx int, c types.Citation, q source.Query, adapters []source.Adapter) ([]candidate, []types.SourceName) {
	type adapterResult struct {
		recs []types.CandidateRecord
		err  error
	}
	results := make([]adapterResult, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := source.Collect(a.Query(ctx, q))
			results[i] = adapterResult{recs: recs, err: err}
		}()
	}
	wg.Wait()

	var (
		cands       []candidate
		unavailable []types.SourceName
	)
	for i, r := range results {
		if r.err != nil {
			name := adapters[i].Name()
			unavailable = append(unavailable, name)
			fmt.Fprintf(e.diag, "warning: citation %d: %v\n", idx, r.err)
			continue
		}
		for _, rec := range r.recs {
			cands = append(cands, candidate{rec: rec, score: e.Score(c, rec), index: len(cands)})
		}
	}
	return cands, unavailable
}

// ranked orders candidates by score, then source priority, then arrival.
// Scores within the tie epsilon count as equal.
func (e *Engine) ranked(cands []candidate) []candidate {
	out := slices.Clone(cands)
	slices.SortStableFunc(out, func(a, b candidate) int {
		return e.compare(a, b)
	})
	return out
}

func (e *Engine) compare(a, b candidate) int {
	if d := a.score.Total - b.score.Total; d > e.cfg.TieEpsilon || d < -e.cfg.TieEpsilon {
		if d > 0 {
			return -1
		}
		return 1
	}
	return e.compareTied(a, b)
}

// selectBest returns the winning candidate and the tied candidates that
// describe a different work.
func (e *Engine) selectBest(cands []candidate) (candidate, []candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, nil, false
	}
	// The highest raw score anchors the tie window so the winner does not
	// depend on comparison order.
	top := cands[0]
	for _, c := range cands[1:] {
		if c.score.Total > top.score.Total {
			top = c
		}
	}
	var tied []candidate
	for _, c := range cands {
		if top.score.Total-c.score.Total <= e.cfg.TieEpsilon {
			tied = append(tied, c)
		}
	}
	best := tied[0]
	for _, c := range tied[1:] {
		if e.compareTied(c, best) < 0 {
			best = c
		}
	}
	var ambiguous []candidate
	for _, c := range tied {
		if c.index != best.index && !e.sameWork(best.rec, c.rec) {
			ambiguous = append(ambiguous, c)
		}
	}
	return best, ambiguous, true
}

func (e *Engine) compareTied(a, b candidate) int {
	if r := source.Rank(e.priority, a.rec.Provider()) - source.Rank(e.priority, b.rec.Provider()); r != 0 {
		return r
	}
	return a.index - b.index
}
