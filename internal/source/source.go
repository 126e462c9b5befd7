// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source queries external bibliographic databases and translates
// their responses into candidate records. Each adapter owns its rate
// limiter, concurrency bound, and retry policy; a failing adapter reports
// ErrSourceUnavailable and never blocks the others.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// ErrSourceUnavailable marks a source that could not answer: retries
// exhausted, a non-retryable HTTP failure, an undecodable body, or a
// cancelled context. Callers treat it as zero candidates.
var ErrSourceUnavailable = errors.New("source unavailable")

// UnavailableError carries the source name and the underlying failure.
type UnavailableError struct {
	Source types.SourceName
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSourceUnavailable) hold.
func (e *UnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

func unavailable(name types.SourceName, err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Source: name, Err: err}
}

// Query is the lookup sent to every adapter for one citation.
type Query struct {
	Title string

	// FirstAuthor is the first cited author's surname.
	FirstAuthor string

	Year    int
	DOI     string
	ArxivID string

	// URL is the cited http(s) link, empty when the citation has none.
	URL string

	// MinRelevance drops search hits whose title similarity to Title is
	// below it. Identifier hits are never dropped.
	MinRelevance float64
}

// BuildQuery derives a query from a citation. Identifiers are normalized
// and recovered from the url and venue fields when missing.
func BuildQuery(c types.Citation, minRelevance float64) Query {
	q := Query{
		Title:        strings.TrimSpace(c.Title),
		Year:         c.Year,
		DOI:          similarity.CitationDOI(c),
		ArxivID:      similarity.CitationArxivID(c),
		URL:          webURL(c.URL),
		MinRelevance: minRelevance,
	}
	if a, ok := c.FirstAuthor(); ok {
		n := similarity.AuthorName(a)
		q.FirstAuthor = surnameDisplay(a, n)
	}
	return q
}

// surnameDisplay keeps the cited spelling of the surname for search text.
func surnameDisplay(a types.Author, n similarity.Name) string {
	if a.Family != "" && a.Given != "" {
		return strings.TrimSpace(a.Family)
	}
	return n.Surname()
}

// webURL returns raw when it is an absolute http(s) URL.
func webURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return raw
}

// HasIdentifier reports whether the query carries a DOI or arXiv id.
func (q Query) HasIdentifier() bool {
	return q.DOI != "" || q.ArxivID != ""
}

// SearchText is the free-text form used by provider search endpoints.
func (q Query) SearchText() string {
	return strings.TrimSpace(q.Title + " " + q.FirstAuthor)
}

// Adapter is one bibliographic source.
//
// Query returns a lazy, finite sequence of candidates: no request is made
// until the sequence is ranged over, and each range issues fresh
// requests. A failure is yielded once as a non-nil error satisfying
// errors.Is(err, ErrSourceUnavailable), after which the sequence ends.
type Adapter interface {
	Name() types.SourceName
	Query(ctx context.Context, q Query) iter.Seq2[types.CandidateRecord, error]
}

// Fallback is implemented by adapters consulted only after every other
// adapter failed to produce an accepted match.
type Fallback interface {
	Adapter
	Fallback() bool
}

// IsFallback reports whether a is a fallback adapter.
func IsFallback(a Adapter) bool {
	f, ok := a.(Fallback)
	return ok && f.Fallback()
}

// Collect drains a candidate sequence. Records yielded before an error
// are returned with it.
func Collect(seq iter.Seq2[types.CandidateRecord, error]) ([]types.CandidateRecord, error) {
	var out []types.CandidateRecord
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// lazy wraps a fetch function into an adapter sequence.
func lazy(fetch func() ([]types.CandidateRecord, error)) iter.Seq2[types.CandidateRecord, error] {
	return func(yield func(types.CandidateRecord, error) bool) {
		recs, err := fetch()
		if err != nil {
			yield(types.CandidateRecord{}, err)
			return
		}
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// identifierTitleAgreement is the title similarity an identifier hit
// needs before the adapter skips the text search. A cited DOI that points
// at another paper must not hide the paper actually cited.
const identifierTitleAgreement = 0.6

// resolve runs the identifier lookups in order and falls back to text
// search when none finds a record or the record disagrees with the cited
// title. Search hits below the relevance floor are dropped.
func resolve(q Query, byID []func() (types.CandidateRecord, bool, error), search func() ([]types.CandidateRecord, error)) ([]types.CandidateRecord, error) {
	var out []types.CandidateRecord
	for _, lookup := range byID {
		rec, found, err := lookup()
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
			break
		}
	}
	if q.Title == "" {
		return out, nil
	}
	if len(out) == 1 && similarity.TitleSimilarity(q.Title, out[0].Title, 0) >= identifierTitleAgreement {
		return out, nil
	}

	hits, err := search()
	if err != nil {
		if len(out) > 0 {
			// The identifier hit stands on its own.
			return out, nil
		}
		return nil, err
	}
	for _, h := range hits {
		if similarity.TitleSimilarity(q.Title, h.Title, 0) < q.MinRelevance {
			continue
		}
		if slices.ContainsFunc(out, func(r types.CandidateRecord) bool {
			return r.SourceID != "" && r.SourceID == h.SourceID
		}) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Options carries dependencies shared by all adapters of a run.
type Options struct {
	// HTTPClient is used for every request. Nil builds one per adapter
	// with the configured timeout.
	HTTPClient *http.Client

	// Diag receives retry and warning lines. Nil discards them.
	Diag io.Writer
}

// Factory builds an adapter from its configuration block.
type Factory func(cfg types.SourceConfig, shared types.SourcesConfig, opts Options) Adapter

// Registry maps source names to adapter factories.
type Registry struct {
	factories map[types.SourceName]Factory
	order     []types.SourceName
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.SourceName]Factory)}
}

// DefaultRegistry returns a registry holding every built-in adapter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(types.SourceSemanticScholar, NewSemanticScholar)
	r.Register(types.SourceOpenAlex, NewOpenAlex)
	r.Register(types.SourceCrossref, NewCrossref)
	r.Register(types.SourceArxiv, NewArxiv)
	r.Register(types.SourceWebPage, NewWebPage)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name types.SourceName, f Factory) {
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []types.SourceName {
	return slices.Clone(r.order)
}

// Build returns the enabled adapters, ordered by cfg.Priority and then by
// registration order.
func (r *Registry) Build(cfg types.SourcesConfig, opts Options) ([]Adapter, error) {
	var adapters []Adapter
	for _, name := range Ordered(cfg.Priority, r.order) {
		pc, ok := cfg.Provider(name)
		if !ok {
			return nil, fmt.Errorf("no configuration block for source %q", name)
		}
		if !pc.Enabled {
			continue
		}
		adapters = append(adapters, r.factories[name](pc, cfg, opts))
	}
	if len(adapters) == 0 {
		return nil, errors.New("no sources enabled")
	}
	return adapters, nil
}

// Ordered returns names sorted by their position in priority. Names
// missing from priority keep their relative order after listed ones.
func Ordered(priority, names []types.SourceName) []types.SourceName {
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b types.SourceName) int {
		return Rank(priority, a) - Rank(priority, b)
	})
	return out
}

// Rank returns the position of name in priority, or len(priority) when
// it is not listed.
func Rank(priority []types.SourceName, name types.SourceName) int {
	if i := slices.Index(priority, name); i >= 0 {
		return i
	}
	return len(priority)
}

// ParseNames parses a comma-separated source list such as
// "crossref,openalex".
func ParseNames(s string, known []types.SourceName) ([]types.SourceName, error) {
	var out []types.SourceName
	for _, part := range strings.Split(s, ",") {
		name := types.SourceName(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}
