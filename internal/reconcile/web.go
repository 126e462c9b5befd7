// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/pdiddy/citecheck/internal/cache"
	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/internal/source"
	"github.com/pdiddy/citecheck/pkg/types"
)

// webVenueWords mark a cited venue as web content rather than a
// scholarly outlet.
var webVenueWords = []string{
	"news", "blog", "blogs", "website", "magazine", "post",
	"medium", "substack", "techcrunch", "wired", "verge", "reuters",
	"guardian", "times", "cnn", "bbc", "forum", "wiki", "wikipedia",
}

// webVenuePhrases are multi-word web venues.
var webVenuePhrases = []string{
	"ars technica", "technology review", "wall street journal", "web page",
	"web resource", "web site", "online resource", "internet resource",
}

// webHosts are host labels of sites that publish web content.
var webHosts = []string{
	"news", "blog", "blogs", "medium", "substack", "techcrunch", "wired",
	"theverge", "arstechnica", "reuters", "theguardian", "nytimes", "wsj",
	"cnn", "bbc", "cbc", "wikipedia", "lesswrong", "alignmentforum",
}

// checkPage consults the fallback adapters for a citation no database
// matched. v is the unverifiable verdict from the databases; the result
// either accepts the page record or records why the page did not help.
func (e *Engine) checkPage(ctx context.Context, idx int, c types.Citation, q source.Query, v types.MatchVerdict) types.MatchVerdict {
	cands, unavailable := e.collect(ctx, idx, c, q, e.fallbacks)
	v.Consulted = append(v.Consulted, names(e.fallbacks)...)
	v.Unavailable = append(v.Unavailable, unavailable...)
	if len(unavailable) == len(e.fallbacks) {
		return v
	}

	best, _, ok := e.selectBest(cands)
	switch {
	case !ok:
		v.Reason = types.ReasonPageMissing
		return v
	case best.score.Total < e.cfg.AcceptanceThreshold:
		v.Reason = types.ReasonPageUnrelated
		return v
	case !e.pageVenueAccepted(c, best.rec):
		v.Reason = types.ReasonPageOnly
		return v
	}

	matched := best.rec
	v.Matched = &matched
	v.Confidence = best.score.Total
	v.FieldScores = best.score.Fields
	v.Status = types.StatusVerified
	if len(v.Unavailable) > 0 {
		v.Status = types.StatusPartial
	}
	e.store(ctx, idx, c, cache.NewEntry(best.rec))
	return v
}

// pageVenueAccepted reports whether a web page can stand for the cited
// work. A citation naming a scholarly venue is not verified by a page
// that merely mentions it.
func (e *Engine) pageVenueAccepted(c types.Citation, rec types.CandidateRecord) bool {
	if !similarity.VenueKnown(c.Venue) {
		return true
	}
	if rec.Venue != "" && e.tk.VenuesAgree(c.Venue, rec.Venue) {
		return true
	}
	// "OpenAI Blog" for a page on openai.com.
	compact := strings.ReplaceAll(strings.ToLower(c.Venue), " ", "")
	if org := source.SiteOrganization(rec.URL); len(org) > 2 && strings.Contains(compact, org) {
		return true
	}
	return isWebVenue(c.Venue, rec.URL)
}

// isWebVenue reports whether venue, or the host of rawURL, names web
// content such as news, blogs, or magazines.
func isWebVenue(venue, rawURL string) bool {
	v := " " + strings.Join(strings.Fields(strings.ToLower(venue)), " ") + " "
	for _, p := range webVenuePhrases {
		if strings.Contains(v, " "+p+" ") {
			return true
		}
	}
	for _, w := range strings.Fields(similarity.NormalizeTitle(venue)) {
		if slices.Contains(webVenueWords, w) {
			return true
		}
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	for _, label := range strings.Split(strings.ToLower(u.Hostname()), ".") {
		if slices.Contains(webHosts, label) {
			return true
		}
	}
	first, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	return first == "news" || first == "blog"
}
