// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"cmp"
	"context"
	"iter"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// pageTitleCoverage is the share of the cited title's content words a
// page's text must contain to count as referencing the cited work.
const pageTitleCoverage = 0.6

// maxPageText bounds the visible text kept from one page.
const maxPageText = 256 << 10

var pageYear = regexp.MustCompile(`\b(1[89]\d\d|20\d\d)\b`)

// WebPage checks the page a citation links to. It is a fallback adapter:
// the engine consults it only for citations no database matched whose URL
// is not a DOI or arXiv link. A missing page yields no records and an
// existing one yields exactly one record describing it.
type WebPage struct {
	client *client
}

// NewWebPage builds the adapter.
func NewWebPage(cfg types.SourceConfig, shared types.SourcesConfig, opts Options) Adapter {
	c := newClient(types.SourceWebPage, cfg, shared, opts)
	c.header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	return &WebPage{client: c}
}

// Name returns the source identifier.
func (w *WebPage) Name() types.SourceName { return types.SourceWebPage }

// Fallback reports true: the page is checked only after the databases.
func (w *WebPage) Fallback() bool { return true }

// Query fetches q.URL. Queries without a URL, or carrying a DOI or arXiv
// id, yield nothing.
func (w *WebPage) Query(ctx context.Context, q Query) iter.Seq2[types.CandidateRecord, error] {
	return lazy(func() ([]types.CandidateRecord, error) {
		if q.URL == "" || q.HasIdentifier() {
			return nil, nil
		}
		resp, found, err := w.client.fetch(ctx, q.URL)
		if err != nil || !found {
			return nil, err
		}
		var p page
		if isPDF(resp) {
			p = readPDF(resp.body)
		} else {
			p = readHTML(resp.body)
		}
		return []types.CandidateRecord{p.record(q, resp.finalURL)}, nil
	})
}

// page is what a fetched document says about itself.
type page struct {
	// titles holds candidate titles, most authoritative first.
	titles  []string
	site    string
	authors []string
	date    string
	doi     string
	text    string
}

func (p page) record(q Query, finalURL string) types.CandidateRecord {
	rec := types.CandidateRecord{
		Source:   types.SourceWebPage,
		SourceID: finalURL,
		Venue:    p.site,
		DOI:      similarity.NormalizeDOI(p.doi),
		URL:      finalURL,
	}
	if m := pageYear.FindString(p.date); m != "" {
		rec.Year, _ = strconv.Atoi(m)
	}
	for _, a := range p.authors {
		if a = strings.TrimSpace(a); a != "" {
			rec.Authors = append(rec.Authors, similarity.SplitDisplayName(a))
		}
	}

	best := -1.0
	for _, t := range p.titles {
		if s := similarity.TitleSimilarity(q.Title, t, 0); s > best {
			rec.Title, best = t, s
		}
	}
	// A page whose text carries most of the cited title's words
	// references the cited work even when its own title differs.
	if best < identifierTitleAgreement && coversTitle(p.text, q.Title) {
		rec.Title = q.Title
	}
	return rec
}

// coversTitle reports whether text contains at least pageTitleCoverage
// of the content words of title.
func coversTitle(text, title string) bool {
	want := contentWords(title)
	if len(want) == 0 || text == "" {
		return false
	}
	have := make(map[string]bool)
	for _, w := range strings.Fields(similarity.NormalizeTitle(text)) {
		have[w] = true
	}
	n := 0
	for _, w := range want {
		if have[w] {
			n++
		}
	}
	return float64(n)/float64(len(want)) >= pageTitleCoverage
}

// contentWords returns the title's words of four letters or more, or all
// of its words when none is that long.
func contentWords(title string) []string {
	all := strings.Fields(similarity.NormalizeTitle(title))
	var out []string
	for _, w := range all {
		if len([]rune(w)) >= 4 {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

func isPDF(r response) bool {
	ct := strings.ToLower(r.contentType)
	return strings.HasPrefix(ct, "application/pdf") || bytes.HasPrefix(r.body, []byte("%PDF-"))
}

// readPDF takes the document's Info title, the first substantial line of
// text, and the text of the first two pages. Unreadable documents yield
// an empty page.
func readPDF(body []byte) (p page) {
	defer func() {
		// The PDF reader panics on some malformed documents.
		if recover() != nil {
			p = page{}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return page{}
	}
	if t := strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text()); t != "" {
		p.titles = append(p.titles, t)
	}

	var text strings.Builder
	for i := 1; i <= min(r.NumPage(), 2); i++ {
		pg := r.Page(i)
		if pg.V.IsNull() {
			continue
		}
		s, err := pg.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(s)
		text.WriteByte('\n')
	}
	p.text = text.String()

	for _, line := range strings.Split(p.text, "\n") {
		if line = strings.TrimSpace(line); len(line) > 20 {
			p.titles = append(p.titles, line)
			break
		}
	}
	return p
}

// readHTML collects the page's metadata and visible text. Highwire
// citation_* tags, Open Graph tags, the document title, and the first h1
// are title candidates in that order.
func readHTML(body []byte) page {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return page{}
	}

	var (
		p                      page
		citationTitle, ogTitle string
		docTitle, heading      string
		text                   strings.Builder
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Title:
				if docTitle == "" {
					docTitle = nodeText(n)
				}
				return
			case atom.H1:
				if heading == "" {
					heading = nodeText(n)
				}
			case atom.Meta:
				content := strings.TrimSpace(attr(n, "content"))
				if content == "" {
					break
				}
				switch strings.ToLower(cmp.Or(attr(n, "name"), attr(n, "property"))) {
				case "citation_title", "dc.title":
					citationTitle = cmp.Or(citationTitle, content)
				case "og:title", "twitter:title":
					ogTitle = cmp.Or(ogTitle, content)
				case "og:site_name", "application-name":
					p.site = cmp.Or(p.site, content)
				case "citation_author", "dc.creator", "author":
					p.authors = append(p.authors, content)
				case "citation_publication_date", "citation_date", "article:published_time", "dc.date":
					p.date = cmp.Or(p.date, content)
				case "citation_doi":
					p.doi = cmp.Or(p.doi, content)
				}
			}
		case html.TextNode:
			if text.Len() < maxPageText {
				text.WriteString(n.Data)
				text.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, t := range []string{citationTitle, ogTitle} {
		if t != "" {
			p.titles = append(p.titles, t)
		}
	}
	if docTitle != "" {
		p.titles = append(p.titles, docTitle)
		// "Title | Site" and "Title - Site" forms.
		for _, sep := range []string{" | ", " - ", " \u2013 ", " \u2014 ", " :: "} {
			if head, _, ok := strings.Cut(docTitle, sep); ok && strings.TrimSpace(head) != "" {
				p.titles = append(p.titles, strings.TrimSpace(head))
			}
		}
	}
	if heading != "" {
		p.titles = append(p.titles, heading)
	}
	p.text = text.String()
	return p
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// SiteOrganization names the organisation behind rawURL from its host:
// "https://chat.openai.com/share/1" gives "openai" and
// "https://www.bbc.co.uk/news" gives "bbc".
func SiteOrganization(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	i := len(labels) - 2
	switch labels[i] {
	case "co", "com", "ac", "org", "gov", "edu", "net":
		if i > 0 && len(labels[len(labels)-1]) == 2 {
			i--
		}
	}
	return labels[i]
}
