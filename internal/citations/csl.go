// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citations

import (
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// cslItem is a bibliographic entry in CSL (Citation Style Language) form,
// as exported by Pandoc, Zotero, and most reference managers. CSL-JSON is
// valid YAML, so one decoder reads both encodings.
type cslItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []cslName `yaml:"author"`
	Issued         *cslDate  `yaml:"issued"`
	ContainerTitle string    `yaml:"container-title"`
	Publisher      string    `yaml:"publisher"`
	Number         string    `yaml:"number"`
	DOI            string    `yaml:"DOI"`
	URL            string    `yaml:"URL"`
}

// cslName is a person's name in CSL form.
type cslName struct {
	Family  string `yaml:"family"`
	Given   string `yaml:"given"`
	Literal string `yaml:"literal"`
}

// cslDate is a CSL date. date-parts entries may be numbers or strings.
type cslDate struct {
	DateParts [][]string `yaml:"date-parts"`
	Raw       string     `yaml:"raw"`
}

// parseCSL reads a CSL item list, or a Pandoc metadata block holding one
// under references.
func parseCSL(data []byte) ([]types.Citation, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]

	var items []cslItem
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&items); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var meta struct {
			References []cslItem `yaml:"references"`
		}
		if err := doc.Decode(&meta); err != nil {
			return nil, err
		}
		items = meta.References
	default:
		return nil, fmt.Errorf("CSL data must be a list of items")
	}

	out := make([]types.Citation, len(items))
	for i, it := range items {
		out[i] = it.citation()
	}
	return out, nil
}

func (it cslItem) citation() types.Citation {
	c := types.Citation{
		Key:   it.ID,
		Title: strings.TrimSpace(it.Title),
		Venue: strings.TrimSpace(it.ContainerTitle),
		DOI:   strings.TrimSpace(it.DOI),
		URL:   strings.TrimSpace(it.URL),
	}
	for _, n := range it.Author {
		switch {
		case n.Family != "":
			c.Authors = append(c.Authors, types.Author{Given: strings.TrimSpace(n.Given), Family: strings.TrimSpace(n.Family)})
		case n.Literal != "":
			c.Authors = append(c.Authors, parseAuthor(n.Literal))
		}
	}
	if it.Issued != nil {
		raw := it.Issued.Raw
		if len(it.Issued.DateParts) > 0 && len(it.Issued.DateParts[0]) > 0 {
			raw = it.Issued.DateParts[0][0]
		}
		if y, err := parseYear(raw); err == nil {
			c.Year = int(y)
		}
	}
	// Reference managers file arXiv preprints with the id as the report
	// number and arXiv as the publisher.
	if isArxivNumber(it.Number, it.Publisher) {
		c.ArxivID = similarity.NormalizeArxivID(it.Number)
	}
	return c
}

func isArxivNumber(number, publisher string) bool {
	if similarity.NormalizeArxivID(number) == "" {
		return false
	}
	n := strings.ToLower(strings.TrimSpace(number))
	return strings.HasPrefix(n, "arxiv:") || strings.Contains(strings.ToLower(publisher), "arxiv")
}
