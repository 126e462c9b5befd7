// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citations reads reference lists handed over by the upstream
// parser. Files are YAML with a top-level citations list (or a bare list),
// or JSON holding
// either a bare array or an object with a citations array. CSL data
// exported by reference managers is read as a third format.
//
// Authors may be written as {given, family} objects, as display strings
// ("Ashish Vaswani", "Vaswani, A."), or as one BibTeX-style string joined
// with "and" or semicolons. Years may be numbers or strings such as "2017a".
package citations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// Format names an input encoding.
type Format string

const (
	FormatAuto Format = ""
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCSL  Format = "csl"
)

// Load reads the citation file at path, choosing the format from the
// file name.
func Load(path string) ([]types.Citation, error) {
	return LoadAs(path, FormatAuto)
}

// LoadAs reads the citation file at path in the given format. FormatAuto
// follows the file name: *.csl.json and *.csl.yaml are CSL, .json and
// .yaml are citation lists, and anything else is sniffed from the content.
func LoadAs(path string, format Format) ([]types.Citation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading citations file: %w", err)
	}
	if format == FormatAuto {
		format = formatFromName(path)
	}
	cs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing citations file %s: %w", path, err)
	}
	return cs, nil
}

// Parse decodes a reference list. FormatAuto treats input starting with
// '[' or '{' as JSON and anything else as YAML.
func Parse(data []byte, format Format) ([]types.Citation, error) {
	if format == FormatAuto {
		format = sniff(data)
	}
	var entries []entry
	switch format {
	case FormatJSON:
		var err error
		if entries, err = parseJSON(data); err != nil {
			return nil, err
		}
	case FormatYAML:
		var err error
		if entries, err = parseYAML(data); err != nil {
			return nil, err
		}
	case FormatCSL:
		return parseCSL(data)
	default:
		return nil, fmt.Errorf("unknown citation format %q", format)
	}

	out := make([]types.Citation, len(entries))
	for i, e := range entries {
		out[i] = e.citation()
	}
	return out, nil
}

func formatFromName(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(name)
	if strings.HasSuffix(strings.TrimSuffix(name, ext), ".csl") {
		return FormatCSL
	}
	switch ext {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatYAML
}

func parseJSON(data []byte) ([]entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []entry
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc struct {
		Citations []entry `json:"citations"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Citations, nil
}

// parseYAML reads a citations mapping or a bare list.
func parseYAML(data []byte) ([]entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	var entries []entry
	if doc := root.Content[0]; doc.Kind == yaml.SequenceNode {
		if err := doc.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var doc struct {
		Citations []entry `yaml:"citations"`
	}
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Citations, nil
}

// entry is the permissive wire form of types.Citation.
type entry struct {
	Key     string     `json:"key" yaml:"key"`
	Authors authorList `json:"authors" yaml:"authors"`
	Title   string     `json:"title" yaml:"title"`
	Venue   string     `json:"venue" yaml:"venue"`
	Year    year       `json:"year" yaml:"year"`
	DOI     string     `json:"doi" yaml:"doi"`
	ArxivID string     `json:"arxiv_id" yaml:"arxiv_id"`
	URL     string     `json:"url" yaml:"url"`
	RawText string     `json:"raw_text" yaml:"raw_text"`
}

func (e entry) citation() types.Citation {
	return types.Citation{
		Key:     e.Key,
		Authors: []types.Author(e.Authors),
		Title:   strings.TrimSpace(e.Title),
		Venue:   strings.TrimSpace(e.Venue),
		Year:    int(e.Year),
		DOI:     strings.TrimSpace(e.DOI),
		ArxivID: strings.TrimSpace(e.ArxivID),
		URL:     strings.TrimSpace(e.URL),
		RawText: e.RawText,
	}
}

type authorList []types.Author

func (l *authorList) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*l = nil
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		*l = splitAuthors(node.Value)
		return nil
	case yaml.SequenceNode:
		out := make([]types.Author, 0, len(node.Content))
		for _, n := range node.Content {
			var a author
			if err := n.Decode(&a); err != nil {
				return err
			}
			out = append(out, types.Author(a))
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: authors must be a list or a string", node.Line)
	}
}

func (l *authorList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = splitAuthors(s)
		return nil
	}
	var list []author
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("authors must be a list or a string: %w", err)
	}
	out := make([]types.Author, len(list))
	for i, a := range list {
		out[i] = types.Author(a)
	}
	*l = out
	return nil
}

type author types.Author

func (a *author) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = author(parseAuthor(node.Value))
		return nil
	}
	var v types.Author
	if err := node.Decode(&v); err != nil {
		return err
	}
	*a = author(v)
	return nil
}

func (a *author) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = author(parseAuthor(s))
		return nil
	}
	var v types.Author
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = author(v)
	return nil
}

// parseAuthor keeps et al. markers whole so they stay recognizable.
func parseAuthor(s string) types.Author {
	if marker := (types.Author{Family: strings.TrimSpace(s)}); marker.IsEtAl() {
		return marker
	}
	return similarity.SplitDisplayName(s)
}

var authorSep = regexp.MustCompile(`\s+and\s+|\s*;\s*`)

// splitAuthors splits "A. Vaswani and N. Shazeer" or "Vaswani, A.; Shazeer, N.".
func splitAuthors(s string) []types.Author {
	var out []types.Author
	for _, part := range authorSep.Split(strings.TrimSpace(s), -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, parseAuthor(part))
		}
	}
	return out
}

type year int

var leadingYear = regexp.MustCompile(`^\s*(\d{4})`)

func parseYear(s string) (year, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	m := leadingYear.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	n, _ := strconv.Atoi(m[1])
	return year(n), nil
}

func (y *year) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: year must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		return nil
	}
	v, err := parseYear(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*y = v
	return nil
}

func (y *year) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*y = year(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("year must be a number or a string")
	}
	v, err := parseYear(s)
	if err != nil {
		return err
	}
	*y = v
	return nil
}
