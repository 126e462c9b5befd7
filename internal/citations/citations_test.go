// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citecheck/pkg/types"
)

const yamlList = `citations:
  - key: vaswani2017
    authors:
      - {given: Ashish, family: Vaswani}
      - Noam Shazeer
      - "Parmar, Niki"
      - et al.
    title: "  Attention Is All You Need "
    venue: NeurIPS
    year: 2017
    doi: 10.48550/arXiv.1706.03762
  - title: Deep Residual Learning for Image Recognition
    authors: K. He and X. Zhang and S. Ren and J. Sun
    year: "2016a"
`

func TestParseYAML(t *testing.T) {
	cs, err := Parse([]byte(yamlList), FormatAuto)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assert.Equal(t, types.Citation{
		Key: "vaswani2017",
		Authors: []types.Author{
			{Given: "Ashish", Family: "Vaswani"},
			{Given: "Noam", Family: "Shazeer"},
			{Given: "Niki", Family: "Parmar"},
			{Family: "et al."},
		},
		Title: "Attention Is All You Need",
		Venue: "NeurIPS",
		Year:  2017,
		DOI:   "10.48550/arXiv.1706.03762",
	}, cs[0])
	assert.True(t, cs[0].Truncated())

	assert.Equal(t, 2016, cs[1].Year)
	assert.Equal(t, []types.Author{
		{Given: "K.", Family: "He"},
		{Given: "X.", Family: "Zhang"},
		{Given: "S.", Family: "Ren"},
		{Given: "J.", Family: "Sun"},
	}, cs[1].Authors)
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "bare array",
			data: `[{"title": "Attention Is All You Need", "year": 2017,
				"authors": [{"given": "Ashish", "family": "Vaswani"}, "Noam Shazeer"]}]`,
		},
		{
			name: "object with citations",
			data: `{"citations": [{"title": "Attention Is All You Need", "year": "2017",
				"authors": "Vaswani, Ashish; Shazeer, Noam"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Parse([]byte(tt.data), FormatAuto)
			require.NoError(t, err)
			require.Len(t, cs, 1)
			assert.Equal(t, "Attention Is All You Need", cs[0].Title)
			assert.Equal(t, 2017, cs[0].Year)
			assert.Equal(t, []types.Author{
				{Given: "Ashish", Family: "Vaswani"},
				{Given: "Noam", Family: "Shazeer"},
			}, cs[0].Authors)
		})
	}
}

func TestParseYAMLBareList(t *testing.T) {
	cs, err := Parse([]byte("- title: Deep Residual Learning\n  year: 2016\n- title: Attention Is All You Need\n"), FormatYAML)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "Deep Residual Learning", cs[0].Title)
	assert.Equal(t, 2016, cs[0].Year)
	assert.Equal(t, "Attention Is All You Need", cs[1].Title)
}

func TestParseKeepsEntriesWithoutTitle(t *testing.T) {
	cs, err := Parse([]byte(`[{"authors": ["Nobody"]}, {"title": "x", "year": null}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Empty(t, cs[0].Title)
	assert.Zero(t, cs[1].Year)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{name: "invalid json", data: `[{"title": }]`, format: FormatJSON},
		{name: "invalid year", data: "citations:\n  - title: x\n    year: soon\n", format: FormatYAML},
		{name: "authors mapping", data: "citations:\n  - title: x\n    authors: {a: b}\n", format: FormatYAML},
		{name: "unknown format", data: "[]", format: Format("toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "refs.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlList), 0o644))
	cs, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, cs, 2)

	// Extension-less files are sniffed.
	jsonPath := filepath.Join(dir, "refs")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"title": "A"}]`), 0o644))
	cs, err = Load(jsonPath)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "A", cs[0].Title)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading citations file")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing citations file")
}

const cslJSON = `[
  {
    "id": "vaswani2017",
    "type": "article",
    "title": "Attention Is All You Need",
    "author": [{"family": "Vaswani", "given": "Ashish"}, {"literal": "Noam Shazeer"}],
    "issued": {"date-parts": [[2017, 6, 12]]},
    "publisher": "arXiv",
    "number": "arXiv:1706.03762",
    "URL": "http://arxiv.org/abs/1706.03762"
  },
  {
    "id": "he2016",
    "type": "paper-conference",
    "title": "Deep Residual Learning for Image Recognition",
    "container-title": "CVPR",
    "issued": {"date-parts": [["2016"]]},
    "DOI": "10.1109/CVPR.2016.90"
  }
]`

func TestParseCSLJSON(t *testing.T) {
	cs, err := Parse([]byte(cslJSON), FormatCSL)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assert.Equal(t, types.Citation{
		Key:     "vaswani2017",
		Title:   "Attention Is All You Need",
		Authors: []types.Author{{Given: "Ashish", Family: "Vaswani"}, {Given: "Noam", Family: "Shazeer"}},
		Year:    2017,
		ArxivID: "1706.03762",
		URL:     "http://arxiv.org/abs/1706.03762",
	}, cs[0])

	assert.Equal(t, "CVPR", cs[1].Venue)
	assert.Equal(t, 2016, cs[1].Year)
	assert.Equal(t, "10.1109/CVPR.2016.90", cs[1].DOI)
	assert.Empty(t, cs[1].ArxivID)
}

func TestParseCSLYAMLReferences(t *testing.T) {
	data := `references:
- id: oord2016
  title: WaveNet
  author:
  - family: van den Oord
    given: Aäron
  issued:
    raw: 2016-09
  number: "12"
  publisher: Springer
`
	cs, err := Parse([]byte(data), FormatCSL)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, []types.Author{{Given: "Aäron", Family: "van den Oord"}}, cs[0].Authors)
	assert.Equal(t, 2016, cs[0].Year)
	assert.Empty(t, cs[0].ArxivID)
}

func TestLoadPicksCSLFromName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.csl.json")
	require.NoError(t, os.WriteFile(path, []byte(cslJSON), 0o644))

	cs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "vaswani2017", cs[0].Key)

	// Forced to the plain list format, CSL-only fields such as id are dropped.
	cs, err = LoadAs(path, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", cs[0].Title)
	assert.Empty(t, cs[0].Key)
}
