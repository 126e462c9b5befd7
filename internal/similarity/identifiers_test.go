// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/citecheck/pkg/types"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", "10.1145/3600006.3613165", "10.1145/3600006.3613165"},
		{"resolver url", "https://doi.org/10.1145/3600006.3613165", "10.1145/3600006.3613165"},
		{"dx resolver and case", "http://dx.doi.org/10.1000/ABC", "10.1000/abc"},
		{"doi scheme and trailing period", "doi:10.1000/xyz.", "10.1000/xyz"},
		{"query and fragment", "10.1000/xyz?utm=1#frag", "10.1000/xyz"},
		{"whitespace", "  10.1000/xyz  ", "10.1000/xyz"},
		{"not a doi", "hello", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDOI(tt.in); got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSameDOI(t *testing.T) {
	assert.True(t, SameDOI("10.1000/ABC", "https://doi.org/10.1000/abc"))
	assert.False(t, SameDOI("10.1000/abc", "10.1000/abd"))
	assert.False(t, SameDOI("", ""))
}

func TestNormalizeArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1706.03762", "1706.03762"},
		{"arXiv:1706.03762v5", "1706.03762"},
		{"https://arxiv.org/abs/1706.03762v2", "1706.03762"},
		{"https://arxiv.org/pdf/1706.03762.pdf", "1706.03762"},
		{"hep-th/9901001v2", "hep-th/9901001"},
		{"10.48550/arXiv.2301.07041", "2301.07041"},
		{"garbage", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeArxivID(tt.in); got != tt.want {
			t.Errorf("NormalizeArxivID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	assert.True(t, SameArxivID("1706.03762v1", "arXiv:1706.03762v5"))
}

func TestCitationIdentifiers(t *testing.T) {
	c := types.Citation{Venue: "arXiv preprint arXiv:1610.10099"}
	assert.Equal(t, "1610.10099", CitationArxivID(c))
	assert.Empty(t, CitationDOI(c))

	c = types.Citation{URL: "https://doi.org/10.1145/3600006.3613165"}
	assert.Equal(t, "10.1145/3600006.3613165", CitationDOI(c))

	c = types.Citation{DOI: "10.48550/arXiv.2301.07041"}
	assert.Equal(t, "2301.07041", CitationArxivID(c))

	c = types.Citation{ArxivID: "2301.07041v3", URL: "https://arxiv.org/abs/1706.03762"}
	assert.Equal(t, "2301.07041", CitationArxivID(c), "explicit field wins over the url")
}

func TestRecordArxivID(t *testing.T) {
	r := types.CandidateRecord{DOI: "10.48550/arxiv.1706.03762"}
	assert.Equal(t, "1706.03762", RecordArxivID(r))
	assert.Empty(t, RecordArxivID(types.CandidateRecord{DOI: "10.1145/1"}))
}
