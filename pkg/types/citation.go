// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citecheck audit:
// citations handed over by the upstream parser, candidate records returned
// by bibliographic sources, match verdicts, discrepancies, and the
// configuration consumed by every stage.
package types

import "strings"

// Author is one entry of a citation's or record's author list.
type Author struct {
	// Given holds the given name(s) or initials (e.g. "Ashish", "J. K.").
	Given string `json:"given,omitempty" yaml:"given,omitempty"`

	// Family is the surname, including particles such as "van den".
	Family string `json:"family" yaml:"family"`
}

// FullName returns the author in "Given Family" order.
func (a Author) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
}

// IsEtAl reports whether the entry is an "et al." / "others" marker that
// truncates an author list rather than naming a person.
func (a Author) IsEtAl() bool {
	s := strings.ToLower(strings.TrimSpace(a.FullName()))
	s = strings.TrimSuffix(s, ".")
	switch s {
	case "et al", "et. al", "et al.", "others", "and others", "et alii":
		return true
	}
	return false
}

// Citation is one structured reference entry from a manuscript. It is
// produced upstream and treated as immutable by the audit.
type Citation struct {
	// Key is the label used in the manuscript (e.g. "12", "Vaswani2017").
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Authors lists the cited authors in manuscript order.
	Authors []Author `json:"authors" yaml:"authors"`

	// Title is the cited work's title. Required.
	Title string `json:"title" yaml:"title"`

	// Venue is the journal, conference, or publisher.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Year is the publication year; zero when absent.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`

	// RawText is the reference entry as it appeared in the manuscript.
	RawText string `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
}

// FirstAuthor returns the first author that is not an et al. marker.
func (c Citation) FirstAuthor() (Author, bool) {
	for _, a := range c.Authors {
		if !a.IsEtAl() && strings.TrimSpace(a.FullName()) != "" {
			return a, true
		}
	}
	return Author{}, false
}

// Truncated reports whether the author list ends with an et al. marker.
func (c Citation) Truncated() bool {
	for _, a := range c.Authors {
		if a.IsEtAl() {
			return true
		}
	}
	return false
}

// NamedAuthors returns the authors without et al. markers or empty entries.
func (c Citation) NamedAuthors() []Author {
	out := make([]Author, 0, len(c.Authors))
	for _, a := range c.Authors {
		if a.IsEtAl() || strings.TrimSpace(a.FullName()) == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
