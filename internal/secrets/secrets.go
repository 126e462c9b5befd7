// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Recognized key files: semantic-scholar-api-key, openalex-email, crossref-mailto.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/citecheck/pkg/types"
)

// Key file names understood by Apply.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
	CrossrefMailto        = "crossref-mailto"
)

// Load reads the key files in dir: the Semantic Scholar API key plus the
// contact emails OpenAlex and Crossref use for their polite pools. The map
// is keyed by file name so Apply can pick the credentials it knows. A
// missing dir yields an empty map. Dotfiles and subdirectories are
// skipped, as are blank files; a file that cannot be read is reported on
// stderr.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	keys := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		value, err := readKey(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value != "" {
			keys[name] = value
		}
	}
	return keys, nil
}

func readKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Apply copies credentials from secrets into cfg. Values already set in
// cfg (from the config file or flags) win. A Crossref mailto falls back to
// the OpenAlex email since both identify the caller for a polite pool.
func Apply(cfg *types.SourcesConfig, secrets map[string]string) {
	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := secrets[k]; v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&cfg.SemanticScholar.APIKey, SemanticScholarAPIKey)
	fill(&cfg.OpenAlex.Mailto, OpenAlexEmail)
	fill(&cfg.Crossref.Mailto, CrossrefMailto, OpenAlexEmail)
}
