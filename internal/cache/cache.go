// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache memoizes accepted matches so a repeated citation skips the
// network. Entries hold the reconciled view of a match (the accepted
// record, its merged form and the conflicts supporting sources raised) and
// are stored as JSON under identifier and work keys. Misses are not errors,
// and writes are keyed upserts where the last write wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

// Key prefixes.
const (
	PrefixDOI   = "doi:"
	PrefixArxiv = "arxiv:"
	PrefixWork  = "work:"
)

// Entry is one reconciled match. Merged is nil when no supporting source
// filled a field of Record.
type Entry struct {
	Record    types.CandidateRecord  `json:"record"`
	Merged    *types.CandidateRecord `json:"merged,omitempty"`
	Conflicts []types.FieldConflict  `json:"conflicts,omitempty"`
}

// NewEntry returns an entry for a record with nothing merged into it.
func NewEntry(rec types.CandidateRecord) Entry {
	return Entry{Record: rec}
}

// View returns the merged record when present, otherwise Record.
func (e Entry) View() types.CandidateRecord {
	if e.Merged != nil {
		return *e.Merged
	}
	return e.Record
}

// Cache is a read-through lookup cache. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get returns the entry stored under key. A missing or expired entry
	// reports false with a nil error.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Put stores e under key, replacing any earlier entry.
	Put(ctx context.Context, key string, e Entry) error

	Close() error
}

// Keys returns the cache keys for a citation, most specific first:
// normalized DOI, arXiv id, then the work key. A citation without a title
// and identifiers has no keys.
func Keys(c types.Citation) []string {
	var keys []string
	if doi := similarity.CitationDOI(c); doi != "" {
		keys = append(keys, PrefixDOI+doi)
	}
	if id := similarity.CitationArxivID(c); id != "" {
		keys = append(keys, PrefixArxiv+id)
	}
	if k := WorkKey(c); k != "" {
		keys = append(keys, k)
	}
	return keys
}

// WorkKey is "work:<normalized title>|<first-author surname>|<year>". The
// surname and year parts are empty when the citation lacks them.
func WorkKey(c types.Citation) string {
	title := similarity.NormalizeTitle(c.Title)
	if title == "" {
		return ""
	}
	var surname string
	if a, ok := c.FirstAuthor(); ok {
		surname = similarity.AuthorName(a).Surname()
	}
	var year string
	if c.Year > 0 {
		year = strconv.Itoa(c.Year)
	}
	return PrefixWork + strings.Join([]string{title, surname, year}, "|")
}

// Open builds the backend selected by cfg. CacheNone and an empty backend
// return a cache that never hits.
func Open(ctx context.Context, cfg types.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", types.CacheNone:
		return Nop{}, nil
	case types.CacheMemory:
		return NewMemory(cfg.MaxAge), nil
	case types.CacheSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite cache: path is required")
		}
		s, err := OpenSQLite(cfg.Path, cfg.MaxAge)
		if err != nil {
			return nil, err
		}
		return s, nil
	case types.CachePostgres:
		if cfg.URL == "" {
			return nil, fmt.Errorf("postgres cache: url is required")
		}
		p, err := OpenPostgres(ctx, cfg.URL, cfg.MaxAge)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, nil
}

func (Nop) Put(context.Context, string, Entry) error { return nil }

func (Nop) Close() error { return nil }

// stored normalizes an entry for persistence. The cache layer records the
// original provider; Source is rewritten to SourceCache on the way out.
// The entry's slices are copied so later edits by the caller do not leak in.
func stored(e Entry) Entry {
	e.Record = storedRecord(e.Record)
	if e.Merged != nil {
		m := storedRecord(*e.Merged)
		e.Merged = &m
	}
	e.Conflicts = slices.Clone(e.Conflicts)
	return e
}

func storedRecord(rec types.CandidateRecord) types.CandidateRecord {
	rec.CachedFrom = rec.Provider()
	rec.Source = rec.CachedFrom
	rec.Authors = slices.Clone(rec.Authors)
	return rec
}

// loaded marks an entry read back from any backend.
func loaded(e Entry) Entry {
	e.Record = loadedRecord(e.Record)
	if e.Merged != nil {
		m := loadedRecord(*e.Merged)
		e.Merged = &m
	}
	e.Conflicts = slices.Clone(e.Conflicts)
	return e
}

func loadedRecord(rec types.CandidateRecord) types.CandidateRecord {
	rec.CachedFrom = rec.Provider()
	rec.Source = types.SourceCache
	rec.Authors = slices.Clone(rec.Authors)
	return rec
}

func encode(e Entry) ([]byte, error) {
	data, err := json.Marshal(stored(e))
	if err != nil {
		return nil, fmt.Errorf("encoding cache entry: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decoding cache entry: %w", err)
	}
	return loaded(e), nil
}

// expired reports whether an entry written at created is older than
// maxAge. Zero maxAge disables expiry.
func expired(created time.Time, maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && now.Sub(created) > maxAge
}
