package types

import "time"

// SourceConfig holds settings for one bibliographic source adapter.
type SourceConfig struct {
	// Enabled controls whether the adapter is built for a run.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// RequestsPerSecond is the adapter's outbound request budget.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the token bucket size (default 1).
	Burst int `json:"burst" yaml:"burst"`

	// MaxConcurrent bounds in-flight requests to the provider.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// MaxAttempts bounds tries per request, including the first one.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the first backoff interval; it doubles per retry.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// MaxWait caps the total time spent backing off for one request.
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`

	// MaxResults is the number of search hits requested per query.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// APIKey is sent to providers that accept one (Semantic Scholar).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Mailto identifies the caller for polite-pool access (OpenAlex, Crossref).
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// SourcesConfig holds settings shared by all adapters plus one block per provider.
type SourcesConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is sent with every request (e.g. "citecheck/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Priority orders sources for tie-breaking and merging. Sources
	// missing from the list rank after listed ones in registry order.
	Priority []SourceName `json:"priority" yaml:"priority"`

	SemanticScholar SourceConfig `json:"semantic_scholar" yaml:"semantic_scholar"`
	OpenAlex        SourceConfig `json:"openalex" yaml:"openalex"`
	Crossref        SourceConfig `json:"crossref" yaml:"crossref"`
	Arxiv           SourceConfig `json:"arxiv" yaml:"arxiv"`

	// WebPage checks a citation's own URL when no database matched it.
	WebPage SourceConfig `json:"webpage" yaml:"webpage"`
}

// Provider returns the configuration block for name.
func (c SourcesConfig) Provider(name SourceName) (SourceConfig, bool) {
	switch name {
	case SourceSemanticScholar:
		return c.SemanticScholar, true
	case SourceOpenAlex:
		return c.OpenAlex, true
	case SourceCrossref:
		return c.Crossref, true
	case SourceArxiv:
		return c.Arxiv, true
	case SourceWebPage:
		return c.WebPage, true
	default:
		return SourceConfig{}, false
	}
}

// SetEnabled enables exactly the named providers.
func (c *SourcesConfig) SetEnabled(names []SourceName) {
	want := make(map[SourceName]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	c.SemanticScholar.Enabled = want[SourceSemanticScholar]
	c.OpenAlex.Enabled = want[SourceOpenAlex]
	c.Crossref.Enabled = want[SourceCrossref]
	c.Arxiv.Enabled = want[SourceArxiv]
	c.WebPage.Enabled = want[SourceWebPage]
}

// SimilarityConfig holds the thresholds used by the similarity toolkit
// and the reporter.
type SimilarityConfig struct {
	// NameMatchThreshold is the minimum name similarity for two author
	// entries to count as the same person.
	NameMatchThreshold float64 `json:"name_match_threshold" yaml:"name_match_threshold"`

	// NameMisspellThreshold is the minimum surname similarity for an
	// unmatched pair to be reported as a misspelling rather than as a
	// missing and an extra author.
	NameMisspellThreshold float64 `json:"name_misspell_threshold" yaml:"name_misspell_threshold"`

	// TitlePrefixBonus is added when one normalized title is a prefix of the other.
	TitlePrefixBonus float64 `json:"title_prefix_bonus" yaml:"title_prefix_bonus"`

	// TitleNoiseThreshold suppresses title findings at or above this similarity.
	TitleNoiseThreshold float64 `json:"title_noise_threshold" yaml:"title_noise_threshold"`

	// TitleErrorThreshold separates warning (at or above) from error (below).
	TitleErrorThreshold float64 `json:"title_error_threshold" yaml:"title_error_threshold"`

	// VenueMatchThreshold is the minimum venue similarity for two venues to agree.
	VenueMatchThreshold float64 `json:"venue_match_threshold" yaml:"venue_match_threshold"`

	// YearTolerance is the year difference still treated as a near match.
	YearTolerance int `json:"year_tolerance" yaml:"year_tolerance"`

	// NearYearScore is the year score given to a near (not exact) match.
	NearYearScore float64 `json:"near_year_score" yaml:"near_year_score"`

	// NearYearSeverity is the severity of a year off by at most YearTolerance.
	NearYearSeverity Severity `json:"near_year_severity" yaml:"near_year_severity"`

	// RelevanceFloor drops search hits whose title similarity to the query
	// is below it. Adapters apply it; they never accept or reject.
	RelevanceFloor float64 `json:"relevance_floor" yaml:"relevance_floor"`

	// SynonymsFile optionally extends the built-in venue synonym table.
	SynonymsFile string `json:"synonyms_file,omitempty" yaml:"synonyms_file,omitempty"`
}

// MatchConfig holds scoring weights and the acceptance rule.
type MatchConfig struct {
	TitleWeight  float64 `json:"title_weight" yaml:"title_weight"`
	AuthorWeight float64 `json:"author_weight" yaml:"author_weight"`
	VenueWeight  float64 `json:"venue_weight" yaml:"venue_weight"`
	YearWeight   float64 `json:"year_weight" yaml:"year_weight"`

	// AcceptanceThreshold is the minimum aggregate score for a match.
	AcceptanceThreshold float64 `json:"acceptance_threshold" yaml:"acceptance_threshold"`

	// TieEpsilon is the score distance under which candidates tie.
	TieEpsilon float64 `json:"tie_epsilon" yaml:"tie_epsilon"`

	// MergeAgreement is the title similarity a supplementary record needs
	// with the selected one before its fields are merged.
	MergeAgreement float64 `json:"merge_agreement" yaml:"merge_agreement"`
}

// CacheBackend selects the lookup cache implementation.
type CacheBackend string

const (
	CacheNone     CacheBackend = "none"
	CacheMemory   CacheBackend = "memory"
	CacheSQLite   CacheBackend = "sqlite"
	CachePostgres CacheBackend = "postgres"
)

// CacheConfig holds settings for the lookup cache.
type CacheConfig struct {
	Backend CacheBackend `json:"backend" yaml:"backend"`

	// Path is the SQLite database file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URL is the PostgreSQL connection string.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// MaxAge hides entries older than this; zero keeps entries forever.
	MaxAge time.Duration `json:"max_age" yaml:"max_age"`
}

// RunConfig holds settings for a whole audit run.
type RunConfig struct {
	// Workers bounds the number of citations reconciled concurrently.
	Workers int `json:"workers" yaml:"workers"`

	// Timeout is the budget for the whole run; zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`

	// MaxCitations bounds the citations accepted in one request.
	MaxCitations int `json:"max_citations" yaml:"max_citations"`
}

// Config groups all configuration consumed by citecheck.
type Config struct {
	Sources    SourcesConfig    `json:"sources" yaml:"sources"`
	Similarity SimilarityConfig `json:"similarity" yaml:"similarity"`
	Match      MatchConfig      `json:"match" yaml:"match"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Run        RunConfig        `json:"run" yaml:"run"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// DefaultSimilarityConfig returns the tuned similarity thresholds.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		NameMatchThreshold:    0.85,
		NameMisspellThreshold: 0.6,
		TitlePrefixBonus:      0.25,
		TitleNoiseThreshold:   0.95,
		TitleErrorThreshold:   0.7,
		VenueMatchThreshold:   0.7,
		YearTolerance:         1,
		NearYearScore:         0.5,
		NearYearSeverity:      SeverityInfo,
		RelevanceFloor:        0.2,
	}
}

// DefaultMatchConfig returns the default weights; title dominates.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		TitleWeight:         0.55,
		AuthorWeight:        0.25,
		VenueWeight:         0.1,
		YearWeight:          0.1,
		AcceptanceThreshold: 0.7,
		TieEpsilon:          0.01,
		MergeAgreement:      0.9,
	}
}

// DefaultConfig returns a configuration usable without a config file.
func DefaultConfig() Config {
	provider := func(rps float64) SourceConfig {
		return SourceConfig{
			Enabled:           true,
			RequestsPerSecond: rps,
			Burst:             1,
			MaxConcurrent:     2,
			MaxAttempts:       5,
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			MaxWait:           2 * time.Minute,
			MaxResults:        10,
		}
	}
	arxiv := provider(0.33)
	arxiv.Enabled = false
	arxiv.MaxConcurrent = 1
	webpage := provider(2)
	webpage.MaxAttempts = 2
	webpage.MaxWait = 10 * time.Second

	return Config{
		Sources: SourcesConfig{
			Timeout:   30 * time.Second,
			UserAgent: "citecheck/0.1",
			Priority: []SourceName{
				SourceCrossref, SourceSemanticScholar, SourceOpenAlex, SourceArxiv, SourceWebPage,
			},
			SemanticScholar: provider(1),
			OpenAlex:        provider(10),
			Crossref:        provider(5),
			Arxiv:           arxiv,
			WebPage:         webpage,
		},
		Similarity: DefaultSimilarityConfig(),
		Match:      DefaultMatchConfig(),
		Cache: CacheConfig{
			Backend: CacheMemory,
		},
		Run: RunConfig{
			Workers: 4,
			Timeout: 10 * time.Minute,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxCitations: 500,
		},
	}
}
