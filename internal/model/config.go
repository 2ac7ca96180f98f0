package model

import "time"

// Config is the complete run configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Oracle       OracleConfig       `yaml:"oracle" mapstructure:"oracle"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Resolver     ResolverConfig     `yaml:"resolver" mapstructure:"resolver"`
	Canonical    CanonicalConfig    `yaml:"canonical" mapstructure:"canonical"`
	Claims       ClaimsConfig       `yaml:"claims" mapstructure:"claims"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Gate         GateConfig         `yaml:"gate" mapstructure:"gate"`
	Credibility  CredibilityConfig  `yaml:"credibility" mapstructure:"credibility"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls outbound HTTP for search and source fetches
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig selects and tunes the content-addressed result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory, disk, layered, sqlite, redis
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	SQLite    string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// OracleConfig configures the text-resolution oracle
type OracleConfig struct {
	Provider         string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" disables
	Model            string        `yaml:"model" mapstructure:"model"`
	APIKey           string        `yaml:"-" mapstructure:"api_key"`
	BaseURL          string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Temperature      float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens        int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
	RequestsPerSec   float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// Enabled reports whether an oracle provider is configured
func (c OracleConfig) Enabled() bool {
	return c.Provider != ""
}

// SearchConfig configures the web search collaborator
type SearchConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider"` // searxng, "" disables
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	TopN           int           `yaml:"top_n" mapstructure:"top_n"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FetchFallback  bool          `yaml:"fetch_fallback" mapstructure:"fetch_fallback"`
	RequestsPerSec float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig applies to per-host source fetches and batch documents
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ResolverConfig holds the missing-footnote resolver thresholds
type ResolverConfig struct {
	WindowRadius        int  `yaml:"window_radius" mapstructure:"window_radius"`
	MaxOracleCandidates int  `yaml:"max_oracle_candidates" mapstructure:"max_oracle_candidates"`
	MinWords            int  `yaml:"min_words" mapstructure:"min_words"`
	MinChars            int  `yaml:"min_chars" mapstructure:"min_chars"`
	AnchorTokens        int  `yaml:"anchor_tokens" mapstructure:"anchor_tokens"`
	OverlapTokens       int  `yaml:"overlap_tokens" mapstructure:"overlap_tokens"`
	HardProofAnchor     int  `yaml:"hard_proof_anchor_words" mapstructure:"hard_proof_anchor_words"` // 0 requires the numbered line
	Validate            bool `yaml:"validate" mapstructure:"validate"`
	ForceInvalidate     bool `yaml:"force_invalidate" mapstructure:"force_invalidate"`
	ExtractReferences   bool `yaml:"extract_references" mapstructure:"extract_references"`
	MaxIndexJump        int  `yaml:"max_index_jump" mapstructure:"max_index_jump"`
}

// CanonicalConfig controls canonical numbering repair
type CanonicalConfig struct {
	Density        float64 `yaml:"density" mapstructure:"density"`
	MinRun         int     `yaml:"min_run" mapstructure:"min_run"`
	UseOracle      bool    `yaml:"use_oracle" mapstructure:"use_oracle"`
	MaxStitchLines int     `yaml:"max_stitch_lines" mapstructure:"max_stitch_lines"`
	DropOutliers   bool    `yaml:"drop_outliers" mapstructure:"drop_outliers"`
}

// ClaimsConfig controls claim extraction and support selection
type ClaimsConfig struct {
	PoolSize        int `yaml:"pool_size" mapstructure:"pool_size"`
	MaxSupport      int `yaml:"max_support" mapstructure:"max_support"`
	MaxSectionChars int `yaml:"max_section_chars" mapstructure:"max_section_chars"`
	MaxClaims       int `yaml:"max_claims" mapstructure:"max_claims"`
}

// ScoringConfig holds the corroboration weights and thresholds
type ScoringConfig struct {
	Weights            ScoreWeights `yaml:"weights" mapstructure:"weights"`
	CoverageThreshold  float64      `yaml:"coverage_threshold" mapstructure:"coverage_threshold"`
	ResultsPerSource   int          `yaml:"results_per_source" mapstructure:"results_per_source"`
	UseOracleStance    bool         `yaml:"use_oracle_stance" mapstructure:"use_oracle_stance"`
	DefaultCredibility float64      `yaml:"default_credibility" mapstructure:"default_credibility"`
}

// ScoreWeights are the T/E/I/A/C/K coefficients
type ScoreWeights struct {
	T float64 `yaml:"t" mapstructure:"t"`
	E float64 `yaml:"e" mapstructure:"e"`
	I float64 `yaml:"i" mapstructure:"i"`
	A float64 `yaml:"a" mapstructure:"a"`
	C float64 `yaml:"c" mapstructure:"c"`
	K float64 `yaml:"k" mapstructure:"k"`
}

// GateConfig sets the quality gate thresholds
type GateConfig struct {
	MinAvgConfidence float64 `yaml:"min_avg_confidence" mapstructure:"min_avg_confidence"`
	MaxUnresolved    int     `yaml:"max_unresolved" mapstructure:"max_unresolved"`
	ShortCircuit     bool    `yaml:"short_circuit" mapstructure:"short_circuit"`
}

// CredibilityConfig configures the deterministic source classification fallback
type CredibilityConfig struct {
	RulesFile string          `yaml:"rules_file,omitempty" mapstructure:"rules_file"`
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`
}

// AuthorityConfig lists domain patterns per authority tier
type AuthorityConfig struct {
	PrimaryDomains   []string `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	TertiaryDomains  []string `yaml:"tertiary_domains" mapstructure:"tertiary_domains"`

	// DomainMap pins exact hosts to a tier name ("primary", "secondary", "tertiary")
	DomainMap map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	Color         bool   `yaml:"color" mapstructure:"color"`
	MetricsFile   string `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "sixc/0.1 (+https://github.com/ppiankov/sixc)",
			MaxBodyBytes:  2 * 1024 * 1024,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "layered",
			TTL:     7 * 24 * time.Hour,
			Dir:     "~/.sixc/cache",
			SQLite:  "~/.sixc/cache.db",
		},
		Oracle: OracleConfig{
			Temperature:      0,
			MaxTokens:        1200,
			Timeout:          60 * time.Second,
			MaxRetries:       2,
			RetryBaseDelay:   500 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
			RequestsPerSec:   4,
		},
		Search: SearchConfig{
			BaseURL:        "http://localhost:8888",
			TopN:           5,
			Timeout:        20 * time.Second,
			FetchFallback:  true,
			RequestsPerSec: 2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         5,
		},
		Resolver: ResolverConfig{
			WindowRadius:        2,
			MaxOracleCandidates: 4,
			MinWords:            6,
			MinChars:            20,
			AnchorTokens:        10,
			OverlapTokens:       4,
			ExtractReferences:   true,
			MaxIndexJump:        25,
		},
		Canonical: CanonicalConfig{
			Density:        0.9,
			MinRun:         10,
			UseOracle:      true,
			MaxStitchLines: 6,
			DropOutliers:   true,
		},
		Claims: ClaimsConfig{
			PoolSize:        18,
			MaxSupport:      3,
			MaxSectionChars: 12000,
			MaxClaims:       40,
		},
		Scoring: ScoringConfig{
			Weights:            ScoreWeights{T: 0.2, E: 0.2, I: 0.2, A: 0.2, C: 0.2, K: 0.2},
			CoverageThreshold:  0.55,
			ResultsPerSource:   3,
			UseOracleStance:    true,
			DefaultCredibility: 0.35,
		},
		Gate: GateConfig{
			MinAvgConfidence: 0.5,
			MaxUnresolved:    5,
			ShortCircuit:     true,
		},
		Credibility: CredibilityConfig{
			Authority: AuthorityConfig{
				PrimaryDomains: []string{
					"*.gov", "*.gov.*", "*.edu", "*.ac.*", "*.int",
					"doi.org", "arxiv.org", "pubmed.ncbi.nlm.nih.gov", "jstor.org",
					"un.org", "who.int", "worldbank.org", "imf.org", "oecd.org",
				},
				SecondaryDomains: []string{
					"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
					"bbc.co.uk", "bbc.com", "nytimes.com", "theguardian.com", "ft.com",
					"economist.com", "washingtonpost.com", "bloomberg.com",
				},
				TertiaryDomains: []string{
					"medium.com", "substack.com", "blogspot.com", "wordpress.com",
					"reddit.com", "quora.com", "twitter.com", "x.com", "facebook.com",
				},
			},
		},
		Output: OutputConfig{
			Color:         true,
			IncludeFooter: true,
		},
	}
}
