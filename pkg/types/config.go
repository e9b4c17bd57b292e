// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by the source clients.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "refcheck/0.1"). Crossref's polite pool additionally wants a
	// mailto appended; see SourcesConfig.CrossrefMailto.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourcesConfig holds settings for the three source adapters.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of search results per source (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// EnableSemanticScholar controls whether the graph-API backend is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// EnablePubMed controls whether the biomedical backend is used.
	EnablePubMed bool `json:"enable_pubmed" yaml:"enable_pubmed"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// NCBIAPIKey is an optional E-utilities key for higher rate limits.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// CrossrefMailto is the contact address sent to Crossref's polite pool.
	CrossrefMailto string `json:"crossref_mailto,omitempty" yaml:"crossref_mailto,omitempty"`
}

// VerifyConfig holds tunable policy for matching and verification.
// Thresholds are test-observable, so they live in config rather than as
// constants buried in the engine.
type VerifyConfig struct {
	// TitleMatchThreshold is the minimum token similarity for a title to
	// count as agreeing during field comparison (default 0.7).
	TitleMatchThreshold float64 `json:"title_match_threshold" yaml:"title_match_threshold"`

	// JournalMatchThreshold is the minimum token similarity for journal
	// names, which are often abbreviated differently (default 0.5).
	JournalMatchThreshold float64 `json:"journal_match_threshold" yaml:"journal_match_threshold"`

	// IdentityThreshold is the minimum title similarity for the fuzzy
	// identity fallback when records lack shared identifiers (default 0.9).
	IdentityThreshold float64 `json:"identity_threshold" yaml:"identity_threshold"`

	// Precedence orders source tags from most to least authoritative for
	// conflicting scalar fields during merge. Default: crossref, pubmed,
	// semantic_scholar.
	Precedence []string `json:"precedence" yaml:"precedence"`

	// CheckRetractions controls the retraction lookup during verification.
	CheckRetractions bool `json:"check_retractions" yaml:"check_retractions"`
}

// SessionConfig holds settings for session persistence.
type SessionConfig struct {
	// Dir is the directory where session JSON files are written (default ".").
	Dir string `json:"dir" yaml:"dir"`
}

// LibraryConfig holds settings for the local record library.
type LibraryConfig struct {
	// LibraryDir is the base directory for the library index (default "library").
	LibraryDir string `json:"library_dir" yaml:"library_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Config groups all configuration for the refcheck CLI.
type Config struct {
	Sources SourcesConfig `json:"sources" yaml:"sources"`
	Verify  VerifyConfig  `json:"verify" yaml:"verify"`
	Session SessionConfig `json:"session" yaml:"session"`
	Library LibraryConfig `json:"library" yaml:"library"`
}
