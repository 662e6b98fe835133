package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout for a single attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "xsfetch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// AuthToken, when set, is sent as a bearer token. Used for
	// github.com downloads, which are rate limited for anonymous clients.
	AuthToken string `json:"-" yaml:"-" mapstructure:"-"`
}

// VerifyMode selects how an existing local file is checked before the
// fetcher skips its download.
type VerifyMode string

const (
	// VerifyExists trusts any file that exists.
	VerifyExists VerifyMode = "exists"
	// VerifySize requires the file size to match the ledger record.
	VerifySize VerifyMode = "size"
	// VerifyDigest requires the BLAKE3 digest to match the ledger record.
	VerifyDigest VerifyMode = "digest"
)

// Valid reports whether m is a known verify mode.
func (m VerifyMode) Valid() bool {
	switch m {
	case VerifyExists, VerifySize, VerifyDigest:
		return true
	default:
		return false
	}
}

// FailurePolicy selects what the fetcher does after a download fails.
type FailurePolicy string

const (
	// FailAbort stops the batch at the first failure.
	FailAbort FailurePolicy = "abort"
	// FailContinue attempts every entry and reports all failures at the end.
	FailContinue FailurePolicy = "continue"
)

// Valid reports whether p is a known failure policy.
func (p FailurePolicy) Valid() bool {
	return p == FailAbort || p == FailContinue
}

// FetchConfig holds settings for the download stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Attempts is the total number of tries per file (default 3).
	Attempts int `json:"attempts" yaml:"attempts" mapstructure:"attempts"`

	// Concurrency is the number of simultaneous downloads (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// RequestsPerSecond caps outbound requests. Zero means unlimited.
	RequestsPerSecond float64 `json:"rate" yaml:"rate" mapstructure:"rate"`

	// Verify selects the skip check for files already on disk.
	Verify VerifyMode `json:"verify" yaml:"verify" mapstructure:"verify"`

	// FailurePolicy selects abort-on-first-failure or continue.
	FailurePolicy FailurePolicy `json:"failure_policy" yaml:"failure_policy" mapstructure:"failure_policy"`

	// Ledger enables the SQLite download ledger in the destination.
	Ledger bool `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
}

// LibraryRequest describes a custom cross-section library to build.
type LibraryRequest struct {
	// Libraries in priority order; the first has the highest priority.
	Libraries []string `json:"libraries" yaml:"libraries"`

	// Isotopes to fetch, or the sentinels "all" / "stable".
	Isotopes []string `json:"isotopes,omitempty" yaml:"isotopes,omitempty"`

	// Elements to expand into their natural isotopes, or "all" / "stable".
	Elements []string `json:"elements,omitempty" yaml:"elements,omitempty"`

	// ThermalNames are S(a,b) tables to fetch, or "all".
	ThermalNames []string `json:"sab,omitempty" yaml:"sab,omitempty"`

	// MaterialFiles are materials.xml or YAML material files to expand.
	MaterialFiles []string `json:"materials,omitempty" yaml:"materials,omitempty"`

	// Particles to include for isotope data (neutron, photon).
	Particles []string `json:"particles" yaml:"particles"`

	// Destination directory. Empty means the working directory.
	Destination string `json:"destination" yaml:"destination"`

	// Overwrite forces downloads even when files exist.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// SetEnv registers the written manifest in OPENMC_CROSS_SECTIONS for
	// the current process.
	SetEnv bool `json:"set_env" yaml:"set_env"`
}
