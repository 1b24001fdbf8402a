// Copyright 2025 TrustWrapper Authors
//
// Package ruleset holds the core's configuration surface: the tunables
// enumerated in the external interfaces spec (deadlines, cache bounds, trust
// weights, band thresholds, commitment parameters) plus the ruleset version
// that binds detector rules, trust weights, and serialization conventions
// together as a single versioned, fingerprint-relevant bundle.
package ruleset

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TrustWeights are the Trust Score Composer's term weights; part of the
// ruleset. The fingerprint binds RulesetVersion rather than the weights
// themselves, so new weights change fingerprints only together with a new
// RulesetVersion.
type TrustWeights struct {
	Hallucination float64 `yaml:"hallucination"`
	Consensus     float64 `yaml:"consensus"`
	Explanation   float64 `yaml:"explanation"`
	History       float64 `yaml:"history"`
}

// BandThresholds are the lower bounds of the Flag and Accept bands; Reject
// is everything below Flag.
type BandThresholds struct {
	Reject float64 `yaml:"reject"`
	Flag   float64 `yaml:"flag"`
}

// CommitmentParams record the hash function and nonce size of the
// Commitment Layer; changing either bumps RulesetVersion. Chain is read by
// the orchestrator and commitment.Seal; HashAlgo and NonceBytes are not
// read by Seal, which always uses SHA-256 and a 16-byte nonce.
type CommitmentParams struct {
	HashAlgo   string `yaml:"hash_algo"`
	NonceBytes int    `yaml:"nonce_bytes"`
	Chain      bool   `yaml:"chain"`
}

// Config is the full set of options the core recognizes.
type Config struct {
	MinValidators        uint32         `yaml:"min_validators"`
	PerValidatorDeadline  int            `yaml:"per_validator_deadline_ms"`
	PoolDeadline          int            `yaml:"pool_deadline_ms"`
	GlobalDeadline        int            `yaml:"global_deadline_ms"`

	CacheCapacity int `yaml:"cache_capacity"`
	CacheTTLSec   int `yaml:"cache_ttl_s"`

	TrustWeights   TrustWeights   `yaml:"trust_weights"`
	BandThresholds BandThresholds `yaml:"band_thresholds"`

	CountTimeoutVerdicts bool `yaml:"count_timeout_verdicts"`

	Commitment CommitmentParams `yaml:"commitment"`

	RulesetVersion string `yaml:"ruleset_version"`

	// Supplemental tunables not named directly in the external interfaces
	// enumeration but required by the component contracts they back.
	BackpressureLimit      int     `yaml:"backpressure_limit"`       // §5 admission limit P
	TopKFeatures           int     `yaml:"top_k_features"`           // §4.6 explainability top-K
	MinDetectorConfidence  float64 `yaml:"min_detector_confidence"`  // §4.3 drop threshold
	MagnitudeWindowOrders  float64 `yaml:"magnitude_window_orders"`  // §4.3 statistical plausibility window; not read by pkg/hallucination, which uses a fixed window of 3
	StatisticWindowTokens  int     `yaml:"statistic_window_tokens"`  // §4.2 bounded window for statistic claims; not read by pkg/introspect, which captures no subject window
}

// Default returns the spec's documented default configuration.
func Default() *Config {
	return &Config{
		MinValidators:        3,
		PerValidatorDeadline: 250,
		PoolDeadline:         500,
		GlobalDeadline:       1500,

		CacheCapacity: 4096,
		CacheTTLSec:   600,

		TrustWeights: TrustWeights{
			Hallucination: 0.35,
			Consensus:     0.30,
			Explanation:   0.20,
			History:       0.15,
		},
		BandThresholds: BandThresholds{
			Reject: 0.50,
			Flag:   0.75,
		},

		CountTimeoutVerdicts: false,

		Commitment: CommitmentParams{
			HashAlgo:   "sha256",
			NonceBytes: 16,
			Chain:      false,
		},

		RulesetVersion: "v1",

		BackpressureLimit:     128,
		TopKFeatures:          10,
		MinDetectorConfidence: 0.3,
		MagnitudeWindowOrders: 3,
		StatisticWindowTokens: 12,
	}
}

// Load reads configuration from environment variables, starting from
// Default() and overriding only the variables that are explicitly set.
// Mirrors the teacher's env-var convention: fixed, documented names, no
// implicit aliases.
func Load() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("TRUSTWRAPPER_MIN_VALIDATORS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_MIN_VALIDATORS: %w", err)
		}
		cfg.MinValidators = uint32(n)
	}
	if v := os.Getenv("TRUSTWRAPPER_PER_VALIDATOR_DEADLINE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_PER_VALIDATOR_DEADLINE_MS: %w", err)
		}
		cfg.PerValidatorDeadline = n
	}
	if v := os.Getenv("TRUSTWRAPPER_POOL_DEADLINE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_POOL_DEADLINE_MS: %w", err)
		}
		cfg.PoolDeadline = n
	}
	if v := os.Getenv("TRUSTWRAPPER_GLOBAL_DEADLINE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_GLOBAL_DEADLINE_MS: %w", err)
		}
		cfg.GlobalDeadline = n
	}
	if v := os.Getenv("TRUSTWRAPPER_CACHE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_CACHE_CAPACITY: %w", err)
		}
		cfg.CacheCapacity = n
	}
	if v := os.Getenv("TRUSTWRAPPER_CACHE_TTL_S"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_CACHE_TTL_S: %w", err)
		}
		cfg.CacheTTLSec = n
	}
	if v := os.Getenv("TRUSTWRAPPER_COUNT_TIMEOUT_VERDICTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_COUNT_TIMEOUT_VERDICTS: %w", err)
		}
		cfg.CountTimeoutVerdicts = b
	}
	if v := os.Getenv("TRUSTWRAPPER_BACKPRESSURE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTWRAPPER_BACKPRESSURE_LIMIT: %w", err)
		}
		cfg.BackpressureLimit = n
	}
	if v := os.Getenv("TRUSTWRAPPER_RULESET_VERSION"); v != "" {
		cfg.RulesetVersion = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML loads a versioned ruleset bundle from a YAML file, starting from
// Default() and overriding only the keys present in the file. The detector
// rule thresholds, trust weights, and band thresholds travel together as one
// file so that bumping any of them is a single, reviewable ruleset version
// change.
func LoadYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse ruleset file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.MinValidators == 0 {
		return fmt.Errorf("min_validators must be > 0")
	}
	if c.PerValidatorDeadline <= 0 || c.PoolDeadline <= 0 || c.GlobalDeadline <= 0 {
		return fmt.Errorf("all deadlines must be > 0")
	}
	if c.PoolDeadline < c.PerValidatorDeadline {
		return fmt.Errorf("pool_deadline_ms (%d) must be >= per_validator_deadline_ms (%d)", c.PoolDeadline, c.PerValidatorDeadline)
	}
	if c.GlobalDeadline < c.PoolDeadline {
		return fmt.Errorf("global_deadline_ms (%d) must be >= pool_deadline_ms (%d)", c.GlobalDeadline, c.PoolDeadline)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be > 0")
	}
	if c.BandThresholds.Reject < 0 || c.BandThresholds.Reject > 1 ||
		c.BandThresholds.Flag < 0 || c.BandThresholds.Flag > 1 {
		return fmt.Errorf("band thresholds must be in [0,1]")
	}
	if c.BandThresholds.Reject >= c.BandThresholds.Flag {
		return fmt.Errorf("band_thresholds.reject (%.2f) must be < band_thresholds.flag (%.2f)", c.BandThresholds.Reject, c.BandThresholds.Flag)
	}
	sum := c.TrustWeights.Hallucination + c.TrustWeights.Consensus + c.TrustWeights.Explanation + c.TrustWeights.History
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("trust_weights must sum to 1.0, got %.4f", sum)
	}
	if c.Commitment.NonceBytes <= 0 {
		return fmt.Errorf("commitment.nonce_bytes must be > 0")
	}
	if c.RulesetVersion == "" {
		return fmt.Errorf("ruleset_version must be set")
	}
	return nil
}
