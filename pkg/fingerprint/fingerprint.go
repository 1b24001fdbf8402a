// Copyright 2025 TrustWrapper Authors
//
// Package fingerprint computes the deterministic identity of a request
// (C1) used for cache admission and dedup, and the response digest bound
// into the sealed commitment.
package fingerprint

import (
	"sort"

	"github.com/lamassu-labs/trustwrapper-core/pkg/commitment"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// contextEntry is one Request.Context entry, sorted into a stable (key, value) pair for
// canonicalization; Request.Context is a map and map iteration order is not
// stable, so it cannot be hashed directly.
type contextEntry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// requestIdentity is the canonical form hashed into a Request fingerprint.
// It deliberately excludes Request.ID and Request.IssuedAt: two requests
// with identical model, prompt, and context are the same request for
// dedup purposes regardless of when they were issued or what ID the caller
// assigned them.
type requestIdentity struct {
	ModelID        string         `json:"model_id"`
	Prompt         []byte         `json:"prompt"`
	Context        []contextEntry `json:"context"`
	RulesetVersion string         `json:"ruleset_version"`
	ValidatorSetID string         `json:"validator_set_id"`
}

// Compute returns the deterministic fingerprint for req under the given
// ruleset version and validator set. Changing either the ruleset (detector
// thresholds, trust weights) or the validator set changes what a fresh
// verification would produce, so both are part of the fingerprint's
// identity, not just the raw request content.
func Compute(req model.Request, rulesetVersion, validatorSetID string) ([32]byte, error) {
	entries := make([]contextEntry, 0, len(req.Context))
	for k, v := range req.Context {
		entries = append(entries, contextEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	id := requestIdentity{
		ModelID:        req.ModelID,
		Prompt:         req.Prompt,
		Context:        entries,
		RulesetVersion: rulesetVersion,
		ValidatorSetID: validatorSetID,
	}
	return commitment.HashCanonical(id)
}

// responseIdentity is the canonical form hashed into a response digest.
type responseIdentity struct {
	Text       string      `json:"text"`
	TokenSpans []model.Span `json:"token_spans"`
}

// ResponseDigest returns the deterministic digest of a Response's text and
// token spans, independent of Aux (which may carry provider-specific,
// non-reproducible metadata).
func ResponseDigest(resp model.Response) ([32]byte, error) {
	id := responseIdentity{Text: resp.Text, TokenSpans: resp.TokenSpans}
	return commitment.HashCanonical(id)
}
