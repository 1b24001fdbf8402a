// Copyright 2025 TrustWrapper Authors
//
// Package hallucination implements the Hallucination Detector (C3): a set
// of independent rules, each responsible for one level of the five-level
// severity taxonomy, run over the claims the introspection stage (C2)
// extracted.
package hallucination

import (
	"context"
	"sort"

	twerrors "github.com/lamassu-labs/trustwrapper-core/pkg/errors"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// FactSource is an external knowledge source a rule may consult to check
// whether a claim is supported. Implementations are supplied by the host
// application; the core ships none, matching the external-interfaces
// contract that fact lookup is a pluggable boundary, not a built-in.
type FactSource interface {
	// Lookup reports whether claim could be matched against the source and,
	// if so, whether the source supports or contradicts it.
	Lookup(ctx context.Context, claim model.Claim, resp model.Response) (found bool, supported bool, err error)
}

// Rule detects evidence for exactly one HallucinationKind. Rules are pure
// functions of the claim set and available sources; they never mutate
// shared state and must be safe to run concurrently with other rules.
type Rule interface {
	ID() string
	Kind() model.HallucinationKind
	Detect(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error)
}

// Detector runs a fixed set of rules and merges their findings.
type Detector struct {
	rules           []Rule
	minConfidence   float64
}

// New builds a Detector from rules, dropping any evidence below
// minConfidence (the ruleset's min_detector_confidence).
func New(rules []Rule, minConfidence float64) *Detector {
	return &Detector{rules: rules, minConfidence: minConfidence}
}

// Default returns a Detector wired with the five built-in rule families,
// one per severity level.
func Default(minConfidence float64) *Detector {
	return New([]Rule{
		factualErrorRule{},
		plausibleFabricationRule{},
		partialTruthRule{},
		contextualErrorRule{},
		confidentFabricationRule{},
	}, minConfidence)
}

// Run executes every rule over claims and returns the merged, confidence-
// filtered, deterministically sorted evidence list. If every rule fails
// (returns an error) rather than simply finding nothing, Run returns a
// DetectorUnavailable error: a rule finding zero evidence is a valid
// result, a rule that could not run at all is not.
func (d *Detector) Run(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error) {
	var evidence []model.HallucinationEvidence
	ran := 0

	for _, r := range d.rules {
		found, err := r.Detect(ctx, req, resp, claims, sources)
		if err != nil {
			continue
		}
		ran++
		for _, e := range found {
			if e.Confidence < d.minConfidence {
				continue
			}
			evidence = append(evidence, e)
		}
	}

	if ran == 0 && len(d.rules) > 0 {
		return nil, twerrors.New(twerrors.KindDetectorUnavailable, "no hallucination detector rule completed successfully")
	}

	spanStart := make(map[model.ClaimID]int, len(claims))
	for _, c := range claims {
		spanStart[c.ID] = c.Span.Start
	}

	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Level != evidence[j].Level {
			return evidence[i].Level > evidence[j].Level
		}
		si, sj := spanStart[evidence[i].ClaimRef], spanStart[evidence[j].ClaimRef]
		if si != sj {
			return si < sj
		}
		return evidence[i].DetectorID < evidence[j].DetectorID
	})

	return evidence, nil
}
