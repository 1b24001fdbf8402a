// Copyright 2025 TrustWrapper Authors
//
// Package explain aggregates per-method feature attributions into a single
// ExplanationRecord (C6): weights are merged across methods, L1-normalized,
// truncated to the top K features, and scored for cross-method stability
// and fidelity. Explanation is optional — callers with zero Explainers
// simply get no ExplanationRecord, not an error.
package explain

import (
	"context"
	"math"
	"sort"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// Explainer produces one method's feature attribution for a Response,
// alongside its own fidelity (how well the attribution reconstructs the
// response) and confidence (the method's self-reported certainty in that
// attribution).
type Explainer interface {
	ID() string
	Explain(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim) (weights []model.FeatureWeight, fidelity float64, confidence float64, err error)
}

// Aggregate runs every explainer, merges their attributions, and returns
// the normalized ExplanationRecord. A nil result with no error means every
// explainer failed or none were configured; the orchestrator treats this
// as "explanation unavailable," which is an optional pipeline stage, not a
// pipeline failure.
func Aggregate(ctx context.Context, explainers []Explainer, req model.Request, resp model.Response, claims []model.Claim, topK int) (*model.ExplanationRecord, error) {
	if len(explainers) == 0 {
		return nil, nil
	}

	type methodResult = struct {
		id         string
		weights    map[string]float64
		fidelity   float64
		confidence float64
	}

	var results []methodResult
	for _, e := range explainers {
		weights, fidelity, confidence, err := e.Explain(ctx, req, resp, claims)
		if err != nil {
			continue
		}
		wm := make(map[string]float64, len(weights))
		for _, w := range weights {
			wm[w.FeatureID] += w.Weight
		}
		results = append(results, methodResult{id: e.ID(), weights: wm, fidelity: fidelity, confidence: confidence})
	}

	if len(results) == 0 {
		return nil, nil
	}

	merged := make(map[string]float64)
	var fidelitySum float64
	methodIDs := make([]string, 0, len(results))
	for _, r := range results {
		methodIDs = append(methodIDs, r.id)
		fidelitySum += r.fidelity
		for feature, w := range r.weights {
			merged[feature] += w / float64(len(results))
		}
	}

	normalized := l1Normalize(merged)
	top := topKFeatures(normalized, topK)

	record := &model.ExplanationRecord{
		MethodIDs:    methodIDs,
		TopFeatures:  top,
		Fidelity:     fidelitySum / float64(len(results)),
		SingleMethod: len(results) == 1,
	}

	if record.SingleMethod {
		// A lone method's stability cannot be measured by agreement with
		// itself; down-weight it instead of reporting a misleading perfect
		// stability score. The confidence formula below then naturally
		// pulls the single method's own confidence down too.
		record.Stability = 0.5
	} else {
		record.Stability = pairwiseCosineStability(results)
	}

	minConfidence := results[0].confidence
	for _, r := range results[1:] {
		if r.confidence < minConfidence {
			minConfidence = r.confidence
		}
	}
	record.Confidence = minConfidence * math.Sqrt(record.Stability)

	return record, nil
}

func l1Normalize(weights map[string]float64) map[string]float64 {
	var sum float64
	for _, w := range weights {
		sum += math.Abs(w)
	}
	if sum == 0 {
		return weights
	}
	out := make(map[string]float64, len(weights))
	for k, w := range weights {
		out[k] = w / sum
	}
	return out
}

func topKFeatures(weights map[string]float64, k int) []model.FeatureWeight {
	out := make([]model.FeatureWeight, 0, len(weights))
	for id, w := range weights {
		out = append(out, model.FeatureWeight{FeatureID: id, Weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if math.Abs(out[i].Weight) != math.Abs(out[j].Weight) {
			return math.Abs(out[i].Weight) > math.Abs(out[j].Weight)
		}
		return out[i].FeatureID < out[j].FeatureID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// pairwiseCosineStability scores how consistently the methods ranked
// features by averaging cosine similarity over every pair of per-method
// weight vectors, restricted to features at least one of the pair scored.
func pairwiseCosineStability(results []struct {
	id         string
	weights    map[string]float64
	fidelity   float64
	confidence float64
}) float64 {
	if len(results) < 2 {
		return 1
	}

	var total float64
	pairs := 0
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			total += cosineSimilarity(results[i].weights, results[j].weights)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for k, av := range a {
		dot += av * b[k]
		normA += av * av
	}
	for _, bv := range b {
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
