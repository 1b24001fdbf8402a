// Copyright 2025 TrustWrapper Authors
//
// Package trust composes the Trust Score Composer's (C7) final verdict
// from the outputs of the other three subsystems plus rolling per-model
// history: a single weighted score in [0,1] and the coarse Reject/Flag/
// Accept band it falls into.
package trust

import (
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
	"github.com/lamassu-labs/trustwrapper-core/pkg/ruleset"
)

// hallucinationPenaltyCutoff is the penalty level above which a failed
// quorum forces a Reject regardless of the weighted score, per the safety
// override: consensus that could not even reach quorum is not allowed to
// offset a serious hallucination finding just because nothing else
// dragged the number down.
const hallucinationPenaltyCutoff = 0.3

// Compose derives a TrustScore from the pipeline's other outputs.
// hallucinations is the full evidence list (already confidence-filtered by
// the detector); history may be the zero value when no prior record exists
// for this model, in which case the history term defaults to a neutral 0.5.
func Compose(weights ruleset.TrustWeights, bands ruleset.BandThresholds, hallucinations []model.HallucinationEvidence, consensusResult model.ConsensusResult, explanation *model.ExplanationRecord, history model.HistorySnapshot) model.TrustScore {
	penalty := hallucinationPenalty(hallucinations)

	explanationTerm := 0.5
	if explanation != nil {
		explanationTerm = explanation.Stability
	}

	historyTerm := 0.5
	if history.SampleSize > 0 {
		historyTerm = history.SuccessRate
	}

	components := model.TrustComponents{
		HallucinationPenalty: penalty,
		Consensus:            consensusResult.Score,
		Explanation:          explanationTerm,
		History:              historyTerm,
	}

	value := weights.Hallucination*(1-penalty) +
		weights.Consensus*consensusResult.Score +
		weights.Explanation*explanationTerm +
		weights.History*historyTerm

	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	band := bandFor(value, bands)

	// Safety override: a hallucination finding serious enough to clear the
	// penalty cutoff, combined with a validator pool that never reached
	// quorum, cannot be masked by high explanation or history terms.
	if !consensusResult.QuorumMet && penalty > hallucinationPenaltyCutoff {
		band = model.BandReject
	}

	return model.TrustScore{Value: value, Band: band, Components: components}
}

func bandFor(value float64, bands ruleset.BandThresholds) model.TrustBand {
	switch {
	case value < bands.Reject:
		return model.BandReject
	case value < bands.Flag:
		return model.BandFlag
	default:
		return model.BandAccept
	}
}

// hallucinationPenaltyPerItemWeight scales each piece of evidence's
// contribution to the summed penalty.
const hallucinationPenaltyPerItemWeight = 0.2

// hallucinationPenalty sums a per-item penalty over every piece of evidence
// — (level/5)*confidence*0.2 each — so multiple simultaneous findings
// compound instead of only the single worst one counting, then clips the
// total to [0,1].
func hallucinationPenalty(evidence []model.HallucinationEvidence) float64 {
	var sum float64
	for _, e := range evidence {
		sum += (float64(e.Level) / 5.0) * e.Confidence * hallucinationPenaltyPerItemWeight
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}
