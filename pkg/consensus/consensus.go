// Copyright 2025 TrustWrapper Authors
//
// Package consensus aggregates independent ValidatorVerdicts into a single
// ConsensusResult (C5): a confidence-weighted pass ratio, a bonus for
// unanimous agreement, and a quorum check against the ruleset's minimum
// validator count.
package consensus

import (
	"math"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// unanimityBonus is added to the weighted pass ratio when every usable
// validator (Status Ok) passed. It rewards agreement beyond what the
// weighted ratio alone captures, mirroring the extra confidence a fully
// unanimous validator set earns over a narrow majority with the same
// average confidence. Unanimous failure earns no such bonus: agreeing that
// a response is bad is not the signal this rewards.
const unanimityBonus = 0.1

// Aggregate computes a ConsensusResult from verdicts against minValidators,
// the ruleset's configured quorum. Verdicts with Status other than Ok are
// excluded from the weighted ratio (they carry no usable confidence) but
// still count toward NValidators so callers can see how many validators
// were dispatched, not just how many produced a usable result. Quorum
// additionally requires a majority of all dispatched validators to have
// actually passed; when quorum is not met, Score is forced to 0 rather than
// carrying a weighted value that has no defined meaning without quorum.
func Aggregate(verdicts []model.ValidatorVerdict, minValidators uint32) model.ConsensusResult {
	result := model.ConsensusResult{NValidators: uint32(len(verdicts))}

	var weightSum, passWeightSum float64
	usable, passed := 0, 0
	allPass := true
	for _, v := range verdicts {
		if v.Status != model.ValidatorOk {
			continue
		}
		usable++
		w := v.Confidence
		if w <= 0 {
			w = 0.01 // a zero-confidence Ok verdict still counts as a data point, not a void
		}
		weightSum += w
		if v.Passed {
			passWeightSum += w
			passed++
		} else {
			allPass = false
		}
	}

	if weightSum > 0 {
		result.WeightedPassRatio = passWeightSum / weightSum
	}

	if usable > 0 && allPass && usable >= int(minValidators) {
		result.UnanimityBonus = unanimityBonus
	}

	majority := uint32(math.Ceil(float64(result.NValidators) / 2))
	result.QuorumMet = uint32(usable) >= minValidators && uint32(passed) >= majority

	if !result.QuorumMet {
		result.Score = 0
		return result
	}

	result.Score = result.WeightedPassRatio + result.UnanimityBonus
	if result.Score > 1 {
		result.Score = 1
	}

	return result
}
