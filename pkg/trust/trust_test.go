package trust

import (
	"math"
	"testing"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
	"github.com/lamassu-labs/trustwrapper-core/pkg/ruleset"
)

func defaultWeightsBands() (ruleset.TrustWeights, ruleset.BandThresholds) {
	cfg := ruleset.Default()
	return cfg.TrustWeights, cfg.BandThresholds
}

func TestComposeValueBounded(t *testing.T) {
	weights, bands := defaultWeightsBands()
	consensusResult := model.ConsensusResult{Score: 1, QuorumMet: true}
	score := Compose(weights, bands, nil, consensusResult, nil, model.HistorySnapshot{})
	if score.Value < 0 || score.Value > 1 {
		t.Errorf("expected value in [0,1], got %v", score.Value)
	}
}

func TestComposeCleanResponseAccepted(t *testing.T) {
	weights, bands := defaultWeightsBands()
	consensusResult := model.ConsensusResult{Score: 1, QuorumMet: true}
	history := model.HistorySnapshot{ModelID: "m", SuccessRate: 0.95, SampleSize: 100}
	explanation := &model.ExplanationRecord{Confidence: 0.9, Stability: 0.9}

	score := Compose(weights, bands, nil, consensusResult, explanation, history)
	if score.Band != model.BandAccept {
		t.Errorf("expected Accept band for a clean response, got %v", score.Band)
	}
}

func TestComposeConfidentFabricationRejected(t *testing.T) {
	weights, bands := defaultWeightsBands()
	consensusResult := model.ConsensusResult{Score: 1, QuorumMet: true}
	// Several compounding confident-fabrication findings drive the summed
	// penalty toward its ceiling, dragging even a perfect consensus score
	// below the reject threshold.
	evidence := []model.HallucinationEvidence{
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
	}

	score := Compose(weights, bands, evidence, consensusResult, nil, model.HistorySnapshot{})
	if score.Band != model.BandReject {
		t.Errorf("expected Reject band for compounding confident fabrications, got %v (%v)", score.Band, score.Value)
	}
}

func TestComposeSafetyOverrideForcesReject(t *testing.T) {
	weights, bands := defaultWeightsBands()
	// A failed quorum combined with hallucination findings serious enough to
	// clear the penalty cutoff must reject even though the raw weighted
	// value (about 0.82 here) would otherwise land in the Accept band.
	consensusResult := model.ConsensusResult{Score: 0.9, QuorumMet: false}
	evidence := []model.HallucinationEvidence{
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
		{Level: model.LevelConfidentFabrication, Confidence: 1.0},
	}
	history := model.HistorySnapshot{ModelID: "m", SuccessRate: 0.99, SampleSize: 1000}
	explanation := &model.ExplanationRecord{Confidence: 0.95, Stability: 0.95}

	score := Compose(weights, bands, evidence, consensusResult, explanation, history)
	if score.Band != model.BandReject {
		t.Errorf("expected safety override to force Reject, got %v (value %v)", score.Band, score.Value)
	}
}

func TestComposeNoHistoryDefaultsNeutral(t *testing.T) {
	weights, bands := defaultWeightsBands()
	consensusResult := model.ConsensusResult{Score: 0.8, QuorumMet: true}
	score := Compose(weights, bands, nil, consensusResult, nil, model.HistorySnapshot{})
	if score.Components.History != 0.5 {
		t.Errorf("expected neutral 0.5 history term with no samples, got %v", score.Components.History)
	}
}

func TestHallucinationPenaltySumsAllEvidence(t *testing.T) {
	evidence := []model.HallucinationEvidence{
		{Level: model.LevelFactualError, Confidence: 0.9},
		{Level: model.LevelConfidentFabrication, Confidence: 0.5},
	}
	penalty := hallucinationPenalty(evidence)
	expected := (1.0/5.0)*0.9*hallucinationPenaltyPerItemWeight + (5.0/5.0)*0.5*hallucinationPenaltyPerItemWeight
	if math.Abs(penalty-expected) > 1e-9 {
		t.Errorf("expected summed penalty %v, got %v", expected, penalty)
	}
}

func TestHallucinationPenaltyClippedToOne(t *testing.T) {
	evidence := make([]model.HallucinationEvidence, 10)
	for i := range evidence {
		evidence[i] = model.HallucinationEvidence{Level: model.LevelConfidentFabrication, Confidence: 1.0}
	}
	penalty := hallucinationPenalty(evidence)
	if penalty != 1 {
		t.Errorf("expected penalty clipped to 1, got %v", penalty)
	}
}
