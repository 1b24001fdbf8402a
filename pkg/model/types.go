// Copyright 2025 TrustWrapper Authors
//
// Package model defines the shared data-model entities that flow through the
// verification pipeline: Request, Response, Claim, HallucinationEvidence,
// ValidatorVerdict, ConsensusResult, ExplanationRecord, TrustScore,
// Commitment, and the VerificationRecord that owns all of them.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Request is the immutable unit of admission into the pipeline.
type Request struct {
	ID        uuid.UUID         `json:"id"`
	ModelID   string            `json:"model_id"`
	Prompt    []byte            `json:"prompt"`
	Context   map[string][]byte `json:"context"`
	IssuedAt  time.Time         `json:"issued_at"`
}

// Span identifies a byte range within Response.Text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Response is produced by the wrapped model for a Request.
type Response struct {
	Text       string            `json:"text"`
	TokenSpans []Span            `json:"token_spans"`
	Aux        map[string][]byte `json:"aux"`
}

// ClaimKind categorizes an extracted Claim.
type ClaimKind string

const (
	ClaimCitation  ClaimKind = "Citation"
	ClaimStatistic ClaimKind = "Statistic"
	ClaimTemporal  ClaimKind = "Temporal"
	ClaimEntity    ClaimKind = "Entity"
	ClaimOther     ClaimKind = "Other"
)

// ClaimID identifies a Claim within a single Response's claim list by its
// position of extraction; stable for the lifetime of a single verification.
type ClaimID int

// Claim is a self-contained assertion extracted deterministically from a
// Response by the introspection stage (C2).
type Claim struct {
	ID         ClaimID   `json:"id"`
	Kind       ClaimKind `json:"kind"`
	Span       Span      `json:"span"`
	Normalized []byte    `json:"normalized"`
}

// HallucinationLevel is the five-level severity taxonomy; higher is worse.
type HallucinationLevel int

const (
	LevelFactualError         HallucinationLevel = 1
	LevelPlausibleFabrication HallucinationLevel = 2
	LevelPartialTruth         HallucinationLevel = 3
	LevelContextualError      HallucinationLevel = 4
	LevelConfidentFabrication HallucinationLevel = 5
)

// HallucinationKind names the rule family that produced a level of evidence.
type HallucinationKind string

const (
	KindFactualError         HallucinationKind = "FactualError"
	KindPlausibleFabrication HallucinationKind = "PlausibleFabrication"
	KindPartialTruth         HallucinationKind = "PartialTruth"
	KindContextualError      HallucinationKind = "ContextualError"
	KindConfidentFabrication HallucinationKind = "ConfidentFabrication"
)

// HallucinationEvidence is a detector's structured finding about a Claim.
type HallucinationEvidence struct {
	Level      HallucinationLevel `json:"level"`
	Kind       HallucinationKind  `json:"kind"`
	ClaimRef   ClaimID            `json:"claim_ref"`
	Confidence float64            `json:"confidence"`
	DetectorID string             `json:"detector_id"`
	Note       string             `json:"note"`
}

// ValidatorStatus records the outcome of a single validator's run.
type ValidatorStatus string

const (
	ValidatorOk      ValidatorStatus = "Ok"
	ValidatorTimeout ValidatorStatus = "Timeout"
	ValidatorError   ValidatorStatus = "Error"
)

// ValidatorVerdict is the result of one validator's independent check.
type ValidatorVerdict struct {
	ValidatorID string          `json:"validator_id"`
	Passed      bool            `json:"passed"`
	Confidence  float64         `json:"confidence"`
	Issues      []string        `json:"issues,omitempty"`
	ElapsedUs   uint64          `json:"elapsed_us"`
	Status      ValidatorStatus `json:"status"`
	ErrorKind   string          `json:"error_kind,omitempty"`
}

// ConsensusResult is the Consensus Engine's (C5) aggregation output.
type ConsensusResult struct {
	Score             float64 `json:"score"`
	WeightedPassRatio float64 `json:"weighted_pass_ratio"`
	UnanimityBonus    float64 `json:"unanimity_bonus"`
	NValidators       uint32  `json:"n_validators"`
	QuorumMet         bool    `json:"quorum_met"`
}

// FeatureWeight is a single (feature_id, weight) pair within an ExplanationRecord.
type FeatureWeight struct {
	FeatureID string  `json:"feature_id"`
	Weight    float64 `json:"weight"`
}

// ExplanationRecord is the Explainability Aggregator's (C6) normalized output.
type ExplanationRecord struct {
	MethodIDs    []string        `json:"method_ids"`
	TopFeatures  []FeatureWeight `json:"top_features"`
	Fidelity     float64         `json:"fidelity"`
	Stability    float64         `json:"stability"`
	Confidence   float64         `json:"confidence"`
	SingleMethod bool            `json:"single_method"`
}

// TrustBand is the coarse verdict derived from the numeric trust score.
type TrustBand string

const (
	BandReject TrustBand = "Reject"
	BandFlag   TrustBand = "Flag"
	BandAccept TrustBand = "Accept"
)

// TrustComponents breaks the composed trust score down by contributing term.
type TrustComponents struct {
	HallucinationPenalty float64 `json:"hallucination_penalty"`
	Consensus            float64 `json:"consensus"`
	Explanation          float64 `json:"explanation"`
	History              float64 `json:"history"`
}

// TrustScore is the Trust Score Composer's (C7) final verdict.
type TrustScore struct {
	Value      float64         `json:"value"`
	Band       TrustBand       `json:"band"`
	Components TrustComponents `json:"components"`
}

// SinkStatus reports whether the Commitment was handed off to the external
// CommitmentSink or only sealed locally after exhausting retries.
type SinkStatus string

const (
	SinkSealed    SinkStatus = "Sealed"
	SinkLocalOnly SinkStatus = "LocalOnly"
)

// Commitment binds a VerificationRecord to a moment in time.
type Commitment struct {
	RecordHash [32]byte   `json:"record_hash"`
	Nonce      [16]byte   `json:"nonce"`
	Timestamp  uint64     `json:"timestamp"`
	PrevHash   *[32]byte  `json:"prev_hash,omitempty"`
	SinkStatus SinkStatus `json:"sink_status"`
}

// VerificationRecord is the immutable output of the pipeline.
type VerificationRecord struct {
	RequestID      uuid.UUID               `json:"request_id"`
	Fingerprint    [32]byte                `json:"fingerprint"`
	ResponseDigest [32]byte                `json:"response_digest"`
	RulesetVersion string                  `json:"ruleset_version"`
	Hallucinations []HallucinationEvidence `json:"hallucinations"`
	Validators     []ValidatorVerdict      `json:"validators"`
	Consensus      ConsensusResult         `json:"consensus"`
	Explanation    *ExplanationRecord      `json:"explanation,omitempty"`
	Trust          TrustScore              `json:"trust"`
	Commitment     Commitment              `json:"commitment"`
	CreatedAt      uint64                  `json:"created_at"`
}

// HistorySnapshot is the input to the Trust Score Composer's history_term —
// a rolling per-model success rate, persisted across process restarts.
type HistorySnapshot struct {
	ModelID     string    `json:"model_id"`
	SuccessRate float64   `json:"success_rate"`
	SampleSize  uint64    `json:"sample_size"`
	UpdatedAt   time.Time `json:"updated_at"`
}
