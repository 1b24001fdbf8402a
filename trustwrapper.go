// Copyright 2025 TrustWrapper Authors
//
// Package trustwrapper is the public entry point: it wires the ruleset,
// core context, and pipeline stages into an Orchestrator and exposes the
// single Verify operation host applications call. The individual stages
// (pkg/hallucination, pkg/validatorpool, pkg/consensus, pkg/explain,
// pkg/commitment, pkg/trust) are importable directly for callers that want
// to assemble a custom pipeline instead.
package trustwrapper

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lamassu-labs/trustwrapper-core/pkg/commitment"
	"github.com/lamassu-labs/trustwrapper-core/pkg/corectx"
	"github.com/lamassu-labs/trustwrapper-core/pkg/explain"
	"github.com/lamassu-labs/trustwrapper-core/pkg/hallucination"
	"github.com/lamassu-labs/trustwrapper-core/pkg/history"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
	"github.com/lamassu-labs/trustwrapper-core/pkg/orchestrator"
	"github.com/lamassu-labs/trustwrapper-core/pkg/ruleset"
	"github.com/lamassu-labs/trustwrapper-core/pkg/validatorpool"
)

// Re-exported collaborator interfaces and core types, so a caller only
// needs this one package import to implement a custom Validator, rule, or
// sink and call Verify.
type (
	Request          = model.Request
	Response         = model.Response
	Span             = model.Span
	Claim            = model.Claim
	VerificationRecord = model.VerificationRecord

	Validator  = validatorpool.Validator
	DetectorRule = hallucination.Rule
	FactSource = hallucination.FactSource
	Explainer  = explain.Explainer
	CommitmentSink = commitment.Sink

	Config = ruleset.Config
)

// ResponseProducer invokes the wrapped model.
type ResponseProducer = orchestrator.ResponseProducer

// Deps bundles everything Verify needs beyond the request/response itself.
// Validators, Explainers, and Sources may all be empty. Sink and History
// may be nil, in which case commitments are always LocalOnly and history
// falls back to an in-process store.
type Deps struct {
	Config         *ruleset.Config
	Validators     []Validator
	Explainers     []Explainer
	Sources        []FactSource
	Sink           CommitmentSink
	History        history.Store
	ValidatorSetID string
	Registerer     prometheus.Registerer
}

// TrustWrapper is a constructed pipeline, ready to Verify requests.
type TrustWrapper struct {
	core *corectx.Context
	orch *orchestrator.Orchestrator
}

// New builds a TrustWrapper from deps. If deps.Config is nil, ruleset.Load
// is used (environment-variable configuration). Registerer may be nil to
// skip Prometheus registration, which test callers typically want.
func New(deps Deps) (*TrustWrapper, error) {
	cfg := deps.Config
	if cfg == nil {
		var err error
		cfg, err = ruleset.Load()
		if err != nil {
			return nil, err
		}
	}

	core, err := corectx.New(deps.Registerer)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(cfg, core, deps.Validators, deps.Explainers, deps.Sources, deps.Sink, deps.History, deps.ValidatorSetID)
	if err != nil {
		return nil, err
	}

	return &TrustWrapper{core: core, orch: orch}, nil
}

// Verify runs the full verification pipeline for req, invoking produce at
// most once per distinct (model, prompt, context, ruleset, validator set)
// fingerprint.
func (t *TrustWrapper) Verify(ctx context.Context, req model.Request, produce ResponseProducer) (model.VerificationRecord, error) {
	return t.orch.Verify(ctx, req, produce)
}
