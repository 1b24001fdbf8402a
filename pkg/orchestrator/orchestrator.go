// Copyright 2025 TrustWrapper Authors
//
// Package orchestrator implements the Verification Orchestrator (C9): the
// state machine that admits a Request, fans the Response out to the
// Hallucination Detector and Validator Pool concurrently, aggregates
// consensus, composes the trust score, seals the commitment, and returns
// the finished VerificationRecord — all under a single global deadline and
// a bounded number of concurrent in-flight verifications.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lamassu-labs/trustwrapper-core/pkg/commitment"
	"github.com/lamassu-labs/trustwrapper-core/pkg/consensus"
	"github.com/lamassu-labs/trustwrapper-core/pkg/corectx"
	twerrors "github.com/lamassu-labs/trustwrapper-core/pkg/errors"
	"github.com/lamassu-labs/trustwrapper-core/pkg/explain"
	"github.com/lamassu-labs/trustwrapper-core/pkg/fingerprint"
	"github.com/lamassu-labs/trustwrapper-core/pkg/hallucination"
	"github.com/lamassu-labs/trustwrapper-core/pkg/history"
	"github.com/lamassu-labs/trustwrapper-core/pkg/introspect"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
	"github.com/lamassu-labs/trustwrapper-core/pkg/ruleset"
	"github.com/lamassu-labs/trustwrapper-core/pkg/trust"
	"github.com/lamassu-labs/trustwrapper-core/pkg/validatorpool"
)

// ResponseProducer invokes the wrapped model. It is supplied by the host
// application; the orchestrator never generates a response itself.
type ResponseProducer func(ctx context.Context, req model.Request) (model.Response, error)

// Orchestrator wires the pipeline's stages together under the admission,
// deadline, and cancellation policy described in the package doc.
type Orchestrator struct {
	cfg      *ruleset.Config
	core     *corectx.Context
	cache    *fingerprint.Cache
	detector *hallucination.Detector
	pool     *validatorpool.Pool
	explainers []explain.Explainer
	sources    []hallucination.FactSource
	sink     commitment.Sink
	historyStore history.Store

	validatorSetID string

	sem chan struct{}

	mu       sync.Mutex
	lastHash map[string][32]byte // model_id -> previous record hash, for optional chaining
}

// New builds an Orchestrator. validators and explainers may be empty;
// explainers being empty simply means no ExplanationRecord is produced.
// sink may be nil, in which case every commitment is immediately LocalOnly.
// historyStore may be nil, in which case history.NewMemoryStore is used.
func New(cfg *ruleset.Config, core *corectx.Context, validators []validatorpool.Validator, explainers []explain.Explainer, sources []hallucination.FactSource, sink commitment.Sink, historyStore history.Store, validatorSetID string) (*Orchestrator, error) {
	pool, err := validatorpool.New(
		validators,
		time.Duration(cfg.PerValidatorDeadline)*time.Millisecond,
		time.Duration(cfg.PoolDeadline)*time.Millisecond,
		cfg.CountTimeoutVerdicts,
		func() { core.Metrics.ValidatorTimeoutsTotal.Inc() },
	)
	if err != nil {
		return nil, err
	}

	if historyStore == nil {
		historyStore = history.NewMemoryStore(core.Clock)
	}

	return &Orchestrator{
		cfg:            cfg,
		core:           core,
		cache:          fingerprint.NewCache(cfg.CacheCapacity, time.Duration(cfg.CacheTTLSec)*time.Second, core.Clock),
		detector:       hallucination.Default(cfg.MinDetectorConfidence),
		pool:           pool,
		explainers:     explainers,
		sources:        sources,
		sink:           sink,
		historyStore:   historyStore,
		validatorSetID: validatorSetID,
		sem:            make(chan struct{}, cfg.BackpressureLimit),
		lastHash:       make(map[string][32]byte),
	}, nil
}

// Verify runs the full pipeline for req, calling produce exactly once
// unless the request's fingerprint is already cached or in flight.
func (o *Orchestrator) Verify(ctx context.Context, req model.Request, produce ResponseProducer) (model.VerificationRecord, error) {
	select {
	case o.sem <- struct{}{}:
	default:
		return model.VerificationRecord{}, twerrors.New(twerrors.KindBackpressure, "verification pool at capacity")
	}
	defer func() { <-o.sem }()

	start := o.core.Clock.Now()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.GlobalDeadline)*time.Millisecond)
	defer cancel()

	fp, err := fingerprint.Compute(req, o.cfg.RulesetVersion, o.validatorSetID)
	if err != nil {
		return model.VerificationRecord{}, twerrors.Wrap(err, twerrors.KindInvalidInput, "compute request fingerprint")
	}

	switch o.cache.Admit(fp) {
	case fingerprint.Hit:
		if rec, ok := o.cache.Lookup(fp); ok {
			o.core.Metrics.CacheHitsTotal.Inc()
			return rec, nil
		}
	case fingerprint.Join:
		rec, ok := o.cache.Wait(ctx, fp)
		if ok {
			o.core.Metrics.CacheHitsTotal.Inc()
			return rec, nil
		}
		return model.VerificationRecord{}, twerrors.Timeout(twerrors.ScopeGlobal, "timed out waiting on in-flight verification")
	}
	o.core.Metrics.CacheMissesTotal.Inc()

	record, err := o.runPipeline(ctx, req, fp, produce)
	if err != nil {
		o.cache.Abort(fp)
		return model.VerificationRecord{}, err
	}

	o.cache.Commit(fp, record)
	o.core.Metrics.VerificationsTotal.WithLabelValues(string(record.Trust.Band)).Inc()
	o.core.Metrics.VerificationDuration.Observe(o.core.Clock.Now().Sub(start).Seconds())

	return record, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, req model.Request, fp [32]byte, produce ResponseProducer) (model.VerificationRecord, error) {
	resp, err := produce(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return model.VerificationRecord{}, twerrors.Timeout(twerrors.ScopeGlobal, "global deadline exceeded before response was produced")
		}
		return model.VerificationRecord{}, twerrors.Wrap(err, twerrors.KindInternal, "produce response")
	}

	responseDigest, err := fingerprint.ResponseDigest(resp)
	if err != nil {
		return model.VerificationRecord{}, twerrors.Wrap(err, twerrors.KindInternal, "compute response digest")
	}

	claims := introspect.Extract(resp)

	var evidence []model.HallucinationEvidence
	var verdicts []model.ValidatorVerdict
	var detectErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		evidence, err = o.detector.Run(gctx, req, resp, claims, o.sources)
		detectErr = err
		return nil // detector failure does not cancel the validator pool run
	})
	g.Go(func() error {
		verdicts = o.pool.Run(gctx, req, resp, claims)
		return nil
	})
	_ = g.Wait()

	if detectErr != nil {
		return model.VerificationRecord{}, detectErr
	}

	usable := 0
	for _, v := range verdicts {
		if v.Status == model.ValidatorOk {
			usable++
		}
	}
	if usable == 0 && len(verdicts) > 0 {
		return model.VerificationRecord{}, twerrors.New(twerrors.KindInsufficientConsensus, "no validator produced a usable verdict")
	}

	consensusResult := consensus.Aggregate(verdicts, o.cfg.MinValidators)

	explanation, err := explain.Aggregate(ctx, o.explainers, req, resp, claims, o.cfg.TopKFeatures)
	if err != nil {
		explanation = nil // explanation is optional; never fail verification on it
	}

	historySnap, err := o.historyStore.Snapshot(ctx, req.ModelID)
	if err != nil {
		historySnap = model.HistorySnapshot{ModelID: req.ModelID}
	}

	trustScore := trust.Compose(o.cfg.TrustWeights, o.cfg.BandThresholds, evidence, consensusResult, explanation, historySnap)

	record := model.VerificationRecord{
		RequestID:      req.ID,
		Fingerprint:    fp,
		ResponseDigest: responseDigest,
		RulesetVersion: o.cfg.RulesetVersion,
		Hallucinations: evidence,
		Validators:     verdicts,
		Consensus:      consensusResult,
		Explanation:    explanation,
		Trust:          trustScore,
	}

	var prevHash *[32]byte
	if o.cfg.Commitment.Chain {
		o.mu.Lock()
		if h, ok := o.lastHash[req.ModelID]; ok {
			hc := h
			prevHash = &hc
		}
		o.mu.Unlock()
	}

	c, err := commitment.Seal(ctx, o.cfg, o.core.Clock, o.core.Entropy, o.sink, record, prevHash)
	if err != nil {
		return model.VerificationRecord{}, err
	}
	if o.sink != nil && c.SinkStatus == model.SinkLocalOnly {
		o.core.Metrics.CommitmentSinkFailures.Inc()
	}
	record.Commitment = c
	record.CreatedAt = uint64(o.core.Clock.Now().Unix())

	if o.cfg.Commitment.Chain {
		o.mu.Lock()
		o.lastHash[req.ModelID] = c.RecordHash
		o.mu.Unlock()
	}

	passed := trustScore.Band != model.BandReject
	if err := o.historyStore.Record(ctx, req.ModelID, passed); err != nil {
		o.core.Logger.Warn("failed to record verification history", "model_id", req.ModelID, "error", err)
	}

	return record, nil
}
