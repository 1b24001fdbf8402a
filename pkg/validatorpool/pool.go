// Copyright 2025 TrustWrapper Authors
//
// Package validatorpool runs independent Validators against a Response in
// parallel (C4), enforcing per-validator and pool-wide deadlines, isolating
// panics, and deduplicating validator IDs so one misbehaving validator
// cannot corrupt another's verdict or the aggregate.
package validatorpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// Validator independently checks a Response against a Request and returns
// a verdict. Implementations are supplied by the host application.
type Validator interface {
	ID() string
	Validate(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim) (passed bool, confidence float64, issues []string, err error)
}

// Pool runs a fixed set of Validators with the deadlines and dedup policy
// named above.
type Pool struct {
	validators           []Validator
	perValidatorDeadline time.Duration
	poolDeadline         time.Duration
	countTimeoutVerdicts bool
	onTimeout            func()
}

// New builds a Pool, rejecting duplicate validator IDs at construction time
// rather than discovering the collision mid-run.
func New(validators []Validator, perValidatorDeadline, poolDeadline time.Duration, countTimeoutVerdicts bool, onTimeout func()) (*Pool, error) {
	seen := make(map[string]struct{}, len(validators))
	for _, v := range validators {
		if _, dup := seen[v.ID()]; dup {
			return nil, fmt.Errorf("duplicate validator id %q", v.ID())
		}
		seen[v.ID()] = struct{}{}
	}
	if onTimeout == nil {
		onTimeout = func() {}
	}
	return &Pool{
		validators:           validators,
		perValidatorDeadline: perValidatorDeadline,
		poolDeadline:         poolDeadline,
		countTimeoutVerdicts: countTimeoutVerdicts,
		onTimeout:            onTimeout,
	}, nil
}

// Run executes every validator concurrently, bounded by the pool deadline,
// each individually bounded by the per-validator deadline, and returns one
// verdict per validator in validator-list order. A validator that panics,
// errors, or exceeds its deadline still produces a verdict (Status Error or
// Timeout) rather than aborting the whole run.
func (p *Pool) Run(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim) []model.ValidatorVerdict {
	poolCtx, cancel := context.WithTimeout(ctx, p.poolDeadline)
	defer cancel()

	verdicts := make([]model.ValidatorVerdict, len(p.validators))

	var wg sync.WaitGroup
	for i, v := range p.validators {
		wg.Add(1)
		go func(i int, v Validator) {
			defer wg.Done()
			verdicts[i] = p.runOne(poolCtx, v, req, resp, claims)
		}(i, v)
	}
	wg.Wait()

	return verdicts
}

func (p *Pool) runOne(poolCtx context.Context, v Validator, req model.Request, resp model.Response, claims []model.Claim) model.ValidatorVerdict {
	ctx, cancel := context.WithTimeout(poolCtx, p.perValidatorDeadline)
	defer cancel()

	start := time.Now()
	type result struct {
		passed     bool
		confidence float64
		issues     []string
		err        error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("validator panic: %v", r)}
			}
		}()
		passed, confidence, issues, err := v.Validate(ctx, req, resp, claims)
		done <- result{passed: passed, confidence: confidence, issues: issues, err: err}
	}()

	select {
	case r := <-done:
		elapsed := uint64(time.Since(start).Microseconds())
		if r.err != nil {
			return model.ValidatorVerdict{
				ValidatorID: v.ID(),
				Status:      model.ValidatorError,
				ElapsedUs:   elapsed,
				ErrorKind:   r.err.Error(),
			}
		}
		return model.ValidatorVerdict{
			ValidatorID: v.ID(),
			Passed:      r.passed,
			Confidence:  r.confidence,
			Issues:      r.issues,
			Status:      model.ValidatorOk,
			ElapsedUs:   elapsed,
		}
	case <-ctx.Done():
		p.onTimeout()
		verdict := model.ValidatorVerdict{
			ValidatorID: v.ID(),
			Status:      model.ValidatorTimeout,
			ElapsedUs:   uint64(time.Since(start).Microseconds()),
		}
		if !p.countTimeoutVerdicts {
			verdict.Passed = false
			verdict.Confidence = 0
		}
		return verdict
	}
}

// RunGroup is an alternate entry point for callers that want the pool's
// run to be cancellable as a single errgroup unit alongside other work.
// The orchestrator does not use it; it calls Run inside its own errgroup
// next to the hallucination detector.
func (p *Pool) RunGroup(ctx context.Context, g *errgroup.Group, req model.Request, resp model.Response, claims []model.Claim, out *[]model.ValidatorVerdict) {
	g.Go(func() error {
		*out = p.Run(ctx, req, resp, claims)
		return nil
	})
}
