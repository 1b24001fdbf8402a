package validatorpool

import (
	"context"
	"testing"
	"time"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

type fixedValidator struct {
	id         string
	passed     bool
	confidence float64
	delay      time.Duration
	panics     bool
	err        error
}

func (v fixedValidator) ID() string { return v.id }
func (v fixedValidator) Validate(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim) (bool, float64, []string, error) {
	if v.panics {
		panic("validator exploded")
	}
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return false, 0, nil, ctx.Err()
		}
	}
	return v.passed, v.confidence, nil, v.err
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Validator{
		fixedValidator{id: "a", passed: true},
		fixedValidator{id: "a", passed: false},
	}, 50*time.Millisecond, 100*time.Millisecond, false, nil)
	if err == nil {
		t.Fatal("expected an error for duplicate validator IDs")
	}
}

func TestRunReturnsOneVerdictPerValidator(t *testing.T) {
	pool, err := New([]Validator{
		fixedValidator{id: "a", passed: true, confidence: 0.9},
		fixedValidator{id: "b", passed: false, confidence: 0.5},
	}, 50*time.Millisecond, 200*time.Millisecond, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	verdicts := pool.Run(context.Background(), model.Request{}, model.Response{}, nil)
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].ValidatorID != "a" || verdicts[1].ValidatorID != "b" {
		t.Errorf("expected verdicts in validator-list order, got %s, %s", verdicts[0].ValidatorID, verdicts[1].ValidatorID)
	}
}

func TestRunPanicBecomesErrorVerdict(t *testing.T) {
	pool, err := New([]Validator{fixedValidator{id: "boom", panics: true}}, 50*time.Millisecond, 200*time.Millisecond, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	verdicts := pool.Run(context.Background(), model.Request{}, model.Response{}, nil)
	if verdicts[0].Status != model.ValidatorError {
		t.Errorf("expected Status Error after panic, got %v", verdicts[0].Status)
	}
}

func TestRunPerValidatorTimeout(t *testing.T) {
	timeoutFired := false
	pool, err := New([]Validator{
		fixedValidator{id: "slow", delay: 200 * time.Millisecond, passed: true, confidence: 0.9},
	}, 20*time.Millisecond, 500*time.Millisecond, false, func() { timeoutFired = true })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	verdicts := pool.Run(context.Background(), model.Request{}, model.Response{}, nil)
	if verdicts[0].Status != model.ValidatorTimeout {
		t.Errorf("expected Status Timeout, got %v", verdicts[0].Status)
	}
	if verdicts[0].Passed {
		t.Error("expected Passed false for a timed-out verdict when count_timeout_verdicts is false")
	}
	if !timeoutFired {
		t.Error("expected the timeout callback to fire")
	}
}

func TestRunCountTimeoutVerdictsPreservesResult(t *testing.T) {
	// A validator that finishes just past its own deadline but still
	// within the pool deadline: with count_timeout_verdicts the verdict's
	// timeout-triggering race with Validate's return does not apply here
	// since the per-validator context cancels Validate immediately; this
	// test only asserts the config flag does not zero out a verdict that
	// legitimately never produced one.
	pool, err := New([]Validator{
		fixedValidator{id: "slow", delay: 200 * time.Millisecond},
	}, 20*time.Millisecond, 500*time.Millisecond, true, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	verdicts := pool.Run(context.Background(), model.Request{}, model.Response{}, nil)
	if verdicts[0].Status != model.ValidatorTimeout {
		t.Fatalf("expected Status Timeout, got %v", verdicts[0].Status)
	}
}

func TestRunNoDuplicateValidatorIDsInOutput(t *testing.T) {
	pool, _ := New([]Validator{
		fixedValidator{id: "a", passed: true, confidence: 0.9},
		fixedValidator{id: "b", passed: true, confidence: 0.9},
		fixedValidator{id: "c", passed: true, confidence: 0.9},
	}, 50*time.Millisecond, 200*time.Millisecond, false, nil)

	verdicts := pool.Run(context.Background(), model.Request{}, model.Response{}, nil)
	seen := map[string]bool{}
	for _, v := range verdicts {
		if seen[v.ValidatorID] {
			t.Fatalf("duplicate validator id %q in output", v.ValidatorID)
		}
		seen[v.ValidatorID] = true
	}
}
