package commitment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lamassu-labs/trustwrapper-core/pkg/clock"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
	"github.com/lamassu-labs/trustwrapper-core/pkg/ruleset"
)

type stubSink struct {
	failTimes int
	calls     int
}

func (s *stubSink) Submit(ctx context.Context, c model.Commitment) error {
	s.calls++
	if s.calls <= s.failTimes {
		return errors.New("sink temporarily unavailable")
	}
	return nil
}

type alwaysFailSink struct{ calls int }

func (s *alwaysFailSink) Submit(ctx context.Context, c model.Commitment) error {
	s.calls++
	return errors.New("sink permanently unavailable")
}

func TestSealWithNilSinkIsLocalOnly(t *testing.T) {
	cfg := ruleset.Default()
	clk := clock.NewFixed(time.Unix(1000, 0))
	entropy := clock.NewSequence()

	c, err := Seal(context.Background(), cfg, clk, entropy, nil, model.VerificationRecord{RulesetVersion: "v1"}, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if c.SinkStatus != model.SinkLocalOnly {
		t.Errorf("expected LocalOnly with a nil sink, got %v", c.SinkStatus)
	}
}

func TestSealSucceedsAfterTransientFailures(t *testing.T) {
	cfg := ruleset.Default()
	clk := clock.NewFixed(time.Unix(1000, 0))
	entropy := clock.NewSequence()
	sink := &stubSink{failTimes: 2}

	c, err := Seal(context.Background(), cfg, clk, entropy, sink, model.VerificationRecord{RulesetVersion: "v1"}, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if c.SinkStatus != model.SinkSealed {
		t.Errorf("expected Sealed after retries succeed, got %v", c.SinkStatus)
	}
	if sink.calls != 3 {
		t.Errorf("expected 3 submission attempts, got %d", sink.calls)
	}
}

func TestSealDegradesToLocalOnlyAfterExhaustingRetries(t *testing.T) {
	cfg := ruleset.Default()
	clk := clock.NewFixed(time.Unix(1000, 0))
	entropy := clock.NewSequence()
	sink := &alwaysFailSink{}

	c, err := Seal(context.Background(), cfg, clk, entropy, sink, model.VerificationRecord{RulesetVersion: "v1"}, nil)
	if err != nil {
		t.Fatalf("Seal should not itself fail on sink exhaustion, got: %v", err)
	}
	if c.SinkStatus != model.SinkLocalOnly {
		t.Errorf("expected LocalOnly after exhausting retries, got %v", c.SinkStatus)
	}
	if sink.calls != retryAttempts {
		t.Errorf("expected %d submission attempts, got %d", retryAttempts, sink.calls)
	}
}

func TestSealRecordHashBindsNonceAndTimestamp(t *testing.T) {
	cfg := ruleset.Default()
	clk := clock.NewFixed(time.Unix(1000, 0))

	c1, err := Seal(context.Background(), cfg, clk, clock.NewSequence(), nil, model.VerificationRecord{RulesetVersion: "v1"}, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	clk2 := clock.NewFixed(time.Unix(2000, 0))
	c2, err := Seal(context.Background(), cfg, clk2, clock.NewSequence(), nil, model.VerificationRecord{RulesetVersion: "v1"}, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if c1.RecordHash == c2.RecordHash {
		t.Error("expected different record hashes for different nonce/timestamp despite identical record content")
	}
	if c1.Timestamp == c2.Timestamp {
		t.Error("expected different timestamps to be captured in the commitment itself")
	}
}

func TestDedupDigestExcludesNonceAndTimestamp(t *testing.T) {
	record := model.VerificationRecord{RulesetVersion: "v1"}

	d1, err := DedupDigest(record)
	if err != nil {
		t.Fatalf("DedupDigest: %v", err)
	}
	d2, err := DedupDigest(record)
	if err != nil {
		t.Fatalf("DedupDigest: %v", err)
	}
	if d1 != d2 {
		t.Error("expected DedupDigest to depend only on record content")
	}

	other := model.VerificationRecord{RulesetVersion: "v2"}
	d3, err := DedupDigest(other)
	if err != nil {
		t.Fatalf("DedupDigest: %v", err)
	}
	if d3 == d1 {
		t.Error("expected different record content to produce a different digest")
	}
}
