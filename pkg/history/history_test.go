package history

import (
	"context"
	"testing"
	"time"

	"github.com/lamassu-labs/trustwrapper-core/pkg/clock"
)

func TestMemoryStoreSnapshotEmpty(t *testing.T) {
	s := NewMemoryStore(clock.NewFixed(time.Unix(0, 0)))
	snap, err := s.Snapshot(context.Background(), "unknown-model")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.SampleSize != 0 {
		t.Errorf("expected SampleSize 0 for unknown model, got %d", snap.SampleSize)
	}
}

func TestMemoryStoreRecordAccumulates(t *testing.T) {
	s := NewMemoryStore(clock.NewFixed(time.Unix(0, 0)))
	ctx := context.Background()

	for _, passed := range []bool{true, true, false, true} {
		if err := s.Record(ctx, "m1", passed); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	snap, err := s.Snapshot(ctx, "m1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.SampleSize != 4 {
		t.Errorf("expected SampleSize 4, got %d", snap.SampleSize)
	}
	if snap.SuccessRate != 0.75 {
		t.Errorf("expected SuccessRate 0.75, got %v", snap.SuccessRate)
	}
}

func TestMemoryStoreModelsAreIndependent(t *testing.T) {
	s := NewMemoryStore(clock.NewFixed(time.Unix(0, 0)))
	ctx := context.Background()

	s.Record(ctx, "m1", true)
	s.Record(ctx, "m2", false)

	snap1, _ := s.Snapshot(ctx, "m1")
	snap2, _ := s.Snapshot(ctx, "m2")

	if snap1.SuccessRate != 1.0 {
		t.Errorf("expected m1 success rate 1.0, got %v", snap1.SuccessRate)
	}
	if snap2.SuccessRate != 0.0 {
		t.Errorf("expected m2 success rate 0.0, got %v", snap2.SuccessRate)
	}
}
