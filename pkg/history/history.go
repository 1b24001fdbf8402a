// Copyright 2025 TrustWrapper Authors
//
// Package history persists the rolling per-model success rate that feeds
// the Trust Score Composer's history_term, surviving process restarts.
package history

import (
	"context"
	"sync"

	"github.com/lamassu-labs/trustwrapper-core/pkg/clock"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// Store records verification outcomes and serves the current
// HistorySnapshot for a model.
type Store interface {
	// Record folds one verification's pass/fail outcome into model_id's
	// rolling success rate.
	Record(ctx context.Context, modelID string, passed bool) error
	// Snapshot returns the current HistorySnapshot for model_id, or the
	// zero value (SampleSize 0) if no history exists yet.
	Snapshot(ctx context.Context, modelID string) (model.HistorySnapshot, error)
}

// MemoryStore is an in-process Store, the default when no external
// database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	clk  clock.Clock
	data map[string]*counters
}

type counters struct {
	passed uint64
	total  uint64
}

// NewMemoryStore returns an empty MemoryStore that timestamps snapshots
// using clk.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clk: clk, data: make(map[string]*counters)}
}

// Record implements Store.
func (s *MemoryStore) Record(ctx context.Context, modelID string, passed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[modelID]
	if !ok {
		c = &counters{}
		s.data[modelID] = c
	}
	c.total++
	if passed {
		c.passed++
	}
	return nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(ctx context.Context, modelID string) (model.HistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[modelID]
	if !ok || c.total == 0 {
		return model.HistorySnapshot{ModelID: modelID}, nil
	}

	return model.HistorySnapshot{
		ModelID:     modelID,
		SuccessRate: float64(c.passed) / float64(c.total),
		SampleSize:  c.total,
		UpdatedAt:   s.clk.Now(),
	}, nil
}
