// Copyright 2025 TrustWrapper Authors
//
// Package corectx provides the process-wide CoreContext named in the
// source's redesign notes: a single object created at startup and passed by
// reference, owning the metrics registry, logger, and time/entropy
// capabilities so no package keeps package-level mutable state.
package corectx

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lamassu-labs/trustwrapper-core/pkg/clock"
	"github.com/lamassu-labs/trustwrapper-core/pkg/logging"
)

// Metrics holds the core's Prometheus instrumentation.
type Metrics struct {
	VerificationsTotal        *prometheus.CounterVec
	VerificationDuration      prometheus.Histogram
	ValidatorTimeoutsTotal    prometheus.Counter
	CacheHitsTotal            prometheus.Counter
	CacheMissesTotal          prometheus.Counter
	CommitmentSinkFailures    prometheus.Counter
}

// NewMetrics registers the core's metric set against reg. Pass
// prometheus.NewRegistry() for test isolation, or prometheus.DefaultRegisterer
// in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustwrapper_verifications_total",
			Help: "Total verifications completed, labeled by trust band.",
		}, []string{"band"}),
		VerificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustwrapper_verification_duration_seconds",
			Help:    "End-to-end verification latency.",
			Buckets: prometheus.DefBuckets,
		}),
		ValidatorTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustwrapper_validator_timeouts_total",
			Help: "Total validator runs that exceeded their per-validator deadline.",
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustwrapper_cache_hits_total",
			Help: "Total fingerprint cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustwrapper_cache_misses_total",
			Help: "Total fingerprint cache misses.",
		}),
		CommitmentSinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustwrapper_commitment_sink_failures_total",
			Help: "Total CommitmentSink submissions that exhausted retries.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.VerificationsTotal,
			m.VerificationDuration,
			m.ValidatorTimeoutsTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.CommitmentSinkFailures,
		)
	}

	return m
}

// Context is the process-wide core context injected into the Orchestrator.
type Context struct {
	Metrics *Metrics
	Logger  *logging.Logger
	Clock   clock.Clock
	Entropy clock.EntropySource
}

// New builds a Context with production defaults: a system clock, system
// entropy, a text logger on stdout, and metrics registered against reg (nil
// disables registration, useful for tests that construct many Contexts).
func New(reg prometheus.Registerer) (*Context, error) {
	logger, err := logging.New(nil)
	if err != nil {
		return nil, err
	}

	return &Context{
		Metrics: NewMetrics(reg),
		Logger:  logger,
		Clock:   clock.NewSystem(),
		Entropy: clock.SystemEntropy{},
	}, nil
}

// NewForTest builds a Context suited to deterministic tests: a fixed clock,
// a sequential entropy source, a no-op logger, and unregistered metrics.
func NewForTest() *Context {
	return &Context{
		Metrics: NewMetrics(nil),
		Logger:  logging.Noop(),
		Clock:   clock.NewFixed(clock.NewSystem().Now()),
		Entropy: clock.NewSequence(),
	}
}
