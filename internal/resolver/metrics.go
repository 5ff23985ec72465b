// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome constants for refresh pass metrics.
const (
	OutcomeClean           = "clean"
	OutcomeRestartRequired = "restart_required"
	OutcomeError           = "error"
)

// RefreshPasses is the counter for resolution passes.
// Use RegisterMetrics to register this with a Prometheus registry.
var RefreshPasses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "optplug_refresh_passes_total",
		Help: "Total number of resolution passes by outcome",
	},
	[]string{"outcome"},
)

// RefreshDuration is the histogram for resolution pass duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var RefreshDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "optplug_refresh_duration_seconds",
		Help:    "Resolution pass duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// Candidates is the counter for candidates seen at each pipeline stage.
// Use RegisterMetrics to register this with a Prometheus registry.
var Candidates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "optplug_candidates_total",
		Help: "Total number of candidates by pipeline stage",
	},
	[]string{"stage"},
)

// Candidate pipeline stages recorded by the Candidates counter.
const (
	StageStaged       = "staged"
	StageWrapped      = "wrapped"
	StageIncluded     = "included"
	StageMaterialized = "materialized"
	StageHotLoaded    = "hot_loaded"
)

// RegisterMetrics registers resolver metrics with the given Prometheus
// registry. Call once at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(RefreshPasses)
	reg.MustRegister(RefreshDuration)
	reg.MustRegister(Candidates)
}

// recordPass records one completed pass.
func recordPass(outcome string, started time.Time) {
	RefreshPasses.WithLabelValues(outcome).Inc()
	RefreshDuration.Observe(time.Since(started).Seconds())
}

// recordCandidates adds to a pipeline stage counter.
func recordCandidates(stage string, n int) {
	if n > 0 {
		Candidates.WithLabelValues(stage).Add(float64(n))
	}
}
