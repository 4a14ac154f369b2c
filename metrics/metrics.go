// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires GRANDPA round and graph internals to
// Prometheus: a handful of named collectors registered against a
// caller-supplied Registerer rather than the global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/grandpa/vote"
)

// Metrics holds every collector the core publishes. A nil *Metrics is
// not valid; use NewNoop for callers that don't want Prometheus wiring.
type Metrics struct {
	roundDuration    prometheus.Histogram
	prevoteWeight    prometheus.Gauge
	precommitWeight  prometheus.Gauge
	equivocations    prometheus.Counter
	finalizedHeight  prometheus.Gauge
	roundsStarted    prometheus.Counter
	roundsCompletable prometheus.Counter
}

// New registers the core's collectors against reg and returns the
// bound Metrics. It returns the first registration error encountered,
// if any.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grandpa_round_duration_seconds",
			Help:    "Wall-clock duration of a completed voting round.",
			Buckets: prometheus.DefBuckets,
		}),
		prevoteWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grandpa_prevote_weight",
			Help: "Cumulative weight behind the current round's prevote-ghost.",
		}),
		precommitWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grandpa_precommit_weight",
			Help: "Cumulative weight behind the current round's estimate.",
		}),
		equivocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grandpa_equivocations_total",
			Help: "Total number of detected equivocating vote pairs.",
		}),
		finalizedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grandpa_finalized_height",
			Help: "Block number of the most recently finalized block.",
		}),
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grandpa_rounds_started_total",
			Help: "Total number of voting rounds started.",
		}),
		roundsCompletable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grandpa_rounds_completable_total",
			Help: "Total number of voting rounds that reached completable.",
		}),
	}
	collectors := []prometheus.Collector{
		m.roundDuration, m.prevoteWeight, m.precommitWeight,
		m.equivocations, m.finalizedHeight, m.roundsStarted, m.roundsCompletable,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNoop returns a Metrics whose methods are safe to call but record
// nothing, for callers that don't want Prometheus wiring (e.g. unit
// tests).
func NewNoop() *Metrics { return &Metrics{} }

// ObserveRoundDuration records the wall-clock time a round took from
// start to finalize.
func (m *Metrics) ObserveRoundDuration(seconds float64) {
	if m.roundDuration != nil {
		m.roundDuration.Observe(seconds)
	}
}

// SetPrevoteWeight records the current round's prevote-ghost weight.
func (m *Metrics) SetPrevoteWeight(w uint64) {
	if m.prevoteWeight != nil {
		m.prevoteWeight.Set(float64(w))
	}
}

// SetPrecommitWeight records the current round's estimate weight.
func (m *Metrics) SetPrecommitWeight(w uint64) {
	if m.precommitWeight != nil {
		m.precommitWeight.Set(float64(w))
	}
}

// IncEquivocation records one detected equivocation.
func (m *Metrics) IncEquivocation() {
	if m.equivocations != nil {
		m.equivocations.Inc()
	}
}

// OnEquivocation implements tracker.EquivocationObserver by incrementing
// the equivocations counter; it drops the kind/voter/target detail the
// interface carries since Prometheus only needs the count.
func (m *Metrics) OnEquivocation(vote.Kind, vote.VoterID, vote.BlockInfo, vote.BlockInfo) {
	m.IncEquivocation()
}

// SetFinalizedHeight records the last-finalized block number.
func (m *Metrics) SetFinalizedHeight(n uint64) {
	if m.finalizedHeight != nil {
		m.finalizedHeight.Set(float64(n))
	}
}

// IncRoundStarted records a round having started.
func (m *Metrics) IncRoundStarted() {
	if m.roundsStarted != nil {
		m.roundsStarted.Inc()
	}
}

// IncRoundCompletable records a round having reached completable.
func (m *Metrics) IncRoundCompletable() {
	if m.roundsCompletable != nil {
		m.roundsCompletable.Inc()
	}
}
