// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file provides opt-in Prometheus observability for the proxy: a fixed,
// low-cardinality set of collectors (no per-connection or per-client-IP
// labels) plus a periodic top-N summary logger.
package proxy

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the proxy's Prometheus collectors plus the in-process
// byte-totals snapshot the periodic summary logger reads from. A nil
// *Metrics is valid where the data path accepts one: the recording methods
// and RunSummaryLogger are no-ops on nil. Registry and ListenAndServe need a
// non-nil *Metrics.
type Metrics struct {
	connectionsTotal   *prometheus.CounterVec
	activeConnections  prometheus.Gauge
	verdictsTotal      *prometheus.CounterVec
	bytesTotal         *prometheus.CounterVec
	dialErrorsTotal    prometheus.Counter
	limitTripsTotal    *prometheus.CounterVec

	mu     sync.Mutex
	totals map[string]uint64 // initiator -> bytes delivered, for the summary logger
}

// NewMetrics constructs the collector set without registering it anywhere;
// Registry registers it on a fresh registry, so multiple Metrics instances
// (e.g. in tests) never collide on prometheus.DefaultRegisterer.
func NewMetrics() *Metrics {
	m := &Metrics{
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fproxy_connections_total",
			Help: "Total accepted connections by scheme.",
		}, []string{"scheme"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fproxy_active_connections",
			Help: "Connections currently being spliced.",
		}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fproxy_verdicts_total",
			Help: "Policy verdicts applied to accepted connections.",
		}, []string{"verdict"}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fproxy_bytes_total",
			Help: "Server-to-client bytes metered against a limited or blocked initiator.",
		}, []string{"initiator"}),
		dialErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fproxy_dial_errors_total",
			Help: "Upstream DNS/connect failures.",
		}),
		limitTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fproxy_limit_trips_total",
			Help: "Times a Limited verdict tripped mid-stream.",
		}, []string{"initiator"}),
		totals: make(map[string]uint64),
	}
	return m
}

// Registry returns a prometheus.Registerer with every collector registered,
// ready to be served via promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.connectionsTotal,
		m.activeConnections,
		m.verdictsTotal,
		m.bytesTotal,
		m.dialErrorsTotal,
		m.limitTripsTotal,
	)
	return reg
}

// ListenAndServe exposes /metrics on addr until the process exits. Intended
// to be run in its own goroutine from main.
func (m *Metrics) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}

func (m *Metrics) connectionAccepted(scheme Scheme) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(scheme.String()).Inc()
	m.activeConnections.Inc()
}

func (m *Metrics) connectionFinished() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) verdict(v Verdict) {
	if m == nil {
		return
	}
	m.verdictsTotal.WithLabelValues(v.String()).Inc()
}

func (m *Metrics) dialError() {
	if m == nil {
		return
	}
	m.dialErrorsTotal.Inc()
}

func (m *Metrics) limitTripped(initiator string) {
	if m == nil {
		return
	}
	m.limitTripsTotal.WithLabelValues(initiator).Inc()
}

func (m *Metrics) bytesDelivered(initiator string, n uint64) {
	if m == nil {
		return
	}
	m.bytesTotal.WithLabelValues(initiator).Add(float64(n))
	m.mu.Lock()
	m.totals[initiator] += n
	m.mu.Unlock()
}

// RunSummaryLogger periodically prints the top-N initiators by bytes
// delivered. It blocks until stop is closed.
func (m *Metrics) RunSummaryLogger(interval time.Duration, topN int, stop <-chan struct{}) {
	if m == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.logSummary(topN)
		case <-stop:
			return
		}
	}
}

func (m *Metrics) logSummary(topN int) {
	type row struct {
		initiator string
		bytes     uint64
	}
	m.mu.Lock()
	rows := make([]row, 0, len(m.totals))
	for k, v := range m.totals {
		rows = append(rows, row{k, v})
	}
	m.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].bytes > rows[j].bytes })
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	fmt.Printf("ledger summary: %d initiator(s) metered\n", len(rows))
	for _, r := range rows {
		fmt.Printf("  - %s: %d bytes\n", r.initiator, r.bytes)
	}
}
