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

package proxy

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ConnectionLifecycle(t *testing.T) {
	m := NewMetrics()
	m.connectionAccepted(SchemeHTTPS)
	m.verdict(VerdictLimited)
	m.bytesDelivered("youtube.com", 512)
	m.limitTripped("youtube.com")
	m.dialError()
	m.connectionFinished()

	if got := testutil.ToFloat64(m.connectionsTotal.WithLabelValues("HTTPS")); got != 1 {
		t.Errorf("connectionsTotal[HTTPS] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.verdictsTotal.WithLabelValues("limited")); got != 1 {
		t.Errorf("verdictsTotal[limited] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.bytesTotal.WithLabelValues("youtube.com")); got != 512 {
		t.Errorf("bytesTotal[youtube.com] = %v, want 512", got)
	}
	if got := testutil.ToFloat64(m.limitTripsTotal.WithLabelValues("youtube.com")); got != 1 {
		t.Errorf("limitTripsTotal[youtube.com] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dialErrorsTotal); got != 1 {
		t.Errorf("dialErrorsTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeConnections); got != 0 {
		t.Errorf("activeConnections = %v, want 0 after connectionFinished", got)
	}
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *Metrics
	m.connectionAccepted(SchemeHTTP)
	m.connectionFinished()
	m.verdict(VerdictAllow)
	m.dialError()
	m.limitTripped("x")
	m.bytesDelivered("x", 10)
	m.RunSummaryLogger(time.Millisecond, 5, make(chan struct{}))
}

func TestMetrics_RegistryExposesAllCollectors(t *testing.T) {
	m := NewMetrics()
	m.connectionAccepted(SchemeHTTP)
	reg := m.Registry()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"fproxy_connections_total",
		"fproxy_active_connections",
		"fproxy_verdicts_total",
		"fproxy_bytes_total",
		"fproxy_dial_errors_total",
		"fproxy_limit_trips_total",
	} {
		if !names[want] {
			t.Errorf("registry missing collector %q", want)
		}
	}
}

func TestMetrics_LogSummaryPrintsTopInitiators(t *testing.T) {
	m := NewMetrics()
	m.bytesDelivered("vk.com", 300)
	m.bytesDelivered("youtube.com", 900)
	m.bytesDelivered("example.com", 10)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	m.logSummary(2)

	w.Close()
	os.Stdout = oldStdout
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	out := buf.String()

	if !strings.Contains(out, "2 initiator(s) metered") {
		t.Fatalf("expected the top-N cap to read 2: %s", out)
	}
	if !strings.Contains(out, "youtube.com: 900 bytes") {
		t.Fatalf("expected youtube.com as the top initiator: %s", out)
	}
	if strings.Contains(out, "example.com") {
		t.Fatalf("expected example.com to be cut by the top-2 cap: %s", out)
	}
}
