// Copyright 2025 AdMesh
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

package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admesh_orchestrator_requests_total",
			Help: "Total number of orchestrate requests processed",
		},
		[]string{"status"},
	)
	promRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admesh_orchestrator_request_duration_milliseconds",
			Help:    "Orchestrate request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
	)
	promAgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admesh_orchestrator_agent_calls_total",
			Help: "Total number of agent calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	promAgentCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admesh_orchestrator_agent_call_duration_milliseconds",
			Help:    "Agent call duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"kind"},
	)
	promBreakerSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "admesh_orchestrator_breaker_skips_total",
			Help: "Total number of agent calls skipped by an open circuit breaker",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promAgentCalls)
	prometheus.MustRegister(promAgentCallDuration)
	prometheus.MustRegister(promBreakerSkips)
}

// OrchestratorMetrics keeps an in-process snapshot for the JSON metrics
// endpoint, alongside the Prometheus collectors above.
type OrchestratorMetrics struct {
	mu              sync.Mutex
	startTime       time.Time
	totalRequests   int64
	successRequests int64
	failedRequests  int64
	latencies       []int64
}

// NewOrchestratorMetrics creates an empty metrics tracker
func NewOrchestratorMetrics() *OrchestratorMetrics {
	return &OrchestratorMetrics{startTime: time.Now()}
}

func (m *OrchestratorMetrics) recordRequest(success bool, latencyMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	if success {
		m.successRequests++
	} else {
		m.failedRequests++
	}
	m.latencies = append(m.latencies, latencyMS)
	// Keep a bounded window so the slice does not grow forever
	if len(m.latencies) > 1000 {
		m.latencies = m.latencies[len(m.latencies)-1000:]
	}
}

// MetricsSnapshot is the JSON form served by the /metrics endpoint
type MetricsSnapshot struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	TotalRequests   int64   `json:"total_requests"`
	SuccessRequests int64   `json:"success_requests"`
	FailedRequests  int64   `json:"failed_requests"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	P95LatencyMS    float64 `json:"p95_latency_ms"`
	BreakerTracked  int     `json:"breaker_tracked_agents"`
}

// Snapshot returns the current metrics values
func (m *OrchestratorMetrics) Snapshot(breakerTracked int) MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		TotalRequests:   m.totalRequests,
		SuccessRequests: m.successRequests,
		FailedRequests:  m.failedRequests,
		AvgLatencyMS:    calculateAverage(m.latencies),
		P95LatencyMS:    calculatePercentile(m.latencies, 0.95),
		BreakerTracked:  breakerTracked,
	}
}

func calculateAverage(latencies []int64) float64 {
	if len(latencies) == 0 {
		return 0
	}
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return float64(sum) / float64(len(latencies))
}

func calculatePercentile(latencies []int64, percentile float64) float64 {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * percentile)
	return float64(sorted[idx])
}
