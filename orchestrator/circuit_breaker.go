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
	"sync"
	"time"
)

// Circuit breaker defaults
const (
	DefaultFailureThreshold = 3
	DefaultBreakerTTL       = 60 * time.Second
)

type breakerEntry struct {
	count       int
	lastFailure time.Time
}

// CircuitBreaker tracks per-agent failures and gates repeat calls to agents
// that keep failing. State lives in memory for the life of the process.
//
// A breaker for an agent key is open when the recorded failure count has
// reached the threshold and the last failure is younger than the TTL. Expired
// entries are reclaimed lazily on the next ShouldSkip call for that key;
// there is no background sweep.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  map[string]*breakerEntry
	threshold int
	ttl       time.Duration
}

// NewCircuitBreaker creates a circuit breaker with the given failure
// threshold and cool-down TTL. Non-positive arguments fall back to defaults.
func NewCircuitBreaker(threshold int, ttl time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if ttl <= 0 {
		ttl = DefaultBreakerTTL
	}
	return &CircuitBreaker{
		failures:  make(map[string]*breakerEntry),
		threshold: threshold,
		ttl:       ttl,
	}
}

// ShouldSkip reports whether calls to the agent should currently be skipped.
// Checking an expired entry clears it, so the breaker closes again once the
// TTL has elapsed without any explicit reset.
func (cb *CircuitBreaker) ShouldSkip(agentKey string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	entry, exists := cb.failures[agentKey]
	if !exists {
		return false
	}

	if entry.count >= cb.threshold {
		if time.Since(entry.lastFailure) < cb.ttl {
			return true
		}
		// TTL expired, reset
		delete(cb.failures, agentKey)
	}
	return false
}

// RecordFailure increments the failure count for the agent and stamps the
// failure time, creating the entry on first failure.
func (cb *CircuitBreaker) RecordFailure(agentKey string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if entry, exists := cb.failures[agentKey]; exists {
		entry.count++
		entry.lastFailure = time.Now()
		return
	}
	cb.failures[agentKey] = &breakerEntry{count: 1, lastFailure: time.Now()}
}

// RecordSuccess clears any tracked failures for the agent entirely
func (cb *CircuitBreaker) RecordSuccess(agentKey string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.failures, agentKey)
}

// TrackedAgents returns the number of agent keys with recorded failures.
// Exposed for the metrics endpoint.
func (cb *CircuitBreaker) TrackedAgents() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.failures)
}
