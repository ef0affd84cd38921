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
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Orchestrator defaults
const (
	DefaultTimeoutMS   = 10000
	DefaultConcurrency = 5
)

// Input validation errors. These abort the whole fan-out before any network
// activity, unlike per-agent failures which are folded into the result list.
var (
	ErrEmptyBrief = errors.New("Brief must be non-empty")
	ErrNoAgents   = errors.New("At least one agent (internal or external) must be specified")
)

// AgentRef identifies the agent a result entry originated from
type AgentRef struct {
	Type string `json:"type"` // "internal" or "external"
	Slug string `json:"slug,omitempty"`
	URL  string `json:"url,omitempty"`
}

// AgentResult is one agent's entry in the aggregated fan-out result
type AgentResult struct {
	Agent AgentRef    `json:"agent"`
	Items []RankItem  `json:"items"`
	Error *AgentError `json:"error"`
}

// OrchestrateResult is the aggregated outcome of one brief fan-out
type OrchestrateResult struct {
	Results     []AgentResult `json:"results"`
	ContextID   string        `json:"context_id"`
	TotalAgents int           `json:"total_agents"`
	TimeoutMS   int           `json:"timeout_ms"`
}

// agentCall is the per-agent dispatch plan built before fan-out
type agentCall struct {
	ref      AgentRef
	agentKey string
	url      string
	skipped  bool
}

// Orchestrator fans a buyer brief out to internal and external sales agents
// concurrently and aggregates their AdCP ranking results.
type Orchestrator struct {
	breaker          *CircuitBreaker
	caller           *AgentCaller
	agentBaseURL     string
	defaultTimeoutMS int
	concurrency      int
}

// NewOrchestrator wires a fan-out orchestrator from its components.
// agentBaseURL is the sales-agent service address internal slugs resolve
// against. Non-positive timeout/concurrency fall back to defaults.
func NewOrchestrator(breaker *CircuitBreaker, caller *AgentCaller, agentBaseURL string, defaultTimeoutMS, concurrency int) *Orchestrator {
	if defaultTimeoutMS <= 0 {
		defaultTimeoutMS = DefaultTimeoutMS
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		breaker:          breaker,
		caller:           caller,
		agentBaseURL:     strings.TrimRight(agentBaseURL, "/"),
		defaultTimeoutMS: defaultTimeoutMS,
		concurrency:      concurrency,
	}
}

// InternalAgentURL returns the rank endpoint for an internal agent slug
func (o *Orchestrator) InternalAgentURL(slug string) string {
	return fmt.Sprintf("%s/mcp/agents/%s/rank", o.agentBaseURL, slug)
}

// Orchestrate fans the brief out to every listed agent and returns the
// aggregated, construction-ordered results.
//
// Internal agents are listed first in caller order, then external agents in
// caller order; the result list preserves that order regardless of call
// completion order. Agents whose circuit breaker is open are skipped without
// any HTTP activity and appear in the results tagged with a "breaker" error.
// Remaining calls run concurrently under the configured in-flight cap, and
// each completed call updates the breaker. No agent is retried within one
// invocation.
//
// A zero timeoutMS selects the process-wide default.
func (o *Orchestrator) Orchestrate(ctx context.Context, brief string, internalSlugs, externalURLs []string, timeoutMS int) (*OrchestrateResult, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, ErrEmptyBrief
	}
	if len(internalSlugs) == 0 && len(externalURLs) == 0 {
		return nil, ErrNoAgents
	}
	if timeoutMS <= 0 {
		timeoutMS = o.defaultTimeoutMS
	}

	// Fresh trace id per fan-out, threaded through every agent call
	contextID := uuid.New().String()

	calls := make([]agentCall, 0, len(internalSlugs)+len(externalURLs))
	for _, slug := range internalSlugs {
		calls = append(calls, agentCall{
			ref:      AgentRef{Type: "internal", Slug: slug},
			agentKey: "internal:" + slug,
			url:      o.InternalAgentURL(slug),
		})
	}
	for _, externalURL := range externalURLs {
		calls = append(calls, agentCall{
			ref:      AgentRef{Type: "external", URL: externalURL},
			agentKey: "external:" + externalURL,
			url:      externalURL,
		})
	}

	results := make([]AgentResult, len(calls))

	// Breaker pre-check: skipped agents get synthetic results immediately
	// and never consume a concurrency slot
	for i := range calls {
		if o.breaker.ShouldSkip(calls[i].agentKey) {
			calls[i].skipped = true
			results[i] = AgentResult{
				Agent: calls[i].ref,
				Items: []RankItem{},
				Error: &AgentError{
					Type:    ErrTypeBreaker,
					Message: "Circuit breaker open - agent skipped",
				},
			}
			promBreakerSkips.Inc()
			log.Printf("[Orchestrator] Skipping agent %s (circuit breaker open)", calls[i].agentKey)
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)

	for i := range calls {
		if calls[i].skipped {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			call := calls[i]
			outcome := o.caller.CallAgent(ctx, call.url, brief, timeoutMS, contextID)

			promAgentCallDuration.WithLabelValues(call.ref.Type).Observe(float64(outcome.DurationMS))
			if outcome.Success {
				o.breaker.RecordSuccess(call.agentKey)
				promAgentCalls.WithLabelValues(call.ref.Type, "success").Inc()
				results[i] = AgentResult{
					Agent: call.ref,
					Items: outcome.Items,
				}
				return
			}

			o.breaker.RecordFailure(call.agentKey)
			promAgentCalls.WithLabelValues(call.ref.Type, outcome.Err.Type).Inc()
			log.Printf("[Orchestrator] Agent %s failed: %s (%s, %dms)",
				call.agentKey, outcome.Err.Message, outcome.Err.Type, outcome.DurationMS)
			results[i] = AgentResult{
				Agent: call.ref,
				Items: []RankItem{},
				Error: outcome.Err,
			}
		}(i)
	}
	wg.Wait()

	return &OrchestrateResult{
		Results:     results,
		ContextID:   contextID,
		TotalAgents: len(calls),
		TimeoutMS:   timeoutMS,
	}, nil
}

// elapsedMS is a small helper for handler latency bookkeeping
func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
