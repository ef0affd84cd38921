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

/*
Package orchestrator provides the AdMesh Orchestrator service - the brief
fan-out engine that turns one buyer brief into concurrent AdCP ranking calls
against a roster of sales agents.

# Overview

A fan-out request carries a free-text buyer brief plus the agents to ask:
internal agents (tenant slugs served by the local sales-agent service) and
external agents (third-party AdCP URLs). The orchestrator:

  - Validates caller input before any network activity
  - Skips agents whose circuit breaker is open
  - Calls the remaining agents concurrently under an in-flight cap
  - Validates every response against the AdCP ranking contract
  - Returns one result entry per agent in the order the agents were given

Per-agent failures never abort the fan-out; each misbehaving agent appears
in the results with a typed structured error (timeout, http,
invalid_response, breaker, internal) while the rest complete normally.

# Circuit Breaker

Each agent key accumulates failures; once the threshold is reached the agent
is skipped until the TTL elapses. Expiry is evaluated lazily when the key is
next checked, so no background timer is needed. Success clears the entry
entirely. There is no half-open probing state.

Example:

	breaker := NewCircuitBreaker(3, 60*time.Second)
	orch := NewOrchestrator(breaker, NewAgentCaller(), agentBaseURL, 10000, 5)
	result, err := orch.Orchestrate(ctx, brief, []string{"pub-a"}, nil, 0)

# Agent Registry

The registry holds the deployment's agent roster, loaded from a YAML file
and optionally overlaid with rows from the admin database. It supplies the
default agent lists when an orchestrate request names none.

# HTTP API

	POST /api/v1/orchestrate  - fan a brief out and aggregate results
	GET  /api/v1/agents       - list the registered agent roster
	GET  /health              - service health
	GET  /metrics             - JSON metrics snapshot
	GET  /prometheus          - Prometheus metrics
*/
package orchestrator
