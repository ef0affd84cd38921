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

// Package main is the entry point for the AdMesh Orchestrator service.
//
// The Orchestrator fans buyer briefs out to internal and external sales
// agents and aggregates their AdCP ranking responses:
// - Concurrent fan-out with a configurable in-flight cap
// - Per-agent circuit breaking with TTL-based recovery
// - AdCP response-contract validation and a typed error taxonomy
// - Agent roster from YAML config, optionally overlaid from Postgres
// - Per-client rate limiting (Redis-backed or in-memory)
//
// Usage:
//
//	./orchestrator
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8081)
//	AGENT_BASE_URL - sales-agent service base URL (default: http://localhost:8080)
//	AGENTS_CONFIG_FILE - agent roster YAML path (default: config/agents.yaml)
//	DATABASE_URL - PostgreSQL connection string (optional)
//	REDIS_URL - Redis connection string for rate limiting (optional)
//	AUTH_SECRET - HS256 secret enabling bearer-token auth (optional)
package main

import (
	"admesh/platform/orchestrator"
)

func main() {
	orchestrator.Run()
}
