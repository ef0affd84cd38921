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
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/cors"
)

// Run is the exported entry point for the orchestrator service.
//
// It wires the circuit breaker, agent caller, registry, rate limiter, and
// HTTP routes, then starts the server. The function blocks until the server
// is shut down.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8081)
//   - AGENT_BASE_URL: sales-agent service base URL for internal agents
//     (default: http://localhost:8080)
//   - ORCH_TIMEOUT_MS_DEFAULT: default per-agent timeout (default: 10000)
//   - ORCH_CONCURRENCY: max in-flight agent calls per fan-out (default: 5)
//   - CB_FAILURE_THRESHOLD: breaker failure threshold (default: 3)
//   - CB_TTL_SECONDS: breaker cool-down window (default: 60)
//   - AGENTS_CONFIG_FILE: agent roster YAML path (default: config/agents.yaml)
//   - DATABASE_URL: optional Postgres source for the roster
//   - REDIS_URL: optional Redis for distributed rate limiting
//   - RATE_LIMIT_PER_MINUTE: per-client request cap (default: 60, 0 disables)
//   - AUTH_SECRET: optional HS256 secret; enables bearer-token auth when set
func Run() {
	log.Println("Starting AdMesh Orchestrator...")

	breaker := NewCircuitBreaker(
		getEnvInt("CB_FAILURE_THRESHOLD", DefaultFailureThreshold),
		time.Duration(getEnvInt("CB_TTL_SECONDS", 60))*time.Second,
	)

	orch := NewOrchestrator(
		breaker,
		NewAgentCaller(),
		getEnv("AGENT_BASE_URL", "http://localhost:8080"),
		getEnvInt("ORCH_TIMEOUT_MS_DEFAULT", DefaultTimeoutMS),
		getEnvInt("ORCH_CONCURRENCY", DefaultConcurrency),
	)

	registry := NewAgentRegistry()
	rosterPath := getEnv("AGENTS_CONFIG_FILE", "config/agents.yaml")
	if err := registry.LoadFromFile(rosterPath); err != nil {
		log.Printf("Warning: failed to load agent roster from %s: %v", rosterPath, err)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			log.Printf("Warning: failed to open roster database: %v", err)
		} else if err := db.Ping(); err != nil {
			log.Printf("Warning: failed to ping roster database: %v", err)
		} else {
			registry.SetDatabaseSource(NewSQLAgentSource(db))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := registry.LoadFromDatabase(ctx); err != nil {
				log.Printf("Warning: failed to load roster from database: %v", err)
			}
			cancel()
			log.Println("Roster database connected")
		}
	}

	limiter, err := NewRateLimiter(
		os.Getenv("REDIS_URL"),
		getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	)
	if err != nil {
		log.Printf("Warning: rate limiter init failed: %v (using in-memory window)", err)
		limiter, _ = NewRateLimiter("", getEnvInt("RATE_LIMIT_PER_MINUTE", 60))
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			log.Printf("Error closing rate limiter: %v", err)
		}
	}()

	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret != "" {
		log.Println("Bearer-token auth enabled")
	}

	server := NewServer(orch, registry, limiter, authSecret)

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := getEnv("PORT", "8081")
	handler := c.Handler(server.Routes())
	log.Printf("AdMesh Orchestrator listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
