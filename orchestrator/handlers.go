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
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admesh/platform/shared/logger"
)

// Server bundles the orchestrator's HTTP surface with its components.
// Everything is injected so tests can assemble isolated instances.
type Server struct {
	orch       *Orchestrator
	registry   *AgentRegistry
	limiter    *RateLimiter
	metrics    *OrchestratorMetrics
	logger     *logger.Logger
	authSecret string
}

// NewServer assembles the orchestrator HTTP server
func NewServer(orch *Orchestrator, registry *AgentRegistry, limiter *RateLimiter, authSecret string) *Server {
	return &Server{
		orch:       orch,
		registry:   registry,
		limiter:    limiter,
		metrics:    NewOrchestratorMetrics(),
		logger:     logger.New("orchestrator"),
		authSecret: authSecret,
	}
}

// Routes builds the HTTP router for the service
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Metrics endpoints
	r.HandleFunc("/metrics", s.handleMetricsJSON).Methods("GET") // JSON metrics
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")   // Prometheus native format

	// Fan-out endpoint
	r.HandleFunc("/api/v1/orchestrate", s.handleOrchestrate).Methods("POST")

	// Agent roster
	r.HandleFunc("/api/v1/agents", s.handleListAgents).Methods("GET")

	return r
}

// OrchestrateAPIRequest is the request body for POST /api/v1/orchestrate.
// When both agent lists are omitted the registry roster supplies them.
type OrchestrateAPIRequest struct {
	Brief          string   `json:"brief"`
	InternalAgents []string `json:"internal_agents,omitempty"`
	ExternalURLs   []string `json:"external_urls,omitempty"`
	TimeoutMS      int      `json:"timeout_ms,omitempty"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	clientID, err := clientIDFromRequest(r, s.authSecret)
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, err.Error())
		promRequestsTotal.WithLabelValues("unauthorized").Inc()
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(r.Context(), clientID); err != nil {
			s.sendError(w, http.StatusTooManyRequests, err.Error())
			promRequestsTotal.WithLabelValues("rate_limited").Inc()
			return
		}
	}

	var req OrchestrateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		promRequestsTotal.WithLabelValues("bad_request").Inc()
		return
	}

	// Fall back to the registry roster when the caller names no agents
	internal := req.InternalAgents
	external := req.ExternalURLs
	if len(internal) == 0 && len(external) == 0 && s.registry != nil {
		internal = s.registry.InternalSlugs()
		external = s.registry.EnabledExternalURLs()
	}

	result, err := s.orch.Orchestrate(r.Context(), req.Brief, internal, external, req.TimeoutMS)
	if err != nil {
		// Only caller-input validation aborts the whole fan-out
		if errors.Is(err, ErrEmptyBrief) || errors.Is(err, ErrNoAgents) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			promRequestsTotal.WithLabelValues("bad_request").Inc()
			s.metrics.recordRequest(false, time.Since(start).Milliseconds())
			return
		}
		s.sendError(w, http.StatusInternalServerError, err.Error())
		promRequestsTotal.WithLabelValues("error").Inc()
		s.metrics.recordRequest(false, time.Since(start).Milliseconds())
		return
	}

	promRequestsTotal.WithLabelValues("success").Inc()
	promRequestDuration.Observe(elapsedMS(start))
	s.metrics.recordRequest(true, time.Since(start).Milliseconds())

	s.logger.InfoWithDuration(clientID, result.ContextID, "Fan-out complete", elapsedMS(start), map[string]interface{}{
		"total_agents": result.TotalAgents,
		"timeout_ms":   result.TimeoutMS,
	})

	s.sendJSON(w, http.StatusOK, result)
}

// AgentListResponse is the response body for GET /api/v1/agents
type AgentListResponse struct {
	InternalAgents []InternalAgent `json:"internal_agents"`
	ExternalAgents []ExternalAgent `json:"external_agents"`
	Stats          RegistryStats   `json:"stats"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.sendError(w, http.StatusNotFound, "no agent registry configured")
		return
	}
	s.sendJSON(w, http.StatusOK, AgentListResponse{
		InternalAgents: s.registry.InternalAgents(),
		ExternalAgents: s.registry.ExternalAgents(),
		Stats:          s.registry.Stats(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"service":   "admesh-orchestrator",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC(),
		"components": map[string]bool{
			"registry":     s.registry != nil,
			"rate_limiter": s.limiter != nil,
		},
	}
	s.sendJSON(w, http.StatusOK, health)
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.metrics.Snapshot(s.orch.breaker.TrackedAgents()))
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
