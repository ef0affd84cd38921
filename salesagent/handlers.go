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

package salesagent

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admesh/platform/shared/logger"
)

// Prometheus metrics
var (
	promRankRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admesh_salesagent_rank_requests_total",
			Help: "Total number of rank requests by outcome",
		},
		[]string{"outcome"},
	)
	promRankDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admesh_salesagent_rank_duration_milliseconds",
			Help:    "Rank request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRankRequests)
	prometheus.MustRegister(promRankDuration)
}

// RankRequest is the AdCP ranking request body
type RankRequest struct {
	Brief     string `json:"brief"`
	ContextID string `json:"context_id,omitempty"`
}

// RankItem is one ranked product in an AdCP success response
type RankItem struct {
	ProductID string   `json:"product_id"`
	Reason    string   `json:"reason"`
	Score     *float64 `json:"score,omitempty"`
}

// RankError is the AdCP structured error payload
type RankError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  *int   `json:"status,omitempty"`
}

// RankResponse is the AdCP ranking response body: items on success, error
// otherwise, never both.
type RankResponse struct {
	Items []RankItem `json:"items,omitempty"`
	Error *RankError `json:"error,omitempty"`
}

// Server bundles the sales-agent HTTP surface with its components
type Server struct {
	catalog *ProductCatalog
	ranker  Ranker
	logger  *logger.Logger
}

// NewServer assembles the sales-agent HTTP server
func NewServer(catalog *ProductCatalog, ranker Ranker) *Server {
	return &Server{
		catalog: catalog,
		ranker:  ranker,
		logger:  logger.New("salesagent"),
	}
}

// Routes builds the HTTP router for the service
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Prometheus metrics
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	// AdCP ranking endpoint, one per tenant slug
	r.HandleFunc("/mcp/agents/{slug}/rank", s.handleRank).Methods("POST")

	// Tenant listing for operators
	r.HandleFunc("/mcp/agents", s.handleListAgents).Methods("GET")

	return r
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug := mux.Vars(r)["slug"]

	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		promRankRequests.WithLabelValues("bad_request").Inc()
		s.sendRankError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body: "+err.Error())
		return
	}

	products, ok := s.catalog.Products(slug)
	if !ok {
		promRankRequests.WithLabelValues("not_found").Inc()
		log.Printf("[SalesAgent] Rank request for unknown agent %q", slug)
		s.sendRankError(w, http.StatusNotFound, "not_found", "Unknown agent: "+slug)
		return
	}

	// Contract-level failures travel inside a 200 so the caller can tell a
	// reachable-but-empty agent from a broken transport
	if strings.TrimSpace(req.Brief) == "" {
		promRankRequests.WithLabelValues("empty_brief").Inc()
		s.sendRankError(w, http.StatusOK, "empty_brief", "Brief must be non-empty")
		return
	}
	if len(products) == 0 {
		promRankRequests.WithLabelValues("no_products").Inc()
		s.sendRankError(w, http.StatusOK, "no_products", "Agent has no products to rank")
		return
	}

	ranked := s.ranker.Rank(req.Brief, products)
	items := make([]RankItem, 0, len(ranked))
	for _, product := range ranked {
		score := product.Score
		items = append(items, RankItem{
			ProductID: product.ProductID,
			Reason:    product.Reason,
			Score:     &score,
		})
	}

	promRankRequests.WithLabelValues("success").Inc()
	promRankDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	s.logger.InfoWithAgent("", req.ContextID, slug, "Ranked products for brief", map[string]interface{}{
		"product_count": len(items),
	})

	s.sendJSON(w, http.StatusOK, RankResponse{Items: items})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"agents": s.catalog.Slugs(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "admesh-salesagent",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC(),
		"agents":    len(s.catalog.Slugs()),
	})
}

func (s *Server) sendRankError(w http.ResponseWriter, status int, errType, message string) {
	rankErr := &RankError{Type: errType, Message: message}
	if status != http.StatusOK {
		code := status
		rankErr.Status = &code
	}
	s.sendJSON(w, status, RankResponse{Error: rankErr})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
