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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrchestrator wires an orchestrator against a stub sales-agent
// service. The handler receives the internal slug extracted from the path.
func newTestOrchestrator(t *testing.T, handler func(slug string, w http.ResponseWriter, r *http.Request)) (*Orchestrator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /mcp/agents/{slug}/rank
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 || parts[0] != "mcp" || parts[1] != "agents" || parts[3] != "rank" {
			http.NotFound(w, r)
			return
		}
		handler(parts[2], w, r)
	}))
	t.Cleanup(srv.Close)

	orch := NewOrchestrator(NewCircuitBreaker(3, time.Minute), NewAgentCaller(), srv.URL, 5000, DefaultConcurrency)
	return orch, srv
}

func itemsBody(productID string) string {
	return fmt.Sprintf(`{"items":[{"product_id":"%s","reason":"match","score":0.9}]}`, productID)
}

func TestOrchestrate_SingleInternalAgentSuccess(t *testing.T) {
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pub-a", slug)
		_, _ = w.Write([]byte(`{"items":[{"product_id":"p1","reason":"match","score":0.9}]}`))
	})

	result, err := orch.Orchestrate(context.Background(), "Sports campaign", []string{"pub-a"}, nil, 0)
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	entry := result.Results[0]
	assert.Equal(t, AgentRef{Type: "internal", Slug: "pub-a"}, entry.Agent)
	assert.Nil(t, entry.Error)
	require.Len(t, entry.Items, 1)
	assert.Equal(t, "p1", entry.Items[0].ProductID)
	assert.Equal(t, "match", entry.Items[0].Reason)
	require.NotNil(t, entry.Items[0].Score)
	assert.Equal(t, 0.9, *entry.Items[0].Score)

	assert.Equal(t, 1, result.TotalAgents)
	assert.NotEmpty(t, result.ContextID)
	assert.Equal(t, 5000, result.TimeoutMS)
}

func TestOrchestrate_OrderingIsConstructionOrder(t *testing.T) {
	// Internal agent "a" resolves slower than "b"; external "c" slower
	// than "d". Output order must still be [a, b, c, d].
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		if slug == "a" {
			time.Sleep(150 * time.Millisecond)
		}
		_, _ = w.Write([]byte(itemsBody("from-" + slug)))
	})

	extSlow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte(itemsBody("from-c")))
	}))
	defer extSlow.Close()
	extFast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(itemsBody("from-d")))
	}))
	defer extFast.Close()

	result, err := orch.Orchestrate(context.Background(), "brief", []string{"a", "b"}, []string{extSlow.URL, extFast.URL}, 0)
	require.NoError(t, err)
	require.Len(t, result.Results, 4)

	assert.Equal(t, AgentRef{Type: "internal", Slug: "a"}, result.Results[0].Agent)
	assert.Equal(t, AgentRef{Type: "internal", Slug: "b"}, result.Results[1].Agent)
	assert.Equal(t, AgentRef{Type: "external", URL: extSlow.URL}, result.Results[2].Agent)
	assert.Equal(t, AgentRef{Type: "external", URL: extFast.URL}, result.Results[3].Agent)

	assert.Equal(t, "from-a", result.Results[0].Items[0].ProductID)
	assert.Equal(t, "from-d", result.Results[3].Items[0].ProductID)
	assert.Equal(t, 4, result.TotalAgents)
}

func TestOrchestrate_InputValidation(t *testing.T) {
	var calls int64
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	tests := []struct {
		name     string
		brief    string
		internal []string
		external []string
		wantErr  error
	}{
		{"empty brief", "", []string{"pub-a"}, nil, ErrEmptyBrief},
		{"whitespace brief", "   \t\n", []string{"pub-a"}, nil, ErrEmptyBrief},
		{"no agents", "brief", nil, nil, ErrNoAgents},
		{"empty agent lists", "brief", []string{}, []string{}, ErrNoAgents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := orch.Orchestrate(context.Background(), tt.brief, tt.internal, tt.external, 0)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Validation failures must never reach the transport
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
}

func TestOrchestrate_TimeoutIsolation(t *testing.T) {
	// Agent "slow" exceeds the budget while "fast" succeeds within it;
	// both entries must appear, each with its own outcome.
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		if slug == "slow" {
			time.Sleep(400 * time.Millisecond)
		}
		_, _ = w.Write([]byte(itemsBody("from-" + slug)))
	})

	result, err := orch.Orchestrate(context.Background(), "brief", []string{"slow", "fast"}, nil, 100)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	slow := result.Results[0]
	require.NotNil(t, slow.Error)
	assert.Equal(t, ErrTypeTimeout, slow.Error.Type)
	require.NotNil(t, slow.Error.Status)
	assert.Equal(t, http.StatusRequestTimeout, *slow.Error.Status)
	assert.Empty(t, slow.Items)

	fast := result.Results[1]
	assert.Nil(t, fast.Error)
	require.Len(t, fast.Items, 1)
	assert.Equal(t, "from-fast", fast.Items[0].ProductID)

	assert.Equal(t, 100, result.TimeoutMS)
}

func TestOrchestrate_BreakerSkipMakesNoHTTPCall(t *testing.T) {
	var calls int64
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	// Open the breaker for pub-a up front
	for i := 0; i < 3; i++ {
		orch.breaker.RecordFailure("internal:pub-a")
	}

	result, err := orch.Orchestrate(context.Background(), "brief", []string{"pub-a", "pub-b"}, nil, 0)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	skipped := result.Results[0]
	require.NotNil(t, skipped.Error)
	assert.Equal(t, ErrTypeBreaker, skipped.Error.Type)
	assert.Equal(t, "Circuit breaker open - agent skipped", skipped.Error.Message)
	assert.Nil(t, skipped.Error.Status)
	assert.Empty(t, skipped.Items)

	called := result.Results[1]
	assert.Nil(t, called.Error)

	// Skipped agents still count toward the total but never hit the wire
	assert.Equal(t, 2, result.TotalAgents)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestOrchestrate_RepeatedFailuresOpenBreaker(t *testing.T) {
	var calls int64
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	// Three failing fan-outs reach the threshold
	for i := 0; i < 3; i++ {
		result, err := orch.Orchestrate(context.Background(), "brief", []string{"x"}, nil, 0)
		require.NoError(t, err)
		require.NotNil(t, result.Results[0].Error)
		assert.Equal(t, ErrTypeHTTP, result.Results[0].Error.Type)
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))

	// Fourth fan-out: breaker short-circuits, transport untouched
	result, err := orch.Orchestrate(context.Background(), "brief", []string{"x"}, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, result.Results[0].Error)
	assert.Equal(t, ErrTypeBreaker, result.Results[0].Error.Type)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestOrchestrate_SuccessClearsBreakerMidway(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	for i := 0; i < 2; i++ {
		_, err := orch.Orchestrate(context.Background(), "brief", []string{"x"}, nil, 0)
		require.NoError(t, err)
	}

	// Agent recovers before reaching the threshold
	fail.Store(false)
	result, err := orch.Orchestrate(context.Background(), "brief", []string{"x"}, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, result.Results[0].Error)
	assert.Equal(t, 0, orch.breaker.TrackedAgents())
}

func TestOrchestrate_ConcurrencyCap(t *testing.T) {
	var inFlight, peak int64
	blocker := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if current <= old || atomic.CompareAndSwapInt64(&peak, old, current) {
				break
			}
		}
		<-blocker
		atomic.AddInt64(&inFlight, -1)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	orch := NewOrchestrator(NewCircuitBreaker(3, time.Minute), NewAgentCaller(), srv.URL, 5000, 2)

	done := make(chan *OrchestrateResult)
	go func() {
		result, err := orch.Orchestrate(context.Background(), "brief",
			[]string{"a", "b", "c", "d", "e"}, nil, 5000)
		require.NoError(t, err)
		done <- result
	}()

	// Let calls saturate the limiter, then release them all
	time.Sleep(200 * time.Millisecond)
	close(blocker)
	result := <-done

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2), "no more than 2 calls may be in flight")
	assert.Len(t, result.Results, 5)
	for _, entry := range result.Results {
		assert.Nil(t, entry.Error)
	}
}

func TestOrchestrate_ContextIDIsFreshPerInvocation(t *testing.T) {
	seen := make(chan string, 2)
	orch, _ := newTestOrchestrator(t, func(slug string, w http.ResponseWriter, r *http.Request) {
		var req RankRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		seen <- req.ContextID
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	first, err := orch.Orchestrate(context.Background(), "brief", []string{"x"}, nil, 0)
	require.NoError(t, err)
	second, err := orch.Orchestrate(context.Background(), "brief", []string{"x"}, nil, 0)
	require.NoError(t, err)

	assert.NotEqual(t, first.ContextID, second.ContextID)
	assert.Equal(t, first.ContextID, <-seen)
	assert.Equal(t, second.ContextID, <-seen)
}

func TestInternalAgentURL(t *testing.T) {
	orch := NewOrchestrator(NewCircuitBreaker(3, time.Minute), NewAgentCaller(), "http://localhost:8080/", 0, 0)
	assert.Equal(t, "http://localhost:8080/mcp/agents/pub-a/rank", orch.InternalAgentURL("pub-a"))
}
