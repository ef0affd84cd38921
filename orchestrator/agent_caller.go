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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// AgentCaller performs single AdCP ranking calls against agent endpoints.
// Every failure mode is folded into a structured CallOutcome; CallAgent never
// returns an error and never panics on agent misbehavior.
type AgentCaller struct {
	httpClient *http.Client
}

// CallOutcome is the uniform result of one agent call attempt
type CallOutcome struct {
	Success    bool
	Items      []RankItem
	Err        *AgentError
	StatusCode int
	DurationMS int64
}

// NewAgentCaller creates an agent caller with a pooled HTTP client.
// Per-call deadlines come from the context, not the client.
func NewAgentCaller() *AgentCaller {
	return &AgentCaller{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CallAgent issues one AdCP ranking request to agentURL bounded by timeoutMS.
//
// Classification of the outcome is typed, never based on error-string
// inspection: a context deadline becomes a "timeout" outcome (status 408), a
// non-200 response becomes "http" with the actual status, a 200 body that
// fails contract validation becomes "invalid_response", any other transport
// failure becomes "internal" (status 500). A 200 carrying a well-formed AdCP
// error payload is surfaced as that error.
//
// CallAgent does no circuit-breaker bookkeeping; the orchestrator translates
// outcomes into breaker updates.
func (c *AgentCaller) CallAgent(ctx context.Context, agentURL, brief string, timeoutMS int, contextID string) CallOutcome {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(RankRequest{Brief: brief, ContextID: contextID})
	if err != nil {
		return c.failure(start, internalError(fmt.Sprintf("Unexpected error: %v", err)), http.StatusInternalServerError)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, agentURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return c.failure(start, internalError(fmt.Sprintf("Unexpected error: %v", err)), http.StatusInternalServerError)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return c.failure(start, &AgentError{
				Type:    ErrTypeTimeout,
				Message: fmt.Sprintf("Request timed out after %dms", timeoutMS),
				Status:  intPtr(http.StatusRequestTimeout),
			}, http.StatusRequestTimeout)
		}
		return c.failure(start, internalError(fmt.Sprintf("Unexpected error: %v", err)), http.StatusInternalServerError)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return c.failure(start, &AgentError{
				Type:    ErrTypeTimeout,
				Message: fmt.Sprintf("Request timed out after %dms", timeoutMS),
				Status:  intPtr(http.StatusRequestTimeout),
			}, http.StatusRequestTimeout)
		}
		return c.failure(start, internalError(fmt.Sprintf("Unexpected error: %v", err)), http.StatusInternalServerError)
	}

	if resp.StatusCode != http.StatusOK {
		return c.failure(start, &AgentError{
			Type:    ErrTypeHTTP,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			Status:  intPtr(resp.StatusCode),
		}, resp.StatusCode)
	}

	parsed, err := ParseRankResponse(body)
	if err != nil {
		return c.failure(start, &AgentError{
			Type:    ErrTypeInvalidResponse,
			Message: ErrInvalidContract.Error(),
			Status:  intPtr(resp.StatusCode),
		}, resp.StatusCode)
	}

	if parsed.Err != nil {
		// Well-formed AdCP error payload from the remote agent
		return c.failure(start, parsed.Err, resp.StatusCode)
	}

	items := parsed.Items
	if items == nil {
		items = []RankItem{}
	}
	return CallOutcome{
		Success:    true,
		Items:      items,
		StatusCode: resp.StatusCode,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

func (c *AgentCaller) failure(start time.Time, agentErr *AgentError, statusCode int) CallOutcome {
	return CallOutcome{
		Success:    false,
		Items:      []RankItem{},
		Err:        agentErr,
		StatusCode: statusCode,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// isTimeout reports whether err is a deadline/timeout failure
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func internalError(message string) *AgentError {
	return &AgentError{
		Type:    ErrTypeInternal,
		Message: message,
		Status:  intPtr(http.StatusInternalServerError),
	}
}

func intPtr(v int) *int {
	return &v
}
