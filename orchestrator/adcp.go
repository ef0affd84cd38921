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
)

// AdCP ranking contract
//
// Request:  {"brief": "<string>", "context_id": "<string, optional>"}
// Success:  {"items": [{"product_id": "...", "reason": "...", "score": 0.9}]}
// Error:    {"error": {"type": "...", "message": "...", "status": 503}}
//
// A payload with both "items" and "error", neither key, or malformed fields
// is invalid regardless of the HTTP status it arrived with.

// RankRequest is the AdCP request body sent to every agent
type RankRequest struct {
	Brief     string `json:"brief"`
	ContextID string `json:"context_id,omitempty"`
}

// RankItem is a single ranked product in an AdCP success response
type RankItem struct {
	ProductID string   `json:"product_id"`
	Reason    string   `json:"reason"`
	Score     *float64 `json:"score,omitempty"`
}

// AgentError is the structured error attached to a failed agent result
type AgentError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  *int   `json:"status,omitempty"`
}

// Agent error types
const (
	ErrTypeTimeout         = "timeout"
	ErrTypeHTTP            = "http"
	ErrTypeInvalidResponse = "invalid_response"
	ErrTypeBreaker         = "breaker"
	ErrTypeInternal        = "internal"
)

// ErrInvalidContract reports a 200 response whose body does not match the
// AdCP ranking contract in either its success or error variant.
var ErrInvalidContract = errors.New("Agent response does not match AdCP contract")

// RankResponse is the parsed form of a valid AdCP ranking response.
// Exactly one of Items or Err is populated.
type RankResponse struct {
	Items []RankItem
	Err   *AgentError
}

// ParseRankResponse validates and parses an agent response body against the
// AdCP ranking contract. It attempts the success variant and the error
// variant; any body matching neither returns ErrInvalidContract.
func ParseRankResponse(data []byte) (*RankResponse, error) {
	// Pointer raw-message fields distinguish "absent" from "present but null"
	var envelope struct {
		Items *json.RawMessage `json:"items"`
		Error *json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrInvalidContract
	}

	switch {
	case envelope.Items != nil && envelope.Error != nil:
		return nil, ErrInvalidContract
	case envelope.Error != nil:
		agentErr, err := parseAgentError(*envelope.Error)
		if err != nil {
			return nil, ErrInvalidContract
		}
		return &RankResponse{Err: agentErr}, nil
	case envelope.Items != nil:
		items, err := parseRankItems(*envelope.Items)
		if err != nil {
			return nil, ErrInvalidContract
		}
		return &RankResponse{Items: items}, nil
	default:
		return nil, ErrInvalidContract
	}
}

func parseAgentError(raw json.RawMessage) (*AgentError, error) {
	// Pointers catch missing fields; typed fields catch wrong JSON types
	var decoded struct {
		Type    *string  `json:"type"`
		Message *string  `json:"message"`
		Status  *float64 `json:"status"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	if decoded.Type == nil || decoded.Message == nil {
		return nil, ErrInvalidContract
	}

	agentErr := &AgentError{
		Type:    *decoded.Type,
		Message: *decoded.Message,
	}
	if decoded.Status != nil {
		status := int(*decoded.Status)
		agentErr.Status = &status
	}
	return agentErr, nil
}

func parseRankItems(raw json.RawMessage) ([]RankItem, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, err
	}

	items := make([]RankItem, 0, len(elements))
	for _, element := range elements {
		var decoded struct {
			ProductID *string  `json:"product_id"`
			Reason    *string  `json:"reason"`
			Score     *float64 `json:"score"`
		}
		if err := json.Unmarshal(element, &decoded); err != nil {
			return nil, err
		}
		if decoded.ProductID == nil || decoded.Reason == nil {
			return nil, ErrInvalidContract
		}
		items = append(items, RankItem{
			ProductID: *decoded.ProductID,
			Reason:    *decoded.Reason,
			Score:     decoded.Score,
		})
	}
	return items, nil
}
