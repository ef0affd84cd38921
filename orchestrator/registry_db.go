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
	"fmt"
)

// DatabaseAgentSource loads agent roster entries from a database. The
// registry reads it for hybrid mode; agent CRUD lives elsewhere (the admin
// application owns the tables).
type DatabaseAgentSource interface {
	// ListInternalAgents returns the active internal tenant agents
	ListInternalAgents(ctx context.Context) ([]InternalAgent, error)

	// ListExternalAgents returns the registered external agent endpoints
	ListExternalAgents(ctx context.Context) ([]ExternalAgent, error)
}

// SQLAgentSource is a read-only DatabaseAgentSource backed by the admin
// application's Postgres schema (tenants + external_agents tables).
type SQLAgentSource struct {
	db *sql.DB
}

// NewSQLAgentSource creates a SQL-backed agent source
func NewSQLAgentSource(db *sql.DB) *SQLAgentSource {
	return &SQLAgentSource{db: db}
}

// ListInternalAgents returns active tenants as internal agents
func (s *SQLAgentSource) ListInternalAgents(ctx context.Context) ([]InternalAgent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, name FROM tenants WHERE active = true ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []InternalAgent
	for rows.Next() {
		var agent InternalAgent
		if err := rows.Scan(&agent.Slug, &agent.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant row iteration failed: %w", err)
	}
	return agents, nil
}

// ListExternalAgents returns the registered external agent endpoints
func (s *SQLAgentSource) ListExternalAgents(ctx context.Context) ([]ExternalAgent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, url, enabled FROM external_agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query external agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []ExternalAgent
	for rows.Next() {
		var agent ExternalAgent
		if err := rows.Scan(&agent.Name, &agent.URL, &agent.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan external agent row: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("external agent row iteration failed: %w", err)
	}
	return agents, nil
}
