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
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentRosterFile is the YAML file declaring the agents a deployment fans
// briefs out to, following the apiVersion/kind configuration pattern.
type AgentRosterFile struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Metadata   RosterMetadata `yaml:"metadata"`
	Spec       RosterSpec     `yaml:"spec"`
}

// RosterMetadata identifies and describes the roster
type RosterMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// RosterSpec lists the internal and external agents
type RosterSpec struct {
	InternalAgents []InternalAgent `yaml:"internal_agents"`
	ExternalAgents []ExternalAgent `yaml:"external_agents"`
}

// InternalAgent is a sales agent hosted by the local sales-agent service,
// addressed by its tenant slug.
type InternalAgent struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
}

// ExternalAgent is a third-party AdCP ranking endpoint addressed by URL
type ExternalAgent struct {
	Name    string `yaml:"name" json:"name"`
	URL     string `yaml:"url" json:"url"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// RegistryStats provides statistics about the registry for the agents API
type RegistryStats struct {
	InternalCount int       `json:"internal_count"`
	ExternalCount int       `json:"external_count"`
	LastReload    time.Time `json:"last_reload"`
	Source        string    `json:"source"`
}

// AgentRegistry holds the deployment's agent roster with thread-safe access.
// It supplies the default agent lists when an orchestrate request does not
// name agents explicitly.
//
// Agents are sourced from a YAML roster file, optionally overlaid with rows
// from a database source; database entries take priority on slug/URL clashes.
type AgentRegistry struct {
	mu         sync.RWMutex
	internal   []InternalAgent
	external   []ExternalAgent
	dbInternal []InternalAgent
	dbExternal []ExternalAgent
	dbSource   DatabaseAgentSource
	filePath   string
	lastReload time.Time
}

// NewAgentRegistry creates an empty agent registry
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{}
}

// LoadFromFile loads the roster YAML at path, replacing any previously
// file-sourced agents. Database-sourced agents are preserved.
func (r *AgentRegistry) LoadFromFile(path string) error {
	if path == "" {
		return fmt.Errorf("roster file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read roster file %s: %w", path, err)
	}

	roster, err := ParseAgentRoster(data)
	if err != nil {
		return fmt.Errorf("failed to parse roster file %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.internal = roster.Spec.InternalAgents
	r.external = roster.Spec.ExternalAgents
	r.filePath = path
	r.lastReload = time.Now()

	log.Printf("[AgentRegistry] Loaded roster %q: %d internal, %d external agents",
		roster.Metadata.Name, len(r.internal), len(r.external))
	return nil
}

// ParseAgentRoster parses and validates roster YAML
func ParseAgentRoster(data []byte) (*AgentRosterFile, error) {
	var roster AgentRosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if roster.Kind != "" && roster.Kind != "AgentRoster" {
		return nil, fmt.Errorf("unexpected kind %q, want AgentRoster", roster.Kind)
	}

	seen := make(map[string]bool)
	for _, agent := range roster.Spec.InternalAgents {
		if strings.TrimSpace(agent.Slug) == "" {
			return nil, fmt.Errorf("internal agent with empty slug")
		}
		if seen["internal:"+agent.Slug] {
			return nil, fmt.Errorf("duplicate internal agent slug %q", agent.Slug)
		}
		seen["internal:"+agent.Slug] = true
	}
	for _, agent := range roster.Spec.ExternalAgents {
		if strings.TrimSpace(agent.URL) == "" {
			return nil, fmt.Errorf("external agent %q with empty url", agent.Name)
		}
		if seen["external:"+agent.URL] {
			return nil, fmt.Errorf("duplicate external agent url %q", agent.URL)
		}
		seen["external:"+agent.URL] = true
	}

	return &roster, nil
}

// SetDatabaseSource attaches a database source for hybrid mode
func (r *AgentRegistry) SetDatabaseSource(source DatabaseAgentSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbSource = source
}

// LoadFromDatabase refreshes the database-sourced agents, preserving the
// file-sourced ones.
func (r *AgentRegistry) LoadFromDatabase(ctx context.Context) error {
	r.mu.RLock()
	source := r.dbSource
	r.mu.RUnlock()

	if source == nil {
		return fmt.Errorf("database source not configured")
	}

	internal, err := source.ListInternalAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load internal agents from database: %w", err)
	}
	external, err := source.ListExternalAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load external agents from database: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbInternal = internal
	r.dbExternal = external
	r.lastReload = time.Now()

	log.Printf("[AgentRegistry] Loaded %d internal, %d external agents from database",
		len(internal), len(external))
	return nil
}

// Reload re-reads the configured sources
func (r *AgentRegistry) Reload(ctx context.Context) error {
	r.mu.RLock()
	path := r.filePath
	source := r.dbSource
	r.mu.RUnlock()

	if path != "" {
		if err := r.LoadFromFile(path); err != nil {
			return err
		}
	}
	if source != nil {
		if err := r.LoadFromDatabase(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InternalAgents returns merged internal agents, database entries first
func (r *AgentRegistry) InternalAgents() []InternalAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make([]InternalAgent, 0, len(r.dbInternal)+len(r.internal))
	seen := make(map[string]bool)
	for _, agent := range r.dbInternal {
		if !seen[agent.Slug] {
			merged = append(merged, agent)
			seen[agent.Slug] = true
		}
	}
	for _, agent := range r.internal {
		if !seen[agent.Slug] {
			merged = append(merged, agent)
			seen[agent.Slug] = true
		}
	}
	return merged
}

// ExternalAgents returns merged external agents, database entries first
func (r *AgentRegistry) ExternalAgents() []ExternalAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make([]ExternalAgent, 0, len(r.dbExternal)+len(r.external))
	seen := make(map[string]bool)
	for _, agent := range r.dbExternal {
		if !seen[agent.URL] {
			merged = append(merged, agent)
			seen[agent.URL] = true
		}
	}
	for _, agent := range r.external {
		if !seen[agent.URL] {
			merged = append(merged, agent)
			seen[agent.URL] = true
		}
	}
	return merged
}

// InternalSlugs returns the slugs of all registered internal agents
func (r *AgentRegistry) InternalSlugs() []string {
	agents := r.InternalAgents()
	slugs := make([]string, 0, len(agents))
	for _, agent := range agents {
		slugs = append(slugs, agent.Slug)
	}
	return slugs
}

// EnabledExternalURLs returns the URLs of enabled external agents
func (r *AgentRegistry) EnabledExternalURLs() []string {
	agents := r.ExternalAgents()
	urls := make([]string, 0, len(agents))
	for _, agent := range agents {
		if agent.Enabled {
			urls = append(urls, agent.URL)
		}
	}
	return urls
}

// Stats returns registry statistics
func (r *AgentRegistry) Stats() RegistryStats {
	internal := r.InternalAgents()
	external := r.ExternalAgents()

	r.mu.RLock()
	defer r.mu.RUnlock()

	source := "file"
	if r.dbSource != nil {
		if r.filePath != "" {
			source = "hybrid"
		} else {
			source = "database"
		}
	}
	return RegistryStats{
		InternalCount: len(internal),
		ExternalCount: len(external),
		LastReload:    r.lastReload,
		Source:        source,
	}
}
