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
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Product is one sellable ad product in a tenant's catalog
type Product struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
}

// ProductCatalogFile is the YAML file declaring per-tenant product catalogs,
// following the apiVersion/kind configuration pattern.
type ProductCatalogFile struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Metadata   CatalogMetadata `yaml:"metadata"`
	Spec       CatalogSpec     `yaml:"spec"`
}

// CatalogMetadata identifies and describes the catalog
type CatalogMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CatalogSpec maps tenant slugs to their product lists
type CatalogSpec struct {
	Agents []AgentCatalog `yaml:"agents"`
}

// AgentCatalog is one tenant's slice of the catalog file
type AgentCatalog struct {
	Slug     string    `yaml:"slug"`
	Products []Product `yaml:"products"`
}

// ProductCatalog holds the per-tenant product inventories with thread-safe
// access. Catalogs are keyed by tenant slug.
type ProductCatalog struct {
	mu         sync.RWMutex
	products   map[string][]Product
	filePath   string
	lastReload time.Time
}

// NewProductCatalog creates an empty product catalog
func NewProductCatalog() *ProductCatalog {
	return &ProductCatalog{products: make(map[string][]Product)}
}

// LoadFromFile loads the catalog YAML at path, replacing the current contents
func (c *ProductCatalog) LoadFromFile(path string) error {
	if path == "" {
		return fmt.Errorf("catalog file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	catalog, err := ParseProductCatalog(data)
	if err != nil {
		return fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	products := make(map[string][]Product, len(catalog.Spec.Agents))
	total := 0
	for _, agent := range catalog.Spec.Agents {
		products[agent.Slug] = agent.Products
		total += len(agent.Products)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.filePath = path
	c.lastReload = time.Now()

	log.Printf("[ProductCatalog] Loaded catalog %q: %d agents, %d products",
		catalog.Metadata.Name, len(products), total)
	return nil
}

// ParseProductCatalog parses and validates catalog YAML
func ParseProductCatalog(data []byte) (*ProductCatalogFile, error) {
	var catalog ProductCatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if catalog.Kind != "" && catalog.Kind != "ProductCatalog" {
		return nil, fmt.Errorf("unexpected kind %q, want ProductCatalog", catalog.Kind)
	}

	seenSlugs := make(map[string]bool)
	for _, agent := range catalog.Spec.Agents {
		if strings.TrimSpace(agent.Slug) == "" {
			return nil, fmt.Errorf("agent catalog with empty slug")
		}
		if seenSlugs[agent.Slug] {
			return nil, fmt.Errorf("duplicate agent slug %q", agent.Slug)
		}
		seenSlugs[agent.Slug] = true

		seenIDs := make(map[string]bool)
		for _, product := range agent.Products {
			if strings.TrimSpace(product.ID) == "" {
				return nil, fmt.Errorf("agent %q has a product with empty id", agent.Slug)
			}
			if seenIDs[product.ID] {
				return nil, fmt.Errorf("agent %q has duplicate product id %q", agent.Slug, product.ID)
			}
			seenIDs[product.ID] = true
		}
	}

	return &catalog, nil
}

// Products returns the product list for slug and whether the slug is known
func (c *ProductCatalog) Products(slug string) ([]Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	products, ok := c.products[slug]
	return products, ok
}

// Slugs returns the known tenant slugs
func (c *ProductCatalog) Slugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slugs := make([]string, 0, len(c.products))
	for slug := range c.products {
		slugs = append(slugs, slug)
	}
	return slugs
}

// Reload re-reads the catalog file the catalog was loaded from
func (c *ProductCatalog) Reload() error {
	c.mu.RLock()
	path := c.filePath
	c.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("catalog was not loaded from a file")
	}
	return c.LoadFromFile(path)
}
