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
	"log"
	"net/http"
	"os"

	"github.com/rs/cors"
)

// Run is the exported entry point for the sales-agent service.
//
// It loads the product catalog, wires the ranker and HTTP routes, then
// starts the server. The function blocks until the server is shut down.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8080)
//   - CATALOG_FILE: product catalog YAML path (default: config/catalog.yaml)
func Run() {
	log.Println("Starting AdMesh Sales Agent...")

	catalog := NewProductCatalog()
	catalogPath := getEnv("CATALOG_FILE", "config/catalog.yaml")
	if err := catalog.LoadFromFile(catalogPath); err != nil {
		log.Fatalf("Failed to load product catalog from %s: %v", catalogPath, err)
	}

	server := NewServer(catalog, NewKeywordRanker())

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := getEnv("PORT", "8080")
	handler := c.Handler(server.Routes())
	log.Printf("AdMesh Sales Agent listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
