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

// Package main is the entry point for the AdMesh Sales Agent service.
//
// The Sales Agent hosts the internal AdCP ranking endpoints the
// Orchestrator fans briefs out to. Each tenant slug gets its own rank
// endpoint backed by that tenant's product catalog.
//
// Usage:
//
//	./salesagent
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	CATALOG_FILE - product catalog YAML path (default: config/catalog.yaml)
package main

import (
	"admesh/platform/salesagent"
)

func main() {
	salesagent.Run()
}
