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

// Package salesagent implements the internal sales-agent ranking service.
//
// The service hosts one AdCP ranking endpoint per tenant slug
// (POST /mcp/agents/{slug}/rank). Each tenant's product catalog is loaded
// from a YAML file, and incoming briefs are scored against it by a
// pluggable Ranker. Responses follow the AdCP contract: a ranked items
// list on success, or a structured error payload.
package salesagent
