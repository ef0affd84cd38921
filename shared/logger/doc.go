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

/*
Package logger provides structured JSON logging shared by the AdMesh
orchestrator and sales-agent services.

Entries are written to stdout as single-line JSON so container platforms can
collect them without extra configuration. Each entry carries the component
name, deployment instance id, container hostname, calling client id, and the
AdCP context id when one is in flight, which makes it possible to follow a
single brief fan-out across both services.

Usage:

	l := logger.New("orchestrator")
	l.Info(clientID, contextID, "Fan-out complete", map[string]interface{}{
		"total_agents": 3,
	})
*/
package logger
