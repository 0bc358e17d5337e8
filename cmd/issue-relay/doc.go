// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main implements the issue-relay command-line interface.
// The tool retrieves the complete set of open issues across all public
// repositories of configured GitHub accounts using batched GraphQL
// queries, either as a one-shot NDJSON stream or as an incrementally
// maintained local database.
//
// Usage:
//
//	issue-relay fetch [flags]
//	issue-relay sync [flags]
//	issue-relay ratelimit [flags]
//
// Example:
//
//	export GITHUB_TOKEN=your_token
//	issue-relay fetch --owners golang,kubernetes --output issues.ndjson
//	issue-relay sync --owners golang --snapshot issues.json
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication/authorization error
//   - 3: Network error
package main
