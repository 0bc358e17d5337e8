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

// Package queries renders the GitHub GraphQL selection sets for the
// three paginated resource kinds the traversal walks: an owner's
// repositories, a repository's issues, and an issue's labels. Every
// variable name carries the sub-query alias as a prefix so any mix of
// these selections can share a single batched wire request.
package queries
