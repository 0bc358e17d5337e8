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

// Package gql implements the batched GraphQL wire layer: it merges
// independently-addressed, aliased sub-queries into a single request
// against the GitHub GraphQL API and routes each slice of the response
// (payload or error) back to its originating sub-query.
//
// Response attribution is strictly positional by alias. Sub-query errors
// arrive with a GraphQL path whose first element is the alias; those are
// surfaced per sub-query so a failing resource never aborts the rest of
// the batch. Errors without a usable path fail the request as a whole.
package gql
