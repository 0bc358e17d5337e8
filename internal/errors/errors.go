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

// Package errors defines sentinel errors for consistent error handling across the application.
// These errors map to specific exit codes in the CLI for proper scripting support.
package errors

import "errors"

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrInvalidToken indicates GitHub authentication failed.
	// Maps to exit code 2.
	ErrInvalidToken = errors.New("invalid github token")

	// ErrOwnerNotFound indicates a configured account does not exist or is not accessible.
	// Maps to exit code 2.
	ErrOwnerNotFound = errors.New("account not found")

	// ErrRateLimit indicates GitHub API rate limit has been exceeded and the
	// retry budget did not cover the reset window.
	// Maps to exit code 2.
	ErrRateLimit = errors.New("github rate limit exceeded")

	// ErrNetworkFailure indicates a network connection problem.
	// Maps to exit code 3.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrRetryBudget indicates a transient failure persisted past the maximum
	// number of retry attempts.
	// Maps to exit code 3.
	ErrRetryBudget = errors.New("retry budget exhausted")

	// ErrMalformedResponse indicates the GraphQL response did not have the
	// expected shape. This is never retried.
	// Maps to exit code 1.
	ErrMalformedResponse = errors.New("malformed graphql response")
)
