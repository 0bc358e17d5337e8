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

package main

import (
	"errors"
	"fmt"
	"os"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "issue-relay",
		Short: "Retrieve open issues across GitHub accounts",
		Long: `issue-relay retrieves the complete set of open issues across all public,
non-archived repositories of the configured GitHub accounts. It batches
many paginated GraphQL queries into each wire request, which keeps large
multi-account fetches within a small request budget.`,
		Version:       version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
	}

	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newRateLimitCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mapErrorToExitCode(err))
	}
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, relayerrors.ErrInvalidToken) ||
		errors.Is(err, relayerrors.ErrOwnerNotFound) ||
		errors.Is(err, relayerrors.ErrRateLimit) {
		return 2 // Authentication/authorization errors
	}

	if errors.Is(err, relayerrors.ErrNetworkFailure) ||
		errors.Is(err, relayerrors.ErrRetryBudget) {
		return 3 // Network errors
	}

	return 1 // General error
}
