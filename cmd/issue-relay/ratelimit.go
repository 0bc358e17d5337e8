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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirseerhq/issue-relay/internal/config"
	"github.com/sirseerhq/issue-relay/internal/github"
	"github.com/spf13/cobra"
)

// rateLimitCmd represents the ratelimit command
func newRateLimitCommand() *cobra.Command {
	var (
		configPath string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Show current GitHub API quota",
		Long: `Show the current REST and GraphQL rate-limit status for the
authenticated token. Useful for sizing --batch-size before a large run:
each wire request costs roughly one GraphQL point per sub-query.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRateLimit(cmd.Context(), configPath, token)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&token, "token", "", "GitHub personal access token (overrides GITHUB_TOKEN env var)")

	return cmd
}

// runRateLimit executes the ratelimit command
func runRateLimit(ctx context.Context, configPath, tokenFlag string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	token := tokenFlag
	if token == "" {
		token = cfg.Token()
	}
	if token == "" {
		return fmt.Errorf("GitHub token not found. Set GITHUB_TOKEN or use --token flag")
	}

	quota, err := github.NewProbe(token, cfg.GitHub.GraphQLEndpoint).Check(ctx)
	if err != nil {
		return err
	}

	limits, err := github.RateLimits(ctx, token, cfg.GitHub.APIEndpoint)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	label := color.New(color.FgCyan)

	bold.Fprintf(os.Stdout, "Authenticated as %s\n", quota.Viewer)
	label.Fprint(os.Stdout, "  graphql  ")
	fmt.Fprintf(os.Stdout, "%d/%d remaining, resets %s\n",
		quota.Remaining, quota.Limit, quota.ResetAt.Local().Format(time.Kitchen))

	if core := limits.GetCore(); core != nil {
		label.Fprint(os.Stdout, "  core     ")
		fmt.Fprintf(os.Stdout, "%d/%d remaining, resets %s\n",
			core.Remaining, core.Limit, core.Reset.Local().Format(time.Kitchen))
	}
	if search := limits.GetSearch(); search != nil {
		label.Fprint(os.Stdout, "  search   ")
		fmt.Fprintf(os.Stdout, "%d/%d remaining, resets %s\n",
			search.Remaining, search.Limit, search.Reset.Local().Format(time.Kitchen))
	}
	return nil
}
