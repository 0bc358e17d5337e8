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

	"github.com/sirseerhq/issue-relay/internal/gql"
	"github.com/sirseerhq/issue-relay/internal/output"
	"github.com/sirseerhq/issue-relay/internal/pipeline"
	"github.com/sirseerhq/issue-relay/internal/report"
	"github.com/spf13/cobra"
)

// fetchCmd represents the fetch command
func newFetchCommand() *cobra.Command {
	var (
		flags      runFlags
		rawOwners  []string
		strategy   string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all open issues and emit them as NDJSON",
		Long: `Fetch every open issue across the configured accounts' public
repositories and emit one NDJSON record per issue.

Authentication is required via GitHub token:
  - Use --token flag to provide token directly
  - Or set GITHUB_TOKEN environment variable

The --strategy flag selects the traversal shape. Both produce the same
issues; "interleaved" folds each repository's first issue page into the
repository listing, which saves a round of requests on accounts with
many small repositories.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.owners = splitOwners(rawOwners)
			return runFetch(cmd.Context(), &flags, strategy, outputFile)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&flags.token, "token", "", "GitHub personal access token (overrides GITHUB_TOKEN env var)")
	cmd.Flags().StringSliceVar(&rawOwners, "owners", nil, "Accounts to fetch (repeatable or comma-separated)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Traversal strategy: sequential or interleaved")
	cmd.Flags().StringVar(&outputFile, "output", "", "Output file path (default: stdout)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Sub-queries per GraphQL request (default from config)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// runFetch executes the fetch command
func runFetch(ctx context.Context, flags *runFlags, strategyFlag, outputFile string) error {
	cfg, err := loadRunConfig(flags)
	if err != nil {
		return err
	}
	token, err := resolveToken(flags, cfg)
	if err != nil {
		return err
	}

	if strategyFlag == "" {
		strategyFlag = cfg.Fetch.Strategy
	}
	strategy, err := pipeline.ParseStrategy(strategyFlag)
	if err != nil {
		return err
	}

	var writer *output.Writer
	if outputFile == "" {
		writer = output.NewWriter(os.Stdout)
	} else {
		writer, err = output.NewFileWriter(outputFile)
		if err != nil {
			return err
		}
	}
	defer writer.Close()

	logger := newLogger(flags.verbose)
	rep := report.New()
	client := gql.NewClient(token, cfg.GitHub.GraphQLEndpoint)
	p := pipeline.New(client, pipelineOptions(cfg, logger, rep))

	logger.Debug("starting fetch",
		"owners", cfg.Owners, "strategy", strategy.String(), "batch_size", cfg.Fetch.BatchSize)

	if err := p.Fetch(ctx, cfg.Owners, strategy, writer.Write); err != nil {
		return err
	}

	rep.WireRequests = int64(client.Requests())
	rep.Summary(os.Stderr, false)
	fmt.Fprintf(os.Stderr, "  %d records written\n", writer.Count())
	return nil
}
