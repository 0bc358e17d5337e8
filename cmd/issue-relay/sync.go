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
	"github.com/sirseerhq/issue-relay/internal/pipeline"
	"github.com/sirseerhq/issue-relay/internal/report"
	"github.com/sirseerhq/issue-relay/internal/snapshot"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command
func newSyncCommand() *cobra.Command {
	var (
		flags        runFlags
		rawOwners    []string
		snapshotPath string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Incrementally sync open issues into a local database",
		Long: `Sync maintains a local database of open issues across runs. The first
run fetches everything; later runs only fetch issues updated since the
previous run and fold them in, retiring issues that closed.

The database file extension selects the backend: .db, .sqlite or
.sqlite3 for SQLite, anything else for checksummed JSON.

The database is only written after a fully successful run. A failed run
leaves the previous database untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.owners = splitOwners(rawOwners)
			return runSync(cmd.Context(), &flags, snapshotPath)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&flags.token, "token", "", "GitHub personal access token (overrides GITHUB_TOKEN env var)")
	cmd.Flags().StringSliceVar(&rawOwners, "owners", nil, "Accounts to sync (repeatable or comma-separated)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Database file path (default from config)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Sub-queries per GraphQL request (default from config)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// runSync executes the sync command
func runSync(ctx context.Context, flags *runFlags, snapshotPath string) error {
	cfg, err := loadRunConfig(flags)
	if err != nil {
		return err
	}
	token, err := resolveToken(flags, cfg)
	if err != nil {
		return err
	}

	if snapshotPath == "" {
		snapshotPath = cfg.Snapshot.Path
	}
	store, err := snapshot.NewStore(snapshotPath)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(ctx)
	if err != nil {
		return err
	}

	logger := newLogger(flags.verbose)
	rep := report.New()
	client := gql.NewClient(token, cfg.GitHub.GraphQLEndpoint)
	p := pipeline.New(client, pipelineOptions(cfg, logger, rep))

	logger.Debug("starting sync",
		"owners", cfg.Owners, "snapshot", snapshotPath,
		"tracked_repos", len(snap.Repos), "tracked_issues", snap.IssueCount())

	if err := p.Sync(ctx, cfg.Owners, snap); err != nil {
		// Leave the stored snapshot as it was; a partial merge must
		// never become the next run's baseline.
		return err
	}

	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	rep.WireRequests = int64(client.Requests())
	rep.Summary(os.Stderr, true)
	fmt.Fprintf(os.Stderr, "  %d repositories, %d issues tracked\n", len(snap.Repos), snap.IssueCount())
	return nil
}
