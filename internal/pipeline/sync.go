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

package pipeline

import (
	"context"

	"github.com/sirseerhq/issue-relay/internal/snapshot"
)

// Sync runs an incremental traversal across owners and merges it into
// the snapshot in place. The caller persists the snapshot afterwards;
// on any error the snapshot must be discarded unwritten, since a
// partially merged state would corrupt the next run's delta baseline.
//
// Sync always uses the sequential traversal: the per-repository fetch
// policy depends on the listing's fresh open-issue counts, so issue
// queries cannot be built before the listing completes.
func (p *Pipeline) Sync(ctx context.Context, owners []string, snap *snapshot.Snapshot) error {
	// The delta baseline for the NEXT run. Captured before the first
	// request so updates racing the fetch are seen again next time
	// rather than lost; re-seeing them is harmless by merge idempotence.
	runStart := p.opts.Now()

	repos, err := p.fetchRepos(ctx, owners, false)
	if err != nil {
		return err
	}
	p.opts.Report.RepoDiff.Add(snap.ApplyRepositories(repos))

	// Plan reads each repository's pre-run bookkeeping, so it must
	// happen before Finalize rewrites it.
	plan := snap.IssueQueries()

	fetches := make([]issueFetch, 0, len(plan))
	for _, q := range plan {
		p.opts.Log.Debug("planned issue fetch",
			"repo", q.RepoName, "policy", q.Policy.String())
		fetches = append(fetches, issueFetch{repoID: q.RepoID, since: q.Since})
	}

	issuesByRepo, err := p.fetchIssues(ctx, fetches)
	if err != nil {
		return err
	}

	// Labels complete before any merge so a stored issue never carries
	// a truncated label set.
	if err := p.escalateLabels(ctx, issuesByRepo); err != nil {
		return err
	}

	for _, q := range plan {
		diff := snap.ApplyIssues(q.RepoID, issuesByRepo[q.RepoID])
		p.opts.Report.IssueDiff.Add(diff)
	}

	snap.Finalize(p.opts.Report.RunID, runStart)
	return nil
}
