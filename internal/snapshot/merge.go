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

package snapshot

import (
	"fmt"
	"time"

	"github.com/sirseerhq/issue-relay/internal/queries"
)

// RepoDiff counts what one run's repository listing changed.
type RepoDiff struct {
	// Added counts repositories seen for the first time.
	Added int
	// Modified counts tracked repositories whose listing data changed.
	Modified int
	// PrunedIssues counts issues dropped wholesale because their
	// repository reported zero open issues.
	PrunedIssues int
}

func (d RepoDiff) String() string {
	return fmt.Sprintf("%d repositories added, %d modified, %d issues pruned",
		d.Added, d.Modified, d.PrunedIssues)
}

// Add accumulates another diff into d.
func (d *RepoDiff) Add(o RepoDiff) {
	d.Added += o.Added
	d.Modified += o.Modified
	d.PrunedIssues += o.PrunedIssues
}

// IssueDiff counts what merging one fetched issue stream changed.
type IssueDiff struct {
	// Added counts open issues not previously tracked.
	Added int
	// Modified counts tracked issues replaced with changed data.
	Modified int
	// OpenClosed counts tracked issues removed because they closed.
	OpenClosed int
	// AlreadyClosed counts closed issues from a delta fetch that were
	// never tracked; nothing to do for them.
	AlreadyClosed int
}

func (d IssueDiff) String() string {
	return fmt.Sprintf("%d issues added, %d modified, %d closed (%d already untracked)",
		d.Added, d.Modified, d.OpenClosed, d.AlreadyClosed)
}

// Add accumulates another diff into d.
func (d *IssueDiff) Add(o IssueDiff) {
	d.Added += o.Added
	d.Modified += o.Modified
	d.OpenClosed += o.OpenClosed
	d.AlreadyClosed += o.AlreadyClosed
}

// FetchPolicy selects how a repository's issues are fetched this run.
type FetchPolicy int

const (
	// PolicyFullOpen fetches every currently open issue with no time
	// bound. Used when the previous run left nothing tracked, so there
	// are no stale entries a delta would need to retire.
	PolicyFullOpen FetchPolicy = iota

	// PolicyDelta fetches open and closed issues updated at or after
	// the last completed run's start. Closed results retire their
	// tracked counterparts.
	PolicyDelta
)

func (p FetchPolicy) String() string {
	if p == PolicyDelta {
		return "delta"
	}
	return "full-open"
}

// IssueQuery is one repository's fetch assignment for this run.
type IssueQuery struct {
	RepoID   string
	RepoName string
	Policy   FetchPolicy

	// Since is the inclusive lower bound on updatedAt under
	// PolicyDelta; zero under PolicyFullOpen.
	Since time.Time
}

// ApplyRepositories folds one run's complete repository listing into
// the snapshot. New repositories are added, tracked ones updated, and
// any repository now reporting zero open issues has its issue map
// cleared without an issue fetch. Repositories absent from the listing
// are left exactly as they were.
//
// Must be called before IssueQueries for the same run.
func (s *Snapshot) ApplyRepositories(repos []queries.Repo) RepoDiff {
	var diff RepoDiff
	if s.seen == nil {
		s.seen = make(map[string]bool, len(repos))
	}

	for _, fresh := range repos {
		s.seen[fresh.ID] = true

		r, ok := s.Repos[fresh.ID]
		if !ok {
			s.Repos[fresh.ID] = &Repository{
				ID:             fresh.ID,
				Owner:          fresh.Owner,
				Name:           fresh.Name,
				OpenIssueCount: fresh.OpenIssueCount,
				Issues:         make(map[string]Issue),
			}
			diff.Added++
			continue
		}

		if r.Owner != fresh.Owner || r.Name != fresh.Name || r.OpenIssueCount != fresh.OpenIssueCount {
			r.Owner = fresh.Owner
			r.Name = fresh.Name
			r.OpenIssueCount = fresh.OpenIssueCount
			diff.Modified++
		}
		if fresh.OpenIssueCount == 0 && len(r.Issues) > 0 {
			diff.PrunedIssues += len(r.Issues)
			r.Issues = make(map[string]Issue)
		}
	}
	return diff
}

// IssueQueries plans this run's per-repository issue fetches from the
// listing applied by ApplyRepositories. Repositories reporting zero
// open issues are skipped entirely; the rest get the delta policy when
// the previous run left issues tracked, the full-open policy otherwise.
//
// Reads the pre-Finalize bookkeeping: call it before Finalize.
func (s *Snapshot) IssueQueries() []IssueQuery {
	var plan []IssueQuery
	for id := range s.seen {
		r := s.Repos[id]
		if r == nil || r.OpenIssueCount == 0 {
			continue
		}
		q := IssueQuery{RepoID: id, RepoName: r.FullName(), Policy: PolicyFullOpen}
		if r.HadOpenIssues && !s.LastRun.IsZero() {
			q.Policy = PolicyDelta
			q.Since = s.LastRun
		}
		plan = append(plan, q)
	}
	return plan
}

// ApplyIssues merges one repository's fetched issue stream. Open issues
// upsert; closed issues retire their tracked counterpart when present
// and are a no-op otherwise. Merging the same stream twice yields an
// identical snapshot.
func (s *Snapshot) ApplyIssues(repoID string, issues []queries.Issue) IssueDiff {
	var diff IssueDiff
	r, ok := s.Repos[repoID]
	if !ok {
		return diff
	}

	for _, fi := range issues {
		if !fi.Open() {
			if _, tracked := r.Issues[fi.ID]; tracked {
				delete(r.Issues, fi.ID)
				diff.OpenClosed++
			} else {
				diff.AlreadyClosed++
			}
			continue
		}

		fresh := fromFetched(fi)
		if prev, tracked := r.Issues[fi.ID]; tracked {
			if !prev.Equal(fresh) {
				r.Issues[fi.ID] = fresh
				diff.Modified++
			}
		} else {
			r.Issues[fi.ID] = fresh
			diff.Added++
		}
	}
	return diff
}

// Finalize stamps the run onto the snapshot once every fetch and merge
// has completed: each listed repository's HadOpenIssues reflects what
// this run left tracked, and LastRun becomes runStart, the instant
// captured before the run's first request. Issues that changed during
// the run are then at or after LastRun and will be seen again by the
// next delta, which is harmless by merge idempotence.
func (s *Snapshot) Finalize(runID string, runStart time.Time) {
	for id := range s.seen {
		if r := s.Repos[id]; r != nil {
			r.HadOpenIssues = len(r.Issues) > 0
		}
	}
	s.RunID = runID
	s.LastRun = runStart
	s.Version = CurrentVersion
	s.seen = nil
}
