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

// Package snapshot maintains the incremental issue database: the
// persisted map of repositories and their open issues, the merge rules
// that fold a fetched issue stream into it, and the per-repository
// fetch policy derived from the previous run's bookkeeping.
//
// Only open issues persist. Closed issues appear transiently in delta
// fetches so the merge can retire their open counterparts, and are
// never written out.
package snapshot

import (
	"slices"
	"time"

	"github.com/sirseerhq/issue-relay/internal/queries"
)

// CurrentVersion is the snapshot format version this build reads and
// writes.
const CurrentVersion = 1

// Issue is one persisted open issue.
type Issue struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Labels    []string  `json:"labels"`
}

// Equal reports whether two issues carry identical data.
func (i Issue) Equal(other Issue) bool {
	return i.ID == other.ID &&
		i.Number == other.Number &&
		i.Title == other.Title &&
		i.State == other.State &&
		i.URL == other.URL &&
		i.CreatedAt.Equal(other.CreatedAt) &&
		i.UpdatedAt.Equal(other.UpdatedAt) &&
		slices.Equal(i.Labels, other.Labels)
}

// fromFetched converts a fetched issue into its persisted form.
func fromFetched(fi queries.Issue) Issue {
	labels := fi.Labels
	if labels == nil {
		labels = []string{}
	}
	return Issue{
		ID:        fi.ID,
		Number:    fi.Number,
		Title:     fi.Title,
		State:     fi.State,
		URL:       fi.URL,
		CreatedAt: fi.CreatedAt,
		UpdatedAt: fi.UpdatedAt,
		Labels:    labels,
	}
}

// Repository is one tracked repository and its open issues, keyed by
// issue node ID.
type Repository struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`

	// OpenIssueCount is the server-advertised open issue count from the
	// most recent repository listing. Advisory only.
	OpenIssueCount int `json:"open_issue_count"`

	// HadOpenIssues records whether the last completed run left any
	// open issues tracked for this repository. It selects the next
	// run's fetch policy.
	HadOpenIssues bool `json:"had_open_issues"`

	Issues map[string]Issue `json:"issues"`
}

// FullName returns owner/name.
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Snapshot is the whole database: every tracked repository keyed by
// node ID, plus run bookkeeping.
type Snapshot struct {
	Version  int    `json:"version"`
	Checksum string `json:"checksum,omitempty"`

	// RunID identifies the run that wrote this snapshot.
	RunID string `json:"run_id,omitempty"`

	// LastRun is the start instant of the last completed run. Zero
	// means no run has completed; every repository then gets the
	// full-open policy.
	LastRun time.Time `json:"last_run"`

	Repos map[string]*Repository `json:"repositories"`

	// seen tracks which repositories this run's listing returned.
	// Repositories outside it are left untouched by Finalize.
	seen map[string]bool
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		Version: CurrentVersion,
		Repos:   make(map[string]*Repository),
	}
}

// IssueCount is the total number of tracked issues across repositories.
func (s *Snapshot) IssueCount() int {
	n := 0
	for _, r := range s.Repos {
		n += len(r.Issues)
	}
	return n
}
