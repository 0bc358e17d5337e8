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

// Package report accumulates per-run statistics and renders the human
// summary printed at the end of a fetch or sync.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirseerhq/issue-relay/internal/snapshot"
)

// StageTiming records one traversal stage's item count and duration.
type StageTiming struct {
	Name    string
	Items   int
	Elapsed time.Duration
}

// Report collects everything one run did.
type Report struct {
	RunID     string
	StartedAt time.Time

	ReposFetched        int
	ReposWithOpenIssues int
	IssuesFetched       int
	ExtraLabelPages     int

	// Warnings counts resources that disappeared mid-pagination and
	// were kept with partial data.
	Warnings int

	// WireRequests is the number of GraphQL requests actually sent;
	// PointsUsed the rate-limit points they consumed, when known.
	WireRequests int64
	PointsUsed   int

	// Diff counters are only populated by sync runs.
	RepoDiff  snapshot.RepoDiff
	IssueDiff snapshot.IssueDiff

	Stages []StageTiming

	now func() time.Time
}

// New starts a report for a fresh run with a generated run ID.
func New() *Report {
	r := &Report{RunID: uuid.NewString(), now: time.Now}
	r.StartedAt = r.now()
	return r
}

// StartStage begins timing a traversal stage. The returned func ends it,
// recording how many items the stage produced.
func (r *Report) StartStage(name string) func(items int) {
	start := r.now()
	return func(items int) {
		r.Stages = append(r.Stages, StageTiming{
			Name:    name,
			Items:   items,
			Elapsed: r.now().Sub(start),
		})
	}
}

// Elapsed is the total wall time since the run started.
func (r *Report) Elapsed() time.Duration {
	return r.now().Sub(r.StartedAt)
}

// Summary renders the human-readable run summary. Colors degrade to
// plain text automatically when w is not a terminal.
func (r *Report) Summary(w io.Writer, synced bool) {
	header := color.New(color.Bold)
	label := color.New(color.FgCyan)
	warn := color.New(color.FgYellow)

	header.Fprintf(w, "Run %s completed in %s\n", r.RunID, r.Elapsed().Round(time.Millisecond))

	for _, st := range r.Stages {
		label.Fprintf(w, "  %-14s", st.Name)
		fmt.Fprintf(w, "%6d items  %s\n", st.Items, st.Elapsed.Round(time.Millisecond))
	}

	label.Fprint(w, "  repositories  ")
	fmt.Fprintf(w, "%d fetched, %d with open issues\n", r.ReposFetched, r.ReposWithOpenIssues)
	label.Fprint(w, "  issues        ")
	fmt.Fprintf(w, "%d fetched", r.IssuesFetched)
	if r.ExtraLabelPages > 0 {
		fmt.Fprintf(w, " (%d extra label pages)", r.ExtraLabelPages)
	}
	fmt.Fprintln(w)

	if synced {
		label.Fprint(w, "  repo diff     ")
		fmt.Fprintln(w, r.RepoDiff)
		label.Fprint(w, "  issue diff    ")
		fmt.Fprintln(w, r.IssueDiff)
	}

	label.Fprint(w, "  api           ")
	fmt.Fprintf(w, "%d requests", r.WireRequests)
	if r.PointsUsed > 0 {
		fmt.Fprintf(w, ", %d points", r.PointsUsed)
	}
	fmt.Fprintln(w)

	if r.Warnings > 0 {
		warn.Fprintf(w, "  %d resource(s) disappeared mid-fetch; partial data kept\n", r.Warnings)
	}
}
