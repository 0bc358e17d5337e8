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
	"testing"
	"time"

	"github.com/sirseerhq/issue-relay/internal/batch"
	"github.com/sirseerhq/issue-relay/internal/report"
	"github.com/sirseerhq/issue-relay/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncPipeline(g *fakeGitHub, now time.Time) *Pipeline {
	return New(g, Options{
		BatchSize:       3,
		RepoPageSize:    2,
		IssuePageSize:   2,
		LabelPageSize:   2,
		InlineLabelSize: 2,
		Retry:           &batch.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
		Report:          report.New(),
		Now:             func() time.Time { return now },
	})
}

func TestSyncFirstRunThenDelta(t *testing.T) {
	ctx := context.Background()
	g := standardDataset()
	owners := []string{"acme", "beta"}
	snap := snapshot.New()

	run1 := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	p1 := syncPipeline(g, run1)
	require.NoError(t, p1.Sync(ctx, owners, snap))

	require.Len(t, snap.Repos, 3)
	assert.Equal(t, 3, snap.Repos["R1"].OpenIssueCount)
	assert.Equal(t, 1, snap.Repos["R3"].OpenIssueCount)
	assert.Len(t, snap.Repos["R1"].Issues, 3)
	assert.Len(t, snap.Repos["R3"].Issues, 1)
	assert.Empty(t, snap.Repos["R2"].Issues)
	assert.True(t, snap.Repos["R1"].HadOpenIssues)
	assert.False(t, snap.Repos["R2"].HadOpenIssues)
	assert.Equal(t, run1, snap.LastRun)
	assert.Equal(t, snapshot.IssueDiff{Added: 4}, p1.opts.Report.IssueDiff)
	assert.Equal(t, 3, p1.opts.Report.RepoDiff.Added)

	// Between runs: #1 closes, #6 opens; #3 and #4 are untouched and
	// must not even be refetched by the delta.
	run2 := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)
	r1 := g.findRepo("R1")
	r1.issues[0].state = "CLOSED"
	r1.issues[0].updated = run1.Add(time.Hour)
	r1.issues = append(r1.issues, &fakeIssue{
		id: "I6", number: 6, title: "six", state: "OPEN", updated: run1.Add(2 * time.Hour),
	})

	p2 := syncPipeline(g, run2)
	require.NoError(t, p2.Sync(ctx, owners, snap))

	issues := snap.Repos["R1"].Issues
	require.Len(t, issues, 3)
	assert.NotContains(t, issues, "I1", "closed issue must be retired")
	assert.Contains(t, issues, "I3")
	assert.Contains(t, issues, "I4")
	assert.Contains(t, issues, "I6")
	assert.Equal(t, snapshot.IssueDiff{Added: 1, OpenClosed: 1}, p2.opts.Report.IssueDiff)
	assert.Equal(t, run2, snap.LastRun)
	assert.Len(t, snap.Repos["R3"].Issues, 1, "unchanged repository keeps its issues")
}

func TestSyncZeroCountSkipsIssueFetch(t *testing.T) {
	ctx := context.Background()
	g := standardDataset()
	snap := snapshot.New()

	run1 := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, syncPipeline(g, run1).Sync(ctx, []string{"beta"}, snap))
	require.Len(t, snap.Repos["R3"].Issues, 1)

	// R3's only issue closes; the listing then reports zero open
	// issues and the tracked issue is pruned without an issue query.
	g.findRepo("R3").issues[0].state = "CLOSED"
	callsBefore := g.issueCalls

	run2 := run1.Add(24 * time.Hour)
	p := syncPipeline(g, run2)
	require.NoError(t, p.Sync(ctx, []string{"beta"}, snap))

	assert.Empty(t, snap.Repos["R3"].Issues)
	assert.False(t, snap.Repos["R3"].HadOpenIssues)
	assert.Equal(t, callsBefore, g.issueCalls, "no issue query for a zero-count repository")
	assert.Equal(t, 1, p.opts.Report.RepoDiff.PrunedIssues)
}

func TestSyncLeavesUnlistedOwnersUntouched(t *testing.T) {
	ctx := context.Background()
	g := standardDataset()
	snap := snapshot.New()

	run1 := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, syncPipeline(g, run1).Sync(ctx, []string{"acme", "beta"}, snap))

	// A later run scoped to beta only must not disturb acme's entries.
	run2 := run1.Add(24 * time.Hour)
	require.NoError(t, syncPipeline(g, run2).Sync(ctx, []string{"beta"}, snap))

	assert.Len(t, snap.Repos["R1"].Issues, 3)
	assert.True(t, snap.Repos["R1"].HadOpenIssues)
}

func TestSyncIsIdempotentWithoutChanges(t *testing.T) {
	ctx := context.Background()
	g := standardDataset()
	snap := snapshot.New()
	owners := []string{"acme", "beta"}

	run1 := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, syncPipeline(g, run1).Sync(ctx, owners, snap))
	before := snap.IssueCount()

	p := syncPipeline(g, run1.Add(time.Hour))
	require.NoError(t, p.Sync(ctx, owners, snap))

	assert.Equal(t, before, snap.IssueCount())
	assert.Equal(t, snapshot.IssueDiff{}, p.opts.Report.IssueDiff)
	assert.Equal(t, snapshot.RepoDiff{}, p.opts.Report.RepoDiff)
}
