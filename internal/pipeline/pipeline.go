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

// Package pipeline drives the owner → repository → issue → label
// traversal over the batched pagination engine, and folds sync runs
// into the snapshot database.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sirseerhq/issue-relay/internal/batch"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/gql"
	"github.com/sirseerhq/issue-relay/internal/queries"
	"github.com/sirseerhq/issue-relay/internal/report"
	"golang.org/x/time/rate"
)

// Strategy selects how the traversal schedules issue fetching relative
// to the repository listing. Both strategies produce the same final
// issue set; they differ only in request shape.
type Strategy int

const (
	// Sequential lists every repository first, then fetches issues for
	// the repositories that have any.
	Sequential Strategy = iota

	// Interleaved inlines each repository's first issue page with the
	// listing, then fetches continuations only for repositories whose
	// first page was not the last.
	Interleaved
)

func (s Strategy) String() string {
	if s == Interleaved {
		return "interleaved"
	}
	return "sequential"
}

// ParseStrategy maps the CLI flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "sequential", "":
		return Sequential, nil
	case "interleaved":
		return Interleaved, nil
	default:
		return Sequential, fmt.Errorf("unknown strategy %q (want sequential or interleaved)", s)
	}
}

// Record pairs an issue with the repository it belongs to, the unit the
// fetch command emits.
type Record struct {
	Repo  queries.Repo
	Issue queries.Issue
}

// Options configures a Pipeline.
type Options struct {
	// BatchSize and Concurrency are passed through to the pagination
	// engine for every stage.
	BatchSize   int
	Concurrency int

	// Page sizes per resource kind.
	RepoPageSize  int
	IssuePageSize int
	LabelPageSize int

	// InlineLabelSize is the label page size inlined with each issue.
	// Issues with more labels than this get a dedicated label
	// pagination pass.
	InlineLabelSize int

	Retry   *batch.RetryConfig
	Limiter *rate.Limiter
	Log     *log.Logger
	Report  *report.Report

	// Now supplies the clock; sync runs capture their timestamp from it
	// before the first request. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs traversals against one GraphQL client.
type Pipeline struct {
	client gql.BatchClient
	opts   Options
}

// New creates a Pipeline, filling in option defaults.
func New(client gql.BatchClient, opts Options) *Pipeline {
	if opts.RepoPageSize <= 0 {
		opts.RepoPageSize = 100
	}
	if opts.IssuePageSize <= 0 {
		opts.IssuePageSize = 100
	}
	if opts.LabelPageSize <= 0 {
		opts.LabelPageSize = 100
	}
	if opts.InlineLabelSize <= 0 {
		opts.InlineLabelSize = 10
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}
	if opts.Report == nil {
		opts.Report = report.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{client: client, opts: opts}
}

// batchOptions builds the engine options for one named stage.
func (p *Pipeline) batchOptions(stage string) batch.Options {
	return batch.Options{
		BatchSize:   p.opts.BatchSize,
		Concurrency: p.opts.Concurrency,
		Retry:       p.opts.Retry,
		Limiter:     p.opts.Limiter,
		Log:         p.opts.Log,
		Stage:       stage,
	}
}

// Fetch runs a one-shot traversal across owners and calls emit once per
// (repository, issue) pair, grouped by repository in listing order.
// Issues passed to emit always carry their complete label set.
func (p *Pipeline) Fetch(ctx context.Context, owners []string, strategy Strategy, emit func(Record) error) error {
	repos, err := p.fetchRepos(ctx, owners, strategy == Interleaved)
	if err != nil {
		return err
	}

	issuesByRepo, err := p.fetchOpenIssues(ctx, repos, strategy)
	if err != nil {
		return err
	}

	if err := p.escalateLabels(ctx, issuesByRepo); err != nil {
		return err
	}

	for _, r := range repos {
		for _, issue := range issuesByRepo[r.ID] {
			if err := emit(Record{Repo: r, Issue: issue}); err != nil {
				return fmt.Errorf("emitting %s#%d: %w", r.FullName(), issue.Number, err)
			}
		}
	}
	return nil
}

// fetchRepos lists every owner's repositories, optionally with inline
// first issue pages.
func (p *Pipeline) fetchRepos(ctx context.Context, owners []string, inline bool) ([]queries.Repo, error) {
	end := p.opts.Report.StartStage("repositories")

	reqs := make([]batch.Request[queries.Repo], 0, len(owners))
	for _, owner := range owners {
		q := &queries.OwnerRepos{
			Login:    owner,
			PageSize: p.opts.RepoPageSize,
		}
		if inline {
			q.IssuePageSize = p.opts.IssuePageSize
			q.LabelPageSize = p.opts.InlineLabelSize
		}
		reqs = append(reqs, batch.Request[queries.Repo]{Key: owner, Paginator: q})
	}

	bp := batch.New(p.client, reqs, p.batchOptions("repositories"))
	results, err := bp.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.opts.Report.Warnings += bp.Warnings()

	// Keep listing order stable per owner, owners in input order.
	resolved := 0
	byOwner := make(map[string][]queries.Repo, len(results))
	for _, res := range results {
		byOwner[res.Key] = res.Items
		if !res.Partial || len(res.Items) > 0 {
			resolved++
		}
	}
	if resolved == 0 && len(owners) > 0 {
		return nil, fmt.Errorf("%w: none of %v resolved", relayerrors.ErrOwnerNotFound, owners)
	}
	var repos []queries.Repo
	for _, owner := range owners {
		repos = append(repos, byOwner[owner]...)
	}

	p.opts.Report.ReposFetched = len(repos)
	for _, r := range repos {
		if r.OpenIssueCount > 0 {
			p.opts.Report.ReposWithOpenIssues++
		}
	}
	end(len(repos))
	return repos, nil
}

// issueFetch names one repository's issue pagination for this run.
type issueFetch struct {
	repoID string
	since  time.Time

	// after continues a pagination whose first page came inline with
	// the listing; seed holds that page's issues.
	after string
	seed  []queries.Issue
}

// fetchIssues drives the issue stage for the given per-repo fetch
// plans and returns each repository's full issue stream in server
// order, seeds included.
func (p *Pipeline) fetchIssues(ctx context.Context, fetches []issueFetch) (map[string][]queries.Issue, error) {
	end := p.opts.Report.StartStage("issues")

	issuesByRepo := make(map[string][]queries.Issue, len(fetches))
	var reqs []batch.Request[queries.Issue]
	for _, f := range fetches {
		issuesByRepo[f.repoID] = f.seed
		reqs = append(reqs, batch.Request[queries.Issue]{
			Key: f.repoID,
			Paginator: &queries.RepoIssues{
				RepoID:        f.repoID,
				PageSize:      p.opts.IssuePageSize,
				LabelPageSize: p.opts.InlineLabelSize,
				Since:         f.since,
			},
			After: f.after,
		})
	}

	bp := batch.New(p.client, reqs, p.batchOptions("issues"))
	results, err := bp.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.opts.Report.Warnings += bp.Warnings()

	for _, res := range results {
		issuesByRepo[res.Key] = append(issuesByRepo[res.Key], res.Items...)
	}

	total := 0
	for _, issues := range issuesByRepo {
		total += len(issues)
	}
	p.opts.Report.IssuesFetched = total
	end(total)
	return issuesByRepo, nil
}

// fetchOpenIssues plans and runs the issue stage for a one-shot fetch:
// every repository with open issues, no time bound.
func (p *Pipeline) fetchOpenIssues(ctx context.Context, repos []queries.Repo, strategy Strategy) (map[string][]queries.Issue, error) {
	if strategy == Interleaved {
		// The listing already carried first pages. Repositories whose
		// first page was the last need no wire request at all; the rest
		// continue from the inline cursor.
		done := make(map[string][]queries.Issue)
		var fetches []issueFetch
		for _, r := range repos {
			switch {
			case r.Issues.HasNextPage:
				fetches = append(fetches, issueFetch{
					repoID: r.ID,
					seed:   r.Issues.Items,
					after:  r.Issues.EndCursor,
				})
			case len(r.Issues.Items) > 0:
				done[r.ID] = r.Issues.Items
			}
		}

		issuesByRepo, err := p.fetchIssues(ctx, fetches)
		if err != nil {
			return nil, err
		}
		for id, issues := range done {
			issuesByRepo[id] = issues
			p.opts.Report.IssuesFetched += len(issues)
		}
		return issuesByRepo, nil
	}

	var fetches []issueFetch
	for _, r := range repos {
		if r.OpenIssueCount == 0 {
			continue
		}
		fetches = append(fetches, issueFetch{repoID: r.ID})
	}
	return p.fetchIssues(ctx, fetches)
}

// escalateLabels completes the label sets of issues whose inline label
// page was not the last one, continuing from the inline cursor.
func (p *Pipeline) escalateLabels(ctx context.Context, issuesByRepo map[string][]queries.Issue) error {
	// Index escalation targets by issue ID across all repositories.
	type target struct {
		repoID string
		idx    int
	}
	targets := make(map[string]target)
	var reqs []batch.Request[string]
	for repoID, issues := range issuesByRepo {
		for i, issue := range issues {
			if !issue.HasMoreLabels {
				continue
			}
			targets[issue.ID] = target{repoID: repoID, idx: i}
			reqs = append(reqs, batch.Request[string]{
				Key:       issue.ID,
				Paginator: &queries.IssueLabels{IssueID: issue.ID, PageSize: p.opts.LabelPageSize},
				After:     issue.LabelsCursor,
			})
		}
	}
	if len(reqs) == 0 {
		return nil
	}

	end := p.opts.Report.StartStage("labels")
	bp := batch.New(p.client, reqs, p.batchOptions("labels"))
	results, err := bp.Run(ctx)
	if err != nil {
		return err
	}
	p.opts.Report.Warnings += bp.Warnings()
	p.opts.Report.ExtraLabelPages += len(results)

	for _, res := range results {
		tg, ok := targets[res.Key]
		if !ok {
			continue
		}
		issue := &issuesByRepo[tg.repoID][tg.idx]
		issue.Labels = append(issue.Labels, res.Items...)
		issue.HasMoreLabels = false
		issue.LabelsCursor = res.EndCursor
	}
	end(len(results))
	return nil
}
