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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirseerhq/issue-relay/internal/batch"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/gql"
	"github.com/sirseerhq/issue-relay/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tBase = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tLate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
)

type fakeIssue struct {
	id      string
	number  int
	title   string
	state   string
	updated time.Time
	labels  []string
}

type fakeRepo struct {
	id, owner, name string
	issues          []*fakeIssue

	// vanished makes every issue query for this repository after the
	// first answered page report NOT_FOUND.
	vanished bool
}

func (r *fakeRepo) openCount() int {
	n := 0
	for _, i := range r.issues {
		if i.state == "OPEN" {
			n++
		}
	}
	return n
}

// fakeGitHub answers the real selection shapes the queries package
// renders, paginating with integer-offset cursors.
type fakeGitHub struct {
	mu     sync.Mutex
	owners []string
	repos  map[string][]*fakeRepo

	issuePages  map[string]int // pages served per repo, for vanish
	issueCalls  int
	labelsCalls int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		repos:      make(map[string][]*fakeRepo),
		issuePages: make(map[string]int),
	}
}

func (g *fakeGitHub) addRepo(owner string, r *fakeRepo) *fakeRepo {
	if _, ok := g.repos[owner]; !ok {
		g.owners = append(g.owners, owner)
	}
	r.owner = owner
	g.repos[owner] = append(g.repos[owner], r)
	return r
}

func (g *fakeGitHub) findRepo(id string) *fakeRepo {
	for _, rs := range g.repos {
		for _, r := range rs {
			if r.id == id {
				return r
			}
		}
	}
	return nil
}

func (g *fakeGitHub) findIssue(id string) *fakeIssue {
	for _, rs := range g.repos {
		for _, r := range rs {
			for _, i := range r.issues {
				if i.id == id {
					return i
				}
			}
		}
	}
	return nil
}

func cursorIndex(v interface{}) int {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func pageInfoJSON(next int, hasNext bool) map[string]interface{} {
	info := map[string]interface{}{"hasNextPage": hasNext}
	if hasNext || next > 0 {
		info["endCursor"] = strconv.Itoa(next)
	} else {
		info["endCursor"] = nil
	}
	return info
}

func (g *fakeGitHub) issueJSON(i *fakeIssue, repo *fakeRepo, lcount int) map[string]interface{} {
	shown := i.labels
	hasNext := false
	if len(shown) > lcount {
		shown = shown[:lcount]
		hasNext = true
	}
	nodes := make([]map[string]interface{}, 0, len(shown))
	for _, l := range shown {
		nodes = append(nodes, map[string]interface{}{"name": l})
	}
	return map[string]interface{}{
		"id":        i.id,
		"number":    i.number,
		"title":     i.title,
		"state":     i.state,
		"url":       fmt.Sprintf("https://github.test/%s/%s/issues/%d", repo.owner, repo.name, i.number),
		"createdAt": tBase.Format(time.RFC3339),
		"updatedAt": i.updated.Format(time.RFC3339),
		"labels": map[string]interface{}{
			"nodes":    nodes,
			"pageInfo": pageInfoJSON(len(shown), hasNext),
		},
	}
}

func (g *fakeGitHub) SubmitBatch(_ context.Context, subs []gql.SubQuery) ([]gql.SubResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]gql.SubResult, len(subs))
	for i, sub := range subs {
		var payload interface{}
		var err error
		switch {
		case sub.Variables[sub.Alias+"_login"].Value != nil:
			payload = g.serveRepos(sub)
		case sub.Variables[sub.Alias+"_lcount"].Value != nil:
			payload, err = g.serveIssues(sub)
		default:
			payload = g.serveLabels(sub)
		}
		if err != nil {
			results[i] = gql.SubResult{Alias: sub.Alias, Err: err}
			continue
		}
		data, merr := json.Marshal(payload)
		if merr != nil {
			return nil, merr
		}
		results[i] = gql.SubResult{Alias: sub.Alias, Data: data}
	}
	return results, nil
}

func (g *fakeGitHub) serveRepos(sub gql.SubQuery) interface{} {
	login := sub.Variables[sub.Alias+"_login"].Value.(string)
	count := sub.Variables[sub.Alias+"_count"].Value.(int)
	start := cursorIndex(sub.Variables[sub.Alias+"_cursor"].Value)

	repos, ok := g.repos[login]
	if !ok {
		return nil
	}
	end := start + count
	if end > len(repos) {
		end = len(repos)
	}

	inline := 0
	lcount := 0
	if v := sub.Variables[sub.Alias+"_icount"].Value; v != nil {
		inline = v.(int)
		lcount = sub.Variables[sub.Alias+"_lcount"].Value.(int)
	}

	nodes := make([]map[string]interface{}, 0, end-start)
	for _, r := range repos[start:end] {
		issues := map[string]interface{}{"totalCount": r.openCount()}
		if inline > 0 {
			open := make([]*fakeIssue, 0, len(r.issues))
			for _, i := range r.issues {
				if i.state == "OPEN" {
					open = append(open, i)
				}
			}
			shown := open
			hasNext := false
			if len(shown) > inline {
				shown = shown[:inline]
				hasNext = true
			}
			inodes := make([]map[string]interface{}, 0, len(shown))
			for _, i := range shown {
				inodes = append(inodes, g.issueJSON(i, r, lcount))
			}
			issues["nodes"] = inodes
			issues["pageInfo"] = pageInfoJSON(len(shown), hasNext)
			if hasNext {
				g.issuePages[r.id]++
			}
		}
		nodes = append(nodes, map[string]interface{}{
			"id":     r.id,
			"name":   r.name,
			"owner":  map[string]interface{}{"login": r.owner},
			"issues": issues,
		})
	}
	return map[string]interface{}{
		"repositories": map[string]interface{}{
			"nodes":    nodes,
			"pageInfo": pageInfoJSON(end, end < len(repos)),
		},
	}
}

func (g *fakeGitHub) serveIssues(sub gql.SubQuery) (interface{}, error) {
	g.issueCalls++
	repoID := sub.Variables[sub.Alias+"_id"].Value.(string)
	count := sub.Variables[sub.Alias+"_count"].Value.(int)
	lcount := sub.Variables[sub.Alias+"_lcount"].Value.(int)
	start := cursorIndex(sub.Variables[sub.Alias+"_cursor"].Value)

	r := g.findRepo(repoID)
	if r == nil {
		return nil, nil
	}
	if r.vanished && g.issuePages[repoID] > 0 {
		return nil, &gql.QueryError{Type: "NOT_FOUND", Message: "Could not resolve to a node", Path: []string{sub.Alias}}
	}
	g.issuePages[repoID]++

	var since time.Time
	if v := sub.Variables[sub.Alias+"_since"].Value; v != nil {
		var err error
		since, err = time.Parse(time.RFC3339, v.(string))
		if err != nil {
			return nil, err
		}
	}

	var matched []*fakeIssue
	for _, i := range r.issues {
		if since.IsZero() {
			if i.state != "OPEN" {
				continue
			}
		} else if i.updated.Before(since) {
			continue
		}
		matched = append(matched, i)
	}

	end := start + count
	if end > len(matched) {
		end = len(matched)
	}
	nodes := make([]map[string]interface{}, 0, end-start)
	for _, i := range matched[start:end] {
		nodes = append(nodes, g.issueJSON(i, r, lcount))
	}
	return map[string]interface{}{
		"issues": map[string]interface{}{
			"nodes":    nodes,
			"pageInfo": pageInfoJSON(end, end < len(matched)),
		},
	}, nil
}

func (g *fakeGitHub) serveLabels(sub gql.SubQuery) interface{} {
	g.labelsCalls++
	issueID := sub.Variables[sub.Alias+"_id"].Value.(string)
	count := sub.Variables[sub.Alias+"_count"].Value.(int)
	start := cursorIndex(sub.Variables[sub.Alias+"_cursor"].Value)

	i := g.findIssue(issueID)
	if i == nil {
		return nil
	}
	end := start + count
	if end > len(i.labels) {
		end = len(i.labels)
	}
	nodes := make([]map[string]interface{}, 0, end-start)
	for _, l := range i.labels[start:end] {
		nodes = append(nodes, map[string]interface{}{"name": l})
	}
	return map[string]interface{}{
		"labels": map[string]interface{}{
			"nodes":    nodes,
			"pageInfo": pageInfoJSON(end, end < len(i.labels)),
		},
	}
}

func testPipeline(g *fakeGitHub) *Pipeline {
	return New(g, Options{
		BatchSize:       3,
		RepoPageSize:    2,
		IssuePageSize:   2,
		LabelPageSize:   2,
		InlineLabelSize: 2,
		Retry:           &batch.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
		Report:          report.New(),
	})
}

func standardDataset() *fakeGitHub {
	g := newFakeGitHub()
	g.addRepo("acme", &fakeRepo{id: "R1", name: "widgets", issues: []*fakeIssue{
		{id: "I1", number: 1, title: "one", state: "OPEN", updated: tBase, labels: []string{"bug"}},
		{id: "I2", number: 2, title: "two", state: "CLOSED", updated: tBase},
		{id: "I3", number: 3, title: "three", state: "OPEN", updated: tBase, labels: []string{"a", "b", "c", "d", "e"}},
		{id: "I4", number: 4, title: "four", state: "OPEN", updated: tLate},
	}})
	g.addRepo("acme", &fakeRepo{id: "R2", name: "empty", issues: nil})
	g.addRepo("beta", &fakeRepo{id: "R3", name: "tools", issues: []*fakeIssue{
		{id: "I5", number: 1, title: "five", state: "OPEN", updated: tBase},
	}})
	return g
}

func collectFetch(t *testing.T, p *Pipeline, owners []string, s Strategy) []Record {
	t.Helper()
	var recs []Record
	err := p.Fetch(context.Background(), owners, s, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	return recs
}

func recordKeys(recs []Record) []string {
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		keys = append(keys, r.Repo.ID+"/"+r.Issue.ID)
	}
	sort.Strings(keys)
	return keys
}

func TestFetchSequential(t *testing.T) {
	g := standardDataset()
	p := testPipeline(g)

	recs := collectFetch(t, p, []string{"acme", "beta"}, Sequential)

	assert.Equal(t, []string{"R1/I1", "R1/I3", "R1/I4", "R3/I5"}, recordKeys(recs),
		"only open issues, closed ones never emitted")
	assert.Equal(t, 3, p.opts.Report.ReposFetched)
	assert.Equal(t, 2, p.opts.Report.ReposWithOpenIssues)
	assert.Equal(t, 4, p.opts.Report.IssuesFetched)

	for _, r := range recs {
		if r.Issue.ID == "I3" {
			assert.Equal(t, []string{"a", "b", "c", "d", "e"}, r.Issue.Labels,
				"label escalation must complete the inline page")
			assert.False(t, r.Issue.HasMoreLabels)
		}
	}
	assert.Positive(t, p.opts.Report.ExtraLabelPages)
}

func TestFetchStrategiesProduceIdenticalIssueSets(t *testing.T) {
	seq := testPipeline(standardDataset())
	inter := testPipeline(standardDataset())

	seqRecs := collectFetch(t, seq, []string{"acme", "beta"}, Sequential)
	interRecs := collectFetch(t, inter, []string{"acme", "beta"}, Interleaved)

	assert.Equal(t, recordKeys(seqRecs), recordKeys(interRecs))

	labelsOf := func(recs []Record, id string) []string {
		for _, r := range recs {
			if r.Issue.ID == id {
				return r.Issue.Labels
			}
		}
		return nil
	}
	for _, id := range []string{"I1", "I3", "I4", "I5"} {
		assert.Equal(t, labelsOf(seqRecs, id), labelsOf(interRecs, id), "labels for %s", id)
	}
}

func TestFetchRepoVanishesMidPagination(t *testing.T) {
	g := standardDataset()
	g.findRepo("R1").vanished = true
	p := testPipeline(g)

	recs := collectFetch(t, p, []string{"acme", "beta"}, Sequential)

	// R1 has three open issues over two pages; only page one survives.
	keys := recordKeys(recs)
	assert.Contains(t, keys, "R3/I5", "other repositories are unaffected")
	assert.Less(t, len(keys), 4)
	assert.Equal(t, 1, p.opts.Report.Warnings)
}

func TestFetchUnknownOwnerAmongKnown(t *testing.T) {
	g := standardDataset()
	p := testPipeline(g)

	recs := collectFetch(t, p, []string{"nobody", "beta"}, Sequential)

	assert.Equal(t, []string{"R3/I5"}, recordKeys(recs))
	assert.Equal(t, 1, p.opts.Report.Warnings)
}

func TestFetchAllOwnersUnknown(t *testing.T) {
	p := testPipeline(standardDataset())

	err := p.Fetch(context.Background(), []string{"nobody", "missing"}, Sequential,
		func(Record) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerrors.ErrOwnerNotFound)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("interleaved")
	require.NoError(t, err)
	assert.Equal(t, Interleaved, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Sequential, s)

	_, err = ParseStrategy("bogus")
	assert.Error(t, err)
}
