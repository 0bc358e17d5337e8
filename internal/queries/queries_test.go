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

package queries

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirseerhq/issue-relay/internal/gql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerReposSubQueryShape(t *testing.T) {
	q := &OwnerRepos{Login: "octocat", PageSize: 25}
	sub := q.SubQuery("q3", "")

	assert.Equal(t, "q3", sub.Alias)
	assert.Contains(t, sub.Selection, "repositoryOwner(login: $q3_login)")
	assert.Contains(t, sub.Selection, "first: $q3_count, after: $q3_cursor")
	assert.Contains(t, sub.Selection, "privacy: PUBLIC, isFork: false, isArchived: false")
	assert.NotContains(t, sub.Selection, "$q3_icount", "sequential listing must not inline issue pages")

	assert.Equal(t, "octocat", sub.Variables["q3_login"].Value)
	assert.Equal(t, 25, sub.Variables["q3_count"].Value)
	assert.Nil(t, sub.Variables["q3_cursor"].Value, "empty cursor must be sent as null")

	sub = q.SubQuery("q4", "abc")
	assert.Equal(t, "abc", sub.Variables["q4_cursor"].Value)
}

func TestOwnerReposInlineIssues(t *testing.T) {
	q := &OwnerRepos{Login: "octocat", PageSize: 25, IssuePageSize: 10, LabelPageSize: 5}
	sub := q.SubQuery("q0", "")

	assert.Contains(t, sub.Selection, "issues(first: $q0_icount, states: [OPEN], orderBy: {field: UPDATED_AT, direction: ASC})")
	assert.Contains(t, sub.Selection, "labels(first: $q0_lcount)")
	assert.Equal(t, 10, sub.Variables["q0_icount"].Value)
	assert.Equal(t, 5, sub.Variables["q0_lcount"].Value)
}

func TestOwnerReposParsePage(t *testing.T) {
	data := json.RawMessage(`{
		"repositories": {
			"nodes": [
				{
					"id": "R_1",
					"name": "hello",
					"owner": {"login": "octocat"},
					"issues": {"totalCount": 7}
				},
				{
					"id": "R_2",
					"name": "world",
					"owner": {"login": "octocat"},
					"issues": {"totalCount": 0}
				}
			],
			"pageInfo": {"endCursor": "rp1", "hasNextPage": true}
		}
	}`)

	q := &OwnerRepos{Login: "octocat", PageSize: 25}
	page, err := q.ParsePage(data)
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, Repo{ID: "R_1", Owner: "octocat", Name: "hello", OpenIssueCount: 7}, page.Items[0])
	assert.Equal(t, "octocat/world", page.Items[1].FullName())
	assert.Equal(t, "rp1", page.EndCursor)
	assert.True(t, page.HasNextPage)
}

func TestOwnerReposParsePageInlineIssues(t *testing.T) {
	data := json.RawMessage(`{
		"repositories": {
			"nodes": [{
				"id": "R_1",
				"name": "hello",
				"owner": {"login": "octocat"},
				"issues": {
					"totalCount": 3,
					"nodes": [{
						"id": "I_1",
						"number": 42,
						"title": "it is broken",
						"state": "OPEN",
						"url": "https://github.com/octocat/hello/issues/42",
						"createdAt": "2025-05-01T10:00:00Z",
						"updatedAt": "2025-06-01T10:00:00Z",
						"labels": {
							"nodes": [{"name": "bug"}],
							"pageInfo": {"endCursor": "lc1", "hasNextPage": true}
						}
					}],
					"pageInfo": {"endCursor": "ic1", "hasNextPage": true}
				}
			}],
			"pageInfo": {"endCursor": null, "hasNextPage": false}
		}
	}`)

	q := &OwnerRepos{Login: "octocat", PageSize: 25, IssuePageSize: 1, LabelPageSize: 1}
	page, err := q.ParsePage(data)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	repo := page.Items[0]
	assert.Equal(t, 3, repo.OpenIssueCount)
	require.Len(t, repo.Issues.Items, 1)
	assert.Equal(t, "ic1", repo.Issues.EndCursor)
	assert.True(t, repo.Issues.HasNextPage)

	issue := repo.Issues.Items[0]
	assert.Equal(t, 42, issue.Number)
	assert.Equal(t, []string{"bug"}, issue.Labels)
	assert.True(t, issue.HasMoreLabels)
	assert.Equal(t, "lc1", issue.LabelsCursor)
	assert.True(t, issue.Open())
}

func TestOwnerReposParsePageNullOwner(t *testing.T) {
	q := &OwnerRepos{Login: "gone", PageSize: 25}
	_, err := q.ParsePage(json.RawMessage(`null`))
	require.Error(t, err)

	var qe *gql.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "NOT_FOUND", qe.Type)
	assert.Contains(t, qe.Message, "gone")
}

func TestRepoIssuesFullOpenForm(t *testing.T) {
	q := &RepoIssues{RepoID: "R_1", PageSize: 50, LabelPageSize: 10}
	sub := q.SubQuery("q0", "")

	assert.Contains(t, sub.Selection, "node(id: $q0_id)")
	assert.Contains(t, sub.Selection, "... on Repository")
	assert.Contains(t, sub.Selection, "states: [OPEN],")
	assert.NotContains(t, sub.Selection, "filterBy")
	assert.NotContains(t, sub.Variables, "q0_since")
}

func TestRepoIssuesDeltaForm(t *testing.T) {
	since := time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC)
	q := &RepoIssues{RepoID: "R_1", PageSize: 50, LabelPageSize: 10, Since: since}
	sub := q.SubQuery("q1", "ip2")

	assert.Contains(t, sub.Selection, "states: [OPEN, CLOSED]")
	assert.Contains(t, sub.Selection, "filterBy: {since: $q1_since}")
	assert.Contains(t, sub.Selection, "orderBy: {field: UPDATED_AT, direction: ASC}")
	assert.Equal(t, "2025-06-15T08:30:00Z", sub.Variables["q1_since"].Value)
	assert.Equal(t, "DateTime!", sub.Variables["q1_since"].Type)
	assert.Equal(t, "ip2", sub.Variables["q1_cursor"].Value)
}

func TestRepoIssuesParsePage(t *testing.T) {
	data := json.RawMessage(`{
		"issues": {
			"nodes": [
				{
					"id": "I_1",
					"number": 1,
					"title": "first",
					"state": "CLOSED",
					"url": "https://example.test/1",
					"createdAt": "2025-01-01T00:00:00Z",
					"updatedAt": "2025-07-01T00:00:00Z",
					"labels": {"nodes": [], "pageInfo": {"endCursor": null, "hasNextPage": false}}
				},
				{
					"id": "I_2",
					"number": 2,
					"title": "second",
					"state": "OPEN",
					"url": "https://example.test/2",
					"createdAt": "2025-02-01T00:00:00Z",
					"updatedAt": "2025-07-02T00:00:00Z",
					"labels": {"nodes": [{"name": "bug"}, {"name": "help wanted"}], "pageInfo": {"endCursor": "lc2", "hasNextPage": false}}
				}
			],
			"pageInfo": {"endCursor": "ip1", "hasNextPage": false}
		}
	}`)

	q := &RepoIssues{RepoID: "R_1", PageSize: 50, LabelPageSize: 10}
	page, err := q.ParsePage(data)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	assert.False(t, page.Items[0].Open())
	assert.Empty(t, page.Items[0].Labels)
	assert.False(t, page.Items[0].HasMoreLabels)
	assert.Equal(t, []string{"bug", "help wanted"}, page.Items[1].Labels)
	assert.Equal(t, "ip1", page.EndCursor)
}

func TestRepoIssuesParsePageNullNode(t *testing.T) {
	q := &RepoIssues{RepoID: "R_gone", PageSize: 50, LabelPageSize: 10}
	_, err := q.ParsePage(json.RawMessage(`null`))

	var qe *gql.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "NOT_FOUND", qe.Type)
}

func TestIssueLabelsRoundTrip(t *testing.T) {
	q := &IssueLabels{IssueID: "I_2", PageSize: 20}
	sub := q.SubQuery("q7", "lc1")

	assert.Contains(t, sub.Selection, "... on Issue")
	assert.Contains(t, sub.Selection, "labels(first: $q7_count, after: $q7_cursor)")
	assert.Equal(t, "I_2", sub.Variables["q7_id"].Value)
	assert.Equal(t, "lc1", sub.Variables["q7_cursor"].Value)

	page, err := q.ParsePage(json.RawMessage(`{
		"labels": {
			"nodes": [{"name": "wontfix"}, {"name": "duplicate"}],
			"pageInfo": {"endCursor": "lc3", "hasNextPage": false}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"wontfix", "duplicate"}, page.Items)
	assert.Equal(t, "lc3", page.EndCursor)
	assert.False(t, page.HasNextPage)
}
