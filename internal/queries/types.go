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
	"time"

	"github.com/sirseerhq/issue-relay/internal/batch"
)

// Repo is one repository row from an owner's repository listing.
type Repo struct {
	// ID is the stable GraphQL node ID, used to address the repository
	// in later issue queries and as the database key.
	ID    string
	Owner string
	Name  string

	// OpenIssueCount is the server-reported count of open issues at
	// listing time. Advisory: it gates whether issues are fetched at
	// all, but the paginated issue stream is authoritative.
	OpenIssueCount int

	// Issues holds the inline first page of open issues when the
	// listing was rendered with WithIssues; otherwise zero.
	Issues batch.Page[Issue]
}

// FullName returns owner/name.
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// Issue is one issue row, with its first page of labels inlined.
type Issue struct {
	ID        string
	Number    int
	Title     string
	State     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Labels holds the label names fetched so far, in server order.
	Labels []string

	// HasMoreLabels is set when the inline label page was not the last
	// one; LabelsCursor then continues the label pagination.
	HasMoreLabels bool
	LabelsCursor  string
}

// Open reports whether the issue's state is OPEN.
func (i Issue) Open() bool {
	return i.State == "OPEN"
}

// pageInfo mirrors the GraphQL PageInfo fragment. A null endCursor
// decodes to the empty string.
type pageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// rawIssue is the wire shape of one issue node.
type rawIssue struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Labels    struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
		PageInfo pageInfo `json:"pageInfo"`
	} `json:"labels"`
}

func (ri rawIssue) toIssue() Issue {
	labels := make([]string, 0, len(ri.Labels.Nodes))
	for _, n := range ri.Labels.Nodes {
		labels = append(labels, n.Name)
	}
	return Issue{
		ID:            ri.ID,
		Number:        ri.Number,
		Title:         ri.Title,
		State:         ri.State,
		URL:           ri.URL,
		CreatedAt:     ri.CreatedAt,
		UpdatedAt:     ri.UpdatedAt,
		Labels:        labels,
		HasMoreLabels: ri.Labels.PageInfo.HasNextPage,
		LabelsCursor:  ri.Labels.PageInfo.EndCursor,
	}
}

// rawIssueConn is the wire shape of an issue connection. TotalCount is
// only requested by the repository listing.
type rawIssueConn struct {
	TotalCount int        `json:"totalCount"`
	Nodes      []rawIssue `json:"nodes"`
	PageInfo   pageInfo   `json:"pageInfo"`
}

func (rc rawIssueConn) toPage() batch.Page[Issue] {
	items := make([]Issue, 0, len(rc.Nodes))
	for _, n := range rc.Nodes {
		items = append(items, n.toIssue())
	}
	return batch.Page[Issue]{
		Items:       items,
		EndCursor:   rc.PageInfo.EndCursor,
		HasNextPage: rc.PageInfo.HasNextPage,
	}
}
