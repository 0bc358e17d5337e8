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
	"fmt"

	"github.com/sirseerhq/issue-relay/internal/batch"
	"github.com/sirseerhq/issue-relay/internal/gql"
)

// IssueLabels paginates one issue's labels, addressed by node ID. It is
// only used for the escalation pass over issues whose inline label page
// was not the last one; seed the request's After with the issue's
// inline label cursor so already-fetched labels are not refetched.
type IssueLabels struct {
	IssueID string

	// PageSize is the labels-per-page count.
	PageSize int
}

// SubQuery implements batch.Paginator.
func (q *IssueLabels) SubQuery(alias, cursor string) gql.SubQuery {
	vars := map[string]gql.Variable{
		alias + "_id":     {Type: "ID!", Value: q.IssueID},
		alias + "_count":  {Type: "Int!", Value: q.PageSize},
		alias + "_cursor": {Type: "String", Value: nullableCursor(cursor)},
	}

	selection := fmt.Sprintf(`node(id: $%[1]s_id) {
  ... on Issue {
    labels(first: $%[1]s_count, after: $%[1]s_cursor) {
      nodes {
        name
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`, alias)

	return gql.SubQuery{Alias: alias, Selection: selection, Variables: vars}
}

// ParsePage implements batch.Paginator.
func (q *IssueLabels) ParsePage(data json.RawMessage) (batch.Page[string], error) {
	var node *struct {
		Labels struct {
			Nodes []struct {
				Name string `json:"name"`
			} `json:"nodes"`
			PageInfo pageInfo `json:"pageInfo"`
		} `json:"labels"`
	}
	if err := json.Unmarshal(data, &node); err != nil {
		return batch.Page[string]{}, fmt.Errorf("decoding label page for %s: %w", q.IssueID, err)
	}
	if node == nil {
		return batch.Page[string]{}, &gql.QueryError{
			Type:    "NOT_FOUND",
			Message: fmt.Sprintf("could not resolve to a node with the global id of '%s'", q.IssueID),
		}
	}

	names := make([]string, 0, len(node.Labels.Nodes))
	for _, n := range node.Labels.Nodes {
		names = append(names, n.Name)
	}
	return batch.Page[string]{
		Items:       names,
		EndCursor:   node.Labels.PageInfo.EndCursor,
		HasNextPage: node.Labels.PageInfo.HasNextPage,
	}, nil
}
