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
	"time"

	"github.com/sirseerhq/issue-relay/internal/batch"
	"github.com/sirseerhq/issue-relay/internal/gql"
)

// RepoIssues paginates one repository's issues, addressed by node ID.
// Key the request by the repository ID.
//
// With a zero Since it lists open issues only, the full-open form used
// for repositories with no usable incremental baseline. With Since set
// it lists issues of both states updated at or after that instant, the
// delta form: closed issues must be seen so the merge can retire them.
type RepoIssues struct {
	RepoID string

	// PageSize is the issues-per-page count.
	PageSize int

	// LabelPageSize is the inline label page size.
	LabelPageSize int

	// Since, when non-zero, switches to the delta form.
	Since time.Time
}

// SubQuery implements batch.Paginator.
func (q *RepoIssues) SubQuery(alias, cursor string) gql.SubQuery {
	vars := map[string]gql.Variable{
		alias + "_id":     {Type: "ID!", Value: q.RepoID},
		alias + "_count":  {Type: "Int!", Value: q.PageSize},
		alias + "_lcount": {Type: "Int!", Value: q.LabelPageSize},
		alias + "_cursor": {Type: "String", Value: nullableCursor(cursor)},
	}

	states := "[OPEN]"
	filter := ""
	if !q.Since.IsZero() {
		states = "[OPEN, CLOSED]"
		filter = fmt.Sprintf(", filterBy: {since: $%s_since}", alias)
		vars[alias+"_since"] = gql.Variable{
			Type:  "DateTime!",
			Value: q.Since.UTC().Format(time.RFC3339),
		}
	}

	selection := fmt.Sprintf(`node(id: $%[1]s_id) {
  ... on Repository {
    issues(first: $%[1]s_count, after: $%[1]s_cursor, states: %[2]s, orderBy: {field: UPDATED_AT, direction: ASC}%[3]s) {
      %[4]s
    }
  }
}`, alias, states, filter, indent(fmt.Sprintf(issueNodeFields, alias), "      "))

	return gql.SubQuery{Alias: alias, Selection: selection, Variables: vars}
}

// ParsePage implements batch.Paginator.
func (q *RepoIssues) ParsePage(data json.RawMessage) (batch.Page[Issue], error) {
	var node *struct {
		Issues rawIssueConn `json:"issues"`
	}
	if err := json.Unmarshal(data, &node); err != nil {
		return batch.Page[Issue]{}, fmt.Errorf("decoding issue page for %s: %w", q.RepoID, err)
	}
	if node == nil {
		// A deleted repository resolves node(id:) to null, sometimes
		// without an attributed error.
		return batch.Page[Issue]{}, &gql.QueryError{
			Type:    "NOT_FOUND",
			Message: fmt.Sprintf("could not resolve to a node with the global id of '%s'", q.RepoID),
		}
	}
	return node.Issues.toPage(), nil
}
