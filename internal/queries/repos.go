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

// issueNodeFields is the per-issue selection shared by every query that
// returns issues. The label sub-connection fetches one inline page; the
// traversal escalates to dedicated label pagination only for issues
// whose pageInfo reports more.
const issueNodeFields = `nodes {
  id
  number
  title
  state
  url
  createdAt
  updatedAt
  labels(first: $%[1]s_lcount) {
    nodes {
      name
    }
    pageInfo {
      endCursor
      hasNextPage
    }
  }
}
pageInfo {
  endCursor
  hasNextPage
}`

// OwnerRepos paginates one owner's public, non-archived, non-fork
// repositories. Key the request by owner login.
type OwnerRepos struct {
	// Login is the user or organization login to list.
	Login string

	// PageSize is the repositories-per-page count.
	PageSize int

	// IssuePageSize, when positive, inlines the first page of open
	// issues with every repository row (the interleaved strategy).
	IssuePageSize int

	// LabelPageSize is the inline label page size for inlined issues.
	LabelPageSize int
}

// SubQuery implements batch.Paginator.
func (q *OwnerRepos) SubQuery(alias, cursor string) gql.SubQuery {
	vars := map[string]gql.Variable{
		alias + "_login":  {Type: "String!", Value: q.Login},
		alias + "_count":  {Type: "Int!", Value: q.PageSize},
		alias + "_cursor": {Type: "String", Value: nullableCursor(cursor)},
	}

	issueSel := `issues(states: [OPEN]) {
  totalCount
}`
	if q.IssuePageSize > 0 {
		vars[alias+"_icount"] = gql.Variable{Type: "Int!", Value: q.IssuePageSize}
		vars[alias+"_lcount"] = gql.Variable{Type: "Int!", Value: q.LabelPageSize}
		issueSel = fmt.Sprintf(`issues(first: $%[1]s_icount, states: [OPEN], orderBy: {field: UPDATED_AT, direction: ASC}) {
  totalCount
  %s
}`, alias, indent(fmt.Sprintf(issueNodeFields, alias), "  "))
	}

	selection := fmt.Sprintf(`repositoryOwner(login: $%[1]s_login) {
  repositories(first: $%[1]s_count, after: $%[1]s_cursor, privacy: PUBLIC, isFork: false, isArchived: false, orderBy: {field: NAME, direction: ASC}) {
    nodes {
      id
      name
      owner {
        login
      }
      %s
    }
    pageInfo {
      endCursor
      hasNextPage
    }
  }
}`, alias, indent(issueSel, "      "))

	return gql.SubQuery{Alias: alias, Selection: selection, Variables: vars}
}

// ParsePage implements batch.Paginator.
func (q *OwnerRepos) ParsePage(data json.RawMessage) (batch.Page[Repo], error) {
	var owner *struct {
		Repositories struct {
			Nodes []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Owner struct {
					Login string `json:"login"`
				} `json:"owner"`
				Issues rawIssueConn `json:"issues"`
			} `json:"nodes"`
			PageInfo pageInfo `json:"pageInfo"`
		} `json:"repositories"`
	}
	if err := json.Unmarshal(data, &owner); err != nil {
		return batch.Page[Repo]{}, fmt.Errorf("decoding repository page for %s: %w", q.Login, err)
	}
	if owner == nil {
		// The server can answer null without an attributed error when
		// the login stops resolving mid-pagination. Report it in the
		// same shape so the caller's taxonomy applies.
		return batch.Page[Repo]{}, &gql.QueryError{
			Type:    "NOT_FOUND",
			Message: fmt.Sprintf("could not resolve to a user or organization with the login of '%s'", q.Login),
		}
	}

	items := make([]Repo, 0, len(owner.Repositories.Nodes))
	for _, n := range owner.Repositories.Nodes {
		r := Repo{
			ID:             n.ID,
			Owner:          n.Owner.Login,
			Name:           n.Name,
			OpenIssueCount: n.Issues.TotalCount,
		}
		if q.IssuePageSize > 0 {
			r.Issues = n.Issues.toPage()
		}
		items = append(items, r)
	}
	return batch.Page[Repo]{
		Items:       items,
		EndCursor:   owner.Repositories.PageInfo.EndCursor,
		HasNextPage: owner.Repositories.PageInfo.HasNextPage,
	}, nil
}

// nullableCursor maps the empty cursor to JSON null so the server reads
// it as "from the start".
func nullableCursor(cursor string) interface{} {
	if cursor == "" {
		return nil
	}
	return cursor
}

// indent prefixes every line after the first, so a fragment nests
// correctly inside an already-indented template.
func indent(s, prefix string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] == '\n' {
			out = append(out, prefix...)
		}
	}
	return string(out)
}
