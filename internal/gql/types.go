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

package gql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Variable is a typed GraphQL variable bound to a single sub-query.
type Variable struct {
	// Type is the GraphQL type declaration, e.g. "ID!" or "String".
	Type string
	// Value is the JSON-serializable variable value. A nil value is sent
	// as JSON null.
	Value interface{}
}

// SubQuery is one independently-addressed selection set within a batched
// request. Variable names must already carry the alias prefix so that
// sub-queries from different resources never collide inside one request.
type SubQuery struct {
	// Alias is the GraphQL field alias used to address this sub-query's
	// slice of the response. Aliases must be unique within a batch.
	Alias string

	// Selection is the rendered selection set, starting at the root field,
	// without the leading alias.
	Selection string

	// Variables maps alias-prefixed variable names to their declarations.
	Variables map[string]Variable
}

// SubResult pairs a sub-query alias with either its response payload or a
// sub-query-scoped error. Exactly one of Data and Err is set.
type SubResult struct {
	Alias string
	Data  json.RawMessage
	Err   error
}

// BatchClient executes one batched GraphQL request composed of multiple
// independently-addressed sub-queries. Results are returned in the same
// order as the submitted sub-queries, matched by alias, never by content.
//
// A non-nil error return means the request as a whole failed; per
// sub-query failures are reported through SubResult.Err instead.
type BatchClient interface {
	SubmitBatch(ctx context.Context, subs []SubQuery) ([]SubResult, error)
}

// QueryError is a GraphQL error scoped to a single sub-query, attributed
// through the error's path.
type QueryError struct {
	// Type is the machine-readable error type, e.g. "NOT_FOUND" or
	// "RATE_LIMITED". May be empty.
	Type string

	// Message is the human-readable error message from the server.
	Message string

	// Path locates the errored field within the request, starting with
	// the sub-query alias.
	Path []string
}

func (e *QueryError) Error() string {
	var b strings.Builder
	if e.Type != "" {
		fmt.Fprintf(&b, "%s: ", e.Type)
	}
	b.WriteString(e.Message)
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (at %s)", strings.Join(e.Path, "."))
	}
	return b.String()
}
