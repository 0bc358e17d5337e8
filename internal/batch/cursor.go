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

package batch

import (
	"encoding/json"

	"github.com/sirseerhq/issue-relay/internal/gql"
)

// Page is one page of a paginated connection.
type Page[T any] struct {
	Items       []T
	EndCursor   string
	HasNextPage bool
}

// Paginator renders sub-queries for successive pages of one paginated
// resource and parses the matching response fragments.
type Paginator[T any] interface {
	// SubQuery requests the page after cursor (empty = from the start)
	// under the given alias. All variable names must carry the alias as
	// a prefix so sub-queries can share one wire request.
	SubQuery(alias, cursor string) gql.SubQuery

	// ParsePage decodes this resource's slice of a batch response.
	ParsePage(data json.RawMessage) (Page[T], error)
}

// Request names one paginated resource to drive to exhaustion.
type Request[T any] struct {
	// Key is the stable identifier of the parent resource (owner login,
	// repository ID, issue ID). Results are reported against it.
	Key string

	Paginator Paginator[T]

	// After optionally seeds the cursor with a page token, continuing a
	// pagination whose first page was fetched elsewhere (e.g. inline
	// with the parent's listing).
	After string
}

// Result carries everything collected for one resource key once its
// cursor is exhausted.
type Result[T any] struct {
	Key string

	// Items is the ordered concatenation of page payloads in server
	// order. Order across different keys is not meaningful.
	Items []T

	// EndCursor is the last page token seen, usable to resume later.
	EndCursor string

	// Partial marks a resource that disappeared mid-pagination; Items
	// holds whatever pages were fetched before that.
	Partial bool
}

// cursor phases. Exhausted is terminal.
type phase int

const (
	notStarted phase = iota
	inProgress
	exhausted
)

// cursor is the pagination state machine for a single resource instance.
type cursor[T any] struct {
	key      string
	pg       Paginator[T]
	phase    phase
	token    string
	items    []T
	attempts int
	partial  bool
}

// advance applies one page response to the state machine.
func (c *cursor[T]) advance(p Page[T]) {
	c.items = append(c.items, p.Items...)
	// endCursor is empty when the page has no items, which happens when
	// the current token is already at the end; keep the old token then.
	if p.EndCursor != "" {
		c.token = p.EndCursor
	}
	if p.HasNextPage {
		c.phase = inProgress
	} else {
		c.phase = exhausted
	}
}

// CursorSet tracks pagination state for a homogeneous collection of
// paginated resources, one cursor per key, serviced in stable insertion
// order. Cursors for different keys are independent.
type CursorSet[T any] struct {
	pending []*cursor[T]
	done    []*cursor[T]
}

func newCursorSet[T any](reqs []Request[T]) *CursorSet[T] {
	cs := &CursorSet[T]{}
	for _, r := range reqs {
		c := &cursor[T]{key: r.Key, pg: r.Paginator}
		if r.After != "" {
			c.token = r.After
			c.phase = inProgress
		}
		cs.pending = append(cs.pending, c)
	}
	return cs
}

// remaining reports how many cursors are not yet exhausted.
func (cs *CursorSet[T]) remaining() int {
	return len(cs.pending)
}

// take pops up to n cursors from the front of the working set.
func (cs *CursorSet[T]) take(n int) []*cursor[T] {
	if n > len(cs.pending) {
		n = len(cs.pending)
	}
	taken := cs.pending[:n:n]
	cs.pending = cs.pending[n:]
	return taken
}

// requeue returns a cursor with pages left to the back of the working set.
func (cs *CursorSet[T]) requeue(c *cursor[T]) {
	cs.pending = append(cs.pending, c)
}

// finish retires a cursor. Exhausted is terminal; the cursor never
// re-enters batch assembly.
func (cs *CursorSet[T]) finish(c *cursor[T]) {
	c.phase = exhausted
	cs.done = append(cs.done, c)
}

// results reports all retired cursors in completion order.
func (cs *CursorSet[T]) results() []Result[T] {
	out := make([]Result[T], 0, len(cs.done))
	for _, c := range cs.done {
		out = append(out, Result[T]{
			Key:       c.key,
			Items:     c.items,
			EndCursor: c.token,
			Partial:   c.partial,
		})
	}
	return out
}
