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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/giterror"
	"github.com/sirseerhq/issue-relay/internal/gql"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options configures one BatchPaginator run.
type Options struct {
	// BatchSize is the maximum number of sub-queries merged into one
	// wire request. Defaults to 50.
	BatchSize int

	// Concurrency is the maximum number of wire requests in flight at
	// once. Defaults to 1 (strictly sequential round trips).
	Concurrency int

	// Retry bounds transient-failure retries. Defaults to
	// DefaultRetryConfig.
	Retry *RetryConfig

	// Limiter, when set, gates every wire request as soft admission
	// control against the remote rate limiter.
	Limiter *rate.Limiter

	// Log receives warnings about resources that disappeared and
	// transient backoffs. Defaults to a discard logger.
	Log *log.Logger

	// Stage names the traversal stage in errors and warnings, e.g.
	// "repositories" or "issues".
	Stage string
}

// BatchPaginator drives a set of cursors to exhaustion by repeatedly
// assembling batches of non-exhausted cursors, submitting them through a
// BatchClient, and demultiplexing responses back onto their originating
// cursors by alias.
//
// A resource with many pages never blocks progress on the others: the
// working set is serviced round-robin through shared wire requests, so
// request overhead is amortized regardless of how unevenly paginated the
// underlying resources are.
type BatchPaginator[T any] struct {
	client   gql.BatchClient
	set      *CursorSet[T]
	opts     Options
	aliasSeq int
	warnings int
}

// New creates a BatchPaginator over the given resources. The paginator
// exclusively owns the cursors for the duration of the run.
func New[T any](client gql.BatchClient, reqs []Request[T], opts Options) *BatchPaginator[T] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}
	return &BatchPaginator[T]{
		client: client,
		set:    newCursorSet(reqs),
		opts:   opts,
	}
}

// Warnings reports how many resources were closed early because they
// disappeared mid-pagination.
func (bp *BatchPaginator[T]) Warnings() int {
	return bp.warnings
}

// flight is one wire request assembled for a round, with the alias
// routing table needed to demultiplex its response.
type flight[T any] struct {
	subs    []gql.SubQuery
	byAlias map[string]*cursor[T]
	results []gql.SubResult
}

// Run drives every cursor to exhaustion and returns, per resource key,
// the ordered concatenation of items across all of its pages.
//
// Transient sub-query failures leave the affected cursor at its
// pre-request state and retry it in a later batch after a backoff;
// resources reported gone are closed with partial data and a warning.
// Any other failure aborts the run with stage and resource context.
func (bp *BatchPaginator[T]) Run(ctx context.Context) ([]Result[T], error) {
	for bp.set.remaining() > 0 {
		flights := bp.assembleRound()

		g, gctx := errgroup.WithContext(ctx)
		for _, f := range flights {
			f := f
			g.Go(func() error {
				results, err := bp.submit(gctx, f.subs)
				if err != nil {
					return err
				}
				f.results = results
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var retryDelay time.Duration
		for _, f := range flights {
			delay, err := bp.applyResponses(f)
			if err != nil {
				return nil, err
			}
			if delay > retryDelay {
				retryDelay = delay
			}
		}

		// One shared delay per round covers every cursor that hit a
		// transient failure; they re-enter assembly afterwards.
		if err := sleepCtx(ctx, retryDelay); err != nil {
			return nil, err
		}
	}
	return bp.set.results(), nil
}

// assembleRound takes up to Concurrency batches of up to BatchSize
// cursors each from the front of the working set.
func (bp *BatchPaginator[T]) assembleRound() []*flight[T] {
	var flights []*flight[T]
	for len(flights) < bp.opts.Concurrency && bp.set.remaining() > 0 {
		f := &flight[T]{byAlias: make(map[string]*cursor[T])}
		for _, c := range bp.set.take(bp.opts.BatchSize) {
			alias := fmt.Sprintf("q%d", bp.aliasSeq)
			bp.aliasSeq++
			f.subs = append(f.subs, c.pg.SubQuery(alias, c.token))
			f.byAlias[alias] = c
		}
		flights = append(flights, f)
	}
	return flights
}

// submit performs one wire request, retrying the whole batch on
// transient transport failures within the retry budget.
func (bp *BatchPaginator[T]) submit(ctx context.Context, subs []gql.SubQuery) ([]gql.SubResult, error) {
	var lastErr error
	for attempt := 0; attempt <= bp.opts.Retry.MaxRetries; attempt++ {
		if bp.opts.Limiter != nil {
			if err := bp.opts.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		results, err := bp.client.SubmitBatch(ctx, subs)
		if err == nil {
			return results, nil
		}
		lastErr = err

		if giterror.Classify(err) != giterror.ClassTransient {
			return nil, fmt.Errorf("stage %s: %w", bp.opts.Stage, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		backoff := bp.opts.Retry.Backoff(attempt)
		bp.opts.Log.Warn("transient request failure, backing off",
			"stage", bp.opts.Stage, "backoff", backoff, "attempt", attempt+1, "err", err)
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("stage %s: %w after %d attempts: %v",
		bp.opts.Stage, relayerrors.ErrRetryBudget, bp.opts.Retry.MaxRetries+1, lastErr)
}

// applyResponses demultiplexes one flight's results onto its cursors and
// advances, retires, or requeues each. It returns the backoff to apply
// before the next round if any cursor failed transiently.
func (bp *BatchPaginator[T]) applyResponses(f *flight[T]) (time.Duration, error) {
	var retryDelay time.Duration
	for _, sr := range f.results {
		c, ok := f.byAlias[sr.Alias]
		if !ok {
			return 0, fmt.Errorf("stage %s: %w: unknown alias %q in response",
				bp.opts.Stage, relayerrors.ErrMalformedResponse, sr.Alias)
		}

		subErr := sr.Err
		var page Page[T]
		if subErr == nil {
			var perr error
			if page, perr = c.pg.ParsePage(sr.Data); perr != nil {
				// A parser can discover the resource is gone from the
				// response body (a null node); classify its errors the
				// same way as server-attributed ones.
				if giterror.Classify(perr) == giterror.ClassResourceGone {
					subErr = perr
				} else {
					return 0, fmt.Errorf("stage %s: resource %s: %w: %v",
						bp.opts.Stage, c.key, relayerrors.ErrMalformedResponse, perr)
				}
			}
		}

		if subErr != nil {
			switch giterror.Classify(subErr) {
			case giterror.ClassTransient:
				// The cursor stays at its pre-request state.
				c.attempts++
				if c.attempts > bp.opts.Retry.MaxRetries {
					return 0, fmt.Errorf("stage %s: resource %s: %w: %v",
						bp.opts.Stage, c.key, relayerrors.ErrRetryBudget, subErr)
				}
				if d := bp.opts.Retry.Backoff(c.attempts - 1); d > retryDelay {
					retryDelay = d
				}
				bp.opts.Log.Warn("sub-query failed transiently, will retry",
					"stage", bp.opts.Stage, "resource", c.key, "attempt", c.attempts, "err", subErr)
				bp.set.requeue(c)
			case giterror.ClassResourceGone:
				c.partial = true
				bp.warnings++
				bp.opts.Log.Warn("resource disappeared mid-pagination, keeping partial data",
					"stage", bp.opts.Stage, "resource", c.key, "pages_fetched_items", len(c.items))
				bp.set.finish(c)
			default:
				return 0, fmt.Errorf("stage %s: resource %s: %w",
					bp.opts.Stage, c.key, subErr)
			}
			continue
		}

		c.attempts = 0
		c.advance(page)
		if c.phase == exhausted {
			bp.set.finish(c)
		} else {
			bp.set.requeue(c)
		}
	}
	return retryDelay, nil
}
