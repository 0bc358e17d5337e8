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

// Package github holds the small fixed-shape API calls around the main
// traversal: the token/quota probe and the REST rate-limit status.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/graphql"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/giterror"
	"golang.org/x/oauth2"
)

// Quota is one reading of the GraphQL rate limit, with the viewer the
// token authenticates as.
type Quota struct {
	Viewer    string
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Probe validates a token and reads GraphQL quota with one fixed-shape
// query. Unlike the batched traversal queries, this query's shape is
// known at compile time, so it uses a typed client.
type Probe struct {
	client *graphql.Client
}

// NewProbe creates a probe against the given GraphQL endpoint.
func NewProbe(token, endpoint string) *Probe {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	return &Probe{client: graphql.NewClient(endpoint, httpClient)}
}

// Check queries the viewer and current quota. An authentication
// failure is reported as ErrInvalidToken.
func (p *Probe) Check(ctx context.Context) (*Quota, error) {
	var q struct {
		Viewer struct {
			Login graphql.String
		}
		RateLimit struct {
			Limit     graphql.Int
			Remaining graphql.Int
			ResetAt   time.Time
		}
	}
	if err := p.client.Query(ctx, &q, nil); err != nil {
		if giterror.NewInspector().IsAuthError(err) {
			return nil, fmt.Errorf("%w: %v", relayerrors.ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("querying viewer: %w", err)
	}
	return &Quota{
		Viewer:    string(q.Viewer.Login),
		Limit:     int(q.RateLimit.Limit),
		Remaining: int(q.RateLimit.Remaining),
		ResetAt:   q.RateLimit.ResetAt,
	}, nil
}
