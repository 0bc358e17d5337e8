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

package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/giterror"
)

const defaultAPIEndpoint = "https://api.github.com"

// RateLimits reads the REST rate-limit status across all categories
// (core, search, GraphQL). Reading it costs no quota, so operators can
// poll it freely while tuning batch sizes.
func RateLimits(ctx context.Context, token, apiEndpoint string) (*github.RateLimits, error) {
	client := github.NewClient(nil).WithAuthToken(token)
	if apiEndpoint != "" && apiEndpoint != defaultAPIEndpoint {
		var err error
		client, err = client.WithEnterpriseURLs(apiEndpoint, apiEndpoint)
		if err != nil {
			return nil, fmt.Errorf("configuring API endpoint: %w", err)
		}
	}

	limits, _, err := client.RateLimit.Get(ctx)
	if err != nil {
		if giterror.NewInspector().IsAuthError(err) {
			return nil, fmt.Errorf("%w: %v", relayerrors.ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("querying rate limits: %w", err)
	}
	return limits, nil
}
