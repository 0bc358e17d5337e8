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

package config

// Config is the full issue-relay configuration.
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Owners    []string        `yaml:"owners"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
}

// GitHubConfig contains GitHub-specific settings including API endpoints
// and authentication configuration. Custom endpoints support GitHub
// Enterprise deployments.
type GitHubConfig struct {
	APIEndpoint     string `yaml:"api_endpoint"`
	GraphQLEndpoint string `yaml:"graphql_endpoint"`
	TokenEnv        string `yaml:"token_env"`
}

// FetchConfig controls the traversal: how many sub-queries share one
// wire request, how many requests fly at once, and the page size for
// each resource kind.
type FetchConfig struct {
	// Strategy is "sequential" or "interleaved".
	Strategy string `yaml:"strategy"`

	// BatchSize is the maximum number of aliased sub-queries merged
	// into one GraphQL request.
	BatchSize int `yaml:"batch_size"`

	// Concurrency is the maximum number of wire requests in flight.
	Concurrency int `yaml:"concurrency"`

	RepoPageSize  int `yaml:"repo_page_size"`
	IssuePageSize int `yaml:"issue_page_size"`
	LabelPageSize int `yaml:"label_page_size"`

	// InlineLabelSize is the label page size fetched inline with each
	// issue; issues with more labels get a dedicated pagination pass.
	InlineLabelSize int `yaml:"inline_label_size"`
}

// SnapshotConfig locates the sync database. The file extension selects
// the backend: .db/.sqlite/.sqlite3 for SQLite, anything else for JSON.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// RateLimitConfig is soft client-side admission control for wire
// requests. A zero RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RetryConfig bounds transient-failure retries.
type RetryConfig struct {
	MaxRetries       int `yaml:"max_retries"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms"`
}

// DefaultConfig returns a Config with defaults suitable for public
// GitHub.com usage.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIEndpoint:     "https://api.github.com",
			GraphQLEndpoint: "https://api.github.com/graphql",
			TokenEnv:        "GITHUB_TOKEN",
		},
		Fetch: FetchConfig{
			Strategy:        "sequential",
			BatchSize:       50,
			Concurrency:     1,
			RepoPageSize:    100,
			IssuePageSize:   100,
			LabelPageSize:   100,
			InlineLabelSize: 10,
		},
		Snapshot: SnapshotConfig{
			Path: "issues.json",
		},
		RateLimit: RateLimitConfig{
			Burst: 1,
		},
		Retry: RetryConfig{
			MaxRetries:       3,
			InitialBackoffMS: 1000,
			MaxBackoffMS:     30000,
		},
	}
}
