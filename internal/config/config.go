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

// Package config provides configuration management for issue-relay with
// a well-defined precedence order:
//  1. Command-line flags
//  2. Environment variables
//  3. Configuration file
//  4. Built-in defaults
//
// Configuration files are YAML and discovered in standard locations
// when no explicit path is given.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration and applies environment overrides. If
// configPath is provided, it loads from that file; otherwise it searches
// standard locations:
//   - .issue-relay.yaml (current directory)
//   - .issue-relay.yml (current directory)
//   - ~/.issue-relay/config.yaml
//   - ~/.issue-relay/config.yml
//
// A missing file in the standard locations is not an error; defaults
// apply.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		defaultPaths := []string{
			".issue-relay.yaml",
			".issue-relay.yml",
			filepath.Join(os.Getenv("HOME"), ".issue-relay", "config.yaml"),
			filepath.Join(os.Getenv("HOME"), ".issue-relay", "config.yml"),
		}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.Snapshot.Path = expandPath(cfg.Snapshot.Path)

	return cfg, nil
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if endpoint := os.Getenv("GITHUB_API_ENDPOINT"); endpoint != "" {
		cfg.GitHub.APIEndpoint = endpoint
	}
	if endpoint := os.Getenv("GITHUB_GRAPHQL_ENDPOINT"); endpoint != "" {
		cfg.GitHub.GraphQLEndpoint = endpoint
	}

	if owners := os.Getenv("ISSUE_RELAY_OWNERS"); owners != "" {
		cfg.Owners = splitList(owners)
	}
	if strategy := os.Getenv("ISSUE_RELAY_STRATEGY"); strategy != "" {
		cfg.Fetch.Strategy = strategy
	}
	if batchSize := os.Getenv("ISSUE_RELAY_BATCH_SIZE"); batchSize != "" {
		if size, err := parsePositiveInt(batchSize); err == nil {
			cfg.Fetch.BatchSize = size
		}
	}
	if concurrency := os.Getenv("ISSUE_RELAY_CONCURRENCY"); concurrency != "" {
		if n, err := parsePositiveInt(concurrency); err == nil {
			cfg.Fetch.Concurrency = n
		}
	}
	if path := os.Getenv("ISSUE_RELAY_SNAPSHOT"); path != "" {
		cfg.Snapshot.Path = path
	}
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		if home == "" {
			home = os.Getenv("USERPROFILE") // Windows
		}
		path = filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// Validate checks the configuration for values the GitHub API would
// reject or that make no sense, so bad settings fail before the first
// request rather than mid-run.
func (c *Config) Validate() error {
	if c.Fetch.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got: %d", c.Fetch.BatchSize)
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got: %d", c.Fetch.Concurrency)
	}
	for _, p := range []struct {
		name string
		val  int
	}{
		{"repo_page_size", c.Fetch.RepoPageSize},
		{"issue_page_size", c.Fetch.IssuePageSize},
		{"label_page_size", c.Fetch.LabelPageSize},
		{"inline_label_size", c.Fetch.InlineLabelSize},
	} {
		if p.val <= 0 || p.val > 100 {
			return fmt.Errorf("%s must be between 1 and 100, got: %d", p.name, p.val)
		}
	}
	switch c.Fetch.Strategy {
	case "", "sequential", "interleaved":
	default:
		return fmt.Errorf("unknown strategy %q (want sequential or interleaved)", c.Fetch.Strategy)
	}
	if c.GitHub.APIEndpoint == "" {
		return fmt.Errorf("GitHub API endpoint cannot be empty")
	}
	if c.GitHub.GraphQLEndpoint == "" {
		return fmt.Errorf("GitHub GraphQL endpoint cannot be empty")
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot path cannot be empty")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got: %d", c.Retry.MaxRetries)
	}
	return nil
}

// Token resolves the GitHub token from the configured environment
// variable.
func (c *Config) Token() string {
	env := c.GitHub.TokenEnv
	if env == "" {
		env = "GITHUB_TOKEN"
	}
	return os.Getenv(env)
}
