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

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sirseerhq/issue-relay/internal/batch"
	"github.com/sirseerhq/issue-relay/internal/config"
	"github.com/sirseerhq/issue-relay/internal/pipeline"
	"github.com/sirseerhq/issue-relay/internal/report"
	"golang.org/x/time/rate"
)

// runFlags are the flags shared by fetch and sync.
type runFlags struct {
	configPath string
	token      string
	owners     []string
	batchSize  int
	verbose    bool
}

// loadRunConfig loads configuration and folds the shared flags into it.
func loadRunConfig(f *runFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if len(f.owners) > 0 {
		cfg.Owners = f.owners
	}
	if f.batchSize > 0 {
		cfg.Fetch.BatchSize = f.batchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Owners) == 0 {
		return nil, fmt.Errorf("no accounts configured. Use --owners or set owners in the config file")
	}
	return cfg, nil
}

// resolveToken picks the flag token over the configured environment
// variable.
func resolveToken(f *runFlags, cfg *config.Config) (string, error) {
	token := f.token
	if token == "" {
		token = cfg.Token()
	}
	if token == "" {
		return "", fmt.Errorf("GitHub token not found. Set GITHUB_TOKEN or use --token flag")
	}
	return token, nil
}

// newLogger builds the stderr progress logger.
func newLogger(verbose bool) *log.Logger {
	logger := log.New(os.Stderr)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// pipelineOptions assembles engine options from the configuration.
func pipelineOptions(cfg *config.Config, logger *log.Logger, rep *report.Report) pipeline.Options {
	opts := pipeline.Options{
		BatchSize:       cfg.Fetch.BatchSize,
		Concurrency:     cfg.Fetch.Concurrency,
		RepoPageSize:    cfg.Fetch.RepoPageSize,
		IssuePageSize:   cfg.Fetch.IssuePageSize,
		LabelPageSize:   cfg.Fetch.LabelPageSize,
		InlineLabelSize: cfg.Fetch.InlineLabelSize,
		Retry: &batch.RetryConfig{
			MaxRetries:        cfg.Retry.MaxRetries,
			InitialBackoff:    time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:        time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		Log:    logger,
		Report: rep,
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}
	return opts
}

// splitOwners turns repeated or comma-separated --owners values into a
// flat list.
func splitOwners(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
