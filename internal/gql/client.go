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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"golang.org/x/oauth2"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// maxResponseSize caps response bodies to prevent excessive memory usage.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// userAgent identifies the client on every wire request.
const userAgent = "issue-relay"

// Client is a BatchClient for the GitHub GraphQL API. It merges the
// aliased selection sets of a batch into one wire request and
// demultiplexes the response back onto the originating sub-queries.
//
// The client is configured with:
//   - Authentication via an OAuth2 static token source
//   - Custom GraphQL endpoint URL (e.g., for GitHub Enterprise)
//   - Response size limiting to prevent memory issues
//   - User-Agent header for API compliance
//   - Optimized connection pooling for API performance
type Client struct {
	endpoint   string
	httpClient *http.Client
	requests   atomic.Int64
}

// NewClient creates a GraphQL batch client authenticated with the given
// token. An empty endpoint selects the public GitHub API.
func NewClient(token, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Optimized transport with connection pooling
	base := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   &relayTransport{base: base},
		},
	}

	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Requests reports how many wire requests the client has performed.
func (c *Client) Requests() int {
	return int(c.requests.Load())
}

// SubmitBatch implements BatchClient. Sub-query errors are attributed via
// the GraphQL error path: an error whose path starts with a known alias is
// delivered through that sub-query's SubResult; errors without a usable
// path fail the whole request.
func (c *Client) SubmitBatch(ctx context.Context, subs []SubQuery) ([]SubResult, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	query, variables, err := assembleQuery(subs)
	if err != nil {
		return nil, err
	}

	data, wireErrs, err := c.execute(ctx, query, variables)
	if err != nil {
		return nil, err
	}

	// Partition errors: alias-scoped vs. request-scoped.
	known := make(map[string]bool, len(subs))
	for _, sub := range subs {
		known[sub.Alias] = true
	}
	byAlias := make(map[string]*QueryError)
	var requestErrs []*QueryError
	for _, we := range wireErrs {
		qe := we.toQueryError()
		if len(qe.Path) > 0 && known[qe.Path[0]] {
			if byAlias[qe.Path[0]] == nil {
				byAlias[qe.Path[0]] = qe
			}
			continue
		}
		requestErrs = append(requestErrs, qe)
	}
	if len(requestErrs) > 0 {
		msgs := make([]string, len(requestErrs))
		for i, qe := range requestErrs {
			msgs[i] = qe.Error()
		}
		return nil, fmt.Errorf("graphql request errored: %s", strings.Join(msgs, "; "))
	}

	results := make([]SubResult, len(subs))
	for i, sub := range subs {
		results[i].Alias = sub.Alias
		if qe := byAlias[sub.Alias]; qe != nil {
			results[i].Err = qe
			continue
		}
		raw, ok := data[sub.Alias]
		if !ok {
			results[i].Err = fmt.Errorf("%w: no data for alias %q", relayerrors.ErrMalformedResponse, sub.Alias)
			continue
		}
		results[i].Data = raw
	}
	return results, nil
}

// assembleQuery renders the combined query document and merged variable
// map for a batch. Variable names are sorted per sub-query so the output
// is deterministic.
func assembleQuery(subs []SubQuery) (string, map[string]interface{}, error) {
	variables := make(map[string]interface{})
	var decls []string
	var body strings.Builder

	seen := make(map[string]bool, len(subs))
	for _, sub := range subs {
		if sub.Alias == "" {
			return "", nil, fmt.Errorf("sub-query without alias")
		}
		if seen[sub.Alias] {
			return "", nil, fmt.Errorf("duplicate sub-query alias %q", sub.Alias)
		}
		seen[sub.Alias] = true

		names := make([]string, 0, len(sub.Variables))
		for name := range sub.Variables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, dup := variables[name]; dup {
				return "", nil, fmt.Errorf("duplicate variable %q across sub-queries", name)
			}
			v := sub.Variables[name]
			decls = append(decls, fmt.Sprintf("$%s: %s", name, v.Type))
			variables[name] = v.Value
		}

		fmt.Fprintf(&body, "  %s: %s\n", sub.Alias, indentTail(sub.Selection, "  "))
	}

	var doc strings.Builder
	doc.WriteString("query")
	if len(decls) > 0 {
		fmt.Fprintf(&doc, "(%s)", strings.Join(decls, ", "))
	}
	fmt.Fprintf(&doc, " {\n%s}", body.String())
	return doc.String(), variables, nil
}

// indentTail indents every line of s after the first, so a multi-line
// selection set nests under its alias.
func indentTail(s, prefix string) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// execute performs one wire request and decodes the top-level envelope.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}) (map[string]json.RawMessage, []wireError, error) {
	payload := struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables,omitempty"`
	}{Query: query, Variables: variables}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.requests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read graphql response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("graphql endpoint returned HTTP %d: %s", resp.StatusCode, snippet(raw))
	}

	var envelope struct {
		Data   map[string]json.RawMessage `json:"data"`
		Errors []wireError                `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", relayerrors.ErrMalformedResponse, err)
	}
	return envelope.Data, envelope.Errors, nil
}

// snippet truncates a response body for inclusion in error messages.
func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// wireError is the raw GraphQL error shape. Path elements may be field
// names or list indices; only leading field names are kept.
type wireError struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Path    []interface{} `json:"path"`
}

func (we wireError) toQueryError() *QueryError {
	qe := &QueryError{Type: we.Type, Message: we.Message}
	for _, elem := range we.Path {
		s, ok := elem.(string)
		if !ok {
			break
		}
		qe.Path = append(qe.Path, s)
	}
	return qe
}

// relayTransport adds identification headers and safety limits to every
// request. Auth is layered above it by oauth2.Transport.
type relayTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *relayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	req.Header.Set("User-Agent", userAgent)
	// Opt in to the new global node ID format so persisted IDs stay stable.
	req.Header.Set("X-Github-Next-Global-ID", "1")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil {
		resp.Body = &limitedReader{ReadCloser: resp.Body, limit: maxResponseSize}
	}
	return resp, nil
}

// limitedReader wraps a ReadCloser with a size limit to prevent excessive memory usage.
type limitedReader struct {
	io.ReadCloser
	limit int64
	read  int64
}

// Read implements io.Reader with size limit enforcement.
func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.read >= lr.limit {
		return 0, fmt.Errorf("response size exceeded limit of %d bytes", lr.limit)
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err = lr.ReadCloser.Read(p)
	lr.read += int64(n)

	return n, err
}
