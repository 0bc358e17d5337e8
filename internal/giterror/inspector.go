package giterror

import (
	"errors"
	"strings"

	"github.com/sirseerhq/issue-relay/internal/gql"
)

// Class is the coarse disposition of a fetch error.
type Class int

const (
	// ClassFatal aborts the run. Authentication failures, malformed
	// responses and anything unrecognized land here.
	ClassFatal Class = iota

	// ClassTransient is retried at the owning cursor's next batch
	// inclusion, after a backoff delay, bounded by the retry budget.
	ClassTransient

	// ClassResourceGone closes the affected cursor with whatever partial
	// data it already collected; the run continues with a warning.
	ClassResourceGone
)

// GraphQL error types returned by GitHub.
const (
	typeNotFound    = "NOT_FOUND"
	typeRateLimited = "RATE_LIMITED"
)

// Classify maps an error from the wire layer onto the retry taxonomy.
// Structured GraphQL error types are authoritative; string inspection of
// transport-level errors is the fallback.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}

	var qe *gql.QueryError
	if errors.As(err, &qe) {
		switch qe.Type {
		case typeNotFound:
			return ClassResourceGone
		case typeRateLimited:
			return ClassTransient
		}
		return ClassFatal
	}

	inspector := NewInspector()
	switch {
	case inspector.IsAuthError(err):
		return ClassFatal
	case inspector.IsRateLimitError(err):
		return ClassTransient
	case inspector.IsNetworkError(err):
		return ClassTransient
	case inspector.IsNotFoundError(err):
		return ClassResourceGone
	}
	return ClassFatal
}

// Inspector provides methods for analyzing GitHub API errors.
type Inspector interface {
	// IsAuthError returns true if the error represents an authentication or authorization failure.
	IsAuthError(err error) bool

	// IsNotFoundError returns true if the error represents a resource not found error.
	IsNotFoundError(err error) bool

	// IsRateLimitError returns true if the error represents a rate limit error.
	IsRateLimitError(err error) bool

	// IsNetworkError returns true if the error represents a network connectivity error.
	IsNetworkError(err error) bool
}

// GitHubErrorInspector implements the Inspector interface for GitHub API errors.
type GitHubErrorInspector struct{}

// NewInspector creates a new GitHubErrorInspector.
func NewInspector() Inspector {
	return &GitHubErrorInspector{}
}

// IsAuthError checks if the error is an authentication or authorization error.
func (i *GitHubErrorInspector) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "bad credentials") ||
		strings.Contains(errStr, "authentication")
}

// IsNotFoundError checks if the error is a not found error.
func (i *GitHubErrorInspector) IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "could not resolve to a")
}

// IsRateLimitError checks if the error is a rate limit error.
func (i *GitHubErrorInspector) IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "secondary limit")
}

// IsNetworkError checks if the error is a network connectivity error.
func (i *GitHubErrorInspector) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "tls handshake") ||
		strings.Contains(errStr, "http 502") ||
		strings.Contains(errStr, "http 503") ||
		strings.Contains(errStr, "network is unreachable")
}
