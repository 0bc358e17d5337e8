// Package giterror classifies GitHub API errors into the retry taxonomy
// used by the batch paginator: transient (retry with backoff), resource
// gone (close the cursor, keep the run alive), and fatal (abort).
//
// Classification prefers the structured GraphQL error type when one is
// available and falls back to string inspection for transport-level
// failures, where GitHub's HTTP surface is the only signal.
package giterror
