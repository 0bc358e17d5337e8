package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirseerhq/issue-relay/internal/pipeline"
)

// Record is the NDJSON wire form of one fetched issue with its
// repository context.
type Record struct {
	Repository   string    `json:"repository"`
	RepositoryID string    `json:"repository_id"`
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Labels       []string  `json:"labels"`
}

// Writer streams fetched issues as NDJSON to a file or io.Writer.
// Records are written as they arrive, never accumulated.
type Writer struct {
	mu        sync.Mutex
	encoder   *json.Encoder
	count     int
	closeFunc func() error
}

// NewWriter creates an NDJSON writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{encoder: json.NewEncoder(w)}
}

// NewFileWriter creates an NDJSON writer that writes to a file.
// The caller must call Close() when done.
func NewFileWriter(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &Writer{
		encoder:   json.NewEncoder(file),
		closeFunc: file.Close,
	}, nil
}

// Write emits one fetched issue as a single NDJSON line.
func (w *Writer) Write(rec pipeline.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	labels := rec.Issue.Labels
	if labels == nil {
		labels = []string{}
	}
	line := Record{
		Repository:   rec.Repo.FullName(),
		RepositoryID: rec.Repo.ID,
		ID:           rec.Issue.ID,
		Number:       rec.Issue.Number,
		Title:        rec.Issue.Title,
		State:        rec.Issue.State,
		URL:          rec.Issue.URL,
		CreatedAt:    rec.Issue.CreatedAt,
		UpdatedAt:    rec.Issue.UpdatedAt,
		Labels:       labels,
	}
	if err := w.encoder.Encode(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying writer if it's a file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closeFunc != nil {
		return w.closeFunc()
	}
	return nil
}
