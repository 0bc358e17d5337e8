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

package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repositories (
	id               TEXT PRIMARY KEY,
	owner            TEXT NOT NULL,
	name             TEXT NOT NULL,
	open_issue_count INTEGER NOT NULL,
	had_open_issues  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id         TEXT PRIMARY KEY,
	repo_id    TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	number     INTEGER NOT NULL,
	title      TEXT NOT NULL,
	state      TEXT NOT NULL,
	url        TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	labels     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_repo ON issues(repo_id);
`

// SQLiteStore persists the snapshot in a SQLite database. Save replaces
// the whole contents inside one transaction, which gives the same
// all-or-nothing property as the file store's rename.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and ensures the
// schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the full snapshot. A database with no recorded version is
// treated as empty, the first-run case.
func (st *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	meta, err := st.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	if meta["version"] == "" {
		return New(), nil
	}
	version, err := strconv.Atoi(meta["version"])
	if err != nil || version != CurrentVersion {
		return nil, fmt.Errorf("snapshot database version (%s) is incompatible with current version (%d)",
			meta["version"], CurrentVersion)
	}

	snap := New()
	snap.RunID = meta["run_id"]
	if raw := meta["last_run"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("snapshot database has invalid last_run %q: %w", raw, err)
		}
		snap.LastRun = t
	}

	rows, err := st.db.QueryContext(ctx,
		`SELECT id, owner, name, open_issue_count, had_open_issues FROM repositories`)
	if err != nil {
		return nil, fmt.Errorf("failed to read repositories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r := &Repository{Issues: make(map[string]Issue)}
		var hadOpen int
		if err := rows.Scan(&r.ID, &r.Owner, &r.Name, &r.OpenIssueCount, &hadOpen); err != nil {
			return nil, fmt.Errorf("failed to scan repository row: %w", err)
		}
		r.HadOpenIssues = hadOpen != 0
		snap.Repos[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repositories: %w", err)
	}

	issueRows, err := st.db.QueryContext(ctx,
		`SELECT id, repo_id, number, title, state, url, created_at, updated_at, labels FROM issues`)
	if err != nil {
		return nil, fmt.Errorf("failed to read issues: %w", err)
	}
	defer issueRows.Close()
	for issueRows.Next() {
		var (
			i                             Issue
			repoID, created, updated, raw string
		)
		if err := issueRows.Scan(&i.ID, &repoID, &i.Number, &i.Title, &i.State, &i.URL,
			&created, &updated, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan issue row: %w", err)
		}
		if i.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("issue %s has invalid created_at %q: %w", i.ID, created, err)
		}
		if i.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("issue %s has invalid updated_at %q: %w", i.ID, updated, err)
		}
		if err := json.Unmarshal([]byte(raw), &i.Labels); err != nil {
			return nil, fmt.Errorf("issue %s has invalid labels: %w", i.ID, err)
		}
		if r, ok := snap.Repos[repoID]; ok {
			r.Issues[i.ID] = i
		}
	}
	if err := issueRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read issues: %w", err)
	}

	return snap, nil
}

// Save replaces the database contents with the snapshot in one
// transaction.
func (st *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues`); err != nil {
		return fmt.Errorf("failed to clear issues: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM repositories`); err != nil {
		return fmt.Errorf("failed to clear repositories: %w", err)
	}

	repoStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO repositories (id, owner, name, open_issue_count, had_open_issues) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare repository insert: %w", err)
	}
	defer repoStmt.Close()
	issueStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO issues (id, repo_id, number, title, state, url, created_at, updated_at, labels) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer issueStmt.Close()

	for _, r := range snap.Repos {
		hadOpen := 0
		if r.HadOpenIssues {
			hadOpen = 1
		}
		if _, err := repoStmt.ExecContext(ctx, r.ID, r.Owner, r.Name, r.OpenIssueCount, hadOpen); err != nil {
			return fmt.Errorf("failed to insert repository %s: %w", r.FullName(), err)
		}
		for _, i := range r.Issues {
			labels, err := json.Marshal(i.Labels)
			if err != nil {
				return fmt.Errorf("failed to marshal labels for issue %s: %w", i.ID, err)
			}
			if _, err := issueStmt.ExecContext(ctx, i.ID, r.ID, i.Number, i.Title, i.State, i.URL,
				i.CreatedAt.UTC().Format(time.RFC3339Nano),
				i.UpdatedAt.UTC().Format(time.RFC3339Nano),
				string(labels)); err != nil {
				return fmt.Errorf("failed to insert issue %s: %w", i.ID, err)
			}
		}
	}

	meta := map[string]string{
		"version":  strconv.Itoa(CurrentVersion),
		"run_id":   snap.RunID,
		"last_run": snap.LastRun.UTC().Format(time.RFC3339Nano),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (st *SQLiteStore) Close() error {
	return st.db.Close()
}

func (st *SQLiteStore) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := st.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan meta row: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	return meta, nil
}
