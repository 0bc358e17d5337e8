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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store loads and saves snapshots. A missing store yields an empty
// snapshot; Save replaces the previous contents atomically.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
	Close() error
}

// NewStore selects a backend by path extension: .db, .sqlite and
// .sqlite3 open a SQLite store, anything else a JSON file store.
func NewStore(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteStore(path)
	default:
		return &FileStore{Path: path}, nil
	}
}

// FileStore persists the snapshot as a single pretty-printed JSON file
// with a version stamp and a SHA256 content checksum, written with the
// write-to-temp-and-rename pattern so a crashed run never leaves a
// half-written database behind.
type FileStore struct {
	Path string
}

// Load reads and validates the snapshot. A missing file is not an
// error: it yields an empty snapshot, the first-run case.
func (fs *FileStore) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", fs.Path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot file is corrupted (invalid JSON): %w", err)
	}
	if snap.Version != CurrentVersion {
		return nil, fmt.Errorf("snapshot file version (%d) is incompatible with current version (%d)",
			snap.Version, CurrentVersion)
	}

	saved := snap.Checksum
	snap.Checksum = ""
	calculated, err := checksum(&snap)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum for validation: %w", err)
	}
	if saved != calculated {
		return nil, fmt.Errorf("snapshot file is corrupted (checksum mismatch)")
	}
	snap.Checksum = saved

	if snap.Repos == nil {
		snap.Repos = make(map[string]*Repository)
	}
	return &snap, nil
}

// Save writes the snapshot atomically, stamping version and checksum.
func (fs *FileStore) Save(_ context.Context, snap *Snapshot) error {
	snap.Version = CurrentVersion
	snap.Checksum = ""
	sum, err := checksum(snap)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}
	snap.Checksum = sum

	if dir := filepath.Dir(fs.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	tempFile := fs.Path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary snapshot file: %w", err)
	}

	file, err := os.Open(tempFile)
	if err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to open temp file for sync: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempFile, fs.Path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Close implements Store. A file store holds no open resources.
func (fs *FileStore) Close() error { return nil }

// checksum computes the SHA256 of the snapshot's compact JSON form with
// the checksum field cleared.
func checksum(snap *Snapshot) (string, error) {
	snapCopy := *snap
	snapCopy.Checksum = ""
	data, err := json.Marshal(&snapCopy)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
