// Package filestore persists the catalog snapshot as a TOML document on the
// local filesystem.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/blackmarket/internal/domain"
	"github.com/alanyoungcy/blackmarket/internal/snapshot"
)

// Store implements domain.SnapshotStore on a single file.
type Store struct {
	path string
}

// New returns a Store that reads and writes path. The parent directory is
// created on the first Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Load reads the document. A missing file yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.NewSnapshot(), err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewSnapshot(), nil
	}
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("filestore: parse %s: %w", s.path, err)
	}
	return snap, nil
}

// Save replaces the document. The new content is written to a temporary
// file in the same directory and renamed over the old one, so a crash never
// leaves a half-written document behind.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filestore: rename to %s: %w", s.path, err)
	}
	return nil
}

var _ domain.SnapshotStore = (*Store)(nil)
