package domain

import (
	"context"
	"time"
)

// SnapshotStore persists the catalog as a single snapshot. Save fully
// replaces whatever was stored before. Load on a store that has never been
// written returns an empty snapshot and no error.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// ResourceCodec turns resources into opaque strings and back.
type ResourceCodec interface {
	Encode(r Resource) (string, error)
	Decode(blob string) (Resource, error)
}

// ArchiveInfo describes one archived rotation period.
type ArchiveInfo struct {
	Path      string
	Size      int64
	RotatedAt time.Time
}

// SnapshotArchiver keeps a history of catalog snapshots, one per rotation.
// Get takes an ArchiveInfo.Path and returns ErrNotFound for unknown keys.
type SnapshotArchiver interface {
	Archive(ctx context.Context, snap Snapshot, rotatedAt time.Time) error
	List(ctx context.Context) ([]ArchiveInfo, error)
	Get(ctx context.Context, key string) (Snapshot, error)
}
