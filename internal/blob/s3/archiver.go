package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/blackmarket/internal/domain"
	"github.com/alanyoungcy/blackmarket/internal/snapshot"
)

const (
	// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
	minPartSize int64 = 5 * 1024 * 1024

	archiveDir    = "rotations"
	archiveLayout = "20060102T150405.000Z"
	archiveExt    = ".toml"
	contentType   = "application/toml"
)

// uploader is the part of manager.Uploader the archiver uses.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// objectAPI is the part of the S3 client used to read the archive back.
type objectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archiver implements domain.SnapshotArchiver. Each rotation's closing
// snapshot is stored under
//
//	{prefix}/rotations/YYYY/MM/DD/{YYYYMMDDTHHMMSS.mmmZ}.toml
type Archiver struct {
	up     uploader
	api    objectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing to the client's bucket.
func NewArchiver(c *Client, logger *slog.Logger) *Archiver {
	return &Archiver{
		up: manager.NewUploader(c.s3, func(u *manager.Uploader) {
			u.PartSize = minPartSize
		}),
		api:    c.s3,
		bucket: c.bucket,
		prefix: c.prefix,
		logger: logger.With(slog.String("component", "s3_archiver")),
	}
}

// archiveKey returns the object key for a snapshot taken at t.
func archiveKey(prefix string, t time.Time) string {
	t = t.UTC()
	name := t.Format(archiveLayout) + archiveExt
	return path.Join(prefix, archiveDir, t.Format("2006"), t.Format("01"), t.Format("02"), name)
}

// parseArchiveKey recovers the rotation time from a key built by archiveKey.
func parseArchiveKey(key string) (time.Time, bool) {
	name := path.Base(key)
	if !strings.HasSuffix(name, archiveExt) {
		return time.Time{}, false
	}
	t, err := time.Parse(archiveLayout, strings.TrimSuffix(name, archiveExt))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Archive uploads snap as the record of the period that ended at rotatedAt.
func (a *Archiver) Archive(ctx context.Context, snap domain.Snapshot, rotatedAt time.Time) error {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return fmt.Errorf("s3blob: encode archive: %w", err)
	}
	key := archiveKey(a.prefix, rotatedAt)

	_, err = a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload archive %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "rotation archived",
		slog.String("key", key),
		slog.Int("bytes", len(data)),
		slog.Int("pool", len(snap.Pool)),
	)
	return nil
}

var _ domain.SnapshotArchiver = (*Archiver)(nil)
