package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/blackmarket/internal/domain"
	"github.com/alanyoungcy/blackmarket/internal/snapshot"
)

// List returns every archived rotation, oldest first. Objects under the
// archive prefix whose names do not parse are ignored.
func (a *Archiver) List(ctx context.Context) ([]domain.ArchiveInfo, error) {
	prefix := path.Join(a.prefix, archiveDir) + "/"
	var infos []domain.ArchiveInfo

	paginator := s3.NewListObjectsV2Paginator(a.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			at, ok := parseArchiveKey(key)
			if !ok {
				continue
			}
			infos = append(infos, domain.ArchiveInfo{
				Path:      key,
				Size:      aws.ToInt64(obj.Size),
				RotatedAt: at,
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].RotatedAt.Before(infos[j].RotatedAt)
	})
	return infos, nil
}

// Get downloads and decodes one archived snapshot. Returns
// domain.ErrNotFound if the object does not exist.
func (a *Archiver) Get(ctx context.Context, key string) (domain.Snapshot, error) {
	out, err := a.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Snapshot{}, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("s3blob: read %s: %w", key, err)
	}
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("s3blob: decode %s: %w", key, err)
	}
	return snap, nil
}

// isNotFound reports whether err means the object does not exist, covering
// the typed SDK errors and a bare 404 from S3-compatible providers.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}
