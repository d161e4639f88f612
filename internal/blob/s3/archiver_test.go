package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// fakeBucket is an in-memory stand-in for both the uploader and the object API.
type fakeBucket struct {
	objects map[string][]byte
	pages   int
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (f *fakeBucket) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.pages++
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(in.Prefix)
	for key, data := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(data)))})
		}
	}
	return out, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newTestArchiver(f *fakeBucket) *Archiver {
	return &Archiver{
		up:     f,
		api:    f,
		bucket: "test",
		prefix: "bm",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestArchiveKeyRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	key := archiveKey("bm", at)
	if key != "bm/rotations/2026/03/04/20260304T050607.890Z.toml" {
		t.Fatalf("unexpected key %q", key)
	}
	got, ok := parseArchiveKey(key)
	if !ok || !got.Equal(at) {
		t.Fatalf("parseArchiveKey = %v, %v", got, ok)
	}
	if _, ok := parseArchiveKey("bm/rotations/readme.txt"); ok {
		t.Fatal("foreign object should not parse")
	}
}

func TestArchiveListGet(t *testing.T) {
	ctx := context.Background()
	f := newFakeBucket()
	a := newTestArchiver(f)

	first := domain.NewSnapshot()
	first.Pool["a"] = domain.ItemRecord{Item: "A", Costs: []string{}, Weight: 2}
	first.Active = []string{"a"}
	second := domain.NewSnapshot()

	t1 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	if err := a.Archive(ctx, second, t2); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := a.Archive(ctx, first, t1); err != nil {
		t.Fatalf("archive: %v", err)
	}
	f.objects["bm/rotations/notes.txt"] = []byte("x")

	infos, err := a.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || !infos[0].RotatedAt.Equal(t1) || !infos[1].RotatedAt.Equal(t2) {
		t.Fatalf("unexpected listing: %+v", infos)
	}

	snap, err := a.Get(ctx, infos[0].Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Pool["a"].Weight != 2 || len(snap.Active) != 1 {
		t.Fatalf("unexpected archived snapshot: %+v", snap)
	}
}

func TestGetMissing(t *testing.T) {
	a := newTestArchiver(newFakeBucket())
	_, err := a.Get(context.Background(), "bm/rotations/nope.toml")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"http://localhost:9000", true, "http://localhost:9000"},
		{"10.0.0.1:9000", false, "http://10.0.0.1:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Fatalf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}
