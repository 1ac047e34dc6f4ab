package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"spendwise/internal/core"
)

// GCSStore keeps backup objects in one Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore opens a storage client. With an empty credentialsFile the
// client falls back to Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		credentialsJSON, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read gcs credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (g *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gcs upload %s: %w", name, err)
	}
	return nil
}

func (g *GCSStore) Get(ctx context.Context, name string, limit int64) ([]byte, time.Time, error) {
	r, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, time.Time{}, core.ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("open gcs object reader: %w", err)
	}
	defer r.Close()

	if r.Attrs.Size > limit {
		return nil, time.Time{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, r.Attrs.Size)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read gcs object: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, time.Time{}, ErrTooLarge
	}
	return data, r.Attrs.LastModified, nil
}

func (g *GCSStore) Stat(ctx context.Context, name string) (time.Time, bool, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stat gcs object: %w", err)
	}
	return attrs.Updated, true, nil
}

func (g *GCSStore) Delete(ctx context.Context, name string) error {
	err := g.client.Bucket(g.bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete gcs object: %w", err)
	}
	return nil
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}
