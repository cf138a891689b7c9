package objstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

type gcsBackend struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func newGCSBackend(ctx context.Context, cfg Config) (Backend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{client: client, bucket: client.Bucket(cfg.Bucket)}, nil
}

func (b *gcsBackend) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (b *gcsBackend) Delete(ctx context.Context, key string) error {
	return b.bucket.Object(key).Delete(ctx)
}

func (b *gcsBackend) Head(ctx context.Context, key string) (bool, int64, error) {
	attrs, err := b.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, 0, nil
		}
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == 404 {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, attrs.Size, nil
}
