package objstore

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/colinmarc/hdfs/v2"
)

// hdfsBackend serves on-prem deployments that keep blobs on an existing
// Hadoop cluster rather than a cloud object store (spec SPEC_FULL.md §B).
type hdfsBackend struct {
	client  *hdfs.Client
	rootDir string
}

func newHDFSBackend(cfg Config) (Backend, error) {
	client, err := hdfs.NewClient(hdfs.ClientOptions{Addresses: []string{cfg.HDFSNamenode}})
	if err != nil {
		return nil, err
	}
	root := cfg.HDFSRootDir
	if root == "" {
		root = "/rmirror-cloud"
	}
	return &hdfsBackend{client: client, rootDir: root}, nil
}

func (b *hdfsBackend) fullPath(key string) string { return path.Join(b.rootDir, key) }

func (b *hdfsBackend) Put(_ context.Context, key string, r io.Reader, size int64) error {
	full := b.fullPath(key)
	if err := b.client.MkdirAll(path.Dir(full), 0o755); err != nil {
		return err
	}
	w, err := b.client.Create(full)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *hdfsBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := b.client.Open(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (b *hdfsBackend) Delete(_ context.Context, key string) error {
	return b.client.Remove(b.fullPath(key))
}

func (b *hdfsBackend) Head(_ context.Context, key string) (bool, int64, error) {
	info, err := b.client.Stat(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, info.Size(), nil
}
