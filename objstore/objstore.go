// Package objstore implements C2: a backend-agnostic blob store used for
// the original source upload and any rendered PDF. Mirrors the teacher's own multi-cloud
// backend story, generalized from AIStore's tiered cluster storage to a
// single logical bucket per deployment.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrNotFound = errors.New("objstore: object not found")

// Backend is the contract every cloud/on-prem target implements.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (exists bool, size int64, err error)
}

// Key derives the storage key for a page's source blob or rendered PDF,
// scoped by notebook+page so retries and re-uploads of the same page
// collide on the same object (spec §4.7 step 4: "derived key includes
// page_uuid").
func Key(userID, notebookUUID, pageUUID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s%s", userID, notebookUUID, pageUUID, suffix)
}

func SourceKey(userID, notebookUUID, pageUUID string) string {
	return Key(userID, notebookUUID, pageUUID, ".src")
}

func PDFKey(userID, notebookUUID, pageUUID string) string {
	return Key(userID, notebookUUID, pageUUID, ".pdf")
}

// Open builds a Backend from config (spec SPEC_FULL.md §B: S3, Azure
// Blob, GCS, and on-prem HDFS are all first-class, mirroring the
// teacher's own backend-agnostic identity).
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "s3":
		return newS3Backend(ctx, cfg)
	case "azure":
		return newAzureBackend(ctx, cfg)
	case "gcs":
		return newGCSBackend(ctx, cfg)
	case "hdfs":
		return newHDFSBackend(cfg)
	default:
		return nil, fmt.Errorf("objstore: unknown backend %q", cfg.Backend)
	}
}

type Config struct {
	Backend string // "s3" | "azure" | "gcs" | "hdfs"
	Bucket  string

	// S3
	S3Region   string
	S3Endpoint string // non-empty for S3-compatible (non-AWS) endpoints

	// Azure
	AzureAccountURL string

	// GCS
	GCSProjectID string

	// HDFS
	HDFSNamenode string
	HDFSRootDir  string
}
