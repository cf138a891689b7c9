// Package notebookstore holds Notebook(user, notebook_uuid) rows (spec
// §3) and answers "has this notebook ever been synced anywhere" for the
// metadata-only ingestion path (spec §4.7).
package notebookstore

import (
	"context"

	"github.com/gottino/rmirror-cloud/domain"
)

type Store interface {
	GetOrCreate(ctx context.Context, n *domain.Notebook) (*domain.Notebook, error)
	Get(ctx context.Context, userID, notebookUUID string) (*domain.Notebook, error)
	UpdateMetadata(ctx context.Context, userID, notebookUUID, visibleName, documentType string) error

	// List returns every notebook owned by userID, most recently modified
	// first (spec §6 "GET /notebooks/ -> List owned notebooks").
	List(ctx context.Context, userID string) ([]*domain.Notebook, error)

	// EverSynced reports whether any SyncRecord with
	// item_kind=notebook_container exists for this notebook, across any
	// destination (spec §4.7: "if it has never been synced to a
	// destination, return SKIPPED").
	EverSynced(ctx context.Context, userID, notebookUUID string) (bool, error)
}
