// Package syncrecord implements C7, the Sync Record Store: per
// (page, destination) external-id mapping and the deduplication source of
// truth for exactly-once external effects (spec §4.6, §7, §8 invariant 3).
package syncrecord

import (
	"context"

	"github.com/gottino/rmirror-cloud/domain"
)

// ItemKindPage and ItemKindContainer distinguish page-level dedup rows from
// the Phase-1 container-creation rows that share the same table (spec
// §4.6: "Each container creation records its external_id in C7 with
// item_kind=notebook_container before returning").
const (
	ItemKindPage      = "page"
	ItemKindContainer = "notebook_container"
)

// Store is the C7 contract.
type Store interface {
	Get(ctx context.Context, userID, pageUUID, destination string) (*domain.SyncRecord, error)

	// Insert attempts the first-writer-wins insert (spec §4.6 step 4). It
	// returns ErrConflict when a concurrent insert already won —
	// callers must then Get the winning row rather than retry the insert.
	Insert(ctx context.Context, rec *domain.SyncRecord) error

	// UpdateContentHash records a successful update_item call (step 3).
	UpdateContentHash(ctx context.Context, userID, pageUUID, destination, contentHash string) error

	// Delete removes a record whose external object was reported
	// archived/deleted externally (spec §4.6 step 5), so the next pass
	// re-enters as a fresh insert (case 4).
	Delete(ctx context.Context, userID, pageUUID, destination string) error

	// FindByContentHash looks up a record by destination and content hash.
	// The orchestrator's duplicate recovery goes through the adapter's
	// CheckDuplicate, not through this method.
	FindByContentHash(ctx context.Context, destination, contentHash string) (*domain.SyncRecord, error)
}

var ErrConflict = domainConflictErr{}

type domainConflictErr struct{}

func (domainConflictErr) Error() string { return "sync record already exists (concurrent insert)" }
