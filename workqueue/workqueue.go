// Package workqueue implements C8: a persistent, priority-ordered queue
// with lease-and-claim semantics for multiple workers, entirely inside the
// primary data store (spec §9: "no message broker is required").
package workqueue

import (
	"context"
	"math"
	"time"

	"github.com/gottino/rmirror-cloud/domain"
)

// Queue is the C8 contract.
type Queue interface {
	// Enqueue inserts a new WorkItem, or is a no-op if one is already open
	// (queued or leased) for the same (user, target_ref, kind) — spec §3
	// invariant: "at most one non-terminal WorkItem per (user, target_ref, kind)".
	Enqueue(ctx context.Context, item *domain.WorkItem) error

	// Claim atomically leases up to `batch` queued rows, lowest priority
	// and oldest created_at first, skipping rows already locked by another
	// claimer (spec §4.6: "FOR UPDATE SKIP LOCKED or equivalent").
	Claim(ctx context.Context, workerID string, batch int, leaseDuration time.Duration) ([]*domain.WorkItem, error)

	// Complete marks a leased item done.
	Complete(ctx context.Context, id int64) error

	// Fail increments attempts and either requeues with backoff or marks
	// the item permanently failed once max_retries is exhausted (spec
	// §4.6 "On completion/On failure").
	Fail(ctx context.Context, id int64, maxRetries int, errMsg string) error

	// SweepExpiredLeases re-queues any leased item whose lease has expired,
	// satisfying spec §8 invariant 7. Returns the count reclaimed.
	SweepExpiredLeases(ctx context.Context) (int, error)

	// Depth reports the current queued and leased counts.
	Depth(ctx context.Context) (queued, leased int, err error)
}

// Backoff implements spec §4.6 exactly: min(30 * 2^attempt, 3600) seconds.
func Backoff(attempt int) time.Duration {
	secs := 30 * math.Pow(2, float64(attempt))
	if secs > 3600 {
		secs = 3600
	}
	return time.Duration(secs) * time.Second
}

// NewFullSyncItem builds a Phase-2 page-sync WorkItem (spec §4.6).
func NewFullSyncItem(userID, pageUUID, contentHash string, destinations []string) *domain.WorkItem {
	return &domain.WorkItem{
		UserID:              userID,
		Kind:                domain.WorkFull,
		TargetRef:           pageUUID,
		ItemKind:            "page",
		ContentHashSnapshot: contentHash,
		Destinations:        destinations,
		Priority:            domain.DefaultPagePriority,
	}
}

// NewMetadataSyncItem builds a metadata-only WorkItem (spec §4.6, §4.7).
func NewMetadataSyncItem(userID, notebookUUID string, destinations []string) *domain.WorkItem {
	return &domain.WorkItem{
		UserID:       userID,
		Kind:         domain.WorkMetadata,
		TargetRef:    notebookUUID,
		ItemKind:     "notebook_metadata",
		Destinations: destinations,
		Priority:     domain.DefaultPagePriority + 5, // rate-limited more loosely, not more urgently
	}
}

// NewContainerCreationItem builds a Phase-1 lease item: priority 0, one
// per user serializes all of that user's container creations (spec §4.6).
func NewContainerCreationItem(userID, notebookUUID string, destinations []string) *domain.WorkItem {
	return &domain.WorkItem{
		UserID:       userID,
		Kind:         domain.WorkFull,
		TargetRef:    notebookUUID,
		ItemKind:     "notebook_container",
		Destinations: destinations,
		Priority:     domain.ContainerCreationPriority,
	}
}
