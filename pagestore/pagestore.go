// Package pagestore implements C6, the Page Store: persistent per-page
// records with the OCR status machine from spec §4.5.
package pagestore

import (
	"context"
	"time"

	"github.com/gottino/rmirror-cloud/domain"
)

// Store is the C6 contract. State transitions are conditional updates keyed
// on the expected current status (spec §5: "State-machine transitions via
// conditional updates keyed on current status"), never blind writes.
type Store interface {
	// GetOrCreate locates (notebook, page_uuid); if absent, creates a fresh
	// not_synced row. Used by ingestion step 3.
	GetOrCreate(ctx context.Context, userID, notebookUUID, pageUUID string, pageNumber int) (*domain.Page, error)

	Get(ctx context.Context, notebookUUID, pageUUID string) (*domain.Page, error)

	// GetByPageUUID locates a page by (user, page_uuid) alone, for callers
	// that only carry a page_uuid reference and need the owning notebook
	// before they can call Get (e.g. a WorkItem). Pages are keyed by
	// (notebook, page_uuid); nothing enforces page_uuid uniqueness per
	// user, and if several rows match, one of them is returned.
	GetByPageUUID(ctx context.Context, userID, pageUUID string) (*domain.Page, error)

	// List returns every page of a notebook, page_number ascending (spec
	// §6 "GET /notebooks/{id}/pages -> List pages").
	List(ctx context.Context, notebookUUID string) ([]*domain.Page, error)

	// TransitionToPending moves not_synced|pending_quota|failed -> pending,
	// recording the new content hash, the rendered PDF's key (spec §4.7
	// step 4: "Store any rendered PDF"), and clearing any stale OCR result.
	// Returns false (no error) if the page wasn't in an expected source
	// state — the caller lost a race and should re-read.
	TransitionToPending(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey string) (bool, error)

	// TransitionToPendingQuota moves not_synced|failed -> pending_quota,
	// recording pdfKey/sourceKey (spec invariant: pending_quota requires
	// pdf_key non-null) without touching the quota ledger.
	TransitionToPendingQuota(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey, sourceKey string) (bool, error)

	// CompleteOCR moves pending -> completed, persisting text/confidence;
	// the content hash stays the one TransitionToPending recorded.
	CompleteOCR(ctx context.Context, notebookUUID, pageUUID, text string, confidence float64) error

	// FailOCR moves pending -> failed, recording nothing but the status
	// change; ocr_text/confidence are left as-is (spec: terminal until an
	// explicit retry trigger).
	FailOCR(ctx context.Context, notebookUUID, pageUUID string) error

	// CountPendingQuota reports how many pending_quota pages a user has,
	// for the hard-cap check in ingestion step 6.
	CountPendingQuota(ctx context.Context, userID string) (int, error)

	// ClaimOldestPendingQuota is the retroactive processor's race-free
	// selection primitive (spec §4.8 step 2-3): it atomically claims up to
	// `limit` pending_quota pages for userID, newest-first, flipping each to
	// pending in the same statement so a concurrent upload can't also claim
	// it.
	ClaimOldestPendingQuota(ctx context.Context, userID string, limit int) ([]*domain.Page, error)
}

// StatusMachineError distinguishes "no such page" from "page existed but
// wasn't in the expected state", which callers handle differently (the
// latter is a benign race, not a fault).
type StatusMachineError struct {
	Notebook, Page string
	Expected       []domain.OCRStatus
	Actual         domain.OCRStatus
}

func (e *StatusMachineError) Error() string {
	return "page " + e.Notebook + "/" + e.Page + ": not in expected status"
}

// RetryEligible reports whether a page's current status allows an OCR
// (re)attempt per spec §4.5 dedup rule: completed pages with an unchanged
// hash skip OCR; failed/pending_quota pages with an unchanged hash retry.
func RetryEligible(status domain.OCRStatus) bool {
	switch status {
	case domain.StatusFailed, domain.StatusPendingQuota, domain.StatusNotSynced:
		return true
	default:
		return false
	}
}

func now() time.Time { return time.Now() }
