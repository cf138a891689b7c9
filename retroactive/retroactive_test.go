package retroactive

import (
	"context"
	"testing"
	"time"

	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/quota"
)

type fakePages struct {
	claimLimit int
	toReturn   []*domain.Page
}

func (f *fakePages) GetOrCreate(ctx context.Context, userID, notebookUUID, pageUUID string, pageNumber int) (*domain.Page, error) {
	return nil, nil
}
func (f *fakePages) Get(ctx context.Context, notebookUUID, pageUUID string) (*domain.Page, error) {
	return nil, nil
}
func (f *fakePages) GetByPageUUID(ctx context.Context, userID, pageUUID string) (*domain.Page, error) {
	return nil, nil
}
func (f *fakePages) List(ctx context.Context, notebookUUID string) ([]*domain.Page, error) {
	return nil, nil
}
func (f *fakePages) TransitionToPending(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey string) (bool, error) {
	return true, nil
}
func (f *fakePages) TransitionToPendingQuota(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey, sourceKey string) (bool, error) {
	return true, nil
}
func (f *fakePages) CompleteOCR(ctx context.Context, notebookUUID, pageUUID, text string, confidence float64) error {
	return nil
}
func (f *fakePages) FailOCR(ctx context.Context, notebookUUID, pageUUID string) error { return nil }
func (f *fakePages) CountPendingQuota(ctx context.Context, userID string) (int, error) {
	return len(f.toReturn), nil
}
func (f *fakePages) ClaimOldestPendingQuota(ctx context.Context, userID string, limit int) ([]*domain.Page, error) {
	f.claimLimit = limit
	if limit < len(f.toReturn) {
		return f.toReturn[:limit], nil
	}
	return f.toReturn, nil
}

type fakeQuota struct{ snapshot domain.QuotaSnapshot }

func (q *fakeQuota) Check(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (quota.CheckResult, error) {
	return quota.CheckResult{}, nil
}
func (q *fakeQuota) Consume(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (quota.ConsumeResult, error) {
	return quota.ConsumeResult{}, nil
}
func (q *fakeQuota) Reset(ctx context.Context, userID string, kind domain.QuotaKind) error { return nil }
func (q *fakeQuota) Observe(ctx context.Context, userID string, kind domain.QuotaKind) (domain.QuotaSnapshot, error) {
	return q.snapshot, nil
}
func (q *fakeQuota) PendingThresholdEvents(ctx context.Context, limit int) ([]quota.ThresholdEvent, error) {
	return nil, nil
}
func (q *fakeQuota) MarkDelivered(ctx context.Context, eventID int64) error { return nil }
func (q *fakeQuota) EnsureLedger(ctx context.Context, userID string, kind domain.QuotaKind, limit int64) error {
	return nil
}

type fakeQueue struct{ enqueued []*domain.WorkItem }

func (q *fakeQueue) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	q.enqueued = append(q.enqueued, item)
	return nil
}
func (q *fakeQueue) Claim(ctx context.Context, workerID string, batch int, leaseDuration time.Duration) ([]*domain.WorkItem, error) {
	return nil, nil
}
func (q *fakeQueue) Complete(ctx context.Context, id int64) error { return nil }
func (q *fakeQueue) Fail(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	return nil
}
func (q *fakeQueue) SweepExpiredLeases(ctx context.Context) (int, error) { return 0, nil }
func (q *fakeQueue) Depth(ctx context.Context) (int, int, error)        { return 0, 0, nil }

func hashPage(userID, pageUUID, hash string) *domain.Page {
	return &domain.Page{UserID: userID, PageUUID: pageUUID, ContentHash: &hash}
}

func TestReset_ClaimsUpToHeadroom(t *testing.T) {
	pages := &fakePages{toReturn: []*domain.Page{
		hashPage("u1", "p1", "h1"),
		hashPage("u1", "p2", "h2"),
		hashPage("u1", "p3", "h3"),
	}}
	q := &fakeQuota{snapshot: domain.QuotaSnapshot{Limit: 100, Used: 98}} // headroom = 2
	queue := &fakeQueue{}

	proc := New(pages, q, queue)
	claimed, err := proc.Reset(context.Background(), "u1", []string{"structurednotes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages.claimLimit != 2 {
		t.Fatalf("expected claim limit 2, got %d", pages.claimLimit)
	}
	if claimed != 2 {
		t.Fatalf("expected claimed=2, got %d", claimed)
	}
	if len(queue.enqueued) != 2 {
		t.Fatalf("expected 2 enqueued sync items, got %d", len(queue.enqueued))
	}
}

func TestReset_NoHeadroomClaimsNothing(t *testing.T) {
	pages := &fakePages{toReturn: []*domain.Page{hashPage("u1", "p1", "h1")}}
	q := &fakeQuota{snapshot: domain.QuotaSnapshot{Limit: 100, Used: 100}}
	queue := &fakeQueue{}

	proc := New(pages, q, queue)
	claimed, err := proc.Reset(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != 0 {
		t.Fatalf("expected claimed=0 when headroom is exhausted, got %d", claimed)
	}
	if len(queue.enqueued) != 0 {
		t.Fatalf("expected no enqueues when headroom is exhausted")
	}
}

func TestReset_UnlimitedTierBoundedByMaxClaimBatch(t *testing.T) {
	pages := &fakePages{toReturn: make([]*domain.Page, 0)}
	q := &fakeQuota{snapshot: domain.QuotaSnapshot{Limit: -1, Used: 9999}}
	queue := &fakeQueue{}

	proc := New(pages, q, queue)
	if _, err := proc.Reset(context.Background(), "u1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages.claimLimit != MaxClaimBatch {
		t.Fatalf("expected unlimited tier to bound claim at %d, got %d", MaxClaimBatch, pages.claimLimit)
	}
}
