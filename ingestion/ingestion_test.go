package ingestion

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/ocr"
	"github.com/gottino/rmirror-cloud/quota"
	"github.com/gottino/rmirror-cloud/workqueue"
)

type fakePages struct {
	pages map[string]*domain.Page
}

func newFakePages() *fakePages { return &fakePages{pages: map[string]*domain.Page{}} }

func key(notebookUUID, pageUUID string) string { return notebookUUID + "/" + pageUUID }

func (f *fakePages) GetOrCreate(ctx context.Context, userID, notebookUUID, pageUUID string, pageNumber int) (*domain.Page, error) {
	k := key(notebookUUID, pageUUID)
	if p, ok := f.pages[k]; ok {
		return p, nil
	}
	p := &domain.Page{UserID: userID, NotebookUUID: notebookUUID, PageUUID: pageUUID, PageNumber: pageNumber, OCRStatus: domain.StatusNotSynced}
	f.pages[k] = p
	return p, nil
}

func (f *fakePages) Get(ctx context.Context, notebookUUID, pageUUID string) (*domain.Page, error) {
	return f.pages[key(notebookUUID, pageUUID)], nil
}

func (f *fakePages) GetByPageUUID(ctx context.Context, userID, pageUUID string) (*domain.Page, error) {
	for _, p := range f.pages {
		if p.UserID == userID && p.PageUUID == pageUUID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePages) List(ctx context.Context, notebookUUID string) ([]*domain.Page, error) {
	var out []*domain.Page
	for _, p := range f.pages {
		if p.NotebookUUID == notebookUUID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePages) TransitionToPending(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey string) (bool, error) {
	p := f.pages[key(notebookUUID, pageUUID)]
	if p == nil {
		return false, nil
	}
	p.OCRStatus = domain.StatusPending
	p.ContentHash = &contentHash
	p.PDFKey = &pdfKey
	return true, nil
}

func (f *fakePages) TransitionToPendingQuota(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey, sourceKey string) (bool, error) {
	p := f.pages[key(notebookUUID, pageUUID)]
	if p == nil {
		return false, nil
	}
	p.OCRStatus = domain.StatusPendingQuota
	p.ContentHash = &contentHash
	return true, nil
}

func (f *fakePages) CompleteOCR(ctx context.Context, notebookUUID, pageUUID, text string, confidence float64) error {
	p := f.pages[key(notebookUUID, pageUUID)]
	p.OCRStatus = domain.StatusCompleted
	p.OCRText = &text
	p.OCRConfidence = &confidence
	return nil
}

func (f *fakePages) FailOCR(ctx context.Context, notebookUUID, pageUUID string) error {
	f.pages[key(notebookUUID, pageUUID)].OCRStatus = domain.StatusFailed
	return nil
}

func (f *fakePages) CountPendingQuota(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, p := range f.pages {
		if p.UserID == userID && p.OCRStatus == domain.StatusPendingQuota {
			n++
		}
	}
	return n, nil
}

func (f *fakePages) ClaimOldestPendingQuota(ctx context.Context, userID string, limit int) ([]*domain.Page, error) {
	return nil, nil
}

type fakeNotebooks struct{}

func (fakeNotebooks) GetOrCreate(ctx context.Context, n *domain.Notebook) (*domain.Notebook, error) {
	return n, nil
}
func (fakeNotebooks) Get(ctx context.Context, userID, notebookUUID string) (*domain.Notebook, error) {
	return &domain.Notebook{UserID: userID, NotebookUUID: notebookUUID}, nil
}
func (fakeNotebooks) UpdateMetadata(ctx context.Context, userID, notebookUUID, visibleName, documentType string) error {
	return nil
}
func (fakeNotebooks) EverSynced(ctx context.Context, userID, notebookUUID string) (bool, error) {
	return true, nil
}
func (fakeNotebooks) List(ctx context.Context, userID string) ([]*domain.Notebook, error) {
	return nil, nil
}

type fakeQuota struct {
	allow    bool
	consumed int64
}

func (q *fakeQuota) Check(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (quota.CheckResult, error) {
	return quota.CheckResult{OK: q.allow}, nil
}
func (q *fakeQuota) Consume(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (quota.ConsumeResult, error) {
	q.consumed += n
	return quota.ConsumeResult{Consumed: n}, nil
}
func (q *fakeQuota) Reset(ctx context.Context, userID string, kind domain.QuotaKind) error { return nil }
func (q *fakeQuota) Observe(ctx context.Context, userID string, kind domain.QuotaKind) (domain.QuotaSnapshot, error) {
	return domain.QuotaSnapshot{}, nil
}
func (q *fakeQuota) PendingThresholdEvents(ctx context.Context, limit int) ([]quota.ThresholdEvent, error) {
	return nil, nil
}
func (q *fakeQuota) MarkDelivered(ctx context.Context, eventID int64) error { return nil }
func (q *fakeQuota) EnsureLedger(ctx context.Context, userID string, kind domain.QuotaKind, limit int64) error {
	return nil
}

type fakeObjects struct{ puts int }

func (o *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	o.puts++
	_, err := io.Copy(io.Discard, r)
	return err
}
func (o *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}
func (o *fakeObjects) Delete(ctx context.Context, key string) error { return nil }
func (o *fakeObjects) Head(ctx context.Context, key string) (bool, int64, error) {
	return true, 0, nil
}

type fakeOCR struct {
	err   error
	pages []ocr.PageResult
}

func (o *fakeOCR) Recognize(ctx context.Context, blob []byte, contentType string) (*ocr.Result, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &ocr.Result{Pages: o.pages}, nil
}

type fakeQueue struct{ enqueued []*domain.WorkItem }

func (q *fakeQueue) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	q.enqueued = append(q.enqueued, item)
	return nil
}

func newTestService(allowQuota bool, ocrErr error) (*Service, *fakePages, *fakeQuota, *fakeQueue) {
	pages := newFakePages()
	q := &fakeQuota{allow: allowQuota}
	objects := &fakeObjects{}
	oc := &fakeOCR{err: ocrErr, pages: []ocr.PageResult{{PageNumber: 1, Text: "hi", Confidence: 0.8}}}
	queue := &fakeQueue{}
	svc := &Service{
		Pages:     pages,
		Notebooks: fakeNotebooks{},
		Quota:     q,
		Objects:   objects,
		OCR:       oc,
		Queue:     queueAdapter{queue},
		limiters:  newLimiterSet(1000, 1000),
	}
	return svc, pages, q, queue
}

// queueAdapter satisfies workqueue.Queue using only the methods ingestion
// actually calls; the rest are no-ops that return zero values.
type queueAdapter struct{ *fakeQueue }

func (queueAdapter) Claim(ctx context.Context, workerID string, batch int, leaseDuration time.Duration) ([]*domain.WorkItem, error) {
	return nil, nil
}
func (queueAdapter) Complete(ctx context.Context, id int64) error { return nil }
func (queueAdapter) Fail(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	return nil
}
func (queueAdapter) SweepExpiredLeases(ctx context.Context) (int, error) { return 0, nil }
func (queueAdapter) Depth(ctx context.Context) (int, int, error)        { return 0, 0, nil }

var _ workqueue.Queue = queueAdapter{}

func TestUpload_CompletesAndConsumesQuotaAfterOCR(t *testing.T) {
	svc, pages, q, queue := newTestService(true, nil)
	out, err := svc.Upload(context.Background(), Upload{
		UserID: "u1", NotebookUUID: "nb1", PageUUID: "p1", Blob: []byte("data"),
		Destinations: []string{"structurednotes"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "completed" || out.Text != "hi" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if q.consumed != 1 {
		t.Fatalf("expected quota consumed=1, got %d", q.consumed)
	}
	if pages.pages["nb1/p1"].OCRStatus != domain.StatusCompleted {
		t.Fatalf("expected page completed, got %s", pages.pages["nb1/p1"].OCRStatus)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected one enqueued sync item, got %d", len(queue.enqueued))
	}
}

func TestUpload_DefersWhenQuotaExhausted(t *testing.T) {
	svc, pages, q, queue := newTestService(false, nil)
	out, err := svc.Upload(context.Background(), Upload{
		UserID: "u1", NotebookUUID: "nb1", PageUUID: "p1", Blob: []byte("data"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "accepted_deferred" {
		t.Fatalf("expected accepted_deferred, got %q", out.Status)
	}
	if q.consumed != 0 {
		t.Fatalf("quota must not be consumed when deferred, got %d", q.consumed)
	}
	if pages.pages["nb1/p1"].OCRStatus != domain.StatusPendingQuota {
		t.Fatalf("expected pending_quota, got %s", pages.pages["nb1/p1"].OCRStatus)
	}
	if len(queue.enqueued) != 0 {
		t.Fatalf("deferred uploads must not enqueue sync work")
	}
}

func TestUpload_FailedOCRDoesNotChargeQuota(t *testing.T) {
	svc, pages, q, _ := newTestService(true, &ocr.PermanentError{})
	_, err := svc.Upload(context.Background(), Upload{
		UserID: "u1", NotebookUUID: "nb1", PageUUID: "p1", Blob: []byte("data"),
	})
	if err == nil {
		t.Fatal("expected an error from a permanent OCR failure")
	}
	if q.consumed != 0 {
		t.Fatalf("an aborted/failed OCR must not charge the user, consumed=%d", q.consumed)
	}
	if pages.pages["nb1/p1"].OCRStatus != domain.StatusFailed {
		t.Fatalf("expected page failed, got %s", pages.pages["nb1/p1"].OCRStatus)
	}
}
