// Package ingestion implements C9: the upload-handling algorithm of spec
// §4.7, wiring together the object store, OCR adapter, quota ledger, page
// store, and work queue per upload.
package ingestion

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/gottino/rmirror-cloud/cmn/cos"
	"github.com/gottino/rmirror-cloud/cmn/errs"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/notebookstore"
	"github.com/gottino/rmirror-cloud/objstore"
	"github.com/gottino/rmirror-cloud/ocr"
	"github.com/gottino/rmirror-cloud/pagestore"
	"github.com/gottino/rmirror-cloud/quota"
	"github.com/gottino/rmirror-cloud/workqueue"
)

// MaxPendingQuotaPages is the anti-abuse hard cap (spec §4.7).
const MaxPendingQuotaPages = 100

// UploadsPerMinute is the default per-user rate limit (spec §4.7).
const UploadsPerMinute = 10

// Upload is the inbound request shape for the single-page upload endpoint.
type Upload struct {
	UserID       string
	NotebookUUID string
	PageUUID     string
	PageNumber   int
	Blob         []byte
	ContentType  string
	Destinations []string
}

// Outcome is what the ingestion service reports back to the caller.
type Outcome struct {
	Status     string // page upload: "completed" | "accepted_deferred" | "cached"; metadata: "skipped" | "accepted"
	Text       string
	Confidence float64
}

type Service struct {
	Pages     pagestore.Store
	Notebooks notebookstore.Store
	Quota     quota.Ledger
	Objects   objstore.Backend
	OCR       ocr.Client
	Queue     workqueue.Queue
	limiters  *limiterSet
}

func New(pages pagestore.Store, notebooks notebookstore.Store, q quota.Ledger, objects objstore.Backend, o ocr.Client, wq workqueue.Queue) *Service {
	return &Service{
		Pages:     pages,
		Notebooks: notebooks,
		Quota:     q,
		Objects:   objects,
		OCR:       o,
		Queue:     wq,
		limiters:  newLimiterSet(rate.Limit(UploadsPerMinute)/60, UploadsPerMinute),
	}
}

// MetadataUpdate handles the separate metadata-only endpoint (spec §4.7):
// notebook property changes with no content, never touching quota.
type MetadataUpdate struct {
	UserID       string
	NotebookUUID string
	VisibleName  string
	DocumentType string
	Destinations []string
}

func (s *Service) UpdateMetadata(ctx context.Context, m MetadataUpdate) (Outcome, error) {
	nb, err := s.Notebooks.Get(ctx, m.UserID, m.NotebookUUID)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "lookup notebook")
	}
	if nb == nil {
		return Outcome{}, errs.Validation(nil)
	}

	everSynced, err := s.Notebooks.EverSynced(ctx, m.UserID, m.NotebookUUID)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "check notebook sync history")
	}
	if !everSynced {
		return Outcome{Status: "skipped"}, nil
	}

	if err := s.Notebooks.UpdateMetadata(ctx, m.UserID, m.NotebookUUID, m.VisibleName, m.DocumentType); err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "update notebook metadata")
	}

	if len(m.Destinations) > 0 {
		item := workqueue.NewMetadataSyncItem(m.UserID, m.NotebookUUID, m.Destinations)
		if err := s.Queue.Enqueue(ctx, item); err != nil {
			return Outcome{}, errs.Wrap(errs.KindTransient, err, "enqueue metadata sync")
		}
	}
	return Outcome{Status: "accepted"}, nil
}

// Upload runs the per-upload algorithm of spec §4.7 steps 2-7.
func (s *Service) Upload(ctx context.Context, u Upload) (Outcome, error) {
	if !s.limiters.Allow(u.UserID) {
		return Outcome{}, errs.RateLimited(nil, 6) // ~1 slot every 6s at 10/min
	}

	hash := cos.SHA256Hex(u.Blob)

	page, err := s.Pages.GetOrCreate(ctx, u.UserID, u.NotebookUUID, u.PageUUID, u.PageNumber)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "get or create page")
	}

	sourceKey := objstore.SourceKey(u.UserID, u.NotebookUUID, u.PageUUID)
	if err := s.Objects.Put(ctx, sourceKey, byteReader(u.Blob), int64(len(u.Blob))); err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "store source blob")
	}

	// step 4: "Store any rendered PDF" — the agent already renders the
	// page to PDF bytes before upload (the OCR adapter's contract is
	// "submit a rendered PDF"), so the server's render step is just
	// persisting those same bytes under the derived pdf_key.
	pdfKey := objstore.PDFKey(u.UserID, u.NotebookUUID, u.PageUUID)
	if err := s.Objects.Put(ctx, pdfKey, byteReader(u.Blob), int64(len(u.Blob))); err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "store rendered pdf")
	}

	// step 5: dedup against current content_hash (spec §4.5 "Deduplication
	// inside ingestion").
	if page.ContentHash != nil && *page.ContentHash == hash {
		switch page.OCRStatus {
		case domain.StatusCompleted:
			text := ""
			if page.OCRText != nil {
				text = *page.OCRText
			}
			conf := 0.0
			if page.OCRConfidence != nil {
				conf = *page.OCRConfidence
			}
			return Outcome{Status: "cached", Text: text, Confidence: conf}, nil
		case domain.StatusFailed, domain.StatusPendingQuota:
			// fall through: retry OCR, quota permitting.
		default:
			return Outcome{Status: "accepted_deferred"}, nil
		}
	}

	check, err := s.Quota.Check(ctx, u.UserID, domain.QuotaOCRPages, 1)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "check quota")
	}

	if !check.OK {
		return s.deferForQuota(ctx, u, hash, sourceKey, pdfKey)
	}

	return s.runOCR(ctx, u, hash, pdfKey)
}

func (s *Service) deferForQuota(ctx context.Context, u Upload, hash, sourceKey, pdfKey string) (Outcome, error) {
	n, err := s.Pages.CountPendingQuota(ctx, u.UserID)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "count pending quota")
	}
	if n >= MaxPendingQuotaPages {
		return Outcome{}, errs.CapExceeded(nil)
	}

	ok, err := s.Pages.TransitionToPendingQuota(ctx, u.NotebookUUID, u.PageUUID, hash, pdfKey, sourceKey)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "transition to pending_quota")
	}
	if !ok {
		nlog.Warnf("ingestion: page %s/%s not in a state that allows pending_quota", u.NotebookUUID, u.PageUUID)
	}
	// step 6 "exhausted": do NOT enqueue sync work.
	return Outcome{Status: "accepted_deferred"}, nil
}

func (s *Service) runOCR(ctx context.Context, u Upload, hash, pdfKey string) (Outcome, error) {
	ok, err := s.Pages.TransitionToPending(ctx, u.NotebookUUID, u.PageUUID, hash, pdfKey)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "transition to pending")
	}
	if !ok {
		return Outcome{Status: "accepted_deferred"}, nil
	}

	start := time.Now()
	result, err := s.OCR.Recognize(ctx, u.Blob, u.ContentType)
	ocrMS := time.Since(start).Milliseconds()

	if err != nil {
		if kind := ocr.KindOf(err); kind == errs.KindPermanent {
			_ = s.Pages.FailOCR(ctx, u.NotebookUUID, u.PageUUID)
			nlog.Errorf("ingestion: permanent ocr failure notebook=%s page=%s ocr_ms=%d: %v",
				u.NotebookUUID, u.PageUUID, ocrMS, err)
			return Outcome{}, errs.Permanent(err)
		}
		_ = s.Pages.FailOCR(ctx, u.NotebookUUID, u.PageUUID)
		return Outcome{}, errs.Transient(err)
	}

	// Order matters: OCR already ran; debit only now that it succeeded
	// (spec §5: "an aborted OCR does not charge the user").
	pageCount := int64(len(result.Pages))
	if pageCount == 0 {
		pageCount = 1
	}
	if _, err := s.Quota.Consume(ctx, u.UserID, domain.QuotaOCRPages, pageCount); err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "consume quota")
	}

	var text string
	var confidence float64
	if len(result.Pages) > 0 {
		text = result.Pages[0].Text
		confidence = result.Pages[0].Confidence
	}

	if err := s.Pages.CompleteOCR(ctx, u.NotebookUUID, u.PageUUID, text, confidence); err != nil {
		return Outcome{}, errs.Wrap(errs.KindTransient, err, "complete ocr")
	}

	if len(u.Destinations) > 0 {
		item := workqueue.NewFullSyncItem(u.UserID, u.PageUUID, hash, u.Destinations)
		if err := s.Queue.Enqueue(ctx, item); err != nil {
			nlog.Errorf("ingestion: enqueue sync work notebook=%s page=%s: %v", u.NotebookUUID, u.PageUUID, err)
		}
	}

	nlog.Infof("ingestion: ocr complete notebook=%s page=%s bytes=%d ocr_ms=%d", u.NotebookUUID, u.PageUUID, len(u.Blob), ocrMS)
	return Outcome{Status: "completed", Text: text, Confidence: confidence}, nil
}
