package pagestore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gottino/rmirror-cloud/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) GetOrCreate(ctx context.Context, userID, notebookUUID, pageUUID string, pageNumber int) (*domain.Page, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pages (user_id, notebook_uuid, page_uuid, page_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (notebook_uuid, page_uuid) DO NOTHING
	`, userID, notebookUUID, pageUUID, pageNumber)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, notebookUUID, pageUUID)
}

func (s *pgStore) Get(ctx context.Context, notebookUUID, pageUUID string) (*domain.Page, error) {
	p := &domain.Page{NotebookUUID: notebookUUID, PageUUID: pageUUID}
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, page_number, content_hash, ocr_status, ocr_text, ocr_confidence,
		       pdf_key, source_key, created_at, updated_at
		FROM pages WHERE notebook_uuid = $1 AND page_uuid = $2
	`, notebookUUID, pageUUID).Scan(
		&p.UserID, &p.PageNumber, &p.ContentHash, &p.OCRStatus, &p.OCRText, &p.OCRConfidence,
		&p.PDFKey, &p.SourceKey, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *pgStore) GetByPageUUID(ctx context.Context, userID, pageUUID string) (*domain.Page, error) {
	p := &domain.Page{UserID: userID, PageUUID: pageUUID}
	err := s.pool.QueryRow(ctx, `
		SELECT notebook_uuid, page_number, content_hash, ocr_status, ocr_text, ocr_confidence,
		       pdf_key, source_key, created_at, updated_at
		FROM pages WHERE user_id = $1 AND page_uuid = $2
	`, userID, pageUUID).Scan(
		&p.NotebookUUID, &p.PageNumber, &p.ContentHash, &p.OCRStatus, &p.OCRText, &p.OCRConfidence,
		&p.PDFKey, &p.SourceKey, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *pgStore) List(ctx context.Context, notebookUUID string) ([]*domain.Page, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, page_uuid, page_number, content_hash, ocr_status, ocr_text, ocr_confidence,
		       pdf_key, source_key, created_at, updated_at
		FROM pages WHERE notebook_uuid = $1 ORDER BY page_number ASC
	`, notebookUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Page
	for rows.Next() {
		p := &domain.Page{NotebookUUID: notebookUUID}
		if err := rows.Scan(&p.UserID, &p.PageUUID, &p.PageNumber, &p.ContentHash, &p.OCRStatus, &p.OCRText,
			&p.OCRConfidence, &p.PDFKey, &p.SourceKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgStore) TransitionToPending(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pages SET content_hash = $3, pdf_key = $4, ocr_status = 'pending',
		       ocr_text = NULL, ocr_confidence = NULL, updated_at = now()
		WHERE notebook_uuid = $1 AND page_uuid = $2
		  AND ocr_status IN ('not_synced', 'pending_quota', 'failed')
	`, notebookUUID, pageUUID, contentHash, pdfKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgStore) TransitionToPendingQuota(ctx context.Context, notebookUUID, pageUUID, contentHash, pdfKey, sourceKey string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pages SET content_hash = $3, pdf_key = $4, source_key = $5,
		       ocr_status = 'pending_quota', updated_at = now()
		WHERE notebook_uuid = $1 AND page_uuid = $2
		  AND ocr_status IN ('not_synced', 'failed')
	`, notebookUUID, pageUUID, contentHash, pdfKey, sourceKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgStore) CompleteOCR(ctx context.Context, notebookUUID, pageUUID, text string, confidence float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pages SET ocr_text = $3, ocr_confidence = $4, ocr_status = 'completed', updated_at = now()
		WHERE notebook_uuid = $1 AND page_uuid = $2 AND ocr_status = 'pending'
	`, notebookUUID, pageUUID, text, confidence)
	return err
}

func (s *pgStore) FailOCR(ctx context.Context, notebookUUID, pageUUID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pages SET ocr_status = 'failed', updated_at = now()
		WHERE notebook_uuid = $1 AND page_uuid = $2 AND ocr_status = 'pending'
	`, notebookUUID, pageUUID)
	return err
}

func (s *pgStore) CountPendingQuota(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM pages WHERE user_id = $1 AND ocr_status = 'pending_quota'
	`, userID).Scan(&n)
	return n, err
}

// ClaimOldestPendingQuota implements spec §4.8 steps 2-3 in one statement: a
// CTE selects the newest `limit` pending_quota rows for the user, and the
// outer UPDATE flips exactly those rows to pending, returning them. Because
// the select-and-mark happens inside one statement, a concurrent upload
// that also tries to touch one of these pages via TransitionToPendingQuota
// (guarded by ocr_status IN ('not_synced','failed')) simply won't match —
// the two never race on the same row in a way that violates either's
// precondition.
func (s *pgStore) ClaimOldestPendingQuota(ctx context.Context, userID string, limit int) ([]*domain.Page, error) {
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			SELECT notebook_uuid, page_uuid
			FROM pages
			WHERE user_id = $1 AND ocr_status = 'pending_quota'
			ORDER BY created_at DESC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE pages p SET ocr_status = 'pending', updated_at = now()
		FROM claimed c
		WHERE p.notebook_uuid = c.notebook_uuid AND p.page_uuid = c.page_uuid
		RETURNING p.user_id, p.notebook_uuid, p.page_uuid, p.page_number, p.content_hash,
		          p.ocr_status, p.ocr_text, p.ocr_confidence, p.pdf_key, p.source_key,
		          p.created_at, p.updated_at
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Page
	for rows.Next() {
		p := &domain.Page{}
		if err := rows.Scan(&p.UserID, &p.NotebookUUID, &p.PageUUID, &p.PageNumber, &p.ContentHash,
			&p.OCRStatus, &p.OCRText, &p.OCRConfidence, &p.PDFKey, &p.SourceKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
