package syncrecord

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gottino/rmirror-cloud/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Get(ctx context.Context, userID, pageUUID, destination string) (*domain.SyncRecord, error) {
	r := &domain.SyncRecord{UserID: userID, PageUUID: pageUUID, Destination: destination}
	err := s.pool.QueryRow(ctx, `
		SELECT item_kind, external_id, content_hash, status, error, retry_count, synced_at, metadata
		FROM sync_records WHERE user_id = $1 AND page_uuid = $2 AND destination = $3
	`, userID, pageUUID, destination).Scan(
		&r.ItemKind, &r.ExternalID, &r.ContentHash, &r.Status, &r.Error, &r.RetryCount, &r.SyncedAt, &r.Metadata,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Insert is the arbitration point for spec §8 invariant 3 ("at most one
// SyncRecord row exists with (U,P,D)"): the table's primary key IS that
// tuple, so a concurrent insert fails with a unique_violation rather than
// silently overwriting, and we surface that as ErrConflict.
func (s *pgStore) Insert(ctx context.Context, rec *domain.SyncRecord) error {
	itemKind := rec.ItemKind
	if itemKind == "" {
		itemKind = ItemKindPage
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_records (user_id, page_uuid, item_kind, destination, external_id, content_hash, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.UserID, rec.PageUUID, itemKind, rec.Destination, rec.ExternalID, rec.ContentHash, rec.Status, rec.Metadata)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *pgStore) UpdateContentHash(ctx context.Context, userID, pageUUID, destination, contentHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_records SET content_hash = $4, synced_at = now(), status = 'success'
		WHERE user_id = $1 AND page_uuid = $2 AND destination = $3
	`, userID, pageUUID, destination, contentHash)
	return err
}

func (s *pgStore) Delete(ctx context.Context, userID, pageUUID, destination string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM sync_records WHERE user_id = $1 AND page_uuid = $2 AND destination = $3
	`, userID, pageUUID, destination)
	return err
}

func (s *pgStore) FindByContentHash(ctx context.Context, destination, contentHash string) (*domain.SyncRecord, error) {
	r := &domain.SyncRecord{Destination: destination, ContentHash: contentHash}
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, page_uuid, item_kind, external_id, status, error, retry_count, synced_at, metadata
		FROM sync_records WHERE destination = $1 AND content_hash = $2
		ORDER BY synced_at DESC LIMIT 1
	`, destination, contentHash).Scan(
		&r.UserID, &r.PageUUID, &r.ItemKind, &r.ExternalID, &r.Status, &r.Error, &r.RetryCount, &r.SyncedAt, &r.Metadata,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
