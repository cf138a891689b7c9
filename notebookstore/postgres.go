package notebookstore

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

func (s *pgStore) GetOrCreate(ctx context.Context, n *domain.Notebook) (*domain.Notebook, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notebooks (user_id, notebook_uuid, visible_name, parent_uuid, document_type, last_modified)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id, notebook_uuid) DO NOTHING
	`, n.UserID, n.NotebookUUID, n.VisibleName, n.ParentUUID, n.DocumentType)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, n.UserID, n.NotebookUUID)
}

func (s *pgStore) Get(ctx context.Context, userID, notebookUUID string) (*domain.Notebook, error) {
	n := &domain.Notebook{UserID: userID, NotebookUUID: notebookUUID}
	err := s.pool.QueryRow(ctx, `
		SELECT visible_name, parent_uuid, document_type, last_modified
		FROM notebooks WHERE user_id = $1 AND notebook_uuid = $2
	`, userID, notebookUUID).Scan(&n.VisibleName, &n.ParentUUID, &n.DocumentType, &n.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *pgStore) UpdateMetadata(ctx context.Context, userID, notebookUUID, visibleName, documentType string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notebooks SET visible_name = $3, document_type = $4, last_modified = now()
		WHERE user_id = $1 AND notebook_uuid = $2
	`, userID, notebookUUID, visibleName, documentType)
	return err
}

func (s *pgStore) List(ctx context.Context, userID string) ([]*domain.Notebook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT notebook_uuid, visible_name, parent_uuid, document_type, last_modified
		FROM notebooks WHERE user_id = $1 ORDER BY last_modified DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notebook
	for rows.Next() {
		n := &domain.Notebook{UserID: userID}
		if err := rows.Scan(&n.NotebookUUID, &n.VisibleName, &n.ParentUUID, &n.DocumentType, &n.LastModified); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *pgStore) EverSynced(ctx context.Context, userID, notebookUUID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sync_records
			WHERE user_id = $1 AND page_uuid = $2 AND item_kind = 'notebook_container'
		)
	`, userID, notebookUUID).Scan(&exists)
	return exists, err
}
