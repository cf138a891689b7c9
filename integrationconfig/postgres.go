package integrationconfig

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

func (s *pgStore) Get(ctx context.Context, userID, destination string) (*domain.IntegrationConfig, error) {
	c := &domain.IntegrationConfig{UserID: userID, Destination: destination}
	err := s.pool.QueryRow(ctx, `
		SELECT enabled, encrypted_blob, last_synced_at, usage_count
		FROM integration_configs WHERE user_id = $1 AND destination = $2
	`, userID, destination).Scan(&c.Enabled, &c.EncryptedBlob, &c.LastSyncedAt, &c.UsageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *pgStore) Upsert(ctx context.Context, cfg *domain.IntegrationConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO integration_configs (user_id, destination, enabled, encrypted_blob)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, destination)
		DO UPDATE SET enabled = $3, encrypted_blob = $4
	`, cfg.UserID, cfg.Destination, cfg.Enabled, cfg.EncryptedBlob)
	return err
}

func (s *pgStore) ListEnabledForUser(ctx context.Context, userID string) ([]*domain.IntegrationConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT destination, encrypted_blob, last_synced_at, usage_count
		FROM integration_configs WHERE user_id = $1 AND enabled = true
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IntegrationConfig
	for rows.Next() {
		c := &domain.IntegrationConfig{UserID: userID, Enabled: true}
		if err := rows.Scan(&c.Destination, &c.EncryptedBlob, &c.LastSyncedAt, &c.UsageCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) RecordUsage(ctx context.Context, userID, destination string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE integration_configs SET last_synced_at = now(), usage_count = usage_count + 1
		WHERE user_id = $1 AND destination = $2
	`, userID, destination)
	return err
}
