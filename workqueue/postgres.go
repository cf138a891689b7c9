package workqueue

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/domain"
)

type pgQueue struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Queue {
	return &pgQueue{pool: pool}
}

func (q *pgQueue) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	itemKind := item.ItemKind
	if itemKind == "" {
		itemKind = "page"
	}
	_, err := q.pool.Exec(ctx, `
		INSERT INTO work_items (user_id, kind, target_ref, item_kind, content_hash_snapshot, destinations, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`, item.UserID, item.Kind, item.TargetRef, itemKind, item.ContentHashSnapshot, item.Destinations, item.Priority)
	return err
}

func (q *pgQueue) Claim(ctx context.Context, workerID string, batch int, leaseDuration time.Duration) ([]*domain.WorkItem, error) {
	rows, err := q.pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM work_items
			WHERE status = 'queued'
			ORDER BY priority ASC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE work_items w SET status = 'leased', lease_owner = $2, lease_expires_at = now() + $3::interval
		FROM claimed c
		WHERE w.id = c.id
		RETURNING w.id, w.user_id, w.kind, w.target_ref, w.item_kind, w.content_hash_snapshot,
		          w.destinations, w.priority, w.status, w.lease_owner, w.lease_expires_at,
		          w.attempts, w.last_error, w.created_at
	`, batch, workerID, leaseDuration.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WorkItem
	for rows.Next() {
		it := &domain.WorkItem{}
		if err := rows.Scan(&it.ID, &it.UserID, &it.Kind, &it.TargetRef, &it.ItemKind, &it.ContentHashSnapshot,
			&it.Destinations, &it.Priority, &it.Status, &it.LeaseOwner, &it.LeaseExpiresAt,
			&it.Attempts, &it.LastError, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *pgQueue) Complete(ctx context.Context, id int64) error {
	_, err := q.pool.Exec(ctx, `UPDATE work_items SET status = 'done' WHERE id = $1`, id)
	return err
}

// Fail implements spec §4.6 "On failure": bump attempts; requeue with
// created_at pushed into the future by backoff(attempts) so the priority/
// created_at claim ordering naturally delays the retry, or mark terminally
// failed once max_retries is exhausted.
func (q *pgQueue) Fail(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var attempts int
	if err := tx.QueryRow(ctx, `
		UPDATE work_items SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 RETURNING attempts
	`, id, errMsg).Scan(&attempts); err != nil {
		return err
	}

	if attempts >= maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE work_items SET status = 'failed' WHERE id = $1`, id); err != nil {
			return err
		}
	} else {
		delay := Backoff(attempts)
		if _, err := tx.Exec(ctx, `
			UPDATE work_items
			SET status = 'queued', lease_owner = NULL, lease_expires_at = NULL,
			    created_at = now() + $2::interval
			WHERE id = $1
		`, id, delay.String()); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SweepExpiredLeases is one sweep pass; RunLeaseSweeper calls it on its own
// goroutine for spec §8 invariant 7: no item stays `leased` past its lease
// past a crashed worker. Re-queuing leaves attempts unchanged; only Fail
// increments them.
func (q *pgQueue) SweepExpiredLeases(ctx context.Context) (int, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE work_items
		SET status = 'queued', lease_owner = NULL, lease_expires_at = NULL
		WHERE status = 'leased' AND lease_expires_at < now()
	`)
	if err != nil {
		return 0, err
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		nlog.Warnf("workqueue: reclaimed %d expired lease(s)", n)
	}
	return n, nil
}

func (q *pgQueue) Depth(ctx context.Context) (queued, leased int, err error) {
	err = q.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'queued'),
			count(*) FILTER (WHERE status = 'leased')
		FROM work_items
	`).Scan(&queued, &leased)
	return
}
