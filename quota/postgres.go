package quota

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/domain"
)

type pgLedger struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Ledger {
	return &pgLedger{pool: pool}
}

func (l *pgLedger) EnsureLedger(ctx context.Context, userID string, kind domain.QuotaKind, limit int64) error {
	now := time.Now()
	_, err := l.pool.Exec(ctx, `
		INSERT INTO quota_ledger (user_id, kind, "limit", used, period_start, reset_at, last_notified_threshold)
		VALUES ($1, $2, $3, 0, $4, $5, 'none')
		ON CONFLICT (user_id, kind) DO NOTHING
	`, userID, kind, limit, now, periodEnd(now))
	return err
}

func periodEnd(start time.Time) time.Time { return start.AddDate(0, 1, 0) }

func (l *pgLedger) Check(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (CheckResult, error) {
	var limit, used int64
	err := l.pool.QueryRow(ctx, `
		SELECT "limit", used FROM quota_ledger WHERE user_id = $1 AND kind = $2
	`, userID, kind).Scan(&limit, &used)
	if err != nil {
		return CheckResult{}, err
	}
	if limit < 0 {
		return CheckResult{OK: true}, nil
	}
	remaining := limit - used
	switch {
	case remaining <= 0:
		return CheckResult{Exhausted: true}, nil
	case remaining < n:
		return CheckResult{Partial: true, Remaining: remaining}, nil
	default:
		return CheckResult{OK: true}, nil
	}
}

// Consume is the atomic conditional update of spec §4.4. Inside one
// transaction it reads the ledger row with SELECT ... FOR UPDATE, which
// locks the row against concurrent consumers until commit, then runs an
// UPDATE guarded by the remaining-headroom predicate whose affected-row
// count says whether n fit. No application-level locking is involved.
func (l *pgLedger) Consume(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (ConsumeResult, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return ConsumeResult{}, err
	}
	defer tx.Rollback(ctx)

	var oldUsed, limit int64
	var lastNotified domain.Threshold
	err = tx.QueryRow(ctx, `
		SELECT used, "limit", last_notified_threshold
		FROM quota_ledger WHERE user_id = $1 AND kind = $2 FOR UPDATE
	`, userID, kind).Scan(&oldUsed, &limit, &lastNotified)
	if err != nil {
		return ConsumeResult{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE quota_ledger SET used = used + $3
		WHERE user_id = $1 AND kind = $2 AND ("limit" < 0 OR used + $3 <= "limit")
	`, userID, kind, n)
	if err != nil {
		return ConsumeResult{}, err
	}
	if tag.RowsAffected() == 0 {
		// n does not fit in the remaining headroom; report what's left
		// rather than pretending success.
		return ConsumeResult{Consumed: 0, Remaining: max64(limit-oldUsed, 0)}, nil
	}

	newUsed := oldUsed + n
	if limit >= 0 {
		if cross, changed := thresholdCrossed(oldUsed, newUsed, limit, lastNotified); changed {
			if _, err := tx.Exec(ctx, `
				UPDATE quota_ledger SET last_notified_threshold = $3 WHERE user_id = $1 AND kind = $2
			`, userID, kind, cross); err != nil {
				return ConsumeResult{}, err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO quota_events (user_id, kind, crossed) VALUES ($1, $2, $3)
			`, userID, kind, cross); err != nil {
				return ConsumeResult{}, err
			}
			nlog.Infof("quota threshold crossed user=%s kind=%s crossed=%s", userID, kind, cross)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ConsumeResult{}, err
	}

	remaining := int64(-1)
	if limit >= 0 {
		remaining = limit - newUsed
	}
	return ConsumeResult{Consumed: n, Remaining: remaining}, nil
}

func (l *pgLedger) Reset(ctx context.Context, userID string, kind domain.QuotaKind) error {
	now := time.Now()
	_, err := l.pool.Exec(ctx, `
		UPDATE quota_ledger
		SET used = 0, period_start = $3, reset_at = $4, last_notified_threshold = 'none'
		WHERE user_id = $1 AND kind = $2
	`, userID, kind, now, periodEnd(now))
	return err
}

func (l *pgLedger) Observe(ctx context.Context, userID string, kind domain.QuotaKind) (domain.QuotaSnapshot, error) {
	var limit, used int64
	var resetAt time.Time
	err := l.pool.QueryRow(ctx, `
		SELECT "limit", used, reset_at FROM quota_ledger WHERE user_id = $1 AND kind = $2
	`, userID, kind).Scan(&limit, &used, &resetAt)
	if err != nil {
		return domain.QuotaSnapshot{}, err
	}
	led := domain.QuotaLedger{Limit: limit, Used: used}
	pct := led.Percent()
	return domain.QuotaSnapshot{
		Used:        used,
		Limit:       limit,
		Percent:     pct,
		ResetAt:     resetAt,
		IsExhausted: limit >= 0 && used >= limit,
		IsNearLimit: limit >= 0 && pct >= 80,
	}, nil
}

func (l *pgLedger) PendingThresholdEvents(ctx context.Context, limit int) ([]ThresholdEvent, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, kind, crossed, created_at, delivered
		FROM quota_events WHERE NOT delivered ORDER BY created_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThresholdEvent
	for rows.Next() {
		var e ThresholdEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Crossed, &e.CreatedAt, &e.Delivered); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *pgLedger) MarkDelivered(ctx context.Context, eventID int64) error {
	_, err := l.pool.Exec(ctx, `UPDATE quota_events SET delivered = true WHERE id = $1`, eventID)
	return err
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
