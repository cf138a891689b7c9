// Package quota implements C5, the Quota Ledger: atomic per-user counters
// with billing-period reset and threshold notifications (spec §4.4).
//
// Grounded in other_examples/.../toolbridge-api notes_service.go's pgx
// transaction idiom: a conditional UPDATE whose affected-row count *is* the
// concurrency control, no SELECT-then-write across a network call.
package quota

import (
	"context"
	"time"

	"github.com/gottino/rmirror-cloud/domain"
)

// CheckResult is the outcome of a read-only check (spec §4.4 `check`).
type CheckResult struct {
	OK        bool
	Exhausted bool
	Partial   bool
	Remaining int64 // meaningful when Partial
}

// ConsumeResult is returned by Consume.
type ConsumeResult struct {
	Consumed  int64
	Remaining int64
}

// ThresholdEvent is the durable QuotaThresholdCrossed event (spec §4.4):
// persisted in the same transaction as the ledger update so a later
// notification-transport failure can never silently drop it.
type ThresholdEvent struct {
	ID        int64
	UserID    string
	Kind      domain.QuotaKind
	Crossed   domain.Threshold
	CreatedAt time.Time
	Delivered bool
}

// Ledger is the C5 contract. Implementations must serialize Consume per
// user (spec §5: "Atomic conditional update only. Never read-then-write
// across a network call.").
type Ledger interface {
	Check(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (CheckResult, error)
	Consume(ctx context.Context, userID string, kind domain.QuotaKind, n int64) (ConsumeResult, error)
	Reset(ctx context.Context, userID string, kind domain.QuotaKind) error
	Observe(ctx context.Context, userID string, kind domain.QuotaKind) (domain.QuotaSnapshot, error)

	// PendingThresholdEvents returns undelivered ThresholdEvent rows for a
	// notification transport to replay (spec: "durable so a later transport
	// failure cannot silently drop it"). MarkDelivered acknowledges them.
	PendingThresholdEvents(ctx context.Context, limit int) ([]ThresholdEvent, error)
	MarkDelivered(ctx context.Context, eventID int64) error

	// EnsureLedger creates a ledger row for a user if one doesn't exist yet
	// (spec §3 invariant: "a ledger row exists for every user").
	EnsureLedger(ctx context.Context, userID string, kind domain.QuotaKind, limit int64) error
}

// thresholdCrossed computes which of {90,100} boundary (if any) was crossed
// moving from oldUsed to newUsed against limit, per spec §4.4: "If the
// boundary crossed is 90 or 100 and differs from last_notified_threshold".
func thresholdCrossed(oldUsed, newUsed, limit int64, last domain.Threshold) (domain.Threshold, bool) {
	if limit <= 0 {
		return domain.ThresholdNone, false
	}
	oldPct := float64(oldUsed) / float64(limit) * 100
	newPct := float64(newUsed) / float64(limit) * 100

	cross := domain.ThresholdNone
	if oldPct < 100 && newPct >= 100 {
		cross = domain.Threshold100
	} else if oldPct < 90 && newPct >= 90 {
		cross = domain.Threshold90
	}
	if cross == domain.ThresholdNone || cross == last {
		return domain.ThresholdNone, false
	}
	return cross, true
}
