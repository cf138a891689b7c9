// Package retroactive implements C11: when a user's quota resets, replay
// as many deferred pending_quota pages as the fresh headroom allows,
// newest first (spec §4.8).
package retroactive

import (
	"context"

	"github.com/gottino/rmirror-cloud/cmn/errs"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/pagestore"
	"github.com/gottino/rmirror-cloud/quota"
	"github.com/gottino/rmirror-cloud/workqueue"
)

type Processor struct {
	Pages pagestore.Store
	Quota quota.Ledger
	Queue workqueue.Queue
}

func New(pages pagestore.Store, q quota.Ledger, queue workqueue.Queue) *Processor {
	return &Processor{Pages: pages, Quota: q, Queue: queue}
}

// Reset implements spec §4.8 steps 1-4, triggered when QuotaLedger.reset
// fires for userID. destinations is the set to enqueue full syncs for
// (typically the user's enabled destination set at reset time).
func (p *Processor) Reset(ctx context.Context, userID string, destinations []string) (claimed int, err error) {
	snapshot, err := p.Quota.Observe(ctx, userID, domain.QuotaOCRPages)
	if err != nil {
		return 0, errs.Wrap(errs.KindTransient, err, "observe quota after reset")
	}
	headroom := int(snapshot.Limit - snapshot.Used)
	if snapshot.Limit < 0 {
		headroom = MaxClaimBatch // unlimited tier: still bound one claim batch per reset call
	}
	if headroom <= 0 {
		return 0, nil
	}
	if headroom > MaxClaimBatch {
		headroom = MaxClaimBatch
	}

	pages, err := p.Pages.ClaimOldestPendingQuota(ctx, userID, headroom)
	if err != nil {
		return 0, errs.Wrap(errs.KindTransient, err, "claim pending_quota pages")
	}

	for _, page := range pages {
		hash := ""
		if page.ContentHash != nil {
			hash = *page.ContentHash
		}
		item := workqueue.NewFullSyncItem(page.UserID, page.PageUUID, hash, destinations)
		if err := p.Queue.Enqueue(ctx, item); err != nil {
			nlog.Errorf("retroactive: enqueue page=%s: %v", page.PageUUID, err)
			continue
		}
		claimed++
	}

	nlog.Infof("retroactive: user=%s claimed=%d headroom=%d", userID, claimed, headroom)
	return claimed, nil
}

// MaxClaimBatch bounds a single reset's claim so one oversized backlog
// can't monopolize a claim transaction; remaining pending_quota pages
// stay put until the next reset (spec §4.8 step 4).
const MaxClaimBatch = 500
