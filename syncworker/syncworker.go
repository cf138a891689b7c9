// Package syncworker implements C10: drains the work queue and runs the
// two-phase destination sync of spec §4.6 — Phase-1 container creation
// serialized per user, Phase-2 page upserts parallelized across a bounded
// worker pool.
package syncworker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gottino/rmirror-cloud/cmn/errs"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/crypto"
	"github.com/gottino/rmirror-cloud/destination"
	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/integrationconfig"
	"github.com/gottino/rmirror-cloud/notebookstore"
	"github.com/gottino/rmirror-cloud/pagestore"
	"github.com/gottino/rmirror-cloud/workqueue"
)

// Config tunes the claim loop (spec §4.6 "Claiming work").
type Config struct {
	WorkerID        string
	PollInterval    time.Duration // default 5s
	PollIntervalMax time.Duration // default 30s, backs off while idle
	LeaseDuration   time.Duration // default 60s
	ClaimBatchSize  int
	MaxRetries      int // default 5
	Parallelism     int64
}

func DefaultConfig(workerID string) Config {
	return Config{
		WorkerID:        workerID,
		PollInterval:    5 * time.Second,
		PollIntervalMax: 30 * time.Second,
		LeaseDuration:   60 * time.Second,
		ClaimBatchSize:  20,
		MaxRetries:      5,
		Parallelism:     8,
	}
}

type Worker struct {
	cfg       Config
	queue     workqueue.Queue
	configs   integrationconfig.Store
	vault     *crypto.Vault
	adapters  *destination.Registry
	orch      *destination.Orchestrator
	pages     pagestore.Store
	notebooks notebookstore.Store
}

func New(cfg Config, queue workqueue.Queue, configs integrationconfig.Store,
	vault *crypto.Vault, adapters *destination.Registry, orch *destination.Orchestrator,
	pages pagestore.Store, notebooks notebookstore.Store) *Worker {
	return &Worker{
		cfg:       cfg,
		queue:     queue,
		configs:   configs,
		vault:     vault,
		adapters:  adapters,
		orch:      orch,
		pages:     pages,
		notebooks: notebooks,
	}
}

// Run claims and processes batches until ctx is cancelled, backing off the
// poll interval from PollInterval up to PollIntervalMax while the queue is
// idle (spec §4.6: "Poll interval: 5 s default, exponential backoff to
// 30 s when idle").
func (w *Worker) Run(ctx context.Context) error {
	interval := w.cfg.PollInterval
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		items, err := w.queue.Claim(ctx, w.cfg.WorkerID, w.cfg.ClaimBatchSize, w.cfg.LeaseDuration)
		if err != nil {
			nlog.Errorf("syncworker: claim failed: %v", err)
			continue
		}
		if len(items) == 0 {
			interval = nextInterval(interval, w.cfg.PollIntervalMax)
			continue
		}
		interval = w.cfg.PollInterval

		if err := w.processBatch(ctx, items); err != nil {
			nlog.Errorf("syncworker: process batch: %v", err)
		}
	}
}

func nextInterval(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// processBatch splits the claimed batch by phase: container-creation items
// (item_kind=notebook_container) run serially per user at priority 0;
// everything else runs in the bounded Phase-2 pool.
func (w *Worker) processBatch(ctx context.Context, items []*domain.WorkItem) error {
	var containers, pages []*domain.WorkItem
	for _, it := range items {
		if it.ItemKind == "notebook_container" {
			containers = append(containers, it)
		} else {
			pages = append(pages, it)
		}
	}

	for _, it := range containers {
		w.processOne(ctx, it)
	}

	sem := semaphore.NewWeighted(w.cfg.Parallelism)
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range pages {
		it := it
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			w.processOne(ctx, it)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) processOne(ctx context.Context, item *domain.WorkItem) {
	dests, err := w.expandDestinations(ctx, item)
	if err != nil {
		w.queue.Fail(ctx, item.ID, w.cfg.MaxRetries, err.Error())
		nlog.Warnf("syncworker: item=%d expand destinations: %v", item.ID, err)
		return
	}
	for _, destName := range dests {
		if err := w.syncOne(ctx, item, destName); err != nil {
			kind := errs.KindOf(err)
			maxRetries := w.cfg.MaxRetries
			if !kind.Retryable() {
				maxRetries = 0 // non-retryable kinds fail on the first attempt
			}
			w.queue.Fail(ctx, item.ID, maxRetries, err.Error())
			nlog.Warnf("syncworker: item=%d dest=%s kind=%s failed: %v", item.ID, destName, kind, err)
			return
		}
	}
	if err := w.queue.Complete(ctx, item.ID); err != nil {
		nlog.Errorf("syncworker: complete item=%d: %v", item.ID, err)
	}
}

// expandDestinations resolves the "all" marker to the user's enabled
// destinations; any other list is used as given.
func (w *Worker) expandDestinations(ctx context.Context, item *domain.WorkItem) ([]string, error) {
	if len(item.Destinations) == 1 && item.Destinations[0] == domain.DestinationAll {
		cfgs, err := w.configs.ListEnabledForUser(ctx, item.UserID)
		if err != nil {
			return nil, errs.Wrap(errs.KindTransient, err, "list enabled destinations")
		}
		names := make([]string, 0, len(cfgs))
		for _, c := range cfgs {
			names = append(names, c.Destination)
		}
		return names, nil
	}
	return item.Destinations, nil
}

func (w *Worker) syncOne(ctx context.Context, item *domain.WorkItem, destName string) error {
	cfg, err := w.configs.Get(ctx, item.UserID, destName)
	if err != nil {
		return errs.Wrap(errs.KindTransient, err, "load integration config")
	}
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	var creds struct {
		BaseURL string `json:"base_url"`
		APIKey  string `json:"api_key"`
	}
	if err := w.vault.Open(item.UserID, destName, cfg.EncryptedBlob, &creds); err != nil {
		return errs.Auth(err)
	}

	adapter, err := w.adapters.Build(destination.Config{Kind: destName, BaseURL: creds.BaseURL, APIKey: creds.APIKey})
	if err != nil {
		return errs.Permanent(err)
	}

	syncItem, err := w.buildItem(ctx, item)
	if err != nil {
		return err
	}

	if syncErr := w.orch.Sync(ctx, adapter, syncItem); syncErr != nil {
		return syncErr
	}
	return w.configs.RecordUsage(ctx, item.UserID, destName)
}

// buildItem assembles the destination.Item a WorkItem maps to, fetching
// the page/notebook content the item itself only references by id (spec
// §4.6: "An item carries... content payload... per-destination metadata").
func (w *Worker) buildItem(ctx context.Context, item *domain.WorkItem) (destination.Item, error) {
	switch item.ItemKind {
	case "notebook_container", "notebook_metadata":
		nb, err := w.notebooks.Get(ctx, item.UserID, item.TargetRef)
		if err != nil {
			return destination.Item{}, errs.Wrap(errs.KindTransient, err, "load notebook")
		}
		if nb == nil {
			return destination.Item{}, errs.Permanent(fmt.Errorf("notebook %s not found", item.TargetRef))
		}
		return destination.Item{
			UserID:       item.UserID,
			NotebookUUID: nb.NotebookUUID,
			PageUUID:     item.TargetRef,
			ItemKind:     item.ItemKind,
			Title:        nb.VisibleName,
			ContentHash:  item.ContentHashSnapshot,
			LastModified: nb.LastModified.Format(time.RFC3339),
			Metadata:     map[string]string{"document_type": nb.DocumentType},
		}, nil
	default: // "page"
		page, err := w.pages.GetByPageUUID(ctx, item.UserID, item.TargetRef)
		if err != nil {
			return destination.Item{}, errs.Wrap(errs.KindTransient, err, "load page")
		}
		if page == nil {
			return destination.Item{}, errs.Permanent(fmt.Errorf("page %s not found", item.TargetRef))
		}
		nb, err := w.notebooks.Get(ctx, item.UserID, page.NotebookUUID)
		if err != nil {
			return destination.Item{}, errs.Wrap(errs.KindTransient, err, "load notebook")
		}

		var title, folder string
		if nb != nil {
			title = nb.VisibleName
			folder = nb.VisibleName
		}
		var content string
		if page.OCRText != nil {
			content = *page.OCRText
		}

		return destination.Item{
			UserID:       item.UserID,
			NotebookUUID: page.NotebookUUID,
			PageUUID:     page.PageUUID,
			ItemKind:     item.ItemKind,
			Title:        fmt.Sprintf("%s p.%d", title, page.PageNumber),
			FolderPath:   folder,
			Content:      content,
			ContentHash:  item.ContentHashSnapshot,
			PageNumber:   page.PageNumber,
			LastModified: page.UpdatedAt.Format(time.RFC3339),
		}, nil
	}
}
