// Command worker runs the sync worker (C10), its lease-expiry sweeper, the
// metrics listener and, when in-cluster, the informational fleet reporter.
// It does not start the retroactive processor (C11).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teris-io/shortid"

	"github.com/gottino/rmirror-cloud/cmn/config"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/crypto"
	"github.com/gottino/rmirror-cloud/destination"
	"github.com/gottino/rmirror-cloud/integrationconfig"
	"github.com/gottino/rmirror-cloud/kubefleet"
	"github.com/gottino/rmirror-cloud/notebookstore"
	"github.com/gottino/rmirror-cloud/pagestore"
	"github.com/gottino/rmirror-cloud/storage/postgres"
	"github.com/gottino/rmirror-cloud/syncrecord"
	"github.com/gottino/rmirror-cloud/syncworker"
	"github.com/gottino/rmirror-cloud/telemetry"
	"github.com/gottino/rmirror-cloud/workqueue"
)

func main() {
	cfgPath := os.Getenv("RMIRROR_CONFIG")
	cfg := config.Defaults()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			nlog.Fatalf("worker: load config: %v", err)
		}
		cfg = loaded
	}
	nlog.Init(nlog.Config{Pretty: cfg.Logging.Pretty, Level: cfg.Logging.Level})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.Postgres.DSN, int32(cfg.Postgres.MaxConns))
	if err != nil {
		nlog.Fatalf("worker: open postgres: %v", err)
	}
	defer pool.Close()

	queue := workqueue.NewPostgres(pool)
	records := syncrecord.NewPostgres(pool)
	configs := integrationconfig.NewPostgres(pool)
	pages := pagestore.NewPostgres(pool)
	notebooks := notebookstore.NewPostgres(pool)
	vault := crypto.NewVault([]byte(cfg.Secrets.IntegrationMasterSecret))

	registry := destination.NewRegistry()
	destination.RegisterStructuredNotes(registry)
	orch := destination.NewOrchestrator(records)

	workerShortID, err := shortid.Generate()
	if err != nil {
		nlog.Fatalf("worker: generate worker id: %v", err)
	}
	workerID := "worker-" + workerShortID
	wcfg := syncworker.DefaultConfig(workerID)
	wcfg.PollInterval = cfg.WorkQueue.PollInterval
	wcfg.PollIntervalMax = cfg.WorkQueue.PollIntervalMax
	wcfg.LeaseDuration = cfg.WorkQueue.LeaseDuration
	wcfg.MaxRetries = cfg.WorkQueue.MaxRetries
	wcfg.ClaimBatchSize = cfg.WorkQueue.ClaimBatchSize

	w := syncworker.New(wcfg, queue, configs, vault, registry, orch, pages, notebooks)

	go workqueue.RunLeaseSweeper(ctx, queue, cfg.WorkQueue.LeaseDuration)

	if reporter, err := kubefleet.NewInCluster(cfg.Kubernetes.Namespace, cfg.Kubernetes.FleetLabelSelector); err != nil {
		nlog.Infof("worker: kubefleet reporting disabled: %v", err)
	} else {
		go runFleetReporter(ctx, reporter)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		nlog.Infof("worker: metrics listening on :9090")
		if err := http.ListenAndServe(":9090", mux); err != nil && err != http.ErrServerClosed {
			nlog.Errorf("worker: metrics server: %v", err)
		}
	}()

	nlog.Infof("worker: %s starting", workerID)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		nlog.Errorf("worker: %v", err)
	}
}

// runFleetReporter periodically refreshes the informational fleet-size and
// fleet-CPU gauges; never used for coordination (spec §9 keeps that
// DB-lease-based).
func runFleetReporter(ctx context.Context, reporter *kubefleet.Reporter) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reporter.FleetSize(ctx)
			reporter.FleetCPUMillicores(ctx)
		}
	}
}
